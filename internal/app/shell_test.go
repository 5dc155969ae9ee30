package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ggonzalez94/nftmp-cli/internal/prompt"
)

func runShell(t *testing.T, market *fakeMarket, args []string, answers ...string) (string, *prompt.Scripted) {
	t.Helper()
	isolate(t)
	r, stdout, stderr := newTestRunner(market)
	scripted := prompt.NewScripted(answers...)
	r.prompter = scripted
	code := r.Run(append([]string{"shell"}, args...))
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	return stdout.String(), scripted
}

func TestShellBuyFromForSaleList(t *testing.T) {
	market := newFakeMarket()
	out, _ := runShell(t, market, []string{"--private-key", "bob-key"},
		"Show all items",
		"Buy item", "#1 Sunrise - 1 ETH", "y",
		"Exit",
	)
	if !strings.Contains(out, "Connected as") {
		t.Fatalf("expected connect banner, got:\n%s", out)
	}
	if !strings.Contains(out, "Name: Moonrise") {
		t.Fatalf("expected item listing, got:\n%s", out)
	}
	if !strings.Contains(out, "Status: succeeded") || !strings.Contains(out, "Bye.") {
		t.Fatalf("expected buy receipt and exit, got:\n%s", out)
	}
	if got := market.Writes(); len(got) != 1 || got[0] != "buyItem" {
		t.Fatalf("unexpected writes: %v", got)
	}
}

func TestShellDeclinedConfirmSubmitsNothing(t *testing.T) {
	market := newFakeMarket()
	out, _ := runShell(t, market, []string{"--private-key", "bob-key"},
		"Buy item", "#1 Sunrise - 1 ETH", "n",
		"Exit",
	)
	if !strings.Contains(out, "Cancelled.") {
		t.Fatalf("expected cancel notice, got:\n%s", out)
	}
	if len(market.Writes()) != 0 {
		t.Fatalf("expected no writes, got %v", market.Writes())
	}
}

func TestShellInvalidInputReprompts(t *testing.T) {
	out, scripted := runShell(t, newFakeMarket(), []string{"--account", bob},
		"Show item", "abc", "2",
		"Exit",
	)
	if len(scripted.Rejected) != 1 {
		t.Fatalf("expected one rejected answer, got %v", scripted.Rejected)
	}
	if !strings.Contains(out, "Name: Moonrise") || !strings.Contains(out, "Offer Only: true") {
		t.Fatalf("expected item 2, got:\n%s", out)
	}
}

func TestShellPreconditionReturnsToMenu(t *testing.T) {
	market := newFakeMarket()
	out, scripted := runShell(t, market, []string{"--private-key", "bob-key"},
		"Withdraw balance",
		"Marketplace balance",
		"Exit",
	)
	if strings.Count(out, "Cannot do that:") != 2 {
		t.Fatalf("expected both owner-only actions rejected, got:\n%s", out)
	}
	menus := 0
	for _, l := range scripted.Labels {
		if l == "What do you want to do?" {
			menus++
		}
	}
	if menus != 3 {
		t.Fatalf("expected to return to the menu each time, saw %d menus", menus)
	}
	for _, l := range scripted.Labels {
		if strings.HasPrefix(l, "Withdraw") {
			t.Fatalf("non-owner was asked to confirm a withdrawal: %q", l)
		}
	}
	if len(market.Writes()) != 0 {
		t.Fatalf("expected no writes, got %v", market.Writes())
	}
}

func TestShellWithdrawConfirmShowsBalance(t *testing.T) {
	market := newFakeMarket()
	out, scripted := runShell(t, market, []string{"--private-key", "alice-key"},
		"Withdraw balance", "y",
		"Exit",
	)
	found := false
	for _, l := range scripted.Labels {
		if l == "Withdraw 0.25 ETH from the marketplace" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected balance in the confirmation, got labels %v", scripted.Labels)
	}
	if !strings.Contains(out, "Status: succeeded") {
		t.Fatalf("expected withdraw receipt, got:\n%s", out)
	}
}

func TestShellRemoteFailureIsReported(t *testing.T) {
	market := newFakeMarket()
	market.result.Code = 0
	out, _ := runShell(t, market, []string{"--private-key", "bob-key"},
		"Buy item", "#1 Sunrise - 1 ETH", "yes",
		"Exit",
	)
	if !strings.Contains(out, "Error: buy failed") {
		t.Fatalf("expected failure report, got:\n%s", out)
	}
}

func TestShellConnectWalletSwapsSession(t *testing.T) {
	market := newFakeMarket()
	out, _ := runShell(t, market, nil,
		"Show all items",
		"Connect wallet", "alice-key",
		"Withdraw balance", "y",
	)
	if !strings.Contains(out, "Error: no account connected") {
		t.Fatalf("expected missing account report, got:\n%s", out)
	}
	if !strings.Contains(out, "Connected as "+alice) {
		t.Fatalf("expected alice session, got:\n%s", out)
	}
	if got := market.Writes(); len(got) != 1 || got[0] != "withdrawMoney" {
		t.Fatalf("unexpected writes: %v", got)
	}
}

func TestShellConnectWalletMasksKey(t *testing.T) {
	out, scripted := runShell(t, newFakeMarket(), []string{"--account", bob},
		"Connect wallet", "alice-key",
		"Exit",
	)
	if len(scripted.Secrets) != 1 || scripted.Secrets[0] != "Private key" {
		t.Fatalf("expected the key to be read through a masked prompt, got %v", scripted.Secrets)
	}
	if strings.Contains(out, "alice-key") {
		t.Fatalf("private key leaked to output:\n%s", out)
	}
}

func TestShellConnectWalletReleasesPreviousRemote(t *testing.T) {
	market := newFakeMarket()
	runShell(t, market, []string{"--private-key", "bob-key"},
		"Connect wallet", "alice-key",
		"Exit",
	)
	got := market.Closed()
	if len(got) != 2 || got[0] != bob || got[1] != alice {
		t.Fatalf("expected bob released on swap and alice on exit, got %v", got)
	}
}

// slowConfirm takes longer to answer a confirmation than a marketplace call
// is allowed to run.
type slowConfirm struct {
	*prompt.Scripted
	delay time.Duration
}

func (s slowConfirm) Confirm(label string) (bool, error) {
	time.Sleep(s.delay)
	return s.Scripted.Confirm(label)
}

func TestShellThinkingTimeDoesNotCountAgainstDeadline(t *testing.T) {
	isolate(t)
	dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "nftmp")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := "timeout: 100ms\nchain:\n  receipt_timeout: 1ms\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	market := newFakeMarket()
	r, stdout, stderr := newTestRunner(market)
	r.prompter = slowConfirm{
		Scripted: prompt.NewScripted("Buy item", "#1 Sunrise - 1 ETH", "y", "Exit"),
		delay:    300 * time.Millisecond,
	}
	if code := r.Run([]string{"shell", "--private-key", "bob-key"}); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Status: succeeded") {
		t.Fatalf("expected the buy to go through, got:\n%s", stdout.String())
	}
	if got := market.Writes(); len(got) != 1 || got[0] != "buyItem" {
		t.Fatalf("unexpected writes: %v", got)
	}
}

func TestMenuLabelsCoverEveryAction(t *testing.T) {
	if len(menuLabels) != int(actionExit)+1 {
		t.Fatalf("expected %d labels, got %d", int(actionExit)+1, len(menuLabels))
	}
	sh := &shell{}
	handlers := sh.handlers()
	for a := actionShowItems; a < actionExit; a++ {
		if menuLabels[a] == "" {
			t.Fatalf("action %d has no label", a)
		}
		if _, ok := handlers[a]; !ok {
			t.Fatalf("action %q has no handler", a)
		}
	}
}
