package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/nftmp-cli/internal/amount"
	clierr "github.com/ggonzalez94/nftmp-cli/internal/errors"
	"github.com/ggonzalez94/nftmp-cli/internal/journal"
	"github.com/ggonzalez94/nftmp-cli/internal/marketplace"
	"github.com/ggonzalez94/nftmp-cli/internal/model"
	"github.com/ggonzalez94/nftmp-cli/internal/out"
	"github.com/ggonzalez94/nftmp-cli/internal/prompt"
)

type menuAction int

const (
	actionShowItems menuAction = iota
	actionShowItem
	actionBuy
	actionOffer
	actionMyOffers
	actionAcceptOffer
	actionClaim
	actionListItem
	actionAddItem
	actionCollections
	actionCreateCollection
	actionMint
	actionBalance
	actionWithdraw
	actionConnect
	actionHistory
	actionExit
)

var menuLabels = []string{
	actionShowItems:        "Show all items",
	actionShowItem:         "Show item",
	actionBuy:              "Buy item",
	actionOffer:            "Make offer",
	actionMyOffers:         "My offers",
	actionAcceptOffer:      "Accept offer",
	actionClaim:            "Claim item",
	actionListItem:         "List item for sale",
	actionAddItem:          "Add item to marketplace",
	actionCollections:      "Collections",
	actionCreateCollection: "Create collection",
	actionMint:             "Mint NFT",
	actionBalance:          "Marketplace balance",
	actionWithdraw:         "Withdraw balance",
	actionConnect:          "Connect wallet",
	actionHistory:          "History",
	actionExit:             "Exit",
}

func (a menuAction) String() string {
	if a < 0 || int(a) >= len(menuLabels) {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return menuLabels[a]
}

var errNoAccount = clierr.New(clierr.CodeSigner, "no account connected: choose \"Connect wallet\" first")

// shell is one interactive session. The orchestrator is replaced only by the
// connect-wallet action.
type shell struct {
	state  *runtimeState
	prompt prompt.Prompter
	out    io.Writer
	orch   *marketplace.Orchestrator
	remote Remote
}

func (s *runtimeState) newShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive marketplace menu",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sh := &shell{state: s, prompt: s.runner.prompterOrTerminal(), out: s.runner.stdout}
			return sh.run(cmd.Context())
		},
	}
}

func (r *Runner) prompterOrTerminal() prompt.Prompter {
	if r.prompter != nil {
		return r.prompter
	}
	t := prompt.Terminal{Stdin: r.stdin}
	if wc, ok := r.stdout.(io.WriteCloser); ok {
		t.Stdout = wc
	}
	return t
}

func (sh *shell) handlers() map[menuAction]func(context.Context) error {
	return map[menuAction]func(context.Context) error{
		actionShowItems:        sh.showItems,
		actionShowItem:         sh.showItem,
		actionBuy:              sh.buy,
		actionOffer:            sh.offer,
		actionMyOffers:         sh.myOffers,
		actionAcceptOffer:      sh.acceptOffer,
		actionClaim:            sh.claim,
		actionListItem:         sh.listItem,
		actionAddItem:          sh.addItem,
		actionCollections:      sh.collections,
		actionCreateCollection: sh.createCollection,
		actionMint:             sh.mint,
		actionBalance:          sh.balance,
		actionWithdraw:         sh.withdraw,
		actionConnect:          sh.connectWallet,
		actionHistory:          sh.history,
	}
}

func (sh *shell) run(ctx context.Context) error {
	if err := sh.connect(ctx, sh.state.settings.PrivateKey); err != nil {
		sh.report(err)
	}
	handlers := sh.handlers()
	for {
		idx, err := sh.prompt.Select("What do you want to do?", menuLabels)
		if errors.Is(err, prompt.ErrAborted) {
			return nil
		}
		if err != nil {
			return clierr.Wrap(clierr.CodeInternal, "read menu choice", err)
		}
		action := menuAction(idx)
		if action == actionExit {
			sh.printf("Bye.\n")
			return nil
		}
		handler, ok := handlers[action]
		if !ok {
			continue
		}
		sh.state.log.WithField("action", action.String()).Debug("shell action")
		err = handler(ctx)
		if errors.Is(err, prompt.ErrAborted) {
			return nil
		}
		if err != nil {
			sh.report(err)
		}
	}
}

// reading and writing bound a single marketplace call. Prompts run outside
// both deadlines.
func reading[T any](ctx context.Context, sh *shell, fn func(context.Context) (T, error)) (T, error) {
	return bounded(ctx, sh.state.settings.Timeout, fn)
}

func writing[T any](ctx context.Context, sh *shell, fn func(context.Context) (T, error)) (T, error) {
	return bounded(ctx, sh.state.settings.Timeout+sh.state.settings.ReceiptTimeout, fn)
}

func bounded[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

// connect dials the marketplace with key and swaps the session. An empty key
// falls back to --account as a read-only view.
func (sh *shell) connect(ctx context.Context, key string) error {
	remote, err := reading(ctx, sh, func(ctx context.Context) (Remote, error) {
		return sh.state.dial(ctx, key)
	})
	if err != nil {
		return err
	}
	if remote.Account == "" && strings.TrimSpace(sh.state.settings.Account) == "" {
		remote.Close()
		return errNoAccount
	}
	orch, err := sh.state.newOrchestrator(remote, sh.state.settings.Account)
	if err != nil {
		remote.Close()
		return err
	}
	sh.remote.Close()
	sh.orch, sh.remote = orch, remote
	if remote.Account == "" {
		sh.printf("Viewing as %s (read only).\n", orch.Session().Account())
	} else {
		sh.printf("Connected as %s.\n", orch.Session().Account())
	}
	return nil
}

func (sh *shell) report(err error) {
	sh.state.log.WithError(err).Debug("shell action failed")
	if marketplace.IsPrecondition(err) {
		sh.printf("Cannot do that: %s\n", err)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = clierr.Wrap(clierr.CodeUnavailable, "marketplace call timed out", err)
	}
	sh.printf("Error: %s\n", err)
}

func (sh *shell) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(sh.out, format, args...)
}

func (sh *shell) show(data any) error {
	return out.Blocks(sh.out, data)
}

func (sh *shell) session() (*marketplace.Orchestrator, error) {
	if sh.orch == nil {
		return nil, errNoAccount
	}
	return sh.orch, nil
}

// choose asks for one of options. ok is false when there is nothing to choose.
func (sh *shell) choose(label string, options []string) (int, bool, error) {
	if len(options) == 0 {
		sh.printf("Nothing to show.\n")
		return -1, false, nil
	}
	idx, err := sh.prompt.Select(label, options)
	if err != nil {
		return -1, false, err
	}
	return idx, true, nil
}

func (sh *shell) askEther(label string) (string, error) {
	answer, err := sh.prompt.Input(label, "", func(v string) error {
		wei, err := amount.ParseEther(v)
		if err != nil {
			return err
		}
		if wei.Sign() <= 0 {
			return errors.New("amount must be greater than zero")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	wei, err := amount.ParseEther(answer)
	if err != nil {
		return "", err
	}
	return wei.String(), nil
}

func required(v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("value is required")
	}
	return nil
}

func (sh *shell) askText(label string) (string, error) {
	return sh.prompt.Input(label, "", required)
}

func ethLabel(v *big.Int) string { return amount.FormatEther(v) + " ETH" }

func (sh *shell) showItems(ctx context.Context) error {
	orch, err := sh.session()
	if err != nil {
		return err
	}
	items, err := reading(ctx, sh, orch.Items)
	if err != nil {
		return err
	}
	return sh.show(presentItems(items))
}

func (sh *shell) showItem(ctx context.Context) error {
	orch, err := sh.session()
	if err != nil {
		return err
	}
	raw, err := sh.prompt.Input("Item id", "", func(v string) error {
		_, err := marketplace.ParseItemID(v)
		return err
	})
	if err != nil {
		return err
	}
	id, err := marketplace.ParseItemID(raw)
	if err != nil {
		return err
	}
	item, err := reading(ctx, sh, func(ctx context.Context) (marketplace.Item, error) {
		return orch.Item(ctx, id)
	})
	if err != nil {
		return err
	}
	return sh.show(presentItem(item))
}

func (sh *shell) buy(ctx context.Context) error {
	orch, err := sh.session()
	if err != nil {
		return err
	}
	views, err := reading(ctx, sh, orch.ForSale)
	if err != nil {
		return err
	}
	options := make([]string, 0, len(views))
	for _, v := range views {
		options = append(options, fmt.Sprintf("#%d %s - %s", v.ID, v.Name, ethLabel(v.Price)))
	}
	idx, ok, err := sh.choose("Item to buy", options)
	if err != nil || !ok {
		return err
	}
	confirmed, err := sh.prompt.Confirm(fmt.Sprintf("Buy %s", options[idx]))
	if err != nil {
		return err
	}
	if !confirmed {
		sh.printf("Cancelled.\n")
		return nil
	}
	receipt, err := writing(ctx, sh, func(ctx context.Context) (marketplace.Receipt, error) {
		return orch.Buy(ctx, views[idx].ID)
	})
	if err != nil {
		return err
	}
	return sh.show(presentReceipt(receipt))
}

func (sh *shell) offer(ctx context.Context) error {
	orch, err := sh.session()
	if err != nil {
		return err
	}
	views, err := reading(ctx, sh, orch.OfferEligible)
	if err != nil {
		return err
	}
	options := make([]string, 0, len(views))
	for _, v := range views {
		options = append(options, fmt.Sprintf("#%d %s", v.ID, v.Name))
	}
	idx, ok, err := sh.choose("Item to make an offer on", options)
	if err != nil || !ok {
		return err
	}
	value, err := sh.askEther("Offer amount (ETH)")
	if err != nil {
		return err
	}
	receipt, err := writing(ctx, sh, func(ctx context.Context) (marketplace.Receipt, error) {
		return orch.PlaceOffer(ctx, views[idx].ID, value)
	})
	if err != nil {
		return err
	}
	return sh.show(presentReceipt(receipt))
}

func (sh *shell) myOffers(ctx context.Context) error {
	orch, err := sh.session()
	if err != nil {
		return err
	}
	offers, err := reading(ctx, sh, orch.MyOffers)
	if err != nil {
		return err
	}
	return sh.show(presentOffers(offers))
}

func (sh *shell) acceptOffer(ctx context.Context) error {
	orch, err := sh.session()
	if err != nil {
		return err
	}
	offers, err := reading(ctx, sh, orch.PendingOffers)
	if err != nil {
		return err
	}
	options := make([]string, 0, len(offers))
	for _, o := range offers {
		options = append(options, fmt.Sprintf("#%d from %s - %s", o.ItemID, o.Offerer, ethLabel(o.Price)))
	}
	idx, ok, err := sh.choose("Offer to accept", options)
	if err != nil || !ok {
		return err
	}
	receipt, err := writing(ctx, sh, func(ctx context.Context) (marketplace.Receipt, error) {
		return orch.AcceptOffer(ctx, offers[idx].ItemID, offers[idx].Offerer)
	})
	if err != nil {
		return err
	}
	return sh.show(presentReceipt(receipt))
}

func (sh *shell) claim(ctx context.Context) error {
	orch, err := sh.session()
	if err != nil {
		return err
	}
	offers, err := reading(ctx, sh, orch.MyOffers)
	if err != nil {
		return err
	}
	var accepted []marketplace.Offer
	options := make([]string, 0, len(offers))
	for _, o := range offers {
		if !o.IsAccepted {
			continue
		}
		accepted = append(accepted, o)
		options = append(options, fmt.Sprintf("#%d - %s", o.ItemID, ethLabel(o.Price)))
	}
	idx, ok, err := sh.choose("Item to claim", options)
	if err != nil || !ok {
		return err
	}
	receipt, err := writing(ctx, sh, func(ctx context.Context) (marketplace.Receipt, error) {
		return orch.Claim(ctx, accepted[idx].ItemID)
	})
	if err != nil {
		return err
	}
	return sh.show(presentReceipt(receipt))
}

func (sh *shell) listItem(ctx context.Context) error {
	orch, err := sh.session()
	if err != nil {
		return err
	}
	views, err := reading(ctx, sh, orch.Owned)
	if err != nil {
		return err
	}
	options := make([]string, 0, len(views))
	for _, v := range views {
		options = append(options, fmt.Sprintf("#%d %s", v.ID, v.Name))
	}
	idx, ok, err := sh.choose("Item to list", options)
	if err != nil || !ok {
		return err
	}
	price, err := sh.askEther("Price (ETH)")
	if err != nil {
		return err
	}
	receipt, err := writing(ctx, sh, func(ctx context.Context) (marketplace.Receipt, error) {
		return orch.ListForSale(ctx, views[idx].ID, price)
	})
	if err != nil {
		return err
	}
	return sh.show(presentReceipt(receipt))
}

func (sh *shell) pickOwnedCollection(ctx context.Context, orch *marketplace.Orchestrator, label string) (marketplace.CollectionView, bool, error) {
	cols, err := reading(ctx, sh, orch.OwnedCollections)
	if err != nil {
		return marketplace.CollectionView{}, false, err
	}
	options := make([]string, 0, len(cols))
	for _, c := range cols {
		options = append(options, fmt.Sprintf("%s (%s) %s", c.Name, c.Symbol, c.Address))
	}
	idx, ok, err := sh.choose(label, options)
	if err != nil || !ok {
		return marketplace.CollectionView{}, false, err
	}
	return cols[idx], true, nil
}

func (sh *shell) addItem(ctx context.Context) error {
	orch, err := sh.session()
	if err != nil {
		return err
	}
	col, ok, err := sh.pickOwnedCollection(ctx, orch, "Collection")
	if err != nil || !ok {
		return err
	}
	views, err := reading(ctx, sh, func(ctx context.Context) ([]marketplace.AddableView, error) {
		return orch.Addable(ctx, col.Address)
	})
	if err != nil {
		return err
	}
	options := make([]string, 0, len(views))
	for _, v := range views {
		options = append(options, fmt.Sprintf("Token %s %s", tokenID(v.TokenID), v.Name))
	}
	idx, ok, err := sh.choose("Token to add", options)
	if err != nil || !ok {
		return err
	}
	receipt, err := writing(ctx, sh, func(ctx context.Context) (marketplace.Receipt, error) {
		return orch.AddToMarketplace(ctx, col.Address, views[idx].TokenID)
	})
	if err != nil {
		return err
	}
	return sh.show(presentReceipt(receipt))
}

func (sh *shell) collections(ctx context.Context) error {
	orch, err := sh.session()
	if err != nil {
		return err
	}
	cols, err := reading(ctx, sh, orch.Collections)
	if err != nil {
		return err
	}
	return sh.show(presentCollections(cols))
}

func (sh *shell) createCollection(ctx context.Context) error {
	orch, err := sh.session()
	if err != nil {
		return err
	}
	name, err := sh.askText("Collection name")
	if err != nil {
		return err
	}
	symbol, err := sh.askText("Collection symbol")
	if err != nil {
		return err
	}
	var col marketplace.Collection
	receipt, err := writing(ctx, sh, func(ctx context.Context) (marketplace.Receipt, error) {
		var (
			receipt marketplace.Receipt
			err     error
		)
		col, receipt, err = orch.CreateCollection(ctx, name, symbol)
		return receipt, err
	})
	if err != nil {
		return err
	}
	row := presentReceipt(receipt)
	c := presentCollection(col)
	row.Collection = &c
	return sh.show(row)
}

func (sh *shell) mint(ctx context.Context) error {
	orch, err := sh.session()
	if err != nil {
		return err
	}
	col, ok, err := sh.pickOwnedCollection(ctx, orch, "Collection to mint into")
	if err != nil || !ok {
		return err
	}
	req := marketplace.MintRequest{Collection: col.Address}
	if req.Name, err = sh.askText("Name"); err != nil {
		return err
	}
	if req.Description, err = sh.prompt.Input("Description", "", nil); err != nil {
		return err
	}
	if req.Image, err = sh.askText("Image (URI or local file)"); err != nil {
		return err
	}
	receipt, err := writing(ctx, sh, func(ctx context.Context) (marketplace.Receipt, error) {
		return orch.Mint(ctx, req)
	})
	if err != nil {
		return err
	}
	return sh.show(presentReceipt(receipt))
}

func (sh *shell) balance(ctx context.Context) error {
	orch, err := sh.session()
	if err != nil {
		return err
	}
	balance, err := reading(ctx, sh, orch.MarketplaceBalance)
	if err != nil {
		return err
	}
	return sh.show(model.Balance{
		Marketplace: sh.state.settings.Marketplace,
		BalanceWei:  wei(balance),
		BalanceETH:  ether(balance),
	})
}

// withdraw reads the balance first so a non-owner is turned away before the
// confirmation.
func (sh *shell) withdraw(ctx context.Context) error {
	orch, err := sh.session()
	if err != nil {
		return err
	}
	balance, err := reading(ctx, sh, orch.MarketplaceBalance)
	if err != nil {
		return err
	}
	confirmed, err := sh.prompt.Confirm(fmt.Sprintf("Withdraw %s from the marketplace", ethLabel(balance)))
	if err != nil {
		return err
	}
	if !confirmed {
		sh.printf("Cancelled.\n")
		return nil
	}
	receipt, err := writing(ctx, sh, orch.Withdraw)
	if err != nil {
		return err
	}
	return sh.show(presentReceipt(receipt))
}

func (sh *shell) connectWallet(ctx context.Context) error {
	key, err := sh.prompt.Secret("Private key", required)
	if err != nil {
		return err
	}
	return sh.connect(ctx, key)
}

func (sh *shell) history(ctx context.Context) error {
	j := sh.state.openJournal()
	if j == nil {
		return clierr.New(clierr.CodeUnavailable, "workflow journal is unavailable")
	}
	entries, err := reading(ctx, sh, func(ctx context.Context) ([]journal.Entry, error) {
		return j.List(ctx, "", 0)
	})
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "read workflow journal", err)
	}
	return sh.show(presentHistory(entries))
}
