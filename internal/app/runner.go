package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/nftmp-cli/internal/cache"
	"github.com/ggonzalez94/nftmp-cli/internal/config"
	clierr "github.com/ggonzalez94/nftmp-cli/internal/errors"
	"github.com/ggonzalez94/nftmp-cli/internal/journal"
	"github.com/ggonzalez94/nftmp-cli/internal/marketplace"
	"github.com/ggonzalez94/nftmp-cli/internal/model"
	"github.com/ggonzalez94/nftmp-cli/internal/out"
	"github.com/ggonzalez94/nftmp-cli/internal/policy"
	"github.com/ggonzalez94/nftmp-cli/internal/prompt"
	"github.com/ggonzalez94/nftmp-cli/internal/schema"
	"github.com/ggonzalez94/nftmp-cli/internal/telemetry"
	"github.com/ggonzalez94/nftmp-cli/internal/version"
)

type Runner struct {
	stdin    io.ReadCloser
	stdout   io.Writer
	stderr   io.Writer
	now      func() time.Time
	remote   RemoteFactory
	prompter prompt.Prompter
}

func NewRunner() *Runner {
	r := NewRunnerWithWriters(os.Stdout, os.Stderr)
	r.stdin = os.Stdin
	return r
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
		remote: dialRemote,
	}
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	root        *cobra.Command
	log         *logrus.Logger
	cache       *cache.Store
	journal     *journal.Journal
	metrics     *telemetry.Metrics
	remotes     []Remote
	lastCommand string
	account     string
	started     time.Time
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r, log: newLogger(r.stderr)}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	if err != nil {
		state.renderError("", err)
	}
	state.close()
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Browse and trade on an NFT marketplace",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			s.started = s.runner.now()
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			if err := configureLogger(s.log, settings); err != nil {
				return err
			}

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}
			s.log.WithField("command", path).Debug("command started")

			if s.metrics == nil {
				s.metrics = telemetry.New()
			}
			if settings.CacheEnabled && shouldOpenCache(path) && s.cache == nil {
				store, err := cache.Open(settings.CachePath, settings.CacheLockPath)
				if err != nil {
					return clierr.Wrap(clierr.CodeInternal, "open cache", err)
				}
				s.cache = store
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	pf := cmd.PersistentFlags()
	pf.BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	pf.BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	pf.StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	pf.BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	pf.StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	pf.StringVar(&s.flags.Timeout, "timeout", "", "Request timeout")
	pf.IntVar(&s.flags.Retries, "retries", -1, "Retries per HTTP request")
	pf.StringVar(&s.flags.RPCURL, "rpc-url", "", "Ethereum JSON-RPC endpoint")
	pf.StringVar(&s.flags.Marketplace, "marketplace", "", "Marketplace contract address")
	pf.StringVar(&s.flags.KeySource, "key-source", "", "Key source (auto|env|file|keystore)")
	pf.StringVar(&s.flags.PrivateKey, "private-key", "", "Hex private key of the wallet to connect")
	pf.StringVar(&s.flags.Account, "account", "", "Account to view as when no wallet is connected")
	pf.StringVar(&s.flags.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	pf.BoolVar(&s.flags.NoCache, "no-cache", false, "Disable the metadata cache")
	pf.StringVar(&s.flags.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	pf.StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	pf.StringVar(&s.flags.EnvFile, "env-file", "", "Path to a .env file (default ./.env)")

	cmd.AddCommand(s.newItemsCommand())
	cmd.AddCommand(s.newBuyCommand())
	cmd.AddCommand(s.newSellCommand())
	cmd.AddCommand(s.newAddCommand())
	cmd.AddCommand(s.newOffersCommand())
	cmd.AddCommand(s.newCollectionsCommand())
	cmd.AddCommand(s.newMintCommand())
	cmd.AddCommand(s.newMarketCommand())
	cmd.AddCommand(s.newHistoryCommand())
	cmd.AddCommand(s.newShellCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := schema.Build(s.root, strings.Join(args, " "))
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data)
		},
	}
}

// orchestrator connects to the marketplace for one command. Commands marked with
// the wallet annotation need a signing key; the others can run against --account.
func (s *runtimeState) orchestrator(ctx context.Context, cmd *cobra.Command) (*marketplace.Orchestrator, error) {
	remote, err := s.dial(ctx, s.settings.PrivateKey)
	if err != nil {
		return nil, err
	}
	if schema.Has(cmd, schema.AnnotationWallet) && remote.Account == "" {
		return nil, clierr.New(clierr.CodeSigner, "this command needs a wallet: pass --private-key or set NFTMP_PRIVATE_KEY")
	}
	return s.newOrchestrator(remote, s.settings.Account)
}

// dial connects a remote that is released when the command exits.
func (s *runtimeState) dial(ctx context.Context, privateKey string) (Remote, error) {
	remote, err := s.runner.remote(ctx, s, privateKey)
	if err != nil {
		return Remote{}, err
	}
	s.remotes = append(s.remotes, remote)
	return remote, nil
}

func (s *runtimeState) newOrchestrator(remote Remote, viewAs string) (*marketplace.Orchestrator, error) {
	account := remote.Account
	if account == "" {
		account = viewAs
	}
	if strings.TrimSpace(account) == "" {
		return nil, clierr.New(clierr.CodeUsage, "no account: connect a wallet with --private-key or pass --account")
	}
	session, err := marketplace.NewSession(remote.Client, account)
	if err != nil {
		return nil, err
	}
	s.account = session.Account()

	recorders := marketplace.Recorders{s.metrics}
	if j := s.openJournal(); j != nil {
		recorders = append(recorders, j)
	}
	opts := []marketplace.Option{
		marketplace.WithRecorder(recorders),
		marketplace.WithLogger(s.log),
		marketplace.WithFanout(s.settings.Fanout),
	}
	if remote.Uploader != nil {
		opts = append(opts, marketplace.WithUploader(remote.Uploader))
	}
	return marketplace.NewOrchestrator(session, opts...), nil
}

// openJournal opens the journal on first use. A journal that cannot be opened is
// logged and skipped.
func (s *runtimeState) openJournal() *journal.Journal {
	if s.journal != nil {
		return s.journal
	}
	j, err := journal.Open(s.settings.JournalPath, s.settings.JournalLockPath, s.log)
	if err != nil {
		s.log.WithError(err).Warn("workflow journal unavailable")
		return nil
	}
	s.journal = j
	return j
}

// commandContext bounds one command. Writes also wait for a receipt.
func (s *runtimeState) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout := s.settings.Timeout
	if schema.Has(cmd, schema.AnnotationMutates) {
		timeout += s.settings.ReceiptTimeout
	}
	return context.WithTimeout(cmd.Context(), timeout)
}

func (s *runtimeState) emitSuccess(commandPath string, data any) error {
	s.log.WithField("command", commandPath).Debug("command finished")
	return out.Render(s.runner.stdout, model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data:    data,
		Meta:    s.meta(commandPath),
	}, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	s.log.WithError(err).WithField("command", commandPath).Debug("command failed")

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	_ = out.Render(s.runner.stderr, model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error:   errorBody(err),
		Meta:    s.meta(commandPath),
	}, settings)
}

func (s *runtimeState) meta(commandPath string) model.EnvelopeMeta {
	m := model.EnvelopeMeta{
		RequestID:   uuid.NewString(),
		Timestamp:   s.runner.now().UTC(),
		Command:     commandPath,
		Account:     s.account,
		Marketplace: s.settings.Marketplace,
		ChainID:     s.settings.ChainID,
	}
	if !s.started.IsZero() {
		m.LatencyMS = s.runner.now().Sub(s.started).Milliseconds()
	}
	return m
}

func errorBody(err error) *model.ErrorBody {
	body := &model.ErrorBody{Code: clierr.ExitCode(err), Type: clierr.TypeName(clierr.CodeInternal), Message: err.Error()}
	if cErr, ok := clierr.As(err); ok {
		body.Type = clierr.TypeName(cErr.Code)
		body.Message = cErr.Error()
	}
	return body
}

func (s *runtimeState) close() {
	for _, remote := range s.remotes {
		remote.Close()
	}
	if s.metrics != nil {
		if err := s.metrics.WriteFile(s.settings.MetricsPath); err != nil {
			s.log.WithError(err).Warn("write metrics file")
		}
	}
	if s.journal != nil {
		_ = s.journal.Close()
	}
	if s.cache != nil {
		_ = s.cache.Close()
	}
}

func newLogger(w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(logrus.WarnLevel)
	return log
}

func configureLogger(log *logrus.Logger, settings config.Settings) error {
	level, err := logrus.ParseLevel(strings.TrimSpace(settings.LogLevel))
	if err != nil {
		return clierr.Wrap(clierr.CodeUsage, "parse --log-level", err)
	}
	log.SetLevel(level)
	if settings.OutputMode == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	return nil
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
		"if any flags in the group",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func shouldOpenCache(commandPath string) bool {
	switch normalizeCommandPath(commandPath) {
	case "", "version", "schema", "history", "market balance", "market withdraw":
		return false
	default:
		return true
	}
}

func normalizeCommandPath(commandPath string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(commandPath))), " ")
}
