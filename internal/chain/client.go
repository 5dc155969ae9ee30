package chain

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	clierr "github.com/ggonzalez94/nftmp-cli/internal/errors"
	"github.com/ggonzalez94/nftmp-cli/internal/marketplace"
	"github.com/ggonzalez94/nftmp-cli/internal/signer"
)

type Options struct {
	GasMultiplier  float64
	PollInterval   time.Duration
	ReceiptTimeout time.Duration
	// ReadsPerSecond throttles eth_call traffic. Zero disables throttling.
	ReadsPerSecond float64
	Fanout         int
	// MaxSupply caps the totalSupply a collection may report before its
	// tokens are scanned.
	MaxSupply int64
}

func DefaultOptions() Options {
	return Options{
		GasMultiplier:  1.2,
		PollInterval:   2 * time.Second,
		ReceiptTimeout: 2 * time.Minute,
		ReadsPerSecond: 10,
		Fanout:         marketplace.DefaultFanout,
		MaxSupply:      DefaultMaxSupply,
	}
}

const DefaultMaxSupply int64 = 10_000

// CallObserver receives the duration and error of every remote call.
type CallObserver func(call string, elapsed time.Duration, err error)

// Client implements marketplace.Client over a marketplace contract and the
// collections registered with it.
type Client struct {
	backend  Backend
	signer   signer.Signer
	market   common.Address
	metadata *MetadataResolver
	limiter  *rate.Limiter
	opts     Options
	log      logrus.FieldLogger
	observe  CallObserver

	chainMu sync.Mutex
	chainID *big.Int
}

var _ marketplace.Client = (*Client)(nil)

type Option func(*Client)

func WithSigner(s signer.Signer) Option { return func(c *Client) { c.signer = s } }

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func WithCallObserver(fn CallObserver) Option { return func(c *Client) { c.observe = fn } }

// New builds a client for the marketplace at address. Without a signer the client
// can read but every write fails with a signer error.
func New(backend Backend, address string, metadata *MetadataResolver, opts Options, options ...Option) (*Client, error) {
	if !common.IsHexAddress(strings.TrimSpace(address)) {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid marketplace address %q", address))
	}
	if opts.GasMultiplier <= 1 {
		opts.GasMultiplier = 1.2
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = 2 * time.Minute
	}
	if opts.Fanout <= 0 {
		opts.Fanout = marketplace.DefaultFanout
	}
	if opts.MaxSupply <= 0 {
		opts.MaxSupply = DefaultMaxSupply
	}
	limit := rate.Inf
	burst := 1
	if opts.ReadsPerSecond > 0 {
		limit = rate.Limit(opts.ReadsPerSecond)
		burst = int(opts.ReadsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	silent := logrus.New()
	silent.SetOutput(io.Discard)
	c := &Client{
		backend:  backend,
		market:   common.HexToAddress(address),
		metadata: metadata,
		limiter:  rate.NewLimiter(limit, burst),
		opts:     opts,
		log:      silent,
		observe:  func(string, time.Duration, error) {},
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Account is the connected wallet, or "" when the client is read-only.
func (c *Client) Account() string {
	if c.signer == nil {
		return ""
	}
	return c.signer.Address().Hex()
}

func (c *Client) Marketplace() common.Address { return c.market }

// call runs a throttled eth_call of method on to and unpacks its outputs.
func (c *Client) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack "+method, err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "rate limit wait", err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	if c.signer != nil {
		msg.From = c.signer.Address()
	}
	started := time.Now()
	raw, err := c.backend.CallContract(ctx, msg, nil)
	c.observe(method, time.Since(started), err)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("call %s on %s", method, to.Hex()), err)
	}
	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeIntegrity, "decode "+method, err)
	}
	if len(out) == 0 {
		return nil, clierr.New(clierr.CodeIntegrity, method+" returned no values")
	}
	return out, nil
}
