package app

import (
	"context"
	"strings"
	"sync"

	"github.com/ggonzalez94/nftmp-cli/internal/chain"
	"github.com/ggonzalez94/nftmp-cli/internal/httpx"
	"github.com/ggonzalez94/nftmp-cli/internal/ipfs"
	"github.com/ggonzalez94/nftmp-cli/internal/marketplace"
	"github.com/ggonzalez94/nftmp-cli/internal/signer"
)

// Remote is the outside world of one session.
type Remote struct {
	Client   marketplace.Client
	Uploader marketplace.Uploader
	// Account is the signing wallet, empty when no key is configured.
	Account string
	// Closer releases the RPC connection. It may be nil and must be safe to
	// call more than once.
	Closer func()
}

func (r Remote) Close() {
	if r.Closer != nil {
		r.Closer()
	}
}

// RemoteFactory connects to the marketplace. privateKey overrides the configured
// key source when set.
type RemoteFactory func(ctx context.Context, s *runtimeState, privateKey string) (Remote, error)

func dialRemote(ctx context.Context, s *runtimeState, privateKey string) (Remote, error) {
	settings := s.settings
	rpcURL, err := chain.ResolveRPCURL(settings.RPCURL, settings.ChainID)
	if err != nil {
		return Remote{}, err
	}
	backend, err := chain.Dial(ctx, rpcURL)
	if err != nil {
		return Remote{}, err
	}
	var once sync.Once
	release := func() { once.Do(backend.Close) }

	httpClient := httpx.New(settings.Timeout, settings.Retries)
	if s.metrics != nil {
		httpClient = httpClient.WithObserver(s.metrics.ObserveCall)
	}
	gateway := ipfs.NewGateway(httpClient, settings.IPFSGateway)
	resolver := chain.NewMetadataResolver(gateway, s.cache, settings.MetadataTTL)

	opts := chain.DefaultOptions()
	opts.GasMultiplier = settings.GasMultiplier
	opts.PollInterval = settings.PollInterval
	opts.ReceiptTimeout = settings.ReceiptTimeout
	opts.ReadsPerSecond = settings.RPCRateLimit
	opts.Fanout = settings.Fanout

	options := []chain.Option{chain.WithLogger(s.log)}
	if s.metrics != nil {
		options = append(options, chain.WithCallObserver(s.metrics.ObserveCall))
	}
	account := ""
	wallet, err := signer.FromInputs(settings.KeySource, privateKey)
	switch {
	case err == nil:
		options = append(options, chain.WithSigner(wallet))
		account = wallet.Address().Hex()
	case strings.TrimSpace(privateKey) != "" || explicitKeySource(settings.KeySource):
		release()
		return Remote{}, err
	default:
		s.log.WithError(err).Debug("no wallet configured, running read-only")
	}

	client, err := chain.New(backend, settings.Marketplace, resolver, opts, options...)
	if err != nil {
		release()
		return Remote{}, err
	}
	return Remote{
		Client:   client,
		Uploader: ipfs.New(httpClient, settings.IPFSAPIURL, settings.IPFSProjectID, settings.IPFSProjectSecret),
		Account:  account,
		Closer:   release,
	}, nil
}

func explicitKeySource(source string) bool {
	source = strings.ToLower(strings.TrimSpace(source))
	return source != "" && source != signer.KeySourceAuto
}
