package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	clierr "github.com/ggonzalez94/nftmp-cli/internal/errors"
	"github.com/ggonzalez94/nftmp-cli/internal/marketplace"
)

func (c *Client) BuyItem(ctx context.Context, id uint64, price *big.Int) (marketplace.TxResult, error) {
	res, _, err := c.transact(ctx, marketABI, c.market, price, "buyItem", new(big.Int).SetUint64(id))
	return res, err
}

func (c *Client) PlaceOffer(ctx context.Context, id uint64, amount *big.Int) (marketplace.TxResult, error) {
	res, _, err := c.transact(ctx, marketABI, c.market, amount, "placeOffer", new(big.Int).SetUint64(id))
	return res, err
}

func (c *Client) AcceptOffer(ctx context.Context, id uint64, offerer string) (marketplace.TxResult, error) {
	res, _, err := c.transact(ctx, marketABI, c.market, nil, "acceptOffer", new(big.Int).SetUint64(id), common.HexToAddress(offerer))
	return res, err
}

func (c *Client) ClaimItem(ctx context.Context, id uint64, price *big.Int) (marketplace.TxResult, error) {
	res, _, err := c.transact(ctx, marketABI, c.market, price, "claimItem", new(big.Int).SetUint64(id))
	return res, err
}

func (c *Client) ListItemForSale(ctx context.Context, nftContract string, tokenID, price *big.Int) (marketplace.TxResult, error) {
	nft := common.HexToAddress(nftContract)
	if res, ok, err := c.ensureApproval(ctx, nft); err != nil || !ok {
		return res, err
	}
	res, _, err := c.transact(ctx, marketABI, c.market, nil, "listItemForSale", nft, tokenID, price)
	return res, err
}

func (c *Client) AddItemToMarketplace(ctx context.Context, collection string, tokenID *big.Int) (marketplace.TxResult, error) {
	nft := common.HexToAddress(collection)
	if res, ok, err := c.ensureApproval(ctx, nft); err != nil || !ok {
		return res, err
	}
	res, _, err := c.transact(ctx, marketABI, c.market, nil, "addItemToMarketplace", nft, tokenID)
	return res, err
}

// DeployNFTCollection creates a collection through the marketplace factory and
// reads its address from the CollectionCreated event.
func (c *Client) DeployNFTCollection(ctx context.Context, name, symbol string) (marketplace.Collection, marketplace.TxResult, error) {
	res, receipt, err := c.transact(ctx, marketABI, c.market, nil, "createCollection", name, symbol)
	if err != nil || !res.Succeeded() {
		return marketplace.Collection{}, res, err
	}
	col, err := collectionCreated(receipt, c.market)
	if err != nil {
		return marketplace.Collection{}, res, err
	}
	return col, res, nil
}

func (c *Client) MintNFT(ctx context.Context, collection, tokenURI string) (marketplace.TxResult, error) {
	res, _, err := c.transact(ctx, collectionABI, common.HexToAddress(collection), nil, "mint", tokenURI)
	return res, err
}

func (c *Client) WithdrawMoney(ctx context.Context) (marketplace.TxResult, error) {
	res, _, err := c.transact(ctx, marketABI, c.market, nil, "withdrawMoney")
	return res, err
}

// ensureApproval lets the marketplace move the signer's tokens of nft. ok is false
// when an approval transaction was needed and did not succeed; res then carries its
// result.
func (c *Client) ensureApproval(ctx context.Context, nft common.Address) (marketplace.TxResult, bool, error) {
	if c.signer == nil {
		return marketplace.TxResult{}, false, clierr.New(clierr.CodeSigner, "no wallet connected")
	}
	out, err := c.call(ctx, collectionABI, nft, "isApprovedForAll", c.signer.Address(), c.market)
	if err != nil {
		return marketplace.TxResult{}, false, err
	}
	if approved, _ := out[0].(bool); approved {
		return marketplace.TxResult{}, true, nil
	}
	res, _, err := c.transact(ctx, collectionABI, nft, nil, "setApprovalForAll", c.market, true)
	if err != nil {
		return res, false, err
	}
	return res, res.Succeeded(), nil
}

// transact simulates, prices, signs, broadcasts, and waits for one transaction.
// The result code is the receipt status.
func (c *Client) transact(ctx context.Context, contract abi.ABI, to common.Address, value *big.Int, method string, args ...any) (marketplace.TxResult, *types.Receipt, error) {
	if c.signer == nil {
		return marketplace.TxResult{}, nil, clierr.New(clierr.CodeSigner, "no wallet connected")
	}
	if value == nil {
		value = new(big.Int)
	}
	data, err := contract.Pack(method, args...)
	if err != nil {
		return marketplace.TxResult{}, nil, clierr.Wrap(clierr.CodeInternal, "pack "+method, err)
	}
	chainID, err := c.chain(ctx)
	if err != nil {
		return marketplace.TxResult{}, nil, err
	}
	from := c.signer.Address()
	msg := ethereum.CallMsg{From: from, To: &to, Value: value, Data: data}

	started := time.Now()
	defer func() { c.observe("tx:"+method, time.Since(started), err) }()

	if _, err = c.backend.CallContract(ctx, msg, nil); err != nil {
		err = clierr.Wrap(clierr.CodeOperationFailed, "simulate "+method+" (eth_call)", err)
		return marketplace.TxResult{}, nil, err
	}
	gasLimit, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		err = clierr.Wrap(clierr.CodeOperationFailed, "estimate gas for "+method, err)
		return marketplace.TxResult{}, nil, err
	}
	gasLimit = uint64(float64(gasLimit) * c.opts.GasMultiplier)

	tipCap, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		tipCap = big.NewInt(2_000_000_000)
	}
	header, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		err = clierr.Wrap(clierr.CodeUnavailable, "fetch latest header", err)
		return marketplace.TxResult{}, nil, err
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(1_000_000_000)
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		err = clierr.Wrap(clierr.CodeUnavailable, "fetch nonce", err)
		return marketplace.TxResult{}, nil, err
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	signed, err := c.signer.SignTx(chainID, tx)
	if err != nil {
		err = clierr.Wrap(clierr.CodeSigner, "sign transaction", err)
		return marketplace.TxResult{}, nil, err
	}
	if err = c.backend.SendTransaction(ctx, signed); err != nil {
		err = clierr.Wrap(clierr.CodeUnavailable, "broadcast transaction", err)
		return marketplace.TxResult{}, nil, err
	}
	hash := signed.Hash().Hex()
	log := c.log.WithFields(logrus.Fields{"method": method, "tx_hash": hash, "nonce": nonce, "gas": gasLimit})
	log.Debug("transaction submitted")

	receipt, err := c.waitReceipt(ctx, signed.Hash())
	if err != nil {
		return marketplace.TxResult{TxHash: hash}, nil, err
	}
	log.WithField("status", receipt.Status).Debug("transaction mined")
	return marketplace.TxResult{Code: receipt.Status, TxHash: hash}, receipt, nil
}

func (c *Client) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.opts.ReceiptTimeout)
	defer cancel()
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.backend.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			c.log.WithError(err).Debug("receipt poll failed")
		}
		select {
		case <-waitCtx.Done():
			return nil, clierr.Wrap(clierr.CodeUnavailable, "timed out waiting for receipt", waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) chain(ctx context.Context) (*big.Int, error) {
	c.chainMu.Lock()
	defer c.chainMu.Unlock()
	if c.chainID != nil {
		return c.chainID, nil
	}
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "read chain id", err)
	}
	c.chainID = id
	return id, nil
}

func collectionCreated(receipt *types.Receipt, market common.Address) (marketplace.Collection, error) {
	event := marketABI.Events["CollectionCreated"]
	for _, l := range receipt.Logs {
		if l.Address != market || len(l.Topics) < 3 || l.Topics[0] != event.ID {
			continue
		}
		fields, err := marketABI.Unpack("CollectionCreated", l.Data)
		if err != nil || len(fields) < 2 {
			return marketplace.Collection{}, clierr.Wrap(clierr.CodeIntegrity, "decode CollectionCreated", err)
		}
		name, _ := fields[0].(string)
		symbol, _ := fields[1].(string)
		return marketplace.Collection{
			Address: common.BytesToAddress(l.Topics[1].Bytes()).Hex(),
			Owner:   common.BytesToAddress(l.Topics[2].Bytes()).Hex(),
			Name:    name,
			Symbol:  symbol,
		}, nil
	}
	return marketplace.Collection{}, clierr.New(clierr.CodeIntegrity, fmt.Sprintf("receipt %s has no CollectionCreated event", strings.ToLower(receipt.TxHash.Hex())))
}
