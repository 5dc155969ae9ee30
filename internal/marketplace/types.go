// Package marketplace joins on-chain marketplace records with off-chain metadata into
// account-scoped views and sequences the state-mutating workflows (buy, offer, accept,
// claim, list, add, mint, withdraw) behind a shared set of precondition guards.
//
// The package holds no state between operations. Every workflow re-reads the chain
// through a Client before it validates and submits.
package marketplace

import (
	"math/big"
	"strings"
)

// ResultSuccess is the only result code a Client reports for a successful write.
const ResultSuccess uint64 = 1

// RawItem is a marketplace item as stored on-chain, before metadata is joined.
type RawItem struct {
	ID          uint64   `json:"id"`
	NFTContract string   `json:"nft_contract"`
	TokenID     *big.Int `json:"token_id"`
	Owner       string   `json:"owner"`
	Price       *big.Int `json:"price"`
}

// Key identifies the NFT behind the item.
func (r RawItem) Key() TokenKey { return KeyOf(r.NFTContract, r.TokenID) }

// Metadata is the off-chain document of one NFT.
type Metadata struct {
	NFTContract string   `json:"nft_contract"`
	TokenID     *big.Int `json:"token_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
}

func (m Metadata) Key() TokenKey { return KeyOf(m.NFTContract, m.TokenID) }

// Item is a marketplace item merged with its metadata.
type Item struct {
	ID          uint64   `json:"id"`
	NFTContract string   `json:"nft_contract"`
	TokenID     *big.Int `json:"token_id"`
	Owner       string   `json:"owner"`
	Price       *big.Int `json:"price"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
}

func (i Item) Key() TokenKey { return KeyOf(i.NFTContract, i.TokenID) }

// Raw drops the metadata fields.
func (i Item) Raw() RawItem {
	return RawItem{ID: i.ID, NFTContract: i.NFTContract, TokenID: i.TokenID, Owner: i.Owner, Price: i.Price}
}

// OfferOnly reports whether the item carries the zero-price sentinel. A zero price
// means "not for direct sale", never "free".
func (i Item) OfferOnly() bool { return IsZero(i.Price) }

// Offer is a standing bid against an offer-only item.
type Offer struct {
	ItemID      uint64   `json:"item_id"`
	Offerer     string   `json:"offerer"`
	Seller      string   `json:"seller"`
	Price       *big.Int `json:"price"`
	IsAccepted  bool     `json:"is_accepted"`
	NFTContract string   `json:"nft_contract"`
	TokenID     *big.Int `json:"token_id"`
}

// Collection is an NFT contract registered with the marketplace. Owner is resolved
// with a separate query and stays empty until then.
type Collection struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	Owner   string `json:"owner,omitempty"`
}

// ListableItem is an NFT held by an account, whether or not the marketplace knows it.
type ListableItem struct {
	NFTContract string   `json:"nft_contract"`
	TokenID     *big.Int `json:"token_id"`
	Owner       string   `json:"owner"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
}

func (l ListableItem) Key() TokenKey { return KeyOf(l.NFTContract, l.TokenID) }

// TxResult is what a Client reports for a state-mutating call.
type TxResult struct {
	Code   uint64 `json:"code"`
	TxHash string `json:"tx_hash,omitempty"`
}

func (r TxResult) Succeeded() bool { return r.Code == ResultSuccess }

// TokenKey is the (contract, token id) join key between items and metadata.
type TokenKey struct {
	Contract string
	TokenID  string
}

// KeyOf builds a TokenKey. Contracts compare case-insensitively.
func KeyOf(contract string, tokenID *big.Int) TokenKey {
	id := ""
	if tokenID != nil {
		id = tokenID.String()
	}
	return TokenKey{Contract: strings.ToLower(strings.TrimSpace(contract)), TokenID: id}
}

func (k TokenKey) String() string { return k.Contract + "#" + k.TokenID }

// IsZero is the exact integer test for the offer-only sentinel.
func IsZero(v *big.Int) bool { return v == nil || v.Sign() == 0 }

// SameAddress compares two hex addresses ignoring checksum casing.
func SameAddress(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}
