package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID   string    `json:"request_id"`
	Timestamp   time.Time `json:"timestamp"`
	Command     string    `json:"command"`
	Account     string    `json:"account,omitempty"`
	Marketplace string    `json:"marketplace,omitempty"`
	ChainID     int64     `json:"chain_id,omitempty"`
	LatencyMS   int64     `json:"latency_ms"`
}

// Item is the rendered form of a marketplace item. Amounts are wei strings with an
// ether rendering next to them.
type Item struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	NFTContract string `json:"nft_contract,omitempty"`
	TokenID     string `json:"token_id,omitempty"`
	Owner       string `json:"owner,omitempty"`
	PriceWei    string `json:"price_wei,omitempty"`
	PriceETH    string `json:"price_eth,omitempty"`
	OfferOnly   bool   `json:"offer_only"`
}

type Offer struct {
	ItemID      uint64 `json:"item_id"`
	NFTContract string `json:"nft_contract"`
	TokenID     string `json:"token_id"`
	Offerer     string `json:"offerer"`
	Seller      string `json:"seller"`
	AmountWei   string `json:"amount_wei"`
	AmountETH   string `json:"amount_eth"`
	Accepted    bool   `json:"accepted"`
}

type Collection struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	Owner   string `json:"owner,omitempty"`
}

// Token is a held NFT that is not (or not yet) a marketplace item.
type Token struct {
	NFTContract string `json:"nft_contract,omitempty"`
	TokenID     string `json:"token_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

type Receipt struct {
	Operation   string      `json:"operation"`
	Status      string      `json:"status"`
	Code        uint64      `json:"code"`
	TxHash      string      `json:"tx_hash,omitempty"`
	ItemID      *uint64     `json:"item_id,omitempty"`
	NFTContract string      `json:"nft_contract,omitempty"`
	TokenID     string      `json:"token_id,omitempty"`
	AmountWei   string      `json:"amount_wei,omitempty"`
	AmountETH   string      `json:"amount_eth,omitempty"`
	TokenURI    string      `json:"token_uri,omitempty"`
	NewOwner    string      `json:"new_owner,omitempty"`
	Collection  *Collection `json:"collection,omitempty"`
}

type Balance struct {
	Marketplace string `json:"marketplace"`
	BalanceWei  string `json:"balance_wei"`
	BalanceETH  string `json:"balance_eth"`
}

type HistoryEntry struct {
	ID         string    `json:"id"`
	RecordedAt time.Time `json:"recorded_at"`
	Account    string    `json:"account,omitempty"`
	Receipt    Receipt   `json:"receipt"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}
