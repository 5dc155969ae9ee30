package marketplace

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	clierr "github.com/ggonzalez94/nftmp-cli/internal/errors"
)

// Validation failures. These are rejected before any remote call.
var (
	ErrInvalidAmount  = errors.New("amount must be a positive integer in wei")
	ErrInvalidAddress = errors.New("address must be a 0x-prefixed 20-byte hex string")
	ErrInvalidID      = errors.New("identifier must be a non-negative integer")
	ErrMissingField   = errors.New("required value is empty")
)

// Precondition failures. The workflow stops without a remote call.
var (
	ErrItemNotFound        = errors.New("item not found")
	ErrSelfTrade           = errors.New("cannot trade an item you own")
	ErrNotForSale          = errors.New("item is offer-only and has no direct sale price")
	ErrNotOfferOnly        = errors.New("item has a fixed price; buy it instead of making an offer")
	ErrNotItemOwner        = errors.New("item is not owned by the connected account")
	ErrNotSeller           = errors.New("offer was not made to the connected account")
	ErrOfferNotPending     = errors.New("offer is not pending")
	ErrOfferNotAccepted    = errors.New("offer has not been accepted")
	ErrNotOfferer          = errors.New("offer was not placed by the connected account")
	ErrNoPendingOffers     = errors.New("no pending offers for the connected account")
	ErrNoAcceptedOffers    = errors.New("no accepted offers to claim")
	ErrCollectionNotOwned  = errors.New("collection is not owned by the connected account")
	ErrTokenNotOwned       = errors.New("token is not owned by the connected account")
	ErrAlreadyRegistered   = errors.New("token is already registered with the marketplace")
	ErrNotMarketplaceOwner = errors.New("connected account is not the marketplace owner")
	ErrUploaderMissing     = errors.New("metadata uploader is not configured")
)

// Data integrity failures. The current operation is abandoned.
var (
	ErrMetadataNotFound  = errors.New("metadata not found")
	ErrAmbiguousMetadata = errors.New("metadata resolves to more than one record")
	ErrMalformedRecord   = errors.New("malformed on-chain record")
	ErrOfferFetchFailed  = errors.New("offer fetch failed")
	ErrOwnerLookupFailed = errors.New("collection owner lookup failed")
)

// ErrOperationFailed marks a state-mutating call that returned a non-success result
// code or faulted. It is never retried.
var ErrOperationFailed = errors.New("operation failed")

// ItemError attaches the offending item id to a per-item failure.
type ItemError struct {
	ItemID uint64
	Err    error
}

func (e *ItemError) Error() string { return fmt.Sprintf("item %d: %v", e.ItemID, e.Err) }

func (e *ItemError) Unwrap() error { return e.Err }

func validation(sentinel error, format string, args ...any) error {
	return clierr.Wrap(clierr.CodeUsage, fmt.Sprintf(format, args...), sentinel)
}

func precondition(sentinel error, msg string) error {
	return clierr.Wrap(clierr.CodePrecondition, msg, sentinel)
}

func integrity(cause error, msg string) error {
	return clierr.Wrap(clierr.CodeIntegrity, msg, cause)
}

// readFailure wraps a failed remote read unless it already carries a code.
func readFailure(op string, err error) error {
	if _, ok := clierr.As(err); ok {
		return err
	}
	return clierr.Wrap(clierr.CodeUnavailable, op, err)
}

// IsValidation reports whether err should send the user back to the prompt.
func IsValidation(err error) bool { return clierr.HasCode(err, clierr.CodeUsage) }

// IsPrecondition reports whether err is a guard rejection.
func IsPrecondition(err error) bool { return clierr.HasCode(err, clierr.CodePrecondition) }

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ParseAmount accepts a positive base-10 integer string of wei.
func ParseAmount(raw string) (*big.Int, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" || strings.HasPrefix(clean, "+") || strings.HasPrefix(clean, "-") {
		return nil, validation(ErrInvalidAmount, "invalid amount %q", raw)
	}
	v, ok := new(big.Int).SetString(clean, 10)
	if !ok || v.Sign() <= 0 {
		return nil, validation(ErrInvalidAmount, "invalid amount %q", raw)
	}
	return v, nil
}

// ParseItemID accepts a marketplace item id.
func ParseItemID(raw string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, validation(ErrInvalidID, "invalid item id %q", raw)
	}
	return v, nil
}

// ParseTokenID accepts a uint256 token id.
func ParseTokenID(raw string) (*big.Int, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" || strings.HasPrefix(clean, "+") || strings.HasPrefix(clean, "-") {
		return nil, validation(ErrInvalidID, "invalid token id %q", raw)
	}
	v, ok := new(big.Int).SetString(clean, 10)
	if !ok {
		return nil, validation(ErrInvalidID, "invalid token id %q", raw)
	}
	return v, nil
}

// ParseAddress accepts a hex account or contract address.
func ParseAddress(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	if !addressPattern.MatchString(clean) {
		return "", validation(ErrInvalidAddress, "invalid address %q", raw)
	}
	return clean, nil
}

func requireText(field, value string) (string, error) {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return "", validation(ErrMissingField, "%s is required", field)
	}
	return clean, nil
}
