package amount

import (
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/ggonzalez94/nftmp-cli/internal/errors"
)

// EtherDecimals is the number of wei decimals in one ether.
const EtherDecimals = 18

var (
	decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	integerPattern = regexp.MustCompile(`^[0-9]+$`)
)

// Normalize resolves a base-unit or ether-decimal flag pair into a wei string.
func Normalize(wei, ether string) (string, error) {
	wei = strings.TrimSpace(wei)
	ether = strings.TrimSpace(ether)
	if wei != "" && ether != "" {
		return "", clierr.New(clierr.CodeUsage, "use either the wei amount or the ether amount, not both")
	}
	if wei == "" && ether == "" {
		return "", clierr.New(clierr.CodeUsage, "amount is required")
	}
	if wei != "" {
		if !integerPattern.MatchString(wei) {
			return "", clierr.New(clierr.CodeUsage, "wei amount must be a non-negative integer string")
		}
		return trimLeadingZeros(wei), nil
	}
	v, err := ParseEther(ether)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// ParseEther converts a decimal ether string like "1.5" to wei.
func ParseEther(decimal string) (*big.Int, error) {
	decimal = strings.TrimSpace(decimal)
	if !decimalPattern.MatchString(decimal) {
		return nil, clierr.New(clierr.CodeUsage, "ether amount must be in decimal form like 1.23")
	}
	parts := strings.SplitN(decimal, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > EtherDecimals {
		return nil, clierr.New(clierr.CodeUsage, "ether amount has more than 18 decimal places")
	}
	fracPart += strings.Repeat("0", EtherDecimals-len(fracPart))
	out, ok := new(big.Int).SetString(trimLeadingZeros(intPart+fracPart), 10)
	if !ok {
		return nil, clierr.New(clierr.CodeUsage, "invalid ether amount")
	}
	return out, nil
}

// FormatEther renders wei as a decimal ether string without trailing zeros.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return formatDecimal(wei, EtherDecimals)
}

func formatDecimal(n *big.Int, decimals int) string {
	neg := n.Sign() < 0
	s := new(big.Int).Abs(n).String()
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	out := intPart
	if fracPart != "" {
		out += "." + fracPart
	}
	if neg {
		return "-" + out
	}
	return out
}

func trimLeadingZeros(v string) string {
	out := strings.TrimLeft(v, "0")
	if out == "" {
		return "0"
	}
	return out
}
