package x402

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// weiPerEther is the scale between the human-readable unit and atomic units.
const etherDecimals = 18

// EtherToWei converts a human-readable ETH amount (e.g. "0.00000001") to
// atomic wei units. The conversion is exact: amounts with more than 18
// fractional digits are an error, never silently truncated.
func EtherToWei(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed amount %q", ErrInvalidInput, amount)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %q", ErrInvalidInput, amount)
	}
	wei := d.Shift(etherDecimals)
	if !wei.IsInteger() {
		return nil, fmt.Errorf("%w: amount %q is below 1 wei precision", ErrInvalidInput, amount)
	}
	return wei.BigInt(), nil
}

// WeiToEther renders an atomic wei amount as a human-readable ETH string.
func WeiToEther(wei *big.Int) string {
	return decimal.NewFromBigInt(wei, -etherDecimals).String()
}
