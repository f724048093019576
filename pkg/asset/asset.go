// Package asset holds the static asset table and converts amounts between
// human units, the bridge network's standardized units and on-chain base units.
package asset

import (
	"fmt"
	"strings"
)

// Ref identifies a swappable asset. It is immutable and created from static configuration.
type Ref struct {
	Chain            string `yaml:"chain" json:"chain"`
	Symbol           string `yaml:"symbol" json:"symbol"`
	Decimals         int32  `yaml:"decimals" json:"decimals"`
	Native           bool   `yaml:"native" json:"native"`
	ContractOrIssuer string `yaml:"contract,omitempty" json:"contract,omitempty"`
	PoolAsset        string `yaml:"pool_asset" json:"pool_asset"`
	Bridge           bool   `yaml:"bridge,omitempty" json:"bridge,omitempty"`
}

// Ticker returns the composite SYMBOL.CHAIN identity of the asset.
func (r Ref) Ticker() string {
	return NormalizeTicker(r.Symbol + "." + r.Chain)
}

func (r Ref) String() string {
	return r.Ticker()
}

// NormalizeTicker upper-cases and trims a ticker for lookups.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// InvalidAssetError is returned for tickers that are absent from configuration.
type InvalidAssetError struct {
	Ticker string
}

func (e *InvalidAssetError) Error() string {
	return fmt.Sprintf("invalid asset %q: not configured", e.Ticker)
}
