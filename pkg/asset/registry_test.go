package asset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg := mustRegistry(t)

	bridge := reg.Bridge()
	assert.Equal(t, "SWITCH.SWITCH", bridge.Ticker())
	assert.EqualValues(t, 8, bridge.Decimals)

	usdc, err := reg.ByPoolAsset("eth.usdc-0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	require.NoError(t, err)
	assert.Equal(t, "USDC.ETH", usdc.Ticker())
	assert.EqualValues(t, 6, usdc.Decimals)

	all := reg.All()
	require.Len(t, all, 6)
	assert.Equal(t, "BTC.BTC", all[0].Ticker())
}

func TestLoadRegistry_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.yaml")
	doc := `
assets:
  - symbol: ETH
    chain: ETH
    decimals: 18
    native: true
    pool_asset: ETH.ETH-TEST
  - symbol: DOGE
    chain: DOGE
    decimals: 8
    native: true
    pool_asset: DOGE.DOGE
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	doge, err := reg.Lookup("DOGE.DOGE")
	require.NoError(t, err)
	assert.True(t, doge.Native)

	_, err = reg.ByPoolAsset("ETH.ETH")
	assert.Error(t, err)
	eth, err := reg.ByPoolAsset("ETH.ETH-TEST")
	require.NoError(t, err)
	assert.Equal(t, "ETH.ETH", eth.Ticker())
}

func TestParseRegistry_Invalid(t *testing.T) {
	_, err := ParseRegistry([]byte("assets:\n  - symbol: X\n    chain: X\n    decimals: 8\n    pool_asset: X.X\n"))
	assert.ErrorContains(t, err, "exactly one bridge asset")

	_, err = ParseRegistry([]byte("assets:\n  - chain: X\n"))
	assert.Error(t, err)

	_, err = ParseRegistry([]byte("assets: ["))
	assert.Error(t, err)
}
