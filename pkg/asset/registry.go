package asset

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed assets.yaml
var defaultTable []byte

type table struct {
	Assets []Ref `yaml:"assets"`
}

// Registry is the ticker keyed asset table. It is loaded once and only read afterwards.
type Registry struct {
	byTicker map[string]Ref
	byPool   map[string]Ref
	bridge   Ref
}

// DefaultRegistry returns the registry built from the embedded asset table.
func DefaultRegistry() (*Registry, error) {
	return ParseRegistry(defaultTable)
}

// LoadRegistry builds a registry from the embedded table with the entries of
// the YAML file at path layered on top. An empty path yields the default table.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset table: %w", err)
	}
	return ParseRegistry(defaultTable, data)
}

// ParseRegistry builds a registry from one or more YAML documents. Later
// documents override earlier entries with the same ticker.
func ParseRegistry(docs ...[]byte) (*Registry, error) {
	r := &Registry{
		byTicker: make(map[string]Ref),
		byPool:   make(map[string]Ref),
	}

	for i, doc := range docs {
		var t table
		if err := yaml.Unmarshal(doc, &t); err != nil {
			return nil, fmt.Errorf("failed to parse asset table %d: %w", i, err)
		}
		for _, ref := range t.Assets {
			if err := validateRef(ref); err != nil {
				return nil, err
			}
			ref.Chain = strings.ToUpper(ref.Chain)
			ref.Symbol = strings.ToUpper(ref.Symbol)
			ref.PoolAsset = strings.ToUpper(ref.PoolAsset)
			if prev, ok := r.byTicker[ref.Ticker()]; ok {
				delete(r.byPool, prev.PoolAsset)
			}
			r.byTicker[ref.Ticker()] = ref
			r.byPool[ref.PoolAsset] = ref
		}
	}

	var bridges []Ref
	for _, ref := range r.byTicker {
		if ref.Bridge {
			bridges = append(bridges, ref)
		}
	}
	if len(bridges) != 1 {
		return nil, fmt.Errorf("asset table must declare exactly one bridge asset, found %d", len(bridges))
	}
	r.bridge = bridges[0]

	return r, nil
}

func validateRef(ref Ref) error {
	if ref.Symbol == "" || ref.Chain == "" {
		return errors.New("asset entry requires symbol and chain")
	}
	if ref.PoolAsset == "" {
		return fmt.Errorf("asset %s requires pool_asset", ref.Ticker())
	}
	if ref.Decimals < 0 || ref.Decimals > 36 {
		return fmt.Errorf("asset %s has unsupported decimals %d", ref.Ticker(), ref.Decimals)
	}
	return nil
}

// Lookup resolves a SYMBOL.CHAIN ticker.
func (r *Registry) Lookup(ticker string) (Ref, error) {
	ref, ok := r.byTicker[NormalizeTicker(ticker)]
	if !ok {
		return Ref{}, &InvalidAssetError{Ticker: ticker}
	}
	return ref, nil
}

// ByPoolAsset resolves the bridge network's pool identifier.
func (r *Registry) ByPoolAsset(poolAsset string) (Ref, error) {
	ref, ok := r.byPool[NormalizeTicker(poolAsset)]
	if !ok {
		return Ref{}, &InvalidAssetError{Ticker: poolAsset}
	}
	return ref, nil
}

// Bridge returns the settlement network's own asset.
func (r *Registry) Bridge() Ref {
	return r.bridge
}

// All returns every configured asset ordered by ticker.
func (r *Registry) All() []Ref {
	refs := make([]Ref, 0, len(r.byTicker))
	for _, ref := range r.byTicker {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Ticker() < refs[j].Ticker() })
	return refs
}
