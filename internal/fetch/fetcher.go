// Package fetch defines the data source contract for historical market data
// and a registry of named fetcher constructors.
package fetch

import (
	"context"
	"sort"
	"time"

	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

// Fetcher retrieves raw historical bars from an external data vendor.
// Implementations fail with ErrCodeDataUnavailable when the vendor has no
// data in range, ErrCodeRateLimited on throttling, and ErrCodeInvalidSymbol
// for unknown instruments.
type Fetcher interface {
	// Name returns the vendor identifier (e.g. "polygon", "binance").
	Name() string
	// Fetch returns raw bars for the symbol in [start, end] at the given
	// timeframe. The returned bars are not validated; callers own validation.
	Fetch(ctx context.Context, symbol string, start, end time.Time, timeframe types.Timeframe) ([]types.Bar, error)
}

// Constructor builds a Fetcher from vendor-specific options.
type Constructor func(opts Options) (Fetcher, error)

// Options carries vendor credentials and endpoints. Fields unused by a
// vendor are ignored by its constructor.
type Options struct {
	APIKey    string
	APISecret string
}

// Registry maps fetcher names to constructors. It is built once at startup
// and passed by reference; there is no process-global instance.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry creates an empty fetcher Registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
	}
}

// NewDefaultRegistry creates a Registry with all built-in fetchers registered.
func NewDefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.Register("polygon", NewPolygonFetcher)
	registry.Register("binance", NewBinanceFetcher)

	return registry
}

// Register adds a constructor under name, replacing any previous entry.
func (r *Registry) Register(name string, constructor Constructor) {
	r.constructors[name] = constructor
}

// New constructs the named fetcher.
func (r *Registry) New(name string, opts Options) (Fetcher, error) {
	constructor, ok := r.constructors[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unknown fetcher: %s", name)
	}

	return constructor(opts)
}

// List returns the sorted names of all registered fetchers.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
