package strategy

import (
	"sort"
	"sync"

	"github.com/marktide/marktide/pkg/errors"
)

// Params carries strategy configuration as parsed from YAML. Missing keys
// fall back to each strategy's defaults.
type Params map[string]any

// Int reads an integer parameter, accepting the numeric types YAML decoding
// may produce.
func (p Params) Int(key string, fallback int) (int, error) {
	raw, ok := p[key]
	if !ok {
		return fallback, nil
	}

	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	}

	return 0, errors.Newf(errors.ErrCodeStrategyConfigError, "parameter %q must be an integer, got %T", key, raw)
}

// Float reads a float parameter.
func (p Params) Float(key string, fallback float64) (float64, error) {
	raw, ok := p[key]
	if !ok {
		return fallback, nil
	}

	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}

	return 0, errors.Newf(errors.ErrCodeStrategyConfigError, "parameter %q must be a number, got %T", key, raw)
}

// Constructor builds a configured strategy instance.
type Constructor func(params Params) (Strategy, error)

// Registry maps strategy names to constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
	}
}

// NewDefaultRegistry returns a registry with the built-in strategies.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("sma", NewSMA)
	r.Register("ema_crossover", NewEMACrossover)
	r.Register("donchian", NewDonchian)
	r.Register("donchian_atr", NewDonchianATR)
	r.Register("macd", NewMACDTrend)

	return r
}

// Register adds a constructor under the given name, replacing any previous
// registration.
func (r *Registry) Register(name string, constructor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.constructors[name] = constructor
}

// New builds a fresh strategy instance by name. Each backtest run must use
// its own instance since strategies carry fill-derived state.
func (r *Registry) New(name string, params Params) (Strategy, error) {
	r.mu.RLock()
	constructor, ok := r.constructors[name]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.ErrCodeStrategyNotFound, "strategy %q is not registered", name)
	}

	return constructor(params)
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
