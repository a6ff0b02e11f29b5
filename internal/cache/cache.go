package cache

import "github.com/marktide/marktide/internal/types"

// Store is a keyed store mapping a Key to a serialized bar sequence. It is
// the one resource shared across concurrent dataset loads; implementations
// must be safe for concurrent use.
type Store interface {
	// Get returns the bars stored under key. The second return value reports
	// whether the key was present.
	Get(key Key) ([]types.Bar, bool, error)
	// Put stores bars under key, replacing any previous value.
	Put(key Key, bars []types.Bar) error
}
