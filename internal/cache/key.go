// Package cache provides content-addressed storage for fetched market data,
// so repeated loads of the same (symbol, range, timeframe) reuse stored bars.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/marktide/marktide/internal/types"
)

// Key identifies one cached dataset. It is a pure function of the logical
// request: identical requests always produce identical keys, regardless of
// how the caller formatted its date inputs.
type Key string

// NewKey derives the cache key for a (symbol, start, end, timeframe) request.
// Times are canonicalized to UTC nanosecond precision before hashing, so the
// same instant in different representations hashes identically.
func NewKey(symbol string, start, end time.Time, timeframe types.Timeframe) Key {
	canonical := fmt.Sprintf("%s|%s|%s|%s",
		symbol,
		start.UTC().Format(time.RFC3339Nano),
		end.UTC().Format(time.RFC3339Nano),
		timeframe,
	)

	sum := sha256.Sum256([]byte(canonical))

	return Key(hex.EncodeToString(sum[:]))
}

// String returns the hex form of the key.
func (k Key) String() string {
	return string(k)
}
