package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/marktide/marktide/internal/types"
)

type KeyTestSuite struct {
	suite.Suite
}

func TestKeySuite(t *testing.T) {
	suite.Run(t, new(KeyTestSuite))
}

func (suite *KeyTestSuite) TestKeyIsDeterministic() {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	first := NewKey("BTC/USD", start, end, types.Timeframe1d)
	second := NewKey("BTC/USD", start, end, types.Timeframe1d)

	suite.Equal(first, second)
	suite.NotEmpty(first.String())
}

func (suite *KeyTestSuite) TestKeyNormalizesTimezones() {
	utc := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	est, err := time.LoadLocation("America/New_York")
	suite.NoError(err)

	// Same instant expressed in a different zone.
	eastern := utc.In(est)
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	suite.Equal(
		NewKey("BTC/USD", utc, end, types.Timeframe1h),
		NewKey("BTC/USD", eastern, end, types.Timeframe1h),
	)
}

func (suite *KeyTestSuite) TestKeyVariesWithInputs() {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	base := NewKey("BTC/USD", start, end, types.Timeframe1d)

	suite.NotEqual(base, NewKey("ETH/USD", start, end, types.Timeframe1d))
	suite.NotEqual(base, NewKey("BTC/USD", start.Add(time.Second), end, types.Timeframe1d))
	suite.NotEqual(base, NewKey("BTC/USD", start, end.Add(time.Second), types.Timeframe1d))
	suite.NotEqual(base, NewKey("BTC/USD", start, end, types.Timeframe1h))
}
