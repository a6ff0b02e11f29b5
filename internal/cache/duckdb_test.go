package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/marktide/marktide/internal/types"
)

type DuckDBStoreTestSuite struct {
	suite.Suite

	store *DuckDBStore
	dir   string
}

func TestDuckDBStoreSuite(t *testing.T) {
	suite.Run(t, new(DuckDBStoreTestSuite))
}

func (suite *DuckDBStoreTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()

	store, err := NewDuckDBStore(suite.dir)
	suite.Require().NoError(err)

	suite.store = store
}

func (suite *DuckDBStoreTestSuite) TestGetMissingKey() {
	bars, ok, err := suite.store.Get(Key("missing"))
	suite.NoError(err)
	suite.False(ok)
	suite.Nil(bars)
}

func (suite *DuckDBStoreTestSuite) TestPutThenGetRoundTrip() {
	key := NewKey("BTC/USD",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		types.Timeframe1d,
	)
	bars := testBars(10)

	suite.NoError(suite.store.Put(key, bars))

	got, ok, err := suite.store.Get(key)
	suite.NoError(err)
	suite.True(ok)
	suite.Len(got, len(bars))

	for i := range bars {
		suite.Equal(bars[i].Symbol, got[i].Symbol)
		suite.True(bars[i].Time.Equal(got[i].Time))
		suite.Equal(bars[i].Open, got[i].Open)
		suite.Equal(bars[i].High, got[i].High)
		suite.Equal(bars[i].Low, got[i].Low)
		suite.Equal(bars[i].Close, got[i].Close)
		suite.Equal(bars[i].Volume, got[i].Volume)
	}
}

func (suite *DuckDBStoreTestSuite) TestPutWritesOneParquetFile() {
	key := Key("abc123")
	suite.NoError(suite.store.Put(key, testBars(3)))

	entries, err := os.ReadDir(suite.dir)
	suite.NoError(err)
	suite.Len(entries, 1)
	suite.Equal("abc123.parquet", entries[0].Name())
}

func (suite *DuckDBStoreTestSuite) TestKeySurvivesReopen() {
	key := Key("persist")
	suite.NoError(suite.store.Put(key, testBars(4)))

	// A fresh store over the same directory must see the key.
	reopened, err := NewDuckDBStore(suite.dir)
	suite.NoError(err)

	got, ok, err := reopened.Get(key)
	suite.NoError(err)
	suite.True(ok)
	suite.Len(got, 4)
}

func (suite *DuckDBStoreTestSuite) TestNewStoreCreatesDirectory() {
	nested := filepath.Join(suite.T().TempDir(), "a", "b")

	_, err := NewDuckDBStore(nested)
	suite.NoError(err)

	info, err := os.Stat(nested)
	suite.NoError(err)
	suite.True(info.IsDir())
}
