package types

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"
)

type StatisticsTestSuite struct {
	suite.Suite
}

func TestStatisticsSuite(t *testing.T) {
	suite.Run(t, new(StatisticsTestSuite))
}

func (suite *StatisticsTestSuite) TestWriteSummary() {
	dir := suite.T().TempDir()
	path := filepath.Join(dir, "summary.yaml")

	summaries := []Summary{
		{
			ID:             "run-1",
			Timestamp:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Symbol:         "BTC/USD",
			StrategyName:   "sma",
			InitialCapital: 10000,
			FinalEquity:    10500,
			TotalReturn:    0.05,
			MaxDrawdown:    0.02,
			TradeResult: TradeResult{
				NumberOfTrades:        4,
				NumberOfWinningTrades: 3,
				NumberOfLosingTrades:  1,
				WinRate:               0.75,
			},
		},
	}

	suite.NoError(WriteSummary(path, summaries))

	data, err := os.ReadFile(path)
	suite.NoError(err)

	var decoded []Summary

	suite.NoError(yaml.Unmarshal(data, &decoded))
	suite.Len(decoded, 1)
	suite.Equal("run-1", decoded[0].ID)
	suite.Equal(0.05, decoded[0].TotalReturn)
	suite.Equal(4, decoded[0].TradeResult.NumberOfTrades)
}

func (suite *StatisticsTestSuite) TestWriteSummaryBadPath() {
	err := WriteSummary(filepath.Join("no", "such", "dir", "x.yaml"), nil)
	suite.Error(err)
}
