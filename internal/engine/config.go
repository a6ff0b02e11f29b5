package engine

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/marktide/marktide/internal/strategy"
	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

// FeeConfig selects a fee model. Value is the flat amount or basis points
// depending on the model.
type FeeConfig struct {
	Model FeeModelName `yaml:"model" json:"model" jsonschema:"title=Fee Model,description=Commission model applied to every fill,enum=zero,enum=flat,enum=bps"`
	Value float64      `yaml:"value" json:"value" validate:"gte=0" jsonschema:"title=Fee Value,description=Flat amount or basis points depending on the model,minimum=0"`
}

// SlippageConfig selects a slippage model. Value is the fixed amount or
// fraction depending on the model.
type SlippageConfig struct {
	Model SlippageModelName `yaml:"model" json:"model" jsonschema:"title=Slippage Model,description=Price adjustment applied against the trading side,enum=none,enum=fixed,enum=proportional"`
	Value float64           `yaml:"value" json:"value" validate:"gte=0" jsonschema:"title=Slippage Value,description=Fixed amount or price fraction depending on the model,minimum=0"`
}

// Config describes one backtest run.
type Config struct {
	Symbol         string          `yaml:"symbol" json:"symbol" validate:"required" jsonschema:"title=Symbol,description=Instrument to backtest"`
	Timeframe      types.Timeframe `yaml:"timeframe" json:"timeframe" validate:"required" jsonschema:"title=Timeframe,description=Bar interval"`
	StartTime      time.Time       `yaml:"start_time" json:"start_time" validate:"required" jsonschema:"title=Start Time,description=Inclusive start of the backtest period"`
	EndTime        time.Time       `yaml:"end_time" json:"end_time" validate:"required" jsonschema:"title=End Time,description=Exclusive end of the backtest period"`
	InitialCapital float64         `yaml:"initial_capital" json:"initial_capital" validate:"gt=0" jsonschema:"title=Initial Capital,description=Starting cash in USD,minimum=0"`
	Strategy       string          `yaml:"strategy" json:"strategy" validate:"required" jsonschema:"title=Strategy,description=Registered strategy name"`
	StrategyParams strategy.Params `yaml:"strategy_params" json:"strategy_params" jsonschema:"title=Strategy Parameters,description=Parameters forwarded to the strategy constructor"`
	Lookback       int             `yaml:"lookback" json:"lookback" validate:"gte=0" jsonschema:"title=Lookback,description=Maximum bars visible to the strategy per step; zero means all prior bars,minimum=0"`
	OrderFraction  float64         `yaml:"order_fraction" json:"order_fraction" validate:"gte=0,lte=1" jsonschema:"title=Order Fraction,description=Default sizing when a signal carries no strength,minimum=0,maximum=1"`
	AllowShort     bool            `yaml:"allow_short" json:"allow_short" jsonschema:"title=Allow Short,description=Permit negative positions"`
	Fee            FeeConfig       `yaml:"fee" json:"fee" jsonschema:"title=Fee"`
	Slippage       SlippageConfig  `yaml:"slippage" json:"slippage" jsonschema:"title=Slippage"`
	ResultsFolder  string          `yaml:"results_folder" json:"results_folder" jsonschema:"title=Results Folder,description=Directory for parquet exports and the summary file"`
}

// DefaultConfig returns a config with the engine defaults filled in. Symbol,
// time range and strategy still have to be provided.
func DefaultConfig() Config {
	return Config{
		Timeframe:      types.Timeframe1d,
		InitialCapital: 10000,
		OrderFraction:  1,
		Fee:            FeeConfig{Model: FeeModelZero},
		Slippage:       SlippageConfig{Model: SlippageModelNone},
	}
}

// ParseConfig decodes and validates a YAML config document.
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// ParseConfigFile reads and parses a YAML config file.
func ParseConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	return ParseConfig(data)
}

// Validate checks field constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	if !c.StartTime.Before(c.EndTime) {
		return errors.Newf(errors.ErrCodeInvalidDateRange, "start_time %s is not before end_time %s", c.StartTime, c.EndTime)
	}

	if _, err := NewFeeModel(c.Fee.Model, c.Fee.Value); err != nil {
		return err
	}

	if _, err := NewSlippageModel(c.Slippage.Model, c.Slippage.Value); err != nil {
		return err
	}

	return nil
}

// GenerateSchema generates the JSON schema for Config.
func (c Config) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
	}

	schema := reflector.Reflect(&c)
	schema.Title = "backtest-config"
	schema.Description = "Configuration schema for a backtest run"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON generates the JSON schema for Config as an indented
// JSON string.
func (c Config) GenerateSchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(c.GenerateSchema(), "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
