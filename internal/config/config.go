package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-ingest/internal/model"
	"github.com/Veraticus/spice-ingest/internal/suggest"
)

// Settings is the fully decoded configuration for a run.
type Settings struct {
	Logging      LoggingSettings
	DatabasePath string
	Formats      []model.FormatSpec
	Suggestions  SuggestionSettings
	Ingest       IngestSettings
}

// LoggingSettings configures slog.
type LoggingSettings struct {
	Level  string
	Format string
}

// SuggestionSettings configures the suggester chain.
type SuggestionSettings struct {
	Rules    []suggest.Rule
	Timeout  time.Duration
	CacheTTL time.Duration
	Vendors  bool
}

// RuleConfig is one entry of suggestions.rules. Value defaults to Category.
type RuleConfig struct {
	Pattern   string `mapstructure:"pattern"`
	Category  string `mapstructure:"category"`
	Column    string `mapstructure:"column"`
	Value     string `mapstructure:"value"`
	Condition string `mapstructure:"condition"`
	AmountMin string `mapstructure:"amount_min"`
	AmountMax string `mapstructure:"amount_max"`
	Priority  int    `mapstructure:"priority"`
	Regex     bool   `mapstructure:"regex"`
}

// IngestSettings configures the pipeline.
type IngestSettings struct {
	Concurrency   int
	FileTimeout   time.Duration
	PreserveOrder bool
	AbortInFlight bool
}

// Default locations.
const (
	DefaultDatabasePath = "~/.local/share/spice/spice.db"
	DefaultConfigDir    = "~/.config/spice"
)

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("suggestions.timeout", 2*time.Second)
	v.SetDefault("suggestions.cache_ttl", suggest.DefaultCacheTTL)
	v.SetDefault("suggestions.vendors", true)
	v.SetDefault("ingest.concurrency", 0)
	v.SetDefault("ingest.file_timeout", 0)
	v.SetDefault("ingest.preserve_order", true)
	v.SetDefault("ingest.abort_in_flight", false)
}

// Load decodes every section of v. Format errors are returned joined so a
// bad config file reports all of its problems at once.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		DatabasePath: DatabasePath(v),
	}

	// Scalar sections are read key by key so defaults survive a partially
	// written section.
	s.Logging = LoggingSettings{
		Level:  v.GetString("logging.level"),
		Format: v.GetString("logging.format"),
	}
	s.Ingest = IngestSettings{
		Concurrency:   v.GetInt("ingest.concurrency"),
		FileTimeout:   v.GetDuration("ingest.file_timeout"),
		PreserveOrder: v.GetBool("ingest.preserve_order"),
		AbortInFlight: v.GetBool("ingest.abort_in_flight"),
	}
	if s.Ingest.Concurrency < 0 {
		return nil, fmt.Errorf("ingest.concurrency cannot be negative: %d", s.Ingest.Concurrency)
	}

	s.Suggestions.Timeout = v.GetDuration("suggestions.timeout")
	s.Suggestions.CacheTTL = v.GetDuration("suggestions.cache_ttl")
	s.Suggestions.Vendors = v.GetBool("suggestions.vendors")

	var rules []RuleConfig
	if err := v.UnmarshalKey("suggestions.rules", &rules); err != nil {
		return nil, fmt.Errorf("failed to decode suggestion rules: %w", err)
	}
	converted, err := buildRules(rules)
	if err != nil {
		return nil, err
	}
	s.Suggestions.Rules = converted

	var formats []FormatConfig
	if err := v.UnmarshalKey("file_formats", &formats); err != nil {
		return nil, fmt.Errorf("failed to decode file formats: %w", err)
	}
	s.Formats, err = BuildFormats(formats)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func buildRules(configs []RuleConfig) ([]suggest.Rule, error) {
	rules := make([]suggest.Rule, 0, len(configs))
	for i, rc := range configs {
		r := suggest.Rule{
			Pattern:   rc.Pattern,
			Column:    rc.Column,
			Value:     rc.Value,
			Condition: suggest.AmountCondition(rc.Condition),
			Priority:  rc.Priority,
			IsRegex:   rc.Regex,
		}
		if r.Value == "" {
			r.Value = rc.Category
		}

		var err error
		if r.AmountMin, err = parseAmount(rc.AmountMin); err != nil {
			return nil, fmt.Errorf("%w: rule %d amount_min: %v", suggest.ErrInvalidRule, i, err)
		}
		if r.AmountMax, err = parseAmount(rc.AmountMax); err != nil {
			return nil, fmt.Errorf("%w: rule %d amount_max: %v", suggest.ErrInvalidRule, i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
