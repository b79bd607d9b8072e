// Package config loads service settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/gridatlas/facility-accuracy/internal/comparator"
	"github.com/gridatlas/facility-accuracy/internal/domain"
)

// FieldRequests decodes a comma-separated list of capacity comparison
// requests in the form "Source:field" or "Source:field:divisor", e.g.
//
//	Semianalysis:mw_2023,DataCenterHawk:commissioned_power_mw:1.3
type FieldRequests []comparator.FieldRequest

// Decode implements envconfig.Decoder.
func (f *FieldRequests) Decode(value string) error {
	var out FieldRequests
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("comparison entry %q: want Source:field[:divisor]", entry)
		}
		req := comparator.FieldRequest{Source: parts[0], Field: parts[1]}
		if len(parts) == 3 {
			divisor, err := strconv.ParseFloat(parts[2], 64)
			if err != nil || divisor <= 0 {
				return fmt.Errorf("comparison entry %q: invalid divisor %q", entry, parts[2])
			}
			req.Divisor = divisor
		}
		out = append(out, req)
	}
	*f = out
	return nil
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaSourceTopic string   `envconfig:"KAFKA_SOURCE_TOPIC" default:"vendor-facility-records"`
	KafkaSinkTopic   string   `envconfig:"KAFKA_SINK_TOPIC" default:"facility-accuracy-reports"`
	KafkaGroupID     string   `envconfig:"KAFKA_GROUP_ID" default:"facility-accuracy"`

	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	BatchSize         int           `envconfig:"BATCH_SIZE" default:"50"`
	CanonicalPath     string        `envconfig:"CANONICAL_PATH" default:"data/canonical_buildings.json"`
	RecomputeInterval time.Duration `envconfig:"RECOMPUTE_INTERVAL" default:"30s"`

	SearchRadiusM     float64 `envconfig:"SEARCH_RADIUS_M" default:"50000"`
	ConfidenceHighM   float64 `envconfig:"CONFIDENCE_HIGH_M" default:"805"`
	ConfidenceMediumM float64 `envconfig:"CONFIDENCE_MEDIUM_M" default:"3219"`
	MatchWorkers      int     `envconfig:"MATCH_WORKERS"`

	VarianceTier1Pct float64 `envconfig:"VARIANCE_TIER1_PCT" default:"15"`
	VarianceTier2Pct float64 `envconfig:"VARIANCE_TIER2_PCT" default:"30"`
	VarianceTier3Pct float64 `envconfig:"VARIANCE_TIER3_PCT" default:"60"`

	// OutlierKeys lists canonical facility keys manually declared as
	// outliers; they stay in per-record output but drop out of the
	// excluding-outliers aggregates.
	OutlierKeys []string `envconfig:"OUTLIER_KEYS"`

	Comparisons FieldRequests `envconfig:"COMPARISONS" default:"Semianalysis:mw_2023,DataCenterHawk:commissioned_power_mw:1.3"`
}

// Load reads configuration from environment variables, applying defaults
// where unset, and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.KafkaSourceTopic == "" {
		return errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if c.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.BatchSize <= 0 || c.BatchSize > 1000 {
		return errors.New("BATCH_SIZE must be between 1 and 1000")
	}
	if c.RecomputeInterval <= 0 {
		return errors.New("RECOMPUTE_INTERVAL must be positive")
	}
	if c.SearchRadiusM <= 0 {
		return errors.New("SEARCH_RADIUS_M must be positive")
	}
	if c.ConfidenceHighM <= 0 || c.ConfidenceMediumM <= c.ConfidenceHighM {
		return errors.New("confidence thresholds must satisfy 0 < CONFIDENCE_HIGH_M < CONFIDENCE_MEDIUM_M")
	}
	if !(c.VarianceTier1Pct > 0 && c.VarianceTier1Pct < c.VarianceTier2Pct && c.VarianceTier2Pct < c.VarianceTier3Pct) {
		return errors.New("variance tiers must be positive and ascending")
	}
	return nil
}

// Confidence returns the configured match confidence thresholds.
func (c *Config) Confidence() domain.ConfidenceThresholds {
	return domain.ConfidenceThresholds{HighM: c.ConfidenceHighM, MediumM: c.ConfidenceMediumM}
}

// Variance returns the configured variance score thresholds.
func (c *Config) Variance() domain.VarianceThresholds {
	return domain.VarianceThresholds{
		Tier1Pct: c.VarianceTier1Pct,
		Tier2Pct: c.VarianceTier2Pct,
		Tier3Pct: c.VarianceTier3Pct,
	}
}
