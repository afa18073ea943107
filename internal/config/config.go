package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all tunables for the reconciliation engine.
type Config struct {
	Database   DatabaseConfig
	Thresholds ThresholdBand
	Adaptive   AdaptiveThresholds
	Weights    WeightsConfig
	Tolerances TolerancesConfig
	Similarity SimilarityConfig
	Learner    LearnerConfig
	Patterns   PatternsConfig
	Assist     AssistConfig
	NgWords    []string `mapstructure:"ng_words"`
}

// DatabaseConfig holds sqlite settings for the state store.
type DatabaseConfig struct {
	Path string
}

// ThresholdBand is one AUTO/ASSIST/MANUAL banding.
type ThresholdBand struct {
	Auto      int
	AssistMin int `mapstructure:"assist_min"`
	AssistMax int `mapstructure:"assist_max"`
}

// AdaptiveThresholds selects a band by input-quality tier.
type AdaptiveThresholds struct {
	Enabled     bool
	HighQuality ThresholdBand `mapstructure:"high_quality"`
	LowQuality  ThresholdBand `mapstructure:"low_quality"`
}

// WeightProfile weights the four scoring factors. Weights should sum to 1.
type WeightProfile struct {
	Amount  float64
	Date    float64
	Name    float64
	TaxRate float64 `mapstructure:"tax_rate"`
}

// WeightsConfig holds the two scoring profiles.
type WeightsConfig struct {
	Standard WeightProfile
	Degraded WeightProfile
}

// TolerancesConfig bounds amount and date deltas.
type TolerancesConfig struct {
	// Amount is the fixed floor in minor units; the effective tolerance is
	// max(Amount, AmountPct * receipt amount).
	Amount    int64
	AmountPct float64 `mapstructure:"amount_pct"`
	Days      int

	// Degraded-mode tolerances are wider: weak text evidence forces the
	// amount and date factors to carry the match.
	DegradedAmount    int64   `mapstructure:"degraded_amount"`
	DegradedAmountPct float64 `mapstructure:"degraded_amount_pct"`
	DegradedDays      int     `mapstructure:"degraded_days"`
}

// SimilarityConfig tunes the name-similarity prefilter.
type SimilarityConfig struct {
	MinCandidate float64 `mapstructure:"min_candidate"`
	HighMark     float64 `mapstructure:"high_mark"`
}

// LearnerConfig tunes the vendor-mapping learner integration.
type LearnerConfig struct {
	// BonusCap is the maximum score bonus a fully-confident mapping adds.
	BonusCap int `mapstructure:"bonus_cap"`
	// PartialDiscount scales confidence for substring matches.
	PartialDiscount float64 `mapstructure:"partial_discount"`
	// SimilarityBar is the vendor-name similarity a learned candidate must
	// clear before its bonus applies.
	SimilarityBar float64 `mapstructure:"similarity_bar"`
	MaxCandidates int     `mapstructure:"max_candidates"`
}

// PatternsConfig externalizes the heuristic pattern tables so a new naming
// convention is a config change, not a rebuild.
type PatternsConfig struct {
	// Placeholder matches extraction-placeholder vendor names ("Receipt#123").
	Placeholder []string
	// LowQuality matches anomalous character runs and over-long strings.
	LowQuality []string `mapstructure:"low_quality"`
	// Reliable matches legal-entity markers that indicate a trustworthy name.
	Reliable []string
	// LegalSuffixes are literal tokens stripped during name normalization.
	LegalSuffixes []string `mapstructure:"legal_suffixes"`
}

// AssistConfig tunes the human-confirmation queue.
type AssistConfig struct {
	TTLMinutes int `mapstructure:"ttl_minutes"`
}

// Load reads configuration from file and env. Env overrides use prefix RECONCILE_.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	cfgPath := os.Getenv("RECONCILE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "reconcile"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("RECONCILE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// config file is optional
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Default returns the built-in configuration without touching disk or env.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	// defaults always unmarshal cleanly
	_ = v.Unmarshal(&c)
	return c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "receipt_state.db")

	v.SetDefault("thresholds.auto", 85)
	v.SetDefault("thresholds.assist_min", 65)
	v.SetDefault("thresholds.assist_max", 84)

	v.SetDefault("adaptive.enabled", true)
	v.SetDefault("adaptive.high_quality.auto", 85)
	v.SetDefault("adaptive.high_quality.assist_min", 65)
	v.SetDefault("adaptive.high_quality.assist_max", 84)
	v.SetDefault("adaptive.low_quality.auto", 70)
	v.SetDefault("adaptive.low_quality.assist_min", 45)
	v.SetDefault("adaptive.low_quality.assist_max", 69)

	v.SetDefault("weights.standard.amount", 0.4)
	v.SetDefault("weights.standard.date", 0.25)
	v.SetDefault("weights.standard.name", 0.3)
	v.SetDefault("weights.standard.tax_rate", 0.05)
	v.SetDefault("weights.degraded.amount", 0.7)
	v.SetDefault("weights.degraded.date", 0.2)
	v.SetDefault("weights.degraded.name", 0.05)
	v.SetDefault("weights.degraded.tax_rate", 0.05)

	v.SetDefault("tolerances.amount", 1)
	v.SetDefault("tolerances.amount_pct", 0.05)
	v.SetDefault("tolerances.days", 3)
	v.SetDefault("tolerances.degraded_amount", 1000)
	v.SetDefault("tolerances.degraded_amount_pct", 0.10)
	v.SetDefault("tolerances.degraded_days", 60)

	v.SetDefault("similarity.min_candidate", 0.6)
	v.SetDefault("similarity.high_mark", 0.85)

	v.SetDefault("learner.bonus_cap", 30)
	v.SetDefault("learner.partial_discount", 0.8)
	v.SetDefault("learner.similarity_bar", 0.7)
	v.SetDefault("learner.max_candidates", 5)

	v.SetDefault("patterns.placeholder", []string{
		`^レシート#\d+$`,
		`^Receipt#\d+$`,
		`^receipt_\d+$`,
		`^img_\d+$`,
		`^\d{8,}$`,
	})
	v.SetDefault("patterns.low_quality", []string{
		`[^\w\s\p{Hiragana}\p{Katakana}\p{Han}ー・\-\(\)\,\.\@]`,
		`\w{20,}`,
		`^[\d\s\-\.]{10,}$`,
	})
	v.SetDefault("patterns.reliable", []string{
		`株式会社`,
		`合同会社`,
		`有限会社`,
		`\(株\)|㈱`,
		`Co\.?,? ?Ltd\.?`,
		`Inc\.?`,
		`Corp\.?`,
	})
	v.SetDefault("patterns.legal_suffixes", []string{
		"株式会社", "(株)", "㈱", "合同会社", "有限会社",
		"Co.,Ltd.", "Co.Ltd", "Inc.", "Corp.",
	})

	v.SetDefault("assist.ttl_minutes", 120)

	v.SetDefault("ng_words", []string{"振込", "入金", "出金"})
}

// Validate rejects ambiguous threshold bands: AUTO must sit strictly above
// the ASSIST band, and the band must not be inverted.
func (c Config) Validate() error {
	type namedBand struct {
		name string
		b    ThresholdBand
	}
	bands := []namedBand{{"thresholds", c.Thresholds}}
	if c.Adaptive.Enabled {
		bands = append(bands,
			namedBand{"adaptive.high_quality", c.Adaptive.HighQuality},
			namedBand{"adaptive.low_quality", c.Adaptive.LowQuality},
		)
	}
	for _, band := range bands {
		if band.b.AssistMin > band.b.AssistMax {
			return fmt.Errorf("%s: assist_min %d > assist_max %d", band.name, band.b.AssistMin, band.b.AssistMax)
		}
		if band.b.Auto <= band.b.AssistMax {
			return fmt.Errorf("%s: auto %d must be greater than assist_max %d", band.name, band.b.Auto, band.b.AssistMax)
		}
	}
	return nil
}
