// Package config loads and validates the engine configuration. Threshold
// tables, dimension weights and TTLs are explicit, enumerated options checked
// at load time; nothing downstream works with loosely-typed maps.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/udo-labs/udo-engine/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`
	Source SourceConfig `yaml:"source" mapstructure:"source"`
	Notify NotifyConfig `yaml:"notify" mapstructure:"notify"`
}

// NotifyConfig configures escalation alerting. An empty webhook URL disables
// it.
type NotifyConfig struct {
	WebhookURL   string `yaml:"webhook_url" mapstructure:"webhook_url"`
	MinState     string `yaml:"min_state" mapstructure:"min_state"`
	CooldownSecs int    `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// EngineConfig holds every tunable of the uncertainty engine. Weight and
// threshold defaults are documented starting points, deliberately exposed as
// configuration rather than baked into business logic.
type EngineConfig struct {
	Weights    map[string]float64 `yaml:"weights" mapstructure:"weights"`
	Thresholds map[string]float64 `yaml:"thresholds" mapstructure:"thresholds"`
	TTLByState map[string]int     `yaml:"ttl_by_state_secs" mapstructure:"ttl_by_state_secs"`
	Predictor  PredictorConfig    `yaml:"predictor" mapstructure:"predictor"`
	Mitigation MitigationConfig   `yaml:"mitigation" mapstructure:"mitigation"`
	Confidence ConfidenceConfig   `yaml:"confidence" mapstructure:"confidence"`
	Overrun    OverrunConfig      `yaml:"overrun" mapstructure:"overrun"`
}

// PredictorConfig tunes trend fitting.
type PredictorConfig struct {
	HistoryWindow   int     `yaml:"history_window" mapstructure:"history_window"`
	HorizonHours    int     `yaml:"horizon_hours" mapstructure:"horizon_hours"`
	TrendEpsilon    float64 `yaml:"trend_epsilon" mapstructure:"trend_epsilon"`
	FactorThreshold float64 `yaml:"factor_threshold" mapstructure:"factor_threshold"`
}

// MitigationConfig tunes mitigation generation. DimensionThresholds is the
// per-state "needs mitigation" cutoff: stricter states surface mitigations
// for more dimensions, so riskier states carry lower cutoffs.
type MitigationConfig struct {
	DimensionThresholds map[string]float64 `yaml:"dimension_thresholds" mapstructure:"dimension_thresholds"`
	MaxSingleImpact     float64            `yaml:"max_single_impact" mapstructure:"max_single_impact"`
	MinImpact           float64            `yaml:"min_impact" mapstructure:"min_impact"`
}

// ConfidenceConfig tunes the confidence score and the adaptive decision gate.
type ConfidenceConfig struct {
	Base             map[string]float64 `yaml:"base" mapstructure:"base"`
	AckWindowHours   int                `yaml:"ack_window_hours" mapstructure:"ack_window_hours"`
	AckBonus         float64            `yaml:"ack_bonus" mapstructure:"ack_bonus"`
	AckDecay         float64            `yaml:"ack_decay" mapstructure:"ack_decay"`
	StaleAfterHours  int                `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
	StalePenalty     float64            `yaml:"stale_penalty" mapstructure:"stale_penalty"`
	DefaultThreshold float64            `yaml:"default_threshold" mapstructure:"default_threshold"`
	MinThreshold     float64            `yaml:"min_threshold" mapstructure:"min_threshold"`
	MaxThreshold     float64            `yaml:"max_threshold" mapstructure:"max_threshold"`
	ThresholdStep    float64            `yaml:"threshold_step" mapstructure:"threshold_step"`
	AccuracyWindow   int                `yaml:"accuracy_window" mapstructure:"accuracy_window"`
	TargetAccuracy   float64            `yaml:"target_accuracy" mapstructure:"target_accuracy"`
	CheckpointBand   float64            `yaml:"checkpoint_band" mapstructure:"checkpoint_band"`
}

// OverrunConfig tunes the time-overrun hook.
type OverrunConfig struct {
	TriggerRatio float64 `yaml:"trigger_ratio" mapstructure:"trigger_ratio"`
	Delta        float64 `yaml:"delta" mapstructure:"delta"`
	MaxDelta     float64 `yaml:"max_delta" mapstructure:"max_delta"`
}

// SourceConfig tunes the guarded recompute path.
type SourceConfig struct {
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst            int     `yaml:"burst" mapstructure:"burst"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int     `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("UDO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "udo.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("engine.weights", map[string]float64{
		"technical": 0.30, "timeline": 0.25, "resource": 0.20, "quality": 0.15, "market": 0.10,
	})
	v.SetDefault("engine.thresholds", map[string]float64{
		"deterministic": 0.10, "probabilistic": 0.30, "quantum": 0.60, "chaotic": 0.90,
	})
	v.SetDefault("engine.ttl_by_state_secs", map[string]int{
		"deterministic": 600, "probabilistic": 300, "quantum": 120, "chaotic": 60, "void": 30,
	})
	v.SetDefault("engine.predictor.history_window", 24)
	v.SetDefault("engine.predictor.horizon_hours", 24)
	v.SetDefault("engine.predictor.trend_epsilon", 0.005)
	v.SetDefault("engine.predictor.factor_threshold", 0.01)
	v.SetDefault("engine.mitigation.dimension_thresholds", map[string]float64{
		"deterministic": 0.80, "probabilistic": 0.60, "quantum": 0.45, "chaotic": 0.30, "void": 0.20,
	})
	v.SetDefault("engine.mitigation.max_single_impact", 0.30)
	v.SetDefault("engine.mitigation.min_impact", 0.05)
	v.SetDefault("engine.confidence.base", map[string]float64{
		"deterministic": 0.90, "probabilistic": 0.75, "quantum": 0.55, "chaotic": 0.35, "void": 0.15,
	})
	v.SetDefault("engine.confidence.ack_window_hours", 72)
	v.SetDefault("engine.confidence.ack_bonus", 0.05)
	v.SetDefault("engine.confidence.ack_decay", 0.5)
	v.SetDefault("engine.confidence.stale_after_hours", 24)
	v.SetDefault("engine.confidence.stale_penalty", 0.2)
	v.SetDefault("engine.confidence.default_threshold", 0.60)
	v.SetDefault("engine.confidence.min_threshold", 0.40)
	v.SetDefault("engine.confidence.max_threshold", 0.80)
	v.SetDefault("engine.confidence.threshold_step", 0.05)
	v.SetDefault("engine.confidence.accuracy_window", 20)
	v.SetDefault("engine.confidence.target_accuracy", 0.70)
	v.SetDefault("engine.confidence.checkpoint_band", 0.15)
	v.SetDefault("engine.overrun.trigger_ratio", 1.2)
	v.SetDefault("engine.overrun.delta", 0.25)
	v.SetDefault("engine.overrun.max_delta", 0.10)

	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.min_state", "chaotic")
	v.SetDefault("notify.cooldown_secs", 300)

	v.SetDefault("source.timeout_secs", 5)
	v.SetDefault("source.rate_per_sec", 10)
	v.SetDefault("source.burst", 20)
	v.SetDefault("source.failure_threshold", 5)
	v.SetDefault("source.cooldown_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the engine tables for completeness and monotonicity by
// compiling them into their model types.
func (c *Config) Validate() error {
	if _, err := c.Engine.ModelWeights(); err != nil {
		return err
	}
	if _, err := c.Engine.ModelThresholds(); err != nil {
		return err
	}
	if _, err := c.Engine.TTLs(); err != nil {
		return err
	}
	if c.Engine.Overrun.TriggerRatio < 1 {
		return eris.Wrap(model.ErrValidation, "config: overrun trigger ratio below 1")
	}
	cc := c.Engine.Confidence
	if cc.MinThreshold > cc.DefaultThreshold || cc.DefaultThreshold > cc.MaxThreshold {
		return eris.Wrap(model.ErrValidation, "config: decision thresholds must satisfy min <= default <= max")
	}
	if _, err := model.ParseState(c.Notify.MinState); err != nil {
		return err
	}
	return nil
}

// ModelWeights compiles the weight table into model.Weights.
func (e EngineConfig) ModelWeights() (model.Weights, error) {
	w := make(model.Weights, len(e.Weights))
	for name, wt := range e.Weights {
		d := model.Dimension(name)
		if !d.Valid() {
			return nil, eris.Wrapf(model.ErrValidation, "config: unknown weight dimension %q", name)
		}
		w[d] = wt
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// ModelThresholds compiles the threshold table into model.Thresholds.
func (e EngineConfig) ModelThresholds() (model.Thresholds, error) {
	t := make(model.Thresholds, len(e.Thresholds))
	for name, bound := range e.Thresholds {
		s, err := model.ParseState(name)
		if err != nil {
			return nil, err
		}
		t[s] = bound
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// TTLs compiles the per-state cache TTL table. Riskier states must not carry
// longer TTLs than safer ones: risk goes stale faster.
func (e EngineConfig) TTLs() (map[model.State]time.Duration, error) {
	ttls := make(map[model.State]time.Duration, len(e.TTLByState))
	for name, secs := range e.TTLByState {
		s, err := model.ParseState(name)
		if err != nil {
			return nil, err
		}
		if secs <= 0 {
			return nil, eris.Wrapf(model.ErrValidation, "config: non-positive TTL for state %s", s)
		}
		ttls[s] = time.Duration(secs) * time.Second
	}
	var prev time.Duration
	for i := len(model.States) - 1; i >= 0; i-- {
		s := model.States[i]
		ttl, ok := ttls[s]
		if !ok {
			return nil, eris.Wrapf(model.ErrValidation, "config: missing TTL for state %s", s)
		}
		if ttl < prev {
			return nil, eris.Wrapf(model.ErrValidation, "config: TTL for %s shorter than a riskier state", s)
		}
		prev = ttl
	}
	return ttls, nil
}

// StateTable compiles a per-state float table (mitigation cutoffs, confidence
// bases) and requires every state to be present.
func StateTable(table map[string]float64, what string) (map[model.State]float64, error) {
	out := make(map[model.State]float64, len(table))
	for name, val := range table {
		s, err := model.ParseState(name)
		if err != nil {
			return nil, err
		}
		out[s] = val
	}
	for _, s := range model.States {
		if _, ok := out[s]; !ok {
			return nil, eris.Wrapf(model.ErrValidation, "config: %s missing state %s", what, s)
		}
	}
	return out, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
