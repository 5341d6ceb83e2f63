package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/helper-matcher/internal/ai"
	"github.com/spigell/helper-matcher/internal/ai/claude"
	"github.com/spigell/helper-matcher/internal/ai/gemini"
	"github.com/spigell/helper-matcher/internal/decisions"
	"github.com/spigell/helper-matcher/internal/logger"
	"github.com/spigell/helper-matcher/internal/matching"
	"github.com/spigell/helper-matcher/internal/pipeline"
	"github.com/spigell/helper-matcher/internal/rules"
	"github.com/spigell/helper-matcher/internal/scoring"
)

const (
	app       = "helper-matcher"
	envPrefix = "HELPER_MATCHER"
)

type Config struct {
	Storage    *StorageConfig    `mapstructure:"storage"`
	Redis      *RedisConfig      `mapstructure:"redis"`
	Scoring    scoring.Config    `mapstructure:"scoring"`
	Rules      rules.Config      `mapstructure:"rules"`
	Matching   matching.Config   `mapstructure:"matching"`
	Features   pipeline.Config   `mapstructure:"features"`
	Retraining *RetrainingConfig `mapstructure:"retraining"`
	AI         *AIConfig         `mapstructure:"ai"`
}

type StorageConfig struct {
	// Driver is memory or postgres.
	Driver          string `mapstructure:"driver"`
	DatabaseURL     string `mapstructure:"database-url"`
	DatabaseURLFile string `mapstructure:"database-url-file"`
	// SeedFile is loaded into the memory store or imported into postgres.
	SeedFile string `mapstructure:"seed-file"`
}

type RedisConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	FeatureTTL    time.Duration `mapstructure:"feature-ttl"`
	EventsChannel string        `mapstructure:"events-channel"`
}

type RetrainingConfig struct {
	decisions.Config `mapstructure:",squash"`
	SweepSchedule    string `mapstructure:"sweep-schedule"`
	RefreshSchedule  string `mapstructure:"refresh-schedule"`
}

type AIConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Provider is gemini or claude.
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
	Claude   *ClaudeConfig `mapstructure:"claude"`
}

type GeminiConfig struct {
	gemini.Config     `mapstructure:",squash"`
	ai.EnricherConfig `mapstructure:",squash"`
	APIKey            string `mapstructure:"api-key"`
	APIKeyFile        string `mapstructure:"api-key-file"`
}

type ClaudeConfig struct {
	claude.Config     `mapstructure:",squash"`
	ai.EnricherConfig `mapstructure:",squash"`
	APIKey            string `mapstructure:"api-key"`
	APIKeyFile        string `mapstructure:"api-key-file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "helper-matcher ranks domestic helpers for jobs and learns from employer decisions",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is helper-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	// Keys without a default are invisible to Unmarshal when only set through the environment.
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.database-url", "")
	v.SetDefault("storage.database-url-file", "")
	v.SetDefault("storage.seed-file", "")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.feature-ttl", 24*time.Hour)
	v.SetDefault("redis.events-channel", "helper-matcher.retraining")

	sc := scoring.DefaultConfig()
	v.SetDefault("scoring.weights.skills", sc.Weights.Skills)
	v.SetDefault("scoring.weights.age", sc.Weights.Age)
	v.SetDefault("scoring.weights.nationality", sc.Weights.Nationality)
	v.SetDefault("scoring.weights.language", sc.Weights.Language)
	v.SetDefault("scoring.weights.experience", sc.Weights.Experience)
	v.SetDefault("scoring.weights.trust", sc.Weights.Trust)
	v.SetDefault("scoring.age-tolerance", sc.AgeTolerance)
	v.SetDefault("scoring.default-experience-years", sc.DefaultExperienceYears)

	rc := rules.DefaultConfig()
	v.SetDefault("rules.age-extension-cap", rc.AgeExtensionCap)
	v.SetDefault("rules.max-skill-bonus", rc.MaxSkillBonus)
	v.SetDefault("rules.compensation-min-years", rc.CompensationMinYears)
	v.SetDefault("rules.history-limit", rc.HistoryLimit)
	v.SetDefault("rules.flexibility.age-deviation-scale", rc.Flexibility.AgeDeviationScale)
	v.SetDefault("rules.flexibility.confidence-prior", rc.Flexibility.ConfidencePrior)
	v.SetDefault("rules.flexibility.rejection-penalty", rc.Flexibility.RejectionPenalty)

	mc := matching.DefaultConfig()
	v.SetDefault("matching.pool-size", mc.PoolSize)
	v.SetDefault("matching.dynamic-rules", mc.DynamicRules)

	pc := pipeline.DefaultConfig()
	v.SetDefault("features.batch-size", pc.BatchSize)
	v.SetDefault("features.delay", pc.Delay)
	v.SetDefault("features.concurrency", pc.Concurrency)
	v.SetDefault("features.verify-source-hash", pc.VerifySourceHash)

	dc := decisions.DefaultConfig()
	v.SetDefault("retraining.window", dc.Window)
	v.SetDefault("retraining.min-training-decisions", dc.MinTrainingDecisions)
	v.SetDefault("retraining.training-limit", dc.TrainingLimit)
	v.SetDefault("retraining.sweep-window-days", dc.SweepWindowDays)
	v.SetDefault("retraining.sweep-schedule", "@every 6h")
	v.SetDefault("retraining.refresh-schedule", "@every 24h")

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.provider", "gemini")
	for _, provider := range []string{"gemini", "claude"} {
		v.SetDefault("ai."+provider+".api-key", "")
		v.SetDefault("ai."+provider+".api-key-file", "")
		v.SetDefault("ai."+provider+".model", "")
		v.SetDefault("ai."+provider+".max-retries", 3)
		v.SetDefault("ai."+provider+".max-log-length", 200)
	}
	v.SetDefault("ai.gemini.requests-per-minute", 60)
	v.SetDefault("ai.claude.requests-per-minute", 50)
	v.SetDefault("ai.claude.max-tokens", 1024)
}

func initConfig() {
	// A missing .env is fine, the environment may be set elsewhere.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Defaults and environment are enough without a config file,
	// but a file that exists must parse.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.Storage == nil {
		config.Storage = &StorageConfig{Driver: "memory"}
	}
	if config.Redis == nil {
		config.Redis = &RedisConfig{}
	}
	if config.Retraining == nil {
		config.Retraining = &RetrainingConfig{Config: decisions.DefaultConfig()}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}

	return config, nil
}

// runWithApplication builds the logger, the config and the wired components,
// runs fn and releases everything afterwards.
func runWithApplication(cmd *cobra.Command, fn func(ctx context.Context, a *application) error) error {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty), zap.String("version", version))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApplication(ctx, config, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// redacted returns a copy of config safe for logging.
func redacted(config *Config) Config {
	const mask = "***"

	c := *config
	if c.Storage != nil && c.Storage.DatabaseURL != "" {
		storage := *c.Storage
		storage.DatabaseURL = mask
		c.Storage = &storage
	}
	if c.AI != nil {
		aiCfg := *c.AI
		if aiCfg.Gemini != nil && aiCfg.Gemini.APIKey != "" {
			g := *aiCfg.Gemini
			g.APIKey = mask
			aiCfg.Gemini = &g
		}
		if aiCfg.Claude != nil && aiCfg.Claude.APIKey != "" {
			cl := *aiCfg.Claude
			cl.APIKey = mask
			aiCfg.Claude = &cl
		}
		c.AI = &aiCfg
	}
	return c
}

// printJSON writes v to stdout, the channel for command results. Logs go to stderr.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
