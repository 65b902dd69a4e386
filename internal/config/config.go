package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Brave     BraveConfig     `yaml:"brave" mapstructure:"brave"`
	GitHub    GitHubConfig    `yaml:"github" mapstructure:"github"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Generate  GenerateConfig  `yaml:"generate" mapstructure:"generate"`
	Evaluate  EvaluateConfig  `yaml:"evaluate" mapstructure:"evaluate"`
	Benchmark BenchmarkConfig `yaml:"benchmark" mapstructure:"benchmark"`
	Runs      RunsConfig      `yaml:"runs" mapstructure:"runs"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// BraveConfig holds Brave Search API settings for uniqueness verification.
// An empty key degrades verification: candidates are flagged unverified
// instead of being checked.
type BraveConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	CachePath string `yaml:"cache_path" mapstructure:"cache_path"`
}

// GitHubConfig holds GitHub API settings. The token is optional; without it
// the search API still works at lower rate limits.
type GitHubConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OpenAIConfig holds settings for the OpenAI-compatible completion endpoint.
type OpenAIConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GenerateConfig tunes the fact-candidate generation pipeline.
type GenerateConfig struct {
	// Thresholds maps domain name to the max rarity count admitted
	// (inclusive boundary).
	Thresholds    map[string]int `yaml:"thresholds" mapstructure:"thresholds"`
	DomainsFile   string         `yaml:"domains_file" mapstructure:"domains_file"`
	WordlistURL   string         `yaml:"wordlist_url" mapstructure:"wordlist_url"`
	WordlistCache string         `yaml:"wordlist_cache" mapstructure:"wordlist_cache"`
	ProbeLimit    int            `yaml:"probe_limit" mapstructure:"probe_limit"`
	Concurrency   int            `yaml:"concurrency" mapstructure:"concurrency"`
}

// EvaluateConfig holds default scoring parameters; flags override per run.
type EvaluateConfig struct {
	UnknownCredit float64 `yaml:"unknown_credit" mapstructure:"unknown_credit"`
	WrongPenalty  float64 `yaml:"wrong_penalty" mapstructure:"wrong_penalty"`
	Concurrency   int     `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// BenchmarkConfig configures benchmark file output.
type BenchmarkConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// RunsConfig configures the run directory.
type RunsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the read-only report server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DomainThreshold returns the rarity admission threshold for a domain,
// falling back to 5 when unconfigured.
func (c *Config) DomainThreshold(domain string) int {
	if t, ok := c.Generate.Thresholds[domain]; ok {
		return t
	}
	return 5
}

// Load reads configuration from config.yaml and ANCHOR_* environment
// variables, with defaults applied for everything unset.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ANCHOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("server.port", 8080)
	v.SetDefault("brave.base_url", "https://api.search.brave.com/res/v1")
	v.SetDefault("brave.cache_path", "rarity_cache.db")
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.timeout_secs", 60)
	v.SetDefault("openai.max_tokens", 150)
	v.SetDefault("generate.domains_file", "domains.yaml")
	v.SetDefault("generate.wordlist_url", "https://raw.githubusercontent.com/dwyl/english-words/master/words_alpha.txt")
	v.SetDefault("generate.wordlist_cache", "common_english_words.txt.gz")
	v.SetDefault("generate.probe_limit", 100)
	v.SetDefault("generate.concurrency", 4)
	v.SetDefault("generate.thresholds", map[string]int{
		"github":         2,
		"github_popular": 2,
		"reddit":         5,
		"pypi":           5,
		"wikipedia":      5,
	})
	v.SetDefault("evaluate.unknown_credit", 0.25)
	v.SetDefault("evaluate.wrong_penalty", 1.0)
	v.SetDefault("evaluate.concurrency", 2)
	v.SetDefault("evaluate.max_retries", 3)
	v.SetDefault("benchmark.dir", "benchmarks")
	v.SetDefault("runs.dir", "runs")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration needed by the given command mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "generate":
		if c.Generate.Concurrency < 1 || c.Generate.Concurrency > 16 {
			problems = append(problems, "generate.concurrency must be between 1 and 16")
		}
		if c.Generate.ProbeLimit < 1 {
			problems = append(problems, "generate.probe_limit must be >= 1")
		}
		for domain, t := range c.Generate.Thresholds {
			if t < 0 {
				problems = append(problems, "generate.thresholds."+domain+" must be >= 0")
			}
		}
	case "evaluate":
		if c.OpenAI.Key == "" {
			problems = append(problems, "openai.key is required")
		}
		if c.Evaluate.Concurrency < 1 || c.Evaluate.Concurrency > 16 {
			problems = append(problems, "evaluate.concurrency must be between 1 and 16")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "report", "runs":
		// Only the runs directory is needed; defaults always satisfy it.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
