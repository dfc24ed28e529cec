// Package config loads the per-run market configuration. It uses a
// viper+godotenv+mapstructure loading idiom (SetDefault cascade, env var
// override via dotted-to-underscore replacement, flat-or-nested YAML)
// scoped to a single MarketConfig rather than a full application config.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"research-agent/internal/apperr"
)

// Collectors toggles and configures the collection layer.
type Collectors struct {
	RSSEnabled          bool     `mapstructure:"rss_enabled"`
	RedditEnabled       bool     `mapstructure:"reddit_enabled"`
	TrendsEnabled       bool     `mapstructure:"trends_enabled"`
	AutocompleteEnabled bool     `mapstructure:"autocomplete_enabled"`
	NewsAPIEnabled      bool     `mapstructure:"news_api_enabled"`
	FeedDiscoveryEnabled bool    `mapstructure:"feed_discovery_enabled"`
	CustomFeeds         []string `mapstructure:"custom_feeds"`
	OPMLFeeds           []string `mapstructure:"opml_feeds"`
	RedditSubreddits    []string `mapstructure:"reddit_subreddits"`
	BreakingWindowHours int      `mapstructure:"breaking_window_hours"`
}

// Scheduling holds cron-like trigger configuration.
type Scheduling struct {
	CollectionTime string `mapstructure:"collection_time"` // cron, default "0 2 * * *"
	SyncDay        string `mapstructure:"sync_day"`        // cron, default Monday 09:00
	LookbackDays   int    `mapstructure:"lookback_days"`
}

// Reranker configures the cascaded reranker.
type Reranker struct {
	EnableVoyage       bool    `mapstructure:"enable_voyage"`
	Stage1Threshold    float64 `mapstructure:"stage1_threshold"`
	Stage2Threshold    float64 `mapstructure:"stage2_threshold"`
	Stage3FinalCount   int     `mapstructure:"stage3_final_count"`
}

// Synthesizer configures the content synthesizer.
type Synthesizer struct {
	Strategy       string `mapstructure:"strategy"` // "bm25_llm" | "llm_only"
	MaxArticleWords int   `mapstructure:"max_article_words"`
}

// DeepResearch configures the research orchestrator.
type DeepResearch struct {
	MinSuccessfulBackends int     `mapstructure:"min_successful_backends"`
	LatencyBudgetSeconds  int     `mapstructure:"latency_budget_seconds"`
	CostBudgetUSD         float64 `mapstructure:"cost_budget_usd"`
}

// Research configures the five research backends: the self-hosted
// SearXNG instance for the BREADTH backend and the RSS feeds the CURATED
// backend draws from (the DEPTH/TRENDS/BREAKING backends read their API
// keys directly from TAVILY_API_KEY / GEMINI_API_KEY / THENEWSAPI_TOKEN,
// matching how internal/collectors.NewsAPICollector reads its own key).
type Research struct {
	SearXNGBaseURL string   `mapstructure:"searxng_base_url"`
	CuratedFeeds   []string `mapstructure:"curated_feeds"`
}

// Market is the nested form of market/language/domain, accepted alongside
// the flat top-level keys and feeding the locality computation.
type Market struct {
	Market   string `mapstructure:"market"`
	Language string `mapstructure:"language"`
	Domain   string `mapstructure:"domain"`
}

// MarketConfig is the per-run configuration record loaded from YAML.
type MarketConfig struct {
	Domain          string       `mapstructure:"domain"`
	MarketName      string       `mapstructure:"market"`
	Language        string       `mapstructure:"language"`
	Vertical        string       `mapstructure:"vertical"`
	SeedKeywords    []string     `mapstructure:"seed_keywords"`
	CompetitorURLs  []string     `mapstructure:"competitor_urls"`
	MarketNested    Market       `mapstructure:"market_config"`

	Collectors   Collectors   `mapstructure:"collectors"`
	Scheduling   Scheduling   `mapstructure:"scheduling"`
	Reranker     Reranker     `mapstructure:"reranker"`
	Synthesizer  Synthesizer  `mapstructure:"synthesizer"`
	DeepResearch DeepResearch `mapstructure:"deep_research"`
	Research     Research     `mapstructure:"research"`

	DataDir string `mapstructure:"data_dir"`
}

// EffectiveMarket resolves market/language/domain accepting both the flat
// top-level fields and a nested `market_config` sub-object, coercing to
// lowercase and falling back to empty strings (locality rule).
func (c *MarketConfig) EffectiveMarket() (market, language, domain string) {
	market, language, domain = c.MarketName, c.Language, c.Domain
	if market == "" {
		market = c.MarketNested.Market
	}
	if language == "" {
		language = c.MarketNested.Language
	}
	if domain == "" {
		domain = c.MarketNested.Domain
	}
	return strings.ToLower(market), strings.ToLower(language), strings.ToLower(domain)
}

var global *MarketConfig

// Load loads a MarketConfig from the given YAML file (or default search
// paths if empty), applying defaults, env var overrides, and validation.
// A ConfigError aborts the run before anything else starts.
func Load(configFile string) (*MarketConfig, error) {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("market")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &apperr.ConfigError{Field: "file", Err: err}
		}
	}

	// A nested `market` sub-object (market/language/domain) fills the flat
	// fields; a flat language or domain that is already set wins.
	if nested, ok := v.Get("market").(map[string]interface{}); ok {
		for _, key := range []string{"market", "language", "domain"} {
			val, _ := nested[key].(string)
			if key == "market" || v.GetString(key) == "" {
				v.Set(key, val)
			}
		}
	}

	cfg := &MarketConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &apperr.ConfigError{Field: "unmarshal", Err: err}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	global = cfg
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", ".research-agent")
	v.SetDefault("vertical", "")
	v.SetDefault("collectors.rss_enabled", true)
	v.SetDefault("collectors.reddit_enabled", false)
	v.SetDefault("collectors.trends_enabled", false)
	v.SetDefault("collectors.autocomplete_enabled", false)
	v.SetDefault("collectors.news_api_enabled", false)
	v.SetDefault("collectors.feed_discovery_enabled", false)
	v.SetDefault("collectors.breaking_window_hours", 24)

	v.SetDefault("scheduling.collection_time", "0 2 * * *")
	v.SetDefault("scheduling.sync_day", "0 9 * * 1")
	v.SetDefault("scheduling.lookback_days", 7)

	v.SetDefault("reranker.enable_voyage", false)
	v.SetDefault("reranker.stage1_threshold", 0.0)
	v.SetDefault("reranker.stage2_threshold", 0.3)
	v.SetDefault("reranker.stage3_final_count", 25)

	v.SetDefault("synthesizer.strategy", "bm25_llm")
	v.SetDefault("synthesizer.max_article_words", 2000)

	v.SetDefault("deep_research.min_successful_backends", 1)
	v.SetDefault("deep_research.latency_budget_seconds", 90)
	v.SetDefault("deep_research.cost_budget_usd", 0.02)

	v.SetDefault("research.searxng_base_url", "https://searx.be")
}

func validate(cfg *MarketConfig) error {
	if cfg.Domain == "" {
		return &apperr.ConfigError{Field: "domain", Err: fmt.Errorf("domain is required")}
	}
	market, language, _ := cfg.EffectiveMarket()
	if market == "" {
		return &apperr.ConfigError{Field: "market", Err: fmt.Errorf("market is required")}
	}
	if language == "" {
		return &apperr.ConfigError{Field: "language", Err: fmt.Errorf("language is required")}
	}
	if cfg.Synthesizer.Strategy != "bm25_llm" && cfg.Synthesizer.Strategy != "llm_only" {
		return &apperr.ConfigError{Field: "synthesizer.strategy", Err: fmt.Errorf("must be bm25_llm or llm_only, got %q", cfg.Synthesizer.Strategy)}
	}
	if cfg.DeepResearch.MinSuccessfulBackends < 1 {
		return &apperr.ConfigError{Field: "deep_research.min_successful_backends", Err: fmt.Errorf("must be >= 1")}
	}
	return nil
}

// Get returns the last-loaded global config, loading defaults if none was
// ever explicitly loaded. Intended for CLI convenience paths only; library
// code should receive *MarketConfig explicitly.
func Get() *MarketConfig {
	if global == nil {
		cfg, err := Load("")
		if err != nil {
			global = &MarketConfig{Domain: "general", MarketName: "global", Language: "en"}
			return global
		}
		return cfg
	}
	return global
}

// LookbackWindow returns the configured news date window as a duration.
func (c *MarketConfig) LookbackWindow() time.Duration {
	days := c.Scheduling.LookbackDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}
