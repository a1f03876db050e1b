package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"newsreader/pkg/models"
)

const configPathEnv = "NEWSREADER_CONFIG"

// Config holds everything the service needs at startup. Values come
// from defaults, then an optional yaml file, then env overrides.
type Config struct {
	Port      string          `yaml:"port"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Assistant AssistantConfig `yaml:"assistant"`
	Ranking   RankingConfig   `yaml:"ranking"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Sources   []models.Source `yaml:"sources"`
}

// DatabaseConfig describes the Postgres connection.
type DatabaseConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Name string `yaml:"name"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

// RedisConfig describes the feed batch cache.
type RedisConfig struct {
	Addr            string `yaml:"addr"`
	BatchTTLSeconds int    `yaml:"batchTtlSeconds"`
}

// BatchTTL returns how long fetched batches stay cached.
func (r RedisConfig) BatchTTL() time.Duration {
	return time.Duration(r.BatchTTLSeconds) * time.Second
}

// AssistantConfig wires the upstream generative-AI endpoint.
type AssistantConfig struct {
	URL    string `yaml:"url"`
	Model  string `yaml:"model"`
	APIKey string `yaml:"apiKey"`
}

// RankingConfig exposes the scoring constants.
type RankingConfig struct {
	HalfLifeDays float64 `yaml:"halfLifeDays"`
	SourceBoost  float64 `yaml:"sourceBoost"`
	TopicBoost   float64 `yaml:"topicBoost"`
	RecencyBoost float64 `yaml:"recencyBoost"`
}

// RateLimitConfig bounds the assistant endpoint.
type RateLimitConfig struct {
	Limit         int `yaml:"limit"`
	WindowSeconds int `yaml:"windowSeconds"`
}

// Window returns the configured window as a duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// Load reads yaml configuration if present and applies env overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("config: cannot read %s: %v (using defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (using defaults)", path, err)
			cfg = defaultConfig()
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}
	return cfg
}

func (c *Config) applyEnvOverrides() {
	setIfEnv(&c.Port, "PORT")
	setIfEnv(&c.Database.Host, "DB_HOST")
	setIfEnv(&c.Database.Port, "DB_PORT")
	setIfEnv(&c.Database.Name, "DB_NAME")
	setIfEnv(&c.Database.User, "DB_USER")
	setIfEnv(&c.Database.Pass, "DB_PASS")
	setIfEnv(&c.Redis.Addr, "REDIS_ADDR")
	setIfEnv(&c.Assistant.URL, "LLM_URL")
	setIfEnv(&c.Assistant.Model, "LLM_MODEL")
	setIfEnv(&c.Assistant.APIKey, "LLM_API_KEY")
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func defaultConfig() Config {
	return Config{
		Port: "8080",
		Database: DatabaseConfig{
			Host: "localhost",
			Port: "5432",
			Name: "newsreader_db",
			User: "newsreader",
			Pass: "newsreader",
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			BatchTTLSeconds: 300,
		},
		Assistant: AssistantConfig{
			URL:   "http://localhost:11434/api/generate",
			Model: "smollm2:135m",
		},
		Ranking: RankingConfig{
			HalfLifeDays: 14,
			SourceBoost:  0.35,
			TopicBoost:   0.7,
			RecencyBoost: 0.5,
		},
		RateLimit: RateLimitConfig{
			Limit:         20,
			WindowSeconds: 60,
		},
		Sources: []models.Source{
			{Key: "bbc-world", Label: "BBC", URL: "https://feeds.bbci.co.uk/news/world/rss.xml", Enabled: true},
			{Key: "npr-news", Label: "NPR", URL: "https://feeds.npr.org/1001/rss.xml", Enabled: true},
			{Key: "guardian-world", Label: "The Guardian", URL: "https://www.theguardian.com/world/rss", Enabled: true},
			{Key: "hn-front", Label: "Hacker News", URL: "https://hnrss.org/frontpage", Enabled: false},
		},
	}
}
