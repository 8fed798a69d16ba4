// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Providers     ProvidersConfig     `mapstructure:"providers"`
	LanguageModel LanguageModelConfig `mapstructure:"language_model"`
	Aggregator    AggregatorConfig    `mapstructure:"aggregator"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int `mapstructure:"write_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- News Provider Configuration ---

// ProviderConfig holds the settings for one upstream news provider. An empty
// APIKey disables the provider at startup.
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// Enabled reports whether the provider has a key configured.
func (p ProviderConfig) Enabled() bool {
	return p.APIKey != ""
}

// GetTimeout returns the per-request timeout as a duration.
func (p ProviderConfig) GetTimeout() time.Duration {
	return time.Duration(p.Timeout) * time.Millisecond
}

type ProvidersConfig struct {
	NewsAPI  ProviderConfig `mapstructure:"newsapi"`
	NYTimes  ProviderConfig `mapstructure:"nytimes"`
	Guardian ProviderConfig `mapstructure:"guardian"`
}

// LanguageModelConfig holds settings for the external language-model service.
type LanguageModelConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
}

// Enabled reports whether conversational phrasing is available.
func (l LanguageModelConfig) Enabled() bool {
	return l.APIKey != ""
}

// GetTimeout returns the language-model call timeout as a duration.
func (l LanguageModelConfig) GetTimeout() time.Duration {
	return time.Duration(l.Timeout) * time.Millisecond
}

// AggregatorConfig bounds the provider fan-out.
type AggregatorConfig struct {
	ProviderTimeout int `mapstructure:"provider_timeout"` // milliseconds, per provider
	OverallTimeout  int `mapstructure:"overall_timeout"`  // milliseconds, whole fan-out
	MaxArticles     int `mapstructure:"max_articles"`     // per provider response
}

// GetProviderTimeout returns the per-provider fan-out timeout as a duration.
func (a AggregatorConfig) GetProviderTimeout() time.Duration {
	return time.Duration(a.ProviderTimeout) * time.Millisecond
}

// GetOverallTimeout returns the whole-fan-out timeout as a duration.
func (a AggregatorConfig) GetOverallTimeout() time.Duration {
	return time.Duration(a.OverallTimeout) * time.Millisecond
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
