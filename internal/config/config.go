package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "REDITTO_CONFIG"

	httpAddrEnv      = "REDITTO_HTTP_ADDR"
	jwtSecretEnv     = "REDITTO_JWT_SECRET"
	jwtIssuerEnv     = "REDITTO_JWT_ISSUER"
	jwtTTLHoursEnv   = "REDITTO_JWT_TTL_HOURS"
	webhookURLEnv    = "N8N_WEBHOOK_URL"
	webhookAPIKeyEnv = "N8N_API_KEY"
	gatewayBaseEnv   = "OPEN_WEBUI_BASE_URL"
	gatewayPathEnv   = "OPEN_WEBUI_API_PATH"
	gatewayTokenEnv  = "OPEN_WEBUI_JWT_TOKEN"
	gatewayModelEnv  = "OPEN_WEBUI_MODEL"
	rateLimitEnv     = "REDITTO_RATE_LIMIT"
	logLevelEnv      = "REDITTO_LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	LogLevel  string          `yaml:"logLevel"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AuthConfig wires JWT signing parameters.
type AuthConfig struct {
	JWTSecret   string `yaml:"jwtSecret"`
	JWTIssuer   string `yaml:"jwtIssuer"`
	JWTTTLHours int    `yaml:"jwtTtlHours"`
}

func (a AuthConfig) JWTDuration() time.Duration {
	hours := a.JWTTTLHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// WebhookConfig points at the workflow-automation endpoint that
// forwards submissions to the LLM.
type WebhookConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"apiKey"`
}

// GatewayConfig defines how to contact the chat-completion gateway
// used by the direct essay-analysis and OCR paths.
type GatewayConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIPath string `yaml:"apiPath"`
	Token   string `yaml:"token"`
	Model   string `yaml:"model"`
}

type RateLimitConfig struct {
	Limit         int `yaml:"limit"`
	WindowSeconds int `yaml:"windowSeconds"`
}

func (r RateLimitConfig) Window() time.Duration {
	secs := r.WindowSeconds
	if secs <= 0 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

// Load reads YAML configuration (if present) and applies environment
// overrides. A .env file in the working directory is honored first.
func Load() Config {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(jwtSecretEnv); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv(jwtIssuerEnv); v != "" {
		c.Auth.JWTIssuer = v
	}
	if v := os.Getenv(jwtTTLHoursEnv); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			c.Auth.JWTTTLHours = hours
		}
	}
	if v := os.Getenv(webhookURLEnv); v != "" {
		c.Webhook.URL = v
	}
	if v := os.Getenv(webhookAPIKeyEnv); v != "" {
		c.Webhook.APIKey = v
	}
	if v := os.Getenv(gatewayBaseEnv); v != "" {
		c.Gateway.BaseURL = v
	}
	if v := os.Getenv(gatewayPathEnv); v != "" {
		c.Gateway.APIPath = v
	}
	if v := os.Getenv(gatewayTokenEnv); v != "" {
		c.Gateway.Token = v
	}
	if v := os.Getenv(gatewayModelEnv); v != "" {
		c.Gateway.Model = v
	}
	if v := os.Getenv(rateLimitEnv); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			c.RateLimit.Limit = limit
		}
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.LogLevel = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Auth.JWTSecret != "" {
		base.Auth.JWTSecret = override.Auth.JWTSecret
	}
	if override.Auth.JWTIssuer != "" {
		base.Auth.JWTIssuer = override.Auth.JWTIssuer
	}
	if override.Auth.JWTTTLHours > 0 {
		base.Auth.JWTTTLHours = override.Auth.JWTTTLHours
	}
	if override.Webhook.URL != "" {
		base.Webhook.URL = override.Webhook.URL
	}
	if override.Webhook.APIKey != "" {
		base.Webhook.APIKey = override.Webhook.APIKey
	}
	if override.Gateway.BaseURL != "" {
		base.Gateway.BaseURL = override.Gateway.BaseURL
	}
	if override.Gateway.APIPath != "" {
		base.Gateway.APIPath = override.Gateway.APIPath
	}
	if override.Gateway.Token != "" {
		base.Gateway.Token = override.Gateway.Token
	}
	if override.Gateway.Model != "" {
		base.Gateway.Model = override.Gateway.Model
	}
	if override.RateLimit.Limit > 0 {
		base.RateLimit.Limit = override.RateLimit.Limit
	}
	if override.RateLimit.WindowSeconds > 0 {
		base.RateLimit.WindowSeconds = override.RateLimit.WindowSeconds
	}
	if override.LogLevel != "" {
		base.LogLevel = override.LogLevel
	}
	return base
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Auth: AuthConfig{
			JWTSecret:   "dev-secret-change-me",
			JWTIssuer:   "reditto",
			JWTTTLHours: 24,
		},
		Gateway: GatewayConfig{
			APIPath: "/api/chat/completions",
			Model:   "gemma3:4b",
		},
		RateLimit: RateLimitConfig{
			Limit:         20,
			WindowSeconds: 60,
		},
		LogLevel: "info",
	}
}
