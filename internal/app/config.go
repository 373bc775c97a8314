package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (LUMI_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (LUMI_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `default:"redis://localhost:6379/0" usage:"Redis connection URL (cart + cancel queue)" flag:"redis-url"`
	Order       OrderConfig
	Coupon      CouponConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Alipay      AlipayConfig
	Wechat      WechatConfig
	Graceful    GracefulConfig
}

// CouponConfig controls the coupon pre-filter lifecycle.
type CouponConfig struct {
	FilterRefresh time.Duration `default:"5m" usage:"How often the coupon pre-filter reloads known codes" flag:"coupon-filter-refresh"`
}

// RateLimitConfig controls the per-client API rate limit.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Requests allowed per client per window" flag:"rate-limit-max"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration" flag:"rate-limit-window"`
}

// CORSConfig controls cross-origin access to the API.
type CORSConfig struct {
	Origins          []string `usage:"Allowed CORS origins (empty allows all)" flag:"cors-origins"`
	AllowCredentials bool     `usage:"Allow credentialed cross-origin requests" flag:"cors-allow-credentials"`
}

// OrderConfig controls order lifecycle timing.
type OrderConfig struct {
	CancelTTL      time.Duration `default:"30m" usage:"How long an unpaid order stays open" flag:"cancel-ttl"`
	CancelInterval time.Duration `default:"5s"  usage:"Cancel worker poll interval" flag:"cancel-interval"`
}

// AlipayConfig configures the Alipay gateway client.
type AlipayConfig struct {
	BaseURL string `default:"https://openapi.alipay.com" usage:"Alipay gateway base URL" flag:"alipay-base-url"`
	AppID   string `usage:"Alipay application ID" flag:"alipay-app-id"`
}

// WechatConfig configures the WeChat Pay gateway client.
type WechatConfig struct {
	BaseURL   string `default:"https://api.mch.weixin.qq.com" usage:"WeChat Pay gateway base URL" flag:"wechat-base-url"`
	MchID     string `usage:"WeChat Pay merchant ID" flag:"wechat-mch-id"`
	NotifyURL string `usage:"Publicly reachable URL for the refund-notify webhook" flag:"wechat-notify-url"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "LUMI",
		Files:     []string{"config.yaml", "/etc/lumishop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set LUMI_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and
// PORT to the LUMI_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if v := os.Getenv("REDIS_URL"); v != "" && c.RedisURL == "redis://localhost:6379/0" {
		c.RedisURL = v
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
