package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shacrom/mmorpg-news/internal/strapi"
)

type Config struct {
	ListenAddr    string
	SiteURL       string
	AllowedHosts  []string
	Locale        string
	PageSize      int
	FeaturedLimit int
	Environment   string

	StrapiURL  string
	StrapiUser string
	StrapiPass string
	APIVersion strapi.Version
	CookieName string
	Timeout    time.Duration

	WebhookEnabled   bool
	WebhookSecret    string
	MongoURI         string
	MongoDBName      string
	RabbitURI        string
	RabbitExchange   string
	RabbitRoutingKey string
}

// Production reports whether cookies must be marked Secure.
func (c Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

const (
	SiteConfigEnv       = "SITE_CONFIG"
	ListenAddrEnv       = "LISTEN_ADDR"
	SiteURLEnv          = "SITE_URL"
	AllowedHostsEnv     = "ALLOWED_HOSTS"
	SiteLocaleEnv       = "SITE_LOCALE"
	PageSizeEnv         = "PAGE_SIZE"
	FeaturedLimitEnv    = "FEATURED_LIMIT"
	AppEnv              = "APP_ENV"
	NodeEnv             = "NODE_ENV"
	StrapiURLEnv        = "STRAPI_URL"
	PublicStrapiURLEnv  = "PUBLIC_STRAPI_URL"
	StrapiUserEnv       = "STRAPI_USER"
	StrapiPassEnv       = "STRAPI_PASS"
	StrapiAPIVersionEnv = "STRAPI_API_VERSION"
	StrapiCookieEnv     = "STRAPI_COOKIE_NAME"
	TimeoutEnv          = "CMS_TIMEOUT"
	WebhookEnabledEnv   = "WEBHOOK_ENABLED"
	WebhookSecretEnv    = "WEBHOOK_SECRET"
	MongoURIEnv         = "MONGO_URI"
	MongoDBNameEnv      = "MONGO_DB_NAME"
	RabbitURIEnv        = "RABBIT_URI"
	RabbitExchangeEnv   = "RABBIT_EXCHANGE"
	RabbitRoutingKeyEnv = "RABBIT_ROUTING_KEY"
)

var (
	ErrMissingListenAddr = errors.New("listen address is required")
	ErrMissingStrapiURL  = errors.New("strapi url is required")
	ErrInvalidTimeout    = errors.New("cms timeout must not be negative")
	ErrMissingMongo      = errors.New("webhook requires MONGO_URI and MONGO_DB_NAME")
	ErrMissingRabbit     = errors.New("webhook requires RABBIT_URI and RABBIT_EXCHANGE")
)

func defaults() Config {
	return Config{
		ListenAddr:       ":4322",
		Locale:           "es",
		PageSize:         10,
		FeaturedLimit:    5,
		Environment:      "development",
		StrapiURL:        "http://localhost:1337",
		APIVersion:       strapi.V4,
		CookieName:       "strapi_jwt",
		Timeout:          10 * time.Second,
		MongoDBName:      "newssite",
		RabbitExchange:   "cms.sync",
		RabbitRoutingKey: "content.changed",
	}
}

// FromEnv builds the configuration from defaults, then the YAML variant file
// named by SITE_CONFIG (if any), then environment variables.
func FromEnv() (Config, error) {
	cfg := defaults()

	if path := os.Getenv(SiteConfigEnv); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.ListenAddr = getEnv(ListenAddrEnv, cfg.ListenAddr)
	cfg.SiteURL = getEnv(SiteURLEnv, cfg.SiteURL)
	cfg.Locale = getEnv(SiteLocaleEnv, cfg.Locale)
	cfg.Environment = getEnv(AppEnv, getEnv(NodeEnv, cfg.Environment))
	cfg.StrapiURL = getEnv(StrapiURLEnv, getEnv(PublicStrapiURLEnv, cfg.StrapiURL))
	cfg.StrapiUser = getEnv(StrapiUserEnv, cfg.StrapiUser)
	cfg.StrapiPass = getEnv(StrapiPassEnv, cfg.StrapiPass)
	cfg.CookieName = getEnv(StrapiCookieEnv, cfg.CookieName)
	cfg.WebhookSecret = getEnv(WebhookSecretEnv, cfg.WebhookSecret)
	cfg.MongoURI = getEnv(MongoURIEnv, cfg.MongoURI)
	cfg.MongoDBName = getEnv(MongoDBNameEnv, cfg.MongoDBName)
	cfg.RabbitURI = getEnv(RabbitURIEnv, cfg.RabbitURI)
	cfg.RabbitExchange = getEnv(RabbitExchangeEnv, cfg.RabbitExchange)
	cfg.RabbitRoutingKey = getEnv(RabbitRoutingKeyEnv, cfg.RabbitRoutingKey)

	if v := os.Getenv(AllowedHostsEnv); v != "" {
		cfg.AllowedHosts = splitList(v)
	}

	var err error
	if v := os.Getenv(StrapiAPIVersionEnv); v != "" {
		if cfg.APIVersion, err = strapi.ParseVersion(v); err != nil {
			return cfg, fmt.Errorf("invalid %v: %w", StrapiAPIVersionEnv, err)
		}
	}
	if cfg.PageSize, err = getEnvInt(PageSizeEnv, cfg.PageSize); err != nil {
		return cfg, fmt.Errorf("invalid %v: %w", PageSizeEnv, err)
	}
	if cfg.FeaturedLimit, err = getEnvInt(FeaturedLimitEnv, cfg.FeaturedLimit); err != nil {
		return cfg, fmt.Errorf("invalid %v: %w", FeaturedLimitEnv, err)
	}
	if v := os.Getenv(TimeoutEnv); v != "" {
		if cfg.Timeout, err = time.ParseDuration(v); err != nil {
			return cfg, fmt.Errorf("invalid %v: %w", TimeoutEnv, err)
		}
	}
	if v := os.Getenv(WebhookEnabledEnv); v != "" {
		if cfg.WebhookEnabled, err = strconv.ParseBool(v); err != nil {
			return cfg, fmt.Errorf("invalid %v: %w", WebhookEnabledEnv, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return ErrMissingListenAddr
	}
	if c.StrapiURL == "" {
		return ErrMissingStrapiURL
	}
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.WebhookEnabled {
		if c.MongoURI == "" || c.MongoDBName == "" {
			return ErrMissingMongo
		}
		if c.RabbitURI == "" || c.RabbitExchange == "" {
			return ErrMissingRabbit
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return i, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// siteFile is the YAML layout of the files under configs/. Credentials are
// only ever read from the environment.
type siteFile struct {
	Environment string `yaml:"environment"`
	Server      struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"server"`
	Site struct {
		URL           string `yaml:"url"`
		Locale        string `yaml:"locale"`
		PageSize      int    `yaml:"page_size"`
		FeaturedLimit int    `yaml:"featured_limit"`
	} `yaml:"site"`
	Preview struct {
		AllowedHosts []string `yaml:"allowed_hosts"`
	} `yaml:"preview"`
	CMS struct {
		URL        string `yaml:"url"`
		APIVersion string `yaml:"api_version"`
		CookieName string `yaml:"cookie_name"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"cms"`
	Webhook struct {
		Enabled          bool   `yaml:"enabled"`
		MongoDBName      string `yaml:"mongo_db_name"`
		RabbitExchange   string `yaml:"rabbit_exchange"`
		RabbitRoutingKey string `yaml:"rabbit_routing_key"`
	} `yaml:"webhook"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read site config: %w", err)
	}

	var f siteFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse site config %s: %w", path, err)
	}

	setString(&c.Environment, f.Environment)
	setString(&c.ListenAddr, f.Server.ListenAddr)
	setString(&c.SiteURL, f.Site.URL)
	setString(&c.Locale, f.Site.Locale)
	setString(&c.StrapiURL, f.CMS.URL)
	setString(&c.CookieName, f.CMS.CookieName)
	setString(&c.MongoDBName, f.Webhook.MongoDBName)
	setString(&c.RabbitExchange, f.Webhook.RabbitExchange)
	setString(&c.RabbitRoutingKey, f.Webhook.RabbitRoutingKey)

	if f.Site.PageSize != 0 {
		c.PageSize = f.Site.PageSize
	}
	if f.Site.FeaturedLimit != 0 {
		c.FeaturedLimit = f.Site.FeaturedLimit
	}
	if len(f.Preview.AllowedHosts) > 0 {
		c.AllowedHosts = f.Preview.AllowedHosts
	}
	if f.Webhook.Enabled {
		c.WebhookEnabled = true
	}
	if f.CMS.APIVersion != "" {
		if c.APIVersion, err = strapi.ParseVersion(f.CMS.APIVersion); err != nil {
			return fmt.Errorf("site config %s: %w", path, err)
		}
	}
	if f.CMS.Timeout != "" {
		if c.Timeout, err = time.ParseDuration(f.CMS.Timeout); err != nil {
			return fmt.Errorf("site config %s: invalid cms.timeout: %w", path, err)
		}
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
