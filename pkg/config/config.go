package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Marketplace  MarketplaceConfig
	Stripe       StripeConfig
	Carrier      CarrierConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Marketplace.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"CARDTROVE_APP_ENV" required:"true"`
	Port         string   `envconfig:"CARDTROVE_APP_PORT" required:"true"`
	PublicURL    string   `envconfig:"CARDTROVE_APP_PUBLIC_URL" default:"http://localhost:3000"`
	LogLevel     string   `envconfig:"CARDTROVE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"CARDTROVE_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"CARDTROVE_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"CARDTROVE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CARDTROVE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CARDTROVE_DB_DSN"`
	Driver string `envconfig:"CARDTROVE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CARDTROVE_DB_HOST"`
	LegacyPort     int    `envconfig:"CARDTROVE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CARDTROVE_DB_USER"`
	LegacyPassword string `envconfig:"CARDTROVE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CARDTROVE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CARDTROVE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CARDTROVE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARDTROVE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARDTROVE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARDTROVE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CARDTROVE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CARDTROVE_REDIS_ADDR"`
	Password     string        `envconfig:"CARDTROVE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARDTROVE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARDTROVE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARDTROVE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARDTROVE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARDTROVE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARDTROVE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the shared secret used to verify access tokens minted by the identity service.
type JWTConfig struct {
	Secret            string `envconfig:"CARDTROVE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CARDTROVE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CARDTROVE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CARDTROVE_AUTO_MIGRATE" default:"false"`
}

// MarketplaceConfig carries the business policy values for fees, offers and trust & safety.
type MarketplaceConfig struct {
	PlatformFeePercent     string        `envconfig:"CARDTROVE_PLATFORM_FEE_PERCENT" default:"6"`
	ProcessorFeePercent    string        `envconfig:"CARDTROVE_PROCESSOR_FEE_PERCENT" default:"2.9"`
	ProcessorFeeFixedCents int           `envconfig:"CARDTROVE_PROCESSOR_FEE_FIXED_CENTS" default:"30"`
	OfferTTL               time.Duration `envconfig:"CARDTROVE_OFFER_TTL" default:"48h"`
	ReportWindow           time.Duration `envconfig:"CARDTROVE_REPORT_WINDOW" default:"2160h"`
	SuspensionThreshold    int           `envconfig:"CARDTROVE_SUSPENSION_THRESHOLD" default:"3"`
	ReportRateLimitPerHour int           `envconfig:"CARDTROVE_REPORT_RATE_LIMIT" default:"10"`
	OfferRateLimitPerHour  int           `envconfig:"CARDTROVE_OFFER_RATE_LIMIT" default:"30"`
}

func (m MarketplaceConfig) validate() error {
	if m.OfferTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvOfferTTL)
	}
	if m.ReportWindow <= 0 {
		return fmt.Errorf("%s must be positive", EnvReportWindow)
	}
	if m.SuspensionThreshold <= 0 {
		return fmt.Errorf("%s must be positive", EnvSuspensionThreshold)
	}
	if m.ProcessorFeeFixedCents < 0 {
		return fmt.Errorf("%s must not be negative", EnvProcessorFeeFixedCents)
	}
	return nil
}

type StripeConfig struct {
	APIKey          string        `envconfig:"CARDTROVE_STRIPE_API_KEY"`
	Secret          string        `envconfig:"CARDTROVE_STRIPE_SECRET"`
	Env             string        `envconfig:"CARDTROVE_STRIPE_ENV" default:"test"`
	Currency        string        `envconfig:"CARDTROVE_STRIPE_CURRENCY" default:"usd"`
	SuccessURL      string        `envconfig:"CARDTROVE_STRIPE_SUCCESS_URL"`
	CancelURL       string        `envconfig:"CARDTROVE_STRIPE_CANCEL_URL"`
	ProviderTimeout time.Duration `envconfig:"CARDTROVE_CHECKOUT_PROVIDER_TIMEOUT" default:"10s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// CarrierConfig configures the single shipping-carrier integration.
type CarrierConfig struct {
	APIKey        string        `envconfig:"CARDTROVE_CARRIER_API_KEY"`
	BaseURL       string        `envconfig:"CARDTROVE_CARRIER_BASE_URL" default:"https://api.goshippo.com"`
	Provider      string        `envconfig:"CARDTROVE_CARRIER_PROVIDER" default:"USPS"`
	WebhookSecret string        `envconfig:"CARDTROVE_CARRIER_WEBHOOK_SECRET"`
	Timeout       time.Duration `envconfig:"CARDTROVE_CARRIER_TIMEOUT" default:"10s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"CARDTROVE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"CARDTROVE_PUBSUB_DOMAIN_TOPIC" default:"cardtrove-domain-events"`
	DomainSubscription string `envconfig:"CARDTROVE_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CARDTROVE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CARDTROVE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CARDTROVE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
