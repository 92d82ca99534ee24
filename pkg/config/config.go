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
	Store        StoreConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	BigQuery     BigQueryConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Resend       ResendConfig
	Delivery     DeliveryConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Store.Backend == StoreBackendPostgres {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VERIDIA_APP_ENV" required:"true"`
	Port         string `envconfig:"VERIDIA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"VERIDIA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VERIDIA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// StoreConfig selects the report store backend wired at startup.
type StoreConfig struct {
	Backend string `envconfig:"VERIDIA_STORE_BACKEND" default:"memory"`
}

type DBConfig struct {
	DSN    string `envconfig:"VERIDIA_DB_DSN"`
	Driver string `envconfig:"VERIDIA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VERIDIA_DB_HOST"`
	LegacyPort     int    `envconfig:"VERIDIA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VERIDIA_DB_USER"`
	LegacyPassword string `envconfig:"VERIDIA_DB_PASSWORD"`
	LegacyName     string `envconfig:"VERIDIA_DB_NAME"`
	LegacySSLMode  string `envconfig:"VERIDIA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VERIDIA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VERIDIA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VERIDIA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VERIDIA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VERIDIA_REDIS_URL"`
	Address      string        `envconfig:"VERIDIA_REDIS_ADDR"`
	Password     string        `envconfig:"VERIDIA_REDIS_PASSWORD"`
	DB           int           `envconfig:"VERIDIA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VERIDIA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VERIDIA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VERIDIA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VERIDIA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VERIDIA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether any redis endpoint was provided at all. The
// event-id guard is optional; without redis the webhook relies on the
// durable state check alone.
func (r RedisConfig) Configured() bool {
	return r.URL != "" || r.Address != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VERIDIA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VERIDIA_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VERIDIA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VERIDIA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VERIDIA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type BigQueryConfig struct {
	Dataset      string `envconfig:"VERIDIA_BIGQUERY_DATASET" default:"veridia"`
	ReportsTable string `envconfig:"VERIDIA_BIGQUERY_REPORTS_TABLE" default:"reports"`
}

type PubSubConfig struct {
	DeliveryTopic        string `envconfig:"VERIDIA_PUBSUB_DELIVERY_TOPIC" default:"veridia-delivery-jobs"`
	DeliverySubscription string `envconfig:"VERIDIA_PUBSUB_DELIVERY_SUBSCRIPTION"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"VERIDIA_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"VERIDIA_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"VERIDIA_STRIPE_ENV" default:"test"`

	SuccessURL string `envconfig:"VERIDIA_CHECKOUT_SUCCESS_URL" default:"http://localhost:3000/payment-success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL  string `envconfig:"VERIDIA_CHECKOUT_CANCEL_URL" default:"http://localhost:3000/payment-cancelled"`

	// ModulePrices maps catalog module names to Stripe price ids,
	// e.g. VERIDIA_STRIPE_MODULE_PRICES="SEO:price_123,Security:price_456".
	ModulePrices  map[string]string `envconfig:"VERIDIA_STRIPE_MODULE_PRICES"`
	RepairPriceID string            `envconfig:"VERIDIA_STRIPE_REPAIR_PRICE_ID"`

	// Fallback one-line-item pricing used when a module has no price id.
	Currency     string `envconfig:"VERIDIA_CHECKOUT_CURRENCY" default:"usd"`
	UnlockAmount int64  `envconfig:"VERIDIA_CHECKOUT_UNLOCK_AMOUNT" default:"9900"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type ResendConfig struct {
	APIKey      string `envconfig:"VERIDIA_RESEND_API_KEY"`
	DefaultFrom string `envconfig:"VERIDIA_RESEND_FROM_EMAIL" default:"Veridia <noreply@veridia.app>"`
}

type DeliveryConfig struct {
	Mode       string `envconfig:"VERIDIA_DELIVERY_MODE" default:"inline"`
	BufferSize int    `envconfig:"VERIDIA_DELIVERY_BUFFER_SIZE" default:"64"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"VERIDIA_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
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
