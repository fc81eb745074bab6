package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "QUOTEFLOW"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	GatewayHostedForm = "hosted_form"
	GatewaySquare     = "square"
)

const (
	EnvAppEnv            = "QUOTEFLOW_APP_ENV"
	EnvPort              = "QUOTEFLOW_APP_PORT"
	EnvBackendBaseURL    = "QUOTEFLOW_BACKEND_BASE_URL"
	EnvGatewayKind       = "QUOTEFLOW_GATEWAY_KIND"
	EnvGatewayURL        = "QUOTEFLOW_GATEWAY_URL"
	EnvGatewayToken      = "QUOTEFLOW_GATEWAY_TOKEN"
	EnvDBDSN             = "QUOTEFLOW_DB_DSN"
	EnvDBDriver          = "QUOTEFLOW_DB_DRIVER"
	EnvDBHost            = "QUOTEFLOW_DB_HOST"
	EnvDBUser            = "QUOTEFLOW_DB_USER"
	EnvDBName            = "QUOTEFLOW_DB_NAME"
	EnvRedisURL          = "QUOTEFLOW_REDIS_URL"
	EnvJWTSecret         = "QUOTEFLOW_JWT_SECRET"
	EnvJWTIssuer         = "QUOTEFLOW_JWT_ISSUER"
	EnvFlowTTL           = "QUOTEFLOW_FLOW_TTL"
	EnvVINDebounce       = "QUOTEFLOW_VIN_DEBOUNCE"
	EnvSquareAccessToken = "QUOTEFLOW_SQUARE_ACCESS_TOKEN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Backend      BackendConfig
	Gateway      GatewayConfig
	Square       SquareConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Flow         FlowConfig
	RateLimit    RateLimitConfig
	Reports      ReportsConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Gateway.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"QUOTEFLOW_APP_ENV" required:"true"`
	Port         string   `envconfig:"QUOTEFLOW_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"QUOTEFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"QUOTEFLOW_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"QUOTEFLOW_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points at the remote insurance API that owns pricing, VIN decoding and persistence.
type BackendConfig struct {
	BaseURL   string        `envconfig:"QUOTEFLOW_BACKEND_BASE_URL" required:"true"`
	Timeout   time.Duration `envconfig:"QUOTEFLOW_BACKEND_TIMEOUT" default:"15s"`
	RateLimit float64       `envconfig:"QUOTEFLOW_BACKEND_RATE_LIMIT" default:"20"`
	RateBurst int           `envconfig:"QUOTEFLOW_BACKEND_RATE_BURST" default:"40"`
}

type GatewayConfig struct {
	Kind     string        `envconfig:"QUOTEFLOW_GATEWAY_KIND" default:"hosted_form"`
	URL      string        `envconfig:"QUOTEFLOW_GATEWAY_URL"`
	Token    string        `envconfig:"QUOTEFLOW_GATEWAY_TOKEN"`
	Currency string        `envconfig:"QUOTEFLOW_GATEWAY_CURRENCY" default:"USD"`
	Timeout  time.Duration `envconfig:"QUOTEFLOW_GATEWAY_TIMEOUT" default:"30s"`
}

// NormalizedKind returns the configured gateway kind, defaulting to the hosted form adapter.
func (g GatewayConfig) NormalizedKind() string {
	kind := strings.TrimSpace(strings.ToLower(g.Kind))
	if kind == "" {
		return GatewayHostedForm
	}
	return kind
}

func (g GatewayConfig) validate() error {
	switch g.NormalizedKind() {
	case GatewayHostedForm:
		if strings.TrimSpace(g.URL) == "" {
			return fmt.Errorf("%s is required for the %s gateway", EnvGatewayURL, GatewayHostedForm)
		}
		if strings.TrimSpace(g.Token) == "" {
			return fmt.Errorf("%s is required for the %s gateway", EnvGatewayToken, GatewayHostedForm)
		}
		return nil
	case GatewaySquare:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvGatewayKind, GatewayHostedForm, GatewaySquare)
	}
}

type SquareConfig struct {
	AccessToken string `envconfig:"QUOTEFLOW_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"QUOTEFLOW_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"QUOTEFLOW_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type DBConfig struct {
	DSN    string `envconfig:"QUOTEFLOW_DB_DSN"`
	Driver string `envconfig:"QUOTEFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"QUOTEFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"QUOTEFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"QUOTEFLOW_DB_USER"`
	LegacyPassword string `envconfig:"QUOTEFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"QUOTEFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"QUOTEFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"QUOTEFLOW_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"QUOTEFLOW_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"QUOTEFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"QUOTEFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the journal runs on the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"QUOTEFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"QUOTEFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"QUOTEFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"QUOTEFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"QUOTEFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"QUOTEFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"QUOTEFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"QUOTEFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"QUOTEFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies the session tokens minted by the upstream auth service.
type JWTConfig struct {
	Secret            string `envconfig:"QUOTEFLOW_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"QUOTEFLOW_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"QUOTEFLOW_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FlowConfig struct {
	TTL             time.Duration `envconfig:"QUOTEFLOW_FLOW_TTL" default:"2h"`
	VINDebounce     time.Duration `envconfig:"QUOTEFLOW_VIN_DEBOUNCE" default:"500ms"`
	CatalogCacheTTL time.Duration `envconfig:"QUOTEFLOW_CATALOG_CACHE_TTL" default:"10m"`
	ActionLockTTL   time.Duration `envconfig:"QUOTEFLOW_ACTION_LOCK_TTL" default:"45s"`
}

// ReportsConfig drives the unrecorded charge report worker.
type ReportsConfig struct {
	Interval  time.Duration `envconfig:"QUOTEFLOW_REPORT_INTERVAL" default:"15m"`
	BatchSize int           `envconfig:"QUOTEFLOW_REPORT_BATCH_SIZE" default:"100"`
	LockTTL   time.Duration `envconfig:"QUOTEFLOW_REPORT_LOCK_TTL" default:"10m"`
}

// RateLimitConfig throttles the anonymous shared-quote endpoints.
type RateLimitConfig struct {
	PublicWindow     time.Duration `envconfig:"QUOTEFLOW_PUBLIC_RATE_WINDOW" default:"1m"`
	PublicIPLimit    int           `envconfig:"QUOTEFLOW_PUBLIC_RATE_IP_LIMIT" default:"30"`
	PublicEmailLimit int           `envconfig:"QUOTEFLOW_PUBLIC_RATE_EMAIL_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"QUOTEFLOW_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	if db.IsSQLite() {
		db.DSN = "file:quoteflow.db?cache=shared"
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
