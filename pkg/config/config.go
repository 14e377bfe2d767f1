package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Password  PasswordConfig
	Checkout  CheckoutConfig
	Paymob    PaymobConfig
	SMS       SMSConfig
	OTP       OTPConfig
	RateLimit RateLimitConfig
	Features  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CRUMBS_APP_ENV" required:"true"`
	Port         string `envconfig:"CRUMBS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CRUMBS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CRUMBS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CRUMBS_DB_DSN"`
	Driver string `envconfig:"CRUMBS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CRUMBS_DB_HOST"`
	LegacyPort     int    `envconfig:"CRUMBS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CRUMBS_DB_USER"`
	LegacyPassword string `envconfig:"CRUMBS_DB_PASSWORD"`
	LegacyName     string `envconfig:"CRUMBS_DB_NAME"`
	LegacySSLMode  string `envconfig:"CRUMBS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CRUMBS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CRUMBS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CRUMBS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CRUMBS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CRUMBS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CRUMBS_REDIS_ADDR"`
	Password     string        `envconfig:"CRUMBS_REDIS_PASSWORD"`
	DB           int           `envconfig:"CRUMBS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CRUMBS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CRUMBS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CRUMBS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CRUMBS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CRUMBS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CRUMBS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CRUMBS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CRUMBS_JWT_EXPIRATION_MINUTES" default:"720"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CRUMBS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CRUMBS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CRUMBS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CRUMBS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CRUMBS_ARGON_KEY_LEN" default:"32"`
}

// Delivery fee and cancellation window live in site_settings, not env;
// admins change them at runtime.
type CheckoutConfig struct {
	IdempotencyTTL time.Duration `envconfig:"CRUMBS_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
}

type PaymobConfig struct {
	BaseURL       string        `envconfig:"CRUMBS_PAYMOB_BASE_URL" default:"https://accept.paymob.com/api"`
	APIKey        string        `envconfig:"CRUMBS_PAYMOB_API_KEY"`
	IntegrationID string        `envconfig:"CRUMBS_PAYMOB_INTEGRATION_ID"`
	Currency      string        `envconfig:"CRUMBS_PAYMOB_CURRENCY" default:"EGP"`
	Timeout       time.Duration `envconfig:"CRUMBS_PAYMOB_TIMEOUT" default:"15s"`
}

type SMSConfig struct {
	BaseURL  string        `envconfig:"CRUMBS_SMS_BASE_URL"`
	Token    string        `envconfig:"CRUMBS_SMS_TOKEN"`
	Sender   string        `envconfig:"CRUMBS_SMS_SENDER" default:"Crumbs"`
	Timeout  time.Duration `envconfig:"CRUMBS_SMS_TIMEOUT" default:"10s"`
	Disabled bool          `envconfig:"CRUMBS_SMS_DISABLED" default:"false"`
}

type OTPConfig struct {
	TTL         time.Duration `envconfig:"CRUMBS_OTP_TTL" default:"5m"`
	SendWindow  time.Duration `envconfig:"CRUMBS_OTP_SEND_WINDOW" default:"1m"`
	SendLimit   int           `envconfig:"CRUMBS_OTP_SEND_LIMIT" default:"3"`
	CodeDigits  int           `envconfig:"CRUMBS_OTP_CODE_DIGITS" default:"6"`
	MaxAttempts int           `envconfig:"CRUMBS_OTP_MAX_ATTEMPTS" default:"5"`
}

type RateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"CRUMBS_LOGIN_RATE_WINDOW" default:"10m"`
	LoginIPLimit    int           `envconfig:"CRUMBS_LOGIN_RATE_IP_LIMIT" default:"20"`
	LoginEmailLimit int           `envconfig:"CRUMBS_LOGIN_RATE_EMAIL_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CRUMBS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CRUMBS_AUTO_MIGRATE" default:"false"`
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
