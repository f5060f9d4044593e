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
	DB           DBConfig
	Redis        RedisConfig
	SMTP         SMTPConfig
	Scheduler    SchedulerConfig
	Metrics      MetricsConfig
	Verification VerificationConfig
	Cleanup      CleanupConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"EVENTY_APP_ENV" required:"true"`
	Port         string `envconfig:"EVENTY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"EVENTY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"EVENTY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"EVENTY_DB_DSN"`
	Driver string `envconfig:"EVENTY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"EVENTY_DB_HOST"`
	LegacyPort     int    `envconfig:"EVENTY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"EVENTY_DB_USER"`
	LegacyPassword string `envconfig:"EVENTY_DB_PASSWORD"`
	LegacyName     string `envconfig:"EVENTY_DB_NAME"`
	LegacySSLMode  string `envconfig:"EVENTY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"EVENTY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"EVENTY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"EVENTY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"EVENTY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"EVENTY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"EVENTY_REDIS_ADDR"`
	Password     string        `envconfig:"EVENTY_REDIS_PASSWORD"`
	DB           int           `envconfig:"EVENTY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"EVENTY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"EVENTY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"EVENTY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"EVENTY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"EVENTY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type SMTPConfig struct {
	Host        string        `envconfig:"EVENTY_SMTP_HOST" required:"true"`
	Port        int           `envconfig:"EVENTY_SMTP_PORT" default:"587"`
	User        string        `envconfig:"EVENTY_SMTP_USER"`
	Password    string        `envconfig:"EVENTY_SMTP_PASS"`
	From        string        `envconfig:"EVENTY_EMAIL_FROM" default:"hello@web-events-two.vercel.app"`
	SendTimeout time.Duration `envconfig:"EVENTY_SMTP_SEND_TIMEOUT" default:"30s"`
}

type SchedulerConfig struct {
	Timezone        string        `envconfig:"EVENTY_TIMEZONE" default:"Africa/Cairo"`
	DispatchTimeout time.Duration `envconfig:"EVENTY_DISPATCH_TIMEOUT" default:"30s"`
	MaxAttempts     int           `envconfig:"EVENTY_DISPATCH_MAX_ATTEMPTS" default:"1"`
	RetryDelay      time.Duration `envconfig:"EVENTY_DISPATCH_RETRY_DELAY" default:"5s"`
}

type MetricsConfig struct {
	// Port serves the prometheus scrape endpoint on worker processes;
	// the api serves /metrics on its own listener.
	Port string `envconfig:"EVENTY_METRICS_PORT" default:"9100"`
}

type VerificationConfig struct {
	CodeTTL time.Duration `envconfig:"EVENTY_VERIFICATION_CODE_TTL" default:"10m"`
}

type CleanupConfig struct {
	Interval time.Duration `envconfig:"EVENTY_CLEANUP_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"EVENTY_CLEANUP_LOCK_TTL" default:"55m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"EVENTY_AUTO_MIGRATE" default:"false"`
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
