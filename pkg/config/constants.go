package config

// EnvPrefix is passed to envconfig; variable names carry the full EVENTY_
// prefix in their tags so the prefix stays empty here.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "EVENTY_APP_ENV"
	EnvPort     = "EVENTY_APP_PORT"
	EnvDBDSN    = "EVENTY_DB_DSN"
	EnvDBHost   = "EVENTY_DB_HOST"
	EnvDBUser   = "EVENTY_DB_USER"
	EnvDBName   = "EVENTY_DB_NAME"
	EnvRedisURL = "EVENTY_REDIS_URL"
	EnvSMTPHost = "EVENTY_SMTP_HOST"
	EnvTimezone = "EVENTY_TIMEZONE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
