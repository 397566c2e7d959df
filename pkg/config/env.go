package config

const EnvPrefix = "MLC"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	GuestStoreRedis    = "redis"
	GuestStorePostgres = "postgres"
	GuestStoreSQLite   = "sqlite"
	GuestStoreMemory   = "memory"
)

const (
	EnvAppEnv           = "MLC_APP_ENV"
	EnvPort             = "MLC_APP_PORT"
	EnvRedisURL         = "MLC_REDIS_URL"
	EnvDBDSN            = "MLC_DB_DSN"
	EnvDBHost           = "MLC_DB_HOST"
	EnvDBUser           = "MLC_DB_USER"
	EnvDBName           = "MLC_DB_NAME"
	EnvGuestStoreDriver = "MLC_GUEST_STORE_DRIVER"
	EnvJWTSecret        = "MLC_JWT_SECRET"
	EnvXanoBaseURL      = "MLC_XANO_BASE_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
