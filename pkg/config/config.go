package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	Redis      RedisConfig
	DB         DBConfig
	GuestStore GuestStoreConfig
	Session    SessionConfig
	JWT        JWTConfig
	Xano       XanoConfig
	Catalog    CatalogConfig
	CORS       CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.GuestStore.validate(); err != nil {
		return nil, err
	}
	if cfg.GuestStore.UsesSQL() {
		// The SQL guest store dictates which dialect the shared connection speaks.
		cfg.DB.Driver = cfg.GuestStore.NormalizedDriver()
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MLC_APP_ENV" required:"true"`
	Port         string `envconfig:"MLC_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MLC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MLC_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"MLC_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"MLC_REDIS_URL"`
	Address      string        `envconfig:"MLC_REDIS_ADDR"`
	Password     string        `envconfig:"MLC_REDIS_PASSWORD"`
	DB           int           `envconfig:"MLC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MLC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MLC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MLC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MLC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MLC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether enough settings exist to dial Redis.
func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type DBConfig struct {
	DSN    string `envconfig:"MLC_DB_DSN"`
	Driver string `envconfig:"MLC_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MLC_DB_HOST"`
	LegacyPort     int    `envconfig:"MLC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MLC_DB_USER"`
	LegacyPassword string `envconfig:"MLC_DB_PASSWORD"`
	LegacyName     string `envconfig:"MLC_DB_NAME"`
	LegacySSLMode  string `envconfig:"MLC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MLC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MLC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MLC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MLC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// GuestStoreConfig selects where anonymous carts are persisted.
type GuestStoreConfig struct {
	Driver string        `envconfig:"MLC_GUEST_STORE_DRIVER" default:"redis"`
	TTL    time.Duration `envconfig:"MLC_GUEST_CART_TTL" default:"720h"`
}

// UsesSQL reports whether the guest store needs a database connection.
func (g GuestStoreConfig) UsesSQL() bool {
	d := strings.ToLower(strings.TrimSpace(g.Driver))
	return d == GuestStorePostgres || d == GuestStoreSQLite
}

// NormalizedDriver returns the lower-cased driver name.
func (g GuestStoreConfig) NormalizedDriver() string {
	return strings.ToLower(strings.TrimSpace(g.Driver))
}

func (g GuestStoreConfig) validate() error {
	switch g.NormalizedDriver() {
	case GuestStoreRedis, GuestStorePostgres, GuestStoreSQLite, GuestStoreMemory:
		return nil
	}
	return fmt.Errorf("%s must be one of redis, postgres, sqlite, memory (got %q)", EnvGuestStoreDriver, g.Driver)
}

type SessionConfig struct {
	CookieName   string        `envconfig:"MLC_SESSION_COOKIE" default:"mlc_session"`
	CookieSecure bool          `envconfig:"MLC_SESSION_COOKIE_SECURE" default:"true"`
	TTL          time.Duration `envconfig:"MLC_SESSION_TTL" default:"24h"`
	IdleTTL      time.Duration `envconfig:"MLC_SESSION_IDLE_TTL" default:"30m"`
	SweepEvery   time.Duration `envconfig:"MLC_SESSION_SWEEP_INTERVAL" default:"1m"`
}

type JWTConfig struct {
	Secret string `envconfig:"MLC_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"MLC_JWT_ISSUER"`
	// ExpirationMinutes is only used when minting tokens for local tooling.
	ExpirationMinutes int `envconfig:"MLC_JWT_EXPIRATION_MINUTES" default:"1440"`
}

type XanoConfig struct {
	BaseURL string        `envconfig:"MLC_XANO_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"MLC_XANO_TIMEOUT" default:"10s"`
}

type CatalogConfig struct {
	LookupConcurrency int `envconfig:"MLC_CATALOG_LOOKUP_CONCURRENCY" default:"4"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"MLC_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, GuestStoreSQLite) {
		return fmt.Errorf("%s is required for the sqlite guest store", EnvDBDSN)
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
