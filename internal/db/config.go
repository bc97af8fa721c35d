package db

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config selects the catalog database. Postgres is the production driver;
// sqlite serves local runs and tests.
type Config struct {
	Driver     string
	SQLitePath string

	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// DSN wins over the individual fields.
	DSN string

	// MaxConns bounds the pgx pool used for COPY imports.
	MaxConns int32
}

// FromEnv reads DB_DRIVER, SQLITE_PATH, DB_HOST, DB_PORT, DB_USER,
// DB_PASSWORD, DB_NAME, DB_SSLMODE, DB_DSN and DB_POOL_MAX_CONNS.
func FromEnv() Config {
	return Config{
		Driver:     getEnv("DB_DRIVER", DriverPostgres),
		SQLitePath: getEnv("SQLITE_PATH", "calibr8.db"),
		Host:       getEnv("DB_HOST", "localhost"),
		Port:       getEnvInt("DB_PORT", 5432),
		User:       getEnv("DB_USER", "postgres"),
		Password:   os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "calibr8"),
		SSLMode:    getEnv("DB_SSLMODE", "disable"),
		DSN:        os.Getenv("DB_DSN"),
		MaxConns:   int32(getEnvInt("DB_POOL_MAX_CONNS", 4)),
	}
}

func (c Config) IsSQLite() bool { return c.Driver == DriverSQLite }

// ConnString is the postgres:// URL shared by gorm and pgxpool.
func (c Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	return (&url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.DBName,
		RawQuery: q.Encode(),
	}).String()
}

func (c Config) String() string {
	if c.IsSQLite() {
		return "sqlite:" + c.SQLitePath
	}
	if c.DSN != "" {
		return "postgres (DB_DSN)"
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.User, c.Host, c.Port, c.DBName)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
