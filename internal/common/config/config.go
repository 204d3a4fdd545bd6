package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port         int           `env:"PORT" envDefault:"8080"`
		Origin       string        `env:"ORIGIN" envDefault:"http://localhost:3000"`
		ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	}

	Store struct {
		// redis, postgres или memory
		Driver    string        `env:"STORE_DRIVER" envDefault:"redis"`
		Timeout   time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
		TxRetries int           `env:"STORE_TX_RETRIES" envDefault:"50"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Postgres PostgresConfig

	Auth struct {
		JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
		TokenTTL  time.Duration `env:"JWT_TTL" envDefault:"24h"`
		Issuer    string        `env:"JWT_ISSUER" envDefault:"bytebattle"`

		// Почты, которые получают роль admin при регистрации
		AdminEmails []string `env:"ADMIN_EMAILS" envSeparator:","`
	}

	Notifications struct {
		// redis или local
		Queue          string        `env:"NOTIFY_QUEUE" envDefault:"redis"`
		Stream         string        `env:"NOTIFY_STREAM" envDefault:"notifications:events"`
		Group          string        `env:"NOTIFY_GROUP" envDefault:"notification-workers"`
		Consumer       string        `env:"NOTIFY_CONSUMER" envDefault:"worker-1"`
		Workers        int           `env:"NOTIFY_WORKERS" envDefault:"4"`
		PublishTimeout time.Duration `env:"NOTIFY_PUBLISH_TIMEOUT" envDefault:"2s"`
	}

	Lifecycle struct {
		Enabled    bool          `env:"LIFECYCLE_ENABLED" envDefault:"true"`
		Interval   time.Duration `env:"LIFECYCLE_INTERVAL" envDefault:"1m"`
		AutoSettle bool          `env:"LIFECYCLE_AUTO_SETTLE" envDefault:"false"`
	}

	Cache struct {
		TTL time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	}
}

type PostgresConfig struct {
	Host            string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port            int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User            string        `env:"POSTGRES_USER" envDefault:"postgres"`
	Password        string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database        string        `env:"POSTGRES_DB" envDefault:"bytebattle"`
	SSLMode         string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"30m"`
	AutoMigrate     bool          `env:"POSTGRES_AUTO_MIGRATE" envDefault:"true"`
}

// GetDSN собирает строку подключения для lib/pq
func (p PostgresConfig) GetDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: url.Values{"sslmode": {p.SSLMode}}.Encode(),
	}
	return u.String()
}

func Load() (*Config, error) {
	// .env может отсутствовать, в production переменные задаются напрямую
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
