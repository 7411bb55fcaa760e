package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config - semua setting aplikasi, dibaca sekali waktu start
type Config struct {
	AppEnv   string
	AppHost  string
	AppPort  string
	LogLevel string

	DB    Database
	Redis Redis

	RabbitMQURL string
	JWTSecret   string

	BasicAuthUser string
	BasicAuthPass string

	Timezone  string
	OpenTime  string
	CloseTime string

	ArchivePath string
	Store       string

	// akun admin bawaan untuk STORE=memory (tanpa tabel users)
	AdminEmail    string
	AdminPassword string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Info(".env tidak ditemukan, pakai env system")
	}
}

func GetEnv(key string, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// Load reads .env (if present) and the process environment, then validates.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads the environment without validating it. Commands that only need
// part of the config (migrate, --help) use it so unrelated bad values do not
// stop them.
func Parse() (*Config, error) {
	LoadEnv()

	redisDB, err := strconv.Atoi(GetEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, errors.Wrap(err, "REDIS_DB")
	}

	cfg := &Config{
		AppEnv:   GetEnv("APP_ENV", "development"),
		AppHost:  GetEnv("APP_HOST", ""),
		AppPort:  GetEnv("APP_PORT", "8080"),
		LogLevel: GetEnv("LOG_LEVEL", "info"),
		DB: Database{
			Host:     GetEnv("DB_HOST", "127.0.0.1"),
			Port:     GetEnv("DB_PORT", "3306"),
			User:     GetEnv("DB_USER", "root"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     GetEnv("DB_NAME", "loket"),
		},
		Redis: Redis{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		BasicAuthUser: os.Getenv("BASIC_AUTH_USER"),
		BasicAuthPass: os.Getenv("BASIC_AUTH_PASS"),
		Timezone:      GetEnv("QUEUE_TIMEZONE", "Asia/Jakarta"),
		OpenTime:      GetEnv("QUEUE_OPEN_TIME", "08:00:00"),
		CloseTime:     GetEnv("QUEUE_CLOSE_TIME", "16:00:00"),
		ArchivePath:   GetEnv("ARCHIVE_PATH", "data/archive.db"),
		Store:         GetEnv("STORE", "mysql"),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}
	return cfg, nil
}

const clockLayout = "15:04:05"

// Validate checks the values every queue command depends on.
func (c *Config) Validate() error {
	if c.Store != "mysql" && c.Store != "memory" {
		return errors.Errorf("STORE must be mysql or memory, got %q", c.Store)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for key, v := range map[string]string{"QUEUE_OPEN_TIME": c.OpenTime, "QUEUE_CLOSE_TIME": c.CloseTime} {
		// time.Parse menerima jam satu digit ("8:00:00"), jadi cek bentuk persisnya
		t, err := time.Parse(clockLayout, v)
		if err != nil || t.Format(clockLayout) != v {
			return errors.Errorf("%s must be HH:MM:SS, got %q", key, v)
		}
	}
	return nil
}

// Location is the business time zone; token days roll over at its midnight.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "QUEUE_TIMEZONE %q", c.Timezone)
	}
	return loc, nil
}

// OpenClock is OpenTime without seconds, the scheduler's HH:MM.
func (c *Config) OpenClock() string {
	return c.OpenTime[:5]
}

// CloseClock is CloseTime without seconds.
func (c *Config) CloseClock() string {
	return c.CloseTime[:5]
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.AppPort
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
