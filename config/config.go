// Package config - configuration management для приложений на sessionkit.
//
// Использует Viper для:
// - Загрузки из YAML файлов
// - Переменных окружения
// - Значений по умолчанию
//
// Порядок приоритета (от высшего к низшему):
// 1. Environment variables
// 2. Config file
// 3. Default values
//
// Структурная валидация - через go-playground/validator (теги validate),
// кросс-полевые правила - в Config.Validate.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Haleralex/sessionkit/session"
)

// validate - общий инстанс валидатора структур.
var validate = validator.New()

// ============================================
// Main Configuration
// ============================================

// Config - главная структура конфигурации приложения.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Session  SessionConfig  `mapstructure:"session"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Log      LogConfig      `mapstructure:"log"`
}

// ============================================
// App Configuration
// ============================================

// AppConfig - конфигурация приложения.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment" validate:"omitempty,oneof=development staging production test"`
	Debug       bool   `mapstructure:"debug"`
}

// IsDevelopment возвращает true если окружение development.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction возвращает true если окружение production.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// ============================================
// Server Configuration
// ============================================

// ServerConfig - конфигурация HTTP сервера.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address возвращает полный адрес сервера.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ============================================
// Database Configuration
// ============================================

// DatabaseConfig - конфигурация базы данных.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            int           `mapstructure:"port" validate:"omitempty,gte=1,lte=65535"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	MaxConnections  int32         `mapstructure:"max_connections" validate:"omitempty,gte=1"`
	MinConnections  int32         `mapstructure:"min_connections" validate:"gte=0"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// DSN возвращает строку подключения к PostgreSQL.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}

// ============================================
// Session Configuration
// ============================================

// SessionConfig - настройки сессионного слоя.
type SessionConfig struct {
	// Уровень изоляции read-only сессий. Пустая строка - сессия без
	// собственной транзакции.
	ReadIsolation string `mapstructure:"read_isolation"`
	// Уровень изоляции unit of work. Пустая строка - serializable.
	UnitOfWorkIsolation string `mapstructure:"unit_of_work_isolation"`
}

// ReadLevel парсит уровень изоляции read-only сессий.
func (c *SessionConfig) ReadLevel() (session.IsolationLevel, error) {
	return session.ParseIsolation(c.ReadIsolation)
}

// UnitOfWorkLevel парсит уровень изоляции unit of work. Непроставленный
// уровень поднимается до serializable.
func (c *SessionConfig) UnitOfWorkLevel() (session.IsolationLevel, error) {
	level, err := session.ParseIsolation(c.UnitOfWorkIsolation)
	if err != nil {
		return session.LevelUnspecified, err
	}
	if level == session.LevelUnspecified {
		return session.LevelSerializable, nil
	}
	return level, nil
}

// ============================================
// Outbox Configuration
// ============================================

// OutboxConfig - конфигурация transactional outbox relay.
type OutboxConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
}

// ============================================
// NATS Configuration
// ============================================

// NATSConfig - конфигурация подключения к NATS.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// ============================================
// Log Configuration
// ============================================

// LogConfig - конфигурация логирования.
type LogConfig struct {
	Level     string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format    string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	Output    string `mapstructure:"output" validate:"omitempty,oneof=stdout stderr"`
	AddSource bool   `mapstructure:"add_source"`
}

// ============================================
// Configuration Loading
// ============================================

// Load загружает конфигурацию из файла и переменных окружения.
//
// configPath - путь к директории с конфигурацией (например, "configs")
// configName - имя файла конфигурации без расширения (например, "config")
//
// Поддерживаемые форматы: yaml, json, toml
func Load(configPath, configName string) (*Config, error) {
	v := viper.New()

	// Устанавливаем defaults
	setDefaults(v)

	// Настраиваем Viper
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/sessionkit")

	// Переменные окружения
	v.SetEnvPrefix("SESSIONKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Читаем конфигурационный файл
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Файл не найден - используем defaults и env vars
	}

	// Парсим в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Валидируем конфигурацию
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv загружает конфигурацию только из переменных окружения.
func LoadFromEnv() (*Config, error) {
	v := viper.New()

	// Устанавливаем defaults
	setDefaults(v)

	// Переменные окружения
	v.SetEnvPrefix("SESSIONKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars
	bindEnvVars(v)

	// Парсим в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Валидируем конфигурацию
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults устанавливает значения по умолчанию.
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "sessionkit")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", true)

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.database", "sessionkit")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Session defaults
	v.SetDefault("session.read_isolation", "")
	v.SetDefault("session.unit_of_work_isolation", "serializable")

	// Outbox defaults
	v.SetDefault("outbox.enabled", false)
	v.SetDefault("outbox.poll_interval", "1s")
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_attempts", 5)
	v.SetDefault("outbox.subject_prefix", "sessionkit")

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 60)
	v.SetDefault("nats.reconnect_wait", "2s")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.add_source", false)
}

// bindEnvVars привязывает переменные окружения.
func bindEnvVars(v *viper.Viper) {
	// Database (обычно передаётся через env в production)
	_ = v.BindEnv("database.host", "SESSIONKIT_DATABASE_HOST", "DB_HOST")
	_ = v.BindEnv("database.port", "SESSIONKIT_DATABASE_PORT", "DB_PORT")
	_ = v.BindEnv("database.user", "SESSIONKIT_DATABASE_USER", "DB_USER")
	_ = v.BindEnv("database.password", "SESSIONKIT_DATABASE_PASSWORD", "DB_PASSWORD")
	_ = v.BindEnv("database.database", "SESSIONKIT_DATABASE_DATABASE", "DB_NAME")

	// NATS
	_ = v.BindEnv("nats.url", "SESSIONKIT_NATS_URL", "NATS_URL")

	// Server
	_ = v.BindEnv("server.port", "SESSIONKIT_SERVER_PORT", "PORT")

	// App
	_ = v.BindEnv("app.environment", "SESSIONKIT_APP_ENVIRONMENT", "ENVIRONMENT", "ENV")
}

// ============================================
// Configuration Validation
// ============================================

// Validate валидирует конфигурацию.
func (c *Config) Validate() error {
	// Структурные правила - теги validate
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Уровни изоляции сессий
	if _, err := c.Session.ReadLevel(); err != nil {
		return fmt.Errorf("invalid session.read_isolation: %w", err)
	}
	if _, err := c.Session.UnitOfWorkLevel(); err != nil {
		return fmt.Errorf("invalid session.unit_of_work_isolation: %w", err)
	}

	// Outbox relay без брокера и расписания не работает
	if c.Outbox.Enabled {
		if c.Outbox.PollInterval <= 0 {
			return fmt.Errorf("outbox poll interval must be positive")
		}
		if c.Outbox.BatchSize <= 0 {
			return fmt.Errorf("outbox batch size must be positive")
		}
		if c.NATS.URL == "" {
			return fmt.Errorf("nats url is required when outbox is enabled")
		}
	}

	// Проверяем критичные настройки в production
	if c.App.IsProduction() {
		if c.App.Debug {
			return fmt.Errorf("debug must be disabled in production")
		}

		if c.Database.SSLMode == "disable" {
			// Warning, но не error
			// В реальном приложении можно добавить логирование
		}
	}

	return nil
}

// ============================================
// Development Helpers
// ============================================

// Development возвращает конфигурацию для разработки.
func Development() *Config {
	return &Config{
		App: AppConfig{
			Name:        "sessionkit",
			Version:     "dev",
			Environment: "development",
			Debug:       true,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "postgres",
			Database:        "sessionkit",
			SSLMode:         "disable",
			MaxConnections:  10,
			MinConnections:  2,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
		Session: SessionConfig{
			ReadIsolation:       "",
			UnitOfWorkIsolation: "serializable",
		},
		Outbox: OutboxConfig{
			Enabled:       false,
			PollInterval:  time.Second,
			BatchSize:     100,
			MaxAttempts:   5,
			SubjectPrefix: "sessionkit",
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			MaxReconnects: 60,
			ReconnectWait: 2 * time.Second,
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Test возвращает конфигурацию для тестов.
func Test() *Config {
	cfg := Development()
	cfg.App.Environment = "test"
	cfg.Database.Database = "sessionkit_test"
	cfg.Log.Level = "error" // Меньше шума в тестах
	return cfg
}
