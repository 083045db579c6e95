package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config содержит настройки приложения
type Config struct {
	DBHost         string        // Хост базы данных
	DBPort         string        // Порт базы данных
	DBUser         string        // Пользователь базы данных
	DBPassword     string        // Пароль базы данных
	DBName         string        // Имя базы данных
	DBMaxOpenConns     int           // Размер пула соединений для счетов и пользователей
	LedgerMaxOpenConns int           // Размер отдельного пула журнала
	StorageDriver      string        // postgres или memory
	LockTimeout        time.Duration // Ожидание блокировки строки счета
	SubmitTimeout      time.Duration // Предельное время одной операции, по умолчанию 3*LockTimeout
	JWTSecret          string        // Секрет для JWT
	TokenExpiry        time.Duration // Время жизни токена
	HTTPAddr           string
	LogLevel           logrus.Level
	ReconcileCron      string        // Расписание сверки журнала
	ReconcileAfter     time.Duration // Возраст PENDING записи, после которого она считается зависшей
	OpsEmail           string        // Получатель отчетов о сверке
	AdminEmails        []string
	PGPKeyPath         string // Ключ подписи выписок, пусто - без подписи
	SMTP               SMTPConfig
}

// SMTPConfig настройки почтового сервера
type SMTPConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	Enabled            bool
	InsecureSkipVerify bool
}

// LoadConfig загружает конфигурацию из .env файла и окружения
func LoadConfig() (*Config, error) {
	// Загружаем переменные окружения из .env файла
	if err := godotenv.Load(); err != nil {
		logrus.Warn("Файл .env не найден")
	}

	lockTimeout, err := getDuration("LOCK_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	expiry, err := getDuration("TOKEN_EXPIRY", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	reconcileAfter, err := getDuration("RECONCILE_AFTER", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 20)
	if err != nil {
		return nil, err
	}
	ledgerMaxOpen, err := getInt("LEDGER_MAX_OPEN_CONNS", 10)
	if err != nil {
		return nil, err
	}
	submitTimeout, err := getDuration("SUBMIT_TIMEOUT", 3*lockTimeout)
	if err != nil {
		return nil, err
	}
	smtpPort, err := getInt("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("неверный LOG_LEVEL: %w", err)
	}

	driver := getEnv("STORAGE_DRIVER", StorageDriverPostgres)
	if driver != StorageDriverPostgres && driver != StorageDriverMemory {
		return nil, fmt.Errorf("неизвестный STORAGE_DRIVER: %s", driver)
	}
	if lockTimeout <= 0 {
		return nil, fmt.Errorf("LOCK_TIMEOUT должен быть положительным")
	}
	if submitTimeout < lockTimeout {
		return nil, fmt.Errorf("SUBMIT_TIMEOUT не может быть меньше LOCK_TIMEOUT")
	}
	if maxOpen < 1 || ledgerMaxOpen < 1 {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS и LEDGER_MAX_OPEN_CONNS должны быть положительными")
	}

	// Создаем объект конфигурации
	config := &Config{
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBUser:             getEnv("DB_USER", "postgres"),
		DBPassword:         getEnv("DB_PASSWORD", "postgres"),
		DBName:             getEnv("DB_NAME", "smartbank"),
		DBMaxOpenConns:     maxOpen,
		LedgerMaxOpenConns: ledgerMaxOpen,
		StorageDriver:      driver,
		LockTimeout:        lockTimeout,
		SubmitTimeout:      submitTimeout,
		JWTSecret:          getEnv("JWT_SECRET", "default-secret-key"),
		TokenExpiry:        expiry,
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		LogLevel:           level,
		ReconcileCron:      getEnv("RECONCILE_CRON", "*/5 * * * *"),
		ReconcileAfter:     reconcileAfter,
		OpsEmail:           os.Getenv("OPS_EMAIL"),
		AdminEmails:        splitList(os.Getenv("ADMIN_EMAILS")),
		PGPKeyPath:         os.Getenv("PGP_KEY_PATH"),
		SMTP: SMTPConfig{
			Host:               getEnv("SMTP_HOST", "smtp.example.com"),
			Port:               smtpPort,
			User:               os.Getenv("SMTP_USER"),
			Password:           os.Getenv("SMTP_PASSWORD"),
			Enabled:            getEnv("SMTP_ENABLED", "false") == "true",
			InsecureSkipVerify: getEnv("SMTP_INSECURE_SKIP_VERIFY", "false") == "true",
		},
	}

	return config, nil
}

// DSN строка подключения к PostgreSQL
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("неверное значение %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("неверное значение %s: %w", key, err)
	}
	return n, nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
