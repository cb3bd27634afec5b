// Package config читает настройки приложения из окружения и .env.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	AI       AIConfig
	Admin    AdminConfig
	Budget   BudgetConfig
	Events   EventsConfig
	Sentry   SentryConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// DSN возвращает URL подключения для pgx.
func (c DatabaseConfig) DSN() string {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return dsn.String()
}

type AuthConfig struct {
	JWTSecret          string
	JWTIssuer          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
	// TokenPurgeSchedule задает cron-расписание очистки истекших refresh-токенов; пусто = выключено.
	TokenPurgeSchedule string
}

type AIConfig struct {
	Provider           string
	APIKey             string
	BaseURL            string
	Model              string
	Timeout            time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
	MaxOutputTokens    int
	MaxRetries         int
}

// AdminConfig описывает администратора, создаваемого при старте, если его нет.
type AdminConfig struct {
	BootstrapEmail    string
	BootstrapPassword string
	BootstrapName     string
}

type BudgetConfig struct {
	TimeZone         string
	Location         *time.Location
	RolloverEnabled  bool
	RolloverSchedule string
}

// EventsConfig настраивает публикацию событий в RabbitMQ. Пустой URL отключает публикацию.
type EventsConfig struct {
	AMQPURL  string
	Exchange string
	Queue    string
}

type SentryConfig struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
}

// провайдер -> адрес API и модель по умолчанию
var aiDefaults = map[string][2]string{
	"gemini": {"https://generativelanguage.googleapis.com/v1beta", "gemini-1.5-flash"},
	"groq":   {"https://api.groq.com/openai/v1", "llama-3.1-8b-instant"},
}

// Load читает .env (или файл из ENV_FILE), затем окружение. Ошибки разбора
// собираются и возвращаются вместе.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	var env envReader
	cfg := Config{Env: env.str("APP_ENV", "local")}

	cfg.Server = ServerConfig{
		Host:         env.str("SERVER_HOST", "0.0.0.0"),
		Port:         env.positiveInt("SERVER_PORT", 8080),
		ReadTimeout:  env.duration("SERVER_READ_TIMEOUT", 5*time.Second),
		WriteTimeout: env.duration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		IdleTimeout:  env.duration("SERVER_IDLE_TIMEOUT", time.Minute),
		CORSOrigins:  env.list("CORS_ALLOWED_ORIGINS"),
	}

	cfg.Database = DatabaseConfig{
		Host:            env.str("DB_HOST", "localhost"),
		Port:            env.positiveInt("DB_PORT", 5432),
		User:            env.str("DB_USER", "budget"),
		Password:        env.str("DB_PASSWORD", "budget"),
		Name:            env.str("DB_NAME", "daily_budget"),
		SSLMode:         env.str("DB_SSLMODE", "disable"),
		MaxOpenConns:    env.positiveInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    env.positiveInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxIdleTime: env.duration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		ConnMaxLifetime: env.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		AutoMigrate:     env.boolean("DB_AUTO_MIGRATE", true),
	}

	cfg.Auth = AuthConfig{
		JWTSecret:          env.str("JWT_SECRET", ""),
		JWTIssuer:          env.str("JWT_ISSUER", "daily-budget"),
		AccessTokenTTL:     env.duration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTokenTTL:    env.duration("JWT_REFRESH_TTL", 7*24*time.Hour),
		RateLimitPerMinute: env.positiveInt("AUTH_RATE_LIMIT_PER_MINUTE", 60),
		RateLimitBurst:     env.positiveInt("AUTH_RATE_LIMIT_BURST", 10),
		TokenPurgeSchedule: env.optional("JWT_REFRESH_PURGE_SCHEDULE", "30 3 * * *"),
	}

	provider := strings.ToLower(env.str("AI_PROVIDER", "gemini"))
	defaults := aiDefaults[provider]
	apiKey := env.str("AI_API_KEY", "")
	if apiKey == "" && provider == "gemini" {
		apiKey = env.str("GEMINI_API_KEY", "")
	}
	cfg.AI = AIConfig{
		Provider:           provider,
		APIKey:             apiKey,
		BaseURL:            env.str("AI_BASE_URL", defaults[0]),
		Model:              env.str("AI_MODEL", defaults[1]),
		Timeout:            env.duration("AI_TIMEOUT", 20*time.Second),
		RateLimitPerMinute: env.positiveInt("AI_RATE_LIMIT_PER_MINUTE", 30),
		RateLimitBurst:     env.positiveInt("AI_RATE_LIMIT_BURST", 10),
		MaxOutputTokens:    env.positiveInt("AI_MAX_OUTPUT_TOKENS", 4096),
		MaxRetries:         env.integer("AI_MAX_RETRIES", 2),
	}

	cfg.Admin = AdminConfig{
		BootstrapEmail:    strings.ToLower(env.str("ADMIN_BOOTSTRAP_EMAIL", "")),
		BootstrapPassword: os.Getenv("ADMIN_BOOTSTRAP_PASSWORD"),
		BootstrapName:     env.str("ADMIN_BOOTSTRAP_NAME", "Administrator"),
	}

	cfg.Budget = BudgetConfig{
		TimeZone:         env.str("APP_TIMEZONE", "America/Sao_Paulo"),
		RolloverEnabled:  env.boolean("BUDGET_ROLLOVER_ENABLED", true),
		RolloverSchedule: env.str("BUDGET_ROLLOVER_SCHEDULE", "5 0 1 * *"),
	}
	if loc, err := time.LoadLocation(cfg.Budget.TimeZone); err != nil {
		env.fail("APP_TIMEZONE", "a valid IANA zone", err)
	} else {
		cfg.Budget.Location = loc
	}

	cfg.Events = EventsConfig{
		AMQPURL:  env.str("AMQP_URL", ""),
		Exchange: env.str("AMQP_EXCHANGE", "daily-budget.events"),
		Queue:    env.str("AMQP_QUEUE", "daily-budget.ledger"),
	}

	cfg.Sentry = SentryConfig{
		DSN:              env.str("SENTRY_DSN", ""),
		Environment:      env.str("SENTRY_ENVIRONMENT", cfg.Env),
		TracesSampleRate: env.float("SENTRY_TRACES_SAMPLE_RATE", 0),
	}

	if err := errors.Join(env.errs...); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(c.Database.Host != "", "DB_HOST is required")
	check(c.Database.User != "", "DB_USER is required")
	check(c.Database.Name != "", "DB_NAME is required")
	check(c.Database.MaxIdleConns <= c.Database.MaxOpenConns, "DB_MAX_IDLE_CONNS cannot exceed DB_MAX_OPEN_CONNS")
	check(c.Auth.JWTSecret != "", "JWT_SECRET is required")
	check(c.AI.MaxRetries >= 0, "AI_MAX_RETRIES must not be negative")
	check(c.Admin.BootstrapEmail == "" || len(c.Admin.BootstrapPassword) >= 6,
		"ADMIN_BOOTSTRAP_PASSWORD must be at least 6 characters")
	check(!c.Budget.RolloverEnabled || c.Budget.RolloverSchedule != "",
		"BUDGET_ROLLOVER_SCHEDULE is required when rollover is enabled")
	check(c.Events.AMQPURL == "" || c.Events.Exchange != "", "AMQP_EXCHANGE is required when AMQP_URL is set")
	check(c.Sentry.TracesSampleRate >= 0 && c.Sentry.TracesSampleRate <= 1,
		"SENTRY_TRACES_SAMPLE_RATE must be between 0 and 1")

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// envReader читает переменные и копит ошибки разбора, чтобы сообщить обо всех сразу.
type envReader struct {
	errs []error
}

func (r *envReader) fail(key, want string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s must be %s: %w", key, want, err))
}

// lookup возвращает значение без пробелов по краям; пустое значение считается отсутствующим.
func (r *envReader) lookup(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}

func (r *envReader) str(key, fallback string) string {
	if value, ok := r.lookup(key); ok {
		return value
	}
	return fallback
}

// optional отличает незаданную переменную от явно пустой: пустая отключает настройку.
func (r *envReader) optional(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return strings.TrimSpace(value)
}

func (r *envReader) integer(key string, fallback int) int {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		r.fail(key, "an integer", err)
		return fallback
	}
	return parsed
}

func (r *envReader) positiveInt(key string, fallback int) int {
	parsed := r.integer(key, fallback)
	if parsed <= 0 {
		r.fail(key, "greater than 0", fmt.Errorf("got %d", parsed))
		return fallback
	}
	return parsed
}

func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err == nil && parsed <= 0 {
		err = fmt.Errorf("got %s", value)
	}
	if err != nil {
		r.fail(key, "a positive duration", err)
		return fallback
	}
	return parsed
}

func (r *envReader) boolean(key string, fallback bool) bool {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		r.fail(key, "a boolean", err)
		return fallback
	}
	return parsed
}

func (r *envReader) float(key string, fallback float64) float64 {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.fail(key, "a number", err)
		return fallback
	}
	return parsed
}

// list разбирает список через запятую в нижнем регистре, без пустых элементов.
func (r *envReader) list(key string) []string {
	value, ok := r.lookup(key)
	if !ok {
		return nil
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if item := strings.ToLower(strings.TrimSpace(part)); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func loadEnvFile() error {
	if path := os.Getenv("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}
