// internal/config/config.go
//
// Environment-driven configuration shared by the HTTP server and the bot.
// main() calls godotenv.Load() first, so a local .env file feeds these values.

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds all runtime settings.
type Config struct {
	Port          string
	LogLevel      string
	LogPretty     bool
	DatabasePath  string
	QuestionsFile string // empty → embedded bank

	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	ClientOrigin   string
	Production     bool

	DailySalt string
	RedisURL  string // empty → leaderboard served from SQLite only

	TelegramToken string
	TelegramDebug bool

	// RandomSeed fixes the 50-50 source for classic games; 0 seeds from the clock.
	RandomSeed int64
}

// Load reads the configuration from environment variables.
func Load() Config {
	return Config{
		Port:           getEnv("PORT", "5175"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogPretty:      getBool("LOG_PRETTY", false),
		DatabasePath:   getEnv("DB_PATH", "./data/quiz.db"),
		QuestionsFile:  os.Getenv("QUESTIONS_FILE"),
		JWTSecret:      getEnv("JWT_SECRET", "dev_secret_change_me"),
		JWTExpiresDays: getInt("JWT_EXPIRES_DAYS", 14),
		CookieName:     getEnv("COOKIE_NAME", "kbc_token"),
		ClientOrigin:   getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		Production:     os.Getenv("NODE_ENV") == "production",
		DailySalt:      getEnv("DAILY_SALT", "local_dev_salt"),
		RedisURL:       os.Getenv("REDIS_URL"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramDebug:  getBool("TELEGRAM_DEBUG", false),
		RandomSeed:     int64(getInt("RANDOM_SEED", 0)),
	}
}

// TokenTTL is the JWT lifetime.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpiresDays) * 24 * time.Hour
}

// SetupLogging applies the level and output format to the global zerolog logger.
func (c Config) SetupLogging() {
	if lvl, err := zerolog.ParseLevel(c.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if c.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-numeric env value")
	}
	return def
}

func getBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
