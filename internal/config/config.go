package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port     string
	DBDriver string
	DBUrl    string

	BotToken    string
	BotUsername string
	LinkBase    string
	Timezone    string

	ReferralReward    decimal.Decimal
	MinimumWithdrawal decimal.Decimal
	BonusMin          int
	BonusMax          int

	JWTSecret            string
	OperatorPasswordHash string

	LogLevel string
	LogFile  string

	RateLimit float64
	RateBurst int
}

func LoadConfig() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, using environment and defaults")
	}

	cfg := Config{
		Port:     getEnv("PORT", "8080"),
		DBDriver: strings.ToLower(getEnv("DB_DRIVER", "memory")),
		DBUrl:    os.Getenv("DB_URL"),

		BotToken:    os.Getenv("BOT_TOKEN"),
		BotUsername: strings.TrimPrefix(os.Getenv("BOT_USERNAME"), "@"),
		LinkBase:    getEnv("LINK_BASE", "https://t.me/"),
		Timezone:    getEnv("TIMEZONE", "UTC"),

		ReferralReward:    getDecimal("REFERRAL_REWARD", decimal.NewFromInt(15)),
		MinimumWithdrawal: getDecimal("MINIMUM_WITHDRAWAL", decimal.NewFromInt(150)),
		BonusMin:          getInt("BONUS_MIN", 5),
		BonusMax:          getInt("BONUS_MAX", 20),

		JWTSecret:            os.Getenv("JWT_SECRET"),
		OperatorPasswordHash: os.Getenv("OPERATOR_PASSWORD_HASH"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),

		RateLimit: getFloat("RATE_LIMIT", 10),
		RateBurst: getInt("RATE_BURST", 20),
	}

	if cfg.BonusMin > cfg.BonusMax {
		log.Printf("BONUS_MIN %d is above BONUS_MAX %d, swapping", cfg.BonusMin, cfg.BonusMax)
		cfg.BonusMin, cfg.BonusMax = cfg.BonusMax, cfg.BonusMin
	}
	// A bonus must credit at least one unit.
	if cfg.BonusMin < 1 {
		log.Printf("BONUS_MIN %d is below 1, using 1", cfg.BonusMin)
		cfg.BonusMin = 1
	}
	if cfg.BonusMax < cfg.BonusMin {
		log.Printf("BONUS_MAX %d is below BONUS_MIN %d, using %d", cfg.BonusMax, cfg.BonusMin, cfg.BonusMin)
		cfg.BonusMax = cfg.BonusMin
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		log.Printf("invalid %s=%q, using %v", key, raw, fallback)
		return fallback
	}
	return v
}

// getDecimal rejects non-positive values; rewards and thresholds below one
// unit of credit make no sense.
func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !v.IsPositive() {
		log.Printf("invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return v
}
