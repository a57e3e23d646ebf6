package utils

import (
	"os"
	"strconv"

	"github.com/yungbote/adapta-backend/internal/logger"
)

func GetEnv(log *logger.Logger, key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	if log != nil {
		log.Debug("Env var not set, using fallback", "key", key, "fallback", fallback)
	}
	return fallback
}

func GetEnvAsInt(log *logger.Logger, key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		if log != nil {
			log.Warn("Env var is not a valid int, using fallback", "key", key, "value", raw, "fallback", fallback)
		}
		return fallback
	}
	return parsed
}
