package env

import (
	"os"
	"strconv"
	"strings"
)

// String returns the value of the environment variable or the default.
func String(name string, defaultValue string) string {
	if value, ok := os.LookupEnv(name); ok {
		return value
	}
	return defaultValue
}

// Int returns the integer value of the environment variable or the default.
// Unparseable values fall back to the default.
func Int(name string, defaultValue int) int {
	if value, ok := os.LookupEnv(name); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Bool returns the boolean value of the environment variable or the default.
func Bool(name string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(name); ok {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

// Float64 returns the float value of the environment variable or the default.
func Float64(name string, defaultValue float64) float64 {
	if value, ok := os.LookupEnv(name); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
