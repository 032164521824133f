// Package env reads typed configuration from environment variables. Unset,
// blank or unparsable values yield the caller's fallback.
package env

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func lookup[T any](key string, fallback T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := parse(raw)
	if err != nil {
		return fallback
	}
	return v
}

func Str(key, fallback string) string {
	return lookup(key, fallback, func(s string) (string, error) { return s, nil })
}

func Int(key string, fallback int) int {
	return lookup(key, fallback, strconv.Atoi)
}

func Float(key string, fallback float64) float64 {
	return lookup(key, fallback, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// Duration accepts time.ParseDuration syntax ("90s", "5m").
func Duration(key string, fallback time.Duration) time.Duration {
	return lookup(key, fallback, time.ParseDuration)
}
