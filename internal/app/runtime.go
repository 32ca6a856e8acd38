package app

import (
	"log/slog"
	"os"
	"strconv"
)

// testModeEnv makes the binaries exit before dialing Postgres or Redis.
const testModeEnv = "COMPANYOS_TEST_MODE"

// InTestMode reports whether COMPANYOS_TEST_MODE holds a true value.
// Malformed values read as false.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(testModeEnv))
	return err == nil && on
}

// SkipStartup logs and returns true when component should not start.
func SkipStartup(logger *slog.Logger, component string) bool {
	if !InTestMode() {
		return false
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("test mode detected, skipping startup", slog.String("component", component))
	return true
}
