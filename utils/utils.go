package utils

import (
	"strings"
	"time"
)

// GetCurrentTime returns the current time in UTC, truncated to seconds so that
// it survives a round trip through every supported database.
func GetCurrentTime() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func IsProdEnv() bool {
	return strings.Contains(strings.ToLower(config.Stage), "prod")
}

func AbsInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
