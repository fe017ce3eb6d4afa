package util

import (
	"fmt"
	"strings"
	"time"

	iso8601 "github.com/senseyeio/duration"
)

var intervalReference = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseInterval accepts either a Go duration ("15s") or an ISO-8601 duration ("PT15S").
func ParseInterval(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty interval")
	}

	if strings.HasPrefix(strings.ToUpper(value), "P") {
		isoDuration, err := iso8601.ParseISO8601(strings.ToUpper(value))
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 interval %q: %w", value, err)
		}

		return isoDuration.Shift(intervalReference).Sub(intervalReference), nil
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", value, err)
	}

	return duration, nil
}
