package translate

import (
	"fmt"
	"strings"
	"time"
)

// FormatSTACTime formats a time.Time as RFC3339 for STAC.
// STAC uses RFC3339 format: "2023-06-15T14:00:00Z"
func FormatSTACTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseDateTimeInterval parses a STAC datetime parameter which can be:
// - A single RFC3339 datetime: "2023-06-15T14:00:00Z"
// - An open-ended interval: "../2023-06-15T14:00:00Z" or "2023-06-15T14:00:00Z/.."
// - A closed interval: "2023-06-15T14:00:00Z/2023-06-16T14:00:00Z"
// Returns start and end times. Either may be nil for open-ended intervals.
func ParseDateTimeInterval(datetime string) (*time.Time, *time.Time, error) {
	if datetime == "" {
		return nil, nil, nil
	}

	datetime = strings.TrimSpace(datetime)

	if !strings.Contains(datetime, "/") {
		// Single datetime - use as both start and end
		t, err := time.Parse(time.RFC3339, datetime)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid datetime format: %w", err)
		}
		return &t, &t, nil
	}

	parts := strings.Split(datetime, "/")
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("invalid datetime interval format: must be 'start/end'")
	}

	startStr := strings.TrimSpace(parts[0])
	endStr := strings.TrimSpace(parts[1])

	var start, end *time.Time

	if startStr != "" && startStr != ".." {
		t, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid start datetime: %w", err)
		}
		start = &t
	}

	if endStr != "" && endStr != ".." {
		t, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid end datetime: %w", err)
		}
		end = &t
	}

	return start, end, nil
}
