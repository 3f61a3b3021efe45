package utils

import "strconv"

// ParseLimitOffset normalizes pagination query parameters. The limit is
// clamped to maxLimit so a single request can never pull an unbounded page.
func ParseLimitOffset(limitStr, offsetStr string, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0

	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}
