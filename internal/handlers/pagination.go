package handlers

import (
	"errors"
	"strconv"
)

var errInvalidPagination = errors.New("page and limit must be positive integers")

// parsePaginationParams returns zero for an absent value so the service
// default applies.
func parsePaginationParams(pageStr, limitStr string) (int64, int64, error) {
	var page, limit int64

	if pageStr != "" {
		p, err := strconv.ParseInt(pageStr, 10, 64)
		if err != nil || p < 1 {
			return 0, 0, errInvalidPagination
		}
		page = p
	}

	if limitStr != "" {
		l, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || l < 1 {
			return 0, 0, errInvalidPagination
		}
		limit = l
	}

	return page, limit, nil
}
