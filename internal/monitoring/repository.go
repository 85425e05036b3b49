// Package monitoring persists discovery results as monitoring-history rows
// and assembles the network snapshot served to home-automation pollers.
package monitoring

import "errors"

// ListOptions controls pagination for list queries.
type ListOptions struct {
	Limit     int    // Max results per page (default 50, max 1000).
	Offset    int    // Number of results to skip.
	SortOrder string // "asc" or "desc" (default "desc").
}

// ListResult wraps a paginated result set with a total count.
type ListResult[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// normalizeListOptions applies defaults and caps to list options.
func normalizeListOptions(opts ListOptions) ListOptions {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.SortOrder != "asc" {
		opts.SortOrder = "desc"
	}
	return opts
}

// orderDirection renders a normalized sort order as SQL.
func orderDirection(opts ListOptions) string {
	if opts.SortOrder == "asc" {
		return "ASC"
	}
	return "DESC"
}
