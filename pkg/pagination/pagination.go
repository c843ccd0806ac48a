// Package pagination reads limit/offset query parameters and wraps list
// results in a page envelope.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Params struct {
	Limit  int
	Offset int
}

// FromContext reads ?limit= and ?offset=. Missing or unparsable values
// fall back to the defaults; limit is capped at MaxLimit.
func FromContext(c echo.Context) Params {
	return Params{
		Limit:  clamp(c.QueryParam("limit"), DefaultLimit, 1, MaxLimit),
		Offset: clamp(c.QueryParam("offset"), 0, 0, -1),
	}
}

func clamp(raw string, def, lo, hi int) int {
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo {
		return def
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

// Page is the list envelope every collection endpoint returns. Data is
// never null so clients can iterate without a nil check.
type Page[T any] struct {
	Data       []T  `json:"data"`
	Total      int  `json:"total"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"has_more"`
	NextOffset *int `json:"next_offset,omitempty"`
}

func NewPage[T any](items []T, total int, p Params) *Page[T] {
	if items == nil {
		items = []T{}
	}
	pg := &Page[T]{
		Data:    items,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.Offset+len(items) < total,
	}
	if pg.HasMore {
		next := p.Offset + len(items)
		pg.NextOffset = &next
	}
	return pg
}
