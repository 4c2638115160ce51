package pagination

import (
	"math"
	"net/http"
	"strconv"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100

	// MaxResultWindow matches the index.max_result_window default: from+size
	// may not exceed it in a single index query.
	MaxResultWindow = 10000
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Offset   int `json:"-"`
}

// DefaultParams returns sensible pagination defaults.
func DefaultParams() Params {
	return Params{
		Page:     DefaultPage,
		PageSize: DefaultPageSize,
		Offset:   0,
	}
}

// Normalize replaces non-positive values with the defaults and recomputes
// the offset.
func Normalize(page, pageSize int) Params {
	p := DefaultParams()
	if page > 0 {
		p.Page = page
	}
	if pageSize > 0 {
		p.PageSize = pageSize
	}
	p.Offset = Offset(p.Page, p.PageSize)
	return p
}

// FromRequest extracts pagination parameters from an HTTP request.
func FromRequest(r *http.Request) Params {
	p := DefaultParams()

	if page := r.URL.Query().Get("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 0 {
			p.Page = v
		}
	}

	if size := r.URL.Query().Get("pageSize"); size != "" {
		if v, err := strconv.Atoi(size); err == nil && v > 0 && v <= MaxPageSize {
			p.PageSize = v
		}
	}

	p.Offset = Offset(p.Page, p.PageSize)
	return p
}

// Offset returns the zero-based index of the first item on a 1-based page.
// Offsets that would overflow int saturate at math.MaxInt.
func Offset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/pageSize {
		return math.MaxInt
	}
	return (page - 1) * pageSize
}

// InResultWindow reports whether the page ends within MaxResultWindow.
func InResultWindow(page, pageSize int) bool {
	return Offset(page, pageSize) <= MaxResultWindow-pageSize
}

// Window returns the slice of items that falls on the given page. Pages
// past the end yield an empty, non-nil slice.
func Window[T any](items []T, page, pageSize int) []T {
	start := Offset(page, pageSize)
	if start < 0 || start >= len(items) || pageSize <= 0 {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) || end < start {
		end = len(items)
	}
	return items[start:end]
}
