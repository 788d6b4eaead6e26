package util

import "strconv"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

func Calculate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	from = (page - 1) * size
	return from, size
}

// ClampPage moves a page past the end back onto the last page. An empty result set stays on page 1.
func ClampPage(page, size int, total int64) int {
	if page < 1 {
		return 1
	}
	last := TotalPages(total, size)
	if last == 0 {
		return 1
	}
	if int64(page) > last {
		return int(last)
	}
	return page
}

func TotalPages(total int64, size int) int64 {
	if size <= 0 {
		return 0
	}
	return (total + int64(size) - 1) / int64(size)
}

type Meta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

func NewMeta(page, size int, total int64) Meta {
	pages := TotalPages(total, size)
	return Meta{
		Page:       page,
		PerPage:    size,
		Total:      total,
		TotalPages: pages,
		HasPrev:    page > 1,
		HasNext:    int64(page) < pages,
	}
}

func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
