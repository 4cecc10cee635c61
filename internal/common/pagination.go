package common

import (
	"net/http"
	"strconv"
)

// MaxPerPage bounds the page size a client may request.
const MaxPerPage = 100

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination reads page and per_page (or limit) from the query.
// Invalid values fall back to page 1 and defaultPerPage.
func ParsePagination(r *http.Request, defaultPerPage int) Pagination {
	q := r.URL.Query()
	p := Pagination{Page: positive(q.Get("page"), 1), PerPage: defaultPerPage}
	size := q.Get("per_page")
	if size == "" {
		size = q.Get("limit")
	}
	p.PerPage = positive(size, defaultPerPage)
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// Window records total and returns the [start, end) slice bounds of the page.
func (p *Pagination) Window(total int) (start, end int) {
	p.TotalItems = total
	start = (p.Page - 1) * p.PerPage
	if start > total {
		start = total
	}
	end = start + p.PerPage
	if end > total {
		end = total
	}
	return start, end
}

func positive(raw string, fallback int) int {
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return fallback
}
