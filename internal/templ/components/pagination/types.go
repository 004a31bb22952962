// Package pagination provides the prev/next pager for system lists.
//
// The backend returns pages without a total, so a page that comes back full
// is assumed to have a successor.
package pagination

import (
	"net/url"
	"strconv"
)

// Data contains pagination information for display.
type Data struct {
	Page        int // zero-based
	HasPrevious bool
	HasNext     bool
	PrevURL     string
	NextURL     string
}

// New builds the pager for page (zero-based) of a list requested with
// listSize entries that returned count entries.
func New(baseURL string, page, count, listSize int) Data {
	if page < 0 {
		page = 0
	}
	d := Data{
		Page:        page,
		HasPrevious: page > 0,
		HasNext:     listSize > 0 && count >= listSize,
	}
	if d.HasPrevious {
		d.PrevURL = pageURL(baseURL, page-1)
	}
	if d.HasNext {
		d.NextURL = pageURL(baseURL, page+1)
	}
	return d
}

// Visible reports whether the pager has anything to show.
func (d Data) Visible() bool {
	return d.HasPrevious || d.HasNext
}

// Number is the one-based page number for display.
func (d Data) Number() int {
	return d.Page + 1
}

func pageURL(baseURL string, page int) string {
	if page == 0 {
		return baseURL
	}
	return baseURL + "?" + url.Values{"page": {strconv.Itoa(page)}}.Encode()
}

// ParsePage reads the zero-based page query parameter. Anything that is
// not a non-negative integer is page 0.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
