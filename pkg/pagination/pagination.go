package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts pagination parameters from the echo context.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// Response is the page descriptor list endpoints attach alongside their data.
type Response struct {
	Total          int  `json:"total"`
	Limit          int  `json:"limit"`
	Offset         int  `json:"offset"`
	HasMore        bool `json:"hasMore"`
	HasPrevious    bool `json:"hasPrevious"`
	NextOffset     int  `json:"nextOffset"`
	PreviousOffset int  `json:"previousOffset"`
}

// NewResponse describes the window p covers within total results.
func NewResponse(p Params, total int) Response {
	return Response{
		Total:          total,
		Limit:          p.Limit,
		Offset:         p.Offset,
		HasMore:        p.HasNext(total),
		HasPrevious:    p.HasPrevious(),
		NextOffset:     p.NextOffset(),
		PreviousOffset: p.PreviousOffset(),
	}
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page.
// Returns 0 if the result would be negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}
