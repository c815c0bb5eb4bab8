package fetch

import "context"

// DefaultMaxPages caps how many pages a single history fetch may request.
const DefaultMaxPages = 10

// Paginate walks a cursor-paginated listing. next fetches the page at cursor
// and returns the cursor of the following page and whether more data exists.
// Walking stops at end-of-data, at maxPages, or on the first error.
// It returns the number of pages fetched.
func Paginate[C any](ctx context.Context, maxPages int, start C, next func(ctx context.Context, cursor C) (C, bool, error)) (int, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	cursor := start
	for page := 1; page <= maxPages; page++ {
		nextCursor, more, err := next(ctx, cursor)
		if err != nil {
			return page, err
		}
		if !more {
			return page, nil
		}
		cursor = nextCursor
	}
	return maxPages, nil
}

// DefaultPageSize is the number of records requested per page.
const DefaultPageSize = 100

// Paging bounds a history fetch.
type Paging struct {
	MaxPages int
	PageSize int
}

// WithDefaults fills zero fields with the package defaults.
func (p Paging) WithDefaults() Paging {
	if p.MaxPages <= 0 {
		p.MaxPages = DefaultMaxPages
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	return p
}
