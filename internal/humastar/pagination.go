package humastar

import "fmt"

// DefaultLimit is the page size used when a request does not name one.
const DefaultLimit = 50

// Pager is implemented by response bodies that carry pagination metadata.
type Pager interface {
	PaginationLinks(basePath string) []string
}

// PageBody is a generic paginated response envelope.
// Any handler returning PageBody[T] gets first/prev/next/last Link headers.
type PageBody[T any] struct {
	Total  int `json:"total" doc:"Total number of items"`
	Offset int `json:"offset" doc:"Current offset"`
	Limit  int `json:"limit" doc:"Page size"`
	Data   []T `json:"data" doc:"Items"`
}

// Paginate slices items into a page. Out-of-range offsets yield an empty
// page; a non-positive limit means DefaultLimit.
func Paginate[T any](items []T, offset, limit int) PageBody[T] {
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset = max(offset, 0)
	start := min(offset, len(items))
	end := min(start+limit, len(items))
	data := make([]T, end-start)
	copy(data, items[start:end])
	return PageBody[T]{Total: len(items), Offset: offset, Limit: limit, Data: data}
}

// PaginationLinks returns RFC 8288 Link header values for pagination rels.
func (p PageBody[T]) PaginationLinks(basePath string) []string {
	if p.Limit <= 0 {
		return nil
	}
	link := func(offset int, rel string) string {
		return fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="%s"`, basePath, offset, p.Limit, rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, link(p.Offset+p.Limit, "next"))
	}
	lastOffset := max(((p.Total-1)/p.Limit)*p.Limit, 0)
	return append(links, link(lastOffset, "last"))
}
