package core

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps number and size to sane values.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PageResult is a page of items plus the total count across all pages.
type PageResult[T any] struct {
	Items []T
	Page  Page
	Total int
}
