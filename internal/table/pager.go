package table

// PageItem is one entry of the page strip: a page number or an ellipsis.
type PageItem struct {
	Page     int
	Ellipsis bool
	Current  bool
}

// Window returns the page strip for page out of total: first and last page,
// the current page with its neighbours, and an ellipsis for each gap.
func Window(page, total int) []PageItem {
	if total < 1 {
		return nil
	}
	page = clamp(page, 1, total)

	var items []PageItem
	for i := 1; i <= total; i++ {
		switch {
		case i == 1 || i == total || abs(i-page) <= 1:
			items = append(items, PageItem{Page: i, Current: i == page})
		case i == page-2 || i == page+2:
			items = append(items, PageItem{Ellipsis: true})
		}
	}
	return items
}

// Pager is the pagination state of a table. Href builds the link for a page;
// without it the strip is not rendered.
type Pager struct {
	Page       int
	TotalPages int
	Href       func(page int) string
}

// Visible reports whether the strip should be shown.
func (p Pager) Visible() bool {
	return p.TotalPages > 1 && p.Href != nil
}

// Items returns the page strip.
func (p Pager) Items() []PageItem {
	return Window(p.Page, p.TotalPages)
}

// HasPrev reports whether a previous page exists.
func (p Pager) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a next page exists.
func (p Pager) HasNext() bool { return p.Page < p.TotalPages }

// Paginate slices rows into pages of size perPage and returns the requested
// page with the page count. Out of range pages are clamped.
func Paginate[T any](rows []T, page, perPage int) ([]T, int, int) {
	if perPage <= 0 {
		return rows, 1, 1
	}
	total := (len(rows) + perPage - 1) / perPage
	if total == 0 {
		return rows, 1, 1
	}
	page = clamp(page, 1, total)
	start := (page - 1) * perPage
	end := min(start+perPage, len(rows))
	return rows[start:end], page, total
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
