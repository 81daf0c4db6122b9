package table

import "strings"

// search filters rows by a case-insensitive substring over the enabled
// searchable columns. Match results are cached per column for the current
// query, so toggling a column only recomputes the union. A search lives for
// one request: rows are fetched fresh each time, so nothing is kept between
// requests.
type search[T any] struct {
	columns  []Column[T]
	rows     []T
	query    string
	disabled map[string]bool

	// matches[key][i] reports whether row i matches on that column for query.
	matches map[string][]bool
	scans   int
}

func newSearch[T any](columns []Column[T], rows []T) *search[T] {
	return &search[T]{
		columns:  columns,
		rows:     rows,
		disabled: make(map[string]bool),
		matches:  make(map[string][]bool),
	}
}

// setQuery changes the query and drops cached matches.
func (s *search[T]) setQuery(q string) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == s.query {
		return
	}
	s.query = q
	s.matches = make(map[string][]bool)
}

func (s *search[T]) setColumnEnabled(key string, enabled bool) {
	if enabled {
		delete(s.disabled, key)
	} else {
		s.disabled[key] = true
	}
}

// results returns the matching rows in their original order. An empty
// query matches everything; a query with no enabled column matches nothing.
func (s *search[T]) results() []T {
	if s.query == "" {
		return s.rows
	}

	var active [][]bool
	for _, c := range s.columns {
		if c.NotSearchable || s.disabled[c.Key] {
			continue
		}
		active = append(active, s.columnMatches(c))
	}

	out := make([]T, 0, len(s.rows))
	for i, row := range s.rows {
		for _, m := range active {
			if m[i] {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

func (s *search[T]) columnMatches(c Column[T]) []bool {
	if m, ok := s.matches[c.Key]; ok {
		return m
	}
	s.scans++
	m := make([]bool, len(s.rows))
	for i, row := range s.rows {
		m[i] = strings.Contains(strings.ToLower(c.Text(row)), s.query)
	}
	s.matches[c.Key] = m
	return m
}

// Filter returns the rows matching query on the searchable columns that
// are not in disabled.
func Filter[T any](columns []Column[T], rows []T, query string, disabled map[string]bool) []T {
	s := newSearch(columns, rows)
	for k, off := range disabled {
		if off {
			s.setColumnEnabled(k, false)
		}
	}
	s.setQuery(query)
	return s.results()
}
