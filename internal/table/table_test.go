package table

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type branch struct {
	Name   string
	City   string
	Active bool
	Price  float64
	Since  time.Time
	Notes  string
}

func branchColumns() []Column[branch] {
	return []Column[branch]{
		Text("name", "Nume", func(b branch) string { return b.Name }),
		Text("city", "Oras", func(b branch) string { return b.City }),
		Badge("status", "Status", func(b branch) (string, Tone) {
			if b.Active {
				return "Activ", ToneSuccess
			}
			return "Inactiv", ToneDanger
		}),
		Money("price", "Pret", func(b branch) float64 { return b.Price }),
		Date("since", "Din", func(b branch) time.Time { return b.Since }),
		Text("notes", "Note", func(b branch) string { return b.Notes }).Searchable(false),
	}
}

var branches = []branch{
	{Name: "ITP Nord", City: "Bucuresti", Active: true, Price: 120, Since: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Notes: "cluj partner"},
	{Name: "Auto Test", City: "Cluj-Napoca", Active: false, Price: 99.5},
	{Name: "Statia Vest", City: "Timisoara", Active: true, Price: 80},
	{Name: "Cluj Service", City: "Oradea", Active: true, Price: 150},
}

func names(rows []branch) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func TestColumnText(t *testing.T) {
	cols := branchColumns()
	b := branches[0]

	assert.Equal(t, "ITP Nord", cols[0].Text(b))
	assert.Equal(t, "Activ", cols[2].Text(b))
	assert.Equal(t, ToneSuccess, cols[2].Tone(b))
	assert.Equal(t, "120.00", cols[3].Text(b))
	assert.Equal(t, "01.03.2024", cols[4].Text(b))
	assert.Equal(t, "", cols[4].Text(branches[1]))

	lei := cols[3].WithFormat(func(v float64) string { return fmt.Sprintf("%.0f lei", v) })
	assert.Equal(t, "120 lei", lei.Text(b))
}

func TestCustomColumn(t *testing.T) {
	col := Custom("link", "Link",
		func(b branch) string { return b.Name },
		func(b branch) templ.Component {
			return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
				_, err := io.WriteString(w, "<a>"+b.Name+"</a>")
				return err
			})
		})

	var buf bytes.Buffer
	require.NoError(t, col.Component(branches[0]).Render(context.Background(), &buf))
	assert.Equal(t, "<a>ITP Nord</a>", buf.String())
	assert.Equal(t, "ITP Nord", col.Text(branches[0]))
	assert.Nil(t, branchColumns()[0].Component(branches[0]))
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		disabled []string
		want     []string
	}{
		{"empty query returns all", "", nil, []string{"ITP Nord", "Auto Test", "Statia Vest", "Cluj Service"}},
		{"case insensitive across columns", "CLUJ", nil, []string{"Auto Test", "Cluj Service"}},
		{"badge text is searchable", "inactiv", nil, []string{"Auto Test"}},
		{"non-searchable column ignored", "partner", nil, []string{}},
		{"disabled column excluded", "cluj", []string{"city"}, []string{"Cluj Service"}},
		{"all columns disabled matches nothing", "cluj", []string{"name", "city", "status", "price", "since"}, []string{}},
		{"money text", "99.50", nil, []string{"Auto Test"}},
		{"whitespace trimmed", "  vest ", nil, []string{"Statia Vest"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSearch(branchColumns(), branches)
			for _, k := range tt.disabled {
				s.setColumnEnabled(k, false)
			}
			s.setQuery(tt.query)
			assert.Equal(t, tt.want, names(s.results()))
		})
	}
}

func TestSearch_MatchesUnionOfEnabledColumns(t *testing.T) {
	cols := branchColumns()
	q := "a"
	got := names(Filter(cols, branches, q, map[string]bool{"status": true}))

	var want []string
	for _, b := range branches {
		for _, c := range cols {
			if c.NotSearchable || c.Key == "status" {
				continue
			}
			if strings.Contains(strings.ToLower(c.Text(b)), q) {
				want = append(want, b.Name)
				break
			}
		}
	}
	assert.Equal(t, want, got)
}

func TestSearch_ToggleDoesNotRescanOtherColumns(t *testing.T) {
	s := newSearch(branchColumns(), branches)
	s.setQuery("cluj")

	assert.Equal(t, []string{"Auto Test", "Cluj Service"}, names(s.results()))
	// name, city, status, price, since
	assert.Equal(t, 5, s.scans)

	s.setColumnEnabled("city", false)
	assert.Equal(t, []string{"Cluj Service"}, names(s.results()))
	assert.Equal(t, 5, s.scans)

	s.setColumnEnabled("city", true)
	assert.Equal(t, []string{"Auto Test", "Cluj Service"}, names(s.results()))
	assert.Equal(t, 5, s.scans)

	s.setQuery("vest")
	s.results()
	assert.Equal(t, 10, s.scans)
}

func TestWindow(t *testing.T) {
	render := func(items []PageItem) []string {
		out := make([]string, len(items))
		for i, it := range items {
			if it.Ellipsis {
				out[i] = "..."
			} else {
				out[i] = fmt.Sprint(it.Page)
			}
		}
		return out
	}

	tests := []struct {
		page, total int
		want        []string
	}{
		{5, 20, []string{"1", "...", "4", "5", "6", "...", "20"}},
		{1, 20, []string{"1", "2", "...", "20"}},
		{20, 20, []string{"1", "...", "19", "20"}},
		{2, 3, []string{"1", "2", "3"}},
		{1, 1, []string{"1"}},
		{3, 5, []string{"1", "2", "3", "4", "5"}},
		{99, 4, []string{"1", "...", "3", "4"}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.page, tt.total), func(t *testing.T) {
			assert.Equal(t, tt.want, render(Window(tt.page, tt.total)))
		})
	}

	assert.Nil(t, Window(1, 0))
}

func TestWindow_MarksCurrent(t *testing.T) {
	for _, it := range Window(5, 20) {
		assert.Equal(t, it.Page == 5, it.Current)
	}
}

func TestPagerVisible(t *testing.T) {
	href := func(p int) string { return fmt.Sprintf("?page=%d", p) }
	assert.True(t, Pager{Page: 1, TotalPages: 2, Href: href}.Visible())
	assert.False(t, Pager{Page: 1, TotalPages: 1, Href: href}.Visible())
	assert.False(t, Pager{Page: 1, TotalPages: 5}.Visible())
}

func TestPaginate(t *testing.T) {
	rows := []int{1, 2, 3, 4, 5, 6, 7}

	got, page, total := Paginate(rows, 2, 3)
	assert.Equal(t, []int{4, 5, 6}, got)
	assert.Equal(t, 2, page)
	assert.Equal(t, 3, total)

	got, page, _ = Paginate(rows, 9, 3)
	assert.Equal(t, []int{7}, got)
	assert.Equal(t, 3, page)

	got, page, total = Paginate([]int{}, 1, 10)
	assert.Empty(t, got)
	assert.Equal(t, 1, page)
	assert.Equal(t, 1, total)
}

func TestParseDisabled(t *testing.T) {
	assert.Equal(t, map[string]bool{"city": true, "name": true}, ParseDisabled([]string{"city, name", ""}))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "Statii", branchColumns(), branches[:2]))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Statii")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Nume", "Oras", "Status", "Pret", "Din", "Note"}, rows[0])
	assert.Equal(t, "ITP Nord", rows[1][0])
	assert.Equal(t, "Activ", rows[1][2])
	assert.Equal(t, "120", rows[1][3])
	assert.Equal(t, "01.03.2024", rows[1][4])
	assert.Equal(t, "Inactiv", rows[2][2])
}
