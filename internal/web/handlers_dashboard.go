package web

import (
	"net/http"
	"strconv"

	"github.com/JonMunkholm/itp-portal/internal/domain"
	"github.com/JonMunkholm/itp-portal/internal/i18n"
	"github.com/JonMunkholm/itp-portal/internal/table"
	"github.com/JonMunkholm/itp-portal/internal/web/templates"
)

func monthlyColumns() []table.Column[domain.MonthlyStats] {
	return []table.Column[domain.MonthlyStats]{
		table.Text("month", i18n.T("stats.month"), func(m domain.MonthlyStats) string { return m.Month }),
		table.Text("inspections", i18n.T("stats.inspections"), func(m domain.MonthlyStats) string { return strconv.Itoa(m.Inspections) }),
		table.Text("sms_sent", i18n.T("stats.smsSent"), func(m domain.MonthlyStats) string { return strconv.Itoa(m.SMSSent) }),
		table.Money("revenue", i18n.T("stats.revenue"), func(m domain.MonthlyStats) float64 { return m.Revenue }).
			WithFormat(domain.FormatLei),
	}
}

// handleDashboard shows the statistics summary and the monthly history.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st, err := s.staffAPI(r).Statistics(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusBadGateway)
		return
	}

	cols := monthlyColumns()
	lq := parseListQuery(r, cols)
	t := buildTable("monthly", "/admin", cols, st.Monthly, lq)
	t.ExportURL = "/admin/statistics.xlsx"

	if isFragment(r) && r.Header.Get("HX-Target") == "monthly-body" {
		renderFragment(w, r, templates.TableBody(t), nil)
		return
	}
	s.render(w, r, s.page(r, templates.AreaStaff, "dashboard", i18n.T("nav.dashboard")),
		templates.Dashboard(st, templates.Table(t, "/admin")))
}

func (s *Server) handleStatisticsExport(w http.ResponseWriter, r *http.Request) {
	st, err := s.staffAPI(r).Statistics(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusBadGateway)
		return
	}
	writeXLSX(w, r, "statistici.xlsx", i18n.T("nav.dashboard"), monthlyColumns(), st.Monthly)
}
