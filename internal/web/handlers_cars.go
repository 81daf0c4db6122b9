package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/itp-portal/internal/apiclient"
	"github.com/JonMunkholm/itp-portal/internal/domain"
	"github.com/JonMunkholm/itp-portal/internal/form"
	"github.com/JonMunkholm/itp-portal/internal/geo"
	"github.com/JonMunkholm/itp-portal/internal/i18n"
	"github.com/JonMunkholm/itp-portal/internal/logging"
	"github.com/JonMunkholm/itp-portal/internal/phone"
	"github.com/JonMunkholm/itp-portal/internal/table"
	"github.com/JonMunkholm/itp-portal/internal/web/templates"
)

const carsBase = "/customer/cars"

func carPath(r *http.Request) string {
	return carsBase + "/" + chi.URLParam(r, "carID")
}

// expiryBadge marks dates already past as expired.
func expiryBadge(now time.Time, d domain.Date) (string, table.Tone) {
	switch {
	case d.IsZero():
		return "", table.ToneNeutral
	case d.Before(domain.NewDate(now).Time):
		return i18n.T("customer.expired"), table.ToneDanger
	case d.Before(domain.NewDate(now).AddDate(0, 0, 30)):
		return i18n.T("customer.valid"), table.ToneWarning
	default:
		return i18n.T("customer.valid"), table.ToneSuccess
	}
}

func documentTypeOptions() []form.Option {
	out := make([]form.Option, 0, len(domain.DocumentTypes))
	for _, t := range domain.DocumentTypes {
		out = append(out, form.Option{Value: t, Label: i18n.T("document." + t)})
	}
	return out
}

func documentLabel(t string) string {
	if key := "document." + t; i18n.Has(key) {
		return i18n.T(key)
	}
	return t
}

func channelOptions() []form.Option {
	return []form.Option{
		{Value: domain.ChannelSMS, Label: i18n.T("channel.sms")},
		{Value: domain.ChannelEmail, Label: i18n.T("channel.email")},
	}
}

// Cars

func carsScreen() *screen[domain.CustomerCar] {
	return &screen[domain.CustomerCar]{
		key:    "cars",
		title:  i18n.T("customer.cars"),
		area:   templates.AreaCustomer,
		prefix: "/cars",
		param:  "carID",
		base:   staticBase(carsBase),
		noList: true,
		parent: staticBase(customerHome),
		resource: func(s *Server, r *http.Request) apiclient.Resource[domain.CustomerCar] {
			return s.customerAPI(r).Cars()
		},
		columns: func(s *Server) []table.Column[domain.CustomerCar] {
			return []table.Column[domain.CustomerCar]{
				table.Custom("plate", i18n.T("field.plate"),
					func(c domain.CustomerCar) string { return c.PlateNumber },
					func(c domain.CustomerCar) templ.Component {
						return templates.Link(carsBase+"/"+url.PathEscape(c.ID), c.PlateNumber)
					}),
				table.Text("model", i18n.T("field.model"), func(c domain.CustomerCar) string {
					return strings.TrimSpace(c.Make + " " + c.Model)
				}),
				table.Text("year", i18n.T("field.year"), func(c domain.CustomerCar) string {
					if c.Year == 0 {
						return ""
					}
					return strconv.Itoa(c.Year)
				}),
				table.Date("itp_expires_at", i18n.T("field.itpExpiresAt"), func(c domain.CustomerCar) time.Time { return c.ITPExpiresAt.Time }).Searchable(false),
				table.Badge("itp_status", i18n.T("field.status"), func(c domain.CustomerCar) (string, table.Tone) {
					return expiryBadge(s.now(), c.ITPExpiresAt)
				}).Searchable(false),
			}
		},
		fields: func(s *Server, _ *http.Request, _ bool) ([]form.Field[domain.CustomerCar], error) {
			return []form.Field[domain.CustomerCar]{
				{Name: "plate_number", Label: i18n.T("field.plate"), Placeholder: "B 123 ABC", Required: true,
					Bind: form.String(func(c *domain.CustomerCar) *string { return &c.PlateNumber })},
				{Name: "make", Label: i18n.T("field.make"), Required: true,
					Bind: form.String(func(c *domain.CustomerCar) *string { return &c.Make })},
				{Name: "model", Label: i18n.T("field.model"),
					Bind: form.String(func(c *domain.CustomerCar) *string { return &c.Model })},
				{Name: "year", Label: i18n.T("field.year"), Input: form.InputNumber,
					Validate: form.IntRange[domain.CustomerCar](1950, s.now().Year()+1),
					Bind:     form.Int(func(c *domain.CustomerCar) *int { return &c.Year })},
				{Name: "vin", Label: i18n.T("field.vin"),
					Bind: form.String(func(c *domain.CustomerCar) *string { return &c.VIN })},
				{Name: "itp_expires_at", Label: i18n.T("field.itpExpiresAt"), Input: form.InputDate,
					Bind: form.Date(func(c *domain.CustomerCar) *time.Time { return &c.ITPExpiresAt.Time })},
			}, nil
		},
		id:    func(c domain.CustomerCar) string { return c.ID },
		blank: func() domain.CustomerCar { return domain.CustomerCar{} },
		prepare: func(_ *Server, _ *http.Request, c *domain.CustomerCar) error {
			c.PlateNumber = strings.ToUpper(strings.TrimSpace(c.PlateNumber))
			c.VIN = strings.ToUpper(strings.TrimSpace(c.VIN))
			return nil
		},
		actions: func(base string) []table.Action[domain.CustomerCar] {
			return []table.Action[domain.CustomerCar]{{
				Label: i18n.T("customer.documents"),
				Href:  func(c domain.CustomerCar) string { return base + "/" + c.ID },
			}}
		},
		extend: func(r chi.Router, s *Server) {
			r.Get("/{carID}", s.handleCarDetail)
			documentsScreen().mount(r, s)
			remindersScreen().mount(r, s)
		},
	}
}

// handleCars is the customer home: the list of the customer's cars.
func (s *Server) handleCars(w http.ResponseWriter, r *http.Request) {
	sc := carsScreen()
	rows, err := sc.resource(s, r).All(r.Context(), nil)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadGateway)
		return
	}
	t := sc.table(s, r, rows)
	if isFragment(r) && r.Header.Get("HX-Target") == sc.key+"-body" {
		renderFragment(w, r, templates.TableBody(t), nil)
		return
	}
	s.render(w, r, s.page(r, templates.AreaCustomer, "cars", sc.title),
		templates.ListPage(carsBase+"/new", templates.Table(t, customerHome)))
}

// handleCarDetail shows one car with its documents and reminders tables.
func (s *Server) handleCarDetail(w http.ResponseWriter, r *http.Request) {
	api := s.customerAPI(r)
	carID := chi.URLParam(r, "carID")
	car, err := api.Cars().Get(r.Context(), carID)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadGateway)
		return
	}
	docs, err := api.Documents(carID).All(r.Context(), nil)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadGateway)
		return
	}
	reminders, err := api.Reminders(carID).All(r.Context(), nil)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadGateway)
		return
	}

	ds, rs := documentsScreen(), remindersScreen()
	docTable := ds.table(s, r, docs)
	remTable := rs.table(s, r, reminders)

	if isFragment(r) {
		switch r.Header.Get("HX-Target") {
		case ds.key + "-body":
			renderFragment(w, r, templates.TableBody(docTable), nil)
			return
		case rs.key + "-body":
			renderFragment(w, r, templates.TableBody(remTable), nil)
			return
		}
	}

	base := carPath(r)
	body := templates.CarDetail(car,
		templates.Table(docTable, base), templates.Table(remTable, base),
		ds.base(r)+"/new", rs.base(r)+"/new")
	s.render(w, r, s.page(r, templates.AreaCustomer, "cars", car.PlateNumber), body)
}

// Documents

func documentsScreen() *screen[domain.CarDocument] {
	return &screen[domain.CarDocument]{
		key:    "documents",
		title:  i18n.T("customer.documents"),
		area:   templates.AreaCustomer,
		prefix: "/{carID}/documents",
		param:  "documentID",
		base:   func(r *http.Request) string { return carPath(r) + "/documents" },
		noList: true,
		parent: carPath,
		resource: func(s *Server, r *http.Request) apiclient.Resource[domain.CarDocument] {
			return s.customerAPI(r).Documents(chi.URLParam(r, "carID"))
		},
		columns: func(s *Server) []table.Column[domain.CarDocument] {
			return []table.Column[domain.CarDocument]{
				table.Text("type", i18n.T("field.documentType"), func(d domain.CarDocument) string { return documentLabel(d.Type) }),
				table.Text("number", i18n.T("field.number"), func(d domain.CarDocument) string { return d.Number }),
				table.Date("issued_at", i18n.T("field.issuedAt"), func(d domain.CarDocument) time.Time { return d.IssuedAt.Time }).Searchable(false),
				table.Date("expires_at", i18n.T("field.expiresAt"), func(d domain.CarDocument) time.Time { return d.ExpiresAt.Time }).Searchable(false),
				table.Badge("status", i18n.T("field.status"), func(d domain.CarDocument) (string, table.Tone) {
					return expiryBadge(s.now(), d.ExpiresAt)
				}).Searchable(false),
			}
		},
		fields: func(*Server, *http.Request, bool) ([]form.Field[domain.CarDocument], error) {
			types := documentTypeOptions()
			return []form.Field[domain.CarDocument]{
				{Name: "type", Label: i18n.T("field.documentType"), Input: form.InputSelect, Options: types, Required: true,
					Validate: form.OneOf[domain.CarDocument](types),
					Bind:     form.String(func(d *domain.CarDocument) *string { return &d.Type })},
				{Name: "number", Label: i18n.T("field.number"),
					Bind: form.String(func(d *domain.CarDocument) *string { return &d.Number })},
				{Name: "issued_at", Label: i18n.T("field.issuedAt"), Input: form.InputDate,
					Bind: form.Date(func(d *domain.CarDocument) *time.Time { return &d.IssuedAt.Time })},
				{Name: "expires_at", Label: i18n.T("field.expiresAt"), Input: form.InputDate, Required: true,
					Validate: form.NotBefore(func(d domain.CarDocument) time.Time { return d.IssuedAt.Time }),
					Bind:     form.Date(func(d *domain.CarDocument) *time.Time { return &d.ExpiresAt.Time })},
			}, nil
		},
		id:    func(d domain.CarDocument) string { return d.ID },
		blank: func() domain.CarDocument { return domain.CarDocument{} },
		prepare: func(_ *Server, r *http.Request, d *domain.CarDocument) error {
			d.CarID = chi.URLParam(r, "carID")
			return nil
		},
	}
}

// Reminders

func remindersScreen() *screen[domain.CarReminder] {
	return &screen[domain.CarReminder]{
		key:    "reminders",
		title:  i18n.T("customer.reminders"),
		area:   templates.AreaCustomer,
		prefix: "/{carID}/reminders",
		param:  "reminderID",
		base:   func(r *http.Request) string { return carPath(r) + "/reminders" },
		noList: true,
		parent: carPath,
		resource: func(s *Server, r *http.Request) apiclient.Resource[domain.CarReminder] {
			return s.customerAPI(r).Reminders(chi.URLParam(r, "carID"))
		},
		columns: func(*Server) []table.Column[domain.CarReminder] {
			return []table.Column[domain.CarReminder]{
				table.Text("type", i18n.T("field.reminderType"), func(rm domain.CarReminder) string { return documentLabel(rm.Type) }),
				table.Date("remind_at", i18n.T("field.remindAt"), func(rm domain.CarReminder) time.Time { return rm.RemindAt.Time }).Searchable(false),
				table.Text("channel", i18n.T("field.channel"), func(rm domain.CarReminder) string { return i18n.T("channel." + rm.Channel) }),
				table.Text("note", i18n.T("field.note"), func(rm domain.CarReminder) string { return rm.Note }),
			}
		},
		fields: func(s *Server, _ *http.Request, _ bool) ([]form.Field[domain.CarReminder], error) {
			types, channels := documentTypeOptions(), channelOptions()
			return []form.Field[domain.CarReminder]{
				{Name: "type", Label: i18n.T("field.reminderType"), Input: form.InputSelect, Options: types, Required: true,
					Validate: form.OneOf[domain.CarReminder](types),
					Bind:     form.String(func(rm *domain.CarReminder) *string { return &rm.Type })},
				{Name: "remind_at", Label: i18n.T("field.remindAt"), Input: form.InputDate, Required: true,
					Validate: form.FutureDate[domain.CarReminder](s.now),
					Bind:     form.Date(func(rm *domain.CarReminder) *time.Time { return &rm.RemindAt.Time })},
				{Name: "channel", Label: i18n.T("field.channel"), Input: form.InputSelect, Options: channels, Required: true,
					Validate: form.OneOf[domain.CarReminder](channels),
					Bind:     form.String(func(rm *domain.CarReminder) *string { return &rm.Channel })},
				{Name: "note", Label: i18n.T("field.note"), Input: form.InputTextarea,
					Bind: form.String(func(rm *domain.CarReminder) *string { return &rm.Note })},
			}, nil
		},
		id:    func(rm domain.CarReminder) string { return rm.ID },
		blank: func() domain.CarReminder { return domain.CarReminder{Channel: domain.ChannelSMS} },
		prepare: func(_ *Server, r *http.Request, rm *domain.CarReminder) error {
			rm.CarID = chi.URLParam(r, "carID")
			return nil
		},
	}
}

// Stations

func stationColumns() []table.Column[geo.Ranked[domain.Branch]] {
	return []table.Column[geo.Ranked[domain.Branch]]{
		table.Text("name", i18n.T("field.name"), func(b geo.Ranked[domain.Branch]) string { return b.Item.Name }),
		table.Text("address", i18n.T("field.address"), func(b geo.Ranked[domain.Branch]) string { return b.Item.FullAddress() }),
		table.Text("phone", i18n.T("field.phone"), func(b geo.Ranked[domain.Branch]) string { return phone.Format(b.Item.Phone) }),
		table.Text("distance", i18n.T("field.distance"), func(b geo.Ranked[domain.Branch]) string {
			if b.Km < 0 {
				return ""
			}
			return fmt.Sprintf("%.1f km", b.Km)
		}).Searchable(false),
	}
}

// handleStations lists stations nearest to the searched address. Without
// an address, or when it cannot be located, stations keep backend order.
func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	stations, err := s.customerAPI(r).Stations(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusBadGateway)
		return
	}

	address := strings.TrimSpace(r.URL.Query().Get("address"))
	note := i18n.T("customer.noLocation")
	var rows []geo.Ranked[domain.Branch]
	if address != "" {
		origin, label, gerr := s.locate(r.Context(), address)
		if gerr == nil {
			note = label
			rows = geo.SortByDistance(origin, stations, func(b domain.Branch) geo.Point {
				return geo.Point{Lat: b.Latitude, Lng: b.Longitude}
			}, 0)
		} else {
			note = MapError(gerr).Message
			logging.FromContext(r.Context()).Warn("station search geocoding failed", "address", address, "error", gerr)
		}
	}
	if rows == nil {
		rows = make([]geo.Ranked[domain.Branch], len(stations))
		for i, b := range stations {
			rows[i] = geo.Ranked[domain.Branch]{Item: b, Km: -1}
		}
	}

	cols := stationColumns()
	lq := parseListQuery(r, cols)
	const base = "/customer/stations"
	t := buildTable("stations", base, cols, rows, lq)
	t.Pager.Href = func(p int) string {
		v := lq.values(p)
		if address != "" {
			v.Set("address", address)
		}
		return base + "?" + v.Encode()
	}

	if isFragment(r) && r.Header.Get("HX-Target") == "stations-body" {
		renderFragment(w, r, templates.TableBody(t), nil)
		return
	}
	s.render(w, r, s.page(r, templates.AreaCustomer, "stations", i18n.T("customer.stations")),
		templates.StationsPage(address, note, templates.TableBody(t)))
}

// locate resolves the station search input. Coordinates from the browser
// are used as-is and only named through reverse geocoding; anything else
// is geocoded forward.
func (s *Server) locate(ctx context.Context, input string) (geo.Point, string, error) {
	if p, ok := geo.ParsePoint(input); ok {
		place, err := s.geocoder.Reverse(ctx, p)
		if err != nil {
			return p, fmt.Sprintf("%.5f, %.5f", p.Lat, p.Lng), nil
		}
		return p, place.DisplayName, nil
	}
	place, err := s.geocoder.Forward(ctx, input)
	if err != nil {
		return geo.Point{}, "", err
	}
	return place.Point, place.DisplayName, nil
}
