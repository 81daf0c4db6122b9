package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/itp-portal/internal/apiclient"
	"github.com/JonMunkholm/itp-portal/internal/domain"
	"github.com/JonMunkholm/itp-portal/internal/form"
	"github.com/JonMunkholm/itp-portal/internal/i18n"
	"github.com/JonMunkholm/itp-portal/internal/logging"
	"github.com/JonMunkholm/itp-portal/internal/table"
	"github.com/JonMunkholm/itp-portal/internal/web/templates"
)

const packagesBase = "/admin/packages"

func packagesScreen() *screen[domain.Package] {
	return &screen[domain.Package]{
		key:    "packages",
		title:  i18n.T("nav.packages"),
		area:   templates.AreaStaff,
		prefix: "/packages",
		base:   staticBase(packagesBase),
		resource: func(s *Server, r *http.Request) apiclient.Resource[domain.Package] {
			return s.staffAPI(r).Packages()
		},
		columns: func(*Server) []table.Column[domain.Package] {
			return []table.Column[domain.Package]{
				table.Text("name", i18n.T("field.name"), func(p domain.Package) string { return p.Name }),
				table.Text("description", i18n.T("field.description"), func(p domain.Package) string { return p.Description }),
				table.Text("sms_limit", i18n.T("field.smsLimit"), func(p domain.Package) string { return strconv.Itoa(p.SMSLimit) }),
				table.Money("monthly_price", i18n.T("field.monthlyPrice"), func(p domain.Package) float64 { return p.MonthlyPrice }).
					WithFormat(domain.FormatLei),
				table.Badge("is_active", i18n.T("field.status"), func(p domain.Package) (string, table.Tone) { return activeBadge(p.IsActive) }).Searchable(false),
			}
		},
		fields: func(*Server, *http.Request, bool) ([]form.Field[domain.Package], error) {
			return []form.Field[domain.Package]{
				{Name: "name", Label: i18n.T("field.name"), Required: true,
					Bind: form.String(func(p *domain.Package) *string { return &p.Name })},
				{Name: "description", Label: i18n.T("field.description"), Input: form.InputTextarea,
					Bind: form.String(func(p *domain.Package) *string { return &p.Description })},
				{Name: "sms_limit", Label: i18n.T("field.smsLimit"), Input: form.InputNumber, Required: true,
					Validate: form.IntRange[domain.Package](1, 1_000_000),
					Bind:     form.Int(func(p *domain.Package) *int { return &p.SMSLimit })},
				{Name: "monthly_price", Label: i18n.T("field.monthlyPrice"), Input: form.InputNumber, Required: true,
					Bind: form.Float(func(p *domain.Package) *float64 { return &p.MonthlyPrice })},
				activeField(func(p *domain.Package) *bool { return &p.IsActive }),
			}, nil
		},
		id:    func(p domain.Package) string { return p.ID },
		blank: func() domain.Package { return domain.Package{IsActive: true} },
		actions: func(base string) []table.Action[domain.Package] {
			return []table.Action[domain.Package]{{
				Label:  i18n.T("package.subscribe"),
				Href:   func(p domain.Package) string { return base + "/" + p.ID + "/subscribe" },
				Method: http.MethodGet,
				Hidden: func(p domain.Package) bool { return !p.IsActive },
			}}
		},
		extend: func(r chi.Router, s *Server) {
			r.Get("/{id}/subscribe", s.handleSubscribeForm)
			r.Get("/{id}/quote", s.handleQuote)
			r.Post("/{id}/subscribe", s.handleSubscribe)
			r.Post("/{id}/subscribe/validate/{field}", s.handleSubscribeValidate)
		},
	}
}

// subscription is the subscribe drawer form.
type subscription struct {
	BranchID string
	Period   string
	StartsAt time.Time
}

func periodOptions() []form.Option {
	return []form.Option{
		{Value: string(domain.PeriodMonthly), Label: i18n.T("package.monthly")},
		{Value: string(domain.PeriodYearly), Label: i18n.T("package.yearly")},
	}
}

func subscriptionFields(branches []form.Option) []form.Field[subscription] {
	periods := periodOptions()
	return []form.Field[subscription]{
		{Name: "branch_id", Label: i18n.T("field.branch"), Input: form.InputSelect, Options: branches, Required: true,
			Validate: form.OneOf[subscription](branches),
			Bind:     form.String(func(v *subscription) *string { return &v.BranchID })},
		{Name: "period", Label: i18n.T("field.period"), Input: form.InputSelect, Options: periods, Required: true,
			Validate: form.OneOf[subscription](periods),
			Bind:     form.String(func(v *subscription) *string { return &v.Period })},
		{Name: "starts_at", Label: i18n.T("field.startsAt"), Input: form.InputDate, Required: true,
			Bind: form.Date(func(v *subscription) *time.Time { return &v.StartsAt })},
	}
}

// priced is a package quote with the discount that produced it.
type priced struct {
	Quote    domain.Quote
	Discount domain.Discount // zero when none applies
}

// quote prices pkg for period with the best discount active today.
func (s *Server) quote(ctx context.Context, api *apiclient.StaffAPI, pkg domain.Package, period domain.Period) (priced, error) {
	discounts, err := api.Discounts().All(ctx, nil)
	if err != nil {
		return priced{}, err
	}
	d, _ := domain.BestDiscount(discounts, pkg.ID, s.now())
	return priced{Quote: domain.QuotePrice(pkg.MonthlyPrice, period, d.Percentage), Discount: d}, nil
}

// subscribeState loads everything the subscribe form needs.
func (s *Server) subscribeState(r *http.Request) (domain.Package, *form.Controller[subscription], error) {
	api := s.staffAPI(r)
	pkg, err := api.Packages().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return domain.Package{}, nil, err
	}
	branches, err := branchOptions(r.Context(), api)
	if err != nil {
		return domain.Package{}, nil, err
	}
	initial := subscription{Period: string(domain.PeriodMonthly), StartsAt: domain.NewDate(s.now()).Time}
	return pkg, form.New(initial, subscriptionFields(branches)...), nil
}

func (s *Server) subscribeView(r *http.Request, pkg domain.Package, c *form.Controller[subscription]) (templates.FormView, error) {
	period, err := domain.ParsePeriod(c.Values().Period)
	if err != nil {
		period = domain.PeriodMonthly
	}
	q, err := s.quote(r.Context(), s.staffAPI(r), pkg, period)
	if err != nil {
		return templates.FormView{}, err
	}
	action := packagesBase + "/" + pkg.ID + "/subscribe"
	return templates.FormView{
		ID:          "subscribe-form",
		Action:      action,
		ValidateURL: action + "/validate",
		Inputs:      c.Inputs(),
		Submitted:   c.Submitted(),
		Submitting:  c.IsSubmitting(),
		CanSubmit:   c.CanSubmit(),
		SubmitLabel: i18n.T("package.subscribe"),
		Extra: templates.QuoteSlot(packagesBase+"/"+pkg.ID+"/quote",
			templates.QuoteView(q.Quote, q.Discount.Name)),
	}, nil
}

func (s *Server) handleSubscribeForm(w http.ResponseWriter, r *http.Request) {
	pkg, c, err := s.subscribeState(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadGateway)
		return
	}
	view, err := s.subscribeView(r, pkg, c)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadGateway)
		return
	}
	renderFragment(w, r, templates.FormDrawer(i18n.T("package.subscribe")+" · "+pkg.Name, view), nil)
}

// handleQuote re-prices the package when the period changes.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	api := s.staffAPI(r)
	pkg, err := api.Packages().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadGateway)
		return
	}
	period, err := domain.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		period = domain.PeriodMonthly
	}
	q, err := s.quote(r.Context(), api, pkg, period)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadGateway)
		return
	}
	renderFragment(w, r, templates.QuoteView(q.Quote, q.Discount.Name), nil)
}

func (s *Server) handleSubscribeValidate(w http.ResponseWriter, r *http.Request) {
	pkg, c, err := s.subscribeState(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadGateway)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	c.Bind(r.PostForm)
	name := chi.URLParam(r, "field")
	c.Blur(name)
	renderFragment(w, r, templates.Field(c.Register(name), packagesBase+"/"+pkg.ID+"/subscribe/validate"), nil)
}

// handleSubscribe creates the branch subscription at the quoted price.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	pkg, c, err := s.subscribeState(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadGateway)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	c.Bind(r.PostForm)

	api := s.staffAPI(r)
	err = c.HandleSubmit(r.Context(), func(ctx context.Context, in subscription) error {
		period, err := domain.ParsePeriod(in.Period)
		if err != nil {
			return err
		}
		q, err := s.quote(ctx, api, pkg, period)
		if err != nil {
			return err
		}
		_, err = api.Subscriptions().Create(ctx, newSubscription(pkg, in, period, q))
		return err
	})
	if err == nil {
		logging.WithFields(r.Context(), "package", pkg.ID, "branch", c.Values().BranchID).Info("branch subscribed")
		s.redirectWithSuccess(w, r, packagesBase, "toast.created")
		return
	}
	if errors.Is(err, apiclient.ErrSessionExpired) {
		s.respondError(w, r, err, http.StatusUnauthorized)
		return
	}

	if !errors.Is(err, form.ErrInvalid) {
		applyFieldErrors(c, err)
	}
	view, verr := s.subscribeView(r, pkg, c)
	if verr != nil {
		s.respondError(w, r, verr, http.StatusBadGateway)
		return
	}
	if !errors.Is(err, form.ErrInvalid) {
		view.Error = MapError(err).Message
	}
	renderFragment(w, r, templates.Form(view), nil)
}

// newSubscription builds the record sent to the backend. A yearly
// subscription runs twelve months for the price of ten.
func newSubscription(pkg domain.Package, in subscription, period domain.Period, q priced) domain.PackageSubscription {
	start := domain.NewDate(in.StartsAt)
	end := start.AddDate(0, 1, 0)
	if period == domain.PeriodYearly {
		end = start.AddDate(1, 0, 0)
	}
	return domain.PackageSubscription{
		BranchID:   in.BranchID,
		PackageID:  pkg.ID,
		Period:     period,
		DiscountID: q.Discount.ID,
		Price:      q.Quote.Total,
		StartsAt:   start,
		EndsAt:     domain.Date{Time: end},
	}
}
