package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

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

func activeBadge(on bool) (string, table.Tone) {
	if on {
		return i18n.T("common.active"), table.ToneSuccess
	}
	return i18n.T("common.inactive"), table.ToneNeutral
}

func activeField[T any](field func(*T) *bool) form.Field[T] {
	return form.Field[T]{
		Name:  "is_active",
		Label: i18n.T("field.active"),
		Input: form.InputCheckbox,
		Bind:  form.Bool(field),
	}
}

// Select options are loaded from the backend on every form render so new
// companies and branches show up without a restart.

func companyOptions(ctx context.Context, api *apiclient.StaffAPI) ([]form.Option, error) {
	companies, err := api.Companies().All(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]form.Option, 0, len(companies))
	for _, c := range companies {
		out = append(out, form.Option{Value: c.ID, Label: c.Name})
	}
	return out, nil
}

func branchOptions(ctx context.Context, api *apiclient.StaffAPI) ([]form.Option, error) {
	branches, err := api.Branches().All(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]form.Option, 0, len(branches))
	for _, b := range branches {
		label := b.Name
		if b.City != "" {
			label += " (" + b.City + ")"
		}
		out = append(out, form.Option{Value: b.ID, Label: label})
	}
	return out, nil
}

func packageOptions(ctx context.Context, api *apiclient.StaffAPI) ([]form.Option, error) {
	packages, err := api.Packages().All(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]form.Option, 0, len(packages))
	for _, p := range packages {
		out = append(out, form.Option{Value: p.ID, Label: p.Name})
	}
	return out, nil
}

func roleOptions(ctx context.Context, api *apiclient.StaffAPI) ([]form.Option, error) {
	roles, err := api.Roles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]form.Option, 0, len(roles))
	for _, r := range roles {
		label := r.Label
		if label == "" {
			label = r.Name
		}
		out = append(out, form.Option{Value: r.Name, Label: label})
	}
	return out, nil
}

// Companies

func companiesScreen() *screen[domain.Company] {
	return &screen[domain.Company]{
		key:    "companies",
		title:  i18n.T("nav.companies"),
		area:   templates.AreaStaff,
		prefix: "/companies",
		base:   staticBase("/admin/companies"),
		resource: func(s *Server, r *http.Request) apiclient.Resource[domain.Company] {
			return s.staffAPI(r).Companies()
		},
		columns: func(*Server) []table.Column[domain.Company] {
			return []table.Column[domain.Company]{
				table.Text("name", i18n.T("field.name"), func(c domain.Company) string { return c.Name }),
				table.Text("cui", i18n.T("field.cui"), func(c domain.Company) string { return c.CUI }),
				table.Text("city", i18n.T("field.city"), func(c domain.Company) string { return c.City }),
				table.Text("email", i18n.T("field.email"), func(c domain.Company) string { return c.Email }),
				table.Text("phone", i18n.T("field.phone"), func(c domain.Company) string { return phone.Format(c.Phone) }),
				table.Badge("is_active", i18n.T("field.status"), func(c domain.Company) (string, table.Tone) { return activeBadge(c.IsActive) }).Searchable(false),
			}
		},
		fields: func(*Server, *http.Request, bool) ([]form.Field[domain.Company], error) {
			return []form.Field[domain.Company]{
				{Name: "name", Label: i18n.T("field.name"), Required: true,
					Bind: form.String(func(c *domain.Company) *string { return &c.Name })},
				{Name: "cui", Label: i18n.T("field.cui"), Required: true,
					Bind: form.String(func(c *domain.Company) *string { return &c.CUI })},
				{Name: "email", Label: i18n.T("field.email"), Input: form.InputEmail, Validate: form.Email[domain.Company](),
					Bind: form.String(func(c *domain.Company) *string { return &c.Email })},
				{Name: "phone", Label: i18n.T("field.phone"), Input: form.InputTel, Placeholder: "07xx xxx xxx", Validate: form.Phone[domain.Company](),
					Bind: form.String(func(c *domain.Company) *string { return &c.Phone })},
				{Name: "address", Label: i18n.T("field.address"),
					Bind: form.String(func(c *domain.Company) *string { return &c.Address })},
				{Name: "city", Label: i18n.T("field.city"),
					Bind: form.String(func(c *domain.Company) *string { return &c.City })},
				activeField(func(c *domain.Company) *bool { return &c.IsActive }),
			}, nil
		},
		id:    func(c domain.Company) string { return c.ID },
		blank: func() domain.Company { return domain.Company{IsActive: true} },
		prepare: func(_ *Server, _ *http.Request, c *domain.Company) error {
			c.Phone = normalizePhone(c.Phone)
			return nil
		},
	}
}

// normalizePhone stores numbers in +40 form; input the rules already
// accepted always normalizes.
func normalizePhone(raw string) string {
	if n, err := phone.Normalize(raw); err == nil {
		return n
	}
	return raw
}

// Branches

func branchesScreen() *screen[domain.Branch] {
	return &screen[domain.Branch]{
		key:    "branches",
		title:  i18n.T("nav.branches"),
		area:   templates.AreaStaff,
		prefix: "/branches",
		base:   staticBase("/admin/branches"),
		resource: func(s *Server, r *http.Request) apiclient.Resource[domain.Branch] {
			return s.staffAPI(r).Branches()
		},
		columns: func(*Server) []table.Column[domain.Branch] {
			return []table.Column[domain.Branch]{
				table.Text("name", i18n.T("field.name"), func(b domain.Branch) string { return b.Name }),
				table.Text("company", i18n.T("field.company"), func(b domain.Branch) string { return b.CompanyName }),
				table.Text("city", i18n.T("field.city"), func(b domain.Branch) string { return b.City }),
				table.Text("county", i18n.T("field.county"), func(b domain.Branch) string { return b.County }),
				table.Text("package", i18n.T("field.package"), func(b domain.Branch) string { return b.PackageName }),
				table.Text("sms_remaining", i18n.T("field.smsRemaining"), func(b domain.Branch) string {
					if b.SMSRemaining == nil {
						return ""
					}
					return strconv.Itoa(*b.SMSRemaining)
				}).Searchable(false),
				table.Badge("is_active", i18n.T("field.status"), func(b domain.Branch) (string, table.Tone) { return activeBadge(b.IsActive) }).Searchable(false),
			}
		},
		fields: func(s *Server, r *http.Request, _ bool) ([]form.Field[domain.Branch], error) {
			companies, err := companyOptions(r.Context(), s.staffAPI(r))
			if err != nil {
				return nil, err
			}
			return []form.Field[domain.Branch]{
				{Name: "company_id", Label: i18n.T("field.company"), Input: form.InputSelect, Options: companies, Required: true,
					Validate: form.OneOf[domain.Branch](companies),
					Bind:     form.String(func(b *domain.Branch) *string { return &b.CompanyID })},
				{Name: "name", Label: i18n.T("field.name"), Required: true,
					Bind: form.String(func(b *domain.Branch) *string { return &b.Name })},
				{Name: "address", Label: i18n.T("field.address"), Required: true,
					Bind: form.String(func(b *domain.Branch) *string { return &b.Address })},
				{Name: "city", Label: i18n.T("field.city"), Required: true,
					Bind: form.String(func(b *domain.Branch) *string { return &b.City })},
				{Name: "county", Label: i18n.T("field.county"),
					Bind: form.String(func(b *domain.Branch) *string { return &b.County })},
				{Name: "phone", Label: i18n.T("field.phone"), Input: form.InputTel, Validate: form.Phone[domain.Branch](),
					Bind: form.String(func(b *domain.Branch) *string { return &b.Phone })},
				{Name: "email", Label: i18n.T("field.email"), Input: form.InputEmail, Validate: form.Email[domain.Branch](),
					Bind: form.String(func(b *domain.Branch) *string { return &b.Email })},
				{Name: "latitude", Label: i18n.T("field.latitude"), Input: form.InputNumber,
					Bind: form.Float(func(b *domain.Branch) *float64 { return &b.Latitude })},
				{Name: "longitude", Label: i18n.T("field.longitude"), Input: form.InputNumber,
					Bind: form.Float(func(b *domain.Branch) *float64 { return &b.Longitude })},
				activeField(func(b *domain.Branch) *bool { return &b.IsActive }),
			}, nil
		},
		id:      func(b domain.Branch) string { return b.ID },
		blank:   func() domain.Branch { return domain.Branch{IsActive: true} },
		prepare: locateBranch,
	}
}

// locateBranch fills in the map pin from the address when none was given.
// An address the geocoder cannot find blocks the save so the operator can
// enter coordinates by hand; an unreachable geocoder does not.
func locateBranch(s *Server, r *http.Request, b *domain.Branch) error {
	b.Phone = normalizePhone(b.Phone)
	if b.HasLocation() || !s.geocoder.Enabled() {
		return nil
	}
	place, err := s.geocoder.Forward(r.Context(), b.FullAddress())
	switch {
	case err == nil:
		b.Latitude, b.Longitude = place.Lat, place.Lng
		return nil
	case errors.Is(err, geo.ErrNotFound):
		return err
	default:
		logging.FromContext(r.Context()).Warn("geocoding failed, saving without location",
			"address", b.FullAddress(), "error", err)
		return nil
	}
}

// Users

func usersScreen() *screen[domain.AdminUser] {
	return &screen[domain.AdminUser]{
		key:    "users",
		title:  i18n.T("nav.users"),
		area:   templates.AreaStaff,
		prefix: "/users",
		base:   staticBase("/admin/users"),
		resource: func(s *Server, r *http.Request) apiclient.Resource[domain.AdminUser] {
			return s.staffAPI(r).Users()
		},
		columns: func(*Server) []table.Column[domain.AdminUser] {
			return []table.Column[domain.AdminUser]{
				table.Text("name", i18n.T("field.name"), domain.AdminUser.FullName),
				table.Text("email", i18n.T("field.email"), func(u domain.AdminUser) string { return u.Email }),
				table.Text("phone", i18n.T("field.phone"), func(u domain.AdminUser) string { return phone.Format(u.Phone) }),
				table.Badge("role", i18n.T("field.role"), func(u domain.AdminUser) (string, table.Tone) {
					if u.Role == domain.RoleSuperAdmin {
						return u.Role, table.ToneWarning
					}
					return u.Role, table.ToneNeutral
				}),
				table.Badge("is_active", i18n.T("field.status"), func(u domain.AdminUser) (string, table.Tone) { return activeBadge(u.IsActive) }).Searchable(false),
			}
		},
		fields: func(s *Server, r *http.Request, editing bool) ([]form.Field[domain.AdminUser], error) {
			api := s.staffAPI(r)
			roles, err := roleOptions(r.Context(), api)
			if err != nil {
				return nil, err
			}
			companies, err := companyOptions(r.Context(), api)
			if err != nil {
				return nil, err
			}
			branches, err := branchOptions(r.Context(), api)
			if err != nil {
				return nil, err
			}
			return []form.Field[domain.AdminUser]{
				{Name: "first_name", Label: i18n.T("field.firstName"), Required: true,
					Bind: form.String(func(u *domain.AdminUser) *string { return &u.FirstName })},
				{Name: "last_name", Label: i18n.T("field.lastName"), Required: true,
					Bind: form.String(func(u *domain.AdminUser) *string { return &u.LastName })},
				{Name: "email", Label: i18n.T("field.email"), Input: form.InputEmail, Required: true, Validate: form.Email[domain.AdminUser](),
					Bind: form.String(func(u *domain.AdminUser) *string { return &u.Email })},
				{Name: "phone", Label: i18n.T("field.phone"), Input: form.InputTel, Validate: form.Phone[domain.AdminUser](),
					Bind: form.String(func(u *domain.AdminUser) *string { return &u.Phone })},
				{Name: "role", Label: i18n.T("field.role"), Input: form.InputSelect, Options: roles, Required: true,
					Validate: form.OneOf[domain.AdminUser](roles),
					Bind:     form.String(func(u *domain.AdminUser) *string { return &u.Role })},
				{Name: "company_id", Label: i18n.T("field.company"), Input: form.InputSelect, Options: companies,
					Validate: form.OneOf[domain.AdminUser](companies),
					Bind:     form.String(func(u *domain.AdminUser) *string { return &u.CompanyID })},
				{Name: "branch_id", Label: i18n.T("field.branch"), Input: form.InputSelect, Options: branches,
					Validate: form.OneOf[domain.AdminUser](branches),
					Bind:     form.String(func(u *domain.AdminUser) *string { return &u.BranchID })},
				{Name: "password", Label: i18n.T("field.password"), Input: form.InputPassword, Required: !editing,
					Validate: form.MinLength[domain.AdminUser](8),
					Bind:     form.String(func(u *domain.AdminUser) *string { return &u.Password })},
				activeField(func(u *domain.AdminUser) *bool { return &u.IsActive }),
			}, nil
		},
		id:    func(u domain.AdminUser) string { return u.ID },
		blank: func() domain.AdminUser { return domain.AdminUser{IsActive: true} },
		prepare: func(_ *Server, _ *http.Request, u *domain.AdminUser) error {
			u.Phone = normalizePhone(u.Phone)
			return nil
		},
	}
}

// Discounts

func discountsScreen() *screen[domain.Discount] {
	return &screen[domain.Discount]{
		key:    "discounts",
		title:  i18n.T("nav.discounts"),
		area:   templates.AreaStaff,
		prefix: "/discounts",
		base:   staticBase("/admin/discounts"),
		resource: func(s *Server, r *http.Request) apiclient.Resource[domain.Discount] {
			return s.staffAPI(r).Discounts()
		},
		columns: func(s *Server) []table.Column[domain.Discount] {
			return []table.Column[domain.Discount]{
				table.Text("name", i18n.T("field.name"), func(d domain.Discount) string { return d.Name }),
				table.Text("percentage", i18n.T("field.percentage"), func(d domain.Discount) string {
					return strconv.FormatFloat(d.Percentage, 'f', -1, 64) + "%"
				}),
				table.Date("valid_from", i18n.T("field.validFrom"), func(d domain.Discount) time.Time { return d.ValidFrom.Time }).Searchable(false),
				table.Date("valid_to", i18n.T("field.validTo"), func(d domain.Discount) time.Time { return d.ValidTo.Time }).Searchable(false),
				table.Badge("is_active", i18n.T("field.status"), func(d domain.Discount) (string, table.Tone) {
					return activeBadge(d.Active(s.now()))
				}).Searchable(false),
			}
		},
		fields: func(s *Server, r *http.Request, _ bool) ([]form.Field[domain.Discount], error) {
			packages, err := packageOptions(r.Context(), s.staffAPI(r))
			if err != nil {
				return nil, err
			}
			return []form.Field[domain.Discount]{
				{Name: "name", Label: i18n.T("field.name"), Required: true,
					Bind: form.String(func(d *domain.Discount) *string { return &d.Name })},
				{Name: "package_id", Label: i18n.T("field.package"), Input: form.InputSelect, Options: packages,
					Placeholder: i18n.T("field.allPackages"),
					Validate:    form.OneOf[domain.Discount](packages),
					Bind:        form.String(func(d *domain.Discount) *string { return &d.PackageID })},
				{Name: "percentage", Label: i18n.T("field.percentage"), Input: form.InputNumber, Required: true,
					Validate: form.Percentage[domain.Discount](),
					Bind:     form.Float(func(d *domain.Discount) *float64 { return &d.Percentage })},
				{Name: "valid_from", Label: i18n.T("field.validFrom"), Input: form.InputDate, Required: true,
					Bind: form.Date(func(d *domain.Discount) *time.Time { return &d.ValidFrom.Time })},
				{Name: "valid_to", Label: i18n.T("field.validTo"), Input: form.InputDate, Required: true,
					Validate: form.NotBefore(func(d domain.Discount) time.Time { return d.ValidFrom.Time }),
					Bind:     form.Date(func(d *domain.Discount) *time.Time { return &d.ValidTo.Time })},
				activeField(func(d *domain.Discount) *bool { return &d.IsActive }),
			}, nil
		},
		id:    func(d domain.Discount) string { return d.ID },
		blank: func() domain.Discount { return domain.Discount{IsActive: true} },
	}
}
