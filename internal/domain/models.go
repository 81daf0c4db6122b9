// Package domain holds the view models mirrored from the ITP backend and the
// little arithmetic the portal does on them. Every persistent fact lives in the
// backend; these records are the latest fetched snapshot.
package domain

import (
	"strings"
	"time"
)

// Company owns one or more inspection stations.
type Company struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	CUI       string     `json:"cui"` // fiscal code
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Address   string     `json:"address"`
	City      string     `json:"city"`
	IsActive  bool       `json:"is_active"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Branch is a physical inspection station belonging to a Company.
type Branch struct {
	ID           string  `json:"id,omitempty"`
	CompanyID    string  `json:"company_id"`
	CompanyName  string  `json:"company_name,omitempty"`
	Name         string  `json:"name"`
	Address      string  `json:"address"`
	City         string  `json:"city"`
	County       string  `json:"county"`
	Phone        string  `json:"phone"`
	Email        string  `json:"email"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	IsActive     bool    `json:"is_active"`
	PackageName  string  `json:"package_name,omitempty"`
	SMSRemaining *int    `json:"sms_remaining,omitempty"`
}

// HasLocation reports whether the map pin has been placed.
func (b Branch) HasLocation() bool {
	return b.Latitude != 0 || b.Longitude != 0
}

// FullAddress joins the address parts for geocoding and display.
func (b Branch) FullAddress() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{b.Address, b.City, b.County} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// RoleSuperAdmin is the only role the portal treats specially; the rest
// come from /roles.
const RoleSuperAdmin = "super_admin"

// Role is a staff role as returned by /roles.
type Role struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// AdminUser is a staff account.
type AdminUser struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id,omitempty"`
	BranchID  string `json:"branch_id,omitempty"`
	IsActive  bool   `json:"is_active"`

	// Password is only sent on create or reset.
	Password string `json:"password,omitempty"`
}

// FullName returns "First Last".
func (u AdminUser) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// CustomerUser is the customer portal account, stored as customer_user.
type CustomerUser struct {
	ID        string `json:"id"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// DisplayName falls back to the phone number.
func (u CustomerUser) DisplayName() string {
	if n := strings.TrimSpace(u.FirstName + " " + u.LastName); n != "" {
		return n
	}
	return u.Phone
}

// CustomerCar is a vehicle registered by a customer.
type CustomerCar struct {
	ID           string `json:"id,omitempty"`
	PlateNumber  string `json:"plate_number"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
	VIN          string `json:"vin"`
	ITPExpiresAt Date   `json:"itp_expires_at"`
}

// Document types a customer can track for a car.
const (
	DocumentITP       = "itp"
	DocumentRCA       = "rca"
	DocumentRovinieta = "rovinieta"
	DocumentCASCO     = "casco"
)

// DocumentTypes lists the document types in display order.
var DocumentTypes = []string{DocumentITP, DocumentRCA, DocumentRovinieta, DocumentCASCO}

// CarDocument is an expiring car document.
type CarDocument struct {
	ID        string `json:"id,omitempty"`
	CarID     string `json:"car_id"`
	Type      string `json:"type"`
	Number    string `json:"number"`
	IssuedAt  Date   `json:"issued_at"`
	ExpiresAt Date   `json:"expires_at"`
}

// Expired reports whether the document is past its expiry day.
func (d CarDocument) Expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && d.ExpiresAt.Before(NewDate(now).Time)
}

// Reminder channels.
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// CarReminder schedules a notification about a car.
type CarReminder struct {
	ID       string `json:"id,omitempty"`
	CarID    string `json:"car_id"`
	Type     string `json:"type"`
	RemindAt Date   `json:"remind_at"`
	Channel  string `json:"channel"`
	Note     string `json:"note"`
}

// Package is a subscription tier limiting SMS notification volume.
type Package struct {
	ID           string  `json:"id,omitempty"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	SMSLimit     int     `json:"sms_limit"`
	MonthlyPrice float64 `json:"monthly_price"`
	IsActive     bool    `json:"is_active"`
}

// PackageSubscription is a package purchased for a branch.
type PackageSubscription struct {
	ID         string  `json:"id,omitempty"`
	BranchID   string  `json:"branch_id"`
	PackageID  string  `json:"package_id"`
	Period     Period  `json:"period"`
	DiscountID string  `json:"discount_id,omitempty"`
	Price      float64 `json:"price"`
	StartsAt   Date    `json:"starts_at"`
	EndsAt     Date    `json:"ends_at"`
}

// Discount is a percentage promotion, optionally limited to one package.
type Discount struct {
	ID         string  `json:"id,omitempty"`
	Name       string  `json:"name"`
	PackageID  string  `json:"package_id,omitempty"` // empty: every package
	Percentage float64 `json:"percentage"`
	ValidFrom  Date    `json:"valid_from"`
	ValidTo    Date    `json:"valid_to"`
	IsActive   bool    `json:"is_active"`
}

// Active reports whether the discount applies on the given day.
// Zero bounds are open.
func (d Discount) Active(now time.Time) bool {
	if !d.IsActive {
		return false
	}
	day := NewDate(now).Time
	if !d.ValidFrom.IsZero() && day.Before(d.ValidFrom.Time) {
		return false
	}
	if !d.ValidTo.IsZero() && day.After(d.ValidTo.Time) {
		return false
	}
	return true
}

// AppliesTo reports whether the discount covers the package.
func (d Discount) AppliesTo(packageID string) bool {
	return d.PackageID == "" || d.PackageID == packageID
}

// Statistics is the dashboard summary.
type Statistics struct {
	Companies           int            `json:"companies"`
	Branches            int            `json:"branches"`
	Users               int            `json:"users"`
	Customers           int            `json:"customers"`
	Cars                int            `json:"cars"`
	SMSSent             int            `json:"sms_sent"`
	ActiveSubscriptions int            `json:"active_subscriptions"`
	Monthly             []MonthlyStats `json:"monthly"`
}

// MonthlyStats is one row of the dashboard history.
type MonthlyStats struct {
	Month       string  `json:"month"` // YYYY-MM
	Inspections int     `json:"inspections"`
	SMSSent     int     `json:"sms_sent"`
	Revenue     float64 `json:"revenue"`
}
