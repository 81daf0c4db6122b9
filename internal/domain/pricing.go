package domain

import (
	"fmt"
	"math"
	"time"
)

// Period is a subscription billing period.
type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// YearlyMultiplier is how many monthly prices a yearly subscription costs.
const YearlyMultiplier = 10

// ParsePeriod accepts "monthly" or "yearly".
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodMonthly, PeriodYearly:
		return Period(s), nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Quote is the price breakdown shown in the subscribe drawer.
type Quote struct {
	Base            float64 // period price before discount
	DiscountPercent float64
	DiscountAmount  float64
	Total           float64
}

// QuotePrice computes the subscription price. The yearly multiplier is
// applied to the monthly price before the discount percentage.
// Percentages outside 0..100 are clamped.
func QuotePrice(monthly float64, period Period, discountPercent float64) Quote {
	base := monthly
	if period == PeriodYearly {
		base = monthly * YearlyMultiplier
	}
	pct := math.Min(math.Max(discountPercent, 0), 100)
	total := roundCents(base * (1 - pct/100))
	return Quote{
		Base:            roundCents(base),
		DiscountPercent: pct,
		DiscountAmount:  roundCents(base - total),
		Total:           total,
	}
}

// BestDiscount returns the largest active discount for the package, if any.
func BestDiscount(discounts []Discount, packageID string, now time.Time) (Discount, bool) {
	var best Discount
	found := false
	for _, d := range discounts {
		if !d.Active(now) || !d.AppliesTo(packageID) {
			continue
		}
		if !found || d.Percentage > best.Percentage {
			best, found = d, true
		}
	}
	return best, found
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatLei renders an amount as "1.234,50 lei".
func FormatLei(v float64) string {
	neg := v < 0
	cents := int64(math.Round(math.Abs(v) * 100))
	whole, frac := cents/100, cents%100

	digits := fmt.Sprintf("%d", whole)
	var out []byte
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, digits[i])
	}
	s := fmt.Sprintf("%s,%02d lei", out, frac)
	if neg {
		return "-" + s
	}
	return s
}
