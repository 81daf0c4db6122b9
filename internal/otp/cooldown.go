// Package otp tracks the resend countdown of customer one-time passwords.
package otp

import (
	"math"
	"strconv"
	"time"
)

// DefaultCooldown is the minimum delay between two codes sent to one browser.
const DefaultCooldown = 60 * time.Second

// Cooldown computes the resend countdown. Now defaults to time.Now.
type Cooldown struct {
	Duration time.Duration
	Now      func() time.Time
}

// New returns a cooldown of d, or DefaultCooldown when d is not positive.
func New(d time.Duration) Cooldown {
	if d <= 0 {
		d = DefaultCooldown
	}
	return Cooldown{Duration: d, Now: time.Now}
}

func (c Cooldown) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Remaining is the time left before another code may be sent.
// A zero sentAt means nothing was sent yet.
func (c Cooldown) Remaining(sentAt time.Time) time.Duration {
	if sentAt.IsZero() {
		return 0
	}
	left := c.Duration - c.now().Sub(sentAt)
	if left < 0 {
		return 0
	}
	return left
}

// RemainingSeconds rounds the countdown up to whole seconds for display.
func (c Cooldown) RemainingSeconds(sentAt time.Time) int {
	return int(math.Ceil(c.Remaining(sentAt).Seconds()))
}

// CanResend reports whether the countdown has elapsed.
func (c Cooldown) CanResend(sentAt time.Time) bool {
	return c.Remaining(sentAt) == 0
}

// EncodeSentAt and DecodeSentAt store the send time as epoch milliseconds.
func EncodeSentAt(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// DecodeSentAt returns the zero time for empty or malformed values.
func DecodeSentAt(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
