package apiclient

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StaffClaims are the claims the portal reads from a staff access token.
// The signature is not verified here; the backend verifies every call.
type StaffClaims struct {
	Role      string `json:"role"`
	CompanyID string `json:"company_id,omitempty"`
	BranchID  string `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}

// ParseStaffClaims decodes the claims of an access token.
func ParseStaffClaims(token string) (*StaffClaims, error) {
	claims := &StaffClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// expirySkew refreshes slightly ahead of the real expiry.
const expirySkew = 10 * time.Second

// tokenExpired reports whether token is a JWT whose exp has passed. Opaque
// or unparseable tokens are left for the backend to judge.
func tokenExpired(token string, now time.Time) bool {
	claims, err := ParseStaffClaims(token)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return !now.Add(expirySkew).Before(claims.ExpiresAt.Time)
}
