// Package authz decides whether a user may act on a profile or user record.
package authz

import "askbox/internal/models"

// Decision is the outcome of a permission check.
type Decision int

const (
	// Denied is the zero value so an unset decision fails closed.
	Denied Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

// IsAllowed reports whether d is Allowed.
func (d Decision) IsAllowed() bool {
	return d == Allowed
}

// CheckProfile allows user to act as profileID only when it manages that profile.
func CheckProfile(user *models.User, profileID string) Decision {
	if user == nil || profileID == "" {
		return Denied
	}
	if user.ManagesProfile(profileID) {
		return Allowed
	}
	return Denied
}

// CheckSelf allows user to act on the user record userID only when it is that user.
func CheckSelf(user *models.User, userID uint) Decision {
	if user == nil || user.ID == 0 || user.ID != userID {
		return Denied
	}
	return Allowed
}
