package identity

import "time"

// Group names recognised by the authorization layer. Groups are free-form
// strings in storage; these are the ones the care layer assigns itself.
const (
	GroupAdmin     = "admin"
	GroupCaregiver = "caregiver"
	GroupElder     = "elder"
	GroupGuardian  = "guardian"
)

// User is an authenticatable account. The profile record hangs off of it
// one-to-one and carries the domain attributes.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string `json:"-"`
	Groups       []string
	Admin        bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InGroup reports whether the user belongs to the named group.
func (u User) InGroup(name string) bool {
	for _, g := range u.Groups {
		if g == name {
			return true
		}
	}
	return false
}

// InAnyGroup reports whether the user belongs to at least one of the named
// groups. An empty requirement list means no restriction.
func (u User) InAnyGroup(names []string) bool {
	if len(names) == 0 {
		return true
	}
	for _, name := range names {
		if u.InGroup(name) {
			return true
		}
	}
	return false
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}
