package storage

import (
	"context"
	"errors"
	"time"

	"github.com/SilverCare-Net/care_layer/internal/app/domain/guardianship"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/identity"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/profile"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/servicereq"
)

// Sentinel errors shared by all store implementations so services can map
// persistence failures onto the HTTP error taxonomy without knowing which
// backend is in use.
var (
	// ErrNotFound reports an absent record.
	ErrNotFound = errors.New("record not found")
	// ErrConflict reports a uniqueness violation, including the loser of a
	// concurrent duplicate insert.
	ErrConflict = errors.New("record conflicts with an existing record")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err wraps ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IdentityStore persists user accounts. DeleteUser removes the account and,
// matching the schema's cascades, any profile records hanging off of it.
type IdentityStore interface {
	CreateUser(ctx context.Context, u identity.User) (identity.User, error)
	UpdateUser(ctx context.Context, u identity.User) (identity.User, error)
	DeleteUser(ctx context.Context, id string) error
	GetUser(ctx context.Context, id string) (identity.User, error)
	GetUserByUsername(ctx context.Context, username string) (identity.User, error)
	GetUserByEmail(ctx context.Context, email string) (identity.User, error)
}

// ProfileStore persists user profiles. Phone numbers are unique across all
// profiles.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error)
	UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error)
	GetProfile(ctx context.Context, id string) (profile.Profile, error)
	GetProfileByUser(ctx context.Context, userID string) (profile.Profile, error)
	SearchProfilesByPhone(ctx context.Context, fragment string) ([]profile.Profile, error)
}

// CardStore persists wallets and their cards.
type CardStore interface {
	CreateCardPackage(ctx context.Context, pkg profile.CardPackage) (profile.CardPackage, error)
	GetCardPackageByProfile(ctx context.Context, profileID string) (profile.CardPackage, error)

	CreateCard(ctx context.Context, c profile.Card) (profile.Card, error)
	UpdateCard(ctx context.Context, c profile.Card) (profile.Card, error)
	GetCard(ctx context.Context, id string) (profile.Card, error)
	DeleteCard(ctx context.Context, id string) error
	ListCards(ctx context.Context, packageID string) ([]profile.Card, error)
}

// ScheduleStore persists health schedules.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, s profile.HealthSchedule) (profile.HealthSchedule, error)
	UpdateSchedule(ctx context.Context, s profile.HealthSchedule) (profile.HealthSchedule, error)
	GetSchedule(ctx context.Context, id string) (profile.HealthSchedule, error)
	DeleteSchedule(ctx context.Context, id string) error
	ListSchedules(ctx context.Context, profileID string) ([]profile.HealthSchedule, error)
}

// GuardianshipStore persists guardian→ward edges. CreateEdge returns
// ErrConflict when the ordered (guardian, ward) pair already exists; list
// results are ordered by edge id ascending so responses are stable.
type GuardianshipStore interface {
	CreateEdge(ctx context.Context, e guardianship.Edge) (guardianship.Edge, error)
	GetEdge(ctx context.Context, id string) (guardianship.Edge, error)
	ListEdgesByGuardianUser(ctx context.Context, userID string) ([]guardianship.Edge, error)
	ListEdgesByWard(ctx context.Context, wardProfileID string) ([]guardianship.Edge, error)
	DeleteEdge(ctx context.Context, id string) error
}

// ServiceRequestStore persists caregiving task records. An empty clientID
// lists all requests.
type ServiceRequestStore interface {
	CreateServiceRequest(ctx context.Context, r servicereq.Request) (servicereq.Request, error)
	UpdateServiceRequest(ctx context.Context, r servicereq.Request) (servicereq.Request, error)
	GetServiceRequest(ctx context.Context, id string) (servicereq.Request, error)
	DeleteServiceRequest(ctx context.Context, id string) error
	ListServiceRequests(ctx context.Context, clientID string) ([]servicereq.Request, error)
}

// SessionStore persists refresh-token sessions keyed by token hash.
type SessionStore interface {
	SaveSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	GetSession(ctx context.Context, tokenHash string) (string, error)
	DeleteSession(ctx context.Context, tokenHash string) error
}
