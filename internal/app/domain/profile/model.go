package profile

import "time"

// Unset is the placeholder stored for health fields the user has not filled
// in yet. The mobile clients render it verbatim, so it stays a value rather
// than an empty string.
const Unset = "待填写"

// Profile carries the per-user extended record, distinct from the bare
// identity. One exists per user; the registration pipeline creates it
// explicitly together with the card package.
type Profile struct {
	ID            string
	UserID        string
	Nickname      string
	Phone         string
	Avatar        string
	HealthID      string
	BloodPressure string
	BloodSugar    string
	BloodOxygen   string
	Temperature   string
	Weight        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewDefault returns a profile with placeholder health fields, the way a
// freshly registered user starts out.
func NewDefault(userID, nickname, phone string) Profile {
	return Profile{
		UserID:        userID,
		Nickname:      nickname,
		Phone:         phone,
		HealthID:      Unset,
		BloodPressure: Unset,
		BloodSugar:    Unset,
		BloodOxygen:   Unset,
		Temperature:   Unset,
		Weight:        Unset,
	}
}

// CardType enumerates the card kinds a wallet can hold.
type CardType string

const (
	CardID     CardType = "ID"
	CardBank   CardType = "BANK"
	CardMember CardType = "MEMBER"
	CardOther  CardType = "OTHER"
)

// ValidCardType reports whether t is one of the enumerated kinds.
func ValidCardType(t CardType) bool {
	switch t {
	case CardID, CardBank, CardMember, CardOther:
		return true
	}
	return false
}

// CardPackage is a user's wallet. One exists per profile.
type CardPackage struct {
	ID        string
	ProfileID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Card is a single entry in a wallet.
type Card struct {
	ID        string
	PackageID string
	Name      string
	Type      CardType
	Number    string
	Remark    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HealthSchedule is a stored reminder. The care layer persists schedules but
// never dispatches them; delivery belongs to an external notifier.
type HealthSchedule struct {
	ID           string
	ProfileID    string
	Title        string
	ReminderTime time.Time
	Content      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
