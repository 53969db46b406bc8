package httpapi

import (
	"time"

	"github.com/SilverCare-Net/care_layer/internal/app/domain/guardianship"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/identity"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/profile"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/servicereq"
)

// Wire representations of the domain records. Kept separate from the domain
// types so the JSON shape can evolve without touching storage.

type userView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Groups    []string  `json:"groups"`
	Admin     bool      `json:"admin"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserView(u identity.User) userView {
	return userView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Groups:    u.Groups,
		Admin:     u.Admin,
		CreatedAt: u.CreatedAt,
	}
}

type profileView struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Nickname      string `json:"nickname"`
	Phone         string `json:"phone"`
	Avatar        string `json:"avatar,omitempty"`
	HealthID      string `json:"health_id"`
	BloodPressure string `json:"blood_pressure"`
	BloodSugar    string `json:"blood_sugar"`
	BloodOxygen   string `json:"blood_oxygen"`
	Temperature   string `json:"temperature"`
	Weight        string `json:"weight"`
}

func newProfileView(p profile.Profile) profileView {
	return profileView{
		ID:            p.ID,
		UserID:        p.UserID,
		Nickname:      p.Nickname,
		Phone:         p.Phone,
		Avatar:        p.Avatar,
		HealthID:      p.HealthID,
		BloodPressure: p.BloodPressure,
		BloodSugar:    p.BloodSugar,
		BloodOxygen:   p.BloodOxygen,
		Temperature:   p.Temperature,
		Weight:        p.Weight,
	}
}

type edgeView struct {
	ID           string    `json:"id"`
	GuardianID   string    `json:"guardian_id"`
	WardID       string    `json:"ward_id"`
	Relationship string    `json:"relationship"`
	GuardianName string    `json:"guardian_name,omitempty"`
	WardName     string    `json:"ward_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func newEdgeView(e guardianship.Edge) edgeView {
	return edgeView{
		ID:           e.ID,
		GuardianID:   e.GuardianID,
		WardID:       e.WardID,
		Relationship: e.Relationship,
		GuardianName: e.GuardianName,
		WardName:     e.WardName,
		CreatedAt:    e.CreatedAt,
	}
}

func newEdgeViews(edges []guardianship.Edge) []edgeView {
	views := make([]edgeView, 0, len(edges))
	for _, e := range edges {
		views = append(views, newEdgeView(e))
	}
	return views
}

type cardView struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Type      profile.CardType `json:"type"`
	Number    string           `json:"number,omitempty"`
	Remark    string           `json:"remark,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

func newCardView(c profile.Card) cardView {
	return cardView{
		ID:        c.ID,
		Name:      c.Name,
		Type:      c.Type,
		Number:    c.Number,
		Remark:    c.Remark,
		CreatedAt: c.CreatedAt,
	}
}

type walletView struct {
	PackageID string     `json:"package_id"`
	ProfileID string     `json:"profile_id"`
	Cards     []cardView `json:"cards"`
}

func newWalletView(pkg profile.CardPackage, cards []profile.Card) walletView {
	views := make([]cardView, 0, len(cards))
	for _, c := range cards {
		views = append(views, newCardView(c))
	}
	return walletView{PackageID: pkg.ID, ProfileID: pkg.ProfileID, Cards: views}
}

type scheduleView struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ReminderTime time.Time `json:"reminder_time"`
	Content      string    `json:"content,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func newScheduleView(s profile.HealthSchedule) scheduleView {
	return scheduleView{
		ID:           s.ID,
		Title:        s.Title,
		ReminderTime: s.ReminderTime,
		Content:      s.Content,
		CreatedAt:    s.CreatedAt,
	}
}

type requestView struct {
	ID          string            `json:"id"`
	ClientID    string            `json:"client_id"`
	CaregiverID string            `json:"caregiver_id,omitempty"`
	Type        servicereq.Type   `json:"type"`
	Status      servicereq.Status `json:"status"`
	ServiceTime time.Time         `json:"service_time"`
	Address     string            `json:"address,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func newRequestView(r servicereq.Request) requestView {
	return requestView{
		ID:          r.ID,
		ClientID:    r.ClientID,
		CaregiverID: r.CaregiverID,
		Type:        r.Type,
		Status:      r.Status,
		ServiceTime: r.ServiceTime,
		Address:     r.Address,
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
