// Package profiles manages user profiles, card wallets and health schedules.
// All operations are scoped to the owning user unless the caller is an admin.
package profiles

import (
	"context"
	"strings"
	"time"

	"github.com/SilverCare-Net/care_layer/internal/app/auth"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/profile"
	"github.com/SilverCare-Net/care_layer/internal/app/storage"
	"github.com/SilverCare-Net/care_layer/internal/errors"
	"github.com/SilverCare-Net/care_layer/internal/logging"
)

// Service manages profile records and everything hanging off of them.
type Service struct {
	profiles  storage.ProfileStore
	cards     storage.CardStore
	schedules storage.ScheduleStore
	log       *logging.Logger
}

// New constructs a profile service.
func New(profiles storage.ProfileStore, cards storage.CardStore, schedules storage.ScheduleStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("profiles")
	}
	return &Service{profiles: profiles, cards: cards, schedules: schedules, log: log}
}

// GetForUser loads the profile owned by userID. The caller must be the owner
// or an admin.
func (s *Service) GetForUser(ctx context.Context, caller auth.Identity, userID string) (profile.Profile, error) {
	if userID == "" {
		userID = caller.UserID
	}
	if err := requireSelfOrAdmin(caller, userID); err != nil {
		return profile.Profile{}, err
	}

	p, err := s.profiles.GetProfileByUser(ctx, userID)
	if err != nil {
		return profile.Profile{}, mapStoreError(err, "profile not found")
	}
	return p, nil
}

// UpdateInput carries the profile fields a user may change. Nil pointers
// leave the stored value untouched.
type UpdateInput struct {
	Nickname      *string
	Phone         *string
	HealthID      *string
	BloodPressure *string
	BloodSugar    *string
	BloodOxygen   *string
	Temperature   *string
	Weight        *string
}

// Update applies the provided fields to the caller's profile.
func (s *Service) Update(ctx context.Context, caller auth.Identity, userID string, in UpdateInput) (profile.Profile, error) {
	if userID == "" {
		userID = caller.UserID
	}
	if err := requireSelfOrAdmin(caller, userID); err != nil {
		return profile.Profile{}, err
	}

	p, err := s.profiles.GetProfileByUser(ctx, userID)
	if err != nil {
		return profile.Profile{}, mapStoreError(err, "profile not found")
	}

	if in.Nickname != nil {
		nickname := strings.TrimSpace(*in.Nickname)
		if nickname == "" {
			return profile.Profile{}, errors.Validation("nickname must not be empty")
		}
		p.Nickname = nickname
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		if phone == "" {
			return profile.Profile{}, errors.Validation("phone must not be empty")
		}
		p.Phone = phone
	}
	applyIfSet(&p.HealthID, in.HealthID)
	applyIfSet(&p.BloodPressure, in.BloodPressure)
	applyIfSet(&p.BloodSugar, in.BloodSugar)
	applyIfSet(&p.BloodOxygen, in.BloodOxygen)
	applyIfSet(&p.Temperature, in.Temperature)
	applyIfSet(&p.Weight, in.Weight)

	updated, err := s.profiles.UpdateProfile(ctx, p)
	if err != nil {
		if storage.IsConflict(err) {
			return profile.Profile{}, errors.Validation("phone already registered")
		}
		return profile.Profile{}, err
	}
	return updated, nil
}

// SetAvatar records the stored avatar path on the caller's profile.
func (s *Service) SetAvatar(ctx context.Context, caller auth.Identity, avatarPath string) (profile.Profile, error) {
	p, err := s.profiles.GetProfileByUser(ctx, caller.UserID)
	if err != nil {
		return profile.Profile{}, mapStoreError(err, "profile not found")
	}
	p.Avatar = avatarPath
	updated, err := s.profiles.UpdateProfile(ctx, p)
	if err != nil {
		return profile.Profile{}, err
	}
	return updated, nil
}

// Wallet returns a user's card package together with its cards.
func (s *Service) Wallet(ctx context.Context, caller auth.Identity, userID string) (profile.CardPackage, []profile.Card, error) {
	if userID == "" {
		userID = caller.UserID
	}
	if err := requireSelfOrAdmin(caller, userID); err != nil {
		return profile.CardPackage{}, nil, err
	}

	p, err := s.profiles.GetProfileByUser(ctx, userID)
	if err != nil {
		return profile.CardPackage{}, nil, mapStoreError(err, "profile not found")
	}
	pkg, err := s.cards.GetCardPackageByProfile(ctx, p.ID)
	if err != nil {
		return profile.CardPackage{}, nil, mapStoreError(err, "card package not found")
	}
	cards, err := s.cards.ListCards(ctx, pkg.ID)
	if err != nil {
		return profile.CardPackage{}, nil, err
	}
	return pkg, cards, nil
}

// AddCard appends a card to the caller's wallet.
func (s *Service) AddCard(ctx context.Context, caller auth.Identity, name string, cardType profile.CardType, number, remark string) (profile.Card, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return profile.Card{}, errors.Validation("card name is required")
	}
	if !profile.ValidCardType(cardType) {
		return profile.Card{}, errors.Validation("unknown card type " + string(cardType))
	}

	pkg, err := s.callerPackage(ctx, caller)
	if err != nil {
		return profile.Card{}, err
	}

	card, err := s.cards.CreateCard(ctx, profile.Card{
		PackageID: pkg.ID,
		Name:      name,
		Type:      cardType,
		Number:    strings.TrimSpace(number),
		Remark:    strings.TrimSpace(remark),
	})
	if err != nil {
		return profile.Card{}, err
	}
	return card, nil
}

// UpdateCard modifies a card in the caller's wallet.
func (s *Service) UpdateCard(ctx context.Context, caller auth.Identity, id, name string, cardType profile.CardType, number, remark string) (profile.Card, error) {
	card, err := s.ownedCard(ctx, caller, id)
	if err != nil {
		return profile.Card{}, err
	}

	if name = strings.TrimSpace(name); name != "" {
		card.Name = name
	}
	if cardType != "" {
		if !profile.ValidCardType(cardType) {
			return profile.Card{}, errors.Validation("unknown card type " + string(cardType))
		}
		card.Type = cardType
	}
	if number != "" {
		card.Number = strings.TrimSpace(number)
	}
	if remark != "" {
		card.Remark = strings.TrimSpace(remark)
	}

	updated, err := s.cards.UpdateCard(ctx, card)
	if err != nil {
		return profile.Card{}, mapStoreError(err, "card not found")
	}
	return updated, nil
}

// DeleteCard removes a card from the caller's wallet.
func (s *Service) DeleteCard(ctx context.Context, caller auth.Identity, id string) error {
	if _, err := s.ownedCard(ctx, caller, id); err != nil {
		return err
	}
	if err := s.cards.DeleteCard(ctx, id); err != nil {
		return mapStoreError(err, "card not found")
	}
	return nil
}

// ListSchedules returns the caller's health schedules.
func (s *Service) ListSchedules(ctx context.Context, caller auth.Identity) ([]profile.HealthSchedule, error) {
	p, err := s.profiles.GetProfileByUser(ctx, caller.UserID)
	if err != nil {
		return nil, mapStoreError(err, "profile not found")
	}
	return s.schedules.ListSchedules(ctx, p.ID)
}

// CreateSchedule stores a reminder for the caller. The reminder time must be
// in the future; the layer persists schedules but never fires them.
func (s *Service) CreateSchedule(ctx context.Context, caller auth.Identity, title string, reminderTime time.Time, content string) (profile.HealthSchedule, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return profile.HealthSchedule{}, errors.Validation("title is required")
	}
	if !reminderTime.After(time.Now()) {
		return profile.HealthSchedule{}, errors.Validation("reminder_time must be in the future")
	}

	p, err := s.profiles.GetProfileByUser(ctx, caller.UserID)
	if err != nil {
		return profile.HealthSchedule{}, mapStoreError(err, "profile not found")
	}

	return s.schedules.CreateSchedule(ctx, profile.HealthSchedule{
		ProfileID:    p.ID,
		Title:        title,
		ReminderTime: reminderTime,
		Content:      content,
	})
}

// UpdateSchedule modifies one of the caller's schedules.
func (s *Service) UpdateSchedule(ctx context.Context, caller auth.Identity, id, title string, reminderTime time.Time, content string) (profile.HealthSchedule, error) {
	sch, err := s.ownedSchedule(ctx, caller, id)
	if err != nil {
		return profile.HealthSchedule{}, err
	}

	if title = strings.TrimSpace(title); title != "" {
		sch.Title = title
	}
	if !reminderTime.IsZero() {
		if !reminderTime.After(time.Now()) {
			return profile.HealthSchedule{}, errors.Validation("reminder_time must be in the future")
		}
		sch.ReminderTime = reminderTime
	}
	if content != "" {
		sch.Content = content
	}

	updated, err := s.schedules.UpdateSchedule(ctx, sch)
	if err != nil {
		return profile.HealthSchedule{}, mapStoreError(err, "schedule not found")
	}
	return updated, nil
}

// DeleteSchedule removes one of the caller's schedules.
func (s *Service) DeleteSchedule(ctx context.Context, caller auth.Identity, id string) error {
	if _, err := s.ownedSchedule(ctx, caller, id); err != nil {
		return err
	}
	if err := s.schedules.DeleteSchedule(ctx, id); err != nil {
		return mapStoreError(err, "schedule not found")
	}
	return nil
}

func (s *Service) callerPackage(ctx context.Context, caller auth.Identity) (profile.CardPackage, error) {
	p, err := s.profiles.GetProfileByUser(ctx, caller.UserID)
	if err != nil {
		return profile.CardPackage{}, mapStoreError(err, "profile not found")
	}
	pkg, err := s.cards.GetCardPackageByProfile(ctx, p.ID)
	if err != nil {
		return profile.CardPackage{}, mapStoreError(err, "card package not found")
	}
	return pkg, nil
}

func (s *Service) ownedCard(ctx context.Context, caller auth.Identity, id string) (profile.Card, error) {
	card, err := s.cards.GetCard(ctx, id)
	if err != nil {
		return profile.Card{}, mapStoreError(err, "card not found")
	}
	if caller.Admin {
		return card, nil
	}
	pkg, err := s.callerPackage(ctx, caller)
	if err != nil {
		return profile.Card{}, err
	}
	if card.PackageID != pkg.ID {
		return profile.Card{}, errors.PermissionDenied("")
	}
	return card, nil
}

func (s *Service) ownedSchedule(ctx context.Context, caller auth.Identity, id string) (profile.HealthSchedule, error) {
	sch, err := s.schedules.GetSchedule(ctx, id)
	if err != nil {
		return profile.HealthSchedule{}, mapStoreError(err, "schedule not found")
	}
	if caller.Admin {
		return sch, nil
	}
	p, err := s.profiles.GetProfileByUser(ctx, caller.UserID)
	if err != nil {
		return profile.HealthSchedule{}, mapStoreError(err, "profile not found")
	}
	if sch.ProfileID != p.ID {
		return profile.HealthSchedule{}, errors.PermissionDenied("")
	}
	return sch, nil
}

func requireSelfOrAdmin(caller auth.Identity, userID string) error {
	if caller.Admin || caller.UserID == userID {
		return nil
	}
	return errors.PermissionDenied("")
}

func applyIfSet(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func mapStoreError(err error, notFoundMessage string) error {
	if storage.IsNotFound(err) {
		return errors.NotFound(notFoundMessage)
	}
	return err
}
