package profiles

import (
	"context"
	"testing"
	"time"

	"github.com/SilverCare-Net/care_layer/internal/app/auth"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/identity"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/profile"
	"github.com/SilverCare-Net/care_layer/internal/app/storage/memory"
	"github.com/SilverCare-Net/care_layer/internal/errors"
)

func seedUser(t *testing.T, store *memory.Store, username, phone string) auth.Identity {
	t.Helper()
	ctx := context.Background()

	u, err := store.CreateUser(ctx, identity.User{Username: username, PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	p, err := store.CreateProfile(ctx, profile.NewDefault(u.ID, username, phone))
	if err != nil {
		t.Fatalf("create profile %s: %v", username, err)
	}
	if _, err := store.CreateCardPackage(ctx, profile.CardPackage{ProfileID: p.ID}); err != nil {
		t.Fatalf("create card package %s: %v", username, err)
	}
	return auth.Identity{UserID: u.ID}
}

func strptr(s string) *string { return &s }

func TestProfileOwnership(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil)
	ctx := context.Background()

	alice := seedUser(t, store, "alice", "13800000001")
	bob := seedUser(t, store, "bob", "13900000002")

	own, err := svc.GetForUser(ctx, alice, "")
	if err != nil {
		t.Fatalf("get own profile: %v", err)
	}
	if own.Nickname != "alice" {
		t.Fatalf("nickname: got %q", own.Nickname)
	}

	if _, err := svc.GetForUser(ctx, bob, alice.UserID); errors.GetServiceError(err) == nil ||
		errors.GetServiceError(err).Code != errors.CodePermissionDenied {
		t.Fatalf("cross-user read: got %v, want permission denied", err)
	}

	admin := auth.Identity{UserID: bob.UserID, Admin: true}
	if _, err := svc.GetForUser(ctx, admin, alice.UserID); err != nil {
		t.Fatalf("admin read: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil)
	ctx := context.Background()

	alice := seedUser(t, store, "alice", "13800000001")
	seedUser(t, store, "bob", "13900000002")

	updated, err := svc.Update(ctx, alice, "", UpdateInput{
		Nickname:      strptr("阿丽"),
		BloodPressure: strptr("120/80"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Nickname != "阿丽" || updated.BloodPressure != "120/80" {
		t.Fatalf("update applied wrong: %+v", updated)
	}
	if updated.Phone != "13800000001" {
		t.Fatalf("phone changed unexpectedly: %q", updated.Phone)
	}

	if _, err := svc.Update(ctx, alice, "", UpdateInput{Nickname: strptr("  ")}); !errors.IsValidation(err) {
		t.Fatalf("blank nickname: got %v, want validation error", err)
	}
	if _, err := svc.Update(ctx, alice, "", UpdateInput{Phone: strptr("13900000002")}); !errors.IsValidation(err) {
		t.Fatalf("duplicate phone: got %v, want validation error", err)
	}
}

func TestCardLifecycle(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil)
	ctx := context.Background()

	alice := seedUser(t, store, "alice", "13800000001")
	bob := seedUser(t, store, "bob", "13900000002")

	card, err := svc.AddCard(ctx, alice, "社保卡", profile.CardID, "110101", "")
	if err != nil {
		t.Fatalf("add card: %v", err)
	}

	if _, err := svc.AddCard(ctx, alice, "", profile.CardBank, "", ""); !errors.IsValidation(err) {
		t.Fatalf("blank name: got %v, want validation error", err)
	}
	if _, err := svc.AddCard(ctx, alice, "x", "CREDIT", "", ""); !errors.IsValidation(err) {
		t.Fatalf("bad type: got %v, want validation error", err)
	}

	// Another user cannot touch the card.
	if err := svc.DeleteCard(ctx, bob, card.ID); errors.GetServiceError(err) == nil ||
		errors.GetServiceError(err).Code != errors.CodePermissionDenied {
		t.Fatalf("cross-user delete: got %v, want permission denied", err)
	}

	updated, err := svc.UpdateCard(ctx, alice, card.ID, "医保卡", "", "110102", "")
	if err != nil {
		t.Fatalf("update card: %v", err)
	}
	if updated.Name != "医保卡" || updated.Number != "110102" {
		t.Fatalf("update applied wrong: %+v", updated)
	}

	if err := svc.DeleteCard(ctx, alice, card.ID); err != nil {
		t.Fatalf("delete card: %v", err)
	}

	_, cards, err := svc.Wallet(ctx, alice, "")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if len(cards) != 0 {
		t.Fatalf("wallet after delete: got %d cards", len(cards))
	}
}

func TestScheduleValidation(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil)
	ctx := context.Background()

	alice := seedUser(t, store, "alice", "13800000001")

	if _, err := svc.CreateSchedule(ctx, alice, "吃药", time.Now().Add(-time.Minute), ""); !errors.IsValidation(err) {
		t.Fatalf("past reminder: got %v, want validation error", err)
	}
	if _, err := svc.CreateSchedule(ctx, alice, " ", time.Now().Add(time.Hour), ""); !errors.IsValidation(err) {
		t.Fatalf("blank title: got %v, want validation error", err)
	}

	sch, err := svc.CreateSchedule(ctx, alice, "吃药", time.Now().Add(time.Hour), "饭后")
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	if _, err := svc.UpdateSchedule(ctx, alice, sch.ID, "", time.Now().Add(-time.Hour), ""); !errors.IsValidation(err) {
		t.Fatalf("past update: got %v, want validation error", err)
	}

	list, err := svc.ListSchedules(ctx, alice)
	if err != nil {
		t.Fatalf("list schedules: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list schedules: got %d, want 1", len(list))
	}

	if err := svc.DeleteSchedule(ctx, alice, sch.ID); err != nil {
		t.Fatalf("delete schedule: %v", err)
	}
}
