package directory

import (
	"context"
	"testing"

	"github.com/SilverCare-Net/care_layer/internal/app/domain/identity"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/profile"
	"github.com/SilverCare-Net/care_layer/internal/app/storage/memory"
	"github.com/SilverCare-Net/care_layer/internal/errors"
)

func seedProfile(t *testing.T, store *memory.Store, username, phone string) (identity.User, profile.Profile) {
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
	return u, p
}

func TestService(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	guardianUser, guardianProf := seedProfile(t, store, "guardian", "13800000001")
	_, wardProf := seedProfile(t, store, "ward", "13900000002")

	edge, err := svc.Create(ctx, guardianProf.ID, wardProf.ID, "子女")
	if err != nil {
		t.Fatalf("create edge: %v", err)
	}
	if edge.GuardianName != "guardian" || edge.WardName != "ward" {
		t.Fatalf("display names: got (%q, %q)", edge.GuardianName, edge.WardName)
	}

	got, err := svc.Get(ctx, edge.ID)
	if err != nil {
		t.Fatalf("get edge: %v", err)
	}
	if got.Relationship != "子女" {
		t.Fatalf("relationship: got %q", got.Relationship)
	}

	forGuardian, err := svc.ListForGuardian(ctx, guardianUser.ID)
	if err != nil {
		t.Fatalf("list for guardian: %v", err)
	}
	if len(forGuardian) != 1 || forGuardian[0].ID != edge.ID {
		t.Fatalf("list for guardian: got %v", forGuardian)
	}

	forWard, err := svc.ListForWard(ctx, wardProf.ID)
	if err != nil {
		t.Fatalf("list for ward: %v", err)
	}
	if len(forWard) != 1 || forWard[0].ID != edge.ID {
		t.Fatalf("list for ward: got %v", forWard)
	}

	if err := svc.Delete(ctx, edge.ID); err != nil {
		t.Fatalf("delete edge: %v", err)
	}
	if err := svc.Delete(ctx, edge.ID); !errors.IsNotFound(err) {
		t.Fatalf("second delete: got %v, want not found", err)
	}
}

func TestService_CreateValidation(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	_, guardianProf := seedProfile(t, store, "guardian", "13800000001")
	_, wardProf := seedProfile(t, store, "ward", "13900000002")

	if _, err := svc.Create(ctx, guardianProf.ID, wardProf.ID, "  "); !errors.IsValidation(err) {
		t.Fatalf("blank relationship: got %v, want validation error", err)
	}
	if _, err := svc.Create(ctx, guardianProf.ID, "missing", "子女"); !errors.IsNotFound(err) {
		t.Fatalf("missing ward: got %v, want not found", err)
	}

	if _, err := svc.Create(ctx, guardianProf.ID, wardProf.ID, "子女"); err != nil {
		t.Fatalf("create edge: %v", err)
	}
	if _, err := svc.Create(ctx, guardianProf.ID, wardProf.ID, "亲属"); !errors.IsValidation(err) {
		t.Fatalf("duplicate pair: got %v, want validation error", err)
	}

	// Reverse direction is a distinct edge.
	if _, err := svc.Create(ctx, wardProf.ID, guardianProf.ID, "子女"); err != nil {
		t.Fatalf("reverse edge: %v", err)
	}
}

func TestService_SelfLoopAllowed(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)

	_, prof := seedProfile(t, store, "solo", "13800000001")
	if _, err := svc.Create(context.Background(), prof.ID, prof.ID, "本人"); err != nil {
		t.Fatalf("self loop: %v", err)
	}
}

func TestService_ListKeepsCreationOrder(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	guardianUser, guardianProf := seedProfile(t, store, "guardian", "13800000001")
	wards := []string{"13900000001", "13900000002", "13900000003"}
	var created []string
	for i, phone := range wards {
		_, wardProf := seedProfile(t, store, "ward"+phone, phone)
		edge, err := svc.Create(ctx, guardianProf.ID, wardProf.ID, "子女")
		if err != nil {
			t.Fatalf("create edge %d: %v", i, err)
		}
		created = append(created, edge.ID)
	}

	list, err := svc.ListForGuardian(ctx, guardianUser.ID)
	if err != nil {
		t.Fatalf("list for guardian: %v", err)
	}
	if len(list) != len(created) {
		t.Fatalf("list length: got %d, want %d", len(list), len(created))
	}
	for i := range created {
		if list[i].ID != created[i] {
			t.Fatalf("order mismatch at %d: got %s, want %s", i, list[i].ID, created[i])
		}
	}
}

func TestService_SearchProfilesByPhone(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	seedProfile(t, store, "alice", "13800000001")
	seedProfile(t, store, "bob", "13900000002")

	matches, err := svc.SearchProfilesByPhone(ctx, "138")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 || matches[0].Nickname != "alice" {
		t.Fatalf("search 138: got %v", matches)
	}

	matches, err = svc.SearchProfilesByPhone(ctx, "555")
	if err != nil {
		t.Fatalf("search no match: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("search 555: got %d matches, want 0", len(matches))
	}

	if _, err := svc.SearchProfilesByPhone(ctx, " "); !errors.IsValidation(err) {
		t.Fatalf("blank fragment: got %v, want validation error", err)
	}
}
