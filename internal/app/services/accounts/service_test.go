package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/SilverCare-Net/care_layer/internal/app/auth"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/identity"
	"github.com/SilverCare-Net/care_layer/internal/app/storage/memory"
	"github.com/SilverCare-Net/care_layer/internal/errors"
)

func newService(store *memory.Store, admins []string) *Service {
	issuer := auth.NewIssuer("test-secret", time.Hour, 24*time.Hour)
	return New(store, store, store, store, issuer, admins, nil)
}

func TestRegisterPipeline(t *testing.T) {
	store := memory.New()
	svc := newService(store, nil)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Username: "alice",
		Password: "secret1",
		Nickname: "阿丽",
		Phone:    "13800000001",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.PasswordHash == "secret1" {
		t.Fatal("password stored in the clear")
	}
	if !user.InGroup(identity.GroupElder) {
		t.Fatalf("default group: got %v", user.Groups)
	}

	prof, err := store.GetProfileByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("profile missing after register: %v", err)
	}
	if prof.Nickname != "阿丽" || prof.Phone != "13800000001" {
		t.Fatalf("profile fields: got (%q, %q)", prof.Nickname, prof.Phone)
	}
	if _, err := store.GetCardPackageByProfile(ctx, prof.ID); err != nil {
		t.Fatalf("card package missing after register: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	store := memory.New()
	svc := newService(store, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		in   RegisterInput
	}{
		{"blank username", RegisterInput{Password: "secret1", Phone: "138"}},
		{"short password", RegisterInput{Username: "a", Password: "123", Phone: "138"}},
		{"missing phone", RegisterInput{Username: "a", Password: "secret1"}},
		{"unknown group", RegisterInput{Username: "a", Password: "secret1", Phone: "138", Groups: []string{"root"}}},
		{"self-assigned admin", RegisterInput{Username: "a", Password: "secret1", Phone: "138", Groups: []string{identity.GroupAdmin}}},
		{"self-assigned caregiver", RegisterInput{Username: "a", Password: "secret1", Phone: "138", Groups: []string{identity.GroupCaregiver}}},
	}
	for _, tc := range cases {
		if _, err := svc.Register(ctx, tc.in); !errors.IsValidation(err) {
			t.Errorf("%s: got %v, want validation error", tc.name, err)
		}
	}

	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Password: "secret1", Phone: "13800000001"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Password: "secret1", Phone: "13800000009"}); !errors.IsValidation(err) {
		t.Fatal("duplicate username accepted")
	}
	if _, err := svc.Register(ctx, RegisterInput{Username: "bob", Password: "secret1", Phone: "13800000001"}); !errors.IsValidation(err) {
		t.Fatal("duplicate phone accepted")
	}
}

func TestRegisterRollbackOnDuplicatePhone(t *testing.T) {
	store := memory.New()
	svc := newService(store, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Password: "secret1", Phone: "13800000001"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Username: "bob", Password: "secret1", Phone: "13800000001"}); !errors.IsValidation(err) {
		t.Fatal("duplicate phone accepted")
	}

	// The failed attempt must not keep the username taken.
	user, err := svc.Register(ctx, RegisterInput{Username: "bob", Password: "secret1", Phone: "13800000002"})
	if err != nil {
		t.Fatalf("register after failed attempt: %v", err)
	}
	prof, err := store.GetProfileByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("profile missing after register: %v", err)
	}
	if _, err := store.GetCardPackageByProfile(ctx, prof.ID); err != nil {
		t.Fatalf("card package missing after register: %v", err)
	}
}

func TestSetGroups(t *testing.T) {
	store := memory.New()
	svc := newService(store, nil)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Username: "worker", Password: "secret1", Phone: "13800000003"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	updated, err := svc.SetGroups(ctx, user.ID, []string{identity.GroupCaregiver})
	if err != nil {
		t.Fatalf("set groups: %v", err)
	}
	if !updated.InGroup(identity.GroupCaregiver) {
		t.Fatalf("groups after update: got %v", updated.Groups)
	}

	if _, err := svc.SetGroups(ctx, user.ID, []string{"root"}); !errors.IsValidation(err) {
		t.Fatalf("unknown group: got %v, want validation error", err)
	}
	if _, err := svc.SetGroups(ctx, "999", []string{identity.GroupElder}); !errors.IsNotFound(err) {
		t.Fatalf("missing user: got %v, want not found", err)
	}
}

func TestLoginAndRefresh(t *testing.T) {
	store := memory.New()
	svc := newService(store, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Password: "secret1", Phone: "13800000001"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, "alice", "wrong"); err == nil {
		t.Fatal("wrong password accepted")
	}
	if _, err := svc.Login(ctx, "nobody", "secret1"); err == nil {
		t.Fatal("unknown user accepted")
	}

	pair, err := svc.Login(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("empty token pair")
	}

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token not rotated")
	}

	// The old refresh token is single-use.
	if _, err := svc.Refresh(ctx, pair.RefreshToken); err == nil {
		t.Fatal("stale refresh token accepted")
	}

	if err := svc.Logout(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Refresh(ctx, rotated.RefreshToken); err == nil {
		t.Fatal("refresh after logout accepted")
	}
}

func TestAdminAllowlist(t *testing.T) {
	store := memory.New()
	svc := newService(store, []string{"Root"})

	user, err := svc.Register(context.Background(), RegisterInput{Username: "root", Password: "secret1", Phone: "13800000001"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !user.Admin {
		t.Fatal("allowlisted user not admin")
	}
}
