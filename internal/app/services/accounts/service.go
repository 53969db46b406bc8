// Package accounts implements registration, login and token refresh. The
// registration pipeline creates the identity, its profile and its wallet as
// explicit sequential steps.
package accounts

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/SilverCare-Net/care_layer/internal/app/auth"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/identity"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/profile"
	"github.com/SilverCare-Net/care_layer/internal/app/storage"
	"github.com/SilverCare-Net/care_layer/internal/errors"
	"github.com/SilverCare-Net/care_layer/internal/logging"
)

// Service manages accounts and token lifecycles.
type Service struct {
	users    storage.IdentityStore
	profiles storage.ProfileStore
	cards    storage.CardStore
	sessions storage.SessionStore
	issuer   *auth.Issuer
	adminIDs map[string]bool
	log      *logging.Logger
}

// New constructs an identity service. adminUserIDs grants the admin
// capability to the named usernames at registration time.
func New(users storage.IdentityStore, profiles storage.ProfileStore, cards storage.CardStore,
	sessions storage.SessionStore, issuer *auth.Issuer, adminUserIDs []string, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("identity")
	}
	admins := make(map[string]bool, len(adminUserIDs))
	for _, id := range adminUserIDs {
		admins[strings.ToLower(id)] = true
	}
	return &Service{
		users:    users,
		profiles: profiles,
		cards:    cards,
		sessions: sessions,
		issuer:   issuer,
		adminIDs: admins,
		log:      log,
	}
}

// RegisterInput is the payload for the registration pipeline.
type RegisterInput struct {
	Username string
	Password string
	Email    string
	Nickname string
	Phone    string
	Groups   []string
}

// Register creates a user, its profile and its card package. Each step is
// explicit so a failure surfaces immediately instead of leaving work to a
// hidden hook.
func (s *Service) Register(ctx context.Context, in RegisterInput) (identity.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Nickname = strings.TrimSpace(in.Nickname)
	in.Phone = strings.TrimSpace(in.Phone)

	if in.Username == "" {
		return identity.User{}, errors.Validation("username is required")
	}
	if len(in.Password) < 6 {
		return identity.User{}, errors.Validation("password must be at least 6 characters")
	}
	if in.Phone == "" {
		return identity.User{}, errors.Validation("phone is required")
	}
	if in.Nickname == "" {
		in.Nickname = in.Username
	}
	if len(in.Groups) == 0 {
		in.Groups = []string{identity.GroupElder}
	}
	// Registration is open, so only the non-privileged groups may be chosen
	// here. Caregiver and admin memberships are granted through SetGroups.
	for _, g := range in.Groups {
		switch g {
		case identity.GroupElder, identity.GroupGuardian:
		case identity.GroupAdmin, identity.GroupCaregiver:
			return identity.User{}, errors.Validation("group " + g + " cannot be chosen at registration")
		default:
			return identity.User{}, errors.Validation("unknown group " + g)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return identity.User{}, errors.Internal("hash password", err)
	}

	user, err := s.users.CreateUser(ctx, identity.User{
		Username:     in.Username,
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: string(hash),
		Groups:       in.Groups,
		Admin:        s.adminIDs[strings.ToLower(in.Username)],
	})
	if err != nil {
		return identity.User{}, mapStoreError(err, "username or email already taken")
	}

	prof, err := s.profiles.CreateProfile(ctx, profile.NewDefault(user.ID, in.Nickname, in.Phone))
	if err != nil {
		s.rollbackUser(ctx, user.ID)
		return identity.User{}, mapStoreError(err, "phone already registered")
	}

	if _, err := s.cards.CreateCardPackage(ctx, profile.CardPackage{ProfileID: prof.ID}); err != nil {
		s.rollbackUser(ctx, user.ID)
		return identity.User{}, mapStoreError(err, "card package already exists")
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("user registered")
	return user, nil
}

// rollbackUser undoes the first registration step after a later one failed,
// so a rejected registration does not keep the username taken.
func (s *Service) rollbackUser(ctx context.Context, userID string) {
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("user_id", userID).Warn("rollback registered user")
	}
}

// SetGroups replaces a user's group memberships. This is the only way to hand
// out the caregiver and admin groups; tokens issued before the change keep
// their old claims until they are refreshed.
func (s *Service) SetGroups(ctx context.Context, userID string, groups []string) (identity.User, error) {
	for _, g := range groups {
		switch g {
		case identity.GroupAdmin, identity.GroupCaregiver, identity.GroupElder, identity.GroupGuardian:
		default:
			return identity.User{}, errors.Validation("unknown group " + g)
		}
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if storage.IsNotFound(err) {
			return identity.User{}, errors.NotFound("user not found")
		}
		return identity.User{}, err
	}

	user.Groups = append([]string(nil), groups...)
	updated, err := s.users.UpdateUser(ctx, user)
	if err != nil {
		return identity.User{}, err
	}
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"user_id": userID,
		"groups":  strings.Join(groups, ","),
	}).Info("user groups updated")
	return updated, nil
}

// Login verifies credentials and issues a token pair. The refresh token's
// hash is stored as a session so it can be revoked.
func (s *Service) Login(ctx context.Context, username, password string) (identity.TokenPair, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if storage.IsNotFound(err) {
			return identity.TokenPair{}, errors.Unauthorized("invalid username or password")
		}
		return identity.TokenPair{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.WithContext(ctx).WithField("username", username).Warn("failed login attempt")
		return identity.TokenPair{}, errors.Unauthorized("invalid username or password")
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return identity.TokenPair{}, err
	}
	s.log.WithContext(ctx).WithField("user_id", user.ID).Info("user logged in")
	return pair, nil
}

// Refresh rotates a token pair. The presented refresh token must match a
// live session; rotation revokes it so each refresh token is single-use.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (identity.TokenPair, error) {
	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return identity.TokenPair{}, err
	}

	hash := auth.HashToken(refreshToken)
	userID, err := s.sessions.GetSession(ctx, hash)
	if err != nil || userID != claims.UserID {
		return identity.TokenPair{}, errors.InvalidToken(nil).WithDetails("reason", "session revoked or expired")
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return identity.TokenPair{}, errors.InvalidToken(err)
	}

	if err := s.sessions.DeleteSession(ctx, hash); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("revoke refresh session")
	}
	return s.issuePair(ctx, user)
}

// Logout revokes the session behind a refresh token. Unknown tokens are a
// no-op so logout is idempotent.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.sessions.DeleteSession(ctx, auth.HashToken(refreshToken))
}

// GetUser loads one account.
func (s *Service) GetUser(ctx context.Context, id string) (identity.User, error) {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return identity.User{}, errors.NotFound("user not found")
		}
		return identity.User{}, err
	}
	return user, nil
}

func (s *Service) issuePair(ctx context.Context, user identity.User) (identity.TokenPair, error) {
	pair, err := s.issuer.IssuePair(user)
	if err != nil {
		return identity.TokenPair{}, errors.Internal("issue tokens", err)
	}
	expires := time.Now().Add(s.issuer.RefreshTTL())
	if err := s.sessions.SaveSession(ctx, auth.HashToken(pair.RefreshToken), user.ID, expires); err != nil {
		return identity.TokenPair{}, errors.Internal("save session", err)
	}
	return pair, nil
}

func mapStoreError(err error, conflictMessage string) error {
	if storage.IsConflict(err) {
		return errors.Validation(conflictMessage)
	}
	if storage.IsNotFound(err) {
		return errors.NotFound(err.Error())
	}
	return err
}
