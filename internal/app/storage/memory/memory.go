package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/SilverCare-Net/care_layer/internal/app/domain/guardianship"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/identity"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/profile"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/servicereq"
	"github.com/SilverCare-Net/care_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development. It enforces the same uniqueness rules as the PostgreSQL store
// so duplicate races fail identically in both backends.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	users           map[string]identity.User
	usersByName     map[string]string
	usersByEmail    map[string]string
	profiles        map[string]profile.Profile
	profilesByUser  map[string]string
	profilesByPhone map[string]string
	packages        map[string]profile.CardPackage
	packagesByProf  map[string]string
	cards           map[string]profile.Card
	schedules       map[string]profile.HealthSchedule
	edges           map[string]guardianship.Edge
	edgeOrder       []string
	edgesByPair     map[string]string
	requests        map[string]servicereq.Request
	requestOrder    []string
	sessions        map[string]session
}

type session struct {
	userID    string
	expiresAt time.Time
}

var _ storage.IdentityStore = (*Store)(nil)
var _ storage.ProfileStore = (*Store)(nil)
var _ storage.CardStore = (*Store)(nil)
var _ storage.ScheduleStore = (*Store)(nil)
var _ storage.GuardianshipStore = (*Store)(nil)
var _ storage.ServiceRequestStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:          1,
		users:           make(map[string]identity.User),
		usersByName:     make(map[string]string),
		usersByEmail:    make(map[string]string),
		profiles:        make(map[string]profile.Profile),
		profilesByUser:  make(map[string]string),
		profilesByPhone: make(map[string]string),
		packages:        make(map[string]profile.CardPackage),
		packagesByProf:  make(map[string]string),
		cards:           make(map[string]profile.Card),
		schedules:       make(map[string]profile.HealthSchedule),
		edges:           make(map[string]guardianship.Edge),
		edgesByPair:     make(map[string]string),
		requests:        make(map[string]servicereq.Request),
		sessions:        make(map[string]session),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func pairKey(guardianID, wardID string) string {
	return guardianID + "\x00" + wardID
}

// IdentityStore implementation ------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u identity.User) (identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nameKey := strings.ToLower(u.Username)
	emailKey := strings.ToLower(u.Email)
	if _, exists := s.usersByName[nameKey]; exists {
		return identity.User{}, fmt.Errorf("username %s: %w", u.Username, storage.ErrConflict)
	}
	if emailKey != "" {
		if _, exists := s.usersByEmail[emailKey]; exists {
			return identity.User{}, fmt.Errorf("email %s: %w", u.Email, storage.ErrConflict)
		}
	}

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return identity.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrConflict)
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Groups = append([]string(nil), u.Groups...)

	s.users[u.ID] = u
	s.usersByName[nameKey] = u.ID
	if emailKey != "" {
		s.usersByEmail[emailKey] = u.ID
	}
	return cloneUser(u), nil
}

func (s *Store) UpdateUser(_ context.Context, u identity.User) (identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return identity.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}

	u.Username = original.Username
	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	u.Groups = append([]string(nil), u.Groups...)

	s.users[u.ID] = u
	return cloneUser(u), nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	delete(s.users, id)
	delete(s.usersByName, strings.ToLower(u.Username))
	if u.Email != "" {
		delete(s.usersByEmail, strings.ToLower(u.Email))
	}
	for hash, sess := range s.sessions {
		if sess.userID == id {
			delete(s.sessions, hash)
		}
	}
	if profID, ok := s.profilesByUser[id]; ok {
		s.deleteProfileLocked(profID)
	}
	return nil
}

// deleteProfileLocked mirrors the schema's ON DELETE CASCADE for a profile's
// dependents.
func (s *Store) deleteProfileLocked(profID string) {
	p := s.profiles[profID]
	delete(s.profiles, profID)
	delete(s.profilesByUser, p.UserID)
	if p.Phone != "" {
		delete(s.profilesByPhone, p.Phone)
	}

	if pkgID, ok := s.packagesByProf[profID]; ok {
		delete(s.packages, pkgID)
		delete(s.packagesByProf, profID)
		for cardID, c := range s.cards {
			if c.PackageID == pkgID {
				delete(s.cards, cardID)
			}
		}
	}
	for schedID, sch := range s.schedules {
		if sch.ProfileID == profID {
			delete(s.schedules, schedID)
		}
	}
	for edgeID, e := range s.edges {
		if e.GuardianID == profID || e.WardID == profID {
			delete(s.edges, edgeID)
			delete(s.edgesByPair, pairKey(e.GuardianID, e.WardID))
			s.edgeOrder = removeID(s.edgeOrder, edgeID)
		}
	}
	for reqID, r := range s.requests {
		if r.ClientID == profID {
			delete(s.requests, reqID)
			s.requestOrder = removeID(s.requestOrder, reqID)
		}
	}
}

func (s *Store) GetUser(_ context.Context, id string) (identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return identity.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByName[strings.ToLower(username)]
	if !ok {
		return identity.User{}, fmt.Errorf("user %s: %w", username, storage.ErrNotFound)
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return identity.User{}, fmt.Errorf("email %s: %w", email, storage.ErrNotFound)
	}
	return cloneUser(s.users[id]), nil
}

// ProfileStore implementation -------------------------------------------------

func (s *Store) CreateProfile(_ context.Context, p profile.Profile) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profilesByUser[p.UserID]; exists {
		return profile.Profile{}, fmt.Errorf("profile for user %s: %w", p.UserID, storage.ErrConflict)
	}
	if p.Phone != "" {
		if _, exists := s.profilesByPhone[p.Phone]; exists {
			return profile.Profile{}, fmt.Errorf("phone %s: %w", p.Phone, storage.ErrConflict)
		}
	}

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.profiles[p.ID]; exists {
		return profile.Profile{}, fmt.Errorf("profile %s: %w", p.ID, storage.ErrConflict)
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.profiles[p.ID] = p
	s.profilesByUser[p.UserID] = p.ID
	if p.Phone != "" {
		s.profilesByPhone[p.Phone] = p.ID
	}
	return p, nil
}

func (s *Store) UpdateProfile(_ context.Context, p profile.Profile) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.profiles[p.ID]
	if !ok {
		return profile.Profile{}, fmt.Errorf("profile %s: %w", p.ID, storage.ErrNotFound)
	}

	if p.Phone != original.Phone && p.Phone != "" {
		if existing, exists := s.profilesByPhone[p.Phone]; exists && existing != p.ID {
			return profile.Profile{}, fmt.Errorf("phone %s: %w", p.Phone, storage.ErrConflict)
		}
	}

	p.UserID = original.UserID
	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	s.profiles[p.ID] = p
	if original.Phone != p.Phone {
		if original.Phone != "" {
			delete(s.profilesByPhone, original.Phone)
		}
		if p.Phone != "" {
			s.profilesByPhone[p.Phone] = p.ID
		}
	}
	return p, nil
}

func (s *Store) GetProfile(_ context.Context, id string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return profile.Profile{}, fmt.Errorf("profile %s: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) GetProfileByUser(_ context.Context, userID string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.profilesByUser[userID]
	if !ok {
		return profile.Profile{}, fmt.Errorf("profile for user %s: %w", userID, storage.ErrNotFound)
	}
	return s.profiles[id], nil
}

func (s *Store) SearchProfilesByPhone(_ context.Context, fragment string) ([]profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(fragment)
	result := make([]profile.Profile, 0)
	for _, p := range s.profiles {
		if strings.Contains(strings.ToLower(p.Phone), needle) {
			result = append(result, p)
		}
	}
	return result, nil
}

// CardStore implementation ----------------------------------------------------

func (s *Store) CreateCardPackage(_ context.Context, pkg profile.CardPackage) (profile.CardPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.packagesByProf[pkg.ProfileID]; exists {
		return profile.CardPackage{}, fmt.Errorf("card package for profile %s: %w", pkg.ProfileID, storage.ErrConflict)
	}

	if pkg.ID == "" {
		pkg.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	pkg.CreatedAt = now
	pkg.UpdatedAt = now

	s.packages[pkg.ID] = pkg
	s.packagesByProf[pkg.ProfileID] = pkg.ID
	return pkg, nil
}

func (s *Store) GetCardPackageByProfile(_ context.Context, profileID string) (profile.CardPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.packagesByProf[profileID]
	if !ok {
		return profile.CardPackage{}, fmt.Errorf("card package for profile %s: %w", profileID, storage.ErrNotFound)
	}
	return s.packages[id], nil
}

func (s *Store) CreateCard(_ context.Context, c profile.Card) (profile.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.packages[c.PackageID]; !exists {
		return profile.Card{}, fmt.Errorf("card package %s: %w", c.PackageID, storage.ErrNotFound)
	}

	if c.ID == "" {
		c.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	s.cards[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCard(_ context.Context, c profile.Card) (profile.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.cards[c.ID]
	if !ok {
		return profile.Card{}, fmt.Errorf("card %s: %w", c.ID, storage.ErrNotFound)
	}

	c.PackageID = original.PackageID
	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	s.cards[c.ID] = c
	return c, nil
}

func (s *Store) GetCard(_ context.Context, id string) (profile.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[id]
	if !ok {
		return profile.Card{}, fmt.Errorf("card %s: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) DeleteCard(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[id]; !ok {
		return fmt.Errorf("card %s: %w", id, storage.ErrNotFound)
	}
	delete(s.cards, id)
	return nil
}

func (s *Store) ListCards(_ context.Context, packageID string) ([]profile.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]profile.Card, 0)
	for _, c := range s.cards {
		if c.PackageID == packageID {
			result = append(result, c)
		}
	}
	return result, nil
}

// ScheduleStore implementation ------------------------------------------------

func (s *Store) CreateSchedule(_ context.Context, sch profile.HealthSchedule) (profile.HealthSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sch.ID == "" {
		sch.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	sch.CreatedAt = now
	sch.UpdatedAt = now

	s.schedules[sch.ID] = sch
	return sch, nil
}

func (s *Store) UpdateSchedule(_ context.Context, sch profile.HealthSchedule) (profile.HealthSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.schedules[sch.ID]
	if !ok {
		return profile.HealthSchedule{}, fmt.Errorf("schedule %s: %w", sch.ID, storage.ErrNotFound)
	}

	sch.ProfileID = original.ProfileID
	sch.CreatedAt = original.CreatedAt
	sch.UpdatedAt = time.Now().UTC()

	s.schedules[sch.ID] = sch
	return sch, nil
}

func (s *Store) GetSchedule(_ context.Context, id string) (profile.HealthSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sch, ok := s.schedules[id]
	if !ok {
		return profile.HealthSchedule{}, fmt.Errorf("schedule %s: %w", id, storage.ErrNotFound)
	}
	return sch, nil
}

func (s *Store) DeleteSchedule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[id]; !ok {
		return fmt.Errorf("schedule %s: %w", id, storage.ErrNotFound)
	}
	delete(s.schedules, id)
	return nil
}

func (s *Store) ListSchedules(_ context.Context, profileID string) ([]profile.HealthSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]profile.HealthSchedule, 0)
	for _, sch := range s.schedules {
		if sch.ProfileID == profileID {
			result = append(result, sch)
		}
	}
	return result, nil
}

// GuardianshipStore implementation --------------------------------------------

func (s *Store) CreateEdge(_ context.Context, e guardianship.Edge) (guardianship.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(e.GuardianID, e.WardID)
	if _, exists := s.edgesByPair[key]; exists {
		return guardianship.Edge{}, fmt.Errorf("edge (%s, %s): %w", e.GuardianID, e.WardID, storage.ErrConflict)
	}
	if _, ok := s.profiles[e.GuardianID]; !ok {
		return guardianship.Edge{}, fmt.Errorf("guardian profile %s: %w", e.GuardianID, storage.ErrNotFound)
	}
	if _, ok := s.profiles[e.WardID]; !ok {
		return guardianship.Edge{}, fmt.Errorf("ward profile %s: %w", e.WardID, storage.ErrNotFound)
	}

	if e.ID == "" {
		e.ID = s.nextIDLocked()
	}
	e.CreatedAt = time.Now().UTC()

	s.edges[e.ID] = e
	s.edgeOrder = append(s.edgeOrder, e.ID)
	s.edgesByPair[key] = e.ID
	return e, nil
}

func (s *Store) GetEdge(_ context.Context, id string) (guardianship.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.edges[id]
	if !ok {
		return guardianship.Edge{}, fmt.Errorf("edge %s: %w", id, storage.ErrNotFound)
	}
	return e, nil
}

func (s *Store) ListEdgesByGuardianUser(_ context.Context, userID string) ([]guardianship.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]guardianship.Edge, 0)
	for _, id := range s.edgeOrder {
		e, ok := s.edges[id]
		if !ok {
			continue
		}
		guardian, ok := s.profiles[e.GuardianID]
		if ok && guardian.UserID == userID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *Store) ListEdgesByWard(_ context.Context, wardProfileID string) ([]guardianship.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]guardianship.Edge, 0)
	for _, id := range s.edgeOrder {
		e, ok := s.edges[id]
		if !ok {
			continue
		}
		if e.WardID == wardProfileID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *Store) DeleteEdge(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.edges[id]
	if !ok {
		return fmt.Errorf("edge %s: %w", id, storage.ErrNotFound)
	}
	delete(s.edges, id)
	delete(s.edgesByPair, pairKey(e.GuardianID, e.WardID))
	s.edgeOrder = removeID(s.edgeOrder, id)
	return nil
}

// ServiceRequestStore implementation ------------------------------------------

func (s *Store) CreateServiceRequest(_ context.Context, r servicereq.Request) (servicereq.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	s.requests[r.ID] = r
	s.requestOrder = append(s.requestOrder, r.ID)
	return r, nil
}

func (s *Store) UpdateServiceRequest(_ context.Context, r servicereq.Request) (servicereq.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.requests[r.ID]
	if !ok {
		return servicereq.Request{}, fmt.Errorf("service request %s: %w", r.ID, storage.ErrNotFound)
	}

	r.ClientID = original.ClientID
	r.CreatedAt = original.CreatedAt
	r.UpdatedAt = time.Now().UTC()

	s.requests[r.ID] = r
	return r, nil
}

func (s *Store) GetServiceRequest(_ context.Context, id string) (servicereq.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return servicereq.Request{}, fmt.Errorf("service request %s: %w", id, storage.ErrNotFound)
	}
	return r, nil
}

func (s *Store) DeleteServiceRequest(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[id]; !ok {
		return fmt.Errorf("service request %s: %w", id, storage.ErrNotFound)
	}
	delete(s.requests, id)
	s.requestOrder = removeID(s.requestOrder, id)
	return nil
}

func (s *Store) ListServiceRequests(_ context.Context, clientID string) ([]servicereq.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]servicereq.Request, 0)
	for _, id := range s.requestOrder {
		r, ok := s.requests[id]
		if !ok {
			continue
		}
		if clientID == "" || r.ClientID == clientID {
			result = append(result, r)
		}
	}
	return result, nil
}

// SessionStore implementation -------------------------------------------------

func (s *Store) SaveSession(_ context.Context, tokenHash, userID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[tokenHash] = session{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *Store) GetSession(_ context.Context, tokenHash string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[tokenHash]
	if !ok || time.Now().After(sess.expiresAt) {
		return "", fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	return sess.userID, nil
}

func (s *Store) DeleteSession(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, tokenHash)
	return nil
}

// Helpers ----------------------------------------------------------------------

func cloneUser(u identity.User) identity.User {
	u.Groups = append([]string(nil), u.Groups...)
	return u
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
