package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/SilverCare-Net/care_layer/internal/app/domain/guardianship"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/identity"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/profile"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/servicereq"
	"github.com/SilverCare-Net/care_layer/internal/app/storage"
)

const uniqueViolation = "23505"

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.IdentityStore = (*Store)(nil)
var _ storage.ProfileStore = (*Store)(nil)
var _ storage.CardStore = (*Store)(nil)
var _ storage.ScheduleStore = (*Store)(nil)
var _ storage.GuardianshipStore = (*Store)(nil)
var _ storage.ServiceRequestStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// mapError translates driver errors into the storage sentinels so callers
// never depend on lib/pq directly.
func mapError(err error, subject string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", subject, storage.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", subject, storage.ErrConflict)
	}
	return err
}

// --- IdentityStore ----------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u identity.User) (identity.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO care_users (id, username, email, password_hash, groups, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Username, u.Email, u.PasswordHash, pq.Array(u.Groups), u.Admin, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return identity.User{}, mapError(err, "user "+u.Username)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u identity.User) (identity.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return identity.User{}, err
	}

	u.Username = existing.Username
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE care_users
		SET email = $2, password_hash = $3, groups = $4, is_admin = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.Email, u.PasswordHash, pq.Array(u.Groups), u.Admin, u.UpdatedAt)
	if err != nil {
		return identity.User{}, mapError(err, "user "+u.ID)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return identity.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}
	return u, nil
}

// DeleteUser removes the account row; the profile, card package, schedules
// and edges follow through the schema's ON DELETE CASCADE.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM care_users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (identity.User, error) {
	return s.getUserWhere(ctx, "id = $1", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (identity.User, error) {
	return s.getUserWhere(ctx, "lower(username) = lower($1)", username)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (identity.User, error) {
	return s.getUserWhere(ctx, "lower(email) = lower($1)", email)
}

func (s *Store) getUserWhere(ctx context.Context, where string, arg any) (identity.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, groups, is_admin, created_at, updated_at
		FROM care_users
		WHERE `+where, arg)

	var u identity.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, pq.Array(&u.Groups), &u.Admin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return identity.User{}, mapError(err, fmt.Sprintf("user %v", arg))
	}
	return u, nil
}

// --- ProfileStore -----------------------------------------------------------

func (s *Store) CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO care_profiles (id, user_id, nickname, phone, avatar, health_id,
			blood_pressure, blood_sugar, blood_oxygen, temperature, weight, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, p.ID, p.UserID, p.Nickname, p.Phone, p.Avatar, p.HealthID,
		p.BloodPressure, p.BloodSugar, p.BloodOxygen, p.Temperature, p.Weight, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return profile.Profile{}, mapError(err, "profile for user "+p.UserID)
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	existing, err := s.GetProfile(ctx, p.ID)
	if err != nil {
		return profile.Profile{}, err
	}

	p.UserID = existing.UserID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE care_profiles
		SET nickname = $2, phone = $3, avatar = $4, health_id = $5,
			blood_pressure = $6, blood_sugar = $7, blood_oxygen = $8,
			temperature = $9, weight = $10, updated_at = $11
		WHERE id = $1
	`, p.ID, p.Nickname, p.Phone, p.Avatar, p.HealthID,
		p.BloodPressure, p.BloodSugar, p.BloodOxygen, p.Temperature, p.Weight, p.UpdatedAt)
	if err != nil {
		return profile.Profile{}, mapError(err, "profile "+p.ID)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return profile.Profile{}, fmt.Errorf("profile %s: %w", p.ID, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (profile.Profile, error) {
	return s.getProfileWhere(ctx, "id = $1", id)
}

func (s *Store) GetProfileByUser(ctx context.Context, userID string) (profile.Profile, error) {
	return s.getProfileWhere(ctx, "user_id = $1", userID)
}

func (s *Store) getProfileWhere(ctx context.Context, where string, arg any) (profile.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, nickname, phone, avatar, health_id,
			blood_pressure, blood_sugar, blood_oxygen, temperature, weight, created_at, updated_at
		FROM care_profiles
		WHERE `+where, arg)

	var p profile.Profile
	if err := scanProfile(row, &p); err != nil {
		return profile.Profile{}, mapError(err, fmt.Sprintf("profile %v", arg))
	}
	return p, nil
}

func (s *Store) SearchProfilesByPhone(ctx context.Context, fragment string) ([]profile.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, nickname, phone, avatar, health_id,
			blood_pressure, blood_sugar, blood_oxygen, temperature, weight, created_at, updated_at
		FROM care_profiles
		WHERE phone ILIKE '%' || $1 || '%'
		ORDER BY created_at
	`, escapeLike(fragment))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]profile.Profile, 0)
	for rows.Next() {
		var p profile.Profile
		if err := scanProfile(rows, &p); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralises LIKE metacharacters so the fragment matches as a
// literal substring, the same contains semantics as the in-memory store.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner, p *profile.Profile) error {
	return row.Scan(&p.ID, &p.UserID, &p.Nickname, &p.Phone, &p.Avatar, &p.HealthID,
		&p.BloodPressure, &p.BloodSugar, &p.BloodOxygen, &p.Temperature, &p.Weight,
		&p.CreatedAt, &p.UpdatedAt)
}

// --- CardStore --------------------------------------------------------------

func (s *Store) CreateCardPackage(ctx context.Context, pkg profile.CardPackage) (profile.CardPackage, error) {
	if pkg.ID == "" {
		pkg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	pkg.CreatedAt = now
	pkg.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO care_card_packages (id, profile_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, pkg.ID, pkg.ProfileID, pkg.CreatedAt, pkg.UpdatedAt)
	if err != nil {
		return profile.CardPackage{}, mapError(err, "card package for profile "+pkg.ProfileID)
	}
	return pkg, nil
}

func (s *Store) GetCardPackageByProfile(ctx context.Context, profileID string) (profile.CardPackage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, profile_id, created_at, updated_at
		FROM care_card_packages
		WHERE profile_id = $1
	`, profileID)

	var pkg profile.CardPackage
	if err := row.Scan(&pkg.ID, &pkg.ProfileID, &pkg.CreatedAt, &pkg.UpdatedAt); err != nil {
		return profile.CardPackage{}, mapError(err, "card package for profile "+profileID)
	}
	return pkg, nil
}

func (s *Store) CreateCard(ctx context.Context, c profile.Card) (profile.Card, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO care_cards (id, package_id, name, card_type, number, remark, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.PackageID, c.Name, string(c.Type), c.Number, c.Remark, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return profile.Card{}, mapError(err, "card in package "+c.PackageID)
	}
	return c, nil
}

func (s *Store) UpdateCard(ctx context.Context, c profile.Card) (profile.Card, error) {
	existing, err := s.GetCard(ctx, c.ID)
	if err != nil {
		return profile.Card{}, err
	}

	c.PackageID = existing.PackageID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE care_cards
		SET name = $2, card_type = $3, number = $4, remark = $5, updated_at = $6
		WHERE id = $1
	`, c.ID, c.Name, string(c.Type), c.Number, c.Remark, c.UpdatedAt)
	if err != nil {
		return profile.Card{}, mapError(err, "card "+c.ID)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return profile.Card{}, fmt.Errorf("card %s: %w", c.ID, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) GetCard(ctx context.Context, id string) (profile.Card, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, package_id, name, card_type, number, remark, created_at, updated_at
		FROM care_cards
		WHERE id = $1
	`, id)

	var c profile.Card
	if err := scanCard(row, &c); err != nil {
		return profile.Card{}, mapError(err, "card "+id)
	}
	return c, nil
}

func (s *Store) DeleteCard(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM care_cards WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("card %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) ListCards(ctx context.Context, packageID string) ([]profile.Card, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, package_id, name, card_type, number, remark, created_at, updated_at
		FROM care_cards
		WHERE package_id = $1
		ORDER BY created_at
	`, packageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]profile.Card, 0)
	for rows.Next() {
		var c profile.Card
		if err := scanCard(rows, &c); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func scanCard(row rowScanner, c *profile.Card) error {
	var cardType string
	if err := row.Scan(&c.ID, &c.PackageID, &c.Name, &cardType, &c.Number, &c.Remark, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return err
	}
	c.Type = profile.CardType(cardType)
	return nil
}

// --- ScheduleStore ----------------------------------------------------------

func (s *Store) CreateSchedule(ctx context.Context, sch profile.HealthSchedule) (profile.HealthSchedule, error) {
	if sch.ID == "" {
		sch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sch.CreatedAt = now
	sch.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO care_health_schedules (id, profile_id, title, reminder_time, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sch.ID, sch.ProfileID, sch.Title, sch.ReminderTime, sch.Content, sch.CreatedAt, sch.UpdatedAt)
	if err != nil {
		return profile.HealthSchedule{}, mapError(err, "schedule for profile "+sch.ProfileID)
	}
	return sch, nil
}

func (s *Store) UpdateSchedule(ctx context.Context, sch profile.HealthSchedule) (profile.HealthSchedule, error) {
	existing, err := s.GetSchedule(ctx, sch.ID)
	if err != nil {
		return profile.HealthSchedule{}, err
	}

	sch.ProfileID = existing.ProfileID
	sch.CreatedAt = existing.CreatedAt
	sch.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE care_health_schedules
		SET title = $2, reminder_time = $3, content = $4, updated_at = $5
		WHERE id = $1
	`, sch.ID, sch.Title, sch.ReminderTime, sch.Content, sch.UpdatedAt)
	if err != nil {
		return profile.HealthSchedule{}, mapError(err, "schedule "+sch.ID)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return profile.HealthSchedule{}, fmt.Errorf("schedule %s: %w", sch.ID, storage.ErrNotFound)
	}
	return sch, nil
}

func (s *Store) GetSchedule(ctx context.Context, id string) (profile.HealthSchedule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, profile_id, title, reminder_time, content, created_at, updated_at
		FROM care_health_schedules
		WHERE id = $1
	`, id)

	var sch profile.HealthSchedule
	if err := row.Scan(&sch.ID, &sch.ProfileID, &sch.Title, &sch.ReminderTime, &sch.Content, &sch.CreatedAt, &sch.UpdatedAt); err != nil {
		return profile.HealthSchedule{}, mapError(err, "schedule "+id)
	}
	return sch, nil
}

func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM care_health_schedules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("schedule %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) ListSchedules(ctx context.Context, profileID string) ([]profile.HealthSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, title, reminder_time, content, created_at, updated_at
		FROM care_health_schedules
		WHERE profile_id = $1
		ORDER BY reminder_time
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]profile.HealthSchedule, 0)
	for rows.Next() {
		var sch profile.HealthSchedule
		if err := rows.Scan(&sch.ID, &sch.ProfileID, &sch.Title, &sch.ReminderTime, &sch.Content, &sch.CreatedAt, &sch.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, sch)
	}
	return result, rows.Err()
}

// --- GuardianshipStore ------------------------------------------------------

func (s *Store) CreateEdge(ctx context.Context, e guardianship.Edge) (guardianship.Edge, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO care_guardianships (id, guardian_id, ward_id, relationship, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.GuardianID, e.WardID, e.Relationship, e.CreatedAt)
	if err != nil {
		return guardianship.Edge{}, mapError(err, fmt.Sprintf("edge (%s, %s)", e.GuardianID, e.WardID))
	}
	return e, nil
}

func (s *Store) GetEdge(ctx context.Context, id string) (guardianship.Edge, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, guardian_id, ward_id, relationship, created_at
		FROM care_guardianships
		WHERE id = $1
	`, id)

	var e guardianship.Edge
	if err := row.Scan(&e.ID, &e.GuardianID, &e.WardID, &e.Relationship, &e.CreatedAt); err != nil {
		return guardianship.Edge{}, mapError(err, "edge "+id)
	}
	return e, nil
}

func (s *Store) ListEdgesByGuardianUser(ctx context.Context, userID string) ([]guardianship.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.guardian_id, g.ward_id, g.relationship, g.created_at
		FROM care_guardianships g
		JOIN care_profiles p ON p.id = g.guardian_id
		WHERE p.user_id = $1
		ORDER BY g.created_at, g.id
	`, userID)
	if err != nil {
		return nil, err
	}
	return collectEdges(rows)
}

func (s *Store) ListEdgesByWard(ctx context.Context, wardProfileID string) ([]guardianship.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guardian_id, ward_id, relationship, created_at
		FROM care_guardianships
		WHERE ward_id = $1
		ORDER BY created_at, id
	`, wardProfileID)
	if err != nil {
		return nil, err
	}
	return collectEdges(rows)
}

func collectEdges(rows *sql.Rows) ([]guardianship.Edge, error) {
	defer rows.Close()

	result := make([]guardianship.Edge, 0)
	for rows.Next() {
		var e guardianship.Edge
		if err := rows.Scan(&e.ID, &e.GuardianID, &e.WardID, &e.Relationship, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) DeleteEdge(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM care_guardianships WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("edge %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// --- ServiceRequestStore ----------------------------------------------------

func (s *Store) CreateServiceRequest(ctx context.Context, r servicereq.Request) (servicereq.Request, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO care_service_requests (id, client_id, caregiver_id, request_type, status,
			service_time, address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.ID, r.ClientID, nullable(r.CaregiverID), string(r.Type), string(r.Status),
		r.ServiceTime, r.Address, r.Notes, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return servicereq.Request{}, mapError(err, "service request for client "+r.ClientID)
	}
	return r, nil
}

func (s *Store) UpdateServiceRequest(ctx context.Context, r servicereq.Request) (servicereq.Request, error) {
	existing, err := s.GetServiceRequest(ctx, r.ID)
	if err != nil {
		return servicereq.Request{}, err
	}

	r.ClientID = existing.ClientID
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE care_service_requests
		SET caregiver_id = $2, request_type = $3, status = $4, service_time = $5,
			address = $6, notes = $7, updated_at = $8
		WHERE id = $1
	`, r.ID, nullable(r.CaregiverID), string(r.Type), string(r.Status), r.ServiceTime,
		r.Address, r.Notes, r.UpdatedAt)
	if err != nil {
		return servicereq.Request{}, mapError(err, "service request "+r.ID)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return servicereq.Request{}, fmt.Errorf("service request %s: %w", r.ID, storage.ErrNotFound)
	}
	return r, nil
}

func (s *Store) GetServiceRequest(ctx context.Context, id string) (servicereq.Request, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, caregiver_id, request_type, status, service_time, address, notes, created_at, updated_at
		FROM care_service_requests
		WHERE id = $1
	`, id)

	var r servicereq.Request
	if err := scanRequest(row, &r); err != nil {
		return servicereq.Request{}, mapError(err, "service request "+id)
	}
	return r, nil
}

func (s *Store) DeleteServiceRequest(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM care_service_requests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("service request %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) ListServiceRequests(ctx context.Context, clientID string) ([]servicereq.Request, error) {
	query := `
		SELECT id, client_id, caregiver_id, request_type, status, service_time, address, notes, created_at, updated_at
		FROM care_service_requests
	`
	args := []any{}
	if clientID != "" {
		query += ` WHERE client_id = $1`
		args = append(args, clientID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]servicereq.Request, 0)
	for rows.Next() {
		var r servicereq.Request
		if err := scanRequest(rows, &r); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanRequest(row rowScanner, r *servicereq.Request) error {
	var (
		caregiver   sql.NullString
		requestType string
		status      string
	)
	if err := row.Scan(&r.ID, &r.ClientID, &caregiver, &requestType, &status,
		&r.ServiceTime, &r.Address, &r.Notes, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return err
	}
	r.CaregiverID = caregiver.String
	r.Type = servicereq.Type(requestType)
	r.Status = servicereq.Status(status)
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// --- SessionStore -----------------------------------------------------------

func (s *Store) SaveSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO care_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id = $2, expires_at = $3
	`, tokenHash, userID, expiresAt)
	return err
}

func (s *Store) GetSession(ctx context.Context, tokenHash string) (string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM care_sessions
		WHERE token_hash = $1 AND expires_at > now()
	`, tokenHash)

	var userID string
	if err := row.Scan(&userID); err != nil {
		return "", mapError(err, "session")
	}
	return userID, nil
}

func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM care_sessions WHERE token_hash = $1`, tokenHash)
	return err
}
