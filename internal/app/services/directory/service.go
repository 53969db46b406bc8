// Package directory implements the guardianship directory: directed
// guardian→ward edges between profiles with bidirectional queries and phone
// lookup for the binding flow.
package directory

import (
	"context"
	"strings"

	"github.com/SilverCare-Net/care_layer/internal/app/domain/guardianship"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/profile"
	"github.com/SilverCare-Net/care_layer/internal/app/storage"
	"github.com/SilverCare-Net/care_layer/internal/errors"
	"github.com/SilverCare-Net/care_layer/internal/logging"
)

// Service manages guardianship edges.
type Service struct {
	edges    storage.GuardianshipStore
	profiles storage.ProfileStore
	log      *logging.Logger
}

// New constructs a directory service.
func New(edges storage.GuardianshipStore, profiles storage.ProfileStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("directory")
	}
	return &Service{edges: edges, profiles: profiles, log: log}
}

// Create binds a guardian profile to a ward profile. Both profiles must
// exist and the relationship label must be non-empty. The store's uniqueness
// constraint resolves a concurrent duplicate: the loser gets a validation
// error, same as a sequential duplicate.
func (s *Service) Create(ctx context.Context, guardianID, wardID, relationship string) (guardianship.Edge, error) {
	relationship = strings.TrimSpace(relationship)
	if guardianID == "" || wardID == "" {
		return guardianship.Edge{}, errors.Validation("guardian and ward are required")
	}
	if relationship == "" {
		return guardianship.Edge{}, errors.Validation("relationship must not be empty")
	}

	guardian, err := s.profiles.GetProfile(ctx, guardianID)
	if err != nil {
		return guardianship.Edge{}, mapProfileError(err, "guardian profile not found")
	}
	ward, err := s.profiles.GetProfile(ctx, wardID)
	if err != nil {
		return guardianship.Edge{}, mapProfileError(err, "ward profile not found")
	}

	edge, err := s.edges.CreateEdge(ctx, guardianship.Edge{
		GuardianID:   guardianID,
		WardID:       wardID,
		Relationship: relationship,
	})
	if err != nil {
		if storage.IsConflict(err) {
			return guardianship.Edge{}, errors.Validation("guardianship already exists")
		}
		if storage.IsNotFound(err) {
			return guardianship.Edge{}, errors.NotFound("profile not found")
		}
		return guardianship.Edge{}, err
	}

	edge.GuardianName = guardian.Nickname
	edge.WardName = ward.Nickname
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"edge_id":     edge.ID,
		"guardian_id": guardianID,
		"ward_id":     wardID,
	}).Info("guardianship created")
	return edge, nil
}

// Get loads one edge with display names attached.
func (s *Service) Get(ctx context.Context, id string) (guardianship.Edge, error) {
	edge, err := s.edges.GetEdge(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return guardianship.Edge{}, errors.NotFound("guardianship not found")
		}
		return guardianship.Edge{}, err
	}
	s.attachNames(ctx, &edge)
	return edge, nil
}

// ListForGuardian returns the edges whose guardian profile belongs to the
// given user, in creation order. An unknown user yields an empty slice.
func (s *Service) ListForGuardian(ctx context.Context, userID string) ([]guardianship.Edge, error) {
	edges, err := s.edges.ListEdgesByGuardianUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range edges {
		s.attachNames(ctx, &edges[i])
	}
	return edges, nil
}

// ListForWard returns the edges pointing at the given ward profile, in
// creation order.
func (s *Service) ListForWard(ctx context.Context, wardProfileID string) ([]guardianship.Edge, error) {
	edges, err := s.edges.ListEdgesByWard(ctx, wardProfileID)
	if err != nil {
		return nil, err
	}
	for i := range edges {
		s.attachNames(ctx, &edges[i])
	}
	return edges, nil
}

// SearchProfilesByPhone finds profiles whose phone contains the fragment.
// An empty result is a normal outcome, not an error.
func (s *Service) SearchProfilesByPhone(ctx context.Context, fragment string) ([]profile.Profile, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, errors.Validation("phone fragment is required")
	}
	return s.profiles.SearchProfilesByPhone(ctx, fragment)
}

// Delete removes an edge. Any authenticated caller may delete any edge;
// authorization stops at authentication for unbinding.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.edges.DeleteEdge(ctx, id); err != nil {
		if storage.IsNotFound(err) {
			return errors.NotFound("guardianship not found")
		}
		return err
	}
	s.log.WithContext(ctx).WithField("edge_id", id).Info("guardianship deleted")
	return nil
}

// attachNames fills the denormalized display names. A missing profile leaves
// the name empty rather than failing the read.
func (s *Service) attachNames(ctx context.Context, edge *guardianship.Edge) {
	if p, err := s.profiles.GetProfile(ctx, edge.GuardianID); err == nil {
		edge.GuardianName = p.Nickname
	}
	if p, err := s.profiles.GetProfile(ctx, edge.WardID); err == nil {
		edge.WardName = p.Nickname
	}
}

func mapProfileError(err error, message string) error {
	if storage.IsNotFound(err) {
		return errors.NotFound(message)
	}
	return err
}
