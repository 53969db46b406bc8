// Package requests manages caregiving service requests.
package requests

import (
	"context"
	"strings"
	"time"

	"github.com/SilverCare-Net/care_layer/internal/app/auth"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/identity"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/servicereq"
	"github.com/SilverCare-Net/care_layer/internal/app/storage"
	"github.com/SilverCare-Net/care_layer/internal/errors"
	"github.com/SilverCare-Net/care_layer/internal/logging"
)

// Service manages service request records.
type Service struct {
	store    storage.ServiceRequestStore
	profiles storage.ProfileStore
	users    storage.IdentityStore
	log      *logging.Logger
}

// New constructs a request service.
func New(store storage.ServiceRequestStore, profiles storage.ProfileStore, users storage.IdentityStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("requests")
	}
	return &Service{store: store, profiles: profiles, users: users, log: log}
}

// CreateInput is the payload for raising a request.
type CreateInput struct {
	Type        servicereq.Type
	ServiceTime time.Time
	Address     string
	Notes       string
}

// Create raises a request for the caller's profile in PENDING state.
func (s *Service) Create(ctx context.Context, caller auth.Identity, in CreateInput) (servicereq.Request, error) {
	if !servicereq.ValidType(in.Type) {
		return servicereq.Request{}, errors.Validation("unknown service type " + string(in.Type))
	}
	if in.ServiceTime.IsZero() {
		return servicereq.Request{}, errors.Validation("service_time is required")
	}

	p, err := s.profiles.GetProfileByUser(ctx, caller.UserID)
	if err != nil {
		if storage.IsNotFound(err) {
			return servicereq.Request{}, errors.NotFound("profile not found")
		}
		return servicereq.Request{}, err
	}

	req, err := s.store.CreateServiceRequest(ctx, servicereq.Request{
		ClientID:    p.ID,
		Type:        in.Type,
		Status:      servicereq.StatusPending,
		ServiceTime: in.ServiceTime,
		Address:     strings.TrimSpace(in.Address),
		Notes:       in.Notes,
	})
	if err != nil {
		return servicereq.Request{}, err
	}
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"request_id": req.ID,
		"client_id":  req.ClientID,
		"type":       req.Type,
	}).Info("service request created")
	return req, nil
}

// Get loads one request. Clients see their own; caregivers and admins see
// everything.
func (s *Service) Get(ctx context.Context, caller auth.Identity, id string) (servicereq.Request, error) {
	req, err := s.store.GetServiceRequest(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return servicereq.Request{}, errors.NotFound("service request not found")
		}
		return servicereq.Request{}, err
	}
	if err := s.requireVisible(ctx, caller, req); err != nil {
		return servicereq.Request{}, err
	}
	return req, nil
}

// List returns the caller's own requests, or every request when the caller
// is a caregiver or admin.
func (s *Service) List(ctx context.Context, caller auth.Identity) ([]servicereq.Request, error) {
	if caller.Admin || caller.InAnyGroup([]string{identity.GroupCaregiver}) {
		return s.store.ListServiceRequests(ctx, "")
	}

	p, err := s.profiles.GetProfileByUser(ctx, caller.UserID)
	if err != nil {
		if storage.IsNotFound(err) {
			return []servicereq.Request{}, nil
		}
		return nil, err
	}
	return s.store.ListServiceRequests(ctx, p.ID)
}

// UpdateInput carries the mutable request fields. Empty values leave the
// stored field untouched; set ClearCaregiver to unassign.
type UpdateInput struct {
	Status         servicereq.Status
	CaregiverID    string
	ClearCaregiver bool
	Address        string
	Notes          string
}

// Update changes a request's status or caregiver assignment. The assignee
// must belong to the caregiver group.
func (s *Service) Update(ctx context.Context, caller auth.Identity, id string, in UpdateInput) (servicereq.Request, error) {
	req, err := s.Get(ctx, caller, id)
	if err != nil {
		return servicereq.Request{}, err
	}

	if in.Status != "" {
		if !servicereq.ValidStatus(in.Status) {
			return servicereq.Request{}, errors.Validation("unknown status " + string(in.Status))
		}
		req.Status = in.Status
	}
	if in.ClearCaregiver {
		req.CaregiverID = ""
	} else if in.CaregiverID != "" {
		caregiver, err := s.users.GetUser(ctx, in.CaregiverID)
		if err != nil {
			if storage.IsNotFound(err) {
				return servicereq.Request{}, errors.Validation("caregiver not found")
			}
			return servicereq.Request{}, err
		}
		if !caregiver.InGroup(identity.GroupCaregiver) {
			return servicereq.Request{}, errors.Validation("assignee is not a caregiver")
		}
		req.CaregiverID = caregiver.ID
	}
	if in.Address != "" {
		req.Address = strings.TrimSpace(in.Address)
	}
	if in.Notes != "" {
		req.Notes = in.Notes
	}

	updated, err := s.store.UpdateServiceRequest(ctx, req)
	if err != nil {
		if storage.IsNotFound(err) {
			return servicereq.Request{}, errors.NotFound("service request not found")
		}
		return servicereq.Request{}, err
	}
	return updated, nil
}

// Delete removes a request the caller can see.
func (s *Service) Delete(ctx context.Context, caller auth.Identity, id string) error {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return err
	}
	if err := s.store.DeleteServiceRequest(ctx, id); err != nil {
		if storage.IsNotFound(err) {
			return errors.NotFound("service request not found")
		}
		return err
	}
	return nil
}

func (s *Service) requireVisible(ctx context.Context, caller auth.Identity, req servicereq.Request) error {
	if caller.Admin || caller.InAnyGroup([]string{identity.GroupCaregiver}) {
		return nil
	}
	p, err := s.profiles.GetProfileByUser(ctx, caller.UserID)
	if err == nil && p.ID == req.ClientID {
		return nil
	}
	return errors.PermissionDenied("")
}
