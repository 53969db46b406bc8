package app

import (
	"context"
	"fmt"
	"time"

	"github.com/SilverCare-Net/care_layer/internal/app/auth"
	"github.com/SilverCare-Net/care_layer/internal/app/services/accounts"
	"github.com/SilverCare-Net/care_layer/internal/app/services/directory"
	"github.com/SilverCare-Net/care_layer/internal/app/services/profiles"
	"github.com/SilverCare-Net/care_layer/internal/app/services/requests"
	"github.com/SilverCare-Net/care_layer/internal/app/storage"
	"github.com/SilverCare-Net/care_layer/internal/app/storage/memory"
	"github.com/SilverCare-Net/care_layer/internal/app/system"
	"github.com/SilverCare-Net/care_layer/internal/logging"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Identities    storage.IdentityStore
	Profiles      storage.ProfileStore
	Cards         storage.CardStore
	Schedules     storage.ScheduleStore
	Guardianships storage.GuardianshipStore
	Requests      storage.ServiceRequestStore
	Sessions      storage.SessionStore
}

// Options carries the non-store wiring inputs.
type Options struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	AdminUserIDs    []string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logging.Logger

	Issuer    *auth.Issuer
	Accounts  *accounts.Service
	Profiles  *profiles.Service
	Directory *directory.Service
	Requests  *requests.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.NewDefault("app")
	}
	if opts.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	mem := memory.New()
	if stores.Identities == nil {
		stores.Identities = mem
	}
	if stores.Profiles == nil {
		stores.Profiles = mem
	}
	if stores.Cards == nil {
		stores.Cards = mem
	}
	if stores.Schedules == nil {
		stores.Schedules = mem
	}
	if stores.Guardianships == nil {
		stores.Guardianships = mem
	}
	if stores.Requests == nil {
		stores.Requests = mem
	}
	if stores.Sessions == nil {
		stores.Sessions = mem
	}

	manager := system.NewManager()
	issuer := auth.NewIssuer(opts.JWTSecret, opts.AccessTokenTTL, opts.RefreshTokenTTL)

	accountService := accounts.New(stores.Identities, stores.Profiles, stores.Cards,
		stores.Sessions, issuer, opts.AdminUserIDs, log)
	profileService := profiles.New(stores.Profiles, stores.Cards, stores.Schedules, log)
	directoryService := directory.New(stores.Guardianships, stores.Profiles, log)
	requestService := requests.New(stores.Requests, stores.Profiles, stores.Identities, log)

	for _, name := range []string{"accounts", "profiles", "directory", "requests"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	return &Application{
		manager:   manager,
		log:       log,
		Issuer:    issuer,
		Accounts:  accountService,
		Profiles:  profileService,
		Directory: directoryService,
		Requests:  requestService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
