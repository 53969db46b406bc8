// Package app assembles the care platform services.
//
// Layering, from bottom to top:
//
//	storage    persistence interfaces with memory, postgres and redis backends
//	services   account, profile, guardianship directory and service request logic
//	app        composition root wiring stores, services and lifecycle management
//	httpapi    HTTP transport exposing the services
//
// Stores default to the in-memory backend when nil, which keeps tests and
// local development free of external dependencies.
package app
