package guardianship

import "time"

// Edge is a single directed guardian→ward relationship between two profiles.
// The ordered pair (GuardianID, WardID) is unique; the store enforces it.
// Guardian and ward may be the same profile, self-managed care is a valid
// edge.
type Edge struct {
	ID           string
	GuardianID   string
	WardID       string
	Relationship string
	CreatedAt    time.Time

	// Denormalized display names, filled by the directory on reads for the
	// binding UI. Not persisted on the edge row.
	GuardianName string
	WardName     string
}
