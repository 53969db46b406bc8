package servicereq

import "time"

// Type enumerates the caregiving task kinds.
type Type string

const (
	TypeFood        Type = "FOOD"
	TypeMedicine    Type = "MEDICINE"
	TypeDiet        Type = "DIET"
	TypeCleaning    Type = "CLEANING"
	TypeTransport   Type = "TRANSPORT"
	TypeDeliveryGet Type = "DELIVERYGET"
	TypeDeliveryBuy Type = "DELIVERYBUY"
	TypeOthers      Type = "OTHERS"
)

// ValidType reports whether t is one of the enumerated task kinds.
func ValidType(t Type) bool {
	switch t {
	case TypeFood, TypeMedicine, TypeDiet, TypeCleaning,
		TypeTransport, TypeDeliveryGet, TypeDeliveryBuy, TypeOthers:
		return true
	}
	return false
}

// Status enumerates the request lifecycle states.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// ValidStatus reports whether s is one of the lifecycle states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Request is a caregiving task raised for a client profile. CaregiverID is
// empty until a caregiver is assigned; when set, the assignee must belong to
// the caregiver group.
type Request struct {
	ID          string
	ClientID    string
	CaregiverID string
	Type        Type
	Status      Status
	ServiceTime time.Time
	Address     string
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
