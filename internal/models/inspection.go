package models

import "time"

// Статусы инспекции (жизненный цикл изъятия).
const (
	InspectionStatusSubmitted      = "SUBMITTED"
	InspectionStatusPendingReview  = "PENDING_REVIEW"
	InspectionStatusCompleted      = "COMPLETED"
	InspectionStatusActionRequired = "ACTION_REQUIRED"
)

type Inspection struct {
	ID             uint64
	SerialNumber   string
	DrugshopName   string
	District       string
	BoxesOriginal  int64
	BoxesImpounded int64
	Status         string
	ContactPhones  []string
	CreatedBy      string

	NotifyAttempted bool
	NotifySucceeded bool
	NotifyError     *string
	NotifiedAt      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReleaseRecord — append-only запись о выдаче. Никогда не изменяется,
// кроме notify_* полей (аудит доставки SMS, best-effort).
type ReleaseRecord struct {
	ID           uint64
	InspectionID uint64
	Quantity     int64
	BoxesLeft    int64
	ReleasedBy   string
	ClientName   string
	ClientPhone  string
	Note         string

	NotifyAttempted bool
	NotifySucceeded bool
	NotifyError     *string
	NotifiedAt      *time.Time

	CreatedAt time.Time
}

type InspectionCreateInput struct {
	SerialNumber   string
	DrugshopName   string
	District       string
	BoxesImpounded int64
	ContactPhones  []string
	CreatedBy      string
}
