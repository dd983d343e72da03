package messages

import "time"

const (
	NotificationKindRelease    = "release"
	NotificationKindInspection = "inspection"
)

// NotificationResult — исход попытки SMS-доставки. Воркер публикует его
// обратно, API проставляет notify_* флаги на записи (best-effort аудит).
type NotificationResult struct {
	Kind string `json:"kind"`

	InspectionID uint64 `json:"inspection_id"`
	// ReleaseID заполнен только для kind=release.
	ReleaseID uint64 `json:"release_id,omitempty"`

	Attempted bool    `json:"attempted"`
	Succeeded bool    `json:"succeeded"`
	Error     *string `json:"error,omitempty"`

	NotifiedAt time.Time `json:"notified_at"`
}
