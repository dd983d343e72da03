package messages

import "time"

// ReleaseCommitted публикуется API после успешного коммита выдачи.
// Нотификатор превращает его в SMS; неудачная доставка никогда не
// откатывает уже закоммиченную транзакцию.
type ReleaseCommitted struct {
	ReleaseID    uint64 `json:"release_id"`
	InspectionID uint64 `json:"inspection_id"`

	SerialNumber string `json:"serial_number"`
	DrugshopName string `json:"drugshop_name"`

	Quantity  int64 `json:"quantity"`
	BoxesLeft int64 `json:"boxes_left"`

	ReleasedBy    string   `json:"released_by"`
	ContactPhones []string `json:"contact_phones,omitempty"`

	CommittedAt time.Time `json:"committed_at"`
}

type InspectionCreated struct {
	InspectionID uint64 `json:"inspection_id"`

	SerialNumber   string `json:"serial_number"`
	DrugshopName   string `json:"drugshop_name"`
	BoxesImpounded int64  `json:"boxes_impounded"`

	CreatedBy     string   `json:"created_by"`
	ContactPhones []string `json:"contact_phones,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
