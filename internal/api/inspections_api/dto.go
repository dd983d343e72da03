package inspections_api

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/FieldReport/ImpoundBox/internal/models"
	"github.com/pkg/errors"
)

// flexInt64 принимает и число, и числовую строку: в легаси-данных
// boxesImpounded встречался в обоих видах. Внутрь ядра уходит только int64.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return errors.Errorf("invalid quantity %q", s)
	}
	*f = flexInt64(n)
	return nil
}

type createInspectionRequest struct {
	SerialNumber   string    `json:"serialNumber"`
	DrugshopName   string    `json:"drugshopName"`
	District       string    `json:"district,omitempty"`
	BoxesImpounded flexInt64 `json:"boxesImpounded"`
	ContactPhones  []string  `json:"contactPhones,omitempty"`
	CreatedBy      string    `json:"createdBy"`
}

type confirmationDTO struct {
	CountVerified  bool   `json:"countVerified"`
	RecordAccepted bool   `json:"recordAccepted"`
	Text           string `json:"text"`
}

type releaseRequest struct {
	Quantity     flexInt64       `json:"quantity"`
	ReleasedBy   string          `json:"releasedBy"`
	ClientName   string          `json:"clientName,omitempty"`
	ClientPhone  string          `json:"clientPhone,omitempty"`
	Note         string          `json:"note,omitempty"`
	Confirmation confirmationDTO `json:"confirmation"`
}

type inspectionDTO struct {
	ID             uint64   `json:"id"`
	SerialNumber   string   `json:"serialNumber"`
	DrugshopName   string   `json:"drugshopName"`
	District       string   `json:"district,omitempty"`
	BoxesOriginal  int64    `json:"boxesOriginal"`
	BoxesImpounded int64    `json:"boxesImpounded"`
	Status         string   `json:"status"`
	ContactPhones  []string `json:"contactPhones,omitempty"`
	CreatedBy      string   `json:"createdBy"`

	NotifyAttempted bool       `json:"notifyAttempted"`
	NotifySucceeded bool       `json:"notifySucceeded"`
	NotifyError     string     `json:"notifyError,omitempty"`
	NotifiedAt      *time.Time `json:"notifiedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type releaseRecordDTO struct {
	ID           uint64 `json:"id"`
	InspectionID uint64 `json:"inspectionId"`
	Quantity     int64  `json:"quantity"`
	BoxesLeft    int64  `json:"boxesLeft"`
	ReleasedBy   string `json:"releasedBy"`
	ClientName   string `json:"clientName,omitempty"`
	ClientPhone  string `json:"clientPhone,omitempty"`
	Note         string `json:"note,omitempty"`

	NotifyAttempted bool       `json:"notifyAttempted"`
	NotifySucceeded bool       `json:"notifySucceeded"`
	NotifyError     string     `json:"notifyError,omitempty"`
	NotifiedAt      *time.Time `json:"notifiedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

type releaseResponse struct {
	Record       releaseRecordDTO `json:"record"`
	Remaining    int64            `json:"remaining"`
	Status       string           `json:"status"`
	Notification string           `json:"notification"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Requested int64  `json:"requested,omitempty"`
	Available int64  `json:"available,omitempty"`
}

func toInspectionDTO(i *models.Inspection) inspectionDTO {
	return inspectionDTO{
		ID:              i.ID,
		SerialNumber:    i.SerialNumber,
		DrugshopName:    i.DrugshopName,
		District:        i.District,
		BoxesOriginal:   i.BoxesOriginal,
		BoxesImpounded:  i.BoxesImpounded,
		Status:          i.Status,
		ContactPhones:   i.ContactPhones,
		CreatedBy:       i.CreatedBy,
		NotifyAttempted: i.NotifyAttempted,
		NotifySucceeded: i.NotifySucceeded,
		NotifyError:     derefString(i.NotifyError),
		NotifiedAt:      i.NotifiedAt,
		CreatedAt:       i.CreatedAt,
		UpdatedAt:       i.UpdatedAt,
	}
}

func toReleaseRecordDTO(r *models.ReleaseRecord) releaseRecordDTO {
	return releaseRecordDTO{
		ID:              r.ID,
		InspectionID:    r.InspectionID,
		Quantity:        r.Quantity,
		BoxesLeft:       r.BoxesLeft,
		ReleasedBy:      r.ReleasedBy,
		ClientName:      r.ClientName,
		ClientPhone:     r.ClientPhone,
		Note:            r.Note,
		NotifyAttempted: r.NotifyAttempted,
		NotifySucceeded: r.NotifySucceeded,
		NotifyError:     derefString(r.NotifyError),
		NotifiedAt:      r.NotifiedAt,
		CreatedAt:       r.CreatedAt,
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
