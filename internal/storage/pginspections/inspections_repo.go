package pginspections

import (
	"context"
	"time"

	"github.com/FieldReport/ImpoundBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const inspectionColumns = `
  id, serial_number, drugshop_name, district,
  boxes_original, boxes_impounded, status,
  contact_phones, created_by,
  notify_attempted, notify_succeeded, notify_error, notified_at,
  created_at, updated_at`

func (s *Storage) CreateInspection(ctx context.Context, in models.InspectionCreateInput) (*models.Inspection, error) {
	now := time.Now().UTC()

	phones := in.ContactPhones
	if phones == nil {
		phones = []string{}
	}

	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO inspections (
  serial_number, drugshop_name, district,
  boxes_original, boxes_impounded, status,
  contact_phones, created_by, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$4,$5,$6,$7,$8,$8)
RETURNING id
`, in.SerialNumber, in.DrugshopName, in.District,
		in.BoxesImpounded, models.InspectionStatusSubmitted,
		phones, in.CreatedBy, now).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "insert inspection")
	}

	return s.GetInspectionByID(ctx, id)
}

func (s *Storage) GetInspectionByID(ctx context.Context, id uint64) (*models.Inspection, error) {
	row := s.db.QueryRow(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE id = $1`, id)
	insp, err := scanInspection(row)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select inspection")
	}
	return insp, nil
}

func (s *Storage) GetInspectionsByIDs(ctx context.Context, ids []uint64) ([]*models.Inspection, error) {
	if len(ids) == 0 {
		return []*models.Inspection{}, nil
	}

	rows, err := s.db.Query(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select inspections")
	}
	defer rows.Close()

	out := make([]*models.Inspection, 0, len(ids))
	for rows.Next() {
		insp, err := scanInspection(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan inspection")
		}
		out = append(out, insp)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) ListInspections(ctx context.Context, limit, offset int) ([]*models.Inspection, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT `+inspectionColumns+`
FROM inspections
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select inspections")
	}
	defer rows.Close()

	var out []*models.Inspection
	for rows.Next() {
		insp, err := scanInspection(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan inspection")
		}
		out = append(out, insp)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanInspection(row pgx.Row) (*models.Inspection, error) {
	var t models.Inspection
	var notifyError *string
	var notifiedAt *time.Time
	if err := row.Scan(
		&t.ID, &t.SerialNumber, &t.DrugshopName, &t.District,
		&t.BoxesOriginal, &t.BoxesImpounded, &t.Status,
		&t.ContactPhones, &t.CreatedBy,
		&t.NotifyAttempted, &t.NotifySucceeded, &notifyError, &notifiedAt,
		&t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.NotifyError = notifyError
	t.NotifiedAt = notifiedAt
	return &t, nil
}
