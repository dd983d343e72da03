package pginspections

import (
	"context"
	"time"

	"github.com/FieldReport/ImpoundBox/internal/broker/messages"
	"github.com/FieldReport/ImpoundBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// ReleaseUpdate — подготовленное леджером решение плюс ожидаемый остаток.
// ExpectedBoxes — значение boxes_impounded, прочитанное перед валидацией:
// апдейт условный, и если остаток успел измениться, ни одна из двух записей
// (декремент и release_record) не применяется.
type ReleaseUpdate struct {
	InspectionID   uint64
	ExpectedBoxes  int64
	RemainingBoxes int64
	Status         string

	Quantity    int64
	ReleasedBy  string
	ClientName  string
	ClientPhone string
	Note        string
}

// ApplyRelease атомарно (в одной транзакции) уменьшает остаток и добавляет
// запись аудита. Возвращает ErrConflict, если остаток не равен ожидаемому,
// и ErrNotFound, если инспекции нет.
func (s *Storage) ApplyRelease(ctx context.Context, upd ReleaseUpdate) (*models.ReleaseRecord, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE inspections
SET
  boxes_impounded = $3,
  status = $4,
  updated_at = now()
WHERE id = $1 AND boxes_impounded = $2
`, upd.InspectionID, upd.ExpectedBoxes, upd.RemainingBoxes, upd.Status)
	if err != nil {
		return nil, errors.Wrap(err, "update inspection quantity")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inspections WHERE id = $1)`, upd.InspectionID).Scan(&exists); err != nil {
			return nil, errors.Wrap(err, "check inspection exists")
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrConflict
	}

	var rec models.ReleaseRecord
	err = tx.QueryRow(ctx, `
INSERT INTO release_records (
  inspection_id, quantity, boxes_left,
  released_by, client_name, client_phone, note, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7, now())
RETURNING id, created_at
`, upd.InspectionID, upd.Quantity, upd.RemainingBoxes,
		upd.ReleasedBy, upd.ClientName, upd.ClientPhone, upd.Note).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert release record")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	rec.InspectionID = upd.InspectionID
	rec.Quantity = upd.Quantity
	rec.BoxesLeft = upd.RemainingBoxes
	rec.ReleasedBy = upd.ReleasedBy
	rec.ClientName = upd.ClientName
	rec.ClientPhone = upd.ClientPhone
	rec.Note = upd.Note
	return &rec, nil
}

func (s *Storage) ListReleaseRecords(ctx context.Context, inspectionID uint64, limit, offset int) ([]*models.ReleaseRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT
  id, inspection_id, quantity, boxes_left,
  released_by, client_name, client_phone, note,
  notify_attempted, notify_succeeded, notify_error, notified_at,
  created_at
FROM release_records
WHERE inspection_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`, inspectionID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select release records")
	}
	defer rows.Close()

	var out []*models.ReleaseRecord
	for rows.Next() {
		var r models.ReleaseRecord
		var notifyError *string
		var notifiedAt *time.Time
		if err := rows.Scan(
			&r.ID, &r.InspectionID, &r.Quantity, &r.BoxesLeft,
			&r.ReleasedBy, &r.ClientName, &r.ClientPhone, &r.Note,
			&r.NotifyAttempted, &r.NotifySucceeded, &notifyError, &notifiedAt,
			&r.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan release record")
		}
		r.NotifyError = notifyError
		r.NotifiedAt = notifiedAt
		out = append(out, &r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// MarkNotification проставляет notify_* флаги по исходу SMS-доставки.
// Чисто аудитная запись: вызывающий логирует ошибку и продолжает работу.
func (s *Storage) MarkNotification(ctx context.Context, res messages.NotificationResult) error {
	switch res.Kind {
	case messages.NotificationKindRelease:
		_, err := s.db.Exec(ctx, `
UPDATE release_records
SET notify_attempted = $2, notify_succeeded = $3, notify_error = $4, notified_at = $5
WHERE id = $1
`, res.ReleaseID, res.Attempted, res.Succeeded, res.Error, res.NotifiedAt.UTC())
		return errors.Wrap(err, "mark release notification")
	case messages.NotificationKindInspection:
		_, err := s.db.Exec(ctx, `
UPDATE inspections
SET notify_attempted = $2, notify_succeeded = $3, notify_error = $4, notified_at = $5, updated_at = now()
WHERE id = $1
`, res.InspectionID, res.Attempted, res.Succeeded, res.Error, res.NotifiedAt.UTC())
		return errors.Wrap(err, "mark inspection notification")
	default:
		return errors.Errorf("unknown notification kind %q", res.Kind)
	}
}
