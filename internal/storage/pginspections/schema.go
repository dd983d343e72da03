package pginspections

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS inspections (
  id BIGSERIAL PRIMARY KEY,
  serial_number TEXT NOT NULL,
  drugshop_name TEXT NOT NULL,
  district TEXT NOT NULL DEFAULT '',
  boxes_original BIGINT NOT NULL CHECK (boxes_original >= 0),
  boxes_impounded BIGINT NOT NULL CHECK (boxes_impounded >= 0),
  status TEXT NOT NULL,
  contact_phones TEXT[] NOT NULL DEFAULT '{}',
  created_by TEXT NOT NULL,
  notify_attempted BOOLEAN NOT NULL DEFAULT FALSE,
  notify_succeeded BOOLEAN NOT NULL DEFAULT FALSE,
  notify_error TEXT NULL,
  notified_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (serial_number)
)`,
		`CREATE INDEX IF NOT EXISTS idx_inspections_status ON inspections(status)`,
		`
CREATE TABLE IF NOT EXISTS release_records (
  id BIGSERIAL PRIMARY KEY,
  inspection_id BIGINT NOT NULL REFERENCES inspections(id),
  quantity BIGINT NOT NULL CHECK (quantity > 0),
  boxes_left BIGINT NOT NULL CHECK (boxes_left >= 0),
  released_by TEXT NOT NULL,
  client_name TEXT NOT NULL DEFAULT '',
  client_phone TEXT NOT NULL DEFAULT '',
  note TEXT NOT NULL DEFAULT '',
  notify_attempted BOOLEAN NOT NULL DEFAULT FALSE,
  notify_succeeded BOOLEAN NOT NULL DEFAULT FALSE,
  notify_error TEXT NULL,
  notified_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_release_records_inspection_id_created_at ON release_records(inspection_id, created_at DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
