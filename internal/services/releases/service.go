package releases

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/FieldReport/ImpoundBox/internal/broker/messages"
	"github.com/FieldReport/ImpoundBox/internal/cache"
	"github.com/FieldReport/ImpoundBox/internal/ledger"
	"github.com/FieldReport/ImpoundBox/internal/models"
	"github.com/FieldReport/ImpoundBox/internal/services/inspections"
	"github.com/FieldReport/ImpoundBox/internal/storage/pginspections"
	"github.com/pkg/errors"
)

// ErrStoreUnavailable — хранилище так и не приняло транзакцию за отведённые
// попытки. Частичного эффекта нет: декремент и запись аудита применяются
// только вместе.
var ErrStoreUnavailable = errors.New("store unavailable")

type Repository interface {
	GetInspectionByID(ctx context.Context, id uint64) (*models.Inspection, error)
	ApplyRelease(ctx context.Context, upd pginspections.ReleaseUpdate) (*models.ReleaseRecord, error)
}

type Producer interface {
	PublishJSON(ctx context.Context, topic, key string, msg any) error
}

// Service — координатор транзакции выдачи: свежее чтение, чистое решение
// леджера, условная запись. Гонку "прочитали одно и то же, списали дважды"
// закрывает CAS в ApplyRelease: проигравший конфликт перечитывает остаток
// и валидируется заново.
type Service struct {
	repo     Repository
	cache    cache.BytesCache
	producer Producer
	topic    string

	maxAttempts    int
	retryBackoff   time.Duration
	publishTimeout time.Duration
}

func New(repo Repository, c cache.BytesCache, producer Producer, topic string) *Service {
	return &Service{
		repo:           repo,
		cache:          c,
		producer:       producer,
		topic:          topic,
		maxAttempts:    5,
		retryBackoff:   200 * time.Millisecond,
		publishTimeout: 5 * time.Second,
	}
}

func (s *Service) WithRetry(maxAttempts int, backoff time.Duration) *Service {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	if backoff > 0 {
		s.retryBackoff = backoff
	}
	return s
}

type ReleaseInput struct {
	Quantity    int64
	ReleasedBy  string
	ClientName  string
	ClientPhone string
	Note        string
}

type ReleaseOutcome struct {
	Record    *models.ReleaseRecord
	Remaining int64
	Status    string
}

func (s *Service) CommitRelease(ctx context.Context, inspectionID uint64, in ReleaseInput) (*ReleaseOutcome, error) {
	if inspectionID == 0 {
		return nil, errors.New("inspectionId is required")
	}
	if in.ReleasedBy == "" {
		return nil, errors.New("releasedBy is required")
	}

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		// Остаток читаем непосредственно перед решением: значение из
		// пользовательского диалога могло устареть.
		insp, err := s.repo.GetInspectionByID(ctx, inspectionID)
		if err != nil {
			if errors.Is(err, pginspections.ErrNotFound) {
				return nil, err
			}
			lastErr = err
			if !s.sleepBackoff(ctx) {
				break
			}
			continue
		}

		res, err := ledger.ApplyRelease(insp.BoxesImpounded, in.Quantity)
		if err != nil {
			// InvalidQuantity / OverRelease: реальный отказ предусловия,
			// ретраи не помогут и запись не выполняется.
			return nil, err
		}

		rec, err := s.repo.ApplyRelease(ctx, pginspections.ReleaseUpdate{
			InspectionID:   inspectionID,
			ExpectedBoxes:  insp.BoxesImpounded,
			RemainingBoxes: res.Remaining,
			Status:         res.Status,
			Quantity:       in.Quantity,
			ReleasedBy:     in.ReleasedBy,
			ClientName:     in.ClientName,
			ClientPhone:    in.ClientPhone,
			Note:           in.Note,
		})
		if err == nil {
			s.afterCommit(ctx, insp, rec, res)
			return &ReleaseOutcome{Record: rec, Remaining: res.Remaining, Status: res.Status}, nil
		}
		if errors.Is(err, pginspections.ErrConflict) {
			// Параллельная выдача успела первой: сразу перечитываем.
			lastErr = err
			continue
		}
		if errors.Is(err, pginspections.ErrNotFound) {
			return nil, err
		}
		lastErr = err
		if !s.sleepBackoff(ctx) {
			break
		}
	}

	return nil, errors.Wrapf(ErrStoreUnavailable, "release not committed after %d attempts: %v", s.maxAttempts, lastErr)
}

func (s *Service) sleepBackoff(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.retryBackoff):
		return true
	}
}

// afterCommit — действия после уже закоммиченной транзакции: сброс кэша и
// публикация события для нотификатора. Обе best-effort, откатить коммит
// они не могут.
func (s *Service) afterCommit(ctx context.Context, insp *models.Inspection, rec *models.ReleaseRecord, res ledger.Result) {
	if s.cache != nil {
		if err := s.cache.Del(ctx, inspections.CurrentStateKey(insp.ID)); err != nil {
			slog.Warn("invalidate inspection cache", "inspection_id", insp.ID, "error", err.Error())
		}
	}

	if s.producer == nil || s.topic == "" {
		return
	}
	msg := messages.ReleaseCommitted{
		ReleaseID:     rec.ID,
		InspectionID:  insp.ID,
		SerialNumber:  insp.SerialNumber,
		DrugshopName:  insp.DrugshopName,
		Quantity:      rec.Quantity,
		BoxesLeft:     res.Remaining,
		ReleasedBy:    rec.ReleasedBy,
		ContactPhones: insp.ContactPhones,
		CommittedAt:   rec.CreatedAt,
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
		defer cancel()
		if err := s.producer.PublishJSON(pubCtx, s.topic, strconv.FormatUint(insp.ID, 10), msg); err != nil {
			slog.Error("publish release committed", "release_id", rec.ID, "error", err.Error())
		}
	}()
}
