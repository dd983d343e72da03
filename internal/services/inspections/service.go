package inspections

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/FieldReport/ImpoundBox/internal/broker/messages"
	"github.com/FieldReport/ImpoundBox/internal/cache"
	"github.com/FieldReport/ImpoundBox/internal/models"
	"github.com/pkg/errors"
)

type Repository interface {
	CreateInspection(ctx context.Context, in models.InspectionCreateInput) (*models.Inspection, error)
	GetInspectionsByIDs(ctx context.Context, ids []uint64) ([]*models.Inspection, error)
	ListInspections(ctx context.Context, limit, offset int) ([]*models.Inspection, error)
	ListReleaseRecords(ctx context.Context, inspectionID uint64, limit, offset int) ([]*models.ReleaseRecord, error)
	MarkNotification(ctx context.Context, res messages.NotificationResult) error
}

type Producer interface {
	PublishJSON(ctx context.Context, topic, key string, msg any) error
}

type Service struct {
	repo       Repository
	cache      cache.BytesCache
	currentTTL time.Duration

	producer       Producer
	createdTopic   string
	publishTimeout time.Duration
}

func New(repo Repository, c cache.BytesCache, currentTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, currentTTL: currentTTL, publishTimeout: 5 * time.Second}
}

// WithCreatedPublisher включает интейк-уведомления: после создания инспекции
// с ненулевым остатком публикуется InspectionCreated.
func (s *Service) WithCreatedPublisher(p Producer, topic string) *Service {
	s.producer = p
	s.createdTopic = topic
	return s
}

func (s *Service) CreateInspection(ctx context.Context, in models.InspectionCreateInput) (*models.Inspection, error) {
	if in.SerialNumber == "" {
		return nil, errors.New("serialNumber is required")
	}
	if in.DrugshopName == "" {
		return nil, errors.New("drugshopName is required")
	}
	if in.CreatedBy == "" {
		return nil, errors.New("createdBy is required")
	}
	if in.BoxesImpounded < 0 {
		return nil, errors.New("boxesImpounded must be non-negative")
	}
	// Нормализация телефонов — забота интейк-формы; здесь только отсечение
	// пустых токенов.
	clean := make([]string, 0, len(in.ContactPhones))
	for _, p := range in.ContactPhones {
		if p != "" {
			clean = append(clean, p)
		}
	}
	in.ContactPhones = clean

	insp, err := s.repo.CreateInspection(ctx, in)
	if err != nil {
		return nil, err
	}

	if s.producer != nil && s.createdTopic != "" && insp.BoxesImpounded > 0 && len(insp.ContactPhones) > 0 {
		msg := messages.InspectionCreated{
			InspectionID:   insp.ID,
			SerialNumber:   insp.SerialNumber,
			DrugshopName:   insp.DrugshopName,
			BoxesImpounded: insp.BoxesImpounded,
			CreatedBy:      insp.CreatedBy,
			ContactPhones:  insp.ContactPhones,
			CreatedAt:      insp.CreatedAt,
		}
		go func() {
			pubCtx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
			defer cancel()
			if err := s.producer.PublishJSON(pubCtx, s.createdTopic, strconv.FormatUint(insp.ID, 10), msg); err != nil {
				slog.Error("publish inspection created", "inspection_id", insp.ID, "error", err.Error())
			}
		}()
	}

	return insp, nil
}

func (s *Service) GetInspectionsByIDs(ctx context.Context, ids []uint64) ([]*models.Inspection, error) {
	if len(ids) == 0 {
		return []*models.Inspection{}, nil
	}
	// Кэшируем текущее состояние инспекции целиком как JSON; кэш best-effort.
	miss := make([]uint64, 0, len(ids))
	got := make(map[uint64]*models.Inspection, len(ids))

	if s.cache != nil && s.currentTTL > 0 {
		for _, id := range ids {
			key := CurrentStateKey(id)
			b, ok, err := s.cache.Get(ctx, key)
			if err != nil || !ok {
				miss = append(miss, id)
				continue
			}
			var t models.Inspection
			if json.Unmarshal(b, &t) != nil {
				miss = append(miss, id)
				continue
			}
			got[id] = &t
		}
	} else {
		miss = ids
	}

	if len(miss) > 0 {
		fromDB, err := s.repo.GetInspectionsByIDs(ctx, miss)
		if err != nil {
			return nil, err
		}
		if s.cache != nil && s.currentTTL > 0 {
			for _, t := range fromDB {
				b, _ := json.Marshal(t)
				_ = s.cache.Set(ctx, CurrentStateKey(t.ID), b, s.currentTTL)
			}
		}
		for _, t := range fromDB {
			got[t.ID] = t
		}
	}

	// Ответ в том же порядке, что ids.
	out := make([]*models.Inspection, 0, len(ids))
	for _, id := range ids {
		if t, ok := got[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Service) ListInspections(ctx context.Context, limit, offset int) ([]*models.Inspection, error) {
	return s.repo.ListInspections(ctx, limit, offset)
}

func (s *Service) ListReleaseRecords(ctx context.Context, inspectionID uint64, limit, offset int) ([]*models.ReleaseRecord, error) {
	if inspectionID == 0 {
		return nil, errors.New("inspectionId is required")
	}
	return s.repo.ListReleaseRecords(ctx, inspectionID, limit, offset)
}

// ApplyNotificationResult проставляет аудит доставки из kafka-сообщения
// воркера. Ошибка записи флага не фатальна: логируем и продолжаем, чтобы
// консьюмер закоммитил оффсет.
func (s *Service) ApplyNotificationResult(ctx context.Context, res messages.NotificationResult) error {
	if res.InspectionID == 0 {
		return errors.New("inspection_id is required")
	}
	if res.Kind == messages.NotificationKindRelease && res.ReleaseID == 0 {
		return errors.New("release_id is required for kind=release")
	}
	if res.NotifiedAt.IsZero() {
		res.NotifiedAt = time.Now().UTC()
	}

	if err := s.repo.MarkNotification(ctx, res); err != nil {
		slog.Warn("mark notification outcome", "kind", res.Kind, "inspection_id", res.InspectionID, "error", err.Error())
		return nil
	}

	// Обновляем кэш текущего состояния одной записью.
	if s.cache != nil && s.currentTTL > 0 {
		ts, err := s.repo.GetInspectionsByIDs(ctx, []uint64{res.InspectionID})
		if err == nil && len(ts) == 1 {
			b, _ := json.Marshal(ts[0])
			_ = s.cache.Set(ctx, CurrentStateKey(res.InspectionID), b, s.currentTTL)
		}
	}
	return nil
}

// CurrentStateKey — ключ кэша текущего состояния инспекции. Координатор
// выдач инвалидирует его после коммита.
func CurrentStateKey(id uint64) string {
	return fmt.Sprintf("inspection:%d:current", id)
}
