package releases

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/FieldReport/ImpoundBox/internal/broker/messages"
	"github.com/FieldReport/ImpoundBox/internal/ledger"
	"github.com/FieldReport/ImpoundBox/internal/models"
	"github.com/FieldReport/ImpoundBox/internal/storage/pginspections"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// memRepo воспроизводит контракт pginspections: условный апдейт по
// ожидаемому остатку, декремент и запись аудита атомарны.
type memRepo struct {
	mu      sync.Mutex
	insp    map[uint64]*models.Inspection
	records []*models.ReleaseRecord
	nextID  uint64

	getErrs     int // сколько первых чтений уронить транзиентной ошибкой
	applyErrs   int // то же для записи
	injectedCAS int // сколько первых записей отбить конфликтом
	applyCalls  int
}

func newMemRepo(insp ...*models.Inspection) *memRepo {
	r := &memRepo{insp: map[uint64]*models.Inspection{}, nextID: 100}
	for _, i := range insp {
		r.insp[i.ID] = i
	}
	return r
}

func (r *memRepo) GetInspectionByID(ctx context.Context, id uint64) (*models.Inspection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErrs > 0 {
		r.getErrs--
		return nil, errors.New("pg: connection refused")
	}
	i, ok := r.insp[id]
	if !ok {
		return nil, pginspections.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (r *memRepo) ApplyRelease(ctx context.Context, upd pginspections.ReleaseUpdate) (*models.ReleaseRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyCalls++
	if r.applyErrs > 0 {
		r.applyErrs--
		return nil, errors.New("pg: connection refused")
	}
	if r.injectedCAS > 0 {
		r.injectedCAS--
		return nil, pginspections.ErrConflict
	}
	i, ok := r.insp[upd.InspectionID]
	if !ok {
		return nil, pginspections.ErrNotFound
	}
	if i.BoxesImpounded != upd.ExpectedBoxes {
		return nil, pginspections.ErrConflict
	}
	i.BoxesImpounded = upd.RemainingBoxes
	i.Status = upd.Status

	r.nextID++
	rec := &models.ReleaseRecord{
		ID:           r.nextID,
		InspectionID: upd.InspectionID,
		Quantity:     upd.Quantity,
		BoxesLeft:    upd.RemainingBoxes,
		ReleasedBy:   upd.ReleasedBy,
		ClientName:   upd.ClientName,
		ClientPhone:  upd.ClientPhone,
		Note:         upd.Note,
		CreatedAt:    time.Now().UTC(),
	}
	r.records = append(r.records, rec)
	return rec, nil
}

func (r *memRepo) recordCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type fakeCache struct {
	mu   sync.Mutex
	m    map[string][]byte
	dels []string
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	return b, ok, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	c.dels = append(c.dels, key)
	return nil
}

type fakeProducer struct {
	mu   sync.Mutex
	err  error
	msgs []any
}

func (p *fakeProducer) PublishJSON(ctx context.Context, topic, key string, msg any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakeProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func inspectionWith(boxes int64) *models.Inspection {
	return &models.Inspection{
		ID:             17,
		SerialNumber:   "NDA-2026-0017",
		DrugshopName:   "Kisenyi Pharmacy",
		BoxesOriginal:  boxes,
		BoxesImpounded: boxes,
		Status:         models.InspectionStatusSubmitted,
		ContactPhones:  []string{"+256700000001"},
	}
}

func TestCommitRelease_Validate(t *testing.T) {
	s := New(newMemRepo(), nil, nil, "")

	_, err := s.CommitRelease(context.Background(), 0, ReleaseInput{Quantity: 1, ReleasedBy: "x"})
	require.Error(t, err)

	_, err = s.CommitRelease(context.Background(), 17, ReleaseInput{Quantity: 1})
	require.Error(t, err)
}

func TestCommitRelease_NotFound(t *testing.T) {
	s := New(newMemRepo(), nil, nil, "")
	_, err := s.CommitRelease(context.Background(), 404, ReleaseInput{Quantity: 1, ReleasedBy: "officer.k"})
	require.ErrorIs(t, err, pginspections.ErrNotFound)
}

func TestCommitRelease_FullScenario(t *testing.T) {
	repo := newMemRepo(inspectionWith(20))
	s := New(repo, nil, nil, "")

	out, err := s.CommitRelease(context.Background(), 17, ReleaseInput{Quantity: 5, ReleasedBy: "officer.k", ClientName: "J. Okello"})
	require.NoError(t, err)
	require.Equal(t, int64(15), out.Remaining)
	require.Equal(t, models.InspectionStatusPendingReview, out.Status)
	require.Equal(t, int64(15), out.Record.BoxesLeft)

	out, err = s.CommitRelease(context.Background(), 17, ReleaseInput{Quantity: 15, ReleasedBy: "officer.k"})
	require.NoError(t, err)
	require.Equal(t, int64(0), out.Remaining)
	require.Equal(t, models.InspectionStatusCompleted, out.Status)

	require.Equal(t, 2, repo.recordCount())
	var total int64
	for _, r := range repo.records {
		total += r.Quantity
	}
	require.Equal(t, int64(20), total)
}

func TestCommitRelease_OverRelease_NoWrite(t *testing.T) {
	repo := newMemRepo(inspectionWith(3))
	s := New(repo, nil, nil, "")

	_, err := s.CommitRelease(context.Background(), 17, ReleaseInput{Quantity: 4, ReleasedBy: "officer.k"})
	var over *ledger.OverReleaseError
	require.ErrorAs(t, err, &over)
	require.Equal(t, int64(4), over.Requested)
	require.Equal(t, int64(3), over.Available)

	require.Equal(t, 0, repo.recordCount())
	require.Equal(t, 0, repo.applyCalls)
	require.Equal(t, int64(3), repo.insp[17].BoxesImpounded)
	require.Equal(t, models.InspectionStatusSubmitted, repo.insp[17].Status)
}

func TestCommitRelease_InvalidQuantity_NoWrite(t *testing.T) {
	repo := newMemRepo(inspectionWith(3))
	s := New(repo, nil, nil, "")

	_, err := s.CommitRelease(context.Background(), 17, ReleaseInput{Quantity: 0, ReleasedBy: "officer.k"})
	require.ErrorIs(t, err, ledger.ErrInvalidQuantity)
	require.Equal(t, 0, repo.recordCount())
}

// Две конкурентные выдачи 6+6 при остатке 10: ровно один успех и один
// OverRelease, остаток не уходит в минус, запись аудита одна.
func TestCommitRelease_ConcurrentOverlap(t *testing.T) {
	repo := newMemRepo(inspectionWith(10))
	s := New(repo, nil, nil, "")

	type res struct {
		out *ReleaseOutcome
		err error
	}
	results := make(chan res, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.CommitRelease(context.Background(), 17, ReleaseInput{Quantity: 6, ReleasedBy: "officer"})
			results <- res{out, err}
		}()
	}
	wg.Wait()
	close(results)

	var successes, overs int
	for r := range results {
		if r.err == nil {
			successes++
			require.Equal(t, int64(4), r.out.Remaining)
			continue
		}
		var over *ledger.OverReleaseError
		require.ErrorAs(t, r.err, &over)
		require.Equal(t, int64(6), over.Requested)
		require.Equal(t, int64(4), over.Available)
		overs++
	}
	require.Equal(t, 1, successes)
	require.Equal(t, 1, overs)
	require.Equal(t, 1, repo.recordCount())
	require.Equal(t, int64(4), repo.insp[17].BoxesImpounded)
}

// Проигравший CAS перечитывает остаток и валидируется заново.
func TestCommitRelease_ConflictRetriesWithFreshRead(t *testing.T) {
	repo := newMemRepo(inspectionWith(10))
	repo.injectedCAS = 1
	s := New(repo, nil, nil, "")

	out, err := s.CommitRelease(context.Background(), 17, ReleaseInput{Quantity: 6, ReleasedBy: "officer.k"})
	require.NoError(t, err)
	require.Equal(t, int64(4), out.Remaining)
	require.Equal(t, 2, repo.applyCalls)
}

func TestCommitRelease_TransientErrorsRetried(t *testing.T) {
	repo := newMemRepo(inspectionWith(10))
	repo.getErrs = 1
	repo.applyErrs = 1
	s := New(repo, nil, nil, "").WithRetry(5, time.Millisecond)

	out, err := s.CommitRelease(context.Background(), 17, ReleaseInput{Quantity: 6, ReleasedBy: "officer.k"})
	require.NoError(t, err)
	require.Equal(t, int64(4), out.Remaining)
	require.Equal(t, 1, repo.recordCount())
}

func TestCommitRelease_StoreUnavailableAfterRetries(t *testing.T) {
	repo := newMemRepo(inspectionWith(10))
	repo.getErrs = 10
	s := New(repo, nil, nil, "").WithRetry(3, time.Millisecond)

	_, err := s.CommitRelease(context.Background(), 17, ReleaseInput{Quantity: 6, ReleasedBy: "officer.k"})
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.Equal(t, 0, repo.recordCount())
	require.Equal(t, int64(10), repo.insp[17].BoxesImpounded)
}

func TestCommitRelease_InvalidatesCacheAndPublishes(t *testing.T) {
	repo := newMemRepo(inspectionWith(10))
	c := &fakeCache{m: map[string][]byte{"inspection:17:current": []byte(`{}`)}}
	p := &fakeProducer{}
	s := New(repo, c, p, "release.committed")

	_, err := s.CommitRelease(context.Background(), 17, ReleaseInput{Quantity: 6, ReleasedBy: "officer.k"})
	require.NoError(t, err)

	c.mu.Lock()
	require.Contains(t, c.dels, "inspection:17:current")
	c.mu.Unlock()

	require.Eventually(t, func() bool { return p.count() == 1 }, time.Second, 10*time.Millisecond)
	p.mu.Lock()
	msg, ok := p.msgs[0].(messages.ReleaseCommitted)
	p.mu.Unlock()
	require.True(t, ok)
	require.Equal(t, uint64(17), msg.InspectionID)
	require.Equal(t, int64(6), msg.Quantity)
	require.Equal(t, int64(4), msg.BoxesLeft)
	require.Equal(t, "NDA-2026-0017", msg.SerialNumber)
}

// Отказ публикации не влияет на уже закоммиченную выдачу.
func TestCommitRelease_PublishFailureDoesNotFailCommit(t *testing.T) {
	repo := newMemRepo(inspectionWith(10))
	p := &fakeProducer{err: errors.New("kafka down")}
	s := New(repo, nil, p, "release.committed")

	out, err := s.CommitRelease(context.Background(), 17, ReleaseInput{Quantity: 6, ReleasedBy: "officer.k"})
	require.NoError(t, err)
	require.Equal(t, int64(4), out.Remaining)
	require.Equal(t, 1, repo.recordCount())
}
