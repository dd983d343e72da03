package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FieldReport/ImpoundBox/internal/broker/messages"
	"github.com/FieldReport/ImpoundBox/internal/integrations/sms"
)

type Producer interface {
	PublishJSON(ctx context.Context, topic, key string, msg any) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Notifier превращает закоммиченные события в SMS. Доставка строго
// best-effort: любой исход (включая отказ шлюза) публикуется как
// NotificationResult и никогда не возвращается ошибкой наверх.
type Notifier struct {
	sms      sms.Client
	producer Producer
	rl       RateLimiter

	releaseTopic    string
	inspectionTopic string
	resultTopic     string

	smsTimeout         time.Duration
	rateLimitPerMinute int64

	startedAtUnixNano int64
	totalHandled      atomic.Int64
	totalSent         atomic.Int64
	totalFailed       atomic.Int64
	inFlight          atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

func New(smsClient sms.Client, producer Producer, rl RateLimiter, releaseTopic, inspectionTopic, resultTopic string) *Notifier {
	return &Notifier{
		sms:                smsClient,
		producer:           producer,
		rl:                 rl,
		releaseTopic:       releaseTopic,
		inspectionTopic:    inspectionTopic,
		resultTopic:        resultTopic,
		smsTimeout:         10 * time.Second,
		rateLimitPerMinute: 120,
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (n *Notifier) WithSettings(smsTimeout time.Duration, rlPerMin int64) *Notifier {
	if smsTimeout > 0 {
		n.smsTimeout = smsTimeout
	}
	if rlPerMin > 0 {
		n.rateLimitPerMinute = rlPerMin
	}
	return n
}

type Stats struct {
	StartedAt    time.Time `json:"startedAt"`
	TotalHandled int64     `json:"totalHandled"`
	TotalSent    int64     `json:"totalSent"`
	TotalFailed  int64     `json:"totalFailed"`
	InFlight     int64     `json:"inFlight"`
	LastError    string    `json:"lastError,omitempty"`
}

func (n *Notifier) Stats() Stats {
	st := Stats{
		StartedAt:    time.Unix(0, n.startedAtUnixNano).UTC(),
		TotalHandled: n.totalHandled.Load(),
		TotalSent:    n.totalSent.Load(),
		TotalFailed:  n.totalFailed.Load(),
		InFlight:     n.inFlight.Load(),
	}
	n.lastErrorMu.Lock()
	st.LastError = n.lastError
	n.lastErrorMu.Unlock()
	return st
}

// Handle разбирает сообщение по топику. Ошибку возвращает только отказ
// публикации результата: тогда сообщение не коммитится и будет доставлено
// повторно. Непарсящееся сообщение логируется и пропускается.
func (n *Notifier) Handle(ctx context.Context, topic string, value []byte) error {
	n.inFlight.Add(1)
	defer n.inFlight.Add(-1)
	n.totalHandled.Add(1)

	switch topic {
	case n.releaseTopic:
		var m messages.ReleaseCommitted
		if err := json.Unmarshal(value, &m); err != nil {
			slog.Error("decode release committed", "error", err.Error())
			return nil
		}
		res := n.deliver(ctx, m.ContactPhones, releaseMessage(m))
		res.Kind = messages.NotificationKindRelease
		res.InspectionID = m.InspectionID
		res.ReleaseID = m.ReleaseID
		return n.publishResult(ctx, res)
	case n.inspectionTopic:
		var m messages.InspectionCreated
		if err := json.Unmarshal(value, &m); err != nil {
			slog.Error("decode inspection created", "error", err.Error())
			return nil
		}
		res := n.deliver(ctx, m.ContactPhones, inspectionMessage(m))
		res.Kind = messages.NotificationKindInspection
		res.InspectionID = m.InspectionID
		return n.publishResult(ctx, res)
	default:
		slog.Warn("message from unexpected topic", "topic", topic)
		return nil
	}
}

func (n *Notifier) deliver(ctx context.Context, phones []string, text string) messages.NotificationResult {
	now := time.Now().UTC()
	res := messages.NotificationResult{NotifiedAt: now}

	if len(phones) == 0 {
		e := "no contact phones"
		res.Error = &e
		n.totalFailed.Add(1)
		return res
	}

	if n.rl != nil && n.rateLimitPerMinute > 0 {
		minuteKey := fmt.Sprintf("rl:sms:%s", now.Format("200601021504"))
		allowed, cnt, err := n.rl.Allow(ctx, minuteKey, n.rateLimitPerMinute, 70*time.Second)
		if err != nil {
			slog.Warn("sms rate limiter", "error", err.Error())
		} else if !allowed {
			// Шлюз платный и лимитируемый: притормаживаем, но не бросаем.
			slog.Warn("sms rate limit exceeded", "count", cnt)
			time.Sleep(500 * time.Millisecond)
		}
	}

	smsCtx, cancel := context.WithTimeout(ctx, n.smsTimeout)
	defer cancel()

	res.Attempted = true
	if err := n.sms.Send(smsCtx, phones, text); err != nil {
		e := err.Error()
		res.Error = &e
		n.totalFailed.Add(1)
		n.lastErrorMu.Lock()
		n.lastError = e
		n.lastErrorMu.Unlock()
		slog.Error("sms delivery failed", "error", e)
		return res
	}
	res.Succeeded = true
	n.totalSent.Add(1)
	return res
}

func (n *Notifier) publishResult(ctx context.Context, res messages.NotificationResult) error {
	return n.producer.PublishJSON(ctx, n.resultTopic, strconv.FormatUint(res.InspectionID, 10), res)
}
