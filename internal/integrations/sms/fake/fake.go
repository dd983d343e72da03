package fake

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// FakeClient — локальная заглушка SMS-шлюза для тестов и dev-окружения.
// Детерминированно отказывает для номеров с суффиксом "00" (удобно
// прогонять сценарий "сохранено, но не доставлено").
type FakeClient struct {
	mu   sync.Mutex
	sent []Sent
}

type Sent struct {
	Destinations []string
	Message      string
}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Send(ctx context.Context, destinations []string, message string) error {
	if len(destinations) == 0 {
		return errors.New("no destinations")
	}
	for _, d := range destinations {
		if strings.HasSuffix(d, "00") {
			return errors.Errorf("fake gateway rejected %s", d)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, Sent{Destinations: destinations, Message: message})
	return nil
}

func (f *FakeClient) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Sent, len(f.sent))
	copy(out, f.sent)
	return out
}
