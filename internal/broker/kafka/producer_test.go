package kafka

import (
	"context"
	"testing"

	"github.com/FieldReport/ImpoundBox/internal/broker/messages"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	last []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.last = append([]kafka.Message{}, msgs...)
	return w.err
}

func TestProducer_Publish(t *testing.T) {
	fw := &fakeWriter{}
	p := newProducerWithWriter(fw)

	require.NoError(t, p.Publish(context.Background(), "t", []byte("k"), []byte("v")))
	require.Len(t, fw.last, 1)
	require.Equal(t, "t", fw.last[0].Topic)
	require.Equal(t, []byte("k"), fw.last[0].Key)
	require.Equal(t, []byte("v"), fw.last[0].Value)
}

func TestProducer_PublishJSON(t *testing.T) {
	fw := &fakeWriter{}
	p := newProducerWithWriter(fw)

	msg := messages.ReleaseCommitted{ReleaseID: 5, InspectionID: 17, Quantity: 3, BoxesLeft: 7}
	require.NoError(t, p.PublishJSON(context.Background(), "release.committed", "17", msg))
	require.Len(t, fw.last, 1)
	require.Equal(t, []byte("17"), fw.last[0].Key)
	require.Contains(t, string(fw.last[0].Value), `"release_id":5`)
}

func TestNewProducer(t *testing.T) {
	p := NewProducer([]string{"localhost:0"})
	require.NotNil(t, p)
}
