package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type queueMock struct {
	mock.Mock
}

func (m *queueMock) Claim(ctx context.Context, workerID string) (*Message, error) {
	args := m.Called(ctx, workerID)
	msg, _ := args.Get(0).(*Message)
	return msg, args.Error(1)
}

func (m *queueMock) MarkSent(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *queueMock) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	return m.Called(ctx, id, next, errMsg).Error(0)
}

type producerMock struct {
	mock.Mock
}

func (m *producerMock) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	return m.Called(ctx, topic, key, payload, headers).Error(0)
}

func confirmedMessage() *Message {
	return &Message{
		ID:         "evt-1",
		Name:       "booking.confirmed",
		Payload:    []byte(`{"BookingID":"bk-1"}`),
		OccurredAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Aggregate:  "bk-1",
		Headers:    map[string]string{"event-name": "booking.confirmed"},
	}
}

func TestWorkerPublishesCloudEvent(t *testing.T) {
	q := new(queueMock)
	p := new(producerMock)
	w := &Worker{Queue: q, Producer: p, ID: "w1", TopicPrefix: "dev."}

	q.On("Claim", mock.Anything, "w1").Return(confirmedMessage(), nil).Once()
	p.On("Publish", mock.Anything, "dev.booking.events.v1", "bk-1", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			var evt map[string]any
			require.NoError(t, json.Unmarshal(args.Get(3).([]byte), &evt))
			assert.Equal(t, "booking.confirmed.v1", evt["type"])
			assert.Equal(t, "evt-1", evt["id"])
			headers := args.Get(4).(map[string]string)
			assert.Equal(t, "application/cloudevents+json", headers["content-type"])
			assert.Equal(t, "booking.confirmed", headers["event-name"])
		}).
		Return(nil).Once()
	q.On("MarkSent", mock.Anything, "evt-1").Return(nil).Once()

	sent, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, sent)
	q.AssertExpectations(t)
	p.AssertExpectations(t)
}

func TestWorkerSchedulesRetryOnPublishFailure(t *testing.T) {
	q := new(queueMock)
	p := new(producerMock)
	w := &Worker{Queue: q, Producer: p, ID: "w1", Backoff: []time.Duration{time.Minute}}

	msg := confirmedMessage()
	q.On("Claim", mock.Anything, "w1").Return(msg, nil).Once()
	p.On("Publish", mock.Anything, "booking.events.v1", "bk-1", mock.Anything, mock.Anything).
		Return(errors.New("broker down")).Once()
	q.On("MarkFailed", mock.Anything, "evt-1", mock.MatchedBy(func(next time.Time) bool {
		return next.After(time.Now().Add(50 * time.Second))
	}), "broker down").Return(nil).Once()

	sent, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, sent)
	q.AssertExpectations(t)
}

func TestWorkerIdleQueue(t *testing.T) {
	q := new(queueMock)
	w := &Worker{Queue: q, Producer: new(producerMock), ID: "w1"}
	q.On("Claim", mock.Anything, "w1").Return(nil, nil).Once()

	sent, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestTopicFor(t *testing.T) {
	w := &Worker{}
	assert.Equal(t, "booking.events.v1", w.topicFor("booking.cancelled"))
	assert.Equal(t, "misc.events.v1", w.topicFor("misc"))
}
