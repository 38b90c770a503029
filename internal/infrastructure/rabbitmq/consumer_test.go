package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/clinicore/authorization/pkg/apperrors"
)

type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func newTestConsumer() *Consumer {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewConsumer("amqp://localhost", logger, nil)
}

func newDelivery(t *testing.T, ack *fakeAcknowledger, kind FactKind, payload any) amqp.Delivery {
	t.Helper()
	env, err := NewEnvelope(kind, payload)
	assert.NoError(t, err)
	body, err := json.Marshal(env)
	assert.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body}
}

func TestDispatch_AcksAfterSuccess(t *testing.T) {
	c := newTestConsumer()
	ack := &fakeAcknowledger{}

	var got Envelope
	b := Binding{Queue: QueuePatientAdded, Handler: func(_ context.Context, env Envelope) error {
		got = env
		return nil
	}}
	c.dispatch(context.Background(), b, newDelivery(t, ack, KindPatient, PatientFact{ID: "pat-1", AccountID: "acc-1"}))

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	assert.Equal(t, KindPatient, got.Kind)
	assert.NotEmpty(t, got.MessageID)
}

func TestDispatch_PermanentFailureDropsDelivery(t *testing.T) {
	c := newTestConsumer()
	ack := &fakeAcknowledger{}

	b := Binding{Queue: QueueDoctorAdded, Handler: func(context.Context, Envelope) error {
		return apperrors.NewNotFoundError("account")
	}}
	c.dispatch(context.Background(), b, newDelivery(t, ack, KindDoctor, DoctorFact{ID: "doc-1"}))

	assert.False(t, ack.acked)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue, "a fact that can never apply must not requeue")
}

func TestDispatch_TransientFailureRequeues(t *testing.T) {
	c := newTestConsumer()
	ack := &fakeAcknowledger{}

	b := Binding{Queue: QueueDoctorAdded, Handler: func(context.Context, Envelope) error {
		return errors.New("store unavailable")
	}}
	c.dispatch(context.Background(), b, newDelivery(t, ack, KindDoctor, DoctorFact{ID: "doc-1"}))

	assert.False(t, ack.acked)
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
}

func TestDispatch_MalformedBodyDropped(t *testing.T) {
	c := newTestConsumer()

	handlerCalled := false
	b := Binding{Queue: QueueDoctorAdded, Handler: func(context.Context, Envelope) error {
		handlerCalled = true
		return nil
	}}

	for _, body := range [][]byte{
		[]byte("not json"),
		[]byte(`{"message_id":"m-1","version":1,"payload":{}}`), // missing kind
	} {
		ack := &fakeAcknowledger{}
		c.dispatch(context.Background(), b, amqp.Delivery{Acknowledger: ack, Body: body})
		assert.False(t, ack.acked)
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeue)
	}
	assert.False(t, handlerCalled)
}

func TestDispatch_FinishesInFlightAfterShutdown(t *testing.T) {
	c := newTestConsumer()
	ack := &fakeAcknowledger{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // consume loop already stopped

	b := Binding{Queue: QueuePatientAdded, Handler: func(hctx context.Context, _ Envelope) error {
		// the invocation must still have a live context to commit with
		assert.NoError(t, hctx.Err())
		return nil
	}}
	c.dispatch(ctx, b, newDelivery(t, ack, KindPatient, PatientFact{ID: "pat-1"}))

	assert.True(t, ack.acked)
}
