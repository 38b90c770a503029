package rabbitmq_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinicore/authorization/internal/infrastructure/rabbitmq"
)

func TestNewEnvelope(t *testing.T) {
	fact := rabbitmq.AccountFact{ID: "acc-1", Email: "user@example.com", Role: "Patient"}

	env, err := rabbitmq.NewEnvelope(rabbitmq.KindAccountCreated, fact)
	assert.NoError(t, err)
	assert.NotEmpty(t, env.MessageID)
	assert.Equal(t, rabbitmq.KindAccountCreated, env.Kind)
	assert.Equal(t, 1, env.Version)
	assert.False(t, env.OccurredAt.IsZero())

	// message ids are the consumer's de-dup handle, so they must be unique
	env2, err := rabbitmq.NewEnvelope(rabbitmq.KindAccountCreated, fact)
	assert.NoError(t, err)
	assert.NotEqual(t, env.MessageID, env2.MessageID)
}

func TestDecodePayload(t *testing.T) {
	fact := rabbitmq.DoctorFact{ID: "doc-1", AccountID: "acc-1", FirstName: "Anna", LastName: "Kovacs", CabinetNumber: 3, Status: "AtWork"}
	env, err := rabbitmq.NewEnvelope(rabbitmq.KindDoctor, fact)
	assert.NoError(t, err)

	var got rabbitmq.DoctorFact
	assert.NoError(t, env.DecodePayload(rabbitmq.KindDoctor, &got))
	assert.Equal(t, fact, got)
}

func TestDecodePayload_KindMismatch(t *testing.T) {
	env, err := rabbitmq.NewEnvelope(rabbitmq.KindPatient, rabbitmq.PatientFact{ID: "pat-1"})
	assert.NoError(t, err)

	var got rabbitmq.DoctorFact
	assert.Error(t, env.DecodePayload(rabbitmq.KindDoctor, &got))
}

func TestDecodePayload_FutureVersion(t *testing.T) {
	env, err := rabbitmq.NewEnvelope(rabbitmq.KindPatient, rabbitmq.PatientFact{ID: "pat-1"})
	assert.NoError(t, err)
	env.Version = 99

	var got rabbitmq.PatientFact
	assert.Error(t, env.DecodePayload(rabbitmq.KindPatient, &got))
}
