// Package rabbitmq carries account facts between the clinic services over
// durable queues. Delivery is at-least-once: consumers acknowledge only after
// the local mutation commits, and every handler tolerates redelivery.
package rabbitmq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Queue names, one per fact kind.
const (
	QueueAccountCreated     = "account.created"
	QueueAccountProvisioned = "account.provisioned"
	QueueAccountPhone       = "account.phone.updated"
	QueueAccountPhoto       = "account.photo.updated"

	QueueDoctorAdded         = "profile.doctor.added"
	QueueDoctorUpdated       = "profile.doctor.updated"
	QueueDoctorDeleted       = "profile.doctor.deleted"
	QueueReceptionistAdded   = "profile.receptionist.added"
	QueueReceptionistUpdated = "profile.receptionist.updated"
	QueueReceptionistDeleted = "profile.receptionist.deleted"
	QueuePatientAdded        = "profile.patient.added"
	QueuePatientUpdated      = "profile.patient.updated"
	QueuePatientDeleted      = "profile.patient.deleted"
)

// FactKind is the closed enumeration of fact payload shapes.
type FactKind string

const (
	KindAccountCreated     FactKind = "account-created"
	KindAccountProvisioned FactKind = "account-provisioned"
	KindAccountPhone       FactKind = "account-phone-updated"
	KindAccountPhoto       FactKind = "account-photo-updated"
	KindDoctor             FactKind = "doctor-profile"
	KindReceptionist       FactKind = "receptionist-profile"
	KindPatient            FactKind = "patient-profile"
	KindEmailJob           FactKind = "email-job"
)

const schemaVersion = 1

// Envelope wraps every message body. MessageID gives consumers a de-dup
// handle under redelivery; Version guards against schema drift.
type Envelope struct {
	MessageID  string          `json:"message_id"`
	Kind       FactKind        `json:"kind"`
	Version    int             `json:"version"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope seals a payload into a versioned envelope.
func NewEnvelope(kind FactKind, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		MessageID:  uuid.NewString(),
		Kind:       kind,
		Version:    schemaVersion,
		OccurredAt: time.Now().UTC(),
		Payload:    b,
	}, nil
}

// DecodePayload unmarshals the payload after checking kind and version. The
// explicit kind match replaces ad hoc string handling at each consumer.
func (e Envelope) DecodePayload(want FactKind, dest any) error {
	if e.Kind != want {
		return fmt.Errorf("unexpected fact kind %q, want %q", e.Kind, want)
	}
	if e.Version > schemaVersion {
		return fmt.Errorf("unsupported fact version %d", e.Version)
	}
	return json.Unmarshal(e.Payload, dest)
}

// AccountFact describes an account to downstream services. The password hash
// never travels on the wire.
type AccountFact struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	Role            string `json:"role"`
	PhotoID         string `json:"photo_id,omitempty"`
	IsEmailVerified bool   `json:"is_email_verified"`
}

// AccountFieldFact carries a single-field account update.
type AccountFieldFact struct {
	AccountID string `json:"account_id"`
	Value     string `json:"value"`
}

// DoctorFact mirrors a doctor sub-profile owned by the profile service.
type DoctorFact struct {
	ID            string `json:"id"`
	AccountID     string `json:"account_id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	MiddleName    string `json:"middle_name,omitempty"`
	CabinetNumber int    `json:"cabinet_number"`
	Status        string `json:"status"`
}

type ReceptionistFact struct {
	ID         string `json:"id"`
	AccountID  string `json:"account_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	MiddleName string `json:"middle_name,omitempty"`
	Status     string `json:"status"`
}

type PatientFact struct {
	ID         string `json:"id"`
	AccountID  string `json:"account_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	MiddleName string `json:"middle_name,omitempty"`
}
