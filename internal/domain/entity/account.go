package entity

import (
	"time"
)

// Role is the closed set of account roles. Fixed at creation: public
// self-registration always yields RolePatient; the other roles arrive through
// trusted provisioning events.
type Role string

const (
	RolePatient      Role = "Patient"
	RoleDoctor       Role = "Doctor"
	RoleReceptionist Role = "Receptionist"
)

// Account is the aggregate root owned by this service. PasswordHash holds the
// bcrypt output, never the plaintext. RefreshToken/RefreshTokenExpiry form the
// single-slot refresh credential replaced on every sign-in and refresh.
type Account struct {
	ID                 string
	Email              string
	PasswordHash       string
	PhoneNumber        string
	Role               Role
	IsEmailVerified    bool
	PhotoID            string
	RefreshToken       string
	RefreshTokenExpiry time.Time
	CreatedAt          time.Time
	CreatedBy          string
	UpdatedAt          time.Time
	UpdatedBy          string
}
