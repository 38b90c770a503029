package entity

// Sub-profile mirror rows. The profile service owns these entities; we keep a
// local copy bound to an Account so login checks and joins stay local. They
// are written only by the inbound sync path.

const (
	ProfileStatusAtWork   = "AtWork"
	ProfileStatusInactive = "Inactive"
)

type Doctor struct {
	ID            string
	AccountID     string
	FirstName     string
	LastName      string
	MiddleName    string
	CabinetNumber int
	Status        string
}

type Receptionist struct {
	ID         string
	AccountID  string
	FirstName  string
	LastName   string
	MiddleName string
	Status     string
}

type Patient struct {
	ID         string
	AccountID  string
	FirstName  string
	LastName   string
	MiddleName string
}
