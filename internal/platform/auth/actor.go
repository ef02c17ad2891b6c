package auth

// Kind identifies which variant of Actor a value is.
type Kind string

const (
	KindPatient Kind = "patient"
	KindStaff   Kind = "staff"
	KindDoctor  Kind = "doctor"
)

// Branch codes. BranchAll is the cross-site wildcard carried by some staff.
const (
	BranchSI  = "SI"
	BranchSL  = "SL"
	BranchAll = "ALL"
)

// Actor is the resolved caller of one request. It is one of Patient, Staff
// or Doctor; the unexported marker method keeps the set closed.
//
// Actors are built fresh for every request from provider data and are never
// mutated or persisted afterwards.
type Actor interface {
	Kind() Kind
	// Subject returns the identifier recorded in the audit trail.
	Subject() string
	isActor()
}

// Patient is a patient authenticated through the mobile bearer token or a
// patient-flagged staff-portal session.
type Patient struct {
	PatientID string `json:"patient_id"`
}

func (Patient) Kind() Kind        { return KindPatient }
func (p Patient) Subject() string { return p.PatientID }
func (Patient) isActor()          {}

// Staff is a front-desk or lab user. An empty Branch means no tenancy has
// been assigned yet; branch-scoped checks reject it.
type Staff struct {
	ID         string `json:"id"`
	Role       string `json:"role"`
	RolePrefix string `json:"role_prefix"`
	Branch     string `json:"branch"`
	Initials   string `json:"initials"`
	IsAdmin    bool   `json:"is_admin"`
}

func (Staff) Kind() Kind        { return KindStaff }
func (s Staff) Subject() string { return s.ID }
func (Staff) isActor()          {}

// Doctor is a physician signed in through the physician portal.
type Doctor struct {
	ID                string `json:"id"`
	Branch            string `json:"branch"`
	Name              string `json:"name,omitempty"`
	DisplayName       string `json:"display_name,omitempty"`
	ExternalLicenseID string `json:"external_license_id,omitempty"`
}

func (Doctor) Kind() Kind        { return KindDoctor }
func (d Doctor) Subject() string { return d.ID }
func (Doctor) isActor()          {}

// RoleOf returns the role string recorded for an actor in audit events.
func RoleOf(a Actor) string {
	switch v := a.(type) {
	case Staff:
		return v.Role
	case Doctor:
		return "doctor"
	case Patient:
		return "patient"
	}
	return ""
}

// BranchOf returns the branch an actor carries, or "" for patients.
func BranchOf(a Actor) string {
	switch v := a.(type) {
	case Staff:
		return v.Branch
	case Doctor:
		return v.Branch
	}
	return ""
}
