package auth

import "time"

// Role separates patients from clinicians.
type Role string

const (
	RolePatient   Role = "patient"
	RoleClinician Role = "clinician"
)

// Config drives token verification.
type Config struct {
	Secret       string
	TokenTTL     time.Duration
	OIDCIssuer   string
	OIDCClientID string
}

// Session is the caller identity extracted from a bearer token. It is passed
// explicitly to the tracking service; nothing keeps it in global state.
type Session struct {
	Subject   string    `json:"subject"`
	Role      Role      `json:"role"`
	PatientID string    `json:"patientId,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IsClinician reports whether the session belongs to a clinician.
func (s Session) IsClinician() bool { return s.Role == RoleClinician }

// CanAccessPatient reports whether the session may read or write a patient's data.
func (s Session) CanAccessPatient(patientID string) bool {
	if s.IsClinician() {
		return true
	}
	return s.Role == RolePatient && s.PatientID != "" && s.PatientID == patientID
}

// IssueRequest describes a development token.
type IssueRequest struct {
	Subject   string
	Role      Role
	PatientID string
}
