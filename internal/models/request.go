package models

import "time"

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// IsActive reports whether the status blocks a new submission.
func (s RequestStatus) IsActive() bool {
	return s == RequestStatusPending || s == RequestStatusApproved
}

// IsTerminal reports whether no transition leaves the status.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// CanTransition reports whether from → to is an edge of the request lifecycle.
func CanTransition(from, to RequestStatus) bool {
	return from == RequestStatusPending && to.IsTerminal()
}

type RequestType string

const (
	RequestTypeMembership RequestType = "membership"
	RequestTypeMentor     RequestType = "MENTOR_REQUEST"
)

const (
	DefaultRejectComment = "Request rejected by the delegate"
	PINLength            = 6
	PINValidity          = 48 * time.Hour
)

type Request struct {
	ID              string
	Type            RequestType
	UserID          string
	UserName        string
	UserEmail       string
	UserPhone       string
	UserRole        Role
	FiliereID       string
	Niveau          string
	Motivation      string
	Status          RequestStatus
	DelegateComment string
	ProcessedBy     string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
	VerificationPIN string
	PINExpiresAt    *time.Time
	IsVerified      bool
}

// AccessLink is the read-time join of an approved request with its filiere.
type AccessLink struct {
	RequestID    string
	FiliereID    string
	FiliereName  string
	WhatsappLink string
	Configured   bool
}
