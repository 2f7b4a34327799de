package models

import (
	"time"
)

// Role is the portal role of a user.
type Role string

const (
	RoleStudent  Role = "student"
	RoleDelegate Role = "delegate"
	RoleAlumni   Role = "alumni"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the four portal roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleDelegate, RoleAlumni, RoleAdmin:
		return true
	}
	return false
}

// ApprovedAtSignup reports whether accounts of this role are usable without validation.
// Alumni accounts wait for an administrator.
func (r Role) ApprovedAtSignup() bool {
	return r != RoleAlumni
}

// Account status values
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

// MentorStatus tracks an alumni member's standing in the mentorship program.
type MentorStatus string

const (
	MentorStatusNone     MentorStatus = "none"
	MentorStatusPending  MentorStatus = "pending"
	MentorStatusApproved MentorStatus = "approved"
)

type User struct {
	UID              string
	Email            string
	FullName         string
	Phone            string
	Role             Role
	Niveau           string
	Promo            string
	Filiere          string // display name of the group
	FiliereID        string
	Classe           string
	IsApproved       bool
	IsSuspended      bool
	Status           string // "active", "suspended"
	MentorStatus     MentorStatus
	ApprovedBy       string
	ApprovedAt       *time.Time
	SuspensionReason string
	SuspendedBy      string
	SuspendedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Viewer is the session identity passed explicitly to every engine and service call.
type Viewer struct {
	UID       string
	Email     string
	FullName  string
	Role      Role
	FiliereID string
}

func (v Viewer) IsAdmin() bool { return v.Role == RoleAdmin }

// Suspended reports whether the account is refused access.
func (u *User) Suspended() bool {
	return u.IsSuspended || u.Status == UserStatusSuspended
}

// ViewerFromUser builds the session identity for a stored profile.
func ViewerFromUser(u *User) Viewer {
	return Viewer{
		UID:       u.UID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		FiliereID: u.FiliereID,
	}
}
