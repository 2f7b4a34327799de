package models

import "time"

// Message targets
const (
	TargetAll       = "all"
	TargetStudents  = "students"
	TargetAlumni    = "alumni"
	TargetDelegates = "delegates"
	TargetAdmins    = "admins"
	TargetFiliere   = "filiere"
	TargetCustom    = "custom"
)

// Message priorities
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

type Message struct {
	ID                string
	Title             string
	Content           string
	Priority          string
	Target            string
	TargetFiliereID   string
	IndividualUserIDs []string
	SenderID          string
	SenderName        string
	CreatedAt         time.Time
	UpdatedAt         *time.Time
	ReadBy            []string
	ReadByWithTime    map[string]time.Time
	DurationHours     *float64 // overrides the global duration when set
}

// ReadAt returns when uid marked the message as read.
func (m *Message) ReadAt(uid string) (time.Time, bool) {
	t, ok := m.ReadByWithTime[uid]
	return t, ok
}

// IsReadBy reports whether uid appears in the readBy set.
func (m *Message) IsReadBy(uid string) bool {
	for _, id := range m.ReadBy {
		if id == uid {
			return true
		}
	}
	return false
}
