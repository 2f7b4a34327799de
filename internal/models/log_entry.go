package models

import (
	"time"
)

// Action types recorded in the audit trail
const (
	ActionApproveRequest       = "APPROVE_REQUEST"
	ActionRejectRequest        = "REJECT_REQUEST"
	ActionAdminApproveRequest  = "ADMIN_APPROVE_REQUEST"
	ActionAdminRejectRequest   = "ADMIN_REJECT_REQUEST"
	ActionUserApproved         = "USER_APPROVED"
	ActionUserSuspended        = "USER_SUSPENDED"
	ActionSuspendUser          = "SUSPEND_USER"
	ActionUnsuspendUser        = "UNSUSPEND_USER"
	ActionPromoteToDelegate    = "PROMOTE_TO_DELEGATE"
	ActionApproveMentorRequest = "APPROVE_MENTOR_REQUEST"
	ActionAddFiliere           = "ADD_FILIERE"
	ActionEditFiliere          = "EDIT_FILIERE"
	ActionDeleteFiliere        = "DELETE_FILIERE"
	ActionSendMessage          = "SEND_MESSAGE"
	ActionEditMessage          = "EDIT_MESSAGE"
	ActionDeleteMessage        = "DELETE_MESSAGE"
	ActionDeleteAllMessages    = "DELETE_ALL_MESSAGES"
	ActionUpdateConfig         = "UPDATE_CONFIG"
	ActionImportData           = "IMPORT_DATA"
)

// LogEntry is one line of the append-only audit trail.
type LogEntry struct {
	ID         string
	AdminID    string
	AdminName  string
	ActionType string
	TargetID   string
	Details    string
	Timestamp  time.Time
}
