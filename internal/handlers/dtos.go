package handlers

import (
	"time"

	"github.com/BradenHooton/portal/internal/inbox"
	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/services"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// UserResponse represents a user profile in the HTTP response
type UserResponse struct {
	UID              string  `json:"uid"`
	Email            string  `json:"email"`
	FullName         string  `json:"full_name"`
	Phone            string  `json:"phone,omitempty"`
	Role             string  `json:"role"`
	Niveau           string  `json:"niveau,omitempty"`
	Promo            string  `json:"promo,omitempty"`
	Filiere          string  `json:"filiere,omitempty"`
	FiliereID        string  `json:"filiere_id,omitempty"`
	Classe           string  `json:"classe,omitempty"`
	IsApproved       bool    `json:"is_approved"`
	IsSuspended      bool    `json:"is_suspended"`
	Status           string  `json:"status"`
	MentorStatus     string  `json:"mentor_status"`
	ApprovedBy       string  `json:"approved_by,omitempty"`
	ApprovedAt       *string `json:"approved_at,omitempty"`
	SuspensionReason string  `json:"suspension_reason,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

func userToResponse(u *models.User) *UserResponse {
	return &UserResponse{
		UID:              u.UID,
		Email:            u.Email,
		FullName:         u.FullName,
		Phone:            u.Phone,
		Role:             string(u.Role),
		Niveau:           u.Niveau,
		Promo:            u.Promo,
		Filiere:          u.Filiere,
		FiliereID:        u.FiliereID,
		Classe:           u.Classe,
		IsApproved:       u.IsApproved,
		IsSuspended:      u.IsSuspended,
		Status:           u.Status,
		MentorStatus:     string(u.MentorStatus),
		ApprovedBy:       u.ApprovedBy,
		ApprovedAt:       formatTimePtr(u.ApprovedAt),
		SuspensionReason: u.SuspensionReason,
		CreatedAt:        formatTime(u.CreatedAt),
	}
}

func usersToResponse(users []*models.User) []*UserResponse {
	out := make([]*UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userToResponse(u))
	}
	return out
}

// RequestResponse represents a membership or mentorship request. The
// verification PIN is only included for the requester.
type RequestResponse struct {
	ID              string  `json:"id"`
	Type            string  `json:"type"`
	UserID          string  `json:"user_id"`
	UserName        string  `json:"user_name"`
	UserEmail       string  `json:"user_email,omitempty"`
	UserPhone       string  `json:"user_phone,omitempty"`
	UserRole        string  `json:"user_role,omitempty"`
	FiliereID       string  `json:"filiere_id,omitempty"`
	Niveau          string  `json:"niveau,omitempty"`
	Motivation      string  `json:"motivation,omitempty"`
	Status          string  `json:"status"`
	DelegateComment string  `json:"delegate_comment,omitempty"`
	ProcessedBy     string  `json:"processed_by,omitempty"`
	CreatedAt       string  `json:"created_at"`
	ProcessedAt     *string `json:"processed_at,omitempty"`
	VerificationPIN string  `json:"verification_pin,omitempty"`
	PINExpiresAt    *string `json:"pin_expires_at,omitempty"`
	IsVerified      bool    `json:"is_verified"`
}

func requestToResponse(req *models.Request, viewer models.Viewer) *RequestResponse {
	resp := &RequestResponse{
		ID:              req.ID,
		Type:            string(req.Type),
		UserID:          req.UserID,
		UserName:        req.UserName,
		UserEmail:       req.UserEmail,
		UserPhone:       req.UserPhone,
		UserRole:        string(req.UserRole),
		FiliereID:       req.FiliereID,
		Niveau:          req.Niveau,
		Motivation:      req.Motivation,
		Status:          string(req.Status),
		DelegateComment: req.DelegateComment,
		ProcessedBy:     req.ProcessedBy,
		CreatedAt:       formatTime(req.CreatedAt),
		ProcessedAt:     formatTimePtr(req.ProcessedAt),
		IsVerified:      req.IsVerified,
	}
	if req.UserID == viewer.UID {
		resp.VerificationPIN = req.VerificationPIN
		resp.PINExpiresAt = formatTimePtr(req.PINExpiresAt)
	}
	return resp
}

func requestsToResponse(reqs []*models.Request, viewer models.Viewer) []*RequestResponse {
	out := make([]*RequestResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, requestToResponse(req, viewer))
	}
	return out
}

// AccessLinkResponse is the group access of an approved request.
type AccessLinkResponse struct {
	RequestID    string `json:"request_id"`
	FiliereID    string `json:"filiere_id"`
	FiliereName  string `json:"filiere_name,omitempty"`
	WhatsappLink string `json:"whatsapp_link,omitempty"`
	Configured   bool   `json:"configured"`
}

func accessLinkToResponse(link *models.AccessLink) *AccessLinkResponse {
	return &AccessLinkResponse{
		RequestID:    link.RequestID,
		FiliereID:    link.FiliereID,
		FiliereName:  link.FiliereName,
		WhatsappLink: link.WhatsappLink,
		Configured:   link.Configured,
	}
}

// FiliereResponse represents a class group. The access link is only shown
// to those who may decide on the group's requests.
type FiliereResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Niveau       string `json:"niveau"`
	Major        string `json:"major,omitempty"`
	DelegateID   string `json:"delegate_id,omitempty"`
	WhatsappLink string `json:"whatsapp_link,omitempty"`
	HasLink      bool   `json:"has_link"`
}

func filiereToResponse(f *models.Filiere, viewer models.Viewer) *FiliereResponse {
	resp := &FiliereResponse{
		ID:         f.ID,
		Name:       f.Name,
		Niveau:     f.Niveau,
		Major:      f.Major,
		DelegateID: f.DelegateID,
		HasLink:    f.WhatsappLink != "",
	}
	if services.CanDecide(viewer, f) {
		resp.WhatsappLink = f.WhatsappLink
	}
	return resp
}

func filieresToResponse(filieres []*models.Filiere, viewer models.Viewer) []*FiliereResponse {
	out := make([]*FiliereResponse, 0, len(filieres))
	for _, f := range filieres {
		out = append(out, filiereToResponse(f, viewer))
	}
	return out
}

// MessageResponse represents a stored message for its admin view.
type MessageResponse struct {
	ID                string            `json:"id"`
	Title             string            `json:"title"`
	Content           string            `json:"content"`
	Priority          string            `json:"priority"`
	Target            string            `json:"target"`
	TargetFiliereID   string            `json:"target_filiere_id,omitempty"`
	IndividualUserIDs []string          `json:"individual_user_ids,omitempty"`
	SenderID          string            `json:"sender_id"`
	SenderName        string            `json:"sender_name"`
	CreatedAt         string            `json:"created_at"`
	UpdatedAt         *string           `json:"updated_at,omitempty"`
	ReadBy            map[string]string `json:"read_by,omitempty"`
	DurationHours     *float64          `json:"duration_hours,omitempty"`
}

func messageToResponse(m *models.Message) *MessageResponse {
	resp := &MessageResponse{
		ID:                m.ID,
		Title:             m.Title,
		Content:           m.Content,
		Priority:          m.Priority,
		Target:            m.Target,
		TargetFiliereID:   m.TargetFiliereID,
		IndividualUserIDs: m.IndividualUserIDs,
		SenderID:          m.SenderID,
		SenderName:        m.SenderName,
		CreatedAt:         formatTime(m.CreatedAt),
		UpdatedAt:         formatTimePtr(m.UpdatedAt),
		DurationHours:     m.DurationHours,
	}
	if len(m.ReadByWithTime) > 0 {
		resp.ReadBy = make(map[string]string, len(m.ReadByWithTime))
		for uid, at := range m.ReadByWithTime {
			resp.ReadBy[uid] = formatTime(at)
		}
	}
	return resp
}

// InboxItemResponse is one message as its recipient sees it.
type InboxItemResponse struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Priority   string  `json:"priority"`
	SenderName string  `json:"sender_name"`
	CreatedAt  string  `json:"created_at"`
	Read       bool    `json:"read"`
	ExpiresAt  *string `json:"expires_at,omitempty"`
}

type InboxResponse struct {
	Items       []*InboxItemResponse `json:"items"`
	UnreadCount int                  `json:"unread_count"`
}

// InboxToResponse converts an assembled inbox for the wire. The realtime
// push uses the same shape.
func InboxToResponse(box *inbox.Inbox) *InboxResponse {
	resp := &InboxResponse{
		Items:       make([]*InboxItemResponse, 0, len(box.Items)),
		UnreadCount: box.UnreadCount,
	}
	for _, item := range box.Items {
		resp.Items = append(resp.Items, &InboxItemResponse{
			ID:         item.Message.ID,
			Title:      item.Message.Title,
			Content:    item.Message.Content,
			Priority:   item.Message.Priority,
			SenderName: item.Message.SenderName,
			CreatedAt:  formatTime(item.Message.CreatedAt),
			Read:       item.Read,
			ExpiresAt:  formatTimePtr(item.ExpiresAt),
		})
	}
	return resp
}

// LogEntryResponse represents an audit trail entry
type LogEntryResponse struct {
	ID         string `json:"id"`
	AdminID    string `json:"admin_id"`
	AdminName  string `json:"admin_name"`
	ActionType string `json:"action_type"`
	TargetID   string `json:"target_id,omitempty"`
	Details    string `json:"details,omitempty"`
	Timestamp  string `json:"timestamp"`
}

func logEntryToResponse(e *models.LogEntry) *LogEntryResponse {
	return &LogEntryResponse{
		ID:         e.ID,
		AdminID:    e.AdminID,
		AdminName:  e.AdminName,
		ActionType: e.ActionType,
		TargetID:   e.TargetID,
		Details:    e.Details,
		Timestamp:  formatTime(e.Timestamp),
	}
}
