package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/portal/internal/inbox"
	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
)

// MessageRepository is the subset of repositories.MessageRepository used by NotificationService.
type MessageRepository interface {
	GetByID(ctx context.Context, id string) (*models.Message, error)
	Create(ctx context.Context, m *models.Message) (*models.Message, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Message, error)
	Update(ctx context.Context, id string, patch store.Patch) error
	MarkRead(ctx context.Context, id, uid string) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context, progress store.ProgressFunc) (int, error)
}

// DurationSource supplies the global read-message lifetime in hours.
type DurationSource interface {
	MessageDuration(ctx context.Context) float64
}

// MessageDraft is a message as composed by its sender.
type MessageDraft struct {
	Title             string
	Content           string
	Priority          string
	Target            string
	TargetFiliereID   string
	IndividualUserIDs []string
	DurationHours     *float64
}

// MessageEdit carries the fields an admin may change after sending.
type MessageEdit struct {
	Title    *string
	Content  *string
	Priority *string
}

type NotificationService struct {
	messages  MessageRepository
	durations DurationSource
	audit     *AuditService
	logger    *slog.Logger
	limit     int
	now       func() time.Time
}

func NewNotificationService(
	messages MessageRepository,
	durations DurationSource,
	audit *AuditService,
	limit int,
	logger *slog.Logger,
) *NotificationService {
	if limit <= 0 {
		limit = inbox.DefaultLimit
	}
	return &NotificationService{
		messages:  messages,
		durations: durations,
		audit:     audit,
		logger:    logger,
		limit:     limit,
		now:       time.Now,
	}
}

// Send stores a new message. Admins may target anyone; delegates only their
// own filiere or individual users.
func (s *NotificationService) Send(ctx context.Context, viewer models.Viewer, draft MessageDraft) (*models.Message, error) {
	msg, err := s.prepare(viewer, draft)
	if err != nil {
		return nil, err
	}

	created, err := s.messages.Create(ctx, msg)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, viewer, models.ActionSendMessage, created.ID,
		fmt.Sprintf("target=%s title=%q", created.Target, created.Title))
	return created, nil
}

// MarkRead records the first time the viewer read the message. Later calls
// keep the original read time.
func (s *NotificationService) MarkRead(ctx context.Context, viewer models.Viewer, id string) error {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !inbox.IsRelevant(msg, viewer.UID, viewer.Role, viewer.FiliereID) {
		return models.ErrNotFound
	}
	if _, read := msg.ReadAt(viewer.UID); read {
		return nil
	}
	return s.messages.MarkRead(ctx, id, viewer.UID)
}

// Inbox assembles the viewer's current inbox from the latest messages.
func (s *NotificationService) Inbox(ctx context.Context, viewer models.Viewer) (*inbox.Inbox, error) {
	messages, err := s.messages.ListRecent(ctx, s.limit)
	if err != nil {
		return nil, err
	}

	box := inbox.Build(messages, viewer, s.now(), s.durations.MessageDuration(ctx))
	return &box, nil
}

// List returns the latest messages regardless of targeting, for the admin screen.
func (s *NotificationService) List(ctx context.Context, viewer models.Viewer, limit int) ([]*models.Message, error) {
	if !viewer.IsAdmin() {
		return nil, models.ErrForbidden
	}
	return s.messages.ListRecent(ctx, limit)
}

func (s *NotificationService) Edit(ctx context.Context, viewer models.Viewer, id string, edit MessageEdit) (*models.Message, error) {
	if !viewer.IsAdmin() {
		return nil, models.ErrForbidden
	}

	patch := store.Patch{}
	if edit.Title != nil {
		title := strings.TrimSpace(*edit.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title is required", models.ErrBadRequest)
		}
		patch["title"] = title
	}
	if edit.Content != nil {
		content := strings.TrimSpace(*edit.Content)
		if content == "" {
			return nil, fmt.Errorf("%w: content is required", models.ErrBadRequest)
		}
		patch["content"] = content
	}
	if edit.Priority != nil {
		if !validPriority(*edit.Priority) {
			return nil, fmt.Errorf("%w: unknown priority %q", models.ErrBadRequest, *edit.Priority)
		}
		patch["priority"] = *edit.Priority
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", models.ErrBadRequest)
	}

	if err := s.messages.Update(ctx, id, patch); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, viewer, models.ActionEditMessage, id, "")
	return s.messages.GetByID(ctx, id)
}

func (s *NotificationService) Delete(ctx context.Context, viewer models.Viewer, id string) error {
	if !viewer.IsAdmin() {
		return models.ErrForbidden
	}
	if err := s.messages.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, viewer, models.ActionDeleteMessage, id, "")
	return nil
}

// DeleteAll removes every message in batches. On partial failure the returned
// error is a *store.BatchError and committed batches stay deleted.
func (s *NotificationService) DeleteAll(ctx context.Context, viewer models.Viewer, progress store.ProgressFunc) (int, error) {
	if !viewer.IsAdmin() {
		return 0, models.ErrForbidden
	}

	total, err := s.messages.DeleteAll(ctx, progress)
	details := fmt.Sprintf("total=%d", total)
	var batchErr *store.BatchError
	if errors.As(err, &batchErr) {
		details = fmt.Sprintf("completed=%d total=%d", batchErr.Completed, batchErr.Total)
	}
	s.audit.Record(ctx, viewer, models.ActionDeleteAllMessages, "messages", details)

	return total, err
}

func (s *NotificationService) prepare(viewer models.Viewer, draft MessageDraft) (*models.Message, error) {
	msg := &models.Message{
		Title:             strings.TrimSpace(draft.Title),
		Content:           strings.TrimSpace(draft.Content),
		Priority:          draft.Priority,
		Target:            draft.Target,
		TargetFiliereID:   draft.TargetFiliereID,
		IndividualUserIDs: compactIDs(draft.IndividualUserIDs),
		SenderID:          viewer.UID,
		SenderName:        viewer.FullName,
		DurationHours:     draft.DurationHours,
	}

	if msg.Title == "" || msg.Content == "" {
		return nil, fmt.Errorf("%w: title and content are required", models.ErrBadRequest)
	}
	if msg.Priority == "" {
		msg.Priority = models.PriorityNormal
	}
	if !validPriority(msg.Priority) {
		return nil, fmt.Errorf("%w: unknown priority %q", models.ErrBadRequest, msg.Priority)
	}
	if msg.DurationHours != nil && !validDuration(*msg.DurationHours) {
		return nil, fmt.Errorf("%w: durationHours must be positive", models.ErrBadRequest)
	}
	if len(msg.IndividualUserIDs) > 0 {
		msg.Target = models.TargetCustom
		msg.TargetFiliereID = ""
	}

	switch viewer.Role {
	case models.RoleAdmin:
	case models.RoleDelegate:
		if msg.Target == models.TargetCustom {
			break
		}
		if viewer.FiliereID == "" {
			return nil, models.ErrForbidden
		}
		if msg.Target == "" {
			msg.Target = models.TargetFiliere
		}
		if msg.TargetFiliereID == "" {
			msg.TargetFiliereID = viewer.FiliereID
		}
		if msg.Target != models.TargetFiliere || msg.TargetFiliereID != viewer.FiliereID {
			return nil, fmt.Errorf("%w: delegates can only message their own filiere", models.ErrForbidden)
		}
	default:
		return nil, models.ErrForbidden
	}

	switch msg.Target {
	case models.TargetAll, models.TargetStudents, models.TargetAlumni, models.TargetDelegates, models.TargetAdmins:
		msg.TargetFiliereID = ""
	case models.TargetFiliere:
		if msg.TargetFiliereID == "" {
			return nil, fmt.Errorf("%w: targetFiliereId is required", models.ErrBadRequest)
		}
	case models.TargetCustom:
		if len(msg.IndividualUserIDs) == 0 {
			return nil, fmt.Errorf("%w: individualUserIds is required", models.ErrBadRequest)
		}
	default:
		return nil, fmt.Errorf("%w: unknown target %q", models.ErrBadRequest, msg.Target)
	}
	return msg, nil
}

func validPriority(p string) bool {
	switch p {
	case models.PriorityNormal, models.PriorityHigh, models.PriorityUrgent:
		return true
	}
	return false
}

func compactIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
