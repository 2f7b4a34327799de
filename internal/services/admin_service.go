package services

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/portal/internal/models"
)

// AdminUserRepository is the subset of UserRepository methods needed by AdminService.
type AdminUserRepository interface {
	List(ctx context.Context) ([]*models.User, error)
}

// AdminRequestRepository is the subset of RequestRepository methods needed by AdminService.
type AdminRequestRepository interface {
	ListByStatus(ctx context.Context, status models.RequestStatus) ([]*models.Request, error)
}

// AdminMessageRepository is the subset of MessageRepository methods needed by AdminService.
type AdminMessageRepository interface {
	ListRecent(ctx context.Context, limit int) ([]*models.Message, error)
}

// DashboardStatsResponse contains aggregate admin metrics.
type DashboardStatsResponse struct {
	TotalUsers       int            `json:"total_users"`
	SuspendedUsers   int            `json:"suspended_users"`
	AwaitingApproval int            `json:"awaiting_approval"`
	ApprovedMentors  int            `json:"approved_mentors"`
	PendingRequests  int            `json:"pending_requests"`
	TotalMessages    int            `json:"total_messages"`
	RoleBreakdown    map[string]int `json:"role_breakdown"`
}

// AdminService aggregates data for admin dashboard endpoints.
type AdminService struct {
	userRepo    AdminUserRepository
	requestRepo AdminRequestRepository
	messageRepo AdminMessageRepository
	logger      *slog.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(
	userRepo AdminUserRepository,
	requestRepo AdminRequestRepository,
	messageRepo AdminMessageRepository,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		userRepo:    userRepo,
		requestRepo: requestRepo,
		messageRepo: messageRepo,
		logger:      logger,
	}
}

// GetDashboardStats returns aggregate user, request and message counts.
func (s *AdminService) GetDashboardStats(ctx context.Context, viewer models.Viewer) (*DashboardStatsResponse, error) {
	if !viewer.IsAdmin() {
		return nil, models.ErrForbidden
	}

	users, err := s.userRepo.List(ctx)
	if err != nil {
		s.logger.Error("dashboard: failed to list users", slog.Any("error", err))
		return nil, err
	}

	stats := &DashboardStatsResponse{
		TotalUsers:    len(users),
		RoleBreakdown: make(map[string]int),
	}
	for _, u := range users {
		stats.RoleBreakdown[string(u.Role)]++
		if u.IsSuspended || u.Status == models.UserStatusSuspended {
			stats.SuspendedUsers++
		} else if !u.IsApproved {
			stats.AwaitingApproval++
		}
		if u.MentorStatus == models.MentorStatusApproved {
			stats.ApprovedMentors++
		}
	}

	pending, err := s.requestRepo.ListByStatus(ctx, models.RequestStatusPending)
	if err != nil {
		s.logger.Error("dashboard: failed to list pending requests", slog.Any("error", err))
		return nil, err
	}
	stats.PendingRequests = len(pending)

	messages, err := s.messageRepo.ListRecent(ctx, 0)
	if err != nil {
		s.logger.Error("dashboard: failed to list messages", slog.Any("error", err))
		return nil, err
	}
	stats.TotalMessages = len(messages)

	return stats, nil
}
