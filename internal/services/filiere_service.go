package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
	"github.com/skip2/go-qrcode"
)

// FiliereRepository is the subset of repositories.FiliereRepository used by FiliereService.
type FiliereRepository interface {
	GetByID(ctx context.Context, id string) (*models.Filiere, error)
	Create(ctx context.Context, f *models.Filiere) (*models.Filiere, error)
	Update(ctx context.Context, id string, patch store.Patch) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Filiere, error)
	ListByDelegate(ctx context.Context, delegateID, niveau string) ([]*models.Filiere, error)
}

type FiliereInput struct {
	Name         string
	Niveau       string
	Major        string
	DelegateID   string
	WhatsappLink string
}

// FiliereUpdate changes only the non-nil fields.
type FiliereUpdate struct {
	Name         *string
	Niveau       *string
	Major        *string
	DelegateID   *string
	WhatsappLink *string
}

const qrCodeSize = 256

type FiliereService struct {
	filieres FiliereRepository
	audit    *AuditService
	logger   *slog.Logger
}

func NewFiliereService(filieres FiliereRepository, audit *AuditService, logger *slog.Logger) *FiliereService {
	return &FiliereService{
		filieres: filieres,
		audit:    audit,
		logger:   logger,
	}
}

func (s *FiliereService) List(ctx context.Context) ([]*models.Filiere, error) {
	return s.filieres.List(ctx)
}

func (s *FiliereService) Get(ctx context.Context, id string) (*models.Filiere, error) {
	return s.filieres.GetByID(ctx, id)
}

// ListForDelegate returns the filieres assigned to the viewer, optionally for one niveau.
func (s *FiliereService) ListForDelegate(ctx context.Context, viewer models.Viewer, niveau string) ([]*models.Filiere, error) {
	return s.filieres.ListByDelegate(ctx, viewer.UID, niveau)
}

func (s *FiliereService) Create(ctx context.Context, viewer models.Viewer, input FiliereInput) (*models.Filiere, error) {
	if !viewer.IsAdmin() {
		return nil, models.ErrForbidden
	}

	f := &models.Filiere{
		Name:         strings.TrimSpace(input.Name),
		Niveau:       strings.TrimSpace(input.Niveau),
		Major:        strings.TrimSpace(input.Major),
		DelegateID:   input.DelegateID,
		WhatsappLink: strings.TrimSpace(input.WhatsappLink),
	}
	if f.Name == "" || f.Niveau == "" {
		return nil, fmt.Errorf("%w: name and niveau are required", models.ErrBadRequest)
	}
	if err := validateLink(f.WhatsappLink); err != nil {
		return nil, err
	}

	created, err := s.filieres.Create(ctx, f)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, viewer, models.ActionAddFiliere, created.ID, created.Name)
	return created, nil
}

func (s *FiliereService) Update(ctx context.Context, viewer models.Viewer, id string, update FiliereUpdate) (*models.Filiere, error) {
	if !viewer.IsAdmin() {
		return nil, models.ErrForbidden
	}

	patch := store.Patch{}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", models.ErrBadRequest)
		}
		patch["name"] = name
	}
	if update.Niveau != nil {
		patch["niveau"] = strings.TrimSpace(*update.Niveau)
	}
	if update.Major != nil {
		patch["major"] = strings.TrimSpace(*update.Major)
	}
	if update.DelegateID != nil {
		patch["delegateId"] = *update.DelegateID
	}
	if update.WhatsappLink != nil {
		link := strings.TrimSpace(*update.WhatsappLink)
		if err := validateLink(link); err != nil {
			return nil, err
		}
		patch["whatsappLink"] = link
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", models.ErrBadRequest)
	}

	if err := s.filieres.Update(ctx, id, patch); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, viewer, models.ActionEditFiliere, id, "")
	return s.filieres.GetByID(ctx, id)
}

// Delete removes the filiere. Requests that reference it stay decidable by admins.
func (s *FiliereService) Delete(ctx context.Context, viewer models.Viewer, id string) error {
	if !viewer.IsAdmin() {
		return models.ErrForbidden
	}
	f, err := s.filieres.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.filieres.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, viewer, models.ActionDeleteFiliere, id, f.Name)
	return nil
}

// AccessQRCode renders the filiere's access link as a PNG QR code for its
// delegate or an admin.
func (s *FiliereService) AccessQRCode(ctx context.Context, viewer models.Viewer, id string) ([]byte, error) {
	f, err := s.filieres.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanDecide(viewer, f) {
		return nil, models.ErrForbidden
	}
	if f.WhatsappLink == "" {
		return nil, models.ErrLinkNotConfigured
	}

	qr, err := qrcode.New(f.WhatsappLink, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}
	png, err := qr.PNG(qrCodeSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	return png, nil
}

func validateLink(link string) error {
	if link == "" {
		return nil
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%w: whatsappLink must be an http(s) URL", models.ErrBadRequest)
	}
	return nil
}
