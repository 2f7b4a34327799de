package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESClient is the part of the SES API used to send mail.
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESEmailService sends request decision emails using AWS SES
type SESEmailService struct {
	client      SESClient
	fromAddress string
	portalURL   string
	logger      *slog.Logger
}

// NewSESEmailService loads the default AWS configuration for region.
func NewSESEmailService(ctx context.Context, region, fromAddress, portalURL string, logger *slog.Logger) (*SESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newSESEmailService(ses.NewFromConfig(cfg), fromAddress, portalURL, logger), nil
}

func newSESEmailService(client SESClient, fromAddress, portalURL string, logger *slog.Logger) *SESEmailService {
	return &SESEmailService{
		client:      client,
		fromAddress: fromAddress,
		portalURL:   portalURL,
		logger:      logger,
	}
}

// NotifyDecision emails the requester the outcome of their request. The
// verification code, never the group link itself, goes in approval mails.
func (s *SESEmailService) NotifyDecision(ctx context.Context, req *models.Request, link *models.AccessLink) error {
	if req.UserEmail == "" {
		return nil
	}

	subject, text := decisionMessage(req, link, s.portalURL)
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <p>%s</p>
    <p><a href="%s">Open the portal</a></p>
    <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>
</body>
</html>
`, html.EscapeString(text), html.EscapeString(s.portalURL))

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{req.UserEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(text)},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send decision email via SES",
			slog.String("email", logger.SanitizedEmail(req.UserEmail)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("decision email sent",
		slog.String("email", logger.SanitizedEmail(req.UserEmail)),
		slog.String("request_id", req.ID),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

// LogEmailService only logs decisions. Used when email is disabled.
type LogEmailService struct {
	logger *slog.Logger
}

func NewLogEmailService(logger *slog.Logger) *LogEmailService {
	return &LogEmailService{logger: logger}
}

func (s *LogEmailService) NotifyDecision(ctx context.Context, req *models.Request, _ *models.AccessLink) error {
	s.logger.DebugContext(ctx, "decision email skipped",
		slog.String("request_id", req.ID),
		slog.String("status", string(req.Status)),
		slog.String("pin", logger.MaskPIN(req.VerificationPIN)),
	)
	return nil
}

func decisionMessage(req *models.Request, link *models.AccessLink, portalURL string) (string, string) {
	if req.Status == models.RequestStatusApproved {
		text := fmt.Sprintf("Hello %s, your request has been approved. Your verification code is %s and is valid for 48 hours. Send \"/verify %s\" in the portal assistant at %s to get your group link.",
			req.UserName, req.VerificationPIN, req.VerificationPIN, portalURL)
		if link != nil && !link.Configured {
			text += " The group link has not been configured yet; your delegate has been told."
		}
		return "Your request has been approved", text
	}

	comment := req.DelegateComment
	if comment == "" {
		comment = models.DefaultRejectComment
	}
	return "Your request has been reviewed", fmt.Sprintf("Hello %s, your request was not approved. Comment: %s", req.UserName, comment)
}
