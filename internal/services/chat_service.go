package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/portal/internal/models"
)

// PINVerifier resolves a verification code into the viewer's access link.
type PINVerifier interface {
	VerifyPIN(ctx context.Context, viewer models.Viewer, pin string) (*models.AccessLink, error)
}

type chatRequest struct {
	Message string `json:"message"`
	Role    string `json:"role,omitempty"`
}

type chatResponse struct {
	Response string `json:"response"`
}

const verifyCommand = "/verify"

// keywordAnswers are served when the chat backend is absent or fails. The
// first entry whose keyword appears in the message wins.
var keywordAnswers = []struct {
	keywords []string
	answer   string
}{
	{[]string{"pin", "code"}, "Once your request is approved you receive a 6 character code. Send \"/verify CODE\" here within 48 hours to get your group link."},
	{[]string{"demande", "request", "adhésion", "membership"}, "Submit a membership request from your dashboard by choosing your filiere and niveau. Your delegate or an administrator will review it."},
	{[]string{"filière", "filiere", "class", "group"}, "Each filiere has a delegate who reviews requests. Pick the filiere matching your niveau when you submit your request."},
	{[]string{"mentor", "mentorat", "alumni"}, "Approved alumni can apply to the mentorship program from their dashboard. An administrator reviews each application."},
	{[]string{"message", "notification"}, "Messages stay in your inbox until you read them, then disappear after the configured duration."},
}

const defaultAnswer = "I can help with membership requests, verification codes, filieres and the mentorship program. What would you like to know?"

// ChatService answers portal questions. The remote backend is advisory: any
// failure falls back to local keyword answers without surfacing an error.
type ChatService struct {
	client     *http.Client
	backendURL string
	verifier   PINVerifier
	logger     *slog.Logger
}

func NewChatService(backendURL string, timeout time.Duration, verifier PINVerifier, logger *slog.Logger) *ChatService {
	return &ChatService{
		client:     &http.Client{Timeout: timeout},
		backendURL: strings.TrimRight(backendURL, "/"),
		verifier:   verifier,
		logger:     logger,
	}
}

// Reply answers one chat message for the viewer.
func (s *ChatService) Reply(ctx context.Context, viewer models.Viewer, message string) string {
	message = strings.TrimSpace(message)

	if cmd, arg, _ := strings.Cut(message, " "); strings.EqualFold(cmd, verifyCommand) {
		return s.verify(ctx, viewer, strings.TrimSpace(arg))
	}

	if s.backendURL != "" {
		answer, err := s.ask(ctx, viewer, message)
		if err == nil {
			return answer
		}
		s.logger.WarnContext(ctx, "chat backend unavailable, using local answers", slog.Any("error", err))
	}
	return localAnswer(message)
}

func (s *ChatService) verify(ctx context.Context, viewer models.Viewer, pin string) string {
	if pin == "" {
		return "Please provide your code. Example: /verify A1B2C3"
	}

	link, err := s.verifier.VerifyPIN(ctx, viewer, pin)
	switch {
	case errors.Is(err, models.ErrInvalidPIN):
		return "Invalid code. Check the code shown on your dashboard."
	case errors.Is(err, models.ErrPINExpired):
		return "This code has expired (valid 48h). Ask your delegate for a new one."
	case err != nil:
		s.logger.ErrorContext(ctx, "pin verification failed", slog.Any("error", err))
		return "Verification failed. Please try again later."
	case !link.Configured:
		return "Your code is valid, but no link has been configured for this filiere yet. Let your delegate know."
	}
	return fmt.Sprintf("Your code is valid. Join your group here: %s", link.WhatsappLink)
}

func (s *ChatService) ask(ctx context.Context, viewer models.Viewer, message string) (string, error) {
	body, err := json.Marshal(chatRequest{Message: message, Role: string(viewer.Role)})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.backendURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("chat backend returned %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", errors.New("empty chat response")
	}
	return out.Response, nil
}

func localAnswer(message string) string {
	lower := strings.ToLower(message)
	for _, entry := range keywordAnswers {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.answer
			}
		}
	}
	return defaultAnswer
}
