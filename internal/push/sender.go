package push

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"waitline/internal/config"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/option"
)

const messagingScope = "https://www.googleapis.com/auth/firebase.messaging"

// Sender delivers push notifications through the FCM HTTP v1 API using a
// service-account credentials file.
type Sender struct {
	service *fcm.Service
	parent  string
	logger  zerolog.Logger
}

// NewSender builds an FCM sender from the Firebase config. Extra client
// options are appended after the credential-derived ones, so tests can point
// the service at a local endpoint.
func NewSender(ctx context.Context, cfg config.FirebaseConfig, logger *zerolog.Logger, extraOpts ...option.ClientOption) (*Sender, error) {
	if cfg.CredentialsFile == "" {
		return nil, fmt.Errorf("firebase credentials file is not configured")
	}

	credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	projectID := cfg.ProjectID
	if projectID == "" {
		projectID, err = projectIDFromCredentials(credentialsJSON)
		if err != nil {
			return nil, err
		}
	}

	jwtConfig, err := google.JWTConfigFromJSON(credentialsJSON, messagingScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(jwtConfig.Client(ctx))}, extraOpts...)
	service, err := fcm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create FCM service: %w", err)
	}

	return &Sender{
		service: service,
		parent:  "projects/" + projectID,
		logger:  logger.With().Str("component", "push-sender").Logger(),
	}, nil
}

func projectIDFromCredentials(credentialsJSON []byte) (string, error) {
	var creds struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(credentialsJSON, &creds); err != nil {
		return "", fmt.Errorf("unable to parse credentials: %w", err)
	}
	if creds.ProjectID == "" {
		return "", fmt.Errorf("credentials file has no project_id")
	}
	return creds.ProjectID, nil
}

// Send delivers one notification to a device token.
func (s *Sender) Send(ctx context.Context, token, title, body string) error {
	req := &fcm.SendMessageRequest{
		Message: &fcm.Message{
			Token: token,
			Notification: &fcm.Notification{
				Title: title,
				Body:  body,
			},
		},
	}

	msg, err := s.service.Projects.Messages.Send(s.parent, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("fcm send failed: %w", err)
	}

	s.logger.Debug().Str("message", msg.Name).Msg("push delivered")
	return nil
}

// Notify implements the queue notifier contract for direct (unqueued) wiring.
func (s *Sender) Notify(ctx context.Context, token, title, body string) error {
	return s.Send(ctx, token, title, body)
}
