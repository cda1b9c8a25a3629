package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/drive/v3"
)

// ErrCredentialsMissing is returned when no service account credential is configured
var ErrCredentialsMissing = errors.New("GOOGLE_CREDENTIALS not found in environment variables")

// Service turns a service account JSON credential into authorized HTTP clients
type Service struct {
	credentialsJSON []byte
	scopes          []string
	baseClient      *http.Client
}

// CredentialInfo represents credential information for display
type CredentialInfo struct {
	HasCredentials bool   `json:"has_credentials"`
	ClientEmail    string `json:"client_email,omitempty"`
	ProjectID      string `json:"project_id,omitempty"`
}

// Option configures the credential service
type Option func(*Service)

// WithScopes overrides the OAuth2 scopes requested for the service account
func WithScopes(scopes ...string) Option {
	return func(s *Service) {
		s.scopes = scopes
	}
}

// WithBaseClient sets the HTTP client used for token exchange and as the transport
// underneath the authorized client
func WithBaseClient(client *http.Client) Option {
	return func(s *Service) {
		s.baseClient = client
	}
}

// NewService creates a new credential service
func NewService(credentialsJSON []byte, opts ...Option) *Service {
	s := &Service{
		credentialsJSON: credentialsJSON,
		scopes:          []string{drive.DriveScope},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// JWTConfig parses the credential blob. It is parsed again on every call so that a
// client handle never outlives the request that built it.
func (s *Service) JWTConfig() (*jwt.Config, error) {
	if len(s.credentialsJSON) == 0 {
		return nil, ErrCredentialsMissing
	}

	config, err := google.JWTConfigFromJSON(s.credentialsJSON, s.scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}
	return config, nil
}

// GetClient returns an HTTP client authorized as the service account
func (s *Service) GetClient(ctx context.Context) (*http.Client, error) {
	config, err := s.JWTConfig()
	if err != nil {
		return nil, err
	}

	if s.baseClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.baseClient)
	}
	return config.Client(ctx), nil
}

// GetCredentialInfo returns information about the configured credential
func (s *Service) GetCredentialInfo() (*CredentialInfo, error) {
	if len(s.credentialsJSON) == 0 {
		return &CredentialInfo{HasCredentials: false}, nil
	}

	var raw struct {
		ClientEmail string `json:"client_email"`
		ProjectID   string `json:"project_id"`
	}
	if err := json.Unmarshal(s.credentialsJSON, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}

	return &CredentialInfo{
		HasCredentials: true,
		ClientEmail:    raw.ClientEmail,
		ProjectID:      raw.ProjectID,
	}, nil
}
