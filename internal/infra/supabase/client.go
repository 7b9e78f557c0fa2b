package supabase

import (
	"fmt"

	"pdf-tools-bot/internal/domain"

	"github.com/supabase-community/supabase-go"
)

// Client wraps the Supabase client used by the analytics repository
type Client struct {
	client *supabase.Client
	url    string
	key    string
	logger domain.Logger
}

// NewClient creates a new, not yet initialized, Supabase client
func NewClient(url, key string, logger domain.Logger) *Client {
	return &Client{
		url:    url,
		key:    key,
		logger: logger,
	}
}

// Initialize establishes a connection to Supabase
func (s *Client) Initialize() error {
	if s.url == "" || s.key == "" {
		return fmt.Errorf("supabase URL and key must be provided")
	}

	client, err := supabase.NewClient(s.url, s.key, &supabase.ClientOptions{})
	if err != nil {
		return fmt.Errorf("failed to create Supabase client: %w", err)
	}

	s.client = client
	s.logger.Info("Supabase client initialized successfully", "url", s.url)
	return nil
}

// DB returns the underlying client, or nil before Initialize
func (s *Client) DB() *supabase.Client {
	return s.client
}
