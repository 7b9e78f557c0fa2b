package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pdf-tools-bot/internal/domain"

	"github.com/supabase-community/supabase-go"
)

const (
	usersTable      = "bot_users"
	operationsTable = "bot_operations"
)

// SupabaseAnalyticsRepository stores analytics through the Supabase REST API.
type SupabaseAnalyticsRepository struct {
	client *supabase.Client
	logger domain.Logger
}

var _ domain.AnalyticsRepository = (*SupabaseAnalyticsRepository)(nil)

// NewSupabaseAnalyticsRepository creates a new Supabase analytics repository
func NewSupabaseAnalyticsRepository(client *supabase.Client, logger domain.Logger) *SupabaseAnalyticsRepository {
	return &SupabaseAnalyticsRepository{
		client: client,
		logger: logger,
	}
}

type supabaseUserRow struct {
	UserID          int64     `json:"user_id"`
	Username        string    `json:"username"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	TotalOperations int64     `json:"total_operations"`
}

type supabaseOperationRow struct {
	ID             string    `json:"id"`
	UserID         int64     `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	OperationType  string    `json:"operation_type"`
	Outcome        string    `json:"outcome"`
	ErrorType      string    `json:"error_type,omitempty"`
	DurationMs     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

func (r *SupabaseAnalyticsRepository) Track(ctx context.Context, event domain.OperationEvent) error {
	existing, err := r.findUser(event.UserID)
	if err != nil {
		return err
	}

	row := mergeUserRow(existing, event)
	_, _, err = r.client.From(usersTable).Insert(row, true, "user_id", "", "").Execute()
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	if !countsAsOperation(event) {
		return nil
	}
	_, _, err = r.client.From(operationsTable).Insert(toOperationRow(event), false, "", "", "").Execute()
	if err != nil {
		return fmt.Errorf("failed to insert operation: %w", err)
	}
	return nil
}

func (r *SupabaseAnalyticsRepository) Statistics(ctx context.Context) (*domain.Statistics, error) {
	_, users, err := r.client.From(usersTable).Select("user_id", "exact", true).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	resp, total, err := r.client.From(operationsTable).Select("operation_type", "exact", false).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch operations: %w", err)
	}

	var rows []struct {
		OperationType string `json:"operation_type"`
	}
	if err := json.Unmarshal(resp, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse operations: %w", err)
	}

	stats := &domain.Statistics{
		TotalUsers:      users,
		TotalOperations: total,
		ByCommand:       make(map[domain.Command]int64),
	}
	for _, row := range rows {
		stats.ByCommand[domain.Command(row.OperationType)]++
	}
	return stats, nil
}

func (r *SupabaseAnalyticsRepository) findUser(userID int64) (*supabaseUserRow, error) {
	resp, _, err := r.client.From(usersTable).
		Select("*", "", false).
		Eq("user_id", fmt.Sprint(userID)).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	var rows []supabaseUserRow
	if err := json.Unmarshal(resp, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse user: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// mergeUserRow builds the row to upsert. A nil existing row means the user
// is seen for the first time.
func mergeUserRow(existing *supabaseUserRow, event domain.OperationEvent) supabaseUserRow {
	row := supabaseUserRow{
		UserID:    event.UserID,
		Username:  event.Username,
		FirstSeen: event.OccurredAt,
		LastSeen:  event.OccurredAt,
	}
	if existing != nil {
		row.FirstSeen = existing.FirstSeen
		row.TotalOperations = existing.TotalOperations
		if row.Username == "" {
			row.Username = existing.Username
		}
	}
	if countsAsOperation(event) {
		row.TotalOperations++
	}
	return row
}

func toOperationRow(event domain.OperationEvent) supabaseOperationRow {
	return supabaseOperationRow{
		ID:             event.ID,
		UserID:         event.UserID,
		ConversationID: string(event.ConversationID),
		OperationType:  string(event.Command),
		Outcome:        string(event.Outcome),
		ErrorType:      event.ErrorType,
		DurationMs:     event.DurationMs,
		CreatedAt:      event.OccurredAt,
	}
}
