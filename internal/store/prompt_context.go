package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/earlybirdlabs/sparrow/pkg/logger"
)

// PromptContext correlates an interactive ticket prompt back to the message
// that triggered it. Records carry a TTL so a prompt the user never answers
// does not accumulate forever, and they survive process restarts.
type PromptContext struct {
	PromptID  string    `json:"prompt_id"`
	ChannelID string    `json:"channel_id"`
	OriginTS  string    `json:"origin_ts"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SavePromptContext records the origin of a ticket prompt.
func (s *Store) SavePromptContext(ctx context.Context, promptID, channelID, originTS, userID string, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO prompt_contexts (prompt_id, channel_id, origin_ts, user_id, expires_at)
		 VALUES ($1, $2, $3, $4, now() + $5)
		 ON CONFLICT (prompt_id) DO UPDATE SET
			channel_id = EXCLUDED.channel_id,
			origin_ts = EXCLUDED.origin_ts,
			user_id = EXCLUDED.user_id,
			expires_at = EXCLUDED.expires_at`,
		promptID, channelID, originTS, userID, ttl)
	if err != nil {
		return fmt.Errorf("save prompt context: %w", err)
	}
	return nil
}

// TakePromptContext retrieves and deletes the context for a prompt in one
// statement, so a double button click resolves at most once. Expired records
// count as absent.
func (s *Store) TakePromptContext(ctx context.Context, promptID string) (*PromptContext, error) {
	row := s.pool.QueryRow(ctx,
		`DELETE FROM prompt_contexts
		 WHERE prompt_id = $1 AND expires_at > now()
		 RETURNING prompt_id, channel_id, origin_ts, user_id, created_at, expires_at`,
		promptID)

	var pc PromptContext
	err := row.Scan(&pc.PromptID, &pc.ChannelID, &pc.OriginTS, &pc.UserID,
		&pc.CreatedAt, &pc.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("take prompt context: %w", err)
	}
	return &pc, nil
}

// PurgeExpiredPromptContexts removes expired records and returns the count.
func (s *Store) PurgeExpiredPromptContexts(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM prompt_contexts WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("purge prompt contexts: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		s.log.Debug("purged expired prompt contexts", logger.Int64Field("count", n))
		return n, nil
	}
	return 0, nil
}
