package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/earlybirdlabs/sparrow/pkg/logger"
)

// Thread is one conversation's durable record, keyed by channel and thread
// timestamp. ConversationID and VectorStoreID are opaque provider handles
// set lazily once the thread first needs them.
type Thread struct {
	ID             int64     `json:"id"`
	ChannelID      string    `json:"channel_id"`
	ThreadTS       string    `json:"thread_ts"`
	ConversationID string    `json:"conversation_id,omitempty"`
	VectorStoreID  string    `json:"vector_store_id,omitempty"`
	FileCount      int       `json:"file_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ThreadUpdate is a partial update. Nil pointers leave the column untouched;
// AddFiles increments the counter, which never decreases.
type ThreadUpdate struct {
	ConversationID *string
	VectorStoreID  *string
	AddFiles       int
}

const threadColumns = `id, channel_id, thread_ts,
	COALESCE(conversation_id, ''), COALESCE(vector_store_id, ''),
	file_count, created_at, updated_at`

// FindThread returns the record for (channel, ts) or ErrNotFound.
func (s *Store) FindThread(ctx context.Context, channelID, threadTS string) (*Thread, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+threadColumns+` FROM threads WHERE channel_id = $1 AND thread_ts = $2`,
		channelID, threadTS)

	t, err := scanThread(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find thread: %w", err)
	}
	return t, nil
}

// CreateThread inserts a record for (channel, ts) and returns it. The unique
// index makes creation idempotent: under duplicate event delivery the first
// insert wins and later calls return the existing record.
func (s *Store) CreateThread(ctx context.Context, channelID, threadTS string) (*Thread, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO threads (channel_id, thread_ts) VALUES ($1, $2)
		 ON CONFLICT (channel_id, thread_ts) DO NOTHING`,
		channelID, threadTS)
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	thread, err := s.FindThread(ctx, channelID, threadTS)
	if err != nil {
		return nil, err
	}

	s.log.Debug("thread record ready",
		logger.StringField("channel", channelID),
		logger.StringField("thread_ts", threadTS))
	return thread, nil
}

// UpdateThread merges the partial update into the record and returns the
// result.
func (s *Store) UpdateThread(ctx context.Context, channelID, threadTS string, upd ThreadUpdate) (*Thread, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE threads SET
			conversation_id = COALESCE($3, conversation_id),
			vector_store_id = COALESCE($4, vector_store_id),
			file_count = file_count + $5,
			updated_at = now()
		 WHERE channel_id = $1 AND thread_ts = $2
		 RETURNING `+threadColumns,
		channelID, threadTS, upd.ConversationID, upd.VectorStoreID, upd.AddFiles)

	t, err := scanThread(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update thread: %w", err)
	}
	return t, nil
}

func scanThread(row pgx.Row) (*Thread, error) {
	var t Thread
	err := row.Scan(&t.ID, &t.ChannelID, &t.ThreadTS, &t.ConversationID,
		&t.VectorStoreID, &t.FileCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
