// internal/session/store.go
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	stderrors "news-agent/internal/common/errors"
	"news-agent/internal/common/logger"
	"news-agent/internal/models"
)

// Store persists user sessions in PostgreSQL: one row per user plus an
// append-only message log. All mutations for a user are serialized through
// LockUser so concurrent requests cannot interleave history writes.
type Store struct {
	db     *sql.DB
	logger logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.With(map[string]interface{}{"component": "sessionStore"}),
		locks:  make(map[string]*sync.Mutex),
	}
}

// LockUser acquires the per-user mutex and returns the unlock function.
// Callers hold the lock for the whole read-compute-append span of a request.
func (s *Store) LockUser(userID string) func() {
	s.mu.Lock()
	m, ok := s.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[userID] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// EnsureSchema creates the session tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			user_id     TEXT PRIMARY KEY,
			preferences JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id         UUID PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES sessions(user_id) ON DELETE CASCADE,
			seq        BIGSERIAL,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS messages_user_seq_idx ON messages (user_id, seq)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return stderrors.NewSessionStoreFailedError(err)
		}
	}
	return nil
}

// Get loads the session for userID, creating one with default preferences on
// first contact. The returned bool reports whether the session already
// existed.
func (s *Store) Get(ctx context.Context, userID string) (*models.UserSession, bool, error) {
	var rawPrefs []byte
	var createdAt, updatedAt time.Time

	err := s.db.QueryRowContext(ctx, `
		SELECT preferences, created_at, updated_at
		FROM sessions
		WHERE user_id = $1`, userID).Scan(&rawPrefs, &createdAt, &updatedAt)

	switch {
	case err == sql.ErrNoRows:
		return s.create(ctx, userID, models.DefaultPreferences())
	case err != nil:
		return nil, false, stderrors.NewSessionStoreFailedError(err)
	}

	var prefs models.Preferences
	if err := json.Unmarshal(rawPrefs, &prefs); err != nil {
		return nil, false, stderrors.NewSessionStoreFailedError(err)
	}

	history, err := s.history(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	return &models.UserSession{
		UserID:      userID,
		Preferences: prefs.Normalize(),
		History:     history,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, true, nil
}

// Create inserts a session with the given preferences, replacing defaults on
// an initialize call for a user that already exists.
func (s *Store) Create(ctx context.Context, userID string, prefs models.Preferences) (*models.UserSession, error) {
	session, _, err := s.create(ctx, userID, prefs)
	return session, err
}

func (s *Store) create(ctx context.Context, userID string, prefs models.Preferences) (*models.UserSession, bool, error) {
	prefs = prefs.Normalize()
	rawPrefs, err := json.Marshal(prefs)
	if err != nil {
		return nil, false, stderrors.NewSessionStoreFailedError(err)
	}

	var createdAt, updatedAt time.Time
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO sessions (user_id, preferences)
		VALUES ($1, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET preferences = EXCLUDED.preferences, updated_at = now()
		RETURNING created_at, updated_at`, userID, rawPrefs).Scan(&createdAt, &updatedAt)
	if err != nil {
		return nil, false, stderrors.NewSessionStoreFailedError(err)
	}

	s.logger.Info("session created", map[string]interface{}{"userId": userID})

	return &models.UserSession{
		UserID:      userID,
		Preferences: prefs,
		History:     []models.Message{},
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, false, nil
}

// ReplacePreferences overwrites the whole preferences value. Last write wins.
func (s *Store) ReplacePreferences(ctx context.Context, userID string, prefs models.Preferences) error {
	rawPrefs, err := json.Marshal(prefs.Normalize())
	if err != nil {
		return stderrors.NewSessionStoreFailedError(err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET preferences = $2, updated_at = now()
		WHERE user_id = $1`, userID, rawPrefs)
	if err != nil {
		return stderrors.NewSessionStoreFailedError(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		_, _, err := s.create(ctx, userID, prefs)
		return err
	}
	return nil
}

// AppendMessage adds one turn to the user's history and returns it.
func (s *Store) AppendMessage(ctx context.Context, userID string, role models.Role, content string) (*models.Message, error) {
	msg := &models.Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, user_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, userID, string(msg.Role), msg.Content, msg.Timestamp)
	if err != nil {
		return nil, stderrors.NewSessionStoreFailedError(err)
	}
	return msg, nil
}

// AppendExchange writes a user turn and the assistant reply in one
// transaction. A store failure rolls both back, so history never holds half
// an exchange.
func (s *Store) AppendExchange(ctx context.Context, userID, userText, assistantText string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stderrors.NewSessionStoreFailedError(err)
	}

	now := time.Now().UTC()
	turns := []struct {
		role    models.Role
		content string
	}{
		{models.RoleUser, userText},
		{models.RoleAssistant, assistantText},
	}
	for _, turn := range turns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, user_id, role, content, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New().String(), userID, string(turn.role), turn.content, now); err != nil {
			tx.Rollback()
			return stderrors.NewSessionStoreFailedError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return stderrors.NewSessionStoreFailedError(err)
	}
	return nil
}

// ClearHistory truncates the message log but keeps the session row.
func (s *Store) ClearHistory(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE user_id = $1`, userID)
	if err != nil {
		return stderrors.NewSessionStoreFailedError(err)
	}
	return nil
}

// History returns the conversation in append order.
func (s *Store) History(ctx context.Context, userID string) ([]models.Message, error) {
	return s.history(ctx, userID)
}

func (s *Store) history(ctx context.Context, userID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, created_at
		FROM messages
		WHERE user_id = $1
		ORDER BY seq`, userID)
	if err != nil {
		return nil, stderrors.NewSessionStoreFailedError(err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		var role string
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, stderrors.NewSessionStoreFailedError(err)
		}
		msg.Role = models.Role(role)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewSessionStoreFailedError(err)
	}
	return messages, nil
}
