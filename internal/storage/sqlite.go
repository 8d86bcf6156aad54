package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for users, conversations, and
// action records.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "aicmo.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Users ---

func (s *Store) CreateUser(u User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}
	contexts := u.ContextsJSON
	if contexts == "" {
		contexts = "{}"
	}
	_, err := s.db.Exec(`
		INSERT INTO users (id, email, display_name, api_token, contexts_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.APIToken, contexts,
		u.CreatedAt.Format(time.RFC3339), u.UpdatedAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetUser(id string) (User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, email, display_name, api_token, contexts_json, created_at, updated_at
		FROM users WHERE id = ?`, id))
}

// GetUserByToken resolves an API bearer token to its user. Used by the auth
// middleware.
func (s *Store) GetUserByToken(token string) (User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, email, display_name, api_token, contexts_json, created_at, updated_at
		FROM users WHERE api_token = ?`, token))
}

func (s *Store) scanUser(row *sql.Row) (User, error) {
	var u User
	var createdAt, updatedAt string
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.APIToken, &u.ContextsJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return User{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if u.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return User{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return u, nil
}

// UpdateUserContexts replaces the contexts document for a user.
func (s *Store) UpdateUserContexts(id, contextsJSON string) error {
	res, err := s.db.Exec(`UPDATE users SET contexts_json = ?, updated_at = ? WHERE id = ?`,
		contextsJSON, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Conversations ---

func (s *Store) CreateConversation(c Conversation) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	messages := c.MessagesJSON
	if messages == "" {
		messages = "[]"
	}
	_, err := s.db.Exec(`
		INSERT INTO conversations (id, user_id, context_type, messages_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.ContextType, messages,
		c.CreatedAt.Format(time.RFC3339), c.UpdatedAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetConversation(id string) (Conversation, error) {
	var c Conversation
	var createdAt, updatedAt string
	err := s.db.QueryRow(`
		SELECT id, user_id, context_type, messages_json, created_at, updated_at
		FROM conversations WHERE id = ?`, id,
	).Scan(&c.ID, &c.UserID, &c.ContextType, &c.MessagesJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, err
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Conversation{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Conversation{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return c, nil
}

// UpdateConversationMessages overwrites the message list of an existing
// conversation. The caller reads, appends, and writes back; concurrent turns
// on the same conversation are last-writer-wins.
func (s *Store) UpdateConversationMessages(id, messagesJSON string) error {
	res, err := s.db.Exec(`UPDATE conversations SET messages_json = ?, updated_at = ? WHERE id = ?`,
		messagesJSON, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListConversations(userID string, limit int) ([]Conversation, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, context_type, messages_json, created_at, updated_at
		FROM conversations WHERE user_id = ? ORDER BY updated_at DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Conversation
	for rows.Next() {
		var c Conversation
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.UserID, &c.ContextType, &c.MessagesJSON, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if c.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// --- Actions ---

func (s *Store) CreateAction(a ActionRecord) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	status := a.Status
	if status == "" {
		status = ActionProcessing
	}
	params := a.ParamsJSON
	if params == "" {
		params = "{}"
	}
	_, err := s.db.Exec(`
		INSERT INTO actions (id, user_id, type, params_json, status, result, error, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		a.ID, a.UserID, a.Type, params, status, a.Result, a.Error,
		a.CreatedAt.Format(time.RFC3339),
	)
	return err
}

// CompleteAction records the successful terminal state of an action.
func (s *Store) CompleteAction(id, result string) error {
	return s.finishAction(id, ActionCompleted, result, "")
}

// FailAction records the failed terminal state of an action.
func (s *Store) FailAction(id, errMsg string) error {
	return s.finishAction(id, ActionFailed, "", errMsg)
}

func (s *Store) finishAction(id, status, result, errMsg string) error {
	res, err := s.db.Exec(`
		UPDATE actions SET status = ?, result = ?, error = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		status, result, errMsg, time.Now().UTC().Format(time.RFC3339), id, ActionProcessing,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetAction(id string) (ActionRecord, error) {
	var a ActionRecord
	var createdAt string
	var completedAt sql.NullString
	err := s.db.QueryRow(`
		SELECT id, user_id, type, params_json, status, result, error, created_at, completed_at
		FROM actions WHERE id = ?`, id,
	).Scan(&a.ID, &a.UserID, &a.Type, &a.ParamsJSON, &a.Status, &a.Result, &a.Error, &createdAt, &completedAt)
	if err == sql.ErrNoRows {
		return ActionRecord{}, ErrNotFound
	}
	if err != nil {
		return ActionRecord{}, err
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return ActionRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if completedAt.Valid {
		if a.CompletedAt, err = time.Parse(time.RFC3339, completedAt.String); err != nil {
			return ActionRecord{}, fmt.Errorf("parsing completed_at: %w", err)
		}
	}
	return a, nil
}

func (s *Store) ListActions(userID string, limit int) ([]ActionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, type, params_json, status, result, error, created_at, completed_at
		FROM actions WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ActionRecord
	for rows.Next() {
		var a ActionRecord
		var createdAt string
		var completedAt sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.ParamsJSON, &a.Status, &a.Result, &a.Error, &createdAt, &completedAt); err != nil {
			return nil, err
		}
		if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if completedAt.Valid {
			if a.CompletedAt, err = time.Parse(time.RFC3339, completedAt.String); err != nil {
				return nil, fmt.Errorf("parsing completed_at: %w", err)
			}
		}
		results = append(results, a)
	}
	return results, rows.Err()
}
