package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/parley/internal/store"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

func open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// New creates a new SQLite store.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewMigrated opens the database and applies the schema.
func NewMigrated(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the embedded schema. It is safe to run repeatedly.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func notFound(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return fmt.Errorf("query %s: %w", what, err)
}

// ==== UserStore implementation ====

const userColumns = `id, first_name, last_name, email, country, password_hash, role, is_verified,
	COALESCE(verification_token, ''), created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Country,
		&user.PasswordHash,
		&user.Role,
		&user.IsVerified,
		&user.VerificationToken,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a new user and fills in ID and CreatedAt.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *store.User) error {
	if user.Role == "" {
		user.Role = store.RoleUser
	}
	var token any
	if user.VerificationToken != "" {
		token = user.VerificationToken
	}

	query := `
		INSERT INTO users (first_name, last_name, email, country, password_hash, role, is_verified, verification_token)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		user.FirstName, user.LastName, user.Email, user.Country,
		user.PasswordHash, user.Role, user.IsVerified, token)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert user %q: %w", user.Email, store.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	created, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	*user = *created
	return nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound("user", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by e-mail address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, notFound("user", err)
	}
	return user, nil
}

// ListUsers returns every user except the given one, ordered by first name.
func (s *SQLiteStore) ListUsers(ctx context.Context, excludeID int64) ([]*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id <> ? ORDER BY first_name, id`
	rows, err := s.db.QueryContext(ctx, query, excludeID)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// VerifyUser marks the user owning the verification token as verified.
func (s *SQLiteStore) VerifyUser(ctx context.Context, token string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE verification_token = ?`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, token))
	if err != nil {
		return nil, notFound("verification token", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET is_verified = 1, verification_token = NULL WHERE id = ?`, user.ID)
	if err != nil {
		return nil, fmt.Errorf("verify user: %w", err)
	}
	user.IsVerified = true
	user.VerificationToken = ""
	return user, nil
}

// SetRole changes the role of the user with the given e-mail.
func (s *SQLiteStore) SetRole(ctx context.Context, email string, role store.Role) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE email = ?`, role, email)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return affectedOne(result, fmt.Sprintf("user %q", email))
}

func affectedOne(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return nil
}

// UpdateUser writes the user's names, country and role.
func (s *SQLiteStore) UpdateUser(ctx context.Context, user *store.User) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET first_name = ?, last_name = ?, country = ?, role = ? WHERE id = ?`,
		user.FirstName, user.LastName, user.Country, user.Role, user.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return affectedOne(result, "user")
}

// SetPassword replaces the password hash of a user.
func (s *SQLiteStore) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return affectedOne(result, "user")
}

// SetResetToken stores a password reset token valid until expires.
func (s *SQLiteStore) SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET reset_token = ?, reset_expires = ? WHERE id = ?`, token, expires.UTC(), id)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return affectedOne(result, "user")
}

// ResetPassword consumes an unexpired reset token and sets the new hash.
// Expired tokens are cleared and reported as not found.
func (s *SQLiteStore) ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) (*store.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		id      int64
		expires time.Time
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, reset_expires FROM users WHERE reset_token = ?`, token).Scan(&id, &expires)
	if err != nil {
		return nil, notFound("reset token", err)
	}

	if !now.Before(expires) {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET reset_token = NULL, reset_expires = NULL WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("clear reset token: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		return nil, fmt.Errorf("reset token expired: %w", store.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, reset_token = NULL, reset_expires = NULL WHERE id = ?`,
		passwordHash, id); err != nil {
		return nil, fmt.Errorf("reset password: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

// PageUsers returns users ordered by creation with the total count.
func (s *SQLiteStore) PageUsers(ctx context.Context, offset, limit int) ([]*store.User, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

// DeleteUser removes a user with their messages, memberships and the groups they created.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	steps := []struct {
		what  string
		query string
	}{
		{"delete owned group messages", `DELETE FROM messages WHERE group_id IN (SELECT id FROM chat_groups WHERE creator_id = ?)`},
		{"delete owned group members", `DELETE FROM group_members WHERE group_id IN (SELECT id FROM chat_groups WHERE creator_id = ?)`},
		{"delete owned groups", `DELETE FROM chat_groups WHERE creator_id = ?`},
		{"delete messages", `DELETE FROM messages WHERE sender_id = ?1 OR recipient_id = ?1`},
		{"delete memberships", `DELETE FROM group_members WHERE user_id = ?`},
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, step.query, id); err != nil {
			return fmt.Errorf("%s: %w", step.what, err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := affectedOne(result, "user"); err != nil {
		return err
	}
	return tx.Commit()
}

// ==== GroupStore implementation ====

func scanGroup(row scanner) (*store.Group, error) {
	var group store.Group
	err := row.Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.CreatorID,
		&group.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// CreateGroup inserts a group and enrolls its creator in one transaction.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *store.Group) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO chat_groups (name, description, creator_id) VALUES (?, ?, ?)`,
		group.Name, group.Description, group.CreatorID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert group %q: %w", group.Name, store.ErrConflict)
		}
		return fmt.Errorf("insert group: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`, id, group.CreatorID); err != nil {
		return fmt.Errorf("enroll creator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	created, err := s.GetGroupByID(ctx, id)
	if err != nil {
		return err
	}
	*group = *created
	return nil
}

// GetGroupByID retrieves a group by ID.
func (s *SQLiteStore) GetGroupByID(ctx context.Context, id int64) (*store.Group, error) {
	query := `SELECT id, name, description, creator_id, created_at FROM chat_groups WHERE id = ?`
	group, err := scanGroup(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound("group", err)
	}
	return group, nil
}

// ListGroups returns all groups ordered by name.
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]*store.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, creator_id, created_at FROM chat_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var groups []*store.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// AddMember enrolls a user. Adding an existing member is a no-op.
func (s *SQLiteStore) AddMember(ctx context.Context, groupID, userID int64) error {
	query := `INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// RemoveMember removes a user. Removing a non-member is a no-op.
func (s *SQLiteStore) RemoveMember(ctx context.Context, groupID, userID int64) error {
	query := `DELETE FROM group_members WHERE group_id = ? AND user_id = ?`
	if _, err := s.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// IsMember reports whether the user is a durable member of the group.
func (s *SQLiteStore) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = ? AND user_id = ?)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, groupID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

// ListMembers returns member user IDs in join order.
func (s *SQLiteStore) ListMembers(ctx context.Context, groupID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = ? ORDER BY joined_at, user_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ==== MessageStore implementation ====

const messageColumns = `id, sender_id, recipient_id, group_id, content, is_read, created_at`

func scanMessage(row scanner) (*store.Message, error) {
	var msg store.Message
	var recipientID, groupID sql.NullInt64
	err := row.Scan(
		&msg.ID,
		&msg.SenderID,
		&recipientID,
		&groupID,
		&msg.Content,
		&msg.IsRead,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if recipientID.Valid {
		msg.RecipientID = &recipientID.Int64
	}
	if groupID.Valid {
		msg.GroupID = &groupID.Int64
	}
	return &msg, nil
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// SaveMessage persists a message and fills in ID and CreatedAt.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO messages (sender_id, recipient_id, group_id, content)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.SenderID, msg.RecipientID, msg.GroupID, msg.Content)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	saved, err := scanMessage(s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if err != nil {
		return notFound("message", err)
	}
	*msg = *saved
	return nil
}

// ListPrivateMessages returns the conversation between two users, oldest first.
func (s *SQLiteStore) ListPrivateMessages(ctx context.Context, userID, otherID int64) ([]*store.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE (sender_id = ? AND recipient_id = ?)
		   OR (sender_id = ? AND recipient_id = ?)
		ORDER BY created_at, id
	`
	return s.queryMessages(ctx, query, userID, otherID, otherID, userID)
}

// MarkRead flags every unread message from sender to recipient as read.
func (s *SQLiteStore) MarkRead(ctx context.Context, senderID, recipientID int64) error {
	query := `UPDATE messages SET is_read = 1 WHERE sender_id = ? AND recipient_id = ? AND is_read = 0`
	if _, err := s.db.ExecContext(ctx, query, senderID, recipientID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// ListGroupMessages returns the messages of a group, oldest first.
func (s *SQLiteStore) ListGroupMessages(ctx context.Context, groupID int64) ([]*store.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE group_id = ? ORDER BY created_at, id`
	return s.queryMessages(ctx, query, groupID)
}

// Stats returns entity counts.
func (s *SQLiteStore) Stats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats
	query := `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE role = 'admin'),
			(SELECT COUNT(*) FROM users WHERE is_verified = 1),
			(SELECT COUNT(*) FROM chat_groups),
			(SELECT COUNT(*) FROM messages)
	`
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.Users, &stats.Admins, &stats.VerifiedUsers, &stats.Groups, &stats.Messages)
	if err != nil {
		return stats, fmt.Errorf("query stats: %w", err)
	}
	return stats, nil
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
