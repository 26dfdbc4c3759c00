package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// Role is a user's access level.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password is too short")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotFound           = errors.New("not found")
)

// User is a registered account.
type User struct {
	ID        int64
	Email     string
	Role      Role
	CreatedAt time.Time
}

// IsAdmin reports whether the user may open the admin area.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserSummary is a user row in the admin view.
type UserSummary struct {
	User
	Calculations int
}

// Store keeps users and their saved calculations in SQLite.
type Store struct {
	db   *sql.DB
	now  func() time.Time
	cost int
}

// NewStore returns a Store over an already migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now, cost: bcrypt.DefaultCost}
}

// Register creates a customer account.
func (s *Store) Register(ctx context.Context, email, password string) (User, error) {
	return s.createUser(ctx, email, password, RoleCustomer)
}

// EnsureAdmin creates the admin account unless a user with that email already exists.
// It reports whether a user was inserted.
func (s *Store) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	_, err := s.createUser(ctx, email, password, RoleAdmin)
	if errors.Is(err, ErrEmailTaken) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ensure admin user: %w", err)
	}
	return true, nil
}

// SetRole changes the role of the user with the given email. It reports whether the
// stored role changed.
func (s *Store) SetRole(ctx context.Context, email string, role Role) (bool, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE email = ? AND role <> ?`, string(role), email, string(role))
	if err != nil {
		return false, fmt.Errorf("update user role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read updated rows: %w", err)
	}
	return n > 0, nil
}

func (s *Store) createUser(ctx context.Context, email, password string, role Role) (User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	if len([]rune(password)) < MinPasswordLength {
		return User{}, ErrWeakPassword
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email).Scan(&exists); err != nil {
		return User{}, fmt.Errorf("check user existence: %w", err)
	}
	if exists {
		return User{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	createdAt := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?)
	`, email, string(hash), string(role), createdAt.Format(timeLayout))
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("read user id: %w", err)
	}

	return User{ID: id, Email: email, Role: role, CreatedAt: createdAt.Truncate(time.Second)}, nil
}

// Authenticate checks the credentials and returns the matching user.
func (s *Store) Authenticate(ctx context.Context, email, password string) (User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return User{}, ErrInvalidCredentials
	}

	var (
		u         User
		hash      string
		role      string
		createdAt string
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, created_at
		FROM users
		WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &hash, &role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("query user credentials: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	u.Role = Role(role)
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

// UserByID loads a user.
func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	var (
		u         User
		role      string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, role, created_at
		FROM users
		WHERE id = ?
	`, id).Scan(&u.ID, &u.Email, &role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	u.Role = Role(role)
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

// ListUsers returns every user with the number of saved calculations, newest first.
func (s *Store) ListUsers(ctx context.Context) ([]UserSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.email, u.role, u.created_at, COUNT(c.id)
		FROM users u
		LEFT JOIN calculations c ON c.user_id = u.id
		GROUP BY u.id
		ORDER BY u.created_at DESC, u.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]UserSummary, 0)
	for rows.Next() {
		var (
			u         UserSummary
			role      string
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.Email, &role, &createdAt, &u.Calculations); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = Role(role)
		u.CreatedAt = parseTime(createdAt)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

const timeLayout = "2006-01-02 15:04:05"

// parseTime accepts both the layout written by this package and RFC 3339, which the
// driver produces when it converts DATETIME columns itself.
func parseTime(raw string) time.Time {
	for _, layout := range []string{timeLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
