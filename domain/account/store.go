// Package account stores student profiles and guardian contacts in SQLite.
package account

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pressly/goose/v3"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/soocke/study-buddy-go/domain/alerting"
)

var (
	ErrDuplicate          = errors.New("account: username already exists")
	ErrInvalidCredentials = errors.New("account: invalid username or password")
	ErrNotFound           = errors.New("account: not found")
	ErrInvalid            = errors.New("account: invalid input")
)

//go:embed migrations/*.sql
var migrations embed.FS

// Account is a stored profile without the password hash.
type Account struct {
	Username      string
	Name          string
	Phone         string
	GuardianName  string
	GuardianPhone string
}

// NewAccount is the registration form. Every field is required.
type NewAccount struct {
	Username      string `validate:"required"`
	Password      string `validate:"required"`
	Name          string `validate:"required"`
	Phone         string `validate:"required"`
	GuardianName  string `validate:"required"`
	GuardianPhone string `validate:"required"`
}

// ProfileUpdate is the profile form. A password change needs a matching confirmation.
type ProfileUpdate struct {
	Phone           string `validate:"required,len=10,number"`
	GuardianName    string `validate:"required"`
	GuardianPhone   string `validate:"required,len=10,number"`
	NewPassword     string `validate:"omitempty,min=6"`
	ConfirmPassword string `validate:"eqfield=NewPassword"`
}

// Store is a SQLite-backed account repository.
type Store struct {
	db       *sql.DB
	validate *validator.Validate
	cost     int
	logger   *slog.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option { return func(s *Store) { s.cost = cost } }

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("account: open %s: %w", path, err)
	}
	// one connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)
	s, err := New(ctx, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and applies migrations.
func New(ctx context.Context, db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, validate: validator.New(validator.WithRequiredStructEnabled()), cost: bcrypt.DefaultCost}
	for _, o := range opts {
		o(s)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("account: ping: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("account: migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, sub)
	if err != nil {
		return fmt.Errorf("account: migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("account: migrate: %w", err)
	}
	if s.logger != nil {
		for _, r := range results {
			s.logger.Info("migration applied", "source", r.Source.Path, "duration", r.Duration)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Register creates an account with a bcrypt-hashed password.
func (s *Store) Register(ctx context.Context, a NewAccount) error {
	a.Username = strings.TrimSpace(a.Username)
	if err := s.validate.Struct(a); err != nil {
		return invalid(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), s.cost)
	if err != nil {
		return fmt.Errorf("account: hash password: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password, name, phone, guardian_name, guardian_phone)
		 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(username) DO NOTHING`,
		a.Username, string(hash), a.Name, a.Phone, a.GuardianName, a.GuardianPhone)
	if err != nil {
		return fmt.Errorf("account: insert: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicate
	}
	if s.logger != nil {
		s.logger.Info("account registered", "username", a.Username)
	}
	return nil
}

// Authenticate checks the password and returns the account.
func (s *Store) Authenticate(ctx context.Context, username, password string) (Account, error) {
	var hash string
	a := Account{Username: username}
	err := s.db.QueryRowContext(ctx,
		`SELECT password, name, phone, guardian_name, guardian_phone FROM users WHERE username = ?`, username,
	).Scan(&hash, &a.Name, &a.Phone, &a.GuardianName, &a.GuardianPhone)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, fmt.Errorf("account: query: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Account{}, ErrInvalidCredentials
	}
	return a, nil
}

// Lookup returns the account for username.
func (s *Store) Lookup(ctx context.Context, username string) (Account, error) {
	a := Account{Username: username}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, phone, guardian_name, guardian_phone FROM users WHERE username = ?`, username,
	).Scan(&a.Name, &a.Phone, &a.GuardianName, &a.GuardianPhone)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("account: query: %w", err)
	}
	return a, nil
}

// UpdateProfile changes contact details and, when NewPassword is set, the password.
func (s *Store) UpdateProfile(ctx context.Context, username string, u ProfileUpdate) error {
	if err := s.validate.Struct(u); err != nil {
		return invalid(err)
	}
	var (
		res sql.Result
		err error
	)
	if u.NewPassword != "" {
		hash, herr := bcrypt.GenerateFromPassword([]byte(u.NewPassword), s.cost)
		if herr != nil {
			return fmt.Errorf("account: hash password: %w", herr)
		}
		res, err = s.db.ExecContext(ctx,
			`UPDATE users SET phone = ?, guardian_name = ?, guardian_phone = ?, password = ? WHERE username = ?`,
			u.Phone, u.GuardianName, u.GuardianPhone, string(hash), username)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE users SET phone = ?, guardian_name = ?, guardian_phone = ? WHERE username = ?`,
			u.Phone, u.GuardianName, u.GuardianPhone, username)
	}
	if err != nil {
		return fmt.Errorf("account: update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Recipient resolves the guardian contact for a student, so a Store can be
// handed to the alert recorder directly.
func (s *Store) Recipient(ctx context.Context, key string) (alerting.Recipient, error) {
	a, err := s.Lookup(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return alerting.Recipient{}, fmt.Errorf("%w: %s", alerting.ErrNoRecipient, key)
	}
	if err != nil {
		return alerting.Recipient{}, err
	}
	return alerting.Recipient{Name: a.Name, Contact: a.GuardianPhone}, nil
}

var _ alerting.RecipientResolver = (*Store)(nil)

// invalid turns validator errors into user-facing messages wrapped in ErrInvalid.
func invalid(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "Phone":
		if fe.Tag() == "required" {
			return "phone is required"
		}
		return "phone number must be 10 digits"
	case "GuardianPhone":
		if fe.Tag() == "required" {
			return "guardian phone is required"
		}
		return "guardian phone must be 10 digits"
	case "NewPassword":
		return "password must be at least 6 characters"
	case "ConfirmPassword":
		return "passwords do not match"
	}
	return strings.ToLower(fe.Field()) + " is required"
}
