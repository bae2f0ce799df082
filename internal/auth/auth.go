// Package auth stores user accounts and issues the bearer tokens the
// sync server checks on every request.
package auth

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/james702283/ai-kitchen-health-suite/internal/logger"
	apperrors "github.com/james702283/ai-kitchen-health-suite/pkg/errors"
)

const minPasswordLength = 8

// Options configures a Service.
type Options struct {
	// DBPath is the SQLite file holding the users table. Empty means an
	// in-memory database that is lost on close.
	DBPath string

	// Tenant is stamped into every issued token.
	Tenant string

	JWTSecret string
	TokenTTL  time.Duration
}

// User is a registered account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Claims is the verified content of a bearer token.
type Claims struct {
	Subject string
	Tenant  string
	Email   string
}

// Service registers users and issues HS256 tokens for them.
type Service struct {
	db       *sql.DB
	log      *slog.Logger
	secret   []byte
	tenant   string
	tokenTTL time.Duration

	newID func() string
	now   func() time.Time
}

// Open opens (and if needed creates) the user database.
func Open(opts Options) (*Service, error) {
	if opts.JWTSecret == "" {
		return nil, apperrors.InvalidInput("jwt secret is required")
	}
	if opts.Tenant == "" {
		return nil, apperrors.InvalidInput("tenant is required")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}

	dsn := opts.DBPath
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL")
	if err != nil {
		return nil, apperrors.Unavailable("open user database", err)
	}
	// SQLite serializes writers anyway; a single connection also keeps the
	// in-memory variant from seeing a fresh empty database per connection.
	db.SetMaxOpenConns(1)

	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Unavailable("create users table", err)
	}

	return &Service{
		db:       db,
		log:      logger.Get(),
		secret:   []byte(opts.JWTSecret),
		tenant:   opts.Tenant,
		tokenTTL: opts.TokenTTL,
		newID:    uuid.NewString,
		now:      time.Now,
	}, nil
}

// Close closes the user database.
func (s *Service) Close() error {
	return s.db.Close()
}

// Register creates an account. The email is lowercased before storage so
// lookups are case-insensitive.
func (s *Service) Register(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, apperrors.InvalidInput("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return User{}, apperrors.InvalidInput("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, apperrors.Unavailable("hash password", err)
	}

	u := User{ID: s.newID(), Email: email}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, string(hash), s.now().UnixNano())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return User{}, apperrors.InvalidInput("email is already registered")
		}
		return User{}, apperrors.Unavailable("create user", err)
	}

	s.log.Info("user registered", "email", u.Email)
	return u, nil
}

// Login checks credentials and returns a signed token for the account.
func (s *Service) Login(ctx context.Context, email, password string) (string, User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var u User
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &hash)
	if err == sql.ErrNoRows {
		return "", User{}, apperrors.PermissionDenied("invalid credentials")
	}
	if err != nil {
		return "", User{}, apperrors.Unavailable("look up user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", User{}, apperrors.PermissionDenied("invalid credentials")
	}

	token, err := s.issueToken(u)
	if err != nil {
		return "", User{}, apperrors.Unavailable("sign token", err)
	}
	return token, u, nil
}

// Verify parses and validates a bearer token issued by this service.
func (s *Service) Verify(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.PermissionDenied("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return Claims{}, apperrors.New(apperrors.KindPermissionDenied, "invalid token", err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, apperrors.PermissionDenied("invalid token claims")
	}

	c := Claims{}
	if sub, ok := mc["sub"].(string); ok {
		c.Subject = sub
	}
	if tenant, ok := mc["tenant"].(string); ok {
		c.Tenant = tenant
	}
	if email, ok := mc["email"].(string); ok {
		c.Email = email
	}
	if c.Subject == "" {
		return Claims{}, apperrors.PermissionDenied("token has no subject")
	}
	return c, nil
}

func (s *Service) issueToken(u User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    u.ID,
		"tenant": s.tenant,
		"email":  u.Email,
		"iss":    "kitchenhub-auth",
		"iat":    now.Unix(),
		"exp":    now.Add(s.tokenTTL).Unix(),
	})
	return token.SignedString(s.secret)
}
