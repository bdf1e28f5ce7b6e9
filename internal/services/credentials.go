package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"caidasapi/internal/apperr"
	"caidasapi/internal/auth"
	"caidasapi/internal/database"
	"caidasapi/internal/models"
)

// ErrInvalidCredentials is the single failure of Verify, whether the email is
// unknown or the password does not match.
var ErrInvalidCredentials = apperr.New(apperr.KindAuth, "invalid email or password")

// ProfileUpdate lists the profile fields a user may change. Nil fields are kept.
type ProfileUpdate struct {
	Name     *string
	Password *string
	Phone    *string
}

// Credentials manages user accounts.
type Credentials struct {
	store  database.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewCredentials returns the account service over store. A nil logger discards
// output.
func NewCredentials(store database.Store, logger *zap.Logger) *Credentials {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Credentials{store: store, logger: logger, now: time.Now}
}

// Create registers a user and returns its id. Uniqueness of the email is left
// to the store's unique index.
func (c *Credentials) Create(ctx context.Context, name, email, password, phone string) (string, error) {
	email = normalizeEmail(email)
	if strings.TrimSpace(name) == "" || email == "" || password == "" {
		return "", apperr.Validation("name, email and password are required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "could not register user", err)
	}

	u := &models.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Phone:        strings.TrimSpace(phone),
		RegisteredAt: c.now().UTC(),
	}
	if err := c.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			return "", apperr.Wrap(apperr.KindConflict, "email already registered", err)
		}
		return "", apperr.Upstream("could not save user", err)
	}

	c.logger.Info("user registered", zap.String("user_id", u.ID), zap.String("email", email))
	return u.ID, nil
}

// Verify returns the user when password matches the stored hash.
func (c *Credentials) Verify(ctx context.Context, email, password string) (*models.User, error) {
	u, err := c.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, apperr.Upstream("could not load user", err)
	}
	if u == nil || !auth.CheckPasswordHash(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Update changes the profile of the user with that email. A new password is
// hashed before it is stored.
func (c *Credentials) Update(ctx context.Context, email string, upd ProfileUpdate) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperr.Validation("email is required")
	}

	var fields models.UserUpdate
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		fields.Name = &name
	}
	if upd.Phone != nil {
		phone := strings.TrimSpace(*upd.Phone)
		fields.Phone = &phone
	}
	if upd.Password != nil {
		if *upd.Password == "" {
			return apperr.Validation("password must not be empty")
		}
		hash, err := auth.HashPassword(*upd.Password)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "could not update user", err)
		}
		fields.PasswordHash = &hash
	}

	if fields.Empty() {
		return apperr.New(apperr.KindNoOp, "no updatable fields given (name, password, phone)")
	}

	found, err := c.store.UpdateUser(ctx, email, fields)
	if err != nil {
		return apperr.Upstream("could not update user", err)
	}
	if !found {
		return apperr.NotFound("user not found")
	}
	return nil
}

// Profile returns the user with that email.
func (c *Credentials) Profile(ctx context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperr.Validation("email is required")
	}

	u, err := c.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Upstream("could not load user", err)
	}
	if u == nil {
		return nil, apperr.NotFound("user not found")
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
