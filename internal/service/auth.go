package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/hash"
	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/internal/tokens"
)

const minPasswordLen = 8

type AuthService struct {
	Repo   *repo.GormRepo
	Tokens *tokens.Issuer
	Events EventPublisher
}

type RegisterInput struct {
	Username        string
	Email           string
	FirstName       string
	LastName        string
	Password        string
	PasswordConfirm string
}

type ProfilePatch struct {
	Username   *string
	Email      *string
	FirstName  *string
	LastName   *string
	Address    *string
	City       *string
	PostalCode *string
	Phone      *string
}

type Session struct {
	User   *models.User
	Tokens *tokens.Pair
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register", "username", in.Username)

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" {
		return nil, fmt.Errorf("username and email are required: %w", ErrValidation)
	}
	if len(in.Password) < minPasswordLen {
		return nil, fmt.Errorf("password must be at least %d characters: %w", minPasswordLen, ErrValidation)
	}
	if in.Password != in.PasswordConfirm {
		return nil, fmt.Errorf("passwords do not match: %w", ErrValidation)
	}

	if err := s.checkUnique(ctx, in.Username, in.Email, 0); err != nil {
		return nil, err
	}

	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		l.Error("register_error", "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: pwHash,
		Role:         models.RoleUser,
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("username or email already registered: %w", ErrConflict)
		}
		l.Error("register_error", "reason", "cannot create user", "error", err)
		return nil, err
	}

	sess, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Events, TopicUsers, user.ID, map[string]any{
		"type":     "user.registered",
		"user_id":  user.ID,
		"username": user.Username,
	})
	l.Info("register_success", "user_id", user.ID)
	return sess, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	user, err := s.Repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "reason", "wrong password")
		return nil, ErrInvalidCredentials
	}

	return s.issue(ctx, user)
}

// Refresh rotates the refresh token. The role is reread from the users table, not from the old token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.Tokens.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user is gone: %w", ErrUnauthorized)
		}
		return nil, err
	}

	pair, err := s.Tokens.Issue(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}

	next := models.RefreshToken{
		UserID:    user.ID,
		JTI:       pair.JTI,
		TokenHash: hash.Sha256Hex(pair.RefreshToken),
		ExpiresAt: pair.RefreshExp,
	}
	if err := s.Repo.RotateRefreshToken(ctx, claims.ID, next); err != nil {
		if errors.Is(err, repo.ErrTokenRevoked) {
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return nil, err
	}

	return &Session{User: user, Tokens: pair}, nil
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.Repo.RevokeRefreshToken(ctx, refreshToken)
}

func (s *AuthService) UsernameTaken(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, fmt.Errorf("username is required: %w", ErrValidation)
	}
	return s.Repo.UsernameTaken(ctx, username, 0)
}

func (s *AuthService) Profile(ctx context.Context, p Principal) (*models.User, error) {
	if err := p.require(); err != nil {
		return nil, err
	}
	user, err := s.Repo.GetUserByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", p.UserID, ErrNotFound)
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, p Principal, patch ProfilePatch) (*models.User, error) {
	user, err := s.Profile(ctx, p)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	newUsername, newEmail := "", ""
	if patch.Username != nil {
		newUsername = strings.TrimSpace(*patch.Username)
		if newUsername == "" {
			return nil, fmt.Errorf("username cannot be empty: %w", ErrValidation)
		}
		fields["username"] = newUsername
	}
	if patch.Email != nil {
		newEmail = strings.TrimSpace(*patch.Email)
		if newEmail == "" {
			return nil, fmt.Errorf("email cannot be empty: %w", ErrValidation)
		}
		fields["email"] = newEmail
	}
	if err := s.checkUnique(ctx, newUsername, newEmail, user.ID); err != nil {
		return nil, err
	}

	setIf := func(col string, v *string) {
		if v != nil {
			fields[col] = strings.TrimSpace(*v)
		}
	}
	setIf("first_name", patch.FirstName)
	setIf("last_name", patch.LastName)
	setIf("address", patch.Address)
	setIf("city", patch.City)
	setIf("postal_code", patch.PostalCode)
	setIf("phone", patch.Phone)

	if err := s.Repo.UpdateUser(ctx, user, fields); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("username or email already registered: %w", ErrConflict)
		}
		return nil, err
	}
	return s.Repo.GetUserByID(ctx, user.ID)
}

// EnsureAdmin creates the bootstrap admin, or promotes an existing account with that username.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	l := logging.FromContext(ctx).With("svc", "auth.ensure_admin", "username", username)

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return err
	}
	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
		Role:         models.RoleAdmin,
	}
	created, err := s.Repo.FirstOrCreateUser(ctx, user)
	if err != nil {
		return err
	}
	if created {
		l.Info("admin_created", "user_id", user.ID)
		return nil
	}
	if user.Role != models.RoleAdmin {
		l.Info("admin_promoted", "user_id", user.ID)
		return s.Repo.UpdateUser(ctx, user, map[string]any{"role": models.RoleAdmin})
	}
	return nil
}

func (s *AuthService) checkUnique(ctx context.Context, username, email string, exceptID uint) error {
	if username != "" {
		taken, err := s.Repo.UsernameTaken(ctx, username, exceptID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("username %q is taken: %w", username, ErrConflict)
		}
	}
	if email != "" {
		taken, err := s.Repo.EmailTaken(ctx, email, exceptID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("email %q is already registered: %w", email, ErrConflict)
		}
	}
	return nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*Session, error) {
	pair, err := s.Tokens.Issue(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	if err := s.Repo.SaveRefreshToken(ctx, user.ID, pair.JTI, pair.RefreshToken, pair.RefreshExp); err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: pair}, nil
}
