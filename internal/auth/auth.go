// Package auth registers users, issues and revokes session tokens and runs the
// password reset flow.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
	"github.com/roshankumar101/Portal-sub001/internal/config"
	"github.com/roshankumar101/Portal-sub001/internal/docstore"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// ProfileCreator builds the student profile write committed with a new account.
type ProfileCreator interface {
	CreateWrite(student types.Student) (docstore.Write, error)
}

// Mailer queues outbound email.
type Mailer interface {
	QueueEmail(ctx context.Context, req types.EmailRequest) (*types.EmailNotification, error)
}

var errInvalidResetToken = apperr.Invalid("token", "is invalid or expired")

// userRecord is the stored form of a user.
type userRecord struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         types.Role `json:"role"`
	PasswordHash string     `json:"passwordHash"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (u *userRecord) toUser() *types.User {
	return &types.User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

type resetRecord struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service implements the authentication operations.
type Service struct {
	store     docstore.Store
	passwords *config.PasswordConfig
	tokens    *JWTService
	revoker   Revoker
	profiles  ProfileCreator
	mailer    Mailer
	resetTTL  time.Duration
	baseURL   string
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source for the service and its token issuer.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.tokens.now = now
	}
}

// WithRevoker replaces the in-memory revoker.
func WithRevoker(r Revoker) Option {
	return func(s *Service) { s.revoker = r }
}

// WithResetTTL sets how long password reset tokens stay valid.
func WithResetTTL(ttl time.Duration) Option {
	return func(s *Service) { s.resetTTL = ttl }
}

// NewService creates a Service. baseURL prefixes password reset links.
func NewService(
	store docstore.Store,
	passwords *config.PasswordConfig,
	tokens *JWTService,
	profiles ProfileCreator,
	mailer Mailer,
	baseURL string,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:     store,
		passwords: passwords,
		tokens:    tokens,
		revoker:   NewMemoryRevoker(),
		profiles:  profiles,
		mailer:    mailer,
		resetTTL:  time.Hour,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger.Named("auth"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RegisterWithEmail creates an account and signs the user in. Student accounts get
// their profile with zeroed counters in the same atomic batch. A taken email fails
// with EmailAlreadyExistsError.
func (s *Service) RegisterWithEmail(ctx context.Context, req types.RegisterRequest) (*types.LoginResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Role == "" {
		req.Role = types.RoleStudent
	}
	if err := req.Validate(); err != nil {
		return nil, apperr.FromValidator(err)
	}

	hash, err := s.passwords.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := userRecord{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Role:         req.Role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	userData, err := docstore.ToData(user)
	if err != nil {
		return nil, err
	}
	writes := []docstore.Write{
		docstore.Create(types.CollUserEmails, types.EmailIndexID(req.Email), docstore.Data{
			"userId": user.ID,
			"email":  req.Email,
		}),
		docstore.Create(types.CollUsers, user.ID, userData),
	}
	if req.Role == types.RoleStudent && s.profiles != nil {
		w, err := s.profiles.CreateWrite(types.Student{ID: user.ID, Name: req.Name, Email: req.Email})
		if err != nil {
			return nil, err
		}
		writes = append(writes, w)
	}

	err = s.store.Commit(ctx, writes...)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return nil, &apperr.EmailAlreadyExistsError{Email: req.Email}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return s.issue(&user)
}

// Login verifies the credentials and issues a session token. Unknown emails and
// wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, req types.LoginRequest) (*types.LoginResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		return nil, apperr.FromValidator(err)
	}
	user, err := s.userByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.passwords.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, apperr.ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *Service) issue(user *userRecord) (*types.LoginResponse, error) {
	token, _, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &types.LoginResponse{User: user.toUser(), Token: token}, nil
}

// Authenticate validates a session token and rejects revoked ones.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, &apperr.UnauthorizedError{Message: "invalid token"}
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, &apperr.UnauthorizedError{Message: "token revoked"}
	}
	return claims, nil
}

// Logout revokes the token until it expires.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return &apperr.UnauthorizedError{}
	}
	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
		return err
	}
	s.logger.Info("user logged out", zap.String("user_id", claims.UserID))
	return nil
}

// GetUser returns the user, or nil when the account does not exist.
func (s *Service) GetUser(ctx context.Context, id string) (*types.User, error) {
	user, err := s.userByID(ctx, id)
	if err != nil || user == nil {
		return nil, err
	}
	return user.toUser(), nil
}

// RequestPasswordReset emails a one-time reset link. Unknown emails succeed
// silently so the endpoint cannot be used to discover accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	req := types.PasswordResetRequest{Email: normalizeEmail(email)}
	if err := req.Validate(); err != nil {
		return apperr.FromValidator(err)
	}
	user, err := s.userByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if user == nil {
		s.logger.Info("password reset requested for unknown email")
		return nil
	}

	token := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	now := s.now()
	record, err := docstore.ToData(resetRecord{
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: now,
	})
	if err != nil {
		return err
	}
	if err := s.store.Commit(ctx, docstore.Set(types.CollPasswordResets, hashToken(token), record)); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	link := s.baseURL + "/reset-password?token=" + url.QueryEscape(token)
	_, err = s.mailer.QueueEmail(ctx, types.EmailRequest{
		To:      user.Email,
		Subject: "Reset your placement portal password",
		HTML: fmt.Sprintf(`<p>Hi %s,</p><p>Use the link below to choose a new password. It expires in %s.</p><p><a href="%s">Reset password</a></p>`,
			html.EscapeString(user.Name), s.resetTTL, html.EscapeString(link)),
		Transactional: true,
	})
	if err != nil {
		return fmt.Errorf("failed to queue reset email: %w", err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password using a reset token. The token is
// consumed on success.
func (s *Service) ConfirmPasswordReset(ctx context.Context, req types.PasswordResetConfirm) error {
	if err := req.Validate(); err != nil {
		return apperr.FromValidator(err)
	}
	hash, err := s.passwords.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	id := hashToken(req.Token)

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		doc, err := tx.Get(ctx, types.CollPasswordResets, id)
		if errors.Is(err, docstore.ErrNotFound) {
			return errInvalidResetToken
		}
		if err != nil {
			return err
		}
		var reset resetRecord
		if err := doc.DataTo(&reset); err != nil {
			return err
		}
		now := s.now()
		if !now.Before(reset.ExpiresAt) {
			return errInvalidResetToken
		}
		if _, err := tx.Get(ctx, types.CollUsers, reset.UserID); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return errInvalidResetToken
			}
			return err
		}
		tx.Stage(
			docstore.Update(types.CollUsers, reset.UserID, docstore.Data{
				"passwordHash": hash,
				"updatedAt":    now,
			}),
			docstore.Delete(types.CollPasswordResets, id),
		)
		return nil
	})
	if err != nil {
		var unauthorized *apperr.UnauthorizedError
		if errors.As(err, &unauthorized) {
			return err
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}
	return nil
}

func (s *Service) userByEmail(ctx context.Context, email string) (*userRecord, error) {
	doc, err := s.store.Get(ctx, types.CollUserEmails, types.EmailIndexID(email))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	userID, _ := doc.Data["userId"].(string)
	return s.userByID(ctx, userID)
}

func (s *Service) userByID(ctx context.Context, id string) (*userRecord, error) {
	if id == "" {
		return nil, nil
	}
	doc, err := s.store.Get(ctx, types.CollUsers, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	var user userRecord
	if err := doc.DataTo(&user); err != nil {
		return nil, err
	}
	return &user, nil
}
