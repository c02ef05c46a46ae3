package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/listenupapp/catalog-server/internal/auth"
	"github.com/listenupapp/catalog-server/internal/domain"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/id"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/normalize"
	"github.com/listenupapp/catalog-server/internal/store"
)

// AuthService handles accounts, login and token verification.
type AuthService struct {
	store   store.Store
	signer  auth.Signer
	limiter Limiter
	metrics AuthMetrics
	logger  *slog.Logger
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithLoginLimiter throttles login attempts per username and client address.
func WithLoginLimiter(l Limiter) AuthOption {
	return func(s *AuthService) { s.limiter = l }
}

// WithAuthMetrics records login outcomes.
func WithAuthMetrics(m AuthMetrics) AuthOption {
	return func(s *AuthService) { s.metrics = m }
}

// NewAuthService creates a new authentication service.
func NewAuthService(store store.Store, signer auth.Signer, logger *slog.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		store:   store,
		signer:  signer,
		metrics: nopMetrics{},
		logger:  orDiscard(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUserRequest contains the data for a new account.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,notblank,min=3,max=64"`
	Password string `json:"password" validate:"required,min=3,max=1024"`
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=1024"`
}

// EditFavoriteGenreRequest carries the new favorite genre.
type EditFavoriteGenreRequest struct {
	Genre string `json:"genre" validate:"required,notblank,max=64"`
}

// CreateUser registers a new account. A taken username is a validation
// failure carrying the username as the invalid argument.
func (s *AuthService) CreateUser(ctx context.Context, req CreateUserRequest) (*domain.User, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	username := normalize.Name(req.Username)

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	user := &domain.User{
		Document:     domain.Document{ID: userID},
		Username:     username,
		PasswordHash: passwordHash,
	}
	user.InitTimestamps()

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.ValidationFailed("creating user failed: username is taken", req.Username).WithCause(err)
		}
		return nil, saveFailed(err, "creating user failed", req.Username)
	}

	return user, nil
}

// Login checks credentials and issues a signed access token.
//
// Unknown usernames and wrong passwords fail identically, and both paths
// run one full password hash.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*auth.Token, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	username := normalize.Name(req.Username)
	log := logger.FromContext(ctx, s.logger)

	if s.limiter != nil && !s.limiter.Allow(loginKey(ctx, username)) {
		log.WarnContext(ctx, "login rate limited",
			"username", username,
			"client", auth.ClientAddrFromContext(ctx),
		)
		s.metrics.Login(false)
		return nil, domainerrors.RateLimited("too many login attempts, try again later")
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user == nil {
		auth.BurnPasswordCheck(req.Password)
		return nil, s.loginFailed(ctx, log, username)
	}
	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		return nil, s.loginFailed(ctx, log, username)
	}

	token, err := s.signer.Sign(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	s.metrics.Login(true)
	log.InfoContext(ctx, "user logged in", "user_id", user.ID)

	return token, nil
}

// loginKey scopes login throttling to one username from one client, so a
// stranger cannot spend another client's attempts.
func loginKey(ctx context.Context, username string) string {
	if addr := auth.ClientAddrFromContext(ctx); addr != "" {
		return username + "|" + addr
	}
	return username
}

func (s *AuthService) loginFailed(ctx context.Context, log *slog.Logger, username string) error {
	s.metrics.Login(false)
	log.InfoContext(ctx, "login failed", "username", username)
	return domainerrors.InvalidCredentials("wrong credentials")
}

// VerifyToken validates a bearer token and loads its user, returning the
// verified claims alongside. Every failure, including a user that no longer
// exists, is INVALID_TOKEN.
func (s *AuthService) VerifyToken(ctx context.Context, raw string) (*domain.User, *auth.Claims, error) {
	claims, err := s.signer.Verify(raw)
	if err != nil {
		msg := "invalid token"
		if errors.Is(err, auth.ErrTokenExpired) {
			msg = "token expired"
		}
		return nil, nil, domainerrors.InvalidToken(msg).WithCause(err)
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, domainerrors.InvalidToken("invalid token").WithCause(err)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	return user, claims, nil
}

// Me returns the authenticated caller, or nil for anonymous requests.
func (s *AuthService) Me(ctx context.Context) *domain.User {
	return auth.UserFromContext(ctx)
}

// EditFavoriteGenre sets the caller's favorite genre.
func (s *AuthService) EditFavoriteGenre(ctx context.Context, req EditFavoriteGenreRequest) (*domain.User, error) {
	caller, err := auth.RequireAuthenticated(ctx)
	if err != nil {
		return nil, err
	}

	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, caller.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	user.SetFavoriteGenre(req.Genre)

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, saveFailed(err, "failed to set favorite genre", req.Genre)
	}

	return user, nil
}
