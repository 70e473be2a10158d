package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"premunia_crm_backend/internal/auth/password"
	"premunia_crm_backend/internal/auth/repository"
	"premunia_crm_backend/internal/auth/token"
	"premunia_crm_backend/internal/auth/transport"
	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/config"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTokenType = "access"

	msgInvalidCredentials = "invalid credentials"
	msgInvalidRefresh     = "invalid refresh token"
)

// Session is the result of a successful sign-in or refresh.
type Session struct {
	AccessToken  string
	ExpiresAt    time.Time
	RefreshToken string
	User         transport.ProfileResponse
}

type Service struct {
	repo     repository.AuthRepository
	cfg      config.AuthServiceConfig
	eventBus events.Bus
	log      *logger.Logger
	now      func() time.Time
}

func New(repo repository.AuthRepository, cfg config.AuthServiceConfig, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, eventBus: eventBus, log: log, now: time.Now}
}

// SignIn verifies credentials and opens a session. An unknown address from an
// auto-create domain gets a commercial account on the spot.
func (s *Service) SignIn(ctx context.Context, email, plainPassword string) (Session, error) {
	email = normalizeEmail(email)

	autoCreated := false
	user, err := s.repo.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound) && s.autoCreateAllowed(email):
		user, err = s.createUser(ctx, repository.CreateUserParams{
			Email: email,
			Role:  httpkit.RoleCommercial,
		}, plainPassword)
		if err != nil {
			return Session{}, err
		}
		autoCreated = true
		s.log.Info("user auto-created on first sign-in", "userId", user.ID, "email", email)
	case errors.Is(err, repository.ErrNotFound):
		return Session{}, apperr.Unauthorized(msgInvalidCredentials)
	case err != nil:
		return Session{}, apperr.Unavailable("auth.SignIn", err)
	}

	if !autoCreated {
		if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
			return Session{}, apperr.Unauthorized(msgInvalidCredentials)
		}
	}
	if !user.IsActive {
		return Session{}, apperr.Forbidden("account is disabled")
	}

	session, err := s.issueTokens(ctx, user)
	if err != nil {
		return Session{}, err
	}
	if err := s.repo.TouchSignIn(ctx, user.ID); err != nil {
		s.log.Warn("failed to record sign-in", "userId", user.ID, "error", err)
	}

	s.eventBus.Publish(ctx, events.UserSignedIn{
		BaseEvent:   events.NewBaseEvent(),
		UserID:      user.ID,
		AutoCreated: autoCreated,
	})
	return session, nil
}

// Refresh rotates the refresh token: the presented one is consumed and a new
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	userID, expiresAt, err := s.repo.ConsumeRefreshToken(ctx, token.Digest(refreshToken))
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, apperr.Unauthorized(msgInvalidRefresh)
	}
	if err != nil {
		return Session{}, apperr.Unavailable("auth.Refresh", err)
	}
	if s.now().After(expiresAt) {
		return Session{}, apperr.Unauthorized("refresh token expired")
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, apperr.Unauthorized(msgInvalidRefresh)
	}
	if err != nil {
		return Session{}, apperr.Unavailable("auth.Refresh", err)
	}
	if !user.IsActive {
		return Session{}, apperr.Forbidden("account is disabled")
	}
	return s.issueTokens(ctx, user)
}

func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	if err := s.repo.RevokeRefreshToken(ctx, token.Digest(refreshToken)); err != nil {
		return apperr.Unavailable("auth.SignOut", err)
	}
	return nil
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (transport.ProfileResponse, error) {
	user, err := s.getUser(ctx, "auth.Me", userID)
	if err != nil {
		return transport.ProfileResponse{}, err
	}
	return toProfile(user), nil
}

func (s *Service) UpdateMe(ctx context.Context, userID uuid.UUID, req transport.UpdateProfileRequest) (transport.ProfileResponse, error) {
	user, err := s.repo.UpdateNames(ctx, userID, trimPtr(req.FirstName), trimPtr(req.LastName))
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ProfileResponse{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return transport.ProfileResponse{}, apperr.Unavailable("auth.UpdateMe", err)
	}
	return toProfile(user), nil
}

// CreateUser provisions a staff account. Admins only.
func (s *Service) CreateUser(ctx context.Context, identity httpkit.Identity, req transport.CreateUserRequest) (transport.ProfileResponse, error) {
	if !identity.HasRole(httpkit.RoleAdmin) {
		return transport.ProfileResponse{}, apperr.Forbidden("only admins can create users")
	}
	user, err := s.createUser(ctx, repository.CreateUserParams{
		Email:     normalizeEmail(req.Email),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      req.Role,
	}, req.Password)
	if err != nil {
		return transport.ProfileResponse{}, err
	}
	s.log.Info("user created", "userId", user.ID, "role", user.Role, "createdBy", identity.UserID())
	return toProfile(user), nil
}

// ListUsers lists staff accounts. Managers need it to assign prospects.
func (s *Service) ListUsers(ctx context.Context, identity httpkit.Identity, req transport.ListUsersRequest) ([]transport.ProfileResponse, error) {
	if !identity.IsManager() {
		return nil, apperr.Forbidden("only managers can list users")
	}
	params := repository.ListParams{Active: req.Active, Search: strings.TrimSpace(req.Search)}
	if req.Role != "" {
		params.Role = &req.Role
	}

	users, err := s.repo.ListUsers(ctx, params)
	if err != nil {
		return nil, apperr.Unavailable("auth.ListUsers", err)
	}
	out := make([]transport.ProfileResponse, len(users))
	for i, u := range users {
		out[i] = toProfile(u)
	}
	return out, nil
}

func (s *Service) SetRole(ctx context.Context, identity httpkit.Identity, userID uuid.UUID, role string) (transport.ProfileResponse, error) {
	if !identity.HasRole(httpkit.RoleAdmin) {
		return transport.ProfileResponse{}, apperr.Forbidden("only admins can change roles")
	}
	if userID == identity.UserID() {
		return transport.ProfileResponse{}, apperr.Conflict("admins cannot change their own role")
	}

	user, err := s.repo.SetRole(ctx, userID, role)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ProfileResponse{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return transport.ProfileResponse{}, apperr.Unavailable("auth.SetRole", err)
	}
	// Roles are baked into access tokens; force a fresh sign-in.
	if err := s.repo.RevokeAllRefreshTokens(ctx, userID); err != nil {
		s.log.Warn("failed to revoke sessions after role change", "userId", userID, "error", err)
	}
	return toProfile(user), nil
}

// SetActive enables or disables an account. Disabling revokes every session.
func (s *Service) SetActive(ctx context.Context, identity httpkit.Identity, userID uuid.UUID, active bool) (transport.ProfileResponse, error) {
	if !identity.HasRole(httpkit.RoleAdmin) {
		return transport.ProfileResponse{}, apperr.Forbidden("only admins can disable users")
	}
	if userID == identity.UserID() && !active {
		return transport.ProfileResponse{}, apperr.Conflict("admins cannot disable themselves")
	}

	user, err := s.repo.SetActive(ctx, userID, active)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ProfileResponse{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return transport.ProfileResponse{}, apperr.Unavailable("auth.SetActive", err)
	}
	if !active {
		if err := s.repo.RevokeAllRefreshTokens(ctx, userID); err != nil {
			return transport.ProfileResponse{}, apperr.Unavailable("auth.SetActive", err)
		}
	}
	return toProfile(user), nil
}

// Diagnostics checks that the user store answers.
func (s *Service) Diagnostics(ctx context.Context) (transport.DiagnosticsResponse, error) {
	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return transport.DiagnosticsResponse{}, apperr.Unavailable("auth.Diagnostics", err)
	}
	return transport.DiagnosticsResponse{Database: "ok", Users: count, CheckedAt: s.now().UTC()}, nil
}

func (s *Service) createUser(ctx context.Context, params repository.CreateUserParams, plainPassword string) (repository.User, error) {
	hash, err := password.Hash(plainPassword)
	if err != nil {
		return repository.User{}, apperr.Validation("password cannot be hashed")
	}
	params.PasswordHash = hash

	user, err := s.repo.CreateUser(ctx, params)
	if errors.Is(err, repository.ErrEmailTaken) {
		return repository.User{}, apperr.Conflict("email already in use")
	}
	if err != nil {
		return repository.User{}, apperr.Unavailable("auth.CreateUser", err)
	}
	return user, nil
}

func (s *Service) getUser(ctx context.Context, op string, userID uuid.UUID) (repository.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return repository.User{}, apperr.Unavailable(op, err)
	}
	return user, nil
}

func (s *Service) issueTokens(ctx context.Context, user repository.User) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.GetAccessTokenTTL())
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"roles": []string{user.Role},
		"type":  accessTokenType,
		"exp":   expiresAt.Unix(),
		"iat":   now.Unix(),
	}).SignedString([]byte(s.cfg.GetJWTAccessSecret()))
	if err != nil {
		return Session{}, apperr.Internal("failed to sign access token")
	}

	refresh, err := token.NewRefresh()
	if err != nil {
		return Session{}, apperr.Internal("failed to generate refresh token")
	}
	refreshExpiry := now.Add(s.cfg.GetRefreshTokenTTL())
	if err := s.repo.CreateRefreshToken(ctx, user.ID, refresh.Digest, refreshExpiry); err != nil {
		return Session{}, apperr.Unavailable("auth.issueTokens", err)
	}

	return Session{
		AccessToken:  accessToken,
		ExpiresAt:    expiresAt,
		RefreshToken: refresh.Raw,
		User:         toProfile(user),
	}, nil
}

func (s *Service) autoCreateAllowed(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, allowed := range s.cfg.GetAutoCreateDomains() {
		if domain == allowed {
			return true
		}
	}
	return false
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func toProfile(u repository.User) transport.ProfileResponse {
	return transport.ProfileResponse{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         u.Role,
		IsActive:     u.IsActive,
		LastSignInAt: u.LastSignInAt,
		CreatedAt:    u.CreatedAt,
	}
}
