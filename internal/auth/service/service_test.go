package service

import (
	"context"
	"testing"
	"time"

	"premunia_crm_backend/internal/auth/password"
	"premunia_crm_backend/internal/auth/repository"
	"premunia_crm_backend/internal/auth/token"
	"premunia_crm_backend/internal/auth/transport"
	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-access-secret"

type testConfig struct{ domains []string }

func (testConfig) GetJWTAccessSecret() string        { return testSecret }
func (testConfig) GetAccessTokenTTL() time.Duration  { return 15 * time.Minute }
func (testConfig) GetRefreshTokenTTL() time.Duration { return 24 * time.Hour }
func (c testConfig) GetAutoCreateDomains() []string  { return c.domains }

type refreshRecord struct {
	userID    uuid.UUID
	expiresAt time.Time
	revoked   bool
}

type memoryRepo struct {
	users   map[uuid.UUID]repository.User
	refresh map[string]*refreshRecord
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[uuid.UUID]repository.User{}, refresh: map[string]*refreshRecord{}}
}

func (m *memoryRepo) CreateUser(_ context.Context, p repository.CreateUserParams) (repository.User, error) {
	for _, u := range m.users {
		if u.Email == p.Email {
			return repository.User{}, repository.ErrEmailTaken
		}
	}
	u := repository.User{
		ID: uuid.New(), Email: p.Email, PasswordHash: p.PasswordHash,
		FirstName: p.FirstName, LastName: p.LastName, Role: p.Role, IsActive: true,
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memoryRepo) GetUserByEmail(_ context.Context, email string) (repository.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return repository.User{}, repository.ErrNotFound
}

func (m *memoryRepo) GetUserByID(_ context.Context, id uuid.UUID) (repository.User, error) {
	u, ok := m.users[id]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memoryRepo) UpdateNames(_ context.Context, id uuid.UUID, first, last *string) (repository.User, error) {
	u, ok := m.users[id]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	if first != nil {
		u.FirstName = *first
	}
	if last != nil {
		u.LastName = *last
	}
	m.users[id] = u
	return u, nil
}

func (m *memoryRepo) SetRole(_ context.Context, id uuid.UUID, role string) (repository.User, error) {
	u, ok := m.users[id]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	u.Role = role
	m.users[id] = u
	return u, nil
}

func (m *memoryRepo) SetActive(_ context.Context, id uuid.UUID, active bool) (repository.User, error) {
	u, ok := m.users[id]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	u.IsActive = active
	m.users[id] = u
	return u, nil
}

func (m *memoryRepo) TouchSignIn(_ context.Context, id uuid.UUID) error {
	u := m.users[id]
	now := time.Now()
	u.LastSignInAt = &now
	m.users[id] = u
	return nil
}

func (m *memoryRepo) ListUsers(context.Context, repository.ListParams) ([]repository.User, error) {
	out := make([]repository.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryRepo) CountUsers(context.Context) (int, error) { return len(m.users), nil }

func (m *memoryRepo) CreateRefreshToken(_ context.Context, id uuid.UUID, hash string, expiresAt time.Time) error {
	m.refresh[hash] = &refreshRecord{userID: id, expiresAt: expiresAt}
	return nil
}

func (m *memoryRepo) ConsumeRefreshToken(_ context.Context, hash string) (uuid.UUID, time.Time, error) {
	r, ok := m.refresh[hash]
	if !ok || r.revoked {
		return uuid.Nil, time.Time{}, repository.ErrNotFound
	}
	r.revoked = true
	return r.userID, r.expiresAt, nil
}

func (m *memoryRepo) RevokeRefreshToken(_ context.Context, hash string) error {
	if r, ok := m.refresh[hash]; ok {
		r.revoked = true
	}
	return nil
}

func (m *memoryRepo) RevokeAllRefreshTokens(_ context.Context, id uuid.UUID) error {
	for _, r := range m.refresh {
		if r.userID == id {
			r.revoked = true
		}
	}
	return nil
}

type recordingBus struct{ published []events.Event }

func (b *recordingBus) Publish(_ context.Context, e events.Event)             { b.published = append(b.published, e) }
func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error { b.Publish(ctx, e); return nil }
func (b *recordingBus) Subscribe(string, events.Handler)                     {}

func newTestService(domains ...string) (*Service, *memoryRepo, *recordingBus) {
	repo := newMemoryRepo()
	bus := &recordingBus{}
	return New(repo, testConfig{domains: domains}, bus, logger.Discard()), repo, bus
}

func seedUser(t *testing.T, repo *memoryRepo, email, plain, role string) repository.User {
	t.Helper()
	hash, err := password.Hash(plain)
	if err != nil {
		t.Fatal(err)
	}
	u, err := repo.CreateUser(context.Background(), repository.CreateUserParams{Email: email, PasswordHash: hash, Role: role})
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func parseClaims(t *testing.T, raw string) jwt.MapClaims {
	t.Helper()
	parsed, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) { return []byte(testSecret), nil })
	if err != nil || !parsed.Valid {
		t.Fatalf("invalid access token: %v", err)
	}
	return parsed.Claims.(jwt.MapClaims)
}

func TestSignInIssuesTokens(t *testing.T) {
	svc, repo, bus := newTestService()
	user := seedUser(t, repo, "claire.roux@premunia.fr", "Senior-2025!", httpkit.RoleManager)

	session, err := svc.SignIn(context.Background(), "  Claire.Roux@Premunia.fr ", "Senior-2025!")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	claims := parseClaims(t, session.AccessToken)
	if claims["sub"] != user.ID.String() || claims["type"] != "access" || claims["email"] != "claire.roux@premunia.fr" {
		t.Fatalf("unexpected claims %v", claims)
	}
	roles, _ := claims["roles"].([]interface{})
	if len(roles) != 1 || roles[0] != httpkit.RoleManager {
		t.Fatalf("unexpected roles %v", claims["roles"])
	}
	if _, ok := repo.refresh[token.Digest(session.RefreshToken)]; !ok {
		t.Fatal("refresh token digest not stored")
	}
	if repo.users[user.ID].LastSignInAt == nil {
		t.Fatal("sign-in time not recorded")
	}
	if ev, ok := bus.published[0].(events.UserSignedIn); !ok || ev.AutoCreated {
		t.Fatalf("unexpected event %+v", bus.published)
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	svc, repo, _ := newTestService()
	seedUser(t, repo, "paul@premunia.fr", "Senior-2025!", httpkit.RoleCommercial)
	ctx := context.Background()

	if _, err := svc.SignIn(ctx, "paul@premunia.fr", "wrong"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("expected unauthorized for a wrong password, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "nobody@premunia.fr", "Senior-2025!"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("expected unauthorized for an unknown email, got %v", err)
	}
}

func TestSignInAutoCreatesStaffDomain(t *testing.T) {
	svc, repo, bus := newTestService("premunia.fr")
	ctx := context.Background()

	session, err := svc.SignIn(ctx, "nouveau@premunia.fr", "Bienvenue-2025")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if session.User.Role != httpkit.RoleCommercial || len(repo.users) != 1 {
		t.Fatalf("expected a commercial account, got %+v", session.User)
	}
	if ev := bus.published[0].(events.UserSignedIn); !ev.AutoCreated {
		t.Fatal("expected AutoCreated event")
	}
	if _, err := svc.SignIn(ctx, "nouveau@premunia.fr", "autre"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("second sign-in must check the stored password, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "externe@gmail.com", "x"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("other domains are not auto-created, got %v", err)
	}
}

func TestSignInDisabledAccount(t *testing.T) {
	svc, repo, _ := newTestService()
	u := seedUser(t, repo, "ancien@premunia.fr", "Senior-2025!", httpkit.RoleCommercial)
	u.IsActive = false
	repo.users[u.ID] = u

	if _, err := svc.SignIn(context.Background(), "ancien@premunia.fr", "Senior-2025!"); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, repo, _ := newTestService()
	seedUser(t, repo, "paul@premunia.fr", "Senior-2025!", httpkit.RoleCommercial)
	ctx := context.Background()

	first, err := svc.SignIn(ctx, "paul@premunia.fr", "Senior-2025!")
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token must rotate")
	}
	if _, err := svc.Refresh(ctx, first.RefreshToken); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("a consumed token must be rejected, got %v", err)
	}

	if err := svc.SignOut(ctx, second.RefreshToken); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Refresh(ctx, second.RefreshToken); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("a signed-out token must be rejected, got %v", err)
	}
}

func TestRefreshExpired(t *testing.T) {
	svc, repo, _ := newTestService()
	u := seedUser(t, repo, "paul@premunia.fr", "Senior-2025!", httpkit.RoleCommercial)
	repo.refresh[token.Digest("stale")] = &refreshRecord{userID: u.ID, expiresAt: time.Now().Add(-time.Minute)}

	if _, err := svc.Refresh(context.Background(), "stale"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestAdminOperations(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	admin := seedUser(t, repo, "admin@premunia.fr", "Admin-2025!", httpkit.RoleAdmin)
	adminIdentity := httpkit.NewIdentity(admin.ID, admin.Email, httpkit.RoleAdmin)
	manager := httpkit.NewIdentity(uuid.New(), "", httpkit.RoleManager)

	req := transport.CreateUserRequest{Email: "Lucie@Premunia.fr", Password: "Lucie-2025!", FirstName: "Lucie", LastName: "Moreau", Role: httpkit.RoleMarketing}
	if _, err := svc.CreateUser(ctx, manager, req); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("managers cannot create users, got %v", err)
	}
	created, err := svc.CreateUser(ctx, adminIdentity, req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Email != "lucie@premunia.fr" || created.Role != httpkit.RoleMarketing {
		t.Fatalf("unexpected user %+v", created)
	}
	if _, err := svc.CreateUser(ctx, adminIdentity, req); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("duplicate email should conflict, got %v", err)
	}

	if _, err := svc.SetRole(ctx, adminIdentity, admin.ID, httpkit.RoleCommercial); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("admins cannot demote themselves, got %v", err)
	}
	if _, err := svc.SetActive(ctx, adminIdentity, admin.ID, false); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("admins cannot disable themselves, got %v", err)
	}

	session, err := svc.SignIn(ctx, "lucie@premunia.fr", "Lucie-2025!")
	if err != nil {
		t.Fatal(err)
	}
	disabled, err := svc.SetActive(ctx, adminIdentity, created.ID, false)
	if err != nil || disabled.IsActive {
		t.Fatalf("disable: %+v %v", disabled, err)
	}
	if !repo.refresh[token.Digest(session.RefreshToken)].revoked {
		t.Fatal("disabling a user must revoke their sessions")
	}

	if _, err := svc.SetRole(ctx, adminIdentity, uuid.New(), httpkit.RoleManager); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	users, err := svc.ListUsers(ctx, manager, transport.ListUsersRequest{})
	if err != nil || len(users) != 2 {
		t.Fatalf("list: %d users, %v", len(users), err)
	}
	seller := httpkit.NewIdentity(uuid.New(), "", httpkit.RoleCommercial)
	if _, err := svc.ListUsers(ctx, seller, transport.ListUsersRequest{}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	diag, err := svc.Diagnostics(ctx)
	if err != nil || diag.Users != 2 || diag.Database != "ok" {
		t.Fatalf("diagnostics: %+v %v", diag, err)
	}
}
