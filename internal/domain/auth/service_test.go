package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/memegrid/memegrid-api/internal/domain/credit"
	"github.com/memegrid/memegrid-api/internal/domain/user"
	"github.com/memegrid/memegrid-api/internal/pkg/jwt"
	"github.com/memegrid/memegrid-api/internal/pkg/password"
)

type fakeUserRepo struct {
	byEmail map[string]*user.User
	byID    map[uuid.UUID]*user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byEmail: make(map[string]*user.User),
		byID:    make(map[uuid.UUID]*user.User),
	}
}

func (f *fakeUserRepo) Create(ctx context.Context, u *user.User) error {
	if _, ok := f.byEmail[u.Email]; ok {
		return user.ErrEmailAlreadyExists
	}
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, user.ErrUserNotFound
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, user.ErrUserNotFound
}

type fakeGranter struct {
	grants []credit.GrantOptions
	users  []uuid.UUID
}

func (f *fakeGranter) Grant(ctx context.Context, userID uuid.UUID, amount int64, opts credit.GrantOptions) (*credit.Transaction, error) {
	f.grants = append(f.grants, opts)
	f.users = append(f.users, userID)
	return &credit.Transaction{ID: uuid.New(), UserID: userID, Credits: amount}, nil
}

func newTestService(repo user.Repository, granter CreditGranter, gift SignupGift) *Service {
	jwtSvc := jwt.NewService("test-secret", 15*time.Minute, 7*24*time.Hour)
	return NewService(repo, jwtSvc, nil, granter, gift)
}

func TestRegisterGrantsSignupGift(t *testing.T) {
	repo := newFakeUserRepo()
	granter := &fakeGranter{}
	svc := newTestService(repo, granter, SignupGift{
		Enabled:     true,
		Amount:      50,
		ValidDays:   365,
		Description: "welcome",
	})

	resp, err := svc.Register(context.Background(), &RegisterRequest{
		Email:       "New@Example.COM ",
		Password:    "supersecret",
		DisplayName: "New User",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if resp.User.Email != "new@example.com" {
		t.Errorf("email not normalized: %s", resp.User.Email)
	}
	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Error("expected token pair")
	}

	if len(granter.grants) != 1 {
		t.Fatalf("expected 1 signup grant, got %d", len(granter.grants))
	}
	g := granter.grants[0]
	if g.Scene != credit.SceneSignupGift {
		t.Errorf("grant scene = %s, want signup_gift", g.Scene)
	}
	if g.ExpiresInDays == nil || *g.ExpiresInDays != 365 {
		t.Errorf("grant expiry days = %v, want 365", g.ExpiresInDays)
	}
	if granter.users[0] != resp.User.ID {
		t.Error("grant issued to the wrong user")
	}
}

func TestRegisterGiftDisabled(t *testing.T) {
	repo := newFakeUserRepo()
	granter := &fakeGranter{}
	svc := newTestService(repo, granter, SignupGift{Enabled: false})

	_, err := svc.Register(context.Background(), &RegisterRequest{
		Email:       "nogift@example.com",
		Password:    "supersecret",
		DisplayName: "No Gift",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if len(granter.grants) != 0 {
		t.Errorf("expected no grants, got %d", len(granter.grants))
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestService(repo, &fakeGranter{}, SignupGift{})

	req := &RegisterRequest{
		Email:       "dup@example.com",
		Password:    "supersecret",
		DisplayName: "First",
	}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	_, err := svc.Register(context.Background(), &RegisterRequest{
		Email:       "dup@example.com",
		Password:    "othersecret",
		DisplayName: "Second",
	})
	if !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestService(repo, &fakeGranter{}, SignupGift{})

	hash, err := password.Hash("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &user.User{
		ID:           uuid.New(),
		Email:        "login@example.com",
		PasswordHash: hash,
		Role:         user.RoleUser,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	if _, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "login@example.com",
		Password: "correct-horse",
	}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	_, err = svc.Login(context.Background(), &LoginRequest{
		Email:    "login@example.com",
		Password: "wrong",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	_, err = svc.Login(context.Background(), &LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestRefreshWithoutRedis(t *testing.T) {
	svc := newTestService(newFakeUserRepo(), &fakeGranter{}, SignupGift{})

	_, err := svc.Refresh(context.Background(), "some-token")
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken without redis, got %v", err)
	}

	_, err = svc.Refresh(context.Background(), "")
	if !errors.Is(err, ErrRefreshTokenRequired) {
		t.Fatalf("expected ErrRefreshTokenRequired, got %v", err)
	}
}
