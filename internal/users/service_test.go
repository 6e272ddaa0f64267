package users

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitemaster-erp/sitemaster/internal/shared"
)

type memoryRepo struct {
	users  map[int64]User
	nextID int64
}

func (m *memoryRepo) Create(_ context.Context, u User) (User, error) {
	m.nextID++
	u.ID = m.nextID
	u.IsActive = true
	m.users[u.ID] = u
	return u, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (m *memoryRepo) FindByEmail(_ context.Context, email string) (User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, shared.ErrNotFound
}

func (m *memoryRepo) List(context.Context) ([]User, error) {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryRepo) SetActive(_ context.Context, id int64, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = active
	m.users[id] = u
	return nil
}

func TestCreateAndAuthenticate(t *testing.T) {
	repo := &memoryRepo{users: map[int64]User{}}
	svc := NewService(repo, nil, slog.Default())
	ctx := context.Background()

	created, err := svc.Create(ctx, "Foreman@Site.example ", "Sam Foreman", "concrete-mixer-9")
	require.NoError(t, err)
	assert.Equal(t, "foreman@site.example", created.Email)
	assert.NotEqual(t, "concrete-mixer-9", created.PasswordHash)

	got, err := svc.Authenticate(ctx, "foreman@site.example", "concrete-mixer-9")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.Authenticate(ctx, "foreman@site.example", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@site.example", "concrete-mixer-9")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Deactivated accounts cannot sign in.
	require.NoError(t, svc.Deactivate(ctx, created.ID))
	_, err = svc.Authenticate(ctx, "foreman@site.example", "concrete-mixer-9")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(&memoryRepo{users: map[int64]User{}}, nil, slog.Default())
	ctx := context.Background()

	_, err := svc.Create(ctx, "", "Sam", "long-enough-pass")
	assert.ErrorIs(t, err, ErrEmailRequired)
	_, err = svc.Create(ctx, "a@b.example", "", "long-enough-pass")
	assert.ErrorIs(t, err, ErrNameRequired)
	_, err = svc.Create(ctx, "a@b.example", "Sam", "short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}
