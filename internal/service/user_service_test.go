package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/attendly/attendly-api/internal/models"
	appErrors "github.com/attendly/attendly-api/pkg/errors"
	"github.com/attendly/attendly-api/pkg/mail"
)

type mockUserRepo struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{byEmail: make(map[string]*models.User), byID: make(map[string]*models.User)}
}

func (m *mockUserRepo) List(_ context.Context, _ models.UserFilter) ([]models.User, int, error) {
	out := make([]models.User, 0, len(m.byID))
	for _, user := range m.byID {
		out = append(out, *user)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := m.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	m.byEmail[user.Email] = user
	m.byID[user.ID] = user
	return nil
}

func (m *mockUserRepo) Update(_ context.Context, user *models.User) error {
	m.byID[user.ID] = user
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	if user, ok := m.byID[id]; ok {
		user.Active = false
	}
	return nil
}

type recordingSender struct {
	messages []mail.Message
}

func (r *recordingSender) Send(_ context.Context, msg mail.Message) error {
	r.messages = append(r.messages, msg)
	return nil
}

func TestUserServiceCreateSendsCredentials(t *testing.T) {
	repo := newMockUserRepo()
	sender := &recordingSender{}
	svc := NewUserService(repo, sender, validator.New(), zap.NewNop())

	user, err := svc.Create(context.Background(), CreateUserRequest{
		SchoolID: "school1",
		Email:    "Teacher@Example.com",
		FullName: "New Teacher",
		Role:     models.RoleTeacher,
	})
	require.NoError(t, err)

	assert.Equal(t, "teacher@example.com", user.Email)
	assert.True(t, user.Active)
	assert.NotEmpty(t, user.PasswordHash)

	require.Len(t, sender.messages, 1)
	msg := sender.messages[0]
	assert.Equal(t, "teacher@example.com", msg.ToAddress)
	assert.Contains(t, msg.PlainBody, "Temporary password:")

	// The mailed password must match the stored hash.
	marker := "Temporary password: "
	idx := strings.Index(msg.PlainBody, marker)
	require.GreaterOrEqual(t, idx, 0)
	password := msg.PlainBody[idx+len(marker):]
	if nl := strings.IndexByte(password, '\n'); nl >= 0 {
		password = password[:nl]
	}
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)))
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	repo.byEmail["taken@example.com"] = &models.User{ID: "u1", Email: "taken@example.com"}
	svc := NewUserService(repo, &recordingSender{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateUserRequest{
		SchoolID: "school1",
		Email:    "taken@example.com",
		FullName: "Dup",
		Role:     models.RoleTeacher,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateRejectsUnknownRole(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), &recordingSender{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateUserRequest{
		SchoolID: "school1",
		Email:    "x@example.com",
		FullName: "X",
		Role:     "SUPERADMIN",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateAndDelete(t *testing.T) {
	repo := newMockUserRepo()
	repo.byID["u1"] = &models.User{ID: "u1", FullName: "Old", Role: models.RoleTeacher, Active: true}
	svc := NewUserService(repo, &recordingSender{}, validator.New(), zap.NewNop())

	inactive := false
	updated, err := svc.Update(context.Background(), "u1", UpdateUserRequest{FullName: "New", Role: models.RolePrincipal, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.FullName)
	assert.Equal(t, models.RolePrincipal, updated.Role)
	assert.False(t, updated.Active)

	require.NoError(t, svc.Delete(context.Background(), "u1"))
	assert.False(t, repo.byID["u1"].Active)
}
