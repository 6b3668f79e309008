package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cryptolearn-backend/internal/middleware"
	"cryptolearn-backend/internal/models"
	"cryptolearn-backend/internal/service"
	"cryptolearn-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	RegisterValidators()
}

type mockSessions struct {
	register func(ctx context.Context, in service.RegisterInput) (*service.UserProfile, error)
	login    func(ctx context.Context, username, password string) (*service.LoginResult, error)
	refresh  func(ctx context.Context, token string) (string, error)
	logout   func(ctx context.Context, userID uint) error
}

func (m *mockSessions) Register(ctx context.Context, in service.RegisterInput) (*service.UserProfile, error) {
	return m.register(ctx, in)
}

func (m *mockSessions) Login(ctx context.Context, username, password string) (*service.LoginResult, error) {
	return m.login(ctx, username, password)
}

func (m *mockSessions) Refresh(ctx context.Context, token string) (string, error) {
	return m.refresh(ctx, token)
}

func (m *mockSessions) Logout(ctx context.Context, userID uint) error {
	return m.logout(ctx, userID)
}

type mockResets struct {
	request  func(ctx context.Context, identifier string) error
	validate func(ctx context.Context, token string) (*models.User, error)
	reset    func(ctx context.Context, token, newPassword string) error
}

func (m *mockResets) Validate(ctx context.Context, token string) (*models.User, error) {
	return m.validate(ctx, token)
}

func (m *mockResets) RequestReset(ctx context.Context, identifier string) error {
	return m.request(ctx, identifier)
}

func (m *mockResets) ResetPassword(ctx context.Context, token, newPassword string) error {
	return m.reset(ctx, token, newPassword)
}

type mockAccounts struct {
	getProfile     func(ctx context.Context, userID uint) (*service.UserProfile, error)
	updateProfile  func(ctx context.Context, userID uint, in service.UpdateProfileInput) (*service.ProfileUpdate, error)
	changePassword func(ctx context.Context, userID uint, current, next string) error
	deleteAccount  func(ctx context.Context, actor *models.User, targetID uint) error
	listUsers      func(ctx context.Context, req service.PageRequest) (*service.Page[service.UserProfile], error)
	adminUpdate    func(ctx context.Context, actor *models.User, targetID uint, in service.AdminUpdateInput) (*service.UserProfile, error)
	adminDelete    func(ctx context.Context, actor *models.User, targetID uint) error
}

func (m *mockAccounts) GetProfile(ctx context.Context, userID uint) (*service.UserProfile, error) {
	return m.getProfile(ctx, userID)
}

func (m *mockAccounts) UpdateProfile(ctx context.Context, userID uint, in service.UpdateProfileInput) (*service.ProfileUpdate, error) {
	return m.updateProfile(ctx, userID, in)
}

func (m *mockAccounts) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	return m.changePassword(ctx, userID, current, next)
}

func (m *mockAccounts) DeleteAccount(ctx context.Context, actor *models.User, targetID uint) error {
	return m.deleteAccount(ctx, actor, targetID)
}

func (m *mockAccounts) ListUsers(ctx context.Context, req service.PageRequest) (*service.Page[service.UserProfile], error) {
	return m.listUsers(ctx, req)
}

func (m *mockAccounts) AdminUpdateUser(ctx context.Context, actor *models.User, targetID uint, in service.AdminUpdateInput) (*service.UserProfile, error) {
	return m.adminUpdate(ctx, actor, targetID, in)
}

func (m *mockAccounts) AdminDeleteUser(ctx context.Context, actor *models.User, targetID uint) error {
	return m.adminDelete(ctx, actor, targetID)
}

type mockIssuer struct {
	issue func(user *models.User) (string, error)
}

func (m *mockIssuer) IssueAccessToken(user *models.User) (string, error) {
	return m.issue(user)
}

type mockExercises struct {
	generate func(ctx context.Context, taskType service.TaskType, req service.GenerateRequest) (*service.TaskPayload, error)
	verify   func(ctx context.Context, taskType service.TaskType, sol service.Solution) (*service.VerificationResult, error)
}

func (m *mockExercises) Generate(ctx context.Context, taskType service.TaskType, req service.GenerateRequest) (*service.TaskPayload, error) {
	return m.generate(ctx, taskType, req)
}

func (m *mockExercises) Verify(ctx context.Context, taskType service.TaskType, sol service.Solution) (*service.VerificationResult, error) {
	return m.verify(ctx, taskType, sol)
}

// asUser stands in for the auth middleware.
func asUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set(middleware.ContextUserKey, user)
		}
		c.Next()
	}
}

func testUser(id uint, roles ...models.RoleName) *models.User {
	u := &models.User{ID: id, Username: "user", Email: "user@example.com", Enabled: true}
	for _, r := range roles {
		u.Roles = append(u.Roles, models.Role{Name: r})
	}
	return u
}

func performJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) utils.ErrorBody {
	t.Helper()
	var body utils.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
