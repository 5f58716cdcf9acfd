package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/auth"
	"github.com/pdf-annotator/backend/internal/config"
	"github.com/pdf-annotator/backend/internal/models"
	"github.com/pdf-annotator/backend/internal/storage"
)

// MockRepository implements database.Repository for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	args := m.Called(ctx, name, email, passwordHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) UserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) CreateFile(ctx context.Context, f *models.File) (*models.File, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.File), args.Error(1)
}

func (m *MockRepository) FileByID(ctx context.Context, id, userID string) (*models.File, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.File), args.Error(1)
}

func (m *MockRepository) FilesByUser(ctx context.Context, userID string) ([]models.File, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.File), args.Error(1)
}

func (m *MockRepository) UpdateFileStatus(ctx context.Context, id string, status models.FileStatus, pageCount int) error {
	args := m.Called(ctx, id, status, pageCount)
	return args.Error(0)
}

func (m *MockRepository) DeleteFile(ctx context.Context, id, userID string) (*models.File, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.File), args.Error(1)
}

func (m *MockRepository) AnnotationsByFile(ctx context.Context, fileID string) ([]models.Annotation, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Annotation), args.Error(1)
}

func (m *MockRepository) ReplaceAnnotations(ctx context.Context, fileID string, annotations []models.Annotation) error {
	args := m.Called(ctx, fileID, annotations)
	return args.Error(0)
}

func (m *MockRepository) Close() {
	m.Called()
}

// MockCache implements cache.Cache for testing
type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetFile(ctx context.Context, id string) (*models.File, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.File), args.Error(1)
}

func (m *MockCache) SetFile(ctx context.Context, f *models.File) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockCache) GetAnnotations(ctx context.Context, fileID string) ([]models.Annotation, bool, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]models.Annotation), args.Bool(1), args.Error(2)
}

func (m *MockCache) SetAnnotations(ctx context.Context, fileID string, annotations []models.Annotation) error {
	args := m.Called(ctx, fileID, annotations)
	return args.Error(0)
}

func (m *MockCache) InvalidateFile(ctx context.Context, fileID string) error {
	args := m.Called(ctx, fileID)
	return args.Error(0)
}

func (m *MockCache) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	args := m.Called(ctx, jti, expiresAt)
	return args.Error(0)
}

func (m *MockCache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	args := m.Called(ctx, jti)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockBlobStorage implements storage.BlobStorage for testing
type MockBlobStorage struct {
	mock.Mock
}

func (m *MockBlobStorage) Put(ctx context.Context, r io.Reader, contentType string) (storage.PutResult, error) {
	args := m.Called(ctx, r, contentType)
	return args.Get(0).(storage.PutResult), args.Error(1)
}

func (m *MockBlobStorage) Get(ctx context.Context, storageKey string) (io.ReadCloser, int64, string, error) {
	args := m.Called(ctx, storageKey)
	if args.Get(0) == nil {
		return nil, 0, "", args.Error(3)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(int64), args.String(2), args.Error(3)
}

func (m *MockBlobStorage) Delete(ctx context.Context, storageKey string) error {
	args := m.Called(ctx, storageKey)
	return args.Error(0)
}

const testUserID = "11111111-1111-1111-1111-111111111111"

func setupTestHandler() (*Handler, *MockRepository, *MockCache, *MockBlobStorage, *gin.Engine) {
	gin.SetMode(gin.TestMode)

	mockRepo := new(MockRepository)
	mockCache := new(MockCache)
	mockBlobs := new(MockBlobStorage)
	logger := zap.NewNop()

	cfg := &config.Config{
		JWTSecret:      "test-secret",
		JWTIssuer:      "pdf-annotator-test",
		TokenTTL:       time.Hour,
		MaxUploadBytes: 1 << 20,
		Environment:    "development",
	}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	hasher := auth.NewPasswordHasher()

	handler := NewHandler(mockRepo, mockCache, mockBlobs, tokens, hasher, cfg, logger)

	engine := gin.New()
	rg := engine.Group("/api")
	handler.RegisterRoutes(rg)

	return handler, mockRepo, mockCache, mockBlobs, engine
}

// authedRequest builds a request carrying a valid session cookie for
// testUserID. The blacklist lookup is stubbed to "not revoked".
func authedRequest(t *testing.T, h *Handler, mockCache *MockCache, method, path string, body string) *http.Request {
	t.Helper()

	token, claims, err := h.tokens.Issue(testUserID)
	assert.NoError(t, err)
	mockCache.On("IsRevoked", mock.Anything, claims.JTI).Return(false, nil)

	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	return req
}

func TestSignup_Success(t *testing.T) {
	_, mockRepo, _, _, engine := setupTestHandler()

	created := &models.User{
		ID:        testUserID,
		Name:      "Alice",
		Email:     "alice@example.com",
		CreatedAt: time.Now(),
	}
	mockRepo.On("CreateUser", mock.Anything, "Alice", "alice@example.com", mock.Anything).
		Return(created, nil)

	body := `{"name": "Alice", "email": "Alice@Example.com", "password": "hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response models.AuthResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.True(t, response.Success)
	assert.Equal(t, "alice@example.com", response.User.Email)

	// Session token must arrive as an httpOnly cookie.
	cookies := w.Result().Cookies()
	var found bool
	for _, ck := range cookies {
		if ck.Name == auth.CookieName {
			found = true
			assert.True(t, ck.HttpOnly)
			assert.NotEmpty(t, ck.Value)
		}
	}
	assert.True(t, found, "expected session cookie")

	mockRepo.AssertExpectations(t)
}

func TestSignup_EmailTaken(t *testing.T) {
	_, mockRepo, _, _, engine := setupTestHandler()

	mockRepo.On("CreateUser", mock.Anything, "Alice", "alice@example.com", mock.Anything).
		Return(nil, models.ErrEmailTaken)

	body := `{"name": "Alice", "email": "alice@example.com", "password": "hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignup_ShortPassword(t *testing.T) {
	_, _, _, _, engine := setupTestHandler()

	body := `{"name": "Alice", "email": "alice@example.com", "password": "abc"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignin_Success(t *testing.T) {
	h, mockRepo, _, _, engine := setupTestHandler()

	hash, err := h.hasher.Hash("hunter22")
	assert.NoError(t, err)

	mockRepo.On("UserByEmail", mock.Anything, "alice@example.com").Return(&models.User{
		ID:           testUserID,
		Name:         "Alice",
		Email:        "alice@example.com",
		PasswordHash: hash,
	}, nil)

	body := `{"email": "alice@example.com", "password": "hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockRepo.AssertExpectations(t)
}

func TestSignin_WrongPassword(t *testing.T) {
	h, mockRepo, _, _, engine := setupTestHandler()

	hash, err := h.hasher.Hash("hunter22")
	assert.NoError(t, err)

	mockRepo.On("UserByEmail", mock.Anything, "alice@example.com").Return(&models.User{
		ID:           testUserID,
		Email:        "alice@example.com",
		PasswordHash: hash,
	}, nil)

	body := `{"email": "alice@example.com", "password": "wrong-password"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignin_UnknownEmail(t *testing.T) {
	_, mockRepo, _, _, engine := setupTestHandler()

	mockRepo.On("UserByEmail", mock.Anything, "nobody@example.com").
		Return(nil, models.ErrNotFound)

	body := `{"email": "nobody@example.com", "password": "hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	// Unknown email and wrong password look identical to the caller.
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe_Unauthenticated(t *testing.T) {
	_, _, _, _, engine := setupTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe_Success(t *testing.T) {
	h, mockRepo, mockCache, _, engine := setupTestHandler()

	mockRepo.On("UserByID", mock.Anything, testUserID).Return(&models.User{
		ID:    testUserID,
		Name:  "Alice",
		Email: "alice@example.com",
	}, nil)

	req := authedRequest(t, h, mockCache, http.MethodGet, "/api/user/me", "")
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response models.AuthResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, testUserID, response.User.ID)

	mockRepo.AssertExpectations(t)
}

// failingTokens wraps a real manager but refuses to sign.
type failingTokens struct {
	*auth.TokenManager
}

func (f *failingTokens) Issue(string) (string, auth.Claims, error) {
	return "", auth.Claims{}, errors.New("sign token: bad key")
}

func TestSignin_TokenSigningFailure(t *testing.T) {
	h, mockRepo, mockCache, mockBlobs, _ := setupTestHandler()

	hash, err := h.hasher.Hash("hunter22")
	assert.NoError(t, err)

	mockRepo.On("UserByEmail", mock.Anything, "alice@example.com").Return(&models.User{
		ID:           testUserID,
		Email:        "alice@example.com",
		PasswordHash: hash,
	}, nil)

	broken := NewHandler(mockRepo, mockCache, mockBlobs,
		&failingTokens{TokenManager: auth.NewTokenManager("test-secret", "pdf-annotator-test", time.Hour)},
		h.hasher, h.cfg, zap.NewNop())
	engine := gin.New()
	broken.RegisterRoutes(engine.Group("/api"))

	body := `{"email": "alice@example.com", "password": "hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Result().Cookies())

	var response models.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "internal_error", response.Error)
}

func TestMe_BlacklistUnavailable(t *testing.T) {
	h, _, mockCache, _, engine := setupTestHandler()

	token, claims, err := h.tokens.Issue(testUserID)
	assert.NoError(t, err)
	mockCache.On("IsRevoked", mock.Anything, claims.JTI).
		Return(false, errors.New("redis: connection refused"))

	req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe_RevokedToken(t *testing.T) {
	h, _, mockCache, _, engine := setupTestHandler()

	token, claims, err := h.tokens.Issue(testUserID)
	assert.NoError(t, err)
	mockCache.On("IsRevoked", mock.Anything, claims.JTI).Return(true, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListFiles_Success(t *testing.T) {
	h, mockRepo, mockCache, _, engine := setupTestHandler()

	mockRepo.On("FilesByUser", mock.Anything, testUserID).Return([]models.File{
		{ID: "f1", UserID: testUserID, Name: "a.pdf", Status: models.StatusReady, PageCount: 3},
		{ID: "f2", UserID: testUserID, Name: "b.pdf", Status: models.StatusProcessing},
	}, nil)

	req := authedRequest(t, h, mockCache, http.MethodGet, "/api/files", "")
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response models.FilesResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Len(t, response.Files, 2)
	assert.Equal(t, "/api/files/f1/content", response.Files[0].URL)

	mockRepo.AssertExpectations(t)
}

func TestGetFile_NotOwned(t *testing.T) {
	h, mockRepo, mockCache, _, engine := setupTestHandler()

	// The repository scopes lookups by owner, so someone else's file comes
	// back as not found.
	mockCache.On("GetFile", mock.Anything, "other-file").Return(nil, nil)
	mockRepo.On("FileByID", mock.Anything, "other-file", testUserID).
		Return(nil, models.ErrNotFound)

	req := authedRequest(t, h, mockCache, http.MethodGet, "/api/files/other-file", "")
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockRepo.AssertExpectations(t)
}

func TestGetFile_FromCache(t *testing.T) {
	h, mockRepo, mockCache, _, engine := setupTestHandler()

	mockCache.On("GetFile", mock.Anything, "f1").Return(&models.File{
		ID:     "f1",
		UserID: testUserID,
		Name:   "a.pdf",
		URL:    "/api/files/f1/content",
		Status: models.StatusReady,
	}, nil)

	req := authedRequest(t, h, mockCache, http.MethodGet, "/api/files/f1", "")
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockRepo.AssertNotCalled(t, "FileByID")
	mockCache.AssertExpectations(t)
}

func TestDeleteFile_Success(t *testing.T) {
	h, mockRepo, mockCache, mockBlobs, engine := setupTestHandler()

	mockRepo.On("DeleteFile", mock.Anything, "f1", testUserID).Return(&models.File{
		ID:         "f1",
		UserID:     testUserID,
		StorageKey: "sha256/abc",
	}, nil)
	mockBlobs.On("Delete", mock.Anything, "sha256/abc").Return(nil)
	mockCache.On("InvalidateFile", mock.Anything, "f1").Return(nil)

	req := authedRequest(t, h, mockCache, http.MethodDelete, "/api/files/f1", "")
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockRepo.AssertExpectations(t)
	mockBlobs.AssertExpectations(t)
}

func TestGetAnnotations_CacheMiss(t *testing.T) {
	h, mockRepo, mockCache, _, engine := setupTestHandler()

	owned := &models.File{ID: "f1", UserID: testUserID}
	stored := []models.Annotation{
		{ID: "a1", FileID: "f1", Type: models.TypeHighlight, Page: 1, X: 10, Y: 20, Width: 100, Height: 20, Color: "#fbbf24"},
	}

	mockRepo.On("FileByID", mock.Anything, "f1", testUserID).Return(owned, nil)
	mockCache.On("GetAnnotations", mock.Anything, "f1").Return(nil, false, nil)
	mockRepo.On("AnnotationsByFile", mock.Anything, "f1").Return(stored, nil)
	mockCache.On("SetAnnotations", mock.Anything, "f1", stored).Return(nil)

	req := authedRequest(t, h, mockCache, http.MethodGet, "/api/files/f1/annotations", "")
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response models.AnnotationsResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Len(t, response.Annotations, 1)
	assert.Equal(t, "a1", response.Annotations[0].ID)

	mockRepo.AssertExpectations(t)
	mockCache.AssertExpectations(t)
}

func TestSaveAnnotations_FullReplace(t *testing.T) {
	h, mockRepo, mockCache, _, engine := setupTestHandler()

	owned := &models.File{ID: "f1", UserID: testUserID}
	mockRepo.On("FileByID", mock.Anything, "f1", testUserID).Return(owned, nil)
	mockRepo.On("ReplaceAnnotations", mock.Anything, "f1", mock.MatchedBy(func(as []models.Annotation) bool {
		return len(as) == 2 && as[0].ID == "client-id-1"
	})).Return(nil)
	mockCache.On("InvalidateFile", mock.Anything, "f1").Return(nil)

	body := `{"annotations": [
		{"id": "client-id-1", "type": "highlight", "page": 1, "x": 10, "y": 20, "width": 100, "height": 20, "color": "#fbbf24"},
		{"id": "client-id-2", "type": "drawing", "page": 2, "x": 5, "y": 5, "color": "#ef4444", "points": [{"x": 5, "y": 5}, {"x": 9, "y": 12}]}
	]}`
	req := authedRequest(t, h, mockCache, http.MethodPost, "/api/files/f1/annotations", body)
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response models.SaveResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.True(t, response.Success)

	mockRepo.AssertExpectations(t)
	mockCache.AssertExpectations(t)
}

func TestSaveAnnotations_InvalidAnnotation(t *testing.T) {
	h, mockRepo, mockCache, _, engine := setupTestHandler()

	mockRepo.On("FileByID", mock.Anything, "f1", testUserID).
		Return(&models.File{ID: "f1", UserID: testUserID}, nil)

	// A drawing with a single point never persists.
	body := `{"annotations": [
		{"id": "d1", "type": "drawing", "page": 1, "x": 5, "y": 5, "color": "#ef4444", "points": [{"x": 5, "y": 5}]}
	]}`
	req := authedRequest(t, h, mockCache, http.MethodPost, "/api/files/f1/annotations", body)
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockRepo.AssertNotCalled(t, "ReplaceAnnotations")
}

func TestSaveAnnotations_NotOwned(t *testing.T) {
	h, mockRepo, mockCache, _, engine := setupTestHandler()

	mockRepo.On("FileByID", mock.Anything, "f1", testUserID).
		Return(nil, models.ErrNotFound)

	body := `{"annotations": []}`
	req := authedRequest(t, h, mockCache, http.MethodPost, "/api/files/f1/annotations", body)
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockRepo.AssertNotCalled(t, "ReplaceAnnotations")
}
