package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdf-annotator/backend/internal/models"
)

func TestSignin_CapturesTokenCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/signin", r.URL.Path)

		var req models.SigninRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice@example.com", req.Email)

		http.SetCookie(w, &http.Cookie{Name: "token", Value: "session-token"})
		json.NewEncoder(w).Encode(models.AuthResponse{
			Success: true,
			User:    models.User{ID: "u1", Email: req.Email},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	user, err := c.Signin(context.Background(), "alice@example.com", "hunter22")
	assert.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "session-token", c.Token())
}

func TestRequests_CarryTokenCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("token")
		assert.NoError(t, err)
		assert.Equal(t, "session-token", ck.Value)

		json.NewEncoder(w).Encode(models.FilesResponse{Success: true})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetToken("session-token")

	_, err := c.ListFiles(context.Background())
	assert.NoError(t, err)
}

func TestSaveAnnotations_PostsFullSet(t *testing.T) {
	var received models.SaveAnnotationsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/files/f1/annotations", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		json.NewEncoder(w).Encode(models.SaveResponse{Success: true})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetToken("session-token")

	annotations := []models.Annotation{
		{ID: "a1", Type: models.TypeHighlight, Page: 1, Width: 100, Height: 20, Color: "#fbbf24"},
		{ID: "a2", Type: models.TypeComment, Page: 2, Content: "note", Color: "#3b82f6"},
	}
	err := c.SaveAnnotations(context.Background(), "f1", annotations)
	assert.NoError(t, err)
	assert.Len(t, received.Annotations, 2)
	assert.Equal(t, "a1", received.Annotations[0].ID)
}

func TestErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/files/missing":
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(models.ErrorResponse{Error: "not_found", Message: "get file: not found"})
		default:
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(models.ErrorResponse{Error: "unauthorized", Message: "missing token"})
		}
	}))
	defer srv.Close()

	c := New(srv.URL)

	_, err := c.GetFile(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = c.Me(context.Background())
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestLogout_DropsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.SaveResponse{Success: true})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetToken("session-token")

	assert.NoError(t, c.Logout(context.Background()))
	assert.Empty(t, c.Token())
}
