// Package client is a small HTTP client for the annotation API. The editor
// and autosave packages use it to talk to a running backend; it carries the
// session token the same way a browser would, as the "token" cookie.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pdf-annotator/backend/internal/models"
)

const defaultTimeout = 30 * time.Second

// Client talks to one backend instance on behalf of one session.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New returns a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// SetToken installs a session token obtained out of band.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the current session token, empty when signed out.
func (c *Client) Token() string { return c.token }

// Signup creates an account and keeps the returned session token.
func (c *Client) Signup(ctx context.Context, email, password, name string) (*models.User, error) {
	return c.authenticate(ctx, "/api/auth/signup", models.SignupRequest{
		Email:    email,
		Password: password,
		Name:     name,
	})
}

// Signin authenticates and keeps the returned session token.
func (c *Client) Signin(ctx context.Context, email, password string) (*models.User, error) {
	return c.authenticate(ctx, "/api/auth/signin", models.SigninRequest{
		Email:    email,
		Password: password,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*models.User, error) {
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	for _, ck := range resp.Cookies() {
		if ck.Name == "token" {
			c.token = ck.Value
		}
	}

	var out models.AuthResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Logout revokes the session server side and drops the local token.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.token = ""
	return checkStatus(resp)
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/user/me", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out models.AuthResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Upload sends a PDF as multipart form data and returns the created file
// record, which may still be processing.
func (c *Client) Upload(ctx context.Context, name string, content io.Reader) (*models.File, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/files/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	var out models.FileResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out.File, nil
}

// ListFiles returns the caller's files.
func (c *Client) ListFiles(ctx context.Context) ([]models.File, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/files", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out models.FilesResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// GetFile returns one file's metadata.
func (c *Client) GetFile(ctx context.Context, id string) (*models.File, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/files/"+id, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out models.FileResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out.File, nil
}

// FileContent fetches the raw PDF bytes. The caller must close the reader.
func (c *Client) FileContent(ctx context.Context, id string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/files/"+id+"/content", nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// DeleteFile removes a file and everything attached to it.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/files/"+id, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// GetAnnotations fetches a file's annotations in creation order.
func (c *Client) GetAnnotations(ctx context.Context, fileID string) ([]models.Annotation, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/files/"+fileID+"/annotations", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out models.AnnotationsResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out.Annotations, nil
}

// SaveAnnotations replaces a file's annotation set with the given one.
// It satisfies the saver contract used by the autosave controller.
func (c *Client) SaveAnnotations(ctx context.Context, fileID string, annotations []models.Annotation) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/files/"+fileID+"/annotations",
		models.SaveAnnotationsRequest{Annotations: annotations})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: "token", Value: c.token})
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	return resp, nil
}

func decode(resp *http.Response, out any) error {
	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}

	var apiErr models.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr); err == nil && apiErr.Message != "" {
		return mapStatus(resp.StatusCode, apiErr.Message)
	}
	return mapStatus(resp.StatusCode, resp.Status)
}

func mapStatus(code int, msg string) error {
	switch code {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, models.ErrNotFound)
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", msg, models.ErrUnauthorized)
	default:
		return fmt.Errorf("server returned %d: %s", code, msg)
	}
}
