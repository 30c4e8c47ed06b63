package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/mapkeeper/pkg/api"
)

func newTestClient(url string) *Client {
	c := NewClient(url)
	c.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond))
	}
	return c
}

// TestNewClient проверяет создание нового клиента
func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL)

	assert.NotNil(t, client)
	assert.Equal(t, baseURL, client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}

func TestClient_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var req api.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "mapper", req.Username)

		_ = json.NewEncoder(w).Encode(api.TokenResponse{AccessToken: "tok", UserID: "u1", Roles: []string{"user"}, ExpiresIn: 900})
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Login(context.Background(), api.LoginRequest{Username: "mapper", Password: "secret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.AccessToken)
	assert.Equal(t, int64(900), resp.ExpiresIn)
}

func TestClient_Upload(t *testing.T) {
	t.Run("success sends bearer token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/changesets/12/upload", r.URL.Path)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

			var req api.UploadRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Drafts, 1)

			_ = json.NewEncoder(w).Encode(api.UploadResponse{Results: []api.DiffResult{
				{Type: "node", OldID: -1, NewID: 100, NewVersion: 1, Visible: true},
			}})
		}))
		defer server.Close()

		resp, err := newTestClient(server.URL).Upload(context.Background(), "tok", 12,
			api.UploadRequest{Drafts: []api.Draft{{Type: "node", ID: -1, Visible: true}}})
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, int64(100), resp.Results[0].NewID)
	})

	t.Run("conflict is reported and not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "Conflict", Message: "element outdated", Kind: "conflict"})
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).Upload(context.Background(), "tok", 1, api.UploadRequest{})
		require.Error(t, err)
		assert.True(t, IsConflict(err))
		assert.Contains(t, err.Error(), "element outdated")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("validation error is not a conflict", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "Bad Request", Message: "unknown placeholder", Kind: "validation"})
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).Upload(context.Background(), "tok", 1, api.UploadRequest{})
		require.Error(t, err)
		assert.False(t, IsConflict(err))
		assert.True(t, IsStatus(err, http.StatusBadRequest))
	})
}

func TestClient_GetRetries(t *testing.T) {
	t.Run("server errors are retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_ = json.NewEncoder(w).Encode(api.Changeset{ID: 5, Open: true})
		}))
		defer server.Close()

		cs, err := newTestClient(server.URL).GetChangeset(context.Background(), 5)
		require.NoError(t, err)
		assert.Equal(t, int64(5), cs.ID)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("not found is not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "Not Found", Message: "element not found"})
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).GetElement(context.Background(), "node", 1)
		require.Error(t, err)
		assert.True(t, IsStatus(err, http.StatusNotFound))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("retries give up", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).History(context.Background(), "way", 1)
		require.Error(t, err)
		assert.True(t, IsStatus(err, http.StatusInternalServerError))
		assert.Equal(t, int32(3), calls.Load())
	})
}

func TestClient_GetElementGone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/elements/node/7", r.URL.Path)
		w.WriteHeader(http.StatusGone)
		_ = json.NewEncoder(w).Encode(api.Element{Type: "node", ID: 7, Version: 3, Visible: false})
	}))
	defer server.Close()

	e, err := newTestClient(server.URL).GetElement(context.Background(), "node", 7)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusGone))
	require.NotNil(t, e)
	assert.Equal(t, int64(3), e.Version)
	assert.False(t, e.Visible)
}

func TestClient_CloseChangeset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/changesets/3/close", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	assert.NoError(t, newTestClient(server.URL).CloseChangeset(context.Background(), "tok", 3))
}
