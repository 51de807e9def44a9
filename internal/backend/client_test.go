// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/driveagent/internal/session"
)

const testToken = "5d1c1c0e-9f6e-4d0a-a0c1-7b1f3e2d4c5b"

func newTestClient(t *testing.T, handler http.Handler, token string) (*Client, *session.Provider) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokens := session.NewMemoryProvider(token)
	client := NewClient(&ClientConfig{BaseURL: server.URL, Timeout: 5 * time.Second}, tokens, nil)
	return client, tokens
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

func TestGetJSON_SendsSessionHeader(t *testing.T) {
	var gotHeader, gotQuery string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(SessionHeader)
		gotQuery = r.URL.Query().Get("folder_id")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ok":true}`)
	}), testToken)

	var out struct{ OK bool }
	err := client.GetJSON(context.Background(), "/api/drive/list", url.Values{"folder_id": {"abc"}}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, testToken, gotHeader)
	assert.Equal(t, "abc", gotQuery)
}

func TestGetJSON_NoTokenIsAuthExpiredWithoutRequest(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}), "")

	err := client.GetJSON(context.Background(), "/api/drive/list", nil, nil)
	assert.True(t, IsAuthExpired(err), "got %v", err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestCall_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
		msg    string
	}{
		{"401", http.StatusUnauthorized, `{"detail":"Session not found or expired"}`, IsAuthExpired, ""},
		{"403", http.StatusForbidden, ``, IsAuthExpired, ""},
		{"400 detail", http.StatusBadRequest, `{"detail":"Chat session not initialized. Please sync a folder first."}`, IsRequestRejected, "Chat session not initialized. Please sync a folder first."},
		{"500", http.StatusInternalServerError, `oops`, IsRequestRejected, "oops"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}), testToken)

			err := client.PostJSON(context.Background(), "/api/chat", map[string]string{"message": "hi"}, nil)
			require.Error(t, err)
			assert.True(t, tc.check(err), "unexpected classification: %v", err)
			if tc.msg != "" {
				assert.Equal(t, tc.msg, err.Error())
			}
		})
	}
}

func TestCall_MalformedJSONIsProtocol(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"files": [`)
	}), testToken)

	var out map[string]interface{}
	err := client.GetJSON(context.Background(), "/api/drive/list", nil, &out)
	assert.True(t, IsProtocol(err), "got %v", err)
}

func TestCall_UnreachableIsTransport(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	client := NewClient(&ClientConfig{BaseURL: addr, Timeout: time.Second}, session.NewMemoryProvider(testToken), nil)
	err := client.GetJSON(context.Background(), "/api/drive/list", nil, nil)
	assert.True(t, IsTransport(err), "got %v", err)
	assert.True(t, Retryable(err))
}

func TestCall_CancelledContext(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}), testToken)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := client.GetJSON(ctx, "/slow", nil, nil)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestOpenStream(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.Header().Set("Content-Type", "application/x-ndjson")
			io.WriteString(w, "{\"status\":\"info\",\"message\":\"Scanning files...\"}\n")
		}), testToken)

		resp, err := client.OpenStream(context.Background(), "/api/sync", map[string]interface{}{"items": []string{"a"}})
		require.NoError(t, err)
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(data), "Scanning files")
	})

	t.Run("401", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}), testToken)
		resp, err := client.OpenStream(context.Background(), "/api/sync", nil)
		assert.Nil(t, resp)
		assert.True(t, IsAuthExpired(err), "got %v", err)
	})
}

func TestRateLimiter(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		io.WriteString(w, `{}`)
	}))
	defer server.Close()

	client := NewClient(&ClientConfig{BaseURL: server.URL, RequestsPerSecond: 20}, session.NewMemoryProvider(testToken), nil)

	start := time.Now()
	for i := 0; i < 25; i++ {
		require.NoError(t, client.GetJSON(context.Background(), "/x", nil, nil))
	}
	// burst of 20, then 5 more at 20/s needs roughly 250ms
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, int32(25), atomic.LoadInt32(&hits))
}

func TestConcurrentRequests(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		io.WriteString(w, `{}`)
	}), testToken)
	client.limiter = nil

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := client.GetJSON(context.Background(), "/x", nil, nil); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(10), atomic.LoadInt32(&hits))
}

// =============================================================================
// AUTH ENDPOINTS
// =============================================================================

func TestStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/status", r.URL.Path)
		if r.Header.Get(SessionHeader) == "" {
			io.WriteString(w, `{"authenticated": false}`)
			return
		}
		io.WriteString(w, `{"authenticated": true, "isApiKeySet": true, "user": {"name": "Ada", "email": "ada@example.com"}}`)
	}), testToken)

	status, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Authenticated)
	assert.True(t, status.APIKeySet)
	require.NotNil(t, status.User)
	assert.Equal(t, "ada@example.com", status.User.Email)
}

func TestStatus_AnonymousWithoutToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SessionHeader))
		io.WriteString(w, `{"authenticated": false}`)
	}), "")

	status, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Authenticated)
}

func TestLoginURL_EnsuresToken(t *testing.T) {
	var seen string
	client, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(SessionHeader)
		json.NewEncoder(w).Encode(map[string]string{"url": "https://accounts.google.com/o/oauth2/auth?state=" + seen})
	}), "")

	u, err := client.LoginURL(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.Token())
	assert.Equal(t, tokens.Token(), seen)
	assert.Contains(t, u, "state="+seen)
}

func TestLoginURL_MissingURL(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}), testToken)

	_, err := client.LoginURL(context.Background())
	assert.True(t, IsProtocol(err), "got %v", err)
}

func TestLogout_ClearsTokenEvenOnFailure(t *testing.T) {
	client, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}), testToken)

	err := client.Logout(context.Background())
	assert.True(t, IsRequestRejected(err), "got %v", err)
	assert.Empty(t, tokens.Token())
}

func TestLogout_NoTokenNoRequest(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}), "")

	require.NoError(t, client.Logout(context.Background()))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestSetAPIKey(t *testing.T) {
	var body map[string]string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/apikey", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, `{"message": "API Key saved"}`)
	}), testToken)

	require.NoError(t, client.SetAPIKey(context.Background(), "  AIzaSy-test  "))
	assert.Equal(t, "AIzaSy-test", body["api_key"])

	assert.ErrorIs(t, client.SetAPIKey(context.Background(), "   "), ErrEmptyAPIKey)
}
