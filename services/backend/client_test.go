// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWith(srv.URL, "anon-key", srv.Client())
}

func TestGetUser(t *testing.T) {
	t.Run("resolves token", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/v1/user", r.URL.Path)
			assert.Equal(t, "anon-key", r.Header.Get("apikey"))
			assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]string{"id": "user-42"})
		})

		id, err := client.GetUser(context.Background(), "user-token")
		require.NoError(t, err)
		assert.Equal(t, "user-42", id)
	})

	t.Run("empty token is anonymous", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected for an empty token")
		})

		id, err := client.GetUser(context.Background(), "")
		require.NoError(t, err)
		assert.Empty(t, id)
	})

	t.Run("rejected token is an error", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid JWT", http.StatusUnauthorized)
		})

		_, err := client.GetUser(context.Background(), "expired-token")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 401")
	})
}

func TestRpc(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/rpc/is_admin", r.URL.Path)
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))

		var params map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "user-42", params["check_user_id"])

		w.Write([]byte("true"))
	})

	var isAdmin bool
	err := client.Rpc(context.Background(), "is_admin",
		map[string]any{"check_user_id": "user-42"}, &isAdmin)

	require.NoError(t, err)
	assert.True(t, isAdmin)
}

func TestSelect(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/courses", r.URL.Path)
		assert.Equal(t, "eq.published", r.URL.Query().Get("status"))
		w.Write([]byte(`[{"title":"Data Science"},{"title":"Web Dev"}]`))
	})

	q := url.Values{}
	q.Set("status", "eq.published")
	var rows []struct {
		Title string `json:"title"`
	}
	err := client.Select(context.Background(), "courses", q, &rows)

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Data Science", rows[0].Title)
}

func TestCount(t *testing.T) {
	t.Run("reads content-range total", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
			w.Header().Set("Content-Range", "0-0/37")
			w.Write([]byte(`[{"id":"x"}]`))
		})

		n, err := client.Count(context.Background(), "courses", nil)
		require.NoError(t, err)
		assert.Equal(t, 37, n)
	})

	t.Run("star form", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Range", "*/0")
			w.Write([]byte(`[]`))
		})

		n, err := client.Count(context.Background(), "courses", nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("missing header is an error", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		})

		_, err := client.Count(context.Background(), "courses", nil)
		assert.Error(t, err)
	})
}

func TestInsert(t *testing.T) {
	t.Run("minimal without result", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "return=minimal", r.Header.Get("Prefer"))
			w.WriteHeader(http.StatusCreated)
		})

		err := client.Insert(context.Background(), "chatbot_messages",
			map[string]string{"role": "user"}, nil)
		require.NoError(t, err)
	})

	t.Run("representation with result", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`[{"id":"conv-1"}]`))
		})

		var created []struct {
			ID string `json:"id"`
		}
		err := client.Insert(context.Background(), "chatbot_conversations",
			map[string]any{"user_id": nil}, &created)

		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, "conv-1", created[0].ID)
	})
}

func TestUpdate(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.conv-1", r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusNoContent)
	})

	q := url.Values{}
	q.Set("id", "eq.conv-1")
	err := client.Update(context.Background(), "chatbot_conversations", q,
		map[string]any{"updated_at": "2025-06-01T10:00:00Z"})

	require.NoError(t, err)
}

func TestDo_NonSuccessStatusIsError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"permission denied"}`, http.StatusForbidden)
	})

	err := client.Select(context.Background(), "courses", nil, &[]struct{}{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Contains(t, err.Error(), "permission denied")
}
