// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package backend is the HTTP client for the hosted backend service that
// owns all durable state: auth, relational tables and privilege-check RPCs.
//
// The backend speaks a PostgREST-style REST dialect:
//
//   - GET  /rest/v1/<table>?<filters>   row reads, filters in query params
//   - POST /rest/v1/<table>             row inserts (JSON body)
//   - PATCH /rest/v1/<table>?<filters>  row updates
//   - POST /rest/v1/rpc/<fn>            stored-procedure calls
//   - GET  /auth/v1/user                token → user resolution
//
// Every request carries the project anon key; user tokens ride along in the
// Authorization header where relevant. The chatbot treats this service as an
// external collaborator: it reads and writes rows but owns no schema.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("avs.chatbot.backend")

// Client issues authenticated HTTP calls against the backend project.
// Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
}

// NewClient builds a Client from SUPABASE_URL and SUPABASE_ANON_KEY.
// Both are required; their absence is a configuration error surfaced at
// startup rather than a crash at first use.
func NewClient() (*Client, error) {
	baseURL := os.Getenv("SUPABASE_URL")
	anonKey := os.Getenv("SUPABASE_ANON_KEY")
	if baseURL == "" {
		return nil, fmt.Errorf("SUPABASE_URL environment variable not set")
	}
	if anonKey == "" {
		return nil, fmt.Errorf("SUPABASE_ANON_KEY environment variable not set")
	}
	return NewClientWith(baseURL, anonKey, nil), nil
}

// NewClientWith builds a Client with explicit settings. Used by tests to
// point at an httptest server. A nil httpClient gets a 15s-timeout default;
// all calls here are short row operations, streaming never goes through
// this client.
func NewClientWith(baseURL, anonKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		anonKey:    anonKey,
	}
}

// GetUser resolves a bearer token to a user id via the auth service.
// An empty token short-circuits to ("", nil): anonymous is not an error.
func (c *Client) GetUser(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", nil
	}

	ctx, span := tracer.Start(ctx, "backend.GetUser")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("auth lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("auth lookup returned status %d: %s", resp.StatusCode, string(body))
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("failed to parse auth response: %w", err)
	}
	return user.ID, nil
}

// Rpc calls a stored procedure under /rest/v1/rpc. result may be nil when
// the return value is not needed.
func (c *Client) Rpc(ctx context.Context, fn string, params map[string]any, result any) error {
	ctx, span := tracer.Start(ctx, "backend.Rpc")
	defer span.End()
	span.SetAttributes(attribute.String("backend.rpc", fn))

	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal rpc params for %s: %w", fn, err)
	}
	return c.do(ctx, http.MethodPost, "/rest/v1/rpc/"+fn, nil, body, "", result, nil)
}

// Select reads rows from a table. filters uses PostgREST operators, e.g.
// {"status": "eq.published", "order": "created_at.desc", "limit": "5"}.
func (c *Client) Select(ctx context.Context, table string, filters url.Values, result any) error {
	ctx, span := tracer.Start(ctx, "backend.Select")
	defer span.End()
	span.SetAttributes(attribute.String("backend.table", table))

	return c.do(ctx, http.MethodGet, "/rest/v1/"+table, filters, nil, "", result, nil)
}

// Count returns the exact row count for a filtered table read without
// transferring rows, via the Content-Range response header.
func (c *Client) Count(ctx context.Context, table string, filters url.Values) (int, error) {
	ctx, span := tracer.Start(ctx, "backend.Count")
	defer span.End()
	span.SetAttributes(attribute.String("backend.table", table))

	if filters == nil {
		filters = url.Values{}
	}
	filters.Set("select", "id")
	filters.Set("limit", "1")

	var contentRange string
	err := c.do(ctx, http.MethodGet, "/rest/v1/"+table, filters, nil, "count=exact", nil, &contentRange)
	if err != nil {
		return 0, err
	}

	// Content-Range is "<from>-<to>/<total>" or "*/<total>".
	idx := strings.LastIndex(contentRange, "/")
	if idx < 0 || idx == len(contentRange)-1 {
		return 0, fmt.Errorf("missing count in Content-Range %q for table %s", contentRange, table)
	}
	total, err := strconv.Atoi(contentRange[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("unparseable count in Content-Range %q for table %s: %w", contentRange, table, err)
	}
	return total, nil
}

// Insert appends a row. When result is non-nil the backend is asked to
// return the inserted representation; otherwise the write is minimal.
func (c *Client) Insert(ctx context.Context, table string, row any, result any) error {
	ctx, span := tracer.Start(ctx, "backend.Insert")
	defer span.End()
	span.SetAttributes(attribute.String("backend.table", table))

	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal insert for %s: %w", table, err)
	}
	prefer := "return=minimal"
	if result != nil {
		prefer = "return=representation"
	}
	return c.do(ctx, http.MethodPost, "/rest/v1/"+table, nil, body, prefer, result, nil)
}

// Update patches the rows selected by filters.
func (c *Client) Update(ctx context.Context, table string, filters url.Values, patch any) error {
	ctx, span := tracer.Start(ctx, "backend.Update")
	defer span.End()
	span.SetAttributes(attribute.String("backend.table", table))

	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to marshal update for %s: %w", table, err)
	}
	return c.do(ctx, http.MethodPatch, "/rest/v1/"+table, filters, body, "return=minimal", nil, nil)
}

// do performs one request against the REST surface. contentRange, when
// non-nil, receives the Content-Range response header.
func (c *Client) do(ctx context.Context, method, path string, query url.Values,
	body []byte, prefer string, result any, contentRange *string) error {

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request for %s: %w", method, path, err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.anonKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend call %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("backend call %s %s returned status %d: %s",
			method, path, resp.StatusCode, string(errBody))
	}

	if contentRange != nil {
		*contentRange = resp.Header.Get("Content-Range")
	}
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to parse backend response from %s: %w", path, err)
		}
	}
	return nil
}
