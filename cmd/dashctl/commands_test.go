package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/lighthouse-paas/internal/client"
	"github.com/melih/lighthouse-paas/internal/logging"
)

const base = "http://dash.test"

func jsonResponder(status int, body string) httpmock.Responder {
	return func(*http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(status, body)
		resp.Header.Set("Content-Type", "application/json")
		return resp, nil
	}
}

func newTestApp(t *testing.T, asJSON bool) (*app, *httpmock.MockTransport, *bytes.Buffer) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	c, err := client.New(base, client.WithHTTPClient(&http.Client{Transport: mt}))
	require.NoError(t, err)
	out := &bytes.Buffer{}
	return &app{api: c, out: out, json: asJSON, tail: 50, log: logging.Discard()}, mt, out
}

func registerDashboard(mt *httpmock.MockTransport) {
	mt.RegisterResponder(http.MethodGet, base+"/api/categories", jsonResponder(200, `{"categories": {
		"a": {"id": "a", "name": "Media", "icon": "film", "containers": ["plex"], "position": 0},
		"b": {"id": "b", "name": "Tools", "icon": "wrench", "containers": [], "position": 1},
		"c": {"id": "c", "name": "Network", "icon": "wifi", "containers": ["pihole"], "position": 2}
	}}`))
	mt.RegisterResponder(http.MethodGet, base+"/api/containers", jsonResponder(200, `{
		"default": {"containers": [{"name": "plex", "status": "running"}, {"name": "pihole", "status": "stopped"}]}
	}`))
	mt.RegisterResponder(http.MethodGet, base+"/api/health", jsonResponder(200, `{"status":"success"}`))
}

func TestUnknownCommand(t *testing.T) {
	a, _, _ := newTestApp(t, false)
	err := a.run(context.Background(), []string{"frobnicate"})
	assert.True(t, errors.Is(err, errUsage))

	err = a.run(context.Background(), []string{"reorder", "a"})
	assert.True(t, errors.Is(err, errUsage))
}

func TestGroupsTable(t *testing.T) {
	a, mt, out := newTestApp(t, false)
	mt.RegisterResponder(http.MethodGet, base+"/api/groups", jsonResponder(200, `{"groups":[
		{"key":"Media","icon":"film","containers":[{"name":"plex","status":"running","port":"32400","image":"plex:latest"}]}
	]}`))

	require.NoError(t, a.run(context.Background(), []string{"groups"}))
	assert.Contains(t, out.String(), "Group")
	assert.Contains(t, out.String(), "plex")
	assert.Contains(t, out.String(), "32400")
}

func TestCategoriesJSONInDisplayOrder(t *testing.T) {
	a, mt, out := newTestApp(t, true)
	registerDashboard(mt)

	require.NoError(t, a.run(context.Background(), []string{"categories"}))
	var got []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestReorderSavesFullOrder(t *testing.T) {
	a, mt, out := newTestApp(t, true)
	registerDashboard(mt)

	var saved map[string]map[string]int
	mt.RegisterResponder(http.MethodPost, base+"/api/categories/order", func(req *http.Request) (*http.Response, error) {
		data, _ := io.ReadAll(req.Body)
		if err := json.Unmarshal(data, &saved); err != nil {
			return nil, err
		}
		return jsonResponder(200, `{"status":"success"}`)(req)
	})

	require.NoError(t, a.run(context.Background(), []string{"reorder", "c", "a"}))

	assert.Equal(t, map[string]map[string]int{
		"c":     {"position": 0},
		"a":     {"position": 1},
		"b":     {"position": 2},
		"other": {"position": 3},
	}, saved)

	var positions map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &positions))
	assert.Equal(t, 0, positions["c"])
}

func TestReorderFailureSurfaces(t *testing.T) {
	a, mt, _ := newTestApp(t, false)
	registerDashboard(mt)
	mt.RegisterResponder(http.MethodPost, base+"/api/categories/order", jsonResponder(500, `{"status":"error","message":"db locked"}`))

	err := a.run(context.Background(), []string{"reorder", "c", "a"})
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "db locked", apiErr.Message)
}

func TestToggleAndLogs(t *testing.T) {
	a, mt, out := newTestApp(t, false)
	mt.RegisterResponder(http.MethodPost, base+"/api/toggle/plex", jsonResponder(200, `{"status":"success","state":"running"}`))
	mt.RegisterResponderWithQuery(http.MethodGet, base+"/api/container/plex/logs", "tail=50", httpmock.NewStringResponder(200, "hello\n"))

	require.NoError(t, a.run(context.Background(), []string{"toggle", "plex"}))
	assert.Equal(t, "plex is now running\n", out.String())

	out.Reset()
	require.NoError(t, a.run(context.Background(), []string{"logs", "plex"}))
	assert.Equal(t, "hello\n", out.String())
}
