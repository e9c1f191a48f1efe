package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-hq/conclave/config"
	"github.com/conclave-hq/conclave/pkg/actor"
)

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "one", firstLine("one\ntwo\nthree"))
	assert.Equal(t, "single", firstLine("single"))
	assert.Equal(t, "", firstLine("\nrest"))
}

func TestNewLogger_FormatMapping(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Format = "console"
	assert.NotNil(t, newLogger(cfg))

	cfg.Logging.Format = "json"
	cfg.Logging.Level = "debug"
	assert.NotNil(t, newLogger(cfg))
}

func TestWithActor_ResolvesBearerToken(t *testing.T) {
	resolver := actor.NewTokenResolver("test-secret")
	token, err := resolver.Generate(actor.Identity{ID: "usr-1", DisplayName: "Dana"}, time.Hour)
	require.NoError(t, err)

	var got actor.Identity
	handler := withActor(resolver, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = actor.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "usr-1", got.ID)
	assert.Equal(t, "Dana", got.DisplayName)
}

func TestWithActor_NoTokenFallsBackToOperator(t *testing.T) {
	resolver := actor.NewTokenResolver("test-secret")

	var got actor.Identity
	handler := withActor(resolver, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = actor.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, actor.DefaultOperator, got)
}

func TestWithActor_RejectsBadToken(t *testing.T) {
	resolver := actor.NewTokenResolver("test-secret")

	called := false
	handler := withActor(resolver, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestDBCommand_HasMigrateAndStatus(t *testing.T) {
	cmd := newDBCommand()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "migrate")
	assert.Contains(t, names, "status")
}

func TestMeetingCommand_Subcommands(t *testing.T) {
	cmd := newMeetingCommand()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"create", "list", "show", "join", "end", "status",
		"summarize", "chat", "add-task", "set-task-status", "tasks"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	defer versionCmd.SetOut(nil)

	require.NoError(t, versionCmd.RunE(versionCmd, nil))
	assert.Contains(t, out.String(), "conclave version")
	assert.Contains(t, out.String(), "commit:")
}
