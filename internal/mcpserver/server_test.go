package mcpserver

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardofone/internal/config"
	"boardofone/internal/engine"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-dummy")
	os.Unsetenv("OPENAI_API_KEY")
	os.Unsetenv("VOYAGE_API_KEY")

	cfg := config.Default()
	cfg.Embeddings.Enabled = false

	comps, err := engine.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = comps.Close() })

	return New(comps)
}

func TestHandleStartRequiresStatement(t *testing.T) {
	srv := setupTestServer(t)
	_, _, err := srv.handleStart(context.Background(), nil, StartRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement")
}

func TestHandleStatusUnknownSession(t *testing.T) {
	srv := setupTestServer(t)
	_, _, err := srv.handleStatus(context.Background(), nil, SessionRequest{SessionID: "does-not-exist"})
	require.Error(t, err)
}

func TestHandleResultUnknownSession(t *testing.T) {
	srv := setupTestServer(t)
	_, _, err := srv.handleResult(context.Background(), nil, SessionRequest{SessionID: "does-not-exist"})
	require.Error(t, err)
}

func TestHandlePauseResumeKillUnknownSession(t *testing.T) {
	srv := setupTestServer(t)

	_, _, err := srv.handlePause(context.Background(), nil, SessionRequest{SessionID: "ghost"})
	require.Error(t, err)

	_, _, err = srv.handleResume(context.Background(), nil, SessionRequest{SessionID: "ghost"})
	require.Error(t, err)

	_, _, err = srv.handleKill(context.Background(), nil, KillRequest{SessionID: "ghost"})
	require.Error(t, err)
}
