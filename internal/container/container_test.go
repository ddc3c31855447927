package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reliefdesk/reliefdesk-backend/internal/auth"
	"github.com/reliefdesk/reliefdesk-backend/internal/config"
	"github.com/reliefdesk/reliefdesk-backend/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() config.Config {
	cfg := *config.Load()
	cfg.Env = "test"
	cfg.Store.Driver = config.StoreDriverMemory
	cfg.Identity.Mode = config.IdentityModeDev
	cfg.Identity.DevRole = ""
	cfg.Notify.Async = false
	cfg.AWS.AccessKeyID = "test"
	cfg.AWS.SecretAccessKey = "test"
	cfg.AWS.EndpointURL = ""
	return cfg
}

func TestNew_MemoryDevStack(t *testing.T) {
	c, err := New(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer c.Cleanup()

	assert.IsType(t, &workflow.MemoryStore{}, c.Store)
	assert.IsType(t, &auth.DevProvider{}, c.Identity)
	assert.Nil(t, c.Database)
	assert.Nil(t, c.Queue)
	assert.Nil(t, c.Worker)
	assert.Nil(t, c.Sessions)

	handler, err := c.Router()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/me/permissions", nil)
	req.Header.Set(auth.DevRoleHeader, "ceo")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNew_UnreachableQueueFails(t *testing.T) {
	cfg := memoryConfig()
	cfg.Notify.Async = true
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
