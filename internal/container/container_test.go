package container

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/landrecords/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "land.db")
	cfg.Storage.BaseDir = filepath.Join(dir, "documents")
	cfg.Workflow.SweepInterval = time.Hour
	cfg.Workflow.PromotionInterval = time.Hour
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Storage.Backend = "minio"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err, "minio without endpoint")
}

func TestContainer_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	health := c.Health(ctx)
	assert.False(t, health.Overall)
	assert.False(t, c.Ready())

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "double start")

	health = c.Health(ctx)
	assert.True(t, health.Overall, "%+v", health.Components)
	for _, name := range []string{"database", "storage", "dispatcher", "workers"} {
		assert.True(t, health.Components[name].Healthy, name)
	}
	assert.Equal(t, 2, c.Workers().GetWorkerCount())
	assert.True(t, c.Dispatcher().Supports(entity.KeyExecuteWizard))
	assert.NotNil(t, c.Billing())
	assert.NotNil(t, c.Documents())

	s, err := c.Orchestrator().StartSession(ctx, entity.Actor{ID: "maker-1", Role: entity.RoleSubCityNormal, SubJurisdictionID: "SC-01"})
	require.NoError(t, err)
	assert.Equal(t, entity.SessionDraft, s.Status)

	pending, err := c.WorkflowEngine().ListPending(ctx, entity.Actor{ID: "admin-1", Role: entity.RoleSubCityAdmin}, "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close(), "double close")
	assert.Error(t, c.Start(ctx), "start after close")
}

func TestContainer_StartFailureReleasesDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "nfs"

	c := &Container{config: cfg, logger: zap.NewNop()}
	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage")
	assert.Nil(t, c.conn)
	assert.False(t, c.Ready())
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("request_id", "r-1", 42, "skipped", "error", errors.New("boom"), "dangling")
	require.Len(t, fields, 2)
	assert.Equal(t, "request_id", fields[0].Key)
	assert.Equal(t, "error", fields[1].Key)
}
