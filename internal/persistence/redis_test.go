package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

func TestNewRedis_EmptyAddrDisablesClient(t *testing.T) {
	r := NewRedis(config.RedisConfig{}, zap.NewNop())

	assert.False(t, r.Enabled())
	assert.Nil(t, r.Handle())
	assert.Error(t, r.Ping(context.Background()))
	r.Close()
}

func TestNewPostgres_EmptyDSNUsesMemoryStore(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())

	assert.NoError(t, err)
	assert.False(t, pg.Enabled())
	assert.Nil(t, pg.PoolHandle())
	pg.Close()
}
