package cpu

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolvePoolOptionsDefaults(t *testing.T) {
	cfg := resolvePoolOptions(nil)
	assert.Equal(t, runtime.NumCPU(), cfg.size)
	assert.Equal(t, 50*time.Microsecond, cfg.idleBackoff)
	assert.NotNil(t, cfg.logger)
}

func TestResolvePoolOptionsOverrides(t *testing.T) {
	cfg := resolvePoolOptions([]PoolOption{
		WithPoolSize(8),
		WithQueueBackoff(time.Millisecond),
	})
	assert.Equal(t, 8, cfg.size)
	assert.Equal(t, time.Millisecond, cfg.idleBackoff)
}

func TestResolvePoolOptionsRejectsNonPositiveSize(t *testing.T) {
	cfg := resolvePoolOptions([]PoolOption{WithPoolSize(0)})
	assert.Equal(t, 1, cfg.size)
}

func TestResolveDeviceOptionsSharesPool(t *testing.T) {
	pool := NewPool(WithPoolSize(1))
	defer pool.Close()

	cfg := resolveDeviceOptions([]DeviceOption{WithDevicePool(pool)})
	assert.Same(t, pool, cfg.pool)
}
