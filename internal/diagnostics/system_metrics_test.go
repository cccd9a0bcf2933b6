package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollect(t *testing.T) {
	c := NewCollector()
	stats := c.Collect()

	assert.Greater(t, stats.CPUCores, 0)
	assert.Greater(t, stats.MemTotalMB, 0.0)
	assert.GreaterOrEqual(t, stats.MemPercent, 0.0)
	assert.LessOrEqual(t, stats.MemPercent, 100.0)
}

func TestCollectCachesHardwareInfo(t *testing.T) {
	c := NewCollector()
	first := c.Collect()
	second := c.Collect()

	assert.Equal(t, first.CPUCores, second.CPUCores)
	assert.Equal(t, first.CPUModel, second.CPUModel)
}
