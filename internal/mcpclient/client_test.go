package mcpclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafetyMeta_AsMap(t *testing.T) {
	m := SafetyMeta{AutoStopEnabled: true, AutoDeleteEnabled: false, AutoPurgeEnabled: true}
	got := m.asMap()

	assert.Equal(t, true, got["X-Mcp-Auto-Stop-Enabled"])
	assert.Equal(t, false, got["X-Mcp-Auto-Delete-Enabled"])
	assert.Equal(t, true, got["X-Mcp-Auto-Purge-Enabled"])
}

func TestSafetyMeta_AsMapZeroValue(t *testing.T) {
	got := SafetyMeta{}.asMap()
	assert.Equal(t, false, got["X-Mcp-Auto-Stop-Enabled"])
	assert.Equal(t, false, got["X-Mcp-Auto-Delete-Enabled"])
	assert.Equal(t, false, got["X-Mcp-Auto-Purge-Enabled"])
}
