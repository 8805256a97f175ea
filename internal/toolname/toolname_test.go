package toolname

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlias_ShortNamePassthrough(t *testing.T) {
	m := New()
	const name = "my_tool"
	assert.Equal(t, name, m.Alias(name))
	assert.False(t, m.HasMappings())
}

func TestAlias_ExactLengthPassthrough(t *testing.T) {
	m := New()
	name := strings.Repeat("a", MaxLength)
	assert.Equal(t, name, m.Alias(name))
	assert.False(t, m.HasMappings())
}

func TestAlias_LongNameMapping(t *testing.T) {
	m := New()
	const long = "mcp__awslabs_billing-cost-management-mcp-server__compute-optimizer"
	require.Greater(t, len(long), MaxLength)

	short := m.Alias(long)
	assert.LessOrEqual(t, len(short), MaxLength)
	assert.True(t, m.HasMappings())
	assert.Equal(t, long, m.Restore(short))
}

func TestAlias_ConsistentMapping(t *testing.T) {
	m := New()
	const long = "mcp__awslabs_billing-cost-management-mcp-server__compute-optimizer"

	short1 := m.Alias(long)
	short2 := m.Alias(long)
	assert.Equal(t, short1, short2)
}

func TestAlias_MultipleLongNamesAreUnique(t *testing.T) {
	m := New()
	names := []string{
		"mcp__awslabs_billing-cost-management-mcp-server__compute-optimizer",
		"mcp__awslabs_billing-cost-management-mcp-server__cost-optimization",
		"mcp__awslabs_billing-cost-management-mcp-server__bcm-pricing-calc",
	}

	seen := make(map[string]struct{})
	for _, name := range names {
		short := m.Alias(name)
		assert.LessOrEqual(t, len(short), MaxLength)
		seen[short] = struct{}{}
		assert.Equal(t, name, m.Restore(short))
	}
	assert.Len(t, seen, len(names))
}

func TestRestore_UnknownNamePassesThrough(t *testing.T) {
	m := New()
	assert.Equal(t, "unknown_tool", m.Restore("unknown_tool"))
}

func TestMeaningfulPrefix(t *testing.T) {
	assert.Equal(t, "compute_optimizer", meaningfulPrefix("mcp__awslabs_billing-cost-management-mcp-server__compute-optimizer"))
	assert.Equal(t, "name", meaningfulPrefix("some_very_long_tool_name"))
}
