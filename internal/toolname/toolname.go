// Package toolname handles tool names that exceed AWS Bedrock's 64-character
// limit by creating short, reversible aliases. Ported from the original
// implementation's ToolNameMapper (src/utils/tool_name_mapper.rs) into the
// request-scoped map the httpapi handlers stash in gin.Context under
// ctxkey.ToolNameMap.
package toolname

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
)

// MaxLength is AWS Bedrock's tool-name limit.
const MaxLength = 64

const shortNamePrefix = "t_"

// Map is a bidirectional, concurrency-safe original<->short name mapping
// scoped to a single request.
type Map struct {
	mu               sync.RWMutex
	originalToShort map[string]string
	shortToOriginal map[string]string
}

// New returns an empty Map.
func New() *Map {
	return &Map{
		originalToShort: make(map[string]string),
		shortToOriginal: make(map[string]string),
	}
}

// Alias returns a Bedrock-safe name for original, creating and remembering a
// short alias the first time a name over MaxLength is seen. Names already
// within the limit pass through unchanged.
func (m *Map) Alias(original string) string {
	if len(original) <= MaxLength {
		return original
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if short, ok := m.originalToShort[original]; ok {
		return short
	}

	short := generateShortName(original)
	m.originalToShort[original] = short
	m.shortToOriginal[short] = original
	return short
}

// Restore maps a (possibly aliased) name back to the original. Names that
// were never aliased pass through unchanged.
func (m *Map) Restore(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if original, ok := m.shortToOriginal[name]; ok {
		return original
	}
	return name
}

// HasMappings reports whether any alias has been created.
func (m *Map) HasMappings() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.originalToShort) > 0
}

// generateShortName builds a deterministic, collision-resistant alias in
// the form "t_<meaningful_prefix>_<hash>", falling back to "t_<hash>" if the
// prefix would push the result over MaxLength.
func generateShortName(original string) string {
	sum := sha256.Sum256([]byte(original))
	hash := hex.EncodeToString(sum[:])[:16]

	prefix := meaningfulPrefix(original)
	short := shortNamePrefix + prefix + "_" + hash
	if len(short) > MaxLength {
		return shortNamePrefix + hash
	}
	return short
}

// meaningfulPrefix extracts a short, human-recognizable fragment of the
// original name: for MCP-style names ("mcp__server__tool") it takes the
// tool segment; otherwise the last separator-delimited segment.
func meaningfulPrefix(name string) string {
	if strings.HasPrefix(name, "mcp__") {
		parts := strings.Split(name, "__")
		last := parts[len(parts)-1]
		return strings.ReplaceAll(truncate(last, 20), "-", "_")
	}

	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ':'
	})
	if len(parts) > 0 {
		return truncate(parts[len(parts)-1], 20)
	}
	return truncate(name, 20)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
