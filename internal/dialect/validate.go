// Package dialect holds what both the anthropic and openai sub-packages
// share: tool input-schema validation and request struct validation,
// named as one shared concern in spec.md §2's domain stack rather than
// duplicated per dialect. Grounded on digitallysavvy-go-ai's
// pkg/schema.Validator seam (a Validate(data) error contract meant to be
// backed by jsonschema for JSON-Schema-shaped input and by
// go-playground/validator for Go-struct-shaped input) — that package left
// both backing implementations as TODOs; this package is the completed
// version of the same seam.
package dialect

import (
	"encoding/json"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/Laisky/errors/v2"
	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/laiskytech/converse-gateway/internal/model"
)

// structValidator is a single shared go-playground/validator instance;
// the package doc for v10 explicitly recommends caching one instance per
// application rather than constructing it per call.
var structValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct validates v against its `validate:"..."` struct tags,
// used by internal/httpapi when binding an incoming wire Request.
func ValidateStruct(v any) error {
	if err := structValidator.Struct(v); err != nil {
		return errors.Wrap(err, "request validation failed")
	}
	return nil
}

// schemaCache memoizes compiled tool input schemas keyed by their
// marshaled form, so a tool declared once in a long-lived conversation
// doesn't get recompiled on every turn.
var (
	schemaCacheMu sync.Mutex
	schemaCache   = map[string]*jsonschema.Schema{}
)

// ValidateToolInputSchema compiles the declared JSON Schema for a tool (as
// produced by json.Marshal on an `any`-typed InputSchema field) and
// validates a tool_use block's input against it. A schema that fails to
// compile is treated as a client error (an invalid tool declaration), not
// a server error.
func ValidateToolInputSchema(toolName string, schemaDoc, input any) error {
	key := toolName + ":" + schemaFingerprint(schemaDoc)
	schemaCacheMu.Lock()
	sch, cached := schemaCache[key]
	schemaCacheMu.Unlock()

	if !cached {
		c := jsonschema.NewCompiler()
		resourceURL := "mem://tool/" + toolName
		if err := c.AddResource(resourceURL, schemaDoc); err != nil {
			return errors.Wrap(err, "compile tool input schema")
		}
		compiled, err := c.Compile(resourceURL)
		if err != nil {
			return errors.Wrap(err, "compile tool input schema")
		}
		sch = compiled
		schemaCacheMu.Lock()
		schemaCache[key] = sch
		schemaCacheMu.Unlock()
	}

	if err := sch.Validate(input); err != nil {
		return errors.Wrap(err, "tool input does not match declared schema")
	}
	return nil
}

// ValidateToolUseBlocks checks every assistant tool_use block in messages
// against the matching declared tool's InputSchema, skipping blocks whose
// tool name isn't declared in tools (an assistant turn from an earlier
// part of a long-lived conversation may reference a tool the latest
// request no longer declares) or whose tool declares no schema at all.
func ValidateToolUseBlocks(messages []model.Message, tools []model.Tool) error {
	byName := make(map[string]model.Tool, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}

	for _, m := range messages {
		for _, b := range m.Content {
			if b.Type != model.ContentToolUse {
				continue
			}
			tool, ok := byName[b.ToolName]
			if !ok || tool.InputSchema == nil {
				continue
			}
			if err := ValidateToolInputSchema(b.ToolName, tool.InputSchema, b.ToolInput); err != nil {
				return errors.Wrapf(err, "tool_use %q (id %s)", b.ToolName, b.ToolUseID)
			}
		}
	}
	return nil
}

// schemaFingerprint hashes the marshaled schema so the cache key stays
// bounded in size regardless of schema complexity; a marshal failure
// falls back to a constant, which only costs a spurious recompile.
func schemaFingerprint(schemaDoc any) string {
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return "unmarshalable"
	}
	h := fnv.New64a()
	_, _ = h.Write(raw)
	return strconv.FormatUint(h.Sum64(), 16)
}
