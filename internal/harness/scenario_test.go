package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockdoc/internal/ir"
)

const minimalScenario = `
name: minimal
description: "one replica"
replicas: [a]
steps:
  - init: a
assertions:
  - type: converged
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, "scenario", s.DocID, "doc id defaults")
	assert.Equal(t, []string{"a"}, s.Replicas)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "init", s.Steps[0].Kind())
}

func TestParseScenario_StepKinds(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: kinds
description: "every step kind"
replicas: [a, b]
steps:
  - init: a
  - replica: a
    expect_error: INVALID_OPERATION
    actions:
      - action: insert
        block: {id: "", type: paragraph}
  - sync: {from: a, to: b}
  - sync_all: true
assertions:
  - type: converged
`))
	require.NoError(t, err)

	var kinds []string
	for _, step := range s.Steps {
		kinds = append(kinds, step.Kind())
	}
	assert.Equal(t, []string{"init", "actions", "sync", "sync_all"}, kinds)
	assert.Equal(t, ir.KindInvalidOperation, s.Steps[1].ExpectError)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    minimalScenario + "\nflow_token: x\n",
			wantErr: "field flow_token not found",
		},
		{
			name: "missing name",
			yaml: `
description: "d"
replicas: [a]
steps: [{init: a}]
assertions: [{type: converged}]
`,
			wantErr: "name is required",
		},
		{
			name: "no replicas",
			yaml: `
name: n
description: "d"
steps: [{init: a}]
assertions: [{type: converged}]
`,
			wantErr: "replicas list is required",
		},
		{
			name: "duplicate replica",
			yaml: `
name: n
description: "d"
replicas: [a, a]
steps: [{init: a}]
assertions: [{type: converged}]
`,
			wantErr: `duplicate replica "a"`,
		},
		{
			name: "unknown replica in step",
			yaml: `
name: n
description: "d"
replicas: [a]
steps: [{init: z}]
assertions: [{type: converged}]
`,
			wantErr: `steps[0]: unknown replica "z"`,
		},
		{
			name: "two kinds in one step",
			yaml: `
name: n
description: "d"
replicas: [a]
steps: [{init: a, sync_all: true}]
assertions: [{type: converged}]
`,
			wantErr: "exactly one of",
		},
		{
			name: "expect_error outside actions",
			yaml: `
name: n
description: "d"
replicas: [a]
steps: [{init: a, expect_error: STATE_ERROR}]
assertions: [{type: converged}]
`,
			wantErr: "expect_error only applies to actions",
		},
		{
			name: "children without parent",
			yaml: `
name: n
description: "d"
replicas: [a]
steps: [{init: a}]
assertions: [{type: children, order: [x]}]
`,
			wantErr: "parent is required",
		},
		{
			name: "unknown assertion",
			yaml: `
name: n
description: "d"
replicas: [a]
steps: [{init: a}]
assertions: [{type: trace_contains}]
`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestDecodeActions(t *testing.T) {
	actions, err := DecodeActions([]map[string]any{
		{
			"action": "Insert",
			"block": map[string]any{
				"id":         "h1",
				"type":       "heading",
				"parentId":   "page",
				"attributes": map[string]any{"level": 2},
				"delta":      []any{map[string]any{"insert": "Title"}},
			},
			"path": []any{0, 1},
		},
	})
	require.NoError(t, err)
	require.Len(t, actions, 1)

	a := actions[0]
	assert.Equal(t, ir.ActionInsert, a.Action)
	assert.Equal(t, "h1", a.Block.ID)
	assert.Equal(t, "page", a.Block.ParentID)
	assert.Equal(t, ir.Object{"level": ir.Int(2)}, a.Block.Attributes)
	assert.Equal(t, ir.Delta{ir.Insert("Title", nil)}, a.Block.Delta)
	assert.Equal(t, []uint32{0, 1}, a.Path)
}

func TestDecodeActions_Errors(t *testing.T) {
	_, err := DecodeActions([]map[string]any{{"action": "teleport", "block": map[string]any{"id": "x"}}})
	require.Error(t, err)
	assert.True(t, ir.IsInvalidOperation(err))

	_, err = DecodeActions([]map[string]any{{"block": map[string]any{"id": "x"}}})
	require.Error(t, err)
	assert.True(t, ir.IsInvalidOperation(err))

	_, err = ParseActionsJSON([]byte(`{"action":"insert"}`))
	require.Error(t, err)
	assert.Equal(t, ir.KindDecodingError, ir.KindOf(err))
}
