package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	tests := []string{
		"concurrent_inserts",
		"delete_repairs_chain",
	}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_UnexpectedFailureIsReported(t *testing.T) {
	result, err := Run(mustParse(t, `
name: unexpected
description: "an update of a missing block"
replicas: [a]
steps:
  - init: a
  - replica: a
    actions:
      - action: update
        block: {id: ghost, type: paragraph}
assertions:
  - type: block_absent
    block: ghost
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[1] (actions)")
	assert.Contains(t, result.Errors[0], "BLOCK_NOT_FOUND")
	assert.Equal(t, "BLOCK_NOT_FOUND", result.Trace[1].Error)
}

func TestRun_ExpectedErrorMustOccur(t *testing.T) {
	result, err := Run(mustParse(t, `
name: wrong_expectation
description: "a valid insert scripted to fail"
replicas: [a]
steps:
  - init: a
  - replica: a
    expect_error: VALIDATION_ERROR
    actions:
      - action: insert
        block: {id: x, type: paragraph}
assertions:
  - type: converged
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected VALIDATION_ERROR, actions succeeded")
}

func TestRun_SchemaRejection(t *testing.T) {
	result, err := Run(mustParse(t, `
name: bad_heading
description: "heading levels stop at 6"
replicas: [a]
steps:
  - init: a
  - replica: a
    expect_error: VALIDATION_ERROR
    actions:
      - action: insert
        block: {id: h, type: heading, attributes: {level: 9}}
assertions:
  - type: block_absent
    block: h
`))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Divergence(t *testing.T) {
	result, err := Run(mustParse(t, `
name: diverged
description: "replicas that never sync"
replicas: [a, b]
steps:
  - init: a
  - init: b
  - replica: a
    actions:
      - action: insert
        block: {id: only-a, type: paragraph}
assertions:
  - type: converged
  - type: children
    replica: b
    parent: root
    order: [only-a]
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Assertion failed: converged on b")
	assert.Contains(t, result.Errors[1], "Assertion failed: children on b")
}

func TestRun_UninitializedReplica(t *testing.T) {
	result, err := Run(mustParse(t, `
name: never_synced
description: "b never receives the document"
replicas: [a, b]
steps:
  - init: a
assertions:
  - type: block_absent
    block: x
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Contains(t, result.StateErrors["b"], "STATE_ERROR")
	assert.Contains(t, result.Errors[0], "on b")
}

func TestRun_AutoTimestamps(t *testing.T) {
	result, err := Run(mustParse(t, `
name: stamps
description: "inserts without timestamps get clock values"
replicas: [a]
auto_timestamps: true
steps:
  - init: a
  - replica: a
    actions:
      - action: insert
        block: {id: first, type: paragraph}
      - action: insert
        block: {id: second, type: paragraph, attributes: {timestamp: "kept"}}
      - action: insert
        block: {id: third, type: paragraph}
assertions:
  - type: converged
`))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	blocks := result.States["a"].Blocks
	assert.Equal(t, "0000000000001", blocks["first"].Timestamp())
	assert.Equal(t, "kept", blocks["second"].Timestamp())
	assert.Equal(t, "0000000000002", blocks["third"].Timestamp())
}

func TestRun_TextEditsConverge(t *testing.T) {
	result, err := Run(mustParse(t, `
name: text_edits
description: "a text replaced on one replica reaches the other"
replicas: [a, b]
steps:
  - init: a
  - replica: a
    actions:
      - action: insert
        block:
          id: t
          type: paragraph
          delta: [{insert: "the cat sat"}]
  - sync: {from: a, to: b}
  - replica: b
    actions:
      - action: update
        block:
          id: t
          type: paragraph
          delta: [{insert: "the bat sat"}]
  - sync: {from: b, to: a}
assertions:
  - type: text
    block: t
    want: the bat sat
  - type: converged
`))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
