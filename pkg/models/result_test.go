package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackEnsureDefaults(t *testing.T) {
	f := &Feedback{Summary: "bom texto"}
	f.EnsureDefaults()

	b, err := json.Marshal(f)
	require.NoError(t, err)

	// nil slices and maps must serialize as empty, never null
	assert.NotContains(t, string(b), "null")
	assert.Contains(t, string(b), `"improvements":[]`)
	assert.Contains(t, string(b), `"competencyFeedback":{}`)
}

func TestCanonicalResultOmitsRaw(t *testing.T) {
	score := 800.0
	r := CanonicalResult{
		FinalScore: &score,
		Raw:        map[string]any{"secret": "upstream"},
	}

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "upstream")
	assert.Contains(t, string(b), `"finalScore":800`)
}
