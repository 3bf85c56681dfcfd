package grader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{
			name:  "bare object",
			input: `{"finalScore": 800}`,
			want:  `{"finalScore": 800}`,
			ok:    true,
		},
		{
			name:  "fenced json block",
			input: "Aqui está a correção:\n```json\n{\"finalScore\": 720}\n```\nEspero ter ajudado.",
			want:  `{"finalScore": 720}`,
			ok:    true,
		},
		{
			name:  "fenced block without language tag",
			input: "```\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
			ok:    true,
		},
		{
			name:  "prose around object",
			input: `Claro! {"finalScore": 600, "competencies": {}} Fim.`,
			want:  `{"finalScore": 600, "competencies": {}}`,
			ok:    true,
		},
		{
			name:  "nested braces",
			input: `texto {"feedback": {"summary": "bom"}} texto`,
			want:  `{"feedback": {"summary": "bom"}}`,
			ok:    true,
		},
		{
			name:  "no json at all",
			input: "Desculpe, não consegui analisar a redação.",
			ok:    false,
		},
		{
			name:  "empty string",
			input: "",
			ok:    false,
		},
		{
			name:  "only opening brace",
			input: "resultado: {incompleto",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.input)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestExtractJSONPrefersFencedBlock(t *testing.T) {
	// A stray brace before the fence must not win over the fenced block.
	input := "nota {alta}\n```json\n{\"finalScore\": 900}\n```"
	got, ok := ExtractJSON(input)
	require.True(t, ok)
	assert.Equal(t, `{"finalScore": 900}`, got)
}
