package webhook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestNormalizeArrayJSONWrapper(t *testing.T) {
	t.Parallel()

	res := Normalize(decode(t, `[{"json": {"output": "X"}}]`))
	assert.Equal(t, "X", res.AIResponse)
}

func TestNormalizeArrayWithoutWrapper(t *testing.T) {
	t.Parallel()

	res := Normalize(decode(t, `[{"aiResponse": "direct"}]`))
	assert.Equal(t, "direct", res.AIResponse)
}

func TestNormalizeDataEnvelope(t *testing.T) {
	t.Parallel()

	res := Normalize(decode(t, `{"success": true, "data": {"finalScore": 900, "competencies": {"Competência I": 180}}}`))
	require.NotNil(t, res.FinalScore)
	assert.Equal(t, 900.0, *res.FinalScore)
	assert.Equal(t, 180.0, res.Competencies["Competência I"])
}

func TestNormalizeOutputAndResultEnvelopes(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"output", "result"} {
		res := Normalize(map[string]any{
			key: map[string]any{"finalScore": 720.0},
		})
		require.NotNil(t, res.FinalScore, key)
		assert.Equal(t, 720.0, *res.FinalScore, key)
	}
}

func TestNormalizeStringifiedJSON(t *testing.T) {
	t.Parallel()

	res := Normalize(`{"aiResponse": "parsed from string"}`)
	assert.Equal(t, "parsed from string", res.AIResponse)
}

func TestNormalizeKeyPriority(t *testing.T) {
	t.Parallel()

	// aiResponse outranks output, output outranks text
	res := Normalize(decode(t, `{"aiResponse": "a", "output": "b", "text": "c"}`))
	assert.Equal(t, "a", res.AIResponse)

	res = Normalize(decode(t, `{"output": "b", "text": "c"}`))
	assert.Equal(t, "b", res.AIResponse)
}

func TestNormalizeDoubtKeysAndImages(t *testing.T) {
	t.Parallel()

	res := Normalize(decode(t, `{
		"answer": "resp",
		"question": "qual?",
		"imagesBase64": ["data:image/png;base64,AAAA"]
	}`))
	assert.Equal(t, "resp", res.AIResponse)
	assert.Equal(t, "qual?", res.OriginalDoubt)
	assert.Equal(t, []string{"data:image/png;base64,AAAA"}, res.DoubtImages)
}

func TestNormalizeSkipsNonScalarCandidates(t *testing.T) {
	t.Parallel()

	// "output" holds an object, so the scan moves on to "text"
	res := Normalize(decode(t, `{"output": {"nested": true}, "text": "fallback"}`))
	assert.Equal(t, "fallback", res.AIResponse)
}

func TestNormalizeItemsJSONConvention(t *testing.T) {
	t.Parallel()

	res := Normalize(decode(t, `{"items": [{"json": {"response": "from items"}}]}`))
	assert.Equal(t, "from items", res.AIResponse)
}

func TestNormalizeFinalScoreStringCoercion(t *testing.T) {
	t.Parallel()

	res := Normalize(decode(t, `{"finalScore": "850 pontos"}`))
	require.NotNil(t, res.FinalScore)
	assert.Equal(t, 850.0, *res.FinalScore)
}

func TestNormalizeCompetencyStringCoercion(t *testing.T) {
	t.Parallel()

	res := Normalize(decode(t, `{"competencies": {
		"Competência I": "160 pontos",
		"Competência II": 120,
		"Competência III": "n/a"
	}}`))
	assert.Equal(t, 160.0, res.Competencies["Competência I"])
	assert.Equal(t, 120.0, res.Competencies["Competência II"])
	_, ok := res.Competencies["Competência III"]
	assert.False(t, ok)
}

func TestNormalizeFeedbackDefaultFill(t *testing.T) {
	t.Parallel()

	res := Normalize(decode(t, `{"finalScore": 600}`))
	require.NotNil(t, res.Feedback)
	assert.Equal(t, "", res.Feedback.Summary)
	assert.Empty(t, res.Feedback.Improvements)
	assert.NotNil(t, res.Feedback.Improvements)
	assert.NotNil(t, res.Feedback.CompetencyFeedback)

	res = Normalize(decode(t, `{"feedback": {"summary": "bom", "improvements": ["mais repertório"]}}`))
	require.NotNil(t, res.Feedback)
	assert.Equal(t, "bom", res.Feedback.Summary)
	assert.Equal(t, []string{"mais repertório"}, res.Feedback.Improvements)
	assert.NotNil(t, res.Feedback.Attention)
}

func TestNormalizeIdempotentOnCanonicalObject(t *testing.T) {
	t.Parallel()

	res := Normalize(decode(t, `{"aiResponse": "a", "originalDoubt": "d"}`))
	assert.Equal(t, "a", res.AIResponse)
	assert.Equal(t, "d", res.OriginalDoubt)
	// only change is the default-filled feedback structure
	require.NotNil(t, res.Feedback)
	assert.Equal(t, "", res.Feedback.Summary)
}

func TestNormalizeParagraphSplit(t *testing.T) {
	t.Parallel()

	res := Normalize("What is photosynthesis?\n\nPhotosynthesis is...")
	assert.Equal(t, "What is photosynthesis?", res.OriginalDoubt)
	assert.Equal(t, "Photosynthesis is...", res.AIResponse)
}

func TestNormalizeStringMarkers(t *testing.T) {
	t.Parallel()

	res := Normalize("Como calcular a área? Resposta: base vezes altura dividido por dois.")
	assert.Equal(t, "base vezes altura dividido por dois.", res.AIResponse)
	assert.Equal(t, "Como calcular a área?", res.OriginalDoubt)

	res = Normalize("Pergunta: quanto é 2+2? Resposta: quatro.")
	assert.Equal(t, "quatro.", res.AIResponse)
	assert.Equal(t, "quanto é 2+2?", res.OriginalDoubt)
}

func TestNormalizeShortQuestionString(t *testing.T) {
	t.Parallel()

	res := Normalize("Qual foi a causa da Primeira Guerra Mundial?")
	assert.Equal(t, "Qual foi a causa da Primeira Guerra Mundial?", res.OriginalDoubt)
	assert.Empty(t, res.AIResponse)
}

func TestNormalizeLongStringIsAnswer(t *testing.T) {
	t.Parallel()

	res := Normalize("A fotossíntese é o processo pelo qual as plantas convertem luz em energia química.")
	assert.Equal(t, "A fotossíntese é o processo pelo qual as plantas convertem luz em energia química.", res.AIResponse)
	assert.Empty(t, res.OriginalDoubt)
}

func TestNormalizeUnusableInput(t *testing.T) {
	t.Parallel()

	for _, raw := range []any{nil, 42.0, true} {
		res := Normalize(raw)
		assert.Empty(t, res.AIResponse)
		assert.Empty(t, res.OriginalDoubt)
		assert.Nil(t, res.FinalScore)
	}
}

func TestNormalizeDeeplyNestedStops(t *testing.T) {
	t.Parallel()

	// envelope cycle deeper than the unwrap budget yields an empty result
	v := any(map[string]any{"finalScore": 500.0})
	for i := 0; i < 10; i++ {
		v = []any{map[string]any{"json": v}}
	}
	res := Normalize(v)
	assert.Nil(t, res.FinalScore)
}

func TestNormalizeRetainsRawObject(t *testing.T) {
	t.Parallel()

	obj := map[string]any{"aiResponse": "a", "extra": "kept"}
	res := Normalize(obj)
	require.NotNil(t, res.Raw)
	assert.Equal(t, "kept", res.Raw["extra"])
}
