package webhook

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"reditto/pkg/models"
)

// Workflow responses arrive in half a dozen shapes: item arrays with a
// "json" wrapper, {data}/{output}/{result} envelopes, stringified JSON,
// flat objects with inconsistent key names, or plain prose. Normalize
// maps any of them into one CanonicalResult and never fails: input
// with no recognizable structure just yields a sparse result.
//
// The resolution strategy is an ordered list of (match, extract)
// rules; the first rule whose matcher accepts the value wins.

const maxUnwrapDepth = 6

// candidate key names, scanned in priority order, first match wins
var (
	answerKeys = []string{"aiResponse", "ai_response", "output", "text", "response", "answer", "result"}
	doubtKeys  = []string{"originalDoubt", "original_doubt", "originalQuestion", "doubt", "input", "question", "prompt", "userQuestion", "doubt_text"}
	imageKeys  = []string{"doubtImages", "doubt_images", "imagesBase64", "images", "image_urls", "imageUrls"}
)

var essayEnvelopes = []string{"data", "output", "result"}

type rule struct {
	name    string
	matches func(v any) bool
	extract func(v any, depth int) models.CanonicalResult
}

// The rule extractors recurse through resolve, which walks this list,
// so the assignment happens in init to break the initialization cycle.
var rules []rule

func init() {
	rules = []rule{
		{name: "array-unwrap", matches: matchArray, extract: extractArray},
		{name: "envelope-unwrap", matches: matchEnvelope, extract: extractEnvelope},
		{name: "string-reparse", matches: matchJSONString, extract: extractJSONString},
		{name: "object", matches: matchObject, extract: extractObject},
		{name: "string-heuristics", matches: matchString, extract: extractStringHeuristics},
	}
}

// Normalize coerces an arbitrary decoded JSON value into the canonical
// result shape.
func Normalize(raw any) models.CanonicalResult {
	return resolve(raw, 0)
}

func resolve(v any, depth int) models.CanonicalResult {
	if depth > maxUnwrapDepth {
		return models.CanonicalResult{}
	}
	for _, r := range rules {
		if r.matches(v) {
			return r.extract(v, depth)
		}
	}
	// null or structureless primitive: no usable content
	return models.CanonicalResult{}
}

// --- rule 1: array unwrap ---------------------------------------------------

func matchArray(v any) bool {
	arr, ok := v.([]any)
	return ok && len(arr) > 0
}

func extractArray(v any, depth int) models.CanonicalResult {
	first := v.([]any)[0]
	// workflow-automation convention: one {json: ...} wrapper per item
	if obj, ok := first.(map[string]any); ok {
		if inner, ok := obj["json"]; ok {
			return resolve(inner, depth+1)
		}
	}
	return resolve(first, depth+1)
}

// --- rule 2: envelope unwrap ------------------------------------------------

func matchEnvelope(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	return envelopePayload(obj) != nil
}

func envelopePayload(obj map[string]any) map[string]any {
	for _, key := range essayEnvelopes {
		inner, ok := obj[key].(map[string]any)
		if !ok {
			continue
		}
		if hasAny(inner, "finalScore", "competencies", "feedback") {
			return inner
		}
	}
	return nil
}

func extractEnvelope(v any, depth int) models.CanonicalResult {
	return resolve(envelopePayload(v.(map[string]any)), depth+1)
}

func hasAny(obj map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

// --- rule 3: stringified JSON -----------------------------------------------

func matchJSONString(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	var parsed any
	return json.Unmarshal([]byte(s), &parsed) == nil
}

func extractJSONString(v any, depth int) models.CanonicalResult {
	var parsed any
	if err := json.Unmarshal([]byte(v.(string)), &parsed); err != nil {
		return models.CanonicalResult{}
	}
	return resolve(parsed, depth+1)
}

// --- rule 4: direct object mapping ------------------------------------------

func matchObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

func extractObject(v any, depth int) models.CanonicalResult {
	obj := v.(map[string]any)
	res := models.CanonicalResult{Raw: obj}

	for _, key := range answerKeys {
		if s, ok := asText(obj[key]); ok {
			res.AIResponse = s
			break
		}
	}
	for _, key := range doubtKeys {
		if s, ok := asText(obj[key]); ok {
			res.OriginalDoubt = s
			break
		}
	}
	for _, key := range imageKeys {
		if imgs, ok := asStringList(obj[key]); ok {
			res.DoubtImages = imgs
			break
		}
	}
	if s, ok := asText(obj["doubtImageUrl"]); ok {
		res.DoubtImageURL = s
	} else if s, ok := asText(obj["doubt_image_url"]); ok {
		res.DoubtImageURL = s
	}

	if s, ok := asText(obj["topic"]); ok {
		res.Topic = s
	} else if s, ok := asText(obj["Topic"]); ok {
		res.Topic = s
	}
	if s, ok := asText(obj["originalEssay"]); ok {
		res.OriginalEssay = s
	} else if s, ok := asText(obj["original_essay"]); ok {
		res.OriginalEssay = s
	}

	res.FinalScore = coerceScore(firstPresent(obj, "finalScore", "final_score"))
	res.Competencies = coerceCompetencies(obj["competencies"])
	res.Feedback = coerceFeedback(obj["feedback"])

	// secondary array convention: {items: [{json: ...}]}
	if res.AIResponse == "" && res.OriginalDoubt == "" &&
		res.FinalScore == nil && res.Competencies == nil {
		if items, ok := obj["items"].([]any); ok && len(items) > 0 {
			if itemObj, ok := items[0].(map[string]any); ok {
				if inner, ok := itemObj["json"]; ok {
					return resolve(inner, depth+1)
				}
			}
		}
	}

	return res
}

func firstPresent(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v
		}
	}
	return nil
}

// asText accepts scalar values only; objects and arrays never satisfy
// a text-field candidate, so key scanning continues past them.
func asText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

func asStringList(v any) ([]string, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// numeric-looking strings keep digits, dot and minus only
var nonNumericRe = regexp.MustCompile(`[^0-9.\-]`)

func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		stripped := nonNumericRe.ReplaceAllString(t, "")
		n, err := strconv.ParseFloat(stripped, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func coerceScore(v any) *float64 {
	if n, ok := coerceNumber(v); ok {
		return &n
	}
	return nil
}

func coerceCompetencies(v any) map[string]float64 {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(obj))
	for k, raw := range obj {
		if n, ok := coerceNumber(raw); ok {
			out[k] = n
		}
	}
	return out
}

// coerceFeedback always returns a complete structure; a missing or
// malformed feedback field yields the zero-value default so display
// code never needs nil checks.
func coerceFeedback(v any) *models.Feedback {
	obj, ok := v.(map[string]any)
	if !ok {
		return models.EmptyFeedback()
	}

	fb := &models.Feedback{}
	if s, ok := obj["summary"].(string); ok {
		fb.Summary = s
	}
	fb.Improvements = stringSlice(obj["improvements"])
	fb.Attention = stringSlice(obj["attention"])
	fb.Congratulations = stringSlice(obj["congratulations"])
	if cf, ok := obj["competencyFeedback"].(map[string]any); ok {
		fb.CompetencyFeedback = make(map[string]string, len(cf))
		for k, raw := range cf {
			if s, ok := raw.(string); ok {
				fb.CompetencyFeedback[k] = s
			}
		}
	}
	fb.EnsureDefaults()
	return fb
}

func stringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// --- rule 5: plain-string heuristics ----------------------------------------

const shortDoubtLimit = 200

var (
	answerMarkerRe = regexp.MustCompile(`(?i)\b(?:resposta|answer|response|resultado|output)\s*[:\-]\s*`)
	doubtMarkerRe  = regexp.MustCompile(`(?i)\b(?:original question|original doubt|d[úu]vida|pergunta|question|prompt)\s*[:\-]\s*`)
)

func matchString(v any) bool {
	_, ok := v.(string)
	return ok
}

func extractStringHeuristics(v any, _ int) models.CanonicalResult {
	s := strings.TrimSpace(v.(string))
	if s == "" {
		return models.CanonicalResult{}
	}

	// (a) first blank line splits question from answer
	if idx := strings.Index(s, "\n\n"); idx >= 0 {
		doubt := strings.TrimSpace(s[:idx])
		answer := strings.TrimSpace(s[idx+2:])
		if doubt != "" && answer != "" {
			return models.CanonicalResult{OriginalDoubt: doubt, AIResponse: answer}
		}
	}

	// (b) explicit markers
	aLoc := answerMarkerRe.FindStringIndex(s)
	dLoc := doubtMarkerRe.FindStringIndex(s)
	if aLoc != nil || dLoc != nil {
		var res models.CanonicalResult
		if aLoc != nil {
			end := len(s)
			if dLoc != nil && dLoc[0] > aLoc[1] {
				end = dLoc[0]
			}
			res.AIResponse = strings.TrimSpace(s[aLoc[1]:end])
		}
		if dLoc != nil {
			end := len(s)
			if aLoc != nil && aLoc[0] > dLoc[1] {
				end = aLoc[0]
			}
			res.OriginalDoubt = strings.TrimSpace(s[dLoc[1]:end])
		} else if aLoc != nil {
			res.OriginalDoubt = strings.TrimSpace(s[:aLoc[0]])
		}
		return res
	}

	// (c) a short interrogative is the question itself, unanswered
	if len(s) < shortDoubtLimit && strings.HasSuffix(s, "?") {
		return models.CanonicalResult{OriginalDoubt: s}
	}

	// (d) otherwise the whole string is the answer
	return models.CanonicalResult{AIResponse: s}
}
