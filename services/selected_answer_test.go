package services

import (
	"testing"

	"testdesk/models"

	"github.com/stretchr/testify/assert"
)

func TestDecodeSelectedAnswer(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		kind     AnswerKind
		single   string
		multiple []string
	}{
		{name: "missing", raw: "", kind: AnswerEmpty},
		{name: "null", raw: "null", kind: AnswerEmpty},
		{name: "empty string", raw: `""`, kind: AnswerEmpty},
		{name: "whitespace string", raw: `"   "`, kind: AnswerEmpty},
		{name: "undefined literal", raw: `"undefined"`, kind: AnswerEmpty},
		{name: "empty array", raw: `[]`, kind: AnswerEmpty},
		{name: "invalid json", raw: `{"selected":`, kind: AnswerEmpty},
		{name: "string", raw: `"B"`, kind: AnswerSingle, single: "B"},
		{name: "padded string kept verbatim", raw: `" B "`, kind: AnswerSingle, single: " B "},
		{name: "integer", raw: `4`, kind: AnswerSingle, single: "4"},
		{name: "float in long form", raw: `4.50`, kind: AnswerSingle, single: "4.5"},
		{name: "bool", raw: `true`, kind: AnswerSingle, single: "true"},
		{name: "string array", raw: `["A","C"]`, kind: AnswerMultiple, multiple: []string{"A", "C"}},
		{name: "mixed array", raw: `["A", 2, false]`, kind: AnswerMultiple, multiple: []string{"A", "2", "false"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DecodeSelectedAnswer([]byte(tc.raw))
			assert.Equal(t, tc.kind, got.Kind)
			assert.Equal(t, tc.single, got.Single)
			assert.Equal(t, tc.multiple, got.Multiple)
			assert.Equal(t, tc.kind != AnswerEmpty, got.Answered())
		})
	}
}

func TestAnswerStatus(t *testing.T) {
	assert.Equal(t, models.AnswerStatusUnanswered, AnswerStatus(nil))
	assert.Equal(t, models.AnswerStatusUnanswered, AnswerStatus([]byte(`"undefined"`)))
	assert.Equal(t, models.AnswerStatusUnanswered, AnswerStatus([]byte(`[]`)))
	assert.Equal(t, models.AnswerStatusAnswered, AnswerStatus([]byte(`"A"`)))
	assert.Equal(t, models.AnswerStatusAnswered, AnswerStatus([]byte(`["A"]`)))
}
