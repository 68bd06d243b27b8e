package services

import (
	"bytes"
	"encoding/json"
	"strings"

	"testdesk/models"
)

type AnswerKind int

const (
	AnswerEmpty AnswerKind = iota
	AnswerSingle
	AnswerMultiple
)

// SelectedAnswer is a decoded selection. Single and Multiple hold canonical
// strings; trimming happens at comparison time.
type SelectedAnswer struct {
	Kind     AnswerKind
	Single   string
	Multiple []string
}

func (a SelectedAnswer) Answered() bool {
	return a.Kind != AnswerEmpty
}

// DecodeSelectedAnswer classifies raw JSON. null, blank strings, the literal
// "undefined" and empty arrays all count as no answer.
func DecodeSelectedAnswer(raw []byte) SelectedAnswer {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return SelectedAnswer{Kind: AnswerEmpty}
	}

	switch raw[0] {
	case 'n':
		return SelectedAnswer{Kind: AnswerEmpty}
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return SelectedAnswer{Kind: AnswerEmpty}
		}
		if strings.TrimSpace(s) == "" || s == "undefined" {
			return SelectedAnswer{Kind: AnswerEmpty}
		}
		return SelectedAnswer{Kind: AnswerSingle, Single: s}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return SelectedAnswer{Kind: AnswerEmpty}
		}
		if len(items) == 0 {
			return SelectedAnswer{Kind: AnswerEmpty}
		}
		values := make([]string, 0, len(items))
		for _, item := range items {
			values = append(values, canonicalJSON(item))
		}
		return SelectedAnswer{Kind: AnswerMultiple, Multiple: values}
	}

	if !json.Valid(raw) {
		return SelectedAnswer{Kind: AnswerEmpty}
	}
	return SelectedAnswer{Kind: AnswerSingle, Single: canonicalJSON(raw)}
}

// AnswerStatus maps a raw selection onto the stored status column.
func AnswerStatus(raw []byte) string {
	if DecodeSelectedAnswer(raw).Answered() {
		return models.AnswerStatusAnswered
	}
	return models.AnswerStatusUnanswered
}
