package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"testdesk/models"
)

// Value is a JSON scalar kept exactly as it was written, so a snapshot
// re-serializes to the same bytes it was parsed from.
type Value json.RawMessage

func StringValue(s string) Value {
	b, _ := json.Marshal(s)
	return Value(b)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return []byte(v), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	*v = append((*v)[0:0], data...)
	return nil
}

// Canonical renders the value the way answers are compared: strings
// unquoted, numbers in shortest form, everything else as literal JSON.
func (v Value) Canonical() string {
	return canonicalJSON(json.RawMessage(v))
}

func canonicalJSON(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return string(raw)
		}
		return s
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return string(raw)
		}
		return buf.String()
	case 't', 'f', 'n':
		return string(raw)
	}

	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return string(raw)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type SnapshotOption struct {
	Value   Value `json:"value"`
	Correct bool  `json:"correct"`
}

type SnapshotAttachment struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Snapshot is the frozen question payload stored on a placement.
type Snapshot struct {
	ID            string               `json:"id"`
	Question      string               `json:"question"`
	Explanation   *string              `json:"explanation"`
	Type          string               `json:"type"`
	CorrectType   string               `json:"correctType"`
	Paragraph     *string              `json:"paragraph"`
	CorrectAnswer json.RawMessage      `json:"correctAnswer"`
	Options       []SnapshotOption     `json:"options"`
	Attachments   []SnapshotAttachment `json:"attachments"`
	Children      []ChildSnapshot      `json:"children"`
	Marks         *float64             `json:"marks,omitempty"`
	NegativeMarks *float64             `json:"negativeMarks,omitempty"`
}

// ChildSnapshot is a sub-question of a comprehension passage.
type ChildSnapshot struct {
	ID            string               `json:"id"`
	Question      string               `json:"question"`
	Explanation   *string              `json:"explanation"`
	Type          string               `json:"type"`
	CorrectType   string               `json:"correctType"`
	CorrectAnswer json.RawMessage      `json:"correctAnswer"`
	Options       []SnapshotOption     `json:"options"`
	Attachments   []SnapshotAttachment `json:"attachments"`
	Marks         *float64             `json:"marks,omitempty"`
	NegativeMarks *float64             `json:"negativeMarks,omitempty"`
}

// Leaf is the unit grading works on.
type Leaf struct {
	ID            string
	CorrectType   string
	Options       []SnapshotOption
	Marks         *float64
	NegativeMarks *float64
}

// Leaves flattens a comprehension passage into its children; any other
// question is its own single leaf.
func (s *Snapshot) Leaves() []Leaf {
	if s.Type != models.QuestionTypeComprehensive {
		return []Leaf{{
			ID:            s.ID,
			CorrectType:   s.CorrectType,
			Options:       s.Options,
			Marks:         s.Marks,
			NegativeMarks: s.NegativeMarks,
		}}
	}

	leaves := make([]Leaf, 0, len(s.Children))
	for _, c := range s.Children {
		leaves = append(leaves, Leaf{
			ID:            c.ID,
			CorrectType:   c.CorrectType,
			Options:       c.Options,
			Marks:         c.Marks,
			NegativeMarks: c.NegativeMarks,
		})
	}
	return leaves
}

// BuildSnapshot freezes a question, its options, attachments and children
// into the payload grading binds to.
func BuildSnapshot(q models.Question, options []models.Option, attachments []models.Attachment, children []models.Question) Snapshot {
	opts := snapshotOptions(options)

	snap := Snapshot{
		ID:            q.ID,
		Question:      q.Question,
		Explanation:   q.Explanation,
		Type:          q.Type,
		CorrectType:   q.CorrectType,
		Paragraph:     q.Paragraph,
		CorrectAnswer: correctAnswer(q.CorrectType, opts),
		Options:       opts,
		Attachments:   snapshotAttachments(attachments),
		Children:      make([]ChildSnapshot, 0, len(children)),
	}

	for _, child := range children {
		childOpts := snapshotOptions(child.Options)
		snap.Children = append(snap.Children, ChildSnapshot{
			ID:            child.ID,
			Question:      child.Question,
			Explanation:   child.Explanation,
			Type:          child.Type,
			CorrectType:   child.CorrectType,
			CorrectAnswer: correctAnswer(child.CorrectType, childOpts),
			Options:       childOpts,
			Attachments:   snapshotAttachments(child.Attachments),
		})
	}

	return snap
}

// SnapshotFromQuestion builds a snapshot from a question loaded with its
// options, attachments and children.
func SnapshotFromQuestion(q *models.Question) Snapshot {
	return BuildSnapshot(*q, q.Options, q.Attachments, q.Children)
}

func snapshotOptions(options []models.Option) []SnapshotOption {
	sorted := make([]models.Option, len(options))
	copy(sorted, options)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})

	out := make([]SnapshotOption, 0, len(sorted))
	for _, o := range sorted {
		out = append(out, SnapshotOption{Value: StringValue(o.Value), Correct: o.Correct})
	}
	return out
}

func snapshotAttachments(attachments []models.Attachment) []SnapshotAttachment {
	out := make([]SnapshotAttachment, 0, len(attachments))
	for _, a := range attachments {
		out = append(out, SnapshotAttachment{URL: a.URL, Type: a.Type})
	}
	return out
}

func correctAnswer(correctType string, options []SnapshotOption) json.RawMessage {
	if correctType == models.CorrectTypeSingle {
		for _, o := range options {
			if o.Correct {
				b, _ := o.Value.MarshalJSON()
				return json.RawMessage(b)
			}
		}
		return json.RawMessage("null")
	}

	values := make([]Value, 0, len(options))
	for _, o := range options {
		if o.Correct {
			values = append(values, o.Value)
		}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return json.RawMessage("[]")
	}
	return json.RawMessage(b)
}

// ParseSnapshot decodes a stored snapshot. Payloads that were stored as a
// JSON string holding the document are unwrapped first.
func ParseSnapshot(raw []byte) (*Snapshot, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrSnapshotMissing
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
		}
		raw = []byte(strings.TrimSpace(inner))
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	return &snap, nil
}

// ResolveSnapshot returns the frozen payload of a placement, or rebuilds one
// from the live question when the placement never had a snapshot. A stored
// payload that does not decode is an error; it is never replaced by the live
// question.
func ResolveSnapshot(placement *models.TestQuestion, live *models.Question) (*Snapshot, error) {
	if hasSnapshot(placement.QuestionSnapshot) {
		return ParseSnapshot(placement.QuestionSnapshot)
	}
	if live == nil {
		return nil, ErrSnapshotMissing
	}
	snap := SnapshotFromQuestion(live)
	return &snap, nil
}

func hasSnapshot(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && string(trimmed) != "null"
}
