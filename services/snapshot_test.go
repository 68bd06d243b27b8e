package services

import (
	"encoding/json"
	"errors"
	"testing"

	"testdesk/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func liveQuestion(id, correctType string, options ...models.Option) models.Question {
	for i := range options {
		options[i].Position = i
	}
	return models.Question{
		ID:          id,
		Question:    "Question " + id,
		Type:        models.QuestionTypeSimple,
		CorrectType: correctType,
		Options:     options,
	}
}

func TestBuildSnapshotCorrectAnswer(t *testing.T) {
	tests := []struct {
		name        string
		correctType string
		options     []models.Option
		want        string
	}{
		{
			name:        "single picks first correct",
			correctType: models.CorrectTypeSingle,
			options:     []models.Option{{Value: "A"}, {Value: "B", Correct: true}, {Value: "C", Correct: true}},
			want:        `"B"`,
		},
		{
			name:        "single without correct option",
			correctType: models.CorrectTypeSingle,
			options:     []models.Option{{Value: "A"}, {Value: "B"}},
			want:        `null`,
		},
		{
			name:        "multiple lists every correct value",
			correctType: models.CorrectTypeMultiple,
			options:     []models.Option{{Value: "A", Correct: true}, {Value: "B"}, {Value: "C", Correct: true}},
			want:        `["A","C"]`,
		},
		{
			name:        "multiple without correct option",
			correctType: models.CorrectTypeMultiple,
			options:     []models.Option{{Value: "A"}},
			want:        `[]`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := liveQuestion("q1", tc.correctType, tc.options...)
			snap := SnapshotFromQuestion(&q)
			assert.JSONEq(t, tc.want, string(snap.CorrectAnswer))
		})
	}
}

func TestBuildSnapshotWireShape(t *testing.T) {
	q := liveQuestion("q1", models.CorrectTypeSingle, models.Option{Value: "3"}, models.Option{Value: "4", Correct: true})
	q.Question = "2+2?"
	attachments := []models.Attachment{{URL: "https://cdn.example.com/a.png", Type: "IMAGE"}}

	data, err := json.Marshal(BuildSnapshot(q, q.Options, attachments, nil))
	require.NoError(t, err)

	want := `{"id":"q1","question":"2+2?","explanation":null,"type":"SIMPLE","correctType":"SINGLE",` +
		`"paragraph":null,"correctAnswer":"4","options":[{"value":"3","correct":false},{"value":"4","correct":true}],` +
		`"attachments":[{"url":"https://cdn.example.com/a.png","type":"IMAGE"}],"children":[]}`
	assert.Equal(t, want, string(data))
}

func TestBuildSnapshotChildren(t *testing.T) {
	child := liveQuestion("c1", models.CorrectTypeMultiple, models.Option{Value: "x", Correct: true}, models.Option{Value: "y", Correct: true})
	parent := models.Question{
		ID:        "p1",
		Question:  "Passage",
		Type:      models.QuestionTypeComprehensive,
		Paragraph: strPtr("Once upon a time"),
	}

	snap := BuildSnapshot(parent, nil, nil, []models.Question{child})
	require.Len(t, snap.Children, 1)
	assert.JSONEq(t, `["x","y"]`, string(snap.Children[0].CorrectAnswer))
	assert.Empty(t, snap.Options)
	assert.NotNil(t, snap.Options)

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Once upon a time", decoded["paragraph"])

	children := decoded["children"].([]interface{})
	first := children[0].(map[string]interface{})
	assert.NotContains(t, first, "paragraph")
	assert.NotContains(t, first, "children")
	assert.Contains(t, first, "correctAnswer")

	leaves := snap.Leaves()
	require.Len(t, leaves, 1)
	assert.Equal(t, "c1", leaves[0].ID)
}

func TestParseSnapshotRoundTrip(t *testing.T) {
	raw := []byte(`{"id":"q9","question":"Pick","explanation":"because","type":"SIMPLE","correctType":"SINGLE",` +
		`"paragraph":null,"correctAnswer":4.50,"options":[{"value":4.50,"correct":true},{"value":true,"correct":false}],` +
		`"attachments":[],"children":[],"marks":3}`)

	snap, err := ParseSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, "4.5", snap.Options[0].Value.Canonical())
	assert.Equal(t, "true", snap.Options[1].Value.Canonical())
	require.NotNil(t, snap.Marks)
	assert.Equal(t, 3.0, *snap.Marks)

	again, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(again))
}

func TestParseSnapshotDoubleEncoded(t *testing.T) {
	inner := `{"id":"q1","question":"x","type":"SIMPLE","correctType":"SINGLE","options":[{"value":"A","correct":true}]}`
	outer, err := json.Marshal(inner)
	require.NoError(t, err)

	snap, err := ParseSnapshot(outer)
	require.NoError(t, err)
	assert.Equal(t, "q1", snap.ID)
	assert.Equal(t, "A", snap.Options[0].Value.Canonical())
}

func TestParseSnapshotErrors(t *testing.T) {
	_, err := ParseSnapshot(nil)
	assert.True(t, errors.Is(err, ErrSnapshotMissing))

	_, err = ParseSnapshot([]byte("null"))
	assert.True(t, errors.Is(err, ErrSnapshotMissing))

	_, err = ParseSnapshot([]byte(`{"id":`))
	assert.True(t, errors.Is(err, ErrMalformedSnapshot))

	_, err = ParseSnapshot([]byte(`"not json"`))
	assert.True(t, errors.Is(err, ErrMalformedSnapshot))
}

func TestResolveSnapshot(t *testing.T) {
	live := liveQuestion("q1", models.CorrectTypeSingle, models.Option{Value: "new", Correct: true})
	frozen := liveQuestion("q1", models.CorrectTypeSingle, models.Option{Value: "old", Correct: true})
	payload, err := json.Marshal(SnapshotFromQuestion(&frozen))
	require.NoError(t, err)

	t.Run("prefers frozen payload", func(t *testing.T) {
		snap, err := ResolveSnapshot(&models.TestQuestion{QuestionSnapshot: datatypes.JSON(payload)}, &live)
		require.NoError(t, err)
		assert.Equal(t, "old", snap.Options[0].Value.Canonical())
	})

	t.Run("falls back to live question", func(t *testing.T) {
		snap, err := ResolveSnapshot(&models.TestQuestion{}, &live)
		require.NoError(t, err)
		assert.Equal(t, "new", snap.Options[0].Value.Canonical())
	})

	t.Run("malformed payload is not replaced", func(t *testing.T) {
		_, err := ResolveSnapshot(&models.TestQuestion{QuestionSnapshot: datatypes.JSON(`{"id":`)}, &live)
		assert.True(t, errors.Is(err, ErrMalformedSnapshot))
	})

	t.Run("nothing to resolve", func(t *testing.T) {
		_, err := ResolveSnapshot(&models.TestQuestion{}, nil)
		assert.True(t, errors.Is(err, ErrSnapshotMissing))
	})
}
