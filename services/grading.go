package services

import (
	"log"
	"math"
	"sort"
	"strings"

	"testdesk/models"
)

// TestTree is a test resolved for grading: sections in order, each with its
// placements and their frozen snapshots.
type TestTree struct {
	TestID        string        `json:"test_id"`
	AllowNegative bool          `json:"allow_negative"`
	Sections      []TreeSection `json:"sections"`
}

type TreeSection struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	MarksPerQn    float64         `json:"marks_per_qn"`
	NegativeMarks *float64        `json:"negative_marks"`
	Placements    []TreePlacement `json:"placements"`
}

// TreePlacement carries a nil Snapshot when the stored payload could not be
// resolved.
type TreePlacement struct {
	ID            string    `json:"id"`
	QuestionID    string    `json:"question_id"`
	Marks         *float64  `json:"marks"`
	NegativeMarks *float64  `json:"negative_marks"`
	Snapshot      *Snapshot `json:"snapshot"`
}

// Totals are the aggregate counters of an attempt or one of its sections.
type Totals struct {
	CorrectCount     int     `json:"correct_count"`
	WrongCount       int     `json:"wrong_count"`
	UnansweredCount  int     `json:"unanswered_count"`
	AnsweredCount    int     `json:"answered_count"`
	TotalMarks       float64 `json:"total_marks"`
	NegativeMarks    float64 `json:"negative_marks"`
	MaxPossibleMarks float64 `json:"max_possible_marks"`
	TotalTimeTaken   int     `json:"total_time_taken"`
}

func (t Totals) FinalScore() float64 {
	return t.TotalMarks - t.NegativeMarks
}

func (t Totals) TotalQuestions() int {
	return t.CorrectCount + t.WrongCount + t.UnansweredCount
}

func (t Totals) AvgTimePerQuestion() int {
	n := t.TotalQuestions()
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(t.TotalTimeTaken) / float64(n)))
}

type SectionTotals struct {
	SectionID string `json:"section_id"`
	Totals
}

// LeafOutcome is the verdict for one gradable leaf. AnswerID is empty when
// the student never saved an answer for it.
type LeafOutcome struct {
	SectionID     string  `json:"section_id"`
	PlacementID   string  `json:"placement_id"`
	QuestionID    string  `json:"question_id"`
	AnswerID      string  `json:"answer_id,omitempty"`
	Answered      bool    `json:"answered"`
	IsCorrect     bool    `json:"is_correct"`
	Marks         float64 `json:"marks"`
	NegativeMarks float64 `json:"negative_marks"`
	MarksScored   float64 `json:"marks_scored"`
}

type GradeReport struct {
	Totals
	Sections []SectionTotals `json:"sections"`
	Leaves   []LeafOutcome   `json:"leaves"`
}

// GradeAttempt scores answers against a resolved tree. It has no side
// effects besides logging unresolvable placements.
func GradeAttempt(tree *TestTree, answers []models.StudentTestAnswer) *GradeReport {
	byQuestion := make(map[string]*models.StudentTestAnswer, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	report := &GradeReport{
		Sections: make([]SectionTotals, 0, len(tree.Sections)),
		Leaves:   []LeafOutcome{},
	}

	for _, section := range tree.Sections {
		st := SectionTotals{SectionID: section.ID}

		for _, placement := range section.Placements {
			if placement.Snapshot == nil {
				log.Printf("[grading] test %s: placement %s (question %s) has no usable snapshot, counting as unanswered",
					tree.TestID, placement.ID, placement.QuestionID)
				st.UnansweredCount++
				continue
			}

			for _, leaf := range placement.Snapshot.Leaves() {
				marks, neg := resolveMarks(leaf, placement, section)

				answer := byQuestion[leaf.ID]
				var selected SelectedAnswer
				if answer != nil {
					selected = DecodeSelectedAnswer(answer.SelectedAnswer)
				}
				if !selected.Answered() {
					st.UnansweredCount++
					continue
				}

				st.AnsweredCount++
				st.TotalTimeTaken += answer.TimeTakenSeconds
				st.MaxPossibleMarks += marks

				outcome := LeafOutcome{
					SectionID:     section.ID,
					PlacementID:   placement.ID,
					QuestionID:    leaf.ID,
					AnswerID:      answer.ID,
					Answered:      true,
					IsCorrect:     isCorrect(leaf, selected),
					Marks:         marks,
					NegativeMarks: neg,
				}

				if outcome.IsCorrect {
					st.CorrectCount++
					st.TotalMarks += marks
					outcome.MarksScored = marks
				} else {
					st.WrongCount++
					if tree.AllowNegative && neg != 0 {
						st.NegativeMarks += neg
						outcome.MarksScored = -neg
					}
				}

				report.Leaves = append(report.Leaves, outcome)
			}
		}

		report.Sections = append(report.Sections, st)
		report.add(st.Totals)
	}

	return report
}

func (r *GradeReport) add(t Totals) {
	r.CorrectCount += t.CorrectCount
	r.WrongCount += t.WrongCount
	r.UnansweredCount += t.UnansweredCount
	r.AnsweredCount += t.AnsweredCount
	r.TotalMarks += t.TotalMarks
	r.NegativeMarks += t.NegativeMarks
	r.MaxPossibleMarks += t.MaxPossibleMarks
	r.TotalTimeTaken += t.TotalTimeTaken
}

// resolveMarks applies leaf > placement > section precedence.
func resolveMarks(leaf Leaf, placement TreePlacement, section TreeSection) (float64, float64) {
	marks := section.MarksPerQn
	if placement.Marks != nil {
		marks = *placement.Marks
	}
	if leaf.Marks != nil {
		marks = *leaf.Marks
	}

	var neg float64
	switch {
	case leaf.NegativeMarks != nil:
		neg = *leaf.NegativeMarks
	case placement.NegativeMarks != nil:
		neg = *placement.NegativeMarks
	case section.NegativeMarks != nil:
		neg = *section.NegativeMarks
	}

	return marks, neg
}

func isCorrect(leaf Leaf, selected SelectedAnswer) bool {
	switch leaf.CorrectType {
	case models.CorrectTypeSingle:
		if selected.Kind != AnswerSingle {
			return false
		}
		for _, o := range leaf.Options {
			if o.Correct {
				return strings.TrimSpace(selected.Single) == strings.TrimSpace(o.Value.Canonical())
			}
		}
		return false

	case models.CorrectTypeMultiple:
		if selected.Kind != AnswerMultiple {
			return false
		}
		want := make([]string, 0, len(leaf.Options))
		for _, o := range leaf.Options {
			if o.Correct {
				want = append(want, strings.TrimSpace(o.Value.Canonical()))
			}
		}
		got := make([]string, 0, len(selected.Multiple))
		for _, v := range selected.Multiple {
			got = append(got, strings.TrimSpace(v))
		}
		if len(want) != len(got) {
			return false
		}
		sort.Strings(want)
		sort.Strings(got)
		for i := range want {
			if want[i] != got[i] {
				return false
			}
		}
		return true
	}

	return false
}
