package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"testdesk/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

type recordedEvent struct {
	Room    string
	Event   string
	Payload interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Notify(room, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{Room: room, Event: event, Payload: payload})
}

func (n *recordingNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Event == event {
			c++
		}
	}
	return c
}

func f64(v float64) *float64 { return &v }

func strPtr(s string) *string { return &s }

func opt(value string, correct bool) SnapshotOption {
	return SnapshotOption{Value: StringValue(value), Correct: correct}
}

func rawOpt(value string, correct bool) SnapshotOption {
	return SnapshotOption{Value: Value(value), Correct: correct}
}

func jsonAnswer(s string) json.RawMessage {
	return json.RawMessage(s)
}

// fixture is a test with one section holding a SINGLE, a MULTIPLE and a
// comprehension question, built through the catalog like production data.
type fixture struct {
	db        *gorm.DB
	redis     *redis.Client
	mr        *miniredis.Miniredis
	catalog   *CatalogService
	questions *QuestionService
	answers   *AnswerService
	attempts  *AttemptService
	notifier  *recordingNotifier

	test      *models.Test
	sectionID string
	single    *models.Question
	multiple  *models.Question
	passage   *models.Question
}

func newFixture(t *testing.T, allowNegative bool) *fixture {
	t.Helper()

	db := newTestDB(t)
	rdb, mr := newTestRedis(t)
	notifier := &recordingNotifier{}

	f := &fixture{
		db:        db,
		redis:     rdb,
		mr:        mr,
		catalog:   NewCatalogService(db, rdb, time.Minute),
		questions: NewQuestionService(db),
		answers:   NewAnswerService(db, notifier),
		notifier:  notifier,
	}
	f.attempts = NewAttemptService(db, f.catalog, NewRedisLocker(rdb, 10*time.Second, 5*time.Second), notifier)

	ctx := context.Background()
	var err error

	f.single, err = f.questions.CreateQuestion(ctx, "author", &CreateQuestionRequest{
		Question:    "2 + 2 = ?",
		Type:        models.QuestionTypeSimple,
		CorrectType: models.CorrectTypeSingle,
		Options: []CreateOptionRequest{
			{Value: "3"}, {Value: "4", Correct: true}, {Value: "5"},
		},
	})
	require.NoError(t, err)

	f.multiple, err = f.questions.CreateQuestion(ctx, "author", &CreateQuestionRequest{
		Question:    "Pick the primes",
		Type:        models.QuestionTypeSimple,
		CorrectType: models.CorrectTypeMultiple,
		Options: []CreateOptionRequest{
			{Value: "2", Correct: true}, {Value: "4"}, {Value: "5", Correct: true},
		},
	})
	require.NoError(t, err)

	f.passage, err = f.questions.CreateQuestion(ctx, "author", &CreateQuestionRequest{
		Question:  "Read the passage",
		Type:      models.QuestionTypeComprehensive,
		Paragraph: strPtr("Go was designed at Google."),
		Children: []CreateQuestionRequest{
			{
				Question: "Where was Go designed?", Type: models.QuestionTypeSimple, CorrectType: models.CorrectTypeSingle,
				Options: []CreateOptionRequest{{Value: "Google", Correct: true}, {Value: "Bell Labs"}},
			},
			{
				Question: "Is Go compiled?", Type: models.QuestionTypeSimple, CorrectType: models.CorrectTypeSingle,
				Options: []CreateOptionRequest{{Value: "yes", Correct: true}, {Value: "no"}},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, f.passage.Children, 2)

	f.test, err = f.catalog.CreateTest(ctx, &CreateTestRequest{
		Name:          "Mock exam",
		AllowNegative: allowNegative,
		Sections: []CreateSectionRequest{
			{Name: "General", MarksPerQn: f64(2), NegativeMarks: f64(0.5)},
		},
	})
	require.NoError(t, err)
	require.Len(t, f.test.Sections, 1)
	f.sectionID = f.test.Sections[0].ID

	added, err := f.catalog.AddQuestionsToSection(ctx, f.sectionID, &AddQuestionsRequest{
		QuestionIDs: []string{f.single.ID, f.multiple.ID, f.passage.ID},
	})
	require.NoError(t, err)
	require.Equal(t, 3, added)

	return f
}

func (f *fixture) save(t *testing.T, attemptID, questionID, selected string, seconds int) *models.StudentTestAnswer {
	t.Helper()
	var raw json.RawMessage
	if selected != "" {
		raw = jsonAnswer(selected)
	}
	answer, err := f.answers.SaveAnswer(context.Background(), &SaveAnswerRequest{
		AttemptID:        attemptID,
		QuestionID:       questionID,
		SectionID:        f.sectionID,
		SelectedAnswer:   raw,
		TimeTakenSeconds: seconds,
	})
	require.NoError(t, err)
	return answer
}
