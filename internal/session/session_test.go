package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigbrainhq/bigbrain/internal/catalog"
	"github.com/bigbrainhq/bigbrain/internal/domain"
	"github.com/bigbrainhq/bigbrain/internal/errors"
	"github.com/bigbrainhq/bigbrain/internal/session"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testGame() domain.Game {
	return domain.Game{
		GameID: "g1",
		Name:   "Capitals",
		Questions: []domain.Question{
			{
				QuestionID: "q1",
				Title:      "Capital of France?",
				Type:       domain.QuestionTypeSingle,
				TimeLimit:  10,
				Options: []domain.Option{
					{Text: "Paris", Correct: true},
					{Text: "London"},
				},
			},
			{
				QuestionID: "q2",
				Title:      "Prime numbers?",
				Type:       domain.QuestionTypeMultiple,
				TimeLimit:  20,
				Options: []domain.Option{
					{Text: "2", Correct: true},
					{Text: "3", Correct: true},
					{Text: "4"},
				},
			},
			{
				QuestionID: "q3",
				Title:      "The earth is flat.",
				Type:       domain.QuestionTypeBoolean,
				TimeLimit:  10,
				Options: []domain.Option{
					{Text: "true"},
					{Text: "false", Correct: true},
				},
			},
		},
	}
}

func makeRegistry(t *testing.T) (*session.Registry, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	r := session.NewRegistry(session.Config{
		Games: catalog.NewMemory(testGame()),
		Clock: clock.Now,
	})
	return r, clock
}

func TestStart(t *testing.T) {
	ctx := context.Background()
	r, _ := makeRegistry(t)

	id, err := r.Start(ctx, "g1")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	st, err := r.Status(ctx, id)
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, 0, st.Position)
	assert.Equal(t, 3, st.Questions)

	_, err = r.Start(ctx, "g1")
	require.Error(t, err, "second start without an intervening end must fail")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidState))

	_, err = r.Start(ctx, "nope")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestStartAgainAfterEnd(t *testing.T) {
	ctx := context.Background()
	r, _ := makeRegistry(t)

	id, err := r.Start(ctx, "g1")
	require.NoError(t, err)
	require.NoError(t, r.End(ctx, id))

	id2, err := r.Start(ctx, "g1")
	require.NoError(t, err)
	require.NotEqual(t, id, id2)

	// The ended session stays retrievable.
	_, err = r.Snapshot(ctx, id)
	require.NoError(t, err)
}

func TestJoin(t *testing.T) {
	ctx := context.Background()
	r, clock := makeRegistry(t)

	id, err := r.Start(ctx, "g1")
	require.NoError(t, err)

	p1, err := r.Join(ctx, id, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, p1)

	_, err = r.Join(ctx, id, "alice")
	assert.True(t, errors.IsCode(err, errors.CodeConflict), "duplicate name must be rejected")

	_, err = r.Join(ctx, id, "")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidArgument))

	// Past question 0's deadline joining is closed.
	clock.Advance(11 * time.Second)
	_, err = r.Join(ctx, id, "bob")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidState))
}

func TestJoinClosedAfterAdvance(t *testing.T) {
	ctx := context.Background()
	r, _ := makeRegistry(t)

	id, err := r.Start(ctx, "g1")
	require.NoError(t, err)

	_, err = r.Advance(ctx, id)
	require.NoError(t, err)

	_, err = r.Join(ctx, id, "late")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidState))
}

func TestSubmitAnswer(t *testing.T) {
	ctx := context.Background()
	r, clock := makeRegistry(t)

	id, err := r.Start(ctx, "g1")
	require.NoError(t, err)
	p1, err := r.Join(ctx, id, "alice")
	require.NoError(t, err)

	clock.Advance(4 * time.Second)
	rec, err := r.SubmitAnswer(ctx, p1, 0, []string{"Paris"})
	require.NoError(t, err)
	assert.True(t, rec.Correct)
	assert.Equal(t, 3, rec.Points, "10s question answered at 4s is worth round(6/2)")

	// Resubmitting before the deadline overwrites, last answer wins.
	clock.Advance(2 * time.Second)
	rec, err = r.SubmitAnswer(ctx, p1, 0, []string{"London"})
	require.NoError(t, err)
	assert.False(t, rec.Correct)
	assert.Equal(t, 0, rec.Points)

	// Wrong position is rejected, not recorded.
	_, err = r.SubmitAnswer(ctx, p1, 1, []string{"Paris"})
	assert.True(t, errors.IsCode(err, errors.CodeTiming))

	// Past the deadline the server refuses regardless of client timing.
	clock.Advance(10 * time.Second)
	_, err = r.SubmitAnswer(ctx, p1, 0, []string{"Paris"})
	assert.True(t, errors.IsCode(err, errors.CodeTiming))

	_, err = r.SubmitAnswer(ctx, "ghost", 0, []string{"Paris"})
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	// The late rejection did not clobber the recorded answer.
	require.NoError(t, r.End(ctx, id))
	snap, err := r.Snapshot(ctx, id)
	require.NoError(t, err)
	require.Len(t, snap.Players, 1)
	require.Len(t, snap.Players[0].Answers, 1)
	assert.Equal(t, []string{"London"}, snap.Players[0].Answers[0].Answers)
	assert.False(t, snap.Players[0].Answers[0].Correct)
}

func TestAdvanceSynthesizesMissingRecords(t *testing.T) {
	ctx := context.Background()
	r, clock := makeRegistry(t)

	id, err := r.Start(ctx, "g1")
	require.NoError(t, err)
	_, err = r.Join(ctx, id, "alice")
	require.NoError(t, err)
	_, err = r.Join(ctx, id, "bob")
	require.NoError(t, err)

	deadline := clock.Now().Add(10 * time.Second)

	// Host advances before anyone answered question 0.
	q, err := r.Advance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, q.Position)
	assert.Equal(t, "q2", q.QuestionID)

	require.NoError(t, r.End(ctx, id))
	snap, err := r.Snapshot(ctx, id)
	require.NoError(t, err)

	for _, p := range snap.Players {
		require.Len(t, p.Answers, 2, "one record per question reached, no gaps")
		first := p.Answers[0]
		assert.Equal(t, "q1", first.QuestionID)
		assert.False(t, first.Correct)
		assert.Zero(t, first.Points)
		assert.Empty(t, first.Answers)
		assert.Equal(t, deadline, first.AnsweredAt, "synthesized record is stamped with the question deadline")
	}
}

func TestAdvancePastLastQuestion(t *testing.T) {
	ctx := context.Background()
	r, _ := makeRegistry(t)

	id, err := r.Start(ctx, "g1")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = r.Advance(ctx, id)
		require.NoError(t, err)
	}

	_, err = r.Advance(ctx, id)
	require.Error(t, err, "advance at the last question must fail, caller ends instead")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidState))

	st, err := r.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Position, "failed advance must not move the index")
}

func TestEndIsOneShot(t *testing.T) {
	ctx := context.Background()
	r, _ := makeRegistry(t)

	id, err := r.Start(ctx, "g1")
	require.NoError(t, err)

	require.NoError(t, r.End(ctx, id))

	err = r.End(ctx, id)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidState))

	_, err = r.Advance(ctx, id)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidState))

	st, err := r.Status(ctx, id)
	require.NoError(t, err)
	assert.False(t, st.Active)
	assert.Equal(t, 0, st.Position, "index frozen at its last value once ended")
}

func TestRevealAnswer(t *testing.T) {
	ctx := context.Background()
	r, clock := makeRegistry(t)

	id, err := r.Start(ctx, "g1")
	require.NoError(t, err)
	p1, err := r.Join(ctx, id, "alice")
	require.NoError(t, err)

	_, err = r.PlayerAnswer(ctx, p1)
	require.Error(t, err, "answer key hidden before deadline without a submission")

	_, err = r.SubmitAnswer(ctx, p1, 0, []string{"London"})
	require.NoError(t, err)

	vals, err := r.PlayerAnswer(ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Paris"}, vals)

	// A player who never answered sees it once the deadline passes.
	p2, err := r.Join(ctx, id, "bob")
	require.NoError(t, err)
	clock.Advance(11 * time.Second)
	vals, err = r.PlayerAnswer(ctx, p2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Paris"}, vals)
}

func TestCurrentQuestionHidesAnswerKey(t *testing.T) {
	ctx := context.Background()
	r, _ := makeRegistry(t)

	id, err := r.Start(ctx, "g1")
	require.NoError(t, err)
	p1, err := r.Join(ctx, id, "alice")
	require.NoError(t, err)

	q, err := r.PlayerQuestion(ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, "q1", q.QuestionID)
	assert.Equal(t, 0, q.Position)
	assert.Equal(t, 10, q.TimeLimit)
	assert.ElementsMatch(t, []string{"Paris", "London"}, q.Options)
}

func TestPlayerStatusLifecycle(t *testing.T) {
	ctx := context.Background()
	r, _ := makeRegistry(t)

	id, err := r.Start(ctx, "g1")
	require.NoError(t, err)
	p1, err := r.Join(ctx, id, "alice")
	require.NoError(t, err)

	st, err := r.PlayerStatus(ctx, p1)
	require.NoError(t, err)
	assert.True(t, st.Started)
	assert.False(t, st.Ended)

	require.NoError(t, r.End(ctx, id))

	st, err = r.PlayerStatus(ctx, p1)
	require.NoError(t, err)
	assert.False(t, st.Started)
	assert.True(t, st.Ended)
}

func TestPlayerResults(t *testing.T) {
	ctx := context.Background()
	r, clock := makeRegistry(t)

	id, err := r.Start(ctx, "g1")
	require.NoError(t, err)
	p1, err := r.Join(ctx, id, "alice")
	require.NoError(t, err)

	clock.Advance(4 * time.Second)
	_, err = r.SubmitAnswer(ctx, p1, 0, []string{"Paris"})
	require.NoError(t, err)

	_, err = r.PlayerResults(ctx, p1)
	require.Error(t, err, "results are unavailable while the session runs")

	_, err = r.Advance(ctx, id)
	require.NoError(t, err)
	require.NoError(t, r.End(ctx, id))

	res, err := r.PlayerResults(ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, "alice", res.Name)
	assert.Equal(t, 3, res.Score)
	require.Len(t, res.Answers, 2)
	assert.True(t, res.Answers[0].Correct)
	assert.False(t, res.Answers[1].Correct, "question 1 was never answered")
}

func TestLateJoinerClockStartsAtJoin(t *testing.T) {
	ctx := context.Background()
	r, clock := makeRegistry(t)

	id, err := r.Start(ctx, "g1")
	require.NoError(t, err)

	clock.Advance(6 * time.Second)
	p1, err := r.Join(ctx, id, "late")
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	rec, err := r.SubmitAnswer(ctx, p1, 0, []string{"Paris"})
	require.NoError(t, err)
	assert.True(t, rec.Correct)
	assert.Equal(t, 4, rec.Points, "elapsed counts from join, not session start: round((10-2)/2)")
}

func TestConcurrentSubmissions(t *testing.T) {
	ctx := context.Background()
	r, _ := makeRegistry(t)

	id, err := r.Start(ctx, "g1")
	require.NoError(t, err)

	const n = 20
	playerIDs := make([]string, n)
	for i := range playerIDs {
		pid, err := r.Join(ctx, id, fmt.Sprintf("player-%d", i))
		require.NoError(t, err)
		playerIDs[i] = pid
	}

	var wg sync.WaitGroup
	for _, pid := range playerIDs {
		wg.Add(1)
		go func(pid string) {
			defer wg.Done()
			_, err := r.SubmitAnswer(ctx, pid, 0, []string{"Paris"})
			assert.NoError(t, err)
		}(pid)
	}
	wg.Wait()

	require.NoError(t, r.End(ctx, id))
	snap, err := r.Snapshot(ctx, id)
	require.NoError(t, err)
	require.Len(t, snap.Players, n)
	for _, p := range snap.Players {
		require.Len(t, p.Answers, 1)
		assert.True(t, p.Answers[0].Correct)
	}
}
