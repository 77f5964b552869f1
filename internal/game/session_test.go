package game

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szdorah/Quiz0r-sub001/internal/apperr"
	"github.com/szdorah/Quiz0r-sub001/internal/broadcast"
	"github.com/szdorah/Quiz0r-sub001/internal/models"
	"github.com/szdorah/Quiz0r-sub001/internal/powerup"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []broadcast.Event
	closed bool
}

func (f *fakePublisher) Publish(code string, role broadcast.Role, ev broadcast.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakePublisher) PublishToPlayer(code, playerID string, ev broadcast.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakePublisher) CloseGame(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakePublisher) hasEvent(eventType string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.Type == eventType {
			return true
		}
	}
	return false
}

func testQuiz() models.Quiz {
	return models.Quiz{
		ID:                1,
		Title:             "General Knowledge",
		HintCount:         1,
		CopyAnswerCount:   1,
		DoublePointsCount: 1,
		Questions: []models.Question{
			{
				ID: 10, Type: models.QuestionTypeSingleSelect, Text: "Capital of France?",
				Hint: "It is on the Seine.", TimeLimit: 10, Points: 100, OrderNum: 1,
				Options: []models.AnswerOption{
					{ID: 101, QuestionID: 10, Text: "Paris", IsCorrect: true},
					{ID: 102, QuestionID: 10, Text: "Lyon"},
					{ID: 103, QuestionID: 10, Text: "Nice"},
				},
			},
			{
				ID: 20, Type: models.QuestionTypeMultiSelect, Text: "Prime numbers?",
				TimeLimit: 10, Points: 100, OrderNum: 2,
				Options: []models.AnswerOption{
					{ID: 201, QuestionID: 20, Text: "2", IsCorrect: true},
					{ID: 202, QuestionID: 20, Text: "3", IsCorrect: true},
					{ID: 203, QuestionID: 20, Text: "4"},
					{ID: 204, QuestionID: 20, Text: "5", IsCorrect: true},
					{ID: 205, QuestionID: 20, Text: "6"},
				},
			},
		},
	}
}

func newTestSession(t *testing.T, autoAdmit bool) (*Session, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	model := models.GameSession{ID: 1, QuizID: 1, HostID: 7, Code: "AB12CD", AutoAdmit: autoAdmit}
	s := NewSession(model, testQuiz(), NopStore{}, pub, nil)
	frozen := time.Now()
	s.now = func() time.Time { return frozen }
	return s, pub
}

func mustJoin(t *testing.T, s *Session, name string) *models.Player {
	t.Helper()
	p, err := s.RequestJoin(name, "🦊", "en")
	require.NoError(t, err)
	return p
}

func TestRequestJoinAutoAdmit(t *testing.T) {
	s, _ := newTestSession(t, true)
	p := mustJoin(t, s, "alice")
	assert.Equal(t, models.AdmissionAdmitted, p.AdmissionStatus)
	assert.True(t, p.IsActive)
	assert.NotEmpty(t, p.AvatarColor)
}

func TestRequestJoinPendingByDefault(t *testing.T) {
	s, _ := newTestSession(t, false)
	p := mustJoin(t, s, "alice")
	assert.Equal(t, models.AdmissionPending, p.AdmissionStatus)
}

func TestRequestJoinNameTaken(t *testing.T) {
	s, _ := newTestSession(t, true)
	mustJoin(t, s, "alice")

	_, err := s.RequestJoin("ALICE", "🐼", "en")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRequestJoinReactivatesInactive(t *testing.T) {
	s, _ := newTestSession(t, true)
	p := mustJoin(t, s, "alice")
	s.SetConnected(p.ID, false)

	again, err := s.RequestJoin("alice", "🐼", "en")
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.True(t, again.IsActive)
}

func TestRefusedPlayerStaysRefused(t *testing.T) {
	s, _ := newTestSession(t, false)
	p := mustJoin(t, s, "alice")
	require.NoError(t, s.Refuse(p.ID))

	for i := 0; i < 3; i++ {
		_, err := s.RequestJoin("alice", "🦊", "en")
		assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
	}
	// No new pending record appeared.
	snap := s.StateFor(broadcast.RoleHostControl, "")
	state := snap.Data.(*HostControlState)
	assert.Len(t, state.Players, 1)
}

func TestNameValidation(t *testing.T) {
	s, _ := newTestSession(t, true)
	_, err := s.RequestJoin("", "🦊", "en")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = s.RequestJoin("this name is far too long to use", "🦊", "en")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAdmitAndRefuse(t *testing.T) {
	s, _ := newTestSession(t, false)
	p := mustJoin(t, s, "alice")

	require.NoError(t, s.Admit(p.ID))
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(s.Admit(p.ID)))

	q := mustJoin(t, s, "bob")
	require.NoError(t, s.Refuse(q.ID))
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(s.Admit(q.ID)))
}

func TestStartAndAnswerFlow(t *testing.T) {
	s, _ := newTestSession(t, true)
	alice := mustJoin(t, s, "alice")
	bob := mustJoin(t, s, "bob")

	require.NoError(t, s.HostStart())
	assert.Equal(t, models.GameStatusQuestion, s.Status())

	// Wrong question ID is a state conflict.
	_, err := s.SubmitAnswer(alice.ID, 999, []uint{101}, 0)
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(err))

	// Unknown option is a validation error.
	_, err = s.SubmitAnswer(alice.ID, 10, []uint{555}, 0)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	a1, err := s.SubmitAnswer(alice.ID, 10, []uint{101}, 0)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusQuestion, s.Status())

	// Second submission is an idempotent no-op returning the prior result.
	a2, err := s.SubmitAnswer(alice.ID, 10, []uint{102}, 0)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Equal(t, []uint{101}, a2.SelectedOptionIDs)

	// Once every eligible player answered the question closes early.
	_, err = s.SubmitAnswer(bob.ID, 10, []uint{102}, 0)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusRevealing, s.Status())
}

func TestRevealScoresAndDistribution(t *testing.T) {
	s, pub := newTestSession(t, true)
	alice := mustJoin(t, s, "alice")
	bob := mustJoin(t, s, "bob")

	require.NoError(t, s.HostStart())
	_, err := s.SubmitAnswer(alice.ID, 10, []uint{101}, 0)
	require.NoError(t, err)
	_, err = s.SubmitAnswer(bob.ID, 10, []uint{102}, 0)
	require.NoError(t, err)

	require.NoError(t, s.HostReveal())
	assert.Equal(t, models.GameStatusScoreboard, s.Status())

	state := s.StateFor(broadcast.RoleHostControl, "").Data.(*HostControlState)
	require.NotNil(t, state.Reveal)
	assert.Equal(t, []uint{101}, state.Reveal.CorrectOptionIDs)
	assert.Equal(t, map[uint]int{101: 1, 102: 1}, state.Reveal.Distribution)

	// Frozen clock: elapsed 0, full speed bonus.
	var aliceScore, bobScore int
	for _, e := range state.Scoreboard {
		switch e.PlayerID {
		case alice.ID:
			aliceScore = e.TotalScore
		case bob.ID:
			bobScore = e.TotalScore
		}
	}
	assert.Equal(t, 150, aliceScore)
	assert.Zero(t, bobScore)
	assert.True(t, pub.hasEvent(EventAnswerReceived))
}

func TestMultiSelectScoringAtReveal(t *testing.T) {
	s, _ := newTestSession(t, true)
	alice := mustJoin(t, s, "alice")

	require.NoError(t, s.HostStart())
	require.NoError(t, s.HostReveal()) // skip q1 with no answers
	require.NoError(t, s.HostNext())   // open q2
	require.Equal(t, models.GameStatusQuestion, s.Status())

	// 3 correct options; picks 2 correct + 1 wrong: ratio (2-1)/3, x1.5.
	_, err := s.SubmitAnswer(alice.ID, 20, []uint{201, 202, 203}, 0)
	require.NoError(t, err)
	require.NoError(t, s.HostReveal())

	state := s.StateFor(broadcast.RoleHostControl, "").Data.(*HostControlState)
	assert.Equal(t, 50, state.Scoreboard[0].TotalScore)
}

func TestDoublePoints(t *testing.T) {
	s, _ := newTestSession(t, true)
	alice := mustJoin(t, s, "alice")
	bob := mustJoin(t, s, "bob")

	require.NoError(t, s.HostStart())
	_, err := s.UsePowerUp(alice.ID, 10, powerup.TypeDouble, "")
	require.NoError(t, err)

	// Second double on the same question is rejected.
	_, err = s.UsePowerUp(alice.ID, 10, powerup.TypeDouble, "")
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(err))

	_, err = s.SubmitAnswer(alice.ID, 10, []uint{101}, 0)
	require.NoError(t, err)
	_, err = s.SubmitAnswer(bob.ID, 10, []uint{101}, 0)
	require.NoError(t, err)
	require.NoError(t, s.HostReveal())

	state := s.StateFor(broadcast.RoleHostControl, "").Data.(*HostControlState)
	var aliceScore, bobScore int
	for _, e := range state.Scoreboard {
		switch e.PlayerID {
		case alice.ID:
			aliceScore = e.TotalScore
		case bob.ID:
			bobScore = e.TotalScore
		}
	}
	assert.Equal(t, 300, aliceScore) // 150 x2, multiplicative with speed bonus
	assert.Equal(t, 150, bobScore)
}

func TestHintPowerUp(t *testing.T) {
	s, _ := newTestSession(t, true)
	alice := mustJoin(t, s, "alice")
	require.NoError(t, s.HostStart())

	res, err := s.UsePowerUp(alice.ID, 10, powerup.TypeHint, "")
	require.NoError(t, err)
	assert.Equal(t, "It is on the Seine.", res["hint"])

	// Budget of one is now exhausted for the rest of the game.
	bob := mustJoin(t, s, "bob")
	_ = bob
	_, err = s.UsePowerUp(alice.ID, 10, powerup.TypeHint, "")
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(err))
}

func TestHintBudgetExhaustedAcrossQuestions(t *testing.T) {
	s, _ := newTestSession(t, true)
	alice := mustJoin(t, s, "alice")
	require.NoError(t, s.HostStart())

	_, err := s.UsePowerUp(alice.ID, 10, powerup.TypeHint, "")
	require.NoError(t, err)

	require.NoError(t, s.HostReveal())
	require.NoError(t, s.HostNext())

	// q2 has no hint configured anyway, but budget is checked too.
	_, err = s.UsePowerUp(alice.ID, 20, powerup.TypeHint, "")
	assert.Error(t, err)
}

func TestCopyAnswer(t *testing.T) {
	s, _ := newTestSession(t, true)
	alice := mustJoin(t, s, "alice")
	bob := mustJoin(t, s, "bob")
	carol := mustJoin(t, s, "carol")

	require.NoError(t, s.HostStart())

	// Nobody has answered yet: copy fails without consuming budget.
	_, err := s.UsePowerUp(bob.ID, 10, powerup.TypeCopy, "")
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(err))

	_, err = s.SubmitAnswer(alice.ID, 10, []uint{101}, 0)
	require.NoError(t, err)

	res, err := s.UsePowerUp(bob.ID, 10, powerup.TypeCopy, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, res["target_player_id"])

	_, err = s.SubmitAnswer(carol.ID, 10, []uint{102}, 0)
	require.NoError(t, err)
	require.NoError(t, s.HostReveal())

	state := s.StateFor(broadcast.RoleHostControl, "").Data.(*HostControlState)
	var bobScore int
	for _, e := range state.Scoreboard {
		if e.PlayerID == bob.ID {
			bobScore = e.TotalScore
		}
	}
	// Bob scored from Alice's (correct) selection, resolved at reveal.
	assert.Equal(t, 150, bobScore)
}

func TestCopyRejectedAfterOwnAnswer(t *testing.T) {
	s, _ := newTestSession(t, true)
	alice := mustJoin(t, s, "alice")
	bob := mustJoin(t, s, "bob")
	carol := mustJoin(t, s, "carol")

	require.NoError(t, s.HostStart())
	_, err := s.SubmitAnswer(alice.ID, 10, []uint{101}, 0)
	require.NoError(t, err)
	_, err = s.SubmitAnswer(bob.ID, 10, []uint{102}, 0)
	require.NoError(t, err)

	// Bob already committed a real answer; copying now could never take
	// effect, so it must not cost budget either.
	_, err = s.UsePowerUp(bob.ID, 10, powerup.TypeCopy, alice.ID)
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(err))

	state := s.StateFor(broadcast.RolePlayer, bob.ID).Data.(*PlayerState)
	require.NotNil(t, state.Budget)
	assert.Equal(t, 1, state.Budget.Copy)

	// The budget is still spendable on a later question.
	_, err = s.SubmitAnswer(carol.ID, 10, []uint{103}, 0)
	require.NoError(t, err)
	require.NoError(t, s.HostReveal())
	require.NoError(t, s.HostNext())

	_, err = s.UsePowerUp(bob.ID, 20, powerup.TypeCopy, "")
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(err)) // nobody answered q20 yet

	_, err = s.SubmitAnswer(alice.ID, 20, []uint{201, 202, 204}, 0)
	require.NoError(t, err)
	_, err = s.UsePowerUp(bob.ID, 20, powerup.TypeCopy, alice.ID)
	require.NoError(t, err)
}

func TestSubmitRejectedWhenNotAdmitted(t *testing.T) {
	s, _ := newTestSession(t, false)
	p := mustJoin(t, s, "alice")
	q := mustJoin(t, s, "bob")
	require.NoError(t, s.Admit(q.ID))
	require.NoError(t, s.HostStart())

	_, err := s.SubmitAnswer(p.ID, 10, []uint{101}, 0)
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
}

func TestDisconnectCannotStallReveal(t *testing.T) {
	s, _ := newTestSession(t, true)
	alice := mustJoin(t, s, "alice")
	bob := mustJoin(t, s, "bob")

	require.NoError(t, s.HostStart())
	_, err := s.SubmitAnswer(alice.ID, 10, []uint{101}, 0)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusQuestion, s.Status())

	// Bob leaves mid-question; Alice is now 100% of eligible players.
	s.SetConnected(bob.ID, false)
	assert.Equal(t, models.GameStatusRevealing, s.Status())
}

func TestTimerClosesQuestion(t *testing.T) {
	s, _ := newTestSession(t, true)
	s.questions[0].TimeLimit = 1
	mustJoin(t, s, "alice")

	require.NoError(t, s.HostStart())
	assert.Equal(t, models.GameStatusQuestion, s.Status())

	assert.Eventually(t, func() bool {
		return s.Status() == models.GameStatusRevealing
	}, 3*time.Second, 50*time.Millisecond)
}

func TestCancelStopsTimer(t *testing.T) {
	s, pub := newTestSession(t, true)
	s.questions[0].TimeLimit = 1
	mustJoin(t, s, "alice")

	require.NoError(t, s.HostStart())
	require.NoError(t, s.HostCancel())
	assert.Equal(t, models.GameStatusCancelled, s.Status())
	assert.True(t, pub.closed)

	// The pending timer must not fire a stale transition.
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, models.GameStatusCancelled, s.Status())
	assert.True(t, pub.hasEvent(EventGameCancelled))
}

func TestFinishEmitsRanking(t *testing.T) {
	done := make(chan FinalResult, 1)
	pub := &fakePublisher{}
	model := models.GameSession{ID: 1, QuizID: 1, HostID: 7, Code: "AB12CD", AutoAdmit: true}
	s := NewSession(model, testQuiz(), NopStore{}, pub, func(r FinalResult) { done <- r })
	frozen := time.Now()
	s.now = func() time.Time { return frozen }

	alice := mustJoin(t, s, "alice")
	bob := mustJoin(t, s, "bob")

	require.NoError(t, s.HostStart())
	_, err := s.SubmitAnswer(alice.ID, 10, []uint{101}, 0)
	require.NoError(t, err)
	_, err = s.SubmitAnswer(bob.ID, 10, []uint{102}, 0)
	require.NoError(t, err)
	require.NoError(t, s.HostReveal())
	require.NoError(t, s.HostEnd())

	select {
	case result := <-done:
		require.Len(t, result.Ranking, 2)
		assert.Equal(t, "alice", result.Ranking[0].Name)
		assert.Equal(t, 1, result.Ranking[0].Rank)
		assert.Equal(t, 150, result.Ranking[0].Score)
		assert.Equal(t, "bob", result.Ranking[1].Name)
	case <-time.After(2 * time.Second):
		t.Fatal("finish hook never fired")
	}
	assert.True(t, pub.hasEvent(EventGameFinished))
}

func TestProjectionsHideCorrectnessPreReveal(t *testing.T) {
	s, _ := newTestSession(t, true)
	alice := mustJoin(t, s, "alice")
	require.NoError(t, s.HostStart())

	display := s.StateFor(broadcast.RoleHostDisplay, "").Data.(*HostDisplayState)
	require.NotNil(t, display.Question)
	for _, o := range display.Question.Options {
		assert.Nil(t, o.IsCorrect)
	}

	player := s.StateFor(broadcast.RolePlayer, alice.ID).Data.(*PlayerState)
	require.NotNil(t, player.You)
	require.NotNil(t, player.Budget)
	for _, o := range player.Question.Options {
		assert.Nil(t, o.IsCorrect)
	}

	_, err := s.SubmitAnswer(alice.ID, 10, []uint{101}, 0)
	require.NoError(t, err)
	require.NoError(t, s.HostReveal())

	display = s.StateFor(broadcast.RoleHostDisplay, "").Data.(*HostDisplayState)
	var sawCorrect bool
	for _, o := range display.Question.Options {
		if o.IsCorrect != nil && *o.IsCorrect {
			sawCorrect = true
		}
	}
	assert.True(t, sawCorrect)
}

func TestHostControlSeesPendingPlayers(t *testing.T) {
	s, _ := newTestSession(t, false)
	mustJoin(t, s, "alice")

	control := s.StateFor(broadcast.RoleHostControl, "").Data.(*HostControlState)
	require.Len(t, control.Players, 1)
	assert.Equal(t, models.AdmissionPending, control.Players[0].AdmissionStatus)
}

func TestConcurrentAnswers(t *testing.T) {
	const players = 50

	s, _ := newTestSession(t, true)
	ids := make([]string, players)
	for i := 0; i < players; i++ {
		p := mustJoin(t, s, fmt.Sprintf("player%02d", i))
		ids[i] = p.ID
	}
	require.NoError(t, s.HostStart())

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			option := uint(101) // correct
			if i%2 == 1 {
				option = 102 // wrong
			}
			_, err := s.SubmitAnswer(id, 10, []uint{option}, 0)
			assert.NoError(t, err)
		}(i, id)
	}
	wg.Wait()

	// All eligible players answered, so the question closed itself.
	assert.Equal(t, models.GameStatusRevealing, s.Status())

	s.mu.Lock()
	answers := s.answers[10]
	assert.Len(t, answers, players)
	s.mu.Unlock()

	require.NoError(t, s.HostReveal())

	s.mu.Lock()
	for i, id := range ids {
		a := answers[id]
		if i%2 == 0 {
			assert.Positive(t, a.Points, "player %d answered correctly", i)
		} else {
			assert.Zero(t, a.Points, "player %d answered incorrectly", i)
		}
	}
	s.mu.Unlock()
}
