package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szdorah/Quiz0r-sub001/internal/apperr"
	"github.com/szdorah/Quiz0r-sub001/internal/models"
)

func registryTestSession(code string) *Session {
	model := models.GameSession{ID: 1, QuizID: 1, HostID: 7, Code: code, AutoAdmit: true}
	return NewSession(model, testQuiz(), NopStore{}, &fakePublisher{}, nil)
}

func TestRegistryLookupCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	s := registryTestSession("AB12CD")
	require.NoError(t, r.Register(s))

	found, err := r.Lookup("ab12cd")
	require.NoError(t, err)
	assert.Same(t, s, found)

	found, err = r.Lookup(" Ab12cD ")
	require.NoError(t, err)
	assert.Same(t, s, found)
}

func TestRegistryUnknownCode(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("ZZZZZZ")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRegistryDuplicateCode(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(registryTestSession("AB12CD")))
	err := r.Register(registryTestSession("ab12cd"))
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(err))
}

func TestRegistryEvict(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(registryTestSession("AB12CD")))
	assert.Equal(t, 1, r.Len())

	r.Evict("ab12cd")
	assert.Zero(t, r.Len())
	_, err := r.Lookup("AB12CD")
	assert.Error(t, err)
}

func TestGenerateCodeShape(t *testing.T) {
	r := NewRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := r.GenerateCode()
		assert.Len(t, code, 6)
		for _, c := range code {
			assert.Contains(t, codeAlphabet, string(c))
		}
		seen[code] = true
	}
	// 32^6 codes: collisions in 100 draws would be suspicious.
	assert.Greater(t, len(seen), 95)
}

func TestFatalCancelEvictsGame(t *testing.T) {
	r := NewRegistry()

	quiz := testQuiz()
	quiz.Questions = []models.Question{{
		ID: 30, Type: models.QuestionTypeSingleSelect, Text: "broken",
		TimeLimit: 10, Points: 100, OrderNum: 1,
	}}
	model := models.GameSession{ID: 1, QuizID: 1, HostID: 7, Code: "AB12CD", AutoAdmit: true}
	s := NewSession(model, quiz, NopStore{}, &fakePublisher{}, nil)
	s.OnCancelled(r.Evict)
	require.NoError(t, r.Register(s))

	// The first question has no options: starting the game cancels it.
	err := s.HostStart()
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(err))
	assert.Equal(t, models.GameStatusCancelled, s.Status())

	// A cancelled game must leave the registry, whatever cancelled it.
	_, err = r.Lookup("AB12CD")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestHostCancelEvictsGame(t *testing.T) {
	r := NewRegistry()
	s := registryTestSession("AB12CD")
	s.OnCancelled(r.Evict)
	require.NoError(t, r.Register(s))

	require.NoError(t, s.HostCancel())
	_, err := r.Lookup("AB12CD")
	assert.Error(t, err)
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	require.NoError(t, a.Register(registryTestSession("AB12CD")))

	_, err := b.Lookup("AB12CD")
	assert.Error(t, err)
}
