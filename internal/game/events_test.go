package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szdorah/Quiz0r-sub001/internal/apperr"
)

func decodeEvent(t *testing.T, raw string) (any, error) {
	t.Helper()
	var ev ClientEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	return ev.Decode()
}

func TestDecodeAnswerEvent(t *testing.T) {
	payload, err := decodeEvent(t, `{"type":"player:answer","data":{"question_id":10,"selected_option_ids":[101,102],"elapsed_ms":1234}}`)
	require.NoError(t, err)

	answer := payload.(*AnswerPayload)
	assert.Equal(t, uint(10), answer.QuestionID)
	assert.Equal(t, []uint{101, 102}, answer.SelectedOptionIDs)
	assert.Equal(t, int64(1234), answer.ElapsedMs)
}

func TestDecodePowerUpEvent(t *testing.T) {
	payload, err := decodeEvent(t, `{"type":"player:powerUp","data":{"question_id":10,"type":"copy","target_player_id":"p2"}}`)
	require.NoError(t, err)

	p := payload.(*PowerUpPayload)
	assert.Equal(t, "copy", p.Type)
	assert.Equal(t, "p2", p.TargetPlayerID)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := decodeEvent(t, `{"type":"player:cheat","data":{}}`)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDecodeRejectsMissingFields(t *testing.T) {
	_, err := decodeEvent(t, `{"type":"player:answer","data":{"selected_option_ids":[1]}}`)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = decodeEvent(t, `{"type":"host:admit","data":{}}`)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDecodeBareHostEvents(t *testing.T) {
	for _, typ := range []string{EventHostStart, EventHostNext, EventHostReveal, EventHostCancel, EventPlayerJoin} {
		payload, err := decodeEvent(t, `{"type":"`+typ+`"}`)
		assert.NoError(t, err)
		assert.Nil(t, payload)
	}
}
