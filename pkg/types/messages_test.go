package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodePayloadMissingPayloadIsEmptyObject(t *testing.T) {
	env := Envelope{Type: TypeJoinLobby, UserID: 1}

	var p JoinLobbyPayload
	require.NoError(t, env.DecodePayload(&p))
	require.Empty(t, p.DisplayName)
	require.Nil(t, p.Energy)
	require.Nil(t, p.X)
}

func TestDecodePayloadDistinguishesAbsentFromZero(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(
		`{"type":"pet_state_update","server_id":"A","user_id":7,"payload":{"energy":0,"x":0}}`,
	), &env))

	var p PetStateUpdatePayload
	require.NoError(t, env.DecodePayload(&p))
	require.NotNil(t, p.Energy)
	require.Equal(t, 0, *p.Energy)
	require.NotNil(t, p.X)
	require.Nil(t, p.Y)
	require.Nil(t, p.Status)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	raw, err := json.Marshal(ChatRelayPayload{FromUserID: 1, ToUserID: 2, Content: "hi"})
	require.NoError(t, err)

	data, err := json.Marshal(Envelope{
		Type:     TypeChatMessage,
		ServerID: "B",
		UserID:   1,
		Payload:  raw,
	})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	require.Equal(t, TypeChatMessage, env.Type)
	require.Equal(t, "B", env.ServerID)

	var relay ChatRelayPayload
	require.NoError(t, env.DecodePayload(&relay))
	require.Equal(t, "hi", relay.Content)
}
