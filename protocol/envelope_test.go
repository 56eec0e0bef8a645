package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContextID = "6f1c8a52-3f7e-4a8e-9d7a-0d2f4b1c9e11"

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		want    Envelope
	}{
		{
			name: "valid",
			raw:  `{"messageContextId":"` + testContextID + `","type":"JoinRoom","data":{"roomName":"a"}}`,
			want: Envelope{MessageContextID: testContextID, Type: "JoinRoom", Data: json.RawMessage(`{"roomName":"a"}`)},
		},
		{name: "not json", raw: `{oops`, wantErr: true},
		{name: "missing type", raw: `{"messageContextId":"` + testContextID + `"}`, wantErr: true},
		{name: "blank type", raw: `{"messageContextId":"` + testContextID + `","type":"  "}`, wantErr: true},
		{name: "missing context id", raw: `{"type":"JoinRoom"}`, wantErr: true},
		{name: "context id not uuid", raw: `{"messageContextId":"abc","type":"JoinRoom"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsMalformedEnvelope(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.MessageContextID, env.MessageContextID)
			assert.Equal(t, tt.want.Type, env.Type)
			assert.JSONEq(t, string(tt.want.Data), string(env.Data))
		})
	}
}

func TestReplies(t *testing.T) {
	env := Envelope{MessageContextID: testContextID, Type: "StartGame"}

	ok := Success(env, map[string]int{"players": 2})
	assert.Equal(t, "StartGameResponse", ok.Type)
	assert.Equal(t, ResultOK, ok.Result)
	assert.Equal(t, testContextID, ok.MessageContextID)

	fail := Failure(env, errors.New("room is full"))
	assert.Equal(t, ResultFailure, fail.Result)
	assert.Equal(t, ErrorData{Error: "room is full"}, fail.Data)

	serverErr := ServerError(env)
	assert.Equal(t, ResultError, serverErr.Result)
	assert.Equal(t, testContextID, serverErr.MessageContextID)

	conn := ConnectionFailure(errors.New("bad frame"))
	assert.Empty(t, conn.MessageContextID)
	assert.Equal(t, TypeError, conn.Type)

	data, err := json.Marshal(Event("PlayerJoined", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"PlayerJoined","result":"OK"}`, string(data))
}
