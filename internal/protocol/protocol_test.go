package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/reactor/internal/diff"
)

func TestDecodeRender(t *testing.T) {
	in, err := Decode([]byte(`{"command":"render","payload":{"id":"c1","diff":["<p>hi</p>", 2, -1]}}`))
	require.NoError(t, err)
	assert.Equal(t, CommandRender, in.Command)

	var r Render
	require.NoError(t, DecodePayload(in.Payload, &r))
	assert.Equal(t, "c1", r.ID)
	assert.Equal(t, diff.Diff{diff.Lit("<p>hi</p>"), diff.CopyN(2), diff.SkipN(1)}, r.Diff)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []string{
		`not json`,
		`{"payload":{}}`,
		`[]`,
	}
	for _, raw := range tests {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedEnvelope, raw)
	}
}

func TestDecodePayloadMissing(t *testing.T) {
	in, err := Decode([]byte(`{"command":"back"}`))
	require.NoError(t, err)

	var q QueryString
	require.NoError(t, DecodePayload(in.Payload, &q))
	assert.Empty(t, q.QS)
}

func TestEncodeJoin(t *testing.T) {
	parent := "p1"
	data, err := Encode(Envelope{Command: CommandJoin, Payload: Join{
		Name:     "counter",
		ParentID: &parent,
		State:    "signed",
		Children: []Child{{ID: "c2", Name: "item", ParentID: &parent, State: "s2"}},
	}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"join","payload":{"name":"counter","parent_id":"p1","state":"signed",
		"children":[{"id":"c2","name":"item","parent_id":"p1","state":"s2"}]}}`, string(data))
}

func TestEncodeOmitsEmptyJoinFields(t *testing.T) {
	data, err := Encode(Envelope{Command: CommandJoin, Payload: Join{Name: "root", State: "s"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"join","payload":{"name":"root","state":"s"}}`, string(data))
}

func TestEncodeNilPayload(t *testing.T) {
	data, err := Encode(Envelope{Command: CommandBack})
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"back","payload":{}}`, string(data))
}
