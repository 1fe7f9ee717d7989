package volumeid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	id, err := Parse("772153499790:fib25:groundtruth")
	require.NoError(t, err)

	assert.Equal(t, "772153499790", id.Project())
	assert.Equal(t, "fib25", id.Dataset())
	assert.Equal(t, "groundtruth", id.Volume())
	assert.Equal(t, "772153499790:fib25:groundtruth", id.String())
	assert.False(t, id.IsZero())
}

func TestParse_TrimsWhitespace(t *testing.T) {
	id, err := Parse("  p:d:v\n")
	require.NoError(t, err)
	assert.Equal(t, "p:d:v", id.String())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", "empty volume ID"},
		{"one part", "volume", "got 1 parts"},
		{"four parts", "a:b:c:d", "got 4 parts"},
		{"empty project", ":d:v", "empty project"},
		{"empty dataset", "p::v", "empty dataset"},
		{"empty volume", "p:d:", "empty volume"},
		{"slash", "p:d:v/x", "must not contain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Parse(tt.raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, id.IsZero())
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("nope") })
	assert.NotPanics(t, func() { MustParse("p:d:v") })
}

func TestZeroID(t *testing.T) {
	var id ID
	assert.True(t, id.IsZero())
	assert.Equal(t, "", id.String())
}

func TestTextRoundTrip(t *testing.T) {
	type wrapper struct {
		Volume ID `json:"volume"`
	}

	data, err := json.Marshal(wrapper{Volume: MustParse("p:d:v")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"volume":"p:d:v"}`, string(data))

	var got wrapper
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, MustParse("p:d:v"), got.Volume)

	require.NoError(t, json.Unmarshal([]byte(`{"volume":""}`), &got))
	assert.True(t, got.Volume.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"volume":"bad"}`), &got))
}
