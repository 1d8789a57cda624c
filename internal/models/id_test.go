package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoID(t *testing.T) {
	t.Run("generates unique values", func(t *testing.T) {
		a := NewVideoID()
		b := NewVideoID()
		assert.NotEqual(t, a, b)
		assert.False(t, a.IsZero())
	})

	t.Run("round-trips through string", func(t *testing.T) {
		id := NewVideoID()
		parsed, err := ParseVideoID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := ParseVideoID("not-a-uuid")
		assert.Error(t, err)
	})

	t.Run("round-trips through JSON", func(t *testing.T) {
		id := NewVideoID()
		data, err := json.Marshal(id)
		require.NoError(t, err)

		var decoded VideoID
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, id, decoded)
	})
}

func TestPipelineID(t *testing.T) {
	t.Run("round-trips through string", func(t *testing.T) {
		id := NewPipelineID()
		parsed, err := ParsePipelineID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})

	t.Run("equality is by value", func(t *testing.T) {
		id := NewPipelineID()
		same, err := ParsePipelineID(id.String())
		require.NoError(t, err)
		assert.True(t, id == same)
	})

	t.Run("scans from string and bytes", func(t *testing.T) {
		id := NewPipelineID()

		var fromString PipelineID
		require.NoError(t, fromString.Scan(id.String()))
		assert.Equal(t, id, fromString)

		var fromBytes PipelineID
		require.NoError(t, fromBytes.Scan([]byte(id.String())))
		assert.Equal(t, id, fromBytes)
	})

	t.Run("database value is the canonical string", func(t *testing.T) {
		id := NewPipelineID()
		v, err := id.Value()
		require.NoError(t, err)
		assert.Equal(t, id.String(), v)

		zero := PipelineID{}
		v, err = zero.Value()
		require.NoError(t, err)
		assert.Nil(t, v)
	})
}
