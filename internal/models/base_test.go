package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewULID(t *testing.T) {
	a := NewULID()
	b := NewULID()

	assert.False(t, a.IsZero())
	assert.False(t, b.IsZero())
	assert.NotEqual(t, a, b)
	assert.Len(t, a.String(), 26)
}

func TestParseULID(t *testing.T) {
	id := NewULID()

	parsed, err := ParseULID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseULID("not-a-ulid")
	assert.Error(t, err)
}

func TestULID_Value(t *testing.T) {
	id := NewULID()

	v, err := id.Value()
	require.NoError(t, err)
	assert.Equal(t, id.String(), v)

	var zero ULID
	v, err = zero.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestULID_Scan(t *testing.T) {
	id := NewULID()

	var fromString ULID
	require.NoError(t, fromString.Scan(id.String()))
	assert.Equal(t, id, fromString)

	var fromBytes ULID
	require.NoError(t, fromBytes.Scan([]byte(id.String())))
	assert.Equal(t, id, fromBytes)

	var fromNil ULID
	require.NoError(t, fromNil.Scan(nil))
	assert.True(t, fromNil.IsZero())

	var fromInt ULID
	assert.Error(t, fromInt.Scan(42))
}

func TestULID_JSON(t *testing.T) {
	id := NewULID()

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(data))

	var decoded ULID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)

	var fromNull ULID
	require.NoError(t, json.Unmarshal([]byte("null"), &fromNull))
	assert.True(t, fromNull.IsZero())
}

func TestBaseModel_BeforeCreate(t *testing.T) {
	t.Run("generates ID when zero", func(t *testing.T) {
		m := &BaseModel{}
		require.NoError(t, m.BeforeCreate(nil))
		assert.False(t, m.ID.IsZero())
	})

	t.Run("keeps existing ID", func(t *testing.T) {
		id := NewULID()
		m := &BaseModel{ID: id}
		require.NoError(t, m.BeforeCreate(nil))
		assert.Equal(t, id, m.ID)
	})
}
