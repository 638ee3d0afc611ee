package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDUnmarshal(t *testing.T) {
	var v struct {
		A ID  `json:"a"`
		B ID  `json:"b"`
		C ID  `json:"c"`
		D *ID `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x1","b":42,"c":null}`), &v))
	assert.Equal(t, ID("x1"), v.A)
	assert.Equal(t, ID("42"), v.B)
	assert.Equal(t, ID(""), v.C)
	assert.Nil(t, v.D)

	var bad ID
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Anonymous", DisplayName(""))
	assert.Equal(t, "Anonymous", DisplayName("   "))
	assert.Equal(t, "John", DisplayName("John"))

	assert.Equal(t, "J", Initial("john"))
	assert.Equal(t, "A", Initial(""))
	assert.Equal(t, "Ж", Initial("жанна"))

	assert.Equal(t, "Anonymous", AuthorFor(nil))
	assert.Equal(t, "Mary", AuthorFor(&Session{Name: "Mary"}))
}
