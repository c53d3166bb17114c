package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsGuid(t *testing.T) {
	assert.True(t, IsGuid("6f9619ff-8b86-d011-b42d-00cf4fc964ff"))
	assert.True(t, IsGuid(NewGuid()))
	assert.False(t, IsGuid("6f9619ff8b86d011b42d00cf4fc964ff"))
	assert.False(t, IsGuid("not-a-guid"))
	assert.False(t, IsGuid(""))
}

func TestUTCISOString(t *testing.T) {
	ts := time.Date(2024, 3, 5, 7, 8, 9, 120_000_000, time.FixedZone("x", 3600))

	assert.Equal(t, "2024-03-05T06:08:09.120Z", UTCISOString(ts))
}

func TestGetSubObject(t *testing.T) {
	obj := map[string]interface{}{"id": "u1", "email": "a@b.c", "password": "x"}

	assert.Equal(t, map[string]interface{}{"id": "u1", "email": "a@b.c"}, GetSubObject(obj, "id, email,missing"))
	assert.Nil(t, GetSubObject(nil, "id"))
}

func TestConditionalString(t *testing.T) {
	assert.Equal(t, "a", ConditionalString(true, "a", "b"))
	assert.Equal(t, "b", ConditionalString(false, "a", "b"))
}

func TestDecode(t *testing.T) {
	var out struct {
		Sender  string   `json:"sender"`
		Methods []string `json:"methods"`
	}

	err := Decode(map[string]interface{}{"sender": "u1", "methods": []interface{}{"email"}}, &out)

	assert.NoError(t, err)
	assert.Equal(t, "u1", out.Sender)
	assert.Equal(t, []string{"email"}, out.Methods)
	assert.Error(t, Decode(map[string]interface{}{"sender": 1}, &out))
}
