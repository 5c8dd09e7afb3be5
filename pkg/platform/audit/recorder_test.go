package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactSecrets(t *testing.T) {
	in := map[string]any{"username": "alice", "password": "hunter22"}

	out := RedactSecrets(in, "password", "token")

	assert.Equal(t, map[string]any{"username": "alice", "password": HiddenValue}, out)
	assert.Equal(t, "hunter22", in["password"], "input is not mutated")
	assert.Nil(t, RedactSecrets(nil, "password"))
}

func TestAdminRef(t *testing.T) {
	ref := AdminRef(42)
	if assert.NotNil(t, ref) {
		assert.Equal(t, int64(42), *ref)
	}
}
