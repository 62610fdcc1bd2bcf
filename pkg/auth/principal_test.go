package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrincipal_Authorities(t *testing.T) {
	p := NewPrincipal(7, "a@example.com", []string{"USER"}, []string{"TASK_READ", "TASK_CREATE"})

	assert.True(t, p.HasAuthority("ROLE_USER"))
	assert.True(t, p.HasAuthority("TASK_READ"))
	assert.True(t, p.HasRole("user"))
	assert.False(t, p.HasAuthority("USER"))
	assert.False(t, p.HasAuthority("SYSTEM_ADMIN"))
	assert.Equal(t, []string{"ROLE_USER", "TASK_READ", "TASK_CREATE"}, p.Authorities())
}

func TestPrincipal_NilHasNothing(t *testing.T) {
	var p *Principal
	assert.False(t, p.HasAuthority("TASK_READ"))
}
