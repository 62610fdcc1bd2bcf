package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/rbac"
)

const (
	creator  int64 = 1
	assignee int64 = 2
	stranger int64 = 3
)

func principal(id int64, perms ...string) *auth.Principal {
	return auth.NewPrincipal(id, "u@example.com", []string{rbac.RoleUser}, perms)
}

func TestGuard_TwoPhase(t *testing.T) {
	task := &model.Task{CreatedBy: creator, Assignee: model.SomeID(assignee)}
	allOps := []string{rbac.PermTaskRead, rbac.PermTaskUpdateOwned, rbac.PermTaskDeleteOwned}

	tests := []struct {
		name    string
		p       *auth.Principal
		op      Operation
		allowed bool
	}{
		{"creator with capability", principal(creator, allOps...), View, true},
		{"assignee with capability", principal(assignee, allOps...), Modify, true},
		{"owner without capability", principal(creator, rbac.PermTaskRead), Delete, false},
		{"capability without ownership", principal(stranger, allOps...), View, false},
		{"neither", principal(stranger), Modify, false},
		{"system admin bypasses both", principal(stranger, rbac.PermSystemAdmin), Delete, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := TaskGuard.Check(tt.p, tt.op, task)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperrors.HasCode(err, apperrors.CodeTaskAccessDenied), "got %v", err)
		})
	}
}

func TestGuard_FailuresAreIndistinguishable(t *testing.T) {
	task := &model.Task{CreatedBy: creator}
	noCapability := TaskGuard.CanModify(principal(creator, rbac.PermTaskRead), task)
	notOwner := TaskGuard.CanModify(principal(stranger, rbac.PermTaskUpdateOwned), task)
	assert.Equal(t, noCapability.Error(), notOwner.Error())
}

func TestGuard_UnassignedTask(t *testing.T) {
	task := &model.Task{CreatedBy: creator, Assignee: model.NoID()}
	assert.NoError(t, TaskGuard.CanView(principal(creator, rbac.PermTaskRead), task))
	assert.Error(t, TaskGuard.CanView(principal(assignee, rbac.PermTaskRead), task))
}

func TestGuard_NilPrincipal(t *testing.T) {
	err := TaskGuard.CanView(nil, &model.Task{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestGuard_CustomCode(t *testing.T) {
	g := NewGuard(apperrors.CodeSubtaskAccessDenied)
	err := g.CanDelete(principal(stranger), &model.Task{CreatedBy: creator})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSubtaskAccessDenied))

	var zero Guard
	err = zero.CanDelete(principal(stranger), &model.Task{CreatedBy: creator})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTaskAccessDenied))
}

func TestGuard_Require(t *testing.T) {
	assert.NoError(t, TaskGuard.Require(principal(creator, rbac.PermTaskCreate), rbac.PermTaskCreate))
	assert.NoError(t, TaskGuard.Require(principal(creator, rbac.PermSystemAdmin), rbac.PermTaskCreate))
	err := TaskGuard.Require(principal(creator, rbac.PermTaskRead), rbac.PermTaskCreate)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTaskAccessDenied))
}

func TestVisibility(t *testing.T) {
	v := Visibility(principal(creator, rbac.PermTaskRead))
	assert.True(t, v.Is(creator))

	v = Visibility(principal(creator, rbac.PermSystemAdmin))
	assert.False(t, v.IsSet())
}
