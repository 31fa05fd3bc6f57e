package schedule_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanplan-dev/cleaning-planner/backend/internal/domain"
	"github.com/cleanplan-dev/cleaning-planner/backend/internal/schedule"
)

func TestCompatible(t *testing.T) {
	tests := map[string]struct {
		role domain.CleanerRole
		task domain.Task
		exp  bool
	}{
		"standard 可以承接普通任务": {
			role: domain.RoleStandard,
			task: domain.Task{ID: "T1", Priority: domain.PriorityMedia},
			exp:  true,
		},
		"standard 不能承接 premium 任务": {
			role: domain.RoleStandard,
			task: domain.Task{ID: "T1", Priority: domain.PriorityMedia, Premium: true},
			exp:  false,
		},
		"standard 不能承接高优先级任务": {
			role: domain.RoleStandard,
			task: domain.Task{ID: "T1", Priority: domain.PriorityAlta},
			exp:  false,
		},
		"premium 可以承接 premium 任务": {
			role: domain.RolePremium,
			task: domain.Task{ID: "T1", Priority: domain.PriorityAlta, Premium: true},
			exp:  true,
		},
		"premium 不能承接特殊任务": {
			role: domain.RolePremium,
			task: domain.Task{ID: "T1", Priority: domain.PriorityMedia, Extraordinary: true},
			exp:  false,
		},
		"straordinario 可以承接特殊任务": {
			role: domain.RoleStraordinario,
			task: domain.Task{ID: "T1", Priority: domain.PriorityAlta, Extraordinary: true},
			exp:  true,
		},
		"straordinario 不能承接 premium 任务": {
			role: domain.RoleStraordinario,
			task: domain.Task{ID: "T1", Priority: domain.PriorityMedia, Premium: true},
			exp:  false,
		},
		"formatore 可以承接一切任务": {
			role: domain.RoleFormatore,
			task: domain.Task{ID: "T1", Priority: domain.PriorityAlta, Premium: true, Extraordinary: true},
			exp:  true,
		},
		"未知角色按没有额外能力处理": {
			role: domain.CleanerRole("unknown"),
			task: domain.Task{ID: "T1", Priority: domain.PriorityAlta},
			exp:  false,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, schedule.Compatible(test.role, &test.task))
		})
	}
}

func TestAnnotate(t *testing.T) {
	cleanerID := int64(7)
	seq0, seq1 := int32(0), int32(1)

	snapshot := domain.NewSnapshot()
	snapshot.SelectedCleaners = []domain.SelectedCleaner{
		{CleanerID: cleanerID, FullName: "王伟", Role: domain.RoleStandard, StartTime: "08:00"},
	}
	snapshot.Timeline = []domain.TimelineEntry{
		{
			CleanerID: cleanerID,
			Tasks: []domain.Task{
				{ID: "T1", Priority: domain.PriorityMedia, AssignedCleaner: &cleanerID, Sequence: &seq0},
				{ID: "T2", Priority: domain.PriorityAlta, Premium: true, AssignedCleaner: &cleanerID, Sequence: &seq1},
			},
		},
	}

	warnings := schedule.Annotate(snapshot)

	require.Len(t, warnings, 1)
	assert.Equal(t, cleanerID, warnings[0].CleanerID)
	assert.Equal(t, "T2", warnings[0].TaskID)
	assert.NotEmpty(t, warnings[0].Reason)
}

func TestAnnotateCleanSnapshot(t *testing.T) {
	snapshot := domain.NewSnapshot()
	snapshot.Containers[domain.PriorityAlta] = []domain.Task{
		{ID: "T1", Priority: domain.PriorityAlta, Premium: true},
	}

	// 容器里的任务还没有分配，不产生警告
	warnings := schedule.Annotate(snapshot)
	assert.Empty(t, warnings)
}
