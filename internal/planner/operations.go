package planner

import (
	"context"
	"fmt"

	"github.com/cleanplan-dev/cleaning-planner/backend/internal/domain"
	"github.com/cleanplan-dev/cleaning-planner/backend/internal/schedule"
)

// AssignTask 把任务分配给某个保洁员的第 atIndex 个位置。
// 任务可以来自容器，也可以是已经分配给别的保洁员（等价于移动）。
func (p *Planner) AssignTask(ctx context.Context, workDate, author string, baseRevision int64, taskID string, cleanerID int64, atIndex int) (*Result, error) {
	return p.mutate(ctx, workDate, author, baseRevision, domain.ModTypeAssign, nil, func(snapshot *domain.Snapshot) ([]int64, error) {
		target := snapshot.FindSelectedCleaner(cleanerID)
		if target == nil || target.Removed {
			return nil, fmt.Errorf("%w: 保洁员 %d 不在当前排班中", domain.ErrValidation, cleanerID)
		}

		task, changed, err := detachTask(snapshot, taskID)
		if err != nil {
			return nil, err
		}

		entry := snapshot.FindTimelineEntry(cleanerID)
		if entry == nil {
			return nil, fmt.Errorf("%w: 保洁员 %d 没有时间线", domain.ErrValidation, cleanerID)
		}
		if atIndex < 0 || atIndex > len(entry.Tasks) {
			return nil, fmt.Errorf("%w: 插入位置 %d 超出范围", domain.ErrValidation, atIndex)
		}

		entry.Tasks = append(entry.Tasks, domain.Task{})
		copy(entry.Tasks[atIndex+1:], entry.Tasks[atIndex:])
		entry.Tasks[atIndex] = *task

		cleanupRemovedCleaners(snapshot)

		return append(changed, cleanerID), nil
	})
}

// ReorderTask 调整一个任务在它所属保洁员时间线内的位置
func (p *Planner) ReorderTask(ctx context.Context, workDate, author string, baseRevision int64, cleanerID int64, taskID string, fromIndex, toIndex int) (*Result, error) {
	return p.mutate(ctx, workDate, author, baseRevision, domain.ModTypeReorder, nil, func(snapshot *domain.Snapshot) ([]int64, error) {
		entry := snapshot.FindTimelineEntry(cleanerID)
		if entry == nil {
			return nil, fmt.Errorf("%w: 保洁员 %d 没有时间线", domain.ErrValidation, cleanerID)
		}
		if fromIndex < 0 || fromIndex >= len(entry.Tasks) || toIndex < 0 || toIndex >= len(entry.Tasks) {
			return nil, fmt.Errorf("%w: 位置超出范围", domain.ErrValidation)
		}
		if entry.Tasks[fromIndex].ID != taskID {
			return nil, fmt.Errorf("%w: 位置 %d 上的任务不是 %s", domain.ErrValidation, fromIndex, taskID)
		}

		task := entry.Tasks[fromIndex]
		entry.Tasks = append(entry.Tasks[:fromIndex], entry.Tasks[fromIndex+1:]...)
		entry.Tasks = append(entry.Tasks, domain.Task{})
		copy(entry.Tasks[toIndex+1:], entry.Tasks[toIndex:])
		entry.Tasks[toIndex] = task

		return []int64{cleanerID}, nil
	})
}

// MoveTaskBetweenCleaners 把任务从一个保洁员移动到另一个保洁员
func (p *Planner) MoveTaskBetweenCleaners(ctx context.Context, workDate, author string, baseRevision int64, taskID string, srcCleanerID, dstCleanerID int64, atIndex int) (*Result, error) {
	return p.mutate(ctx, workDate, author, baseRevision, domain.ModTypeMove, nil, func(snapshot *domain.Snapshot) ([]int64, error) {
		entry, index := snapshot.FindAssignedTask(taskID)
		if entry == nil || entry.CleanerID != srcCleanerID {
			return nil, fmt.Errorf("%w: 任务 %s 当前不属于保洁员 %d", domain.ErrValidation, taskID, srcCleanerID)
		}

		target := snapshot.FindSelectedCleaner(dstCleanerID)
		if target == nil || target.Removed {
			return nil, fmt.Errorf("%w: 保洁员 %d 不在当前排班中", domain.ErrValidation, dstCleanerID)
		}
		dstEntry := snapshot.FindTimelineEntry(dstCleanerID)
		if dstEntry == nil {
			return nil, fmt.Errorf("%w: 保洁员 %d 没有时间线", domain.ErrValidation, dstCleanerID)
		}
		if atIndex < 0 || atIndex > len(dstEntry.Tasks) {
			return nil, fmt.Errorf("%w: 插入位置 %d 超出范围", domain.ErrValidation, atIndex)
		}

		task := entry.Tasks[index]
		entry.Tasks = append(entry.Tasks[:index], entry.Tasks[index+1:]...)

		dstEntry.Tasks = append(dstEntry.Tasks, domain.Task{})
		copy(dstEntry.Tasks[atIndex+1:], dstEntry.Tasks[atIndex:])
		dstEntry.Tasks[atIndex] = task

		cleanupRemovedCleaners(snapshot)

		return []int64{srcCleanerID, dstCleanerID}, nil
	})
}

// SwapCleanerTasks 整体交换两个保洁员的任务列表，各自按自己的上工时间重算
func (p *Planner) SwapCleanerTasks(ctx context.Context, workDate, author string, baseRevision int64, cleanerAID, cleanerBID int64) (*Result, error) {
	return p.mutate(ctx, workDate, author, baseRevision, domain.ModTypeSwap, nil, func(snapshot *domain.Snapshot) ([]int64, error) {
		if cleanerAID == cleanerBID {
			return nil, fmt.Errorf("%w: 不能和自己交换", domain.ErrValidation)
		}

		entryA := snapshot.FindTimelineEntry(cleanerAID)
		entryB := snapshot.FindTimelineEntry(cleanerBID)
		if entryA == nil || entryB == nil {
			return nil, fmt.Errorf("%w: 交换双方必须都在当前排班中", domain.ErrValidation)
		}
		if len(entryA.Tasks) == 0 || len(entryB.Tasks) == 0 {
			return nil, fmt.Errorf("%w: 交换双方必须都至少有一个任务", domain.ErrValidation)
		}

		entryA.Tasks, entryB.Tasks = entryB.Tasks, entryA.Tasks

		return []int64{cleanerAID, cleanerBID}, nil
	})
}

// RemoveTaskFromTimeline 把任务从时间线撤回到它原来的优先级容器
func (p *Planner) RemoveTaskFromTimeline(ctx context.Context, workDate, author string, baseRevision int64, taskID string) (*Result, error) {
	return p.mutate(ctx, workDate, author, baseRevision, domain.ModTypeRemoveTask, nil, func(snapshot *domain.Snapshot) ([]int64, error) {
		entry, index := snapshot.FindAssignedTask(taskID)
		if entry == nil {
			return nil, fmt.Errorf("%w: 任务 %s 不在任何时间线中", domain.ErrValidation, taskID)
		}

		cleanerID := entry.CleanerID
		task := entry.Tasks[index]
		entry.Tasks = append(entry.Tasks[:index], entry.Tasks[index+1:]...)

		task.ClearSchedule()
		snapshot.Containers[task.Priority] = append(snapshot.Containers[task.Priority], task)

		cleanupRemovedCleaners(snapshot)

		return []int64{cleanerID}, nil
	})
}

// AddCleaner 把花名册中的保洁员加入当天排班。startTime 为空时用花名册里的默认值。
// 如果该保洁员之前被移出但名下还有任务，则恢复为正常状态。
func (p *Planner) AddCleaner(ctx context.Context, workDate, author string, baseRevision int64, cleanerID int64, startTime string) (*Result, error) {
	return p.mutate(ctx, workDate, author, baseRevision, domain.ModTypeAddCleaner, nil, func(snapshot *domain.Snapshot) ([]int64, error) {
		if sc := snapshot.FindSelectedCleaner(cleanerID); sc != nil {
			if !sc.Removed {
				return nil, fmt.Errorf("%w: 保洁员 %d 已经在当前排班中", domain.ErrValidation, cleanerID)
			}
			// 被移出但名下还有任务的保洁员重新入选
			sc.Removed = false
			if startTime != "" {
				sc.StartTime = startTime
			}
			return []int64{cleanerID}, nil
		}

		cleaner, err := p.store.GetCleanerByID(cleanerID)
		if err != nil {
			return nil, err
		}
		if !cleaner.IsActive {
			return nil, fmt.Errorf("%w: 保洁员 %d 已停用", domain.ErrValidation, cleanerID)
		}

		if startTime == "" {
			startTime = cleaner.DefaultStartTime
		}

		snapshot.SelectedCleaners = append(snapshot.SelectedCleaners, domain.SelectedCleaner{
			CleanerID: cleaner.ID,
			FullName:  cleaner.FullName,
			Role:      cleaner.Role,
			StartTime: startTime,
		})
		snapshot.Timeline = append(snapshot.Timeline, domain.TimelineEntry{
			CleanerID: cleaner.ID,
			Tasks:     []domain.Task{},
		})

		return nil, nil
	})
}

// RemoveCleanerFromSelection 把保洁员移出当天排班。名下没有任务时整条记录消失，
// 否则保留为 removed 标记，直到任务全部被移走。
func (p *Planner) RemoveCleanerFromSelection(ctx context.Context, workDate, author string, baseRevision int64, cleanerID int64) (*Result, error) {
	return p.mutate(ctx, workDate, author, baseRevision, domain.ModTypeRemoveCleaner, nil, func(snapshot *domain.Snapshot) ([]int64, error) {
		sc := snapshot.FindSelectedCleaner(cleanerID)
		if sc == nil || sc.Removed {
			return nil, fmt.Errorf("%w: 保洁员 %d 不在当前排班中", domain.ErrValidation, cleanerID)
		}

		sc.Removed = true
		cleanupRemovedCleaners(snapshot)

		return nil, nil
	})
}

// ResetAssignments 把所有已分配的任务退回各自的优先级容器并清空选中的保洁员
func (p *Planner) ResetAssignments(ctx context.Context, workDate, author string, baseRevision int64) (*Result, error) {
	return p.mutate(ctx, workDate, author, baseRevision, domain.ModTypeReset, nil, func(snapshot *domain.Snapshot) ([]int64, error) {
		for i := range snapshot.Timeline {
			for _, task := range snapshot.Timeline[i].Tasks {
				task.ClearSchedule()
				snapshot.Containers[task.Priority] = append(snapshot.Containers[task.Priority], task)
			}
		}
		snapshot.Timeline = []domain.TimelineEntry{}
		snapshot.SelectedCleaners = []domain.SelectedCleaner{}

		return nil, nil
	})
}

// Rollback 把某条历史修订的内容作为一条全新的修订提交，历史本身不会被改写
func (p *Planner) Rollback(ctx context.Context, workDate, author string, baseRevision int64, revisionNumber int64) (*Result, error) {
	if _, err := domain.ParseWorkDate(workDate); err != nil {
		return nil, err
	}

	unlock, err := p.lockDate(ctx, workDate)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := p.store.GetCurrent(workDate)
	if err != nil {
		return nil, err
	}
	if baseRevision > 0 && baseRevision != current.LastRevision {
		return nil, fmt.Errorf("%w: 请求基于修订 %d，当前已经是修订 %d", domain.ErrConflict, baseRevision, current.LastRevision)
	}

	revision, err := p.store.GetRevisionByNumber(workDate, revisionNumber)
	if err != nil {
		return nil, err
	}

	snapshot := revision.Snapshot.Clone()
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	number, err := p.store.CreateRevision(workDate, snapshot, author, domain.ModTypeRollback, &domain.EditDetail{
		EditedField: "revision",
		OldValue:    fmt.Sprintf("%d", current.LastRevision),
		NewValue:    fmt.Sprintf("%d", revisionNumber),
	}, current.LastRevision)
	if err != nil {
		return nil, err
	}

	return &Result{
		WorkDate: workDate,
		Revision: number,
		Snapshot: snapshot,
		Warnings: schedule.Annotate(snapshot),
	}, nil
}

// ConfirmAssignments 把当前快照落一份独立的确认导出，同时记一条内容不变的修订。
// 两者在同一个事务里完成。它不修改时间线本身。
func (p *Planner) ConfirmAssignments(ctx context.Context, workDate, author string, baseRevision int64) (*Result, *domain.ConfirmedExport, error) {
	if _, err := domain.ParseWorkDate(workDate); err != nil {
		return nil, nil, err
	}

	unlock, err := p.lockDate(ctx, workDate)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	current, err := p.store.GetCurrent(workDate)
	if err != nil {
		return nil, nil, err
	}
	if baseRevision > 0 && baseRevision != current.LastRevision {
		return nil, nil, fmt.Errorf("%w: 请求基于修订 %d，当前已经是修订 %d", domain.ErrConflict, baseRevision, current.LastRevision)
	}

	snapshot := current.Snapshot.Clone()

	number, err := p.store.ConfirmAssignments(workDate, snapshot, author, current.LastRevision)
	if err != nil {
		return nil, nil, err
	}

	export := &domain.ConfirmedExport{
		WorkDate: workDate,
		Revision: number,
		Snapshot: snapshot,
		Author:   author,
	}

	result := &Result{
		WorkDate: workDate,
		Revision: number,
		Snapshot: snapshot,
		Warnings: schedule.Annotate(snapshot),
	}

	return result, export, nil
}

// detachTask 把任务从它当前所在的位置（容器或某条时间线）取出来，
// 返回被影响的保洁员列表
func detachTask(snapshot *domain.Snapshot, taskID string) (*domain.Task, []int64, error) {
	if priority, index := snapshot.FindContainerTask(taskID); index >= 0 {
		task := snapshot.Containers[priority][index]
		snapshot.Containers[priority] = append(snapshot.Containers[priority][:index], snapshot.Containers[priority][index+1:]...)
		return &task, nil, nil
	}

	if entry, index := snapshot.FindAssignedTask(taskID); entry != nil {
		task := entry.Tasks[index]
		entry.Tasks = append(entry.Tasks[:index], entry.Tasks[index+1:]...)
		return &task, []int64{entry.CleanerID}, nil
	}

	return nil, nil, fmt.Errorf("%w: 任务 %s 不存在", domain.ErrValidation, taskID)
}
