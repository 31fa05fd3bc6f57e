package domain

import (
	"fmt"
	"time"
)

// SnapshotSchemaVersion 是当前快照结构的版本号，存储层读取到更老的版本时需要先迁移
const SnapshotSchemaVersion int32 = 1

type TimelineEntry struct {
	CleanerID int64  `json:"cleanerID"`
	Tasks     []Task `json:"tasks"`
}

// Snapshot 是一个工作日的完整状态，所有变更操作都以它为单位读写
type Snapshot struct {
	SchemaVersion    int32               `json:"schemaVersion"`
	SelectedCleaners []SelectedCleaner   `json:"selectedCleaners"`
	Timeline         []TimelineEntry     `json:"timeline"`
	Containers       map[Priority][]Task `json:"containers"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		SchemaVersion:    SnapshotSchemaVersion,
		SelectedCleaners: []SelectedCleaner{},
		Timeline:         []TimelineEntry{},
		Containers: map[Priority][]Task{
			PriorityAlta:  {},
			PriorityMedia: {},
			PriorityBassa: {},
		},
	}
}

func (s *Snapshot) FindSelectedCleaner(cleanerID int64) *SelectedCleaner {
	for i := range s.SelectedCleaners {
		if s.SelectedCleaners[i].CleanerID == cleanerID {
			return &s.SelectedCleaners[i]
		}
	}
	return nil
}

func (s *Snapshot) FindTimelineEntry(cleanerID int64) *TimelineEntry {
	for i := range s.Timeline {
		if s.Timeline[i].CleanerID == cleanerID {
			return &s.Timeline[i]
		}
	}
	return nil
}

// FindAssignedTask 在时间线中查找任务，返回任务所在的时间线条目和下标
func (s *Snapshot) FindAssignedTask(taskID string) (*TimelineEntry, int) {
	for i := range s.Timeline {
		for j := range s.Timeline[i].Tasks {
			if s.Timeline[i].Tasks[j].ID == taskID {
				return &s.Timeline[i], j
			}
		}
	}
	return nil, -1
}

// FindContainerTask 在容器中查找任务，返回任务所在的优先级和下标
func (s *Snapshot) FindContainerTask(taskID string) (Priority, int) {
	for priority, tasks := range s.Containers {
		for i := range tasks {
			if tasks[i].ID == taskID {
				return priority, i
			}
		}
	}
	return "", -1
}

// Clone 返回快照的深拷贝，变更操作必须在拷贝上进行，防止失败时污染当前快照
func (s *Snapshot) Clone() *Snapshot {
	clone := &Snapshot{
		SchemaVersion:    s.SchemaVersion,
		SelectedCleaners: append([]SelectedCleaner{}, s.SelectedCleaners...),
		Timeline:         make([]TimelineEntry, len(s.Timeline)),
		Containers:       make(map[Priority][]Task, len(s.Containers)),
	}

	for i := range s.Timeline {
		clone.Timeline[i] = TimelineEntry{
			CleanerID: s.Timeline[i].CleanerID,
			Tasks:     cloneTasks(s.Timeline[i].Tasks),
		}
	}

	for priority, tasks := range s.Containers {
		clone.Containers[priority] = cloneTasks(tasks)
	}

	return clone
}

func cloneTasks(tasks []Task) []Task {
	cloned := make([]Task, len(tasks))
	for i := range tasks {
		cloned[i] = tasks[i]
		cloned[i].Latitude = clonePtr(tasks[i].Latitude)
		cloned[i].Longitude = clonePtr(tasks[i].Longitude)
		cloned[i].DurationMinutes = clonePtr(tasks[i].DurationMinutes)
		cloned[i].AssignedCleaner = clonePtr(tasks[i].AssignedCleaner)
		cloned[i].Sequence = clonePtr(tasks[i].Sequence)
		cloned[i].StartTime = clonePtr(tasks[i].StartTime)
		cloned[i].EndTime = clonePtr(tasks[i].EndTime)
		cloned[i].TravelMinutes = clonePtr(tasks[i].TravelMinutes)
	}
	return cloned
}

func clonePtr[T int32 | int64 | float64 | time.Time](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Validate 检查快照的不变量，是持久化前的最后一道防线：
//  1. 每个任务要么在唯一一个保洁员的时间线中，要么在唯一一个容器中，不允许重复或缺失
//  2. 每个保洁员时间线中的 sequence 必须恰好是 0..n-1
//  3. 每条时间线必须对应一个被选中的保洁员，标记为 removed 的保洁员名下必须还有任务
func (s *Snapshot) Validate() error {
	if s.SchemaVersion != SnapshotSchemaVersion {
		return fmt.Errorf("%w: 快照结构版本 %d 不是当前版本 %d", ErrValidation, s.SchemaVersion, SnapshotSchemaVersion)
	}

	selectedMap := make(map[int64]*SelectedCleaner, len(s.SelectedCleaners))
	for i := range s.SelectedCleaners {
		sc := &s.SelectedCleaners[i]
		if _, exists := selectedMap[sc.CleanerID]; exists {
			return fmt.Errorf("%w: 保洁员 %d 在选中列表中出现了多次", ErrValidation, sc.CleanerID)
		}
		selectedMap[sc.CleanerID] = sc
	}

	seenTasks := make(map[string]bool)

	for i := range s.Timeline {
		entry := &s.Timeline[i]

		sc, exists := selectedMap[entry.CleanerID]
		if !exists {
			return fmt.Errorf("%w: 时间线中的保洁员 %d 不在选中列表中", ErrValidation, entry.CleanerID)
		}
		if sc.Removed && len(entry.Tasks) == 0 {
			return fmt.Errorf("%w: 保洁员 %d 已被移出排班且名下没有任务，不应该再保留", ErrValidation, entry.CleanerID)
		}

		for j := range entry.Tasks {
			task := &entry.Tasks[j]
			if seenTasks[task.ID] {
				return fmt.Errorf("%w: 任务 %s 出现了多次", ErrValidation, task.ID)
			}
			seenTasks[task.ID] = true

			// sequence 必须恰好是 0..n-1，没有空洞也没有重复
			if task.Sequence == nil || int(*task.Sequence) != j {
				return fmt.Errorf("%w: 保洁员 %d 的第 %d 个任务的 sequence 不正确", ErrValidation, entry.CleanerID, j)
			}
			if task.AssignedCleaner == nil || *task.AssignedCleaner != entry.CleanerID {
				return fmt.Errorf("%w: 任务 %s 的 assignedCleaner 和所在时间线不一致", ErrValidation, task.ID)
			}
		}
	}

	for priority, tasks := range s.Containers {
		if !priority.IsValid() {
			return fmt.Errorf("%w: 容器的优先级 %s 无效", ErrValidation, priority)
		}
		for i := range tasks {
			task := &tasks[i]
			if seenTasks[task.ID] {
				return fmt.Errorf("%w: 任务 %s 出现了多次", ErrValidation, task.ID)
			}
			seenTasks[task.ID] = true

			if task.AssignedCleaner != nil || task.Sequence != nil || task.StartTime != nil || task.EndTime != nil || task.TravelMinutes != nil {
				return fmt.Errorf("%w: 容器中的任务 %s 带有调度属性", ErrValidation, task.ID)
			}
		}
	}

	return nil
}
