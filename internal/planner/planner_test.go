package planner_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanplan-dev/cleaning-planner/backend/internal/config"
	"github.com/cleanplan-dev/cleaning-planner/backend/internal/domain"
	"github.com/cleanplan-dev/cleaning-planner/backend/internal/planner"
)

const testWorkDate = "2026-03-14"

// fakeStore 是内存版的持久化层，带和真实实现一样的 compare-and-swap 语义
type fakeStore struct {
	currents  map[string]*domain.CurrentSnapshot
	revisions map[string][]*domain.Revision
	exports   map[string]*domain.ConfirmedExport
	cleaners  map[int64]*domain.Cleaner
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		currents:  make(map[string]*domain.CurrentSnapshot),
		revisions: make(map[string][]*domain.Revision),
		exports:   make(map[string]*domain.ConfirmedExport),
		cleaners:  make(map[int64]*domain.Cleaner),
	}
}

func (s *fakeStore) GetCurrent(workDate string) (*domain.CurrentSnapshot, error) {
	current, exists := s.currents[workDate]
	if !exists {
		return nil, fmt.Errorf("%w: 工作日 %s 还没有任何快照", domain.ErrNotFound, workDate)
	}
	return &domain.CurrentSnapshot{
		WorkDate:     current.WorkDate,
		Snapshot:     current.Snapshot.Clone(),
		LastRevision: current.LastRevision,
		Author:       current.Author,
		UpdatedAt:    current.UpdatedAt,
	}, nil
}

func (s *fakeStore) CreateRevision(workDate string, snapshot *domain.Snapshot, author string, modType domain.ModType, editDetail *domain.EditDetail, expectedLastRevision int64) (int64, error) {
	if err := snapshot.Validate(); err != nil {
		return 0, err
	}

	current, exists := s.currents[workDate]
	if expectedLastRevision == 0 && exists {
		return 0, fmt.Errorf("%w: 工作日 %s 的快照已经被别人创建了", domain.ErrConflict, workDate)
	}
	if expectedLastRevision > 0 && (!exists || current.LastRevision != expectedLastRevision) {
		return 0, fmt.Errorf("%w: 工作日 %s 的当前修订已经不是 %d", domain.ErrConflict, workDate, expectedLastRevision)
	}

	number := expectedLastRevision + 1
	s.currents[workDate] = &domain.CurrentSnapshot{
		WorkDate:     workDate,
		Snapshot:     snapshot.Clone(),
		LastRevision: number,
		Author:       author,
		UpdatedAt:    time.Now(),
	}
	s.revisions[workDate] = append(s.revisions[workDate], &domain.Revision{
		WorkDate:   workDate,
		Number:     number,
		Snapshot:   snapshot.Clone(),
		Author:     author,
		ModType:    modType,
		EditDetail: editDetail,
		CreatedAt:  time.Now(),
	})

	return number, nil
}

func (s *fakeStore) ConfirmAssignments(workDate string, snapshot *domain.Snapshot, author string, expectedLastRevision int64) (int64, error) {
	number, err := s.CreateRevision(workDate, snapshot, author, domain.ModTypeConfirm, nil, expectedLastRevision)
	if err != nil {
		return 0, err
	}

	s.exports[workDate] = &domain.ConfirmedExport{
		WorkDate:  workDate,
		Revision:  number,
		Snapshot:  snapshot.Clone(),
		Author:    author,
		CreatedAt: time.Now(),
	}

	return number, nil
}

func (s *fakeStore) GetRevisionByNumber(workDate string, number int64) (*domain.Revision, error) {
	for _, revision := range s.revisions[workDate] {
		if revision.Number == number {
			return revision, nil
		}
	}
	return nil, fmt.Errorf("%w: 工作日 %s 不存在修订 %d", domain.ErrNotFound, workDate, number)
}

func (s *fakeStore) DeleteOldRevisions(workDate string, keepLast int) error {
	return nil
}

func (s *fakeStore) GetCleanerByID(id int64) (*domain.Cleaner, error) {
	cleaner, exists := s.cleaners[id]
	if !exists {
		return nil, fmt.Errorf("%w: 保洁员 %d 不在花名册中", domain.ErrNotFound, id)
	}
	return cleaner, nil
}

func f64(v float64) *float64 { return &v }
func i32(v int32) *int32     { return &v }

func containerTask(id string, lat, lng float64, duration int32) domain.Task {
	return domain.Task{
		ID:              id,
		LogisticCode:    id,
		Address:         "测试地址",
		Latitude:        f64(lat),
		Longitude:       f64(lng),
		DurationMinutes: i32(duration),
		Priority:        domain.PriorityMedia,
	}
}

// newTestPlanner 准备一个有初始快照的工作日：
// 保洁员 1（王伟，10:00 上工）和保洁员 2（李芳，09:00 上工）已入选但还没有任务，
// media 容器里有 T1、T2、T3 三个任务等待分配。
func newTestPlanner(t *testing.T) (*planner.Planner, *fakeStore) {
	t.Helper()

	store := newFakeStore()
	store.cleaners[1] = &domain.Cleaner{ID: 1, FullName: "王伟", Role: domain.RoleStandard, DefaultStartTime: "10:00", IsActive: true}
	store.cleaners[2] = &domain.Cleaner{ID: 2, FullName: "李芳", Role: domain.RolePremium, DefaultStartTime: "09:00", IsActive: true}
	store.cleaners[3] = &domain.Cleaner{ID: 3, FullName: "张敏", Role: domain.RoleFormatore, DefaultStartTime: "08:00", IsActive: true}
	store.cleaners[4] = &domain.Cleaner{ID: 4, FullName: "刘静", Role: domain.RoleStandard, DefaultStartTime: "08:00", IsActive: false}

	snapshot := domain.NewSnapshot()
	snapshot.SelectedCleaners = []domain.SelectedCleaner{
		{CleanerID: 1, FullName: "王伟", Role: domain.RoleStandard, StartTime: "10:00"},
		{CleanerID: 2, FullName: "李芳", Role: domain.RolePremium, StartTime: "09:00"},
	}
	snapshot.Timeline = []domain.TimelineEntry{
		{CleanerID: 1, Tasks: []domain.Task{}},
		{CleanerID: 2, Tasks: []domain.Task{}},
	}
	snapshot.Containers[domain.PriorityMedia] = []domain.Task{
		containerTask("T1", 45.0, 9.0, 60),
		containerTask("T2", 45.1, 9.0, 30),
		containerTask("T3", 45.1, 9.05, 45),
	}

	_, err := store.CreateRevision(testWorkDate, snapshot, "seed", domain.ModTypeExtract, nil, 0)
	require.NoError(t, err)

	return planner.New(&config.Config{}, store, nil), store
}

func taskAt(t *testing.T, snapshot *domain.Snapshot, cleanerID int64, index int) *domain.Task {
	t.Helper()
	entry := snapshot.FindTimelineEntry(cleanerID)
	require.NotNil(t, entry)
	require.Greater(t, len(entry.Tasks), index)
	return &entry.Tasks[index]
}

func TestAssignTask(t *testing.T) {
	pln, _ := newTestPlanner(t)
	ctx := context.Background()

	result, err := pln.AssignTask(ctx, testWorkDate, "tester", 1, "T1", 1, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Revision)

	// 任务离开容器，进入时间线并被重算
	assert.Len(t, result.Snapshot.Containers[domain.PriorityMedia], 2)

	task := taskAt(t, result.Snapshot, 1, 0)
	assert.Equal(t, "T1", task.ID)
	assert.Equal(t, int64(1), *task.AssignedCleaner)
	assert.Equal(t, int32(0), *task.Sequence)
	assert.Equal(t, int32(0), *task.TravelMinutes)
	assert.Equal(t, "10:00", task.StartTime.Format("15:04"))
	assert.Equal(t, "11:00", task.EndTime.Format("15:04"))
}

func TestAssignTaskSchedulesByTravel(t *testing.T) {
	pln, _ := newTestPlanner(t)
	ctx := context.Background()

	_, err := pln.AssignTask(ctx, testWorkDate, "tester", 1, "T1", 1, 0)
	require.NoError(t, err)
	_, err = pln.AssignTask(ctx, testWorkDate, "tester", 2, "T2", 1, 1)
	require.NoError(t, err)
	result, err := pln.AssignTask(ctx, testWorkDate, "tester", 3, "T3", 1, 2)
	require.NoError(t, err)

	// 三个任务依次顺延：0.1 度折算 10 分钟，0.05 度折算 5 分钟
	second := taskAt(t, result.Snapshot, 1, 1)
	assert.Equal(t, int32(10), *second.TravelMinutes)
	assert.Equal(t, "11:10", second.StartTime.Format("15:04"))
	assert.Equal(t, "11:40", second.EndTime.Format("15:04"))

	third := taskAt(t, result.Snapshot, 1, 2)
	assert.Equal(t, int32(5), *third.TravelMinutes)
	assert.Equal(t, "11:45", third.StartTime.Format("15:04"))
	assert.Equal(t, "12:30", third.EndTime.Format("15:04"))

	assert.Empty(t, result.Snapshot.Containers[domain.PriorityMedia])
}

func TestAssignTaskValidation(t *testing.T) {
	tests := map[string]struct {
		taskID    string
		cleanerID int64
		atIndex   int
	}{
		"任务不存在":      {taskID: "不存在", cleanerID: 1, atIndex: 0},
		"保洁员不在排班中":   {taskID: "T1", cleanerID: 99, atIndex: 0},
		"插入位置超出范围":   {taskID: "T1", cleanerID: 1, atIndex: 5},
		"插入位置不能是负数": {taskID: "T1", cleanerID: 1, atIndex: -1},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			pln, store := newTestPlanner(t)

			_, err := pln.AssignTask(context.Background(), testWorkDate, "tester", 1, test.taskID, test.cleanerID, test.atIndex)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)

			// 失败的操作不产生新修订
			assert.Equal(t, int64(1), store.currents[testWorkDate].LastRevision)
		})
	}
}

func TestMutationConflict(t *testing.T) {
	pln, _ := newTestPlanner(t)
	ctx := context.Background()

	_, err := pln.AssignTask(ctx, testWorkDate, "tester", 1, "T1", 1, 0)
	require.NoError(t, err)

	// 另一个客户端还基于修订 1 发请求，必须被拒绝而不是合并
	_, err = pln.AssignTask(ctx, testWorkDate, "tester", 1, "T2", 1, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestMutationInvalidWorkDate(t *testing.T) {
	pln, _ := newTestPlanner(t)

	_, err := pln.AssignTask(context.Background(), "14/03/2026", "tester", 1, "T1", 1, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRemoveTaskRoundTrip(t *testing.T) {
	pln, _ := newTestPlanner(t)
	ctx := context.Background()

	_, err := pln.AssignTask(ctx, testWorkDate, "tester", 1, "T1", 1, 0)
	require.NoError(t, err)

	result, err := pln.RemoveTaskFromTimeline(ctx, testWorkDate, "tester", 2, "T1")
	require.NoError(t, err)

	// 任务回到原来的优先级容器，调度属性全部清空
	entry := result.Snapshot.FindTimelineEntry(1)
	require.NotNil(t, entry)
	assert.Empty(t, entry.Tasks)

	priority, index := result.Snapshot.FindContainerTask("T1")
	require.GreaterOrEqual(t, index, 0)
	assert.Equal(t, domain.PriorityMedia, priority)

	task := result.Snapshot.Containers[priority][index]
	assert.Nil(t, task.AssignedCleaner)
	assert.Nil(t, task.Sequence)
	assert.Nil(t, task.StartTime)
	assert.Nil(t, task.EndTime)
	assert.Nil(t, task.TravelMinutes)
}

func TestReorderTask(t *testing.T) {
	pln, _ := newTestPlanner(t)
	ctx := context.Background()

	_, err := pln.AssignTask(ctx, testWorkDate, "tester", 1, "T1", 1, 0)
	require.NoError(t, err)
	_, err = pln.AssignTask(ctx, testWorkDate, "tester", 2, "T2", 1, 1)
	require.NoError(t, err)

	result, err := pln.ReorderTask(ctx, testWorkDate, "tester", 3, 1, "T2", 1, 0)
	require.NoError(t, err)

	first := taskAt(t, result.Snapshot, 1, 0)
	second := taskAt(t, result.Snapshot, 1, 1)
	assert.Equal(t, "T2", first.ID)
	assert.Equal(t, "T1", second.ID)

	// 重新编号且时间被重算
	assert.Equal(t, int32(0), *first.Sequence)
	assert.Equal(t, int32(1), *second.Sequence)
	assert.Equal(t, "10:00", first.StartTime.Format("15:04"))

	// 位置上的任务对不上时拒绝
	_, err = pln.ReorderTask(ctx, testWorkDate, "tester", 4, 1, "T1", 0, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMoveTaskBetweenCleaners(t *testing.T) {
	pln, _ := newTestPlanner(t)
	ctx := context.Background()

	_, err := pln.AssignTask(ctx, testWorkDate, "tester", 1, "T1", 1, 0)
	require.NoError(t, err)

	result, err := pln.MoveTaskBetweenCleaners(ctx, testWorkDate, "tester", 2, "T1", 1, 2, 0)
	require.NoError(t, err)

	source := result.Snapshot.FindTimelineEntry(1)
	require.NotNil(t, source)
	assert.Empty(t, source.Tasks)

	// 接收方按自己的上工时间重算
	task := taskAt(t, result.Snapshot, 2, 0)
	assert.Equal(t, "T1", task.ID)
	assert.Equal(t, int64(2), *task.AssignedCleaner)
	assert.Equal(t, "09:00", task.StartTime.Format("15:04"))

	// 来源不对时拒绝
	_, err = pln.MoveTaskBetweenCleaners(ctx, testWorkDate, "tester", 3, "T1", 1, 2, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSwapCleanerTasks(t *testing.T) {
	pln, _ := newTestPlanner(t)
	ctx := context.Background()

	_, err := pln.AssignTask(ctx, testWorkDate, "tester", 1, "T1", 1, 0)
	require.NoError(t, err)
	_, err = pln.AssignTask(ctx, testWorkDate, "tester", 2, "T2", 1, 1)
	require.NoError(t, err)
	_, err = pln.AssignTask(ctx, testWorkDate, "tester", 3, "T3", 2, 0)
	require.NoError(t, err)

	result, err := pln.SwapCleanerTasks(ctx, testWorkDate, "tester", 4, 1, 2)
	require.NoError(t, err)

	// 保洁员 1 拿到了 T3，保洁员 2 拿到了 T1 和 T2，各自按自己的上工时间重算
	entry1 := result.Snapshot.FindTimelineEntry(1)
	require.NotNil(t, entry1)
	require.Len(t, entry1.Tasks, 1)
	assert.Equal(t, "T3", entry1.Tasks[0].ID)
	assert.Equal(t, int64(1), *entry1.Tasks[0].AssignedCleaner)
	assert.Equal(t, "10:00", entry1.Tasks[0].StartTime.Format("15:04"))

	entry2 := result.Snapshot.FindTimelineEntry(2)
	require.NotNil(t, entry2)
	require.Len(t, entry2.Tasks, 2)
	assert.Equal(t, "T1", entry2.Tasks[0].ID)
	assert.Equal(t, "09:00", entry2.Tasks[0].StartTime.Format("15:04"))
	assert.Equal(t, int32(0), *entry2.Tasks[0].Sequence)
	assert.Equal(t, int32(1), *entry2.Tasks[1].Sequence)
}

func TestSwapRequiresBothNonEmpty(t *testing.T) {
	pln, _ := newTestPlanner(t)
	ctx := context.Background()

	_, err := pln.AssignTask(ctx, testWorkDate, "tester", 1, "T1", 1, 0)
	require.NoError(t, err)

	// 保洁员 2 名下没有任务
	_, err = pln.SwapCleanerTasks(ctx, testWorkDate, "tester", 2, 1, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = pln.SwapCleanerTasks(ctx, testWorkDate, "tester", 2, 1, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAddCleaner(t *testing.T) {
	pln, _ := newTestPlanner(t)
	ctx := context.Background()

	// 不指定上工时间时用花名册中的默认值
	result, err := pln.AddCleaner(ctx, testWorkDate, "tester", 1, 3, "")
	require.NoError(t, err)

	sc := result.Snapshot.FindSelectedCleaner(3)
	require.NotNil(t, sc)
	assert.Equal(t, "08:00", sc.StartTime)
	assert.Equal(t, domain.RoleFormatore, sc.Role)
	require.NotNil(t, result.Snapshot.FindTimelineEntry(3))

	// 已经在排班中的不能重复添加
	_, err = pln.AddCleaner(ctx, testWorkDate, "tester", 2, 3, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)

	// 停用的保洁员不能入选
	_, err = pln.AddCleaner(ctx, testWorkDate, "tester", 2, 4, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)

	// 不在花名册中的保洁员
	_, err = pln.AddCleaner(ctx, testWorkDate, "tester", 2, 99, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemoveCleanerWithoutTasks(t *testing.T) {
	pln, _ := newTestPlanner(t)

	result, err := pln.RemoveCleanerFromSelection(context.Background(), testWorkDate, "tester", 1, 2)
	require.NoError(t, err)

	// 名下没有任务，整条记录直接消失
	assert.Nil(t, result.Snapshot.FindSelectedCleaner(2))
	assert.Nil(t, result.Snapshot.FindTimelineEntry(2))
}

func TestRemoveCleanerWithTasks(t *testing.T) {
	pln, _ := newTestPlanner(t)
	ctx := context.Background()

	_, err := pln.AssignTask(ctx, testWorkDate, "tester", 1, "T1", 1, 0)
	require.NoError(t, err)

	result, err := pln.RemoveCleanerFromSelection(ctx, testWorkDate, "tester", 2, 1)
	require.NoError(t, err)

	// 名下还有任务，保留 removed 标记
	sc := result.Snapshot.FindSelectedCleaner(1)
	require.NotNil(t, sc)
	assert.True(t, sc.Removed)

	// 移出后不能再往这个保洁员分配任务
	_, err = pln.AssignTask(ctx, testWorkDate, "tester", 3, "T2", 1, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)

	// 最后一个任务移走后整条记录消失
	result, err = pln.RemoveTaskFromTimeline(ctx, testWorkDate, "tester", 3, "T1")
	require.NoError(t, err)
	assert.Nil(t, result.Snapshot.FindSelectedCleaner(1))
	assert.Nil(t, result.Snapshot.FindTimelineEntry(1))

	// 被移出后还可以重新入选
	result, err = pln.AddCleaner(ctx, testWorkDate, "tester", 4, 1, "11:00")
	require.NoError(t, err)
	sc = result.Snapshot.FindSelectedCleaner(1)
	require.NotNil(t, sc)
	assert.False(t, sc.Removed)
	assert.Equal(t, "11:00", sc.StartTime)
}

func TestResetAssignments(t *testing.T) {
	pln, _ := newTestPlanner(t)
	ctx := context.Background()

	_, err := pln.AssignTask(ctx, testWorkDate, "tester", 1, "T1", 1, 0)
	require.NoError(t, err)
	_, err = pln.AssignTask(ctx, testWorkDate, "tester", 2, "T2", 2, 0)
	require.NoError(t, err)

	result, err := pln.ResetAssignments(ctx, testWorkDate, "tester", 3)
	require.NoError(t, err)

	assert.Empty(t, result.Snapshot.SelectedCleaners)
	assert.Empty(t, result.Snapshot.Timeline)
	assert.Len(t, result.Snapshot.Containers[domain.PriorityMedia], 3)

	for _, task := range result.Snapshot.Containers[domain.PriorityMedia] {
		assert.Nil(t, task.AssignedCleaner)
		assert.Nil(t, task.StartTime)
	}
}

func TestRollback(t *testing.T) {
	pln, store := newTestPlanner(t)
	ctx := context.Background()

	_, err := pln.AssignTask(ctx, testWorkDate, "tester", 1, "T1", 1, 0)
	require.NoError(t, err)
	_, err = pln.AssignTask(ctx, testWorkDate, "tester", 2, "T2", 1, 1)
	require.NoError(t, err)

	// 回滚到修订 2，生成的是一条更新的修订而不是改写历史
	result, err := pln.Rollback(ctx, testWorkDate, "tester", 3, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.Revision)

	target, err := store.GetRevisionByNumber(testWorkDate, 2)
	require.NoError(t, err)
	assert.Equal(t, target.Snapshot, result.Snapshot)

	// 历史没有被改写
	assert.Len(t, store.revisions[testWorkDate], 4)
	rollbackRevision, err := store.GetRevisionByNumber(testWorkDate, 4)
	require.NoError(t, err)
	assert.Equal(t, domain.ModTypeRollback, rollbackRevision.ModType)
	require.NotNil(t, rollbackRevision.EditDetail)
	assert.Equal(t, "3", rollbackRevision.EditDetail.OldValue)
	assert.Equal(t, "2", rollbackRevision.EditDetail.NewValue)

	// 不存在的修订号
	_, err = pln.Rollback(ctx, testWorkDate, "tester", 4, 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConfirmAssignments(t *testing.T) {
	pln, store := newTestPlanner(t)
	ctx := context.Background()

	_, err := pln.AssignTask(ctx, testWorkDate, "tester", 1, "T1", 1, 0)
	require.NoError(t, err)

	result, export, err := pln.ConfirmAssignments(ctx, testWorkDate, "tester", 2)
	require.NoError(t, err)

	// 确认记一条内容不变的修订，并落一份确认导出
	assert.Equal(t, int64(3), result.Revision)
	require.NotNil(t, export)
	assert.Equal(t, int64(3), export.Revision)
	assert.Equal(t, "tester", export.Author)
	assert.Equal(t, result.Snapshot, export.Snapshot)

	previous, err := store.GetRevisionByNumber(testWorkDate, 2)
	require.NoError(t, err)
	assert.Equal(t, previous.Snapshot, result.Snapshot)

	// 基于过期修订的确认被拒绝
	_, _, err = pln.ConfirmAssignments(ctx, testWorkDate, "tester", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestMutationOnMissingWorkDate(t *testing.T) {
	pln, _ := newTestPlanner(t)

	_, err := pln.AssignTask(context.Background(), "2026-12-31", "tester", 0, "T1", 1, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
