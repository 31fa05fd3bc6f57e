package planner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cleanplan-dev/cleaning-planner/backend/internal/config"
	"github.com/cleanplan-dev/cleaning-planner/backend/internal/domain"
	"github.com/cleanplan-dev/cleaning-planner/backend/internal/schedule"
)

// Store 是变更引擎需要的持久化操作，由 repository 实现。
// CreateRevision 和 ConfirmAssignments 必须在 expectedLastRevision 上做
// compare-and-swap：当前修订号对不上时返回 domain.ErrConflict，并且什么都不写。
type Store interface {
	GetCurrent(workDate string) (*domain.CurrentSnapshot, error)
	CreateRevision(workDate string, snapshot *domain.Snapshot, author string, modType domain.ModType, editDetail *domain.EditDetail, expectedLastRevision int64) (int64, error)
	ConfirmAssignments(workDate string, snapshot *domain.Snapshot, author string, expectedLastRevision int64) (int64, error)
	GetRevisionByNumber(workDate string, number int64) (*domain.Revision, error)
	DeleteOldRevisions(workDate string, keepLast int) error
	GetCleanerByID(id int64) (*domain.Cleaner, error)
}

// Result 是每个变更操作的返回值，带上完整的新快照让调用方不用再发一次请求
type Result struct {
	WorkDate string             `json:"workDate"`
	Revision int64              `json:"revision"`
	Snapshot *domain.Snapshot   `json:"snapshot"`
	Warnings []schedule.Warning `json:"warnings"`
}

// Planner 实现分配状态机：加载当前快照、应用结构变更、重算受影响的时间线、
// 提交一条新修订。同一个工作日的写操作串行执行，不同工作日互不影响。
type Planner struct {
	cfg   *config.Config
	store Store
	rdb   *redis.Client // 可以为 nil，单副本部署时只靠进程内锁

	mu        sync.Mutex
	dateLocks map[string]*sync.Mutex
}

func New(cfg *config.Config, store Store, rdb *redis.Client) *Planner {
	return &Planner{
		cfg:       cfg,
		store:     store,
		rdb:       rdb,
		dateLocks: make(map[string]*sync.Mutex),
	}
}

func (p *Planner) scheduleOptions() schedule.Options {
	return schedule.Options{
		DefaultDurationMinutes: p.cfg.Schedule.DefaultDurationMinutes,
		MaxTravelMinutes:       p.cfg.Schedule.MaxTravelMinutes,
		TravelMinutesPerDegree: p.cfg.Schedule.TravelMinutesPerDegree,
		DefaultDayStart:        p.cfg.Schedule.DefaultDayStart,
	}
}

// lockDate 对一个工作日加写锁。进程内用互斥锁，多副本部署时再叠加一把
// redis 锁。等待超时说明有别的修改一直没结束，按冲突处理让调用方稍后重试。
func (p *Planner) lockDate(ctx context.Context, workDate string) (func(), error) {
	p.mu.Lock()
	local, exists := p.dateLocks[workDate]
	if !exists {
		local = &sync.Mutex{}
		p.dateLocks[workDate] = local
	}
	p.mu.Unlock()

	local.Lock()

	if p.rdb == nil {
		return local.Unlock, nil
	}

	key := "cleaning_planner:work_date_lock:" + workDate
	expiration := time.Duration(p.cfg.Redis.LockExpiration) * time.Second
	deadline := time.Now().Add(time.Duration(p.cfg.Redis.LockWaitTimeout) * time.Second)

	for {
		acquired, err := p.rdb.SetNX(ctx, key, "locked", expiration).Result()
		if err != nil {
			local.Unlock()
			return nil, err
		}
		if acquired {
			break
		}
		if time.Now().After(deadline) {
			local.Unlock()
			return nil, fmt.Errorf("%w: 工作日 %s 正在被其他人修改", domain.ErrConflict, workDate)
		}
		time.Sleep(100 * time.Millisecond)
	}

	return func() {
		if err := p.rdb.Del(context.Background(), key).Err(); err != nil {
			slog.Error("无法释放工作日写锁", "workDate", workDate, "error", err)
		}
		local.Unlock()
	}, nil
}

// mutate 是所有变更操作共用的骨架：
// 加锁 → 读当前快照 → 校验调用方读到的修订号 → 在深拷贝上应用结构变更 →
// 重算受影响的时间线 → 校验不变量 → CAS 提交新修订。
// 任何一步失败都不会写入新修订，之前的状态保持原样。
func (p *Planner) mutate(
	ctx context.Context,
	workDate string,
	author string,
	baseRevision int64,
	modType domain.ModType,
	editDetail *domain.EditDetail,
	apply func(snapshot *domain.Snapshot) ([]int64, error),
) (*Result, error) {
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

	// 调用方带上了它读取时的修订号，对不上就直接拒绝，绝不合并
	if baseRevision > 0 && baseRevision != current.LastRevision {
		return nil, fmt.Errorf("%w: 请求基于修订 %d，当前已经是修订 %d", domain.ErrConflict, baseRevision, current.LastRevision)
	}

	snapshot := current.Snapshot.Clone()

	changed, err := apply(snapshot)
	if err != nil {
		return nil, err
	}

	p.rescheduleCleaners(workDate, snapshot, changed)

	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	number, err := p.store.CreateRevision(workDate, snapshot, author, modType, editDetail, current.LastRevision)
	if err != nil {
		return nil, err
	}

	if keep := p.cfg.Snapshot.RetentionKeepLast; keep > 0 {
		// 清理失败不影响本次修改，下次再清
		if err := p.store.DeleteOldRevisions(workDate, keep); err != nil {
			slog.Error("无法清理历史修订", "workDate", workDate, "error", err)
		}
	}

	return &Result{
		WorkDate: workDate,
		Revision: number,
		Snapshot: snapshot,
		Warnings: schedule.Annotate(snapshot),
	}, nil
}

// rescheduleCleaners 对结构变更涉及到的保洁员重新编号并重算时间
func (p *Planner) rescheduleCleaners(workDate string, snapshot *domain.Snapshot, cleanerIDs []int64) {
	date, _ := domain.ParseWorkDate(workDate)
	opts := p.scheduleOptions()

	done := make(map[int64]bool, len(cleanerIDs))
	for _, cleanerID := range cleanerIDs {
		if done[cleanerID] {
			continue
		}
		done[cleanerID] = true

		entry := snapshot.FindTimelineEntry(cleanerID)
		if entry == nil {
			// 这个保洁员的时间线在本次变更中被整个移除了
			continue
		}

		renumber(entry)

		startTime := ""
		if sc := snapshot.FindSelectedCleaner(cleanerID); sc != nil {
			startTime = sc.StartTime
		}
		entry.Tasks = schedule.Recompute(date, startTime, entry.Tasks, opts)
	}
}

// renumber 把一条时间线上的 sequence 重写成 0..n-1，并同步 assignedCleaner
func renumber(entry *domain.TimelineEntry) {
	for i := range entry.Tasks {
		seq := int32(i)
		cleanerID := entry.CleanerID
		entry.Tasks[i].Sequence = &seq
		entry.Tasks[i].AssignedCleaner = &cleanerID
	}
}

// cleanupRemovedCleaners 把「已移出排班且名下已无任务」的保洁员彻底清掉
func cleanupRemovedCleaners(snapshot *domain.Snapshot) {
	kept := snapshot.SelectedCleaners[:0]
	for _, sc := range snapshot.SelectedCleaners {
		entry := snapshot.FindTimelineEntry(sc.CleanerID)
		if sc.Removed && (entry == nil || len(entry.Tasks) == 0) {
			if entry != nil {
				removeTimelineEntry(snapshot, sc.CleanerID)
			}
			continue
		}
		kept = append(kept, sc)
	}
	snapshot.SelectedCleaners = kept
}

func removeTimelineEntry(snapshot *domain.Snapshot, cleanerID int64) {
	for i := range snapshot.Timeline {
		if snapshot.Timeline[i].CleanerID == cleanerID {
			snapshot.Timeline = append(snapshot.Timeline[:i], snapshot.Timeline[i+1:]...)
			return
		}
	}
}
