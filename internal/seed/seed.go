package seed

import (
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/cleanplan-dev/cleaning-planner/backend/internal/config"
	"github.com/cleanplan-dev/cleaning-planner/backend/internal/domain"
	"github.com/cleanplan-dev/cleaning-planner/backend/internal/repository"
	"github.com/cleanplan-dev/cleaning-planner/backend/internal/utils"
)

// 演示任务都撒在这个基准坐标附近（广州市中心）
const (
	baseLatitude  = 23.13
	baseLongitude = 113.26
)

const (
	seedUserCount    = 3
	seedCleanerCount = 8
	seedTaskCount    = 15
	seedWorkDateDays = 3
)

// SeedDemoData 生成演示数据：几个调度员账号、一批保洁员花名册，
// 以及接下来几个工作日各自的初始快照（任务全部在容器里等待分配）。
func SeedDemoData(r *repository.Repository, cfg *config.Config) {
	// 插入调度员账号
	for i := 0; i < seedUserCount; i++ {
		user, err := utils.GenerateRandomUser(cfg.Seed.User.Password, cfg.Email.UserDomain)
		if err != nil {
			slog.Error("生成调度员失败", "error", err)
			continue
		}

		if err := r.CreateUser(user); err != nil {
			slog.Error("插入调度员失败", "error", err)
			continue
		}

		slog.Info("插入调度员成功", "username", user.Username, "fullName", user.FullName)
	}

	// 插入保洁员花名册
	for i := 0; i < seedCleanerCount; i++ {
		cleaner := utils.GenerateRandomCleaner()

		if err := r.CreateCleaner(cleaner); err != nil {
			slog.Error("插入保洁员失败", "error", err)
			continue
		}

		slog.Info("插入保洁员成功", "id", cleaner.ID, "fullName", cleaner.FullName, "role", cleaner.Role)
	}

	cleaners, err := r.GetAllCleaners()
	if err != nil {
		slog.Error("获取保洁员花名册失败", "error", err)
		return
	}

	// 给接下来的几个工作日各生成一份初始快照
	for day := 0; day < seedWorkDateDays; day++ {
		workDate := time.Now().AddDate(0, 0, day).Format(domain.WorkDateLayout)

		snapshot := domain.NewSnapshot()

		for i := 0; i < seedTaskCount; i++ {
			task := utils.GenerateRandomTask(baseLatitude, baseLongitude)
			snapshot.Containers[task.Priority] = append(snapshot.Containers[task.Priority], *task)
		}

		// 随机选几个在岗的保洁员进入当天排班
		for _, cleaner := range cleaners {
			if !cleaner.IsActive || rand.Intn(2) == 0 {
				continue
			}

			snapshot.SelectedCleaners = append(snapshot.SelectedCleaners, domain.SelectedCleaner{
				CleanerID: cleaner.ID,
				FullName:  cleaner.FullName,
				Role:      cleaner.Role,
				StartTime: cleaner.DefaultStartTime,
			})
			snapshot.Timeline = append(snapshot.Timeline, domain.TimelineEntry{
				CleanerID: cleaner.ID,
				Tasks:     []domain.Task{},
			})
		}

		if _, err := r.CreateRevision(workDate, snapshot, "seed", domain.ModTypeExtract, nil, 0); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				slog.Info("工作日已经有快照，跳过", "workDate", workDate)
				continue
			}
			slog.Error("插入初始快照失败", "workDate", workDate, "error", err)
			continue
		}

		slog.Info("插入初始快照成功", "workDate", workDate)
	}

	slog.Info("插入演示数据完成")
}
