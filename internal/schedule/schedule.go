package schedule

import (
	"math"
	"time"

	"github.com/cleanplan-dev/cleaning-planner/backend/internal/domain"
)

const (
	startTimeLayout = "15:04"

	defaultDurationMinutes  = 60
	defaultMaxTravel        = 60
	defaultMinutesPerDegree = 100
	defaultDayStart         = "08:00"
)

// Options 是重算引擎的参数，零值字段会退回到默认值
type Options struct {
	DefaultDurationMinutes int32
	MaxTravelMinutes       int32
	TravelMinutesPerDegree float64
	DefaultDayStart        string // HH:mm，保洁员上工时间无法解析时的兜底
}

func (o Options) withDefaults() Options {
	if o.DefaultDurationMinutes <= 0 {
		o.DefaultDurationMinutes = defaultDurationMinutes
	}
	if o.MaxTravelMinutes <= 0 {
		o.MaxTravelMinutes = defaultMaxTravel
	}
	if o.TravelMinutesPerDegree <= 0 {
		o.TravelMinutesPerDegree = defaultMinutesPerDegree
	}
	if o.DefaultDayStart == "" {
		o.DefaultDayStart = defaultDayStart
	}
	return o
}

// Recompute 根据保洁员的上工时间重算一条时间线上所有任务的开始时间、结束时间
// 和路途时间。它是纯函数：不修改入参，相同输入永远产生相同输出，也永远不会失败，
// 无法解析的时间和时长都会退化成默认值。
func Recompute(date time.Time, startTime string, tasks []domain.Task, opts Options) []domain.Task {
	opts = opts.withDefaults()

	result := make([]domain.Task, len(tasks))
	copy(result, tasks)
	if len(result) == 0 {
		return result
	}

	clock := dayStart(date, startTime, opts)

	for i := range result {
		var travel int32
		if i > 0 {
			travel = TravelEstimate(&result[i-1], &result[i], opts)
		}
		clock = clock.Add(time.Duration(travel) * time.Minute)
		start := clock

		duration := opts.DefaultDurationMinutes
		if result[i].DurationMinutes != nil && *result[i].DurationMinutes > 0 {
			duration = *result[i].DurationMinutes
		}
		clock = clock.Add(time.Duration(duration) * time.Minute)
		end := clock

		result[i].StartTime = &start
		result[i].EndTime = &end
		result[i].TravelMinutes = &travel
	}

	return result
}

// TravelEstimate 估算两个相邻任务之间的路途分钟数。这只是一个占位的启发式：
// 经纬度的欧氏距离按固定系数折算成分钟并封顶，不是真正的路径规划。
// 任意一侧缺少坐标时返回 0。估算是对称且确定的。
func TravelEstimate(prev, cur *domain.Task, opts Options) int32 {
	opts = opts.withDefaults()

	if prev.Latitude == nil || prev.Longitude == nil || cur.Latitude == nil || cur.Longitude == nil {
		return 0
	}

	dLat := *prev.Latitude - *cur.Latitude
	dLng := *prev.Longitude - *cur.Longitude
	minutes := int32(math.Round(math.Hypot(dLat, dLng) * opts.TravelMinutesPerDegree))

	if minutes > opts.MaxTravelMinutes {
		return opts.MaxTravelMinutes
	}
	return minutes
}

// dayStart 把 HH:mm 的上工时间落到工作日当天，格式错误时逐级退化，永远不报错
func dayStart(date time.Time, startTime string, opts Options) time.Time {
	parsed, err := time.Parse(startTimeLayout, startTime)
	if err != nil {
		parsed, err = time.Parse(startTimeLayout, opts.DefaultDayStart)
		if err != nil {
			parsed, _ = time.Parse(startTimeLayout, defaultDayStart)
		}
	}

	return time.Date(date.Year(), date.Month(), date.Day(), parsed.Hour(), parsed.Minute(), 0, 0, date.Location())
}
