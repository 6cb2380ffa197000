package warm

import (
	"time"

	"github.com/John-Robertt/AVHub/internal/config"
	"github.com/John-Robertt/AVHub/internal/domain"
)

// Observer 把预热进度从执行流程中解耦出来。
//
// 约束：
// - warm 包只发事件，不做任何输出（stdout 只留给报告 JSON）
// - 实现必须并发安全：OnItemDone 可能来自多个 goroutine
type Observer interface {
	// OnStart 在 Run 开始时调用一次。
	OnStart(cfg config.WarmConfig, providers []string)
	// OnPhaseDone 在阶段结束 / 就绪时调用（categories 与 pages）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在每次 provider 调用（含重试）结束时调用。
	OnItemDone(idx, total int, item domain.WarmItem, dur time.Duration)
	// OnProgress 用于 keepalive（由 CLI 自己的 ticker 触发）。
	OnProgress(done, total, ok, fail, skip, active int, elapsed time.Duration)
}
