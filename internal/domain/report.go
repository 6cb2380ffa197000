package domain

import (
	"sort"
	"time"
)

const (
	WarmStatusOK      = "ok"
	WarmStatusFailed  = "failed"
	WarmStatusSkipped = "skipped"
)

// WarmReport 是一次缓存预热（avhub warm）的对外输出结构。
type WarmReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary WarmSummary `json:"summary"`
	Items   []WarmItem  `json:"items"`
}

type WarmSummary struct {
	OK      int `json:"ok"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// WarmItem 记录一次预热调用（某 provider 的某个资源）。
type WarmItem struct {
	Provider string `json:"provider"`
	Resource string `json:"resource"`
	Key      string `json:"key"`

	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	Count     int    `json:"count"`
	ErrorKind string `json:"error_kind,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) items 稳定排序：provider -> resource -> key
// 3) summary 由 items 计算得出
func (r *WarmReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a, b := r.Items[i], r.Items[j]
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		if a.Resource != b.Resource {
			return a.Resource < b.Resource
		}
		return a.Key < b.Key
	})

	var s WarmSummary
	for _, it := range r.Items {
		switch it.Status {
		case WarmStatusOK:
			s.OK++
		case WarmStatusFailed:
			s.Failed++
		case WarmStatusSkipped:
			s.Skipped++
		}
	}
	r.Summary = s
}
