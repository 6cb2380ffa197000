package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/AVHub/internal/app/warm"
	"github.com/John-Robertt/AVHub/internal/config"
	"github.com/John-Robertt/AVHub/internal/domain"
)

var _ warm.Observer = (*progressUI)(nil)

// progressUI 是 avhub warm 的终端进度输出。
//
// 约束：
// - 所有过程信息写到 w（通常是 stderr），不污染 stdout 的报告 JSON
// - 长时间无条目完成时由 ticker 输出 keepalive 行
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	workers int
	total   int
	done    int
	ok      int
	fail    int
	skip    int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(cfg config.WarmConfig, providers []string) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] AVHub warm\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  providers: %s\n", formatList(providers))
	fmt.Fprintf(p.w, "  pages: %d\n", cfg.Pages)
	fmt.Fprintf(p.w, "  retries: %d (delay %s, 指数退避)\n", cfg.Retries, cfg.RetryDelay)
	fmt.Fprintf(p.w, "  concurrency: %d\n", cfg.Concurrency)
	if cfg.ReportPath != "" {
		fmt.Fprintf(p.w, "  report: %s\n", cfg.ReportPath)
	}
	fmt.Fprintln(p.w)
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "categories":
		fmt.Fprintf(p.w, "分类: providers=%d categories=%d (%s)\n",
			intField(fields, "providers"), intField(fields, "categories"), formatShortDuration(dur),
		)
	case "pages":
		p.workers = intField(fields, "workers")
		p.total = intField(fields, "total_items")
		p.done, p.ok, p.fail, p.skip = 0, 0, 0, 0
		fmt.Fprintf(p.w, "列表: workers=%d total_items=%d\n\n", p.workers, p.total)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemDone(idx, total int, it domain.WarmItem, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total
	label := it.Provider + " " + it.Resource + " " + it.Key

	switch it.Status {
	case domain.WarmStatusOK:
		p.ok++
		retried := ""
		if it.Attempts > 1 {
			retried = fmt.Sprintf(" attempts=%d", it.Attempts)
		}
		fmt.Fprintf(p.w, "[%d/%d] %s OK count=%d%s (%s)\n", idx, total, label, it.Count, retried, formatShortDuration(dur))
	case domain.WarmStatusSkipped:
		p.skip++
		fmt.Fprintf(p.w, "[%d/%d] %s SKIP (%s)\n", idx, total, label, it.ErrorMsg)
	default:
		p.fail++
		fmt.Fprintf(p.w, "[%d/%d] %s FAIL %s: %s attempts=%d (%s)\n",
			idx, total, label, it.ErrorKind, truncate(it.ErrorMsg, 160), it.Attempts, formatShortDuration(dur),
		)
	}
	p.lastPrinted = time.Now()

	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) OnProgress(done, total, ok, fail, skip, active int, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printProgressLocked(done, total, ok, fail, skip, active, elapsed)
}

func (p *progressUI) printProgressLocked(done, total, ok, fail, skip, active int, elapsed time.Duration) {
	fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d skip=%d active=%d elapsed=%s\n",
		done, total, ok, fail, skip, active, formatElapsed(elapsed),
	)
	p.lastPrinted = time.Now()
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					active := min(p.workers, p.total-p.done)
					p.printProgressLocked(p.done, p.total, p.ok, p.fail, p.skip, active, time.Since(p.startedAt))
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func formatList(xs []string) string {
	if len(xs) == 0 {
		return "(none)"
	}
	return strings.Join(xs, ", ")
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}

func intField(fields map[string]any, key string) int {
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
