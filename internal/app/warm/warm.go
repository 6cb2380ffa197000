// Package warm 是缓存预热任务：按配置依次访问每个 provider 的分类、列表页与分类首页，把成功结果写入缓存。
package warm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/John-Robertt/AVHub/internal/cache"
	"github.com/John-Robertt/AVHub/internal/config"
	"github.com/John-Robertt/AVHub/internal/domain"
	"github.com/John-Robertt/AVHub/internal/infra/fsx"
	"github.com/John-Robertt/AVHub/internal/logging"
	"github.com/John-Robertt/AVHub/internal/provider"
)

const (
	phaseCategories = "categories"
	phasePages      = "pages"

	maxRetryDelay = 10 * time.Second
)

// job 是一次待预热的 provider 调用。
type job struct {
	provider string
	resource string
	key      string
	skip     string // 非空表示不调用，直接记为 skipped（原因）
	call     func(ctx context.Context) (int, error)
}

// Run 执行一次预热并返回报告；单个调用失败只影响对应条目。
//
// 约束：
// - 只有 fetch 类失败会重试（warm.retries 次尝试，指数退避）
// - 并发度为 warm.concurrency
// - ctx 取消后未开始的调用记为 failed（kind=fetch）
func Run(ctx context.Context, reg *provider.Registry, cfg config.WarmConfig, obs Observer, log *logrus.Entry) domain.WarmReport {
	if log == nil {
		log = logging.Discard()
	}
	log = log.WithField("component", "warm")
	ids := reg.List()
	if obs != nil {
		obs.OnStart(cfg, ids)
	}

	rep := domain.WarmReport{StartedAt: time.Now().UTC(), Items: make([]domain.WarmItem, 0, 64)}

	// 阶段一：分类。分类页决定阶段二要访问哪些分类首页。
	started := time.Now()
	cats := make(map[string][]domain.Category, len(ids))
	var mu sync.Mutex
	first := make([]job, 0, len(ids))
	for _, id := range ids {
		s, _ := reg.Get(id)
		first = append(first, job{
			provider: id,
			resource: cache.ResourceCategories,
			key:      "all",
			call: func(ctx context.Context) (int, error) {
				r := s.GetCategories(ctx)
				if !r.Success {
					return 0, envelopeError(r.ErrorKind, r.Error, r.Err())
				}
				mu.Lock()
				cats[id] = r.Data
				mu.Unlock()
				return len(r.Data), nil
			},
		})
	}
	rep.Items = append(rep.Items, execute(ctx, first, cfg, obs, log)...)
	if obs != nil {
		n := 0
		for _, c := range cats {
			n += len(c)
		}
		obs.OnPhaseDone(phaseCategories, map[string]any{"providers": len(ids), "categories": n}, time.Since(started))
	}

	// 阶段二：列表页 1..pages 与每个分类的第一页。
	started = time.Now()
	second := make([]job, 0, len(ids)*(cfg.Pages+8))
	for _, id := range ids {
		s, _ := reg.Get(id)
		caps := s.Info().Capabilities
		for page := 1; page <= cfg.Pages; page++ {
			j := job{provider: id, resource: cache.ResourceVideos, key: "page=" + strconv.Itoa(page)}
			if page > 1 && !caps.PaginatesListing {
				j.skip = "listing does not paginate"
			} else {
				j.call = func(ctx context.Context) (int, error) {
					r := s.FetchVideos(ctx, page)
					if !r.Success {
						return 0, envelopeError(r.ErrorKind, r.Error, r.Err())
					}
					return len(r.Data), nil
				}
			}
			second = append(second, j)
		}
		for _, c := range cats[id] {
			ref := c.Slug
			if ref == "" {
				ref = c.URL
			}
			second = append(second, job{
				provider: id,
				resource: cache.ResourceCategoryVideos,
				key:      "category=" + ref,
				call: func(ctx context.Context) (int, error) {
					r := s.FetchCategoryVideos(ctx, ref, 1)
					if !r.Success {
						return 0, envelopeError(r.ErrorKind, r.Error, r.Err())
					}
					return len(r.Data), nil
				},
			})
		}
	}
	if obs != nil {
		obs.OnPhaseDone(phasePages, map[string]any{"workers": workers(cfg), "total_items": len(second)}, 0)
	}
	rep.Items = append(rep.Items, execute(ctx, second, cfg, obs, log)...)
	log.WithField("dur", time.Since(started).String()).Debug("pages warmed")

	rep.FinishedAt = time.Now().UTC()
	rep.Finalize()
	log.WithFields(logrus.Fields{
		"ok":      rep.Summary.OK,
		"failed":  rep.Summary.Failed,
		"skipped": rep.Summary.Skipped,
	}).Info("warm finished")
	return rep
}

func workers(cfg config.WarmConfig) int {
	if cfg.Concurrency < 1 {
		return 1
	}
	return cfg.Concurrency
}

func execute(ctx context.Context, jobs []job, cfg config.WarmConfig, obs Observer, log *logrus.Entry) []domain.WarmItem {
	type result struct {
		item domain.WarmItem
		dur  time.Duration
	}
	results := make(chan result, len(jobs))

	p := pool.New().WithMaxGoroutines(workers(cfg))
	go func() {
		for _, j := range jobs {
			p.Go(func() {
				started := time.Now()
				results <- result{item: runOne(ctx, j, cfg, log), dur: time.Since(started)}
			})
		}
		p.Wait()
		close(results)
	}()

	out := make([]domain.WarmItem, 0, len(jobs))
	for r := range results {
		out = append(out, r.item)
		if obs != nil {
			obs.OnItemDone(len(out), len(jobs), r.item, r.dur)
		}
	}
	return out
}

func runOne(ctx context.Context, j job, cfg config.WarmConfig, log *logrus.Entry) domain.WarmItem {
	item := domain.WarmItem{Provider: j.provider, Resource: j.resource, Key: j.key}
	if j.skip != "" {
		item.Status = domain.WarmStatusSkipped
		item.ErrorMsg = j.skip
		return item
	}

	attempts := cfg.Retries
	if attempts < 1 {
		attempts = 1
	}
	var count int
	err := ctx.Err()
	if err == nil {
		err = retry.Do(func() error {
			item.Attempts++
			n, err := j.call(ctx)
			count = n
			return err
		}, retryOptions(ctx, j, attempts, cfg.RetryDelay, log)...)
	}
	if item.Attempts == 0 {
		// ctx 在第一次尝试前已取消。
		item.Attempts = 1
	}
	if err != nil {
		item.Status = domain.WarmStatusFailed
		item.ErrorKind = errorKind(err)
		item.ErrorMsg = err.Error()
		log.WithFields(logrus.Fields{
			"provider": j.provider,
			"resource": j.resource,
			"key":      j.key,
			"kind":     item.ErrorKind,
		}).WithError(err).Warn("warm item failed")
		return item
	}
	item.Status = domain.WarmStatusOK
	item.Count = count
	return item
}

func retryOptions(ctx context.Context, j job, attempts int, delay time.Duration, log *logrus.Entry) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(delay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errorKind(err) == provider.KindFetch }),
		retry.OnRetry(func(n uint, err error) {
			log.WithFields(logrus.Fields{
				"provider": j.provider,
				"resource": j.resource,
				"key":      j.key,
				"attempt":  n + 1,
			}).WithError(err).Debug("retrying")
		}),
	}
}

// callError 携带信封里的 errorKind（信封在反序列化后不再持有原始错误）。
type callError struct {
	kind string
	msg  string
	err  error
}

func (e *callError) Error() string { return e.msg }
func (e *callError) Unwrap() error { return e.err }

func envelopeError(kind, msg string, err error) error {
	return &callError{kind: kind, msg: msg, err: err}
}

func errorKind(err error) string {
	var ce *callError
	if errors.As(err, &ce) && ce.kind != "" {
		return ce.kind
	}
	return provider.Kind(err)
}

// WriteReport 把报告以 JSON 原子写入 path。
func WriteReport(path string, rep domain.WarmReport) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化预热报告失败：%w", err)
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), b)
}
