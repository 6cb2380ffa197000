package app

import (
	"context"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"

	"github.com/John-Robertt/AVHub/internal/domain"
	"github.com/John-Robertt/AVHub/internal/provider"
)

// AggregateError 是聚合结果里某个 provider 的失败条目。
type AggregateError struct {
	Provider  string `json:"provider"`
	Error     string `json:"error"`
	ErrorKind string `json:"errorKind"`
}

// Aggregate 是跨 provider 调用的合并结果。
//
// 约束：
// - Data 按 provider id 字典序拼接，同一 provider 内保持原顺序
// - 某个 provider 失败只产生一条 Errors，不影响其它 provider
type Aggregate[T any] struct {
	Data   []T              `json:"data"`
	Errors []AggregateError `json:"errors"`
}

// AggregateCategories 并发调用各 provider 的 GetCategories；ids 为空表示全部已注册 provider。
func AggregateCategories(ctx context.Context, reg *provider.Registry, ids []string) Aggregate[domain.Category] {
	return fanOut(ctx, reg, ids, func(ctx context.Context, s provider.Scraper) domain.Response[[]domain.Category] {
		return s.GetCategories(ctx)
	})
}

// AggregateSearch 并发调用各 provider 的 SearchVideos（同一 page）。
//
// 约束：不支持搜索的 provider 仍会被调用（由其自身退化为客户端过滤）。
func AggregateSearch(ctx context.Context, reg *provider.Registry, ids []string, query string, page int) Aggregate[domain.Video] {
	return fanOut(ctx, reg, ids, func(ctx context.Context, s provider.Scraper) domain.Response[[]domain.Video] {
		return s.SearchVideos(ctx, query, page)
	})
}

type partial[T any] struct {
	data []T
	err  *AggregateError
}

func fanOut[T any](ctx context.Context, reg *provider.Registry, ids []string, call func(context.Context, provider.Scraper) domain.Response[[]T]) Aggregate[T] {
	ids = normalizeIDs(reg, ids)
	results := make([]partial[T], len(ids))

	p := pool.New().WithMaxGoroutines(max(1, len(ids)))
	for i, id := range ids {
		p.Go(func() {
			s, err := reg.Lookup(id)
			if err != nil {
				results[i].err = &AggregateError{Provider: id, Error: err.Error(), ErrorKind: provider.Kind(err)}
				return
			}
			r := call(ctx, s)
			if !r.Success {
				results[i].err = &AggregateError{Provider: id, Error: r.Error, ErrorKind: r.ErrorKind}
				return
			}
			results[i].data = r.Data
		})
	}
	p.Wait()

	out := Aggregate[T]{Data: []T{}, Errors: []AggregateError{}}
	for _, r := range results {
		if r.err != nil {
			out.Errors = append(out.Errors, *r.err)
			continue
		}
		out.Data = append(out.Data, r.data...)
	}
	return out
}

func normalizeIDs(reg *provider.Registry, ids []string) []string {
	ids = lo.Uniq(lo.FilterMap(ids, func(id string, _ int) (string, bool) {
		id = strings.ToLower(strings.TrimSpace(id))
		return id, id != ""
	}))
	if len(ids) == 0 {
		return reg.List()
	}
	slices.Sort(ids)
	return ids
}
