package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry 是按 id 索引的 provider 注册表。
//
// 约束：
// - 并发安全；并发 Register 为 last-write-wins
// - id 统一小写
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Scraper
}

// NewRegistry 用一组 scraper 构造注册表（id 取自 Info().ID）；同一批里出现重复 id 视为编程错误。
func NewRegistry(scrapers ...Scraper) (*Registry, error) {
	r := &Registry{byID: make(map[string]Scraper, len(scrapers))}
	for _, s := range scrapers {
		if s == nil {
			return nil, fmt.Errorf("scraper 不能为空")
		}
		id := normID(s.Info().ID)
		if _, ok := r.byID[id]; ok {
			return nil, fmt.Errorf("重复的 provider：%q", id)
		}
		if err := r.Register(id, s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register 注册（或覆盖）一个 scraper。
func (r *Registry) Register(id string, s Scraper) error {
	id = normID(id)
	if id == "" {
		return fmt.Errorf("provider id 不能为空")
	}
	if s == nil {
		return fmt.Errorf("provider %q 的 scraper 不能为空", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byID == nil {
		r.byID = make(map[string]Scraper)
	}
	r.byID[id] = s
	return nil
}

func (r *Registry) Get(id string) (Scraper, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[normID(id)]
	return s, ok
}

// Lookup 与 Get 相同，但未注册时返回 *NotRegisteredError。
func (r *Registry) Lookup(id string) (Scraper, error) {
	s, ok := r.Get(id)
	if !ok {
		return nil, &NotRegisteredError{Provider: normID(id)}
	}
	return s, nil
}

// List 返回已注册的 id（字典序）。
func (r *Registry) List() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	out := make([]string, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Infos 返回全部 provider 的元数据（与 List 同序）。
func (r *Registry) Infos() []Info {
	ids := r.List()
	out := make([]Info, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.Get(id); ok {
			out = append(out, s.Info())
		}
	}
	return out
}

func normID(id string) string { return strings.ToLower(strings.TrimSpace(id)) }
