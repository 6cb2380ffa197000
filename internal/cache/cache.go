// Package cache 是 provider 级的命名空间缓存：key 由 (provider, resource, params) 决定，值为 JSON。
package cache

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/AVHub/internal/infra/kv"
)

// 资源名（同时也是 TTL 表的 key）。
const (
	ResourceVideos         = "videos"
	ResourceCategoryVideos = "category-videos"
	ResourceCategories     = "categories"
	ResourceVideoDetails   = "video-details"
	ResourceThumbnails     = "thumbnails"
	ResourceSearch         = "search"
)

const keyPrefix = "avhub"

// DefaultTTLs 反映各类资源在上游实际变化的频率。
func DefaultTTLs() map[string]time.Duration {
	return map[string]time.Duration{
		ResourceVideos:         30 * time.Minute,
		ResourceCategoryVideos: 30 * time.Minute,
		ResourceCategories:     time.Hour,
		ResourceVideoDetails:   time.Hour,
		ResourceThumbnails:     6 * time.Hour,
		ResourceSearch:         15 * time.Minute,
	}
}

// Params 是参与 key 计算的参数；顺序无关。
type Params map[string]string

// Cache 包装外部 kv.Store。
//
// 约束：
// - kv 出错只记录日志并视为 miss；缓存失败绝不导致抓取失败
// - 并发写 last-write-wins（丢一次写只意味着多一次上游请求）
type Cache struct {
	store kv.Store
	ttls  map[string]time.Duration
	log   *logrus.Entry
}

// New 构造缓存；overrides 中的非零值覆盖默认 TTL。
func New(store kv.Store, overrides map[string]time.Duration, log *logrus.Entry) *Cache {
	ttls := DefaultTTLs()
	for k, v := range overrides {
		if v > 0 {
			ttls[k] = v
		}
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return &Cache{store: store, ttls: ttls, log: log.WithField("component", "cache")}
}

// TTL 返回资源的默认 TTL；未知资源返回 0（调用方应显式给出 ttl）。
func (c *Cache) TTL(resource string) time.Duration {
	if c == nil {
		return 0
	}
	return c.ttls[resource]
}

// Key 生成确定性的缓存 key：avhub:<provider>:<resource>[?k=v&...]，params 按 key 排序。
func Key(provider, resource string, params Params) string {
	var b strings.Builder
	b.WriteString(keyPrefix)
	b.WriteByte(':')
	b.WriteString(strings.ToLower(strings.TrimSpace(provider)))
	b.WriteByte(':')
	b.WriteString(resource)
	if len(params) == 0 {
		return b.String()
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

// Get 读取缓存；miss、过期、解码失败或 c==nil 时返回 None。
func Get[T any](ctx context.Context, c *Cache, provider, resource string, params Params) mo.Option[T] {
	if c == nil || c.store == nil {
		return mo.None[T]()
	}
	key := Key(provider, resource, params)
	b, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache get failed")
		return mo.None[T]()
	}
	if !ok {
		return mo.None[T]()
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache entry undecodable")
		return mo.None[T]()
	}
	return mo.Some(v)
}

// Set 写入缓存；ttl<=0 时使用资源的默认 TTL。
func Set[T any](ctx context.Context, c *Cache, provider, resource string, data T, ttl time.Duration, params Params) {
	if c == nil || c.store == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.TTL(resource)
	}
	key := Key(provider, resource, params)
	b, err := json.Marshal(data)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache entry unencodable")
		return
	}
	if err := c.store.Set(ctx, key, b, ttl); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache set failed")
	}
}
