package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/AVHub/internal/cache"
	"github.com/John-Robertt/AVHub/internal/domain"
	"github.com/John-Robertt/AVHub/internal/extract"
	"github.com/John-Robertt/AVHub/internal/slug"
)

// Deps 是构造一个 provider 所需的外部协作者（由 bootstrap 显式注入）。
type Deps struct {
	Fetcher Fetcher
	Cache   *cache.Cache
	Log     *logrus.Entry
	// AssetRelay 非空时，缩略图 / 图集 / embed 都会被包装为 <AssetRelay>?url=<asset>。
	AssetRelay string
	// BaseURL / PageSize 非零时覆盖 provider 的内置值（配置项 providers.<id>.base_url / page_size）。
	BaseURL  string
	PageSize int
}

// Base 是每个 scraper 共享的机制：抓取 + 解析、资源 URL 归一化、信封包装、分页与搜索兜底。
type Base struct {
	info    Info
	fetcher Fetcher
	cache   *cache.Cache
	log     *logrus.Entry
	relay   string
}

// NewBase 合并 provider 的内置 Info 与注入的覆盖项。
func NewBase(info Info, d Deps) Base {
	if u := strings.TrimRight(strings.TrimSpace(d.BaseURL), "/"); u != "" {
		info.BaseURL = u
	}
	info.BaseURL = strings.TrimRight(info.BaseURL, "/")
	if d.PageSize > 0 {
		info.PageSize = d.PageSize
	}
	log := d.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return Base{
		info:    info,
		fetcher: d.Fetcher,
		cache:   d.Cache,
		log:     log.WithField("provider", info.ID),
		relay:   strings.TrimSpace(d.AssetRelay),
	}
}

func (b *Base) Info() Info { return b.info }

func (b *Base) ID() string { return b.info.ID }

// Log 返回带 provider/op 字段的日志入口。
func (b *Base) Log(op string) *logrus.Entry { return b.log.WithField("op", op) }

// URL 拼接 BaseURL 与站内路径。
func (b *Base) URL(path string) string {
	if path == "" {
		return b.info.BaseURL + "/"
	}
	if extract.IsAbsolute(path) {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return b.info.BaseURL + path
}

// Fetch 取得原始 HTML。
func (b *Base) Fetch(ctx context.Context, u string) (string, error) {
	if b.fetcher == nil {
		return "", &ConfigurationError{Provider: b.info.ID, Setting: "fetcher", Reason: "no fetcher configured"}
	}
	return b.fetcher.FetchHTML(ctx, u)
}

// Doc 抓取并解析为 goquery 文档。
func (b *Base) Doc(ctx context.Context, u string) (*goquery.Document, error) {
	h, err := b.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	doc, err := extract.Document(h)
	if err != nil {
		return nil, &ParseError{Provider: b.info.ID, Field: "document", Err: err}
	}
	return doc, nil
}

// Abs 把站内链接归一化为绝对 URL（以站点根为基准；无法归一化时返回 ""）。
func (b *Base) Abs(raw string) string { return b.AbsFrom(raw, "") }

// AbsFrom 以链接所在页面 pageURL 为基准解析相对链接（"2/"、"img/a.jpg" 之类）；
// pageURL 为空时退回站点根。
func (b *Base) AbsFrom(raw, pageURL string) string {
	if strings.TrimSpace(pageURL) == "" {
		pageURL = b.info.BaseURL + "/"
	}
	return extract.NormalizeURL(raw, pageURL)
}

// Asset 归一化资源 URL，并在配置了 relay 时包装为 relay URL。
func (b *Base) Asset(raw string) string { return b.AssetFrom(raw, "") }

// AssetFrom 与 Asset 相同，但相对地址以 pageURL 为基准。
func (b *Base) AssetFrom(raw, pageURL string) string {
	u := b.AbsFrom(raw, pageURL)
	if u == "" {
		return ""
	}
	return extract.ProxyAsset(u, b.relay)
}

// Assets 对一组资源做 Asset 并去重（保持首次出现顺序）。
func (b *Base) Assets(raw []string) []string { return b.AssetsFrom(raw, "") }

// AssetsFrom 对一组资源做 AssetFrom 并去重（保持首次出现顺序）。
func (b *Base) AssetsFrom(raw []string, pageURL string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if u := b.AssetFrom(r, pageURL); u != "" {
			out = append(out, u)
		}
	}
	return extract.NormList(out)
}

// Finish 补齐条目的 provider 级默认值：provider、type、非 nil 的 categories/tags。
func (b *Base) Finish(v *domain.Video, t domain.ContentType) {
	v.Provider = b.info.ID
	if !v.Type.Valid() {
		v.Type = t
	}
	if v.Categories == nil {
		v.Categories = []string{}
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if v.ThumbnailURL == "" && v.Thumbnail != "" {
		v.ThumbnailURL = v.Thumbnail
	}
}

// Collect 按 boundary 遍历 item block，逐个调用 parse。
// 解析失败（或不满足 Valid）的条目只在 debug 级别记录并丢弃，其余条目继续。
func (b *Base) Collect(op string, root *goquery.Selection, boundary extract.Boundary, parse func(i int, s *goquery.Selection) (domain.Video, error)) []domain.Video {
	out := make([]domain.Video, 0)
	dropped := 0
	boundary.Blocks(root, func(i int, s *goquery.Selection) {
		v, err := parse(i, s)
		if err == nil && !v.Valid() {
			err = &ParseError{Provider: b.info.ID, Field: "title"}
		}
		if err != nil {
			dropped++
			b.Log(op).WithError(err).WithField("block", i).Debug("item dropped")
			return
		}
		out = append(out, v)
	})
	if dropped > 0 {
		b.Log(op).WithFields(logrus.Fields{"kept": len(out), "dropped": dropped}).Debug("partial extraction")
	}
	return out
}

// OnPage 把需要页面地址的条目解析函数绑定到 pageURL，得到 Collect 可用的形式。
func OnPage(pageURL string, parse func(s *goquery.Selection, pageURL string) (domain.Video, error)) func(int, *goquery.Selection) (domain.Video, error) {
	return func(_ int, s *goquery.Selection) (domain.Video, error) { return parse(s, pageURL) }
}

// CacheKey 选择 Run 的缓存位置；Resource 为空表示不缓存。
type CacheKey struct {
	Resource string
	Params   cache.Params
}

// Page 是缓存中的列表页（数据 + 分页一起缓存，命中时分页信息不丢失）。
type Page[T any] struct {
	Data       T                  `json:"data"`
	Pagination *domain.Pagination `json:"pagination,omitempty"`
}

// Run 是所有 scraper 操作的统一包装：缓存查找 -> 抓取解析 -> 缓存写入。
//
// 约束：
// - fn 的 error / panic 都转换为失败信封，不向上传播
// - 失败结果不写缓存
// - 完整失败以 warn（internal 为 error）级别记录
func Run[T any](ctx context.Context, b *Base, op string, key CacheKey, fn func(ctx context.Context) (T, *domain.Pagination, error)) (resp domain.Response[T]) {
	id := b.info.ID
	if key.Resource != "" {
		if hit, ok := cache.Get[Page[T]](ctx, b.cache, id, key.Resource, key.Params).Get(); ok {
			b.Log(op).WithField("resource", key.Resource).Debug("cache hit")
			return domain.OK(id, hit.Data, hit.Pagination)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			b.Log(op).WithField("stack", string(debug.Stack())).WithError(err).Error("scraper panicked")
			resp = domain.Fail[T](id, KindInternal, err)
		}
	}()

	data, p, err := fn(ctx)
	if err != nil {
		kind := Kind(err)
		entry := b.Log(op).WithError(err).WithField("kind", kind)
		if kind == KindInternal {
			entry.Error("operation failed")
		} else {
			entry.Warn("operation failed")
		}
		return domain.Fail[T](id, kind, err)
	}
	if key.Resource != "" {
		cache.Set(ctx, b.cache, id, key.Resource, Page[T]{Data: data, Pagination: p}, 0, key.Params)
	}
	return domain.OK(id, data, p)
}

// NormalizePage 把 <1 的页码修正为 1。
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// ListingPage 返回实际请求的列表页码；不分页的 provider 恒为 1。
func (b *Base) ListingPage(page int) int {
	if !b.info.Capabilities.PaginatesListing {
		return 1
	}
	return NormalizePage(page)
}

// CategoryPage 返回实际请求的分类页码；不分页的 provider 恒为 1（请求 page>1 得到与 page=1 相同的数据）。
func (b *Base) CategoryPage(page int) int {
	if !b.info.Capabilities.PaginatesCategories {
		return 1
	}
	return NormalizePage(page)
}

// Paginate 计算分页信息。
//
// 约束：
// - paginates=false => {1,1,false}
// - total>0（页面给出了精确总页数）时以 total 为准
// - 否则使用启发式：count >= pageSize 认为还有下一页
func (b *Base) Paginate(paginates bool, page, count, total int) *domain.Pagination {
	if !paginates {
		return domain.SinglePage()
	}
	page = NormalizePage(page)
	if total > 0 {
		if total < page {
			total = page
		}
		return &domain.Pagination{CurrentPage: page, TotalPages: total, HasNextPage: page < total}
	}
	next := b.info.PageSize > 0 && count >= b.info.PageSize
	tp := page
	if next {
		tp = page + 1
	}
	return &domain.Pagination{CurrentPage: page, TotalPages: tp, HasNextPage: next}
}

// FilterByTitle 是不支持站内搜索时的客户端兜底：按标题做大小写不敏感的子串匹配。
func FilterByTitle(items []domain.Video, query string) []domain.Video {
	q := strings.ToLower(extract.NormSpace(query))
	out := make([]domain.Video, 0, len(items))
	if q == "" {
		return out
	}
	for _, v := range items {
		if strings.Contains(strings.ToLower(v.Title), q) {
			out = append(out, v)
		}
	}
	return out
}

// ClientSearch 用 list（通常是 FetchVideos）的结果做客户端搜索。
// 结果只覆盖该页列表，分页信息沿用 list 的分页；这是功能降级而不是错误。
func ClientSearch(ctx context.Context, b *Base, list func(ctx context.Context, page int) domain.Response[[]domain.Video], query string, page int) domain.Response[[]domain.Video] {
	if strings.TrimSpace(query) == "" {
		return domain.Fail[[]domain.Video](b.info.ID, KindParse, &ParseError{Provider: b.info.ID, Field: "query", Err: fmt.Errorf("empty query")})
	}
	r := list(ctx, page)
	if !r.Success {
		return r
	}
	b.Log("search").WithField("query", query).Debug("client-side search fallback")
	return domain.OK(b.info.ID, FilterByTitle(r.Data, query), r.Pagination)
}

// PickIndexed 按 slug 尾部的位置索引从重新抓取的列表中取出条目。
//
// 约束：列表在生成 slug 与查询详情之间可能被上游重排，此时会取到别的条目或越界返回 NotFoundError。
// 这是没有稳定 ID 的 provider 可接受的竞态，不通过伪造 ID 来“修复”。
func PickIndexed(providerID string, items []domain.Video, s string) (domain.Video, error) {
	index, ok := slug.Index(s)
	if !ok {
		return domain.Video{}, &NotFoundError{Provider: providerID, Resource: "video", Key: s, Reason: "slug carries no index"}
	}
	if index < 0 || index >= len(items) {
		return domain.Video{}, &NotFoundError{
			Provider: providerID,
			Resource: "index",
			Key:      s,
			Reason:   fmt.Sprintf("index %d out of range (%d items)", index, len(items)),
		}
	}
	return items[index], nil
}

// Related 返回最多 n 个浅拷贝的相关条目，跳过与 self 相同的条目。
func Related(items []domain.Video, self domain.Video, n int) []domain.Video {
	out := make([]domain.Video, 0, n)
	for _, v := range items {
		if len(out) >= n {
			break
		}
		if (self.Slug != "" && v.Slug == self.Slug) || (self.PostURL != "" && v.PostURL == self.PostURL) {
			continue
		}
		out = append(out, v.Shallow())
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// CategoryRef 接受分类 slug 或完整分类 URL，返回规范化的 slug 与分类首页 URL。
// pathFmt 是站内分类路径模板（例如 "/category/%s/"）。
func (b *Base) CategoryRef(slugOrURL, pathFmt string) (string, string, error) {
	in := strings.TrimSpace(slugOrURL)
	if in == "" {
		return "", "", &NotFoundError{Provider: b.info.ID, Resource: "category", Key: slugOrURL, Reason: "empty category"}
	}
	if extract.IsAbsolute(in) {
		s := slug.FromURL(in)
		if s == "" {
			return "", "", &NotFoundError{Provider: b.info.ID, Resource: "category", Key: in}
		}
		return s, in, nil
	}
	s := strings.ToLower(strings.Trim(in, "/"))
	return s, b.URL(fmt.Sprintf(pathFmt, url.PathEscape(s))), nil
}

// NotFoundOn404 把上游 404 转换为 NotFoundError；其它错误原样返回。
func (b *Base) NotFoundOn404(err error, resource, key string) error {
	var fe *FetchError
	if errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound {
		return &NotFoundError{Provider: b.info.ID, Resource: resource, Key: key, Reason: "upstream returned 404"}
	}
	return err
}

// CategoryRule 描述分类索引页中一个分类块的字段。
type CategoryRule struct {
	Boundary extract.Boundary
	Link     extract.Field
	Name     extract.Field
	Count    extract.Field
	Thumb    extract.Field
}

// CollectCategories 按规则抓取分类块；缺少名称或链接的块被丢弃，slug 重复的只保留第一个。
func (b *Base) CollectCategories(root *goquery.Selection, r CategoryRule) []domain.Category {
	out := make([]domain.Category, 0)
	seen := map[string]bool{}
	r.Boundary.Blocks(root, func(i int, s *goquery.Selection) {
		link := b.Abs(r.Link.First(s))
		name := extract.NormSpace(r.Name.First(s))
		sl := slug.FromURL(link)
		if link == "" || name == "" || sl == "" {
			b.Log("categories").WithField("block", i).Debug("category dropped")
			return
		}
		if seen[sl] {
			return
		}
		seen[sl] = true
		out = append(out, domain.Category{
			Slug:      sl,
			Name:      name,
			URL:       link,
			Provider:  b.info.ID,
			Count:     extract.FirstInt(r.Count.First(s)),
			Thumbnail: b.Asset(r.Thumb.First(s)),
		})
	})
	return out
}

// StaticCategories 把手工维护的 (slug, name) 列表转换为分类条目。
func (b *Base) StaticCategories(pathFmt string, pairs [][2]string) []domain.Category {
	out := make([]domain.Category, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, domain.Category{
			Slug:     p[0],
			Name:     p[1],
			URL:      b.URL(fmt.Sprintf(pathFmt, url.PathEscape(p[0]))),
			Provider: b.info.ID,
		})
	}
	return out
}
