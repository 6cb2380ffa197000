// Package tubewp 抓取基于 WordPress 视频主题的站点（文章即视频，post id 稳定）。
package tubewp

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/AVHub/internal/cache"
	"github.com/John-Robertt/AVHub/internal/domain"
	"github.com/John-Robertt/AVHub/internal/extract"
	"github.com/John-Robertt/AVHub/internal/provider"
	"github.com/John-Robertt/AVHub/internal/slug"
)

const (
	ID         = "tubewp"
	relatedCap = 12
)

var info = provider.Info{
	ID:       ID,
	Name:     "TubeWP",
	BaseURL:  "https://tubewp.example",
	PageSize: 24,
	Capabilities: provider.Capabilities{
		HasSearch:           true,
		PaginatesListing:    true,
		PaginatesCategories: true,
		DynamicCategories:   true,
		StableIDs:           true,
	},
}

type Scraper struct {
	provider.Base
}

func New(d provider.Deps) *Scraper {
	return &Scraper{Base: provider.NewBase(info, d)}
}

func (s *Scraper) FetchVideos(ctx context.Context, page int) domain.Response[[]domain.Video] {
	page = s.ListingPage(page)
	key := provider.CacheKey{Resource: cache.ResourceVideos, Params: cache.Params{"page": strconv.Itoa(page)}}
	return provider.Run(ctx, &s.Base, "videos", key, func(ctx context.Context) ([]domain.Video, *domain.Pagination, error) {
		return s.listing(ctx, "videos", pagedURL(s.URL("/"), page), page)
	})
}

func (s *Scraper) FetchCategoryVideos(ctx context.Context, category string, page int) domain.Response[[]domain.Video] {
	page = s.CategoryPage(page)
	sl, u, refErr := s.CategoryRef(category, "/category/%s/")
	key := provider.CacheKey{Resource: cache.ResourceCategoryVideos, Params: cache.Params{"category": sl, "page": strconv.Itoa(page)}}
	return provider.Run(ctx, &s.Base, "category", key, func(ctx context.Context) ([]domain.Video, *domain.Pagination, error) {
		if refErr != nil {
			return nil, nil, refErr
		}
		items, p, err := s.listing(ctx, "category", pagedURL(u, page), page)
		if err != nil {
			return nil, nil, s.NotFoundOn404(err, "category", sl)
		}
		return items, p, nil
	})
}

func (s *Scraper) SearchVideos(ctx context.Context, query string, page int) domain.Response[[]domain.Video] {
	page = s.ListingPage(page)
	q := strings.ToLower(extract.NormSpace(query))
	key := provider.CacheKey{Resource: cache.ResourceSearch, Params: cache.Params{"q": q, "page": strconv.Itoa(page)}}
	return provider.Run(ctx, &s.Base, "search", key, func(ctx context.Context) ([]domain.Video, *domain.Pagination, error) {
		if q == "" {
			return nil, nil, &provider.ParseError{Provider: ID, Field: "query", Err: fmt.Errorf("empty query")}
		}
		u := pagedURL(s.URL("/"), page) + "?s=" + url.QueryEscape(q)
		return s.listing(ctx, "search", u, page)
	})
}

func (s *Scraper) GetCategories(ctx context.Context) domain.Response[[]domain.Category] {
	key := provider.CacheKey{Resource: cache.ResourceCategories}
	return provider.Run(ctx, &s.Base, "categories", key, func(ctx context.Context) ([]domain.Category, *domain.Pagination, error) {
		doc, err := s.Doc(ctx, s.URL("/categories/"))
		if err != nil {
			return nil, nil, err
		}
		return s.CollectCategories(doc.Selection, categoryRule), nil, nil
	})
}

func (s *Scraper) GetVideoDetails(ctx context.Context, slugOrURL, _ string) domain.Response[domain.Video] {
	k := strings.ToLower(strings.Trim(strings.TrimSpace(slugOrURL), "/"))
	key := provider.CacheKey{Resource: cache.ResourceVideoDetails, Params: cache.Params{"slug": k}}
	return provider.Run(ctx, &s.Base, "details", key, func(ctx context.Context) (domain.Video, *domain.Pagination, error) {
		if k == "" {
			return domain.Video{}, nil, &provider.NotFoundError{Provider: ID, Resource: "video", Key: slugOrURL, Reason: "empty slug"}
		}
		u := strings.TrimSpace(slugOrURL)
		if !extract.IsAbsolute(u) {
			u = s.URL("/" + url.PathEscape(k) + "/")
		}
		doc, err := s.Doc(ctx, u)
		if err != nil {
			return domain.Video{}, nil, s.NotFoundOn404(err, "video", k)
		}
		v, err := s.ParseDetail(doc.Selection, u)
		return v, nil, err
	})
}

func (s *Scraper) listing(ctx context.Context, op, u string, page int) ([]domain.Video, *domain.Pagination, error) {
	doc, err := s.Doc(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	items := s.ParseListing(op, doc.Selection, u)
	return items, s.Paginate(true, page, len(items), lastPage(doc.Selection)), nil
}

// ParseListing 是纯函数：同一 HTML 与 pageURL 总是得到相同结果。
func (s *Scraper) ParseListing(op string, root *goquery.Selection, pageURL string) []domain.Video {
	return s.Collect(op, root, item.boundary, provider.OnPage(pageURL, s.parseItem))
}

func (s *Scraper) parseItem(b *goquery.Selection, pageURL string) (domain.Video, error) {
	title := item.title.First(b)
	if title == "" {
		return domain.Video{}, &provider.ParseError{Provider: ID, Field: "title"}
	}
	link := s.AbsFrom(item.link.First(b), pageURL)
	if link == "" {
		return domain.Video{}, &provider.ParseError{Provider: ID, Field: "postUrl"}
	}
	v := domain.Video{
		ID:       item.id.First(b),
		Slug:     slug.FromURL(link),
		Title:    title,
		PostURL:  link,
		Duration: item.duration.First(b),
		Views:    item.views.First(b),
	}
	if v.ID == "" {
		v.ID = v.Slug
	}
	v.SetThumbnail(s.AssetFrom(item.thumb.First(b), pageURL))
	s.Finish(&v, domain.TypeVideo)
	return v, nil
}

// ParseDetail 解析详情页；pageURL 是实际请求的地址（canonical 缺失时作为 postUrl）。
func (s *Scraper) ParseDetail(root *goquery.Selection, pageURL string) (domain.Video, error) {
	title := detail.title.First(root)
	if title == "" {
		return domain.Video{}, &provider.ParseError{Provider: ID, Field: "title"}
	}
	postURL := s.AbsFrom(detail.canonical.First(root), pageURL)
	if postURL == "" {
		postURL = pageURL
	}
	v := domain.Video{
		ID:          detail.id.First(root),
		Slug:        slug.FromURL(postURL),
		Title:       title,
		PostURL:     postURL,
		VideoURL:    s.AbsFrom(detail.video.First(root), pageURL),
		EmbedURL:    s.AssetFrom(detail.embed.First(root), pageURL),
		Duration:    detail.duration.First(root),
		Views:       detail.views.First(root),
		UploadDate:  detail.uploadDate.First(root),
		Description: extract.Truncate(detail.description.First(root), 400),
		Categories:  extract.NormList(detail.categories.All(root)),
		Tags:        extract.NormList(detail.tags.All(root)),
	}
	if v.ID == "" {
		v.ID = v.Slug
	}
	v.SetThumbnail(s.AssetFrom(detail.thumb.First(root), pageURL))

	related := s.Collect("details", root, relatedRoot, provider.OnPage(pageURL, s.parseItem))
	v.RelatedVideos = provider.Related(related, v, relatedCap)

	s.Finish(&v, domain.TypeVideo)
	return v, nil
}

// lastPage 从分页器里取最大页码；没有分页器时返回 0（交给启发式判断）。
func lastPage(root *goquery.Selection) int {
	max := 0
	for _, t := range pagerNumbers.All(root) {
		if n := extract.FirstInt(t); n > max {
			max = n
		}
	}
	return max
}

// pagedURL 生成 WordPress 风格的分页地址：<base>/page/N/。
func pagedURL(base string, page int) string {
	if page <= 1 {
		return base
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + "page/" + strconv.Itoa(page) + "/"
}
