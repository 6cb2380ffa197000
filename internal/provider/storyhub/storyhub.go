// Package storyhub 抓取文字故事站点；一个故事可能分成多页。
package storyhub

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
	ID         = "storyhub"
	relatedCap = 9
	// maxStoryPages 限制一次详情请求最多跟随的分页数。
	maxStoryPages = 10
	placeholder   = "/images/story-placeholder.jpg"
)

var info = provider.Info{
	ID:       ID,
	Name:     "StoryHub",
	BaseURL:  "https://storyhub.example",
	PageSize: 20,
	Capabilities: provider.Capabilities{
		HasSearch:           true,
		HasStories:          true,
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
		return s.listing(ctx, "videos", numbered(s.URL("/latest/"), page), page)
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
		items, p, err := s.listing(ctx, "category", numbered(u, page), page)
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
		u := s.URL("/search/?q=" + url.QueryEscape(q))
		if page > 1 {
			u += "&page=" + strconv.Itoa(page)
		}
		return s.listing(ctx, "search", u, page)
	})
}

func (s *Scraper) GetCategories(ctx context.Context) domain.Response[[]domain.Category] {
	return provider.Run(ctx, &s.Base, "categories", provider.CacheKey{Resource: cache.ResourceCategories}, func(ctx context.Context) ([]domain.Category, *domain.Pagination, error) {
		doc, err := s.Doc(ctx, s.URL("/categories/"))
		if err != nil {
			return nil, nil, err
		}
		return s.CollectCategories(doc.Selection, categoryRule), nil, nil
	})
}

// GetVideoDetails 取故事全文：跟随分页链接（最多 maxStoryPages 页）按顺序拼接正文。
// 任何一页抓取失败都让整个请求失败，避免缓存半截故事。
func (s *Scraper) GetVideoDetails(ctx context.Context, slugOrURL, _ string) domain.Response[domain.Video] {
	k := strings.ToLower(strings.Trim(strings.TrimSpace(slugOrURL), "/"))
	key := provider.CacheKey{Resource: cache.ResourceVideoDetails, Params: cache.Params{"slug": k}}
	return provider.Run(ctx, &s.Base, "details", key, func(ctx context.Context) (domain.Video, *domain.Pagination, error) {
		if k == "" {
			return domain.Video{}, nil, &provider.NotFoundError{Provider: ID, Resource: "video", Key: slugOrURL, Reason: "empty slug"}
		}
		u := strings.TrimSpace(slugOrURL)
		if !extract.IsAbsolute(u) {
			u = s.URL("/story/" + url.PathEscape(k) + "/")
		}
		doc, err := s.Doc(ctx, u)
		if err != nil {
			return domain.Video{}, nil, s.NotFoundOn404(err, "video", k)
		}
		v, err := s.ParseDetail(doc.Selection, u)
		if err != nil {
			return domain.Video{}, nil, err
		}

		parts := []string{v.Content}
		for _, pu := range s.continuationPages(doc.Selection, u) {
			pd, err := s.Doc(ctx, pu)
			if err != nil {
				return domain.Video{}, nil, err
			}
			if c := storyText(pd.Selection); c != "" {
				parts = append(parts, c)
			}
		}
		v.Content = strings.Join(parts, "\n\n")
		return v, nil, nil
	})
}

func (s *Scraper) listing(ctx context.Context, op, u string, page int) ([]domain.Video, *domain.Pagination, error) {
	doc, err := s.Doc(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	items := s.ParseListing(op, doc.Selection, u)
	return items, s.Paginate(true, page, len(items), 0), nil
}

// ParseListing 是纯函数：同一 HTML 与 pageURL 总是得到相同结果。
func (s *Scraper) ParseListing(op string, root *goquery.Selection, pageURL string) []domain.Video {
	return s.Collect(op, root, entry.boundary, provider.OnPage(pageURL, s.parseEntry))
}

func (s *Scraper) parseEntry(b *goquery.Selection, pageURL string) (domain.Video, error) {
	title := entry.title.First(b)
	if title == "" {
		return domain.Video{}, &provider.ParseError{Provider: ID, Field: "title"}
	}
	link := s.AbsFrom(entry.link.First(b), pageURL)
	if link == "" {
		return domain.Video{}, &provider.ParseError{Provider: ID, Field: "postUrl"}
	}
	sl := slug.FromURL(link)
	v := domain.Video{
		ID:          sl,
		Slug:        sl,
		Title:       title,
		PostURL:     link,
		Type:        domain.TypeStory,
		Description: extract.Truncate(entry.excerpt.First(b), 300),
		Views:       entry.views.First(b),
		UploadDate:  entry.date.First(b),
		Categories:  extract.NormList(entry.category.All(b)),
	}
	v.SetThumbnail(s.thumbOrPlaceholder(entry.thumb.First(b), pageURL))
	s.Finish(&v, domain.TypeStory)
	return v, nil
}

// ParseDetail 解析故事第一页（正文只含当前页）。
func (s *Scraper) ParseDetail(root *goquery.Selection, pageURL string) (domain.Video, error) {
	title := detail.title.First(root)
	if title == "" {
		return domain.Video{}, &provider.ParseError{Provider: ID, Field: "title"}
	}
	content := storyText(root)
	if content == "" {
		return domain.Video{}, &provider.ParseError{Provider: ID, Field: "content"}
	}
	postURL := s.AbsFrom(detail.canonical.First(root), pageURL)
	if postURL == "" {
		postURL = pageURL
	}
	sl := slug.FromURL(postURL)
	v := domain.Video{
		ID:          sl,
		Slug:        sl,
		Title:       title,
		PostURL:     postURL,
		Type:        domain.TypeStory,
		Content:     content,
		Description: extract.Truncate(content, 300),
		Views:       detail.views.First(root),
		UploadDate:  detail.date.First(root),
		Categories:  extract.NormList(detail.categories.All(root)),
		Tags:        extract.NormList(detail.tags.All(root)),
	}
	if a := detail.author.First(root); a != "" {
		v.Tags = extract.NormList(append([]string{"author:" + a}, v.Tags...))
	}
	v.SetThumbnail(s.thumbOrPlaceholder(detail.thumb.First(root), pageURL))

	rel := s.Collect("details", root, related, provider.OnPage(pageURL, s.parseEntry))
	v.RelatedVideos = provider.Related(rel, v, relatedCap)

	s.Finish(&v, domain.TypeStory)
	return v, nil
}

// continuationPages 返回第 2 页起的分页地址（去重、保持顺序、不含当前页，总页数不超过 maxStoryPages）。
func (s *Scraper) continuationPages(root *goquery.Selection, current string) []string {
	seen := map[string]bool{strings.TrimRight(current, "/"): true}
	var out []string
	for _, h := range detail.pages.All(root) {
		u := s.AbsFrom(h, current)
		k := strings.TrimRight(u, "/")
		if u == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, u)
		if len(out) >= maxStoryPages-1 {
			break
		}
	}
	return out
}

func storyText(root *goquery.Selection) string {
	paras := detail.paragraphs.FirstAll(root)
	return strings.Join(extract.NormNonEmpty(paras), "\n\n")
}

// 故事通常没有配图：使用站点占位图，保证 thumbnail 始终是绝对 URL。
func (s *Scraper) thumbOrPlaceholder(raw, pageURL string) string {
	if u := s.AssetFrom(raw, pageURL); u != "" {
		return u
	}
	return s.Asset(placeholder)
}

// numbered 生成 /latest/N/ 风格的分页地址。
func numbered(base string, page int) string {
	if page <= 1 {
		return base
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + strconv.Itoa(page) + "/"
}
