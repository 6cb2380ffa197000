// Package picgallery 抓取图集站点（偶尔夹带视频帖）。
package picgallery

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
	ID         = "picgallery"
	relatedCap = 10
)

var info = provider.Info{
	ID:       ID,
	Name:     "PicGallery",
	BaseURL:  "https://picgallery.example",
	PageSize: 30,
	Capabilities: provider.Capabilities{
		HasSearch:           true,
		HasGalleries:        true,
		PaginatesListing:    true,
		PaginatesCategories: true,
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
		return s.listing(ctx, "videos", withPage(s.URL("/latest"), page), page)
	})
}

func (s *Scraper) FetchCategoryVideos(ctx context.Context, category string, page int) domain.Response[[]domain.Video] {
	page = s.CategoryPage(page)
	sl, u, refErr := s.CategoryRef(category, "/category/%s")
	key := provider.CacheKey{Resource: cache.ResourceCategoryVideos, Params: cache.Params{"category": sl, "page": strconv.Itoa(page)}}
	return provider.Run(ctx, &s.Base, "category", key, func(ctx context.Context) ([]domain.Video, *domain.Pagination, error) {
		if refErr != nil {
			return nil, nil, refErr
		}
		items, p, err := s.listing(ctx, "category", withPage(u, page), page)
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
		return s.listing(ctx, "search", withPage(s.URL("/search?q="+url.QueryEscape(q)), page), page)
	})
}

func (s *Scraper) GetCategories(ctx context.Context) domain.Response[[]domain.Category] {
	return provider.Run(ctx, &s.Base, "categories", provider.CacheKey{}, func(context.Context) ([]domain.Category, *domain.Pagination, error) {
		return s.StaticCategories("/category/%s", staticCategories), nil, nil
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
			u = s.URL("/gallery/" + url.PathEscape(k))
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
	return items, s.Paginate(true, page, len(items), 0), nil
}

// ParseListing 是纯函数：同一 HTML 与 pageURL 总是得到相同结果。
func (s *Scraper) ParseListing(op string, root *goquery.Selection, pageURL string) []domain.Video {
	return s.Collect(op, root, card.boundary, provider.OnPage(pageURL, s.parseCard))
}

func (s *Scraper) parseCard(b *goquery.Selection, pageURL string) (domain.Video, error) {
	title := card.title.First(b)
	if title == "" {
		return domain.Video{}, &provider.ParseError{Provider: ID, Field: "title"}
	}
	link := s.AbsFrom(card.link.First(b), pageURL)
	if link == "" {
		return domain.Video{}, &provider.ParseError{Provider: ID, Field: "postUrl"}
	}
	sl := slug.FromURL(link)
	v := domain.Video{
		ID:      sl,
		Slug:    sl,
		Title:   title,
		PostURL: link,
		Type:    contentType(card.kind.First(b)),
	}
	if n := extract.FirstInt(card.count.First(b)); n > 0 {
		v.Description = strconv.Itoa(n) + " photos"
	}
	v.SetThumbnail(s.AssetFrom(card.thumb.First(b), pageURL))
	s.Finish(&v, domain.TypeGallery)
	return v, nil
}

// ParseDetail 解析图集 / 视频帖详情页。
//
// 约束：
// - 类型由页面标记决定；图集不输出 videoUrl，视频帖不输出 galleryImages
// - 图集图片去掉尺寸后缀恢复原图地址后再去重
func (s *Scraper) ParseDetail(root *goquery.Selection, pageURL string) (domain.Video, error) {
	title := detail.title.First(root)
	if title == "" {
		return domain.Video{}, &provider.ParseError{Provider: ID, Field: "title"}
	}
	postURL := s.AbsFrom(detail.canonical.First(root), pageURL)
	if postURL == "" {
		postURL = pageURL
	}
	sl := slug.FromURL(postURL)
	v := domain.Video{
		ID:         sl,
		Slug:       sl,
		Title:      title,
		PostURL:    postURL,
		Type:       contentType(detail.kind.First(root)),
		Views:      detail.views.First(root),
		UploadDate: detail.uploadDate.First(root),
		Categories: extract.NormList(detail.categories.All(root)),
		Tags:       extract.NormList(detail.tags.All(root)),
	}

	switch v.Type {
	case domain.TypeVideo:
		v.VideoURL = s.AbsFrom(detail.video.First(root), pageURL)
		v.EmbedURL = s.AssetFrom(detail.embed.First(root), pageURL)
	default:
		raw := detail.images.FirstAll(root)
		full := make([]string, 0, len(raw))
		for _, r := range raw {
			full = append(full, extract.StripSizeSuffix(r))
		}
		v.GalleryImages = s.AssetsFrom(full, pageURL)
	}

	thumb := s.AssetFrom(detail.thumb.First(root), pageURL)
	if thumb == "" && len(v.GalleryImages) > 0 {
		thumb = v.GalleryImages[0]
	}
	v.SetThumbnail(thumb)

	rel := s.Collect("details", root, related, provider.OnPage(pageURL, s.parseCard))
	v.RelatedVideos = provider.Related(rel, v, relatedCap)

	s.Finish(&v, domain.TypeGallery)
	return v, nil
}

func contentType(marker string) domain.ContentType {
	switch strings.ToLower(strings.TrimSpace(marker)) {
	case "video", string(domain.TypeVideo):
		return domain.TypeVideo
	default:
		return domain.TypeGallery
	}
}

// withPage 追加 page 查询参数（第 1 页不追加）。
func withPage(u string, page int) string {
	if page <= 1 {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "page=" + strconv.Itoa(page)
}
