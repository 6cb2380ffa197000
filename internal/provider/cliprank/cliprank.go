// Package cliprank 抓取一个视频排行聚合站。
//
// 站点不提供稳定的条目 ID：slug 由标题、provider 与列表位置生成，
// 详情通过重新抓取同一列表（首页，或 slug 生成时所在的分类）并按位置定位。
// 列表在两次抓取之间被重排时会定位到别的条目或返回 NotFoundError，这是已接受的限制。
package cliprank

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/AVHub/internal/cache"
	"github.com/John-Robertt/AVHub/internal/domain"
	"github.com/John-Robertt/AVHub/internal/extract"
	"github.com/John-Robertt/AVHub/internal/provider"
	"github.com/John-Robertt/AVHub/internal/slug"
)

const (
	ID         = "cliprank"
	relatedCap = 10
	catPath    = "/category/%s/"
)

var info = provider.Info{
	ID:       ID,
	Name:     "ClipRank",
	BaseURL:  "https://cliprank.example",
	PageSize: 50,
	Capabilities: provider.Capabilities{
		RequiresRelay: true,
	},
}

type Scraper struct {
	provider.Base
}

func New(d provider.Deps) *Scraper {
	return &Scraper{Base: provider.NewBase(info, d)}
}

// FetchVideos 返回首页排行；站点只有一页，page 被忽略。
func (s *Scraper) FetchVideos(ctx context.Context, _ int) domain.Response[[]domain.Video] {
	key := provider.CacheKey{Resource: cache.ResourceVideos, Params: cache.Params{"page": "1"}}
	return provider.Run(ctx, &s.Base, "videos", key, func(ctx context.Context) ([]domain.Video, *domain.Pagination, error) {
		items, err := s.list(ctx, "videos", s.URL("/"))
		if err != nil {
			return nil, nil, err
		}
		return items, domain.SinglePage(), nil
	})
}

// FetchCategoryVideos 的分类不分页：page>1 与 page=1 得到相同数据。
func (s *Scraper) FetchCategoryVideos(ctx context.Context, category string, _ int) domain.Response[[]domain.Video] {
	sl, u, refErr := s.CategoryRef(category, catPath)
	key := provider.CacheKey{Resource: cache.ResourceCategoryVideos, Params: cache.Params{"category": sl, "page": "1"}}
	return provider.Run(ctx, &s.Base, "category", key, func(ctx context.Context) ([]domain.Video, *domain.Pagination, error) {
		if refErr != nil {
			return nil, nil, refErr
		}
		items, err := s.list(ctx, "category", u)
		if err != nil {
			return nil, nil, s.NotFoundOn404(err, "category", sl)
		}
		return items, domain.SinglePage(), nil
	})
}

// SearchVideos 退化为对首页排行的标题过滤。
func (s *Scraper) SearchVideos(ctx context.Context, query string, page int) domain.Response[[]domain.Video] {
	return provider.ClientSearch(ctx, &s.Base, s.FetchVideos, query, page)
}

func (s *Scraper) GetCategories(ctx context.Context) domain.Response[[]domain.Category] {
	return provider.Run(ctx, &s.Base, "categories", provider.CacheKey{}, func(context.Context) ([]domain.Category, *domain.Pagination, error) {
		return s.StaticCategories(catPath, staticCategories), nil, nil
	})
}

// GetVideoDetails 重新抓取 categorySlug 对应的列表（为空时是首页），按 slug 末尾的位置取条目，
// 再抓取条目页补齐播放地址与标签。相关条目取自同一列表，它们的 slug 在同一 categorySlug 下仍然有效。
func (s *Scraper) GetVideoDetails(ctx context.Context, slugStr, categorySlug string) domain.Response[domain.Video] {
	sl := strings.ToLower(strings.TrimSpace(slugStr))
	cat := strings.ToLower(strings.Trim(strings.TrimSpace(categorySlug), "/"))
	key := provider.CacheKey{Resource: cache.ResourceVideoDetails, Params: cache.Params{"slug": sl, "category": cat}}
	return provider.Run(ctx, &s.Base, "details", key, func(ctx context.Context) (domain.Video, *domain.Pagination, error) {
		listURL := s.URL("/")
		if cat != "" {
			_, u, err := s.CategoryRef(cat, catPath)
			if err != nil {
				return domain.Video{}, nil, err
			}
			listURL = u
		}
		items, err := s.list(ctx, "details", listURL)
		if err != nil {
			if cat == "" {
				return domain.Video{}, nil, err
			}
			return domain.Video{}, nil, s.NotFoundOn404(err, "category", cat)
		}
		v, err := provider.PickIndexed(ID, items, sl)
		if err != nil {
			return domain.Video{}, nil, err
		}

		doc, err := s.Doc(ctx, v.PostURL)
		if err != nil {
			return domain.Video{}, nil, s.NotFoundOn404(err, "video", sl)
		}
		s.ParseWatch(doc.Selection, &v)
		v.RelatedVideos = provider.Related(items, v, relatedCap)
		return v, nil, nil
	})
}

func (s *Scraper) list(ctx context.Context, op, u string) ([]domain.Video, error) {
	doc, err := s.Doc(ctx, u)
	if err != nil {
		return nil, err
	}
	return s.ParseListing(op, doc.Selection, u), nil
}

// ParseListing 解析排行列表并按保留下来的顺序分配位置 slug。
//
// 约束：位置按丢弃无效条目之后的顺序计算，与 PickIndexed 的下标一致。
func (s *Scraper) ParseListing(op string, root *goquery.Selection, pageURL string) []domain.Video {
	items := s.Collect(op, root, clip.boundary, provider.OnPage(pageURL, s.parseClip))
	for i := range items {
		items[i].Slug = slug.Indexed(items[i].Title, ID, i)
		items[i].ID = items[i].Slug
	}
	return items
}

func (s *Scraper) parseClip(b *goquery.Selection, pageURL string) (domain.Video, error) {
	title := clip.title.First(b)
	if title == "" {
		return domain.Video{}, &provider.ParseError{Provider: ID, Field: "title"}
	}
	link := s.AbsFrom(clip.link.First(b), pageURL)
	if link == "" {
		return domain.Video{}, &provider.ParseError{Provider: ID, Field: "postUrl"}
	}
	v := domain.Video{
		Title:    title,
		PostURL:  link,
		Type:     domain.TypeVideo,
		Duration: clip.duration.First(b),
		Views:    clip.views.First(b),
		Tags:     extract.NormList(clip.source.All(b)),
	}
	v.SetThumbnail(s.AssetFrom(clip.thumb.First(b), pageURL))
	s.Finish(&v, domain.TypeVideo)
	return v, nil
}

// ParseWatch 用条目页（地址为 v.PostURL）补齐 v 的播放地址、描述与分类标签（列表中已有的字段不被覆盖为空）。
func (s *Scraper) ParseWatch(root *goquery.Selection, v *domain.Video) {
	page := v.PostURL
	if src := s.AbsFrom(watch.video.First(root), page); src != "" {
		v.VideoURL = src
		// 站点拦截直连：经 relay 的地址作为 provider 专属播放来源。
		if p := s.Asset(src); p != src {
			v.URL = p
		}
	}
	v.EmbedURL = s.AssetFrom(watch.embed.First(root), page)
	if d := extract.NormSpace(watch.description.First(root)); d != "" {
		v.Description = d
	}
	if d := watch.uploadDate.First(root); d != "" {
		v.UploadDate = d
	}
	v.Categories = extract.NormList(append(v.Categories, watch.categories.All(root)...))
	v.Tags = extract.NormList(append(v.Tags, watch.tags.All(root)...))
	s.Finish(v, domain.TypeVideo)
}
