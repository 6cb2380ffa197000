// Package embedhd 抓取一个以 iframe 嵌入播放为主、详情页带 JSON-LD 的视频站。
//
// 条目 URL 形如 /video/<id>/<tail>；对外 slug 为 "<id>-<tail>"，id 是稳定的数字 ID。
package embedhd

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/AVHub/internal/cache"
	"github.com/John-Robertt/AVHub/internal/domain"
	"github.com/John-Robertt/AVHub/internal/extract"
	"github.com/John-Robertt/AVHub/internal/provider"
)

const (
	ID         = "embedhd"
	relatedCap = 12
)

var info = provider.Info{
	ID:       ID,
	Name:     "EmbedHD",
	BaseURL:  "https://embedhd.example",
	PageSize: 36,
	Capabilities: provider.Capabilities{
		HasSearch:           true,
		PaginatesListing:    true,
		PaginatesCategories: true,
		DynamicCategories:   true,
		StableIDs:           true,
	},
}

var (
	videoPathRE = regexp.MustCompile(`/video/(\d+)(?:/([^/?#]+))?`)
	slugRE      = regexp.MustCompile(`^(\d+)(?:-(.+))?$`)
)

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
		return s.listing(ctx, "videos", withPage(s.URL("/videos"), page), page)
	})
}

func (s *Scraper) FetchCategoryVideos(ctx context.Context, category string, page int) domain.Response[[]domain.Video] {
	page = s.CategoryPage(page)
	sl, u, refErr := s.CategoryRef(category, "/c/%s")
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
	return provider.Run(ctx, &s.Base, "categories", provider.CacheKey{Resource: cache.ResourceCategories}, func(ctx context.Context) ([]domain.Category, *domain.Pagination, error) {
		doc, err := s.Doc(ctx, s.URL("/categories"))
		if err != nil {
			return nil, nil, err
		}
		return s.CollectCategories(doc.Selection, categoryRule), nil, nil
	})
}

// GetVideoDetails 接受 "<id>-<tail>"、纯数字 id 或完整详情 URL。
func (s *Scraper) GetVideoDetails(ctx context.Context, slugOrURL, _ string) domain.Response[domain.Video] {
	u, id, ok := s.detailURL(slugOrURL)
	key := provider.CacheKey{Resource: cache.ResourceVideoDetails, Params: cache.Params{"id": id}}
	return provider.Run(ctx, &s.Base, "details", key, func(ctx context.Context) (domain.Video, *domain.Pagination, error) {
		if !ok {
			return domain.Video{}, nil, &provider.NotFoundError{Provider: ID, Resource: "video", Key: slugOrURL, Reason: "slug carries no numeric id"}
		}
		doc, err := s.Doc(ctx, u)
		if err != nil {
			return domain.Video{}, nil, s.NotFoundOn404(err, "video", id)
		}
		v, err := s.ParseDetail(doc.Selection, u)
		if err != nil {
			return domain.Video{}, nil, err
		}
		return v, nil, nil
	})
}

func (s *Scraper) detailURL(in string) (u, id string, ok bool) {
	in = strings.TrimSpace(in)
	if extract.IsAbsolute(in) {
		m := videoPathRE.FindStringSubmatch(in)
		if m == nil {
			return "", "", false
		}
		return in, m[1], true
	}
	m := slugRE.FindStringSubmatch(strings.ToLower(strings.Trim(in, "/")))
	if m == nil {
		return "", "", false
	}
	p := "/video/" + m[1]
	if m[2] != "" {
		p += "/" + url.PathEscape(m[2])
	}
	return s.URL(p), m[1], true
}

func (s *Scraper) listing(ctx context.Context, op, u string, page int) ([]domain.Video, *domain.Pagination, error) {
	doc, err := s.Doc(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	items := s.ParseListing(op, doc.Selection, u)
	// rel=next 是站点给出的权威信号；没有时退回条数启发式。
	total := 0
	if detail.nextPage.First(doc.Selection) != "" {
		total = page + 1
	} else if len(items) > 0 && len(items) < s.Info().PageSize {
		total = page
	}
	return items, s.Paginate(true, page, len(items), total), nil
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
	id, sl := idSlug(link)
	if id == "" {
		return domain.Video{}, &provider.ParseError{Provider: ID, Field: "id", Err: fmt.Errorf("no numeric id in %q", link)}
	}
	v := domain.Video{
		ID:       id,
		Slug:     sl,
		Title:    title,
		PostURL:  link,
		Type:     domain.TypeVideo,
		Duration: card.duration.First(b),
		Views:    card.views.First(b),
	}
	v.SetThumbnail(s.AssetFrom(card.thumb.First(b), pageURL))
	s.Finish(&v, domain.TypeVideo)
	return v, nil
}

// ParseDetail 解析详情页（JSON-LD 优先）。
func (s *Scraper) ParseDetail(root *goquery.Selection, pageURL string) (domain.Video, error) {
	title := extract.NormSpace(detail.title.First(root))
	if title == "" {
		return domain.Video{}, &provider.ParseError{Provider: ID, Field: "title"}
	}
	postURL := s.AbsFrom(detail.canonical.First(root), pageURL)
	if postURL == "" {
		postURL = pageURL
	}
	id, sl := idSlug(postURL)
	if id == "" {
		return domain.Video{}, &provider.ParseError{Provider: ID, Field: "id", Err: fmt.Errorf("no numeric id in %q", postURL)}
	}
	v := domain.Video{
		ID:          id,
		Slug:        sl,
		Title:       title,
		PostURL:     postURL,
		Type:        domain.TypeVideo,
		VideoURL:    s.AbsFrom(detail.contentURL.First(root), pageURL),
		EmbedURL:    s.AssetFrom(detail.embed.First(root), pageURL),
		Duration:    displayDuration(detail.duration.First(root)),
		UploadDate:  dateOnly(detail.uploadDate.First(root)),
		Views:       detail.views.First(root),
		Description: extract.NormSpace(detail.description.First(root)),
		Categories:  extract.NormList(detail.categories.All(root)),
		Tags:        extract.NormList(detail.tags.All(root)),
	}
	v.SetThumbnail(s.AssetFrom(detail.thumb.First(root), pageURL))

	rel := s.Collect("details", root, related, provider.OnPage(pageURL, s.parseCard))
	v.RelatedVideos = provider.Related(rel, v, relatedCap)

	s.Finish(&v, domain.TypeVideo)
	return v, nil
}

// idSlug 从 /video/<id>/<tail> 取出 id 与 "<id>-<tail>"。
func idSlug(link string) (id, slug string) {
	m := videoPathRE.FindStringSubmatch(link)
	if m == nil {
		return "", ""
	}
	tail := strings.ToLower(strings.TrimSuffix(m[2], ".html"))
	if tail == "" {
		return m[1], m[1]
	}
	return m[1], m[1] + "-" + tail
}

var isoDurationRE = regexp.MustCompile(`^P(?:T)?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// displayDuration 把 ISO 8601 时长（PT1H2M3S）转换为 "1:02:03" / "12:30"；其它格式原样返回。
func displayDuration(s string) string {
	s = strings.TrimSpace(s)
	m := isoDurationRE.FindStringSubmatch(strings.ToUpper(s))
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "") {
		return s
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	mi += sec / 60
	sec %= 60
	h += mi / 60
	mi %= 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mi, sec)
	}
	return fmt.Sprintf("%d:%02d", mi, sec)
}

// dateOnly 截掉 JSON-LD 时间戳里的时间部分（"2024-05-01T10:00:00+00:00" -> "2024-05-01"）。
func dateOnly(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[4] == '-' && s[7] == '-' && (s[10] == 'T' || s[10] == ' ') {
		return s[:10]
	}
	return s
}

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
