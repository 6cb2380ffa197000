package provider_test

import (
	"context"
	"errors"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/AVHub/internal/cache"
	"github.com/John-Robertt/AVHub/internal/domain"
	"github.com/John-Robertt/AVHub/internal/extract"
	"github.com/John-Robertt/AVHub/internal/infra/kv"
	"github.com/John-Robertt/AVHub/internal/provider"
	"github.com/John-Robertt/AVHub/internal/provider/providertest"
)

func newBase(t *testing.T, caps provider.Capabilities, f provider.Fetcher) (*provider.Base, *cache.Cache) {
	t.Helper()
	store, err := kv.NewMemory(64)
	require.NoError(t, err)
	c := cache.New(store, nil, nil)
	b := provider.NewBase(provider.Info{ID: "demo", BaseURL: "https://demo.test/", PageSize: 3, Capabilities: caps}, provider.Deps{
		Fetcher: f,
		Cache:   c,
	})
	return &b, c
}

func TestNewBase_Overrides(t *testing.T) {
	b := provider.NewBase(provider.Info{ID: "demo", BaseURL: "https://demo.test", PageSize: 20}, provider.Deps{
		BaseURL:  "https://mirror.test/",
		PageSize: 5,
	})
	assert.Equal(t, "https://mirror.test", b.Info().BaseURL)
	assert.Equal(t, 5, b.Info().PageSize)
	assert.Equal(t, "https://mirror.test/page/2/", b.URL("page/2/"))
	assert.Equal(t, "https://other.test/x", b.URL("https://other.test/x"))
}

func TestBase_AssetProxiesWhenRelayConfigured(t *testing.T) {
	b := provider.NewBase(provider.Info{ID: "demo", BaseURL: "https://demo.test"}, provider.Deps{AssetRelay: "https://relay.test/relay"})
	got := b.Asset("/img/a.jpg")
	assert.Equal(t, "https://relay.test/relay?url=https%3A%2F%2Fdemo.test%2Fimg%2Fa.jpg", got)
	assert.Equal(t, got, b.Asset(got))
	assert.Equal(t, "", b.Asset("data:image/gif;base64,R0lGOD"))
	assert.Equal(t, []string{got}, b.Assets([]string{"/img/a.jpg", "https://demo.test/img/a.jpg", ""}))
}

func TestBase_AbsFromResolvesAgainstPage(t *testing.T) {
	b := provider.NewBase(provider.Info{ID: "demo", BaseURL: "https://demo.test"}, provider.Deps{})
	page := "https://demo.test/story/rel/"

	assert.Equal(t, "https://demo.test/story/rel/2/", b.AbsFrom("2/", page))
	assert.Equal(t, "https://demo.test/story/other/", b.AbsFrom("../other/", page))
	assert.Equal(t, "https://demo.test/top/", b.AbsFrom("/top/", page))
	assert.Equal(t, "https://demo.test/story/rel/img/a.jpg", b.AssetFrom("img/a.jpg", page))
	assert.Equal(t, []string{"https://demo.test/story/rel/a.jpg"}, b.AssetsFrom([]string{"a.jpg", "./a.jpg"}, page))
	// 页面地址未知时退回站点根。
	assert.Equal(t, "https://demo.test/2/", b.AbsFrom("2/", ""))
	assert.Equal(t, b.Abs("2/"), b.AbsFrom("2/", ""))
}

func TestOnPage_BindsPageURL(t *testing.T) {
	doc, err := extract.Document(`<ul><li><a href="v/1">One</a></li></ul>`)
	require.NoError(t, err)
	b := provider.NewBase(provider.Info{ID: "demo", BaseURL: "https://demo.test"}, provider.Deps{})
	href := extract.Field{extract.Attr("a", "href")}
	title := extract.Field{extract.Text("a")}

	out := b.Collect("videos", doc.Selection, extract.NewBoundary("li"), provider.OnPage("https://demo.test/list/", func(s *goquery.Selection, pageURL string) (domain.Video, error) {
		return domain.Video{Title: title.First(s), PostURL: b.AbsFrom(href.First(s), pageURL)}, nil
	}))
	require.Len(t, out, 1)
	assert.Equal(t, "https://demo.test/list/v/1", out[0].PostURL)
}

func TestRun_CachesSuccessOnly(t *testing.T) {
	b, _ := newBase(t, provider.Capabilities{}, nil)
	ctx := context.Background()
	key := provider.CacheKey{Resource: cache.ResourceVideos, Params: cache.Params{"page": "1"}}

	calls := 0
	fn := func(context.Context) ([]string, *domain.Pagination, error) {
		calls++
		return []string{"a"}, &domain.Pagination{CurrentPage: 1, TotalPages: 4, HasNextPage: true}, nil
	}
	r1 := provider.Run(ctx, b, "videos", key, fn)
	r2 := provider.Run(ctx, b, "videos", key, fn)
	require.True(t, r1.Success)
	require.True(t, r2.Success)
	assert.Equal(t, 1, calls)
	assert.Equal(t, r1.Data, r2.Data)
	require.NotNil(t, r2.Pagination)
	assert.Equal(t, 4, r2.Pagination.TotalPages)

	failKey := provider.CacheKey{Resource: cache.ResourceSearch, Params: cache.Params{"q": "x"}}
	failing := 0
	ffn := func(context.Context) ([]string, *domain.Pagination, error) {
		failing++
		return nil, nil, &provider.FetchError{URL: "https://demo.test", StatusCode: 503}
	}
	f1 := provider.Run(ctx, b, "search", failKey, ffn)
	provider.Run(ctx, b, "search", failKey, ffn)
	assert.False(t, f1.Success)
	assert.Equal(t, provider.KindFetch, f1.ErrorKind)
	assert.Contains(t, f1.Error, "HTTP 503")
	assert.Equal(t, 2, failing)
}

func TestRun_RecoversPanic(t *testing.T) {
	b, _ := newBase(t, provider.Capabilities{}, nil)
	r := provider.Run(context.Background(), b, "details", provider.CacheKey{}, func(context.Context) (domain.Video, *domain.Pagination, error) {
		var m map[string]int
		m["x"] = 1
		return domain.Video{}, nil, nil
	})
	assert.False(t, r.Success)
	assert.Equal(t, provider.KindInternal, r.ErrorKind)
	assert.Contains(t, r.Error, "panic")
}

func TestPaginate(t *testing.T) {
	b, _ := newBase(t, provider.Capabilities{PaginatesListing: true}, nil)

	assert.Equal(t, domain.SinglePage(), b.Paginate(false, 3, 100, 0))
	assert.Equal(t, &domain.Pagination{CurrentPage: 2, TotalPages: 3, HasNextPage: true}, b.Paginate(true, 2, 3, 0))
	assert.Equal(t, &domain.Pagination{CurrentPage: 2, TotalPages: 2, HasNextPage: false}, b.Paginate(true, 2, 2, 0))
	assert.Equal(t, &domain.Pagination{CurrentPage: 2, TotalPages: 9, HasNextPage: true}, b.Paginate(true, 2, 1, 9))
	assert.Equal(t, &domain.Pagination{CurrentPage: 9, TotalPages: 9, HasNextPage: false}, b.Paginate(true, 9, 3, 9))

	assert.Equal(t, 4, b.ListingPage(4))
	assert.Equal(t, 1, b.ListingPage(0))
	assert.Equal(t, 1, b.CategoryPage(4))
}

func TestCollect_DropsBlocksWithoutTitle(t *testing.T) {
	b, _ := newBase(t, provider.Capabilities{}, nil)
	doc, err := extract.Document(`<ul><li><a href="/a">A</a></li><li><a href="/b"></a></li><li><a href="/c">C</a></li></ul>`)
	require.NoError(t, err)
	title := extract.Field{extract.Text("a")}
	href := extract.Field{extract.Attr("a", "href")}
	out := b.Collect("videos", doc.Selection, extract.NewBoundary("li"), func(_ int, s *goquery.Selection) (domain.Video, error) {
		return domain.Video{Title: title.First(s), PostURL: b.Abs(href.First(s))}, nil
	})
	require.Len(t, out, 2)
	assert.Equal(t, "https://demo.test/c", out[1].PostURL)
}

func TestClientSearch(t *testing.T) {
	b, _ := newBase(t, provider.Capabilities{}, nil)
	list := func(_ context.Context, page int) domain.Response[[]domain.Video] {
		return domain.OK("demo", []domain.Video{{Title: "Red Car"}, {Title: "blue sky"}, {Title: "RED moon"}}, domain.SinglePage())
	}
	r := provider.ClientSearch(context.Background(), b, list, " red ", 1)
	require.True(t, r.Success)
	assert.Len(t, r.Data, 2)
	assert.Equal(t, domain.SinglePage(), r.Pagination)

	empty := provider.ClientSearch(context.Background(), b, list, "  ", 1)
	assert.False(t, empty.Success)

	failing := func(_ context.Context, page int) domain.Response[[]domain.Video] {
		return domain.Fail[[]domain.Video]("demo", provider.KindFetch, errors.New("down"))
	}
	assert.False(t, provider.ClientSearch(context.Background(), b, failing, "red", 1).Success)
}

func TestPickIndexed(t *testing.T) {
	items := []domain.Video{{Title: "a"}, {Title: "b"}, {Title: "c"}, {Title: "d"}, {Title: "e"}}
	v, err := provider.PickIndexed("demo", items, "some-title-demo-2")
	require.NoError(t, err)
	assert.Equal(t, "c", v.Title)

	_, err = provider.PickIndexed("demo", items[:2], "some-title-demo-2")
	var nfe *provider.NotFoundError
	require.ErrorAs(t, err, &nfe)

	_, err = provider.PickIndexed("demo", items, "no-index-here")
	require.ErrorAs(t, err, &nfe)
}

func TestRelated_ShallowCappedAndExcludesSelf(t *testing.T) {
	self := domain.Video{Slug: "s1", Title: "self"}
	items := []domain.Video{
		{Slug: "s1", Title: "self"},
		{Slug: "s2", Title: "two", RelatedVideos: []domain.Video{{Slug: "deep"}}},
		{Slug: "s3", Title: "three"},
		{Slug: "s4", Title: "four"},
	}
	got := provider.Related(items, self, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "s2", got[0].Slug)
	assert.Nil(t, got[0].RelatedVideos)
	assert.Nil(t, provider.Related(nil, self, 3))
}

func TestBase_DocFetchErrors(t *testing.T) {
	f := providertest.NewFetcher().Set("https://demo.test/ok", "<p>hi</p>")
	b, _ := newBase(t, provider.Capabilities{}, f)
	doc, err := b.Doc(context.Background(), "https://demo.test/ok")
	require.NoError(t, err)
	assert.Equal(t, "hi", doc.Find("p").Text())

	_, err = b.Doc(context.Background(), "https://demo.test/missing")
	assert.Equal(t, provider.KindFetch, provider.Kind(err))

	nb := provider.NewBase(provider.Info{ID: "x"}, provider.Deps{})
	_, err = nb.Fetch(context.Background(), "https://x.test")
	assert.Equal(t, provider.KindConfiguration, provider.Kind(err))
}
