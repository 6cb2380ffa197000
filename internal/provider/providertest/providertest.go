// Package providertest 提供 provider 测试共享的假 Fetcher 与不变量断言。
package providertest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/AVHub/internal/domain"
	"github.com/John-Robertt/AVHub/internal/provider"
)

// Fetcher 是按 URL 返回固定 HTML 的内存 Fetcher；未登记的 URL 返回 HTTP 404 的 FetchError。
type Fetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls map[string]int
}

func NewFetcher() *Fetcher {
	return &Fetcher{pages: map[string]string{}, errs: map[string]error{}, calls: map[string]int{}}
}

// Set 登记（或替换）url 的页面。
func (f *Fetcher) Set(url, html string) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = html
	delete(f.errs, url)
	return f
}

// Fail 让 url 返回指定错误。
func (f *Fetcher) Fail(url string, err error) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[url] = err
	return f
}

func (f *Fetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &provider.FetchError{URL: url, Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	h, ok := f.pages[url]
	if !ok {
		return "", &provider.FetchError{URL: url, StatusCode: 404}
	}
	return h, nil
}

// Calls 返回 url 被请求的次数。
func (f *Fetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// Total 返回全部请求次数。
func (f *Fetcher) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Fixture 读取当前包 testdata/ 下的文件。
func Fixture(t testing.TB, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(b)
}

// AssertAbsoluteAssets 检查每个输出的资源 URL 都以 http 开头（不能是裸路径或 data: URI）。
func AssertAbsoluteAssets(t testing.TB, videos ...domain.Video) {
	t.Helper()
	check := func(field, v string) {
		if v == "" {
			return
		}
		assert.True(t, strings.HasPrefix(v, "http"), "%s 期望绝对 URL，实际=%q", field, v)
	}
	for _, v := range videos {
		check("thumbnail", v.Thumbnail)
		check("thumbnailUrl", v.ThumbnailURL)
		check("videoUrl", v.VideoURL)
		check("embedUrl", v.EmbedURL)
		check("postUrl", v.PostURL)
		for _, g := range v.GalleryImages {
			check("galleryImages", g)
		}
		for _, r := range v.RelatedVideos {
			assert.Empty(t, r.RelatedVideos, "related 条目不应再携带 relatedVideos")
			check("related.thumbnail", r.Thumbnail)
		}
	}
}

// AssertListing 检查列表输出的通用约束：title/slug/provider 非空，资源 URL 绝对。
func AssertListing(t testing.TB, providerID string, videos []domain.Video) {
	t.Helper()
	for i, v := range videos {
		assert.NotEmpty(t, v.Title, "item %d title", i)
		assert.NotEmpty(t, v.Slug, "item %d slug", i)
		assert.Equal(t, providerID, v.Provider, "item %d provider", i)
		assert.True(t, v.Type.Valid(), "item %d type=%q", i, v.Type)
	}
	AssertAbsoluteAssets(t, videos...)
}
