package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/AVHub/internal/domain"
	"github.com/John-Robertt/AVHub/internal/provider"
)

// stubScraper 按参数返回固定结果，并记录最后一次调用的参数。
type stubScraper struct {
	id       string
	lastPage int
	lastCat  string
	lastQ    string
}

func (s *stubScraper) Info() provider.Info {
	return provider.Info{ID: s.id, BaseURL: "https://" + s.id + ".example", PageSize: 2}
}

func (s *stubScraper) FetchVideos(_ context.Context, page int) domain.Response[[]domain.Video] {
	s.lastPage = page
	return domain.OK(s.id, []domain.Video{{ID: "1", Title: "One", Provider: s.id}}, &domain.Pagination{CurrentPage: page, TotalPages: 3, HasNextPage: page < 3})
}

func (s *stubScraper) FetchCategoryVideos(_ context.Context, category string, page int) domain.Response[[]domain.Video] {
	s.lastCat, s.lastPage = category, page
	if category == "broken" {
		err := &provider.FetchError{URL: "https://" + s.id + ".example/c/broken", StatusCode: 503}
		return domain.Fail[[]domain.Video](s.id, provider.Kind(err), err)
	}
	return domain.OK(s.id, []domain.Video{}, domain.SinglePage())
}

func (s *stubScraper) GetVideoDetails(_ context.Context, slug, categorySlug string) domain.Response[domain.Video] {
	s.lastCat = categorySlug
	if slug != "known" {
		err := &provider.NotFoundError{Provider: s.id, Resource: "video", Key: slug}
		return domain.Fail[domain.Video](s.id, provider.Kind(err), err)
	}
	return domain.OK(s.id, domain.Video{ID: "k", Slug: slug, Title: "Known", Provider: s.id}, nil)
}

func (s *stubScraper) GetCategories(context.Context) domain.Response[[]domain.Category] {
	return domain.OK(s.id, []domain.Category{{Slug: s.id + "-cat", Provider: s.id}}, nil)
}

func (s *stubScraper) SearchVideos(_ context.Context, q string, page int) domain.Response[[]domain.Video] {
	s.lastQ, s.lastPage = q, page
	return domain.OK(s.id, []domain.Video{{ID: q, Title: q, Provider: s.id}}, domain.SinglePage())
}

func newTestRouter(t *testing.T) (http.Handler, *stubScraper) {
	t.Helper()
	a := &stubScraper{id: "alpha"}
	reg, err := provider.NewRegistry(a, &stubScraper{id: "beta"})
	require.NoError(t, err)
	return NewRouter(Options{Registry: reg}), a
}

type envelope struct {
	Success    bool               `json:"success"`
	Data       json.RawMessage    `json:"data"`
	Error      string             `json:"error"`
	ErrorKind  string             `json:"errorKind"`
	Provider   string             `json:"provider"`
	Pagination *domain.Pagination `json:"pagination"`
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var env envelope
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestRouter_Providers(t *testing.T) {
	h, _ := newTestRouter(t)
	rec, env := get(t, h, "/providers")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	var infos []provider.Info
	require.NoError(t, json.Unmarshal(env.Data, &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].ID)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestRouter_VideosPagination(t *testing.T) {
	h, a := newTestRouter(t)

	rec, env := get(t, h, "/providers/alpha/videos?page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, 2, a.lastPage)
	require.NotNil(t, env.Pagination)
	assert.True(t, env.Pagination.HasNextPage)

	_, _ = get(t, h, "/providers/ALPHA/videos")
	assert.Equal(t, 1, a.lastPage)
}

func TestRouter_BadInput(t *testing.T) {
	h, _ := newTestRouter(t)
	cases := map[string]string{
		"unknown provider": "/providers/nope/videos",
		"page not integer": "/providers/alpha/videos?page=abc",
		"page zero":        "/providers/alpha/category/x?page=0",
		"missing q":        "/providers/alpha/search?q=%20",
		"aggregate no q":   "/search",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			rec, env := get(t, h, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}

	_, env := get(t, h, "/providers/nope/videos")
	assert.Equal(t, provider.KindNotRegistered, env.ErrorKind)
}

func TestRouter_NotFoundAndHandledFailure(t *testing.T) {
	h, a := newTestRouter(t)

	rec, env := get(t, h, "/providers/alpha/video/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, provider.KindNotFound, env.ErrorKind)
	assert.Nil(t, env.Data)

	rec, env = get(t, h, "/providers/alpha/video/known?categorySlug=couples")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "couples", a.lastCat)

	// 上游抓取失败是“已处理的失败”：200 + success=false。
	rec, env = get(t, h, "/providers/alpha/category/broken")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, provider.KindFetch, env.ErrorKind)

	rec, _ = get(t, h, "/nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_SearchAndAggregates(t *testing.T) {
	h, a := newTestRouter(t)

	rec, env := get(t, h, "/providers/alpha/search?q=night+train&page=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "night train", a.lastQ)
	assert.Equal(t, 3, a.lastPage)

	rec, env = get(t, h, "/categories?providers=beta,nope")
	require.Equal(t, http.StatusOK, rec.Code)
	var agg struct {
		Data   []domain.Category `json:"data"`
		Errors []struct {
			Provider  string `json:"provider"`
			ErrorKind string `json:"errorKind"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &agg))
	require.Len(t, agg.Data, 1)
	assert.Equal(t, "beta-cat", agg.Data[0].Slug)
	require.Len(t, agg.Errors, 1)
	assert.Equal(t, "nope", agg.Errors[0].Provider)
	assert.Equal(t, provider.KindNotRegistered, agg.Errors[0].ErrorKind)

	rec, env = get(t, h, "/search?q=beach")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &agg))
	assert.Empty(t, agg.Errors)
}

func TestRouter_CORSPreflight(t *testing.T) {
	h, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/providers", nil)
	req.Header.Set("Origin", "https://ui.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_KeepsClientRequestID(t *testing.T) {
	h, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(headerRequestID, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(headerRequestID))
}
