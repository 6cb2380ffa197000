package warm

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/AVHub/internal/config"
	"github.com/John-Robertt/AVHub/internal/domain"
	"github.com/John-Robertt/AVHub/internal/provider"
)

type scriptedScraper struct {
	info provider.Info

	mu       sync.Mutex
	cats     []domain.Category
	catsErr  error
	failures map[int]int // page -> 前 N 次调用返回 FetchError
	calls    map[int]int
	catCalls map[string]int
}

func newScripted(id string, paginates bool) *scriptedScraper {
	return &scriptedScraper{
		info:     provider.Info{ID: id, Capabilities: provider.Capabilities{PaginatesListing: paginates}},
		failures: map[int]int{},
		calls:    map[int]int{},
		catCalls: map[string]int{},
	}
}

func (s *scriptedScraper) Info() provider.Info { return s.info }

func (s *scriptedScraper) FetchVideos(_ context.Context, page int) domain.Response[[]domain.Video] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[page]++
	if s.calls[page] <= s.failures[page] {
		err := &provider.FetchError{URL: "https://x.example/", StatusCode: 503}
		return domain.Fail[[]domain.Video](s.info.ID, provider.Kind(err), err)
	}
	return domain.OK(s.info.ID, []domain.Video{{ID: "1"}, {ID: "2"}}, domain.SinglePage())
}

func (s *scriptedScraper) FetchCategoryVideos(_ context.Context, category string, _ int) domain.Response[[]domain.Video] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catCalls[category]++
	return domain.OK(s.info.ID, []domain.Video{{ID: category}}, domain.SinglePage())
}

func (s *scriptedScraper) GetVideoDetails(context.Context, string, string) domain.Response[domain.Video] {
	return domain.Fail[domain.Video](s.info.ID, provider.KindNotFound, &provider.NotFoundError{Provider: s.info.ID})
}

func (s *scriptedScraper) GetCategories(context.Context) domain.Response[[]domain.Category] {
	if s.catsErr != nil {
		return domain.Fail[[]domain.Category](s.info.ID, provider.Kind(s.catsErr), s.catsErr)
	}
	return domain.OK(s.info.ID, s.cats, nil)
}

func (s *scriptedScraper) SearchVideos(context.Context, string, int) domain.Response[[]domain.Video] {
	return domain.OK(s.info.ID, []domain.Video{}, domain.SinglePage())
}

type recordObserver struct {
	mu         sync.Mutex
	startCalls int
	providers  []string
	phases     []string
	items      int
	lastTotal  int
}

func (o *recordObserver) OnStart(_ config.WarmConfig, providers []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startCalls++
	o.providers = providers
}

func (o *recordObserver) OnPhaseDone(name string, _ map[string]any, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnItemDone(_, total int, _ domain.WarmItem, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items++
	o.lastTotal = total
}

func (o *recordObserver) OnProgress(int, int, int, int, int, int, time.Duration) {}

func testConfig() config.WarmConfig {
	return config.WarmConfig{Pages: 2, Retries: 3, RetryDelay: time.Millisecond, Concurrency: 2}
}

func findItem(t *testing.T, rep domain.WarmReport, prov, resource, key string) domain.WarmItem {
	t.Helper()
	for _, it := range rep.Items {
		if it.Provider == prov && it.Resource == resource && it.Key == key {
			return it
		}
	}
	t.Fatalf("报告中没有 %s/%s/%s：%+v", prov, resource, key, rep.Items)
	return domain.WarmItem{}
}

func TestRun_RetriesFetchFailuresOnly(t *testing.T) {
	a := newScripted("a", true)
	a.cats = []domain.Category{{Slug: "x"}, {Slug: "y"}}
	a.failures[2] = 1

	b := newScripted("b", false)
	b.catsErr = &provider.ParseError{Provider: "b", Field: "categories", Err: errors.New("no blocks")}
	b.failures[1] = 100

	reg, err := provider.NewRegistry(a, b)
	require.NoError(t, err)

	obs := &recordObserver{}
	rep := Run(context.Background(), reg, testConfig(), obs, nil)

	assert.Equal(t, domain.WarmSummary{OK: 5, Failed: 2, Skipped: 1}, rep.Summary)
	require.Len(t, rep.Items, 8)

	it := findItem(t, rep, "a", "videos", "page=2")
	assert.Equal(t, domain.WarmStatusOK, it.Status)
	assert.Equal(t, 2, it.Attempts)
	assert.Equal(t, 2, it.Count)

	it = findItem(t, rep, "a", "categories", "all")
	assert.Equal(t, 2, it.Count)
	assert.Equal(t, 1, a.catCalls["x"])
	assert.Equal(t, 1, a.catCalls["y"])

	// parse 失败不重试。
	it = findItem(t, rep, "b", "categories", "all")
	assert.Equal(t, domain.WarmStatusFailed, it.Status)
	assert.Equal(t, provider.KindParse, it.ErrorKind)
	assert.Equal(t, 1, it.Attempts)

	// fetch 失败用满 retries 次尝试。
	it = findItem(t, rep, "b", "videos", "page=1")
	assert.Equal(t, domain.WarmStatusFailed, it.Status)
	assert.Equal(t, provider.KindFetch, it.ErrorKind)
	assert.Equal(t, 3, it.Attempts)
	assert.Contains(t, it.ErrorMsg, "503")

	// 不分页的 provider 只访问第一页。
	it = findItem(t, rep, "b", "videos", "page=2")
	assert.Equal(t, domain.WarmStatusSkipped, it.Status)
	assert.Equal(t, 0, b.calls[2])

	assert.Equal(t, 1, obs.startCalls)
	assert.Equal(t, []string{"a", "b"}, obs.providers)
	assert.Equal(t, []string{phaseCategories, phasePages}, obs.phases)
	assert.Equal(t, 8, obs.items)
	assert.Equal(t, 6, obs.lastTotal)
}

func TestRun_CanceledContext(t *testing.T) {
	a := newScripted("a", true)
	reg, err := provider.NewRegistry(a)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := Run(ctx, reg, testConfig(), nil, nil)

	require.NotEmpty(t, rep.Items)
	for _, it := range rep.Items {
		assert.Equal(t, domain.WarmStatusFailed, it.Status, "%+v", it)
		assert.Equal(t, provider.KindFetch, it.ErrorKind)
	}
	assert.Equal(t, 0, a.calls[1])
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "warm-report.json")
	rep := domain.WarmReport{Items: []domain.WarmItem{{Provider: "a", Resource: "videos", Key: "page=1", Status: domain.WarmStatusOK, Attempts: 1}}}
	rep.Finalize()

	require.NoError(t, WriteReport(path, rep))
	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var got domain.WarmReport
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, 1, got.Summary.OK)
	assert.Equal(t, "page=1", got.Items[0].Key)
}
