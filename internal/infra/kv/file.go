package kv

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/metafates/gache"
	"github.com/spf13/afero"
)

type fileEntry struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// File 把全部条目持久化到单个 JSON 文件（gache），适合单实例部署下重启后保留缓存。
type File struct {
	mu       sync.Mutex
	internal *gache.Cache[map[string]fileEntry]
	now      func() time.Time
}

func NewFile(path string, fs afero.Fs) *File {
	return &File{
		internal: gache.New[map[string]fileEntry](&gache.Options{
			Path:       path,
			FileSystem: gacheFs{fs: fs},
		}),
		now: time.Now,
	}
}

// SetClock 替换时间源（测试用来强制过期）。
func (f *File) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

func (f *File) load() map[string]fileEntry {
	data, expired, err := f.internal.Get()
	if err != nil || expired || data == nil {
		return make(map[string]fileEntry)
	}
	return data
}

func (f *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.load()[key]
	if !ok {
		return nil, false, nil
	}
	if !e.ExpiresAt.IsZero() && !f.now().Before(e.ExpiresAt) {
		return nil, false, nil
	}
	return e.Value, true, nil
}

func (f *File) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	data := f.load()
	// 顺手清理已过期条目，避免文件无限增长。
	for k, e := range data {
		if !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt) {
			delete(data, k)
		}
	}
	e := fileEntry{Value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	data[key] = e
	return f.internal.Set(data)
}

// gacheFs 把 afero 文件系统适配为 gache.FileSystem。
type gacheFs struct {
	fs afero.Fs
}

func (g gacheFs) OpenFile(name string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	return g.fs.OpenFile(name, flag, perm)
}

func (g gacheFs) MkdirAll(path string, perm os.FileMode) error {
	return g.fs.MkdirAll(path, perm)
}
