package fetch

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/AVHub/internal/infra/snapshot"
	"github.com/John-Robertt/AVHub/internal/provider"
)

// ErrNoSnapshot 表示 replay 模式下没有对应 URL 的快照。
var ErrNoSnapshot = errors.New("no snapshot recorded for url")

// Snapshot 装饰一个 Fetcher：record 模式把成功抓到的 HTML 落盘，replay 模式只读快照、不访问网络。
type Snapshot struct {
	next     provider.Fetcher
	store    snapshot.Store
	mode     snapshot.Mode
	provider string
	log      *logrus.Entry
}

func NewSnapshot(next provider.Fetcher, store snapshot.Store, mode snapshot.Mode, providerID string, log *logrus.Entry) *Snapshot {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return &Snapshot{next: next, store: store, mode: mode, provider: providerID, log: log.WithField("component", "snapshot")}
}

func (s *Snapshot) FetchHTML(ctx context.Context, url string) (string, error) {
	if s.mode == snapshot.ModeReplay {
		h, ok, err := s.store.Read(s.provider, url)
		if err != nil {
			return "", &provider.FetchError{URL: url, Err: err}
		}
		if !ok {
			return "", &provider.FetchError{URL: url, Err: ErrNoSnapshot}
		}
		return h, nil
	}

	h, err := s.next.FetchHTML(ctx, url)
	if err != nil {
		return "", err
	}
	if s.mode == snapshot.ModeRecord {
		if werr := s.store.Write(s.provider, url, h); werr != nil {
			s.log.WithError(werr).WithField("url", url).Warn("snapshot write failed")
		}
	}
	return h, nil
}
