// Package snapshot 把 provider 抓到的原始 HTML 落盘（record）并在之后离线回放（replay）。
package snapshot

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/AVHub/internal/infra/fsx"
)

// Mode 是快照模式（配置项 fetch.snapshot_mode）。
type Mode string

const (
	ModeOff    Mode = "off"
	ModeRecord Mode = "record"
	ModeReplay Mode = "replay"
)

// ParseMode 解析模式；空串视为 off。
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeOff:
		return ModeOff, nil
	case ModeRecord:
		return ModeRecord, nil
	case ModeReplay:
		return ModeReplay, nil
	default:
		return "", fmt.Errorf("未知 snapshot_mode：%q（可选 off/record/replay）", s)
	}
}

// Store 提供 <root>/snapshots/ 下的快照读写。
//
// 约束：
// - 文件名为 sha1(url)，同一 URL 总是落到同一文件
// - ReadOnly=true（replay）时拒绝写
type Store struct {
	Root     string
	ReadOnly bool
}

var ErrReadOnly = errors.New("snapshot: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// Path 返回 provider 某 URL 的快照路径：<root>/snapshots/<provider>/<sha1(url)>.html。
func (s Store) Path(provider, url string) (string, error) {
	p, err := cleanProvider(provider)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("url 不能为空")
	}
	return filepath.Join(s.Root, "snapshots", p, fileName(url)), nil
}

// Read 读取快照；不存在时 ok=false 且 err=nil。
func (s Store) Read(provider, url string) (string, bool, error) {
	path, err := s.Path(provider, url)
	if err != nil {
		return "", false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(b), true, nil
}

// Write 原子写入（覆盖）快照。
func (s Store) Write(provider, url, html string) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.Path(provider, url)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), []byte(html))
}

func fileName(url string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(sum[:]) + ".html"
}

var providerNameRE = regexp.MustCompile(`^[a-z0-9_-]+$`)

func cleanProvider(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "", fmt.Errorf("provider 不能为空")
	}
	// 避免路径穿越。
	if !providerNameRE.MatchString(p) {
		return "", fmt.Errorf("非法 provider：%q", p)
	}
	return p, nil
}
