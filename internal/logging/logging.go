// Package logging 构造进程级 logrus logger（级别、格式与可选的轮转日志文件）。
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/John-Robertt/AVHub/internal/config"
)

// Setup 按配置构造 logger。
//
// 约束：
// - 日志永远写 stderr；配置了 log.file 时再 tee 到 lumberjack 轮转文件
// - 不修改 logrus 的全局 logger，组件通过注入的 *logrus.Entry 记录日志
// - 返回的 closer 关闭日志文件（没有文件时是 no-op）
func Setup(cfg config.LogConfig, stderr io.Writer) (*logrus.Logger, io.Closer, error) {
	if stderr == nil {
		stderr = os.Stderr
	}
	lvl := cfg.Level
	if lvl == "" {
		lvl = "info"
	}
	level, err := logrus.ParseLevel(lvl)
	if err != nil {
		return nil, nil, fmt.Errorf("log.level 无效：%w", err)
	}

	l := logrus.New()
	l.SetLevel(level)
	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var closer io.Closer = nopCloser{}
	out := stderr
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("创建日志目录失败：%w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(stderr, lj)
		closer = lj
	}
	l.SetOutput(out)
	return l, closer, nil
}

// Discard 返回丢弃一切输出的 entry（测试与未配置日志的调用方使用）。
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
