//go:build unix

package fsx

import (
	"errors"
	"syscall"
)

// isEXDEV 报告 rename 是否因跨文件系统失败（*os.LinkError 由 errors.Is 展开）。
func isEXDEV(err error) bool { return errors.Is(err, syscall.EXDEV) }
