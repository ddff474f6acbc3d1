// Package logging builds the structured logger shared by the server and tools.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/zhouzirui/z-debate/backend/internal/config"
)

// New 根据配置创建日志实例，w 为空时写入 stderr。
func New(cfg config.LogConfig, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           cfg.Level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	if cfg.Format == "json" {
		logger.SetFormatter(log.JSONFormatter)
	}
	return logger
}

// Discard returns a logger that drops every record. Used when a component is
// built without an explicit logger.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// OrDiscard returns logger, or a discarding logger when it is nil.
func OrDiscard(logger *log.Logger) *log.Logger {
	if logger == nil {
		return Discard()
	}
	return logger
}
