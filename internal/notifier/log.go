package notifier

import (
	"context"
	"log"
	"os"

	"lease-radar/internal/model"
)

// LogNotifier 仅打印新出现的记录，适合开发阶段使用。
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier 创建日志通知器，未提供 logger 时默认输出到标准输出。
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.New(os.Stdout, "[notify] ", log.LstdFlags)
	}
	return &LogNotifier{logger: logger}
}

// Notify 逐条打印刷新后新增的空置记录。
func (n LogNotifier) Notify(ctx context.Context, listings []model.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	for _, l := range listings {
		n.logger.Printf("new listing: %s %s (%s, %s)", l.BuildingName, l.Floor, l.Source, l.PublishDate)
	}
	return nil
}
