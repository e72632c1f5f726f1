package config

import (
	"context"
	"os"
	"strings"

	"StemFM/logger"

	"github.com/fsnotify/fsnotify"
)

// WatchTuning 监听 .env 文件变化并热加载同步调参。
// 只刷新 SyncTuning，连接类配置（数据库、Redis、MinIO）需要重启生效。
func (c *Config) WatchTuning(ctx context.Context) error {
	if _, err := os.Stat(".env"); err != nil {
		// 没有 .env 文件就不监听
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// 监听当前目录：编辑器保存 .env 往往是 rename+create，直接监听文件会丢事件
	if err := watcher.Add("."); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, ".env") {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					c.reloadTuning()
					t := c.Tuning()
					logger.Info("同步调参已热加载",
						logger.Int("followerDebounceMs", t.FollowerDebounceMs),
						logger.Float64("seekToleranceSec", t.SeekToleranceSec),
						logger.Int("clickWindowMs", t.ClickWindowMs),
						logger.Int("progressTickMs", t.ProgressTickMs))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("配置文件监听错误", logger.ErrorField(err))
			}
		}
	}()

	return nil
}
