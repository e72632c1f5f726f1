package transport

import (
	"context"
	"sync"

	"StemFM/core/channel"
	"StemFM/logger"
)

// fanResult 扇出批次中单个通道的结果
type fanResult struct {
	trackID int64
	err     error
}

// fanOut 对一组通道并发执行同一操作并等待全部落定。
// 单个通道的失败不会阻塞或中断批次，只会出现在结果里。
// 这是系统唯一的并发模式：扇出、全部等待、逐个收集结果。
func fanOut(ctx context.Context, handles map[int64]channel.Handle, fn func(ctx context.Context, h channel.Handle) error) []fanResult {
	results := make([]fanResult, 0, len(handles))
	ch := make(chan fanResult, len(handles))

	var wg sync.WaitGroup
	for trackID, h := range handles {
		wg.Add(1)
		go func(trackID int64, h channel.Handle) {
			defer wg.Done()
			ch <- fanResult{trackID: trackID, err: fn(ctx, h)}
		}(trackID, h)
	}
	wg.Wait()
	close(ch)

	for r := range ch {
		results = append(results, r)
	}
	return results
}

// logFanFailures 记录批次中的失败，通道级错误从不上抛
func logFanFailures(op string, results []fanResult) {
	for _, r := range results {
		if r.err != nil {
			logger.Warn("通道操作失败，已忽略",
				logger.String("op", op),
				logger.Int64("trackId", r.trackID),
				logger.ErrorField(r.err))
		}
	}
}
