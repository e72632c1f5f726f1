// Package channel 定义音频通道句柄的接口边界。
// 真正的解码/输出引擎是外部协作者，核心只通过 Engine/Handle 与它交互。
package channel

import (
	"context"

	"StemFM/model"
)

// Status 通道状态
type Status struct {
	Loaded   bool    `json:"loaded"`
	Position float64 `json:"position"` // 秒
	Duration float64 `json:"duration"` // 秒
}

// Handle 一条已解码音轨的可控制播放单元
type Handle interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	SetPosition(ctx context.Context, seconds float64) error
	SetRate(ctx context.Context, rate float64) error
	SetGain(ctx context.Context, gain float64) error
	Status(ctx context.Context) (Status, error)
	Unload(ctx context.Context) error
}

// Engine 把音轨资源加载为通道句柄
type Engine interface {
	Load(ctx context.Context, res model.TrackResource) (Handle, error)
}
