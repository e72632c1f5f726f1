package model

// TransportStatus 播放传输状态机的状态
type TransportStatus string

const (
	TransportIdle     TransportStatus = "idle"
	TransportLoading  TransportStatus = "loading"
	TransportReady    TransportStatus = "ready"
	TransportPlaying  TransportStatus = "playing"
	TransportPaused   TransportStatus = "paused"
	TransportSeeking  TransportStatus = "seeking"
	TransportFinished TransportStatus = "finished"
)

// TransportSnapshot 当前歌曲的传输状态快照。
// 本地 UI 订阅它，会话管理端也用它作为同步文档的内容。
type TransportSnapshot struct {
	SongID         int64           `json:"songId"`
	Status         TransportStatus `json:"status"`
	LoadedTrackIDs []int64         `json:"loadedTrackIds"`
	ActiveTrackIDs []int64         `json:"activeTrackIds"` // 未静音的音轨
	SoloedTrackIDs []int64         `json:"soloedTrackIds"`
	SeekPosition   float64         `json:"seekPosition"` // 秒
	Duration       float64         `json:"duration"`     // 秒，取第一条激活音轨
	IsPlaying      bool            `json:"isPlaying"`
	PlaybackSpeed  float64         `json:"playbackSpeed"`
	Finished       bool            `json:"finished"`
}
