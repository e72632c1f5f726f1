package model

// QueueMode 队列来源：歌单或筛选出的列表视图
type QueueMode string

const (
	QueueModePlaylist     QueueMode = "playlist"
	QueueModeFilteredList QueueMode = "filtered_list"
)

// QueueStatus 队列控制器状态
type QueueStatus string

const (
	QueueIdle     QueueStatus = "idle"
	QueuePlaying  QueueStatus = "playing"
	QueueComplete QueueStatus = "complete"
)

// QueueSnapshot 队列状态快照，供 UI 读取
type QueueSnapshot struct {
	SongIDs      []int64     `json:"songIds"`
	CurrentIndex int         `json:"currentIndex"`
	Mode         QueueMode   `json:"mode"`
	RepeatSingle bool        `json:"repeatSingle"`
	RepeatQueue  bool        `json:"repeatQueue"`
	Status       QueueStatus `json:"status"`
}
