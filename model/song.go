package model

import "time"

// Song represents one rehearsal song: an ordered set of stem tracks.
type Song struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Title     string    `json:"title" gorm:"size:200;not null"`
	Artist    string    `json:"artist" gorm:"size:200"`
	Tracks    []Track   `json:"tracks" gorm:"foreignKey:SongID"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Song) TableName() string {
	return "songs"
}

// Track is one stem of a song. Immutable while the song is loaded for playback.
type Track struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	SongID    int64     `json:"songId" gorm:"index;not null"`
	Name      string    `json:"name" gorm:"size:100;not null"` // display name, e.g. "Drums"
	Position  int       `json:"position" gorm:"not null"`      // order within the song
	ObjectKey string    `json:"-" gorm:"size:500;not null"`    // MinIO object key of the stem audio
	Duration  float64   `json:"duration"`                      // seconds
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Track) TableName() string {
	return "tracks"
}

// TrackResource 是音频引擎加载一条音轨所需的资源描述
type TrackResource struct {
	TrackID   int64   `json:"trackId"`
	StreamURL string  `json:"streamUrl"` // 预签名的音频流地址
	Duration  float64 `json:"duration"`  // 秒
}
