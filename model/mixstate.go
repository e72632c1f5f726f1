package model

import "time"

// TrackMixState 每个 (用户, 歌曲, 音轨) 的混音偏好
type TrackMixState struct {
	ID        int64     `json:"-" gorm:"primaryKey;autoIncrement"`
	UserID    int64     `json:"userId" gorm:"uniqueIndex:uk_user_song_track;not null"`
	SongID    int64     `json:"songId" gorm:"uniqueIndex:uk_user_song_track;not null"`
	TrackID   int64     `json:"trackId" gorm:"uniqueIndex:uk_user_song_track;not null"`
	Volume    float64   `json:"volume" gorm:"default:1"` // [0,1]
	Mute      bool      `json:"mute" gorm:"default:false"`
	Solo      bool      `json:"solo" gorm:"default:false"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (TrackMixState) TableName() string {
	return "track_mix_states"
}

// DefaultMixState 首次选中歌曲时惰性创建的默认混音状态
func DefaultMixState(userID, songID, trackID int64) *TrackMixState {
	return &TrackMixState{
		UserID:  userID,
		SongID:  songID,
		TrackID: trackID,
		Volume:  1.0,
		Mute:    false,
		Solo:    false,
	}
}
