package server

import (
	"encoding/json"
	"net/http"

	"StemFM/core/player"
	"StemFM/core/session"
	"StemFM/logger"
	"StemFM/model"

	"github.com/gorilla/mux"
)

// PlaybackHandler 播放传输 HTTP 处理器
type PlaybackHandler struct {
	svc *player.Service
	sm  *session.Manager
}

// NewPlaybackHandler 创建播放处理器
func NewPlaybackHandler(svc *player.Service, sm *session.Manager) *PlaybackHandler {
	return &PlaybackHandler{svc: svc, sm: sm}
}

// followerLocked 跟随模式下本地传输控制被锁定，一切变更来自会话文档
func (h *PlaybackHandler) followerLocked(w http.ResponseWriter) bool {
	if h.sm != nil && h.sm.Role() == model.RoleFollower {
		writeError(w, http.StatusConflict, "跟随模式下本地播放控制已锁定")
		return true
	}
	return false
}

// LoadRequest 加载歌曲请求
type LoadRequest struct {
	SongID int64 `json:"songId"`
}

// LoadHandler 加载歌曲
func (h *PlaybackHandler) LoadHandler(w http.ResponseWriter, r *http.Request) {
	if h.followerLocked(w) {
		return
	}

	var req LoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求")
		return
	}

	if err := h.svc.LoadSong(r.Context(), req.SongID); err != nil {
		if err == player.ErrSongNotFound {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		logger.Error("加载歌曲失败",
			logger.Int64("songId", req.SongID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Transport().Snapshot())
}

// PlayHandler 开始播放
func (h *PlaybackHandler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	if h.followerLocked(w) {
		return
	}
	if err := h.svc.Transport().Play(r.Context()); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Transport().Snapshot())
}

// PauseHandler 暂停播放
func (h *PlaybackHandler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	if h.followerLocked(w) {
		return
	}
	if err := h.svc.Transport().Pause(r.Context()); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Transport().Snapshot())
}

// SeekRequest 跳转请求
type SeekRequest struct {
	Position float64 `json:"position"`
}

// SeekHandler 跳转到指定秒数
func (h *PlaybackHandler) SeekHandler(w http.ResponseWriter, r *http.Request) {
	if h.followerLocked(w) {
		return
	}

	var req SeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求")
		return
	}
	if err := h.svc.Transport().Seek(r.Context(), req.Position); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Transport().Snapshot())
}

// SpeedRequest 倍速请求
type SpeedRequest struct {
	Speed float64 `json:"speed"`
}

// SpeedHandler 设置播放倍速
func (h *PlaybackHandler) SpeedHandler(w http.ResponseWriter, r *http.Request) {
	if h.followerLocked(w) {
		return
	}

	var req SpeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求")
		return
	}
	if err := h.svc.Transport().SetSpeed(r.Context(), req.Speed); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Transport().Snapshot())
}

// RestartHandler 回到曲首重新播放
func (h *PlaybackHandler) RestartHandler(w http.ResponseWriter, r *http.Request) {
	if h.followerLocked(w) {
		return
	}
	if err := h.svc.Transport().Restart(r.Context()); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Transport().Snapshot())
}

// StateHandler 读取当前播放快照
func (h *PlaybackHandler) StateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Transport().Snapshot())
}

// RegisterPlaybackRoutes 注册播放相关路由
func RegisterPlaybackRoutes(router *mux.Router, h *PlaybackHandler) {
	router.HandleFunc("/api/playback/load", h.LoadHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/play", h.PlayHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/pause", h.PauseHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/seek", h.SeekHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/speed", h.SpeedHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/restart", h.RestartHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/state", h.StateHandler).Methods(http.MethodGet)
}
