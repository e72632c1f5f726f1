package server

import (
	"encoding/json"
	"net/http"

	"StemFM/core/queue"
	"StemFM/core/session"
	"StemFM/model"

	"github.com/gorilla/mux"
)

// QueueHandler 播放队列 HTTP 处理器
type QueueHandler struct {
	qc *queue.Controller
	sm *session.Manager
}

// NewQueueHandler 创建队列处理器
func NewQueueHandler(qc *queue.Controller, sm *session.Manager) *QueueHandler {
	return &QueueHandler{qc: qc, sm: sm}
}

func (h *QueueHandler) followerLocked(w http.ResponseWriter) bool {
	if h.sm != nil && h.sm.Role() == model.RoleFollower {
		writeError(w, http.StatusConflict, "跟随模式下本地队列控制已锁定")
		return true
	}
	return false
}

// StartQueueRequest 启动队列请求
type StartQueueRequest struct {
	SongIDs    []int64         `json:"songIds"`
	Mode       model.QueueMode `json:"mode"`
	StartIndex int             `json:"startIndex"`
}

// StartHandler 启动播放队列
func (h *QueueHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	if h.followerLocked(w) {
		return
	}

	var req StartQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求")
		return
	}
	if req.Mode == "" {
		req.Mode = model.QueueModePlaylist
	}

	if err := h.qc.Start(r.Context(), req.SongIDs, req.Mode, req.StartIndex); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.qc.Snapshot())
}

// NextHandler 切到下一首
func (h *QueueHandler) NextHandler(w http.ResponseWriter, r *http.Request) {
	if h.followerLocked(w) {
		return
	}
	if err := h.qc.Next(r.Context()); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.qc.Snapshot())
}

// PreviousHandler 切到上一首
func (h *QueueHandler) PreviousHandler(w http.ResponseWriter, r *http.Request) {
	if h.followerLocked(w) {
		return
	}
	if err := h.qc.Previous(r.Context()); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.qc.Snapshot())
}

// JumpRequest 跳转到指定下标请求
type JumpRequest struct {
	Index int `json:"index"`
}

// JumpHandler 跳转到队列中的指定歌曲
func (h *QueueHandler) JumpHandler(w http.ResponseWriter, r *http.Request) {
	if h.followerLocked(w) {
		return
	}

	var req JumpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求")
		return
	}
	if err := h.qc.JumpTo(r.Context(), req.Index); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.qc.Snapshot())
}

// RepeatRequest 循环模式请求
type RepeatRequest struct {
	Single bool `json:"single"`
	Queue  bool `json:"queue"`
}

// RepeatHandler 设置循环模式
func (h *QueueHandler) RepeatHandler(w http.ResponseWriter, r *http.Request) {
	var req RepeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求")
		return
	}
	h.qc.SetRepeat(req.Single, req.Queue)
	writeJSON(w, http.StatusOK, h.qc.Snapshot())
}

// StateHandler 读取队列快照
func (h *QueueHandler) StateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.qc.Snapshot())
}

// RegisterQueueRoutes 注册队列相关路由
func RegisterQueueRoutes(router *mux.Router, h *QueueHandler) {
	router.HandleFunc("/api/queue/start", h.StartHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/next", h.NextHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/previous", h.PreviousHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/jump", h.JumpHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/repeat", h.RepeatHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/state", h.StateHandler).Methods(http.MethodGet)
}
