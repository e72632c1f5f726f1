package server

import (
	"encoding/json"
	"net/http"

	"StemFM/core/session"
	"StemFM/logger"
	"StemFM/model"

	"github.com/gorilla/mux"
)

// SessionHandler 排练会话 HTTP 处理器
type SessionHandler struct {
	sm *session.Manager
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(sm *session.Manager) *SessionHandler {
	return &SessionHandler{sm: sm}
}

// SessionResponse 会话状态响应
type SessionResponse struct {
	SessionID string            `json:"sessionId"`
	Role      model.SessionRole `json:"role"`
}

// CreateHandler 创建会话并成为管理端
func (h *SessionHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := h.sm.Create(r.Context())
	if err != nil {
		if err == session.ErrAlreadyInSession {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		logger.Error("创建会话失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{SessionID: sessionID, Role: model.RoleAdmin})
}

// JoinSessionRequest 加入会话请求
type JoinSessionRequest struct {
	SessionID string `json:"sessionId"`
}

// JoinHandler 加入会话成为跟随端
func (h *SessionHandler) JoinHandler(w http.ResponseWriter, r *http.Request) {
	var req JoinSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "无效的请求")
		return
	}

	if err := h.sm.Join(r.Context(), req.SessionID); err != nil {
		switch err {
		case session.ErrSessionNotFound:
			writeError(w, http.StatusNotFound, err.Error())
		case session.ErrAlreadyInSession:
			writeError(w, http.StatusConflict, err.Error())
		default:
			logger.Error("加入会话失败", logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{SessionID: req.SessionID, Role: model.RoleFollower})
}

// LeaveHandler 离开会话（幂等）
func (h *SessionHandler) LeaveHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.sm.Leave(r.Context()); err != nil {
		logger.Error("离开会话失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Role: model.RoleNone})
}

// CurrentHandler 读取当前会话文档
func (h *SessionHandler) CurrentHandler(w http.ResponseWriter, r *http.Request) {
	st, err := h.sm.State(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "未在会话中")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// RegisterSessionRoutes 注册会话相关路由
func RegisterSessionRoutes(router *mux.Router, h *SessionHandler) {
	router.HandleFunc("/api/sessions", h.CreateHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/sessions/join", h.JoinHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/sessions/leave", h.LeaveHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/sessions/current", h.CurrentHandler).Methods(http.MethodGet)
}
