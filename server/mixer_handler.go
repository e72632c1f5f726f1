package server

import (
	"encoding/json"
	"net/http"

	"StemFM/core/mixer"
	"StemFM/core/player"
	"StemFM/model"

	"github.com/gorilla/mux"
)

// MixerHandler 混音 HTTP 处理器
type MixerHandler struct {
	svc *player.Service
}

// NewMixerHandler 创建混音处理器
func NewMixerHandler(svc *player.Service) *MixerHandler {
	return &MixerHandler{svc: svc}
}

// currentMixer 取当前混音器，未加载歌曲时报 409
func (h *MixerHandler) currentMixer(w http.ResponseWriter) *mixer.Mixer {
	mx := h.svc.Mixer()
	if mx == nil {
		writeError(w, http.StatusConflict, "未加载歌曲")
	}
	return mx
}

// VolumeRequest 音量请求
type VolumeRequest struct {
	TrackID int64   `json:"trackId"`
	Volume  float64 `json:"volume"`
}

// VolumeHandler 设置音轨音量
func (h *MixerHandler) VolumeHandler(w http.ResponseWriter, r *http.Request) {
	mx := h.currentMixer(w)
	if mx == nil {
		return
	}

	var req VolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求")
		return
	}
	mx.SetVolume(r.Context(), req.TrackID, req.Volume)
	h.writeState(w, mx)
}

// TrackRequest 单音轨操作请求
type TrackRequest struct {
	TrackID int64 `json:"trackId"`
}

// MuteHandler 切换音轨静音
func (h *MixerHandler) MuteHandler(w http.ResponseWriter, r *http.Request) {
	mx := h.currentMixer(w)
	if mx == nil {
		return
	}

	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求")
		return
	}
	mx.ToggleMute(r.Context(), req.TrackID)
	h.writeState(w, mx)
}

// SoloHandler 切换音轨独奏
func (h *MixerHandler) SoloHandler(w http.ResponseWriter, r *http.Request) {
	mx := h.currentMixer(w)
	if mx == nil {
		return
	}

	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求")
		return
	}
	mx.ToggleSolo(r.Context(), req.TrackID)
	h.writeState(w, mx)
}

// ClickHandler 音轨点击：窗口内的第二次点击切静音，超时的单击切独奏
func (h *MixerHandler) ClickHandler(w http.ResponseWriter, r *http.Request) {
	mx := h.currentMixer(w)
	if mx == nil {
		return
	}

	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求")
		return
	}
	mx.Click(r.Context(), req.TrackID)
	h.writeState(w, mx)
}

// MixerStateResponse 混音状态响应
type MixerStateResponse struct {
	States map[int64]model.TrackMixState `json:"states"`
	Gains  map[int64]float64             `json:"gains"`
}

// StateHandler 读取当前歌曲的混音状态与有效增益
func (h *MixerHandler) StateHandler(w http.ResponseWriter, r *http.Request) {
	mx := h.currentMixer(w)
	if mx == nil {
		return
	}
	h.writeState(w, mx)
}

func (h *MixerHandler) writeState(w http.ResponseWriter, mx *mixer.Mixer) {
	pc := h.svc.Transport().Context()
	resp := MixerStateResponse{Gains: mx.EffectiveGains()}
	if pc != nil {
		resp.States = pc.MixMap()
	}
	writeJSON(w, http.StatusOK, resp)
}

// RegisterMixerRoutes 注册混音相关路由
func RegisterMixerRoutes(router *mux.Router, h *MixerHandler) {
	router.HandleFunc("/api/mixer/volume", h.VolumeHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/mixer/mute", h.MuteHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/mixer/solo", h.SoloHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/mixer/click", h.ClickHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/mixer/state", h.StateHandler).Methods(http.MethodGet)
}
