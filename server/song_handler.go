package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"StemFM/core/player"
	"StemFM/logger"
	"StemFM/model"
	"StemFM/repository"

	"github.com/gorilla/mux"
)

// SongHandler 歌曲与分轨 HTTP 处理器
type SongHandler struct {
	songs   repository.SongRepository
	states  repository.MixStateRepository
	resolve player.ResolveFunc
}

// NewSongHandler 创建歌曲处理器。resolve 用于生成分轨播放地址。
func NewSongHandler(songs repository.SongRepository, states repository.MixStateRepository, resolve player.ResolveFunc) *SongHandler {
	return &SongHandler{songs: songs, states: states, resolve: resolve}
}

// ListHandler 列出全部歌曲
func (h *SongHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	songs, err := h.songs.List(r.Context())
	if err != nil {
		logger.Error("查询歌曲列表失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

// SongDetailResponse 歌曲详情，分轨带可播放地址
type SongDetailResponse struct {
	Song      *model.Song           `json:"song"`
	Resources []model.TrackResource `json:"resources"`
}

// GetHandler 取歌曲详情与分轨播放地址
func (h *SongHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "无效的歌曲ID")
		return
	}

	song, err := h.songs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if song == nil {
		writeError(w, http.StatusNotFound, "歌曲不存在")
		return
	}

	resources := make([]model.TrackResource, 0, len(song.Tracks))
	for _, track := range song.Tracks {
		streamURL := ""
		if h.resolve != nil {
			streamURL, err = h.resolve(r.Context(), track.ObjectKey)
			if err != nil {
				logger.Warn("分轨地址解析失败",
					logger.Int64("trackId", track.ID),
					logger.ErrorField(err))
			}
		}
		resources = append(resources, model.TrackResource{
			TrackID:   track.ID,
			StreamURL: streamURL,
			Duration:  track.Duration,
		})
	}

	writeJSON(w, http.StatusOK, SongDetailResponse{Song: song, Resources: resources})
}

// CreateHandler 创建歌曲（含分轨元数据）
func (h *SongHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var song model.Song
	if err := json.NewDecoder(r.Body).Decode(&song); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求")
		return
	}
	if song.Title == "" || len(song.Tracks) == 0 {
		writeError(w, http.StatusBadRequest, "歌曲标题和分轨不能为空")
		return
	}

	if err := h.songs.Create(r.Context(), &song); err != nil {
		logger.Error("创建歌曲失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, &song)
}

// MixStateHandler 读取某用户在该歌曲下已保存的混音状态
func (h *SongHandler) MixStateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "无效的歌曲ID")
		return
	}

	userID := resolveUserID(r)
	states, err := h.states.GetBySong(r.Context(), userID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, states)
}

// RegisterSongRoutes 注册歌曲相关路由
func RegisterSongRoutes(router *mux.Router, h *SongHandler) {
	router.HandleFunc("/api/songs", h.ListHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/songs", h.CreateHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/songs/{id}", h.GetHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/{id}/mixstate", h.MixStateHandler).Methods(http.MethodGet)
}
