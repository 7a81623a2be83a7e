package server

import (
	"net/http"

	"tracklist/service"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	tracks    *service.TrackService
	playlists *service.PlaylistService
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(tracks *service.TrackService, playlists *service.PlaylistService) *APIHandler {
	return &APIHandler{tracks: tracks, playlists: playlists}
}

// HealthHandler reports that the process is serving.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}
