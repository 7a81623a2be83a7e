package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"tracklist/logger"
)

type playlistRequest struct {
	Name     string `json:"name" validate:"required,notblank,max=150"`
	IsPublic *bool  `json:"isPublic" validate:"required"`
}

type addTrackRequest struct {
	TrackID string `json:"trackId" validate:"required,notblank"`
}

type addTrackAtPositionRequest struct {
	TrackID  string `json:"trackId" validate:"required,notblank"`
	Position *int   `json:"position" validate:"required,gte=0"`
}

// addTracksRequest appends when position is omitted. Elements only have to be
// present; a blank id is looked up like any other and fails as not found.
type addTracksRequest struct {
	TrackIDs []*string `json:"trackIds" validate:"required,min=1,dive,required"`
	Position *int      `json:"position" validate:"omitempty,gte=0"`
}

func (r *addTracksRequest) ids() []string {
	ids := make([]string, 0, len(r.TrackIDs))
	for _, id := range r.TrackIDs {
		ids = append(ids, *id)
	}
	return ids
}

// GetPlaylistsHandler 获取所有歌单
func (h *APIHandler) GetPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.playlists.ListPlaylists(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

// CreatePlaylistHandler 创建歌单
func (h *APIHandler) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	playlist, err := h.playlists.CreatePlaylist(r.Context(), req.Name, *req.IsPublic)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, playlist)
}

// GetPlaylistHandler 获取歌单详情
func (h *APIHandler) GetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.playlists.GetPlaylist(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

// UpdatePlaylistHandler 更新歌单名称和可见性
func (h *APIHandler) UpdatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	playlist, err := h.playlists.UpdatePlaylist(r.Context(), mux.Vars(r)["id"], req.Name, *req.IsPublic)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

// DeletePlaylistHandler 删除歌单
func (h *APIHandler) DeletePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.playlists.DeletePlaylist(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPlaylistTracksHandler 返回歌单中按顺序排列的歌曲
func (h *APIHandler) GetPlaylistTracksHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.playlists.GetPlaylistTracks(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

// AddTrackHandler 添加歌曲到歌单末尾
func (h *APIHandler) AddTrackHandler(w http.ResponseWriter, r *http.Request) {
	playlistID := mux.Vars(r)["id"]

	var req addTrackRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	playlist, err := h.playlists.AddTrack(r.Context(), playlistID, req.TrackID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info("Track added to playlist",
		logger.String("playlistId", playlistID),
		logger.String("trackId", req.TrackID),
		logger.Int("trackCount", playlist.TrackCount()))
	writeJSON(w, http.StatusOK, playlist)
}

// AddTrackAtPositionHandler 在指定位置插入歌曲
func (h *APIHandler) AddTrackAtPositionHandler(w http.ResponseWriter, r *http.Request) {
	playlistID := mux.Vars(r)["id"]

	var req addTrackAtPositionRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	playlist, err := h.playlists.AddTrackAtPosition(r.Context(), playlistID, req.TrackID, *req.Position)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info("Track inserted into playlist",
		logger.String("playlistId", playlistID),
		logger.String("trackId", req.TrackID),
		logger.Int("position", *req.Position))
	writeJSON(w, http.StatusOK, playlist)
}

// AddTracksHandler 批量添加歌曲
func (h *APIHandler) AddTracksHandler(w http.ResponseWriter, r *http.Request) {
	playlistID := mux.Vars(r)["id"]

	var req addTracksRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	playlist, err := h.playlists.AddTracks(r.Context(), playlistID, req.ids(), req.Position)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info("Tracks added to playlist",
		logger.String("playlistId", playlistID),
		logger.Int("requested", len(req.TrackIDs)),
		logger.Int("trackCount", playlist.TrackCount()))
	writeJSON(w, http.StatusOK, playlist)
}

// RemoveTrackHandler 从歌单中移除歌曲
func (h *APIHandler) RemoveTrackHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	playlist, err := h.playlists.RemoveTrack(r.Context(), vars["id"], vars["trackId"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info("Track removed from playlist",
		logger.String("playlistId", vars["id"]),
		logger.String("trackId", vars["trackId"]))
	writeJSON(w, http.StatusOK, playlist)
}
