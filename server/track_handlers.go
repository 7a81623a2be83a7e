package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"tracklist/logger"
	"tracklist/service"
)

type createTrackRequest struct {
	Title    string `json:"title" validate:"required,notblank,max=100"`
	Artist   string `json:"artist" validate:"required,notblank,max=100"`
	Duration *int   `json:"duration" validate:"required,gt=0"`
}

// updateTrackRequest leaves duration optional.
type updateTrackRequest struct {
	Title    string `json:"title" validate:"required,notblank,max=100"`
	Artist   string `json:"artist" validate:"required,notblank,max=100"`
	Duration *int   `json:"duration" validate:"omitempty,gt=0"`
}

// GetTracksHandler 获取所有歌曲
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.tracks.ListTracks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Debug("Listed tracks", logger.Int("count", len(tracks)))
	writeJSON(w, http.StatusOK, tracks)
}

// CreateTrackHandler 创建歌曲
func (h *APIHandler) CreateTrackHandler(w http.ResponseWriter, r *http.Request) {
	var req createTrackRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	track, err := h.tracks.CreateTrack(r.Context(), req.Title, req.Artist, *req.Duration)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, track)
}

// GetTrackHandler 获取单首歌曲
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	track, err := h.tracks.GetTrack(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// UpdateTrackHandler 更新歌曲信息
func (h *APIHandler) UpdateTrackHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req updateTrackRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	track, err := h.tracks.UpdateTrack(r.Context(), id, service.TrackUpdate{
		Title:    req.Title,
		Artist:   req.Artist,
		Duration: req.Duration,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// DeleteTrackHandler 删除歌曲
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.tracks.DeleteTrack(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
