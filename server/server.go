package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"tracklist/config"
	"tracklist/logger"
)

// NewRouter wires every endpoint. The returned handler already carries the
// middleware chain, so preflight and unmatched requests get it too.
func NewRouter(h *APIHandler) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)

	// 歌曲相关的API端点
	router.HandleFunc("/tracks", h.GetTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/tracks", h.CreateTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/tracks/{id}", h.GetTrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/tracks/{id}", h.UpdateTrackHandler).Methods(http.MethodPut)
	router.HandleFunc("/tracks/{id}", h.DeleteTrackHandler).Methods(http.MethodDelete)

	// 歌单相关的API端点
	router.HandleFunc("/playlists", h.GetPlaylistsHandler).Methods(http.MethodGet)
	router.HandleFunc("/playlists", h.CreatePlaylistHandler).Methods(http.MethodPost)
	router.HandleFunc("/playlists/{id}", h.GetPlaylistHandler).Methods(http.MethodGet)
	router.HandleFunc("/playlists/{id}", h.UpdatePlaylistHandler).Methods(http.MethodPut)
	router.HandleFunc("/playlists/{id}", h.DeletePlaylistHandler).Methods(http.MethodDelete)
	router.HandleFunc("/playlists/{id}/tracks", h.GetPlaylistTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/playlists/{id}/tracks", h.AddTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/playlists/{id}/tracks/position", h.AddTrackAtPositionHandler).Methods(http.MethodPost)
	router.HandleFunc("/playlists/{id}/tracks/multiple", h.AddTracksHandler).Methods(http.MethodPost)
	router.HandleFunc("/playlists/{id}/tracks/{trackId}", h.RemoveTrackHandler).Methods(http.MethodDelete)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusNotFound, CodeNotFound, "No handler for "+r.Method+" "+r.URL.Path)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method "+r.Method+" not allowed for "+r.URL.Path)
	})

	return requestIDMiddleware(loggingMiddleware(recoveryMiddleware(corsMiddleware(router))))
}

// Start serves handler on cfg.ServerPort until ctx is cancelled or the
// process receives SIGINT/SIGTERM, then shuts down gracefully.
func Start(ctx context.Context, cfg *config.Config, handler http.Handler) error {
	// 设置服务器超时
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
