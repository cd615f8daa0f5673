package web

import (
	"context"
	"net/http"
	"os"
	"path"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/mogaika/mmd_browser/config"
	"github.com/mogaika/mmd_browser/utils"
)

type Server struct {
	settings config.Settings
	library  *Library
}

func NewServer(settings config.Settings, library *Library) *Server {
	return &Server{settings: settings, library: library}
}

func (s *Server) Library() *Library { return s.library }

// Router builds route table, static files are served from webPath/data when set
func (s *Server) Router(webPath string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/json/models", s.HandlerModels).Methods(http.MethodGet)
	r.HandleFunc("/json/models/{id}", s.HandlerModel).Methods(http.MethodGet)
	r.HandleFunc("/action/models/{id}/pose", s.HandlerPose).Methods(http.MethodPost)
	r.HandleFunc("/dump/models/{id}", s.HandlerDumpModel).Methods(http.MethodGet)
	r.HandleFunc("/dump/models/{id}/gltf", s.HandlerDumpGLTF).Methods(http.MethodGet)
	r.HandleFunc("/dump/models/{id}/buffer/{buffer}", s.HandlerDumpBuffer).Methods(http.MethodGet)
	r.HandleFunc("/dump/models/{id}/material/{material}/{slot}", s.HandlerDumpTexture).Methods(http.MethodGet)
	r.HandleFunc("/upload/models", s.HandlerUploadModel).Methods(http.MethodPost)
	r.HandleFunc("/ws/status", s.HandlerStatus)

	if webPath != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(path.Join(webPath, "data"))))
	}

	return handlers.LoggingHandler(os.Stdout, handlers.RecoveryHandler()(r))
}

// StartServer scans library and serves it until ctx is done
func StartServer(ctx context.Context, settings config.Settings, library *Library, webPath string) error {
	if err := library.Scan(); err != nil {
		return err
	}
	if settings.Watch {
		if err := library.Watch(ctx); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:    settings.Addr,
		Handler: NewServer(settings, library).Router(webPath),
	}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	utils.Logger("web").Infof("Starting server %v", settings.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
