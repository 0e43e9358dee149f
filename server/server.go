// Package server provides the HTTP API of ecgscope: beats, fiducials, charts, and the control
// of the playback session.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/ftl/ecgscope/ecg"
	"github.com/ftl/ecgscope/playback"
)

const shutdownTimeout = 5 * time.Second

// Session is the playback session controlled through the API. *playback.Session implements it.
type Session interface {
	Play()
	Pause()
	Toggle()
	Reset()
	SetSpeed(speed playback.Speed)
	Select(dataset ecg.Dataset, class ecg.Class) error
	Snapshot() playback.Snapshot
	Strip() *playback.Strip
}

type Server struct {
	log     *zap.Logger
	session Session
	viewers http.Handler
	handler http.Handler
}

// New creates the HTTP API for the given session. The viewers handler serves the websocket
// connections on /ws, it may be nil. Without cors origins, all origins are allowed.
func New(session Session, viewers http.Handler, corsOrigins []string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	result := &Server{
		log:     log,
		session: session,
		viewers: viewers,
	}

	router := result.setup()
	result.handler = cors.New(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)

	return result
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) setup() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(s.log))

	router.GET("/healthz", s.health)

	api := router.Group("/api")
	{
		api.GET("/datasets", s.datasets)
		api.GET("/beat", s.beat)
		api.GET("/fiducials", s.fiducials)

		chartRoutes := api.Group("/chart")
		{
			chartRoutes.GET("/beat", s.beatChart)
			chartRoutes.GET("/playback", s.playbackChart)
		}

		playbackRoutes := api.Group("/playback")
		{
			playbackRoutes.GET("", s.snapshot)
			playbackRoutes.GET("/positions", s.positions)
			playbackRoutes.POST("/play", s.control(Session.Play))
			playbackRoutes.POST("/pause", s.control(Session.Pause))
			playbackRoutes.POST("/toggle", s.control(Session.Toggle))
			playbackRoutes.POST("/reset", s.control(Session.Reset))
			playbackRoutes.PUT("/speed", s.setSpeed)
			playbackRoutes.PUT("/selection", s.selectStrip)
		}
	}

	if s.viewers != nil {
		router.GET("/ws", gin.WrapH(s.viewers))
	}

	return router
}

// ListenAndServe serves the API on the given address until the context is done.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("cannot listen on address %s: %w", address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves the API on the given listener until the context is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveResult := make(chan error, 1)
	go func() {
		s.log.Info("http server started", zap.Stringer("address", listener.Addr()))
		serveResult <- server.Serve(listener)
	}()

	select {
	case err := <-serveResult:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	<-serveResult
	s.log.Info("http server stopped")
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
