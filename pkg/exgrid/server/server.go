// Package server exposes the engine over a JSON HTTP API and pushes cache
// invalidation events to websocket clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/exgrid-go/pkg/exgrid"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/models"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/output"
)

const maxBodyBytes = 8 << 20

// Server routes API requests to an Engine.
type Server struct {
	engine *exgrid.Engine
	hub    *Hub
	mux    *http.ServeMux
	log    logrus.FieldLogger
}

// New returns a Server for engine. Every cache invalidation of the engine
// is published to websocket clients once the hub runs.
func New(engine *exgrid.Engine, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		engine: engine,
		hub:    NewHub(log),
		mux:    http.NewServeMux(),
		log:    log,
	}
	engine.OnInvalidate(func(path string) {
		s.hub.Publish(Event{Type: EventInvalidated, Path: path})
	})
	s.routes()
	return s
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve runs the hub and serves HTTP on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.WithField("addr", ln.Addr().String()).Info("server started")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("server stopped")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// statusFor maps an error code to an HTTP status.
func statusFor(code exgrid.Code) int {
	switch code {
	case exgrid.CodeNotFound, exgrid.CodeSheetNotFound:
		return http.StatusNotFound
	case exgrid.CodeVersionConflict:
		return http.StatusConflict
	case exgrid.CodeReadOnly:
		return http.StatusForbidden
	case exgrid.CodeSheetUnavailable, exgrid.CodeParseError, exgrid.CodeInvalidArgument:
		return http.StatusUnprocessableEntity
	case exgrid.CodeLockTimeout:
		return http.StatusLocked
	}
	return http.StatusInternalServerError
}

// errBadRequest marks a request body that could not be decoded.
var errBadRequest = errors.New("bad request")

// handle decodes a JSON request into Req, runs fn and writes its result.
func handle[Req any](s *Server, route string, fn func(ctx context.Context, req Req) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("route", route)

		var req Req
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			log.WithError(err).Debug("invalid request body")
			s.write(w, http.StatusBadRequest, models.ErrorResult{
				Error:   string(exgrid.CodeInvalidArgument),
				Message: fmt.Errorf("%w: %v", errBadRequest, err).Error(),
			})
			return
		}

		res, err := fn(r.Context(), req)
		if err != nil {
			result := exgrid.ResultFor(err)
			status := statusFor(exgrid.Code(result.Error))
			entry := log.WithError(err).WithField("code", result.Error)
			if status >= http.StatusInternalServerError {
				entry.Error("request failed")
			} else {
				entry.Debug("request rejected")
			}
			s.write(w, status, result)
			return
		}
		s.write(w, http.StatusOK, res)
	}
}

func (s *Server) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := output.Write(w, v, false); err != nil {
		s.log.WithError(err).Warn("write response failed")
	}
}
