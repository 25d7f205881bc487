// Package api exposes the tuning interface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/san-kum/ptcbox/internal/control"
	"github.com/san-kum/ptcbox/internal/feedforward"
	"github.com/san-kum/ptcbox/internal/thermo"
	"github.com/san-kum/ptcbox/internal/tuning"
)

const maxBody = 4 << 10

type Server struct {
	svc       *tuning.Service
	lg        *slog.Logger
	accessLog io.Writer
	router    *mux.Router
}

type Option func(*Server)

func WithLogger(lg *slog.Logger) Option { return func(s *Server) { s.lg = lg } }

// WithAccessLog writes Apache-style access lines to w.
func WithAccessLog(w io.Writer) Option { return func(s *Server) { s.accessLog = w } }

func New(svc *tuning.Service, opts ...Option) *Server {
	s := &Server{svc: svc, router: mux.NewRouter()}
	for _, opt := range opts {
		opt(s)
	}
	if s.lg == nil {
		s.lg = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/status", s.status).Methods(http.MethodGet)
	r.HandleFunc("/command", s.command).Methods(http.MethodPost)
	r.HandleFunc("/params/{name}", s.setParam).Methods(http.MethodPut)
	r.HandleFunc("/gains/{loop}/{name}", s.setGain).Methods(http.MethodPut)
	r.HandleFunc("/tables/{table}", s.table).Methods(http.MethodGet)
	r.HandleFunc("/tables/{table}", s.setTable).Methods(http.MethodPut)
	r.HandleFunc("/mode/{mode}", s.force).Methods(http.MethodPut)
	r.HandleFunc("/mode", s.release).Methods(http.MethodDelete)
	r.HandleFunc("/eval", s.eval).Methods(http.MethodPost)
}

// Handler returns the router wrapped with panic recovery and, when
// configured, access logging.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
	if s.accessLog != nil {
		h = handlers.LoggingHandler(s.accessLog, h)
	}
	return h
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.lg.Info("api listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type valueRequest struct {
	Value *float64 `json:"value"`
	Table bool     `json:"table"`
}

type tableRequest struct {
	X    float64  `json:"x"`
	Y    float64  `json:"y"`
	NewX *float64 `json:"new_x,omitempty"`
}

type evalRequest struct {
	Target     float64 `json:"target"`
	DurationMS int64   `json:"duration_ms"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Status())
}

// command runs one line of the text command set from the request body.
func (s *Server) command(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		s.writeError(w, err)
		return
	}
	reply, err := s.svc.Exec(r.Context(), strings.TrimSpace(string(body)))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(reply))
}

func (s *Server) setParam(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req valueRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	var err error
	switch {
	case req.Table && (name == "warming_threshold" || name == "warmthr"):
		err = s.svc.UseWarmingTable()
	case req.Value == nil:
		err = errMissingValue
	default:
		err = s.svc.SetParam(name, *req.Value)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) setGain(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req valueRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Value == nil {
		s.writeError(w, errMissingValue)
		return
	}
	if err := s.svc.SetGain(vars["loop"], vars["name"], *req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	p := s.svc.Params()
	lp, _ := p.Loop(strings.ToLower(vars["loop"]))
	s.writeJSON(w, http.StatusOK, lp)
}

func (s *Server) table(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Params().Table(strings.ToLower(mux.Vars(r)["table"]))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t.Points())
}

// setTable overwrites the entry nearest x. With new_x it also moves it.
func (s *Server) setTable(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["table"]
	var req tableRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	var (
		idx int
		err error
	)
	if req.NewX != nil {
		idx, err = s.svc.MoveTableEntry(name, req.X, *req.NewX, req.Y)
	} else {
		idx, err = s.svc.SetTableEntry(name, req.X, req.Y)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"index": idx})
}

func (s *Server) force(w http.ResponseWriter, r *http.Request) {
	mode, err := thermo.ParseMode(mux.Vars(r)["mode"])
	if err == nil {
		err = s.svc.ForceMode(mode)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) release(w http.ResponseWriter, r *http.Request) {
	s.svc.ReleaseMode()
	s.writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) eval(w http.ResponseWriter, r *http.Request) {
	var req evalRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	d := time.Duration(req.DurationMS) * time.Millisecond
	if err := tuning.CheckEvalDuration(d); err != nil {
		s.writeError(w, err)
		return
	}
	score, err := s.svc.Evaluate(r.Context(), req.Target, d)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]float64{"score": score})
}

var (
	errMissingValue = errors.New("api: missing value")
	errBadBody      = errors.New("api: malformed body")
)

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadBody, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tuning.ErrUnknownCommand),
		errors.Is(err, control.ErrUnknownParam),
		errors.Is(err, thermo.ErrUnknownLoop),
		errors.Is(err, thermo.ErrUnknownTable),
		errors.Is(err, thermo.ErrUnknownMode),
		errors.Is(err, feedforward.ErrNoEntry):
		return http.StatusNotFound
	case errors.Is(err, thermo.ErrInvalidParam),
		errors.Is(err, feedforward.ErrOrder),
		errors.Is(err, feedforward.ErrNaN),
		errors.Is(err, tuning.ErrUsage),
		errors.Is(err, errMissingValue),
		errors.Is(err, errBadBody):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.lg.Error("request failed", "err", err)
	}
	s.writeJSON(w, code, errorBody{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.lg.Error("write response failed", "err", err)
	}
}
