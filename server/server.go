// Package server exposes saved records over a small read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"cnpjscraper/cnpj"
	"cnpjscraper/logger"
	"cnpjscraper/record"
)

// Server serves records from a record.Store.
type Server struct {
	store *record.Store
	log   logger.Logger
}

// New returns a Server reading from store.
func New(store *record.Store, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{store: store, log: log}
}

// Handler returns the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	router.HandleFunc("/records", s.listRecords).Methods(http.MethodGet)
	router.HandleFunc("/records/{cnpj:.+}", s.getRecord).Methods(http.MethodGet)
	router.Use(s.logRequests)

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.log}),
		handlers.PrintRecoveryStack(false),
	)
	return recovery(handlers.CompressHandler(router))
}

// ShutdownTimeout bounds how long Run waits for in-flight requests.
const ShutdownTimeout = 5 * time.Second

// Run serves on addr until ctx is cancelled, then shuts the server down.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("record server listening", logger.String("addr", addr), logger.String("dir", s.store.Dir))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("record server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown record server: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List()
	if err != nil {
		s.log.Error("failed to list records", logger.Err(err))
		http.Error(w, "Error listing records", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"records": ids})
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	id := cnpj.Identifier(mux.Vars(r)["cnpj"])
	if id.Digits() == "" {
		http.Error(w, "CNPJ parameter must contain digits", http.StatusBadRequest)
		return
	}

	rec, err := s.store.Load(id)
	if errors.Is(err, record.ErrNotFound) {
		http.Error(w, fmt.Sprintf("No record for CNPJ %s", id.Digits()), http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("failed to load record", logger.String("cnpj", id.Digits()), logger.Err(err))
		http.Error(w, "Error loading record", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	jsonData, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		http.Error(w, "Error marshaling to JSON", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(jsonData)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Duration("duration", time.Since(start)),
		)
	})
}

// recoveryLogger adapts Logger to handlers.RecoveryHandlerLogger.
type recoveryLogger struct {
	log logger.Logger
}

func (l recoveryLogger) Println(args ...interface{}) {
	l.log.Error("panic while serving request", logger.String("panic", fmt.Sprint(args...)))
}
