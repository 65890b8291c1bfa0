// Package server receives agent metrics over HTTP and keeps them in a storage.
package server

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"time"

	"github.com/and161185/liveperf/cmd/server/metrics"
	"github.com/and161185/liveperf/internal/config"
	"github.com/and161185/liveperf/internal/crypto"
	"github.com/and161185/liveperf/internal/errs"
	"github.com/and161185/liveperf/internal/server/middleware"
	"github.com/and161185/liveperf/model"
	"github.com/and161185/liveperf/storage"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// fileStorage is implemented by storages that are dumped to disk periodically.
type fileStorage interface {
	SaveToFile(ctx context.Context, filePath string) error
	LoadFromFile(ctx context.Context, filePath string) error
}

type Server struct {
	Storage storage.Storage
	Config  *config.ServerConfig
}

func NewServer(storage storage.Storage, config *config.ServerConfig) *Server {
	return &Server{Storage: storage, Config: config}
}

// Router builds the chi router with every middleware and route.
func (srv *Server) Router() (http.Handler, error) {
	trusted, err := middleware.TrustedCIDR(srv.Config.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	var priv *rsa.PrivateKey
	if srv.Config.CryptoKey != "" {
		if priv, err = crypto.ReadPrivateKey(srv.Config.CryptoKey); err != nil {
			return nil, fmt.Errorf("load private key: %w", err)
		}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.LogMiddleware(srv.Config.Logger))
	r.Use(trusted)
	r.Use(middleware.DecryptMiddleware(priv, true))
	r.Use(middleware.VerifyHashMiddleware(srv.Config.Key))
	r.Use(middleware.DecompressMiddleware)
	r.Use(middleware.CompressMiddleware)

	r.Post("/update/{type}/{name}/{value}", srv.UpdateMetricHandler)
	r.Post("/update/", srv.UpdateMetricHandlerJSON)
	r.Post("/updates/", srv.UpdatesHandlerJSON)
	r.Get("/value/{type}/{name}", srv.GetMetricHandler)
	r.Post("/value/", srv.GetMetricHandlerJSON)
	r.Get("/ping", srv.PingHandler)
	r.Get("/", srv.ListMetricsHandler)
	return r, nil
}

// Run serves until ctx is done, then shuts down and dumps file storage.
func (srv *Server) Run(ctx context.Context) error {
	logger := srv.Config.Logger

	fs, isFile := srv.Storage.(fileStorage)
	if isFile && srv.Config.Restore {
		// restore runs to completion even if shutdown was already requested
		if err := fs.LoadFromFile(context.WithoutCancel(ctx), srv.Config.FileStoragePath); err != nil {
			logger.Errorf("failed to restore metrics: %v", err)
		}
	}

	router, err := srv.Router()
	if err != nil {
		return err
	}
	httpSrv := &http.Server{Addr: srv.Config.Addr, Handler: router}

	if isFile && srv.Config.StoreInterval > 0 {
		go srv.storeLoop(ctx, fs, time.Duration(srv.Config.StoreInterval)*time.Second)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", srv.Config.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	if isFile {
		if err := fs.SaveToFile(shutdownCtx, srv.Config.FileStoragePath); err != nil {
			return fmt.Errorf("final save: %w", err)
		}
	}
	return nil
}

func (srv *Server) storeLoop(ctx context.Context, fs fileStorage, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := fs.SaveToFile(ctx, srv.Config.FileStoragePath); err != nil {
				srv.Config.Logger.Errorf("failed to save metrics: %v", err)
			}
		}
	}
}

func (srv *Server) UpdateMetricHandler(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	name := chi.URLParam(r, "name")
	val := chi.URLParam(r, "value")

	metric, err := metrics.NewMetric(typ, name, val)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := srv.Storage.Save(r.Context(), metric); err != nil {
		srv.Config.Logger.Errorf("failed to save metric [name=%s]: %v", name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (srv *Server) UpdateMetricHandlerJSON(w http.ResponseWriter, r *http.Request) {
	var metric model.Metric
	if !decodeJSON(w, r, &metric) {
		return
	}
	if err := metrics.CheckMetric(&metric); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := srv.Storage.Save(r.Context(), &metric); err != nil {
		srv.Config.Logger.Errorf("failed to save metric [name=%s]: %v", metric.ID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	srv.writeJSON(w, metric)
}

func (srv *Server) UpdatesHandlerJSON(w http.ResponseWriter, r *http.Request) {
	var batch []model.Metric
	if !decodeJSON(w, r, &batch) {
		return
	}
	for i := range batch {
		if err := metrics.CheckMetric(&batch[i]); err != nil {
			http.Error(w, fmt.Sprintf("metric %d: %v", i, err), http.StatusBadRequest)
			return
		}
	}

	if err := srv.Storage.SaveBatch(r.Context(), batch); err != nil {
		srv.Config.Logger.Errorf("failed to save %d metrics: %v", len(batch), err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (srv *Server) GetMetricHandler(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	name := chi.URLParam(r, "name")

	metric, err := metrics.NewEmptyMetric(typ, name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stored, ok := srv.lookup(w, r, metric)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	switch stored.Type {
	case model.Gauge:
		if stored.Value == nil {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "%v", *stored.Value)
	case model.Counter:
		if stored.Delta == nil {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "%d", *stored.Delta)
	}
}

func (srv *Server) GetMetricHandlerJSON(w http.ResponseWriter, r *http.Request) {
	var req model.Metric
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := metrics.NewEmptyMetric(string(req.Type), req.ID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stored, ok := srv.lookup(w, r, &req)
	if !ok {
		return
	}
	srv.writeJSON(w, stored)
}

func (srv *Server) PingHandler(w http.ResponseWriter, r *http.Request) {
	if err := srv.Storage.Ping(r.Context()); err != nil {
		srv.Config.Logger.Errorf("ping failed: %v", err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

var listTemplate = template.Must(template.New("list").Parse(`<html><body><ul>
{{range .}}<li>{{.ID}} ({{.Type}}): {{if .Value}}{{.Value}}{{else}}{{.Delta}}{{end}}</li>
{{end}}</ul></body></html>
`))

type listItem struct {
	ID    string
	Type  model.MetricType
	Value *float64
	Delta *int64
}

func (srv *Server) ListMetricsHandler(w http.ResponseWriter, r *http.Request) {
	all, err := srv.Storage.GetAll(r.Context())
	if err != nil {
		srv.Config.Logger.Errorf("failed to get all metrics from storage: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	items := make([]listItem, 0, len(all))
	for _, m := range all {
		items = append(items, listItem{ID: m.ID, Type: m.Type, Value: m.Value, Delta: m.Delta})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := listTemplate.Execute(w, items); err != nil {
		srv.Config.Logger.Errorf("failed to render metrics list: %v", err)
	}
}

func (srv *Server) lookup(w http.ResponseWriter, r *http.Request, m *model.Metric) (*model.Metric, bool) {
	stored, err := srv.Storage.Get(r.Context(), m)
	if err != nil {
		if errors.Is(err, errs.ErrMetricNotFound) {
			http.NotFound(w, r)
		} else {
			srv.Config.Logger.Errorf("failed to get metric [name=%s]: %v", m.ID, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return nil, false
	}
	return stored, true
}

func (srv *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		srv.Config.Logger.Errorf("failed to write response JSON: %v", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "unsupported content type", http.StatusUnsupportedMediaType)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}
