// Package admin implements a read-only HTTP admin surface over a single
// open table: statistics, schema introspection, an ad-hoc scan
// endpoint, a GraphQL API, and a WebSocket event feed (chi router,
// middleware stack, GraphQL mount, WebSocket broadcast).
//
// The table this engine wraps is not safe for concurrent access (see
// storage.BufferPool and record.Table) - every handler that touches it
// takes Server.mu first, making the admin server itself the single
// serialising caller the storage layer's contract requires.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/graphql-go/graphql"

	"slotdb/pkg/expr"
	"slotdb/pkg/metrics"
	"slotdb/pkg/record"
	"slotdb/pkg/storage"
)

// Server is the admin HTTP server for one open table.
type Server struct {
	config    *Config
	table     *record.Table
	router    *chi.Mux
	httpSrv   *http.Server
	startTime time.Time
	collector *metrics.Collector
	exporter  *metrics.PrometheusExporter
	events    *eventHub
	gqlSchema graphql.Schema

	mu sync.Mutex
}

// New builds an admin server over table using config (DefaultConfig if
// nil).
func New(config *Config, table *record.Table) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}

	s := &Server{
		config:    config,
		table:     table,
		router:    chi.NewRouter(),
		startTime: time.Now(),
		collector: metrics.NewCollector(table),
		events:    newEventHub(),
	}
	s.exporter = metrics.NewPrometheusExporter(s.collector)
	table.SetPoolListener(func(ev storage.PoolEvent) {
		s.events.broadcast(Event{Op: ev.Op, Page: int(ev.Page)})
	})
	table.SetOpListener(s.collector.Observe)

	schema, err := s.graphqlSchema()
	if err != nil {
		return nil, fmt.Errorf("admin: build graphql schema: %w", err)
	}
	s.gqlSchema = schema

	s.setupMiddleware()
	s.setupRoutes()

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	if s.config.EnableLogging {
		s.router.Use(middleware.Logger)
	}
	if s.config.EnableCORS {
		s.router.Use(s.corsMiddleware)
	}
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
			next.ServeHTTP(w, r)
		})
	})
	s.router.Use(middleware.Timeout(60 * time.Second))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(s.config.AllowedOrigins) > 0 {
			origin = s.config.AllowedOrigins[0]
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) setupRoutes() {
	s.router.Get("/stats", s.jsonHandler(s.handleStats))
	s.router.Get("/schema", s.jsonHandler(s.handleSchema))
	s.router.Post("/scan", s.jsonHandler(s.handleScan))
	s.router.Get("/metrics", s.handlePrometheusMetrics)
	s.router.Get("/graphql", s.handleGraphQL)
	s.router.Post("/graphql", s.handleGraphQL)
	s.router.Get("/events", s.events.handleWS)
}

func (s *Server) jsonHandler(fn func(*http.Request) (interface{}, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body, status, err := fn(r)
		if err != nil {
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

func (s *Server) handleStats(r *http.Request) (interface{}, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collector.Snapshot(), http.StatusOK, nil
}

func (s *Server) handleSchema(r *http.Request) (interface{}, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attrs := make([]map[string]interface{}, len(s.table.Schema.Attributes))
	for i, a := range s.table.Schema.Attributes {
		attrs[i] = map[string]interface{}{
			"name":       a.Name,
			"type":       a.Type.String(),
			"typeLength": a.TypeLength,
		}
	}
	return map[string]interface{}{"attributes": attrs}, http.StatusOK, nil
}

// scanRequest optionally filters the scan to rows where the attribute at
// Column compares equal to Value (a decimal integer). An empty request
// scans every live record.
type scanRequest struct {
	Column int   `json:"column"`
	Value  int32 `json:"value"`
	Filter bool  `json:"filter"`
	Limit  int   `json:"limit"`
}

func (s *Server) handleScan(r *http.Request) (interface{}, int, error) {
	var req scanRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("admin: invalid scan request: %w", err)
		}
	}

	var pred expr.Expr = expr.True
	if req.Filter {
		pred = expr.Binary{
			Op:    expr.Eq,
			Left:  expr.Column{Index: req.Column},
			Right: expr.Literal{Value: record.NewIntValue(req.Value)},
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, visited, err := s.scanRows(pred, req.Limit)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		m := map[string]interface{}{"page": row.page, "slot": row.slot}
		for j, a := range s.table.Schema.Attributes {
			m[a.Name] = row.values[j].String()
		}
		out[i] = m
	}

	return map[string]interface{}{"rows": out, "visited": visited}, http.StatusOK, nil
}

// scannedRow is one record a scan matched: its address plus its column
// values in schema order.
type scannedRow struct {
	page, slot int
	values     []record.Value
}

// scanRows runs pred over s.table via record.StartScan, collecting up to
// limit matches (0 means unlimited), and returns them along with the
// number of records the scan returned. Scan.Next only returns matching
// records, so that count does not include non-matches. The caller must
// already hold s.mu.
func (s *Server) scanRows(pred record.Predicate, limit int) ([]scannedRow, int, error) {
	scan, err := record.StartScan(s.table, pred)
	if err != nil {
		return nil, 0, err
	}
	defer scan.Close()

	out, err := record.NewRecord(s.table.Schema)
	if err != nil {
		return nil, 0, err
	}

	var rows []scannedRow
	visited := 0
	for {
		if limit > 0 && len(rows) >= limit {
			break
		}
		if err := scan.Next(out); err == record.ErrNoMoreTuples {
			break
		} else if err != nil {
			return nil, visited, err
		}
		visited++

		values := make([]record.Value, len(s.table.Schema.Attributes))
		for i := range s.table.Schema.Attributes {
			v, err := record.GetAttr(out, s.table.Schema, i)
			if err != nil {
				return nil, visited, err
			}
			values[i] = v
		}
		rows = append(rows, scannedRow{page: out.ID.Page, slot: out.ID.Slot, values: values})
	}
	s.collector.RecordScan(visited)
	return rows, visited, nil
}

func (s *Server) handlePrometheusMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.exporter.WriteMetrics(w); err != nil {
		http.Error(w, fmt.Sprintf("error writing metrics: %v", err), http.StatusInternalServerError)
	}
}

// Start runs the HTTP server until Shutdown is called or the server
// errors out. It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	errChan := make(chan error, 1)
	go func() {
		err := s.httpSrv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("admin: server error: %w", err)
			return
		}
		errChan <- nil
	}()
	return <-errChan
}

// Shutdown gracefully stops the HTTP server. It does not close the
// underlying table; the caller owns that lifecycle.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
