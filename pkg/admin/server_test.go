package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"slotdb/pkg/record"
)

func newTestServer(t *testing.T) (*Server, *record.Table) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "people.tbl")

	schema := record.NewSchema([]record.Attribute{
		{Name: "id", Type: record.INT},
		{Name: "name", Type: record.STRING, TypeLength: 16},
	}, []int{0})
	if err := record.CreateTable(path, schema); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	tbl, err := record.OpenTable(path, 4)
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	t.Cleanup(func() { tbl.Close() })

	for i := int32(0); i < 5; i++ {
		rec, err := record.NewRecord(tbl.Schema)
		if err != nil {
			t.Fatalf("NewRecord: %v", err)
		}
		record.SetAttr(rec, tbl.Schema, 0, record.NewIntValue(i))
		record.SetAttr(rec, tbl.Schema, 1, record.NewStringValue("row"))
		if err := tbl.InsertRecord(rec); err != nil {
			t.Fatalf("InsertRecord: %v", err)
		}
	}

	cfg := DefaultConfig()
	srv, err := New(cfg, tbl)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, tbl
}

func TestHandleStats(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["tuple_count"]; !ok {
		t.Fatalf("expected tuple_count in stats response, got %v", body)
	}
}

func TestHandleSchema(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/schema")
	if err != nil {
		t.Fatalf("GET /schema: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Attributes []map[string]interface{} `json:"attributes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Attributes) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(body.Attributes))
	}
	if body.Attributes[0]["name"] != "id" {
		t.Fatalf("expected first attribute name id, got %v", body.Attributes[0]["name"])
	}
}

func TestHandleScanUnfiltered(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/scan", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST /scan: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Rows    []map[string]interface{} `json:"rows"`
		Visited int                      `json:"visited"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(body.Rows))
	}
}

func TestHandleScanFiltered(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	reqBody := `{"filter": true, "column": 0, "value": 3}`
	resp, err := http.Post(ts.URL+"/scan", "application/json", strings.NewReader(reqBody))
	if err != nil {
		t.Fatalf("POST /scan: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Rows []map[string]interface{} `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Rows) != 1 {
		t.Fatalf("expected 1 row matching id=3, got %d", len(body.Rows))
	}
	if body.Rows[0]["id"] != "3" {
		t.Fatalf("expected matched row id 3, got %v", body.Rows[0]["id"])
	}
}

func TestHandleGraphQLQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	query := `{"query": "{ stats { tupleCount } schema { name type } }"}`
	resp, err := http.Post(ts.URL+"/graphql", "application/json", strings.NewReader(query))
	if err != nil {
		t.Fatalf("POST /graphql: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Data struct {
			Stats struct {
				TupleCount int `json:"tupleCount"`
			} `json:"stats"`
			Schema []map[string]interface{} `json:"schema"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Errors) != 0 {
		t.Fatalf("unexpected graphql errors: %v", body.Errors)
	}
	if body.Data.Stats.TupleCount != 5 {
		t.Fatalf("tupleCount = %d, want 5", body.Data.Stats.TupleCount)
	}
	if len(body.Data.Schema) != 2 {
		t.Fatalf("expected 2 schema attributes, got %d", len(body.Data.Schema))
	}
}

func TestHandleGraphQLRecordsWhere(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	query := `{"query": "{ records(where: \"0 = 2\") { page slot columns } }"}`
	resp, err := http.Post(ts.URL+"/graphql", "application/json", strings.NewReader(query))
	if err != nil {
		t.Fatalf("POST /graphql: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Data struct {
			Records []map[string]interface{} `json:"records"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Errors) != 0 {
		t.Fatalf("unexpected graphql errors: %v", body.Errors)
	}
	if len(body.Data.Records) != 1 {
		t.Fatalf("expected 1 record matching id=2, got %d", len(body.Data.Records))
	}
}

func TestStartReturnsAfterGracefulShutdown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.tbl")
	schema := record.NewSchema([]record.Attribute{{Name: "id", Type: record.INT}}, []int{0})
	if err := record.CreateTable(path, schema); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	tbl, err := record.OpenTable(path, 4)
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	defer tbl.Close()

	cfg := DefaultConfig()
	cfg.Port = 0 // let the OS pick a free port
	srv, err := New(cfg, tbl)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	// Give ListenAndServe a moment to bind before asking it to stop.
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned error after graceful shutdown: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Shutdown completed")
	}
}

func TestEventsStreamReceivesPoolActivity(t *testing.T) {
	srv, tbl := newTestServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ws.Close()

	// Give the server a moment to register the connection before driving
	// activity that the listener will broadcast.
	time.Sleep(20 * time.Millisecond)

	srv.mu.Lock()
	rec, err := record.NewRecord(tbl.Schema)
	if err != nil {
		srv.mu.Unlock()
		t.Fatalf("NewRecord: %v", err)
	}
	record.SetAttr(rec, tbl.Schema, 0, record.NewIntValue(99))
	record.SetAttr(rec, tbl.Schema, 1, record.NewStringValue("new"))
	if err := tbl.InsertRecord(rec); err != nil {
		srv.mu.Unlock()
		t.Fatalf("InsertRecord: %v", err)
	}
	srv.mu.Unlock()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := ws.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if ev.Op == "" {
		t.Fatalf("expected a non-empty pool event op")
	}
}
