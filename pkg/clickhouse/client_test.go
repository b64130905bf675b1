package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	cfg := ClientConfig{Port: 9000, Database: "default", User: "default"}
	for _, opt := range []ClientOption{
		WithHost("ch.local"),
		WithDatabase("agripulse"),
		WithCredentials("svc", "p@ss"),
		WithTimeouts(2*time.Second, 0, 0),
		WithMaxExecutionTime(30 * time.Second),
		WithAsyncInsert(true, true),
	} {
		opt(&cfg)
	}

	u, err := url.Parse(buildDSN(cfg))
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	if u.Scheme != "clickhouse" || u.Host != "ch.local:9000" || u.Path != "/agripulse" {
		t.Errorf("dsn = %s", u)
	}
	if pw, _ := u.User.Password(); u.User.Username() != "svc" || pw != "p@ss" {
		t.Errorf("user = %v", u.User)
	}
	q := u.Query()
	if q.Get("dial_timeout") != "2s" || q.Get("max_execution_time") != "30" ||
		q.Get("async_insert") != "1" || q.Get("wait_for_async_insert") != "1" {
		t.Errorf("query = %v", q)
	}
	if q.Has("read_timeout") {
		t.Errorf("unset read_timeout present")
	}
}

func TestWithHTTPPort(t *testing.T) {
	cfg := ClientConfig{Port: 9000}
	WithHTTP(true)(&cfg)
	if cfg.Port != 8123 {
		t.Errorf("port = %d, want 8123", cfg.Port)
	}
	cfg = ClientConfig{Port: 9440}
	WithHTTP(true)(&cfg)
	if cfg.Port != 9440 {
		t.Errorf("explicit port changed to %d", cfg.Port)
	}
	if !strings.HasPrefix(buildDSN(cfg), "http://") {
		t.Errorf("dsn = %s", buildDSN(cfg))
	}
}

func TestSchema(t *testing.T) {
	stmts := Schema("agri")
	if len(stmts) != 5 {
		t.Fatalf("statements = %d", len(stmts))
	}
	for _, table := range []string{TablePrices, TableYield, TableCost, TableAcreage} {
		found := false
		for _, s := range stmts {
			if strings.Contains(s, "agri."+table+" (") {
				found = true
			}
		}
		if !found {
			t.Errorf("no DDL for %s", table)
		}
	}
}

type recordingExec struct {
	queries []string
	args    [][]any
	err     error
}

func (r *recordingExec) ExecContext(_ context.Context, q string, args ...any) (sql.Result, error) {
	r.queries = append(r.queries, q)
	r.args = append(r.args, args)
	return nil, r.err
}

func TestInsertRowsChunks(t *testing.T) {
	rows := [][]any{{"a", 1}, {"b", 2}, {"c", 3}}
	rec := &recordingExec{}
	if err := insertRows(context.Background(), rec, "t", []string{"k", "v"}, rows, 2); err != nil {
		t.Fatalf("insertRows: %v", err)
	}
	if len(rec.queries) != 2 {
		t.Fatalf("statements = %d, want 2", len(rec.queries))
	}
	want := "INSERT INTO t (k, v) VALUES (?, ?),(?, ?)"
	if rec.queries[0] != want {
		t.Errorf("query = %q, want %q", rec.queries[0], want)
	}
	if len(rec.args[1]) != 2 {
		t.Errorf("second chunk args = %v", rec.args[1])
	}
}

func TestInsertRowsErrors(t *testing.T) {
	if err := insertRows(context.Background(), &recordingExec{}, "t", []string{"k"}, [][]any{{1, 2}}, 0); err == nil {
		t.Error("expected arity error")
	}
	boom := errors.New("boom")
	err := insertRows(context.Background(), &recordingExec{err: boom}, "t", []string{"k"}, [][]any{{1}}, 0)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if err := insertRows(context.Background(), &recordingExec{err: boom}, "t", []string{"k"}, nil, 0); err != nil {
		t.Errorf("empty rows: %v", err)
	}
}
