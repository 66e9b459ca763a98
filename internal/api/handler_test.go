package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/queryforge/queryforge/internal/auth"
	"github.com/queryforge/queryforge/internal/config"
	"github.com/queryforge/queryforge/internal/history"
	"github.com/queryforge/queryforge/internal/schema"
	"github.com/queryforge/queryforge/internal/warehouse"
)

func TestHealthEndpoint(t *testing.T) {
	cfg, err := config.Load("queryforge-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	cfg, err := config.Load("queryforge-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{
		Readiness: func(_ context.Context) error {
			return errors.New("dependency down")
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	cfg, err := config.Load("queryforge-api", mapLookup(map[string]string{
		"QUERYFORGE_AUTH_REQUIRED": "true",
	}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	validator, err := auth.NewStaticAPIKeyValidator("k1:analyst:schema_reader")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Introspector:   &fakeIntrospector{dbSchema: testSchema()},
	})

	unauthResp := httptest.NewRecorder()
	h.ServeHTTP(unauthResp, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	if unauthResp.Code != http.StatusUnauthorized {
		t.Fatalf("unauth status = %d", unauthResp.Code)
	}

	authReq := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
	authReq.Header.Set("X-API-Key", "k1")
	authResp := httptest.NewRecorder()
	h.ServeHTTP(authResp, authReq)
	if authResp.Code != http.StatusOK {
		t.Fatalf("auth status = %d, body=%s", authResp.Code, authResp.Body.String())
	}
}

func TestSchemaEndpointRequiresRole(t *testing.T) {
	cfg, err := config.Load("queryforge-api", mapLookup(map[string]string{
		"QUERYFORGE_AUTH_REQUIRED": "true",
	}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	validator, err := auth.NewStaticAPIKeyValidator("k1:asker:ask")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Introspector:   &fakeIntrospector{dbSchema: testSchema()},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
	req.Header.Set("X-API-Key", "k1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestCombineReadinessChecksStopsOnFirstFailure(t *testing.T) {
	order := make([]int, 0, 3)
	combined := CombineReadinessChecks(
		func(_ context.Context) error {
			order = append(order, 1)
			return nil
		},
		func(_ context.Context) error {
			order = append(order, 2)
			return errors.New("boom")
		},
		func(_ context.Context) error {
			order = append(order, 3)
			return nil
		},
	)

	err := combined(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("execution order = %#v", order)
	}
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func testSchema() schema.DbSchema {
	return schema.DbSchema{
		Dialect: "duckdb",
		Tables: []schema.Table{
			{
				Name: "region",
				Columns: []schema.Column{
					{Name: "id", Type: "BIGINT"},
					{Name: "name", Type: "VARCHAR", Nullable: true},
				},
				PrimaryKey: []string{"id"},
			},
			{
				Name: "sales",
				Columns: []schema.Column{
					{Name: "id", Type: "BIGINT"},
					{Name: "region_id", Type: "BIGINT"},
					{Name: "amount", Type: "DOUBLE"},
				},
				PrimaryKey:  []string{"id"},
				ForeignKeys: []schema.ForeignKey{{Column: "region_id", RefTable: "region", RefColumn: "id"}},
			},
		},
	}
}

type fakeIntrospector struct {
	dbSchema schema.DbSchema
	err      error
}

func (f *fakeIntrospector) Introspect(_ context.Context) (schema.DbSchema, error) {
	if f.err != nil {
		return schema.DbSchema{}, f.err
	}
	return f.dbSchema, nil
}

type fakeAnswerer struct {
	sql          string
	err          error
	gotQuestion  string
	gotAttempts  int
	gotTableSeen bool
}

func (f *fakeAnswerer) AnswerQuestion(_ context.Context, question string, dbSchema schema.DbSchema, maxCorrectionAttempts int) (string, error) {
	f.gotQuestion = question
	f.gotAttempts = maxCorrectionAttempts
	f.gotTableSeen = dbSchema.HasTable("sales")
	if f.err != nil {
		return "", f.err
	}
	return f.sql, nil
}

type fakeRuns struct {
	runs []history.Run
	err  error
}

func (f *fakeRuns) ListRuns(_ context.Context, limit int) ([]history.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeRuns) GetRun(_ context.Context, runID int64) (history.Run, error) {
	if f.err != nil {
		return history.Run{}, f.err
	}
	for _, run := range f.runs {
		if run.RunID == runID {
			return run, nil
		}
	}
	return history.Run{}, history.ErrNotFound
}

type fakeWarehouse struct {
	dryRun    warehouse.DryRunResult
	dryRunErr error
	result    warehouse.ResultSet
	execErr   error
	gotSQL    string
	gotLimit  int
}

func (f *fakeWarehouse) DryRun(_ context.Context, sql string) (warehouse.DryRunResult, error) {
	f.gotSQL = sql
	return f.dryRun, f.dryRunErr
}

func (f *fakeWarehouse) Execute(_ context.Context, sql string, rowLimit int) (warehouse.ResultSet, error) {
	f.gotSQL = sql
	f.gotLimit = rowLimit
	if f.execErr != nil {
		return warehouse.ResultSet{}, f.execErr
	}
	return f.result, nil
}
