package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
)

func newContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestApiKeyMiddleware(t *testing.T) {
	ok := func(ctx echo.Context) error { return ctx.NoContent(http.StatusNoContent) }

	tests := []struct {
		name    string
		key     string
		header  string
		query   string
		wantErr error
	}{
		{name: "header", key: "k", header: "k"},
		{name: "query", key: "k", query: "k"},
		{name: "missing", key: "k", wantErr: errMissingAPIKey},
		{name: "wrong", key: "k", header: "nope", wantErr: errInvalidAPIKey},
		{name: "disabled", key: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/"
			if tt.query != "" {
				target += "?apikey=" + tt.query
			}
			ctx, rec := newContext(http.MethodGet, target)
			if tt.header != "" {
				ctx.Request().Header.Set(apiKeyHeader, tt.header)
			}

			err := apiKeyMiddleware(tt.key)(ok)(ctx)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, http.StatusNoContent, rec.Code)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	frozen := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	now := frozen
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	rl := newRateLimiter(1, 2)
	assert.Same(t, rl.get("1.1.1.1"), rl.get("1.1.1.1"))
	rl.get("2.2.2.2")
	assert.Equal(t, 2, rl.size())

	// idle clients are swept on a later access
	now = now.Add(rl.cleanupInterval + time.Second)
	rl.get("2.2.2.2")
	assert.Equal(t, 2, rl.size())
	now = now.Add(2*rl.cleanupInterval + time.Second)
	rl.get("3.3.3.3")
	assert.Equal(t, 1, rl.size())
}

func TestRateLimiter_middleware(t *testing.T) {
	rl := newRateLimiter(0.5, 2)
	handler := rl.middleware()(func(ctx echo.Context) error { return ctx.NoContent(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		ctx, rec := newContext(http.MethodPost, "/auth/v1/token")
		require.NoError(t, handler(ctx))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}

	ctx, rec := newContext(http.MethodPost, "/auth/v1/token")
	assert.Equal(t, errTooManyRequests, handler(ctx))
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	unlimited := newRateLimiter(0, 0).middleware()(func(ctx echo.Context) error { return nil })
	for i := 0; i < 100; i++ {
		ctx, _ := newContext(http.MethodPost, "/auth/v1/token")
		require.NoError(t, unlimited(ctx))
	}
}

func TestBindTableQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		want     tableQuery
		wantCode string
	}{
		{
			name:  "defaults",
			query: "",
			want:  tableQuery{Select: classroom.ClassColumns, Filters: map[string]string{}},
		},
		{
			name:  "select, order & filter",
			query: "select=id,nome&professor_id=eq.u1&order=nome.asc&apikey=k",
			want: tableQuery{
				Select:   []string{"id", "nome"},
				Filters:  map[string]string{"professor_id": "u1"},
				Ordering: []core.DBOrdering{{Field: "nome", Ascending: true}},
			},
		},
		{
			name:  "descending",
			query: "select=*&order=id.desc",
			want: tableQuery{
				Select:   classroom.ClassColumns,
				Filters:  map[string]string{},
				Ordering: []core.DBOrdering{{Field: "id"}},
			},
		},
		{name: "unknown select", query: "select=id,secret", wantCode: "42703"},
		{name: "unknown order", query: "order=secret.asc", wantCode: "42703"},
		{name: "unknown filter", query: "secret=eq.1", wantCode: "42703"},
		{name: "not filterable", query: "nome=eq.3A", wantCode: "PGRST100"},
		{name: "unsupported operator", query: "id=gt.1", wantCode: "PGRST100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := newContext(http.MethodGet, "/rest/v1/turmas?"+tt.query)
			got, err := bindTableQuery(ctx, classroom.ClassColumns, classFilterable)
			if tt.wantCode != "" {
				var aErr *apiError
				require.ErrorAs(t, err, &aErr)
				assert.Equal(t, tt.wantCode, aErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
