package backendsvc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
	testutil "github.com/collegepense/pense/tests"
)

func signedInClient(t *testing.T, be *testutil.DevBackend, email string) (*Client, string) {
	t.Helper()
	usr := createProfessor(t, be, email)
	c := newTestClient(t, be.URL, nil)
	_, err := c.SignIn(context.Background(), email, testPassword)
	require.NoError(t, err)
	return c, usr.ID
}

func TestClient_classes(t *testing.T) {
	be := testutil.NewDevBackend(t)
	c, profID := signedInClient(t, be, "ana@example.com")
	ctx := context.Background()

	morning, err := c.CreateClass(ctx, "3A Morning", profID)
	require.NoError(t, err)
	assert.NotZero(t, morning.ID)
	assert.Equal(t, classroom.Class{ID: morning.ID, Name: "3A Morning", OwnerID: profID}, morning)

	evening, err := c.CreateClass(ctx, "1B Evening", profID)
	require.NoError(t, err)

	classes, err := c.ListClasses(ctx, profID)
	require.NoError(t, err)
	assert.Equal(t, []classroom.Class{evening, morning}, classes, "sorted by name")

	renamed, err := c.UpdateClass(ctx, morning.ID, "3A Afternoon")
	require.NoError(t, err)
	assert.Equal(t, "3A Afternoon", renamed.Name)
	assert.Equal(t, profID, renamed.OwnerID)

	require.NoError(t, c.DeleteClass(ctx, evening.ID))
	classes, err = c.ListClasses(ctx, profID)
	require.NoError(t, err)
	assert.Equal(t, []classroom.Class{renamed}, classes)

	err = c.DeleteClass(ctx, evening.ID)
	assert.True(t, core.IsDataError(err, core.DataNotFound), "%v", err)
	_, err = c.UpdateClass(ctx, 9999, "nope")
	assert.True(t, core.IsDataError(err, core.DataNotFound), "%v", err)
}

func TestClient_activities(t *testing.T) {
	be := testutil.NewDevBackend(t)
	c, profID := signedInClient(t, be, "ana@example.com")
	ctx := context.Background()

	cls, err := c.CreateClass(ctx, "3A Morning", profID)
	require.NoError(t, err)

	first, err := c.CreateActivity(ctx, cls.ID, "Read chapter 1")
	require.NoError(t, err)
	assert.Equal(t, cls.ID, first.ClassID)
	assert.False(t, first.CreatedAt.IsZero())
	time.Sleep(2 * time.Millisecond)
	second, err := c.CreateActivity(ctx, cls.ID, "Grade homework")
	require.NoError(t, err)

	acts, err := c.ListActivities(ctx, cls.ID)
	require.NoError(t, err)
	require.Len(t, acts, 2)
	assert.Equal(t, second.ID, acts[0].ID, "newest first")
	assert.Equal(t, first.ID, acts[1].ID)

	updated, err := c.UpdateActivity(ctx, first.ID, "Read chapters 1 and 2")
	require.NoError(t, err)
	assert.Equal(t, "Read chapters 1 and 2", updated.Description)

	require.NoError(t, c.DeleteActivity(ctx, second.ID))
	err = c.DeleteActivity(ctx, second.ID)
	assert.True(t, core.IsDataError(err, core.DataNotFound), "%v", err)

	// deleting the class takes its activities along
	require.NoError(t, c.DeleteClass(ctx, cls.ID))
	acts, err = c.ListActivities(ctx, cls.ID)
	require.NoError(t, err)
	assert.Empty(t, acts)
}

func TestClient_rowLevelSecurity(t *testing.T) {
	be := testutil.NewDevBackend(t)
	ana, anaID := signedInClient(t, be, "ana@example.com")
	bia, biaID := signedInClient(t, be, "bia@example.com")
	ctx := context.Background()

	cls, err := ana.CreateClass(ctx, "3A Morning", anaID)
	require.NoError(t, err)
	act, err := ana.CreateActivity(ctx, cls.ID, "Grade homework")
	require.NoError(t, err)

	classes, err := bia.ListClasses(ctx, anaID)
	require.NoError(t, err)
	assert.Empty(t, classes, "other professors' classes are invisible")

	acts, err := bia.ListActivities(ctx, cls.ID)
	require.NoError(t, err)
	assert.Empty(t, acts)

	_, err = bia.CreateClass(ctx, "Stolen", anaID)
	assert.True(t, core.IsDataError(err, core.DataPermissionDenied), "%v", err)

	_, err = bia.CreateActivity(ctx, cls.ID, "Sneaky")
	assert.True(t, core.IsDataError(err, core.DataPermissionDenied), "%v", err)

	_, err = bia.UpdateClass(ctx, cls.ID, "Renamed")
	assert.True(t, core.IsDataError(err, core.DataNotFound), "%v", err)
	assert.True(t, core.IsDataError(bia.DeleteClass(ctx, cls.ID), core.DataNotFound))
	assert.True(t, core.IsDataError(bia.DeleteActivity(ctx, act.ID), core.DataNotFound))

	own, err := bia.CreateClass(ctx, "2B", biaID)
	require.NoError(t, err)
	classes, err = ana.ListClasses(ctx, anaID)
	require.NoError(t, err)
	assert.Equal(t, []classroom.Class{cls}, classes)
	assert.NotEqual(t, own.ID, cls.ID)
}

func TestClient_tables_signedOut(t *testing.T) {
	be := testutil.NewDevBackend(t)
	c := newTestClient(t, be.URL, nil)

	_, err := c.ListClasses(context.Background(), "anyone")
	assert.True(t, core.IsDataError(err, core.DataPermissionDenied), "%v", err)
}

func TestClient_tables_validation(t *testing.T) {
	be := testutil.NewDevBackend(t)
	c, profID := signedInClient(t, be, "ana@example.com")

	_, err := c.CreateClass(context.Background(), "   ", profID)
	assert.True(t, core.IsDataError(err, core.DataValidation), "%v", err)
}

func TestClient_schemaMismatch(t *testing.T) {
	tests := []struct {
		name string
		body string
		call func(c *Client) error
	}{
		{
			name: "class without owner",
			body: `[{"id": 1, "nome": "3A"}]`,
			call: func(c *Client) error { _, err := c.ListClasses(context.Background(), "u1"); return err },
		},
		{
			name: "activity without created_at",
			body: `[{"id": 1, "descricao": "x", "turma_id": 2}]`,
			call: func(c *Client) error { _, err := c.ListActivities(context.Background(), 2); return err },
		},
		{
			name: "not a list",
			body: `{"id": 1}`,
			call: func(c *Client) error { _, err := c.ListClasses(context.Background(), "u1"); return err },
		},
		{
			name: "created class without name",
			body: `[{"id": 1, "professor_id": "u1"}]`,
			call: func(c *Client) error { _, err := c.CreateClass(context.Background(), "3A", "u1"); return err },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := tt.call(newTestClient(t, srv.URL, nil))
			require.True(t, core.IsDataError(err, core.DataValidation), "%v", err)
			assert.Equal(t, errSchemaMismatch, errors.Cause(errors.Unwrap(err)))
		})
	}
}

func TestDataError(t *testing.T) {
	tests := []struct {
		err  error
		want core.DataErrorKind
	}{
		{&statusError{StatusCode: http.StatusUnauthorized}, core.DataPermissionDenied},
		{&statusError{StatusCode: http.StatusForbidden}, core.DataPermissionDenied},
		{&statusError{StatusCode: http.StatusNotFound}, core.DataNotFound},
		{&statusError{StatusCode: http.StatusNotAcceptable}, core.DataNotFound},
		{&statusError{StatusCode: http.StatusBadRequest}, core.DataValidation},
		{&statusError{StatusCode: http.StatusConflict}, core.DataValidation},
		{&statusError{StatusCode: http.StatusUnprocessableEntity}, core.DataValidation},
		{&statusError{StatusCode: http.StatusInternalServerError}, core.DataNetwork},
		{&statusError{StatusCode: http.StatusTooManyRequests}, core.DataNetwork},
		{errors.New("connection reset"), core.DataNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.True(t, core.IsDataError(dataError("turmas", tt.err), tt.want))
		})
	}
}
