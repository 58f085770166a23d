// Package testutil holds the fakes & fixtures shared by the tests.
package testutil

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	echoapi "github.com/collegepense/pense/apps/api/echo"
	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
	"github.com/collegepense/pense/core/user"
	emailsvc "github.com/collegepense/pense/services/email"
	inmemdb "github.com/collegepense/pense/storage/database/inmem"
)

const AnonKey = "test-anon-key"

func CreateUser(t *testing.T, repo user.Repository, name, email, pwd string, isActive bool, createdAt ...time.Time) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(t.Context(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// DevBackend is the echo backend on in-memory storage, listening on a local port.
type DevBackend struct {
	URL     string
	Conf    *core.Config
	Users   user.Repository
	Classes classroom.Repository
	UserSvc *user.Service
	Outbox  *emailsvc.Outbox
	Server  *httptest.Server
	Metrics *prometheus.Registry
}

// NewDevBackend starts a backend closed with the test.
func NewDevBackend(t *testing.T) *DevBackend {
	t.Helper()

	conf := user.NewTestConfig()
	conf.Backend.AnonKey = AnonKey

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	classRepo := inmemdb.NewClassroomRepository(db)
	mailSvc, outbox := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewTestService(usrRepo, mailSvc, conf)

	reg := prometheus.NewRegistry()
	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         core.NopLogger,
		UserSvc:        usrSvc,
		ClassRepo:      classRepo,
		Metrics:        echoapi.NewMetrics(reg),
		DisableReqLogs: true,
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.CloseClientConnections()
		ts.Close()
	})

	return &DevBackend{
		URL:     ts.URL,
		Conf:    conf,
		Users:   usrRepo,
		Classes: classRepo,
		UserSvc: usrSvc,
		Outbox:  outbox,
		Server:  ts,
		Metrics: reg,
	}
}
