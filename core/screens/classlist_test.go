package screens_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
	"github.com/collegepense/pense/core/screens"
	testutil "github.com/collegepense/pense/tests"
)

func seedClasses(gw *testutil.FakeGateway) (a, b, c classroom.Class) {
	a = gw.AddClass("1A Evening", professorID)
	b = gw.AddClass("2B Afternoon", professorID)
	c = gw.AddClass("3A Morning", professorID)
	gw.AddClass("Someone else's", "prof-2")
	return
}

func TestClassList_Focus(t *testing.T) {
	gw := testutil.NewFakeGateway()
	a, b, c := seedClasses(gw)
	list := screens.NewClassList(newService(gw), staticUsers(professorID))

	require.NoError(t, list.Focus(context.Background()))
	assert.Equal(t, []classroom.Class{a, b, c}, list.Classes())

	// refetched on every focus
	d := gw.AddClass("0Z First", professorID)
	require.NoError(t, list.Focus(context.Background()))
	assert.Equal(t, []classroom.Class{d, a, b, c}, list.Classes())
	assert.Len(t, gw.Calls("ListClasses"), 2)
	assert.Equal(t, []interface{}{professorID}, gw.Calls("ListClasses")[0].Args)
}

func TestClassList_Focus_signedOut(t *testing.T) {
	gw := testutil.NewFakeGateway()
	seedClasses(gw)
	list := screens.NewClassList(newService(gw), staticUsers(""))

	require.NoError(t, list.Focus(context.Background()))
	assert.Empty(t, list.Classes())
	assert.Empty(t, gw.Calls(""))
}

func TestClassList_Focus_failure(t *testing.T) {
	gw := testutil.NewFakeGateway()
	seedClasses(gw)
	list := screens.NewClassList(newService(gw), staticUsers(professorID))
	require.NoError(t, list.Focus(context.Background()))
	before := list.Classes()

	gw.Fail("ListClasses", core.NewDataError(core.DataNetwork, classroom.ClassTable, errors.New("connection refused")))
	err := list.Focus(context.Background())
	assert.True(t, core.IsDataError(err, core.DataNetwork))
	assert.Equal(t, before, list.Classes())

	notice := list.Notice()
	require.NotNil(t, notice)
	assert.Equal(t, screens.NoticeError, notice.Kind)
	list.DismissNotice()
	assert.Nil(t, list.Notice())
}

func TestClassList_delete(t *testing.T) {
	gw := testutil.NewFakeGateway()
	a, b, c := seedClasses(gw)
	list := screens.NewClassList(newService(gw), staticUsers(professorID))
	require.NoError(t, list.Focus(context.Background()))

	conf, err := list.RequestDelete(b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, conf.ID)
	assert.Contains(t, conf.Message, `"2B Afternoon"`)
	assert.Empty(t, gw.Calls("DeleteClass"), "nothing deleted before confirmation")

	require.NoError(t, list.ConfirmDelete(context.Background()))

	calls := gw.Calls("DeleteClass")
	require.Len(t, calls, 1)
	assert.Equal(t, []interface{}{b.ID}, calls[0].Args)
	assert.Equal(t, []classroom.Class{a, c}, list.Classes())
	assert.Equal(t, screens.NoticeSuccess, list.Notice().Kind)

	_, pending := list.PendingDelete()
	assert.False(t, pending)
	assert.Equal(t, screens.ErrNoPendingDelete, list.ConfirmDelete(context.Background()))
	assert.Len(t, gw.Calls("DeleteClass"), 1)
}

func TestClassList_delete_cancel(t *testing.T) {
	gw := testutil.NewFakeGateway()
	a, b, c := seedClasses(gw)
	list := screens.NewClassList(newService(gw), staticUsers(professorID))
	require.NoError(t, list.Focus(context.Background()))

	_, err := list.RequestDelete(a.ID)
	require.NoError(t, err)
	list.CancelDelete()
	assert.Equal(t, screens.ErrNoPendingDelete, list.ConfirmDelete(context.Background()))
	assert.Empty(t, gw.Calls("DeleteClass"))
	assert.Equal(t, []classroom.Class{a, b, c}, list.Classes())

	_, err = list.RequestDelete(9999)
	assert.True(t, core.IsDataError(err, core.DataNotFound))
}

func TestClassList_delete_failure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"network", core.NewDataError(core.DataNetwork, classroom.ClassTable, errors.New("timeout"))},
		{"permission", core.NewDataError(core.DataPermissionDenied, classroom.ClassTable, errors.New("42501"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := testutil.NewFakeGateway()
			_, b, _ := seedClasses(gw)
			list := screens.NewClassList(newService(gw), staticUsers(professorID))
			require.NoError(t, list.Focus(context.Background()))
			before := list.Classes()

			gw.Fail("DeleteClass", tt.err)
			_, err := list.RequestDelete(b.ID)
			require.NoError(t, err)
			err = list.ConfirmDelete(context.Background())
			require.Error(t, err)

			assert.Equal(t, before, list.Classes())
			notice := list.Notice()
			require.NotNil(t, notice)
			assert.Equal(t, screens.NoticeError, notice.Kind)
			assert.Contains(t, notice.Message, "delete the class")
			assert.False(t, list.Busy())
		})
	}
}

func TestClassList_delete_busy(t *testing.T) {
	gw := testutil.NewFakeGateway()
	a, b, _ := seedClasses(gw)
	list := screens.NewClassList(newService(gw), staticUsers(professorID))
	require.NoError(t, list.Focus(context.Background()))

	entered, release := gw.Block("DeleteClass")
	_, err := list.RequestDelete(a.ID)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- list.ConfirmDelete(context.Background()) }()
	<-entered
	assert.True(t, list.Busy())

	_, err = list.RequestDelete(b.ID)
	require.NoError(t, err)
	assert.Equal(t, screens.ErrBusy, list.ConfirmDelete(context.Background()))

	release()
	require.NoError(t, <-done)
	assert.Len(t, gw.Calls("DeleteClass"), 1)
	_, pending := list.PendingDelete()
	assert.True(t, pending, "the refused delete is still awaiting confirmation")
}

func TestClassList_unmountDuringFetch(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"fetch succeeds", nil},
		{"fetch fails", core.NewDataError(core.DataNetwork, classroom.ClassTable, errors.New("timeout"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := testutil.NewFakeGateway()
			seedClasses(gw)
			list := screens.NewClassList(newService(gw), staticUsers(professorID))

			gw.Fail("ListClasses", tt.err)
			entered, release := gw.Block("ListClasses")
			done := make(chan error, 1)
			go func() { done <- list.Focus(context.Background()) }()
			<-entered
			assert.True(t, list.Loading())

			list.Unmount()
			release()

			assert.NoError(t, <-done)
			assert.Empty(t, list.Classes())
			assert.Nil(t, list.Notice())
			assert.False(t, list.Loading())
		})
	}
}

func TestClassList_unmountDuringDelete(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"delete succeeds", nil},
		{"delete fails", core.NewDataError(core.DataNetwork, classroom.ClassTable, errors.New("timeout"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := testutil.NewFakeGateway()
			a, b, c := seedClasses(gw)
			list := screens.NewClassList(newService(gw), staticUsers(professorID))
			require.NoError(t, list.Focus(context.Background()))
			_, err := list.RequestDelete(b.ID)
			require.NoError(t, err)

			gw.Fail("DeleteClass", tt.err)
			entered, release := gw.Block("DeleteClass")
			done := make(chan error, 1)
			go func() { done <- list.ConfirmDelete(context.Background()) }()
			<-entered
			list.Unmount()
			release()

			assert.NoError(t, <-done)
			assert.Equal(t, []classroom.Class{a, b, c}, list.Classes(), "list untouched")
			assert.Nil(t, list.Notice())
			assert.False(t, list.Busy())
		})
	}
}
