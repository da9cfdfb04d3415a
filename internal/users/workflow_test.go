package users

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/rbr-console/internal/directory"
	"github.com/felixgeelhaar/rbr-console/internal/directory/directorytest"
	"github.com/felixgeelhaar/rbr-console/internal/errors"
	"github.com/felixgeelhaar/rbr-console/internal/role"
	"github.com/felixgeelhaar/rbr-console/internal/session"
)

type fakeDir struct {
	mu         sync.Mutex
	users      []directory.APIUser
	calls      map[string]int
	fail       map[string]error
	lastUpdate directory.UpdateRequest
	lastCreate directory.CreateRequest

	// When set, SetActive signals entered and waits on release.
	entered chan struct{}
	release chan struct{}
}

func newFakeDir(users ...directory.APIUser) *fakeDir {
	return &fakeDir{users: users, calls: map[string]int{}, fail: map[string]error{}}
}

func (f *fakeDir) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.fail[op]
}

func (f *fakeDir) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeDir) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

func (f *fakeDir) List(context.Context) ([]directory.APIUser, error) {
	if err := f.record("list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]directory.APIUser(nil), f.users...), nil
}

func (f *fakeDir) Create(_ context.Context, req directory.CreateRequest) (*directory.APIUser, error) {
	if err := f.record("create"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCreate = req
	u := directory.APIUser{ID: int64(len(f.users) + 100), Name: req.Name, Email: req.Email, RoleName: &req.Role, IsActive: req.IsActive}
	f.users = append([]directory.APIUser{u}, f.users...)
	return &u, nil
}

func (f *fakeDir) Update(_ context.Context, id int64, req directory.UpdateRequest) (*directory.APIUser, error) {
	if err := f.record("update"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUpdate = req
	return &directory.APIUser{ID: id}, nil
}

func (f *fakeDir) SetActive(_ context.Context, id int64, active bool) error {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if err := f.record("set_active"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i].IsActive = active
		}
	}
	return nil
}

func (f *fakeDir) Delete(_ context.Context, id int64) error {
	if err := f.record("delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = slicesDelete(f.users, id)
	return nil
}

func slicesDelete(users []directory.APIUser, id int64) []directory.APIUser {
	out := users[:0]
	for _, u := range users {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out
}

func apiUser(id int64, roleName string, active, superuser bool) directory.APIUser {
	u := directory.APIUser{
		ID:          id,
		Name:        fmt.Sprintf("User %d", id),
		Email:       fmt.Sprintf("user%d@rbr.local", id),
		IsActive:    active,
		IsSuperuser: superuser,
	}
	if roleName != "" {
		u.RoleName = &roleName
	}
	return u
}

func loaded(t *testing.T, dir *fakeDir) *Workflow {
	t.Helper()
	w := New(dir, nil)
	require.NoError(t, w.Load(context.Background()))
	return w
}

func TestNormalize(t *testing.T) {
	r := Normalize(apiUser(1, "", true, true))
	assert.Equal(t, NoRole, r.Role)
	assert.True(t, r.Active)
	assert.True(t, r.Protected)
	assert.Equal(t, "ACTIVE", r.Status())

	r = Normalize(apiUser(2, "Management", false, false))
	assert.Equal(t, "Management", r.Role)
	assert.False(t, r.Protected)
	assert.Equal(t, "INACTIVE", r.Status())
}

func TestLoad_FailureKeepsSnapshotWithoutNotification(t *testing.T) {
	dir := newFakeDir(apiUser(1, "SCM Admin", true, false))
	w := loaded(t, dir)

	dir.failOn("list", stderrors.New("boom"))
	err := w.Load(context.Background())
	require.Error(t, err)

	s := w.State()
	assert.Len(t, s.Records, 1)
	assert.False(t, s.Loading)
	assert.Error(t, s.LoadError)
	assert.Nil(t, s.Notification)

	dir.failOn("list", nil)
	require.NoError(t, w.Load(context.Background()))
	assert.NoError(t, w.State().LoadError)
}

func TestPagination(t *testing.T) {
	var us []directory.APIUser
	for i := int64(1); i <= 13; i++ {
		us = append(us, apiUser(i, "Management", true, false))
	}
	w := loaded(t, newFakeDir(us...))

	assert.Equal(t, DefaultPageSize, w.State().PageSize)
	assert.Equal(t, 3, w.PageCount())
	assert.Len(t, w.Visible(), 6)
	assert.Equal(t, int64(1), w.Visible()[0].ID)

	w.SetPage(2)
	require.Len(t, w.Visible(), 1)
	assert.Equal(t, int64(13), w.Visible()[0].ID)

	w.SetPage(9)
	assert.Equal(t, 2, w.State().Page)

	require.NoError(t, w.SetPageSize(12))
	assert.Equal(t, 0, w.State().Page)
	assert.Equal(t, 2, w.PageCount())
	assert.Len(t, w.Visible(), 12)

	assert.Error(t, w.SetPageSize(7))
	assert.Equal(t, 12, w.State().PageSize)
}

func TestPagination_Empty(t *testing.T) {
	w := loaded(t, newFakeDir())
	assert.Equal(t, 1, w.PageCount())
	assert.Empty(t, w.Visible())
}

func TestCreate(t *testing.T) {
	dir := newFakeDir(apiUser(1, "SCM Admin", true, true))
	w := loaded(t, dir)
	w.OpenCreate()

	require.NoError(t, w.Create(context.Background(), validCreate()))

	s := w.State()
	assert.Equal(t, DialogNone, s.Dialog)
	require.NotNil(t, s.Notification)
	assert.Equal(t, MsgCreated, s.Notification.Message)
	assert.Equal(t, LevelSuccess, s.Notification.Level)
	assert.Equal(t, 2, dir.count("list"), "reloads after create")
	assert.Len(t, s.Records, 2)
	assert.Equal(t, "Abc$1234", dir.lastCreate.Password)
	assert.True(t, dir.lastCreate.IsActive)
}

func TestCreate_InvalidMakesNoCall(t *testing.T) {
	dir := newFakeDir()
	w := loaded(t, dir)
	w.OpenCreate()

	weak := validCreate()
	weak.Password, weak.ConfirmPassword = "abc12345", "abc12345"
	err := w.Create(context.Background(), weak)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeValidationFailed))

	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Must contain 1 Uppercase", fe["password"])

	mismatch := validCreate()
	mismatch.ConfirmPassword = "different"
	err = w.Create(context.Background(), mismatch)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Passwords must match", fe["confirm_password"])

	assert.Zero(t, dir.count("create"))
	assert.Equal(t, DialogCreate, w.State().Dialog)
}

func TestCreate_FailureKeepsDialogOpen(t *testing.T) {
	dir := newFakeDir()
	w := loaded(t, dir)
	w.OpenCreate()
	dir.failOn("create", stderrors.New("email taken"))

	require.Error(t, w.Create(context.Background(), validCreate()))

	s := w.State()
	assert.Equal(t, DialogCreate, s.Dialog)
	assert.Equal(t, MsgCreateFailed, s.Notification.Message)
	assert.Equal(t, LevelError, s.Notification.Level)
	assert.Equal(t, 1, dir.count("list"))
}

func TestEdit(t *testing.T) {
	dir := newFakeDir(apiUser(2, "Management", true, false))
	w := loaded(t, dir)
	require.NoError(t, w.OpenEdit(2))
	assert.Equal(t, DialogEdit, w.State().Dialog)
	assert.Equal(t, int64(2), w.State().Selected.ID)

	form := EditFormFor(w.State().Records[0])
	form.Name = "Renamed"
	require.NoError(t, w.Edit(context.Background(), 2, form))

	assert.Nil(t, dir.lastUpdate.Password, "blank password is omitted")
	require.NotNil(t, dir.lastUpdate.Name)
	assert.Equal(t, "Renamed", *dir.lastUpdate.Name)
	s := w.State()
	assert.Equal(t, DialogNone, s.Dialog)
	assert.Equal(t, MsgUpdated, s.Notification.Message)
	assert.Equal(t, 2, dir.count("list"))

	form.Password = "NewPass#1"
	require.NoError(t, w.Edit(context.Background(), 2, form))
	require.NotNil(t, dir.lastUpdate.Password)
	assert.Equal(t, "NewPass#1", *dir.lastUpdate.Password)
}

func TestEdit_FailureAndValidation(t *testing.T) {
	dir := newFakeDir(apiUser(2, "Management", true, false))
	w := loaded(t, dir)
	require.NoError(t, w.OpenEdit(2))

	form := EditFormFor(w.State().Records[0])
	form.Password = "short"
	require.Error(t, w.Edit(context.Background(), 2, form))
	assert.Zero(t, dir.count("update"))

	form.Password = ""
	dir.failOn("update", stderrors.New("500"))
	require.Error(t, w.Edit(context.Background(), 2, form))
	s := w.State()
	assert.Equal(t, DialogEdit, s.Dialog)
	assert.Equal(t, MsgUpdateFailed, s.Notification.Message)
	assert.Empty(t, s.InFlight)
}

func TestProtectedRecordsAreImmutable(t *testing.T) {
	dir := newFakeDir(apiUser(1, "SCM Admin", true, true))
	w := loaded(t, dir)
	ctx := context.Background()

	err := w.ToggleStatus(ctx, 1)
	assert.True(t, errors.Is(err, errors.ErrCodeProtectedRecord))
	s := w.State()
	assert.Equal(t, LevelWarning, s.Notification.Level)
	assert.Equal(t, "Root Administrators cannot be deactivated.", s.Notification.Message)
	assert.True(t, s.Records[0].Active)

	assert.Error(t, w.OpenEdit(1))
	assert.Error(t, w.Edit(ctx, 1, EditFormFor(s.Records[0])))
	assert.Error(t, w.RequestDelete(1))
	assert.Equal(t, DialogNone, w.State().Dialog)

	assert.Zero(t, dir.count("set_active"))
	assert.Zero(t, dir.count("update"))
	assert.Zero(t, dir.count("delete"))
}

func TestToggleStatus_Optimistic(t *testing.T) {
	dir := newFakeDir(apiUser(3, "Sales Engineer", true, false))
	dir.entered = make(chan struct{})
	dir.release = make(chan struct{})
	w := loaded(t, dir)

	done := make(chan error, 1)
	go func() { done <- w.ToggleStatus(context.Background(), 3) }()

	<-dir.entered
	s := w.State()
	assert.False(t, s.Records[0].Active, "flipped before the call completes")
	assert.True(t, s.InFlight[3])

	err := w.ToggleStatus(context.Background(), 3)
	assert.True(t, errors.Is(err, errors.ErrCodeMutationInFlight))
	assert.Equal(t, MsgBusy, w.State().Notification.Message)

	close(dir.release)
	require.NoError(t, <-done)

	s = w.State()
	assert.False(t, s.Records[0].Active)
	assert.Equal(t, MsgDeactivated, s.Notification.Message)
	assert.Equal(t, LevelInfo, s.Notification.Level)
	assert.Equal(t, 1, dir.count("set_active"))
	assert.Equal(t, 1, dir.count("list"), "no reload on success")
	assert.Empty(t, s.InFlight)
}

func TestBeginToggle_FlipsBeforeCommit(t *testing.T) {
	dir := newFakeDir(apiUser(3, "Sales Engineer", true, false))
	w := loaded(t, dir)

	wasActive, err := w.BeginToggle(3)
	require.NoError(t, err)
	assert.True(t, wasActive)

	s := w.State()
	assert.False(t, s.Records[0].Active)
	assert.True(t, s.InFlight[3])
	assert.Zero(t, dir.count("set_active"))

	_, err = w.BeginToggle(3)
	assert.True(t, errors.Is(err, errors.ErrCodeMutationInFlight))

	require.NoError(t, w.CommitToggle(context.Background(), 3, wasActive))
	s = w.State()
	assert.False(t, s.Records[0].Active)
	assert.Empty(t, s.InFlight)
	assert.Equal(t, 1, dir.count("set_active"))
	assert.Equal(t, MsgDeactivated, s.Notification.Message)
}

func TestToggleStatus_Activate(t *testing.T) {
	dir := newFakeDir(apiUser(3, "Sales Engineer", false, false))
	w := loaded(t, dir)

	require.NoError(t, w.ToggleStatus(context.Background(), 3))
	assert.Equal(t, MsgActivated, w.State().Notification.Message)
	assert.True(t, w.State().Records[0].Active)
}

func TestToggleStatus_FailureResyncs(t *testing.T) {
	dir := newFakeDir(apiUser(3, "Sales Engineer", true, false))
	w := loaded(t, dir)
	dir.failOn("set_active", stderrors.New("503"))

	require.Error(t, w.ToggleStatus(context.Background(), 3))

	s := w.State()
	assert.True(t, s.Records[0].Active, "matches the backend again")
	assert.Equal(t, MsgStatusFailed, s.Notification.Message)
	assert.Equal(t, LevelError, s.Notification.Level)
	assert.Equal(t, 2, dir.count("list"))
}

func TestDelete(t *testing.T) {
	dir := newFakeDir(apiUser(4, "Management", true, false), apiUser(5, "Management", true, false))
	w := loaded(t, dir)
	ctx := context.Background()

	err := w.ConfirmDelete(ctx)
	assert.True(t, errors.Is(err, errors.ErrCodeNothingSelected))
	assert.Zero(t, dir.count("delete"))

	require.NoError(t, w.OpenEdit(4))
	err = w.ConfirmDelete(ctx)
	assert.True(t, errors.Is(err, errors.ErrCodeNothingSelected), "edit dialog is not a delete confirmation")
	assert.Zero(t, dir.count("delete"))
	assert.Equal(t, DialogEdit, w.State().Dialog)
	w.CloseDialog()

	require.NoError(t, w.RequestDelete(4))
	assert.Equal(t, DialogDelete, w.State().Dialog)

	dir.failOn("delete", stderrors.New("500"))
	require.Error(t, w.ConfirmDelete(ctx))
	assert.Equal(t, MsgDeleteFailed, w.State().Notification.Message)
	assert.Equal(t, DialogDelete, w.State().Dialog)

	dir.failOn("delete", nil)
	require.NoError(t, w.ConfirmDelete(ctx))
	s := w.State()
	assert.Equal(t, DialogNone, s.Dialog)
	assert.Nil(t, s.Selected)
	assert.Equal(t, MsgDeleted, s.Notification.Message)
	assert.Equal(t, LevelWarning, s.Notification.Level)
	require.Len(t, s.Records, 1)
	assert.Equal(t, int64(5), s.Records[0].ID)
}

func TestCloseDialogAndNotifications(t *testing.T) {
	dir := newFakeDir(apiUser(4, "Management", true, false))
	w := loaded(t, dir)

	require.NoError(t, w.RequestDelete(4))
	w.CloseDialog()
	assert.Equal(t, DialogNone, w.State().Dialog)
	assert.Nil(t, w.State().Selected)

	require.NoError(t, w.ToggleStatus(context.Background(), 4))
	first := w.State().Notification.Seq
	require.NoError(t, w.ToggleStatus(context.Background(), 4))
	second := w.State().Notification.Seq
	assert.Greater(t, second, first)

	w.Expire(first)
	assert.NotNil(t, w.State().Notification, "stale timer leaves the newer notification")
	w.Expire(second)
	assert.Nil(t, w.State().Notification)

	require.NoError(t, w.ToggleStatus(context.Background(), 4))
	w.DismissNotification()
	assert.Nil(t, w.State().Notification)
}

func TestUnknownRecord(t *testing.T) {
	w := loaded(t, newFakeDir())
	err := w.ToggleStatus(context.Background(), 99)
	assert.True(t, errors.Is(err, errors.ErrCodeRecordNotFound))
}

func TestWorkflow_AgainstBackend(t *testing.T) {
	srv, err := directorytest.NewServer()
	require.NoError(t, err)
	defer srv.Close()

	sess := session.New()
	client := directory.New(srv.BaseURL(), sess)
	resp, err := client.Login(context.Background(), directory.Credentials{Email: "root@rbr.local", Password: "Passw0rd!"})
	require.NoError(t, err)
	sess.Set(resp.Tokens.Access, resp.Tokens.Refresh, role.Parse(resp.User.Role()))

	w := New(client, nil)
	ctx := context.Background()
	require.NoError(t, w.Load(ctx))

	id, ok := srv.IDByEmail("engineer@rbr.local")
	require.True(t, ok)

	srv.FailNext(http.MethodPatch, http.StatusInternalServerError)
	require.Error(t, w.ToggleStatus(ctx, id))
	rec, _ := w.Find(id)
	server, _ := srv.User(id)
	assert.Equal(t, server["is_active"], rec.Active)

	release := srv.Hold(http.MethodPatch)
	done := make(chan error, 1)
	go func() { done <- w.ToggleStatus(ctx, id) }()
	require.Eventually(t, func() bool { return w.State().InFlight[id] }, time.Second, 5*time.Millisecond)
	assert.Error(t, w.ToggleStatus(ctx, id))
	release()
	require.NoError(t, <-done)

	server, _ = srv.User(id)
	assert.Equal(t, false, server["is_active"])
	assert.Equal(t, 2, srv.Count(http.MethodPatch))
}
