package users

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/felixgeelhaar/rbr-console/internal/directory"
	"github.com/felixgeelhaar/rbr-console/internal/errors"
	"github.com/felixgeelhaar/rbr-console/internal/log"
)

// Page sizes offered by the table.
var PageSizes = []int{6, 12, 24}

// DefaultPageSize is the initial page size.
const DefaultPageSize = 6

// Notification messages.
const (
	MsgCreated        = "User created successfully"
	MsgCreateFailed   = "Failed to create user"
	MsgUpdated        = "User updated successfully"
	MsgUpdateFailed   = "Failed to update user"
	MsgDeactivated    = "User deactivated"
	MsgActivated      = "User activated"
	MsgStatusFailed   = "Failed to update status"
	MsgDeleted        = "User deleted successfully"
	MsgDeleteFailed   = "Failed to delete user"
	MsgProtectedState = "Root Administrators cannot be deactivated."
	MsgProtectedEdit  = "Root Administrators cannot be edited."
	MsgProtectedDel   = "Root Administrators cannot be deleted."
	MsgBusy           = "A change to this user is still in progress."
)

// Level is a notification severity.
type Level int

const (
	LevelSuccess Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	default:
		return "error"
	}
}

// Notification is a transient message. Seq increases with every
// notification so a timer can dismiss exactly the one it was started for.
type Notification struct {
	Seq     uint64
	Level   Level
	Message string
}

// Dialog is the open modal, if any.
type Dialog int

const (
	DialogNone Dialog = iota
	DialogCreate
	DialogEdit
	DialogDelete
)

// State is a copy of the workflow's state for rendering.
type State struct {
	Records      []Record
	Loading      bool
	LoadError    error
	Page         int
	PageSize     int
	Dialog       Dialog
	Selected     *Record
	Notification *Notification
	InFlight     map[int64]bool
}

// Workflow is the user-management state machine. All methods are safe for
// concurrent use; network calls are made without holding the lock.
type Workflow struct {
	dir    Directory
	logger *log.Logger

	mu           sync.Mutex
	records      []Record
	loadSeq      uint64
	loading      bool
	loadErr      error
	page         int
	pageSize     int
	dialog       Dialog
	selected     *Record
	notification *Notification
	notifySeq    uint64
	inFlight     map[int64]bool
}

// New returns a workflow over dir with an empty snapshot.
func New(dir Directory, logger *log.Logger) *Workflow {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Workflow{
		dir:      dir,
		logger:   logger.WithComponent("users"),
		pageSize: DefaultPageSize,
		inFlight: make(map[int64]bool),
	}
}

// State returns a copy of the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := State{
		Records:   slices.Clone(w.records),
		Loading:   w.loading,
		LoadError: w.loadErr,
		Page:      w.page,
		PageSize:  w.pageSize,
		Dialog:    w.dialog,
		InFlight:  make(map[int64]bool, len(w.inFlight)),
	}
	if w.selected != nil {
		sel := *w.selected
		s.Selected = &sel
	}
	if w.notification != nil {
		n := *w.notification
		s.Notification = &n
	}
	for id := range w.inFlight {
		s.InFlight[id] = true
	}
	return s
}

// Load fetches the full list and replaces the snapshot. On failure the
// previous records stay and LoadError is set; no notification is raised.
// When loads overlap, only the most recently started one is applied.
func (w *Workflow) Load(ctx context.Context) error {
	w.mu.Lock()
	w.loadSeq++
	seq := w.loadSeq
	w.loading = true
	w.mu.Unlock()

	users, err := w.dir.List(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if seq != w.loadSeq {
		return err
	}
	w.loading = false

	if err != nil {
		w.loadErr = err
		w.logger.LogError("failed to fetch users", err)
		return err
	}

	records := make([]Record, len(users))
	for i, u := range users {
		records[i] = Normalize(u)
	}
	w.records = records
	w.loadErr = nil
	w.clampPage()
	w.logger.Debug("users loaded", "count", len(records))
	return nil
}

// OpenCreate opens the create dialog.
func (w *Workflow) OpenCreate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dialog = DialogCreate
	w.selected = nil
}

// Create validates the form and creates the user. On success the dialog
// closes and the list reloads; on failure the dialog stays open.
func (w *Workflow) Create(ctx context.Context, form CreateForm) error {
	if fe := ValidateCreate(form); fe != nil {
		return errors.Wrap(errors.ErrCodeValidationFailed, "create form is invalid", fe)
	}

	created, err := w.dir.Create(ctx, directory.CreateRequest{
		Name:     form.Name,
		Email:    form.Email,
		Role:     form.Role,
		Password: form.Password,
		IsActive: form.Active,
	})
	if err != nil {
		w.logger.LogError("create user failed", err)
		w.notify(LevelError, MsgCreateFailed)
		return err
	}

	w.logger.Info("user created", "user_id", created.ID)
	w.mu.Lock()
	w.closeDialog()
	w.mu.Unlock()
	w.notify(LevelSuccess, MsgCreated)
	_ = w.Load(ctx)
	return nil
}

// OpenEdit opens the edit dialog for a record. Protected records are
// refused with a warning.
func (w *Workflow) OpenEdit(id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec, err := w.mutable(id, MsgProtectedEdit)
	if err != nil {
		return err
	}
	w.dialog = DialogEdit
	w.selected = &rec
	return nil
}

// Edit validates the form and updates the user. A blank password is left
// out of the request. On success the dialog closes and the list reloads.
func (w *Workflow) Edit(ctx context.Context, id int64, form EditForm) error {
	w.mu.Lock()
	_, err := w.mutable(id, MsgProtectedEdit)
	if err == nil {
		err = w.claim(id)
	}
	w.mu.Unlock()
	if err != nil {
		return err
	}
	defer w.release(id)

	if fe := ValidateEdit(form); fe != nil {
		return errors.Wrap(errors.ErrCodeValidationFailed, "edit form is invalid", fe)
	}

	req := directory.UpdateRequest{
		Name:     &form.Name,
		Email:    &form.Email,
		Role:     &form.Role,
		IsActive: &form.Active,
	}
	if form.Password != "" {
		req.Password = &form.Password
	}

	if _, err := w.dir.Update(ctx, id, req); err != nil {
		w.logger.LogError("update user failed", err)
		w.notify(LevelError, MsgUpdateFailed)
		return err
	}

	w.logger.Info("user updated", "user_id", id, "password_changed", req.Password != nil)
	w.mu.Lock()
	w.closeDialog()
	w.mu.Unlock()
	w.notify(LevelSuccess, MsgUpdated)
	_ = w.Load(ctx)
	return nil
}

// ToggleStatus flips a record's active flag locally, then persists it. On
// failure the flip is undone and the list is reloaded from the backend.
func (w *Workflow) ToggleStatus(ctx context.Context, id int64) error {
	wasActive, err := w.BeginToggle(id)
	if err != nil {
		return err
	}
	return w.CommitToggle(ctx, id, wasActive)
}

// BeginToggle claims the record and flips its active flag locally. It
// returns the flag as it was before the flip. Every successful call must
// be followed by CommitToggle.
func (w *Workflow) BeginToggle(id int64) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec, err := w.mutable(id, MsgProtectedState)
	if err != nil {
		return false, err
	}
	if err := w.claim(id); err != nil {
		return false, err
	}
	w.setActive(id, !rec.Active)
	return rec.Active, nil
}

// CommitToggle persists a flip started by BeginToggle and releases the
// record.
func (w *Workflow) CommitToggle(ctx context.Context, id int64, wasActive bool) error {
	err := w.dir.SetActive(ctx, id, !wasActive)
	w.release(id)

	if err != nil {
		w.logger.LogError("status update failed", err)
		w.mu.Lock()
		w.setActive(id, wasActive)
		w.mu.Unlock()
		_ = w.Load(ctx)
		w.notify(LevelError, MsgStatusFailed)
		return err
	}

	if wasActive {
		w.notify(LevelInfo, MsgDeactivated)
	} else {
		w.notify(LevelInfo, MsgActivated)
	}
	w.logger.Info("user status changed", "user_id", id, "active", !wasActive)
	return nil
}

// RequestDelete opens the delete confirmation for a record. Protected
// records are refused with a warning.
func (w *Workflow) RequestDelete(id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec, err := w.mutable(id, MsgProtectedDel)
	if err != nil {
		return err
	}
	w.dialog = DialogDelete
	w.selected = &rec
	return nil
}

// ConfirmDelete deletes the record selected by RequestDelete. It does
// nothing unless the delete confirmation is open.
func (w *Workflow) ConfirmDelete(ctx context.Context) error {
	w.mu.Lock()
	if w.dialog != DialogDelete || w.selected == nil {
		w.mu.Unlock()
		return errors.New(errors.ErrCodeNothingSelected, "no user selected for deletion")
	}
	id := w.selected.ID
	if err := w.claim(id); err != nil {
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()
	defer w.release(id)

	if err := w.dir.Delete(ctx, id); err != nil {
		w.logger.LogError("delete user failed", err)
		w.notify(LevelError, MsgDeleteFailed)
		return err
	}

	w.logger.Info("user deleted", "user_id", id)
	w.mu.Lock()
	w.closeDialog()
	w.mu.Unlock()
	w.notify(LevelWarning, MsgDeleted)
	_ = w.Load(ctx)
	return nil
}

// CloseDialog closes any open dialog and clears the selection.
func (w *Workflow) CloseDialog() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeDialog()
}

// SetPage moves to page p, clamped to the available pages.
func (w *Workflow) SetPage(p int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.page = p
	w.clampPage()
}

// SetPageSize changes the page size and returns to the first page. Only
// the sizes in PageSizes are accepted.
func (w *Workflow) SetPageSize(n int) error {
	if !slices.Contains(PageSizes, n) {
		return errors.New(errors.ErrCodeValidationFailed, fmt.Sprintf("page size must be one of %v", PageSizes))
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pageSize = n
	w.page = 0
	return nil
}

// Visible returns the records on the current page.
func (w *Workflow) Visible() []Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(pageOf(w.records, w.page, w.pageSize))
}

// PageCount returns the number of pages, at least one.
func (w *Workflow) PageCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return pageCount(len(w.records), w.pageSize)
}

// DismissNotification clears the current notification.
func (w *Workflow) DismissNotification() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notification = nil
}

// Expire clears the notification only if it is still the one numbered seq.
func (w *Workflow) Expire(seq uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.notification != nil && w.notification.Seq == seq {
		w.notification = nil
	}
}

// Find returns the record with the given id from the snapshot.
func (w *Workflow) Find(id int64) (Record, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.find(id)
}

func (w *Workflow) find(id int64) (Record, bool) {
	for _, r := range w.records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// mutable returns the record if it may be changed, raising a warning for
// protected records. Callers hold w.mu.
func (w *Workflow) mutable(id int64, protectedMsg string) (Record, error) {
	rec, ok := w.find(id)
	if !ok {
		return Record{}, errors.New(errors.ErrCodeRecordNotFound, fmt.Sprintf("no user with id %d", id))
	}
	if rec.Protected {
		w.notifyLocked(LevelWarning, protectedMsg)
		return Record{}, errors.NewProtectedRecordError(protectedMsg)
	}
	return rec, nil
}

// claim marks a record as having a mutation in flight. Callers hold w.mu.
func (w *Workflow) claim(id int64) error {
	if w.inFlight[id] {
		w.notifyLocked(LevelInfo, MsgBusy)
		return errors.New(errors.ErrCodeMutationInFlight, MsgBusy)
	}
	w.inFlight[id] = true
	return nil
}

func (w *Workflow) release(id int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inFlight, id)
}

func (w *Workflow) setActive(id int64, active bool) {
	for i := range w.records {
		if w.records[i].ID == id {
			w.records[i].Active = active
			return
		}
	}
}

func (w *Workflow) closeDialog() {
	w.dialog = DialogNone
	w.selected = nil
}

func (w *Workflow) clampPage() {
	last := pageCount(len(w.records), w.pageSize) - 1
	if w.page > last {
		w.page = last
	}
	if w.page < 0 {
		w.page = 0
	}
}

func (w *Workflow) notify(level Level, msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notifyLocked(level, msg)
}

func (w *Workflow) notifyLocked(level Level, msg string) {
	w.notifySeq++
	w.notification = &Notification{Seq: w.notifySeq, Level: level, Message: msg}
}

func pageCount(total, size int) int {
	if size <= 0 || total == 0 {
		return 1
	}
	return (total + size - 1) / size
}

func pageOf(records []Record, page, size int) []Record {
	start := page * size
	if start >= len(records) {
		return nil
	}
	end := min(start+size, len(records))
	return records[start:end]
}
