package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/rbr-console/internal/auth"
	"github.com/felixgeelhaar/rbr-console/internal/log"
	"github.com/felixgeelhaar/rbr-console/internal/navtrap"
	"github.com/felixgeelhaar/rbr-console/internal/route"
	"github.com/felixgeelhaar/rbr-console/internal/session"
	"github.com/felixgeelhaar/rbr-console/internal/users"
)

// DefaultNotificationTTL is how long a notification stays on screen.
const DefaultNotificationTTL = 6 * time.Second

// focusArea is the shell pane receiving keys
type focusArea int

const (
	focusContent focusArea = iota
	focusSidebar
)

// Options wires the console to its collaborators.
type Options struct {
	Context         context.Context
	Router          *route.Router
	Trap            *navtrap.Trap
	Auth            *auth.Authenticator
	Session         *session.Store
	Users           *users.Workflow
	Logger          *log.Logger
	NotificationTTL time.Duration
	Backend         string
	// Email pre-fills the login form.
	Email string
}

// Model represents the console state
type Model struct {
	ctx     context.Context
	router  *route.Router
	trap    *navtrap.Trap
	auth    *auth.Authenticator
	session *session.Store
	users   *users.Workflow
	logger  *log.Logger
	ttl     time.Duration
	backend string

	loc      route.Location
	width    int
	height   int
	ready    bool
	quitting bool
	showHelp bool

	// Login state
	login     *loginFields
	loginForm *huh.Form
	loginErr  string
	loggingIn bool

	// Shell state
	focus     focusArea
	navCursor int
	exitLeave bool

	// Users screen state
	table      table.Model
	pager      paginator.Model
	dialogForm *huh.Form
	createForm *users.CreateForm
	editForm   *users.EditForm
	editID     int64
	formErr    string
	// busy is set while a dialog submission is in flight.
	busy       bool
	expiring   uint64

	keys   keyMap
	help   help.Model
	styles Styles
}

// Styles contains lipgloss styles for the console
type Styles struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Error       lipgloss.Style
	Success     lipgloss.Style
	Warning     lipgloss.Style
	Info        lipgloss.Style
	Muted       lipgloss.Style
	Border      lipgloss.Style
	Danger      lipgloss.Style
	Sidebar     lipgloss.Style
	NavItem     lipgloss.Style
	NavActive   lipgloss.Style
	NavCursor   lipgloss.Style
	Logout      lipgloss.Style
	Button      lipgloss.Style
	ButtonFocus lipgloss.Style
	Help        lipgloss.Style
	Key         lipgloss.Style
	KeyDesc     lipgloss.Style
}

// NewModel creates the console model. The trap is attached immediately so
// a session that starts inside the shell is protected from the first key.
func NewModel(opts Options) *Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.DefaultLogger()
	}
	ttl := opts.NotificationTTL
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}

	m := &Model{
		ctx:     ctx,
		router:  opts.Router,
		trap:    opts.Trap,
		auth:    opts.Auth,
		session: opts.Session,
		users:   opts.Users,
		logger:  logger.WithComponent("tui"),
		ttl:     ttl,
		backend: opts.Backend,
		login:   &loginFields{Email: opts.Email},
		table:   newUsersTable(),
		pager:   newPager(),
		keys:    keys,
		help:    help.New(),
		styles:  DefaultStyles(),
	}
	m.loginForm = newLoginForm(m.login)
	m.trap.Attach()
	return m
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	yellow := lipgloss.Color("220")
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(yellow).
			MarginBottom(1),
		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")),
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")),
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")),
		Info: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(yellow).
			Padding(1, 2),
		Danger: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("160")).
			Padding(1, 2),
		Sidebar: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 2, 0, 1).
			Width(26),
		NavItem: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		NavActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(yellow),
		NavCursor: lipgloss.NewStyle().
			Background(yellow).
			Foreground(lipgloss.Color("0")).
			Bold(true),
		Logout: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")),
		Button: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Padding(0, 2),
		ButtonFocus: lipgloss.NewStyle().
			Background(lipgloss.Color("160")).
			Foreground(lipgloss.Color("231")).
			Bold(true).
			Padding(0, 2),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1),
		Key: lipgloss.NewStyle().
			Bold(true).
			Foreground(yellow),
		KeyDesc: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
	}
}

func newUsersTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Name", Width: 22},
			{Title: "Email / Username", Width: 28},
			{Title: "Role", Width: 16},
			{Title: "Status", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(users.DefaultPageSize+1),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("220"))
	t.SetStyles(s)
	return t
}

func newPager() paginator.Model {
	p := paginator.New()
	p.Type = paginator.Arabic
	p.PerPage = users.DefaultPageSize
	p.TotalPages = 1
	return p
}

// Init initializes the console (required by Bubble Tea)
func (m *Model) Init() tea.Cmd {
	return m.enter(m.router.Current())
}

// Update handles messages and updates the model state (required by Bubble Tea)
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.apply(msg)
	return m, tea.Batch(cmd, m.expireCmd())
}

// apply handles msg and refreshes the users table from the workflow.
func (m *Model) apply(msg tea.Msg) tea.Cmd {
	cmd := m.update(msg)
	if m.loc.Screen == route.ScreenUsers {
		m.syncUsers()
	}
	return cmd
}

func (m *Model) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		return nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case loginResultMsg:
		return m.handleLoginResult(msg)

	case usersLoadedMsg:
		return nil

	case mutationDoneMsg:
		return m.handleMutationDone(msg)

	case notificationExpiredMsg:
		m.users.Expire(msg.Seq)
		return nil
	}

	return m.forwardToForm(msg)
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) tea.Cmd {
	// Ctrl+C always quits
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		m.trap.Detach()
		return tea.Quit
	}

	if m.loc.Zone == route.ZoneShell {
		return m.handleShellKey(msg)
	}
	return m.handlePublicKey(msg)
}

func (m *Model) handlePublicKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Back) {
		if _, err := m.router.Back(); err != nil {
			m.logger.LogError("back navigation failed", err)
		}
		return m.enter(m.router.Current())
	}

	if m.loc.Screen != route.ScreenLogin || m.loggingIn {
		return nil
	}

	form, cmd := m.loginForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.loginForm = f
	}

	switch m.loginForm.State {
	case huh.StateCompleted:
		m.loggingIn = true
		return m.loginCmd(m.login.Email, m.login.Password)
	case huh.StateAborted:
		return m.resetLoginForm()
	}
	return cmd
}

func (m *Model) handleShellKey(msg tea.KeyMsg) tea.Cmd {
	if m.trap.State() == navtrap.Warning {
		return m.handleExitKey(msg)
	}

	dialog := m.users.State().Dialog
	if dialog != users.DialogNone && m.loc.Screen == route.ScreenUsers {
		if key.Matches(msg, m.keys.Cancel) {
			m.closeDialog()
			return nil
		}
		if msg.String() != "alt+left" {
			return m.handleDialogKey(dialog, msg)
		}
	}

	switch {
	case key.Matches(msg, m.keys.Back):
		m.exitLeave = false
		if err := m.trap.OnBack(); err != nil {
			m.logger.LogError("back navigation failed", err)
		}
		return nil

	case key.Matches(msg, m.keys.Focus):
		if m.focus == focusSidebar {
			m.focus = focusContent
		} else {
			m.focus = focusSidebar
		}
		return nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return nil
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	if m.loc.Screen == route.ScreenUsers {
		return m.handleUsersKey(msg)
	}
	return nil
}

// handleExitKey drives the leave-session warning. Back signals keep it
// showing.
func (m *Model) handleExitKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Back):
		if err := m.trap.OnBack(); err != nil {
			m.logger.LogError("back navigation failed", err)
		}
	case key.Matches(msg, m.keys.Switch):
		m.exitLeave = !m.exitLeave
	case key.Matches(msg, m.keys.Stay):
		m.stay()
	case key.Matches(msg, m.keys.Select):
		if !m.exitLeave {
			m.stay()
			return nil
		}
		m.exitLeave = false
		m.closeDialog()
		if _, err := m.trap.ConfirmExit(); err != nil {
			m.logger.LogError("sign out failed", err)
		}
		m.logger.Info("session ended from exit warning")
		return m.enter(m.router.Current())
	}
	return nil
}

func (m *Model) stay() {
	m.exitLeave = false
	m.trap.Stay()
}

func (m *Model) handleSidebarKey(msg tea.KeyMsg) tea.Cmd {
	items := m.navItems()
	// The last row is Logout.
	rows := len(items) + 1

	switch {
	case key.Matches(msg, m.keys.Up):
		m.navCursor = (m.navCursor - 1 + rows) % rows
	case key.Matches(msg, m.keys.Down):
		m.navCursor = (m.navCursor + 1) % rows
	case key.Matches(msg, m.keys.Select):
		if m.navCursor >= len(items) {
			return m.logout()
		}
		return m.navigate(items[m.navCursor].Path)
	}
	return nil
}

func (m *Model) handleUsersKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Create):
		m.users.OpenCreate()
		f := users.NewCreateForm()
		m.createForm = &f
		m.formErr = ""
		m.dialogForm = newCreateForm(m.createForm)
		return m.dialogForm.Init()

	case key.Matches(msg, m.keys.Edit):
		rec, ok := m.selectedRecord()
		if !ok {
			return nil
		}
		if err := m.users.OpenEdit(rec.ID); err != nil {
			return nil
		}
		f := users.EditFormFor(rec)
		m.editForm = &f
		m.editID = rec.ID
		m.formErr = ""
		m.dialogForm = newEditForm(rec.Name, m.editForm)
		return m.dialogForm.Init()

	case key.Matches(msg, m.keys.Toggle):
		rec, ok := m.selectedRecord()
		if !ok {
			return nil
		}
		// The flip shows at once; only the request waits.
		wasActive, err := m.users.BeginToggle(rec.ID)
		if err != nil {
			return nil
		}
		ctx, w := m.ctx, m.users
		return func() tea.Msg {
			return mutationDoneMsg{Op: opToggle, Err: w.CommitToggle(ctx, rec.ID, wasActive)}
		}

	case key.Matches(msg, m.keys.Delete):
		rec, ok := m.selectedRecord()
		if !ok {
			return nil
		}
		_ = m.users.RequestDelete(rec.ID)
		return nil

	case key.Matches(msg, m.keys.Reload):
		return m.loadCmd()

	case key.Matches(msg, m.keys.PrevPage):
		m.users.SetPage(m.users.State().Page - 1)
		m.table.SetCursor(0)
		return nil

	case key.Matches(msg, m.keys.NextPage):
		m.users.SetPage(m.users.State().Page + 1)
		m.table.SetCursor(0)
		return nil

	case key.Matches(msg, m.keys.PageSize):
		if err := m.users.SetPageSize(nextPageSize(m.users.State().PageSize)); err != nil {
			m.logger.LogError("page size change failed", err)
		}
		m.table.SetCursor(0)
		return nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return cmd
}

func (m *Model) handleDialogKey(dialog users.Dialog, msg tea.KeyMsg) tea.Cmd {
	if m.busy {
		return nil
	}

	if dialog == users.DialogDelete {
		switch {
		case key.Matches(msg, m.keys.Confirm):
			return m.mutate(opDelete, m.users.ConfirmDelete)
		case key.Matches(msg, m.keys.Deny):
			m.closeDialog()
		}
		return nil
	}

	if m.dialogForm == nil {
		return nil
	}
	form, cmd := m.dialogForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.dialogForm = f
	}

	switch m.dialogForm.State {
	case huh.StateCompleted:
		return m.submitDialog(dialog)
	case huh.StateAborted:
		m.closeDialog()
		return nil
	}
	return cmd
}

func (m *Model) submitDialog(dialog users.Dialog) tea.Cmd {
	m.formErr = ""
	switch dialog {
	case users.DialogCreate:
		form := *m.createForm
		return m.mutate(opCreate, func(ctx context.Context) error {
			return m.users.Create(ctx, form)
		})
	case users.DialogEdit:
		form := *m.editForm
		id := m.editID
		return m.mutate(opEdit, func(ctx context.Context) error {
			return m.users.Edit(ctx, id, form)
		})
	}
	return nil
}

func (m *Model) handleLoginResult(msg loginResultMsg) tea.Cmd {
	m.loggingIn = false
	if msg.Err != nil {
		m.loginErr = auth.Message(msg.Err)
		return m.resetLoginForm()
	}

	m.loginErr = ""
	*m.login = loginFields{}
	if _, err := m.router.Navigate(msg.Home); err != nil {
		m.logger.LogError("navigation after login failed", err)
	}
	return m.enter(m.router.Current())
}

func (m *Model) handleMutationDone(msg mutationDoneMsg) tea.Cmd {
	if msg.Op == opToggle {
		return nil
	}
	m.busy = false
	st := m.users.State()

	if msg.Err == nil || st.Dialog == users.DialogNone {
		if st.Dialog == users.DialogNone {
			m.dialogForm = nil
		}
		return nil
	}

	// The dialog stays open on failure; rebuild its form with the values
	// already entered.
	var fe users.FieldErrors
	if errors.As(msg.Err, &fe) {
		m.formErr = fe.Error()
	}
	switch msg.Op {
	case opCreate:
		m.dialogForm = newCreateForm(m.createForm)
		return m.dialogForm.Init()
	case opEdit:
		if st.Selected != nil {
			m.dialogForm = newEditForm(st.Selected.Name, m.editForm)
			return m.dialogForm.Init()
		}
	}
	return nil
}

// forwardToForm passes non-key messages such as cursor blinks to the form
// that owns the screen.
func (m *Model) forwardToForm(msg tea.Msg) tea.Cmd {
	var form **huh.Form
	switch {
	case m.loc.Screen == route.ScreenLogin:
		form = &m.loginForm
	case m.loc.Screen == route.ScreenUsers && m.dialogForm != nil:
		form = &m.dialogForm
	default:
		return nil
	}

	next, cmd := (*form).Update(msg)
	if f, ok := next.(*huh.Form); ok {
		*form = f
	}
	return cmd
}

// enter switches the console to loc and starts whatever the screen needs.
func (m *Model) enter(loc route.Location) tea.Cmd {
	prev := m.loc
	m.loc = loc

	switch loc.Screen {
	case route.ScreenLogin:
		if prev.Screen != route.ScreenLogin {
			m.loginErr = ""
			return m.resetLoginForm()
		}
		return nil
	}

	if loc.Zone == route.ZoneShell {
		m.syncNavCursor()
		if prev.Zone != route.ZoneShell {
			m.focus = focusContent
		}
	}
	if loc.Screen == route.ScreenUsers && prev.Path != loc.Path {
		m.users.CloseDialog()
		m.dialogForm = nil
		return m.loadCmd()
	}
	return nil
}

func (m *Model) navigate(path string) tea.Cmd {
	if _, err := m.router.Navigate(path); err != nil {
		m.logger.With("path", path).LogError("navigation failed", err)
	}
	return m.enter(m.router.Current())
}

func (m *Model) logout() tea.Cmd {
	m.closeDialog()
	m.auth.Logout()
	return m.navigate(route.PathLogin)
}

func (m *Model) resetLoginForm() tea.Cmd {
	m.loginForm = newLoginForm(m.login)
	return m.loginForm.Init()
}

func (m *Model) closeDialog() {
	m.users.CloseDialog()
	m.dialogForm = nil
	m.createForm = nil
	m.editForm = nil
	m.formErr = ""
}

func (m *Model) navItems() []route.Item {
	r, _ := m.session.Role()
	return route.Navigation(r)
}

func (m *Model) syncNavCursor() {
	for i, it := range m.navItems() {
		if it.Path == m.loc.Path {
			m.navCursor = i
			return
		}
	}
}

// syncUsers copies the current page of the workflow snapshot into the
// table and pager.
func (m *Model) syncUsers() {
	st := m.users.State()
	visible := m.users.Visible()

	rows := make([]table.Row, len(visible))
	for i, r := range visible {
		status := r.Status()
		if st.InFlight[r.ID] {
			status += "…"
		}
		if r.Protected {
			status += " 🔒"
		}
		rows[i] = table.Row{r.Name, r.Email, r.Role, status}
	}
	m.table.SetRows(rows)
	m.table.SetHeight(st.PageSize + 1)
	if m.table.Cursor() >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}

	m.pager.PerPage = st.PageSize
	m.pager.TotalPages = m.users.PageCount()
	m.pager.Page = st.Page
}

func (m *Model) selectedRecord() (users.Record, bool) {
	visible := m.users.Visible()
	i := m.table.Cursor()
	if i < 0 || i >= len(visible) {
		return users.Record{}, false
	}
	return visible[i], true
}

// expireCmd starts a dismissal timer for a notification that does not
// have one yet.
func (m *Model) expireCmd() tea.Cmd {
	n := m.users.State().Notification
	if n == nil || n.Seq == m.expiring {
		return nil
	}
	m.expiring = n.Seq
	seq := n.Seq
	return tea.Tick(m.ttl, func(time.Time) tea.Msg {
		return notificationExpiredMsg{Seq: seq}
	})
}

func nextPageSize(current int) int {
	for i, n := range users.PageSizes {
		if n == current {
			return users.PageSizes[(i+1)%len(users.PageSizes)]
		}
	}
	return users.DefaultPageSize
}

// Commands

func (m *Model) loginCmd(email, password string) tea.Cmd {
	ctx, a := m.ctx, m.auth
	return func() tea.Msg {
		home, err := a.Login(ctx, email, password)
		return loginResultMsg{Home: home, Err: err}
	}
}

func (m *Model) loadCmd() tea.Cmd {
	ctx, w := m.ctx, m.users
	return func() tea.Msg {
		return usersLoadedMsg{Err: w.Load(ctx)}
	}
}

func (m *Model) mutate(op operation, fn func(context.Context) error) tea.Cmd {
	m.busy = true
	ctx := m.ctx
	return func() tea.Msg {
		return mutationDoneMsg{Op: op, Err: fn(ctx)}
	}
}

// Custom messages for console events

type operation string

const (
	opCreate operation = "create"
	opEdit   operation = "edit"
	opToggle operation = "toggle"
	opDelete operation = "delete"
)

// loginResultMsg carries the outcome of a login attempt
type loginResultMsg struct {
	Home string
	Err  error
}

// usersLoadedMsg indicates a list fetch has finished
type usersLoadedMsg struct {
	Err error
}

// mutationDoneMsg indicates a create, edit, toggle or delete has finished
type mutationDoneMsg struct {
	Op  operation
	Err error
}

// notificationExpiredMsg asks for the numbered notification to go away
type notificationExpiredMsg struct {
	Seq uint64
}

// Run starts the console and blocks until it exits.
func Run(m *Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run console: %w", err)
	}
	return nil
}
