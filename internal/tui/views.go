package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/rbr-console/internal/navtrap"
	"github.com/felixgeelhaar/rbr-console/internal/route"
	"github.com/felixgeelhaar/rbr-console/internal/users"
)

// Exit warning copy.
const (
	exitTitle   = "SECURITY WARNING"
	exitLead    = "You are attempting to leave the secure session."
	exitBody    = "Going back will sign you out immediately. You will not be able to return without logging in again."
	exitStay    = "Stay Logged In"
	exitLeave   = "Sign Out & Leave"
	placeholder = "This module is currently in development."
)

// View renders the console (required by Bubble Tea)
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	if m.loc.Zone == route.ZoneShell {
		return m.renderShell()
	}
	return m.renderLogin()
}

// renderLogin renders the sign-in screen
func (m *Model) renderLogin() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("RBR CONSOLE"))
	b.WriteString("\n")
	if m.backend != "" {
		b.WriteString(m.styles.Muted.Render("Backend: " + m.backend))
		b.WriteString("\n\n")
	}

	if m.loginErr != "" {
		b.WriteString(m.styles.Error.Render("✗ " + m.loginErr))
		b.WriteString("\n\n")
	}

	if m.loggingIn {
		b.WriteString(m.styles.Info.Render("Signing in..."))
	} else {
		b.WriteString(m.loginForm.View())
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelpLine(
		helpItem{"enter", "next/submit"},
		helpItem{"esc", "back"},
		helpItem{"ctrl+c", "quit"},
	))

	return m.styles.Border.Render(b.String())
}

// renderShell renders the sidebar next to the active screen
func (m *Model) renderShell() string {
	content := m.renderContent()
	if m.trap.State() == navtrap.Warning {
		content = m.renderExitWarning()
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderSidebar(),
		lipgloss.NewStyle().PaddingLeft(2).Render(content),
	)

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	if n := m.renderNotification(); n != "" {
		b.WriteString("\n")
		b.WriteString(n)
		b.WriteString("\n")
	}
	if m.showHelp {
		b.WriteString(m.styles.Help.Render(m.help.FullHelpView(m.keys.FullHelp())))
	} else {
		b.WriteString(m.styles.Help.Render(m.help.ShortHelpView(m.keys.ShortHelp())))
	}
	return b.String()
}

// renderSidebar renders the role's navigation entries and Logout
func (m *Model) renderSidebar() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("RBR"))
	b.WriteString("\n")
	if r, ok := m.session.Role(); ok {
		b.WriteString(m.styles.Muted.Render(r.String()))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	items := m.navItems()
	for i, it := range items {
		line := fmt.Sprintf("%s %s", it.Icon, it.Label)
		b.WriteString(m.navStyle(i, it.Path == m.loc.Path).Render(line))
		b.WriteString("\n")
	}

	if c, err := m.session.Claims(); err == nil && !c.ExpiresAt.IsZero() {
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render("Session until " + c.ExpiresAt.Local().Format("15:04")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	logout := "⏻ Logout"
	if m.focus == focusSidebar && m.navCursor == len(items) {
		b.WriteString(m.styles.NavCursor.Render(logout))
	} else {
		b.WriteString(m.styles.Logout.Render(logout))
	}

	return m.styles.Sidebar.Render(b.String())
}

func (m *Model) navStyle(i int, active bool) lipgloss.Style {
	switch {
	case m.focus == focusSidebar && m.navCursor == i:
		return m.styles.NavCursor
	case active:
		return m.styles.NavActive
	default:
		return m.styles.NavItem
	}
}

// renderContent renders the screen for the current location
func (m *Model) renderContent() string {
	switch m.loc.Screen {
	case route.ScreenUsers:
		return m.renderUsers()
	default:
		return m.renderPlaceholder()
	}
}

// renderPlaceholder renders a module that is not built yet
func (m *Model) renderPlaceholder() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.loc.Title))
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render(placeholder))
	return b.String()
}

// renderUsers renders the user management screen
func (m *Model) renderUsers() string {
	st := m.users.State()

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("USER MANAGEMENT"))
	b.WriteString("  ")
	b.WriteString(m.styles.Subtitle.Render("// Access Control & Roles"))
	b.WriteString("\n")

	switch {
	case st.Loading && len(st.Records) == 0:
		b.WriteString(m.styles.Info.Render("Loading users..."))
		b.WriteString("\n")
	case st.LoadError != nil:
		b.WriteString(m.styles.Muted.Render("Could not refresh the user list. Press r to retry."))
		b.WriteString("\n")
	}

	if len(st.Records) == 0 && !st.Loading {
		b.WriteString(m.styles.Muted.Render("No users found."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}

	b.WriteString(m.styles.Muted.Render(fmt.Sprintf("Rows per page: %d   ", st.PageSize)))
	b.WriteString(m.styles.Muted.Render(pageRange(st)))
	b.WriteString("   ")
	b.WriteString(m.pager.View())
	b.WriteString("\n")

	if dialog := m.renderDialog(st); dialog != "" {
		b.WriteString("\n")
		b.WriteString(dialog)
		b.WriteString("\n")
	}

	return b.String()
}

// pageRange renders "first–last of total" for the current page.
func pageRange(st users.State) string {
	total := len(st.Records)
	if total == 0 {
		return "0–0 of 0"
	}
	first := st.Page*st.PageSize + 1
	last := min(first+st.PageSize-1, total)
	return fmt.Sprintf("%d–%d of %d", first, last, total)
}

// renderDialog renders the open create, edit or delete dialog
func (m *Model) renderDialog(st users.State) string {
	switch st.Dialog {
	case users.DialogCreate, users.DialogEdit:
		if m.dialogForm == nil {
			return ""
		}
		var b strings.Builder
		b.WriteString(m.dialogForm.View())
		if m.formErr != "" {
			b.WriteString("\n")
			b.WriteString(m.styles.Error.Render(m.formErr))
		}
		if m.busy {
			b.WriteString("\n")
			b.WriteString(m.styles.Info.Render("Saving..."))
		}
		b.WriteString("\n")
		b.WriteString(m.renderHelpLine(helpItem{"enter", "next/save"}, helpItem{"esc", "cancel"}))
		return m.styles.Border.Render(b.String())

	case users.DialogDelete:
		name := ""
		if st.Selected != nil {
			name = st.Selected.Name
		}
		var b strings.Builder
		b.WriteString(m.styles.Error.Render("⚠ CONFIRM DELETION"))
		b.WriteString("\n\n")
		b.WriteString("Are you sure you want to delete ")
		b.WriteString(lipgloss.NewStyle().Bold(true).Render(name))
		b.WriteString("?\n")
		b.WriteString(m.styles.Muted.Render("This action cannot be undone. The user will lose all access immediately."))
		b.WriteString("\n\n")
		b.WriteString(m.renderHelpLine(helpItem{"y/enter", "Delete User"}, helpItem{"n/esc", "Cancel"}))
		return m.styles.Danger.Render(b.String())
	}
	return ""
}

// renderExitWarning renders the leave-session warning
func (m *Model) renderExitWarning() string {
	var b strings.Builder

	b.WriteString(m.styles.Error.Render("⚠ " + exitTitle))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(exitLead))
	b.WriteString("\n")
	b.WriteString(exitBody)
	b.WriteString("\n\n")

	stay, leave := m.styles.ButtonFocus, m.styles.Button
	if m.exitLeave {
		stay, leave = leave, stay
	}
	b.WriteString(stay.Render(exitStay))
	b.WriteString("  ")
	b.WriteString(leave.Render(exitLeave))
	b.WriteString("\n")
	b.WriteString(m.renderHelpLine(helpItem{"←/→", "choose"}, helpItem{"enter", "confirm"}, helpItem{"s", "stay"}))

	return m.styles.Danger.Render(b.String())
}

// renderNotification renders the current transient notification
func (m *Model) renderNotification() string {
	n := m.users.State().Notification
	if n == nil {
		return ""
	}

	var style lipgloss.Style
	var icon string
	switch n.Level {
	case users.LevelSuccess:
		style, icon = m.styles.Success, "✓"
	case users.LevelInfo:
		style, icon = m.styles.Info, "ℹ"
	case users.LevelWarning:
		style, icon = m.styles.Warning, "⚠"
	default:
		style, icon = m.styles.Error, "✗"
	}
	return style.Render(icon + " " + n.Message)
}

type helpItem struct {
	key  string
	desc string
}

// renderHelpLine renders the help line at the bottom
func (m *Model) renderHelpLine(items ...helpItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = m.styles.Key.Render(it.key) + " " + m.styles.KeyDesc.Render(it.desc)
	}
	return m.styles.Help.Render(strings.Join(parts, " • "))
}
