package route

import "strings"

// Zone is the guard a path sits under.
type Zone int

const (
	// ZoneNone is the catch-all for paths no route matches.
	ZoneNone Zone = iota
	// ZonePublic is open only to visitors without a complete session.
	ZonePublic
	// ZoneShell is open only to visitors holding an access token.
	ZoneShell
)

// String returns the zone name.
func (z Zone) String() string {
	switch z {
	case ZonePublic:
		return "public"
	case ZoneShell:
		return "shell"
	default:
		return "none"
	}
}

// Screen identifies what the console renders for a path.
type Screen int

const (
	ScreenNone Screen = iota
	ScreenLogin
	ScreenUsers
	ScreenPlaceholder
)

type entry struct {
	zone     Zone
	screen   Screen
	title    string
	redirect string
}

var table = map[string]entry{
	PathRoot:        {zone: ZonePublic, screen: ScreenLogin},
	PathLogin:       {zone: ZonePublic, screen: ScreenLogin},
	PathUsers:       {zone: ZoneShell, screen: ScreenUsers, title: "User Management"},
	PathUsersCreate: {zone: ZoneShell, redirect: PathUsers},
	PathBooking:     {zone: ZoneShell, screen: ScreenPlaceholder, title: "Module 2: Robot Booking Request"},
	PathApprovals:   {zone: ZoneShell, screen: ScreenPlaceholder, title: "Module 3: Booking Approvals"},
	PathAllocation:  {zone: ZoneShell, screen: ScreenPlaceholder, title: "Module 4: Stock Allocation"},
	PathInfo:        {zone: ZoneShell, screen: ScreenPlaceholder, title: "Module 5: RBR Information"},
	PathReports:     {zone: ZoneShell, screen: ScreenPlaceholder, title: "Module 6: Reports & Analytics"},
	PathSettings:    {zone: ZoneShell, screen: ScreenPlaceholder, title: "System Settings"},
	PathInventory:   {zone: ZoneShell, screen: ScreenPlaceholder, title: "Module 10: Robot Inventory"},
}

// Location is a resolved path together with what it renders.
type Location struct {
	Path   string
	Zone   Zone
	Screen Screen
	Title  string
}

func locate(path string) Location {
	e := table[path]
	return Location{Path: path, Zone: e.zone, Screen: e.screen, Title: e.title}
}

// Clean normalizes a path: leading slash, no trailing slash, no query or
// fragment.
func Clean(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
