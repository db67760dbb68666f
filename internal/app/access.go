package app

import (
	"time"

	"quiz-portal/internal/domain"
)

// Interface is one of the two dashboards.
type Interface string

const (
	InterfaceUser  Interface = "user"
	InterfaceAdmin Interface = "admin"
)

const (
	historyLimit      = 10
	contextFreshness  = time.Hour
	routeLogin        = "/login"
	routeUserHome     = "/user/dashboard"
	routeAdminHome    = "/admin/dashboard"
	routeRoleSelector = "/role-selection"
)

// AvailableInterfaces lists the dashboards the user may open.
func AvailableInterfaces(u *domain.User) []Interface {
	if u == nil {
		return []Interface{}
	}
	switch u.Role {
	case domain.RoleAdmin:
		return []Interface{InterfaceAdmin}
	case domain.RoleTeacher:
		return []Interface{InterfaceUser, InterfaceAdmin}
	case domain.RoleStudent:
		return []Interface{InterfaceUser}
	}
	return []Interface{}
}

func CanAccessAdmin(u *domain.User) bool {
	return u != nil && (u.Role == domain.RoleAdmin || u.Role == domain.RoleTeacher)
}

func CanAccessUser(u *domain.User) bool { return u != nil }

// ShouldShowRoleSelection is true for teachers, who may use both dashboards.
func ShouldShowRoleSelection(u *domain.User) bool {
	return u != nil && u.Role == domain.RoleTeacher && len(AvailableInterfaces(u)) > 1
}

// DefaultInterface is admin for admins and user for everyone else; empty
// when logged out.
func DefaultInterface(u *domain.User) Interface {
	if u == nil {
		return ""
	}
	if u.Role == domain.RoleAdmin {
		return InterfaceAdmin
	}
	return InterfaceUser
}

// InitialRoute is where a user lands after login.
func InitialRoute(u *domain.User) string {
	if u == nil {
		return routeLogin
	}
	switch u.Role {
	case domain.RoleTeacher:
		return routeRoleSelector
	case domain.RoleAdmin:
		return routeAdminHome
	}
	return routeUserHome
}

func ValidateInterfaceAccess(u *domain.User, target Interface) bool {
	switch target {
	case InterfaceAdmin:
		return CanAccessAdmin(u)
	case InterfaceUser:
		return CanAccessUser(u)
	}
	return false
}

// UserDisplayName is the name, else the email.
func UserDisplayName(u *domain.User) string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// RouteVisit is an entry of the per-interface history.
type RouteVisit struct {
	Path string    `json:"path"`
	Name string    `json:"name,omitempty"`
	At   time.Time `json:"timestamp"`
}

// NavigationContext is saved when switching dashboards.
type NavigationContext struct {
	Interface Interface `json:"interface"`
	At        time.Time `json:"timestamp"`
}

// Navigation is the dashboard state of one browser session.
type Navigation struct {
	Active  Interface                  `json:"activeInterface,omitempty"`
	History map[Interface][]RouteVisit `json:"interfaceHistory,omitempty"`
	Context *NavigationContext         `json:"navigationContext,omitempty"`
}

// SetInitial restores saved when the user may still open it, else picks
// the default interface.
func (n *Navigation) SetInitial(u *domain.User, saved Interface) {
	if saved != "" && ValidateInterfaceAccess(u, saved) {
		n.Active = saved
		return
	}
	n.Active = DefaultInterface(u)
}

// Switch moves to target, remembering where the user came from.
func (n *Navigation) Switch(u *domain.User, target Interface, now time.Time) (Interface, error) {
	switch target {
	case InterfaceAdmin:
		if !CanAccessAdmin(u) {
			return "", domain.NewError(domain.CodeAccessDenied, "Access denied: Admin interface not available")
		}
	case InterfaceUser:
		if !CanAccessUser(u) {
			return "", domain.NewError(domain.CodeAccessDenied, "Access denied: User interface not available")
		}
	default:
		return "", domain.Errorf(domain.CodeValidation, "Unknown interface %q", target)
	}
	n.Context = &NavigationContext{Interface: n.Active, At: now}
	n.Active = target
	return target, nil
}

// CurrentInterfaceName is the heading of the active dashboard.
func (n *Navigation) CurrentInterfaceName() string {
	switch n.Active {
	case InterfaceAdmin:
		return "Admin Dashboard"
	case InterfaceUser:
		return "Student Dashboard"
	}
	return "Dashboard"
}

// Visit appends a route to the active interface's history, keeping the
// last ten.
func (n *Navigation) Visit(path, name string, now time.Time) {
	if n.Active == "" {
		return
	}
	if n.History == nil {
		n.History = make(map[Interface][]RouteVisit)
	}
	h := append(n.History[n.Active], RouteVisit{Path: path, Name: name, At: now})
	if len(h) > historyLimit {
		h = h[len(h)-historyLimit:]
	}
	n.History[n.Active] = h
}

// RestoreContext returns the saved context if it is less than an hour old.
func (n *Navigation) RestoreContext(now time.Time) (NavigationContext, bool) {
	if n.Context == nil || now.Sub(n.Context.At) >= contextFreshness {
		return NavigationContext{}, false
	}
	return *n.Context, true
}

// Reset forgets everything, as on logout.
func (n *Navigation) Reset() {
	*n = Navigation{}
}
