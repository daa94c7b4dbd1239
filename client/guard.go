package client

import (
	"strings"

	auth "github.com/goliatone/go-shop-auth"
)

// Decision is the guard verdict for a navigation attempt.
type Decision struct {
	Allowed    bool
	RedirectTo string
}

// Allow is the pass-through decision.
var Allow = Decision{Allowed: true}

// Redirect builds a redirect decision.
func Redirect(target string) Decision {
	return Decision{RedirectTo: target}
}

// GuardConfig names the route layout the guard enforces.
type GuardConfig struct {
	LoginPath    string
	RegisterPath string
	AdminPrefix  string
	ShopPrefix   string
	AdminHome    string
	UserHome     string
}

// DefaultGuardConfig matches the storefront layout.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		LoginPath:    "/login",
		RegisterPath: "/register",
		AdminPrefix:  "/admin",
		ShopPrefix:   "/shop",
		AdminHome:    "/admin",
		UserHome:     "/shop",
	}
}

// Guard decides route access from authentication state and role. It is
// pure: no I/O, no clock, same inputs same verdict.
type Guard struct {
	cfg GuardConfig
}

func NewGuard(cfg GuardConfig) *Guard {
	return &Guard{cfg: cfg}
}

// Decide evaluates the access rules in order:
//
//  1. unauthenticated visitors may only see the login and register pages
//  2. authenticated visitors are bounced from those pages to their home
//  3. non-admins cannot enter the admin area
//  4. admins are kept out of the shop area
//  5. everything else passes
func (g *Guard) Decide(authenticated bool, role auth.Role, path string) Decision {
	public := path == g.cfg.LoginPath || path == g.cfg.RegisterPath

	if !authenticated {
		if public {
			return Allow
		}
		return Redirect(g.cfg.LoginPath)
	}

	if public {
		return Redirect(g.home(role))
	}

	if role != auth.RoleAdmin && g.under(path, g.cfg.AdminPrefix) {
		return Redirect(g.cfg.UserHome)
	}

	if role == auth.RoleAdmin && g.under(path, g.cfg.ShopPrefix) {
		return Redirect(g.cfg.AdminHome)
	}

	return Allow
}

func (g *Guard) home(role auth.Role) string {
	if role == auth.RoleAdmin {
		return g.cfg.AdminHome
	}
	return g.cfg.UserHome
}

func (g *Guard) under(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
