package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// Route is one method/path pair served by a handler
type Route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

// Group is a declarative set of routes mounted under one prefix of the
// versioned API, with optional group middleware
type Group struct {
	Name       string
	Prefix     string
	Middleware []gin.HandlerFunc
	Routes     []Route
}

// NewGroup creates an empty route group
func NewGroup(name, prefix string) *Group {
	return &Group{Name: name, Prefix: prefix}
}

// Use appends group middleware
func (g *Group) Use(mw ...gin.HandlerFunc) *Group {
	g.Middleware = append(g.Middleware, mw...)
	return g
}

// Handle adds a route for every listed method
func (g *Group) Handle(p string, h gin.HandlerFunc, methods ...string) *Group {
	for _, m := range methods {
		g.Routes = append(g.Routes, Route{Method: m, Path: p, Handler: h})
	}
	return g
}

// GET adds a GET route
func (g *Group) GET(p string, h gin.HandlerFunc) *Group {
	return g.Handle(p, h, http.MethodGet)
}

// Paths lists the full paths of the group's routes relative to base,
// in registration order
func (g *Group) Paths(base string) []string {
	out := make([]string, 0, len(g.Routes))
	for _, r := range g.Routes {
		out = append(out, r.Method+" "+path.Join(base, g.Prefix, r.Path))
	}
	return out
}

func (g *Group) mount(rg *gin.RouterGroup) {
	sub := rg.Group(g.Prefix, g.Middleware...)
	for _, r := range g.Routes {
		sub.Handle(r.Method, r.Path, r.Handler)
	}
}

// API mounts route groups under /api/{version}
type API struct {
	version string
	groups  []*Group
}

// NewAPI creates an API for the given version, e.g. "v1"
func NewAPI(version string) *API {
	if version == "" {
		version = "v1"
	}
	return &API{version: version}
}

// Base returns the versioned path prefix
func (a *API) Base() string {
	return "/api/" + a.version
}

// Add queues groups for mounting
func (a *API) Add(groups ...*Group) *API {
	a.groups = append(a.groups, groups...)
	return a
}

// Mount registers every queued group on engine
func (a *API) Mount(engine *gin.Engine) {
	api := engine.Group(a.Base())
	for _, g := range a.groups {
		g.mount(api)
	}
}
