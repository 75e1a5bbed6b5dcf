package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// Registrar mounts its routes on a gin group
type Registrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts registrars either at the engine root (health, webhooks) or
// under the versioned /api prefix used by the back office
type Router struct {
	engine    *gin.Engine
	version   string
	root      []Registrar
	versioned []Registrar
}

// Option configures a Router
type Option func(*Router)

// WithAPIVersion sets the version segment of the API prefix
func WithAPIVersion(version string) Option {
	return func(r *Router) {
		r.version = version
	}
}

// NewRouter creates a Router serving /api/v1 unless WithAPIVersion says otherwise
func NewRouter(engine *gin.Engine, opts ...Option) *Router {
	r := &Router{engine: engine, version: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// API queues registrars for the versioned prefix
func (r *Router) API(registrars ...Registrar) *Router {
	r.versioned = append(r.versioned, registrars...)
	return r
}

// Root queues registrars mounted outside the versioned prefix
func (r *Router) Root(registrars ...Registrar) *Router {
	r.root = append(r.root, registrars...)
	return r
}

// BasePath returns the versioned prefix, e.g. /api/v1
func (r *Router) BasePath() string {
	return path.Join("/api", r.version)
}

// Setup mounts every queued registrar on the engine
func (r *Router) Setup() {
	for _, reg := range r.root {
		reg.RegisterRoutes(&r.engine.RouterGroup)
	}
	api := r.engine.Group(r.BasePath())
	for _, reg := range r.versioned {
		reg.RegisterRoutes(api)
	}
}

// ---------------------------------------------------------------------------
// Group
// ---------------------------------------------------------------------------

// Group collects the routes of one resource so they can be declared before
// the engine exists
type Group struct {
	name       string
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
	children   []*Group
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

var _ Registrar = (*Group)(nil)

// NewGroup creates a group mounted at prefix
func NewGroup(name, prefix string) *Group {
	return &Group{name: name, prefix: prefix}
}

// Name returns the group name
func (g *Group) Name() string { return g.name }

// Prefix returns the group prefix
func (g *Group) Prefix() string { return g.prefix }

// Use adds middleware running before every route of the group and its children
func (g *Group) Use(middleware ...gin.HandlerFunc) *Group {
	g.middleware = append(g.middleware, middleware...)
	return g
}

// Handle declares a route
func (g *Group) Handle(method, relativePath string, handlers ...gin.HandlerFunc) *Group {
	g.routes = append(g.routes, route{method: method, path: relativePath, handlers: handlers})
	return g
}

// GET declares a GET route
func (g *Group) GET(relativePath string, handlers ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodGet, relativePath, handlers...)
}

// POST declares a POST route
func (g *Group) POST(relativePath string, handlers ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodPost, relativePath, handlers...)
}

// Group creates a child group below this one
func (g *Group) Group(name, prefix string) *Group {
	child := NewGroup(name, prefix)
	g.children = append(g.children, child)
	return child
}

// RegisterRoutes mounts the group, its routes and its children on rg
func (g *Group) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(g.prefix, g.middleware...)
	for _, rt := range g.routes {
		group.Handle(rt.method, rt.path, rt.handlers...)
	}
	for _, child := range g.children {
		child.RegisterRoutes(group)
	}
}
