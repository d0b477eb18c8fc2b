// Package routes declares method-qualified routes in nested prefix groups
// and registers them on a ServeMux.
package routes

import "net/http"

// Group holds routes under a common prefix. Children inherit the prefix,
// which may contain path wildcards such as "/{id}".
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Register adds every route in groups to mux as "METHOD prefix+pattern".
func Register(mux *http.ServeMux, groups ...Group) {
	for _, group := range groups {
		group.register(mux, "")
	}
}

func (g Group) register(mux *http.ServeMux, parent string) {
	prefix := parent + g.Prefix
	for _, route := range g.Routes {
		mux.HandleFunc(route.pattern(prefix), route.Handler)
	}
	for _, child := range g.Children {
		child.register(mux, prefix)
	}
}
