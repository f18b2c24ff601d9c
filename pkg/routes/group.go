package routes

import "net/http"

// Middleware wraps a handler.
type Middleware = func(http.Handler) http.Handler

// Group organizes routes under a common prefix. Middleware applies to the
// group's routes and is inherited by its children, outermost first.
type Group struct {
	Prefix     string
	Middleware []Middleware
	Routes     []Route
	Children   []Group
}

// Register adds all routes from the given groups to the mux.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, group := range groups {
		walk("", nil, group, func(pattern string, h http.Handler) {
			mux.Handle(pattern, h)
		})
	}
}

// Patterns returns the method-qualified pattern of every route in groups,
// in declaration order.
func Patterns(groups ...Group) []string {
	var patterns []string
	for _, group := range groups {
		walk("", nil, group, func(pattern string, _ http.Handler) {
			patterns = append(patterns, pattern)
		})
	}
	return patterns
}

func walk(parentPrefix string, inherited []Middleware, group Group, visit func(string, http.Handler)) {
	prefix := parentPrefix + group.Prefix
	stack := append(append([]Middleware{}, inherited...), group.Middleware...)

	for _, route := range group.Routes {
		var h http.Handler = route.Handler
		for i := len(stack) - 1; i >= 0; i-- {
			h = stack[i](h)
		}
		visit(route.Method+" "+prefix+route.Pattern, h)
	}
	for _, child := range group.Children {
		walk(prefix, stack, child, visit)
	}
}
