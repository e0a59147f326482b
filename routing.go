package confhttpd

import (
	"fmt"
	"sort"
	"strings"
)

// route is one entry in a Registry's routing table: a path prefix bound to a
// handler instance already configured from its `location` block.
type route struct {
	prefix  string
	handler Handler
}

// Registry is the routing table built once from a parsed configuration tree
// and treated as immutable for the life of the process.
type Registry struct {
	routes   []route
	notFound Handler
}

// BuildRegistry walks the top-level statements of root looking for
// `location <prefix> <HandlerType> { ... }` statements, validates each, and
// returns the resulting Registry. Any validation failure aborts with an
// error; the caller must not start the server on error.
func BuildRegistry(root *Block) (*Registry, error) {
	reg := &Registry{notFound: &NotFoundHandler{}}
	seen := map[string]bool{}

	for _, st := range root.Statements {
		if len(st.Tokens) == 0 || st.Tokens[0] != "location" {
			continue
		}

		if len(st.Tokens) != 3 {
			return nil, &configError{msg: fmt.Sprintf(
				"confhttpd: malformed location statement %q: expected \"location <prefix> <HandlerType>\"",
				strings.Join(st.Tokens, " "))}
		}
		if st.Child == nil {
			return nil, &configError{msg: fmt.Sprintf(
				"confhttpd: location %q is missing its { ... } block", st.Tokens[1])}
		}

		prefix := st.Tokens[1]
		handlerType := st.Tokens[2]

		if err := validatePrefix(prefix); err != nil {
			return nil, err
		}
		if seen[prefix] {
			return nil, &configError{msg: fmt.Sprintf("confhttpd: duplicate location prefix %q", prefix)}
		}

		h, ok := newHandlerInstance(handlerType)
		if !ok {
			return nil, &configError{msg: fmt.Sprintf("confhttpd: unknown handler type %q", handlerType)}
		}
		if err := h.Configure(prefix, st.Child); err != nil {
			return nil, err
		}

		seen[prefix] = true
		reg.routes = append(reg.routes, route{prefix: prefix, handler: h})
	}

	sort.SliceStable(reg.routes, func(i, j int) bool {
		return len(reg.routes[i].prefix) > len(reg.routes[j].prefix)
	})

	return reg, nil
}

func validatePrefix(prefix string) error {
	if prefix == "" || !strings.HasPrefix(prefix, "/") {
		return &configError{msg: fmt.Sprintf("confhttpd: location prefix %q must begin with \"/\"", prefix)}
	}
	if prefix != "/" && strings.HasSuffix(prefix, "/") {
		return &configError{msg: fmt.Sprintf("confhttpd: location prefix %q must not end with \"/\" unless it is \"/\"", prefix)}
	}
	return nil
}

// Match returns the handler bound to the longest configured prefix of uri's
// path component, or a NotFoundHandler if none match.
func (r *Registry) Match(uri string) Handler {
	path := requestPath(uri)
	for _, rt := range r.routes {
		if strings.HasPrefix(path, rt.prefix) {
			return rt.handler
		}
	}
	return r.notFound
}
