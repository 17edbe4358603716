// Package registry defines the static mapping from route-type names to
// upstream dataset locations
package registry

import "sort"

// Kind distinguishes datasets stored as a single upstream file from
// datasets stored as a directory of per-item files.
type Kind int

const (
	// KindSingleFile means the whole dataset lives in one JSON file.
	KindSingleFile Kind = iota

	// KindCollection means the dataset is a directory with one JSON file
	// per item.
	KindCollection
)

// RouteType describes one dataset category served by the API
type RouteType struct {
	// Name is the canonical, externally visible type name.
	Name string

	Kind Kind

	// Path is the upstream location relative to the content base: the
	// filename (without the .json extension) for single-file types, the
	// directory for collections.
	Path string
}

// IsCollection reports whether the type is addressed per item
func (rt RouteType) IsCollection() bool {
	return rt.Kind == KindCollection
}

// Registry resolves externally visible type names to route types.
// It is assembled once at startup and never mutated afterwards; handlers
// receive it as a dependency rather than reading package globals.
type Registry struct {
	types   map[string]RouteType
	aliases map[string]string
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		types:   make(map[string]RouteType),
		aliases: make(map[string]string),
	}
}

// Add registers a route type under its canonical name
func (r *Registry) Add(rt RouteType) {
	r.types[rt.Name] = rt
}

// Alias maps an alternate spelling to a canonical name. The alias never
// becomes a distinct type; it resolves to the canonical entry.
func (r *Registry) Alias(alias, canonical string) {
	r.aliases[alias] = canonical
}

// Resolve returns the route type for name. Matching is exact and
// case-sensitive, first against canonical names, then the alias table.
func (r *Registry) Resolve(name string) (RouteType, bool) {
	if rt, ok := r.types[name]; ok {
		return rt, true
	}
	if canonical, ok := r.aliases[name]; ok {
		rt, ok := r.types[canonical]
		return rt, ok
	}
	return RouteType{}, false
}

// SingleFileNames returns the canonical single-file type names, sorted
func (r *Registry) SingleFileNames() []string {
	return r.names(KindSingleFile)
}

// CollectionNames returns the canonical collection type names, sorted
func (r *Registry) CollectionNames() []string {
	return r.names(KindCollection)
}

func (r *Registry) names(kind Kind) []string {
	names := make([]string, 0, len(r.types))
	for name, rt := range r.types {
		if rt.Kind == kind {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Default returns the registry for the gamedata repository layout
func Default() *Registry {
	r := New()

	r.Add(RouteType{Name: "bots", Kind: KindSingleFile, Path: "bots"})
	r.Add(RouteType{Name: "maps", Kind: KindSingleFile, Path: "maps"})
	r.Add(RouteType{Name: "projects", Kind: KindSingleFile, Path: "projects"})
	r.Add(RouteType{Name: "skillNodes", Kind: KindSingleFile, Path: "skillNodes"})
	r.Add(RouteType{Name: "trades", Kind: KindSingleFile, Path: "trades"})

	r.Add(RouteType{Name: "items", Kind: KindCollection, Path: "items"})
	r.Add(RouteType{Name: "hideout", Kind: KindCollection, Path: "hideout"})
	r.Add(RouteType{Name: "quests", Kind: KindCollection, Path: "quests"})
	r.Add(RouteType{Name: "map-events", Kind: KindCollection, Path: "map-events"})

	r.Alias("skill-nodes", "skillNodes")

	return r
}
