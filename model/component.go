package model

// Component is a named reusable unit of document structure. Its state
// map holds scalars and nested nodes, including the component's slots.
type Component struct {
	Name  string
	State *MapModel
}

func NewComponent(name string, state *MapModel) *Component {
	if state == nil {
		state = NewMapModel()
	}
	return &Component{Name: name, State: state}
}

// ComponentFactory rebuilds a component of a given name around the
// provided state map. Factories must not substitute a different state
// map, or the component will detach from its shared counterpart.
type ComponentFactory func(state *MapModel) (*Component, error)

// Formatter resolves a formatting attribute by name. Encode and Decode
// translate format values across the shared-document boundary; nil means
// identity.
type Formatter struct {
	Name   string
	Encode func(any) any
	Decode func(any) any
}

// Registry resolves component factories and formatters by name.
type Registry struct {
	components map[string]ComponentFactory
	formatters map[string]Formatter
}

func NewRegistry() *Registry {
	return &Registry{
		components: map[string]ComponentFactory{},
		formatters: map[string]Formatter{},
	}
}

func (r *Registry) RegisterComponent(name string, f ComponentFactory) {
	r.components[name] = f
}

func (r *Registry) Component(name string) (ComponentFactory, bool) {
	f, ok := r.components[name]
	return f, ok
}

func (r *Registry) RegisterFormatter(f Formatter) {
	r.formatters[f.Name] = f
}

func (r *Registry) Formatter(name string) (Formatter, bool) {
	f, ok := r.formatters[name]
	return f, ok
}
