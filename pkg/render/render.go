package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Built-in renderer names.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Renderer turns a model, delta or plan into text. name selects the
// template for renderers that hold more than one.
type Renderer interface {
	Render(ctx context.Context, name string, data interface{}) ([]byte, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, name string, data interface{}) ([]byte, error)

// Render implements Renderer.
func (f RendererFunc) Render(ctx context.Context, name string, data interface{}) ([]byte, error) {
	return f(ctx, name, data)
}

// YAML dumps data as block-style YAML.
var YAML = RendererFunc(func(_ context.Context, _ string, data interface{}) ([]byte, error) {
	return marshalYAML(data)
})

// JSON dumps data as indented JSON.
var JSON = RendererFunc(func(_ context.Context, _ string, data interface{}) ([]byte, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode json: %w", err)
	}
	return append(out, '\n'), nil
})

// Registry maps names to renderers. Names not registered explicitly fall
// through to the Starlark templates, if any.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
	templates *StarlarkRenderer
}

// NewRegistry creates a registry holding the yaml and json renderers.
// templates may be nil.
func NewRegistry(templates *StarlarkRenderer) *Registry {
	return &Registry{
		renderers: map[string]Renderer{
			FormatYAML: YAML,
			FormatJSON: JSON,
		},
		templates: templates,
	}
}

// Register adds or replaces a renderer.
func (r *Registry) Register(name string, renderer Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[name] = renderer
}

// Names lists every renderer and template name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.renderers))
	for name := range r.renderers {
		names = append(names, name)
	}
	r.mu.RUnlock()

	if r.templates != nil {
		if tmpls, err := r.templates.Templates(); err == nil {
			names = append(names, tmpls...)
		}
	}
	sort.Strings(names)
	return names
}

// Render implements Renderer.
func (r *Registry) Render(ctx context.Context, name string, data interface{}) ([]byte, error) {
	r.mu.RLock()
	renderer, ok := r.renderers[name]
	r.mu.RUnlock()

	if ok {
		return renderer.Render(ctx, name, data)
	}
	if r.templates != nil && r.templates.Has(name) {
		return r.templates.Render(ctx, name, data)
	}
	return nil, fmt.Errorf("unknown template: %s", name)
}

// marshalYAML encodes data with two-space indentation. Values are first
// passed through JSON so json tags decide field names and omissions.
func marshalYAML(data interface{}) ([]byte, error) {
	generic, err := toGeneric(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(yamlNumbers(generic)); err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// yamlNumbers replaces json.Number values with ints or floats.
func yamlNumbers(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case []interface{}:
		for i := range val {
			val[i] = yamlNumbers(val[i])
		}
		return val
	case map[string]interface{}:
		for k := range val {
			val[k] = yamlNumbers(val[k])
		}
		return val
	default:
		return v
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
