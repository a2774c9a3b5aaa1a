package descriptor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// StdinPath reads a descriptor from standard input.
const StdinPath = "-"

// Loader reads descriptors from YAML and CUE files.
type Loader struct {
	ctx   *cue.Context
	stdin io.Reader
}

// NewLoader creates a new loader.
func NewLoader() *Loader {
	return &Loader{
		ctx:   cuecontext.New(),
		stdin: os.Stdin,
	}
}

// WithStdin replaces the reader used for StdinPath.
func (l *Loader) WithStdin(r io.Reader) *Loader {
	l.stdin = r
	return l
}

// Load reads every path and concatenates the node templates in path order.
// The header fields of the first file win.
func Load(ctx context.Context, paths ...string) (*Document, error) {
	return NewLoader().Load(ctx, paths...)
}

// Load reads every path and concatenates the node templates in path order.
// Directories are expanded to the descriptor files they contain.
func (l *Loader) Load(ctx context.Context, paths ...string) (*Document, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no descriptor paths given")
	}

	files, err := expandPaths(paths)
	if err != nil {
		return nil, err
	}

	merged := &Document{}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := l.LoadFile(file)
		if err != nil {
			return nil, err
		}
		merged.merge(doc)
	}

	return merged, nil
}

// LoadFile reads a single descriptor file. The format follows the file
// extension; anything not ending in .cue is read as YAML.
func (l *Loader) LoadFile(path string) (*Document, error) {
	var (
		content []byte
		err     error
	)
	if path == StdinPath {
		content, err = io.ReadAll(l.stdin)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor %s: %w", path, err)
	}

	if strings.HasSuffix(path, ".cue") {
		return l.ParseCUE(path, content)
	}
	return ParseYAML(path, content)
}

// ParseYAML decodes a YAML descriptor, preserving node template order.
func ParseYAML(source string, content []byte) (*Document, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor %s: %w", source, err)
	}

	var envelope struct {
		Version          string                 `yaml:"tosca_definitions_version"`
		Description      string                 `yaml:"description"`
		Metadata         map[string]interface{} `yaml:"metadata"`
		TopologyTemplate struct {
			NodeTemplates yaml.Node `yaml:"node_templates"`
		} `yaml:"topology_template"`
	}
	if err := yaml.Unmarshal(content, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor %s: %w", source, err)
	}

	doc := &Document{
		Version:     envelope.Version,
		Description: envelope.Description,
		Metadata:    envelope.Metadata,
		Sources:     []string{source},
		headers:     []header{{source: source, raw: raw}},
	}

	node := envelope.TopologyTemplate.NodeTemplates
	if node.Kind == 0 || node.Tag == "!!null" {
		return doc, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: %s: expected a mapping, line %d", source, NodeTemplatesPath, node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		var tmpl struct {
			Type       string                 `yaml:"type"`
			Properties map[string]interface{} `yaml:"properties"`
		}
		if err := node.Content[i+1].Decode(&tmpl); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", source, templatePath(node.Content[i].Value), err)
		}
		doc.Templates = append(doc.Templates, NodeTemplate{
			FQN:        node.Content[i].Value,
			Type:       tmpl.Type,
			Properties: tmpl.Properties,
		})
	}

	return doc, nil
}

// ParseCUE evaluates a CUE descriptor. Struct fields iterate in declaration
// order, so node templates keep their source order.
func (l *Loader) ParseCUE(source string, content []byte) (*Document, error) {
	val := l.ctx.CompileBytes(content, cue.Filename(source))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile descriptor %s: %w", source, err)
	}

	var raw map[string]interface{}
	if err := val.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor %s: %w", source, err)
	}

	doc := &Document{
		Sources: []string{source},
		headers: []header{{source: source, raw: raw}},
	}
	if v := val.LookupPath(cue.ParsePath("tosca_definitions_version")); v.Exists() {
		doc.Version, _ = v.String()
	}
	if v := val.LookupPath(cue.ParsePath("description")); v.Exists() {
		doc.Description, _ = v.String()
	}
	if m, ok := raw["metadata"].(map[string]interface{}); ok {
		doc.Metadata = m
	}

	templates := val.LookupPath(cue.ParsePath("topology_template.node_templates"))
	if !templates.Exists() || templates.IsNull() {
		return doc, nil
	}

	iter, err := templates.Fields()
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", source, NodeTemplatesPath, err)
	}
	for iter.Next() {
		fqn := iter.Selector().Unquoted()

		var tmpl struct {
			Type       string                 `json:"type"`
			Properties map[string]interface{} `json:"properties"`
		}
		if err := iter.Value().Decode(&tmpl); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", source, templatePath(fqn), err)
		}
		doc.Templates = append(doc.Templates, NodeTemplate{
			FQN:        fqn,
			Type:       tmpl.Type,
			Properties: tmpl.Properties,
		})
	}

	return doc, nil
}

func (d *Document) merge(other *Document) {
	if len(d.Sources) == 0 {
		d.Version = other.Version
		d.Description = other.Description
		d.Metadata = other.Metadata
	}
	d.Templates = append(d.Templates, other.Templates...)
	d.Sources = append(d.Sources, other.Sources...)
	d.headers = append(d.headers, other.headers...)
}

// expandPaths replaces directories with the descriptor files they contain,
// sorted by name.
func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		if path == StdinPath {
			files = append(files, path)
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat descriptor %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !IsDescriptorFile(entry.Name()) {
				continue
			}
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	return files, nil
}

// IsDescriptorFile reports whether name has a descriptor extension.
func IsDescriptorFile(name string) bool {
	switch filepath.Ext(name) {
	case ".yaml", ".yml", ".cue":
		return true
	default:
		return false
	}
}
