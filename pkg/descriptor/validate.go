package descriptor

import (
	"fmt"
	"strings"
)

// Validate checks every source header against the #Descriptor schema and the
// properties of every node template against the schema of its kind.
// Findings are reported in document order.
func (sr *SchemaRegistry) Validate(doc *Document) ([]ValidationError, error) {
	var findings []ValidationError

	for _, h := range doc.headers {
		errs, err := sr.Check(DescriptorSchema, h.raw)
		if err != nil {
			return nil, err
		}
		for _, e := range errs {
			e.Source = h.source
			findings = append(findings, e)
		}
	}

	for _, tmpl := range doc.Templates {
		path := templatePath(tmpl.FQN)

		if tmpl.Type == "" {
			findings = append(findings, ValidationError{Path: path, Message: "'type' is a required property"})
			continue
		}

		kind := tmpl.Kind()
		if _, ok := sr.GetSchema(kind); !ok || kind == DescriptorSchema {
			findings = append(findings, ValidationError{Path: path, Message: fmt.Sprintf("unknown type: %s", kind)})
			continue
		}

		if tmpl.Properties == nil {
			findings = append(findings, ValidationError{Path: path, Message: "'properties' is a required property"})
			continue
		}

		errs, err := sr.Check(kind, tmpl.Properties)
		if err != nil {
			return nil, err
		}
		for _, e := range errs {
			e.Path = path + "/properties" + strings.TrimSuffix(e.Path, "/")
			findings = append(findings, e)
		}
	}

	return findings, nil
}

// Validate checks doc against the built-in schemas.
func Validate(doc *Document) ([]ValidationError, error) {
	return NewSchemaRegistry().Validate(doc)
}
