package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/ssh"

	"github.com/openfroyo/vnflcm/pkg/engine"
)

// ValidationErrors is the list of findings returned by ToBatch.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

type statementProps interface {
	statement(fqn engine.FQN) engine.Statement
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("ssh_public_key", func(fl validator.FieldLevel) bool {
		_, _, _, _, err := ssh.ParseAuthorizedKey([]byte(fl.Field().String()))
		return err == nil
	})
	return v
}

// ToBatch converts the node templates of doc into an ordered batch. Property
// constraints not expressible in the CUE schemas are checked here: port
// ranges, sizing bounds, addresses and VNF public keys. All findings are
// collected and returned as a validation error wrapping ValidationErrors.
func ToBatch(doc *Document) (engine.Batch, error) {
	batch := make(engine.Batch, 0, len(doc.Templates))
	var findings ValidationErrors

	for _, tmpl := range doc.Templates {
		st, errs := toStatement(tmpl)
		if len(errs) > 0 {
			findings = append(findings, errs...)
			continue
		}
		batch = append(batch, st)
	}

	if len(findings) > 0 {
		return nil, engine.NewValidationError(
			fmt.Sprintf("descriptor has %d findings", len(findings)), findings,
		).WithCode(engine.ErrCodeValidation)
	}
	return batch, nil
}

func toStatement(tmpl NodeTemplate) (engine.Statement, []ValidationError) {
	path := templatePath(tmpl.FQN)

	fqn, err := engine.ParseFQN(tmpl.FQN)
	if err != nil {
		return nil, []ValidationError{{Path: path, Message: err.Error()}}
	}

	var props statementProps
	switch engine.EntityType(tmpl.Kind()) {
	case engine.EntityVNF:
		props = &vnfProps{}
	case engine.EntityTenant:
		props = &tenantProps{}
	case engine.EntityNetwork:
		props = &networkProps{}
	case engine.EntityExternalComponent:
		props = &externalComponentProps{}
	case engine.EntityInternalComponent:
		props = &internalComponentProps{}
	case engine.EntityNode:
		props = &nodeProps{}
	default:
		return nil, []ValidationError{{Path: path, Message: fmt.Sprintf("unknown type: %s", tmpl.Kind())}}
	}

	if tmpl.Properties == nil {
		return nil, []ValidationError{{Path: path, Message: "'properties' is a required property"}}
	}

	raw, err := json.Marshal(tmpl.Properties)
	if err != nil {
		return nil, []ValidationError{{Path: path + "/properties", Message: err.Error()}}
	}
	if err := json.Unmarshal(raw, props); err != nil {
		return nil, []ValidationError{{Path: path + "/properties", Message: err.Error()}}
	}

	if err := validate.Struct(props); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, []ValidationError{{Path: path + "/properties", Message: err.Error()}}
		}
		findings := make([]ValidationError, 0, len(verrs))
		for _, fe := range verrs {
			findings = append(findings, ValidationError{
				Path:    path + "/properties" + fieldPath(fe.Namespace()),
				Message: fieldMessage(fe),
			})
		}
		return nil, findings
	}

	return props.statement(fqn), nil
}

// fieldPath turns a validator namespace such as
// "internalComponentProps.workloadProps.services[0].ports[1].max" into
// "/services[0]/ports[1]/max".
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	var b strings.Builder
	for i, p := range parts {
		if i == 0 || strings.HasSuffix(p, "Props") {
			continue
		}
		b.WriteString("/")
		b.WriteString(p)
	}
	return b.String()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("'%s' is a required property", fe.Field())
	case "ssh_public_key":
		return "not a valid SSH public key"
	case "gtefield":
		return fmt.Sprintf("%v is less than %s", fe.Value(), strings.ToLower(fe.Param()))
	case "oneof":
		return fmt.Sprintf("%v is not one of [%s]", fe.Value(), fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%v failed %s=%s", fe.Value(), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%v failed %s", fe.Value(), fe.Tag())
	}
}
