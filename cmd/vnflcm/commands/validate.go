package commands

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vnflcm/pkg/descriptor"
	"github.com/openfroyo/vnflcm/pkg/engine"
)

func newValidateCommand() *cobra.Command {
	var schemaOnly bool

	cmd := &cobra.Command{
		Use:   "validate [descriptor...]",
		Short: "Validate VNF descriptors",
		Long: `Validate descriptors against the descriptor schemas and the statement
constraints, then apply them to an empty model to catch missing parents,
sizing violations and unknown references.

Descriptors are read from standard input when no path is given. Each
finding is printed on its own line; the exit status is 2 when there are
findings.`,
		Example: `  # Validate a descriptor
  vnflcm validate vnf.yaml

  # Validate from stdin, schema checks only
  cat vnf.yaml | vnflcm validate --schema-only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{descriptor.StdinPath}
			}
			log.Debug().Strs("paths", args).Msg("Validating descriptors")

			doc, err := descriptor.NewLoader().WithStdin(cmd.InOrStdin()).Load(cmd.Context(), args...)
			if err != nil {
				return err
			}

			findings, err := descriptor.Validate(doc)
			if err != nil {
				return err
			}

			var consistent *bool
			if len(findings) == 0 && !schemaOnly {
				findings, consistent = checkStatements(doc)
			}

			if jsonOutput {
				if err := printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"valid":      len(findings) == 0,
					"findings":   findings,
					"consistent": consistent,
				}); err != nil {
					return err
				}
			} else {
				for _, f := range findings {
					fmt.Fprintln(cmd.OutOrStdout(), f.Error())
				}
				if consistent != nil && !*consistent {
					fmt.Fprintln(cmd.OutOrStdout(), "model is inconsistent: unresolved dependencies or links")
				}
			}

			if len(findings) > 0 {
				return fmt.Errorf("%w: %d findings", errInvalid, len(findings))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&schemaOnly, "schema-only", false, "only check the descriptor schemas")

	return cmd
}

// checkStatements converts doc into a batch and applies it to an empty
// model. It returns the findings and, when the batch applied, whether the
// model is consistent.
func checkStatements(doc *descriptor.Document) ([]descriptor.ValidationError, *bool) {
	batch, err := descriptor.ToBatch(doc)
	if err != nil {
		var errs descriptor.ValidationErrors
		if errors.As(err, &errs) {
			return errs, nil
		}
		return []descriptor.ValidationError{{Path: "/", Message: err.Error()}}, nil
	}

	model := engine.NewModel(contextOrDefault())
	if err := model.Apply(batch); err != nil {
		path := "/"
		var ee *engine.EngineError
		if errors.As(err, &ee) && ee.Resource != "" {
			path = "/topology_template/node_templates/" + ee.Resource
		}
		return []descriptor.ValidationError{{Path: path, Message: err.Error()}}, nil
	}

	return nil, &model.Consistent
}

func contextOrDefault() string {
	if contextName != "" {
		return contextName
	}
	return "default"
}
