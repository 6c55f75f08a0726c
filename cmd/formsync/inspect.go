package main

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-formsync/pkg/defaults"
	"github.com/goliatone/go-formsync/pkg/model"
	"github.com/goliatone/go-formsync/pkg/schema"
	"github.com/goliatone/go-formsync/pkg/validation"
)

var errValidationFailed = errors.New("validation failed")

func analyzeCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Print the field definitions derived from a schema",
		Flags: schemaFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			node, err := loadSchema(ctx, cmd, rt.logger)
			if err != nil {
				return err
			}
			analysis, err := model.NewAnalyzer(model.WithLogger(rt.logger)).Analyze(node)
			if err != nil {
				return err
			}
			return writeJSON(cmd.Root().Writer, analysis)
		},
	}
}

func defaultsCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "defaults",
		Usage: "Print the initial values synthesized from a schema",
		Flags: schemaFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			node, err := loadSchema(ctx, cmd, rt.logger)
			if err != nil {
				return err
			}
			return writeJSON(cmd.Root().Writer, defaults.Synthesize(node))
		},
	}
}

// validationReport adds the field and form-level grouping of the errors.
type validationReport struct {
	validation.Result
	Mapping *validation.ErrorMapping `json:"mapping,omitempty"`
}

func validateCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Validate a JSON or YAML document against a schema",
		Flags: append(schemaFlags(),
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "document to validate, - for stdin",
				Required: true,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			node, err := loadSchema(ctx, cmd, rt.logger)
			if err != nil {
				return err
			}
			values, err := readValues(cmd.String("data"))
			if err != nil {
				return err
			}
			result := validation.Validate(node, values)
			report := validationReport{Result: result}
			if !result.Success {
				mapping := result.Mapping(schema.Resolve(node).Node.Keys())
				report.Mapping = &mapping
			}
			if err := writeJSON(cmd.Root().Writer, report); err != nil {
				return err
			}
			if !result.Success {
				return errValidationFailed
			}
			return nil
		},
	}
}
