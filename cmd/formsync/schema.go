package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formsync/pkg/schema"
	"github.com/goliatone/go-formsync/pkg/schema/openapi"
)

const schemaFetchTimeout = 30 * time.Second

var errSchemaSelector = errors.New("use either --operation or --component, not both")

func schemaFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "schema",
			Aliases:  []string{"s"},
			Usage:    "OpenAPI document or JSON/YAML schema (path or URL)",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "operation",
			Aliases: []string{"o"},
			Usage:   "operationId whose request body describes the form",
		},
		&cli.StringFlag{
			Name:  "component",
			Usage: "components.schemas entry describing the form",
		},
	}
}

// loadSchema reads the --schema source. With --operation or --component the
// source is an OpenAPI document; otherwise it is a standalone schema.
func loadSchema(ctx context.Context, cmd *cli.Command, logger *zap.Logger) (*schema.Node, error) {
	operation, component := cmd.String("operation"), cmd.String("component")
	if operation != "" && component != "" {
		return nil, errSchemaSelector
	}

	src, err := openapi.ParseSource(cmd.String("schema"))
	if err != nil {
		return nil, err
	}
	data, err := openapi.NewLoader(openapi.WithHTTPFallback(schemaFetchTimeout)).Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", src.Location, err)
	}

	converter := openapi.NewConverter(openapi.WithLogger(logger))
	if operation == "" && component == "" {
		return converter.ParseSchema(data)
	}
	doc, err := openapi.LoadDocument(ctx, data)
	if err != nil {
		return nil, err
	}
	if operation != "" {
		return converter.RequestSchema(doc, operation)
	}
	return converter.ComponentSchema(doc, component)
}

// readValues decodes a JSON or YAML object from path, or stdin for "-".
func readValues(path string) (map[string]any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
