package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/graph"
	"github.com/syssam/relgraph/schema"
)

// definitionRow is one resolved relationship as printed by the schema command.
type definitionRow struct {
	Type        string `json:"type"`
	Field       string `json:"field"`
	Kind        string `json:"kind"`
	Target      string `json:"target"`
	Inverse     string `json:"inverse"`
	InverseKind string `json:"inverseKind"`
	Async       bool   `json:"async"`
	Polymorphic bool   `json:"polymorphic"`
}

func newSchemaCmd(a *app) *cobra.Command {
	var (
		path   string
		typ    string
		output string
	)
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the resolved relationship definitions of a schema file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := schema.LoadFile(path)
			if err != nil {
				return err
			}
			rows, err := resolveAll(reg, typ)
			if err != nil {
				return err
			}
			a.log.Debug("schema resolved", "path", path, "definitions", len(rows))
			return writeDefinitions(cmd.OutOrStdout(), rows, output)
		},
	}
	cmd.Flags().StringVarP(&path, "schema", "s", "", "schema file (.yaml, .yml, .graphql, .gql)")
	cmd.Flags().StringVarP(&typ, "type", "t", "", "only print relationships of this resource type")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

// resolveAll resolves every declared relationship of reg, plus the implicit
// definitions synthesized for relationships without an inverse.
func resolveAll(reg *schema.Registry, only string) ([]definitionRow, error) {
	if only != "" {
		only = schema.NormalizeType(only)
		if !reg.HasResourceType(only) {
			return nil, relgraph.NewUnknownTypeError(only)
		}
	}
	r := graph.NewResolver(reg)
	var (
		rows []definitionRow
		errs []error
	)
	for _, typ := range reg.Types() {
		if only != "" && typ != only {
			continue
		}
		for _, d := range reg.Relationships(typ) {
			def, err := r.Resolve(typ, d.Name)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			rows = append(rows, rowOf(typ, def))
			if def.InverseIsImplicit {
				imp, err := r.Resolve(def.Type, def.Inverse)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				rows = append(rows, rowOf(def.Type, imp))
			}
		}
	}
	return rows, relgraph.NewAggregateError(errs...)
}

func rowOf(typ string, def *graph.Definition) definitionRow {
	return definitionRow{
		Type:        typ,
		Field:       def.Key,
		Kind:        def.Kind.String(),
		Target:      def.Type,
		Inverse:     def.Inverse,
		InverseKind: def.InverseKind.String(),
		Async:       def.IsAsync,
		Polymorphic: def.IsPolymorphic,
	}
}

func writeDefinitions(w io.Writer, rows []definitionRow, output string) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "table", "":
		table := tablewriter.NewWriter(w)
		table.Header("Type", "Field", "Kind", "Target", "Inverse", "Inverse Kind", "Async", "Polymorphic")
		for _, row := range rows {
			if err := table.Append([]string{
				row.Type, row.Field, row.Kind, row.Target, row.Inverse, row.InverseKind,
				strconv.FormatBool(row.Async), strconv.FormatBool(row.Polymorphic),
			}); err != nil {
				return err
			}
		}
		return table.Render()
	default:
		return fmt.Errorf("invalid output format %q (want table or json)", output)
	}
}
