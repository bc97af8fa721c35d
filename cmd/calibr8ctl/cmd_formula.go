package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yourorg/calibr8/internal/formula"
	"github.com/yourorg/calibr8/internal/registry"
)

func newFormulaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formula",
		Short: "Create, edit and evaluate formulas",
	}

	var name, expr, desc string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a formula; its variables are taken from the $names in --expr",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := check(registry.NewFormulas(a.client, a.log).Create(cmd.Context(), name, expr, desc))
			if err != nil {
				return err
			}
			return printFormula(cmd, f)
		},
	}
	create.Flags().StringVar(&name, "name", "", "formula name")
	create.Flags().StringVar(&expr, "expr", "", "formula expression, e.g. '$flow * $k'")
	create.Flags().StringVar(&desc, "desc", "", "description")

	update := &cobra.Command{
		Use:   "update ID",
		Short: "Replace a formula; mappings of removed variables are kept but hidden",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			f, err := check(registry.NewFormulas(a.client, a.log).Update(cmd.Context(), id, name, expr, desc))
			if err != nil {
				return err
			}
			return printFormula(cmd, f)
		},
	}
	update.Flags().StringVar(&name, "name", "", "formula name")
	update.Flags().StringVar(&expr, "expr", "", "formula expression")
	update.Flags().StringVar(&desc, "desc", "", "description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List formulas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := check(registry.NewFormulas(a.client, a.log).List(cmd.Context()))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tEXPRESSION\tVARIABLES")
			for _, f := range fs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", deref(f.ID), f.Name, f.Expression, strings.Join(f.VariableNames(), ", "))
			}
			return tw.Flush()
		},
	}

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show a formula",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			f, err := check(registry.NewFormulas(a.client, a.log).Get(cmd.Context(), id))
			if err != nil {
				return err
			}
			return printFormula(cmd, f)
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a formula; tags using it keep a dangling reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := check(registry.NewFormulas(a.client, a.log).Delete(cmd.Context(), id)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Formula %d deleted\n", id)
			return nil
		},
	}

	eval := &cobra.Command{
		Use:   "eval ID [name=value ...]",
		Short: "Evaluate a formula with the given parameters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}
			ev, err := check(registry.NewFormulas(a.client, a.log).Evaluate(cmd.Context(), id, params))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ev.Result)
			return nil
		},
	}

	cmd.AddCommand(create, update, list, get, del, eval)
	return cmd
}

func printFormula(cmd *cobra.Command, f formula.Formula) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Formula %d: %s\n", deref(f.ID), f.Name)
	fmt.Fprintf(out, "  expression: %s\n", f.Expression)
	if f.Description != "" {
		fmt.Fprintf(out, "  description: %s\n", f.Description)
	}
	for _, v := range f.OrderedVariables() {
		fmt.Fprintf(out, "  $%s (variable %d)\n", v.Name, deref(v.ID))
	}
	return nil
}

// parseParams reads name=value pairs. Values are numbers or true/false.
func parseParams(args []string) (map[string]any, error) {
	params := make(map[string]any, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q, want name=value", arg)
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			params[k] = n
			continue
		}
		if b, err := strconv.ParseBool(v); err == nil {
			params[k] = b
			continue
		}
		return nil, fmt.Errorf("invalid value for %s: %q is not a number or boolean", k, v)
	}
	return params, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
