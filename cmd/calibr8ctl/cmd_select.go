package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yourorg/calibr8/internal/catalogclient"
	"github.com/yourorg/calibr8/internal/console"
)

func newSelectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Select the subgroup and subgroup tag to work on",
	}

	var filter string
	subgroup := &cobra.Command{
		Use:   "subgroup ID",
		Short: "Select a subgroup and list its tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			tags, err := check(a.ctrl.SelectSubgroup(cmd.Context(), id))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tFORMULA")
			for _, t := range console.FilterSubgroupTags(tags, filter) {
				f := "-"
				if t.FormulaID != nil {
					f = fmt.Sprint(*t.FormulaID)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\n", t.SubgroupTagID, t.SubgroupTagName, f)
			}
			return tw.Flush()
		},
	}
	subgroup.Flags().StringVar(&filter, "filter", "", "only list tags whose name contains this text")

	tag := &cobra.Command{
		Use:   "tag ID",
		Short: "Select a tag of the current subgroup; selecting it again deselects it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t, err := findTag(cmd.Context(), a, id)
			if err != nil {
				return err
			}
			st, err := check(a.ctrl.ToggleSubgroupTag(cmd.Context(), t))
			if err != nil {
				return err
			}
			return printState(cmd, st)
		},
	}

	cmd.AddCommand(subgroup, tag)
	return cmd
}

// findTag looks id up among the selected subgroup's tags and their children.
func findTag(ctx context.Context, a *app, id int64) (catalogclient.SubgroupTag, error) {
	st := a.ctrl.State()
	if st.Tag != nil && st.Tag.SubgroupTagID == id {
		return *st.Tag, nil
	}
	if st.SubgroupID == 0 {
		return catalogclient.SubgroupTag{}, errors.New("no subgroup selected")
	}
	roots, err := a.client.ListSubgroupTags(ctx, st.SubgroupID)
	if err != nil {
		return catalogclient.SubgroupTag{}, err
	}
	queue := roots
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		if t.SubgroupTagID == id {
			return t, nil
		}
		kids, err := a.client.ChildTags(ctx, t.SubgroupTagID)
		if err != nil {
			return catalogclient.SubgroupTag{}, err
		}
		queue = append(queue, kids...)
	}
	return catalogclient.SubgroupTag{}, fmt.Errorf("subgroup tag %d is not in subgroup %d", id, st.SubgroupID)
}

func newTagCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage the selected subgroup tag",
	}

	assign := &cobra.Command{
		Use:   "assign FORMULA_ID",
		Short: "Assign a formula to the selected tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, err := check(a.ctrl.AssignFormula(cmd.Context(), id))
			if err != nil {
				return err
			}
			return printState(cmd, st)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the formula from the selected tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := check(a.ctrl.ClearFormula(cmd.Context()))
			if err != nil {
				return err
			}
			return printState(cmd, st)
		},
	}

	var parent int64
	var name string
	add := &cobra.Command{
		Use:   "add TAG_ID",
		Short: "Attach a masterlist tag to the selected subgroup (or under --parent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tagID, err := parseID(args[0])
			if err != nil {
				return err
			}
			st := a.ctrl.State()
			if st.SubgroupID == 0 {
				return errors.New("no subgroup selected")
			}
			in := catalogclient.NewSubgroupTag{TagID: tagID, TagName: name}
			if parent > 0 {
				in.ParentSubgroupTagID = &parent
			}
			t, err := a.client.AddSubgroupTag(cmd.Context(), st.SubgroupID, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Subgroup tag %d added: %s\n", t.SubgroupTagID, t.SubgroupTagName)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().Int64Var(&parent, "parent", 0, "parent subgroup tag id")
	_ = add.MarkFlagRequired("name")

	cmd.AddCommand(assign, clearCmd, add)
	return cmd
}

func newMapCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "map VARIABLE SUBGROUP_TAG_ID",
		Short: "Bind a variable of the selected tag's formula to a subgroup tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseID(args[1])
			if err != nil {
				return err
			}
			v, ok := a.ctrl.State().Variable(trimDollar(args[0]))
			if !ok || v.ID == nil {
				return fmt.Errorf("variable %s does not belong to the assigned formula", args[0])
			}
			if _, err := check(a.ctrl.BindVariable(cmd.Context(), *v.ID, target)); err != nil {
				return err
			}
			return printState(cmd, a.ctrl.State())
		},
	}
}

func newUnmapCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unmap VARIABLE",
		Short: "Remove the mapping of a variable on the selected tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, ok := a.ctrl.State().Variable(trimDollar(args[0]))
			if !ok || v.ID == nil {
				return fmt.Errorf("variable %s does not belong to the assigned formula", args[0])
			}
			if _, err := check(a.ctrl.RemoveMapping(cmd.Context(), *v.ID)); err != nil {
				return err
			}
			return printState(cmd, a.ctrl.State())
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	var cached, asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current selection and variable bindings",
		Long: "Show reloads the selected tag's formula and mappings from the catalog.\n" +
			"With --cached it prints the saved session instead and marks it as cached.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := a.ctrl.State()
			fromCache := cached && st.Tag != nil
			if !cached && st.Tag != nil {
				var err error
				if st, err = check(a.ctrl.Refresh(cmd.Context())); err != nil {
					return err
				}
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"phase":  st.Phase().String(),
					"state":  st,
					"rows":   console.Rows(st),
					"cached": fromCache,
				})
			}
			if fromCache {
				fmt.Fprintln(cmd.OutOrStdout(), "(cached session, run without --cached to reload)")
			}
			return printState(cmd, st)
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "print the saved session without asking the catalog")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printState(cmd *cobra.Command, st console.State) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "State: %s\n", st.Phase())
	if st.SubgroupID != 0 {
		fmt.Fprintf(out, "Subgroup: %d\n", st.SubgroupID)
	}
	if st.Tag != nil {
		fmt.Fprintf(out, "Tag: %d %s\n", st.Tag.SubgroupTagID, st.Tag.SubgroupTagName)
	}
	if st.Formula == nil {
		return nil
	}
	fmt.Fprintf(out, "Formula: %d %s = %s\n", deref(st.Formula.ID), st.Formula.Name, st.Formula.Expression)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIABLE\tTAG")
	for _, r := range console.Rows(st) {
		fmt.Fprintf(tw, "$%s\t%s\n", r.Variable, r.TagName)
	}
	return tw.Flush()
}

func trimDollar(s string) string {
	if len(s) > 0 && s[0] == '$' {
		return s[1:]
	}
	return s
}
