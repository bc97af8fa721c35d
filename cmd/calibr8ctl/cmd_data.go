package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/calibr8/internal/config"
	"github.com/yourorg/calibr8/internal/console"
	"github.com/yourorg/calibr8/internal/export"
	"github.com/yourorg/calibr8/internal/masterlist"
	"github.com/yourorg/calibr8/internal/session"
)

func newAssetsCmd(a *app) *cobra.Command {
	var order string
	return &cobra.Command{
		Use:   "assets",
		Short: "List assets and their subgroups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if order != string(console.Newest) && order != string(console.Oldest) {
				return fmt.Errorf("invalid --sort %q, want newest or oldest", order)
			}
			assets, err := a.client.ListAssets(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ASSET\tNAME\tTYPE\tSUBGROUPS")
			for _, as := range console.SortAssets(assets, console.SortOrder(order)) {
				var names []string
				for _, sg := range as.Subgroups {
					names = append(names, fmt.Sprintf("%d:%s", sg.SubgroupID, sg.SubgroupName))
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%v\n", as.AssetID, as.AssetName, as.AssetType, names)
			}
			return tw.Flush()
		},
	}
}

func newMasterlistCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "masterlist",
		Short: "Upload and import masterlist spreadsheets",
	}

	upload := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a CSV, XLSX or XLS masterlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !masterlist.Supported(path) {
				return masterlist.ErrUnsupportedType
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			res, err := a.client.UploadMasterlist(cmd.Context(), filepath.Base(path), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: file %d, %d tags\n", res.Message, res.FileID, res.TagsImported)
			return nil
		},
	}

	var name string
	var wait time.Duration
	imp := &cobra.Command{
		Use:   "import URI",
		Short: "Import a masterlist already in object storage (file:// or s3://)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := args[0]
			if name == "" {
				name = filepath.Base(uri)
			}
			run, err := a.client.StartImport(cmd.Context(), uri, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Import started: %s\n", run.WorkflowID)
			if wait <= 0 {
				return nil
			}
			deadline := time.Now().Add(wait)
			for time.Now().Before(deadline) {
				st, err := a.client.ImportStatus(cmd.Context(), run.WorkflowID)
				if err != nil {
					return err
				}
				if st.Status != "Running" && st.Status != "WORKFLOW_EXECUTION_STATUS_RUNNING" {
					return printJSON(cmd.OutOrStdout(), st)
				}
				time.Sleep(time.Second)
			}
			return errors.New("import still running")
		},
	}
	imp.Flags().StringVar(&name, "name", "", "file name (defaults to the URI's base name)")
	imp.Flags().DurationVar(&wait, "wait", 0, "wait this long for the import to finish")

	status := &cobra.Command{
		Use:   "status WORKFLOW_ID",
		Short: "Show the status of an import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.client.ImportStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List uploaded masterlists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lists, err := a.client.ListMasterlists(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tNAME\tUPLOADED")
			for _, ml := range lists {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", ml.FileID, ml.FileName, ml.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}

	tags := &cobra.Command{
		Use:   "tags [FILE_ID]",
		Short: "List the tags of a masterlist (the latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var fileID int64
			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				fileID = id
			} else {
				ml, err := a.client.LatestMasterlist(cmd.Context())
				if err != nil {
					return err
				}
				fileID = ml.FileID
			}
			tags, err := a.client.Tags(cmd.Context(), fileID)
			if err != nil {
				return err
			}
			for _, t := range tags {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", t.TagID, t.TagName)
			}
			return nil
		},
	}

	cmd.AddCommand(upload, imp, status, list, tags)
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the selected subgroup tag as an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := a.ctrl.State().TagID()
			if id == 0 {
				return errors.New("no subgroup tag selected")
			}
			data, err := a.client.Export(cmd.Context(), id)
			if err != nil {
				return err
			}
			if out == "" {
				out = export.FileName(id)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	return cmd
}

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage saved console sessions",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := a.sessions.List()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tSTATE\tUPDATED")
			for _, in := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", in.ID, in.Phase, in.UpdatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Forget the current session's selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.ctrl.Store().Dispatch(console.SelectSubgroup{})
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s reset\n", a.sessionID)
			return nil
		},
	}
	newID := &cobra.Command{
		Use:   "new",
		Short: "Print a fresh session name for --session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), session.NewID())
			return nil
		},
	}
	cmd.AddCommand(list, reset, newID)
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write the console configuration",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), a.cfg)
		},
	}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to --config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(a.configPath, a.cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", a.configPath)
			return nil
		},
	}
	cmd.AddCommand(show, initCmd)
	return cmd
}
