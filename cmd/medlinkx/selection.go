package main

import (
	"github.com/medlinkx/medlinkx/internal/selection"
	"github.com/medlinkx/medlinkx/internal/tenancy"

	"github.com/spf13/cobra"
)

func newSelectCmd(flags *globalFlags) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Show or change the current site and business unit",
	}
	cmd.PersistentFlags().StringVar(&scope, "scope", selection.DefaultScope, "user id whose selection to use; empty for the shared selection")

	// a named scope is that user's own selection, bounded by their access
	viewer := func() tenancy.Viewer {
		if scope == selection.DefaultScope {
			return tenancy.Shared
		}
		return tenancy.Personal(scope)
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current selection",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			ptr, err := a.svc.CurrentSelection(cmd.Context(), viewer())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ptr)
		}),
	}

	siteCmd := &cobra.Command{
		Use:   "site <site-id>",
		Short: "Make a site current",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			ptr, err := a.svc.SelectSite(cmd.Context(), viewer(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ptr)
		}),
	}

	unitCmd := &cobra.Command{
		Use:   "unit <business-unit>",
		Short: "Select a department of the current site",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			ptr, err := a.svc.SelectBusinessUnit(cmd.Context(), viewer(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ptr)
		}),
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget the selection; the next read falls back to the first site",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			return a.svc.Selection.Clear(cmd.Context(), scope)
		}),
	}

	cmd.AddCommand(showCmd, siteCmd, unitCmd, clearCmd)
	return cmd
}
