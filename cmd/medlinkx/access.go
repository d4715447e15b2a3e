package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/medlinkx/medlinkx/internal/access"
	"github.com/medlinkx/medlinkx/internal/common/errorx"

	"github.com/spf13/cobra"
)

// parseScope reads "*", the legacy "all", or a comma separated list of site ids
func parseScope(raw string) (access.Scope, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, ",") {
		return access.Sites(strings.Split(raw, ",")...), nil
	}
	quoted, err := json.Marshal(raw)
	if err != nil {
		return access.Scope{}, err
	}
	var s access.Scope
	if err := s.UnmarshalJSON(quoted); err != nil {
		return access.Scope{}, fmt.Errorf("%w: %v", errorx.ErrInvalidRule, err)
	}
	return s, nil
}

func parsePermissions(raw []string) []access.Permission {
	out := make([]access.Permission, 0, len(raw))
	for _, p := range raw {
		out = append(out, access.Permission(strings.TrimSpace(p)))
	}
	return out
}

func newAccessCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Manage per-user site access rules",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every access rule",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			return printJSON(cmd.OutOrStdout(), a.svc.ListRules(cmd.Context()))
		}),
	}

	getCmd := &cobra.Command{
		Use:   "get <user-id>",
		Short: "Show one user's rule",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			r, err := a.svc.GetRule(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		}),
	}

	var (
		role        string
		level       string
		sites       string
		permissions []string
	)
	createCmd := &cobra.Command{
		Use:   "create <user-id>",
		Short: "Create or replace a user's rule",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			in := access.NewRule{
				UserID:      args[0],
				Role:        access.Role(role),
				AccessLevel: access.Level(level),
				Permissions: parsePermissions(permissions),
			}
			if cmd.Flags().Changed("sites") {
				scope, err := parseScope(sites)
				if err != nil {
					return err
				}
				in.SiteAccess = &scope
			}
			r, err := a.svc.CreateRule(cmd.Context(), in, flags.actor)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		}),
	}
	createCmd.Flags().StringVar(&role, "role", "", "super_admin, admin, doctor, nurse, staff or viewer")
	createCmd.Flags().StringVar(&level, "level", "", "global or site")
	createCmd.Flags().StringVar(&sites, "sites", "", `"*" for every site, or comma separated site ids`)
	createCmd.Flags().StringSliceVar(&permissions, "permissions", nil, "read, write, delete, admin")

	deleteCmd := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Remove a user's rule",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			if err := a.svc.DeleteRule(cmd.Context(), args[0], flags.actor); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted access rule for %s\n", args[0])
			return nil
		}),
	}

	grantCmd := &cobra.Command{
		Use:   "grant <user-id> <site-id>",
		Short: "Add a site to a user's explicit grant",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			r, err := a.svc.GrantSite(cmd.Context(), args[0], args[1], flags.actor)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		}),
	}

	revokeCmd := &cobra.Command{
		Use:   "revoke <user-id> <site-id>",
		Short: "Remove a site from a user's explicit grant",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			r, err := a.svc.RevokeSite(cmd.Context(), args[0], args[1], flags.actor)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		}),
	}

	sitesCmd := &cobra.Command{
		Use:   "sites <user-id>",
		Short: "List the sites a user can access",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			return printJSON(cmd.OutOrStdout(), a.svc.VisibleSites(cmd.Context(), args[0]))
		}),
	}

	checkCmd := &cobra.Command{
		Use:   "check <user-id> <site-id>",
		Short: "Report whether a user can access a site",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			decision := "denied"
			if a.svc.CanAccess(cmd.Context(), args[0], args[1]) {
				decision = "allowed"
			}
			fmt.Fprintln(cmd.OutOrStdout(), decision)
			return nil
		}),
	}

	cmd.AddCommand(listCmd, getCmd, createCmd, deleteCmd, grantCmd, revokeCmd, sitesCmd, checkCmd)
	return cmd
}
