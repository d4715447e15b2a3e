package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/medlinkx/medlinkx/internal/site"
	"github.com/medlinkx/medlinkx/internal/tenancy"

	"github.com/spf13/cobra"
)

type siteFlags struct {
	id           string
	name         string
	shortName    string
	facilityCode string
	address      string
	phone        string
	email        string
	website      string
	bedCount     int
	departments  []string
	status       string
	primary      string
	secondary    string
	accent       string
}

func (f *siteFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "display name")
	cmd.Flags().StringVar(&f.shortName, "short-name", "", "short display name")
	cmd.Flags().StringVar(&f.facilityCode, "code", "", "facility code, used as the id prefix")
	cmd.Flags().StringVar(&f.address, "address", "", "street address")
	cmd.Flags().StringVar(&f.phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&f.email, "email", "", "contact email")
	cmd.Flags().StringVar(&f.website, "website", "", "contact website")
	cmd.Flags().IntVar(&f.bedCount, "beds", 0, "number of beds")
	cmd.Flags().StringSliceVar(&f.departments, "departments", nil, "comma separated departments, the first is the default business unit")
	cmd.Flags().StringVar(&f.status, "status", "", "active, inactive or maintenance")
	cmd.Flags().StringVar(&f.primary, "primary-color", "", "theme primary color")
	cmd.Flags().StringVar(&f.secondary, "secondary-color", "", "theme secondary color")
	cmd.Flags().StringVar(&f.accent, "accent-color", "", "theme accent color")
}

func (f *siteFlags) newSite() site.NewSite {
	return site.NewSite{
		ID:           f.id,
		Name:         f.name,
		ShortName:    f.shortName,
		FacilityCode: f.facilityCode,
		Address:      f.address,
		Contact:      site.Contact{Phone: f.phone, Email: f.email, Website: f.website},
		BedCount:     f.bedCount,
		Departments:  f.departments,
		Theme:        site.Theme{Primary: f.primary, Secondary: f.secondary, Accent: f.accent},
		Status:       site.Status(f.status),
	}
}

// patch includes only the flags given on the command line
func (f *siteFlags) patch(cmd *cobra.Command) site.Patch {
	var p site.Patch
	changed := cmd.Flags().Changed
	str := func(name, v string) *string {
		if !changed(name) {
			return nil
		}
		return &v
	}
	p.Name = str("name", f.name)
	p.ShortName = str("short-name", f.shortName)
	p.FacilityCode = str("code", f.facilityCode)
	p.Address = str("address", f.address)
	if changed("beds") {
		p.BedCount = &f.bedCount
	}
	if changed("departments") {
		p.Departments = &f.departments
	}
	if changed("status") {
		status := site.Status(f.status)
		p.Status = &status
	}
	if changed("phone") || changed("email") || changed("website") {
		p.Contact = &site.Contact{Phone: f.phone, Email: f.email, Website: f.website}
	}
	if changed("primary-color") || changed("secondary-color") || changed("accent-color") {
		p.Theme = &site.Theme{Primary: f.primary, Secondary: f.secondary, Accent: f.accent}
	}
	return p
}

func newSiteCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site",
		Short: "Manage the site registry",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every registered site",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			return printJSON(cmd.OutOrStdout(), a.svc.ListSites(cmd.Context()))
		}),
	}

	getCmd := &cobra.Command{
		Use:   "get <site-id>",
		Short: "Show one site",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			s, err := a.svc.GetSite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		}),
	}

	addFlags := &siteFlags{}
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new site",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			s, err := a.svc.AddSite(cmd.Context(), addFlags.newSite(), flags.actor)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		}),
	}
	addFlags.register(addCmd)
	addCmd.Flags().StringVar(&addFlags.id, "id", "", "explicit site id, generated from the facility code when empty")

	updateFlags := &siteFlags{}
	updateCmd := &cobra.Command{
		Use:   "update <site-id>",
		Short: "Change fields of a site",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			p := updateFlags.patch(cmd)
			if p.IsEmpty() {
				return fmt.Errorf("nothing to update")
			}
			s, err := a.svc.UpdateSite(cmd.Context(), args[0], p, flags.actor)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		}),
	}
	updateFlags.register(updateCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <site-id>",
		Short: "Remove a site; the last remaining site cannot be removed",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			ptr, err := a.svc.DeleteSite(cmd.Context(), args[0], tenancy.Shared, flags.actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s, current site is %s\n", args[0], ptr.SiteID)
			return nil
		}),
	}

	seedCmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Replace the registry with the sites in a JSON array file",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read seed file: %w", err)
			}
			var sites []site.Site
			if err := json.Unmarshal(data, &sites); err != nil {
				return fmt.Errorf("failed to parse seed file: %w", err)
			}
			if err := a.svc.Seed(cmd.Context(), sites, flags.actor); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d sites\n", len(sites))
			return nil
		}),
	}

	cmd.AddCommand(listCmd, getCmd, addCmd, updateCmd, deleteCmd, seedCmd)
	return cmd
}
