package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fallrisk/super-serial/internal/profile"
	"github.com/fallrisk/super-serial/internal/serialcfg"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage saved connection profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := newProfileStore().Load(app.config.Profiles.Path)
		if err != nil {
			return err
		}

		if len(profiles) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No profiles in %s\n", app.config.Profiles.Path)
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSETTINGS")
		for _, p := range profiles {
			fmt.Fprintf(w, "%s\t%s\n", p.Name, serialcfg.Format(&p.SerialConfig))
		}
		return w.Flush()
	},
}

var profileFlags serialFlags

var profilesSaveCmd = &cobra.Command{
	Use:   "save NAME",
	Short: "Save or replace a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := serialcfg.FromCLI(profileFlags.resolve(cmd, app.config.Link.CLIDefaults()))
		p, err := profile.New(args[0], raw)
		if err != nil {
			return err
		}

		return updateProfiles(func(c *profile.Collection) error {
			c.Put(p)
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s: %s\n", p.Name, serialcfg.Format(&p.SerialConfig))
			return nil
		})
	},
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateProfiles(func(c *profile.Collection) error {
			if !c.Delete(args[0]) {
				return fmt.Errorf("%w: %s", profile.ErrNotFound, args[0])
			}
			return nil
		})
	},
}

var profilesRenameCmd = &cobra.Command{
	Use:   "rename FROM TO",
	Short: "Rename a profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateProfiles(func(c *profile.Collection) error {
			return c.Rename(args[0], args[1])
		})
	},
}

func newProfileStore() *profile.Store {
	return profile.NewStore(app.logger, app.metrics.Metrics)
}

// updateProfiles loads the profile file, applies change and writes it back.
// Nothing is written if the file cannot be loaded or change fails.
func updateProfiles(change func(*profile.Collection) error) error {
	store := newProfileStore()
	path := app.config.Profiles.Path

	loaded, err := store.Load(path)
	if err != nil {
		return err
	}

	c := profile.NewCollection(loaded)
	if err := change(c); err != nil {
		return err
	}
	return store.Save(c.List(), path)
}

func init() {
	profileFlags.register(profilesSaveCmd.Flags())
	profilesSaveCmd.MarkFlagRequired("port")

	profilesCmd.AddCommand(profilesListCmd, profilesSaveCmd, profilesDeleteCmd, profilesRenameCmd)
	rootCmd.AddCommand(profilesCmd)
}
