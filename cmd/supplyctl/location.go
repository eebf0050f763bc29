package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/supplysync/internal/admin"
)

var locationNameFlag string

var locationCmd = &cobra.Command{
	Use:   "location",
	Short: "Manage the locations imports may target",
}

var locationAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Create or reactivate a location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, backend, err := openService(ctx)
		if err != nil {
			return err
		}
		defer backend.Close()

		locs := &admin.Locations{Store: backend}
		if err := locs.Register(ctx, admin.Location{ID: args[0], Name: locationNameFlag, Active: true}); err != nil {
			return err
		}
		pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("location %s active", args[0])
		return nil
	},
}

var locationDeactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Stop a location from receiving imports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, backend, err := openService(ctx)
		if err != nil {
			return err
		}
		defer backend.Close()

		if err := (&admin.Locations{Store: backend}).Deactivate(ctx, args[0]); err != nil {
			return err
		}
		pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("location %s inactive", args[0])
		return nil
	},
}

func init() {
	locationAddCmd.Flags().StringVar(&locationNameFlag, "name", "", "Display name")
	locationCmd.AddCommand(locationAddCmd, locationDeactivateCmd)
}
