package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/supplysync/internal/core"
)

var (
	templateFormatFlag string
	templateOutputFlag string
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write a blank import file with the expected headers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ft := core.ParseFileType(templateFormatFlag)
		if ft == "" {
			return fmt.Errorf("unsupported format %q, use csv or xlsx", templateFormatFlag)
		}

		path := templateOutputFlag
		if path == "" {
			path = core.TemplateFilename(ft)
		}
		if path == "-" {
			return core.WriteTemplate(cmd.OutOrStdout(), ft)
		}

		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := core.WriteTemplate(f, ft); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		pterm.Success.WithWriter(cmd.ErrOrStderr()).Printfln("wrote %s", path)
		return nil
	},
}

func init() {
	templateCmd.Flags().StringVar(&templateFormatFlag, "format", "csv", "Template format: csv or xlsx")
	templateCmd.Flags().StringVarP(&templateOutputFlag, "output", "o", "", "Output path (- for stdout)")
}
