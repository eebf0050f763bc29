package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/supplysync/internal/core"
)

var (
	locationFlag        string
	fileTypeFlag        string
	excludeNewFlag      bool
	excludeWarningsFlag bool
	dryRunFlag          bool
	jsonFlag            bool
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a spreadsheet and print the matched rows as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

var applyCmd = &cobra.Command{
	Use:   "apply <file>",
	Short: "Parse a spreadsheet and commit its quantities",
	Long: `apply parses the file, includes every row, and sets qty_on_hand at the
location to each row's quantity. Unknown SKUs create new supplies.

Use --exclude-new or --exclude-warnings to leave rows out, and --dry-run to
print the per-row plan without writing anything.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	for _, c := range []*cobra.Command{parseCmd, applyCmd} {
		c.Flags().StringVarP(&locationFlag, "location", "l", "", "Target location id (required)")
		c.Flags().StringVar(&fileTypeFlag, "type", "", "File type (csv or xlsx); inferred when empty")
		_ = c.MarkFlagRequired("location")
	}
	applyCmd.Flags().BoolVar(&excludeNewFlag, "exclude-new", false, "Skip rows whose SKU is not in the catalog")
	applyCmd.Flags().BoolVar(&excludeWarningsFlag, "exclude-warnings", false, "Skip rows with validation warnings")
	applyCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Print the plan without applying it")
	applyCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the apply result as JSON")
}

func parseFile(ctx context.Context, svc *core.Service, path string) (*core.ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return svc.Parse(ctx, core.ParseRequest{
		Filename:   filepath.Base(path),
		FileType:   fileTypeFlag,
		Data:       data,
		LocationID: locationFlag,
	})
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, backend, err := openService(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	result, err := parseFile(ctx, svc, args[0])
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, backend, err := openService(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	p := core.NewPipeline()
	result, err := parseFile(ctx, svc, args[0])
	if err != nil {
		p.ParseFailed(err)
		return err
	}
	if err := p.Parsed(result); err != nil {
		return err
	}

	if err := p.Edit(func(s *core.Session) error {
		if excludeNewFlag {
			s.BulkSetIncluded(false, core.FilterNew)
		}
		if excludeWarningsFlag {
			s.BulkSetIncluded(false, core.FilterWarnings)
		}
		return nil
	}); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	warn := pterm.Warning.WithWriter(cmd.ErrOrStderr())
	for _, w := range result.Warnings {
		warn.Println(w)
	}

	if dryRunFlag {
		view, err := p.View(core.ViewOptions{})
		if err != nil {
			return err
		}
		return printPlan(out, view)
	}

	res, err := p.Apply(ctx, svc)
	if err != nil {
		return err
	}
	if jsonFlag {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else {
		printResult(out, res)
	}
	if res.Stats.ErrorsCount > 0 {
		return fmt.Errorf("%d of %d rows failed", res.Stats.ErrorsCount, len(result.Rows))
	}
	return nil
}

// printPlan lists what applying each row would do.
func printPlan(w io.Writer, v core.View) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tSKU\tNAME\tACTION\tCURRENT\tNEW\tDIFF\tWARNINGS")
	for _, r := range v.Rows {
		action, current, diff := "update", "-", "-"
		switch {
		case !r.Included:
			action = "skip"
		case r.IsNew:
			action = "create"
		case r.Diff != nil && *r.Diff == 0:
			action = "unchanged"
		}
		if r.ExistingQuantity != nil {
			current = fmt.Sprint(*r.ExistingQuantity)
		}
		if r.Diff != nil {
			diff = fmt.Sprintf("%+d", *r.Diff)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%v\n",
			r.RowIndex, r.SKU, r.Name, action, current, r.FinalQuantity, diff, r.Warnings)
	}
	fmt.Fprintf(tw, "\n%d of %d rows included\n", v.Included, v.Total)
	return tw.Flush()
}

func printResult(w io.Writer, res core.ApplyResult) {
	s := res.Stats
	summary := pterm.Success
	if s.ErrorsCount > 0 {
		summary = pterm.Warning
	}
	summary.WithWriter(w).Printfln("supplies created: %d, inventory updated: %d, rows skipped: %d, errors: %d",
		s.SuppliesCreated, s.InventoryUpdated, s.RowsSkipped, s.ErrorsCount)

	rowErr := pterm.Error.WithWriter(w)
	for _, e := range res.Errors {
		rowErr.Printfln("row %d (%s): %s", e.Row, e.SKU, e.Error)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
