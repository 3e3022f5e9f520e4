package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/georgemunganga/retail-billing/internal/modules/receipt"
)

func newBillsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bills",
		Short: "Inspect the saved-bill archive",
		Long: `Inspect the saved-bill archive.

These commands open the archive store directly. With the bolt store they cannot run
while "billing serve" holds the file; use the /api/v1/bills endpoints instead. With
the postgres store a running server keeps its own copy of the archive and will
overwrite changes made here on its next save or delete.`,
	}
	cmd.AddCommand(newBillsListCmd())
	cmd.AddCommand(newBillsShowCmd())
	cmd.AddCommand(newBillsDeleteCmd())
	return cmd
}

func newBillsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved bills, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				out := cmd.OutOrStdout()
				saved := a.archive.List(cmd.Context())
				if len(saved) == 0 {
					fmt.Fprintln(out, "No saved bills yet.")
					return nil
				}
				fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Saved bills (%d)", len(saved))))
				fmt.Fprintln(out, separatorLine)
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATE\tITEMS\tFEE\tTOTAL")
				for _, b := range saved {
					fee := "-"
					if b.FeeApplied {
						fee = "yes"
					}
					fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t₹%s\n",
						b.ID, b.CreatedAt.Local().Format("02 Jan 2006 15:04"), len(b.Items), fee, b.Total.StringFixed(2))
				}
				return tw.Flush()
			})
		},
	}
}

func parseBillID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bill id %q", s)
	}
	return id, nil
}

func newBillsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved bill's receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBillID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app) error {
				b, err := a.archive.Get(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("bill %d: %w", id, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), receipt.Styled(b.Receipt(a.bills.Policy())))
				return nil
			})
		},
	}
}

func newBillsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved bill (stop the server first)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBillID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app) error {
				if err := a.archive.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("bill %d: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted bill %d.\n", id)
				return nil
			})
		},
	}
}
