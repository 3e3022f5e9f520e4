package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/georgemunganga/retail-billing/internal/modules/catalog"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the product catalog",
	}
	cmd.AddCommand(newCatalogListCmd())
	return cmd
}

func newCatalogListCmd() *cobra.Command {
	var f catalog.Filter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				products, err := a.catalog.ListProducts(cmd.Context(), f)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Products (%d)", len(products))))
				fmt.Fprintln(out, separatorLine)
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tIMAGE")
				for _, p := range products {
					img := dimStyle.Render("none")
					if p.ImageURL != "" {
						img = "yes"
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t₹%s\t%s\n", p.ID, p.Name, p.Category, p.Price.StringFixed(2), img)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&f.Category, "category", "", "only products in this category")
	cmd.Flags().StringVarP(&f.Search, "search", "q", "", "case-insensitive name search")
	return cmd
}
