package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fjod/style_cart/internal/catalog/domain"
	"github.com/fjod/style_cart/internal/catalog/query"
	"github.com/fjod/style_cart/internal/catalog/repository"
	"github.com/fjod/style_cart/pkg/config"
	"github.com/spf13/cobra"
)

type productsOutput struct {
	Products []domain.Product `json:"products"`
	Loaded   int              `json:"loaded"`
	Total    int              `json:"total"`
	HasMore  bool             `json:"has_more"`
}

func newProductsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List the catalog grid for a filter after a number of load-more steps",
		RunE:  runProducts,
	}

	cmd.Flags().String("db", config.GetEnv("CATALOG_DB_PATH", "./catalog.db"), "Path to the catalog sqlite database")
	cmd.Flags().String("q", "", "Case-insensitive name search")
	cmd.Flags().StringSlice("category", nil, "Categories: men, women, kids, accessories")
	cmd.Flags().StringSlice("availability", nil, "Availability: in-stock, out-of-stock")
	cmd.Flags().StringSlice("type", nil, "Item types: shoes, bags, dresses, accessories")
	cmd.Flags().String("sort", string(domain.SortNewest), "Sort: newest, price-low, price-high, bestsellers")
	cmd.Flags().Int("page-size", query.DefaultPageSize, "Products revealed per page")
	cmd.Flags().Int("pages", 0, "Load-more steps to apply after the first page")
	return cmd
}

func runProducts(cmd *cobra.Command, _ []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	q, _ := cmd.Flags().GetString("q")
	categories, _ := cmd.Flags().GetStringSlice("category")
	availability, _ := cmd.Flags().GetStringSlice("availability")
	types, _ := cmd.Flags().GetStringSlice("type")
	sortKey, _ := cmd.Flags().GetString("sort")
	pageSize, _ := cmd.Flags().GetInt("page-size")
	pages, _ := cmd.Flags().GetInt("pages")
	format, _ := cmd.Flags().GetString("format")

	repo, err := repository.NewRepository(dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	catalog, err := repo.GetAllProducts(cmd.Context())
	if err != nil {
		return err
	}

	filter := domain.FilterState{
		Query:        q,
		Categories:   toEnums[domain.Category](categories),
		Availability: toEnums[domain.Availability](availability),
		ItemTypes:    toEnums[domain.ItemType](types),
		Sort:         domain.SortKey(sortKey),
	}
	ordered := query.FilteredSorted(catalog, filter)

	state := query.NewPageState(pageSize, len(ordered))
	for i := 0; i < pages; i++ {
		next, started := state.BeginLoad(len(ordered))
		if !started {
			break
		}
		state = next.CompleteLoad(next.Generation, len(ordered))
	}
	visible, hasMore := query.NextPage(ordered, state)

	out := productsOutput{Products: visible, Loaded: len(visible), Total: len(ordered), HasMore: hasMore}
	if format == "json" {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	printProductsTable(cmd.OutOrStdout(), out)
	return nil
}

func printProductsTable(w io.Writer, out productsOutput) {
	for i, p := range out.Products {
		line := fmt.Sprintf("%3d. %-28s RM%8s  %s / %s / %s", i+1, p.Name, p.Price.StringFixed(2), p.Category, p.ItemType, p.Availability)
		if p.HasTag(domain.TagBestseller) {
			line += "  [Bestseller]"
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "showing %d of %d", out.Loaded, out.Total)
	if out.HasMore {
		fmt.Fprint(w, " (more available)")
	}
	fmt.Fprintln(w)
}

func toEnums[T ~string](values []string) []T {
	out := make([]T, 0, len(values))
	for _, v := range values {
		out = append(out, T(v))
	}
	return out
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
