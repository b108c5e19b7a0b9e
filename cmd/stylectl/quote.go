package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fjod/style_cart/internal/cart/domain"
	"github.com/fjod/style_cart/internal/cart/pricing"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type quoteOutput struct {
	Selected []string      `json:"selected_offers"`
	Totals   domain.Totals `json:"totals"`
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a bag from lines, shipping and offers",
		Example: "  stylectl quote --line 1:359:1 --line 2:259:1 --offer WELCOME25:25:false --select WELCOME25\n" +
			"  stylectl quote --line 1:359:2 --offer BUNDLE40:40:false --offer GOLD20:20:true --best",
		RunE: runQuote,
	}

	cmd.Flags().StringArray("line", nil, "Cart line as id:unit_price:quantity (repeatable)")
	cmd.Flags().String("shipping-cost", "0", "Shipping cost")
	cmd.Flags().StringArray("offer", nil, "Offer as id:savings:stackable (repeatable)")
	cmd.Flags().StringArray("select", nil, "Offer ids to toggle, in order (repeatable)")
	cmd.Flags().Bool("best", false, "Select the best combination of offers")
	return cmd
}

func runQuote(cmd *cobra.Command, _ []string) error {
	rawLines, _ := cmd.Flags().GetStringArray("line")
	rawShipping, _ := cmd.Flags().GetString("shipping-cost")
	rawOffers, _ := cmd.Flags().GetStringArray("offer")
	toggles, _ := cmd.Flags().GetStringArray("select")
	best, _ := cmd.Flags().GetBool("best")
	format, _ := cmd.Flags().GetString("format")

	var lines []domain.CartLine
	for _, raw := range rawLines {
		l, err := parseLine(raw)
		if err != nil {
			return err
		}
		lines = pricing.AddLine(lines, l)
	}

	shippingCost, err := decimal.NewFromString(rawShipping)
	if err != nil {
		return fmt.Errorf("invalid shipping cost %q: %w", rawShipping, err)
	}
	shipping := domain.ShippingMethod{ID: "custom", Name: "Custom", Cost: shippingCost}

	offers := make([]domain.DiscountOffer, 0, len(rawOffers))
	for _, raw := range rawOffers {
		o, err := parseOffer(raw)
		if err != nil {
			return err
		}
		offers = append(offers, o)
	}

	var selected []string
	if best {
		selected = pricing.BestCombination(offers)
	}
	for _, id := range toggles {
		if selected, err = pricing.ToggleDiscount(selected, offers, id); err != nil {
			return fmt.Errorf("cannot select %s: %w", id, err)
		}
	}

	out := quoteOutput{Selected: selected, Totals: pricing.Totals(lines, shipping, selected, offers)}
	if format == "json" {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	printQuote(cmd.OutOrStdout(), out)
	return nil
}

func printQuote(w io.Writer, out quoteOutput) {
	if len(out.Selected) > 0 {
		fmt.Fprintf(w, "Offers:   %s\n", strings.Join(out.Selected, ", "))
	}
	fmt.Fprintf(w, "Subtotal: RM%s\n", out.Totals.Subtotal.StringFixed(2))
	fmt.Fprintf(w, "Shipping: RM%s\n", out.Totals.Shipping.StringFixed(2))
	fmt.Fprintf(w, "Discount: -RM%s\n", out.Totals.Discount.StringFixed(2))
	fmt.Fprintf(w, "Total:    RM%s\n", out.Totals.Total.StringFixed(2))
}

func parseLine(raw string) (domain.CartLine, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return domain.CartLine{}, fmt.Errorf("invalid line %q: want id:unit_price:quantity", raw)
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("invalid line id %q: %w", parts[0], err)
	}
	price, err := decimal.NewFromString(parts[1])
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("invalid unit price %q: %w", parts[1], err)
	}
	qty, err := strconv.Atoi(parts[2])
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("invalid quantity %q: %w", parts[2], err)
	}
	return domain.CartLine{ID: id, Name: "line " + parts[0], UnitPrice: price, Quantity: qty}, nil
}

func parseOffer(raw string) (domain.DiscountOffer, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return domain.DiscountOffer{}, fmt.Errorf("invalid offer %q: want id:savings:stackable", raw)
	}
	savings, err := decimal.NewFromString(parts[1])
	if err != nil {
		return domain.DiscountOffer{}, fmt.Errorf("invalid savings %q: %w", parts[1], err)
	}
	stackable, err := strconv.ParseBool(parts[2])
	if err != nil {
		return domain.DiscountOffer{}, fmt.Errorf("invalid stackable flag %q: %w", parts[2], err)
	}
	return domain.DiscountOffer{ID: parts[0], Title: parts[0], Savings: savings, Stackable: stackable, Eligible: true}, nil
}
