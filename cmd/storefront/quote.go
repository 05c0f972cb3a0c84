package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Cheertaboi/jewelry-storefront/internal/cart"
	"github.com/Cheertaboi/jewelry-storefront/internal/config"
	"github.com/Cheertaboi/jewelry-storefront/internal/pricing"
)

func newQuoteCmd(configDir *string) *cobra.Command {
	var shipping string

	cmd := &cobra.Command{
		Use:   "quote <cart.json>",
		Short: "Price a saved cart offline with the configured tax and shipping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPaths(*configDir)...)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			engine, err := pricingEngine(cfg.Pricing)
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var c cart.Cart
			if err := json.Unmarshal(raw, &c); err != nil {
				return fmt.Errorf("parse cart: %w", err)
			}

			totals, err := c.Totals(engine, pricing.OptionID(shipping))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(totals)
		},
	}
	cmd.Flags().StringVar(&shipping, "shipping", "", "shipping option id (default: first configured)")
	return cmd
}

// pricingEngine builds the engine from configured fees and delivery estimates
func pricingEngine(p config.PricingConfig) (*pricing.Engine, error) {
	def := pricing.DefaultConfig()
	cfg := pricing.Config{TaxRate: decimal.NewFromFloat(p.TaxRate)}
	for _, o := range def.Options {
		switch o.ID {
		case pricing.Standard:
			o.EstimateDays = p.StandardDays
		case pricing.Express:
			o.Cost, o.EstimateDays = decimal.NewFromFloat(p.ExpressFee), p.ExpressDays
		case pricing.NextDay:
			o.Cost, o.EstimateDays = decimal.NewFromFloat(p.NextDayFee), p.NextDayDays
		}
		cfg.Options = append(cfg.Options, o)
	}
	engine, err := pricing.NewEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("pricing config: %w", err)
	}
	return engine, nil
}
