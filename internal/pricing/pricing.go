// Package pricing computes the unit price of a draft item from the option
// snapshot stored on the item. It never looks at the live menu: an item whose
// product was later removed is still priced by what it carried.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mesa-pos/api/internal/database"
	"github.com/shopspring/decimal"
)

// Errors returned by Validate.
var (
	ErrMissingProduct     = errors.New("product_id and name are required")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrNegativePrice      = errors.New("prices must not be negative")
	ErrInvalidFlavorSplit = errors.New("flavor percentages must add up to 100")
)

var hundred = decimal.NewFromInt(100)

// UnitPrice returns the price of one unit of item.
//
// A selected size replaces the base price outright; otherwise a positive
// promotional price replaces it. Stuffed crust and add-ons are added on top.
// A flavor combination fixes the final price and ignores everything else;
// a custom flavor split adds each flavor's surcharge weighted by its share.
func UnitPrice(item database.DraftItem) decimal.Decimal {
	if item.FlavorCombination != nil {
		return item.FlavorCombination.Price
	}

	price := item.Price
	switch {
	case item.SelectedSize != nil:
		price = item.SelectedSize.Price
	case item.PromotionalPrice != nil && item.PromotionalPrice.IsPositive():
		price = *item.PromotionalPrice
	}

	if item.SelectedStuffedCrust != nil {
		price = price.Add(item.SelectedStuffedCrust.Price)
	}
	for _, addon := range item.SelectedAddons {
		price = price.Add(addon.Price)
	}
	for _, flavor := range item.SelectedFlavors {
		price = price.Add(flavor.AdditionalPrice.Mul(flavor.Percentage).Div(hundred))
	}
	return price
}

// LineTotal is UnitPrice times quantity.
func LineTotal(item database.DraftItem) decimal.Decimal {
	return UnitPrice(item).Mul(decimal.NewFromInt32(item.Quantity))
}

// Validate checks the selections a client sent before the item is stored.
// UnitPrice assumes it has passed.
func Validate(item database.DraftItem) error {
	if strings.TrimSpace(item.ProductID) == "" || strings.TrimSpace(item.Name) == "" {
		return ErrMissingProduct
	}
	if item.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	prices := []decimal.Decimal{item.Price}
	if item.PromotionalPrice != nil {
		prices = append(prices, *item.PromotionalPrice)
	}
	if item.SelectedSize != nil {
		prices = append(prices, item.SelectedSize.Price)
	}
	if item.SelectedStuffedCrust != nil {
		prices = append(prices, item.SelectedStuffedCrust.Price)
	}
	for _, addon := range item.SelectedAddons {
		prices = append(prices, addon.Price)
	}
	for _, flavor := range item.SelectedFlavors {
		prices = append(prices, flavor.AdditionalPrice)
	}
	if item.FlavorCombination != nil {
		prices = append(prices, item.FlavorCombination.Price)
	}
	for _, p := range prices {
		if p.IsNegative() {
			return ErrNegativePrice
		}
	}

	if len(item.SelectedFlavors) > 0 {
		if err := checkShares(item.SelectedFlavors); err != nil {
			return err
		}
	}
	if item.FlavorCombination != nil && len(item.FlavorCombination.Flavors) > 0 {
		if err := checkShares(item.FlavorCombination.Flavors); err != nil {
			return fmt.Errorf("combination %q: %w", item.FlavorCombination.Name, err)
		}
	}
	return nil
}

func checkShares(flavors []database.FlavorShare) error {
	total := decimal.Zero
	for _, f := range flavors {
		if f.Percentage.IsNegative() {
			return ErrInvalidFlavorSplit
		}
		total = total.Add(f.Percentage)
	}
	if !total.Equal(hundred) {
		return ErrInvalidFlavorSplit
	}
	return nil
}

// Describe lists the selected options in the order a kitchen ticket shows them.
func Describe(item database.DraftItem) []string {
	var out []string
	if item.SelectedSize != nil {
		out = append(out, "size: "+item.SelectedSize.Name)
	}
	if item.SelectedStuffedCrust != nil {
		out = append(out, "crust: "+item.SelectedStuffedCrust.Name)
	}
	for _, addon := range item.SelectedAddons {
		out = append(out, "+ "+addon.Name)
	}
	if item.FlavorCombination != nil {
		out = append(out, "combo: "+item.FlavorCombination.Name)
	} else {
		for _, f := range item.SelectedFlavors {
			out = append(out, fmt.Sprintf("%s %s%%", f.Name, f.Percentage.String()))
		}
	}
	return out
}
