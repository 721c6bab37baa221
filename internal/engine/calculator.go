package engine

import (
	"github.com/shopspring/decimal"

	"github.com/nurpe/invoice-engine/internal/model"
)

type CostBreakdown struct {
	LineItemsTotal    decimal.Decimal
	Percentage        decimal.Decimal
	GeneralConditions decimal.Decimal
	SupervisionFee    decimal.Decimal
	TotalCost         decimal.Decimal
}

// CalculateCost derives invoice totals from line items. A nil percentage
// means the default. It has no side effects and may be called on every edit.
func CalculateCost(items []model.WorkItem, supervisionFee decimal.Decimal, percentage *decimal.Decimal) CostBreakdown {
	pct := DefaultGeneralConditionsPercentage
	if percentage != nil {
		pct = *percentage
	}

	lineItemsTotal := decimal.Zero
	for _, item := range items {
		lineItemsTotal = lineItemsTotal.Add(item.LineTotal())
	}
	lineItemsTotal = Round2(lineItemsTotal)
	fee := Round2(supervisionFee)

	generalConditions := Round2(lineItemsTotal.Add(fee).Mul(pct).Div(hundred))

	return CostBreakdown{
		LineItemsTotal:    lineItemsTotal,
		Percentage:        pct,
		GeneralConditions: generalConditions,
		SupervisionFee:    fee,
		TotalCost:         lineItemsTotal.Add(generalConditions).Add(fee),
	}
}

// CalculateCostRaw is CalculateCost for a percentage as typed by a user.
func CalculateCostRaw(items []model.WorkItem, supervisionFee decimal.Decimal, rawPercentage string) CostBreakdown {
	pct := ParsePercentage(rawPercentage)
	return CalculateCost(items, supervisionFee, &pct)
}
