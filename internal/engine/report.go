package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/nurpe/invoice-engine/internal/model"
)

func BuildReport(inv *model.Invoice) model.InvoiceReport {
	lines := lo.Map(inv.WorkItems, func(w model.WorkItem, _ int) model.ReportLine {
		return model.ReportLine{
			Name:        w.Name,
			Description: lo.FromPtr(w.Description),
			Quantity:    w.Quantity,
			Unit:        w.Unit,
			UnitPrice:   w.UnitPrice,
			LineTotal:   Round2(w.LineTotal()),
		}
	})
	payments := lo.Map(inv.Payments, func(p model.Payment, _ int) model.ReportPayment {
		return model.ReportPayment{
			ID:              p.ID,
			Amount:          p.Amount,
			PaymentDate:     p.PaymentDate,
			Method:          p.Method,
			CheckNumber:     lo.FromPtr(p.CheckNumber),
			ReferenceNumber: lo.FromPtr(p.ReferenceNumber),
			Notes:           p.Notes,
			Voided:          inv.IsVoided(p.ID),
			Documents:       append([]string{}, p.Documents...),
		}
	})

	return model.InvoiceReport{
		InvoiceID:                   inv.ID,
		InvoiceNumber:               inv.InvoiceNumber,
		ClientReference:             inv.ClientReference,
		InvoiceDate:                 inv.InvoiceDate,
		DueDate:                     inv.DueDate,
		Lines:                       lines,
		LineItemsTotal:              inv.LineItemsTotal,
		GeneralConditionsPercentage: inv.GeneralConditionsPercentage,
		GeneralConditions:           inv.GeneralConditions,
		SupervisionFee:              inv.SupervisionFee,
		TotalCost:                   inv.TotalCost,
		PaidAmount:                  inv.PaidAmount,
		ManualAdjustment:            inv.ManualAdjustment,
		OpenBalance:                 OpenBalance(inv),
		Status:                      inv.Status,
		StatusSource:                inv.StatusSource,
		Discrepancy:                 inv.Discrepancy(),
		Payments:                    payments,
	}
}

func BuildStatement(orgID uuid.UUID, invoices []*model.Invoice, now time.Time) model.Statement {
	return model.Statement{
		OrganizationID: orgID,
		GeneratedAt:    now,
		Invoices: lo.Map(invoices, func(inv *model.Invoice, _ int) model.InvoiceReport {
			return BuildReport(inv)
		}),
	}
}
