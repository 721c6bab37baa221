package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/invoice-engine/internal/model"
)

const (
	summarySheet  = "Invoices"
	paymentsSheet = "Payments"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(statement model.Statement) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if err := g.writeSummary(file, summarySheet, statement); err != nil {
		return nil, err
	}

	if _, err := file.NewSheet(paymentsSheet); err != nil {
		return nil, err
	}
	if err := g.writePayments(file, paymentsSheet, statement); err != nil {
		return nil, err
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, statement model.Statement) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Generated at")
	set("B1", statement.GeneratedAt.Format("2006-01-02 15:04"))
	set("A2", "Invoices")
	set("B2", len(statement.Invoices))
	set("A3", "Total invoiced")
	set("B3", moneyValue(sumBy(statement.Invoices, func(r model.InvoiceReport) decimal.Decimal { return r.TotalCost })))
	set("A4", "Total open")
	set("B4", moneyValue(sumBy(statement.Invoices, func(r model.InvoiceReport) decimal.Decimal { return r.OpenBalance })))

	tableRow := 6
	headers := []string{
		"Invoice number",
		"Client",
		"Invoice date",
		"Due date",
		"Status",
		"Status source",
		"Line items",
		"General conditions",
		"Supervision fee",
		"Total",
		"Paid",
		"Open balance",
		"Discrepancy",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	for i, inv := range statement.Invoices {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), inv.InvoiceNumber)
		set(fmt.Sprintf("B%d", row), inv.ClientReference)
		set(fmt.Sprintf("C%d", row), formatDate(inv.InvoiceDate))
		set(fmt.Sprintf("D%d", row), formatDate(inv.DueDate))
		set(fmt.Sprintf("E%d", row), string(inv.Status))
		set(fmt.Sprintf("F%d", row), string(inv.StatusSource))
		set(fmt.Sprintf("G%d", row), moneyValue(inv.LineItemsTotal))
		set(fmt.Sprintf("H%d", row), moneyValue(inv.GeneralConditions))
		set(fmt.Sprintf("I%d", row), moneyValue(inv.SupervisionFee))
		set(fmt.Sprintf("J%d", row), moneyValue(inv.TotalCost))
		set(fmt.Sprintf("K%d", row), moneyValue(inv.PaidAmount))
		set(fmt.Sprintf("L%d", row), moneyValue(inv.OpenBalance))
		if inv.Discrepancy {
			set(fmt.Sprintf("M%d", row), "yes")
		}
	}

	_ = file.SetColWidth(sheet, "A", "A", 20)
	_ = file.SetColWidth(sheet, "B", "B", 36)
	_ = file.SetColWidth(sheet, "C", "F", 14)
	_ = file.SetColWidth(sheet, "G", "L", 16)
	return nil
}

func (g *Generator) writePayments(file *excelize.File, sheet string, statement model.Statement) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	headers := []string{
		"Invoice number",
		"Payment date",
		"Method",
		"Check number",
		"Reference",
		"Amount",
		"Voided",
		"Notes",
		"Documents",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	row := 2
	for _, inv := range statement.Invoices {
		for _, p := range inv.Payments {
			set(fmt.Sprintf("A%d", row), inv.InvoiceNumber)
			set(fmt.Sprintf("B%d", row), formatDate(p.PaymentDate))
			set(fmt.Sprintf("C%d", row), string(p.Method))
			set(fmt.Sprintf("D%d", row), p.CheckNumber)
			set(fmt.Sprintf("E%d", row), p.ReferenceNumber)
			set(fmt.Sprintf("F%d", row), moneyValue(p.Amount))
			if p.Voided {
				set(fmt.Sprintf("G%d", row), "yes")
			}
			set(fmt.Sprintf("H%d", row), p.Notes)
			set(fmt.Sprintf("I%d", row), strings.Join(p.Documents, "\n"))
			row++
		}
	}

	_ = file.SetColWidth(sheet, "A", "A", 20)
	_ = file.SetColWidth(sheet, "B", "G", 14)
	_ = file.SetColWidth(sheet, "H", "I", 40)
	return nil
}

func sumBy(invoices []model.InvoiceReport, value func(model.InvoiceReport) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, inv := range invoices {
		total = total.Add(value(inv))
	}
	return total
}

// moneyValue keeps cells numeric; float64 is exact enough at two decimals for display.
func moneyValue(value decimal.Decimal) float64 {
	f, _ := value.Round(2).Float64()
	return f
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
