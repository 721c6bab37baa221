package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/nurpe/invoice-engine/internal/model"
)

type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

func (g *Generator) Generate(report model.InvoiceReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetTitle("Invoice "+report.InvoiceNumber, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(g.fontName, "B", 16)
	pdf.CellFormat(0, 10, tr("Invoice "+report.InvoiceNumber), "", 1, "L", false, 0, "")

	pdf.SetFont(g.fontName, "", 10)
	header := [][2]string{
		{"Client", report.ClientReference},
		{"Invoice date", formatDate(report.InvoiceDate)},
		{"Due date", formatDate(report.DueDate)},
		{"Status", statusLabel(report)},
	}
	for _, line := range header {
		pdf.CellFormat(35, 6, line[0]+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(safeValue(line[1])), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	headers := []string{"Work item", "Unit", "Qty", "Unit price", "Line total"}
	colWidths := []float64{80, 20, 20, 30, 30}
	drawTableRow(pdf, g.fontName, tr, headers, colWidths, true)
	for _, line := range report.Lines {
		name := line.Name
		if line.Description != "" {
			name += " - " + line.Description
		}
		drawTableRow(pdf, g.fontName, tr, []string{
			truncate(name, 48),
			line.Unit,
			line.Quantity.String(),
			formatAmount(line.UnitPrice),
			formatAmount(line.LineTotal),
		}, colWidths, false)
	}
	pdf.Ln(2)

	totals := [][2]string{
		{"Line items", formatAmount(report.LineItemsTotal)},
		{"Supervision fee", formatAmount(report.SupervisionFee)},
		{fmt.Sprintf("General conditions (%s%%)", report.GeneralConditionsPercentage.String()), formatAmount(report.GeneralConditions)},
		{"Total", formatAmount(report.TotalCost)},
		{"Paid", formatAmount(report.PaidAmount)},
		{"Open balance", formatAmount(report.OpenBalance)},
	}
	for i, line := range totals {
		style := ""
		if i == 3 || i == len(totals)-1 {
			style = "B"
		}
		pdf.SetFont(g.fontName, style, 10)
		pdf.CellFormat(150, 6, line[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, line[1], "", 1, "R", false, 0, "")
	}

	if !report.ManualAdjustment.IsZero() {
		pdf.SetFont(g.fontName, "", 9)
		pdf.CellFormat(0, 6, fmt.Sprintf("Includes manual adjustment of %s.", formatAmount(report.ManualAdjustment)), "", 1, "R", false, 0, "")
	}
	if report.Discrepancy {
		pdf.SetTextColor(200, 0, 0)
		pdf.SetFont(g.fontName, "", 10)
		pdf.MultiCell(0, 6, "Marked as paid manually; recorded payments do not cover the total.", "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}

	if len(report.Payments) > 0 {
		pdf.Ln(4)
		pdf.SetFont(g.fontName, "B", 12)
		pdf.CellFormat(0, 8, "Payments", "", 1, "L", false, 0, "")

		payHeaders := []string{"Date", "Method", "Reference", "Amount", "Note"}
		payWidths := []float64{30, 25, 55, 30, 40}
		drawTableRow(pdf, g.fontName, tr, payHeaders, payWidths, true)
		for _, p := range report.Payments {
			note := p.Notes
			if p.Voided {
				note = strings.TrimSpace("VOID " + note)
			}
			drawTableRow(pdf, g.fontName, tr, []string{
				formatDate(p.PaymentDate),
				string(p.Method),
				paymentReference(p),
				formatAmount(p.Amount),
				truncate(note, 24),
			}, payWidths, false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, tr func(string) string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 9)
	for i, col := range cols {
		align := "L"
		if i > 1 && !header {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, tr(col), "1", 0, align, header, 0, "")
	}
	pdf.Ln(-1)
}

func statusLabel(report model.InvoiceReport) string {
	label := string(report.Status)
	if report.StatusSource == model.StatusSourceManual {
		label += " (manual)"
	}
	return label
}

func paymentReference(p model.ReportPayment) string {
	switch {
	case p.CheckNumber != "":
		return "Check " + p.CheckNumber
	case p.ReferenceNumber != "":
		return p.ReferenceNumber
	default:
		return "-"
	}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatAmount(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
