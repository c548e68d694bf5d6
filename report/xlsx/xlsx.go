// Package xlsx renders invoices and report bundles as Excel workbooks.
package xlsx

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/xraph/tally/client"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/report"
)

// ContentType is the MIME type of the rendered workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const dateLayout = "2006-01-02"

// Formatter renders invoices as single-sheet workbooks. Register it with
// tally.WithPlugin to enable Engine.RenderInvoice(ctx, id, "xlsx", w).
type Formatter struct{}

// Compile-time checks.
var _ plugin.InvoiceFormatter = (*Formatter)(nil)

// New returns an xlsx invoice formatter.
func New() *Formatter { return &Formatter{} }

// Name implements plugin.Plugin.
func (f *Formatter) Name() string { return "xlsx" }

// Format implements plugin.InvoiceFormatter.
func (f *Formatter) Format() string { return "xlsx" }

// Render writes inv as a workbook to w.
func (f *Formatter) Render(_ context.Context, inv *invoice.Invoice, c *client.Client, w io.Writer) error {
	name := inv.Number
	if name == "" {
		name = "Invoice"
	}
	wb, sheet, err := newWorkbook(name)
	if err != nil {
		return err
	}
	defer wb.Close()

	header := [][]interface{}{
		{"Invoice", inv.Number},
		{"Status", string(inv.Status)},
		{"Client", clientName(c)},
		{"Issued", inv.IssueDate.Format(dateLayout)},
	}
	if inv.DueDate != nil {
		header = append(header, []interface{}{"Due", inv.DueDate.Format(dateLayout)})
	}
	if inv.PaidAt != nil {
		header = append(header, []interface{}{"Paid", inv.PaidAt.Format(dateLayout)})
	}

	row := 1
	for _, values := range header {
		if err := setRow(wb, sheet, row, values); err != nil {
			return err
		}
		row++
	}

	row++
	if err := setRow(wb, sheet, row, []interface{}{"Description", "Quantity", "Rate", "Amount"}); err != nil {
		return err
	}
	for _, item := range inv.LineItems {
		row++
		values := []interface{}{
			item.Description,
			item.Quantity.InexactFloat64(),
			item.Rate.Decimal().InexactFloat64(),
			item.Amount.Decimal().InexactFloat64(),
		}
		if err := setRow(wb, sheet, row, values); err != nil {
			return err
		}
	}

	row++
	totals := [][]interface{}{
		{"", "", "Subtotal", inv.Subtotal.Decimal().InexactFloat64()},
		{"", "", fmt.Sprintf("Tax (%s%%)", inv.TaxPercent.String()), inv.TaxAmount.Decimal().InexactFloat64()},
		{"", "", "Discount", inv.Discount.Decimal().InexactFloat64()},
		{"", "", "Total", inv.Total.Decimal().InexactFloat64()},
	}
	for _, values := range totals {
		row++
		if err := setRow(wb, sheet, row, values); err != nil {
			return err
		}
	}

	return wb.Write(w)
}

// WriteReport writes a report bundle as a workbook with one sheet per
// chart plus a summary sheet.
func WriteReport(b *report.Bundle, w io.Writer) error {
	wb, summary, err := newWorkbook("Summary")
	if err != nil {
		return err
	}
	defer wb.Close()

	if d := b.Dashboard; d != nil {
		rows := [][]interface{}{
			{"Generated", d.GeneratedAt.Format("2006-01-02 15:04:05")},
			{"Active clients", d.TotalClients},
			{"Projects", d.TotalProjects},
			{"Active projects", d.ActiveProjects},
			{"Total revenue", d.TotalRevenue.Decimal().InexactFloat64()},
			{"Pending revenue", d.PendingRevenue.Decimal().InexactFloat64()},
			{"Revenue this month", d.MonthlyRevenue.Decimal().InexactFloat64()},
			{"Hours tracked", d.TotalHoursTracked.InexactFloat64()},
		}
		for i, values := range rows {
			if err := setRow(wb, summary, i+1, values); err != nil {
				return err
			}
		}
	}

	revenue := [][]interface{}{{"Month", "Revenue"}}
	for _, m := range b.Revenue {
		revenue = append(revenue, []interface{}{m.Month.Format("2006-01"), m.Revenue.Decimal().InexactFloat64()})
	}
	if err := addSheet(wb, "Revenue", revenue); err != nil {
		return err
	}

	statuses := [][]interface{}{{"Status", "Projects"}}
	for _, s := range b.Distribution {
		statuses = append(statuses, []interface{}{string(s.Status), s.Count})
	}
	if err := addSheet(wb, "Projects", statuses); err != nil {
		return err
	}

	top := [][]interface{}{{"Client", "Company", "Revenue", "Projects"}}
	for _, c := range b.TopClients {
		top = append(top, []interface{}{c.Name, c.Company, c.Revenue.Decimal().InexactFloat64(), c.ProjectCount})
	}
	if err := addSheet(wb, "Top clients", top); err != nil {
		return err
	}

	return wb.Write(w)
}

func newWorkbook(sheet string) (*excelize.File, string, error) {
	wb := excelize.NewFile()
	idx, err := wb.NewSheet(sheet)
	if err != nil {
		_ = wb.Close()
		return nil, "", fmt.Errorf("xlsx: new sheet: %w", err)
	}
	wb.SetActiveSheet(idx)
	if sheet != "Sheet1" {
		if err := wb.DeleteSheet("Sheet1"); err != nil {
			_ = wb.Close()
			return nil, "", fmt.Errorf("xlsx: drop default sheet: %w", err)
		}
	}
	return wb, sheet, nil
}

func addSheet(wb *excelize.File, name string, rows [][]interface{}) error {
	if _, err := wb.NewSheet(name); err != nil {
		return fmt.Errorf("xlsx: new sheet %s: %w", name, err)
	}
	for i, values := range rows {
		if err := setRow(wb, name, i+1, values); err != nil {
			return err
		}
	}
	return nil
}

func setRow(wb *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := wb.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("xlsx: row %d: %w", row, err)
	}
	return nil
}

func clientName(c *client.Client) string {
	if c == nil {
		return ""
	}
	if c.Company != "" {
		return c.Name + " (" + c.Company + ")"
	}
	return c.Name
}
