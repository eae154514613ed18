// README: Workbook and CSV exports of delivered transactions.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

const deliveredSheet = "Delivered"

// ExportWorkbook builds an xlsx file with one sheet of delivered
// transactions and one of the per-role criteria. The caller owns closing it.
func (s *Service) ExportWorkbook(ctx context.Context) (*excelize.File, error) {
	rows, err := s.deliveredRows(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", deliveredSheet); err != nil {
		return nil, err
	}
	headers := []string{"Donation ID", "Items", "Recipient", "Weight (kg)", "Matched At", "Picked Up At", "Delivered At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(deliveredSheet, cell, h)
	}
	for i, row := range rows {
		values := []interface{}{
			row.DonationID,
			row.Items,
			row.Recipient,
			row.WeightKg,
			row.MatchedAt.Format(time.RFC3339),
			formatOptional(row.PickedUpAt),
			formatOptional(row.DeliveredAt),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(deliveredSheet, cell, v)
		}
	}

	if s.criteria != nil {
		if _, err := f.NewSheet("Role Criteria"); err != nil {
			return nil, err
		}
		f.SetCellValue("Role Criteria", "A1", "Role")
		f.SetCellValue("Role Criteria", "B1", "Criteria")
		rowNo := 2
		for _, role := range []string{"donor", "recipient", "volunteer", "admin"} {
			for r, criteria := range s.criteria.All() {
				if string(r) != role {
					continue
				}
				for _, c := range criteria {
					f.SetCellValue("Role Criteria", "A"+fmt.Sprint(rowNo), role)
					f.SetCellValue("Role Criteria", "B"+fmt.Sprint(rowNo), c)
					rowNo++
				}
			}
		}
	}
	return f, nil
}

// ExportCSV streams delivered transactions as CSV.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	rows, err := s.deliveredRows(ctx)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"donation_id", "items", "recipient", "weight_kg", "matched_at", "picked_up_at", "delivered_at"}); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.DonationID,
			row.Items,
			row.Recipient,
			strconv.FormatFloat(row.WeightKg, 'f', -1, 64),
			row.MatchedAt.Format(time.RFC3339),
			formatOptional(row.PickedUpAt),
			formatOptional(row.DeliveredAt),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
