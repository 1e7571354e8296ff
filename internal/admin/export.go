package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/m3rciful/meterbot/core/logger"
	"github.com/m3rciful/meterbot/internal/flow"
	"github.com/m3rciful/meterbot/internal/meter"
)

// SheetName is the worksheet holding the exported readings.
const SheetName = "Readings"

var exportHeader = []any{"Apartment", "Meter Type", "Serial Number", "Value", "Submission Date"}

// ExportFileName is the document name of the period export.
func ExportFileName(p meter.Period) string {
	return fmt.Sprintf("meter_readings_%s.xlsx", p)
}

// Export sends the readings of the current period as an xlsx document.
func (s *Service) Export(ctx context.Context) flow.Result {
	period := s.period()
	rows, err := s.store.ReadingsForPeriod(ctx, period)
	if err != nil {
		logger.Error(ctx, component, "export.query",
			slog.String("status", "fail"),
			slog.String("period", period.String()),
			slog.String("err", err.Error()),
		)
		return flow.End(flow.Say(msgFailed))
	}
	if len(rows) == 0 {
		return flow.End(flow.Say("No data for the selected period."))
	}

	data, err := BuildWorkbook(rows)
	if err != nil {
		logger.Error(ctx, component, "export.build",
			slog.String("status", "fail"),
			slog.String("period", period.String()),
			slog.String("err", err.Error()),
		)
		return flow.End(flow.Say(msgFailed))
	}
	logger.Info(ctx, component, "export.build",
		slog.String("status", "ok"),
		slog.String("period", period.String()),
		slog.Int("count", len(rows)),
		slog.Int("bytes", len(data)),
	)
	return flow.End(flow.Reply{Document: &flow.Document{
		FileName: ExportFileName(period),
		Data:     data,
		Caption:  fmt.Sprintf("Meter readings for %s", period.Label()),
	}})
}

// BuildWorkbook renders rows into an xlsx workbook with a single Readings sheet.
func BuildWorkbook(rows []meter.ReadingRow) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "E1", bold); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []any{r.Apartment, r.Type.Title(), r.SerialNumber, r.Value, r.ReadingDate.Format("2006-01-02")}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	widths := map[string]float64{"A": 12, "B": 16, "C": 20, "D": 12, "E": 18}
	for col, w := range widths {
		if err := f.SetColWidth(SheetName, col, col, w); err != nil {
			return nil, fmt.Errorf("column width %s: %w", col, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
