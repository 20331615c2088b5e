package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"etatcivil/internal/payment/models"
	dErrors "etatcivil/pkg/domain-errors"
)

const exportSheet = "Paiements"

var exportHeader = []string{
	"ID",
	"Demande",
	"Type",
	"Citoyen",
	"Montant",
	"Devise",
	"Moyen",
	"Statut",
	"Session",
	"Créé le",
	"Mis à jour le",
}

var exportWidths = []float64{38, 38, 20, 38, 12, 8, 12, 12, 30, 20, 20}

// Export renders every payment as an XLSX workbook.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out, err := renderWorkbook(list)
	if err != nil {
		s.logger.ErrorContext(ctx, "payment export failed", "error", err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to export payments")
	}
	return out, nil
}

func renderWorkbook(list []*models.Payment) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheet, cell, title); err != nil {
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("style header %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(exportSheet, name, name, exportWidths[col]); err != nil {
			return nil, fmt.Errorf("set width %s: %w", name, err)
		}
	}

	for i, p := range list {
		row := []any{
			p.ID.String(),
			p.RequestID.String(),
			p.RequestType.String(),
			p.CitizenID.String(),
			p.Amount,
			p.Currency,
			p.PaymentMethod,
			p.Status.String(),
			p.ExternalSessionID,
			p.CreatedAt.Format("2006-01-02 15:04"),
			p.UpdatedAt.Format("2006-01-02 15:04"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
