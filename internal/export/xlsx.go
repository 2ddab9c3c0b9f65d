// Package export writes dashboard views to Excel workbooks.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"shiptrack/internal/coload"
	"shiptrack/internal/domain"
)

const (
	ShipmentsSheet = "Shipments"
	GroupsSheet    = "Co-load Groups"
	ContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var shipmentHeaders = []string{
	"PO Number", "Supplier", "Type", "PO Type", "Port", "ETD", "ETA", "Clear Date",
	"Status", "Progress", "Term", "Container", "Total Value", "Weight", "Related POs",
}

var groupHeaders = []string{
	"Group", "Container", "POs", "Total Value", "Total Weight", "Unit", "Ports", "Suppliers", "Most Critical Status", "Unresolved POs",
}

// WriteXLSX writes the visible shipments, in order, and the co-load groups as
// two sheets.
func WriteXLSX(w io.Writer, shipments []domain.Shipment, groups []coload.Group) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", ShipmentsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(GroupsSheet); err != nil {
		return err
	}

	if err := writeRow(f, ShipmentsSheet, 1, headerRow(shipmentHeaders)); err != nil {
		return err
	}
	for i, s := range shipments {
		row := []interface{}{
			s.PONumber, s.SupplierName, s.Type, s.POType, s.Port, s.ETD, s.ETA, s.DateClear,
			s.Status, s.Progress, s.Term, s.QualityContainer, s.TotalValue, s.Weight, strings.Join(s.RelatedPOs, ", "),
		}
		if err := writeRow(f, ShipmentsSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := writeRow(f, GroupsSheet, 1, headerRow(groupHeaders)); err != nil {
		return err
	}
	for i, g := range groups {
		row := []interface{}{
			g.Key, g.Container, strings.Join(g.PONumbers(), ", "), g.TotalValue, g.TotalWeight, g.WeightUnit,
			strings.Join(g.Ports, ", "), strings.Join(g.Suppliers, ", "), g.MostCriticalStatus, strings.Join(g.UnresolvedPOs, ", "),
		}
		if err := writeRow(f, GroupsSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetPanes(ShipmentsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func headerRow(headers []string) []interface{} {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return row
}

func writeRow(f *excelize.File, sheet string, rowNo int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
