package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"

	"branch-ledger/internal/entities"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var movementHeaders = []string{
	"ID", "Created", "Part", "Branch", "Action", "Quantity", "From location", "To location", "Transfer", "Actor", "Reason",
}

var lowStockHeaders = []string{
	"Part", "Part number", "Part name", "Branch", "Branch code", "On hand", "Reserved", "Available", "Min level",
}

func movementRows(list []entities.StockMovement) [][]interface{} {
	rows := make([][]interface{}, 0, len(list))
	for _, m := range list {
		rows = append(rows, []interface{}{
			m.ID, m.CreatedAt.Format("2006-01-02 15:04:05"), m.PartID, m.BranchID, m.Action.String(), m.Quantity,
			optionalID(m.FromLocationID.Valid, m.FromLocationID.Int64),
			optionalID(m.ToLocationID.Valid, m.ToLocationID.Int64),
			optionalID(m.TransferID.Valid, m.TransferID.Int64),
			optionalID(m.ActorID.Valid, m.ActorID.Int64),
			m.Reason,
		})
	}
	return rows
}

func lowStockRows(items []entities.LowStockItem) [][]interface{} {
	rows := make([][]interface{}, 0, len(items))
	for _, it := range items {
		rows = append(rows, []interface{}{
			it.PartID, it.PartNumber, it.PartName, it.BranchID, it.BranchCode,
			it.Quantity, it.Reserved, it.Available, it.MinStockLevel,
		})
	}
	return rows
}

func optionalID(valid bool, id int64) interface{} {
	if !valid {
		return ""
	}
	return id
}

func respondWithXLSX(ctx echo.Context, sheet string, headers []string, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", lastHeader, style); err != nil {
		return err
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(sheet, "A", lastCol, 16)

	fileName := fmt.Sprintf("%s_%s.xlsx", sheet, time.Now().Format("2006-01-02"))
	ctx.Response().Header().Set(echo.HeaderContentType, xlsxContentType)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+fileName)
	ctx.Response().WriteHeader(http.StatusOK)
	return f.Write(ctx.Response().Writer)
}
