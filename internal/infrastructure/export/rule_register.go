package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
)

var registerHeader = []interface{}{
	"Rule ID", "Name", "Enabled", "Lower bound", "Approver groups", "Default approver", "Created by", "Updated at",
}

// sheetTitles names the worksheet of each document type
var sheetTitles = map[entity.DocumentType]string{
	entity.DocumentTypePurchaseOrder:   "Purchase Orders",
	entity.DocumentTypeRequestForQuote: "Requests for Quote",
	entity.DocumentTypeIssue:           "Issues",
}

// RuleRegister writes the approval rules of a company into an XLSX workbook,
// one worksheet per document type.
type RuleRegister struct {
	logger *zap.Logger
}

// NewRuleRegister creates a new rule register exporter
func NewRuleRegister(logger *zap.Logger) *RuleRegister {
	return &RuleRegister{logger: logger}
}

// Export renders rules to w. Rules keep the order they are given in within each sheet.
func (e *RuleRegister) Export(w io.Writer, companyID string, rules []*entity.ApprovalRule) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	byType := make(map[entity.DocumentType][]*entity.ApprovalRule)
	for _, rule := range rules {
		byType[rule.DocumentType] = append(byType[rule.DocumentType], rule)
	}

	first := true
	for _, docType := range entity.DocumentTypes {
		sheet := sheetTitles[docType]
		if first {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
			first = false
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}

		if err := e.writeSheet(f, sheet, headerStyle, byType[docType]); err != nil {
			return err
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Approval rules",
		Subject: companyID,
		Created: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		e.logger.Warn("Failed to set document properties", zap.Error(err))
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Rule register exported",
		zap.String("company_id", companyID),
		zap.Int("rules", len(rules)))
	return nil
}

func (e *RuleRegister) writeSheet(f *excelize.File, sheet string, headerStyle int, rules []*entity.ApprovalRule) error {
	if err := f.SetSheetRow(sheet, "A1", &registerHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "H1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", "H", 20); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		e.logger.Warn("Failed to freeze header row", zap.String("sheet", sheet), zap.Error(err))
	}

	for i, rule := range rules {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			rule.ID,
			rule.Name,
			enabledLabel(rule.Enabled),
			rule.LowerBoundAmount.String(),
			strings.Join(rule.ApproverGroupIDs, ", "),
			rule.DefaultApproverID,
			rule.CreatedBy,
			rule.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write rule %s: %w", rule.ID, err)
		}
	}
	return nil
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "yes"
	}
	return "no"
}

// Verify interface compliance
var _ port.RuleExporter = (*RuleRegister)(nil)
