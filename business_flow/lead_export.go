package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/models"
	"github.com/xuri/excelize/v2"
)

var leadExportHeader = []string{
	"lead_id", "name", "contact_number", "email", "property_type", "project_address",
	"expected_budget", "status", "sales_rep", "designer", "call_description", "next_call",
	"calls", "signup_amount", "payment_date", "payment_mode", "reason_for_lost",
	"reason_for_junk", "submitted_by", "stage",
}

// ExportLeads writes the active tab, after search, to a spreadsheet
func (f *LeadFlowImpl) ExportLeads(ctx context.Context, req *dto.ListLeadsRequest, actor Actor, metadata *ClientMetadata) (*dto.LeadExportResponse, error) {
	list, err := f.ListLeads(ctx, req, actor)
	if err != nil {
		return nil, err
	}

	tab, _ := ResolveTab(actor.Role, list.ActiveTab)

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	name := sanitizeSheetName(tab.Label)
	xl.SetSheetName(xl.GetSheetName(0), name)

	header := leadExportHeader
	_ = xl.SetSheetRow(name, "A1", &header)

	for ri, l := range list.Leads {
		record := []string{
			l.LeadID,
			l.Name,
			str(l.ContactNumber),
			str(l.Email),
			str((*string)(l.PropertyType)),
			str(l.ProjectAddress),
			num(l.ExpectedBudget),
			l.Status.String(),
			str(l.SalesRep),
			str(l.Designer),
			str(l.CallDescription),
			timeStr(l.NextCall),
			strconv.Itoa(len(l.CallHistory)),
			num(l.SignupAmount),
			str(l.PaymentDate),
			str(l.PaymentMode),
			str((*string)(l.ReasonForLost)),
			str(l.ReasonForJunk),
			str(l.SubmittedBy),
			str(l.StageName),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(name, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	_ = createAuditLog(ctx, f.auditRepo, actor, "", models.AuditActionLeadsExported,
		fmt.Sprintf("Exported %d leads from tab %s", len(list.Leads), tab.Key), true, nil, metadata)

	return &dto.LeadExportResponse{
		Filename: fmt.Sprintf("leads_%s_%s.xlsx", tab.Key, f.now().Format("20060102")),
		Content:  buf.Bytes(),
		Rows:     len(list.Leads),
	}, nil
}

func sanitizeSheetName(name string) string {
	// Excel sheet names cannot contain: : \ / ? * [ ] and must be <= 31 chars
	replacer := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	safe := strings.TrimSpace(replacer.Replace(name))
	if safe == "" {
		safe = "Leads"
	}
	if r := []rune(safe); len(r) > 31 {
		safe = string(r[:31])
	}
	return safe
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func num(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func timeStr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
