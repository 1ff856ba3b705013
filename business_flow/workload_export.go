package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/campaign-callcenter/app/dto"
	"github.com/xuri/excelize/v2"
)

const workloadSheet = "workload"

// ExportCallerWorkload renders GetCallerWorkload as an xlsx workbook
func (f *LoadBalancerFlowImpl) ExportCallerWorkload(ctx context.Context, req *dto.CallerWorkloadRequest) (*dto.WorkloadExport, error) {
	workload, err := f.GetCallerWorkload(ctx, req)
	if err != nil {
		return nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), workloadSheet); err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to prepare workload sheet", err)
	}

	header := []any{"caller_id", "pending", "in_progress", "completed", "reassigned", "total"}
	_ = xl.SetSheetRow(workloadSheet, "A1", &header)

	for i, item := range workload.Items {
		record := []any{item.CallerID, item.Pending, item.InProgress, item.Completed, item.Reassigned, item.Total}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(workloadSheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	return &dto.WorkloadExport{
		FileName:    fmt.Sprintf("caller_workload_campaign_%d.xlsx", req.CampaignID),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Content:     buf.Bytes(),
	}, nil
}
