package handler

import (
	"time"

	"sevapay/internal/adapter/http/dto"
	"sevapay/internal/core/domain"
)

func toFeeBreakdownResponse(f domain.FeeBreakdown) dto.FeeBreakdownResponse {
	return dto.FeeBreakdownResponse{
		BaseAmount:  f.BaseAmount,
		GSTBps:      f.GSTBps,
		GSTAmount:   f.GSTAmount,
		PlatformFee: f.PlatformFee,
		TotalAmount: f.TotalAmount,
	}
}

func toLedgerEntryResponse(e domain.LedgerEntry) dto.LedgerEntryResponse {
	direction := "DEBIT"
	if e.Kind.IsCredit() {
		direction = "CREDIT"
	}
	return dto.LedgerEntryResponse{
		ID:          e.ID.String(),
		Kind:        string(e.Kind),
		Direction:   direction,
		Amount:      e.Amount,
		Status:      string(e.Status),
		Reference:   e.Reference,
		Description: e.Description,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}

func toLedgerListResponse(entries []domain.LedgerEntry, total int64, page, pageSize int) dto.LedgerListResponse {
	items := make([]dto.LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, toLedgerEntryResponse(e))
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return dto.LedgerListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

func toApplicationResponse(a *domain.Application) dto.ApplicationResponse {
	return dto.ApplicationResponse{
		ID:          a.ID.String(),
		ApplicantID: a.ApplicantID.String(),
		ServiceID:   a.ServiceID.String(),
		Status:      string(a.Status),
		Fees:        toFeeBreakdownResponse(a.Fees),
		Charged:     a.Charged,
		IsReapply:   a.IsReapply,
		DocumentURL: a.DocumentURL,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   a.UpdatedAt.Format(time.RFC3339),
	}
}

func toOrderResponse(o *domain.RechargeOrder) dto.OrderResponse {
	return dto.OrderResponse{
		ID:            o.ID.String(),
		ServiceType:   string(o.ServiceType),
		OperatorCode:  o.OperatorCode,
		CircleCode:    o.CircleCode,
		TargetNumber:  o.TargetNumber,
		Amount:        o.Amount,
		Status:        string(o.Status),
		AggregatorRef: o.AggregatorRef,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     o.UpdatedAt.Format(time.RFC3339),
	}
}
