package dto

// TopupRequest is the request body for initiating a wallet top-up.
type TopupRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// TopupInitResponse is the response for an initiated top-up.
type TopupInitResponse struct {
	OrderID      string               `json:"order_id"`
	SessionToken string               `json:"session_token"`
	Fees         FeeBreakdownResponse `json:"fees"`
}

// WithdrawRequest is the request body for a withdrawal. Reference is the
// client's idempotency key; retries with the same reference debit once.
type WithdrawRequest struct {
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	Reference string `json:"reference,omitempty" binding:"omitempty,max=64,safe_id"`
	ProofURL  string `json:"proof_url" binding:"required,safe_url"`
}

// GatewayCallbackRequest is the payment gateway's checkout outcome. The
// owner and amount come from the persisted top-up order, never the wire.
type GatewayCallbackRequest struct {
	OrderID string `json:"order_id" binding:"required,max=100"`
	Success bool   `json:"success"`
}

// SubmitApplicationRequest is the request body for a new service application.
type SubmitApplicationRequest struct {
	ServiceID   string  `json:"service_id" binding:"required,uuid"`
	BaseAmount  int64   `json:"base_amount" binding:"gte=0"`
	DocumentURL *string `json:"document_url,omitempty" binding:"omitempty,safe_url"`
}

// PurchaseRequest is the request body for a recharge purchase.
type PurchaseRequest struct {
	ServiceType  string  `json:"service_type" binding:"required,oneof=PREPAID POSTPAID DTH ELECTRICITY"`
	OperatorCode string  `json:"operator_code" binding:"required,safe_id"`
	CircleCode   *string `json:"circle_code,omitempty" binding:"omitempty,safe_id"`
	TargetNumber string  `json:"target_number" binding:"required,min=4,max=30"`
	Amount       int64   `json:"amount" binding:"required,gt=0"`
	BillRef      *string `json:"bill_ref,omitempty" binding:"omitempty,max=100"`
}

// RechargeCallbackRequest is the aggregator's asynchronous outcome.
type RechargeCallbackRequest struct {
	OrderID       string `json:"order_id" binding:"required,uuid"`
	Status        string `json:"status" binding:"required,oneof=SUCCESS FAILED PENDING"`
	AggregatorRef string `json:"aggregator_ref,omitempty" binding:"max=100"`
}

// FeeBreakdownResponse mirrors a fee quote.
type FeeBreakdownResponse struct {
	BaseAmount  int64 `json:"base_amount"`
	GSTBps      int64 `json:"gst_bps"`
	GSTAmount   int64 `json:"gst_amount"`
	PlatformFee int64 `json:"platform_fee"`
	TotalAmount int64 `json:"total_amount"`
}

// WalletBalanceResponse is the response for a balance query.
type WalletBalanceResponse struct {
	Balance int64 `json:"balance"`
}

// LedgerEntryResponse is one ledger entry in API form.
type LedgerEntryResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Direction   string `json:"direction"`
	Amount      int64  `json:"amount"`
	Status      string `json:"status"`
	Reference   string `json:"reference"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// LedgerListResponse wraps a paginated ledger listing.
type LedgerListResponse struct {
	Items      []LedgerEntryResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// ApplicationResponse is one service application in API form.
type ApplicationResponse struct {
	ID          string               `json:"id"`
	ApplicantID string               `json:"applicant_id"`
	ServiceID   string               `json:"service_id"`
	Status      string               `json:"status"`
	Fees        FeeBreakdownResponse `json:"fees"`
	Charged     bool                 `json:"charged"`
	IsReapply   bool                 `json:"is_reapply"`
	DocumentURL *string              `json:"document_url,omitempty"`
	CreatedAt   string               `json:"created_at"`
	UpdatedAt   string               `json:"updated_at"`
}

// OrderResponse is one recharge order in API form.
type OrderResponse struct {
	ID            string  `json:"id"`
	ServiceType   string  `json:"service_type"`
	OperatorCode  string  `json:"operator_code"`
	CircleCode    *string `json:"circle_code,omitempty"`
	TargetNumber  string  `json:"target_number"`
	Amount        int64   `json:"amount"`
	Status        string  `json:"status"`
	AggregatorRef *string `json:"aggregator_ref,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// OperatorHintResponse is a detected operator/circle suggestion.
type OperatorHintResponse struct {
	OperatorCode string  `json:"operator_code"`
	CircleCode   *string `json:"circle_code,omitempty"`
}

// PlanResponse is one catalog plan.
type PlanResponse struct {
	Amount      int64  `json:"amount"`
	Validity    string `json:"validity"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// BillResponse is a fetched due bill.
type BillResponse struct {
	CustomerName string `json:"customer_name"`
	DueAmount    int64  `json:"due_amount"`
	DueDate      string `json:"due_date"`
	RefID        string `json:"ref_id"`
}
