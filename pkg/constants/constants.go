package constants

//============== LOCATIONS ==============

// DefaultLocationCode is the well-known fallback location every branch owns.
const DefaultLocationCode = "UNASSIGNED"

const (
	DefaultLocationNameEn = "Unassigned"
	DefaultLocationNameAr = "غير محدد"
)

//============== REASONS ==============

// DefaultMovementReason is stored when a ledger call arrives without a reason.
const DefaultMovementReason = "system"

// LegacySeedReason tags movements that back-fill location rows for
// aggregate-only stock.
const LegacySeedReason = "legacy aggregate seed"

//============== AUDIT ==============

const (
	AuditActionStockAdjustment = "stock.adjustment"
	AuditActionStockMove       = "stock.move"
	AuditActionStockSync       = "stock.sync"
	AuditActionStockSeed       = "stock.legacy_seed"

	AuditActionTransferRequest = "transfer.request"
	AuditActionTransferApprove = "transfer.approve"
	AuditActionTransferReject  = "transfer.reject"
	AuditActionTransferPickup  = "transfer.pickup"
	AuditActionTransferDeliver = "transfer.deliver"
	AuditActionTransferReceive = "transfer.receive"

	AuditActionBranchCreate = "branch.create"
)

const (
	AuditObjectStock    = "Stock"
	AuditObjectTransfer = "TransferRequest"
	AuditObjectBranch   = "Branch"
)
