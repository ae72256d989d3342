package constants

// MovementAction tags every stock_movements row. The set is closed.
type MovementAction string

const (
	MovementAdd             MovementAction = "add"
	MovementRemove          MovementAction = "remove"
	MovementMove            MovementAction = "move"
	MovementSaleOut         MovementAction = "sale_out"
	MovementScanAdd         MovementAction = "scan_add"
	MovementRefundIn        MovementAction = "refund_in"
	MovementTransferIn      MovementAction = "transfer_in"
	MovementTransferOut     MovementAction = "transfer_out"
	MovementAdjustment      MovementAction = "adjustment"
	MovementLegacySeed      MovementAction = "legacy_seed"
	MovementAssistantAdd    MovementAction = "assistant_add"
	MovementAssistantRemove MovementAction = "assistant_remove"
	MovementAssistantMove   MovementAction = "assistant_move"
)

var movementActions = map[MovementAction]struct{}{
	MovementAdd:             {},
	MovementRemove:          {},
	MovementMove:            {},
	MovementSaleOut:         {},
	MovementScanAdd:         {},
	MovementRefundIn:        {},
	MovementTransferIn:      {},
	MovementTransferOut:     {},
	MovementAdjustment:      {},
	MovementLegacySeed:      {},
	MovementAssistantAdd:    {},
	MovementAssistantRemove: {},
	MovementAssistantMove:   {},
}

func (a MovementAction) String() string {
	return string(a)
}

func (a MovementAction) IsValid() bool {
	_, ok := movementActions[a]
	return ok
}

// ParseMovementAction returns false for anything outside the closed set.
func ParseMovementAction(s string) (MovementAction, bool) {
	a := MovementAction(s)
	return a, a.IsValid()
}

// Transfer and legacy seeding rows are written only by the engine, which
// also records the transfer they belong to.
var engineOnlyActions = map[MovementAction]struct{}{
	MovementTransferIn:  {},
	MovementTransferOut: {},
	MovementLegacySeed:  {},
}

// IsClientAction reports whether a caller outside the engine may tag a
// movement with a.
func (a MovementAction) IsClientAction() bool {
	if _, engineOnly := engineOnlyActions[a]; engineOnly {
		return false
	}
	return a.IsValid()
}
