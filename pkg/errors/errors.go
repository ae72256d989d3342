package errors

import (
	"errors"
	"fmt"
)

var (
	// JWT and tokens
	ErrInvalidSigningMethod = errors.New("invalid token signing method")
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenNotYetValid     = errors.New("token not yet valid")

	// Authorization
	ErrEmptyAuthHeader   = errors.New("authorization header is missing")
	ErrInvalidAuthHeader = errors.New("invalid authorization header format")
	ErrUnauthorized      = errors.New("unauthorized")

	// Context
	ErrActorNotFoundInContext = errors.New("actor not found in request context")

	// Common
	ErrNotFound   = errors.New("record not found")
	ErrBadRequest = errors.New("bad request")

	// Ledger and transfers
	ErrInvalidQuantity       = errors.New("quantity must be greater than zero")
	ErrLocationMismatch      = errors.New("location does not belong to branch")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrInsufficientAvailable = errors.New("insufficient available stock")
	ErrIllegalTransition     = errors.New("illegal transfer state transition")
	ErrMissingReason         = errors.New("reason is required")
	ErrInvalidInput          = errors.New("invalid input")
	ErrForbidden             = errors.New("forbidden")
	ErrLockConflict          = errors.New("row lock conflict")
)

type Kind string

const (
	KindNotFound              Kind = "not_found"
	KindInvalidQuantity       Kind = "invalid_quantity"
	KindLocationMismatch      Kind = "location_mismatch"
	KindInsufficientStock     Kind = "insufficient_stock"
	KindInsufficientAvailable Kind = "insufficient_available"
	KindIllegalTransition     Kind = "illegal_transition"
	KindMissingReason         Kind = "missing_reason"
	KindInvalidInput          Kind = "invalid_input"
	KindForbidden             Kind = "forbidden"
	KindLockConflict          Kind = "lock_conflict"
)

var kindSentinels = map[Kind]error{
	KindNotFound:              ErrNotFound,
	KindInvalidQuantity:       ErrInvalidQuantity,
	KindLocationMismatch:      ErrLocationMismatch,
	KindInsufficientStock:     ErrInsufficientStock,
	KindInsufficientAvailable: ErrInsufficientAvailable,
	KindIllegalTransition:     ErrIllegalTransition,
	KindMissingReason:         ErrMissingReason,
	KindInvalidInput:          ErrInvalidInput,
	KindForbidden:             ErrForbidden,
	KindLockConflict:          ErrLockConflict,
}

// LedgerError is a caller-visible refusal of a ledger or transfer operation.
// The unit of work it came from has been rolled back in full.
type LedgerError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`

	PartID     int64 `json:"part_id,omitempty"`
	BranchID   int64 `json:"branch_id,omitempty"`
	LocationID int64 `json:"location_id,omitempty"`
	TransferID int64 `json:"transfer_id,omitempty"`

	Requested int `json:"requested,omitempty"`
	Available int `json:"available,omitempty"`

	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
}

func (e *LedgerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return kindSentinels[e.Kind].Error()
}

func (e *LedgerError) Unwrap() error {
	return kindSentinels[e.Kind]
}

// Details returns the structured fields for rendering by the HTTP layer.
func (e *LedgerError) Details() map[string]interface{} {
	d := map[string]interface{}{"kind": e.Kind}
	if e.PartID != 0 {
		d["part_id"] = e.PartID
	}
	if e.BranchID != 0 {
		d["branch_id"] = e.BranchID
	}
	if e.LocationID != 0 {
		d["location_id"] = e.LocationID
	}
	if e.TransferID != 0 {
		d["transfer_id"] = e.TransferID
	}
	if e.Kind == KindInsufficientStock || e.Kind == KindInsufficientAvailable {
		d["requested"] = e.Requested
		d["available"] = e.Available
	}
	if e.FromStatus != "" {
		d["from_status"] = e.FromStatus
	}
	if e.ToStatus != "" {
		d["to_status"] = e.ToStatus
	}
	return d
}

func NewLedgerError(kind Kind, format string, args ...interface{}) *LedgerError {
	return &LedgerError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NewInsufficientStockError(partID, branchID, locationID int64, requested, available int) *LedgerError {
	return &LedgerError{
		Kind:       KindInsufficientStock,
		Message:    fmt.Sprintf("insufficient stock: requested %d, on hand %d", requested, available),
		PartID:     partID,
		BranchID:   branchID,
		LocationID: locationID,
		Requested:  requested,
		Available:  available,
	}
}

func NewInsufficientAvailableError(partID, branchID, transferID int64, requested, available int) *LedgerError {
	return &LedgerError{
		Kind:       KindInsufficientAvailable,
		Message:    fmt.Sprintf("insufficient available stock: requested %d, available %d", requested, available),
		PartID:     partID,
		BranchID:   branchID,
		TransferID: transferID,
		Requested:  requested,
		Available:  available,
	}
}

func NewIllegalTransitionError(transferID int64, from, to string) *LedgerError {
	return &LedgerError{
		Kind:       KindIllegalTransition,
		Message:    fmt.Sprintf("transfer %d cannot move from %s to %s", transferID, from, to),
		TransferID: transferID,
		FromStatus: from,
		ToStatus:   to,
	}
}

func NewNotFoundError(what string, id int64) *LedgerError {
	return &LedgerError{Kind: KindNotFound, Message: fmt.Sprintf("%s %d not found", what, id)}
}

// KindOf reports the ledger error kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind, true
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind, true
		}
	}
	return "", false
}

type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

func NewInvalidInputError(format string, args ...interface{}) error {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}

// HttpError is what controllers hand to the response writer.
type HttpError struct {
	Code    int
	Message string
	Err     error
	Details map[string]interface{}
}

func (e *HttpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HttpError) Unwrap() error { return e.Err }

func NewHttpError(code int, message string, err error, details map[string]interface{}) *HttpError {
	return &HttpError{Code: code, Message: message, Err: err, Details: details}
}

func NewBadRequestError(message string) *HttpError {
	return &HttpError{Code: 400, Message: message, Err: ErrBadRequest}
}
