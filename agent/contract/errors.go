package contract

import "errors"

var (
	ErrValidation  = errors.New("validation failed")
	ErrUnknownTool = errors.New("unknown tool")
)

// ErrorCode classifies a recoverable failure so the orchestration layer can
// pick a user-facing message without parsing error text.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "validation"
	CodeUnknownTool       ErrorCode = "unknown_tool"
	CodeOutOfRange        ErrorCode = "out_of_range"
	CodeEmptyResults      ErrorCode = "empty_results"
	CodeNoSearch          ErrorCode = "no_search"
	CodeNoSelection       ErrorCode = "no_vehicle_selected"
	CodeVehicleNotFound   ErrorCode = "vehicle_not_found"
	CodeSelectionMismatch ErrorCode = "selection_mismatch"
	CodeInvalidFinancing  ErrorCode = "invalid_financing_input"
	CodeInternal          ErrorCode = "internal"
)
