package services

import (
	"context"
	"errors"

	"github.com/closedroom/portal/internal/models"
)

type ErrorCode string

const (
	ErrorInvalid             ErrorCode = "invalid"
	ErrorNotFound            ErrorCode = "not_found"
	ErrorUnauthorized        ErrorCode = "unauthorized"
	ErrorInsufficientBalance ErrorCode = "insufficient_balance"
	ErrorPurchaseRejected    ErrorCode = "purchase_rejected"
	ErrorNetworkFailure      ErrorCode = "network_failure"
	ErrorInvoiceUnavailable  ErrorCode = "invoice_unavailable"
	ErrorStatusCheckFailure  ErrorCode = "status_check_failure"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error  { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewNotFoundError(msg string) error { return &ServiceError{Code: ErrorNotFound, Message: msg} }

func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewInsufficientBalanceError(msg string) error {
	return &ServiceError{Code: ErrorInsufficientBalance, Message: msg}
}

func NewPurchaseRejectedError(msg string) error {
	return &ServiceError{Code: ErrorPurchaseRejected, Message: msg}
}

func NewNetworkFailureError(msg string) error {
	return &ServiceError{Code: ErrorNetworkFailure, Message: msg}
}

func NewInvoiceUnavailableError(msg string) error {
	return &ServiceError{Code: ErrorInvoiceUnavailable, Message: msg}
}

func NewStatusCheckFailureError(msg string) error {
	return &ServiceError{Code: ErrorStatusCheckFailure, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// HasErrorCode reports whether err carries the given service error code.
func HasErrorCode(err error, code ErrorCode) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == code
}

// PurchaseClient issues one purchase request per content kind and returns
// the server's message verbatim. Success is recognized by the exact
// per-kind success string; everything else is a rejection reason.
type PurchaseClient interface {
	Purchase(ctx context.Context, kind models.ContentKind, itemID string) (string, error)
}

// UserClient fetches the authoritative balance/ownership snapshot.
type UserClient interface {
	Me(ctx context.Context) (*models.Entitlements, error)
}

// InvoiceClient talks to the payment gateway.
type InvoiceClient interface {
	CreateInvoice(ctx context.Context, tokens int) (*models.PaymentInvoice, error)
	InvoiceStatus(ctx context.Context, invoiceID string) (*models.PaymentStatus, error)
}
