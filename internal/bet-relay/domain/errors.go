package domain

import (
	"errors"
	"fmt"
)

// Code identifica o motivo de uma falha de validação
type Code string

const (
	CodeInsufficientStake     Code = "insufficient_stake"
	CodeInsufficientFunds     Code = "insufficient_funds"
	CodeInsufficientLocked    Code = "insufficient_locked"
	CodeAlreadyCancelled      Code = "already_cancelled"
	CodeAlreadyCalled         Code = "already_called"
	CodeAlreadyExecuted       Code = "already_executed"
	CodeNotOwner              Code = "not_owner"
	CodeSelfCall              Code = "self_call"
	CodeAlreadyCalledOnChain  Code = "already_called_on_chain"
	CodeMakerUnderfunded      Code = "maker_underfunded"
	CodeNotInitialized        Code = "not_initialized"
	CodeNotInitializedOnChain Code = "not_initialized_on_chain"
	CodeInvalidListOptions    Code = "invalid_list_options"
	CodeInvalidFeeTier        Code = "invalid_fee_tier"
	CodeInvalidAmount         Code = "invalid_amount"
	CodeInvalidEdge           Code = "invalid_edge"
)

// ValidationError é levantado antes de qualquer submissão ao contrato; não tem efeitos colaterais
type ValidationError struct {
	Code    Code
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

// Is compara pelo Code, assim errors.Is(err, ErrInsufficientFunds) funciona com qualquer mensagem
func (e *ValidationError) Is(target error) bool {
	var t *ValidationError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Invalid monta um ValidationError com mensagem formatada
func Invalid(code Code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrInsufficientStake     = &ValidationError{Code: CodeInsufficientStake}
	ErrInsufficientFunds     = &ValidationError{Code: CodeInsufficientFunds}
	ErrInsufficientLocked    = &ValidationError{Code: CodeInsufficientLocked}
	ErrAlreadyCancelled      = &ValidationError{Code: CodeAlreadyCancelled}
	ErrAlreadyCalled         = &ValidationError{Code: CodeAlreadyCalled}
	ErrAlreadyExecuted       = &ValidationError{Code: CodeAlreadyExecuted}
	ErrNotOwner              = &ValidationError{Code: CodeNotOwner}
	ErrSelfCall              = &ValidationError{Code: CodeSelfCall}
	ErrAlreadyCalledOnChain  = &ValidationError{Code: CodeAlreadyCalledOnChain}
	ErrMakerUnderfunded      = &ValidationError{Code: CodeMakerUnderfunded}
	ErrNotInitialized        = &ValidationError{Code: CodeNotInitialized}
	ErrNotInitializedOnChain = &ValidationError{Code: CodeNotInitializedOnChain}
	ErrInvalidListOptions    = &ValidationError{Code: CodeInvalidListOptions}
	ErrInvalidFeeTier        = &ValidationError{Code: CodeInvalidFeeTier}
	ErrInvalidAmount         = &ValidationError{Code: CodeInvalidAmount}
	ErrInvalidEdge           = &ValidationError{Code: CodeInvalidEdge}
)

var (
	ErrNotFound       = errors.New("bet not found")
	ErrLockContention = errors.New("somebody else is currently calling or cancelling this bet")
)
