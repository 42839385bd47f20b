package errors

import (
	stdErrors "errors"
	"fmt"
)

// Code classifies a failure so callers can pick retry behavior and the
// user-facing message without inspecting error text.
type Code string

const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeNotFound         Code = "NOT_FOUND"
	CodeAlreadyProcessed Code = "ALREADY_PROCESSED"
	CodeTeamFull         Code = "TEAM_FULL"
	CodeNotYourInvite    Code = "NOT_YOUR_INVITE"
	CodeDependency       Code = "DEPENDENCY_ERROR"
	CodeInternal         Code = "INTERNAL_ERROR"
)

// Metadata carries the retry class and the fixed fallback message shown
// to a user when a more specific catalog entry does not apply.
type Metadata struct {
	Retryable   bool
	UserMessage string
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		Retryable:   false,
		UserMessage: "❌ Некорректный запрос.",
	},
	CodeNotFound: {
		Retryable:   false,
		UserMessage: "⚠️ Запись не найдена.",
	},
	CodeAlreadyProcessed: {
		Retryable:   false,
		UserMessage: "⚠️ Это действие уже было обработано ранее.",
	},
	CodeTeamFull: {
		Retryable:   false,
		UserMessage: "⚠️ Команда уже заполнена.",
	},
	CodeNotYourInvite: {
		Retryable:   false,
		UserMessage: "⚠️ Это приглашение адресовано другому пользователю.",
	},
	CodeDependency: {
		Retryable:   true,
		UserMessage: "❌ Не удалось связаться с сервером. Попробуйте позже.",
	},
	CodeInternal: {
		Retryable:   false,
		UserMessage: "❌ Ошибка при обработке. Попробуйте позже.",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf extracts the classification from any error chain, mapping
// untyped errors to CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsRetryable reports whether the error class is a transient
// infrastructure failure rather than a terminal business outcome.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return MetadataFor(CodeOf(err)).Retryable
}
