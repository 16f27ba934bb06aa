package media

import (
	"errors"
	"fmt"
)

// PipelineErrorCode определяет типизированные коды ошибок аудио конвейера.
type PipelineErrorCode int

const (
	// Ошибки жизненного цикла
	ErrorCodePipelineClosed PipelineErrorCode = iota + 2000
	ErrorCodePipelineAlreadyStarted
	ErrorCodeConfigInvalid

	// Ошибки устройств
	ErrorCodeCaptureStart
	ErrorCodeCapturePermission
	ErrorCodeOutputFailure

	// Ошибки тракта данных
	ErrorCodeFrameDecode
	ErrorCodeSegmentWrite
)

// String возвращает строковое представление кода ошибки
func (code PipelineErrorCode) String() string {
	switch code {
	case ErrorCodePipelineClosed:
		return "PipelineClosed"
	case ErrorCodePipelineAlreadyStarted:
		return "PipelineAlreadyStarted"
	case ErrorCodeConfigInvalid:
		return "ConfigInvalid"
	case ErrorCodeCaptureStart:
		return "CaptureStart"
	case ErrorCodeCapturePermission:
		return "CapturePermission"
	case ErrorCodeOutputFailure:
		return "OutputFailure"
	case ErrorCodeFrameDecode:
		return "FrameDecode"
	case ErrorCodeSegmentWrite:
		return "SegmentWrite"
	default:
		return fmt.Sprintf("Unknown(%d)", int(code))
	}
}

// PipelineError ошибка аудио конвейера с типизированным кодом,
// идентификатором звонка и опционально обернутой причиной.
type PipelineError struct {
	Code    PipelineErrorCode
	CallID  string
	Message string
	Wrapped error
}

func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("media [%s]: %s", e.Code, e.Message)
	if e.CallID != "" {
		msg += fmt.Sprintf(" (call=%s)", e.CallID)
	}
	if e.Wrapped != nil {
		msg += fmt.Sprintf(": %v", e.Wrapped)
	}
	return msg
}

func (e *PipelineError) Unwrap() error {
	return e.Wrapped
}

// NewPipelineError создает типизированную ошибку конвейера.
func NewPipelineError(code PipelineErrorCode, callID, message string, wrapped error) *PipelineError {
	return &PipelineError{Code: code, CallID: callID, Message: message, Wrapped: wrapped}
}

// IsPermissionError сообщает, является ли ошибка отказом в доступе
// к устройству захвата. Такие ошибки не терминальны для приложения:
// пользователю предлагается открыть системные настройки и повторить.
func IsPermissionError(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Code == ErrorCodeCapturePermission
}
