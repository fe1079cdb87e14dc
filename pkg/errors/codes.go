package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Test record module error codes.
const (
	ErrCodeRecordNotFound      ErrorCode = "REC_001"
	ErrCodeRecordAlreadyExists ErrorCode = "REC_002"
	ErrCodeTemporalConsistency ErrorCode = "REC_003"
	ErrCodeMissingField        ErrorCode = "REC_004"
)

// Expiry decision engine error codes.
const (
	ErrCodeConfigIntegrity     ErrorCode = "EXP_001"
	ErrCodeRuleTableMissing    ErrorCode = "EXP_002"
	ErrCodeStrategyUnsupported ErrorCode = "EXP_003"
	ErrCodeInvalidDate         ErrorCode = "EXP_004"
)

// Collaborator error codes.
const (
	ErrCodeDependency            ErrorCode = "DEP_001"
	ErrCodeClassificationMissing ErrorCode = "DEP_002"
	ErrCodeTestNumberIssuance    ErrorCode = "DEP_003"
	ErrCodeEventPublish          ErrorCode = "DEP_004"
)

// Short aliases used at call sites.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeValidation   = ErrCodeValidation
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusInternalServerError,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeRecordNotFound:      http.StatusNotFound,
	ErrCodeRecordAlreadyExists: http.StatusConflict,
	ErrCodeTemporalConsistency: http.StatusBadRequest,
	ErrCodeMissingField:        http.StatusBadRequest,

	ErrCodeConfigIntegrity:     http.StatusInternalServerError,
	ErrCodeRuleTableMissing:    http.StatusInternalServerError,
	ErrCodeStrategyUnsupported: http.StatusInternalServerError,
	ErrCodeInvalidDate:         http.StatusBadRequest,

	ErrCodeDependency:            http.StatusInternalServerError,
	ErrCodeClassificationMissing: http.StatusInternalServerError,
	ErrCodeTestNumberIssuance:    http.StatusInternalServerError,
	ErrCodeEventPublish:          http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeRecordNotFound:      "test record not found",
	ErrCodeRecordAlreadyExists: "test record already exists",
	ErrCodeTemporalConsistency: "test type start timestamp is after end timestamp",
	ErrCodeMissingField:        "required field missing",

	ErrCodeConfigIntegrity:     "expiry rule configuration is inconsistent",
	ErrCodeRuleTableMissing:    "no expiry rule table for vehicle category",
	ErrCodeStrategyUnsupported: "expiry strategy not implemented",
	ErrCodeInvalidDate:         "invalid date",

	ErrCodeDependency:            "dependency failure",
	ErrCodeClassificationMissing: "test type classification unavailable",
	ErrCodeTestNumberIssuance:    "test number issuance failed",
	ErrCodeEventPublish:          "event publication failed",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// CodeForHTTPStatus picks the generic code that corresponds to a status
// reported by a collaborator. Unknown statuses map to ErrCodeDependency.
func CodeForHTTPStatus(status int) ErrorCode {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrCodeValidation
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusConflict:
		return ErrCodeConflict
	default:
		return ErrCodeDependency
	}
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
