package wagerdto

// Error codes surfaced to clients. Stable strings; the transport maps them
// onto named error events.
const (
	CodeValidation    = "validation"
	CodeRuleViolation = "rule_violation"
	CodeAuthorization = "authorization"
	CodeNotFound      = "not_found"
	CodeEconomic      = "economic"
	CodeState         = "state"
)

type DomainError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "arena error"
}

func NewDomainError(code, message string) DomainError {
	return DomainError{Code: code, Message: message}
}
