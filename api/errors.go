package api

// AdminErrorCode identifies an operator API failure.
type AdminErrorCode uint8

const (
	InvalidRequestCode      AdminErrorCode = 101
	UnauthorizedCode        AdminErrorCode = 102
	InvalidTokenCode        AdminErrorCode = 103
	ControlRejectedCode     AdminErrorCode = 104
	InternalServerErrorCode AdminErrorCode = 105
)

// AdminError is the JSON error payload of the operator API.
type AdminError struct {
	Code    AdminErrorCode `json:"code"`
	Message string         `json:"message,omitempty"`
	Err     error          `json:"-"`
}

func (e AdminError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Err.Error()
}

func (e AdminError) Unwrap() error {
	return e.Err
}
