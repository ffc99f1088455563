package status

// ErrorCode is a numeric code to classify API errors in a stable way
type ErrorCode int

// Reserved ranges by domain:
//   0-999:     client/validation errors
//   1000-1999: upload/ingest internals
//   2000-2999: tutor internals

const (
	BadRequestBase    ErrorCode = 0
	InternalErrorBase ErrorCode = 1000
	TutorErrorBase    ErrorCode = 2000
)

// Client/validation errors start at 0
const (
	InvalidRequestBody ErrorCode = BadRequestBase + iota // 0
	MissingParams                                        // 1
)

// Upload/ingest internal errors start at 1000
const (
	UploadInternal   ErrorCode = InternalErrorBase + iota // 1000
	DocumentNotFound                                      // 1001
)

// Tutor internal errors start at 2000
const (
	TutorTurnFailed ErrorCode = TutorErrorBase // 2000
)

// ErrorCodeInternal is the fallback for internal errors that carry no
// domain-specific code.
const (
	ErrorCodeInternal ErrorCode = 9000
)

// CodedError represents an error with an associated ErrorCode
type CodedError interface {
	error
	ErrorCode() ErrorCode
}

type codedError struct {
	code ErrorCode
	err  error
}

func (e codedError) Error() string        { return e.err.Error() }
func (e codedError) Unwrap() error        { return e.err }
func (e codedError) ErrorCode() ErrorCode { return e.code }

// New creates a new CodedError with the given code and underlying error
func New(code ErrorCode, err error) error {
	if err == nil {
		return nil
	}
	return codedError{code: code, err: err}
}
