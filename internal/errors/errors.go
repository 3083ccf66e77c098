package errors

import "fmt"

// VerifyError is the single structured failure type the verifier returns
// (spec §7: "one flat taxonomy of failure kinds"). Every field beyond Code
// and Message is optional context, populated when the failing opcode has it
// available — a Shape error has no offset-relevant Index, an Arity error
// usually has no Types.
type VerifyError struct {
	Code   string // one of the codes.go constants
	Label  int32  // the function being verified
	Offset int    // byte offset from the function's label, per spec §7
	Opcode string // the offending opcode's name

	Index int      // operand/field index, when relevant (get/init/proj/ct_get)
	Types []string // type(s) involved, rendered, when relevant
	Extra string   // free-form detail (region/capability names, etc.)

	Message string
}

func (e *VerifyError) Error() string {
	if e.Opcode != "" {
		return fmt.Sprintf("%s at %d+%d (%s): %s", e.Code, e.Label, e.Offset, e.Opcode, e.Message)
	}
	return fmt.Sprintf("%s at %d+%d: %s", e.Code, e.Label, e.Offset, e.Message)
}

// New builds a VerifyError with the given code and message, to be enriched
// with position/opcode context by the caller before it escapes a phase.
func New(code, message string) *VerifyError {
	return &VerifyError{Code: code, Message: message}
}

// At returns a copy of e with its position fields filled in. Verifier
// internals construct errors with New and then call At at the point of
// failure, so every returned error carries where it happened.
func (e *VerifyError) At(label int32, offset int, opcodeName string) *VerifyError {
	cp := *e
	cp.Label = label
	cp.Offset = offset
	cp.Opcode = opcodeName
	return &cp
}

// WithIndex attaches an operand/field index to the error.
func (e *VerifyError) WithIndex(i int) *VerifyError {
	cp := *e
	cp.Index = i
	return &cp
}

// WithTypes attaches the rendered type(s) involved in the mismatch.
func (e *VerifyError) WithTypes(types ...string) *VerifyError {
	cp := *e
	cp.Types = types
	return &cp
}

// WithExtra attaches free-form detail (region/capability names and similar).
func (e *VerifyError) WithExtra(extra string) *VerifyError {
	cp := *e
	cp.Extra = extra
	return &cp
}
