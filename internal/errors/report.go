package errors

import "fmt"

// Encoded is the structured, serializable rendering of a VerifyError,
// grounded on the teacher's internal/errors/json_encoder.go shape: a schema
// tag, the error code, a human message, and optional context — intended for
// `encoding/json` marshaling at the CLI boundary rather than for the core
// verifier itself, which only ever returns a *VerifyError.
type Encoded struct {
	Schema  string   `json:"schema"`
	Code    string   `json:"code"`
	Label   int32    `json:"label"`
	Offset  int      `json:"offset"`
	Opcode  string   `json:"opcode,omitempty"`
	Index   int      `json:"index,omitempty"`
	Types   []string `json:"types,omitempty"`
	Extra   string   `json:"extra,omitempty"`
	Message string   `json:"message"`
}

// Encode renders e for structured (JSON) output.
func Encode(e *VerifyError) Encoded {
	return Encoded{
		Schema:  "savervm.verify_error/v1",
		Code:    e.Code,
		Label:   e.Label,
		Offset:  e.Offset,
		Opcode:  e.Opcode,
		Index:   e.Index,
		Types:   e.Types,
		Extra:   e.Extra,
		Message: e.Message,
	}
}

// Pretty renders e as a single human-readable line, for the CLI's non-JSON
// output path.
func Pretty(e *VerifyError) string {
	if e.Opcode == "" {
		return fmt.Sprintf("[%s] function %d, byte %d: %s", e.Code, e.Label, e.Offset, e.Message)
	}
	return fmt.Sprintf("[%s] function %d, byte %d (%s): %s", e.Code, e.Label, e.Offset, e.Opcode, e.Message)
}
