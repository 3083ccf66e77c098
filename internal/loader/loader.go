// Package loader reads the JSON program encoding the CLI and REPL accept:
// the external byte-stream parser spec §1 treats as a collaborator outside
// this module's scope, stood in for here by a JSON array so the verifier
// has something runnable without a real assembler.
package loader

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sunholo/savervm/internal/ctypes"
	"github.com/sunholo/savervm/internal/opcode"
)

// wireOpcode is the JSON shape of one opcode: a numeric tag (matching the
// on-disk byte assignment in spec §6) and its immediate operands as plain
// integers, rather than encoding/json's default base64 []byte rendering.
type wireOpcode struct {
	Tag      opcode.Tag `json:"tag"`
	Operands []int      `json:"operands,omitempty"`
}

// wireStatement is the JSON shape of one function.
type wireStatement struct {
	Label   int32        `json:"label"`
	Opcodes []wireOpcode `json:"opcodes"`
}

// LoadProgram reads path as a JSON array of functions and returns a fresh
// type pool together with the opcode.Statement list ready for
// internal/program.Verify.
func LoadProgram(path string) (*ctypes.Pool, []opcode.Statement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read program file: %w", err)
	}

	var wire []wireStatement
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, nil, fmt.Errorf("failed to parse program JSON: %w", err)
	}

	statements := make([]opcode.Statement, len(wire))
	for i, ws := range wire {
		opcodes := make([]opcode.Source, len(ws.Opcodes))
		for j, wo := range ws.Opcodes {
			operands := make([]byte, len(wo.Operands))
			for k, v := range wo.Operands {
				if v < 0 || v > 255 {
					return nil, nil, fmt.Errorf("function %d, opcode %d: operand %d out of byte range", ws.Label, j, v)
				}
				operands[k] = byte(v)
			}
			opcodes[j] = opcode.Source{Tag: wo.Tag, Operands: operands}
		}
		statements[i] = opcode.Statement{Label: ws.Label, Opcodes: opcodes}
	}

	return ctypes.NewPool(), statements, nil
}
