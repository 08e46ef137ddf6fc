// Package decoder provides a small, deterministic reference implementation
// of dasm.Decoder. The real x86/x64 decoder is explicitly out of scope
// (spec.md §1): "we describe only the interface the core consumes". This
// package exists so the rest of the system is runnable and testable
// end-to-end without udis86 or any other real disassembler.
//
// The encoding is a trivial fixed-width record format, not a real
// instruction set: each record is 4 bytes — an opcode tag, an immediate
// byte, and two reserved/padding bytes. A tag of 0xFF signals end-of-stream
// (mirrors real decoders returning size==0 on bad/short input, spec.md §7
// "Decode failure mid-stream").
package decoder

import (
	"fmt"

	"github.com/Voskan/dasm-cache/pkg/dasm"
)

const (
	tagHalt = 0xFF
	tagJump = 0x01
	tagNop  = 0x00

	recordSize = 4
)

// Reference is the package's sole Decoder implementation.
type Reference struct{}

// DecodeOne implements dasm.Decoder. syntax's value only changes mnemonic
// formatting, matching the original's Intel-vs-ATT distinction.
func (Reference) DecodeOne(data []byte, off uint64, vaddr uint64, syntax dasm.Syntax) (size uint64, text string, jumpDstVaddr uint64, isJump bool) {
	if off+recordSize > uint64(len(data)) {
		return 0, "", 0, false
	}
	tag := data[off]
	if tag == tagHalt {
		return 0, "", 0, false
	}

	imm := int8(data[off+1])

	switch tag {
	case tagJump:
		dst := uint64(int64(vaddr) + int64(imm))
		if syntax == dasm.SyntaxATT {
			return recordSize, fmt.Sprintf("jmp 0x%x", dst), dst, true
		}
		return recordSize, fmt.Sprintf("jmp     0x%X", dst), dst, true
	default:
		if syntax == dasm.SyntaxATT {
			return recordSize, fmt.Sprintf("mov $0x%x, %%eax", imm), 0, false
		}
		return recordSize, fmt.Sprintf("mov     eax, 0x%X", imm), 0, false
	}
}
