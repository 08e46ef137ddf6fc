// Package dasm implements the core of dasm-cache: a concurrent,
// asynchronously-populated disassembly cache. See SPEC_FULL.md for the full
// requirements this package satisfies.
package dasm

// Arch is the architecture tag distinguishing cache entries. Only X86 and
// X64 are meaningful to the parse worker; other values decode to an empty
// instruction list (spec.md §7, "Unsupported architecture").
type Arch uint8

const (
	ArchUnknown Arch = iota
	ArchX86
	ArchX64
)

// StyleFlags is a bitfield selecting which annotations appear in the
// rendered disassembly text.
type StyleFlags uint32

const (
	StyleAddresses StyleFlags = 1 << iota
	StyleCodeBytes
	StyleSourceFilesNames
	StyleSourceLines
	StyleSymbolNames
)

// Has reports whether all bits in mask are set.
func (f StyleFlags) Has(mask StyleFlags) bool { return f&mask == mask }

// Syntax selects the disassembly mnemonic dialect.
type Syntax uint8

const (
	SyntaxIntel Syntax = iota
	SyntaxATT
)

// DbgiKey identifies a debug-info source: an executable path plus a minimum
// timestamp below which a cached parse is considered stale.
type DbgiKey struct {
	Path          string
	MinTimestamp  uint64
}

// Equal reports componentwise equality.
func (k DbgiKey) Equal(o DbgiKey) bool {
	return k.Path == o.Path && k.MinTimestamp == o.MinTimestamp
}

// Params are the disassembly parameters that, together with a content hash,
// identify a cache entry. Two Params are equal iff every field is equal and
// the debug-info keys match componentwise (spec.md §3).
type Params struct {
	Vaddr       uint64
	Arch        Arch
	StyleFlags  StyleFlags
	Syntax      Syntax
	BaseVaddr   uint64
	DbgiKey     DbgiKey
}

// Equal mirrors the original dasm_params_match.
func (p Params) Equal(o Params) bool {
	return p.Vaddr == o.Vaddr &&
		p.Arch == o.Arch &&
		p.StyleFlags == o.StyleFlags &&
		p.Syntax == o.Syntax &&
		p.BaseVaddr == o.BaseVaddr &&
		p.DbgiKey.Equal(o.DbgiKey)
}
