package dasm

import "github.com/Voskan/dasm-cache/internal/u128"

// Inst is one decoded instruction record. TextRange indexes into the
// rendered text stored separately under Info.TextKey in the blob store.
type Inst struct {
	CodeOff       uint64
	JumpDstVaddr  uint64
	TextStart     uint64
	TextEnd       uint64
}

// Info is the cached disassembly result for one (hash, Params) pair. An
// empty Info (len(Insts) == 0) means "not yet computed" — callers retry
// later (spec.md §7).
type Info struct {
	TextKey u128.U128
	Insts   []Inst
}

// Empty reports whether i represents "not yet computed".
func (i Info) Empty() bool { return len(i.Insts) == 0 }
