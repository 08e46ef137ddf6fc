package dasm

import (
	"context"
	"time"

	"github.com/Voskan/dasm-cache/internal/u128"
)

// BlobStore is the content-addressed blob store collaborator (`hs` in the
// spec): data_from_hash, hash_from_key, submit_data, hash_from_data.
// pkg/store/blobstore.go is the reference implementation.
//
// The original C contract hands callers a short-lived "hs_scope" so that
// data returned from an arena can be safely read without racing the arena's
// release. In Go, DataFromHash returns a slice backed by normal
// garbage-collected memory (copied out of whatever arena the store itself
// uses internally), so no caller-visible scope/pin step is needed — one of
// the two Open Question adaptations recorded in DESIGN.md.
type BlobStore interface {
	// DataFromHash returns the bytes for hash, or nil if absent.
	DataFromHash(hash u128.U128) []byte
	// HashFromKey maps a logical key plus a rewind index to a content
	// hash, or the zero hash if unavailable.
	HashFromKey(key u128.U128, rewindIdx int) u128.U128
	// SubmitData stores data under key and returns its content hash.
	SubmitData(key u128.U128, data []byte) u128.U128
	// HashFromData derives the content hash of data without storing it.
	HashFromData(data []byte) u128.U128
}

// RDI is the narrow parsed-debug-info handle the spec calls `RDI_Parsed`.
// NilRDI (see pkg/store) stands in for `&di_rdi_parsed_nil`.
type RDI interface {
	// Identity distinguishes one parsed debug-info object from another
	// for the worker's symbol-text hash derivation (the original hashes
	// the RDI pointer itself).
	Identity() uint64
	// LineForVoff resolves a virtual offset (vaddr - base_vaddr) to the
	// source file and line backing it, if any.
	LineForVoff(voff uint64) (file SourceFile, line Line, ok bool)
	// ProcedureForVoff resolves a virtual offset to the enclosing
	// procedure's name via the scope vmap, if any.
	ProcedureForVoff(voff uint64) (name string, ok bool)
}

// SourceFile is the subset of RDI_SourceFile the worker needs.
type SourceFile struct {
	NormalizedFullPath string
}

// Line is the subset of RDI_Line the worker needs.
type Line struct {
	LineNum uint64
}

// DebugInfoStore is the debug-info store collaborator (`di` in the spec).
type DebugInfoStore interface {
	// RDIFromKey parses (or returns a cached parse of) the debug info
	// named by key, blocking up to deadline. Returns NilRDI on failure or
	// absence; never nil.
	RDIFromKey(ctx context.Context, key DbgiKey, deadline time.Time) RDI
}

// NilRDI is the "no debug info" sentinel handle, analogous to
// `&di_rdi_parsed_nil` in the original.
var NilRDI RDI = nilRDI{}

type nilRDI struct{}

func (nilRDI) Identity() uint64 { return 0 }
func (nilRDI) LineForVoff(uint64) (SourceFile, Line, bool) { return SourceFile{}, Line{}, false }
func (nilRDI) ProcedureForVoff(uint64) (string, bool)      { return "", false }

// TextInfo is the subset of TXT_TextInfo the worker needs: a per-line byte
// range table into the file's raw bytes.
type TextInfo struct {
	// LineRanges[i] is the byte range of 1-based line i+1 within the raw
	// file bytes returned by the blob store for the resolved hash.
	LineRanges []TextRange
}

// TextRange is a half-open byte range [Start, End).
type TextRange struct {
	Start, End uint64
}

// TextStore is the text store collaborator (`txt` in the spec): resolves a
// path's parsed line table, asynchronously. The worker polls
// TextInfoFromKeyLang until hashOut is non-zero or the deadline expires.
type TextStore interface {
	TextInfoFromKeyLang(ctx context.Context, key u128.U128, lang string) (info TextInfo, hash u128.U128)
}

// FileWatch is the filesystem watch collaborator (`fs` in the spec).
type FileWatch interface {
	// ChangeGen monotonically increases whenever any watched file
	// changes.
	ChangeGen() uint64
	// KeyFromPath derives the content key used to address path's bytes
	// in the blob store.
	KeyFromPath(path string) u128.U128
	// PropertiesFromPath returns filesystem metadata for path; Modified
	// is the zero time if the file could not be stat'd.
	PropertiesFromPath(path string) FileProperties
}

// FileProperties is the subset of OS file metadata the worker needs.
type FileProperties struct {
	Modified time.Time
}

// Decoder is the narrow machine-code decoder contract (out of scope per
// spec.md §1 — described, not implemented, beyond this interface).
// internal/decoder provides a non-x86 reference implementation used by
// tests and examples.
type Decoder interface {
	// DecodeOne decodes one instruction starting at data[off:]. size==0
	// signals end-of-stream / decode failure and terminates the worker's
	// loop (spec.md §7, "Decode failure mid-stream"). text is the
	// formatted mnemonic (no address/bytes/symbol decoration — the
	// worker adds those).
	DecodeOne(data []byte, off uint64, vaddr uint64, syntax Syntax) (size uint64, text string, jumpDstVaddr uint64, isJump bool)
}
