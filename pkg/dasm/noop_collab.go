package dasm

import (
	"context"
	"time"

	"github.com/Voskan/dasm-cache/internal/u128"
)

// The noop* collaborators are the defaults used when Init is not given a
// concrete BlobStore/DebugInfoStore/TextStore/FileWatch/Decoder — every
// request then degrades to spec.md §7's "absent input" / "debug-info
// absent" paths rather than panicking on a nil interface.

type noopBlobStore struct{}

func (noopBlobStore) DataFromHash(u128.U128) []byte             { return nil }
func (noopBlobStore) HashFromKey(u128.U128, int) u128.U128      { return u128.Zero }
func (noopBlobStore) SubmitData(u128.U128, []byte) u128.U128    { return u128.Zero }
func (noopBlobStore) HashFromData([]byte) u128.U128             { return u128.Zero }

type noopDebugInfoStore struct{}

func (noopDebugInfoStore) RDIFromKey(context.Context, DbgiKey, time.Time) RDI { return NilRDI }

type noopTextStore struct{}

func (noopTextStore) TextInfoFromKeyLang(context.Context, u128.U128, string) (TextInfo, u128.U128) {
	return TextInfo{}, u128.Zero
}

type noopFileWatch struct{}

func (noopFileWatch) ChangeGen() uint64                       { return 0 }
func (noopFileWatch) KeyFromPath(string) u128.U128            { return u128.Zero }
func (noopFileWatch) PropertiesFromPath(string) FileProperties { return FileProperties{} }

type noopDecoder struct{}

func (noopDecoder) DecodeOne([]byte, uint64, uint64, Syntax) (uint64, string, uint64, bool) {
	return 0, "", 0, false
}
