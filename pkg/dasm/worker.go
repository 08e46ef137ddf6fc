package dasm

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Voskan/dasm-cache/internal/arena"
	"github.com/Voskan/dasm-cache/internal/u128"
)

// textPollInterval bounds how long the worker waits between polls of the
// text store while a SourceLines annotation's text hash is still
// resolving. The original busy-loops on os_now_microseconds(); Go
// yields the scheduler between attempts instead of spinning.
const textPollInterval = 200 * time.Microsecond

// parseWorkerLoop is the body of one parse worker goroutine (spec.md
// §4.5). id only distinguishes goroutines in logs.
func (s *Shared) parseWorkerLoop(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		req := s.ring.dequeue()
		if req.hash.IsZero() {
			// Either a shutdown sentinel (internal/ring.Close) or a
			// spurious wake; either way there is no work here.
			select {
			case <-s.stopCh:
				return
			default:
				continue
			}
		}

		s.processRequest(id, req)
	}
}

// processRequest executes one disassembly request end to end: single-flight
// acquisition, blob + debug-info fetch, decode, render, and commit.
func (s *Shared) processRequest(id int, req request) {
	changeGenSnapshot := s.cfg.fileWatch.ChangeGen()

	slotIdx := slotIndex(req.hash)
	st, localSlot, _ := s.stripeFor(slotIdx)

	st.mu.RLock()
	n := st.slots[localSlot].find(req.hash, req.params)
	gotTask := false
	var epoch uint64
	if n != nil {
		gotTask = n.isWorking.CompareAndSwap(0, 1)
		epoch = n.epoch
	}
	st.mu.RUnlock()
	if !gotTask {
		return
	}

	ctx := context.Background()

	var rdi RDI = NilRDI
	if req.params.DbgiKey.Path != "" {
		rdi = s.cfg.dbgiStore.RDIFromKey(ctx, req.params.DbgiKey, maxDeadline)
	}

	data := s.cfg.blobStore.DataFromHash(req.hash)

	var insts []Inst
	var lines []string
	if req.params.Arch == ArchX86 || req.params.Arch == ArchX64 {
		insts, lines = s.decodeAndRender(ctx, req.params, data, rdi)
	}

	// The original submits the joined text buffer to the blob store under
	// a new arena whose ownership the store assumes. Our BlobStore
	// adaptation (collab.go) takes a plain []byte instead — the store
	// itself decides how to retain it — so no arena is allocated here.
	text := strings.Join(lines, "\n")
	textKey := u128.HashUint64s(
		req.hash.Low, req.hash.High,
		req.params.Vaddr,
		uint64(req.params.Arch),
		uint64(req.params.StyleFlags),
		uint64(req.params.Syntax),
		rdi.Identity(),
		0x4d534144,
	)
	s.cfg.blobStore.SubmitData(textKey, []byte(text))

	infoArena := arena.New()
	flatInsts := arena.MakeSlice[Inst](infoArena, len(insts))
	copy(flatInsts, insts)
	info := Info{TextKey: textKey, Insts: flatInsts}

	usedSourceAnnotation := req.params.StyleFlags.Has(StyleSourceFilesNames) || req.params.StyleFlags.Has(StyleSourceLines)

	st.mu.Lock()
	if n = st.slots[localSlot].find(req.hash, req.params); n != nil && n.epoch == epoch {
		n.infoArena = infoArena
		n.info = info
		if usedSourceAnnotation && rdi != NilRDI {
			n.changeGen = changeGenSnapshot
		} else {
			n.changeGen = 0
		}
		n.isWorking.Store(0)
		n.loadCount.Add(1)
		s.incWorkerCommit()
	} else {
		// Node was evicted and its slot possibly recycled mid-work
		// (spec.md §9's Open Question): the epoch check above caught
		// an identity mismatch, so we release our own arena rather
		// than attach it to somebody else's node.
		infoArena.Free()
		s.cfg.logger.Debug("dasm: dropping result for vanished node",
			zap.Stringer("hash", req.hash), zap.Int("worker", id))
	}
	st.mu.Unlock()
}

// decodeAndRender runs the decode loop and renders each instruction's text
// line, returning the flat Inst list and the corresponding text lines in
// emission order (including synthetic header lines).
func (s *Shared) decodeAndRender(ctx context.Context, params Params, data []byte, rdi RDI) ([]Inst, []string) {
	var insts []Inst
	var lines []string
	runningOffset := uint64(0)

	hasDebugInfo := rdi != NilRDI

	var lastFilePath string
	hasLastFile := false
	var lastLineNum uint64
	hasLastLine := false

	wantFileNames := params.StyleFlags.Has(StyleSourceFilesNames)
	wantSourceLines := params.StyleFlags.Has(StyleSourceLines)
	wantAddrs := params.StyleFlags.Has(StyleAddresses)
	wantCodeBytes := params.StyleFlags.Has(StyleCodeBytes)
	wantSymbols := params.StyleFlags.Has(StyleSymbolNames)

	push := func(inst Inst, line string) {
		insts = append(insts, inst)
		lines = append(lines, line)
		runningOffset += uint64(len(line)) + 1
	}

	off := uint64(0)
	for off < uint64(len(data)) {
		size, asmText, jumpDstVaddr, isJump := s.cfg.decoder.DecodeOne(data, off, params.Vaddr+off, params.Syntax)
		if size == 0 {
			break
		}
		if !isJump {
			jumpDstVaddr = 0
		}

		if (wantFileNames || wantSourceLines) && hasDebugInfo {
			voff := (params.Vaddr + off) - params.BaseVaddr
			file, line, ok := rdi.LineForVoff(voff)
			if ok {
				if !hasLastFile || file.NormalizedFullPath != lastFilePath {
					if wantFileNames && file.NormalizedFullPath != "" {
						push(Inst{}, "> "+file.NormalizedFullPath)
					} else if wantFileNames {
						push(Inst{}, ">")
					}
					lastFilePath = file.NormalizedFullPath
					hasLastFile = true
				}
				if (!hasLastLine || line.LineNum != lastLineNum) && file.NormalizedFullPath != "" && wantSourceLines {
					if lineText, ok := s.sourceLineText(ctx, file.NormalizedFullPath, line.LineNum); ok && lineText != "" {
						push(Inst{}, "> "+lineText)
					}
					lastLineNum = line.LineNum
					hasLastLine = true
				}
			}
		}

		addrPart := ""
		if wantAddrs {
			prefix := ""
			if hasDebugInfo {
				prefix = "  "
			}
			addrPart = fmt.Sprintf("%s%016X  ", prefix, params.Vaddr+off)
		}

		codeBytesPart := ""
		if wantCodeBytes {
			codeBytesPart = renderCodeBytesPart(data, off, size)
		}

		symbolPart := ""
		if wantSymbols && jumpDstVaddr != 0 && hasDebugInfo {
			if name, ok := rdi.ProcedureForVoff(jumpDstVaddr - params.BaseVaddr); ok && name != "" {
				symbolPart = fmt.Sprintf(" (%s)", name)
			}
		}

		line := addrPart + codeBytesPart + asmText + symbolPart
		textStart := runningOffset
		push(Inst{CodeOff: off, JumpDstVaddr: jumpDstVaddr, TextStart: textStart, TextEnd: textStart + uint64(len(line))}, line)

		off += size
	}

	return insts, lines
}

// renderCodeBytesPart formats the "{xx xx xx}" code-bytes column, padded so
// the column occupies at least 8 byte-slots, per the original's layout.
func renderCodeBytesPart(data []byte, off, size uint64) string {
	var sb strings.Builder
	sb.WriteByte('{')
	maxIdx := size
	if maxIdx < 16 {
		maxIdx = 16
	}
	for byteIdx := uint64(0); byteIdx < maxIdx; byteIdx++ {
		switch {
		case byteIdx < size:
			fmt.Fprintf(&sb, "%02x", data[off+byteIdx])
			if byteIdx == size-1 {
				sb.WriteByte('}')
			}
			sb.WriteByte(' ')
		case byteIdx < 8:
			sb.WriteString("   ")
		}
	}
	sb.WriteByte(' ')
	return sb.String()
}

// sourceLineText fetches line lineNum (1-based) of path's text via the
// text store + blob store, polling the text store until its hash resolves
// or a 2-second deadline elapses. ok is false on any miss along the way.
func (s *Shared) sourceLineText(ctx context.Context, path string, lineNum uint64) (string, bool) {
	props := s.cfg.fileWatch.PropertiesFromPath(path)
	if props.Modified.IsZero() {
		return "", false
	}

	key := s.cfg.fileWatch.KeyFromPath(path)
	lang := langFromExtension(path)

	deadline := time.Now().Add(2 * time.Second)
	var textInfo TextInfo
	var hash u128.U128
	for time.Now().Before(deadline) {
		textInfo, hash = s.cfg.textStore.TextInfoFromKeyLang(ctx, key, lang)
		if !hash.IsZero() {
			break
		}
		time.Sleep(textPollInterval)
	}
	if hash.IsZero() {
		return "", false
	}
	if lineNum == 0 || lineNum > uint64(len(textInfo.LineRanges)) {
		return "", false
	}

	data := s.cfg.blobStore.DataFromHash(hash)
	rng := textInfo.LineRanges[lineNum-1]
	if rng.End > uint64(len(data)) || rng.Start > rng.End {
		return "", false
	}
	return strings.TrimSpace(string(data[rng.Start:rng.End])), true
}

// langFromExtension is a minimal stand-in for the original's
// txt_lang_kind_from_extension; only the extension matters to the text
// store's lexer selection, so a lowercase extension string suffices here.
func langFromExtension(path string) string {
	ext := filepath.Ext(path)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
