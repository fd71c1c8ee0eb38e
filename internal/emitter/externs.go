package emitter

import (
	"encoding/binary"
	"fmt"
)

// LibraryManifest is one decoded ExternFile record: the library path
// and the dense extern indices/symbols the bytecode calls through it.
type LibraryManifest struct {
	Path    string
	Entries []ExternEntry
}

// ExternEntry is one function a LibraryManifest exposes.
type ExternEntry struct {
	Index  uint32
	Symbol string
}

// ParseExterns walks the ExternFile records a bytecode stream leads
// with (spec.md §6) and returns the library manifest plus the byte
// offset the first function's Push prologue starts at. cmd/azuritec
// uses this to hand internal/externlib a (path, entries) pair per
// library and to know where to start internal/vm.Run.
func ParseExterns(code []byte) ([]LibraryManifest, int, error) {
	var libs []LibraryManifest
	pc := 0

	for pc < len(code) {
		if Op(code[pc]) != OpExternFile {
			break
		}
		pc++

		path, n, err := readCStringChecked(code, pc)
		if err != nil {
			return nil, 0, err
		}
		pc = n

		if pc >= len(code) {
			return nil, 0, truncatedExternErr(pc)
		}
		count := code[pc]
		pc++

		entries := make([]ExternEntry, 0, count)
		for i := byte(0); i < count; i++ {
			if pc+4 > len(code) {
				return nil, 0, truncatedExternErr(pc)
			}
			idx := binary.LittleEndian.Uint32(code[pc : pc+4])
			pc += 4

			sym, n, err := readCStringChecked(code, pc)
			if err != nil {
				return nil, 0, err
			}
			pc = n

			entries = append(entries, ExternEntry{Index: idx, Symbol: sym})
		}

		libs = append(libs, LibraryManifest{Path: path, Entries: entries})
	}

	return libs, pc, nil
}

func readCStringChecked(code []byte, pc int) (string, int, error) {
	start := pc
	for pc < len(code) && code[pc] != 0 {
		pc++
	}
	if pc >= len(code) {
		return "", 0, truncatedExternErr(start)
	}
	return string(code[start:pc]), pc + 1, nil
}

func truncatedExternErr(offset int) error {
	return fmt.Errorf("artifact-format error: truncated ExternFile record at offset %d", offset)
}
