// Package artifact implements the compiled artifact container format
// described in SPEC_FULL.md §4.10 / spec.md §6: a zip archive holding
// the bytecode stream, the encoded constant pool, and a small
// fixed-layout metadata record, read back either from a plain file
// read or from a memory-mapped file. Either way each entry is
// decompressed into its own freshly allocated slice.
package artifact

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	entryBytecode  = "bytecode.azc"
	entryConstants = "constants.azc"
	entryMetadata  = "metadata"
)

// Metadata is the fixed-layout record spec.md §6 describes, extended
// with a build identifier (SPEC_FULL.md's supplemental feature) so a
// VM fatal-fault log can cite which build crashed.
type Metadata struct {
	ExternCount  uint32
	LibraryCount uint32
	BuildID      uuid.UUID
}

// Artifact is a fully decoded compiled unit, ready to hand to
// internal/vm and internal/externlib.
type Artifact struct {
	Bytecode  []byte
	Constants []byte
	Metadata  Metadata
}

// Write packages bytecode, constants and meta into a zip archive at
// path. meta.BuildID is stamped with a fresh random UUID if the
// caller left it the zero value.
func Write(path string, bytecode, constants []byte, meta Metadata) error {
	if meta.BuildID == uuid.Nil {
		meta.BuildID = uuid.New()
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "artifact: failed to create %s", path)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	if err := writeEntry(zw, entryBytecode, bytecode); err != nil {
		return err
	}
	if err := writeEntry(zw, entryConstants, constants); err != nil {
		return err
	}
	if err := writeEntry(zw, entryMetadata, encodeMetadata(meta)); err != nil {
		return err
	}

	return errors.Wrap(zw.Close(), "artifact: failed to finalize archive")
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return errors.Wrapf(err, "artifact: failed to create entry %s", name)
	}
	_, err = w.Write(data)
	return errors.Wrapf(err, "artifact: failed to write entry %s", name)
}

func encodeMetadata(m Metadata) []byte {
	buf := make([]byte, 8, 8+16)
	binary.LittleEndian.PutUint32(buf[0:4], m.ExternCount)
	binary.LittleEndian.PutUint32(buf[4:8], m.LibraryCount)
	idBytes, _ := m.BuildID.MarshalBinary()
	return append(buf, idBytes...)
}

func decodeMetadata(data []byte) (Metadata, error) {
	if len(data) < 8 {
		return Metadata{}, errors.New("artifact: truncated metadata record")
	}
	m := Metadata{
		ExternCount:  binary.LittleEndian.Uint32(data[0:4]),
		LibraryCount: binary.LittleEndian.Uint32(data[4:8]),
	}
	if len(data) >= 8+16 {
		if err := m.BuildID.UnmarshalBinary(data[8 : 8+16]); err != nil {
			return Metadata{}, errors.Wrap(err, "artifact: corrupt build id")
		}
	}
	return m, nil
}

// Open reads path fully into memory and decodes its three entries.
// Prefer OpenMapped for large artifacts.
func Open(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "artifact: failed to read %s", path)
	}
	return decode(data, int64(len(data)))
}

// OpenMapped memory-maps path read-only (via edsrzf/mmap-go) and
// decodes the archive directory against the mapping directly, so the
// file is not first read whole into memory. Each entry is still
// decompressed into its own slice: Bytecode and Constants are copies,
// not views of the mapping. The caller must call the returned closer
// to release the mapping.
func OpenMapped(path string) (*Artifact, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "artifact: failed to open %s", path)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, errors.Wrapf(err, "artifact: failed to stat %s", path)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, errors.Wrapf(err, "artifact: failed to mmap %s", path)
	}

	art, err := decode([]byte(m), info.Size())
	if err != nil {
		m.Unmap()
		f.Close()
		return nil, nil, err
	}

	closer := func() error {
		if err := m.Unmap(); err != nil {
			f.Close()
			return errors.Wrap(err, "artifact: failed to unmap")
		}
		return errors.Wrap(f.Close(), "artifact: failed to close mapped file")
	}

	return art, closer, nil
}

func decode(data []byte, size int64) (*Artifact, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), size)
	if err != nil {
		return nil, errors.Wrap(err, "artifact: not a valid archive")
	}

	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "artifact: failed to open entry %s", f.Name)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "artifact: failed to read entry %s", f.Name)
		}
		files[f.Name] = body
	}

	bytecode, ok := files[entryBytecode]
	if !ok {
		return nil, errors.New("artifact: missing bytecode.azc entry")
	}
	constants, ok := files[entryConstants]
	if !ok {
		return nil, errors.New("artifact: missing constants.azc entry")
	}
	rawMeta, ok := files[entryMetadata]
	if !ok {
		return nil, errors.New("artifact: missing metadata entry")
	}

	meta, err := decodeMetadata(rawMeta)
	if err != nil {
		return nil, err
	}

	return &Artifact{Bytecode: bytecode, Constants: constants, Metadata: meta}, nil
}
