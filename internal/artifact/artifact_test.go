package artifact_test

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rookieCookies/azurite-sub000/internal/artifact"
)

func TestWriteOpenRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.zip")
	bytecode := []byte{1, 2, 3, 4, 5}
	constants := []byte{0, 9, 9, 9}
	meta := artifact.Metadata{ExternCount: 2, LibraryCount: 1, BuildID: uuid.New()}

	require.NoError(t, artifact.Write(path, bytecode, constants, meta))

	art, err := artifact.Open(path)
	require.NoError(t, err)
	assert.Equal(t, bytecode, art.Bytecode)
	assert.Equal(t, constants, art.Constants)
	assert.Equal(t, meta, art.Metadata)
}

func TestWriteStampsABuildIDWhenLeftZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, artifact.Write(path, []byte{1}, []byte{2}, artifact.Metadata{}))

	art, err := artifact.Open(path)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, art.Metadata.BuildID)
}

func TestOpenMappedMatchesOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.zip")
	meta := artifact.Metadata{ExternCount: 1, LibraryCount: 1, BuildID: uuid.New()}
	require.NoError(t, artifact.Write(path, []byte{9, 8, 7}, []byte{1}, meta))

	mapped, closer, err := artifact.OpenMapped(path)
	require.NoError(t, err)
	defer func() { assert.NoError(t, closer()) }()

	assert.Equal(t, []byte{9, 8, 7}, mapped.Bytecode)
	assert.Equal(t, meta, mapped.Metadata)
}

func TestOpenRejectsAMissingFile(t *testing.T) {
	_, err := artifact.Open(filepath.Join(t.TempDir(), "does-not-exist.zip"))
	assert.Error(t, err)
}
