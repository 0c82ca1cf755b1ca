package flash

import (
	"path/filepath"
	"testing"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
	"github.com/stretchr/testify/require"
)

var testGeo = Geometry{Base: 0x08000000, Size: 16 * 1024, PageSize: 2048}

func TestGeometry(t *testing.T) {
	require.NoError(t, testGeo.Validate())
	require.Equal(t, uint32(0x08004000), testGeo.End())
	require.Equal(t, 8, testGeo.PageCount())
	require.True(t, testGeo.Contains(0x08000000, 16*1024))
	require.False(t, testGeo.Contains(0x08000000, 16*1024+1))
	require.False(t, testGeo.Contains(0x07FFFFFF, 1))

	page, err := testGeo.PageOf(0x08000800)
	require.NoError(t, err)
	require.Equal(t, 1, page)
	_, err = testGeo.PageOf(0x08004000)
	require.Error(t, err)

	require.Error(t, Geometry{Base: 0, Size: 1000, PageSize: 512}.Validate())
	require.Error(t, Geometry{Base: 0, Size: 1024, PageSize: 12}.Validate())
	require.Error(t, Geometry{}.Validate())
}

func TestImageProgramRequiresErased(t *testing.T) {
	m, err := NewMemory(testGeo)
	require.NoError(t, err)

	require.NoError(t, m.ProgramDoubleWord(0x08000000, 0x1122334455667788))
	got := make([]byte, 8)
	require.NoError(t, m.Read(0x08000000, got))
	require.Equal(t, []byte{0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}, got)

	err = m.ProgramDoubleWord(0x08000000, 0)
	require.Error(t, err)
	require.Equal(t, errors.KindServerError, errors.Kind(err))

	err = m.ProgramDoubleWord(0x08000004, 0)
	require.Equal(t, errors.KindContractInvalid, errors.Kind(err))

	require.NoError(t, ErasePageAt(m, 0x08000010))
	require.NoError(t, m.ProgramDoubleWord(0x08000000, 0))
}

func TestProgramPadsTail(t *testing.T) {
	m, err := NewMemory(testGeo)
	require.NoError(t, err)

	n, err := Program(m, 0x08000800, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	require.NoError(t, err)
	require.Equal(t, 10, n)

	got := make([]byte, 16)
	require.NoError(t, m.Read(0x08000800, got))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, got)
}

func TestProgramStopsAtFirstFailure(t *testing.T) {
	m, err := NewMemory(testGeo)
	require.NoError(t, err)
	require.NoError(t, m.Patch(0x08000008, []byte{0}))

	n, err := Program(m, 0x08000000, make([]byte, 24))
	require.Error(t, err)
	require.Equal(t, 8, n)
}

func TestEraseRange(t *testing.T) {
	m, err := NewMemory(testGeo)
	require.NoError(t, err)
	for p := 0; p < testGeo.PageCount(); p++ {
		require.NoError(t, m.ProgramDoubleWord(testGeo.PageAddr(p), 0))
	}

	require.NoError(t, EraseRange(m, 0x08001000, 0x1001))

	for p := 0; p < testGeo.PageCount(); p++ {
		w, err := ReadWords(m, testGeo.PageAddr(p), 1)
		require.NoError(t, err)
		erased := p == 2 || p == 3 || p == 4
		require.Equal(t, erased, w[0] == ErasedWord, "page %d", p)
	}
}

func TestOpenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")

	m, err := Open(path, testGeo)
	require.NoError(t, err)
	require.NoError(t, m.ProgramDoubleWord(0x08003FF8, 0xA5A5A5A5DEADBEEF))
	require.NoError(t, m.Close())

	m, err = Open(path, testGeo)
	require.NoError(t, err)
	defer m.Close()
	w, err := ReadWords(m, 0x08003FF8, 2)
	require.NoError(t, err)
	require.Equal(t, []uint32{0xDEADBEEF, 0xA5A5A5A5}, w)

	_, err = Open(path, Geometry{Base: 0x08000000, Size: 8 * 1024, PageSize: 2048})
	require.Error(t, err)
}
