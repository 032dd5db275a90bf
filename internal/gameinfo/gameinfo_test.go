package gameinfo

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGameinfo = "\"GameInfo\"\n" +
	"{\n" +
	"\tFileSystem\n" +
	"\t{\n" +
	"\t\tSearchPaths\n" +
	"\t\t{\n" +
	"\t\t\tGame |gameinfo_path|.\n" +
	"\t\t\tGame portal2\n" +
	"\t\t}\n" +
	"\t}\n" +
	"}\n"

func newRoot(t *testing.T, dirs ...string) (afero.Fs, string) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	root := "/games/portal2"
	for _, d := range dirs {
		require.NoError(t, fsys.MkdirAll(root+"/"+d, 0o755))
	}
	return fsys, root
}

func TestFolders(t *testing.T) {
	fsys, root := newRoot(t, "portal2", "portal2_dlc1", "portal2_dlc2", "portal2_dlc4", "update", "bin", "sdk_content", "aperturetag")

	folders, err := New(fsys, nil).Folders(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"update", "portal2_dlc2", "portal2_dlc1", "portal2", "aperturetag", "portal2_dlc4"}, folders)
}

func TestEditGameinfo(t *testing.T) {
	fsys, root := newRoot(t, "portal2", "portal2_dlc1")
	main := root + "/portal2/gameinfo.txt"
	require.NoError(t, afero.WriteFile(fsys, main, []byte(sampleGameinfo), 0o644))
	require.NoError(t, afero.WriteFile(fsys, root+"/portal2_dlc1/gameinfo.txt", []byte("\"GameInfo\" {}\n"), 0o644))
	ed := New(fsys, nil)

	changed, err := ed.EditGameinfo(root, true)
	require.NoError(t, err)
	assert.Equal(t, []string{main}, changed)

	data, err := afero.ReadFile(fsys, main)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\t\t\tGame |gameinfo_path|.\n\t\t\tGame\t\"BEE2\"\n\t\t\tGame portal2\n")

	t.Run("adding twice is a no-op", func(t *testing.T) {
		changed, err := ed.EditGameinfo(root, true)
		require.NoError(t, err)
		assert.Empty(t, changed)
	})

	t.Run("remove restores the file", func(t *testing.T) {
		changed, err := ed.EditGameinfo(root, false)
		require.NoError(t, err)
		assert.Equal(t, []string{main}, changed)

		data, err := afero.ReadFile(fsys, main)
		require.NoError(t, err)
		assert.Equal(t, sampleGameinfo, string(data))
	})
}

func TestEditSearchPathsKeepsCRLF(t *testing.T) {
	lines := []string{"SearchPaths\r\n", "{\r\n", "  Game |gameinfo_path|. // ours\r\n", "}\r\n"}
	out, ok := editSearchPaths(lines, true)
	require.True(t, ok)
	assert.Equal(t, "  Game\t\"BEE2\"\r\n", out[3])
	assert.Len(t, out, 5)
}

func TestEditFGD(t *testing.T) {
	const vanilla = "@BaseClass = Targetname []\n"
	block := []byte("@PointClass = bee2_test []\n")

	t.Run("adds and replaces our block", func(t *testing.T) {
		fsys, root := newRoot(t, "bin")
		path := root + "/" + FGDPath
		require.NoError(t, afero.WriteFile(fsys, path, []byte(vanilla), 0o644))
		ed := New(fsys, block)

		for i := 0; i < 2; i++ {
			written, err := ed.EditFGD(root, true)
			require.NoError(t, err)
			assert.True(t, written)
		}
		data, err := afero.ReadFile(fsys, path)
		require.NoError(t, err)
		assert.Equal(t, vanilla+fgdHeader+string(block), string(data))

		written, err := ed.EditFGD(root, false)
		require.NoError(t, err)
		assert.True(t, written)
		data, err = afero.ReadFile(fsys, path)
		require.NoError(t, err)
		assert.Equal(t, vanilla, string(data))
	})

	t.Run("flag 0 disables editing", func(t *testing.T) {
		fsys, root := newRoot(t, "bin")
		path := root + "/" + FGDPath
		content := vanilla + "// bee2 edit flag = 0\n@PointClass = custom []\n"
		require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))

		written, err := New(fsys, block).EditFGD(root, true)
		require.NoError(t, err)
		assert.False(t, written)
		data, err := afero.ReadFile(fsys, path)
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
	})

	t.Run("missing file is skipped", func(t *testing.T) {
		fsys, root := newRoot(t, "bin")
		written, err := New(fsys, block).EditFGD(root, true)
		require.NoError(t, err)
		assert.False(t, written)
	})

	t.Run("default block is embedded", func(t *testing.T) {
		assert.Contains(t, string(defaultFGD), "bee2_instance_marker")
	})
}
