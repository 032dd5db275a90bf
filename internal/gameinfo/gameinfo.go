// Package gameinfo hooks the overlay folder into a target's search paths and
// keeps our entity definitions in its FGD.
package gameinfo

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/blackwell-systems/packport/internal/fsutil"
	"github.com/blackwell-systems/packport/internal/logging"
)

// SearchPathLine is inserted into every gameinfo.txt.
const SearchPathLine = "Game\t\"BEE2\""

const gameinfoMarker = "|gameinfo_path|"

// FGDPath is the entity definition file, relative to the target root.
const FGDPath = "bin/portal2.fgd"

const fgdHeader = "// BEE 2 EDIT FLAG = 1 \n" +
	"// Added automatically by packport. Set above to \"0\" to allow editing below text without being overwritten.\n" +
	"\n\n"

var fgdFlag = regexp.MustCompile(`(?i)^// BEE\W*2 EDIT FLAG\W*=\W*([01])`)

//go:embed bee2.fgd
var defaultFGD []byte

// Folders never searched for gameinfo.txt.
var skipFolders = map[string]bool{
	"bin":         true,
	"Soundtrack":  true,
	"sdk_tools":   true,
	"sdk_content": true,
}

// Editor patches files inside target roots.
type Editor struct {
	fs  afero.Fs
	fgd []byte
	log zerolog.Logger
}

// New creates an Editor. fgd is the block written after the edit flag; nil
// uses the built-in definitions.
func New(fsys afero.Fs, fgd []byte) *Editor {
	if fgd == nil {
		fgd = defaultFGD
	}
	return &Editor{fs: fsys, fgd: fgd, log: logging.GetLogger("gameinfo")}
}

// Folders lists the content folders of root from highest to lowest
// priority: update, the numbered DLC folders counting down, portal2, then
// every other folder in name order.
func (e *Editor) Folders(root string) ([]string, error) {
	priority := []string{"portal2"}
	for n := 1; ; n++ {
		name := "portal2_dlc" + strconv.Itoa(n)
		if !e.isDir(filepath.Join(root, name)) {
			break
		}
		priority = append(priority, name)
	}
	if e.isDir(filepath.Join(root, "update")) {
		priority = append(priority, "update")
	}

	folders := make([]string, 0, len(priority))
	seen := make(map[string]bool, len(priority))
	for i := len(priority) - 1; i >= 0; i-- {
		folders = append(folders, priority[i])
		seen[priority[i]] = true
	}

	entries, err := afero.ReadDir(e.fs, root)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}
	for _, entry := range entries {
		if entry.IsDir() && !seen[entry.Name()] && !skipFolders[entry.Name()] {
			folders = append(folders, entry.Name())
		}
	}
	return folders, nil
}

func (e *Editor) isDir(path string) bool {
	info, err := e.fs.Stat(path)
	return err == nil && info.IsDir()
}

// EditGameinfo adds or removes SearchPathLine in every gameinfo.txt of root.
// The line goes right after the last search path containing
// |gameinfo_path|, with the same indentation. Returns the files changed.
func (e *Editor) EditGameinfo(root string, add bool) ([]string, error) {
	folders, err := e.Folders(root)
	if err != nil {
		return nil, err
	}

	var changed []string
	for _, folder := range folders {
		path := filepath.Join(root, folder, "gameinfo.txt")
		data, err := afero.ReadFile(e.fs, path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return changed, fmt.Errorf("failed to read %s: %w", path, err)
		}

		lines, ok := editSearchPaths(strings.SplitAfter(string(data), "\n"), add)
		if !ok {
			if add {
				e.log.Warn().Str("file", path).Msg("No gameinfo_path search path, could not add overlay folder")
			}
			continue
		}
		if err := fsutil.WriteFileAtomic(e.fs, path, []byte(strings.Join(lines, "")), 0o644); err != nil {
			return changed, fmt.Errorf("failed to write %s: %w", path, err)
		}
		e.log.Debug().Str("file", path).Bool("add", add).Msg("Edited gameinfo")
		changed = append(changed, path)
	}
	return changed, nil
}

// editSearchPaths returns the edited lines and whether anything changed.
func editSearchPaths(lines []string, add bool) ([]string, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		clean := cleanLine(lines[i])
		if clean == SearchPathLine {
			if add {
				return lines, false
			}
			return append(lines[:i:i], lines[i+1:]...), true
		}
		if add && strings.Contains(clean, gameinfoMarker) {
			newline := "\n"
			if strings.HasSuffix(lines[i], "\r\n") {
				newline = "\r\n"
			}
			if !strings.HasSuffix(lines[i], "\n") {
				lines[i] += newline
			}
			inserted := indentOf(lines[i]) + SearchPathLine + newline
			out := make([]string, 0, len(lines)+1)
			out = append(out, lines[:i+1]...)
			out = append(out, inserted)
			return append(out, lines[i+1:]...), true
		}
	}
	return lines, false
}

func cleanLine(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// EditFGD rewrites root's FGD: everything from the edit flag onward is
// dropped, and when add is set the flag and our definitions are appended.
// A flag of 0 means the user took over the file and nothing is touched. A
// missing FGD is logged and skipped. Reports whether the file was written.
func (e *Editor) EditFGD(root string, add bool) (bool, error) {
	path := filepath.Join(root, filepath.FromSlash(FGDPath))
	data, err := afero.ReadFile(e.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		e.log.Warn().Str("file", path).Msg("No FGD file")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	lines := strings.SplitAfter(string(data), "\n")
	for i, line := range lines {
		m := fgdFlag.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if m[1] == "0" {
			e.log.Info().Str("file", path).Msg("FGD editing disabled by file")
			return false, nil
		}
		lines = lines[:i]
		break
	}

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
	}
	if add {
		b.WriteString(fgdHeader)
		b.Write(e.fgd)
	}
	if err := fsutil.WriteFileAtomic(e.fs, path, []byte(b.String()), 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	e.log.Debug().Str("file", path).Bool("add", add).Msg("Edited FGD")
	return true, nil
}
