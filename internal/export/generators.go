package export

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/blackwell-systems/packport/internal/cache"
	"github.com/blackwell-systems/packport/internal/items"
	"github.com/blackwell-systems/packport/internal/logging"
)

// DefaultGenerators returns the content generators run after the resource
// refresh.
func DefaultGenerators() []Generator {
	return []Generator{EditorModelGenerator{}, FizzlerSideGenerator{}}
}

// EditorModelDirs hold the palette models, relative to the target root.
var EditorModelDirs = []string{
	cache.OverlayDir + "/models/props_map_editor",
	"bee2_dev/models/props_map_editor",
}

const (
	modelExt         = ".mdl"
	disabledModelExt = ".mdl_dis"
)

// EditorModelGenerator keeps the editor's model budget small by renaming
// models no exported item uses to .mdl_dis, and enabling used ones again.
type EditorModelGenerator struct{}

func (EditorModelGenerator) Name() string { return "Editor models" }

func (EditorModelGenerator) Generate(ctx *Context) error {
	if ctx.DryRun {
		return nil
	}
	used := make(map[string]bool)
	for m := range items.UsedModels(ctx.Items) {
		used[modelKey(m)] = true
	}

	log := logging.GetLogger("export")
	for _, dir := range EditorModelDirs {
		abs := ctx.Target.Path(dir)
		entries, err := afero.ReadDir(ctx.fs, abs)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", abs, err)
		}

		enabled, disabled := 0, 0
		for _, e := range entries {
			name := e.Name()
			ext := path.Ext(name)
			if e.IsDir() || (ext != modelExt && ext != disabledModelExt) {
				continue
			}
			want := disabledModelExt
			if ctx.Options.ForceAllEditorModels || used[modelKey(name)] {
				want = modelExt
			}
			if want == modelExt {
				enabled++
			} else {
				disabled++
			}
			if want == ext {
				continue
			}

			base := strings.TrimSuffix(name, ext)
			from := ctx.Target.Path(dir + "/" + name)
			to := ctx.Target.Path(dir + "/" + base + want)
			if err := ctx.fs.Remove(to); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to remove %s: %w", to, err)
			}
			if err := ctx.fs.Rename(from, to); err != nil {
				return fmt.Errorf("failed to rename %s: %w", from, err)
			}
		}
		log.Debug().Str("dir", dir).Int("enabled", enabled).Int("disabled", disabled).Msg("Editor models updated")
	}
	return nil
}

// modelKey is the case-folded file name without directory or extension.
func modelKey(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.ToLower(strings.TrimSuffix(name, path.Ext(name)))
}

// FizzlerSideDir receives one material per distinct fizzler side colour.
const FizzlerSideDir = cache.OverlayDir + "/materials/bee2/fizz_sides"

const fizzlerSideMaterial = `SolidEnergy
{
$basetexture "sprites/laserbeam"
$flowmap "effects/fizzler_flow"
$flowbounds "BEE2/fizz/fizz_side"
$flow_noise_texture "effects/fizzler_noise"
$additive 1
$translucent 1
$decal 1
$flow_color "[%s]"
$flow_vortex_color "[%s]"
`

const fizzlerSideProxies = `$offset "[0 0]"
Proxies
{
FizzlerVortex
{
}
MaterialModify
{
}
}
}
`

type fizzlerSide struct {
	alpha  float64
	vortex string
}

// FizzlerSideGenerator writes a side material for every
// Fizzlers/Fizzler/Brush block with a Side_color.
type FizzlerSideGenerator struct{}

func (FizzlerSideGenerator) Name() string { return "Fizzler sides" }

func (FizzlerSideGenerator) Generate(ctx *Context) error {
	sides := make(map[[3]float64]fizzlerSide)
	var order [][3]float64
	for _, brush := range ctx.Config.FindPath("Fizzlers", "Fizzler", "Brush") {
		raw := brush.Get("Side_color", "")
		if raw == "" {
			continue
		}
		color, err := parseVec(raw)
		if err != nil {
			return fmt.Errorf("invalid fizzler Side_color %q: %w", raw, err)
		}
		alpha, err := strconv.ParseFloat(brush.Get("side_alpha", "1"), 64)
		if err != nil {
			return fmt.Errorf("invalid fizzler side_alpha: %w", err)
		}
		if _, ok := sides[color]; !ok {
			order = append(order, color)
		}
		// Later brushes with the same colour win.
		sides[color] = fizzlerSide{alpha: alpha, vortex: brush.Get("side_vortex", formatVec(color))}
	}

	sort.Slice(order, func(i, j int) bool { return sideName(order[i]) < sideName(order[j]) })
	for _, color := range order {
		side := sides[color]
		var sb strings.Builder
		fmt.Fprintf(&sb, fizzlerSideMaterial, formatVec(color), side.vortex)
		if side.alpha != 1 {
			fmt.Fprintf(&sb, "$outputintensity %s\n", strings.Replace(formatFloat(side.alpha), "0.", ".", 1))
		}
		sb.WriteString(fizzlerSideProxies)
		ctx.AddResource(FizzlerSideDir+"/"+sideName(color)+".vmt", []byte(sb.String()))
	}
	return nil
}

func sideName(c [3]float64) string {
	return fmt.Sprintf("side_color_%02X%02X%02X", channel(c[0]), channel(c[1]), channel(c[2]))
}

func channel(v float64) int {
	n := int(math.RoundToEven(v * 255))
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return n
}

// parseVec reads "x y z". Missing components are 0.
func parseVec(s string) ([3]float64, error) {
	var v [3]float64
	fields := strings.Fields(strings.Trim(s, "[]<>{}()"))
	if len(fields) > 3 {
		return v, errors.New("too many components")
	}
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return v, err
		}
		v[i] = n
	}
	return v, nil
}

func formatVec(v [3]float64) string {
	return formatFloat(v[0]) + " " + formatFloat(v[1]) + " " + formatFloat(v[2])
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
