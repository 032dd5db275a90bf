package export

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/blackwell-systems/packport/internal/cache"
	"github.com/blackwell-systems/packport/internal/errs"
	"github.com/blackwell-systems/packport/internal/fsutil"
	"github.com/blackwell-systems/packport/internal/kv"
)

// Exporter contributes one kind of object to the export. Returning an error
// of kind errs.KindSoftExport marks the run as partially packaged; any other
// error is kept as a warning.
type Exporter interface {
	Name() string
	Export(ctx *Context) error
}

// Generator produces content from the final context, typically by queueing
// resources with Context.AddResource.
type Generator interface {
	Name() string
	Generate(ctx *Context) error
}

// DefaultExporters returns the exporters in the order they must run.
func DefaultExporters() []Exporter {
	return []Exporter{StyleVarExporter{}, ItemExporter{}, QuotePackExporter{}, StylePackagingExporter{}}
}

// VoiceFile is where the selected quote pack is written.
const VoiceFile = cache.AuxDir + "/voice.cfg"

// StyleVarExporter writes every style var's effective value into a
// StyleVars block.
type StyleVarExporter struct{}

func (StyleVarExporter) Name() string { return "Style vars" }

func (StyleVarExporter) Export(ctx *Context) error {
	block := kv.NewBlock("StyleVars")
	for _, sv := range ctx.Packages.StyleVars() {
		block.Append(kv.NewLeaf(sv.ID, boolValue(ctx.StyleVar(sv.ID))))
	}
	ctx.Config.Append(block)
	return nil
}

// ItemExporter adds each exported item's configuration.
type ItemExporter struct{}

func (ItemExporter) Name() string { return "Items" }

func (ItemExporter) Export(ctx *Context) error {
	for _, it := range ctx.Items {
		if it.Config != nil {
			ctx.Config.Extend(it.Config)
		}
	}
	return nil
}

// QuotePackExporter adds the selected voice lines.
type QuotePackExporter struct{}

func (QuotePackExporter) Name() string { return "Voice lines" }

func (QuotePackExporter) Export(ctx *Context) error {
	id := ctx.Selection.Voice
	if id == "" {
		return nil
	}
	qp, ok := ctx.Packages.Quote(id)
	if !ok {
		return errs.Newf(errs.KindValidation, "unknown voice %q", id)
	}
	if qp.Config == nil {
		return nil
	}
	ctx.Config.SetKey(qp.ID, "Options", "voice_id")
	ctx.Config.Extend(qp.Config)
	ctx.AddResource(VoiceFile, []byte(qp.Config.String()))
	return nil
}

// StylePackagingExporter replaces the prebuilt archives in the packaging dir
// with the selected style's.
type StylePackagingExporter struct{}

func (StylePackagingExporter) Name() string { return "Style packaging" }

func (StylePackagingExporter) Export(ctx *Context) error {
	if ctx.DryRun {
		return nil
	}
	if err := cache.ClearPackaging(ctx.fs, ctx.Target); err != nil {
		return errs.Wrap(err, errs.KindSoftExport, "failed to remove old style archives")
	}
	if ctx.Style.VPK == "" || ctx.Style.Package == nil {
		return nil
	}

	src, closer, err := ctx.Style.Package.Open()
	if err != nil {
		return errs.Wrapf(err, errs.KindSoftExport, "failed to open package %s", ctx.Style.Package.ID)
	}
	defer closer.Close()

	dir := "/" + strings.Trim(ctx.Style.VPK, "/")
	matches, err := afero.Glob(src, path.Join(dir, cache.PackagingGlob))
	if err != nil {
		return errs.Wrap(err, errs.KindSoftExport, "failed to list style archives")
	}
	if len(matches) == 0 {
		return nil
	}

	dest := ctx.Target.Path(cache.PackagingDir)
	if err := ctx.fs.MkdirAll(dest, 0o755); err != nil {
		return errs.Wrapf(err, errs.KindSoftExport, "failed to create %s", dest)
	}
	for _, m := range matches {
		if err := fsutil.CopyBetween(src, m, ctx.fs, ctx.Target.Path(cache.PackagingDir+"/"+path.Base(m))); err != nil {
			return errs.Wrap(err, errs.KindSoftExport, fmt.Sprintf("failed to copy %s", path.Base(m)))
		}
	}
	return nil
}

func boolValue(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
