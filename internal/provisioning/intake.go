package provisioning

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/suteetoe/storefront/internal/assets"
	storemetrics "github.com/suteetoe/storefront/prometheus"
	"go.uber.org/zap"
)

// Target is where an upload field routes its files.
type Target int

const (
	TargetProduct Target = iota
	TargetProductPool
	TargetSlider
	TargetSliderPool
	TargetLogo
)

// Route is the classification of one multipart field name.
type Route struct {
	Target Target
	Index  int
}

var indexedField = regexp.MustCompile(`^(productImage|sliderImage)_(\d+)$`)

// Stored files keep their extension and are served from the assets root, so
// the extension decides what a browser does with them. SVG can carry script.
var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
	".avif": true, ".tiff": true, ".tif": true, ".bmp": true,
}

var allowedMimes = map[string]bool{
	"image/jpeg": true, "image/png": true, "image/webp": true, "image/gif": true,
	"image/avif": true, "image/tiff": true, "image/bmp": true,
}

// allowedType requires an image extension. A declared content type can only
// narrow that further; generic types say nothing about the file.
func allowedType(filename, contentType string) bool {
	if !allowedExtensions[strings.ToLower(filepath.Ext(filename))] {
		return false
	}
	mime := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch mime {
	case "", "application/octet-stream":
		return true
	}
	return allowedMimes[mime]
}

// RouteField classifies a multipart file field by the name grammar
//
//	productImage_<i> | productImage_aggregated | productImages
//	sliderImage_<i>  | sliderImage_aggregated  | sliderImages
//	storeLogo
func RouteField(name string) (Route, bool) {
	switch name {
	case "productImage_aggregated", "productImages":
		return Route{Target: TargetProductPool, Index: -1}, true
	case "sliderImage_aggregated", "sliderImages":
		return Route{Target: TargetSliderPool, Index: -1}, true
	case "storeLogo":
		return Route{Target: TargetLogo, Index: -1}, true
	}
	m := indexedField.FindStringSubmatch(name)
	if m == nil {
		return Route{}, false
	}
	idx, err := strconv.Atoi(m[2])
	if err != nil {
		return Route{}, false
	}
	if m[1] == "productImage" {
		return Route{Target: TargetProduct, Index: idx}, true
	}
	return Route{Target: TargetSlider, Index: idx}, true
}

func (t Target) kind() assets.Kind {
	switch t {
	case TargetSlider, TargetSliderPool:
		return assets.Sliders
	case TargetLogo:
		return assets.Logo
	}
	return assets.Products
}

// UploadedFile is one accepted upload. Path points at the staging copy until
// Move relocates it into the store's asset tree.
type UploadedFile struct {
	Field        string
	Kind         assets.Kind
	Index        int
	OriginalName string
	StoredName   string
	Size         int64
	Path         string
}

// Uploads groups the accepted files of one request by target.
type Uploads struct {
	Products    map[int][]*UploadedFile
	ProductPool []*UploadedFile
	Sliders     map[int][]*UploadedFile
	SliderPool  []*UploadedFile
	Logo        *UploadedFile
	Ignored     []string
	StagingDir  string
}

// NewUploads returns an empty upload set.
func NewUploads() *Uploads {
	return &Uploads{
		Products: map[int][]*UploadedFile{},
		Sliders:  map[int][]*UploadedFile{},
	}
}

func (u *Uploads) add(route Route, f *UploadedFile) {
	switch route.Target {
	case TargetProduct:
		u.Products[route.Index] = append(u.Products[route.Index], f)
	case TargetProductPool:
		u.ProductPool = append(u.ProductPool, f)
	case TargetSlider:
		u.Sliders[route.Index] = append(u.Sliders[route.Index], f)
	case TargetSliderPool:
		u.SliderPool = append(u.SliderPool, f)
	case TargetLogo:
		u.Logo = f
	}
}

// All returns every file in a stable order: logo, indexed products, product
// pool, indexed sliders, slider pool.
func (u *Uploads) All() []*UploadedFile {
	var out []*UploadedFile
	if u.Logo != nil {
		out = append(out, u.Logo)
	}
	for _, idx := range sortedKeys(u.Products) {
		out = append(out, u.Products[idx]...)
	}
	out = append(out, u.ProductPool...)
	for _, idx := range sortedKeys(u.Sliders) {
		out = append(out, u.Sliders[idx]...)
	}
	return append(out, u.SliderPool...)
}

func sortedKeys(m map[int][]*UploadedFile) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Intake stages multipart uploads and moves them into permanent storage.
type Intake struct {
	layout      assets.Layout
	maxFileSize int64
	maxFiles    int
}

// NewIntake creates an intake bound to a filesystem layout.
func NewIntake(layout assets.Layout, maxFileSize int64, maxFiles int) *Intake {
	return &Intake{layout: layout, maxFileSize: maxFileSize, maxFiles: maxFiles}
}

// Stage copies every routable file of the form into a per-request staging
// directory. Unknown fields are logged and skipped.
func (in *Intake) Stage(ctx context.Context, files map[string][]*multipart.FileHeader, log *zap.Logger) (*Uploads, error) {
	uploads := NewUploads()

	fields := make([]string, 0, len(files))
	for name := range files {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	total := 0
	for _, name := range fields {
		if _, ok := RouteField(name); ok {
			total += len(files[name])
		}
	}
	if in.maxFiles > 0 && total > in.maxFiles {
		return nil, validationError("too many files: %d uploaded, at most %d allowed", total, in.maxFiles)
	}
	if total == 0 {
		for _, name := range fields {
			uploads.Ignored = append(uploads.Ignored, name)
			log.Warn("Unknown upload field ignored", zap.String("field", name))
		}
		return uploads, nil
	}

	uploads.StagingDir = filepath.Join(in.layout.TempDir, uuid.NewString())
	if err := os.MkdirAll(uploads.StagingDir, 0o755); err != nil {
		return nil, newError(KindIO, StageIntake, err, "Failed to create staging directory")
	}

	for _, name := range fields {
		route, ok := RouteField(name)
		if !ok {
			uploads.Ignored = append(uploads.Ignored, name)
			log.Warn("Unknown upload field ignored", zap.String("field", name))
			continue
		}
		headers := files[name]
		if route.Target == TargetLogo && len(headers) > 1 {
			log.Warn("Extra logo files ignored", zap.Int("count", len(headers)-1))
			headers = headers[:1]
		}
		for _, fh := range headers {
			if err := ctx.Err(); err != nil {
				in.Cleanup(uploads)
				return nil, newError(KindIO, StageIntake, err, "upload staging interrupted")
			}
			f, err := in.stageOne(uploads.StagingDir, name, route, fh)
			if err != nil {
				in.Cleanup(uploads)
				return nil, err
			}
			uploads.add(route, f)
		}
		log.Debug("Upload field staged",
			zap.String("field", name),
			zap.Int("files", len(headers)))
	}

	return uploads, nil
}

func (in *Intake) stageOne(dir, field string, route Route, fh *multipart.FileHeader) (*UploadedFile, error) {
	if !allowedType(fh.Filename, fh.Header.Get("Content-Type")) {
		return nil, validationError("file %q in %s: type not allowed", fh.Filename, field)
	}
	if in.maxFileSize > 0 && fh.Size > in.maxFileSize {
		return nil, validationError("file %q in %s exceeds %d bytes", fh.Filename, field, in.maxFileSize)
	}

	stored := SanitizeFilename(fh.Filename)
	dest, err := assets.SafeJoin(dir, stored)
	if err != nil {
		return nil, validationError("file %q in %s: %v", fh.Filename, field, err)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, newError(KindIO, StageIntake, err, "Failed to read uploaded file %q", fh.Filename)
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, newError(KindIO, StageIntake, err, "Failed to stage uploaded file %q", fh.Filename)
	}
	var reader io.Reader = src
	if in.maxFileSize > 0 {
		reader = io.LimitReader(src, in.maxFileSize+1)
	}
	n, copyErr := io.Copy(out, reader)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		return nil, newError(KindIO, StageIntake, errors.Join(copyErr, closeErr), "Failed to stage uploaded file %q", fh.Filename)
	}
	if in.maxFileSize > 0 && n > in.maxFileSize {
		return nil, validationError("file %q in %s exceeds %d bytes", fh.Filename, field, in.maxFileSize)
	}

	return &UploadedFile{
		Field:        field,
		Kind:         route.Target.kind(),
		Index:        route.Index,
		OriginalName: fh.Filename,
		StoredName:   stored,
		Size:         n,
		Path:         dest,
	}, nil
}

// Move relocates every staged file into <assets>/<slug>/<kind>/. It returns
// the permanent paths created so far, also on failure, so the caller can
// undo a partial move.
func (in *Intake) Move(slug string, uploads *Uploads, log *zap.Logger) ([]string, error) {
	var moved []string
	for _, f := range uploads.All() {
		dir := in.layout.KindDir(slug, f.Kind)
		if !assets.Contains(in.layout.AssetsRoot, dir) {
			return moved, newError(KindIO, StageMove, nil, "unsafe asset directory for %q", slug)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return moved, newError(KindIO, StageMove, err, "Failed to create upload directory for %s", f.Kind)
		}

		dest, name, err := uniqueDestination(dir, f.StoredName)
		if err != nil {
			return moved, newError(KindIO, StageMove, err, "Failed to process uploaded files")
		}
		if err := moveFile(f.Path, dest); err != nil {
			return moved, newError(KindIO, StageMove, err, "Failed to process uploaded files")
		}
		moved = append(moved, dest)
		f.Path = dest
		f.StoredName = name
		storemetrics.FilesMovedCounter.WithLabelValues(string(f.Kind)).Inc()
	}
	if len(moved) > 0 {
		log.Info("Files moved to permanent storage",
			zap.String("store_slug", slug),
			zap.Int("files", len(moved)))
	}
	return moved, nil
}

// Cleanup removes the request's staging directory.
func (in *Intake) Cleanup(uploads *Uploads) error {
	if uploads == nil || uploads.StagingDir == "" {
		return nil
	}
	if !assets.Contains(in.layout.TempDir, uploads.StagingDir) {
		return fmt.Errorf("staging dir %s outside %s", uploads.StagingDir, in.layout.TempDir)
	}
	return os.RemoveAll(uploads.StagingDir)
}

func uniqueDestination(dir, name string) (string, string, error) {
	dest, err := assets.SafeJoin(dir, name)
	if err != nil {
		return "", "", err
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for counter := 1; ; counter++ {
		if _, err := os.Lstat(dest); errors.Is(err, os.ErrNotExist) {
			return dest, filepath.Base(dest), nil
		} else if err != nil {
			return "", "", err
		}
		dest = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, counter, ext))
	}
}

// moveFile renames src to dst, copying when they live on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

// SanitizeFilename builds a collision-resistant, traversal-free storage name:
// a random prefix followed by the cleaned, lowercased original basename.
func SanitizeFilename(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	base = strings.ReplaceAll(base, "..", "")
	if base == "." || base == "/" {
		base = ""
	}
	base = strings.Map(func(r rune) rune {
		switch {
		case r == 0:
			return -1
		case strings.ContainsRune(`<>:"|?*/`, r), unicode.IsControl(r):
			return '-'
		case unicode.IsSpace(r):
			return '-'
		}
		return unicode.ToLower(r)
	}, base)

	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if runes := []rune(name); len(runes) > 100 {
		name = string(runes[:100])
	}
	if name == "" || name == "." {
		name = "file"
	}
	if ext == "" || ext == "." {
		ext = ".bin"
	}
	prefix := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return prefix + "_" + name + ext
}
