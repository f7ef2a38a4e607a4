package provisioning

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/suteetoe/storefront/internal/assets"
)

// VerificationChecks are the individual filesystem checks.
type VerificationChecks struct {
	StoreJSONExists    bool `json:"storeJsonExists"`
	IndexJSONExists    bool `json:"indexJsonExists"`
	ImagesFolderExists bool `json:"imagesFolderExists"`
	TSFilesExist       bool `json:"tsFilesExist"`
	FileCount          int  `json:"fileCount"`
}

// VerificationReport is the outcome of re-reading a store's artifacts.
type VerificationReport struct {
	Success  bool               `json:"success"`
	Errors   []string           `json:"errors"`
	Warnings []string           `json:"warnings"`
	Checks   VerificationChecks `json:"checks"`
}

// Verifier re-stats the filesystem after a store was written.
type Verifier struct {
	layout assets.Layout
}

func NewVerifier(layout assets.Layout) *Verifier {
	return &Verifier{layout: layout}
}

// Verify checks the artifacts of slug. Only a missing manifest is fatal.
func (v *Verifier) Verify(slug string) VerificationReport {
	report := VerificationReport{Errors: []string{}, Warnings: []string{}}

	if isFile(v.layout.ManifestPath(slug)) {
		report.Checks.StoreJSONExists = true
	} else {
		report.Errors = append(report.Errors, "store.json file not found")
	}

	if isFile(v.layout.IndexPath()) {
		report.Checks.IndexJSONExists = true
	} else {
		report.Warnings = append(report.Warnings, "stores index.json not found")
	}

	productsDir := v.layout.KindDir(slug, assets.Products)
	if entries, err := os.ReadDir(productsDir); err == nil {
		report.Checks.ImagesFolderExists = true
		for _, e := range entries {
			if !e.IsDir() {
				report.Checks.FileCount++
			}
		}
	}

	srcDir := v.layout.SourceDir(slug)
	if info, err := os.Stat(srcDir); err != nil || !info.IsDir() {
		report.Warnings = append(report.Warnings, fmt.Sprintf("source directory %s not found", srcDir))
	} else {
		var missing []string
		for _, name := range assets.SourceFiles {
			if !isFile(filepath.Join(srcDir, name)) {
				missing = append(missing, name)
			}
		}
		if len(missing) == 0 {
			report.Checks.TSFilesExist = true
		} else {
			report.Warnings = append(report.Warnings, fmt.Sprintf("missing source files: %v", missing))
		}
	}

	report.Success = len(report.Errors) == 0
	return report
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
