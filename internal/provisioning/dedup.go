package provisioning

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/suteetoe/storefront/internal/assets"
	storemetrics "github.com/suteetoe/storefront/prometheus"
	"go.uber.org/zap"
)

// DedupReport summarizes one reclaim pass over a store.
type DedupReport struct {
	Scanned  int      `json:"scanned"`
	Removed  []string `json:"removed"`
	Skipped  int      `json:"skipped"`
	Failures []string `json:"failures,omitempty"`

	// Replaced maps every removed file to the identical file that was kept.
	Replaced map[string]string `json:"replaced,omitempty"`
}

// Reclaimer removes byte-identical duplicates inside each asset subfolder
// of a store. The first file in directory order wins.
type Reclaimer struct {
	layout       assets.Layout
	maxFiles     int
	maxFileBytes int64
}

func NewReclaimer(layout assets.Layout, maxFiles int, maxFileBytes int64) *Reclaimer {
	return &Reclaimer{layout: layout, maxFiles: maxFiles, maxFileBytes: maxFileBytes}
}

// Reclaim runs over products, sliders and logo independently. Errors never
// abort the pass; they are collected in the report.
func (r *Reclaimer) Reclaim(slug string, log *zap.Logger) DedupReport {
	report := DedupReport{Removed: []string{}, Replaced: map[string]string{}}
	for _, kind := range assets.Kinds {
		r.reclaimDir(r.layout.KindDir(slug, kind), &report, log)
	}
	if len(report.Removed) > 0 {
		storemetrics.DuplicatesReclaimedCounter.Add(float64(len(report.Removed)))
		log.Info("Duplicate assets removed",
			zap.String("store_slug", slug),
			zap.Int("removed", len(report.Removed)))
	}
	return report
}

func (r *Reclaimer) reclaimDir(dir string, report *DedupReport, log *zap.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", dir, err))
		}
		return
	}

	seen := make(map[string]string)
	scanned := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if r.maxFiles > 0 && scanned >= r.maxFiles {
			report.Skipped++
			continue
		}
		p := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", p, err))
			continue
		}
		if r.maxFileBytes > 0 && info.Size() > r.maxFileBytes {
			report.Skipped++
			continue
		}

		scanned++
		report.Scanned++
		sum, err := hashFile(p)
		if err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", p, err))
			continue
		}
		if kept, ok := seen[sum]; ok {
			if err := os.Remove(p); err != nil {
				report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", p, err))
				continue
			}
			report.Removed = append(report.Removed, p)
			report.Replaced[p] = kept
			log.Debug("Duplicate asset removed", zap.String("path", p), zap.String("kept", kept))
			continue
		}
		seen[sum] = p
	}
}

func hashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
