// Package provisioning turns one merchant onboarding request into a live
// store: uploaded assets on disk, generated artifacts, and database rows.
// Every side effect is undone when a later stage fails.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"github.com/suteetoe/storefront/internal/assets"
	"github.com/suteetoe/storefront/internal/defaults"
	"github.com/suteetoe/storefront/internal/events"
	"github.com/suteetoe/storefront/internal/model"
	"github.com/suteetoe/storefront/internal/storefront"
	"github.com/suteetoe/storefront/pkg/logger"
	storemetrics "github.com/suteetoe/storefront/prometheus"
	"go.uber.org/zap"
)

// State is the last provisioning milestone a request reached.
type State string

const (
	StateReceived         State = "RECEIVED"
	StateFilesStaged      State = "FILES_STAGED"
	StateArtifactsWritten State = "ARTIFACTS_WRITTEN"
	StateDBCommitted      State = "DB_COMMITTED"
	StateVerified         State = "VERIFIED"
)

// Generator writes the store artifacts and can remove them again.
type Generator interface {
	Generate(ctx context.Context, p storefront.Payload) error
	Remove(ctx context.Context, slug string) error
}

// Dependencies wires a pipeline.
type Dependencies struct {
	Layout       assets.Layout
	Repository   *Repository
	Intake       *Intake
	Generator    Generator
	Verifier     *Verifier
	Reclaimer    *Reclaimer
	Publisher    events.Publisher
	Defaults     defaults.Defaults
	BorrowImages bool
}

// Pipeline provisions stores.
type Pipeline struct {
	layout       assets.Layout
	repo         *Repository
	intake       *Intake
	generator    Generator
	verifier     *Verifier
	reclaimer    *Reclaimer
	publisher    events.Publisher
	defaults     defaults.Defaults
	borrowImages bool
	locks        *slugLocks
}

func NewPipeline(deps Dependencies) *Pipeline {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Pipeline{
		layout:       deps.Layout,
		repo:         deps.Repository,
		intake:       deps.Intake,
		generator:    deps.Generator,
		verifier:     deps.Verifier,
		reclaimer:    deps.Reclaimer,
		publisher:    publisher,
		defaults:     deps.Defaults,
		borrowImages: deps.BorrowImages,
		locks:        newSlugLocks(),
	}
}

// Defaults returns the storefront fallbacks the pipeline resolves with.
func (p *Pipeline) Defaults() defaults.Defaults { return p.defaults }

// Result describes a provisioning run. On failure it still carries the
// state reached and, after verification, the report.
type Result struct {
	State        State
	Store        model.Store
	Merchant     model.User
	Products     []storefront.Product
	Sliders      []storefront.Slider
	Logo         string
	ImageSources []ImageSource
	Verification *VerificationReport
	Dedup        *DedupReport
	Warnings     []string
}

type compensation struct {
	state State
	name  string
	fn    func(ctx context.Context) error
}

type run struct {
	p       *Pipeline
	req     *Request
	log     *zap.Logger
	res     *Result
	uploads *Uploads
	payload storefront.Payload
	undo    []compensation
}

// Provision runs every stage for req. Files are the raw multipart file
// headers. A returned *Error names the failing stage.
func (p *Pipeline) Provision(ctx context.Context, req *Request, files map[string][]*multipart.FileHeader) (*Result, error) {
	log := logger.FromContext(ctx).With(zap.String("store_slug", req.Slug))
	r := &run{p: p, req: req, log: log, res: &Result{State: StateReceived, Warnings: []string{}}}

	res, err := r.execute(ctx, files)
	outcome := "success"
	if err != nil {
		outcome = "error"
		if pe, ok := AsError(err); ok {
			outcome = string(pe.Kind)
		}
		log.Error("Store provisioning failed",
			zap.String("state", string(r.res.State)),
			zap.Error(err))
	} else {
		log.Info("Store provisioned",
			zap.Uint("store_id", res.Store.ID),
			zap.Uint("merchant_id", res.Merchant.ID),
			zap.Int("products", len(res.Products)),
			zap.Int("sliders", len(res.Sliders)))
	}
	storemetrics.RecordOutcome(outcome)
	return res, err
}

func (r *run) execute(ctx context.Context, files map[string][]*multipart.FileHeader) (*Result, error) {
	if err := r.stage(ctx, files); err != nil {
		return r.res, err
	}
	defer r.cleanupStaging()

	unlock, err := r.p.locks.acquire(ctx, r.req.Slug)
	if err != nil {
		return r.res, newError(KindIO, StagePrecheck, err, "request cancelled while waiting for slug %q", r.req.Slug)
	}
	defer unlock()

	if err := r.precheck(ctx); err != nil {
		return r.res, err
	}

	steps := []struct {
		state State
		fn    func(context.Context) error
	}{
		{StateFilesStaged, r.move},
		{StateArtifactsWritten, r.generate},
		{StateDBCommitted, r.persist},
		{StateVerified, r.verify},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			r.compensate(ctx)
			return r.res, err
		}
		r.res.State = step.state
	}

	r.reclaim(ctx)
	r.publish(ctx)
	return r.res, nil
}

func (r *run) stage(ctx context.Context, files map[string][]*multipart.FileHeader) error {
	defer storemetrics.TrackStage(StageIntake)(time.Now())

	uploads, err := r.p.intake.Stage(ctx, files, r.log)
	if err != nil {
		return err
	}
	r.uploads = uploads
	for _, field := range uploads.Ignored {
		r.res.Warnings = append(r.res.Warnings, fmt.Sprintf("unknown upload field %q ignored", field))
	}
	return nil
}

func (r *run) precheck(ctx context.Context) error {
	defer storemetrics.TrackStage(StagePrecheck)(time.Now())

	if err := r.p.repo.CheckAvailability(ctx, r.req.Slug, r.req.Name, r.req.Emails()); err != nil {
		return err
	}
	if _, err := os.Stat(r.p.layout.ManifestPath(r.req.Slug)); err == nil {
		return conflictError("Store files for %q already exist", r.req.Slug)
	}
	return nil
}

func (r *run) move(ctx context.Context) error {
	defer storemetrics.TrackStage(StageMove)(time.Now())

	moved, err := r.p.intake.Move(r.req.Slug, r.uploads, r.log)
	if len(moved) > 0 {
		r.push(StateFilesStaged, "remove moved files", func(context.Context) error {
			return r.removeMoved(moved)
		})
	}
	return err
}

func (r *run) removeMoved(moved []string) error {
	var errs []error
	for _, path := range moved {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	// only empty directories go; anything else was there before us
	for _, kind := range assets.Kinds {
		os.Remove(r.p.layout.KindDir(r.req.Slug, kind))
	}
	os.Remove(r.p.layout.StoreDir(r.req.Slug))
	return errors.Join(errs...)
}

// assign resolves images for products, sliders and logo.
func (r *run) assign() storefront.Payload {
	defer storemetrics.TrackStage(StageAssign)(time.Now())

	slug := r.req.Slug
	publicPath := func(f *UploadedFile) string {
		return r.p.layout.PublicPath(slug, f.Kind, f.StoredName)
	}

	exact := make(map[int][]string, len(r.uploads.Products))
	for idx, files := range r.uploads.Products {
		for _, f := range files {
			exact[idx] = append(exact[idx], publicPath(f))
		}
	}
	var pool []string
	for _, f := range r.uploads.ProductPool {
		pool = append(pool, publicPath(f))
	}

	assigned := AssignProductImages(AssignInput{
		Products:     r.req.Products,
		Counts:       r.req.ImageCounts,
		Exact:        exact,
		Pool:         pool,
		BorrowImages: r.p.borrowImages,
		DefaultImage: r.p.layout.DefaultProductImage(slug),
		Defaults:     r.p.defaults,
	})
	for _, src := range assigned.Sources {
		storemetrics.ImageAssignmentCounter.WithLabelValues(string(src)).Inc()
	}
	if len(assigned.Unused) > 0 {
		r.res.Warnings = append(r.res.Warnings, fmt.Sprintf("%d pooled product images were not assigned", len(assigned.Unused)))
	}

	sliderExact := make(map[int]string, len(r.uploads.Sliders))
	for idx, files := range r.uploads.Sliders {
		if len(files) > 0 {
			sliderExact[idx] = publicPath(files[0])
		}
	}
	var sliderPool []string
	for _, f := range r.uploads.SliderPool {
		sliderPool = append(sliderPool, publicPath(f))
	}
	sliders := ResolveSliders(SliderInput{
		Client:    r.req.Sliders,
		Exact:     sliderExact,
		Pool:      sliderPool,
		StoreName: r.req.Name,
		Defaults:  r.p.defaults,
	})

	logo := ""
	if r.uploads.Logo != nil {
		logo = publicPath(r.uploads.Logo)
	}
	logo = ResolveLogo(logo, r.p.defaults)

	r.res.Products = assigned.Products
	r.res.ImageSources = assigned.Sources
	r.res.Sliders = sliders
	r.res.Logo = logo

	categories := r.req.Categories
	if categories == nil {
		categories = []any{}
	}
	return storefront.Payload{
		StoreID:     r.req.StoreID,
		Slug:        slug,
		Name:        r.req.Name,
		NameEn:      r.req.NameEn,
		Description: r.req.Description,
		Logo:        logo,
		Icon:        r.req.Icon,
		Color:       r.req.Color,
		Category:    r.req.Category,
		Categories:  categories,
		Products:    assigned.Products,
		Sliders:     sliders,
	}
}

func (r *run) generate(ctx context.Context) error {
	payload := r.assign()
	r.payload = payload

	defer storemetrics.TrackStage(StageGenerate)(time.Now())
	// a failed generator may leave partial artifacts behind
	r.push(StateArtifactsWritten, "remove artifacts", func(ctx context.Context) error {
		return r.p.generator.Remove(ctx, r.req.Slug)
	})
	if err := r.p.generator.Generate(ctx, payload); err != nil {
		return newError(KindGeneration, StageGenerate, err, "Failed to generate store files")
	}
	return nil
}

func (r *run) persist(ctx context.Context) error {
	defer storemetrics.TrackStage(StagePersist)(time.Now())

	bundle := BuildBundle(r.req, r.res.Logo, r.res.Sliders, r.p.defaults)
	if err := r.p.repo.Commit(ctx, bundle); err != nil {
		return err
	}
	r.push(StateDBCommitted, "purge rows", func(ctx context.Context) error {
		return r.p.repo.Purge(ctx, bundle)
	})
	r.res.Store = bundle.Store
	r.res.Store.Sliders = bundle.Sliders
	r.res.Store.Ads = bundle.Ads
	r.res.Merchant = bundle.Merchant
	return nil
}

func (r *run) verify(context.Context) error {
	defer storemetrics.TrackStage(StageVerify)(time.Now())

	report := r.p.verifier.Verify(r.req.Slug)
	r.res.Verification = &report
	r.res.Warnings = append(r.res.Warnings, report.Warnings...)
	if !report.Success {
		return newError(KindVerification, StageVerify, nil, "Store verification failed: %v", report.Errors)
	}
	return nil
}

func (r *run) reclaim(ctx context.Context) {
	defer storemetrics.TrackStage(StageReclaim)(time.Now())

	report := r.p.reclaimer.Reclaim(r.req.Slug, r.log)
	r.res.Dedup = &report
	for _, f := range report.Failures {
		storemetrics.RecordCleanupWarning("dedup")
		r.log.Warn("Duplicate reclaim failed", zap.String("detail", f))
	}
	if len(report.Replaced) == 0 {
		return
	}
	for _, f := range r.uploads.All() {
		if _, ok := report.Replaced[f.Path]; ok {
			r.res.Warnings = append(r.res.Warnings, fmt.Sprintf("duplicate upload %q removed", f.OriginalName))
		}
	}

	paths := make(map[string]string, len(report.Replaced))
	for removed, kept := range report.Replaced {
		paths[r.publicPathOf(removed)] = r.publicPathOf(kept)
	}
	r.rewriteImages(ctx, paths)
}

func (r *run) publicPathOf(file string) string {
	kind := assets.Kind(filepath.Base(filepath.Dir(file)))
	return r.p.layout.PublicPath(r.req.Slug, kind, filepath.Base(file))
}

// rewriteImages points everything that referenced a reclaimed file at the
// kept copy: the result, the generated artifacts and the stored rows. The
// store is already live, so failures are warnings.
func (r *run) rewriteImages(ctx context.Context, paths map[string]string) {
	swap := func(p string) string {
		if to, ok := paths[p]; ok {
			return to
		}
		return p
	}

	for i := range r.res.Products {
		p := &r.res.Products[i]
		seen := make(map[string]bool, len(p.Images))
		images := make([]string, 0, len(p.Images))
		for _, img := range p.Images {
			img = swap(img)
			if !seen[img] {
				seen[img] = true
				images = append(images, img)
			}
		}
		p.Images = images
	}
	for i := range r.res.Sliders {
		r.res.Sliders[i].Image = swap(r.res.Sliders[i].Image)
	}
	r.res.Logo = swap(r.res.Logo)

	r.payload.Products = r.res.Products
	r.payload.Sliders = r.res.Sliders
	r.payload.Logo = r.res.Logo
	if err := r.p.generator.Generate(ctx, r.payload); err != nil {
		r.warn("dedup", "store files still reference removed duplicates", err)
	}

	if err := r.p.repo.RewriteImagePaths(ctx, r.res.Store.ID, paths); err != nil {
		r.warn("dedup", "store rows still reference removed duplicates", err)
		return
	}
	r.res.Store.Logo = swap(r.res.Store.Logo)
	r.res.Store.Banner = swap(r.res.Store.Banner)
	for i := range r.res.Store.Sliders {
		r.res.Store.Sliders[i].ImagePath = swap(r.res.Store.Sliders[i].ImagePath)
	}
	for i := range r.res.Store.Ads {
		r.res.Store.Ads[i].ImageURL = swap(r.res.Store.Ads[i].ImageURL)
	}
}

func (r *run) warn(stage, msg string, err error) {
	storemetrics.RecordCleanupWarning(stage)
	r.log.Warn(msg, zap.Error(err))
	r.res.Warnings = append(r.res.Warnings, fmt.Sprintf("%s: %v", msg, err))
}

func (r *run) publish(ctx context.Context) {
	err := r.p.publisher.Publish(ctx, events.StoreEvent{
		Type:          events.TypeStoreProvisioned,
		StoreID:       r.res.Store.ID,
		ExternalID:    r.req.StoreID,
		Slug:          r.req.Slug,
		Name:          r.req.Name,
		MerchantID:    r.res.Merchant.ID,
		MerchantEmail: r.res.Merchant.Email,
		Products:      len(r.res.Products),
		Sliders:       len(r.res.Sliders),
	})
	if err != nil {
		storemetrics.RecordCleanupWarning("publish")
		r.log.Warn("Failed to publish store event", zap.Error(err))
	}
}

func (r *run) push(state State, name string, fn func(context.Context) error) {
	r.undo = append(r.undo, compensation{state: state, name: name, fn: fn})
}

// compensate runs the registered undo actions newest first. They run even
// when the request context is already cancelled.
func (r *run) compensate(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(r.undo) - 1; i >= 0; i-- {
		c := r.undo[i]
		err := c.fn(ctx)
		storemetrics.RecordCompensation(string(c.state), err == nil)
		if err != nil {
			r.log.Error("Compensation failed",
				zap.String("state", string(c.state)),
				zap.String("action", c.name),
				zap.Error(err))
			continue
		}
		r.log.Info("Compensation applied",
			zap.String("state", string(c.state)),
			zap.String("action", c.name))
	}
	r.undo = nil
}

func (r *run) cleanupStaging() {
	if err := r.p.intake.Cleanup(r.uploads); err != nil {
		storemetrics.RecordCleanupWarning("staging")
		r.log.Warn("Failed to clean staging directory", zap.Error(err))
	}
}
