package provisioning

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/storefront/internal/artifact"
	"github.com/suteetoe/storefront/internal/assets"
	"github.com/suteetoe/storefront/internal/defaults"
	"github.com/suteetoe/storefront/internal/events"
	"github.com/suteetoe/storefront/internal/model"
	"github.com/suteetoe/storefront/internal/storefront"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.StoreEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.StoreEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() {}

// hookGenerator runs after on top of the file generator.
type hookGenerator struct {
	*artifact.FileGenerator
	before func(slug string) error
	after  func(slug string)
}

func (g *hookGenerator) Generate(ctx context.Context, p storefront.Payload) error {
	if g.before != nil {
		if err := g.before(p.Slug); err != nil {
			return err
		}
	}
	if err := g.FileGenerator.Generate(ctx, p); err != nil {
		return err
	}
	if g.after != nil {
		g.after(p.Slug)
	}
	return nil
}

type fixture struct {
	pipeline  *Pipeline
	db        *gorm.DB
	layout    assets.Layout
	generator *hookGenerator
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	layout := testLayout(t)
	db := openTestDB(t)
	gen := &hookGenerator{FileGenerator: artifact.NewFileGenerator(layout)}
	pub := &recordingPublisher{}

	p := NewPipeline(Dependencies{
		Layout:     layout,
		Repository: NewRepository(db),
		Intake:     NewIntake(layout, 1<<20, 100),
		Generator:  gen,
		Verifier:   NewVerifier(layout),
		Reclaimer:  NewReclaimer(layout, 1000, 1<<20),
		Publisher:  pub,
		Defaults:   defaults.Builtin(),
	})
	return &fixture{pipeline: p, db: db, layout: layout, generator: gen, publisher: pub}
}

func (f *fixture) count(t *testing.T, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(m).Count(&n).Error)
	return n
}

func (f *fixture) provision(t *testing.T, fields map[string]string, files []testFile) (*Result, error) {
	t.Helper()
	form := buildForm(t, fields, files)
	req, err := ParseRequest(form.Value, f.pipeline.Defaults())
	require.NoError(t, err)
	return f.pipeline.Provision(context.Background(), req, form.File)
}

func fullFields() map[string]string {
	fields := baseFields()
	fields["products"] = `[{"name":"Shirt","price":10},{"name":"Hat","price":5}]`
	fields["productsImageCounts"] = `[1,1]`
	return fields
}

func fullFiles() []testFile {
	return []testFile{
		{"productImage_aggregated", "p1.png", "product-one"},
		{"productImage_aggregated", "p2.png", "product-two"},
		{"sliderImage_0", "s1.png", "slider-one"},
		{"sliderImage_1", "s2.png", "slider-two"},
		{"storeLogo", "logo.png", "logo"},
	}
}

func TestProvisionEndToEnd(t *testing.T) {
	f := newFixture(t)

	res, err := f.provision(t, fullFields(), fullFiles())
	require.NoError(t, err)
	assert.Equal(t, StateVerified, res.State)

	require.Len(t, res.Products, 2)
	require.Len(t, res.Products[0].Images, 1)
	require.Len(t, res.Products[1].Images, 1)
	assert.NotEqual(t, res.Products[0].Images[0], res.Products[1].Images[0])
	assert.Contains(t, res.Products[0].Images[0], "/assets/delta-shop/products/")

	require.Len(t, res.Sliders, 2)
	assert.Contains(t, res.Logo, "/assets/delta-shop/logo/")
	assert.Equal(t, res.Sliders[0].Image, res.Store.Banner)

	assert.Equal(t, int64(1), f.count(t, &model.Store{}))
	var stores []model.Store
	require.NoError(t, f.db.Where("slug = ?", "delta-shop").Find(&stores).Error)
	require.Len(t, stores, 1)

	var sliders []model.StoreSlider
	require.NoError(t, f.db.Order("sort_order").Find(&sliders).Error)
	require.Len(t, sliders, 2)
	assert.Equal(t, 0, sliders[0].SortOrder)
	assert.Equal(t, 1, sliders[1].SortOrder)
	assert.GreaterOrEqual(t, f.count(t, &model.StoreAd{}), int64(1))

	var merchant model.User
	require.NoError(t, f.db.First(&merchant, "email = ?", "owner@example.com").Error)
	assert.True(t, merchant.CheckPassword("s3cret"))
	require.NotNil(t, merchant.StoreSlug)
	assert.Equal(t, "delta-shop", *merchant.StoreSlug)

	require.NotNil(t, res.Verification)
	assert.True(t, res.Verification.Checks.StoreJSONExists)
	assert.True(t, res.Verification.Checks.TSFilesExist)
	assert.Equal(t, 2, res.Verification.Checks.FileCount)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.TypeStoreProvisioned, f.publisher.events[0].Type)

	entries, _ := os.ReadDir(f.layout.TempDir)
	assert.Empty(t, entries, "staging must be cleaned")
}

func TestProvisionWithoutUploadsUsesDefaults(t *testing.T) {
	f := newFixture(t)
	fields := fullFields()
	fields["products"] = `[{"name":"A"},{"name":"B"},{"name":"C"}]`
	delete(fields, "productsImageCounts")

	res, err := f.provision(t, fields, nil)
	require.NoError(t, err)

	for _, p := range res.Products {
		assert.Equal(t, []string{"/assets/default-product.png"}, p.Images)
	}
	assert.Len(t, res.Sliders, 2)
	assert.Equal(t, defaults.Builtin().StoreLogo, res.Logo)
	assert.Equal(t, 0, res.Verification.Checks.FileCount)
	assert.False(t, res.Verification.Checks.ImagesFolderExists)
}

func TestProvisionConflictHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Create(&model.User{
		Email: "owner@example.com", Password: "x", FirstName: "A", LastName: "B", Phone: "1",
	}).Error)

	res, err := f.provision(t, fullFields(), fullFiles())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConflict), "got %v", err)
	assert.Equal(t, StateReceived, res.State)

	assert.NoDirExists(t, f.layout.StoreDir("delta-shop"))
	assert.Equal(t, int64(0), f.count(t, &model.Store{}))
}

func TestProvisionRejectsExistingManifest(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.layout.StoreDir("delta-shop"), 0o755))
	require.NoError(t, os.WriteFile(f.layout.ManifestPath("delta-shop"), []byte("{}"), 0o644))

	_, err := f.provision(t, fullFields(), nil)
	assert.True(t, IsKind(err, KindConflict), "got %v", err)
}

func TestProvisionSameSlugTwice(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		fields := fullFields()
		fields["ownerEmail"] = fmt.Sprintf("owner%d@example.com", i)
		fields["storeName"] = fmt.Sprintf("Delta %d", i)
		form := buildForm(t, fields, fullFiles())
		req, err := ParseRequest(form.Value, f.pipeline.Defaults())
		require.NoError(t, err)

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.pipeline.Provision(context.Background(), req, form.File)
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.True(t, IsKind(err, KindConflict), "got %v", err)
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, int64(1), f.count(t, &model.Store{}))
	assert.True(t, f.pipeline.verifier.Verify("delta-shop").Success, "winner's artifacts must survive")
}

func TestProvisionCommitRaceIsConflict(t *testing.T) {
	f := newFixture(t)
	// another instance wins the slug between precheck and commit
	f.generator.before = func(slug string) error {
		owner := model.User{Email: "rival@example.com", Password: "x", FirstName: "R", LastName: "R", Phone: "1"}
		if err := f.db.Create(&owner).Error; err != nil {
			return err
		}
		return f.db.Create(&model.Store{MerchantID: owner.ID, Name: "Rival", Slug: slug, Category: "general"}).Error
	}

	res, err := f.provision(t, fullFields(), fullFiles())
	require.Error(t, err)
	pe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindConflict, pe.Kind)
	assert.Equal(t, StagePersist, pe.Stage)
	assert.Equal(t, StateArtifactsWritten, res.State)

	assert.NoFileExists(t, f.layout.ManifestPath("delta-shop"))
	assert.NoDirExists(t, f.layout.KindDir("delta-shop", assets.Products))
	assert.Equal(t, int64(1), f.count(t, &model.User{}), "only the rival merchant remains")
}

func TestProvisionVerificationFailureCompensates(t *testing.T) {
	f := newFixture(t)
	f.generator.after = func(slug string) {
		os.Remove(f.layout.ManifestPath(slug))
	}

	res, err := f.provision(t, fullFields(), fullFiles())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindVerification), "got %v", err)
	assert.Equal(t, StateDBCommitted, res.State)
	require.NotNil(t, res.Verification)
	assert.False(t, res.Verification.Checks.StoreJSONExists)
	assert.False(t, res.Verification.Success)

	assert.Equal(t, int64(0), f.count(t, &model.Store{}))
	assert.Equal(t, int64(0), f.count(t, &model.User{}))
	assert.Equal(t, int64(0), f.count(t, &model.StoreSlider{}))
	assert.NoDirExists(t, f.layout.StoreDir("delta-shop"))
	assert.NoDirExists(t, f.layout.SourceDir("delta-shop"))
	assert.Empty(t, f.publisher.events)

	// the slug is free again
	f.generator.after = nil
	_, err = f.provision(t, fullFields(), fullFiles())
	assert.NoError(t, err)
}

func TestProvisionGenerationFailureCompensates(t *testing.T) {
	f := newFixture(t)
	f.generator.before = func(string) error { return errors.New("disk full") }

	_, err := f.provision(t, fullFields(), fullFiles())
	require.Error(t, err)
	pe, _ := AsError(err)
	assert.Equal(t, KindGeneration, pe.Kind)
	assert.Equal(t, 500, pe.HTTPStatus())

	assert.NoDirExists(t, f.layout.StoreDir("delta-shop"))
	assert.Equal(t, int64(0), f.count(t, &model.User{}))
}

func TestProvisionRemovesDuplicateUploads(t *testing.T) {
	f := newFixture(t)
	files := []testFile{
		{"productImage_0", "a.png", "same-bytes"},
		{"productImage_1", "b.png", "same-bytes"},
		{"sliderImage_0", "s1.png", "same-slider"},
		{"sliderImage_1", "s2.png", "same-slider"},
	}

	res, err := f.provision(t, fullFields(), files)
	require.NoError(t, err)
	require.NotNil(t, res.Dedup)
	assert.Len(t, res.Dedup.Removed, 2)
	assert.NotEmpty(t, res.Warnings)

	entries, err := os.ReadDir(f.layout.KindDir("delta-shop", assets.Products))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// every reference follows the kept copy
	kept := res.Products[0].Images
	require.Len(t, kept, 1)
	assert.Equal(t, kept, res.Products[1].Images)
	assert.FileExists(t, filepath.Join(f.layout.KindDir("delta-shop", assets.Products), path.Base(kept[0])))
	require.Len(t, res.Sliders, 2)
	assert.Equal(t, res.Sliders[0].Image, res.Sliders[1].Image)
	assert.FileExists(t, filepath.Join(f.layout.KindDir("delta-shop", assets.Sliders), path.Base(res.Sliders[0].Image)))

	manifest, err := artifact.ReadManifest(f.layout, "delta-shop")
	require.NoError(t, err)
	assert.Equal(t, kept, manifest.Products[0].Images)
	assert.Equal(t, kept, manifest.Products[1].Images)
	assert.Equal(t, res.Sliders[0].Image, manifest.Sliders[1].Image)

	var sliders []model.StoreSlider
	require.NoError(t, f.db.Order("sort_order").Find(&sliders).Error)
	require.Len(t, sliders, 2)
	assert.Equal(t, res.Sliders[0].Image, sliders[0].ImagePath)
	assert.Equal(t, res.Sliders[0].Image, sliders[1].ImagePath)

	var store model.Store
	require.NoError(t, f.db.First(&store).Error)
	assert.Equal(t, res.Sliders[0].Image, store.Banner)
}

func TestVerifierReport(t *testing.T) {
	layout := testLayout(t)
	v := NewVerifier(layout)

	report := v.Verify("ghost")
	assert.False(t, report.Success)
	assert.Contains(t, report.Errors, "store.json file not found")
	assert.Len(t, report.Warnings, 2)

	require.NoError(t, os.MkdirAll(layout.KindDir("ghost", assets.Products), 0o755))
	require.NoError(t, os.WriteFile(layout.ManifestPath("ghost"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(layout.KindDir("ghost", assets.Products), "a.png"), []byte("a"), 0o644))

	report = v.Verify("ghost")
	assert.True(t, report.Success)
	assert.True(t, report.Checks.ImagesFolderExists)
	assert.Equal(t, 1, report.Checks.FileCount)
	assert.False(t, report.Checks.TSFilesExist)
}
