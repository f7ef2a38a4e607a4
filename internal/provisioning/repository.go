package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suteetoe/storefront/internal/defaults"
	"github.com/suteetoe/storefront/internal/model"
	"github.com/suteetoe/storefront/internal/storefront"
	storemetrics "github.com/suteetoe/storefront/prometheus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrStoreNotFound is returned when no store has the requested slug.
var ErrStoreNotFound = errors.New("store not found")

// Bundle is the set of rows created for one store.
type Bundle struct {
	Merchant model.User
	Store    model.Store
	Sliders  []model.StoreSlider
	Ads      []model.StoreAd
}

// BuildBundle maps a resolved request onto unsaved rows.
func BuildBundle(req *Request, logo string, sliders []storefront.Slider, d defaults.Defaults) *Bundle {
	slug := req.Slug
	banner := ""
	if len(sliders) > 0 {
		banner = sliders[0].Image
	}

	b := &Bundle{
		Merchant: model.User{
			Email:            req.Owner.Email,
			Password:         req.Owner.Password,
			FirstName:        req.Owner.FirstName,
			LastName:         req.Owner.LastName,
			Phone:            req.Owner.Phone,
			Role:             model.RoleMerchant,
			StoreName:        req.Name,
			StoreSlug:        &slug,
			StoreCategory:    req.Category,
			StoreDescription: req.Description,
			StoreLogo:        logo,
		},
		Store: model.Store{
			Name:        req.Name,
			Slug:        req.Slug,
			Category:    req.Category,
			Description: req.Description,
			Logo:        logo,
			Banner:      banner,
			IsActive:    true,
		},
	}
	if req.Owner.SecondaryEmail != "" {
		secondary := req.Owner.SecondaryEmail
		b.Merchant.SecondaryEmail = &secondary
	}

	for i, s := range sliders {
		b.Sliders = append(b.Sliders, model.StoreSlider{
			Title:      s.Title,
			Subtitle:   s.Subtitle,
			ButtonText: s.ButtonText,
			ImagePath:  s.Image,
			SortOrder:  i,
			Metadata:   datatypes.JSONMap{"id": s.ID},
		})
	}

	for i, ad := range d.Ads {
		row := model.StoreAd{
			TemplateID:  ad.TemplateID,
			Title:       defaults.Render(ad.Title, req.Name),
			Description: defaults.Render(ad.Description, req.Name),
			Placement:   ad.Placement,
			SortOrder:   i,
			IsActive:    true,
		}
		if ad.Placement == model.PlacementBanner {
			row.ImageURL = banner
		}
		b.Ads = append(b.Ads, row)
	}
	return b
}

// Repository persists stores and their merchants.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repository on top of a gorm handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CheckAvailability is the read-only early exit before any side effect. The
// unique indexes remain the authority; see Commit.
func (r *Repository) CheckAvailability(ctx context.Context, slug, name string, emails []string) error {
	defer storemetrics.TrackDBOperation("precheck")(time.Now())

	// Session makes db reusable; without it each query adds to the last one.
	db := r.db.WithContext(ctx).Unscoped().Session(&gorm.Session{})

	var store model.Store
	err := db.Where("slug = ? OR name = ?", slug, name).Limit(1).Find(&store).Error
	if err != nil {
		return newError(KindPersistence, StagePrecheck, err, "Failed to check store availability")
	}
	if store.ID != 0 {
		if store.Slug == slug {
			return conflictError("Store slug %q is already taken", slug)
		}
		return conflictError("Store name %q is already taken", name)
	}

	var count int64
	if err := db.Model(&model.User{}).Where("store_slug = ?", slug).Count(&count).Error; err != nil {
		return newError(KindPersistence, StagePrecheck, err, "Failed to check store availability")
	}
	if count > 0 {
		return conflictError("Store slug %q is already taken", slug)
	}

	if len(emails) == 0 {
		return nil
	}
	var user model.User
	err = db.Where("email IN ? OR secondary_email IN ?", emails, emails).Limit(1).Find(&user).Error
	if err != nil {
		return newError(KindPersistence, StagePrecheck, err, "Failed to check owner email")
	}
	if user.ID != 0 {
		taken := user.Email
		if user.SecondaryEmail != nil && contains(emails, *user.SecondaryEmail) {
			taken = *user.SecondaryEmail
		}
		if contains(emails, user.Email) {
			taken = user.Email
		}
		return conflictError("Email %s is already registered", taken)
	}
	return nil
}

// Commit creates merchant, store, sliders and ads in one transaction. A
// unique violation is reported as a conflict naming the colliding field.
func (r *Repository) Commit(ctx context.Context, b *Bundle) error {
	defer storemetrics.TrackDBOperation("commit")(time.Now())

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&b.Merchant).Error; err != nil {
			return fmt.Errorf("create merchant: %w", err)
		}

		b.Store.MerchantID = b.Merchant.ID
		if err := tx.Omit("Sliders", "Ads", "Merchant").Create(&b.Store).Error; err != nil {
			return fmt.Errorf("create store: %w", err)
		}

		for i := range b.Sliders {
			b.Sliders[i].StoreID = b.Store.ID
		}
		if len(b.Sliders) > 0 {
			if err := tx.Create(&b.Sliders).Error; err != nil {
				return fmt.Errorf("create sliders: %w", err)
			}
		}

		for i := range b.Ads {
			b.Ads[i].StoreID = b.Store.ID
		}
		if len(b.Ads) == 0 {
			return fmt.Errorf("create ads: no default ad configured")
		}
		if err := tx.Create(&b.Ads).Error; err != nil {
			return fmt.Errorf("create ads: %w", err)
		}
		return nil
	})
	if err == nil {
		return nil
	}

	b.Merchant.ID = 0
	b.Store.ID = 0
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		emails := []string{b.Merchant.Email}
		if b.Merchant.SecondaryEmail != nil {
			emails = append(emails, *b.Merchant.SecondaryEmail)
		}
		if cerr := r.CheckAvailability(ctx, b.Store.Slug, b.Store.Name, emails); IsKind(cerr, KindConflict) {
			pe, _ := AsError(cerr)
			pe.Stage = StagePersist
			pe.Err = err
			return pe
		}
		return &Error{Kind: KindConflict, Stage: StagePersist, Message: "Store or owner already exists", Err: err}
	}
	return newError(KindPersistence, StagePersist, err, "Failed to save store")
}

// Purge hard-deletes the rows of a committed bundle. Soft deletion would
// keep the unique keys occupied.
func (r *Repository) Purge(ctx context.Context, b *Bundle) error {
	defer storemetrics.TrackDBOperation("purge")(time.Now())

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return purgeRows(tx, b.Store.ID, b.Merchant.ID)
	})
}

func purgeRows(tx *gorm.DB, storeID, merchantID uint) error {
	tx = tx.Unscoped().Session(&gorm.Session{})
	if storeID != 0 {
		if err := tx.Where("store_id = ?", storeID).Delete(&model.StoreSlider{}).Error; err != nil {
			return err
		}
		if err := tx.Where("store_id = ?", storeID).Delete(&model.StoreAd{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.Store{}, storeID).Error; err != nil {
			return err
		}
	}
	if merchantID != 0 {
		if err := tx.Delete(&model.User{}, merchantID).Error; err != nil {
			return err
		}
	}
	return nil
}

// RewriteImagePaths points every stored image path of a store found in
// paths at its replacement.
func (r *Repository) RewriteImagePaths(ctx context.Context, storeID uint, paths map[string]string) error {
	defer storemetrics.TrackDBOperation("rewrite")(time.Now())

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for from, to := range paths {
			updates := []struct {
				model  any
				column string
				where  string
			}{
				{&model.Store{}, "logo", "id = ? AND logo = ?"},
				{&model.Store{}, "banner", "id = ? AND banner = ?"},
				{&model.StoreSlider{}, "image_path", "store_id = ? AND image_path = ?"},
				{&model.StoreAd{}, "image_url", "store_id = ? AND image_url = ?"},
			}
			for _, u := range updates {
				err := tx.Model(u.model).Where(u.where, storeID, from).Update(u.column, to).Error
				if err != nil {
					return fmt.Errorf("rewrite %s: %w", u.column, err)
				}
			}
		}
		return nil
	})
}

// FindBySlug loads an active store with its sliders and ads in display order.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*model.Store, error) {
	defer storemetrics.TrackDBOperation("query")(time.Now())

	var store model.Store
	err := r.db.WithContext(ctx).
		Preload("Sliders", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Preload("Ads", func(db *gorm.DB) *gorm.DB { return db.Where("is_active = ?", true).Order("sort_order ASC") }).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&store).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// List returns one page of stores, newest first, and the total count.
func (r *Repository) List(ctx context.Context, page, limit int) ([]model.Store, int64, error) {
	defer storemetrics.TrackDBOperation("query")(time.Now())

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	db := r.db.WithContext(ctx).Model(&model.Store{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var stores []model.Store
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&stores).Error
	return stores, total, err
}

// DeleteBySlug hard-deletes a store, its sliders, ads and merchant.
func (r *Repository) DeleteBySlug(ctx context.Context, slug string) (*model.Store, error) {
	defer storemetrics.TrackDBOperation("purge")(time.Now())

	var store model.Store
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("slug = ?", slug).First(&store).Error; err != nil {
			return err
		}
		if err := purgeRows(tx, store.ID, 0); err != nil {
			return err
		}
		return tx.Unscoped().
			Where("id = ? AND role = ?", store.MerchantID, model.RoleMerchant).
			Delete(&model.User{}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
