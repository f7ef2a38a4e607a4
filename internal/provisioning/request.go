package provisioning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"

	"github.com/suteetoe/storefront/internal/defaults"
	"github.com/suteetoe/storefront/internal/storefront"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// slugs that collide with shared folders under the assets root
var reservedSlugs = map[string]bool{"stores": true}

const maxSlugLength = 100

// ValidSlug reports whether slug can name a store.
func ValidSlug(slug string) bool {
	return len(slug) <= maxSlugLength && slugPattern.MatchString(slug) && !reservedSlugs[slug]
}

// Owner holds the credentials of the merchant account created with a store.
type Owner struct {
	Email          string
	SecondaryEmail string
	FirstName      string
	LastName       string
	Phone          string
	Password       string
}

// Request is one parsed provisioning request. It is not modified after
// ParseRequest returns.
type Request struct {
	StoreID     int64
	Slug        string
	Name        string
	NameEn      string
	Description string
	Icon        string
	Color       string
	Categories  []any
	Category    string
	Owner       Owner
	Products    []storefront.Product
	Sliders     []storefront.Slider
	ImageCounts []int
}

// Emails returns the owner emails that must not already be registered.
func (r *Request) Emails() []string {
	if r.Owner.SecondaryEmail == "" {
		return []string{r.Owner.Email}
	}
	return []string{r.Owner.Email, r.Owner.SecondaryEmail}
}

// ParseRequest validates the scalar and JSON-encoded fields of a multipart
// form. JSON array fields are decoded strictly: a malformed value is a
// validation error, never an empty list.
func ParseRequest(values map[string][]string, d defaults.Defaults) (*Request, error) {
	get := func(key string) string {
		if v := values[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}
	first := func(keys ...string) string {
		for _, k := range keys {
			if v := get(k); v != "" {
				return v
			}
		}
		return ""
	}

	req := &Request{
		Slug:        get("storeSlug"),
		Name:        get("storeName"),
		NameEn:      get("storeNameEn"),
		Description: get("description"),
		Icon:        get("icon"),
		Color:       get("color"),
	}

	rawID := get("storeId")
	if rawID == "" || req.Slug == "" || req.Name == "" {
		return nil, validationError("Missing required fields: storeId, storeSlug and storeName are required")
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return nil, validationError("storeId must be a positive integer")
	}
	req.StoreID = id

	if len(req.Slug) > maxSlugLength || !slugPattern.MatchString(req.Slug) {
		return nil, validationError("storeSlug %q must be lowercase letters, digits and single hyphens", req.Slug)
	}
	if reservedSlugs[req.Slug] {
		return nil, validationError("storeSlug %q is reserved", req.Slug)
	}
	if req.NameEn == "" {
		req.NameEn = req.Name
	}
	if req.Icon == "" {
		req.Icon = d.Icon
	}
	if req.Color == "" {
		req.Color = d.Color
	}

	owner, err := parseOwner(first, req.Name, d)
	if err != nil {
		return nil, err
	}
	req.Owner = owner

	if err := decodeArray(get("categories"), "categories", &req.Categories); err != nil {
		return nil, err
	}
	req.Category = categoryLabel(req.Categories, d.Category)

	if err := decodeArray(get("products"), "products", &req.Products); err != nil {
		return nil, err
	}
	for i, p := range req.Products {
		if strings.TrimSpace(p.Name) == "" {
			return nil, validationError("products[%d]: name is required", i)
		}
		if p.Price < 0 || p.OriginalPrice < 0 {
			return nil, validationError("products[%d]: price must not be negative", i)
		}
	}

	if err := decodeArray(get("sliderImages"), "sliderImages", &req.Sliders); err != nil {
		return nil, err
	}

	var counts []*int
	if err := decodeArray(get("productsImageCounts"), "productsImageCounts", &counts); err != nil {
		return nil, err
	}
	req.ImageCounts = make([]int, len(counts))
	for i, c := range counts {
		if c != nil {
			req.ImageCounts[i] = *c
		}
	}

	return req, nil
}

func parseOwner(first func(keys ...string) string, storeName string, d defaults.Defaults) (Owner, error) {
	owner := Owner{
		Email:          strings.ToLower(first("ownerEmail", "email")),
		SecondaryEmail: strings.ToLower(first("ownerSecondEmail")),
		Phone:          first("ownerPhone", "phone"),
		Password:       first("ownerPassword", "password"),
	}
	if owner.Email == "" || owner.Password == "" {
		return owner, validationError("Owner email and password are required")
	}
	if !validEmail(owner.Email) {
		return owner, validationError("owner email %q is not a valid address", owner.Email)
	}
	if owner.SecondaryEmail == owner.Email {
		owner.SecondaryEmail = ""
	}
	if owner.SecondaryEmail != "" && !validEmail(owner.SecondaryEmail) {
		return owner, validationError("secondary owner email %q is not a valid address", owner.SecondaryEmail)
	}
	if owner.Phone == "" {
		owner.Phone = d.OwnerPhone
	}

	fullName := first("ownerName")
	if fullName == "" {
		fullName = storeName
	}
	parts := strings.Fields(fullName)
	owner.FirstName = d.OwnerFirstName
	if len(parts) > 0 {
		owner.FirstName = parts[0]
	}
	owner.LastName = owner.FirstName
	if len(parts) > 1 {
		owner.LastName = strings.Join(parts[1:], " ")
	}
	return owner, nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// decodeArray decodes a JSON array carried as a form string. An absent or
// blank field leaves dst untouched.
func decodeArray(raw, field string, dst any) error {
	if raw == "" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(dst); err != nil {
		return validationError("Invalid JSON format for %s: %v", field, err)
	}
	if dec.More() {
		return validationError("Invalid JSON format for %s: trailing data", field)
	}
	return nil
}

func categoryLabel(categories []any, fallback string) string {
	if len(categories) == 0 || categories[0] == nil {
		return fallback
	}
	switch v := categories[0].(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]any:
		for _, key := range []string{"name", "label", "id"} {
			if s, ok := v[key]; ok && s != nil && fmt.Sprint(s) != "" {
				return fmt.Sprint(s)
			}
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return fallback
}
