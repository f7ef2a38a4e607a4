// Package defaults holds the storefront fallbacks used when a merchant leaves
// something out: slider template, welcome ads, product colour and size, logo.
package defaults

import (
	"fmt"
	"os"
	"strings"

	"github.com/suteetoe/storefront/internal/storefront"
	"gopkg.in/yaml.v3"
)

// StorePlaceholder is replaced by the store name in template texts.
const StorePlaceholder = "{{store}}"

// Ad is a template for an ad created with every new store.
type Ad struct {
	TemplateID  string `yaml:"template_id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Placement   string `yaml:"placement"`
}

// Defaults is the full set of storefront fallbacks.
type Defaults struct {
	ProductColor   storefront.Color    `yaml:"product_color"`
	ProductSize    string              `yaml:"product_size"`
	SliderImage    string              `yaml:"slider_image"`
	StoreLogo      string              `yaml:"store_logo"`
	Icon           string              `yaml:"icon"`
	Color          string              `yaml:"color"`
	Category       string              `yaml:"category"`
	OwnerFirstName string              `yaml:"owner_first_name"`
	OwnerPhone     string              `yaml:"owner_phone"`
	Sliders        []storefront.Slider `yaml:"sliders"`
	Ads            []Ad                `yaml:"ads"`
}

// Builtin returns the defaults compiled into the service.
func Builtin() Defaults {
	return Defaults{
		ProductColor:   storefront.Color{Name: "black", Value: "#000000"},
		ProductSize:    "one-size",
		SliderImage:    "/assets/default-slider.png",
		StoreLogo:      "/assets/default-store.png",
		Icon:           "✨",
		Color:          "from-purple-400 to-pink-600",
		Category:       "general",
		OwnerFirstName: "Owner",
		OwnerPhone:     "000000000",
		Sliders: []storefront.Slider{
			{
				ID:         "banner1",
				Image:      "/assets/default-slider.png",
				Title:      "Discover the exclusive collection of " + StorePlaceholder,
				Subtitle:   "High quality at competitive prices",
				ButtonText: "Shop now",
			},
			{
				ID:         "banner2",
				Image:      "/assets/default-slider.png",
				Title:      "Exclusive offers from " + StorePlaceholder,
				Subtitle:   "Don't miss out",
				ButtonText: "Shop now",
			},
		},
		Ads: []Ad{
			{
				TemplateID:  "banner_default",
				Title:       "Welcome to " + StorePlaceholder,
				Description: "Enjoy the best offers and exclusive products",
				Placement:   "banner",
			},
		},
	}
}

// Load reads a YAML file and overlays it on the builtin defaults. An empty
// path returns the builtin defaults.
func Load(path string) (Defaults, error) {
	d := Builtin()
	if path == "" {
		return d, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("read defaults file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("parse defaults file %s: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return d, fmt.Errorf("defaults file %s: %w", path, err)
	}
	return d, nil
}

// Validate checks that the invariants the pipeline relies on hold.
func (d Defaults) Validate() error {
	if len(d.Sliders) == 0 {
		return fmt.Errorf("at least one slider template is required")
	}
	if len(d.Ads) == 0 {
		return fmt.Errorf("at least one default ad is required")
	}
	for i, ad := range d.Ads {
		if ad.Placement != "banner" && ad.Placement != "between_products" {
			return fmt.Errorf("ad %d: unknown placement %q", i, ad.Placement)
		}
	}
	if d.ProductSize == "" || d.ProductColor.Name == "" {
		return fmt.Errorf("product size and colour fallbacks are required")
	}
	return nil
}

// Render substitutes the store name into a template text.
func Render(text, storeName string) string {
	return strings.ReplaceAll(text, StorePlaceholder, storeName)
}

// SliderTemplate returns the slider template rendered for a store.
func (d Defaults) SliderTemplate(storeName string) []storefront.Slider {
	out := make([]storefront.Slider, len(d.Sliders))
	for i, s := range d.Sliders {
		s.Title = Render(s.Title, storeName)
		s.Subtitle = Render(s.Subtitle, storeName)
		if s.Image == "" {
			s.Image = d.SliderImage
		}
		out[i] = s
	}
	return out
}
