// Package storefront holds the storefront payload types shared by the
// provisioning pipeline and the artifact generators.
package storefront

// Color is a product colour option.
type Color struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value,omitempty" yaml:"value"`
}

// Product is a product draft as submitted by the merchant and, after image
// assignment, as written into the store artifacts.
type Product struct {
	ID             any      `json:"id,omitempty"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Price          float64  `json:"price"`
	OriginalPrice  float64  `json:"originalPrice,omitempty"`
	Images         []string `json:"images"`
	Colors         []Color  `json:"colors"`
	Sizes          []string `json:"sizes"`
	AvailableSizes []string `json:"availableSizes"`
	Rating         float64  `json:"rating,omitempty"`
	Reviews        int      `json:"reviews,omitempty"`
	Category       string   `json:"category,omitempty"`
	InStock        *bool    `json:"inStock,omitempty"`
	IsAvailable    bool     `json:"isAvailable"`
	Tags           []string `json:"tags,omitempty"`
}

// Slider is one hero banner of the storefront.
type Slider struct {
	ID         string `json:"id" yaml:"id"`
	Image      string `json:"image" yaml:"image"`
	Title      string `json:"title" yaml:"title"`
	Subtitle   string `json:"subtitle" yaml:"subtitle"`
	ButtonText string `json:"buttonText" yaml:"button_text"`
}

// Payload is the fully resolved input of artifact generation.
type Payload struct {
	StoreID     int64     `json:"storeId"`
	Slug        string    `json:"storeSlug"`
	Name        string    `json:"storeName"`
	NameEn      string    `json:"storeNameEn"`
	Description string    `json:"description"`
	Logo        string    `json:"logo"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	Category    string    `json:"category"`
	Categories  []any     `json:"categories"`
	Products    []Product `json:"products"`
	Sliders     []Slider  `json:"sliderImages"`
}
