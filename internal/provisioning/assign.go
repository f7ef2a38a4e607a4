package provisioning

import (
	"fmt"
	"strings"

	"github.com/suteetoe/storefront/internal/defaults"
	"github.com/suteetoe/storefront/internal/storefront"
)

// ImageSource records where a product's images came from.
type ImageSource string

const (
	SourceExact    ImageSource = "exact"
	SourcePool     ImageSource = "pool"
	SourceLeftover ImageSource = "leftover"
	SourceBorrowed ImageSource = "borrowed"
	SourceDefault  ImageSource = "default"
)

// AssignInput is everything product image assignment depends on. Image
// values are public paths.
type AssignInput struct {
	Products     []storefront.Product
	Counts       []int
	Exact        map[int][]string
	Pool         []string
	BorrowImages bool
	DefaultImage string
	Defaults     defaults.Defaults
}

// AssignResult holds the resolved products, one source per product, and
// pool images nobody received.
type AssignResult struct {
	Products []storefront.Product
	Sources  []ImageSource
	Unused   []string
}

// demand is the declared image count of product i, at least one.
func demand(counts []int, i int) int {
	if i < len(counts) && counts[i] > 0 {
		return counts[i]
	}
	return 1
}

// AssignProductImages resolves images for every product. Priority per
// product is exact upload, pool slice, pool leftover, borrowed upload (only
// when enabled), default image. Image URLs sent by the client are replaced,
// they are browser previews. It has no side effects.
func AssignProductImages(in AssignInput) AssignResult {
	n := len(in.Products)
	res := AssignResult{
		Products: make([]storefront.Product, n),
		Sources:  make([]ImageSource, n),
	}
	images := make([][]string, n)

	for i := range in.Products {
		if files := in.Exact[i]; len(files) > 0 {
			images[i] = append([]string(nil), files...)
			res.Sources[i] = SourceExact
		}
	}

	cursor := 0
	for i := 0; i < n && cursor < len(in.Pool); i++ {
		if images[i] != nil {
			continue
		}
		end := min(cursor+demand(in.Counts, i), len(in.Pool))
		images[i] = append([]string(nil), in.Pool[cursor:end]...)
		res.Sources[i] = SourcePool
		cursor = end
	}

	if leftover := in.Pool[cursor:]; len(leftover) > 0 {
		var missing []int
		for i := range images {
			if len(images[i]) == 0 {
				missing = append(missing, i)
			}
		}
		if len(missing) == 0 {
			res.Unused = append([]string(nil), leftover...)
		}
		for k, img := range leftover {
			if len(missing) == 0 {
				break
			}
			i := missing[k%len(missing)]
			images[i] = append(images[i], img)
			res.Sources[i] = SourceLeftover
		}
	}

	var union []string
	for _, imgs := range images {
		union = append(union, imgs...)
	}

	borrowed := 0
	for i := range in.Products {
		if len(images[i]) > 0 {
			continue
		}
		if in.BorrowImages && len(union) > 0 {
			images[i] = []string{union[borrowed%len(union)]}
			res.Sources[i] = SourceBorrowed
			borrowed++
			continue
		}
		images[i] = []string{in.DefaultImage}
		res.Sources[i] = SourceDefault
	}

	for i, p := range in.Products {
		res.Products[i] = normalizeProduct(p, i, images[i], in.Defaults)
	}
	return res
}

func normalizeProduct(p storefront.Product, i int, images []string, d defaults.Defaults) storefront.Product {
	p.Images = images
	if p.ID == nil {
		p.ID = i + 1
	}
	if len(p.Colors) == 0 {
		p.Colors = []storefront.Color{d.ProductColor}
	} else {
		p.Colors = append([]storefront.Color(nil), p.Colors...)
	}
	if len(p.Sizes) == 0 {
		p.Sizes = []string{d.ProductSize}
	} else {
		p.Sizes = append([]string(nil), p.Sizes...)
	}
	if len(p.AvailableSizes) == 0 {
		p.AvailableSizes = append([]string(nil), p.Sizes...)
	} else {
		p.AvailableSizes = append([]string(nil), p.AvailableSizes...)
	}
	inStock := true
	if p.InStock != nil {
		inStock = *p.InStock
	}
	p.InStock = &inStock
	p.IsAvailable = inStock
	return p
}

// SliderInput is everything slider resolution depends on.
type SliderInput struct {
	Client    []storefront.Slider
	Exact     map[int]string
	Pool      []string
	StoreName string
	Defaults  defaults.Defaults
}

// ResolveSliders gives every slider exactly one image. Client sliders, or
// the default template when there are none, are grown from the template
// until every uploaded slider image has a slot.
func ResolveSliders(in SliderInput) []storefront.Slider {
	template := in.Defaults.SliderTemplate(in.StoreName)

	base := template
	if len(in.Client) > 0 {
		base = in.Client
	}

	// Every uploaded image needs a slot: exact indexes keep theirs and the
	// pool fills whatever is left.
	count := max(len(base), len(in.Exact)+len(in.Pool))
	for idx := range in.Exact {
		count = max(count, idx+1)
	}
	sliders := make([]storefront.Slider, count)
	for i := range sliders {
		switch {
		case i < len(base):
			sliders[i] = base[i]
		case len(template) > 0:
			sliders[i] = template[i%len(template)]
			sliders[i].ID = fmt.Sprintf("banner%d", i+1)
		}
	}

	cursor := 0
	for i := range sliders {
		s := &sliders[i]
		switch {
		case in.Exact[i] != "":
			s.Image = in.Exact[i]
		case cursor < len(in.Pool):
			s.Image = in.Pool[cursor]
			cursor++
		case strings.TrimSpace(s.Image) != "":
		case i < len(template) && template[i].Image != "":
			s.Image = template[i].Image
		default:
			s.Image = in.Defaults.SliderImage
		}
		if s.ID == "" {
			s.ID = fmt.Sprintf("banner%d", i+1)
		}
	}
	return sliders
}

// ResolveLogo returns the uploaded logo path or the default store icon.
func ResolveLogo(uploaded string, d defaults.Defaults) string {
	if uploaded != "" {
		return uploaded
	}
	return d.StoreLogo
}
