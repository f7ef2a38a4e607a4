package artifact

import (
	"encoding/json"
	"strings"
	"text/template"
	"unicode"
)

var funcs = template.FuncMap{
	// js renders a value as a JSON literal, which is also valid TypeScript.
	"js": func(v any) (string, error) {
		b, err := json.MarshalIndent(v, "", "  ")
		return string(b), err
	},
}

var sourceTemplates = template.Must(template.New("sources").Funcs(funcs).Parse(`
{{define "config.ts"}}export const {{.Ident}}StoreConfig = {
  storeId: {{js .Payload.StoreID}},
  slug: {{js .Payload.Slug}},
  name: {{js .Payload.Name}},
  nameEn: {{js .Payload.NameEn}},
  description: {{js .Payload.Description}},
  icon: {{js .Payload.Icon}},
  logo: {{js .Payload.Logo}},
  color: {{js .Payload.Color}},
  category: {{js .Payload.Category}},
  categories: {{js .Payload.Categories}},
  createdAt: {{js .CreatedAt}},
  status: "active"
};
{{end}}
{{define "products.ts"}}import type { Product } from '../shared/storeProducts';

export const {{.Ident}}Products: Product[] = {{js .Products}};

export const getStoreProducts = (): Product[] => {
  return {{.Ident}}Products;
};
{{end}}
{{define "sliderData.ts"}}export const {{.Ident}}SliderData = {{js .Payload.Sliders}};
{{end}}
{{define "Slider.tsx"}}import React, { useEffect, useState } from 'react';
import { {{.Ident}}SliderData } from './sliderData';

const {{.Component}}Slider: React.FC = () => {
  const slides = {{.Ident}}SliderData;
  const [current, setCurrent] = useState(0);

  useEffect(() => {
    if (slides.length < 2) return;
    const timer = setInterval(() => setCurrent((i) => (i + 1) % slides.length), 5000);
    return () => clearInterval(timer);
  }, [slides.length]);

  const slide = slides[current];
  if (!slide) return null;

  return (
    <section className="relative h-96 overflow-hidden rounded-2xl">
      <img src={slide.image} alt={slide.title} className="absolute inset-0 h-full w-full object-cover" />
      <div className="relative z-10 flex h-full flex-col items-center justify-center bg-black/40 text-center text-white">
        <h2 className="text-4xl font-bold">{slide.title}</h2>
        <p className="mt-2 text-lg">{slide.subtitle}</p>
        <button className="mt-6 rounded-full bg-white px-6 py-2 text-black">{slide.buttonText}</button>
      </div>
    </section>
  );
};

export default {{.Component}}Slider;
{{end}}
{{define "index.ts"}}export { {{.Ident}}StoreConfig as storeConfig } from './config';
export { {{.Ident}}Products as storeProducts, getStoreProducts } from './products';
export { {{.Ident}}SliderData as sliderData } from './sliderData';
export { default as {{.Component}}Slider } from './Slider';
{{end}}
`))

// identifiers turns a slug into a lowerCamel variable prefix and a
// PascalCase component name.
func identifiers(slug string) (ident, component string) {
	var b strings.Builder
	for _, part := range strings.Split(slug, "-") {
		if part == "" {
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	component = b.String()
	if component == "" || unicode.IsDigit([]rune(component)[0]) {
		component = "Store" + component
	}
	r := []rune(component)
	r[0] = unicode.ToLower(r[0])
	return string(r), component
}
