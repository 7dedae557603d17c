package react

import (
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dop251/goja"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// attributeNames maps JSX prop names that differ from their HTML attribute.
var attributeNames = map[string]string{
	"className":       "class",
	"htmlFor":         "for",
	"tabIndex":        "tabindex",
	"readOnly":        "readonly",
	"maxLength":       "maxlength",
	"minLength":       "minlength",
	"colSpan":         "colspan",
	"rowSpan":         "rowspan",
	"autoComplete":    "autocomplete",
	"autoFocus":       "autofocus",
	"crossOrigin":     "crossorigin",
	"acceptCharset":   "accept-charset",
	"httpEquiv":       "http-equiv",
	"spellCheck":      "spellcheck",
	"contentEditable": "contenteditable",
	"srcSet":          "srcset",
	"viewBox":         "viewBox",
	"strokeWidth":     "stroke-width",
	"strokeLinecap":   "stroke-linecap",
	"strokeLinejoin":  "stroke-linejoin",
	"fillRule":        "fill-rule",
	"clipRule":        "clip-rule",
}

// booleanAttributes render as a bare name when true and are omitted when false.
var booleanAttributes = map[string]bool{
	"disabled": true, "checked": true, "selected": true, "readonly": true,
	"required": true, "multiple": true, "hidden": true, "autofocus": true,
	"open": true, "controls": true, "loop": true, "muted": true, "autoplay": true,
	"novalidate": true, "async": true, "defer": true, "reversed": true,
}

// unitlessStyles are numeric CSS properties that take no px suffix.
var unitlessStyles = map[string]bool{
	"opacity": true, "zIndex": true, "fontWeight": true, "lineHeight": true,
	"flex": true, "flexGrow": true, "flexShrink": true, "order": true,
	"zoom": true, "gridRow": true, "gridColumn": true, "columnCount": true,
	"fillOpacity": true, "strokeOpacity": true, "tabSize": true, "orphans": true,
	"widows": true, "animationIterationCount": true, "aspectRatio": true,
}

func (r *Root) renderHost(b *strings.Builder, tag string, props *goja.Object, path string) error {
	if tag == "" {
		return errors.New("Element type is invalid: empty tag name")
	}

	b.WriteByte('<')
	b.WriteString(tag)

	var inner string
	hasInner := false
	for _, name := range props.Keys() {
		v := props.Get(name)
		switch {
		case name == "children" || name == "key" || name == "ref":
			continue
		case name == "dangerouslySetInnerHTML":
			if obj, ok := v.(*goja.Object); ok {
				if h := obj.Get("__html"); present(h) {
					inner, hasInner = h.String(), true
				}
			}
			continue
		case name == "style":
			if css := styleString(v); css != "" {
				writeAttr(b, "style", css)
			}
			continue
		case isEventHandler(name):
			continue
		}
		if (name == "value" || name == "defaultValue") && tag == "textarea" {
			continue
		}
		if name == "defaultValue" {
			name = "value"
		}
		if name == "defaultChecked" {
			name = "checked"
		}
		r.writeProp(b, name, v)
	}

	if voidElements[tag] {
		b.WriteString("/>")
		return nil
	}
	b.WriteByte('>')

	switch {
	case hasInner:
		b.WriteString(inner)
	case tag == "textarea":
		for _, name := range []string{"value", "defaultValue", "children"} {
			if v := props.Get(name); present(v) {
				b.WriteString(escapeText(v.String()))
				break
			}
		}
	default:
		if err := r.renderNode(b, props.Get("children"), path+"/0"); err != nil {
			return err
		}
	}

	b.WriteString("</")
	b.WriteString(tag)
	b.WriteByte('>')
	return nil
}

func (r *Root) writeProp(b *strings.Builder, name string, v goja.Value) {
	if !present(v) {
		return
	}
	if _, isFn := goja.AssertFunction(v); isFn {
		return
	}

	attr := name
	if mapped, ok := attributeNames[name]; ok {
		attr = mapped
	}

	if flag, ok := v.Export().(bool); ok {
		switch {
		case booleanAttributes[strings.ToLower(attr)]:
			if flag {
				b.WriteByte(' ')
				b.WriteString(strings.ToLower(attr))
				b.WriteString(`=""`)
			}
		case strings.HasPrefix(attr, "aria-") || strings.HasPrefix(attr, "data-"):
			writeAttr(b, attr, strconv.FormatBool(flag))
		}
		return
	}
	if booleanAttributes[strings.ToLower(attr)] {
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(attr))
		b.WriteString(`=""`)
		return
	}
	writeAttr(b, attr, v.String())
}

func writeAttr(b *strings.Builder, name, value string) {
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteString(`="`)
	b.WriteString(html.EscapeString(value))
	b.WriteByte('"')
}

// styleString serialises a style object: {fontSize: 12} -> "font-size:12px".
func styleString(v goja.Value) string {
	obj, ok := v.(*goja.Object)
	if !ok {
		if present(v) {
			return v.String()
		}
		return ""
	}

	parts := make([]string, 0, len(obj.Keys()))
	for _, key := range obj.Keys() {
		val := obj.Get(key)
		if !present(val) {
			continue
		}
		if flag, ok := val.Export().(bool); ok && !flag {
			continue
		}

		text := val.String()
		switch n := val.Export().(type) {
		case int64:
			if n != 0 && !unitlessStyles[key] {
				text += "px"
			}
		case float64:
			if n != 0 && !math.IsNaN(n) && !unitlessStyles[key] {
				text += "px"
			}
		}
		parts = append(parts, cssProperty(key)+":"+text)
	}
	return strings.Join(parts, ";")
}

// cssProperty converts camelCase to kebab-case, keeping custom properties.
// A leading capital marks a vendor prefix: WebkitTransition becomes
// -webkit-transition.
func cssProperty(key string) string {
	if strings.HasPrefix(key, "--") {
		return key
	}
	var b strings.Builder
	for _, c := range key {
		if c >= 'A' && c <= 'Z' {
			b.WriteByte('-')
			b.WriteRune(c - 'A' + 'a')
			continue
		}
		b.WriteRune(c)
	}
	out := b.String()
	if strings.HasPrefix(out, "ms-") {
		out = "-" + out
	}
	return out
}

func isEventHandler(name string) bool {
	return len(name) > 2 && strings.HasPrefix(name, "on") && name[2] >= 'A' && name[2] <= 'Z'
}

func escapeText(s string) string {
	return html.EscapeString(s)
}
