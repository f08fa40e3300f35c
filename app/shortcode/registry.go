package shortcode

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var (
	ErrDuplicate   = errors.New("shortcode already registered")
	ErrInvalidName = errors.New("invalid shortcode name")
)

var (
	nameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	// [name attrs] or the escaped form [[name attrs]].
	tagRegex = regexp.MustCompile(`\[(\[?)([A-Za-z0-9_-]+)((?:\s+[^\]]*)?)\](\]?)`)

	attrRegex = regexp.MustCompile(`([A-Za-z0-9_-]+)\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"']+))`)
)

// Attrs holds directive attributes with lower-cased keys.
type Attrs map[string]string

type Handler func(ctx context.Context, attrs Attrs) (template.HTML, error)

// Registry maps directive names to handlers. Registration happens once at
// startup; Expand may be called concurrently.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(name string, handler Handler) error {
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if handler == nil {
		return fmt.Errorf("nil handler for shortcode %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	r.handlers[name] = handler

	slog.Debug("Shortcode registered", "name", name)
	return nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[name]
	return handler, ok
}

// Expand replaces every registered directive in content with its handler
// output. Unknown directives stay verbatim and [[name]] renders as a
// literal [name]. A failing handler renders as an empty string.
// content is trusted markup.
func (r *Registry) Expand(ctx context.Context, content string) template.HTML {
	expanded := tagRegex.ReplaceAllStringFunc(content, func(tag string) string {
		m := tagRegex.FindStringSubmatch(tag)
		opening, name, rawAttrs, closing := m[1], m[2], m[3], m[4]

		handler, ok := r.lookup(name)
		if !ok {
			return tag
		}

		if opening == "[" && closing == "]" {
			return tag[1 : len(tag)-1]
		}

		out, err := handler(ctx, ParseAttrs(rawAttrs))
		if err != nil {
			slog.Error("Shortcode handler failed", "name", name, "error", err)
			out = ""
		}
		return opening + string(out) + closing
	})

	return template.HTML(expanded)
}

// ParseAttrs reads name="value", name='value' and name=value pairs.
func ParseAttrs(raw string) Attrs {
	attrs := make(Attrs)
	for _, idx := range attrRegex.FindAllStringSubmatchIndex(raw, -1) {
		key := strings.ToLower(raw[idx[2]:idx[3]])

		var value string
		for group := 2; group <= 4; group++ {
			if start := idx[2*group]; start >= 0 {
				value = raw[start:idx[2*group+1]]
				break
			}
		}
		attrs[key] = value
	}
	return attrs
}

// Merge fills defaults with the matching attributes. Keys are compared
// case-insensitively and attributes without a default are dropped.
func Merge(defaults, attrs Attrs) Attrs {
	merged := make(Attrs, len(defaults))
	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range attrs {
		key = strings.ToLower(key)
		if _, known := merged[key]; known {
			merged[key] = value
		}
	}
	return merged
}
