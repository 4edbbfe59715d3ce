// Package mailer renders transactional email with liquid templates and sends
// it through SES.
package mailer

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/osteele/liquid"
)

const dateLayout = "Mon Jan 2, 2006 at 15:04 MST"

// Renderer compiles the built-in templates once and renders them on demand.
type Renderer struct {
	engine *liquid.Engine
	mu     sync.Mutex
	cache  map[string]*liquid.Template
}

func NewRenderer() *Renderer {
	engine := liquid.NewEngine()
	engine.RegisterFilter("money", formatCents)
	engine.RegisterFilter("datetime", formatTime)
	return &Renderer{engine: engine, cache: make(map[string]*liquid.Template)}
}

// Render returns the subject and HTML body of template name.
func (r *Renderer) Render(name string, bindings map[string]any) (subject, html string, err error) {
	tpl, ok := builtin[name]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", name)
	}
	if subject, err = r.render(name+".subject", tpl.subject, bindings); err != nil {
		return "", "", err
	}
	if html, err = r.render(name+".body", tpl.body, bindings); err != nil {
		return "", "", err
	}
	return subject, html, nil
}

func (r *Renderer) render(key, src string, bindings map[string]any) (string, error) {
	r.mu.Lock()
	tpl, ok := r.cache[key]
	if !ok {
		parsed, perr := r.engine.ParseString(src)
		if perr != nil {
			r.mu.Unlock()
			return "", fmt.Errorf("parse %s: %w", key, perr)
		}
		tpl = parsed
		r.cache[key] = tpl
	}
	r.mu.Unlock()

	out, rerr := tpl.RenderString(bindings)
	if rerr != nil {
		return "", fmt.Errorf("render %s: %w", key, rerr)
	}
	return out, nil
}

// formatCents renders an amount of cents as dollars, e.g. 1250 -> $12.50.
func formatCents(value any) string {
	var cents int64
	switch v := value.(type) {
	case int:
		cents = int64(v)
	case int64:
		cents = v
	case float64:
		cents = int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return v
		}
		cents = n
	default:
		return fmt.Sprint(value)
	}
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

func formatTime(value any) string {
	switch v := value.(type) {
	case time.Time:
		return v.Format(dateLayout)
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return v
		}
		return t.Format(dateLayout)
	default:
		return fmt.Sprint(value)
	}
}
