package app

import (
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/fatih/color"

	"github.com/vidfriends/videosync/internal/dashboard"
	"github.com/vidfriends/videosync/internal/models"
)

// changePrinter renders successive dashboard views as a stream of added,
// updated and removed lines.
type changePrinter struct {
	mu    sync.Mutex
	out   io.Writer
	ready bool
	last  map[string]string

	added   *color.Color
	updated *color.Color
	removed *color.Color
	failed  *color.Color
	muted   *color.Color
}

func newChangePrinter(out io.Writer, noColor bool) *changePrinter {
	p := &changePrinter{
		out:     out,
		last:    make(map[string]string),
		added:   color.New(color.FgGreen),
		updated: color.New(color.FgYellow),
		removed: color.New(color.FgRed),
		failed:  color.New(color.FgRed, color.Bold),
		muted:   color.New(color.Faint),
	}
	if noColor {
		for _, c := range []*color.Color{p.added, p.updated, p.removed, p.failed, p.muted} {
			c.DisableColor()
		}
	}
	return p
}

// Update prints the difference between v and the previously printed view.
// Views before the first completed fetch are ignored.
func (p *changePrinter) Update(v dashboard.View) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v.State.LastFetch.IsZero() {
		return
	}

	current := make(map[string]string, len(v.Records))
	for _, rec := range v.Records {
		current[rec.Key] = rec.Digest()
	}

	if !p.ready {
		p.ready = true
		p.muted.Fprintf(p.out, "%d videos\n", len(v.Records))
		for _, rec := range v.Records {
			fmt.Fprintf(p.out, "  %s\n", describe(rec, v.Pending))
		}
		p.last = current
		return
	}

	for _, rec := range v.Records {
		prev, ok := p.last[rec.Key]
		switch {
		case !ok:
			p.added.Fprintf(p.out, "+ %s\n", describe(rec, v.Pending))
		case prev != current[rec.Key]:
			p.updated.Fprintf(p.out, "~ %s\n", describe(rec, v.Pending))
		}
	}
	for key := range p.last {
		if _, ok := current[key]; !ok {
			p.removed.Fprintf(p.out, "- %s\n", key)
		}
	}
	p.last = current
}

// Report prints a synchronizer error report.
func (p *changePrinter) Report(r dashboard.ErrorReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed.Fprintf(p.out, "! %s: %s\n", r.Title, r.Message)
}

// Confirmed prints a confirmed mutation.
func (p *changePrinter) Confirmed(key string, updates models.Fields) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted.Fprintf(p.out, "saved %s %v\n", key, updates.Names())
}

func describe(rec models.Record, pending []string) string {
	title, _ := rec.Fields.Get(models.FieldTitle)
	status, _ := rec.Fields.Get(models.FieldStatus)
	line := fmt.Sprintf("%s %q", rec.Key, fmt.Sprint(orEmpty(title)))
	if status != nil {
		line += fmt.Sprintf(" [%v]", status)
	}
	if slices.Contains(pending, rec.Key) {
		line += " (saving)"
	}
	return line
}

func orEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}
