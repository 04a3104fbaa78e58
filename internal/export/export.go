// Package export drives downloads of rendered query exports.
package export

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/i474232898/weather-lookup/internal/apiclient"
)

// MsgFailed is shown for any failed export; the user may simply retry.
const MsgFailed = "Export failed. Please try again."

var (
	ErrUnknownFormat = errors.New("unknown export format")
	ErrBusy          = errors.New("export already in progress")
)

// Format is an export format name understood by the backend.
type Format string

const (
	JSON     Format = "json"
	CSV      Format = "csv"
	XML      Format = "xml"
	PDF      Format = "pdf"
	Markdown Format = "markdown"
)

// Formats lists every supported format in display order.
var Formats = []Format{JSON, CSV, XML, PDF, Markdown}

var formatInfo = map[Format]struct {
	label, ext, mime string
}{
	JSON:     {"JSON", "json", "application/json"},
	CSV:      {"CSV", "csv", "text/csv"},
	XML:      {"XML", "xml", "application/xml"},
	PDF:      {"PDF", "pdf", "application/pdf"},
	Markdown: {"Markdown", "md", "text/markdown"},
}

// ParseFormat accepts a format name case-insensitively. "md" is accepted
// for markdown.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "md" {
		f = Markdown
	}
	if _, ok := formatInfo[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
	return f, nil
}

func (f Format) Label() string       { return formatInfo[f].label }
func (f Format) Extension() string   { return formatInfo[f].ext }
func (f Format) ContentType() string { return formatInfo[f].mime }

// Filename is the name the download is saved under.
func (f Format) Filename() string {
	return "weather_queries." + f.Extension()
}

// Exporter is the slice of the API client used here.
type Exporter interface {
	Export(ctx context.Context, format string) (apiclient.Blob, error)
}

// Download is a finished export ready to hand to the user.
type Download struct {
	Format      Format
	Filename    string
	ContentType string
	Data        []byte
}

// State is what the export buttons render.
type State struct {
	Busy  Format
	Error string
}

// Control runs at most one export at a time. Its failures never touch
// other UI state.
type Control struct {
	exporter Exporter

	mu   sync.Mutex
	busy Format
	err  string
}

// NewControl creates a Control.
func NewControl(exporter Exporter) *Control {
	return &Control{exporter: exporter}
}

// State returns the current state.
func (c *Control) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Busy: c.busy, Error: c.err}
}

// Run requests an export. It returns ErrBusy while another is in flight.
func (c *Control) Run(ctx context.Context, f Format) (Download, error) {
	if _, ok := formatInfo[f]; !ok {
		return Download{}, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}

	c.mu.Lock()
	if c.busy != "" {
		c.mu.Unlock()
		return Download{}, ErrBusy
	}
	c.busy = f
	c.err = ""
	c.mu.Unlock()

	blob, err := c.exporter.Export(ctx, string(f))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = ""
	if err != nil {
		log.Printf("ERROR: export %s: %v", f, err)
		c.err = MsgFailed
		return Download{}, fmt.Errorf("export %s: %w", f, err)
	}

	ct := blob.ContentType
	if ct == "" {
		ct = f.ContentType()
	}
	return Download{
		Format:      f,
		Filename:    f.Filename(),
		ContentType: ct,
		Data:        blob.Data,
	}, nil
}

// Save writes d into dir and returns the file path.
func Save(dir string, d Download) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, d.Filename)
	if err := os.WriteFile(path, d.Data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
