package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrRenderTimeout reports that the external renderer overran its time box
// and was killed.
var ErrRenderTimeout = errors.New("ticket rendering timed out")

// TicketCounters is the generation-outcome sink; *metrics.Metrics satisfies
// it.
type TicketCounters interface {
	IncTicketGeneration(result string)
}

// Renderer turns a filled ticket SVG into a compressed PDF by shelling out
// to rsvg-convert and ghostscript. Both are opaque collaborators: the
// scanner only cares that they finish within the time box or get killed.
type Renderer struct {
	Timeout time.Duration
	Metrics TicketCounters

	// Overridable for tests
	svgCmd []string
	gsCmd  []string
}

const defaultTimeout = 5 * time.Second

var (
	defaultSVGCmd = []string{
		"rsvg-convert",
		"--dpi-x=72",
		"--dpi-y=72",
		"--format=pdf",
	}
	defaultGSCmd = []string{
		"gs",
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=/ebook",
		"-dNOPAUSE", "-dQUIET", "-dBATCH",
		"-sOutputFile=-",
		"-",
	}
)

func NewRenderer(counters TicketCounters) *Renderer {
	return &Renderer{Timeout: defaultTimeout, Metrics: counters}
}

func (r *Renderer) inc(result string) {
	if r.Metrics != nil {
		r.Metrics.IncTicketGeneration(result)
	}
}

// RenderPDF converts SVG bytes to a compressed PDF. The whole pipeline
// shares one deadline; on overrun the subprocess is killed and
// ErrRenderTimeout is returned.
func (r *Renderer) RenderPDF(ctx context.Context, svg []byte) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	svgCmd := r.svgCmd
	if svgCmd == nil {
		svgCmd = defaultSVGCmd
	}
	gsCmd := r.gsCmd
	if gsCmd == nil {
		gsCmd = defaultGSCmd
	}

	pdf, err := r.run(ctx, svg, svgCmd[0], svgCmd[1:]...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			r.inc("timeout")
			return nil, ErrRenderTimeout
		}
		r.inc("render_error")
		return nil, fmt.Errorf("rsvg-convert failed: %w", err)
	}

	compressed, err := r.run(ctx, pdf, gsCmd[0], gsCmd[1:]...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			r.inc("timeout")
			return nil, ErrRenderTimeout
		}
		r.inc("gs_error")
		return nil, fmt.Errorf("ghostscript failed: %w", err)
	}

	r.inc("success")
	return compressed, nil
}

func (r *Renderer) run(ctx context.Context, input []byte, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s", err, stderr.String())
	}
	return stdout.Bytes(), nil
}
