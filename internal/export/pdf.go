// Package export converts rendered transcripts to other formats.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"transcripthost/internal/domain"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const defaultTimeout = 60 * time.Second

// PDFConfig configures the headless Chrome PDF exporter.
type PDFConfig struct {
	Headless bool
	ExecPath string // Chrome binary; empty = chromedp lookup
	Timeout  time.Duration
	Logger   *slog.Logger
}

// PDF prints transcript HTML through headless Chrome.
type PDF struct {
	headless bool
	execPath string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewPDF(cfg PDFConfig) *PDF {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &PDF{
		headless: cfg.Headless,
		execPath: cfg.ExecPath,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}
}

// newContext starts a browser. The caller MUST call cancel() when done.
func (p *PDF) newContext(parent context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("blink-settings", "imagesEnabled=true"),
	)
	if p.headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if p.execPath != "" {
		opts = append(opts, chromedp.ExecPath(p.execPath))
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(parent, p.timeout)
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	return taskCtx, func() {
		taskCancel()
		allocCancel()
		timeoutCancel()
	}
}

// Render loads html into a blank page and prints it with backgrounds.
func (p *PDF) Render(ctx context.Context, html []byte) ([]byte, error) {
	if len(html) == 0 {
		return nil, fmt.Errorf("%w: empty document", domain.ErrInputInvalid)
	}

	taskCtx, cancel := p.newContext(ctx)
	defer cancel()

	start := time.Now()
	var pdf []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			pdf = buf
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}

	p.logger.Info("pdf exported", "html_bytes", len(html), "pdf_bytes", len(pdf), "duration", time.Since(start))
	return pdf, nil
}

// FindChrome returns the first Chrome-like binary on PATH, or "".
func FindChrome() string {
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
