package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/revimg/config"
	"github.com/use-agent/revimg/models"
	"github.com/ysmood/gson"
)

// Driver is the slice of the DevTools protocol a Session relies on.
//
// WaitForLoad waits for the load event armed by the preceding Navigate and
// must be given the same context.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	WaitForLoad(ctx context.Context) error
	GetDocument(ctx context.Context) (proto.DOMNodeID, error)
	GetOuterHTML(ctx context.Context, node proto.DOMNodeID) (string, error)
	Close() error
}

// rodDriver owns one launched Chromium process, the CDP connection to it and
// the single tab searches run in.
type rodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
	waitLoad func()
}

// launch starts a headless, GPU-less Chromium, connects to it and enables
// the Page and DOM domains on a fresh tab. On failure everything started so
// far is torn down again.
func launch(cfg config.BrowserConfig) (*rodDriver, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	if cfg.Stealth {
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
	}

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, models.NewSearchError(models.ErrCodeSessionStartup, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "pid", l.PID())

	d := &rodDriver{launcher: l}

	d.browser = rod.New().ControlURL(controlURL)
	if err := d.browser.Connect(); err != nil {
		d.browser = nil
		_ = d.Close()
		return nil, models.NewSearchError(models.ErrCodeSessionStartup, "failed to connect to browser", err)
	}

	if err := d.preparePage(cfg); err != nil {
		_ = d.Close()
		return nil, models.NewSearchError(models.ErrCodeSessionStartup, "failed to prepare page", err)
	}
	return d, nil
}

func (d *rodDriver) preparePage(cfg config.BrowserConfig) error {
	page, err := d.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("create target: %w", err)
	}
	d.page = page

	// Stealth and request blocking only affect navigations that come after.
	if cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	d.router = setupHijack(page, cfg.BlockedResourceTypes)

	if err := (proto.PageEnable{}).Call(page); err != nil {
		return fmt.Errorf("enable Page domain: %w", err)
	}
	if err := (proto.DOMEnable{}).Call(page); err != nil {
		return fmt.Errorf("enable DOM domain: %w", err)
	}
	return nil
}

func (d *rodDriver) Navigate(ctx context.Context, url string) error {
	p := d.page.Context(ctx)

	// Subscribe before navigating or a fast load could be missed.
	d.waitLoad = p.WaitEvent(&proto.PageLoadEventFired{})

	res, err := proto.PageNavigate{URL: url}.Call(p)
	if err != nil {
		return err
	}
	if res.ErrorText != "" {
		return errors.New(res.ErrorText)
	}
	return nil
}

func (d *rodDriver) WaitForLoad(ctx context.Context) error {
	wait := d.waitLoad
	d.waitLoad = nil
	if wait == nil {
		return errors.New("no navigation in progress")
	}
	wait()
	return ctx.Err()
}

func (d *rodDriver) GetDocument(ctx context.Context) (proto.DOMNodeID, error) {
	res, err := proto.DOMGetDocument{Depth: gson.Int(-1)}.Call(d.page.Context(ctx))
	if err != nil {
		return 0, err
	}
	if res.Root == nil {
		return 0, errors.New("document has no root node")
	}
	return res.Root.NodeID, nil
}

func (d *rodDriver) GetOuterHTML(ctx context.Context, node proto.DOMNodeID) (string, error) {
	res, err := proto.DOMGetOuterHTML{NodeID: node}.Call(d.page.Context(ctx))
	if err != nil {
		return "", err
	}
	return res.OuterHTML, nil
}

// PID is the browser process id, 0 when none was started.
func (d *rodDriver) PID() int {
	if d.launcher == nil {
		return 0
	}
	return d.launcher.PID()
}

// Close drops the CDP connection and kills the browser process, waiting for
// it to exit. The first error encountered is returned.
func (d *rodDriver) Close() error {
	var firstErr error
	if d.router != nil {
		if err := d.router.Stop(); err != nil {
			slog.Debug("hijack router stop failed", "error", err)
		}
		d.router = nil
	}
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			firstErr = err
		}
		d.browser = nil
	}
	if d.launcher != nil {
		if d.launcher.PID() != 0 {
			d.launcher.Kill()
			// Cleanup blocks until the process has exited.
			d.launcher.Cleanup()
		}
		d.launcher = nil
	}
	return firstErr
}
