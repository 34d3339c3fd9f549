// Package browser drives the visible Chrome session used for the lookup.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"cnpjscraper/cnpj"
	"cnpjscraper/logger"
)

// ErrChallengeTimeout is returned by AwaitResult when the operator did not
// submit the form within Options.ChallengeTimeout.
var ErrChallengeTimeout = errors.New("timed out waiting for the challenge to be solved")

// Prompt is shown to the operator once the identifier has been typed.
const Prompt = "Complete o reCAPTCHA manualmente e clique em Consultar."

// hideWebdriver runs before any page script so the portal sees
// navigator.webdriver as false.
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', { get: () => false });`

// Options configures the browser session.
type Options struct {
	PortalURL      string
	InputSelector  string
	UserAgent      string
	AcceptLanguage string
	ProfileDir     string
	ExecPath       string
	// ChallengeTimeout bounds AwaitResult. Zero waits until ctx is done.
	ChallengeTimeout time.Duration
	// Settle is how long to wait after the result page loads before
	// reading it, so late scripts can finish rendering.
	Settle time.Duration
	// PromptOut receives operator instructions. Defaults to os.Stdout.
	PromptOut io.Writer
	Logger    logger.Logger
}

// Page is a snapshot of the loaded result page.
type Page struct {
	URL  string
	HTML string
}

// Session is one Chrome instance with a single tab.
type Session struct {
	opts        Options
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	loaded      chan struct{}
}

// allocatorOptions builds the Chrome flags: a visible window bound to the
// persistent profile, maximized, with no emulated viewport.
func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("hide-scrollbars", false),
		chromedp.Flag("mute-audio", false),
		chromedp.Flag("start-maximized", true),
		chromedp.UserDataDir(opts.ProfileDir),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	return allocOpts
}

// Launch starts Chrome. The returned Session must be closed.
func Launch(ctx context.Context, opts Options) (*Session, error) {
	if opts.PromptOut == nil {
		opts.PromptOut = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	log := opts.Logger
	tabCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		log.Debug(fmt.Sprintf(format, args...))
	}))

	s := &Session{
		opts:        opts,
		allocCancel: allocCancel,
		ctx:         tabCtx,
		cancel:      cancel,
		loaded:      make(chan struct{}, 1),
	}

	// the first Run starts the browser process
	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	opts.Logger.Debug("browser launched", logger.String("profile_dir", opts.ProfileDir))
	return s, nil
}

// Close shuts the tab and the browser process. Safe to call more than once.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// Open prepares the tab, loads the lookup page and types id into the
// identifier field, then asks the operator to solve the challenge.
func (s *Session) Open(id cnpj.Identifier) error {
	err := chromedp.Run(s.ctx,
		network.Enable(),
		emulation.SetUserAgentOverride(s.opts.UserAgent).WithAcceptLanguage(s.opts.AcceptLanguage),
		network.SetExtraHTTPHeaders(network.Headers{"accept-language": s.opts.AcceptLanguage}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
			return err
		}),
		chromedp.Navigate(s.opts.PortalURL),
		chromedp.WaitVisible(s.opts.InputSelector, chromedp.ByQuery),
		chromedp.SendKeys(s.opts.InputSelector, id.String(), chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to open lookup page: %w", err)
	}

	s.listenForResult()
	fmt.Fprintln(s.opts.PromptOut, Prompt)
	return nil
}

// listenForResult signals s.loaded once the top-level frame has navigated
// and finished loading. Subframe navigations (the captcha widget) are
// ignored.
func (s *Session) listenForResult() {
	navigated := false
	chromedp.ListenTarget(s.ctx, func(ev any) {
		switch e := ev.(type) {
		case *page.EventFrameNavigated:
			if e.Frame != nil && e.Frame.ParentID == "" {
				navigated = true
			}
		case *page.EventLoadEventFired:
			if !navigated {
				return
			}
			select {
			case s.loaded <- struct{}{}:
			default:
			}
		}
	})
}

// AwaitResult blocks until the operator has submitted the form and the
// result page has loaded, then returns its HTML.
func (s *Session) AwaitResult(ctx context.Context) (*Page, error) {
	if err := waitFor(ctx, s.loaded, s.opts.ChallengeTimeout); err != nil {
		return nil, err
	}

	var result Page
	err := chromedp.Run(s.ctx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.opts.Settle),
		chromedp.Location(&result.URL),
		chromedp.OuterHTML("html", &result.HTML, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read result page: %w", err)
	}
	return &result, nil
}

// waitFor blocks until signal fires, ctx is done, or timeout (if > 0)
// elapses.
func waitFor(ctx context.Context, signal <-chan struct{}, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-signal:
		return nil
	case <-expired:
		return fmt.Errorf("%w after %s", ErrChallengeTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
