package bizfile

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Registry endpoints and page selectors.
const (
	SearchURL = "https://bizfileonline.sos.ca.gov/search/business"

	identityHost = "idm.sos.ca.gov"
	registryHost = "bizfileonline.sos.ca.gov"

	searchAPIPath = "/api/Records/businesssearch"
	detailAPIPath = "/api/FilingDetail"

	selIdentifier = "input[name='identifier']"
	selPasscode   = "input[name='credentials.passcode']"
	selSubmit     = "input[type='submit']"
	selSearchBox  = "input[type='text']"
	selSearchBtn  = "button[aria-label='Execute search']"
	selResultRows = "table tbody tr"
)

const authCheckJS = `() => fetch('/api/Auth', {credentials: 'include'}).then(r => r.text()).catch(e => 'false')`

const snapshotStorageJS = `() => {
	try {
		const out = {};
		for (const key of Object.keys(localStorage)) {
			out[key] = localStorage.getItem(key);
		}
		return JSON.stringify(out);
	} catch (e) {
		return "{}";
	}
}`

const restoreStorageJS = `(raw) => {
	try {
		const l = JSON.parse(raw || "{}");
		Object.entries(l).forEach(([k, v]) => localStorage.setItem(k, v));
	} catch (e) {}
}`

// RodConfig configures the go-rod browser driver.
type RodConfig struct {
	Headless       bool
	BrowserBin     string
	UserAgent      string
	PageTimeout    time.Duration
	ElementTimeout time.Duration
	InterceptWait  time.Duration
}

// RodBrowser implements Browser with a headless Chromium driven over CDP.
// The browser process is started on first use.
type RodBrowser struct {
	cfg RodConfig

	mu      sync.Mutex
	browser *rod.Browser
}

// NewRodBrowser returns a browser driver; Chromium is launched lazily.
func NewRodBrowser(cfg RodConfig) *RodBrowser {
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 35 * time.Second
	}
	if cfg.ElementTimeout <= 0 {
		cfg.ElementTimeout = 20 * time.Second
	}
	if cfg.InterceptWait <= 0 {
		cfg.InterceptWait = 15 * time.Second
	}
	return &RodBrowser{cfg: cfg}
}

func (b *RodBrowser) ensure(ctx context.Context) (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New().
		Headless(b.cfg.Headless).
		NoSandbox(true).
		Set(flags.Flag("disable-dev-shm-usage")).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	if b.cfg.BrowserBin != "" {
		l = l.Bin(b.cfg.BrowserBin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "bizfile: launch chromium")
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, eris.Wrap(err, "bizfile: connect to chromium")
	}
	b.browser = browser
	zap.L().Debug("bizfile: browser started", zap.String("control_url", controlURL))
	return browser, nil
}

// Close implements Browser.
func (b *RodBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}

// newPage opens a page in a fresh incognito context. The returned cleanup
// closes the context.
func (b *RodBrowser) newPage(ctx context.Context) (*rod.Page, func(), error) {
	browser, err := b.ensure(ctx)
	if err != nil {
		return nil, nil, err
	}
	incognito, err := browser.Incognito()
	if err != nil {
		return nil, nil, eris.Wrap(err, "bizfile: incognito context")
	}
	page, err := incognito.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		_ = incognito.Close()
		return nil, nil, eris.Wrap(err, "bizfile: create page")
	}
	if b.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      b.cfg.UserAgent,
			AcceptLanguage: "en-US",
		}); err != nil {
			zap.L().Debug("bizfile: set user agent failed", zap.Error(err))
		}
	}
	_ = proto.EmulationSetDeviceMetricsOverride{Width: 1280, Height: 800, DeviceScaleFactor: 1}.Call(page)
	cleanup := func() {
		_ = page.Close()
		_ = incognito.Close()
	}
	return page.Context(ctx), cleanup, nil
}

func (b *RodBrowser) navigate(page *rod.Page, url string) error {
	p := page.Timeout(b.cfg.PageTimeout)
	if err := p.Navigate(url); err != nil {
		return eris.Wrapf(err, "bizfile: navigate %s", url)
	}
	if err := p.WaitLoad(); err != nil {
		return eris.Wrap(err, "bizfile: wait load")
	}
	return nil
}

func (b *RodBrowser) element(page *rod.Page, selector string) (*rod.Element, error) {
	el, err := page.Timeout(b.cfg.ElementTimeout).Element(selector)
	if err != nil {
		return nil, eris.Wrapf(err, "bizfile: element %s", selector)
	}
	return el.CancelTimeout(), nil
}

func (b *RodBrowser) fill(page *rod.Page, selector, text string) error {
	el, err := b.element(page, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return eris.Wrapf(err, "bizfile: select %s", selector)
	}
	return eris.Wrapf(el.Input(text), "bizfile: input %s", selector)
}

func (b *RodBrowser) click(page *rod.Page, selector string) error {
	el, err := b.element(page, selector)
	if err != nil {
		return err
	}
	return eris.Wrapf(el.Click(proto.InputMouseButtonLeft, 1), "bizfile: click %s", selector)
}

// waitURL polls the page URL until it contains fragment.
func (b *RodBrowser) waitURL(ctx context.Context, page *rod.Page, fragment string) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.PageTimeout)
	defer cancel()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if info, err := page.Info(); err == nil && strings.Contains(info.URL, fragment) {
			return nil
		}
		select {
		case <-ctx.Done():
			return eris.Wrapf(ctx.Err(), "bizfile: waiting for %s", fragment)
		case <-ticker.C:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (b *RodBrowser) authenticated(page *rod.Page) (bool, error) {
	res, err := page.Timeout(b.cfg.ElementTimeout).Evaluate(&rod.EvalOptions{
		JS:           authCheckJS,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return false, eris.Wrap(err, "bizfile: auth check")
	}
	return !strings.Contains(strings.ToLower(res.Value.String()), "false"), nil
}

// Login implements Browser.
func (b *RodBrowser) Login(ctx context.Context, creds Credentials) (*Session, error) {
	page, cleanup, err := b.newPage(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if err := b.navigate(page, SearchURL); err != nil {
		return nil, err
	}
	loginBtn, err := page.Timeout(b.cfg.ElementTimeout).ElementR("button", "Login")
	if err != nil {
		return nil, eris.Wrap(err, "bizfile: login button")
	}
	if err := loginBtn.CancelTimeout().Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, eris.Wrap(err, "bizfile: click login")
	}
	if err := b.waitURL(ctx, page, identityHost); err != nil {
		return nil, err
	}

	if err := b.fill(page, selIdentifier, creds.Username); err != nil {
		return nil, err
	}
	if err := b.fill(page, selPasscode, creds.Password); err != nil {
		return nil, err
	}
	if err := b.click(page, selSubmit); err != nil {
		return nil, err
	}

	if err := b.waitURL(ctx, page, registryHost); err != nil {
		return nil, err
	}
	if err := page.Timeout(b.cfg.PageTimeout).WaitLoad(); err != nil {
		return nil, eris.Wrap(err, "bizfile: wait for registry")
	}
	// The app exchanges the identity provider's code for tokens after load.
	if err := sleep(ctx, 2*time.Second); err != nil {
		return nil, err
	}

	ok, err := b.authenticated(page)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, eris.Wrap(ErrUnauthorized, "bizfile: login did not authenticate")
	}

	cookies, err := proto.NetworkGetCookies{}.Call(page)
	if err != nil {
		return nil, eris.Wrap(err, "bizfile: get cookies")
	}
	rawCookies, err := json.Marshal(cookies.Cookies)
	if err != nil {
		return nil, eris.Wrap(err, "bizfile: marshal cookies")
	}

	storage := map[string]string{}
	if res, err := page.Evaluate(&rod.EvalOptions{JS: snapshotStorageJS, ByValue: true}); err == nil {
		_ = json.Unmarshal([]byte(res.Value.String()), &storage)
	}

	return &Session{Cookies: rawCookies, LocalStorage: storage}, nil
}

// restore loads sess into page and lands on the search page.
func (b *RodBrowser) restore(page *rod.Page, sess *Session) error {
	var cookies []*proto.NetworkCookie
	if len(sess.Cookies) > 0 {
		if err := json.Unmarshal(sess.Cookies, &cookies); err != nil {
			return eris.Wrap(err, "bizfile: decode session cookies")
		}
	}
	if len(cookies) > 0 {
		if err := page.SetCookies(proto.CookiesToParams(cookies)); err != nil {
			return eris.Wrap(err, "bizfile: set cookies")
		}
	}
	if err := b.navigate(page, SearchURL); err != nil {
		return err
	}
	if len(sess.LocalStorage) == 0 {
		return nil
	}
	raw, err := json.Marshal(sess.LocalStorage)
	if err != nil {
		return eris.Wrap(err, "bizfile: marshal local storage")
	}
	if _, err := page.Evaluate(&rod.EvalOptions{
		JS:     restoreStorageJS,
		JSArgs: []interface{}{string(raw)},
	}); err != nil {
		return eris.Wrap(err, "bizfile: restore local storage")
	}
	if err := page.Timeout(b.cfg.PageTimeout).Reload(); err != nil {
		return eris.Wrap(err, "bizfile: reload")
	}
	return eris.Wrap(page.Timeout(b.cfg.PageTimeout).WaitLoad(), "bizfile: wait reload")
}

// intercepted is a finished registry API response.
type intercepted struct {
	path   string
	status int
	body   string
}

// interceptor watches the page's network traffic for the registry's own API
// responses. Bodies are fetched outside the event callbacks.
type interceptor struct {
	page *rod.Page
	out  chan intercepted
	stop context.CancelFunc
}

func (b *RodBrowser) intercept(ctx context.Context, page *rod.Page) (*interceptor, error) {
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return nil, eris.Wrap(err, "bizfile: enable network")
	}

	type pending struct {
		path   string
		status int
	}
	ready := make(chan struct {
		id proto.NetworkRequestID
		pending
	}, 16)
	tracked := map[proto.NetworkRequestID]pending{}

	evCtx, stop := context.WithCancel(ctx)
	wait := page.Context(evCtx).EachEvent(
		func(ev *proto.NetworkResponseReceived) {
			if ev.Response == nil {
				return
			}
			for _, p := range []string{searchAPIPath, detailAPIPath} {
				if strings.Contains(ev.Response.URL, p) {
					tracked[ev.RequestID] = pending{path: p, status: ev.Response.Status}
				}
			}
		},
		func(ev *proto.NetworkLoadingFinished) {
			p, ok := tracked[ev.RequestID]
			if !ok {
				return
			}
			delete(tracked, ev.RequestID)
			select {
			case ready <- struct {
				id proto.NetworkRequestID
				pending
			}{ev.RequestID, p}:
			default:
			}
		},
	)
	go wait()

	ic := &interceptor{page: page, out: make(chan intercepted, 16), stop: stop}
	go func() {
		defer close(ic.out)
		for {
			select {
			case <-evCtx.Done():
				return
			case r := <-ready:
				res, err := proto.NetworkGetResponseBody{RequestID: r.id}.Call(page)
				if err != nil {
					zap.L().Debug("bizfile: read intercepted body", zap.String("path", r.path), zap.Error(err))
					continue
				}
				select {
				case ic.out <- intercepted{path: r.path, status: r.status, body: res.Body}:
				case <-evCtx.Done():
					return
				}
			}
		}
	}()
	return ic, nil
}

// next waits up to d for a response on path.
func (ic *interceptor) next(ctx context.Context, path string, d time.Duration) (intercepted, bool) {
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return intercepted{}, false
		case <-t.C:
			return intercepted{}, false
		case r, ok := <-ic.out:
			if !ok {
				return intercepted{}, false
			}
			if r.path == path {
				return r, true
			}
		}
	}
}

// Search implements Browser.
func (b *RodBrowser) Search(ctx context.Context, sess *Session, name string, pick PickFunc) (*Capture, error) {
	page, cleanup, err := b.newPage(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if err := b.restore(page, sess); err != nil {
		return nil, err
	}
	ok, err := b.authenticated(page)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnauthorized
	}

	ic, err := b.intercept(ctx, page)
	if err != nil {
		return nil, err
	}
	defer ic.stop()

	if err := b.fill(page, selSearchBox, name); err != nil {
		return nil, err
	}
	if err := b.click(page, selSearchBtn); err != nil {
		return nil, err
	}

	capture := &Capture{}
	resp, got := ic.next(ctx, searchAPIPath, b.cfg.InterceptWait)
	switch {
	case got && (resp.status == 401 || resp.status == 403):
		return nil, ErrUnauthorized
	case got && resp.status == 200:
		rows, err := DecodeRows([]byte(resp.body))
		if err != nil {
			zap.L().Debug("bizfile: undecodable search response", zap.Error(err))
		}
		capture.Rows = rows
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if len(capture.Rows) > 0 {
		idx := pick(capture.Rows)
		els, err := page.Timeout(b.cfg.ElementTimeout).Elements(selResultRows)
		if err == nil && idx >= 0 && idx < len(els) {
			if err := els[idx].CancelTimeout().Click(proto.InputMouseButtonLeft, 1); err == nil {
				if d, ok := ic.next(ctx, detailAPIPath, b.cfg.InterceptWait); ok && d.status == 200 {
					capture.Detail = json.RawMessage(d.body)
				}
			}
		}
	}

	html, err := page.Timeout(b.cfg.ElementTimeout).HTML()
	if err == nil {
		capture.PageHTML = html
	}
	return capture, nil
}
