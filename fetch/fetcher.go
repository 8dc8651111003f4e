// Package fetch renders monitored pages in a headless browser. Ticket
// marketplaces are aggressive about bot blocking, so fetches rotate user
// agents, pause between attempts, and detect block pages before handing
// HTML to the extractor.
package fetch

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/chromedp"
	"github.com/temoto/robotstxt"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_3_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36 Edg/121.0.0.0",
}

var blockMarkers = []string{
	"captcha",
	"access denied",
	"blocked",
	"cloudflare",
	"please verify you are human",
	"enable javascript and cookies",
	"checking your browser",
}

// Config controls fetch pacing and retries.
type Config struct {
	Timeout       time.Duration
	MaxRetries    int
	RetryWait     time.Duration
	DelayMin      time.Duration
	DelayMax      time.Duration
	RespectRobots bool
}

// DefaultConfig mirrors the scheduler's production pacing.
func DefaultConfig() Config {
	return Config{
		Timeout:       45 * time.Second,
		MaxRetries:    3,
		RetryWait:     60 * time.Second,
		DelayMin:      2 * time.Second,
		DelayMax:      5 * time.Second,
		RespectRobots: true,
	}
}

// Fetcher owns one headless browser shared by all page fetches.
type Fetcher struct {
	config      Config
	browserCtx  context.Context
	cancelFns   []context.CancelFunc
	robotsMu    sync.RWMutex
	robotsCache map[string]*robotstxt.RobotsData
	httpClient  *http.Client
}

// New starts the shared browser. Close must be called to shut it down.
func New(config Config) *Fetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Headless,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgents[rand.Intn(len(userAgents))]),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	return &Fetcher{
		config:      config,
		browserCtx:  browserCtx,
		cancelFns:   []context.CancelFunc{browserCancel, allocCancel},
		robotsCache: make(map[string]*robotstxt.RobotsData),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Close shuts down the shared browser.
func (f *Fetcher) Close() {
	for _, cancel := range f.cancelFns {
		cancel()
	}
}

// Fetch renders targetURL and returns its full HTML. Retries with a long
// wait when a block page is detected; a nil error means the HTML is real
// page content.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (string, error) {
	if f.config.RespectRobots {
		if err := f.checkRobots(targetURL); err != nil {
			return "", err
		}
	}

	var lastErr error
	for attempt := 0; attempt <= f.config.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Debug("retrying fetch", "url", targetURL, "attempt", attempt)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(f.config.RetryWait):
			}
		}
		f.randomDelay(ctx)

		html, err := f.fetchOnce(ctx, targetURL)
		if err != nil {
			lastErr = err
			continue
		}
		if isBlocked(html) {
			lastErr = fmt.Errorf("block page detected for %s", targetURL)
			log.Warn("fetch blocked", "url", targetURL, "attempt", attempt)
			continue
		}
		return html, nil
	}
	return "", fmt.Errorf("fetch failed after %d attempts: %w", f.config.MaxRetries+1, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, targetURL string) (string, error) {
	// One tab per fetch, bounded by both the caller's context and the
	// per-page timeout.
	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()
	timeoutCtx, cancelTimeout := context.WithTimeout(tabCtx, f.config.Timeout)
	defer cancelTimeout()

	go func() {
		select {
		case <-ctx.Done():
			cancelTimeout()
		case <-timeoutCtx.Done():
		}
	}()

	var html string
	err := chromedp.Run(timeoutCtx,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("navigation failed for %s: %w", targetURL, err)
	}
	return html, nil
}

func (f *Fetcher) randomDelay(ctx context.Context) {
	if f.config.DelayMax <= 0 {
		return
	}
	span := f.config.DelayMax - f.config.DelayMin
	delay := f.config.DelayMin
	if span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

func isBlocked(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// checkRobots refuses URLs disallowed for * by the site's robots.txt.
// Results are cached per host, including the permissive result for an
// unreachable, missing, or unparsable robots.txt, so each host is asked
// at most once per process.
func (f *Fetcher) checkRobots(targetURL string) error {
	u, err := url.Parse(targetURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", targetURL, err)
	}
	host := u.Scheme + "://" + u.Host

	f.robotsMu.RLock()
	robotsData, cached := f.robotsCache[host]
	f.robotsMu.RUnlock()

	if !cached {
		robotsData = f.fetchRobots(host)
		f.robotsMu.Lock()
		f.robotsCache[host] = robotsData
		f.robotsMu.Unlock()
	}

	if !robotsData.FindGroup("*").Test(u.Path) {
		return fmt.Errorf("blocked by robots.txt: %s", targetURL)
	}
	return nil
}

// allowAllRobots stands in for hosts whose robots.txt cannot be fetched
// or parsed.
var allowAllRobots = func() *robotstxt.RobotsData {
	data, _ := robotstxt.FromString("")
	return data
}()

func (f *Fetcher) fetchRobots(host string) *robotstxt.RobotsData {
	resp, err := f.httpClient.Get(host + "/robots.txt")
	if err != nil {
		log.Debug("robots.txt unreachable, allowing fetch", "host", host, "error", err)
		return allowAllRobots
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return allowAllRobots
	}
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		log.Debug("robots.txt unparsable, allowing fetch", "host", host, "error", err)
		return allowAllRobots
	}
	return data
}
