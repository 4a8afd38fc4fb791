package fetcher

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// RodFetcher implements the Fetcher interface using rod (headless browser).
// The browser is launched on the first fetch and reused until Close.
type RodFetcher struct {
	log *zap.SugaredLogger

	mu      sync.Mutex
	browser *rod.Browser

	renderWait time.Duration
	stableWait time.Duration
}

// NewRodFetcher creates a new RodFetcher instance
func NewRodFetcher(log *zap.SugaredLogger) *RodFetcher {
	return &RodFetcher{
		log:        log,
		renderWait: 3 * time.Second,
		stableWait: 10 * time.Second,
	}
}

// launch starts a headless chromium, preferring a system install
func (rf *RodFetcher) launch() (*rod.Browser, error) {
	// This should be mounted as a volume to use disk instead of memory
	userDataDir := os.Getenv("BOT_DATA_DIR")
	if userDataDir == "" {
		userDataDir = "/tmp/quota-data"
	}
	if err := os.MkdirAll(userDataDir, 0755); err != nil {
		rf.log.Warnf("Failed to create browser data directory %s: %v", userDataDir, err)
		userDataDir = ""
	}

	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		NoSandbox(true).
		Leakless(false).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-extensions").
		Set("mute-audio").
		Set("no-zygote")
	if userDataDir != "" {
		l = l.UserDataDir(userDataDir)
	}
	if path, ok := launcher.LookPath(); ok {
		l = l.Bin(path)
	}

	browserURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	rf.log.Infof("Browser launched at %s", browserURL)
	return browser, nil
}

func (rf *RodFetcher) getBrowser() (*rod.Browser, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.browser != nil {
		return rf.browser, nil
	}
	browser, err := rf.launch()
	if err != nil {
		return nil, err
	}
	rf.browser = browser
	return browser, nil
}

// Close closes the browser
func (rf *RodFetcher) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.browser == nil {
		return nil
	}
	err := rf.browser.Close()
	rf.browser = nil
	return err
}

// Fetch implements the Fetcher interface
func (rf *RodFetcher) Fetch(ctx context.Context, url string) (string, error) {
	browser, err := rf.getBrowser()
	if err != nil {
		return "", err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("failed to load %s: %w", url, err)
	}

	// Give JavaScript time to render
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(rf.renderWait):
	}

	if err := page.Timeout(rf.stableWait).WaitStable(500 * time.Millisecond); err != nil {
		rf.log.Warnf("Page %s did not stabilize within timeout, continuing anyway: %v", url, err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	rf.log.Debugf("Fetched %s (%d bytes)", url, len(html))
	return html, nil
}
