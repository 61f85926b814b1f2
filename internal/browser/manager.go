package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xm4dn355x/webpilot/internal/config"
)

// Manager owns the Chrome process lifecycle. Initialization is deferred
// until the first page is requested so driverless commands stay cheap.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu       sync.Mutex
	initOnce sync.Once
	initErr  error
	wg       sync.WaitGroup
}

// NewManager creates a browser manager bound to the given configuration.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.Named("browser_manager"),
	}
}

// initialize builds the exec allocator with the configured launch options.
func (m *Manager) initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.logger.Info("Launching browser allocator.",
			zap.Bool("headless", m.cfg.Headless),
			zap.Int("window_width", m.cfg.WindowWidth),
			zap.Int("window_height", m.cfg.WindowHeight))

		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		opts = append(opts,
			chromedp.Flag("headless", m.cfg.Headless),
			chromedp.WindowSize(m.cfg.WindowWidth, m.cfg.WindowHeight),
			chromedp.Flag("disable-notifications", true),
			chromedp.Flag("force-device-scale-factor", "1"),
		)
		if m.cfg.Lang != "" {
			opts = append(opts, chromedp.Flag("lang", m.cfg.Lang))
		}
		for _, arg := range m.cfg.Args {
			opts = append(opts, chromedp.Flag(arg, true))
		}

		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	})
	return m.initErr
}

// NewPage opens a fresh tab and verifies the browser actually starts.
func (m *Manager) NewPage(ctx context.Context) (*ChromePage, error) {
	if err := m.initialize(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			m.logger.Sugar().Debugf(format, args...)
		}),
	)

	// An empty Run starts the browser process and fails fast when the
	// binary is unavailable.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	m.wg.Add(1)
	page := newChromePage(tabCtx, tabCancel, m.logger, m.wg.Done)
	m.logger.Info("Browser page ready.")
	return page, nil
}

// Shutdown waits for open pages to close and releases the allocator.
func (m *Manager) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Shutdown grace period elapsed with pages still open.")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.logger.Info("Browser manager shut down.")
}
