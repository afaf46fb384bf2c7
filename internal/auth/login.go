package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bigrise/internal/common"
)

// ErrAuthentication is returned when the login flow cannot complete. It is
// fatal for the industry collector; there is no anonymous fallback on the
// portal's category API.
var ErrAuthentication = errors.New("portal authentication failed")

const loginTimeout = 90 * time.Second

// Service drives the portal's browser login form and harvests the session
// cookies for reuse by the plain HTTP client.
type Service struct {
	config common.PortalConfig
	logger arbor.ILogger
}

// NewService creates a login service for the configured portal.
func NewService(config common.PortalConfig, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		logger: logger,
	}
}

// Login opens a browser, submits the login form, and returns the session
// cookies observed after login. The portal's form has an enterprise-user
// radio that must be selected before the credential inputs accept focus.
func (s *Service) Login(ctx context.Context) ([]*http.Cookie, error) {
	loginURL := strings.TrimSuffix(s.config.BaseURL, "/") + s.config.LoginPath

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(1400, 900),
	)
	if s.config.InsecureSkipVerify {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, loginTimeout)
	defer cancelTimeout()

	s.logger.Info().
		Str("url", loginURL).
		Bool("headless", s.config.Headless).
		Msg("Starting portal login")

	var harvested []*network.Cookie
	err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible(`input[type="text"]`, chromedp.ByQuery),

		// The enterprise-user radio is optional across portal revisions;
		// click it when present and move on when it is not.
		chromedp.Evaluate(`(() => {
			const radio = document.getElementById('enterprise-users');
			if (radio) { radio.click(); return true; }
			return false;
		})()`, nil),

		chromedp.SendKeys(`input[type="text"]`, s.config.Username, chromedp.ByQuery),
		chromedp.SendKeys(`input[type="password"]`, s.config.Password, chromedp.ByQuery),
		chromedp.Click(`//button[contains(., '로그인')]`, chromedp.BySearch),
		chromedp.Sleep(3*time.Second),

		chromedp.ActionFunc(func(ctx context.Context) error {
			cookies, err := network.GetCookies().WithURLs([]string{s.config.BaseURL}).Do(ctx)
			if err != nil {
				return err
			}
			harvested = cookies
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	if len(harvested) == 0 {
		return nil, fmt.Errorf("%w: no session cookies after login", ErrAuthentication)
	}

	cookies := make([]*http.Cookie, 0, len(harvested))
	for _, c := range harvested {
		cookies = append(cookies, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: strings.TrimPrefix(c.Domain, "."),
			Path:   c.Path,
			Secure: c.Secure,
		})
	}

	s.logger.Info().
		Int("cookie_count", len(cookies)).
		Msg("Portal login complete")
	return cookies, nil
}

// XSRFToken returns the value of the portal's XSRF cookie, if present.
// The category API rejects requests that carry the cookie without the
// matching header.
func XSRFToken(cookies []*http.Cookie) string {
	for _, c := range cookies {
		if strings.EqualFold(c.Name, "XSRF-TOKEN") {
			if decoded, err := url.QueryUnescape(c.Value); err == nil {
				return decoded
			}
			return c.Value
		}
	}
	return ""
}
