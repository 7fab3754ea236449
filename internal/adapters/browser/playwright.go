package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightFactory launches headless Chromium sessions via Playwright.
type PlaywrightFactory struct {
	Headless       bool
	DefaultTimeout time.Duration // per-interaction timeout
}

// NewPlaywrightFactory creates a factory with a sensible default timeout.
func NewPlaywrightFactory(headless bool) *PlaywrightFactory {
	return &PlaywrightFactory{
		Headless:       headless,
		DefaultTimeout: 30 * time.Second,
	}
}

// Open starts a Playwright driver, launches Chromium and opens one tab.
// PRE: Playwright browsers are installed on the host
// POST: Returns a Page whose Close releases the tab, browser and driver
func (f *PlaywrightFactory) Open(_ context.Context) (Page, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(f.Headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	page, err := browser.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("open page: %w", err)
	}
	if f.DefaultTimeout > 0 {
		page.SetDefaultTimeout(float64(f.DefaultTimeout.Milliseconds()))
	}
	return &playwrightPage{pw: pw, browser: browser, page: page}, nil
}

// playwrightPage adapts a Playwright page to the Page interface.
type playwrightPage struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

func (p *playwrightPage) Navigate(url string) error {
	_, err := p.page.Goto(url)
	return err
}

func (p *playwrightPage) Fill(selector, value string) error {
	return p.page.Locator(selector).Fill(value)
}

func (p *playwrightPage) Type(selector, text string) error {
	return p.page.Locator(selector).PressSequentially(text)
}

func (p *playwrightPage) Click(selector string) error {
	return p.page.Locator(selector).Click()
}

func (p *playwrightPage) ClickText(text string, timeout time.Duration) error {
	return p.page.Locator("text=" + text).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (p *playwrightPage) WaitForVisible(selector string, timeout time.Duration) error {
	return p.page.Locator(selector).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (p *playwrightPage) WaitForText(selector, text string, timeout time.Duration) error {
	return p.page.Locator(selector, playwright.PageLocatorOptions{HasText: text}).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (p *playwrightPage) Title() (string, error) {
	return p.page.Title()
}

func (p *playwrightPage) Text(selector string) (string, error) {
	return p.page.Locator(selector).InnerText()
}

// Close tears the whole session down. Errors from the individual stages
// are collected so a failed browser close still stops the driver.
func (p *playwrightPage) Close() error {
	var firstErr error
	if err := p.page.Close(); err != nil {
		firstErr = err
	}
	if err := p.browser.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := p.pw.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
