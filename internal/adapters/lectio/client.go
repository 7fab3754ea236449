package lectio

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lectiomsg/internal/adapters/browser"
)

// Step identifies which part of the send flow produced a failure.
type Step string

const (
	StepLogin    Step = "login"
	StepNavigate Step = "navigate"
	StepCompose  Step = "compose"
	StepSubmit   Step = "submit"
)

// StepError tags a failure with the flow step that produced it.
type StepError struct {
	Step Step
	Err  error
	// Permanent marks failures a fresh flow attempt cannot fix.
	Permanent bool
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err is a step failure that retrying the
// whole flow cannot recover from.
func IsPermanent(err error) bool {
	var se *StepError
	return errors.As(err, &se) && se.Permanent
}

// RecipientError is returned when the recipient autocomplete never
// surfaced a clickable suggestion within the attempt ceiling.
type RecipientError struct {
	Receiver string
	Attempts int
	LastErr  error
}

func (e *RecipientError) Error() string {
	return fmt.Sprintf("tried %d times to find/click recipient %q but failed, last error: %v",
		e.Attempts, e.Receiver, e.LastErr)
}

func (e *RecipientError) Unwrap() error {
	return e.LastErr
}

// Lectio page element IDs. The markup is assumed stable; these are the
// only coupling to the portal's DOM.
const (
	selLoginTitle        = ".maintitle"
	selUsername          = "#username"
	selPassword          = "#password"
	selLoginSubmit       = "#m_Content_submitbtn2"
	selNewMessageLink    = "#s_m_Content_Content_NewMessageLnk"
	selRecipientInput    = "#s_m_Content_Content_MessageThreadCtrl_addRecipientDD_inp"
	selSubjectInput      = "#s_m_Content_Content_MessageThreadCtrl_MessagesGV_ctl02_EditModeHeaderTitleTB_tb"
	selNoRepliesCheckbox = "#s_m_Content_Content_MessageThreadCtrl_RepliesNotAllowedChkBox"
	selBodyInput         = "#s_m_Content_Content_MessageThreadCtrl_MessagesGV_ctl02_EditModeContentBBTB_TbxNAME_tb"
	selSendButton        = "#s_m_Content_Content_MessageThreadCtrl_MessagesGV_ctl02_SendMessageBtn"
	selSentIndicator     = "#s_m_Content_Content_MessageThreadCtrl_MessagesGV_ctl02_ctl03_innerBtn"
)

// Config carries portal credentials and timing knobs for one session.
type Config struct {
	SchoolID string
	User     string
	Password string

	// Recipient autocomplete retry knobs. Zero values take defaults.
	MaxRecipientAttempts int           // default 20
	ClearDelay           time.Duration // pause after clearing the field, default 500ms
	SuggestDelay         time.Duration // pause for the suggestion list, default 2s
	RetryDelay           time.Duration // pause between failed attempts, default 1s
	SuggestClickTimeout  time.Duration // timeout for clicking a suggestion, default 5s

	// Condition-wait budgets.
	StepTimeout       time.Duration // per-element wait budget, default 10s
	LoginTitleTimeout time.Duration // budget for the post-login title check, default 10s

	// Sleep is injectable for tests; defaults to time.Sleep.
	Sleep func(time.Duration)
}

func (c Config) withDefaults() Config {
	if c.MaxRecipientAttempts <= 0 {
		c.MaxRecipientAttempts = 20
	}
	if c.ClearDelay <= 0 {
		c.ClearDelay = 500 * time.Millisecond
	}
	if c.SuggestDelay <= 0 {
		c.SuggestDelay = 2 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.SuggestClickTimeout <= 0 {
		c.SuggestClickTimeout = 5 * time.Second
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = 10 * time.Second
	}
	if c.LoginTitleTimeout <= 0 {
		c.LoginTitleTimeout = 10 * time.Second
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
	return c
}

// Client drives the Lectio web portal through a single browser tab.
type Client struct {
	page browser.Page
	cfg  Config
}

// NewClient wraps an open browser page with portal credentials.
// PRE: page is an open session owned by the caller
// POST: Returns a client; the caller still owns the page lifecycle
func NewClient(page browser.Page, cfg Config) *Client {
	return &Client{page: page, cfg: cfg.withDefaults()}
}

// Login signs in via the username/password form and confirms the
// session landed on the user's main page.
// PRE: page is fresh (no prior navigation this session)
// POST: Session is authenticated, or a login-tagged error is returned
func (c *Client) Login() error {
	loginURL := fmt.Sprintf("https://www.lectio.dk/lectio/%s/login.aspx?prevurl=default.aspx&type=brugernavn", c.cfg.SchoolID)
	if err := c.page.Navigate(loginURL); err != nil {
		return &StepError{Step: StepLogin, Err: fmt.Errorf("open login page: %w", err)}
	}
	if err := c.page.WaitForText(selLoginTitle, "Lectio Log ind", c.cfg.StepTimeout); err != nil {
		return &StepError{Step: StepLogin, Err: fmt.Errorf("login page not recognized: %w", err)}
	}
	if err := c.page.Fill(selUsername, c.cfg.User); err != nil {
		return &StepError{Step: StepLogin, Err: fmt.Errorf("fill username: %w", err)}
	}
	if err := c.page.Fill(selPassword, c.cfg.Password); err != nil {
		return &StepError{Step: StepLogin, Err: fmt.Errorf("fill password: %w", err)}
	}
	if err := c.page.Click(selLoginSubmit); err != nil {
		return &StepError{Step: StepLogin, Err: fmt.Errorf("submit login: %w", err)}
	}

	// Lectio is sometimes slow after login. Poll the title instead of a
	// blind sleep, up to a fixed budget.
	if err := c.waitForTitleContains(c.cfg.User, c.cfg.LoginTitleTimeout); err != nil {
		return &StepError{Step: StepLogin, Err: err}
	}
	slog.Debug("lectio_login_ok", "school_id", c.cfg.SchoolID, "user", c.cfg.User)
	return nil
}

// waitForTitleContains polls the page title until it contains want.
func (c *Client) waitForTitleContains(want string, budget time.Duration) error {
	const pollInterval = 250 * time.Millisecond
	var title string
	var err error
	for waited := time.Duration(0); ; waited += pollInterval {
		title, err = c.page.Title()
		if err == nil && strings.Contains(title, want) {
			return nil
		}
		if waited >= budget {
			break
		}
		c.cfg.Sleep(pollInterval)
	}
	if err != nil {
		return fmt.Errorf("read title: %w", err)
	}
	return fmt.Errorf("expected user %q in title but got %q", want, title)
}

// OpenCompose navigates to the messages page and opens the new-message form.
// PRE: session is authenticated
// POST: The compose form is on screen with the recipient field visible
func (c *Client) OpenCompose() error {
	messagesURL := fmt.Sprintf("https://www.lectio.dk/lectio/%s/beskeder2.aspx", c.cfg.SchoolID)
	if err := c.page.Navigate(messagesURL); err != nil {
		return &StepError{Step: StepNavigate, Err: fmt.Errorf("open messages page: %w", err)}
	}
	if err := c.page.WaitForText(selNewMessageLink, "Ny besked", c.cfg.StepTimeout); err != nil {
		return &StepError{Step: StepNavigate, Err: fmt.Errorf("new message link not found: %w", err)}
	}
	if err := c.page.Click(selNewMessageLink); err != nil {
		return &StepError{Step: StepNavigate, Err: fmt.Errorf("click new message: %w", err)}
	}
	if err := c.page.WaitForVisible(selRecipientInput, c.cfg.StepTimeout); err != nil {
		return &StepError{Step: StepNavigate, Err: fmt.Errorf("compose form did not load: %w", err)}
	}
	return nil
}

// SendMessage fills out and submits the compose form.
//
// The recipient autocomplete is asynchronous and flaky, so selecting
// the recipient is retried up to the configured ceiling: clear the
// field, type the name, give the suggestion list a moment, click the
// matching suggestion. Intermediate failures wait a shorter delay and
// retry without touching the persistent log; exhausting the ceiling is
// permanent — a fresh browser session cannot make an unknown recipient
// appear.
//
// PRE: OpenCompose succeeded
// POST: The sent indicator is visible, or a tagged error is returned
func (c *Client) SendMessage(sendTo, subject, body string, canBeReplied bool) error {
	if err := c.selectRecipient(sendTo); err != nil {
		return err
	}

	if err := c.page.Fill(selSubjectInput, subject); err != nil {
		return &StepError{Step: StepCompose, Err: fmt.Errorf("fill subject: %w", err)}
	}
	if !canBeReplied {
		if err := c.page.Click(selNoRepliesCheckbox); err != nil {
			return &StepError{Step: StepCompose, Err: fmt.Errorf("set replies-not-allowed: %w", err)}
		}
	}
	if err := c.page.Fill(selBodyInput, body); err != nil {
		return &StepError{Step: StepCompose, Err: fmt.Errorf("fill body: %w", err)}
	}

	if err := c.page.Click(selSendButton); err != nil {
		return &StepError{Step: StepSubmit, Err: fmt.Errorf("click send: %w", err)}
	}
	if err := c.page.WaitForVisible(selSentIndicator, c.cfg.StepTimeout); err != nil {
		return &StepError{Step: StepSubmit, Err: fmt.Errorf("sent indicator not found: %w", err)}
	}
	slog.Debug("lectio_message_sent", "receiver", sendTo, "subject", subject)
	return nil
}

// selectRecipient runs the bounded recipient-autocomplete retry loop.
func (c *Client) selectRecipient(sendTo string) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRecipientAttempts; attempt++ {
		lastErr = c.tryRecipient(sendTo)
		if lastErr == nil {
			return nil
		}
		slog.Debug("lectio_recipient_attempt_failed",
			"receiver", sendTo, "attempt", attempt, "max", c.cfg.MaxRecipientAttempts, "error", lastErr)
		if attempt < c.cfg.MaxRecipientAttempts {
			c.cfg.Sleep(c.cfg.RetryDelay)
		}
	}
	return &StepError{
		Step:      StepCompose,
		Permanent: true,
		Err: &RecipientError{
			Receiver: sendTo,
			Attempts: c.cfg.MaxRecipientAttempts,
			LastErr:  lastErr,
		},
	}
}

// tryRecipient performs one clear-type-click cycle on the recipient field.
func (c *Client) tryRecipient(sendTo string) error {
	if err := c.page.Fill(selRecipientInput, ""); err != nil {
		return fmt.Errorf("clear recipient field: %w", err)
	}
	c.cfg.Sleep(c.cfg.ClearDelay)

	if err := c.page.Type(selRecipientInput, sendTo); err != nil {
		return fmt.Errorf("type recipient: %w", err)
	}
	c.cfg.Sleep(c.cfg.SuggestDelay)

	if err := c.page.ClickText(sendTo, c.cfg.SuggestClickTimeout); err != nil {
		return fmt.Errorf("click suggestion: %w", err)
	}
	return nil
}
