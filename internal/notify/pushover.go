package notify

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const pushoverEndpoint = "https://api.pushover.net/1/messages.json"

// Pushover message limits, per the API documentation.
const (
	maxTitleLen   = 250
	maxMessageLen = 1024
)

// PushoverConfig holds API credentials, loaded from the environment.
// Pushover tokens and user keys are 30 characters.
type PushoverConfig struct {
	Token string `env:"PUSHOVER_TOKEN,required"`
	User  string `env:"PUSHOVER_USER,required"`
}

// Pushover sends push notifications via the Pushover API.
//
// Invalid parameters are auto-corrected and logged instead of rejected: an
// oversized message or out-of-range priority must not cost an operator their
// backup alert.
type Pushover struct {
	cfg    PushoverConfig
	title  string
	device string
	log    *logrus.Entry

	client   *http.Client
	endpoint string // overridable in tests
}

// NewPushover creates a Pushover notifier with a default title, loading
// credentials from envFile (and the environment).
func NewPushover(title, envFile, device string, log *logrus.Entry) (*Pushover, error) {
	var cfg PushoverConfig
	if err := loadEnv(envFile, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Token) != 30 {
		return nil, fmt.Errorf("invalid PUSHOVER_TOKEN format (expected 30 characters)")
	}
	if len(cfg.User) != 30 {
		return nil, fmt.Errorf("invalid PUSHOVER_USER format (expected 30 characters)")
	}

	return &Pushover{
		cfg:      cfg,
		title:    clampTitle(title, log),
		device:   device,
		log:      log,
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: pushoverEndpoint,
	}, nil
}

// Priority levels:
//
//	-2 lowest (no notification), -1 low (quiet), 0 normal,
//	 1 high (bypasses quiet hours), 2 emergency (requires acknowledgment).
//
// Emergency notifications retry every 10 minutes for up to 2 hours.
const (
	emergencyRetry  = 600 * time.Second
	emergencyExpire = 7200 * time.Second
)

// Send delivers a push notification. An empty title uses the notifier's
// default. Transient network errors are retried with exponential backoff;
// API rejections are not.
func (p *Pushover) Send(message string, priority int, title string) error {
	message = clampMessage(message, p.log)
	if priority < -2 || priority > 2 {
		p.log.Warnf("invalid priority %d corrected to -1 (low priority)", priority)
		message += " [Priority auto-corrected]"
		priority = -1
	}
	if title == "" {
		title = p.title
	} else {
		title = clampTitle(title, p.log)
	}

	form := url.Values{
		"token":    {p.cfg.Token},
		"user":     {p.cfg.User},
		"message":  {message},
		"title":    {title},
		"priority": {strconv.Itoa(priority)},
	}
	if p.device != "" {
		form.Set("device", p.device)
	}
	if priority == 2 {
		form.Set("retry", strconv.Itoa(int(emergencyRetry.Seconds())))
		form.Set("expire", strconv.Itoa(int(emergencyExpire.Seconds())))
	}

	op := func() error { return p.post(form) }
	if err := backoff.Retry(op, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)); err != nil {
		return fmt.Errorf("pushover notification: %w", err)
	}

	p.log.Info("pushover notification sent")
	return nil
}

// pushoverResponse is the API's JSON reply.
type pushoverResponse struct {
	Status  int      `json:"status"`
	Errors  []string `json:"errors"`
	Receipt string   `json:"receipt"`
}

// post performs one API call. API-level rejections are wrapped in
// backoff.Permanent so the retry loop gives up immediately.
func (p *Pushover) post(form url.Values) error {
	resp, err := p.client.PostForm(p.endpoint, form)
	if err != nil {
		return err // network error, retryable
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return err
	}

	var parsed pushoverResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Not JSON: fall back to the HTTP status code.
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		return backoff.Permanent(fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	if parsed.Status != 1 {
		msg := strings.Join(parsed.Errors, ", ")
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return backoff.Permanent(fmt.Errorf("API error: %s", msg))
	}

	if parsed.Receipt != "" {
		p.log.Infof("emergency notification receipt: %s", parsed.Receipt)
	}
	return nil
}

// SendAlert sends a high-priority alert for a failed backup check.
func (p *Pushover) SendAlert(backupName, errorMessage string) error {
	title := fmt.Sprintf("Backup Alert: %s", backupName)
	message := fmt.Sprintf("Backup %q encountered an issue:\n%s", backupName, errorMessage)
	return p.Send(message, 1, title)
}

// SendSummary sends a run summary: low priority when everything passed,
// high priority when any check failed.
func (p *Pushover) SendSummary(total, successful, failed int, duration time.Duration, priority int) error {
	title := "Backup Check: All OK"
	if failed > 0 {
		title = "Backup Check: Issues Detected"
		priority = 1
	}

	message := fmt.Sprintf("Backup check complete\nTotal: %d, Success: %d, Failed: %d\nDuration: %.1fs",
		total, successful, failed, duration.Seconds())
	return p.Send(message, priority, title)
}

func clampTitle(title string, log *logrus.Entry) string {
	if len(title) > maxTitleLen {
		log.Warnf("title truncated to fit %d character limit", maxTitleLen)
		return title[:230] + " [TRUNCATED]"
	}
	return title
}

func clampMessage(message string, log *logrus.Entry) string {
	if len(message) > maxMessageLen {
		log.Warnf("message truncated to fit %d character limit", maxMessageLen)
		return message[:1010] + " [TRUNCATED]"
	}
	return message
}
