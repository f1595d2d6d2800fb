package notify

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Heartbeat describes an Uptime Kuma push notification.
// Zero values mean "not explicitly set": the URL's own query parameters are
// consulted next, then the defaults (status "up", msg "OK", no ping).
type Heartbeat struct {
	Status string // "up", "down" or "pending"
	Msg    string
	Ping   int64 // response time in milliseconds; <0 means unset
}

// DefaultHeartbeatTimeout bounds a single heartbeat request.
const DefaultHeartbeatTimeout = 5 * time.Second

// SendHeartbeat delivers a push heartbeat to an Uptime Kuma monitor URL
// (e.g. "https://kuma.example.com/api/push/TOKEN").
//
// Parameter precedence for status, msg, and ping: values set on hb win over
// query parameters already present in pushURL, which win over the defaults.
func SendHeartbeat(pushURL string, hb Heartbeat, client *http.Client) error {
	if pushURL == "" {
		return fmt.Errorf("no push URL configured")
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultHeartbeatTimeout}
	}

	parsed, err := url.Parse(pushURL)
	if err != nil {
		return fmt.Errorf("parse push URL: %w", err)
	}

	existing := parsed.Query()
	final := url.Values{}

	final.Set("status", pick(hb.Status, existing.Get("status"), "up"))
	final.Set("msg", pick(hb.Msg, existing.Get("msg"), "OK"))

	switch {
	case hb.Ping >= 0:
		final.Set("ping", strconv.FormatInt(hb.Ping, 10))
	case existing.Get("ping") != "":
		// Keep a numeric ping from the URL, drop anything unparsable.
		if v, err := strconv.ParseFloat(existing.Get("ping"), 64); err == nil {
			final.Set("ping", strconv.FormatInt(int64(v), 10))
		}
	}

	parsed.RawQuery = final.Encode()

	resp, err := client.Get(parsed.String())
	if err != nil {
		return fmt.Errorf("heartbeat request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("heartbeat rejected: HTTP %d", resp.StatusCode)
	}
	return nil
}

// pick returns the first non-empty value.
func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
