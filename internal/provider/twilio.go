package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TwilioOptions configures a TwilioClient. MessagingServiceSID wins over From
// when both are set.
type TwilioOptions struct {
	AccountSID          string
	AuthToken           string
	From                string
	MessagingServiceSID string
	StatusCallback      string
	BaseURL             string
	Timeout             time.Duration
}

// TwilioClient sends messages through the Twilio Messages REST API.
type TwilioClient struct {
	opts   TwilioOptions
	client *http.Client
}

func NewTwilioClient(opts TwilioOptions) (*TwilioClient, error) {
	if opts.AccountSID == "" || opts.AuthToken == "" {
		return nil, ErrNotConfigured
	}
	if opts.From == "" && opts.MessagingServiceSID == "" {
		return nil, fmt.Errorf("twilio: a from number or messaging service sid is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.twilio.com"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	return &TwilioClient{
		opts: opts,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
	}, nil
}

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type errorResponse struct {
	Code    json.Number `json:"code"`
	Message string      `json:"message"`
}

func (c *TwilioClient) messagesURL() string {
	return fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.opts.BaseURL, url.PathEscape(c.opts.AccountSID))
}

// Send posts one message and returns its SID.
func (c *TwilioClient) Send(ctx context.Context, to, body string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("Body", body)
	if c.opts.MessagingServiceSID != "" {
		form.Set("MessagingServiceSid", c.opts.MessagingServiceSID)
	} else {
		form.Set("From", c.opts.From)
	}
	if c.opts.StatusCallback != "" {
		form.Set("StatusCallback", c.opts.StatusCallback)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.opts.AccountSID, c.opts.AuthToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := &Error{HTTPStatus: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil {
			perr.Code = er.Code.String()
			if er.Message != "" {
				perr.Message = er.Message
			}
		}
		return "", perr
	}

	var mr messageResponse
	if err := json.Unmarshal(raw, &mr); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(raw))
	}
	if mr.SID == "" {
		return "", fmt.Errorf("missing sid in response body=%q", string(raw))
	}
	return mr.SID, nil
}
