package contact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FormEndpoint POSTs url-encoded fields to an external form-processing service.
type FormEndpoint struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// Submit posts the submission; any 2xx response counts as sent.
func (e FormEndpoint) Submit(ctx context.Context, s Submission) error {
	if strings.TrimSpace(e.URL) == "" {
		return ErrNotConfigured
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	form := url.Values{
		"id":      {s.ID},
		"name":    {s.Name},
		"email":   {s.Email},
		"message": {s.Message},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("contact: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("contact: post form: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("contact: endpoint responded %d", resp.StatusCode)
	}
	return nil
}
