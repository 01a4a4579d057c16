package deploy

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/yarikc/composer/ast"
)

func insecureTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	return t
}

// Client talks to a remote action platform's API: PUT to create or
// update an action, DELETE to remove one. It carries a cookie jar
// scoped by the public suffix list so a session cookie set by one API
// host is never replayed against another, the way a browser would
// handle it.
type Client struct {
	APIHost  string
	AuthUser string
	AuthPass string
	HTTP     *http.Client
}

// NewClient builds a Client against apihost. If insecure is true, TLS
// certificate verification is skipped, matching cmd/compose's
// --insecure flag.
func NewClient(apihost, authUser, authPass string, insecure bool) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport
	if insecure {
		transport = insecureTransport()
	}
	return &Client{
		APIHost:  apihost,
		AuthUser: authUser,
		AuthPass: authPass,
		HTTP: &http.Client{
			Jar:       jar,
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}, nil
}

// PutAction creates or replaces the named action's exec.
func (c *Client) PutAction(ctx context.Context, at *ast.Attachment) error {
	body, err := json.Marshal(at.Action)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/v1/namespaces/_/actions%s?overwrite=true", c.APIHost, at.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.AuthUser != "" {
		req.SetBasicAuth(c.AuthUser, c.AuthPass)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return &RequestFailed{URL: url, Status: resp.Status}
	}
	return nil
}

// DeleteAction removes the named action, tolerating the action not
// existing: deleting before recreating must be idempotent.
func (c *Client) DeleteAction(ctx context.Context, name string) error {
	url := fmt.Sprintf("%s/api/v1/namespaces/_/actions%s", c.APIHost, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	if c.AuthUser != "" {
		req.SetBasicAuth(c.AuthUser, c.AuthPass)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusNotFound {
		return &RequestFailed{URL: url, Status: resp.Status}
	}
	return nil
}

// RequestFailed occurs when the remote platform answers with a
// non-2xx, non-404 status.
type RequestFailed struct {
	URL    string
	Status string
}

func (e *RequestFailed) Error() string {
	return fmt.Sprintf("deploy: %s: %s", e.URL, e.Status)
}
