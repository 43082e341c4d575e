package httpclient

import (
	"net/http"
	"time"
)

// ClientType selects a header profile for outbound HTTP.
type ClientType string

const (
	// BrowserClient sends browser-like headers. YouTube watch pages served
	// to a bare Go User-Agent come back stripped of the player config the
	// caption scraper needs.
	BrowserClient ClientType = "browser"

	// ServiceClient talks to the local GPU services (whisper, embeddings)
	// with Go's default headers and a long timeout, since a transcription
	// call can legitimately run for minutes.
	ServiceClient ClientType = "service"
)

// HTTPClient wraps an http.Client with a header profile.
type HTTPClient struct {
	client     *http.Client
	clientType ClientType
}

// NewClient creates an HTTP client with the specified profile.
func NewClient(clientType ClientType) *HTTPClient {
	timeout := 30 * time.Second
	if clientType == ServiceClient {
		timeout = 10 * time.Minute
	}

	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &HTTPClient{
		client:     client,
		clientType: clientType,
	}
}

// Do executes a request with the profile's headers applied.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.setHeaders(req)
	return c.client.Do(req)
}

// Get is a convenience method for GET requests.
func (c *HTTPClient) Get(url string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	switch c.clientType {
	case BrowserClient:
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Connection", "keep-alive")
	default:
		// Go's default User-Agent.
	}
}
