package ndax

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spooky-finn/ndax-bridge/domain"
)

// RestClient issues the public GET requests of the AP gateway.
type RestClient struct {
	baseURL    string
	omsID      int64
	httpClient *http.Client
	limiter    *RateLimiter
	auth       domain.AuthProvider
}

func NewRestClient(baseURL string, omsID int64, limiter *RateLimiter, auth domain.AuthProvider) *RestClient {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if limiter == nil {
		limiter = NewRateLimiter(RateLimits)
	}

	return &RestClient{
		baseURL:    baseURL,
		omsID:      omsID,
		httpClient: &http.Client{Timeout: MessageTimeout},
		limiter:    limiter,
		auth:       auth,
	}
}

// get sends endpoint with the OMSId and params and decodes the JSON body into out.
func (c *RestClient) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx, endpoint); err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("OMSId", strconv.FormatInt(c.omsID, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		for k, v := range c.auth.Headers() {
			req.Header.Set(k, v)
		}
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.NetworkError{Op: endpoint, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return &domain.NetworkError{Op: endpoint, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if res.StatusCode != http.StatusOK {
		return &domain.HttpStatusError{
			Endpoint:   endpoint,
			StatusCode: res.StatusCode,
			Body:       string(body),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &domain.ProtocolError{
			Op:  endpoint,
			Err: fmt.Errorf("failed to unmarshal response body: %w, response: %s", err, truncate(body, 256)),
		}
	}

	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
