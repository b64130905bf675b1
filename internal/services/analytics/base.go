package analytics

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    xhttp "AgriPulse/pkg/http"
)

const defaultTimeout = 5 * time.Second

// HTTPServiceBase is the shared client for the Python analytics sidecars
// (Prophet forecaster, fertilizer model).
type HTTPServiceBase struct {
    baseURL string
    client  *xhttp.Client
}

// NewHTTPServiceBase builds a JSON client rooted at baseURL.
func NewHTTPServiceBase(baseURL string, timeout time.Duration) *HTTPServiceBase {
    if timeout <= 0 {
        timeout = defaultTimeout
    }
    return &HTTPServiceBase{
        baseURL: strings.TrimRight(baseURL, "/"),
        client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
    }
}

func (b *HTTPServiceBase) BaseURL() string { return b.baseURL }

// PostJSON posts the given payload to `path` under baseURL and decodes JSON into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
    if b == nil || b.client == nil || b.baseURL == "" {
        return fmt.Errorf("analytics http client not initialized")
    }
    err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
        Method: xhttp.MethodPost,
        URL:    b.baseURL + path,
        Headers: map[string]string{
            "Content-Type": "application/json",
        },
        Body: payload,
    }, dest)
    if err != nil {
        return fmt.Errorf("post %s: %w", path, err)
    }
    return nil
}

// PostJSONWithRetry posts JSON up to `attempts` times. Client errors (4xx) are
// returned at once since repeating the same payload cannot succeed.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}, attempts int) error {
    if attempts <= 1 {
        return b.PostJSON(ctx, path, payload, dest)
    }
    var err error
    for i := 1; i <= attempts; i++ {
        err = b.PostJSON(ctx, path, payload, dest)
        if err == nil || IsClientError(err) {
            return err
        }
        if i == attempts {
            break
        }
        select {
        case <-time.After(time.Duration(i) * 50 * time.Millisecond):
        case <-ctx.Done():
            return ctx.Err()
        }
    }
    return err
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
    var se *xhttp.StatusError
    if errors.As(err, &se) {
        return se.Code
    }
    return 0
}

func IsClientError(err error) bool {
    code := StatusCode(err)
    return code >= 400 && code < 500
}
