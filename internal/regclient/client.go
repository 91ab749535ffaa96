package regclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/islet-oci/imagereg/internal/ociref"
	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

// Client is the blocking OCI Distribution pull client. It is safe to share
// across goroutines; the underlying http.Client pools connections.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	base, err := cfg.resolvedHost()
	if err != nil {
		return nil, err
	}
	return &Client{baseURL: base, http: cfg.httpClient()}, nil
}

func (c *Client) buildURL(parts ...string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ocierrors.ErrURLParsing, err)
	}
	segments := append([]string{"v2"}, parts...)
	for _, s := range segments {
		u.Path = u.Path + "/" + url.PathEscape(s)
	}
	return u.String(), nil
}

// doRequest issues a GET against urlStr with the given Accept value and
// maps transport failures to ErrConnection, non-2xx responses to
// StatusError.
func (c *Client) doRequest(ctx context.Context, urlStr, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ocierrors.ErrURLParsing, err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ocierrors.ErrConnection, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &ocierrors.StatusError{Code: resp.StatusCode}
	}

	return resp, nil
}

// verifyJSONBody reads resp's body fully and enforces the Content-Length
// and Docker-Content-Digest checks before the caller
// unmarshals it. A Content-Type/mediaType mismatch is tolerated as a
// warning, never an error.
func verifyJSONBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ocierrors.ErrConnection, err)
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil || n != len(b) {
			return nil, ocierrors.ErrResponseLengthInvalid
		}
	}

	if dgst := resp.Header.Get("Docker-Content-Digest"); dgst != "" {
		d, err := ociref.ParseDigest(dgst)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ocierrors.ErrResponseDigestInvalid, err)
		}
		ok, err := ociref.Verify(d, b)
		if err != nil || !ok {
			return nil, ocierrors.ErrResponseDigestInvalid
		}
	}

	return b, nil
}
