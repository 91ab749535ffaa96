package regclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

// TagList is the decoded {name, tags[]} response body.
type TagList struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// ListTags fetches an application's tag list, optionally paginated.
func (c *Client) ListTags(ctx context.Context, app string, n *int, last string) (*TagList, error) {
	u, err := c.buildURL(app, "tags", "list")
	if err != nil {
		return nil, err
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ocierrors.ErrURLParsing, err)
	}
	q := parsed.Query()
	if n != nil {
		q.Set("n", strconv.Itoa(*n))
	}
	if last != "" {
		q.Set("last", last)
	}
	parsed.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, parsed.String(), "application/json")
	if err != nil {
		return nil, err
	}
	b, err := verifyJSONBody(resp)
	if err != nil {
		return nil, err
	}

	var list TagList
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ocierrors.ErrJSONParse, err)
	}
	return &list, nil
}
