package worker

import (
	"context"
	"io"
	"net/http"

	"github.com/openkaraoke/studio/errors"
	"github.com/openkaraoke/studio/internal/httpclient"
)

// fetchBytes downloads one resource, capped at 16MB.
func fetchBytes(ctx context.Context, client *httpclient.SaferClient, resourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resourceURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrNetworkFailure, "fetch %s: %v", resourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrNetworkFailure,
			"fetch %s returned %d", resourceURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, errors.Wrap(errors.ErrNetworkFailure, "read response body")
	}
	return data, nil
}
