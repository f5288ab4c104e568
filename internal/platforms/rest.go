package platforms

import (
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// apiError renders a non-2xx response as "<what>: <status> <body>".
func apiError(what string, resp *resty.Response) error {
	return fmt.Errorf("%s: %d %s", what, resp.StatusCode(), strings.TrimSpace(resp.String()))
}

// check folds a transport error and a non-2xx status into one error.
func check(what string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if resp.IsError() {
		return apiError(what, resp)
	}
	return nil
}
