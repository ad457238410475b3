package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/agentstation/membersync/pkg/errors"
)

// maxErrorBody caps how much of an error response ends up in messages.
const maxErrorBody = 512

// DecodeResponse decodes a JSON response into the target structure and
// closes the body. Any 2xx status is a success; target may be nil.
func DecodeResponse(resp *http.Response, api, endpoint string, target any) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewAPIError(api, endpoint, resp.StatusCode, "reading response body: "+err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewAPIError(api, endpoint, resp.StatusCode, excerpt(body))
	}

	if target == nil || len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", endpoint, err)
	}
	return nil
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
