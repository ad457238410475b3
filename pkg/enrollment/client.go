package enrollment

import (
	"context"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/agentstation/membersync/internal/transport"
	"github.com/agentstation/membersync/pkg/constants"
	"github.com/agentstation/membersync/pkg/errors"
	"github.com/agentstation/membersync/pkg/logging"
)

const pathMembers = "members"

// Page is one page of the member list.
type Page struct {
	Number  int
	Records []Record
}

// Source is anything that can list enrolled members.
type Source interface {
	Pages(ctx context.Context, now time.Time) iter.Seq2[Page, error]
}

// Client reads the ERP member list.
type Client struct {
	http     *transport.Client
	pageSize int
}

var _ Source = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithPageSize sets how many members are requested per page.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// NewClient creates a client for the ERP API at baseURL, authenticating
// with key passed as the keyParam query parameter.
func NewClient(baseURL, keyParam, key string, transportOpts []transport.Option, opts ...ClientOption) (*Client, error) {
	if keyParam == "" {
		keyParam = constants.DefaultERPKeyParam
	}
	transportOpts = append(transportOpts, transport.WithAuthenticator(&transport.QueryAuth{Param: keyParam, Key: key}))
	hc, err := transport.New("enrollment", baseURL, transportOpts...)
	if err != nil {
		return nil, err
	}

	c := &Client{http: hc, pageSize: constants.DefaultPageSize}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Page fetches one page. It returns errors.ErrEndOfPages when the ERP has
// no members at that page (a 404 or an empty list), and a *errors.FetchError
// for any other failure.
func (c *Client) Page(ctx context.Context, number int, now time.Time) (Page, error) {
	query := url.Values{
		"limit":     {strconv.Itoa(c.pageSize)},
		"page":      {strconv.Itoa(number)},
		"sortfield": {"t.rowid"},
		"sortorder": {"ASC"},
	}

	var members []memberDTO
	err := c.http.Do(ctx, http.MethodGet, pathMembers, query, nil, &members)
	if err != nil {
		var apiErr *errors.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return Page{Number: number}, errors.ErrEndOfPages
		}
		return Page{Number: number}, errors.NewPageFetchError("enrollment members", number, err)
	}
	if len(members) == 0 {
		return Page{Number: number}, errors.ErrEndOfPages
	}

	page := Page{Number: number, Records: make([]Record, 0, len(members))}
	for _, m := range members {
		page.Records = append(page.Records, m.toRecord(now))
	}
	return page, nil
}

// Pages yields pages in order starting at page 0, and stops after the
// end of the list. A failed page is yielded once as an error and ends the
// sequence; it is never mistaken for the end of the list.
func (c *Client) Pages(ctx context.Context, now time.Time) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		log := logging.FromContext(ctx)
		for number := 0; number < constants.MaxPages; number++ {
			page, err := c.Page(ctx, number, now)
			if errors.IsEndOfPages(err) {
				log.Debug().Int("page", number).Msg("End of enrollment pages")
				return
			}
			if err != nil {
				yield(page, err)
				return
			}
			log.Debug().Int("page", number).Int("records", len(page.Records)).Msg("Enrollment page fetched")
			if !yield(page, nil) {
				return
			}
		}
		yield(Page{Number: constants.MaxPages}, errors.NewPageFetchError("enrollment members", constants.MaxPages,
			errors.New("page limit reached before the end of the list")))
	}
}

// Collect concatenates every page of src in page order.
func Collect(ctx context.Context, src Source, now time.Time) ([]Record, error) {
	var records []Record
	for page, err := range src.Pages(ctx, now) {
		if err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
	}
	return records, nil
}
