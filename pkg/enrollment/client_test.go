package enrollment_test

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/membersync/pkg/enrollment"
	"github.com/agentstation/membersync/pkg/enrollment/enrollmenttest"
	"github.com/agentstation/membersync/pkg/errors"
)

var now = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func members(n int) []enrollmenttest.Member {
	out := make([]enrollmenttest.Member, 0, n)
	for i := range n {
		out = append(out, enrollmenttest.Member{
			ID:               strconv.Itoa(i + 1),
			FirstName:        "First" + strconv.Itoa(i),
			LastName:         "Last" + strconv.Itoa(i),
			Email:            "m" + strconv.Itoa(i) + "@x.edu",
			DateEnd:          now.Add(time.Hour).Unix(),
			NeedSubscription: "1",
			ArrayOptions:     enrollmenttest.ArrayOptions{Student: strconv.Itoa(1000 + i)},
		})
	}
	return out
}

func newClient(t *testing.T, srv *enrollmenttest.Server, pageSize int) *enrollment.Client {
	t.Helper()
	c, err := enrollment.NewClient(srv.URL(), srv.KeyParam, srv.Key, nil, enrollment.WithPageSize(pageSize))
	require.NoError(t, err)
	return c
}

func TestCollectAllPagesNotFoundTerminated(t *testing.T) {
	srv := enrollmenttest.NewServer("DOLAPIKEY", "secret", members(5)...)
	defer srv.Close()

	records, err := enrollment.Collect(context.Background(), newClient(t, srv, 2), now)
	require.NoError(t, err)

	require.Len(t, records, 5)
	for i, r := range records {
		assert.Equal(t, strconv.Itoa(1000+i), r.ExternalID, "page order is preserved")
		assert.True(t, r.Contributor)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, srv.RequestedPages())
}

func TestCollectEmptyPageTerminated(t *testing.T) {
	srv := enrollmenttest.NewServer("DOLAPIKEY", "secret", members(4)...)
	defer srv.Close()
	srv.EmptyPageAtEnd = true

	records, err := enrollment.Collect(context.Background(), newClient(t, srv, 2), now)
	require.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Equal(t, []int{0, 1, 2}, srv.RequestedPages())
}

func TestCollectNoMembers(t *testing.T) {
	srv := enrollmenttest.NewServer("DOLAPIKEY", "secret")
	defer srv.Close()

	records, err := enrollment.Collect(context.Background(), newClient(t, srv, 100), now)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCollectFailedPageIsNotEndOfStream(t *testing.T) {
	srv := enrollmenttest.NewServer("DOLAPIKEY", "secret", members(6)...)
	defer srv.Close()
	srv.FailPage(1, http.StatusInternalServerError)

	records, err := enrollment.Collect(context.Background(), newClient(t, srv, 2), now)
	require.Error(t, err)
	assert.Nil(t, records)

	var fetchErr *errors.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 1, fetchErr.Page)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
	assert.True(t, errors.IsRetryable(err))
	assert.False(t, errors.IsEndOfPages(err))
}

func TestCollectWrongKey(t *testing.T) {
	srv := enrollmenttest.NewServer("DOLAPIKEY", "secret", members(1)...)
	defer srv.Close()

	c, err := enrollment.NewClient(srv.URL(), "DOLAPIKEY", "wrong", nil)
	require.NoError(t, err)

	_, err = enrollment.Collect(context.Background(), c, now)
	assert.ErrorIs(t, err, errors.ErrFetch)
}

func TestCustomKeyParam(t *testing.T) {
	srv := enrollmenttest.NewServer("api_key", "k", members(1)...)
	defer srv.Close()

	records, err := enrollment.Collect(context.Background(), newClient(t, srv, 10), now)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestPagesStopsWhenConsumerStops(t *testing.T) {
	srv := enrollmenttest.NewServer("DOLAPIKEY", "secret", members(10)...)
	defer srv.Close()

	c := newClient(t, srv, 2)
	for page, err := range c.Pages(context.Background(), now) {
		require.NoError(t, err)
		assert.Equal(t, 0, page.Number)
		break
	}
	assert.Equal(t, []int{0}, srv.RequestedPages())
}

func TestPageEndOfPages(t *testing.T) {
	srv := enrollmenttest.NewServer("DOLAPIKEY", "secret", members(1)...)
	defer srv.Close()

	_, err := newClient(t, srv, 10).Page(context.Background(), 3, now)
	assert.True(t, errors.IsEndOfPages(err))
}

func TestCollectExpiredMembers(t *testing.T) {
	m := members(2)
	m[0].DateEnd = now.Add(-time.Hour).Unix()
	m[1].DateEnd = ""
	m[1].NeedSubscription = 0
	srv := enrollmenttest.NewServer("DOLAPIKEY", "secret", m...)
	defer srv.Close()

	records, err := enrollment.Collect(context.Background(), newClient(t, srv, 10), now)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.False(t, records[0].Contributor)
	assert.True(t, records[1].Contributor)
}
