package collect

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubone-exporter/pkg/hubone"
	"hubone-exporter/pkg/statuspage"
)

const goodPage = `<html><head><script>wait = 120;</script></head><body><table>
<tr><td>3. Firmware version:</td><td>Software version 4.7.5.1.83.8.204 Last updated 09/01/22</td></tr>
<tr><td>6. Data rate:</td><td>9999 / 39999</td></tr>
<tr><td>7. Maximum data rate:</td><td>10955 / 42308</td></tr>
<tr><td>8. Noise margin:</td><td>5.9 / 6.3</td></tr>
<tr><td>9. Line attenuation:</td><td>21.5 / 19.2</td></tr>
<tr><td>10. Signal attenuation:</td><td>21.1 / 18.9</td></tr>
<tr><td>11. Data sent/received:</td><td>5.3 GB / 61.9 GB</td></tr>
</table></body></html>`

const expiredPage = `<html><body>This page is password protected.</body></html>`

// ---- fakes ----

type pageResult struct {
	body string
	err  error
}

type fakeSource struct {
	loginErr error
	logins   int

	pages   []pageResult
	fetches int
}

func (f *fakeSource) Login(context.Context) error {
	f.logins++
	return f.loginErr
}

func (f *fakeSource) StatusPage(context.Context) (string, error) {
	i := f.fetches
	if i >= len(f.pages) {
		i = len(f.pages) - 1
	}
	f.fetches++
	return f.pages[i].body, f.pages[i].err
}

type write struct {
	measurement string
	at          time.Time
	fields      map[string]interface{}
}

type fakeSink struct {
	writes []write
	err    error
}

func (f *fakeSink) WritePoint(measurement string, at time.Time, fields map[string]interface{}) error {
	f.writes = append(f.writes, write{measurement, at, fields})
	return f.err
}

// ---- tests ----

func TestCollectOnceLogsInFirst(t *testing.T) {
	source := &fakeSource{pages: []pageResult{{body: goodPage}}}
	c := New(source, &fakeSink{}, time.Second)

	rec, err := c.CollectOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, source.logins)
	assert.Equal(t, int64(5_300_000_000), rec.TotalTX)
	assert.Equal(t, int64(61_900_000_000), rec.TotalRX)
}

func TestCollectOnceReusesSession(t *testing.T) {
	source := &fakeSource{pages: []pageResult{{body: goodPage}}}
	c := New(source, &fakeSink{}, time.Second)

	_, err := c.CollectOnce(context.Background())
	require.NoError(t, err)
	_, err = c.CollectOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, source.logins, "a valid session should not trigger another login")
}

func TestCollectOnceReloginOnExpiry(t *testing.T) {
	source := &fakeSource{pages: []pageResult{
		{body: expiredPage},
		{body: goodPage},
	}}
	c := New(source, &fakeSink{}, time.Second)

	rec, err := c.CollectOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, source.logins, "exactly one re-login after the expiry signal")
	assert.Equal(t, 2, source.fetches)
	assert.NotNil(t, rec)
}

func TestCollectOnceRetryIsBounded(t *testing.T) {
	source := &fakeSource{pages: []pageResult{
		{body: expiredPage},
		{body: expiredPage},
	}}
	c := New(source, &fakeSink{}, time.Second)

	_, err := c.CollectOnce(context.Background())
	require.Error(t, err)

	assert.True(t, errors.Is(err, statuspage.ErrSessionExpired))
	assert.Equal(t, 2, source.logins)
	assert.Equal(t, 2, source.fetches, "no further fetches after the bounded retry")
}

func TestRunContinuesAfterCycleError(t *testing.T) {
	source := &fakeSource{pages: []pageResult{
		{err: errors.New("connection timed out")},
		{body: goodPage},
	}}
	sink := &fakeSink{}
	c := New(source, sink, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, c.Run(ctx))

	require.NotEmpty(t, sink.writes, "the tick after a failed cycle should still collect")
	assert.Equal(t, Measurement, sink.writes[0].measurement)
	assert.Equal(t, int64(5_300_000_000), sink.writes[0].fields["total_tx"])
	assert.GreaterOrEqual(t, source.fetches, 2)
}

func TestRunSessionLimitIsFatal(t *testing.T) {
	source := &fakeSource{
		loginErr: hubone.ErrSessionLimit,
		pages:    []pageResult{{body: goodPage}},
	}
	sink := &fakeSink{}
	c := New(source, sink, 10*time.Millisecond)

	err := c.Run(context.Background())
	require.Error(t, err)

	assert.True(t, errors.Is(err, hubone.ErrSessionLimit))
	assert.Equal(t, 1, source.logins, "no further cycles after a session-limit refusal")
	assert.Empty(t, sink.writes)
}

func TestRunStopsOnCancel(t *testing.T) {
	source := &fakeSource{pages: []pageResult{{body: goodPage}}}
	c := New(source, &fakeSink{}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, c.Run(ctx))
}
