package manager

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegyost/dictattack/internal/attack"
	"github.com/aegyost/dictattack/internal/digest"
	"github.com/aegyost/dictattack/internal/models"
	"github.com/aegyost/dictattack/internal/store"
	"github.com/aegyost/dictattack/internal/wordlist"
	"github.com/aegyost/dictattack/internal/worker"
)

const (
	md5Password = "5f4dcc3b5aa765d61d8327deb882cf99"
	md5A        = "0cc175b9c0f1b6a831c399e269772661"
)

type submitterFunc func(worker.Job) (*worker.Handle, error)

func (f submitterFunc) Submit(job worker.Job) (*worker.Handle, error) { return f(job) }

type fixture struct {
	mgr   *Manager
	store *store.Memory
	srv   *httptest.Server
}

func newFixture(t *testing.T, provider digest.Provider, timeout time.Duration) *fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "common.txt"), []byte("123456\nqwerty\npassword\n"), 0o600))

	st := store.NewMemory()
	wk := worker.NewWorker(provider, st, nil, worker.Options{BatchSize: 1}, zerolog.Nop())
	mgr := NewManager(wk, provider, st, wordlist.NewDir(dir), timeout, zerolog.Nop())
	srv := httptest.NewServer(mgr.Routes())
	t.Cleanup(func() {
		srv.Close()
		wk.Close()
	})
	return &fixture{mgr: mgr, store: st, srv: srv}
}

func (f *fixture) crack(t *testing.T, body string) (int, models.CrackHashResponse) {
	t.Helper()
	resp, err := http.Post(f.srv.URL+"/api/attack", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out models.CrackHashResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func (f *fixture) status(t *testing.T, id string) (int, models.StatusResponse) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + "/api/attack/status?requestId=" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out models.StatusResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func (f *fixture) waitStatus(t *testing.T, id, want string) models.StatusResponse {
	t.Helper()
	var last models.StatusResponse
	require.Eventually(t, func() bool {
		_, last = f.status(t, id)
		return last.Status == want
	}, 5*time.Second, 5*time.Millisecond)
	return last
}

func (f *fixture) cancel(t *testing.T, id string) int {
	t.Helper()
	resp, err := http.Post(f.srv.URL+"/api/attack/cancel?requestId="+id, "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

// slowHasher delays every digest so runs stay in flight long enough to
// observe and cancel them.
func slowHasher(d time.Duration) digest.Provider {
	h := digest.NewHasher()
	return digest.ProviderFunc(func(c string, alg digest.Algorithm) (string, error) {
		time.Sleep(d)
		return h.Digest(c, alg)
	})
}

func TestCrackInlineCandidates(t *testing.T) {
	f := newFixture(t, digest.NewHasher(), 0)

	code, out := f.crack(t, `{"hash":"`+strings.ToUpper(md5Password)+`","algorithm":"MD5","candidates":["letmein","password","dragon"]}`)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, out.RequestID)
	assert.Equal(t, 3, out.Total)
	assert.NotEmpty(t, out.Estimate)

	st := f.waitStatus(t, out.RequestID, models.StatusReady)
	require.NotNil(t, st.Result)
	assert.Equal(t, "FOUND", st.Result.Outcome)
	assert.True(t, st.Result.Success)
	assert.Equal(t, "password", st.Result.Cracked)
	assert.Equal(t, 2, st.Tested)
	assert.Equal(t, md5Password, st.Result.Target)
	assert.Equal(t, "md5", st.Result.Algorithm)
	assert.NotEmpty(t, st.Result.Rating)
}

func TestCrackNamedWordlist(t *testing.T) {
	f := newFixture(t, digest.NewHasher(), 0)

	code, out := f.crack(t, `{"hash":"`+md5Password+`","wordlist":"common"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3, out.Total)

	st := f.waitStatus(t, out.RequestID, models.StatusReady)
	require.NotNil(t, st.Result)
	assert.Equal(t, "password", st.Result.Cracked)
	assert.InDelta(t, 100.0, st.Percent, 0.001)
}

func TestCrackKeyspace(t *testing.T) {
	f := newFixture(t, digest.NewHasher(), 0)

	code, out := f.crack(t, `{"hash":"`+md5A+`","alphabet":"abc","maxLength":2}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 12, out.Total)

	st := f.waitStatus(t, out.RequestID, models.StatusReady)
	require.NotNil(t, st.Result)
	assert.Equal(t, "a", st.Result.Cracked)
	assert.Equal(t, 1, st.Tested)
}

func TestCrackNotFound(t *testing.T) {
	f := newFixture(t, digest.NewHasher(), 0)

	_, out := f.crack(t, `{"hash":"`+md5Password+`","candidates":["a","b"]}`)
	st := f.waitStatus(t, out.RequestID, models.StatusReady)
	require.NotNil(t, st.Result)
	assert.Equal(t, "NOT_FOUND", st.Result.Outcome)
	assert.False(t, st.Result.Success)
	assert.Equal(t, 2, st.Tested)
}

func TestCrackRejectsBadRequests(t *testing.T) {
	f := newFixture(t, digest.NewHasher(), 0)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"unknown algorithm", `{"hash":"` + md5Password + `","algorithm":"md4","candidates":["a"]}`, http.StatusBadRequest},
		{"bad target", `{"hash":"xyz","candidates":["a"]}`, http.StatusBadRequest},
		{"wrong length for algorithm", `{"hash":"` + md5Password + `","algorithm":"sha256","candidates":["a"]}`, http.StatusBadRequest},
		{"no source", `{"hash":"` + md5Password + `"}`, http.StatusBadRequest},
		{"two sources", `{"hash":"` + md5Password + `","wordlist":"common","candidates":["a"]}`, http.StatusBadRequest},
		{"non-positive max length", `{"hash":"` + md5Password + `","alphabet":"ab","maxLength":-1}`, http.StatusBadRequest},
		{"max length above bound", `{"hash":"` + md5Password + `","alphabet":"a","maxLength":65}`, http.StatusBadRequest},
		{"huge max length", `{"hash":"` + md5Password + `","alphabet":"a","maxLength":1099511627776}`, http.StatusBadRequest},
		{"bad wordlist name", `{"hash":"` + md5Password + `","wordlist":"../etc/passwd"}`, http.StatusBadRequest},
		{"missing wordlist", `{"hash":"` + md5Password + `","wordlist":"nope"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := f.crack(t, tt.body)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestCrackBusy(t *testing.T) {
	mgr := NewManager(submitterFunc(func(worker.Job) (*worker.Handle, error) {
		return nil, worker.ErrBusy
	}), nil, nil, nil, 0, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/attack", strings.NewReader(`{"hash":"`+md5Password+`","candidates":["a"]}`))
	mgr.HandleCrack(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	mgr := NewManager(nil, nil, nil, nil, 0, zerolog.Nop())
	mux := mgr.Routes()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/attack"},
		{http.MethodPost, "/api/attack/status?requestId=x"},
		{http.MethodGet, "/api/attack/cancel?requestId=x"},
		{http.MethodPost, "/api/algorithms"},
		{http.MethodPost, "/api/wordlists"},
		{http.MethodPost, "/api/estimate?size=1"},
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, tc.path)
	}
}

func TestStatusLookup(t *testing.T) {
	f := newFixture(t, digest.NewHasher(), 0)

	code, _ := f.status(t, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.status(t, "unknown")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStatusFallsBackToStore(t *testing.T) {
	f := newFixture(t, digest.NewHasher(), 0)
	require.NoError(t, f.store.Save(context.Background(), store.Record{
		RequestID: "old",
		Outcome:   attack.OutcomeFound.String(),
		Success:   true,
		Cracked:   "password",
		Tested:    500,
		Total:     1000,
		Elapsed:   2 * time.Second,
		Target:    md5Password,
		Algorithm: "md5",
		PeakRate:  300,
	}))

	code, st := f.status(t, "old")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.StatusReady, st.Status)
	assert.Equal(t, 500, st.Tested)
	assert.InDelta(t, 250.0, st.Rate, 0.001)
	assert.InDelta(t, 300.0, st.PeakRate, 0.001)
	assert.InDelta(t, 50.0, st.Percent, 0.001)
	require.NotNil(t, st.Result)
	assert.Equal(t, "password", st.Result.Cracked)
	assert.InDelta(t, 2.0, st.Result.ElapsedSeconds, 0.001)

	assert.Equal(t, http.StatusAccepted, f.cancel(t, "old"))
}

func TestStatusOfFailedRecord(t *testing.T) {
	f := newFixture(t, digest.NewHasher(), 0)
	require.NoError(t, f.store.Save(context.Background(), store.Record{
		RequestID: "bad",
		Outcome:   attack.OutcomeFailed.String(),
		Algorithm: "sha256",
		Error:     "digest provider failed: boom",
	}))

	_, st := f.status(t, "bad")
	assert.Equal(t, models.StatusError, st.Status)
	assert.Equal(t, "digest provider failed: boom", st.Error)
	assert.Zero(t, st.Rate)
}

func TestCancelRunningAttack(t *testing.T) {
	f := newFixture(t, slowHasher(time.Millisecond), 0)

	candidates := make([]string, 5000)
	for i := range candidates {
		candidates[i] = "x"
	}
	body, err := json.Marshal(models.CrackHashRequest{Hash: md5Password, Candidates: candidates})
	require.NoError(t, err)

	code, out := f.crack(t, string(body))
	require.Equal(t, http.StatusOK, code)

	_, st := f.status(t, out.RequestID)
	assert.Equal(t, models.StatusInProgress, st.Status)
	assert.Equal(t, 5000, st.Total)

	assert.Equal(t, http.StatusAccepted, f.cancel(t, out.RequestID))
	assert.Equal(t, http.StatusAccepted, f.cancel(t, out.RequestID))

	st = f.waitStatus(t, out.RequestID, models.StatusCancelled)
	require.NotNil(t, st.Result)
	assert.Equal(t, "CANCELLED", st.Result.Outcome)
	assert.False(t, st.TimedOut)
	assert.Less(t, st.Tested, 5000)

	assert.Equal(t, http.StatusAccepted, f.cancel(t, out.RequestID))
	assert.Equal(t, http.StatusNotFound, f.cancel(t, "unknown"))
	assert.Equal(t, http.StatusBadRequest, f.cancel(t, ""))
}

func TestRequestTimeout(t *testing.T) {
	f := newFixture(t, slowHasher(time.Millisecond), 20*time.Millisecond)

	candidates := make([]string, 5000)
	for i := range candidates {
		candidates[i] = "x"
	}
	body, err := json.Marshal(models.CrackHashRequest{Hash: md5Password, Candidates: candidates})
	require.NoError(t, err)

	_, out := f.crack(t, string(body))
	st := f.waitStatus(t, out.RequestID, models.StatusCancelled)
	assert.True(t, st.TimedOut)
	assert.Less(t, st.Tested, 5000)

	// once released, the stored record still carries the timeout
	require.Eventually(t, func() bool { return f.mgr.Active() == 0 }, 5*time.Second, 5*time.Millisecond)
	code, st := f.status(t, out.RequestID)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.StatusCancelled, st.Status)
	assert.True(t, st.TimedOut)

	rec, err := f.store.Get(context.Background(), out.RequestID)
	require.NoError(t, err)
	assert.True(t, rec.TimedOut)
}

func TestFinishedRequestsAreReleased(t *testing.T) {
	f := newFixture(t, digest.NewHasher(), time.Minute)

	for i := 0; i < 10; i++ {
		code, _ := f.crack(t, `{"hash":"`+md5Password+`","candidates":["a","password"]}`)
		require.Equal(t, http.StatusOK, code)
	}
	require.Eventually(t, func() bool { return f.mgr.Active() == 0 }, 5*time.Second, 5*time.Millisecond)

	_, out := f.crack(t, `{"hash":"`+md5Password+`","candidates":["password"]}`)
	require.Eventually(t, func() bool { return f.mgr.Active() == 0 }, 5*time.Second, 5*time.Millisecond)

	code, st := f.status(t, out.RequestID)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.StatusReady, st.Status)
	assert.False(t, st.TimedOut)
	require.NotNil(t, st.Result)
	assert.Equal(t, "password", st.Result.Cracked)
}

func TestAlgorithms(t *testing.T) {
	f := newFixture(t, digest.NewHasher(), 0)

	resp, err := http.Get(f.srv.URL + "/api/algorithms")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out []models.AlgorithmInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, len(digest.Algorithms()))
	assert.Equal(t, "md5", out[0].ID)
	assert.Equal(t, 32, out[0].HexLength)
	assert.False(t, out[0].Secure)
}

func TestWordlists(t *testing.T) {
	f := newFixture(t, digest.NewHasher(), 0)

	resp, err := http.Get(f.srv.URL + "/api/wordlists")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"common"}, out)
}

func TestEstimate(t *testing.T) {
	f := newFixture(t, digest.NewHasher(), 0)

	resp, err := http.Get(f.srv.URL + "/api/estimate?size=100000&algorithm=md5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.EstimateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "md5", out.Algorithm)
	assert.InDelta(t, 2.0, out.Seconds, 0.001)
	assert.Equal(t, "2.0s", out.Formatted)

	assert.Nil(t, out.Coverage)

	resp2, err := http.Get(f.srv.URL + "/api/estimate?size=3&alphabet=ab&maxLength=2")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var cov models.EstimateResponse
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&cov))
	require.NotNil(t, cov.Coverage)
	assert.InDelta(t, 50.0, *cov.Coverage, 1e-9)

	resp3, err := http.Get(f.srv.URL + "/api/estimate?size=1&alphabet=a&maxLength=64")
	require.NoError(t, err)
	defer resp3.Body.Close()
	var single models.EstimateResponse
	require.NoError(t, json.NewDecoder(resp3.Body).Decode(&single))
	require.NotNil(t, single.Coverage)
	assert.InDelta(t, 100.0/64, *single.Coverage, 1e-9)

	for _, q := range []string{
		"size=-1", "size=abc", "size=10&algorithm=rot13",
		"size=1&maxLength=0", "size=1&maxLength=x",
		"size=1&alphabet=a&maxLength=65", "size=1&alphabet=a&maxLength=1099511627776",
	} {
		resp, err := http.Get(f.srv.URL + "/api/estimate?" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestEstimateMeasured(t *testing.T) {
	f := newFixture(t, slowHasher(100*time.Microsecond), 0)
	f.mgr.BenchmarkIterations = 20

	resp, err := http.Get(f.srv.URL + "/api/estimate?size=1000&algorithm=sha1&measure=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.EstimateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Measured)
	assert.Equal(t, "sha1", out.Algorithm)
	assert.Greater(t, out.Rate, 0.0)
	assert.Less(t, out.Rate, 10000.0)
	assert.InDelta(t, 1000/out.Rate, out.Seconds, 1e-6)
	assert.Equal(t, "Below Average", out.Rating)
}

func TestEstimateMeasureFailure(t *testing.T) {
	failing := digest.ProviderFunc(func(string, digest.Algorithm) (string, error) {
		return "", errors.New("backend unavailable")
	})
	f := newFixture(t, failing, 0)

	resp, err := http.Get(f.srv.URL + "/api/estimate?size=10&measure=true")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
