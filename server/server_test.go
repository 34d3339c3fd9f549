package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cnpjscraper/logger"
	"cnpjscraper/record"
)

func newTestServer(t *testing.T) (*httptest.Server, *record.Store) {
	t.Helper()
	store := record.NewStore(filepath.Join(t.TempDir(), "CNPJ_extraidos"))
	ts := httptest.NewServer(New(store, logger.NewNop()).Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/health", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestListRecords(t *testing.T) {
	ts, store := newTestServer(t)

	var body map[string][]string
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/records", &body))
	assert.Empty(t, body["records"])

	_, err := store.Save("24276421000108", record.Record{"UF": "SP"})
	require.NoError(t, err)
	_, err = store.Save("11222333000181", record.Record{"UF": "RJ"})
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/records", &body))
	assert.Equal(t, []string{"11222333000181", "24276421000108"}, body["records"])
}

func TestGetRecord(t *testing.T) {
	ts, store := newTestServer(t)
	rec := record.Record{"NOME EMPRESARIAL": "EMPRESA EXEMPLO LTDA", "UF": "SP"}
	_, err := store.Save("24276421000108", rec)
	require.NoError(t, err)

	var got record.Record
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/records/24276421000108", &got))
	assert.Equal(t, rec, got)
}

func TestGetRecord_FormattedIdentifier(t *testing.T) {
	ts, store := newTestServer(t)
	_, err := store.Save("24276421000108", record.Record{"UF": "SP"})
	require.NoError(t, err)

	var got record.Record
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/records/24.276.421%2F0001-08", &got))
	assert.Equal(t, "SP", got["UF"])
}

func TestGetRecord_NotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/records/24276421000108", nil))
}

func TestGetRecord_NoDigits(t *testing.T) {
	ts, _ := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/records/abc", nil))
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Post(ts.URL+"/records", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRun_StopsWhenContextIsCancelled(t *testing.T) {
	srv := New(record.NewStore(t.TempDir()), logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRun_ReturnsListenError(t *testing.T) {
	srv := New(record.NewStore(t.TempDir()), logger.NewNop())
	err := srv.Run(context.Background(), "127.0.0.1:-1")
	assert.Error(t, err)
}
