package api

import (
	"bytes"
	"net/http"
	"testing"

	"waitline/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, config.APIConfig{})
	handler := srv.Handler()

	addCustomer(t, handler, 1, "Ann", "555-0101")
	addCustomer(t, handler, 1, "Bob", "555-0102")
	addCustomer(t, handler, 2, "Other", "555-0103")

	rec := doJSON(t, handler, http.MethodGet, "/admin/export?shop_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Queue")
	require.NoError(t, err)
	// Header plus the two entries of shop 1.
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])

	names := []string{rows[1][1], rows[2][1]}
	assert.ElementsMatch(t, []string{"Ann", "Bob"}, names)
}

func TestExportRequiresShopID(t *testing.T) {
	srv, _ := newTestServer(t, config.APIConfig{})
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/admin/export", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/admin/export?shop_id=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, config.APIConfig{})
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/admin/export?shop_id=1", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
