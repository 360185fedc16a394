package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workgenio/internal/core/apperror"
	"workgenio/internal/domain/integrity"
	"workgenio/internal/domain/numbering"
	v1 "workgenio/internal/infrastructure/http/v1"
	"workgenio/internal/infrastructure/http/v1/dto"
	"workgenio/internal/infrastructure/metrics"
	"workgenio/internal/infrastructure/storage/memory"
	"workgenio/pkg/logger"
)

type server struct {
	router http.Handler
	store  *memory.Store
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New(integrity.Schema())
	registry, err := integrity.NewRegistry()
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	router := v1.NewRouter(v1.RouterConfig{
		Logger:    logger.NewNop(),
		DB:        store,
		Driver:    "memory",
		Numbering: numbering.NewService(store, store).WithMetrics(m),
		Guard:     integrity.NewGuard(registry, store, store).WithMetrics(m),
		Purger:    integrity.NewPurger(registry, store, store).WithMetrics(m),
		Gatherer:  reg,
	})
	return &server{router: router, store: store}
}

func (s *server) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *server) insert(t *testing.T, table string, row memory.Row) int64 {
	t.Helper()
	id, err := s.store.Insert(context.Background(), table, row)
	require.NoError(t, err)
	return id
}

func TestInvoiceSequenceRoutes(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/sequences/invoices/2024/next", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "2024/0001", decode[dto.InvoiceNumberResponse](t, w).Number)

	w = s.do(t, http.MethodPost, "/api/v1/sequences/invoices/2024/next", "")
	assert.Equal(t, "2024/0002", decode[dto.InvoiceNumberResponse](t, w).Number)

	w = s.do(t, http.MethodGet, "/api/v1/sequences/invoices/2024", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.CounterResponse{Year: 2024, LastNumber: 2, Next: "2024/0003"}, decode[dto.CounterResponse](t, w))

	for range 2 {
		w = s.do(t, http.MethodGet, "/api/v1/sequences/invoices/2024/next", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "2024/0003", decode[dto.InvoiceNumberResponse](t, w).Number)
	}

	w = s.do(t, http.MethodPut, "/api/v1/sequences/invoices/2025", `{"last_number": 99}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "2025/0100", decode[dto.CounterResponse](t, w).Next)

	w = s.do(t, http.MethodPut, "/api/v1/sequences/invoices/2025", `{"last_number": 1}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeConflict, decode[dto.ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodPut, "/api/v1/sequences/invoices/2025", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/sequences/invoices", "")
	list := decode[dto.CounterListResponse](t, w)
	require.Len(t, list.Items, 2)
	assert.Equal(t, 2024, list.Items[0].Year)
	assert.Equal(t, 2025, list.Items[1].Year)
}

func TestInvoiceSequence_InvalidYear(t *testing.T) {
	s := newServer(t)

	for _, year := range []string{"0", "-1", "abc"} {
		w := s.do(t, http.MethodPost, "/api/v1/sequences/invoices/"+year+"/next", "")
		assert.Equal(t, http.StatusBadRequest, w.Code, year)
		assert.Equal(t, apperror.CodeValidation, decode[dto.ErrorResponse](t, w).Code)
	}
}

func TestInvoiceSequence_Exhausted(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPut, "/api/v1/sequences/invoices/2024", `{"last_number": 9223372036854775807}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decode[dto.CounterResponse](t, w).Next)

	w = s.do(t, http.MethodPost, "/api/v1/sequences/invoices/2024/next", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeConflict, decode[dto.ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodGet, "/api/v1/sequences/invoices/2024", "")
	assert.Equal(t, int64(9223372036854775807), decode[dto.CounterResponse](t, w).LastNumber)
}

func TestInvoiceSequence_StorageUnavailable(t *testing.T) {
	s := newServer(t)
	s.store.FailOn(integrity.TableInvoiceSequence, apperror.NewTransientStorage("save counter", errors.New("timeout")))

	w := s.do(t, http.MethodPost, "/api/v1/sequences/invoices/2024/next", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, apperror.CodeTransientStorage, decode[dto.ErrorResponse](t, w).Code)
}

func TestEntityRoutes(t *testing.T) {
	s := newServer(t)
	customer := s.insert(t, integrity.TableCustomers, memory.Row{"ragione_sociale": "Rossi"})
	order := s.insert(t, integrity.TableOrders, memory.Row{"cliente_id": customer})
	product := s.insert(t, integrity.TableProducts, memory.Row{"codice": "P1"})
	s.insert(t, integrity.TableOrderLines, memory.Row{"ordine_id": order, "prodotto_id": product})

	w := s.do(t, http.MethodGet, "/api/v1/entities/customer/1/dependents", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[dto.DependentsResponse](t, w)
	assert.True(t, report.HasDependents)
	assert.Equal(t, map[string]bool{"orders": true, "invoices": false}, report.Dependents)
	assert.Equal(t, int64(1), report.Counts["orders"])

	w = s.do(t, http.MethodDelete, "/api/v1/entities/customer/1", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeHasDependents, decode[dto.ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodPost, "/api/v1/entities/customer/1/purge", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeConfirmationRequired, decode[dto.ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodPost, "/api/v1/entities/customer/1/purge", `{"confirmed": true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	purge := decode[dto.PurgeResponse](t, w)
	assert.Equal(t, int64(3), purge.RowsAffected)

	w = s.do(t, http.MethodGet, "/api/v1/entities/customer/1/dependents", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The product lost its only order line and can now be deleted plainly.
	w = s.do(t, http.MethodDelete, "/api/v1/entities/product/1", "")
	assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
}

func TestEntityRoutes_BadInput(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/entities/warehouse/1/dependents", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/entities/product/zero/dependents", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/entities/product/1/purge", `{"confirmed": "yes"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, decode[dto.ErrorResponse](t, w).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)

	s.do(t, http.MethodPost, "/api/v1/sequences/invoices/2024/next", "")
	w = s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `workgenio_invoice_numbers_total{outcome="ok"} 1`), w.Body.String())
}

func TestRequestIDHeader(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
}

func TestErrorBodyCarriesRequestID(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sequences/invoices/0/next", nil)
	req.Header.Set("X-Request-ID", "req-7")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "req-7", decode[dto.ErrorResponse](t, w).RequestID)

	w = s.do(t, http.MethodGet, "/api/v1/entities/customer/9/dependents", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	body := decode[dto.ErrorResponse](t, w)
	assert.NotEmpty(t, body.RequestID)
	assert.Equal(t, w.Header().Get("X-Request-ID"), body.RequestID)
}
