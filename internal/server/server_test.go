// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/troupe-dev/troupe/internal/command"
	"github.com/troupe-dev/troupe/internal/journal"
	"github.com/troupe-dev/troupe/internal/observability"
	"github.com/troupe-dev/troupe/internal/server"
	"github.com/troupe-dev/troupe/pkg/contract"
	"github.com/troupe-dev/troupe/pkg/troupe"
)

var chargeContract = contract.MustDefine("charge", func(c *contract.Contract) {
	c.Expects("amount")
	c.Permits("currency").DefaultValue("USD")
	c.Provides("receipt")
})

func chargeBody(_ context.Context, inv *contract.Invocation) error {
	amount, err := contract.Value[int](inv, "amount")
	if err != nil {
		return err
	}
	if amount < 0 {
		return inv.Fail("amount must not be negative")
	}
	currency, err := contract.Value[string](inv, "currency")
	if err != nil {
		return err
	}
	return inv.Set("receipt", map[string]any{"amount": amount, "currency": currency})
}

type fixture struct {
	handler http.Handler
	journal *journal.Memory
	metrics *observability.Metrics
}

func newFixture(t *testing.T, dopts ...command.DispatcherOption) fixture {
	t.Helper()
	reg := command.NewRegistry()
	require.NoError(t, reg.Register(command.Entry{
		Name:   "charge",
		Source: "test",
		Help:   "Charge an account",
		New:    func() troupe.Command { return troupe.NewCommand(chargeContract, chargeBody) },
	}))

	mem := journal.NewMemory(10)
	d, err := command.NewDispatcher(reg, append([]command.DispatcherOption{command.WithJournal(mem)}, dopts...)...)
	require.NoError(t, err)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	s, err := server.New("127.0.0.1:0", d, server.WithJournal(mem), server.WithMetrics(metrics))
	require.NoError(t, err)
	return fixture{handler: s.Handler(), journal: mem, metrics: metrics}
}

func (f fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(server.CallerHeader, "ada")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestNew_NilDispatcher(t *testing.T) {
	_, err := server.New(":0", nil)
	assert.ErrorIs(t, err, server.ErrNilDispatcher)
}

func TestRun_Success(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/commands/charge", `{"input": {"amount": 42}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[server.RunResponse](t, rec)
	assert.Equal(t, "charge", resp.Command)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.InvocationID)
	assert.Equal(t, map[string]any{"amount": float64(42), "currency": "USD"}, resp.Context["receipt"])

	records, err := f.journal.List(context.Background(), "charge", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, resp.InvocationID, records[0].ID.String())
	assert.Equal(t, "ada", records[0].Caller)

	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("run", "200")), 0)
}

func TestRun_BodyCallerWins(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/commands/charge", `{"caller": "bob", "input": {"amount": 1}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	records, err := f.journal.List(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "bob", records[0].Caller)
}

func TestRun_Failure(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/commands/charge", `{"input": {"amount": -5}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[server.RunResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "amount must not be negative", resp.Reason)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		opts     []command.DispatcherOption
		status   int
		code     string
		property string
	}{
		{"violation", "/v1/commands/charge", `{}`, nil, http.StatusUnprocessableEntity, contract.CodeContractViolation, "amount"},
		{"empty body", "/v1/commands/charge", ``, nil, http.StatusUnprocessableEntity, contract.CodeContractViolation, "amount"},
		{"unknown command", "/v1/commands/refund", `{}`, nil, http.StatusNotFound, command.CodeUnknownCommand, ""},
		{"bad json", "/v1/commands/charge", `{"input":`, nil, http.StatusBadRequest, command.CodeInvalidArgs, ""},
		{
			"undeclared input", "/v1/commands/charge", `{"input": {"amount": 1, "tip": 2}}`,
			[]command.DispatcherOption{command.WithUndeclaredPolicy(command.PolicyReject)},
			http.StatusBadRequest, command.CodeUndeclaredProperty, "",
		},
		{"wrong type", "/v1/commands/charge", `{"input": {"amount": "ten"}}`, nil, http.StatusInternalServerError, contract.CodeTypeMismatch, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.opts...)

			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code)

			resp := decode[server.ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.property, resp.Property)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestRun_RateLimited(t *testing.T) {
	limiter := command.NewRateLimiter(command.RateLimiterConfig{BurstCapacity: 1, SustainedRate: 0.1})
	t.Cleanup(limiter.Close)
	f := newFixture(t, command.WithRateLimiter(limiter))

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/commands/charge", `{"input": {"amount": 1}}`).Code)

	rec := f.do(t, http.MethodPost, "/v1/commands/charge", `{"input": {"amount": 1}}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, command.CodeRateLimited, decode[server.ErrorResponse](t, rec).Code)
}

func TestListAndDescribe(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/commands", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]command.Description](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "charge", list[0].Name)

	rec = f.do(t, http.MethodGet, "/v1/commands/charge", "")
	require.Equal(t, http.StatusOK, rec.Code)
	desc := decode[command.Description](t, rec)
	assert.Equal(t, "Charge an account", desc.Help)
	require.Len(t, desc.Properties, 3)
	assert.Equal(t, "amount", desc.Properties[0].Name)

	rec = f.do(t, http.MethodGet, "/v1/commands/refund", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJournal(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/v1/commands/charge", `{"input": {"amount": 1}}`)
	f.do(t, http.MethodPost, "/v1/commands/charge", `{"input": {"amount": -1}}`)

	rec := f.do(t, http.MethodGet, "/v1/journal?command=charge&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[[]journal.Record](t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, journal.OutcomeFailure, records[0].Outcome)

	rec = f.do(t, http.MethodGet, "/v1/journal?limit=-2", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/journal?command=none", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]journal.Record](t, rec))
}

func TestJournal_Disabled(t *testing.T) {
	d, err := command.NewDispatcher(command.NewRegistry())
	require.NoError(t, err)
	s, err := server.New(":0", d)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/journal", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d, err := command.NewDispatcher(command.NewRegistry())
	require.NoError(t, err)
	s, err := server.New("127.0.0.1:0", d)
	require.NoError(t, err)

	errCh, err := s.Start()
	require.NoError(t, err)
	_, err = s.Start()
	require.Error(t, err)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + s.Addr() + "/v1/commands")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))

	for err := range errCh {
		t.Fatalf("unexpected serve error: %v", err)
	}
}
