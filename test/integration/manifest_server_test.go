// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/troupe-dev/troupe/internal/command"
	"github.com/troupe-dev/troupe/internal/command/builtin"
	"github.com/troupe-dev/troupe/internal/journal"
	"github.com/troupe-dev/troupe/internal/lua"
	"github.com/troupe-dev/troupe/internal/manifest"
	"github.com/troupe-dev/troupe/internal/server"
)

const ledgerManifest = `version: 1
aliases:
  deposit: post direction=credit
commands:
  - name: post
    help: Post an entry to the ledger
    contract: |
      expects account, amount;
      permits direction = "debit";
      permits memo = method(describe);
      provides balance;
    properties:
      - name: amount
        on_violation:
          action: raise
          message: "{property} must be given"
    script: |
      function describe()
        return direction .. " " .. account
      end
      function before()
        troupe.log("debug", "posting")
      end
      function call()
        if amount <= 0 then
          troupe.fail("amount must be positive")
        end
        local sign = 1
        if direction == "debit" then
          sign = -1
        end
        troupe.set("balance", sign * amount)
      end
`

func post(url, body string) (int, map[string]any) {
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	var out map[string]any
	Expect(json.Unmarshal(data, &out)).To(Succeed())
	return resp.StatusCode, out
}

var _ = Describe("Manifest commands over HTTP", func() {
	var (
		ctx     context.Context
		ts      *httptest.Server
		records *journal.Memory
	)

	setup := func(opts ...command.DispatcherOption) {
		path := filepath.Join(GinkgoT().TempDir(), manifest.FileName)
		Expect(os.WriteFile(path, []byte(ledgerManifest), 0o600)).To(Succeed())

		m, err := manifest.Load(path)
		Expect(err).NotTo(HaveOccurred())

		logger := slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		registry := command.NewRegistry()
		aliases := command.NewAliasTable()
		Expect(builtin.RegisterAll(builtin.Deps{Registry: registry, Aliases: aliases})).To(Succeed())
		Expect(manifest.Install(ctx, m, registry, aliases,
			manifest.WithRuntime(lua.NewRuntime(lua.WithLogger(logger))))).To(Succeed())

		records = journal.NewMemory(100)
		opts = append([]command.DispatcherOption{
			command.WithAliases(aliases),
			command.WithJournal(records),
			command.WithLogger(logger),
		}, opts...)
		d, err := command.NewDispatcher(registry, opts...)
		Expect(err).NotTo(HaveOccurred())

		srv, err := server.New("127.0.0.1:0", d, server.WithJournal(records), server.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())
		ts = httptest.NewServer(srv.Handler())
		DeferCleanup(ts.Close)
	}

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("with the default policy", func() {
		BeforeEach(func() { setup() })

		It("runs a scripted command with lazy defaults and journals it", func() {
			status, body := post(ts.URL+"/v1/commands/post", `{"caller":"alice","input":{"account":"cash","amount":10}}`)

			Expect(status).To(Equal(http.StatusOK))
			Expect(body["success"]).To(BeTrue())
			ctxValues := body["context"].(map[string]any)
			Expect(ctxValues["balance"]).To(BeNumerically("==", -10))
			Expect(ctxValues["memo"]).To(Equal("debit cash"))

			list, err := records.List(ctx, "post", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].Caller).To(Equal("alice"))
			Expect(list[0].Outcome).To(Equal(journal.OutcomeSuccess))
		})

		It("expands manifest aliases with their defaults", func() {
			status, body := post(ts.URL+"/v1/commands/deposit", `{"input":{"account":"cash","amount":5}}`)

			Expect(status).To(Equal(http.StatusOK))
			ctxValues := body["context"].(map[string]any)
			Expect(ctxValues["direction"]).To(Equal("credit"))
			Expect(ctxValues["balance"]).To(BeNumerically("==", 5))
		})

		It("reports a raised violation as unprocessable", func() {
			status, body := post(ts.URL+"/v1/commands/post", `{"input":{"account":"cash"}}`)

			Expect(status).To(Equal(http.StatusUnprocessableEntity))
			Expect(body["code"]).To(Equal("CONTRACT_VIOLATION"))
			Expect(body["property"]).To(Equal("amount"))
			Expect(body["invocation_id"]).NotTo(BeEmpty())

			list, err := records.List(ctx, "post", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].Violations).To(ConsistOf("amount"))
		})

		It("returns script failures as unsuccessful results", func() {
			status, body := post(ts.URL+"/v1/commands/post", `{"input":{"account":"cash","amount":0}}`)

			Expect(status).To(Equal(http.StatusOK))
			Expect(body["success"]).To(BeFalse())
			Expect(body["reason"]).To(Equal("amount must be positive"))
		})

		It("serves the journal newest first", func() {
			post(ts.URL+"/v1/commands/post", `{"input":{"account":"a","amount":1}}`)
			post(ts.URL+"/v1/commands/post", `{"input":{"account":"b","amount":0}}`)

			resp, err := http.Get(ts.URL + "/v1/journal?limit=1")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			var list []journal.Record
			Expect(json.NewDecoder(resp.Body).Decode(&list)).To(Succeed())
			Expect(list).To(HaveLen(1))
			Expect(list[0].Outcome).To(Equal(journal.OutcomeFailure))
		})
	})

	Context("with undeclared input rejected", func() {
		BeforeEach(func() { setup(command.WithUndeclaredPolicy(command.PolicyReject)) })

		It("refuses input the contract does not declare", func() {
			status, body := post(ts.URL+"/v1/commands/post", `{"input":{"account":"cash","amount":1,"tip":2}}`)

			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body["code"]).To(Equal(command.CodeUndeclaredProperty))
		})
	})

	Context("with a rate limiter", func() {
		BeforeEach(func() {
			rl := command.NewRateLimiter(command.RateLimiterConfig{BurstCapacity: 2, SustainedRate: 0.1})
			DeferCleanup(rl.Close)
			setup(command.WithRateLimiter(rl))
		})

		It("throttles a caller after the burst", func() {
			for range 2 {
				status, _ := post(ts.URL+"/v1/commands/post", `{"caller":"bob","input":{"account":"a","amount":1}}`)
				Expect(status).To(Equal(http.StatusOK))
			}

			status, body := post(ts.URL+"/v1/commands/post", `{"caller":"bob","input":{"account":"a","amount":1}}`)
			Expect(status).To(Equal(http.StatusTooManyRequests))
			Expect(body["code"]).To(Equal(command.CodeRateLimited))

			status, _ = post(ts.URL+"/v1/commands/post", `{"caller":"carol","input":{"account":"a","amount":1}}`)
			Expect(status).To(Equal(http.StatusOK))
		})
	})
})
