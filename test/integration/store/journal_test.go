// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/troupe-dev/troupe/internal/command"
	"github.com/troupe-dev/troupe/internal/journal"
	"github.com/troupe-dev/troupe/internal/store"
	"github.com/troupe-dev/troupe/pkg/contract"
	"github.com/troupe-dev/troupe/pkg/errutil"
	"github.com/troupe-dev/troupe/pkg/troupe"
)

func record(cmd string, outcome journal.Outcome) journal.Record {
	return journal.Record{
		ID:        ulid.Make(),
		Command:   cmd,
		Caller:    "alice",
		Outcome:   outcome,
		StartedAt: time.Now().UTC().Truncate(time.Microsecond),
		Duration:  1500 * time.Microsecond,
	}
}

var _ = Describe("PostgresJournal", func() {
	var j *store.PostgresJournal

	BeforeEach(func() {
		migrateUp()
		j = store.NewPostgresJournal(env.pool)
	})

	It("round-trips records newest first", func() {
		first := record("charge", journal.OutcomeSuccess)
		second := record("charge", journal.OutcomeFailure)
		second.Reason = "card declined"
		second.Violations = []string{"amount"}

		Expect(j.Append(env.ctx, first)).To(Succeed())
		Expect(j.Append(env.ctx, second)).To(Succeed())

		list, err := j.List(env.ctx, "", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(2))
		Expect(list[0].ID).To(Equal(second.ID))
		Expect(list[0].Reason).To(Equal("card declined"))
		Expect(list[0].Violations).To(Equal([]string{"amount"}))
		Expect(list[0].Duration).To(Equal(1500 * time.Microsecond))
		Expect(list[0].StartedAt.Equal(second.StartedAt)).To(BeTrue())
		Expect(list[1].ID).To(Equal(first.ID))
		Expect(list[1].Violations).To(BeEmpty())
	})

	It("filters by command and honours the limit", func() {
		for range 3 {
			Expect(j.Append(env.ctx, record("charge", journal.OutcomeSuccess))).To(Succeed())
		}
		Expect(j.Append(env.ctx, record("refund", journal.OutcomeError))).To(Succeed())

		list, err := j.List(env.ctx, "refund", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(1))
		Expect(list[0].Outcome).To(Equal(journal.OutcomeError))

		list, err = j.List(env.ctx, "charge", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(2))
	})

	It("rejects duplicate ids", func() {
		r := record("charge", journal.OutcomeSuccess)
		Expect(j.Append(env.ctx, r)).To(Succeed())

		err := j.Append(env.ctx, r)
		Expect(errutil.Code(err)).To(Equal(journal.CodeDuplicateRecord))
	})

	It("records dispatched runs", func() {
		c := contract.MustDefine("greet", func(c *contract.Contract) {
			c.Expects("name")
			c.Provides("greeting")
		})
		registry := command.NewRegistry()
		Expect(registry.Register(command.Entry{
			Name: "greet",
			New: func() troupe.Command {
				return troupe.NewCommand(c, func(_ context.Context, inv *contract.Invocation) error {
					name, err := contract.Value[string](inv, "name")
					if err != nil {
						return err
					}
					return inv.Set("greeting", "hello "+name)
				})
			},
		})).To(Succeed())
		d, err := command.NewDispatcher(registry, command.WithJournal(j))
		Expect(err).NotTo(HaveOccurred())

		_, err = d.DispatchLine(env.ctx, "bob", "greet name=ann")
		Expect(err).NotTo(HaveOccurred())
		_, err = d.DispatchLine(env.ctx, "bob", "greet")
		Expect(err).To(HaveOccurred())

		list, err := j.List(env.ctx, "greet", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(2))
		Expect(list[0].Outcome).To(Equal(journal.OutcomeError))
		Expect(list[0].Violations).To(ConsistOf("name"))
		Expect(list[1].Outcome).To(Equal(journal.OutcomeSuccess))
		Expect(list[1].Caller).To(Equal("bob"))
	})
})
