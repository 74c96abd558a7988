// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

//go:build integration

package store_test

import (
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/troupe-dev/troupe/internal/store"
)

var _ = Describe("Migrator", func() {
	var m *store.Migrator

	BeforeEach(func() {
		var err error
		m, err = store.NewMigrator(env.connStr)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			Expect(m.Down()).To(Succeed())
			Expect(m.Close()).To(Succeed())
		})
	})

	It("reports every migration pending on an empty database", func() {
		version, dirty, err := m.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())

		pending, err := m.PendingMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(Equal([]uint{1, 2}))
	})

	It("applies and reverts migrations step by step", func() {
		Expect(m.Steps(1)).To(Succeed())
		version, _, err := m.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))

		Expect(m.Up()).To(Succeed())
		pending, err := m.PendingMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())

		var tables int
		Expect(env.pool.QueryRow(env.ctx,
			`SELECT count(*) FROM information_schema.tables WHERE table_name IN ('journal', 'global_aliases', 'caller_aliases')`,
		).Scan(&tables)).To(Succeed())
		Expect(tables).To(Equal(3))

		Expect(m.Steps(-1)).To(Succeed())
		version, _, err = m.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))
	})

	It("is idempotent when nothing is pending", func() {
		Expect(m.Up()).To(Succeed())
		Expect(m.Up()).To(Succeed())
	})

	It("names embedded migrations", func() {
		name, err := store.MigrationName(2)
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("000002_aliases"))
	})
})
