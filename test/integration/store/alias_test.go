// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

//go:build integration

package store_test

import (
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/troupe-dev/troupe/internal/command"
	"github.com/troupe-dev/troupe/internal/command/builtin"
	"github.com/troupe-dev/troupe/internal/store"
)

var _ = Describe("PostgresAliasRepository", func() {
	var repo *store.PostgresAliasRepository

	BeforeEach(func() {
		migrateUp()
		repo = store.NewPostgresAliasRepository(env.pool)
	})

	It("stores, replaces and deletes global aliases", func() {
		Expect(repo.SetGlobalAlias(env.ctx, "pay", "charge currency=EUR", "admin")).To(Succeed())
		Expect(repo.SetGlobalAlias(env.ctx, "pay", "charge currency=USD", "admin")).To(Succeed())

		got, err := repo.GlobalAliases(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(map[string]string{"pay": "charge currency=USD"}))

		Expect(repo.DeleteGlobalAlias(env.ctx, "pay")).To(Succeed())
		got, err = repo.GlobalAliases(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeEmpty())
	})

	It("scopes caller aliases to their caller", func() {
		Expect(repo.SetCallerAlias(env.ctx, "alice", "t", "transfer")).To(Succeed())
		Expect(repo.SetCallerAlias(env.ctx, "bob", "t", "list")).To(Succeed())

		got, err := repo.CallerAliases(env.ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(map[string]string{"t": "transfer"}))

		Expect(repo.DeleteCallerAlias(env.ctx, "alice", "t")).To(Succeed())
		got, err = repo.CallerAliases(env.ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeEmpty())

		got, err = repo.CallerAliases(env.ctx, "bob")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveKeyWithValue("t", "list"))
	})

	It("persists aliases defined through the alias command", func() {
		registry := command.NewRegistry()
		aliases := command.NewAliasTable()
		Expect(builtin.RegisterAll(builtin.Deps{Registry: registry, Aliases: aliases, Repo: repo})).To(Succeed())
		d, err := command.NewDispatcher(registry, command.WithAliases(aliases))
		Expect(err).NotTo(HaveOccurred())

		_, err = d.DispatchLine(env.ctx, "alice", `alias alias=ls line="list source=builtin" global=true`)
		Expect(err).NotTo(HaveOccurred())

		got, err := repo.GlobalAliases(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveKeyWithValue("ls", "list source=builtin"))

		reloaded := command.NewAliasTable()
		reloaded.LoadGlobal(got)
		line, ok := reloaded.Lookup("", "ls")
		Expect(ok).To(BeTrue())
		Expect(line).To(Equal("list source=builtin"))
	})
})
