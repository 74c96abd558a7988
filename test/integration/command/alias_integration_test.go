// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

//go:build integration

package command_test

import (
	"context"
	"errors"
	"maps"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/troupe-dev/troupe/internal/command"
	"github.com/troupe-dev/troupe/internal/command/builtin"
	"github.com/troupe-dev/troupe/internal/store"
	"github.com/troupe-dev/troupe/pkg/contract"
	"github.com/troupe-dev/troupe/pkg/troupe"
)

// inMemoryAliasRepo is an in-memory store.AliasRepository that can be told
// to fail writes.
type inMemoryAliasRepo struct {
	mu        sync.Mutex
	global    map[string]string
	callers   map[string]map[string]string
	failWrite bool
}

var _ store.AliasRepository = (*inMemoryAliasRepo)(nil)

var errRepoDown = errors.New("repository unavailable")

func newInMemoryAliasRepo() *inMemoryAliasRepo {
	return &inMemoryAliasRepo{global: map[string]string{}, callers: map[string]map[string]string{}}
}

func (r *inMemoryAliasRepo) GlobalAliases(context.Context) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.global), nil
}

func (r *inMemoryAliasRepo) SetGlobalAlias(_ context.Context, alias, line, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrite {
		return errRepoDown
	}
	r.global[alias] = line
	return nil
}

func (r *inMemoryAliasRepo) DeleteGlobalAlias(_ context.Context, alias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.global, alias)
	return nil
}

func (r *inMemoryAliasRepo) CallerAliases(_ context.Context, caller string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.callers[caller]), nil
}

func (r *inMemoryAliasRepo) SetCallerAlias(_ context.Context, caller, alias, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrite {
		return errRepoDown
	}
	if r.callers[caller] == nil {
		r.callers[caller] = map[string]string{}
	}
	r.callers[caller][alias] = line
	return nil
}

func (r *inMemoryAliasRepo) DeleteCallerAlias(_ context.Context, caller, alias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.callers[caller], alias)
	return nil
}

var echoContract = contract.MustDefine("echo", func(c *contract.Contract) {
	c.Expects("text")
	c.Permits("times").DefaultValue(1)
	c.Provides("out")
})

func echoEntry() command.Entry {
	return command.Entry{
		Name:   "echo",
		Source: "test",
		New: func() troupe.Command {
			return troupe.NewCommand(echoContract, func(_ context.Context, inv *contract.Invocation) error {
				text, err := contract.Value[string](inv, "text")
				if err != nil {
					return err
				}
				times, err := contract.Value[int](inv, "times")
				if err != nil {
					return err
				}
				out := ""
				for range times {
					out += text
				}
				return inv.Set("out", out)
			})
		},
	}
}

var _ = Describe("Alias builtins", func() {
	var (
		ctx        context.Context
		repo       *inMemoryAliasRepo
		aliases    *command.AliasTable
		dispatcher *command.Dispatcher
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = newInMemoryAliasRepo()
		aliases = command.NewAliasTable()
		registry := command.NewRegistry()
		Expect(registry.Register(echoEntry())).To(Succeed())
		Expect(builtin.RegisterAll(builtin.Deps{Registry: registry, Aliases: aliases, Repo: repo})).To(Succeed())

		var err error
		dispatcher, err = command.NewDispatcher(registry, command.WithAliases(aliases))
		Expect(err).NotTo(HaveOccurred())
	})

	It("persists a caller alias and expands it on the next dispatch", func() {
		res, err := dispatcher.DispatchLine(ctx, "alice", `alias alias=twice line="echo times=2"`)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Success()).To(BeTrue())

		stored, err := repo.CallerAliases(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(HaveKeyWithValue("twice", "echo times=2"))

		res, err = dispatcher.DispatchLine(ctx, "alice", "twice text=ab")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Get("out")).To(Equal("abab"))

		_, err = dispatcher.DispatchLine(ctx, "bob", "twice text=ab")
		Expect(err).To(HaveOccurred())
	})

	It("lets request input override alias arguments", func() {
		_, err := dispatcher.DispatchLine(ctx, "alice", `alias alias=twice line="echo times=2"`)
		Expect(err).NotTo(HaveOccurred())

		res, err := dispatcher.DispatchLine(ctx, "alice", "twice text=x times=3")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Get("out")).To(Equal("xxx"))
	})

	It("leaves the table untouched when the repository rejects the write", func() {
		repo.failWrite = true

		_, err := dispatcher.DispatchLine(ctx, "alice", `alias alias=twice line="echo times=2"`)
		Expect(err).To(MatchError(errRepoDown))

		_, ok := aliases.Lookup("alice", "twice")
		Expect(ok).To(BeFalse())
	})

	It("rolls back the persisted row when the alias would be circular", func() {
		_, err := dispatcher.DispatchLine(ctx, "", `alias alias=a line="b" global=true`)
		Expect(err).NotTo(HaveOccurred())

		_, err = dispatcher.DispatchLine(ctx, "", `alias alias=b line="a" global=true`)
		Expect(err).To(HaveOccurred())

		stored, err := repo.GlobalAliases(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(Equal(map[string]string{"a": "b"}))
	})

	It("removes aliases from both the table and the repository", func() {
		_, err := dispatcher.DispatchLine(ctx, "alice", `alias alias=twice line="echo times=2"`)
		Expect(err).NotTo(HaveOccurred())

		res, err := dispatcher.DispatchLine(ctx, "alice", "unalias alias=twice")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Get("removed")).To(BeTrue())

		stored, err := repo.CallerAliases(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(BeEmpty())
		_, ok := aliases.Lookup("alice", "twice")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Rate limiting", func() {
	It("limits each caller independently and exempts anonymous callers", func() {
		ctx := context.Background()
		registry := command.NewRegistry()
		Expect(registry.Register(echoEntry())).To(Succeed())

		rl := command.NewRateLimiter(command.RateLimiterConfig{BurstCapacity: 3, SustainedRate: 0.1})
		DeferCleanup(rl.Close)
		dispatcher, err := command.NewDispatcher(registry, command.WithRateLimiter(rl))
		Expect(err).NotTo(HaveOccurred())

		for range 3 {
			_, err := dispatcher.DispatchLine(ctx, "alice", "echo text=x")
			Expect(err).NotTo(HaveOccurred())
		}
		_, err = dispatcher.DispatchLine(ctx, "alice", "echo text=x")
		Expect(command.UserMessage(err)).To(ContainSubstring("slow down"))

		_, err = dispatcher.DispatchLine(ctx, "bob", "echo text=x")
		Expect(err).NotTo(HaveOccurred())

		for range 5 {
			_, err := dispatcher.DispatchLine(ctx, "", "echo text=x")
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(rl.CallerCount()).To(Equal(2))
	})
})
