package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/breakrack/rankd/internal/adapters/cache"
	"github.com/breakrack/rankd/internal/domain/types"
	"github.com/smartystreets/goconvey/convey"
)

func TestMemoryCache(t *testing.T) {
	convey.Convey("Given an in-memory cache", t, func() {
		ctx := context.Background()
		store := cache.NewMemory()

		convey.Convey("When a ranking map round-trips through the cache", func() {
			last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			in := map[string]types.RankingEntry{
				"alice": {UserID: "alice", Rating: 1816.5, Rank: 1, Wins: 12, Streak: 3, LastGame: &last, Title: "Expert"},
				"bob":   {UserID: "bob", Rating: 1500, Rank: 2, Losses: 4, Streak: -2, Title: "Expert"},
			}
			convey.So(store.Set(ctx, cache.KeyRankings, in, 0), convey.ShouldBeNil)

			var out map[string]types.RankingEntry
			convey.So(store.Get(ctx, cache.KeyRankings, &out), convey.ShouldBeNil)

			convey.Convey("Then every field survives serialization", func() {
				convey.So(out["alice"].Rating, convey.ShouldEqual, 1816.5)
				convey.So(out["alice"].Rank, convey.ShouldEqual, 1)
				convey.So(out["alice"].Streak, convey.ShouldEqual, 3)
				convey.So(out["alice"].Title, convey.ShouldEqual, "Expert")
				convey.So(out["alice"].LastGame, convey.ShouldNotBeNil)
				convey.So(out["alice"].LastGame.Equal(last), convey.ShouldBeTrue)
				convey.So(out["bob"].Streak, convey.ShouldEqual, -2)
				convey.So(out["bob"].LastGame, convey.ShouldBeNil)
			})
		})

		convey.Convey("When reading a key that was never set", func() {
			var out []string
			err := store.Get(ctx, cache.KeyRankOrder, &out)

			convey.Convey("Then the miss sentinel is returned", func() {
				convey.So(errors.Is(err, cache.ErrCacheMiss), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When using an empty key", func() {
			convey.Convey("Then both operations fail", func() {
				convey.So(store.Set(ctx, "", "v", 0), convey.ShouldEqual, cache.ErrEmptyKey)
				var out string
				convey.So(store.Get(ctx, "", &out), convey.ShouldEqual, cache.ErrEmptyKey)
			})
		})

		convey.Convey("When the context is already canceled", func() {
			canceled, cancel := context.WithCancel(ctx)
			cancel()

			convey.Convey("Then operations surface the context error", func() {
				convey.So(store.Set(canceled, "k", "v", 0), convey.ShouldNotBeNil)
				var out string
				convey.So(store.Get(canceled, "k", &out), convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMemoryCacheTTL(t *testing.T) {
	convey.Convey("Given a cache with a controllable clock", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		store := cache.NewMemory(cache.WithClock(func() time.Time { return now }))

		convey.So(store.Set(ctx, "stamp", "2026-03-01T12:00:00Z", 5*time.Minute), convey.ShouldBeNil)

		convey.Convey("When reading before the TTL elapses", func() {
			var out string
			err := store.Get(ctx, "stamp", &out)

			convey.Convey("Then the value is served", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldEqual, "2026-03-01T12:00:00Z")
			})
		})

		convey.Convey("When reading after the TTL elapses", func() {
			now = now.Add(6 * time.Minute)
			var out string
			err := store.Get(ctx, "stamp", &out)

			convey.Convey("Then the entry has expired into a miss", func() {
				convey.So(errors.Is(err, cache.ErrCacheMiss), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a zero TTL is used", func() {
			convey.So(store.Set(ctx, "forever", 42, 0), convey.ShouldBeNil)
			now = now.Add(1000 * time.Hour)

			var out int
			err := store.Get(ctx, "forever", &out)

			convey.Convey("Then the entry never expires", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldEqual, 42)
			})
		})
	})
}
