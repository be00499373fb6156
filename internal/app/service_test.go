package service_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/breakrack/rankd/internal/adapters/cache"
	"github.com/breakrack/rankd/internal/adapters/matches"
	service "github.com/breakrack/rankd/internal/app"
	"github.com/breakrack/rankd/internal/domain/model"
	"github.com/breakrack/rankd/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// fakeConn records payloads delivered through the realtime registry.
type fakeConn struct {
	id string

	mu       sync.Mutex
	payloads [][]byte
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func seededSource(base time.Time) *matches.InMemorySource {
	return matches.NewInMemorySource(matches.WithGames(
		model.Game{WinnerID: "alice", LoserID: "bob", CompletedAt: base, Duration: 20 * time.Minute},
		model.Game{WinnerID: "alice", LoserID: "carol", CompletedAt: base.Add(time.Hour), Duration: 25 * time.Minute},
		model.Game{WinnerID: "bob", LoserID: "carol", CompletedAt: base.Add(2 * time.Hour), Placement: 2},
		model.Game{WinnerID: "alice", LoserID: "bob", CompletedAt: base.Add(3 * time.Hour), Placement: 1},
	))
}

func startService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	base := []service.Option{
		service.WithUpdateInterval(time.Hour),
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func rankOrder(svc *service.Service) []string {
	entries := svc.TopRankings(context.Background(), 100)
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		order = append(order, e.UserID)
	}
	return order
}

func TestUpdateGlobalRankings(t *testing.T) {
	convey.Convey("Given a service over a seeded match source", t, func() {
		ctx := context.Background()
		base := time.Now().Add(-24 * time.Hour)
		source := seededSource(base)
		store := cache.NewMemory()
		svc := startService(t, service.WithMatchSource(source), service.WithCache(store))

		convey.Convey("When a recompute cycle runs", func() {
			convey.So(svc.UpdateGlobalRankings(ctx), convey.ShouldBeNil)
			top := svc.TopRankings(ctx, 10)

			convey.Convey("Then every active player is ranked", func() {
				convey.So(len(top), convey.ShouldEqual, 3)
			})

			convey.Convey("Then the triple winner ranks first with contiguous ranks", func() {
				convey.So(top[0].UserID, convey.ShouldEqual, "alice")
				for i, e := range top {
					convey.So(e.Rank, convey.ShouldEqual, i+1)
				}
				convey.So(top[0].Rating, convey.ShouldBeGreaterThan, top[1].Rating)
			})

			convey.Convey("Then entries carry counters and a tier title", func() {
				convey.So(top[0].GamesPlayed, convey.ShouldEqual, 3)
				convey.So(top[0].Wins, convey.ShouldEqual, 3)
				convey.So(top[0].Streak, convey.ShouldEqual, 3)
				convey.So(top[0].Title, convey.ShouldEqual, "Intermediate")
				convey.So(top[0].LastGame, convey.ShouldNotBeNil)
			})

			convey.Convey("Then the snapshot is persisted to the cache", func() {
				var cached map[string]struct {
					Rating float64 `json:"rating"`
					Rank   int     `json:"rank"`
					Title  string  `json:"title"`
				}
				convey.So(store.Get(ctx, cache.KeyRankings, &cached), convey.ShouldBeNil)
				convey.So(cached["alice"].Rating, convey.ShouldEqual, top[0].Rating)
				convey.So(cached["alice"].Rank, convey.ShouldEqual, 1)
				convey.So(cached["alice"].Title, convey.ShouldEqual, "Intermediate")

				var order []string
				convey.So(store.Get(ctx, cache.KeyRankOrder, &order), convey.ShouldBeNil)
				convey.So(order[0], convey.ShouldEqual, "alice")

				var stamp string
				convey.So(store.Get(ctx, cache.KeyLastUpdate, &stamp), convey.ShouldBeNil)
				_, err := time.Parse(time.RFC3339, stamp)
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the cycle runs twice with no new data", func() {
			convey.So(svc.UpdateGlobalRankings(ctx), convey.ShouldBeNil)
			first := rankOrder(svc)
			convey.So(svc.UpdateGlobalRankings(ctx), convey.ShouldBeNil)
			second := rankOrder(svc)

			convey.Convey("Then the rank order is identical", func() {
				convey.So(second, convey.ShouldResemble, first)
			})
		})

		convey.Convey("When the match source fails for a whole cycle", func() {
			convey.So(svc.UpdateGlobalRankings(ctx), convey.ShouldBeNil)
			before := rankOrder(svc)

			source.Fail(errors.New("storage outage"))
			err := svc.UpdateGlobalRankings(ctx)
			source.Fail(nil)

			convey.Convey("Then the cycle errors and the previous snapshot survives", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(rankOrder(svc), convey.ShouldResemble, before)
			})
		})
	})
}

func TestPlayerRankingDetails(t *testing.T) {
	convey.Convey("Given a service with a published snapshot", t, func() {
		ctx := context.Background()
		base := time.Now().Add(-24 * time.Hour)
		source := seededSource(base)
		svc := startService(t, service.WithMatchSource(source), service.WithCache(cache.NewMemory()))
		convey.So(svc.UpdateGlobalRankings(ctx), convey.ShouldBeNil)

		convey.Convey("When fetching details for a ranked player", func() {
			details := svc.PlayerRankingDetails(ctx, "alice")

			convey.Convey("Then the entry and derived metrics are populated", func() {
				convey.So(details.UserID, convey.ShouldEqual, "alice")
				convey.So(details.Rank, convey.ShouldEqual, 1)
				convey.So(details.WinRate, convey.ShouldEqual, 1)
				convey.So(details.TournamentWins, convey.ShouldEqual, 1)
				convey.So(details.TournamentPlacements, convey.ShouldResemble, []int{1})
				convey.So(details.Performance.Accuracy, convey.ShouldEqual, 1)
				convey.So(details.Performance.Speed, convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When fetching details for a player outside the snapshot", func() {
			details := svc.PlayerRankingDetails(ctx, "mallory")

			convey.Convey("Then an on-demand entry at defaults is created and ranked", func() {
				convey.So(details.UserID, convey.ShouldEqual, "mallory")
				convey.So(details.Rating, convey.ShouldEqual, 1000)
				convey.So(details.Title, convey.ShouldEqual, "Intermediate")
				convey.So(details.Rank, convey.ShouldBeGreaterThan, 0)
				convey.So(details.WinRate, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the history fetch fails during a detail lookup", func() {
			source.Fail(errors.New("storage outage"))
			details := svc.PlayerRankingDetails(ctx, "alice")
			source.Fail(nil)

			convey.Convey("Then the core entry is served with zero metrics", func() {
				convey.So(details.UserID, convey.ShouldEqual, "alice")
				convey.So(details.Rank, convey.ShouldEqual, 1)
				convey.So(details.WinRate, convey.ShouldEqual, 0)
				convey.So(details.Performance.Accuracy, convey.ShouldEqual, 0)
			})
		})
	})
}

func TestServiceDistribution(t *testing.T) {
	convey.Convey("Given a service with connected clients", t, func() {
		ctx := context.Background()
		base := time.Now().Add(-24 * time.Hour)
		source := seededSource(base)
		svc := startService(t, service.WithMatchSource(source), service.WithCache(cache.NewMemory()))

		aliceConn := &fakeConn{id: "a1"}
		bobConn := &fakeConn{id: "b1"}
		convey.So(svc.Registry().Connect(ctx, "alice", aliceConn), convey.ShouldBeNil)
		convey.So(svc.Registry().Connect(ctx, "bob", bobConn), convey.ShouldBeNil)

		convey.Convey("When a recompute cycle completes", func() {
			convey.So(svc.UpdateGlobalRankings(ctx), convey.ShouldBeNil)

			convey.Convey("Then every connected client hears from the service", func() {
				convey.So(aliceConn.received(), convey.ShouldBeGreaterThanOrEqualTo, 2)
				convey.So(bobConn.received(), convey.ShouldBeGreaterThanOrEqualTo, 2)
			})
		})

		convey.Convey("When reading service stats", func() {
			stats := svc.GetStats()

			convey.Convey("Then connection counters are exposed", func() {
				convey.So(stats["current_connections"], convey.ShouldEqual, 2)
				convey.So(stats["connected_users"], convey.ShouldResemble, []string{"alice", "bob"})
			})
		})
	})
}

func TestServiceCacheRestore(t *testing.T) {
	convey.Convey("Given a snapshot persisted by an earlier run", t, func() {
		ctx := context.Background()
		base := time.Now().Add(-24 * time.Hour)
		store := cache.NewMemory()

		first := startService(t, service.WithMatchSource(seededSource(base)), service.WithCache(store))
		convey.So(first.UpdateGlobalRankings(ctx), convey.ShouldBeNil)
		expected := rankOrder(first)
		first.Stop()

		convey.Convey("When a fresh service starts with a dead match source", func() {
			broken := matches.NewInMemorySource()
			broken.Fail(errors.New("storage offline"))
			second := startService(t, service.WithMatchSource(broken), service.WithCache(store))

			convey.Convey("Then the cached snapshot is adopted immediately", func() {
				convey.So(rankOrder(second), convey.ShouldResemble, expected)

				alice, err := second.NearbyRankings(ctx, "alice", 1)
				convey.So(err, convey.ShouldBeNil)
				convey.So(alice[0].UserID, convey.ShouldEqual, "alice")
			})
		})
	})
}
