package repository_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/breakrack/rankd/internal/adapters/repository"
	"github.com/breakrack/rankd/internal/domain/types"
	"github.com/smartystreets/goconvey/convey"
)

func entriesFixture() map[string]types.RankingEntry {
	return map[string]types.RankingEntry{
		"alice": {UserID: "alice", Rating: 1800},
		"bob":   {UserID: "bob", Rating: 2100},
		"carol": {UserID: "carol", Rating: 1500},
		"dave":  {UserID: "dave", Rating: 1800},
	}
}

func TestBuildSnapshot(t *testing.T) {
	convey.Convey("Given a set of rated players", t, func() {
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		snap := repository.BuildSnapshot(entriesFixture(), at)

		convey.Convey("When reading the derived order", func() {
			order := snap.Order()

			convey.Convey("Then players sort by rating descending with id tie-break", func() {
				convey.So(order, convey.ShouldResemble, []string{"bob", "alice", "dave", "carol"})
			})
		})

		convey.Convey("When reading entries back", func() {
			convey.Convey("Then 1-based ranks are stamped on", func() {
				bob, ok := snap.Entry("bob")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(bob.Rank, convey.ShouldEqual, 1)

				carol, _ := snap.Entry("carol")
				convey.So(carol.Rank, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When building twice from the same input", func() {
			again := repository.BuildSnapshot(entriesFixture(), at)

			convey.Convey("Then the order is deterministic", func() {
				convey.So(again.Order(), convey.ShouldResemble, snap.Order())
			})
		})

		convey.Convey("When requesting rank ranges", func() {
			convey.Convey("Then the inclusive range comes back in order", func() {
				got := snap.Range(2, 3)
				convey.So(len(got), convey.ShouldEqual, 2)
				convey.So(got[0].UserID, convey.ShouldEqual, "alice")
				convey.So(got[1].UserID, convey.ShouldEqual, "dave")
			})

			convey.Convey("Then out-of-bounds ranges clamp to the snapshot", func() {
				got := snap.Range(3, 100)
				convey.So(len(got), convey.ShouldEqual, 2)
				convey.So(got[len(got)-1].UserID, convey.ShouldEqual, "carol")
			})

			convey.Convey("Then an inverted range is empty", func() {
				convey.So(snap.Range(5, 4), convey.ShouldBeEmpty)
			})
		})
	})
}

func TestStore(t *testing.T) {
	convey.Convey("Given an empty store", t, func() {
		store := repository.NewStore()
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		convey.Convey("When nothing has been published", func() {
			convey.Convey("Then lookups report not found and ranges are empty", func() {
				_, err := store.Entry("alice")
				convey.So(err, convey.ShouldEqual, repository.ErrNotFound)
				convey.So(store.Count(), convey.ShouldEqual, 0)
				convey.So(store.Range(1, 10), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When a snapshot is swapped in", func() {
			store.Swap(repository.BuildSnapshot(entriesFixture(), at))

			convey.Convey("Then entries and metadata are visible", func() {
				bob, err := store.Entry("bob")
				convey.So(err, convey.ShouldBeNil)
				convey.So(bob.Rank, convey.ShouldEqual, 1)
				convey.So(store.Count(), convey.ShouldEqual, 4)
				convey.So(store.LastUpdate().Equal(at), convey.ShouldBeTrue)
			})

			convey.Convey("And nearby lookups center on the player's rank", func() {
				got, err := store.Nearby("dave", 1)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(got), convey.ShouldEqual, 3)
				convey.So(got[0].UserID, convey.ShouldEqual, "alice")
				convey.So(got[1].UserID, convey.ShouldEqual, "dave")
				convey.So(got[2].UserID, convey.ShouldEqual, "carol")
			})

			convey.Convey("And nearby for an unknown player fails", func() {
				_, err := store.Nearby("mallory", 2)
				convey.So(err, convey.ShouldEqual, repository.ErrNotFound)
			})

			convey.Convey("And upserting a single player rebuilds ranks", func() {
				store.Upsert(types.RankingEntry{UserID: "erin", Rating: 2200}, at.Add(time.Minute))

				erin, err := store.Entry("erin")
				convey.So(err, convey.ShouldBeNil)
				convey.So(erin.Rank, convey.ShouldEqual, 1)

				bob, _ := store.Entry("bob")
				convey.So(bob.Rank, convey.ShouldEqual, 2)
				convey.So(store.Count(), convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When readers race with swaps", func() {
			store.Swap(repository.BuildSnapshot(entriesFixture(), at))

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					entries := map[string]types.RankingEntry{}
					for j := 0; j < 5; j++ {
						id := fmt.Sprintf("p%d-%d", n, j)
						entries[id] = types.RankingEntry{UserID: id, Rating: float64(1000 + j)}
					}
					store.Swap(repository.BuildSnapshot(entries, at))
				}(i)
			}
			var torn atomic.Int64
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 50; j++ {
						got := store.Range(1, store.Count())
						for k := 1; k < len(got); k++ {
							if got[k].Rank != got[k-1].Rank+1 {
								torn.Add(1)
							}
						}
					}
				}()
			}
			wg.Wait()

			convey.Convey("Then every observed view is a complete snapshot", func() {
				convey.So(torn.Load(), convey.ShouldEqual, 0)
				convey.So(store.Count(), convey.ShouldEqual, 5)
			})
		})
	})
}
