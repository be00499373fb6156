package realtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/breakrack/rankd/internal/adapters/cache"
	"github.com/breakrack/rankd/internal/realtime"
	"github.com/smartystreets/goconvey/convey"
)

func TestCollectorFlush(t *testing.T) {
	convey.Convey("Given a collector over a registry and a memory cache", t, func() {
		ctx := context.Background()
		registry := realtime.NewRegistry()
		store := cache.NewMemory()
		collector := realtime.NewCollector(registry, store)

		conn := newFakeConn("c1")
		convey.So(registry.Connect(ctx, "alice", conn), convey.ShouldBeNil)

		convey.Convey("When flushing explicitly", func() {
			convey.So(collector.Flush(ctx), convey.ShouldBeNil)

			convey.Convey("Then the cached snapshot mirrors the registry", func() {
				var snap realtime.StatsSnapshot
				convey.So(store.Get(ctx, cache.KeyStats, &snap), convey.ShouldBeNil)
				convey.So(snap.CurrentConnections, convey.ShouldEqual, 1)
				convey.So(snap.ConnectedUsers, convey.ShouldResemble, []string{"alice"})
			})
		})

		convey.Convey("When the registry churns between flushes", func() {
			convey.So(collector.Flush(ctx), convey.ShouldBeNil)
			registry.Disconnect(ctx, "alice", conn)
			convey.So(collector.Flush(ctx), convey.ShouldBeNil)

			convey.Convey("Then the cache reflects the latest state", func() {
				var snap realtime.StatsSnapshot
				convey.So(store.Get(ctx, cache.KeyStats, &snap), convey.ShouldBeNil)
				convey.So(snap.CurrentConnections, convey.ShouldEqual, 0)
				convey.So(snap.PeakConnections, convey.ShouldEqual, 1)
			})
		})
	})
}

func TestCollectorRun(t *testing.T) {
	convey.Convey("Given a running collector", t, func() {
		registry := realtime.NewRegistry()
		store := cache.NewMemory()
		collector := realtime.NewCollector(registry, store,
			realtime.WithFlushInterval(time.Hour)) // ticks never fire during the test

		runCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			collector.Run(runCtx)
		}()

		convey.Convey("When a connection change kicks the collector", func() {
			conn := newFakeConn("c1")
			convey.So(registry.Connect(runCtx, "alice", conn), convey.ShouldBeNil)
			collector.Notify()

			convey.Convey("Then the snapshot lands in the cache shortly after", func() {
				var snap realtime.StatsSnapshot
				deadline := time.Now().Add(2 * time.Second)
				for time.Now().Before(deadline) {
					if err := store.Get(context.Background(), cache.KeyStats, &snap); err == nil {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				convey.So(snap.CurrentConnections, convey.ShouldEqual, 1)

				cancel()
				<-done
			})
		})

		convey.Convey("When nothing has happened yet", func() {
			convey.Convey("Then Notify never blocks even when repeated", func() {
				for i := 0; i < 10; i++ {
					collector.Notify()
				}
				cancel()
				<-done
				convey.So(true, convey.ShouldBeTrue)
			})
		})
	})
}
