package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/breakrack/rankd/internal/adapters/http/api"
	"github.com/breakrack/rankd/internal/adapters/repository"
	"github.com/breakrack/rankd/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing
type mockRankings struct {
	entries    []api.Entry
	details    api.Details
	nearbyErr  error
	refreshErr error
	refreshed  int
}

func (m *mockRankings) RankingsInRange(ctx context.Context, startRank, endRank int) []api.Entry {
	out := []api.Entry{}
	for _, e := range m.entries {
		if e.Rank >= startRank && e.Rank <= endRank {
			out = append(out, e)
		}
	}
	return out
}

func (m *mockRankings) TopRankings(ctx context.Context, limit int) []api.Entry {
	if limit > len(m.entries) {
		limit = len(m.entries)
	}
	return m.entries[:limit]
}

func (m *mockRankings) NearbyRankings(ctx context.Context, userID string, radius int) ([]api.Entry, error) {
	if m.nearbyErr != nil {
		return nil, m.nearbyErr
	}
	return m.entries, nil
}

func (m *mockRankings) PlayerRankingDetails(ctx context.Context, userID string) api.Details {
	d := m.details
	d.UserID = userID
	return d
}

func (m *mockRankings) UpdateGlobalRankings(ctx context.Context) error {
	if m.refreshErr != nil {
		return m.refreshErr
	}
	m.refreshed++
	return nil
}

type mockStats struct{}

func (m *mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"tracked_players": 3, "current_connections": 1}
}

func newTestServer(deps *mockRankings) *httptest.Server {
	mux := http.NewServeMux()
	server := api.NewServer(deps, &mockStats{})
	server.Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func fixtureEntries() []api.Entry {
	return []api.Entry{
		{UserID: "bob", Rating: 2100, Rank: 1, Title: "Master"},
		{UserID: "alice", Rating: 1800, Rank: 2, Title: "Expert"},
		{UserID: "carol", Rating: 1500, Rank: 3, Title: "Expert"},
	}
}

func TestRankingsEndpoints(t *testing.T) {
	Convey("Given the rankings HTTP API", t, func() {
		deps := &mockRankings{entries: fixtureEntries()}
		server := newTestServer(deps)
		defer server.Close()

		Convey("When requesting a rank range", func() {
			resp, err := http.Get(server.URL + "/rankings?start=1&end=2")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the inclusive range is returned as JSON", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var got []api.Entry
				So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[0].UserID, ShouldEqual, "bob")
				So(got[1].UserID, ShouldEqual, "alice")
			})
		})

		Convey("When the range parameters are invalid", func() {
			for _, q := range []string{
				"?start=0&end=5",
				"?start=abc&end=5",
				"?start=5&end=2",
				"?start=1&end=10000",
			} {
				resp, err := http.Get(server.URL + "/rankings" + q)
				So(err, ShouldBeNil)
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
				resp.Body.Close()
			}
		})

		Convey("When requesting the top of the leaderboard", func() {
			resp, err := http.Get(server.URL + "/rankings/top?limit=2")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the first entries are returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var got []api.Entry
				So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[0].Rank, ShouldEqual, 1)
			})
		})

		Convey("When posting a manual refresh", func() {
			resp, err := http.Post(server.URL+"/rankings/refresh", "application/json", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then a recompute cycle is triggered", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(deps.refreshed, ShouldEqual, 1)
			})
		})

		Convey("When a refresh cycle fails", func() {
			deps.refreshErr = errors.New("storage outage")
			resp, err := http.Post(server.URL+"/rankings/refresh", "application/json", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the failure surfaces as a server error", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusInternalServerError)
			})
		})

		Convey("When using the wrong method on a rankings route", func() {
			resp, err := http.Post(server.URL+"/rankings?start=1&end=2", "application/json", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestPlayersEndpoints(t *testing.T) {
	Convey("Given the players HTTP API", t, func() {
		deps := &mockRankings{
			entries: fixtureEntries(),
			details: api.Details{
				RankingEntry: types.RankingEntry{Rating: 1800, Rank: 2, Title: "Expert"},
				WinRate:      0.75,
			},
		}
		server := newTestServer(deps)
		defer server.Close()

		Convey("When requesting a player's details", func() {
			resp, err := http.Get(server.URL + "/players/alice")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the detail view is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var got api.Details
				So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
				So(got.UserID, ShouldEqual, "alice")
				So(got.WinRate, ShouldEqual, 0.75)
				So(got.Title, ShouldEqual, "Expert")
			})
		})

		Convey("When requesting nearby rankings", func() {
			resp, err := http.Get(server.URL + "/players/alice/nearby?radius=2")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the neighborhood is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var got []api.Entry
				So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
				So(len(got), ShouldEqual, 3)
			})
		})

		Convey("When the nearby player is unknown", func() {
			deps.nearbyErr = repository.ErrNotFound
			resp, err := http.Get(server.URL + "/players/mallory/nearby")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the nearby radius is invalid", func() {
			resp, err := http.Get(server.URL + "/players/alice/nearby?radius=wat")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the player path is malformed", func() {
			resp, err := http.Get(server.URL + "/players/alice/extra/bits")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestStatsEndpoint(t *testing.T) {
	Convey("Given the stats HTTP API", t, func() {
		server := newTestServer(&mockRankings{entries: fixtureEntries()})
		defer server.Close()

		Convey("When requesting stats", func() {
			resp, err := http.Get(server.URL + "/stats")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then service counters come back as JSON", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var got map[string]interface{}
				So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
				So(got["tracked_players"], ShouldEqual, 3)
				So(got["current_connections"], ShouldEqual, 1)
			})
		})
	})
}

func TestHealthEndpoint(t *testing.T) {
	Convey("Given the health endpoint", t, func() {
		server := newTestServer(&mockRankings{})
		defer server.Close()

		Convey("When scraping it", func() {
			resp, err := http.Get(server.URL + "/healthz")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the metrics exposition is served", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
			})
		})
	})
}
