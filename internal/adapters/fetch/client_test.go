package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	fetch "github.com/simonaseno/nhanes/internal/adapters/fetch"
	model "github.com/simonaseno/nhanes/internal/domain/model"
	"github.com/simonaseno/nhanes/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestClientURL(t *testing.T) {
	convey.Convey("Given a client with the default origin", t, func() {
		client := fetch.NewClient()
		entry := model.SourceEntry{File: "TCHOL_D", Cycle: "2005-2006", Year: "2005"}

		convey.Convey("Then the address should follow the release layout", func() {
			convey.So(client.URL(entry), convey.ShouldEqual,
				"https://wwwn.cdc.gov/Nchs/Data/Nhanes/Public/2005/DataFiles/TCHOL_D.xpt")
		})
	})

	convey.Convey("Given a custom base URL with a trailing slash", t, func() {
		client := fetch.NewClient(fetch.WithBaseURL("http://origin.test/data/"))
		entry := model.SourceEntry{File: "DEMO", Cycle: "1999-2000", Year: "1999"}

		convey.Convey("Then the slash should not double up", func() {
			convey.So(client.URL(entry), convey.ShouldEqual,
				"http://origin.test/data/1999/DataFiles/DEMO.xpt")
		})
	})
}

func TestClientFetch(t *testing.T) {
	convey.Convey("Given an origin serving one transport file", t, func() {
		payload := []byte("HEADER RECORD*******LIBRARY HEADER RECORD!!!!!!!")
		var gotPath string
		origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			if r.URL.Path == "/2005/DataFiles/TCHOL_D.xpt" {
				w.Write(payload)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}))
		defer origin.Close()

		client := fetch.NewClient(fetch.WithBaseURL(origin.URL), fetch.WithTimeout(5*time.Second))
		entry := model.SourceEntry{File: "TCHOL_D", Cycle: "2005-2006", Year: "2005"}

		convey.Convey("When fetching a known entry", func() {
			destDir := filepath.Join(t.TempDir(), "raw", "lab")
			path, err := client.Fetch(context.Background(), entry, destDir)

			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the request should target the release path", func() {
				convey.So(gotPath, convey.ShouldEqual, "/2005/DataFiles/TCHOL_D.xpt")
			})

			convey.Convey("Then the body should land at the deterministic path", func() {
				convey.So(path, convey.ShouldEqual, filepath.Join(destDir, "TCHOL_D.xpt"))
				data, readErr := os.ReadFile(path)
				convey.So(readErr, convey.ShouldBeNil)
				convey.So(data, convey.ShouldResemble, payload)
			})

			convey.Convey("Then no staging file should remain", func() {
				_, statErr := os.Stat(path + ".partial")
				convey.So(os.IsNotExist(statErr), convey.ShouldBeTrue)
			})

			convey.Convey("And fetching again should overwrite in place", func() {
				again, err2 := client.Fetch(context.Background(), entry, destDir)
				convey.So(err2, convey.ShouldBeNil)
				convey.So(again, convey.ShouldEqual, path)
			})
		})

		convey.Convey("When the origin answers with a non-200 status", func() {
			destDir := t.TempDir()
			missing := model.SourceEntry{File: "GHOST", Cycle: "2005-2006", Year: "2005"}

			_, err := client.Fetch(context.Background(), missing, destDir)

			convey.Convey("Then the sentinel should identify the failure", func() {
				convey.So(errors.Is(err, fetch.ErrStatus), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "404")
			})

			convey.Convey("Then nothing should be written", func() {
				entries, readErr := os.ReadDir(destDir)
				convey.So(readErr, convey.ShouldBeNil)
				convey.So(entries, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the entry is incomplete", func() {
			_, err := client.Fetch(context.Background(), model.SourceEntry{File: "TCHOL_D"}, t.TempDir())

			convey.So(errors.Is(err, model.ErrInvalidEntry), convey.ShouldBeTrue)
		})

		convey.Convey("When the context is already canceled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := client.Fetch(ctx, entry, t.TempDir())

			convey.So(err, convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given a slow origin and a short timeout", t, func() {
		origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte("late"))
		}))
		defer origin.Close()

		client := fetch.NewClient(
			fetch.WithBaseURL(origin.URL),
			fetch.WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}),
		)

		convey.Convey("When the deadline passes mid-request", func() {
			entry := model.SourceEntry{File: "SLOW", Cycle: "2007-2008", Year: "2007"}
			_, err := client.Fetch(context.Background(), entry, t.TempDir())

			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
