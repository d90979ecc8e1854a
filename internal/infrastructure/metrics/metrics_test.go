package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/s3cleaner/internal/domain"
)

func TestMetrics(t *testing.T) {
	Convey("Given a Metrics registry", t, func() {
		m := New()

		Convey("ObserveClean should accumulate per-bucket counters", func() {
			m.ObserveClean(domain.CleanResult{Bucket: "scans", Scanned: 10, Matched: 4, Deleted: 3, FailedBatches: 1, Duration: time.Second})
			m.ObserveClean(domain.CleanResult{Bucket: "scans", Scanned: 2, ListingAborted: true})

			So(testutil.ToFloat64(m.cleanRuns.WithLabelValues("scans")), ShouldEqual, 2)
			So(testutil.ToFloat64(m.objectsScanned.WithLabelValues("scans")), ShouldEqual, 12)
			So(testutil.ToFloat64(m.objectsMatched.WithLabelValues("scans")), ShouldEqual, 4)
			So(testutil.ToFloat64(m.objectsDeleted.WithLabelValues("scans")), ShouldEqual, 3)
			So(testutil.ToFloat64(m.batchFailures.WithLabelValues("scans")), ShouldEqual, 1)
			So(testutil.ToFloat64(m.listingAborts.WithLabelValues("scans")), ShouldEqual, 1)
		})

		Convey("ObserveRequest should count by path and status", func() {
			m.ObserveRequest("/api/list", http.StatusBadRequest, time.Millisecond)
			So(testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/list", "400")), ShouldEqual, 1)
		})

		Convey("Handler should expose the registry", func() {
			m.ObserveClean(domain.CleanResult{Bucket: "scans", Deleted: 1})

			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			body, _ := io.ReadAll(rec.Body)

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(string(body), ShouldContainSubstring, `s3cleaner_objects_deleted_total{bucket="scans"} 1`)
		})
	})
}
