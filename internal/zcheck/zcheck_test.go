package zcheck_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/okian/zcalc/internal/adapters/http/api"
	repository "github.com/okian/zcalc/internal/adapters/repository"
	"github.com/okian/zcalc/internal/domain/model"
	"github.com/okian/zcalc/internal/domain/scoring"
	"github.com/okian/zcalc/internal/zcheck"
	"github.com/okian/zcalc/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type lmsRow struct {
	sex     string
	agemos  string
	l, m, s float64
}

var rows = []lmsRow{
	{"1", "0", 4.427825037, 35.81366835, 0.052172542},
	{"1", "1.5", 3.869576802, 39.20742929, 0.040947903},
	{"2", "1.5", 4.195273913, 40.48289163, 0.036617924},
}

var percentiles = []float64{3, 10, 50, 90, 97}

// inverse returns the measurement at Z-score z.
func inverse(r lmsRow, z float64) float64 {
	return r.m * math.Pow(1+r.l*r.s*z, 1/r.l)
}

// table renders rows with LMS and percentile columns, shifting every
// measurement by skew to simulate a wrong reference.
func table(skew float64) string {
	var b strings.Builder
	b.WriteString("Sex,Agemos,L,M,S")
	for _, p := range percentiles {
		fmt.Fprintf(&b, ",P%g", p)
	}
	b.WriteString("\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s", r.sex, r.agemos, ftoa(r.l), ftoa(r.m), ftoa(r.s))
		for _, p := range percentiles {
			x := inverse(r, zcheck.Quantile(p/100)) + skew
			b.WriteString("," + ftoa(x))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

type deps struct{ scorer *scoring.Orchestrator }

func (d deps) ZScore(ctx context.Context, p model.Patient, a model.Attribute) (model.ZScoreResult, error) {
	return d.scorer.ScoreFor(ctx, p, a)
}

type noStats struct{}

func (noStats) GetStats() map[string]interface{} { return map[string]interface{}{} }

func newServer(t *testing.T) *httptest.Server {
	store := repository.NewMemoryStore()
	n, err := repository.ImportCSV(context.Background(), store, model.HeadCircumference, strings.NewReader(table(0)))
	if err != nil || n != len(rows) {
		t.Fatalf("seeding store: %d rows, %v", n, err)
	}
	mux := http.NewServeMux()
	api.NewServer(deps{scorer: scoring.New(store)}, noStats{}).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func writeTable(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "hc.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestQuantile(t *testing.T) {
	Convey("Given the standard normal quantile", t, func() {
		Convey("Then the median is zero and tails are symmetric", func() {
			So(zcheck.Quantile(0.5), ShouldEqual, 0)
			So(zcheck.Quantile(0.97), ShouldAlmostEqual, 1.880793608, 1e-8)
			So(zcheck.Quantile(0.03), ShouldAlmostEqual, -zcheck.Quantile(0.97), 1e-12)
		})
	})
}

func TestGenerateCases(t *testing.T) {
	Convey("Given a reference table with percentile columns", t, func() {
		cases, err := zcheck.GenerateCases(model.HeadCircumference, strings.NewReader(table(0)))

		Convey("Then one case is produced per row and percentile", func() {
			So(err, ShouldBeNil)
			So(len(cases), ShouldEqual, len(rows)*len(percentiles))
			So(cases[2].Percentile, ShouldEqual, 50)
			So(cases[2].X, ShouldAlmostEqual, rows[0].m, 1e-9)
			So(cases[2].Expected, ShouldEqual, 0)
			So(cases[0].Key, ShouldResemble, model.ReferenceKey{AgeMonths: "0", Sex: model.Female})
		})
	})

	Convey("Given a table without percentile columns", t, func() {
		_, err := zcheck.GenerateCases(model.HeadCircumference, strings.NewReader("Sex,Agemos,L,M,S\n1,0,1,2,3\n"))
		So(err, ShouldEqual, zcheck.ErrNoCases)
	})

	Convey("Given a table with a bad percentile value", t, func() {
		_, err := zcheck.GenerateCases(model.HeadCircumference, strings.NewReader("Sex,Agemos,P50\n1,0,wide\n"))
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "is not a number")
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running z-score service", t, func() {
		srv := newServer(t)
		defer srv.Close()

		cfg := &zcheck.Config{
			BaseURL:   srv.URL,
			Attribute: model.HeadCircumference,
			Workers:   4,
		}

		Convey("When the tables agree with the reference", func() {
			cfg.Tables = []string{writeTable(t, table(0))}
			stats, err := zcheck.Run(context.Background(), cfg, logger.Nop())

			Convey("Then every case passes", func() {
				So(err, ShouldBeNil)
				So(stats.Cases, ShouldEqual, len(rows)*len(percentiles))
				So(stats.Passed, ShouldEqual, stats.Cases)
				So(stats.MaxDelta, ShouldBeLessThan, zcheck.DefaultTolerance)
			})
		})

		Convey("When the tables are skewed", func() {
			cfg.Tables = []string{writeTable(t, table(0.5))}
			stats, err := zcheck.Run(context.Background(), cfg, logger.Nop())

			Convey("Then the run reports a mismatch", func() {
				So(errors.Is(err, zcheck.ErrMismatch), ShouldBeTrue)
				So(stats.Failed, ShouldEqual, stats.Cases)
			})
		})

		Convey("When a table row has no reference", func() {
			cfg.Tables = []string{writeTable(t, "Sex,Agemos,P50\n2,240,50\n")}
			stats, err := zcheck.Run(context.Background(), cfg, logger.Nop())

			Convey("Then the case is counted as errored", func() {
				So(errors.Is(err, zcheck.ErrMismatch), ShouldBeTrue)
				So(stats.Errored, ShouldEqual, 1)
			})
		})

		Convey("When the table file does not exist", func() {
			cfg.Tables = []string{filepath.Join(t.TempDir(), "missing.csv")}
			_, err := zcheck.Run(context.Background(), cfg, logger.Nop())
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given no service listening", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := zcheck.Run(context.Background(), &zcheck.Config{BaseURL: url}, logger.Nop())
		So(errors.Is(err, zcheck.ErrUnhealthy), ShouldBeTrue)
	})
}
