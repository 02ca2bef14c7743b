package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/zcalc/internal/domain/model"
)

const table = `Sex,Agemos,L,M,S,P3,P50,P97
1,1.50,3.869576802,39.20742929,0.040947903,35.8,39.2,41.9
2,0,4.427825037,36.4,0.05,32.5,36.4,40.1
`

func runApp(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(context.Background(), append([]string{"lmsload"}, args...))
	return out.String(), err
}

func TestLoaderCLI(t *testing.T) {
	convey.Convey("Given a reference CSV and an empty sqlite file", t, func() {
		dir := t.TempDir()
		csvPath := filepath.Join(dir, "hcageinf.csv")
		convey.So(os.WriteFile(csvPath, []byte(table), 0o600), convey.ShouldBeNil)
		db := filepath.Join(dir, "lms.db")

		convey.Convey("When the table is imported", func() {
			out, err := runApp("--driver", "sqlite", "--dsn", db, "import", "--attribute", "head_circumference", csvPath)

			convey.Convey("Then every row is written", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "imported 2 rows into sqlite")
			})

			convey.Convey("And a row can be read back by its canonical key", func() {
				out, err := runApp("--driver", "sqlite", "--dsn", db, "get", "--agemos", "1.5", "--sex", "female")
				convey.So(err, convey.ShouldBeNil)

				var got struct {
					Attribute string  `json:"attribute"`
					Agemos    string  `json:"agemos"`
					Sex       string  `json:"sex"`
					L         float64 `json:"L"`
					M         float64 `json:"M"`
					S         float64 `json:"S"`
				}
				convey.So(json.Unmarshal([]byte(out), &got), convey.ShouldBeNil)
				convey.So(got.Attribute, convey.ShouldEqual, "head_circumference")
				convey.So(got.Agemos, convey.ShouldEqual, "1.5")
				convey.So(got.Sex, convey.ShouldEqual, "1")
				convey.So(got.M, convey.ShouldEqual, 39.20742929)
			})

			convey.Convey("And a missing key is an error", func() {
				_, err := runApp("--driver", "sqlite", "--dsn", db, "get", "--agemos", "99", "--sex", "2")
				convey.So(errors.Is(err, model.ErrReferenceNotFound), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When no file is given", func() {
			_, err := runApp("--driver", "sqlite", "--dsn", db, "import")

			convey.Convey("Then import fails", func() {
				convey.So(errors.Is(err, errNoFiles), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the attribute is unknown", func() {
			_, err := runApp("--driver", "sqlite", "--dsn", db, "import", "--attribute", "length", csvPath)

			convey.Convey("Then import fails", func() {
				convey.So(errors.Is(err, model.ErrUnknownAttribute), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the driver is unknown", func() {
			_, err := runApp("--driver", "mongo", "import", csvPath)

			convey.Convey("Then the store cannot be opened", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "failed to open mongo store")
			})
		})
	})
}
