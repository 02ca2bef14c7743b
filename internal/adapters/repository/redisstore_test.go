package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/zcalc/internal/domain/model"
)

// fakeHashes is an in-process stand-in for the Redis hash commands.
type fakeHashes struct {
	hashes map[string]map[string]string
	err    error
	gets   []string
	closed bool
}

func (f *fakeHashes) HGetAll(_ context.Context, key string) *redis.StringStringMapCmd {
	f.gets = append(f.gets, key)
	if f.err != nil {
		return redis.NewStringStringMapResult(nil, f.err)
	}
	return redis.NewStringStringMapResult(f.hashes[key], nil)
}

func (f *fakeHashes) HSet(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		h[values[i].(string)] = values[i+1].(string)
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (f *fakeHashes) Close() error {
	f.closed = true
	return nil
}

func TestRedisStore(t *testing.T) {
	Convey("Given a redis store", t, func() {
		ctx := context.Background()
		client := &fakeHashes{hashes: map[string]map[string]string{
			"lms:head_circumference:1.5:1": {
				"Agemos": "1.5", "Sex": "1",
				"L": "3.869576802", "M": "39.20742929", "S": "0.040947903",
				"P3": "35.78126227", "P97": "41.94137873",
			},
			"lms:head_circumference:2.5:1": {"L": "3.1", "M": "n/a", "S": "0.04"},
		}}
		store := NewRedisStore(client)
		key := model.ReferenceKey{AgeMonths: "1.5", Sex: model.Female}

		Convey("When the hash exists", func() {
			got, err := store.Fetch(ctx, model.HeadCircumference, key)

			Convey("Then L, M and S are read and percentiles ignored", func() {
				So(err, ShouldBeNil)
				So(got, ShouldResemble, model.ReferenceParameters{L: 3.869576802, M: 39.20742929, S: 0.040947903})
				So(client.gets, ShouldResemble, []string{"lms:head_circumference:1.5:1"})
			})
		})

		Convey("When the hash does not exist", func() {
			_, err := store.Fetch(ctx, model.HeadCircumference, model.ReferenceKey{AgeMonths: "1.5", Sex: model.Male})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When a field is not numeric", func() {
			_, err := store.Fetch(ctx, model.HeadCircumference, model.ReferenceKey{AgeMonths: "2.5", Sex: model.Female})
			So(errors.Is(err, ErrMalformedRecord), ShouldBeTrue)
		})

		Convey("When the connection fails", func() {
			client.err = errors.New("dial tcp: connection refused")
			_, err := store.Fetch(ctx, model.HeadCircumference, key)
			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
		})

		Convey("When rows are upserted under a custom prefix", func() {
			custom := NewRedisStore(client, WithKeyPrefix("cdc"))
			row := Row{Key: model.ReferenceKey{AgeMonths: "24", Sex: model.Male}, L: "-0.2", M: "16.6", S: "0.08"}
			n, err := custom.Upsert(ctx, model.BMI, []Row{row})
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			got, err := custom.Fetch(ctx, model.BMI, row.Key)

			Convey("Then they are readable back", func() {
				So(err, ShouldBeNil)
				So(got.M, ShouldEqual, 16.6)
				So(custom.Key(model.BMI, row.Key), ShouldEqual, "cdc:bmi:24:2")
			})
		})

		Convey("When the store is closed", func() {
			So(store.Close(), ShouldBeNil)
			So(client.closed, ShouldBeTrue)
			So(store.Name(), ShouldEqual, DriverRedis)
		})
	})
}
