package repository_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/okian/aecr/internal/adapters/repository"
	"github.com/okian/aecr/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	Convey("Given a postgres store over sqlmock", t, func() {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
		So(err, ShouldBeNil)
		defer db.Close()
		s := repository.NewPostgresStore(db, repository.WithTable("records"), repository.WithStatementTimeout(time.Second))

		Convey("When migrating", func() {
			mock.ExpectExec(`(?s)CREATE TABLE IF NOT EXISTS "records" \(.*\);\s*` +
				regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS "records_user_day_idx" ON "records" (user_id, day)`) + `$`).
				WillReturnResult(sqlmock.NewResult(0, 0))

			Convey("Then the table and a quoted index identifier are created", func() {
				So(s.Migrate(ctx), ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When upserting a record", func() {
			rec := record("c1", model.MetaAds, day, 10)
			mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (campaign_id, platform, day) DO UPDATE`)).
				WithArgs("c1", "meta_ads", "2025-08-01", "social", "acct-1", "u1", "", "USD",
					int64(1000), int64(10), float64(0), float64(50), float64(0)).
				WillReturnResult(sqlmock.NewResult(0, 1))

			Convey("Then one keyed statement is issued", func() {
				So(s.Upsert(ctx, rec), ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the database rejects an upsert", func() {
			mock.ExpectExec(`INSERT INTO "records"`).WillReturnError(errors.New("connection reset"))

			Convey("Then the error is wrapped with the record key", func() {
				err := s.Upsert(ctx, record("c1", model.MetaAds, day, 10))
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "c1")
			})
		})

		Convey("When upserting an invalid record", func() {
			err := s.Upsert(ctx, record("c1", "myspace", day, 1))

			Convey("Then nothing reaches the database", func() {
				So(errors.Is(err, repository.ErrInvalidRecord), ShouldBeTrue)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When querying with every filter set", func() {
			cols := []string{"campaign_id", "platform", "day", "channel", "account_id", "user_id", "name", "currency",
				"impressions", "clicks", "conversions", "spend", "conversion_value"}
			rows := sqlmock.NewRows(cols).
				AddRow("c1", "meta_ads", day, "social", "acct-1", "u1", "Summer", "USD ", int64(1000), int64(10), 2.0, 50.0, 120.0)
			mock.ExpectQuery(regexp.QuoteMeta(`WHERE user_id = $1 AND platform = $2 AND account_id = ANY($3) AND campaign_id = $4 AND day >= $5 AND day <= $6 ORDER BY day`)).
				WithArgs("u1", "meta_ads", arrayArg{pq.Array([]string{"acct-1"})}, "c1", "2025-08-01", "2025-08-07").
				WillReturnRows(rows)

			got, err := s.Query(ctx, repository.Filter{
				UserID: "u1", Platform: model.MetaAds, AccountIDs: []string{"acct-1"},
				CampaignID: "c1", From: day, To: day.AddDate(0, 0, 6),
			})

			Convey("Then the rows are scanned into canonical records", func() {
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0].Platform, ShouldEqual, model.MetaAds)
				So(got[0].Currency, ShouldEqual, "USD")
				So(got[0].Conversions, ShouldEqual, 2.0)
				roas, ok := got[0].ROAS()
				So(ok, ShouldBeTrue)
				So(roas, ShouldAlmostEqual, 2.4)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When querying without filters", func() {
			mock.ExpectQuery(`FROM "records" ORDER BY day, platform, campaign_id`).
				WillReturnRows(sqlmock.NewRows([]string{"campaign_id"}))

			Convey("Then no WHERE clause is emitted", func() {
				got, err := s.Query(ctx, repository.Filter{})
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)
			})
		})
	})
}

// arrayArg matches a pq array argument by its driver value.
type arrayArg struct{ want driver.Valuer }

func (a arrayArg) Match(v driver.Value) bool {
	w, err := a.want.Value()
	if err != nil {
		return false
	}
	if vv, ok := v.(driver.Valuer); ok {
		v, err = vv.Value()
		if err != nil {
			return false
		}
	}
	return w == v
}
