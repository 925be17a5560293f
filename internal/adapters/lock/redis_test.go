package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/okian/aecr/internal/adapters/lock"
	"github.com/okian/aecr/internal/domain/inflight"
	. "github.com/smartystreets/goconvey/convey"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisGuard(t *testing.T) {
	ctx := context.Background()

	Convey("Given two replicas sharing one Redis", t, func() {
		mr, client := setupRedis(t)
		a := lock.NewRedis(client, lock.WithTTL(time.Minute))
		b := lock.NewRedis(client, lock.WithTTL(time.Minute))
		var _ inflight.Guard = a

		Convey("Only one replica acquires a key", func() {
			ok, err := a.TryAcquire(ctx, "u1/meta_ads")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(mr.Exists("aecr:sync:u1/meta_ads"), ShouldBeTrue)
			So(mr.TTL("aecr:sync:u1/meta_ads"), ShouldEqual, time.Minute)

			ok, err = b.TryAcquire(ctx, "u1/meta_ads")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)

			Convey("The loser cannot release the winner's lock", func() {
				So(b.Release(ctx, "u1/meta_ads"), ShouldBeNil)
				So(mr.Exists("aecr:sync:u1/meta_ads"), ShouldBeTrue)
			})

			Convey("After the owner releases, the other replica can acquire", func() {
				So(a.Release(ctx, "u1/meta_ads"), ShouldBeNil)
				ok, err := b.TryAcquire(ctx, "u1/meta_ads")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			})

			Convey("Extend refreshes the expiry", func() {
				So(a.Extend(ctx, "u1/meta_ads", 5*time.Minute), ShouldBeNil)
				So(mr.TTL("aecr:sync:u1/meta_ads"), ShouldEqual, 5*time.Minute)
				So(errors.Is(b.Extend(ctx, "u1/meta_ads", time.Minute), lock.ErrNotOwner), ShouldBeTrue)
			})
		})

		Convey("A lock that expired while held reports lost ownership", func() {
			ok, _ := a.TryAcquire(ctx, "k")
			So(ok, ShouldBeTrue)
			mr.FastForward(2 * time.Minute)
			ok, _ = b.TryAcquire(ctx, "k")
			So(ok, ShouldBeTrue)
			So(errors.Is(a.Release(ctx, "k"), lock.ErrNotOwner), ShouldBeTrue)
			So(mr.Exists("aecr:sync:k"), ShouldBeTrue)
		})

		Convey("Redis failures surface as errors", func() {
			mr.Close()
			_, err := a.TryAcquire(ctx, "k")
			So(err, ShouldNotBeNil)
		})
	})
}
