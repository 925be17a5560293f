package inflight_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/aecr/internal/domain/inflight"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLocalGuard(t *testing.T) {
	ctx := context.Background()

	Convey("Given a local guard", t, func() {
		g := inflight.NewLocal()

		Convey("The first acquire wins and the second is rejected", func() {
			ok, err := g.TryAcquire(ctx, "u1/meta_ads")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			ok, err = g.TryAcquire(ctx, "u1/meta_ads")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
			So(g.Held("u1/meta_ads"), ShouldBeTrue)

			Convey("Other keys are independent", func() {
				ok, _ := g.TryAcquire(ctx, "u1/google_ads")
				So(ok, ShouldBeTrue)
				So(g.Size(), ShouldEqual, 2)
			})

			Convey("After release the key can be taken again", func() {
				So(g.Release(ctx, "u1/meta_ads"), ShouldBeNil)
				So(g.Size(), ShouldEqual, 0)
				ok, _ := g.TryAcquire(ctx, "u1/meta_ads")
				So(ok, ShouldBeTrue)
			})
		})

		Convey("Releasing an unheld key is a no-op", func() {
			So(g.Release(ctx, "nobody"), ShouldBeNil)
			So(g.Size(), ShouldEqual, 0)
		})

		Convey("Concurrent acquirers of one key see exactly one winner", func() {
			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 64; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if ok, _ := g.TryAcquire(ctx, "hot"); ok {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()
			So(wins.Load(), ShouldEqual, 1)
		})
	})

	Convey("Given a bounded guard", t, func() {
		g := inflight.NewLocal(inflight.WithMaxKeys(2))
		for i := 0; i < 2; i++ {
			ok, err := g.TryAcquire(ctx, fmt.Sprint(i))
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
		}

		Convey("Acquiring past the bound fails with ErrCapacity", func() {
			_, err := g.TryAcquire(ctx, "third")
			So(errors.Is(err, inflight.ErrCapacity), ShouldBeTrue)
		})
	})
}

type failing struct{ err error }

func (f failing) TryAcquire(context.Context, string) (bool, error) { return false, f.err }
func (f failing) Release(context.Context, string) error            { return nil }

func TestChain(t *testing.T) {
	ctx := context.Background()

	Convey("Given a chain of a local guard and a failing remote", t, func() {
		local := inflight.NewLocal()
		boom := errors.New("redis down")
		c := inflight.Chain{local, failing{err: boom}}

		Convey("A remote failure releases the local key", func() {
			ok, err := c.TryAcquire(ctx, "k")
			So(ok, ShouldBeFalse)
			So(errors.Is(err, boom), ShouldBeTrue)
			So(local.Held("k"), ShouldBeFalse)
		})
	})

	Convey("Given a chain of two local guards", t, func() {
		a, b := inflight.NewLocal(), inflight.NewLocal()
		c := inflight.Chain{a, b}

		Convey("Contention on the second releases the first", func() {
			_, _ = b.TryAcquire(ctx, "k")
			ok, err := c.TryAcquire(ctx, "k")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
			So(a.Held("k"), ShouldBeFalse)
		})

		Convey("Release frees both", func() {
			ok, _ := c.TryAcquire(ctx, "k")
			So(ok, ShouldBeTrue)
			So(c.Release(ctx, "k"), ShouldBeNil)
			So(a.Held("k") || b.Held("k"), ShouldBeFalse)
		})
	})
}
