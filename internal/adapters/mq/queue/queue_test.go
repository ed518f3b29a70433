package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/pulse/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func event(id string) model.Event {
	return model.Event{EventID: id, Type: model.EventValidate, AttemptID: "att-" + id}
}

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue of capacity 2", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))

		Convey("When two events are enqueued", func() {
			So(q.Enqueue(ctx, event("1")), ShouldBeNil)
			So(q.Enqueue(ctx, event("2")), ShouldBeNil)

			Convey("Then a third is refused as full", func() {
				So(errors.Is(q.Enqueue(ctx, event("3")), ErrFull), ShouldBeTrue)
				So(q.Len(), ShouldEqual, 2)
			})

			Convey("Then they are dequeued in order", func() {
				first := <-q.Dequeue()
				q.Done(first)
				So(first.Event.EventID, ShouldEqual, "1")
				So(first.EnqueuedAt.IsZero(), ShouldBeFalse)
				So((<-q.Dequeue()).Event.EventID, ShouldEqual, "2")
			})

			Convey("Then closing keeps queued events readable", func() {
				So(q.Close(), ShouldBeNil)
				So(q.Close(), ShouldBeNil)
				So(q.IsClosed(), ShouldBeTrue)
				So(errors.Is(q.Enqueue(ctx, event("4")), ErrClosed), ShouldBeTrue)

				var got []string
				for it := range q.Dequeue() {
					got = append(got, it.Event.EventID)
				}
				So(got, ShouldResemble, []string{"1", "2"})
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(errors.Is(q.Enqueue(cctx, event("x")), context.Canceled), ShouldBeTrue)
		})
	})
}

func TestInMemoryQueue_Concurrent(t *testing.T) {
	Convey("Given concurrent producers and a consumer", t, func() {
		q := NewInMemoryQueue(WithCapacity(1000))
		var wg sync.WaitGroup
		for p := 0; p < 4; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					_ = q.Enqueue(context.Background(), event(string(rune('a'+p))))
				}
			}(p)
		}
		wg.Wait()
		So(q.Close(), ShouldBeNil)

		n := 0
		for range q.Dequeue() {
			n++
		}
		So(n, ShouldEqual, 400)
	})
}
