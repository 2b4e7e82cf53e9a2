package benchmarks

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/zoobzio/flowz"
	flowztest "github.com/zoobzio/flowz/testing"
)

func pipeline(src flowz.Publisher[int]) flowz.Publisher[int] {
	doubled := flowz.NewMapper(src, func(v int) (int, error) { return v * 2, nil })
	return flowz.NewFilter[int](doubled, func(v int) bool { return v%3 != 0 })
}

// BenchmarkPipeline_MapFilter compares a fused Mapper->Filter chain with
// the same chain driven through Request.
func BenchmarkPipeline_MapFilter(b *testing.B) {
	items := make([]int, 1000)
	for i := range items {
		items[i] = i
	}

	b.Run("fused", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			sub := flowztest.NewSubscriber[int](flowz.Unbounded).WithFusion(flowz.FusionSync)
			pipeline(flowz.FromSlice(items)).Subscribe(sub)
		}
	})

	b.Run("unfused", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			sub := flowztest.NewSubscriber[int](flowz.Unbounded)
			pipeline(flowz.FromSlice(items)).Subscribe(sub)
		}
	})

	b.Run("bounded", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			n := 0
			s := &flowz.LambdaSubscriber[int]{Initial: 32}
			s.Next = func(int) {
				n++
				if n%32 == 0 {
					s.Request(32)
				}
			}
			pipeline(flowz.FromSlice(items)).Subscribe(s)
		}
	})
}

// BenchmarkPipeline_Channel benchmarks the ToChannel bridge over a sequence.
func BenchmarkPipeline_Channel(b *testing.B) {
	ctx := context.Background()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := flowz.ToSlice[int](ctx, pipeline(flowz.Range(0, 1000))); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkPipeline_Retry benchmarks synchronous resubscription.
func BenchmarkPipeline_Retry(b *testing.B) {
	errTransient := errors.New("transient")
	for _, failures := range []int{1, 100, 10000} {
		b.Run(strconv.Itoa(failures), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				attempt := 0
				src := flowz.Defer(func() (flowz.Publisher[int], error) {
					attempt++
					if attempt <= failures {
						return flowz.Fail[int](errTransient), nil
					}
					return flowz.Just(1), nil
				})
				sub := flowztest.NewSubscriber[int](flowz.Unbounded)
				flowz.NewRetry[int](src, func(error) bool { return true }).Subscribe(sub)
			}
		})
	}
}

// BenchmarkPipeline_WindowCount benchmarks count windows with every window
// consumed as soon as it opens.
func BenchmarkPipeline_WindowCount(b *testing.B) {
	for _, size := range []int{1, 16, 256} {
		b.Run(strconv.Itoa(size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				outer := flowztest.NewSubscriber[*flowz.Window[int]](flowz.Unbounded).WithOnNext(func(w *flowz.Window[int]) {
					w.Subscribe(flowztest.NewSubscriber[int](flowz.Unbounded))
				})
				flowz.NewWindowCount[int](flowz.Range(0, 4096), size).Subscribe(outer)
			}
		})
	}
}

// BenchmarkPipeline_WindowTimed benchmarks timed window rotation on a fake
// clock.
func BenchmarkPipeline_WindowTimed(b *testing.B) {
	clock := clockz.NewFakeClock()
	src := flowztest.NewPublisher[int]()
	outer := flowztest.NewSubscriber[*flowz.Window[int]](flowz.Unbounded).WithOnNext(func(w *flowz.Window[int]) {
		w.Subscribe(flowztest.NewSubscriber[int](0))
	})
	flowz.NewWindowTimed[int](src, time.Millisecond, flowz.NewClockScheduler(clock)).
		WithClock(clock).
		Subscribe(outer)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		src.Next(i)
		if i%64 == 63 {
			clock.Advance(time.Millisecond)
			clock.BlockUntilReady()
		}
	}
	b.StopTimer()
	outer.Cancel()
}
