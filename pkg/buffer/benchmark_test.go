package buffer

import (
	"fmt"
	"math/rand/v2"
	"testing"
)

func BenchmarkWrite(b *testing.B) {
	for _, capacity := range []int{100, 1000} {
		for _, policy := range []OverflowPolicy{DropOldest, DropNewest} {
			b.Run(fmt.Sprintf("%s_%d", policy, capacity), func(b *testing.B) {
				buf, err := NewCircularBuffer[int](capacity, WithOverflowPolicy[int](policy))
				if err != nil {
					b.Fatal(err)
				}
				defer buf.Close()

				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					buf.Write(i)
				}
			})
		}
	}
}

func BenchmarkRead(b *testing.B) {
	for _, capacity := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("Capacity_%d", capacity), func(b *testing.B) {
			buf, err := NewCircularBuffer[int](capacity)
			if err != nil {
				b.Fatal(err)
			}
			defer buf.Close()

			for i := range capacity {
				buf.Write(i)
			}

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					buf.Read()
				}
			})
		})
	}
}

func BenchmarkReadBatch(b *testing.B) {
	for _, batchSize := range []int{1, 10, 64, 256} {
		b.Run(fmt.Sprintf("BatchSize_%d", batchSize), func(b *testing.B) {
			buf, err := NewCircularBuffer[int](1024)
			if err != nil {
				b.Fatal(err)
			}
			defer buf.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				for j := range 1024 {
					buf.Write(j)
				}
				for !buf.IsEmpty() {
					buf.ReadBatch(batchSize)
				}
			}
		})
	}
}

func BenchmarkMixedWorkload(b *testing.B) {
	buf, err := NewCircularBuffer[int](1000)
	if err != nil {
		b.Fatal(err)
	}
	defer buf.Close()

	for i := range 500 {
		buf.Write(i)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			switch rand.IntN(5) {
			case 0, 1:
				buf.Write(i)
				i++
			case 2, 3:
				buf.Read()
			default:
				buf.Peek()
			}
		}
	})
}

func BenchmarkDropCallbackOverhead(b *testing.B) {
	run := func(b *testing.B, opts ...Option[int]) {
		buf, err := NewCircularBuffer[int](100, opts...)
		if err != nil {
			b.Fatal(err)
		}
		defer buf.Close()

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			buf.Write(i)
		}
	}

	b.Run("WithoutCallback", func(b *testing.B) {
		run(b, WithOverflowPolicy[int](DropOldest))
	})
	b.Run("WithCallback", func(b *testing.B) {
		var sink int
		run(b,
			WithOverflowPolicy[int](DropOldest),
			WithDropCallback[int](func(item int) { sink = item }),
		)
		_ = sink
	})
}

// BenchmarkOutboundQueue models the channel manager's outbound queue:
// publishes pile up while the connection is down, then drain in
// batches on reconnect.
func BenchmarkOutboundQueue(b *testing.B) {
	buf, err := NewCircularBuffer[[]byte](256, WithOverflowPolicy[[]byte](DropOldest))
	if err != nil {
		b.Fatal(err)
	}
	defer buf.Close()

	payload := []byte(`{"type":"publish","topic":"canvas:demo","data":{"v":1}}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for range 300 {
			buf.Write(payload)
		}
		for !buf.IsEmpty() {
			buf.ReadBatch(64)
		}
	}
}
