package service_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
)

// BenchmarkImportComments benchmarks importing 1000 comments into the mock store
func BenchmarkImportComments(b *testing.B) {
	var buf bytes.Buffer
	for i := 1; i <= 1000; i++ {
		parent := ""
		if i%5 != 1 {
			parent = fmt.Sprintf(`,"parent_id":%d`, i-1)
		}
		fmt.Fprintf(&buf, `{"id":%d,"kind":"comment","target":{"content_type":"blog.post","object_id":"1"},"author":{"user_id":"u1"},"comment":"comment %d","markup":1%s}`+"\n", i, i, parent)
	}
	data := buf.Bytes()

	b.ResetTimer()
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		svcs, _ := setupWithMocks(b)
		b.StartTimer()

		if _, err := svcs.Import.ImportComments(context.Background(), bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportMetric(float64(1000*b.N)/b.Elapsed().Seconds(), "rows/sec")
}
