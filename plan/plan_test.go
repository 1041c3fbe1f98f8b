package plan

import (
	"bytes"
	"sync"
	"testing"

	"github.com/sbl8/gridfield/comms"
	"github.com/sbl8/gridfield/view"
)

func mustMemory(t testing.TB, rank int, buf []byte, offset, length int) view.View {
	t.Helper()
	v, err := view.Memory(rank, buf, offset, length)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func mustBlocks(t testing.TB, points []view.AccessPoint) view.View {
	t.Helper()
	v, err := view.Blocks(points)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestCompileByteCountMismatch(t *testing.T) {
	t.Parallel()
	dst := mustMemory(t, 0, make([]byte, 8), 0, 8)
	src := mustMemory(t, 0, make([]byte, 4), 0, 4)
	if _, err := New(dst, src).Compile(0); err == nil {
		t.Error("expected error for byte-count mismatch")
	}
}

func TestCompileMissingLocalBuffer(t *testing.T) {
	t.Parallel()
	// Both sides claim rank 0, but the source has no buffer bound.
	dst := mustMemory(t, 0, make([]byte, 8), 0, 8)
	src := mustMemory(t, 0, nil, 0, 8)
	if _, err := New(dst, src).Compile(0); err == nil {
		t.Error("expected error for unbound local buffer")
	}
}

func TestExecuteLocalCopy(t *testing.T) {
	t.Parallel()
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	dst := make([]byte, 8)

	x, err := New(
		mustMemory(t, 0, dst, 0, 8),
		mustMemory(t, 0, src, 0, 8),
	).Compile(0)
	if err != nil {
		t.Fatal(err)
	}
	if x.LocalCopies() != 1 {
		t.Errorf("LocalCopies = %d, want 1", x.LocalCopies())
	}
	if err := x.Execute(comms.Single{}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dst, src) {
		t.Errorf("dst = %v, want %v", dst, src)
	}
}

func TestChunkPairingSplitsUnequalBlocks(t *testing.T) {
	t.Parallel()
	// Destination enumerates 3+5 bytes, source 4+4. Pairing must split the
	// blocks into common chunks and still move every byte once.
	srcBuf := []byte{10, 11, 12, 13, 20, 21, 22, 23}
	dstBuf := make([]byte, 8)

	dst := mustBlocks(t, []view.AccessPoint{
		{Rank: 0, Buf: dstBuf, Offset: 0, Length: 3},
		{Rank: 0, Buf: dstBuf, Offset: 3, Length: 5},
	})
	src := mustBlocks(t, []view.AccessPoint{
		{Rank: 0, Buf: srcBuf, Offset: 0, Length: 4},
		{Rank: 0, Buf: srcBuf, Offset: 4, Length: 4},
	})

	x, err := New(dst, src).Compile(0)
	if err != nil {
		t.Fatal(err)
	}
	if x.LocalCopies() != 3 {
		t.Errorf("LocalCopies = %d, want 3 (split at 3 and 4)", x.LocalCopies())
	}
	if err := x.Execute(comms.Single{}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dstBuf, srcBuf) {
		t.Errorf("dst = %v, want %v", dstBuf, srcBuf)
	}
}

func TestExecuteGatherScatter(t *testing.T) {
	t.Parallel()
	// Scattered source blocks into a contiguous destination and back out.
	srcBuf := []byte{0xA, 0, 0xB, 0, 0xC, 0}
	dstBuf := make([]byte, 3)

	dst := mustMemory(t, 0, dstBuf, 0, 3)
	src := mustBlocks(t, []view.AccessPoint{
		{Rank: 0, Buf: srcBuf, Offset: 0, Length: 1},
		{Rank: 0, Buf: srcBuf, Offset: 2, Length: 1},
		{Rank: 0, Buf: srcBuf, Offset: 4, Length: 1},
	})

	x, err := New(dst, src).Compile(0)
	if err != nil {
		t.Fatal(err)
	}
	if err := x.Execute(comms.Single{}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dstBuf, []byte{0xA, 0xB, 0xC}) {
		t.Errorf("gather produced %v", dstBuf)
	}
}

func TestExecuteWrongRank(t *testing.T) {
	t.Parallel()
	buf := make([]byte, 4)
	x, err := New(
		mustMemory(t, 1, buf, 0, 4),
		mustMemory(t, 1, buf, 0, 4),
	).Compile(1)
	if err != nil {
		t.Fatal(err)
	}
	if err := x.Execute(comms.Single{}); err == nil {
		t.Error("expected error executing a rank-1 program on rank 0")
	}
}

func TestCompileSkipsForeignTraffic(t *testing.T) {
	t.Parallel()
	// A transfer entirely between ranks 1 and 2 compiles to a no-op on rank 0.
	dst := mustMemory(t, 1, nil, 0, 8)
	src := mustMemory(t, 2, nil, 0, 8)
	x, err := New(dst, src).Compile(0)
	if err != nil {
		t.Fatal(err)
	}
	if x.LocalCopies() != 0 || x.Schedule() != "" {
		t.Errorf("foreign traffic produced work: %d locals, schedule %q",
			x.LocalCopies(), x.Schedule())
	}
}

// exchange builds the global views of a two-rank swap as seen by one rank:
// each rank's destination receives the other rank's source.
func exchangeViews(t testing.TB, me int, dst, src []byte, n int) (view.View, view.View) {
	t.Helper()
	bind := func(rank int, buf []byte) []byte {
		if rank == me {
			return buf
		}
		return nil
	}
	d := mustBlocks(t, []view.AccessPoint{
		{Rank: 0, Buf: bind(0, dst), Offset: 0, Length: n},
		{Rank: 1, Buf: bind(1, dst), Offset: 0, Length: n},
	})
	s := mustBlocks(t, []view.AccessPoint{
		{Rank: 1, Buf: bind(1, src), Offset: 0, Length: n},
		{Rank: 0, Buf: bind(0, src), Offset: 0, Length: n},
	})
	return d, s
}

func TestExecuteTwoRankExchange(t *testing.T) {
	t.Parallel()
	const n = 16
	ranks, err := comms.NewMesh(2)
	if err != nil {
		t.Fatal(err)
	}

	srcs := [2][]byte{make([]byte, n), make([]byte, n)}
	dsts := [2][]byte{make([]byte, n), make([]byte, n)}
	for r := 0; r < 2; r++ {
		for i := range srcs[r] {
			srcs[r][i] = byte(r*100 + i)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func(me int) {
			defer wg.Done()
			dv, sv := exchangeViews(t, me, dsts[me], srcs[me], n)
			x, err := New(dv, sv).Compile(me)
			if err != nil {
				errs <- err
				return
			}
			if err := x.Execute(ranks[me]); err != nil {
				errs <- err
			}
		}(r)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	if !bytes.Equal(dsts[0], srcs[1]) {
		t.Errorf("rank 0 dst = %v, want rank 1 src", dsts[0])
	}
	if !bytes.Equal(dsts[1], srcs[0]) {
		t.Errorf("rank 1 dst = %v, want rank 0 src", dsts[1])
	}
}

func TestScheduleAgreesAcrossRanks(t *testing.T) {
	t.Parallel()
	// Both ranks compile the same logical views; rank 0's send schedule must
	// mirror rank 1's receive schedule byte for byte.
	const n = 8
	dst := make([]byte, n)
	src := make([]byte, n)

	d0, s0 := exchangeViews(t, 0, dst, src, n)
	d1, s1 := exchangeViews(t, 1, dst, src, n)

	x0, err := New(d0, s0).Compile(0)
	if err != nil {
		t.Fatal(err)
	}
	x1, err := New(d1, s1).Compile(1)
	if err != nil {
		t.Fatal(err)
	}

	want0 := "send rank=1 chunks=1 bytes=8\nrecv rank=1 chunks=1 bytes=8\n"
	want1 := "send rank=0 chunks=1 bytes=8\nrecv rank=0 chunks=1 bytes=8\n"
	if x0.Schedule() != want0 {
		t.Errorf("rank 0 schedule:\n%swant:\n%s", x0.Schedule(), want0)
	}
	if x1.Schedule() != want1 {
		t.Errorf("rank 1 schedule:\n%swant:\n%s", x1.Schedule(), want1)
	}
}

func BenchmarkCompileLocal(b *testing.B) {
	const n = 1 << 16
	src := make([]byte, n)
	dst := make([]byte, n)
	points := make([]view.AccessPoint, 0, n/16)
	for off := 0; off < n; off += 16 {
		points = append(points, view.AccessPoint{Rank: 0, Buf: src, Offset: off, Length: 16})
	}
	sv, err := view.Blocks(points)
	if err != nil {
		b.Fatal(err)
	}
	dv, err := view.Memory(0, dst, 0, n)
	if err != nil {
		b.Fatal(err)
	}
	p := New(dv, sv)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Compile(0); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkExecuteLocal(b *testing.B) {
	const n = 1 << 16
	src := make([]byte, n)
	dst := make([]byte, n)
	dv, err := view.Memory(0, dst, 0, n)
	if err != nil {
		b.Fatal(err)
	}
	sv, err := view.Memory(0, src, 0, n)
	if err != nil {
		b.Fatal(err)
	}
	x, err := New(dv, sv).Compile(0)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := x.Execute(comms.Single{}); err != nil {
			b.Fatal(err)
		}
	}
}
