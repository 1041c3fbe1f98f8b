// Package plan compiles a pair of views into a replayable data-movement
// program.
//
// Compilation pipeline:
//  1. Validate that destination and source enumerate the same byte count.
//  2. Pair the two enumerations position by position, splitting unequal
//     blocks into common chunks.
//  3. Classify each chunk: same-rank chunks on this process become direct
//     copy instructions; cross-rank chunks involving this process join the
//     send or receive schedule of the peer rank.
//  4. Order the schedule deterministically: ascending peer rank, view order
//     within a peer. Every rank pairing the same logical views derives the
//     same schedule, which is what keeps cross-rank execution from
//     deadlocking.
//
// Compilation is pure and may be expensive; the executable it produces is
// replayed at near-zero cost. The executable captures buffer references and
// offsets, not contents, so the caller must keep the underlying storage
// alive and in place for as long as the executable is used.
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/sbl8/gridfield/comms"
	"github.com/sbl8/gridfield/view"
)

// Plan is an uncompiled pairing of a destination view and a source view.
type Plan struct {
	Destination view.View
	Source      view.View
}

// New creates a plan for moving the bytes enumerated by src into dst.
func New(dst, src view.View) *Plan {
	return &Plan{Destination: dst, Source: src}
}

// localCopy is one same-rank chunk, pre-resolved to buffer slices.
type localCopy struct {
	dst []byte
	src []byte
}

// message is the traffic with one peer: an ordered list of chunk slices that
// concatenate into a single wire message.
type message struct {
	peer   int
	chunks [][]byte
	bytes  int
}

// Executable is a compiled, replayable transfer program for one rank.
type Executable struct {
	rank   int
	locals []localCopy
	sends  []message
	recvs  []message
}

// chunk is one paired byte extent after splitting.
type chunk struct {
	dst view.AccessPoint
	src view.AccessPoint
	n   int
}

// Compile produces the executable transfer program for the given rank.
// It fails on any contract violation: byte-count mismatch between the views,
// or a chunk this rank must touch without a locally bound buffer.
func (p *Plan) Compile(rank int) (*Executable, error) {
	db, sb := p.Destination.TotalBytes(), p.Source.TotalBytes()
	if db != sb {
		return nil, errors.Errorf("plan: destination enumerates %d bytes, source %d", db, sb)
	}

	chunks := pairChunks(p.Destination, p.Source)
	x := &Executable{rank: rank}
	sendGroups := map[int]*message{}
	recvGroups := map[int]*message{}

	for i, c := range chunks {
		switch {
		case c.dst.Rank == rank && c.src.Rank == rank:
			d, err := slice(c.dst, c.n, "destination", i)
			if err != nil {
				return nil, err
			}
			s, err := slice(c.src, c.n, "source", i)
			if err != nil {
				return nil, err
			}
			x.locals = append(x.locals, localCopy{dst: d, src: s})
		case c.src.Rank == rank && c.dst.Rank != rank:
			s, err := slice(c.src, c.n, "source", i)
			if err != nil {
				return nil, err
			}
			appendChunk(sendGroups, c.dst.Rank, s)
		case c.dst.Rank == rank && c.src.Rank != rank:
			d, err := slice(c.dst, c.n, "destination", i)
			if err != nil {
				return nil, err
			}
			appendChunk(recvGroups, c.src.Rank, d)
		default:
			// Traffic between two other ranks; they compile it themselves.
		}
	}

	x.sends = orderMessages(sendGroups)
	x.recvs = orderMessages(recvGroups)
	return x, nil
}

// pairChunks walks both enumerations in order, emitting chunks of the common
// length whenever block sizes differ. Total byte counts are already known to
// match.
func pairChunks(dst, src view.View) []chunk {
	var out []chunk
	di, si := 0, 0
	dOff, sOff := 0, 0
	for di < len(dst.Points) && si < len(src.Points) {
		d, s := dst.Points[di], src.Points[si]
		dRem, sRem := d.Length-dOff, s.Length-sOff
		if dRem == 0 {
			di++
			dOff = 0
			continue
		}
		if sRem == 0 {
			si++
			sOff = 0
			continue
		}
		n := dRem
		if sRem < n {
			n = sRem
		}
		out = append(out, chunk{
			dst: view.AccessPoint{Rank: d.Rank, Buf: d.Buf, Offset: d.Offset + dOff, Length: n},
			src: view.AccessPoint{Rank: s.Rank, Buf: s.Buf, Offset: s.Offset + sOff, Length: n},
			n:   n,
		})
		dOff += n
		sOff += n
	}
	return out
}

func slice(p view.AccessPoint, n int, side string, i int) ([]byte, error) {
	if p.Buf == nil {
		return nil, errors.Errorf("plan: chunk %d needs the %s buffer of rank %d, but none is bound locally", i, side, p.Rank)
	}
	return p.Buf[p.Offset : p.Offset+n], nil
}

func appendChunk(groups map[int]*message, peer int, b []byte) {
	m, ok := groups[peer]
	if !ok {
		m = &message{peer: peer}
		groups[peer] = m
	}
	m.chunks = append(m.chunks, b)
	m.bytes += len(b)
}

// orderMessages fixes the schedule: ascending peer rank; chunk order within
// a message is view order, set by insertion.
func orderMessages(groups map[int]*message) []message {
	peers := make([]int, 0, len(groups))
	for p := range groups {
		peers = append(peers, p)
	}
	sort.Ints(peers)
	out := make([]message, 0, len(peers))
	for _, p := range peers {
		out = append(out, *groups[p])
	}
	return out
}

// Execute replays the compiled program: local copies first (they carry no
// ordering dependencies), then all sends in schedule order, then all
// receives in schedule order. Posting every send before the first receive
// keeps matching schedules on all ranks from deadlocking on transports with
// buffered delivery.
func (x *Executable) Execute(c comms.Communicator) error {
	if c.Rank() != x.rank {
		return fmt.Errorf("plan: executable compiled for rank %d, executing on rank %d", x.rank, c.Rank())
	}
	for _, lc := range x.locals {
		copy(lc.dst, lc.src)
	}
	for _, m := range x.sends {
		buf := make([]byte, 0, m.bytes)
		for _, ch := range m.chunks {
			buf = append(buf, ch...)
		}
		if err := c.Send(m.peer, buf); err != nil {
			return fmt.Errorf("plan: send to rank %d: %w", m.peer, err)
		}
	}
	for _, m := range x.recvs {
		buf, err := c.Recv(m.peer)
		if err != nil {
			return fmt.Errorf("plan: recv from rank %d: %w", m.peer, err)
		}
		if len(buf) != m.bytes {
			return fmt.Errorf("plan: rank %d sent %d bytes, schedule expects %d", m.peer, len(buf), m.bytes)
		}
		off := 0
		for _, ch := range m.chunks {
			copy(ch, buf[off:off+len(ch)])
			off += len(ch)
		}
	}
	return nil
}

// LocalCopies returns the number of compiled local copy instructions.
func (x *Executable) LocalCopies() int {
	return len(x.locals)
}

// Schedule renders the communication schedule as a stable string, one line
// per message, for diagnostics and determinism checks.
func (x *Executable) Schedule() string {
	var sb strings.Builder
	for _, m := range x.sends {
		fmt.Fprintf(&sb, "send rank=%d chunks=%d bytes=%d\n", m.peer, len(m.chunks), m.bytes)
	}
	for _, m := range x.recvs {
		fmt.Fprintf(&sb, "recv rank=%d chunks=%d bytes=%d\n", m.peer, len(m.chunks), m.bytes)
	}
	return sb.String()
}
