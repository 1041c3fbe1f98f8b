// Package comms defines the communicator contract used by copy-plan execution
// and provides two reference implementations: a single-rank communicator for
// serial runs and an in-process mesh that connects a set of goroutine ranks
// through per-pair mailboxes.
//
// The model is single-program-multiple-data: every rank executes the same
// program against its local shard and exchanges data only through explicit
// point-to-point messages. A concrete transport (e.g. a network-backed
// implementation) must be registered by the caller; this package deliberately
// does not select one.
package comms

import (
	"errors"
	"fmt"
)

// Communicator is the narrow point-to-point transport contract required by
// copy-plan execution. Send must not block while the peer's mailbox has
// capacity; Recv blocks until a message from the given peer arrives.
// Implementations must deliver messages between a fixed (from, to) pair in
// send order.
type Communicator interface {
	// Rank returns this process's rank, 0 <= rank < Size().
	Rank() int
	// Size returns the number of ranks participating.
	Size() int
	// Send delivers data to the mailbox of the given rank.
	Send(to int, data []byte) error
	// Recv returns the next message sent by the given rank.
	Recv(from int) ([]byte, error)
}

// ErrNoPeer is returned when a rank outside [0, Size()) is addressed.
var ErrNoPeer = errors.New("comms: peer rank out of range")

// Single is the serial communicator: one rank, no peers. Any attempt to
// address another rank fails.
type Single struct{}

// Rank returns 0.
func (Single) Rank() int { return 0 }

// Size returns 1.
func (Single) Size() int { return 1 }

// Send always fails: a single-rank communicator has no peers.
func (Single) Send(to int, data []byte) error {
	return fmt.Errorf("%w: send to %d on single-rank communicator", ErrNoPeer, to)
}

// Recv always fails: a single-rank communicator has no peers.
func (Single) Recv(from int) ([]byte, error) {
	return nil, fmt.Errorf("%w: recv from %d on single-rank communicator", ErrNoPeer, from)
}

// Pretend reports an arbitrary rank and size without any transport behind
// it. It lets shape and byte accounting for a partitioned grid be computed
// on a single machine; any actual traffic fails.
type Pretend struct {
	MyRank  int
	NumRank int
}

// Rank returns the pretended rank.
func (p Pretend) Rank() int { return p.MyRank }

// Size returns the pretended rank count.
func (p Pretend) Size() int { return p.NumRank }

// Send always fails: a pretend communicator carries no traffic.
func (p Pretend) Send(to int, data []byte) error {
	return fmt.Errorf("%w: pretend communicator carries no traffic", ErrNoPeer)
}

// Recv always fails: a pretend communicator carries no traffic.
func (p Pretend) Recv(from int) ([]byte, error) {
	return nil, fmt.Errorf("%w: pretend communicator carries no traffic", ErrNoPeer)
}

// mailboxDepth bounds the number of in-flight messages per (from, to) pair.
// Copy-plan schedules post all sends before draining receives, so the depth
// must cover the largest number of messages one rank sends to one peer within
// a single plan execution.
const mailboxDepth = 64

// Mesh is an in-process transport connecting n goroutine ranks. Each ordered
// (from, to) pair owns a buffered mailbox, so sends do not block until the
// mailbox is full and message order per pair is preserved.
type Mesh struct {
	size  int
	boxes [][]chan []byte // boxes[to][from]
}

// NewMesh creates a mesh of n ranks and returns one Communicator per rank.
// The communicators are intended to be handed to n goroutines running the
// same program.
func NewMesh(n int) ([]Communicator, error) {
	if n < 1 {
		return nil, fmt.Errorf("comms: mesh size must be positive, got %d", n)
	}
	m := &Mesh{size: n, boxes: make([][]chan []byte, n)}
	for to := 0; to < n; to++ {
		m.boxes[to] = make([]chan []byte, n)
		for from := 0; from < n; from++ {
			m.boxes[to][from] = make(chan []byte, mailboxDepth)
		}
	}
	ranks := make([]Communicator, n)
	for r := 0; r < n; r++ {
		ranks[r] = &meshRank{mesh: m, rank: r}
	}
	return ranks, nil
}

type meshRank struct {
	mesh *Mesh
	rank int
}

func (r *meshRank) Rank() int { return r.rank }

func (r *meshRank) Size() int { return r.mesh.size }

func (r *meshRank) Send(to int, data []byte) error {
	if to < 0 || to >= r.mesh.size {
		return fmt.Errorf("%w: send to %d, mesh size %d", ErrNoPeer, to, r.mesh.size)
	}
	if to == r.rank {
		return errors.New("comms: self-send not permitted, use a local copy")
	}
	// The mailbox owns the bytes after Send; copy so the caller may reuse
	// its buffer immediately.
	msg := make([]byte, len(data))
	copy(msg, data)
	r.mesh.boxes[to][r.rank] <- msg
	return nil
}

func (r *meshRank) Recv(from int) ([]byte, error) {
	if from < 0 || from >= r.mesh.size {
		return nil, fmt.Errorf("%w: recv from %d, mesh size %d", ErrNoPeer, from, r.mesh.size)
	}
	if from == r.rank {
		return nil, errors.New("comms: self-recv not permitted")
	}
	return <-r.mesh.boxes[r.rank][from], nil
}
