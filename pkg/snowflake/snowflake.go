// Package snowflake hands out time-ordered ids that are unique per node. The
// gateway uses them to name realtime sockets.
package snowflake

import (
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	nodeBits        = 10
	stepBits        = 12
	nodeMax         = -1 ^ (-1 << nodeBits)
	stepMask        = -1 ^ (-1 << stepBits)
	timeShift       = nodeBits + stepBits
	nodeShift       = stepBits
	epoch     int64 = 1704067200000 // 2024-01-01 00:00:00 UTC
)

var ErrNodeRange = errors.New("snowflake: node must be between 0 and 1023")

type Node struct {
	mu   sync.Mutex
	now  func() int64
	last int64
	node int64
	step int64
}

func NewNode(node int64) (*Node, error) {
	if node < 0 || node > nodeMax {
		return nil, errors.Wrapf(ErrNodeRange, "got %d", node)
	}
	return &Node{
		now:  func() int64 { return time.Now().UnixMilli() },
		node: node,
	}, nil
}

// Generate returns the next id. If the clock steps backwards the last seen
// millisecond is reused until real time catches up.
func (n *Node) Generate() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if now < n.last {
		now = n.last
	}

	if now == n.last {
		n.step = (n.step + 1) & stepMask
		if n.step == 0 {
			for now <= n.last {
				now = n.now()
			}
		}
	} else {
		n.step = 0
	}
	n.last = now

	return ((now - epoch) << timeShift) | (n.node << nodeShift) | n.step
}

// GenerateString is Generate in base 36, the form used for socket ids.
func (n *Node) GenerateString() string {
	return strconv.FormatInt(n.Generate(), 36)
}

// NodeOf extracts the node number from an id.
func NodeOf(id int64) int64 {
	return (id >> nodeShift) & nodeMax
}
