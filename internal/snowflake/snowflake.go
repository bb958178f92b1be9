package snowflake

import (
	"fmt"
	"sync"
	"time"
)

type Snowflake struct {
	Timestamp int64
	WorkerID  int64
	Increment int64
}

const (
	timestampLength int64 = 42                                    // 42
	timestampPos          = 64 - timestampLength                  // 22
	workerLength    int64 = 10                                    // 10
	workerPos             = timestampPos - workerLength           // 12
	incrementLength       = 64 - (timestampLength + workerLength) // 12

	maxWorkerValue    = int64(1)<<workerLength - 1
	maxIncrementValue = int64(1)<<incrementLength - 1
)

// Node hands out ids that only ever grow. Message ids double as the
// ordering key of a conversation, so when the clock stalls or steps back
// the node keeps counting on top of the last timestamp it used, and when
// the increment runs out it borrows the next millisecond.
type Node struct {
	mutex         sync.Mutex
	workerID      int64
	lastTimestamp int64
	lastIncrement int64
	now           func() time.Time
}

func NewNode(workerID int64, now func() time.Time) (*Node, error) {
	if workerID < 0 || workerID > maxWorkerValue {
		return nil, fmt.Errorf("worker ID value must be between 0 and %d", maxWorkerValue)
	}
	if now == nil {
		now = time.Now
	}
	return &Node{workerID: workerID, now: now}, nil
}

func (n *Node) Generate() int64 {
	return n.GenerateAfter(0)
}

// GenerateAfter returns an id greater than floor. Floor may come from
// another worker, so instead of counting on top of it the node moves to the
// next millisecond and keeps its own worker bits.
func (n *Node) GenerateAfter(floor int64) int64 {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	floorTimestamp := floor >> timestampPos
	id := n.next(max(n.now().UnixMilli(), floorTimestamp))
	if id <= floor {
		id = n.next(floorTimestamp + 1)
	}
	return id
}

func (n *Node) next(timestamp int64) int64 {
	if timestamp <= n.lastTimestamp {
		timestamp = n.lastTimestamp
		n.lastIncrement++
		if n.lastIncrement > maxIncrementValue {
			timestamp++
			n.lastIncrement = 0
		}
	} else {
		n.lastIncrement = 0
	}
	n.lastTimestamp = timestamp

	return timestamp<<timestampPos | n.workerID<<workerPos | n.lastIncrement
}

func Extract(snowflakeId int64) Snowflake {
	return Snowflake{
		Timestamp: snowflakeId >> timestampPos,
		WorkerID:  (snowflakeId >> workerPos) & maxWorkerValue,
		Increment: snowflakeId & maxIncrementValue,
	}
}

func ExtractTime(snowflakeId int64) time.Time {
	return time.UnixMilli(snowflakeId >> timestampPos).UTC()
}
