package event

// Queue 是无界 FIFO 事件队列，只由驱动循环单线程持有，因此不加锁。
// 处理事件时可以继续 Push，新事件排在已有事件之后。
type Queue struct {
	items []Event
	head  int
	total int64
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Push(e Event) {
	if e == nil {
		return
	}
	q.items = append(q.items, e)
	q.total++
}

// Pop 取出队首事件；队列为空时返回 false。
func (q *Queue) Pop() (Event, bool) {
	if q.head >= len(q.items) {
		return nil, false
	}
	e := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return e, true
}

func (q *Queue) Len() int { return len(q.items) - q.head }

func (q *Queue) Empty() bool { return q.Len() == 0 }

// Pushed 返回累计入队数量。
func (q *Queue) Pushed() int64 { return q.total }

// Reset 清空队列。
func (q *Queue) Reset() {
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
}
