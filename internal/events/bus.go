package events

import (
	"errors"
	"sync"
)

var (
	// ErrBusClosed 表示总线已关闭。
	ErrBusClosed = errors.New("event bus closed")
	// ErrEventDropped 表示事件被慢消费者丢弃。
	ErrEventDropped = errors.New("event dropped by slow subscriber")
)

// Bus 负责把挂载通知广播给订阅者（TUI 的交互挂钩、排版后处理等）。
// Publish 永不阻塞：慢消费者丢弃事件而不是拖住渲染循环。
type Bus struct {
	mu     sync.Mutex
	subs   []chan Event
	buffer int
	closed bool
}

// NewBus 创建总线，buffer 是每个订阅者的缓存大小。
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{buffer: buffer}
}

// Subscribe 订阅事件流。通道会在 Close 时关闭。
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	ch := make(chan Event, b.buffer)
	b.subs = append(b.subs, ch)
	return ch
}

// Publish 发布事件到所有订阅者。若存在丢弃，则返回 ErrEventDropped。
// 发送在锁内完成（本来就是非阻塞 select），并发的 Close 不会关掉
// 正在发送的通道。
func (b *Bus) Publish(event Event) error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}

	dropped := false
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			dropped = true
		}
	}
	if dropped {
		return ErrEventDropped
	}
	return nil
}

// Close 关闭总线并通知所有订阅者。
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
