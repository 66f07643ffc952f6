// Package surface abstracts the live display: an ordered list of mounted
// children addressed by block index. The mount controller is the only
// writer; views (TUI, plain printer) read snapshots.
package surface

import "sync"

// Surface 是受控的有序子节点容器。实现必须容忍乱序到达的调用参数检查，
// 但挂载顺序由 mount controller 保证（按 block index 升序应用）。
type Surface interface {
	// Append creates a new child at the end.
	Append(markup string)
	// Set replaces the content of an existing child. Out-of-range indices
	// are ignored.
	Set(index int, markup string)
	// Remove detaches the child at index, shifting later children down.
	Remove(index int)
	// Len returns the current child count.
	Len() int
}

// Memory is the in-process Surface used by the TUI and by tests.
type Memory struct {
	mu       sync.RWMutex
	children []string
	version  uint64
}

// NewMemory creates an empty surface.
func NewMemory() *Memory {
	return &Memory{}
}

// Append implements Surface.
func (m *Memory) Append(markup string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.children = append(m.children, markup)
	m.version++
}

// Set implements Surface.
func (m *Memory) Set(index int, markup string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.children) {
		return
	}
	m.children[index] = markup
	m.version++
}

// Remove implements Surface.
func (m *Memory) Remove(index int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.children) {
		return
	}
	m.children = append(m.children[:index], m.children[index+1:]...)
	m.version++
}

// Len implements Surface.
func (m *Memory) Len() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.children)
}

// Children returns a snapshot of the mounted markup in order.
func (m *Memory) Children() []string {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.children))
	copy(out, m.children)
	return out
}

// Child returns one child's markup, or empty when out of range.
func (m *Memory) Child(index int) string {
	if m == nil {
		return ""
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if index < 0 || index >= len(m.children) {
		return ""
	}
	return m.children[index]
}

// Version increments on every mutation; views use it to skip recomposition
// when nothing changed.
func (m *Memory) Version() uint64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}
