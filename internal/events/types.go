package events

import (
	"time"

	"streammark/internal/segment"
)

// EventType 描述挂载总线上分发的事件类型。
type EventType string

const (
	// EventBlockMounted 表示一个新 block 首次挂载（Insert）。
	EventBlockMounted EventType = "block.mounted"
	// EventBlockReplaced 表示已有位置的内容被替换（Replace）。
	EventBlockReplaced EventType = "block.replaced"
	// EventBlockRemoved 表示 block 被移除（buffer 收缩/重置）。
	EventBlockRemoved EventType = "block.removed"
	// EventBlockFailed 表示一个 closed block 渲染仍然失败，
	// 界面上已挂载内联错误提示。
	EventBlockFailed EventType = "block.failed"
	// EventUpdateApplied 在一次 update tick 的补丁全部应用后发出。
	// 下游处理（滚动、排版后处理）应只针对 Changed 中的索引。
	EventUpdateApplied EventType = "update.applied"
)

// Event 是挂载总线上的单条通知。
type Event struct {
	Type      EventType
	SurfaceID string
	Index     int
	Kind      segment.Kind
	Block     segment.Block
	Err       string
	// Changed lists the indices this tick touched (EventUpdateApplied only).
	Changed   []int
	Timestamp time.Time
}
