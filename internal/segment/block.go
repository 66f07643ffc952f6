package segment

// Kind classifies a block for render dispatch.
type Kind int

const (
	// KindText is prose outside any fence. Finer structure (headings,
	// lists, tables) is the markdown converter's business, not ours.
	KindText Kind = iota
	// KindCode is a fenced block routed to the syntax highlighter.
	KindCode
	// KindDiagram is a fenced block whose tag names a diagram dialect.
	KindDiagram
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindCode:
		return "code"
	case KindDiagram:
		return "diagram"
	}
	return "unknown"
}

// Block 是渲染的最小单位：一段连续、类型化的源文本。
// Block 是不可变值对象，每次重新分段时整体重建。
type Block struct {
	Kind     Kind
	Content  string
	Language string // lowercased fence tag; empty for text and untagged fences
	Closed   bool   // whether the fence was terminated in the current buffer
	Index    int    // ordinal position in the parse
}

// Identity keys per-block render state. Position plus kind is a sufficient
// stable key for an append-only stream: historical blocks never reorder, only
// the tail block keeps mutating while new text arrives.
type Identity struct {
	Index int
	Kind  Kind
}

// Identity returns the block's render-state key.
func (b Block) Identity() Identity {
	return Identity{Index: b.Index, Kind: b.Kind}
}

// Equal reports deep equality of all fields.
func (b Block) Equal(other Block) bool {
	return b == other
}
