package gallery

import "github.com/xotten/portfolio/internal/domain"

// Key is a keyboard key name as delivered by the host.
type Key string

const (
	KeyArrowLeft  Key = "ArrowLeft"
	KeyArrowRight Key = "ArrowRight"
	KeyEscape     Key = "Escape"
)

// ClickTarget identifies what inside the lightbox was clicked.
type ClickTarget int

const (
	TargetBackdrop ClickTarget = iota
	TargetCloseButton
	TargetPrevButton
	TargetNextButton
	TargetImage
	TargetCaption
)

// KeyBinder owns the global key listener. Bind installs handler and returns its release func.
type KeyBinder interface {
	Bind(handler func(Key)) (release func())
}

// ScrollLocker suspends background scrolling. The returned func restores whatever state was
// in effect before Lock.
type ScrollLocker interface {
	Lock() (restore func())
}

// Prefetcher warms an image URL. Errors are ignored by the navigator.
type Prefetcher interface {
	Prefetch(url string) error
}

type noopKeys struct{}

func (noopKeys) Bind(func(Key)) func() { return func() {} }

type noopScroll struct{}

func (noopScroll) Lock() func() { return func() {} }

type noopPrefetch struct{}

func (noopPrefetch) Prefetch(string) error { return nil }

// Navigator is the lightbox state machine: Closed or OpenAt(i) over the list it was opened with.
type Navigator struct {
	keys     KeyBinder
	scroll   ScrollLocker
	prefetch Prefetcher

	list  []domain.Artwork
	index int
	open  bool

	releaseKeys   func()
	restoreScroll func()
}

// NavigatorOption customises a Navigator.
type NavigatorOption func(*Navigator)

// WithKeyBinder sets the key listener owner.
func WithKeyBinder(k KeyBinder) NavigatorOption {
	return func(n *Navigator) {
		if k != nil {
			n.keys = k
		}
	}
}

// WithScrollLocker sets the background scroll lock.
func WithScrollLocker(s ScrollLocker) NavigatorOption {
	return func(n *Navigator) {
		if s != nil {
			n.scroll = s
		}
	}
}

// WithPrefetcher sets the adjacent image prefetcher.
func WithPrefetcher(p Prefetcher) NavigatorOption {
	return func(n *Navigator) {
		if p != nil {
			n.prefetch = p
		}
	}
}

// NewNavigator returns a closed navigator.
func NewNavigator(opts ...NavigatorOption) *Navigator {
	n := &Navigator{keys: noopKeys{}, scroll: noopScroll{}, prefetch: noopPrefetch{}}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// IsOpen reports whether the lightbox is showing an item.
func (n *Navigator) IsOpen() bool { return n.open }

// Index returns the open index.
func (n *Navigator) Index() (int, bool) {
	if !n.open {
		return 0, false
	}
	return n.index, true
}

// Current returns the open record.
func (n *Navigator) Current() (domain.Artwork, bool) {
	if !n.open {
		return domain.Artwork{}, false
	}
	return n.list[n.index], true
}

// Open shows list[i]. It is a no-op for an empty list or an out-of-range index.
func (n *Navigator) Open(list []domain.Artwork, i int) bool {
	if len(list) == 0 || i < 0 || i >= len(list) {
		return false
	}
	n.list = list
	n.index = i
	if !n.open {
		n.open = true
		n.restoreScroll = n.scroll.Lock()
		n.releaseKeys = n.keys.Bind(n.handleBoundKey)
	}
	n.warmNeighbours()
	return true
}

// Close returns to Closed, releasing the key listener and restoring scrolling.
func (n *Navigator) Close() {
	if !n.open {
		return
	}
	n.open = false
	n.list = nil
	n.index = 0
	if n.releaseKeys != nil {
		n.releaseKeys()
		n.releaseKeys = nil
	}
	if n.restoreScroll != nil {
		n.restoreScroll()
		n.restoreScroll = nil
	}
}

// Prev moves to (i-1) mod n.
func (n *Navigator) Prev() {
	if !n.open {
		return
	}
	n.index = (n.index - 1 + len(n.list)) % len(n.list)
	n.warmNeighbours()
}

// Next moves to (i+1) mod n.
func (n *Navigator) Next() {
	if !n.open {
		return
	}
	n.index = (n.index + 1) % len(n.list)
	n.warmNeighbours()
}

// HandleKey applies a key press. Keys are ignored while closed. It reports whether the key was used.
func (n *Navigator) HandleKey(k Key) bool {
	if !n.open {
		return false
	}
	switch k {
	case KeyArrowLeft:
		n.Prev()
	case KeyArrowRight:
		n.Next()
	case KeyEscape:
		n.Close()
	default:
		return false
	}
	return true
}

func (n *Navigator) handleBoundKey(k Key) { n.HandleKey(k) }

// Click applies a click. Clicks on the image or caption do nothing.
func (n *Navigator) Click(target ClickTarget) {
	if !n.open {
		return
	}
	switch target {
	case TargetBackdrop, TargetCloseButton:
		n.Close()
	case TargetPrevButton:
		n.Prev()
	case TargetNextButton:
		n.Next()
	}
}

// Sync rebinds the navigator to a changed list. The index is kept while still in range,
// otherwise the lightbox closes.
func (n *Navigator) Sync(list []domain.Artwork) {
	if !n.open {
		return
	}
	if n.index >= len(list) {
		n.Close()
		return
	}
	n.list = list
	n.warmNeighbours()
}

// Neighbours returns the indices of the previous and next items around i in a list of length size.
func Neighbours(i, size int) (prev, next int) {
	return (i - 1 + size) % size, (i + 1) % size
}

func (n *Navigator) warmNeighbours() {
	prev, next := Neighbours(n.index, len(n.list))
	for _, idx := range []int{prev, next} {
		if url := n.list[idx].Image; url != "" {
			_ = n.prefetch.Prefetch(url)
		}
	}
}
