package pf

// DefaultCapacity is the frame table size used when SetBufferSize is never
// called, per spec §4.C.
const DefaultCapacity = 40

// SetBufferSize configures the frame table size. It must be called before
// Init (or the first operation that triggers lazy Init); afterwards it is
// a no-op, since the frame table is a fixed-size array allocated once.
func (m *Manager) SetBufferSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized || n <= 0 {
		return
	}
	m.capacity = n
}

// SetFileTableCapacity configures the open-file table size (default
// DefaultFileTableCapacity). Same precede-Init rule as SetBufferSize.
func (m *Manager) SetFileTableCapacity(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized || n <= 0 {
		return
	}
	m.fileTableCap = n
}

// SetStrategy switches the replacement policy. Unlike buffer size, this is
// legal at any point in the lifecycle (spec §9 design notes): it changes
// how select_victim reads the existing list without ever reordering it.
func (m *Manager) SetStrategy(s Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategy = s
	if m.repl != nil {
		m.repl.setStrategy(s)
	}
}

// Init performs one-shot lazy setup of the frame table, hash index,
// replacer, and open-file table. Safe to call repeatedly.
func (m *Manager) Init() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureInit()
}

// ensureInit is Init's body, callable from methods that already hold m.mu.
func (m *Manager) ensureInit() {
	if m.initialized {
		return
	}
	if m.capacity <= 0 {
		m.capacity = DefaultCapacity
	}
	if m.fileTableCap <= 0 {
		m.fileTableCap = DefaultFileTableCapacity
	}
	m.frames = newFrameTable(m.capacity)
	m.hash = newHashIndex(m.capacity)
	m.repl = newReplacer(m.strategy)
	m.files = newOpenFileTable(m.fileTableCap)
	m.initialized = true
}

// ResetStats zeroes the logical/physical read/write counters.
func (m *Manager) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = Stats{}
}

// GetStats returns a snapshot of the logical/physical read/write counters.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
