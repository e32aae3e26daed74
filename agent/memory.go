package agent

import "sync"

// MemorySizes summarizes how much an agent currently remembers.
type MemorySizes struct {
	ShortTerm int `json:"short_term"`
	LongTerm  int `json:"long_term"`
	Context   int `json:"context"`
}

// Memory holds an agent's working state: a short-term scratch space keyed by
// name, an append-only long-term record of past actions, and the accumulated
// context from prior interactions. Safe for concurrent use.
type Memory struct {
	mutex     sync.RWMutex
	shortTerm map[string]any
	longTerm  []map[string]any
	context   map[string]any
}

func NewMemory() *Memory {
	return &Memory{
		shortTerm: map[string]any{},
		context:   map[string]any{},
	}
}

// StoreShortTerm saves a value in short-term memory, replacing any prior
// value under the same key.
func (m *Memory) StoreShortTerm(key string, value any) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.shortTerm[key] = value
}

// RecallShortTerm retrieves a short-term value by key.
func (m *Memory) RecallShortTerm(key string) (any, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	value, ok := m.shortTerm[key]
	return value, ok
}

// StoreLongTerm appends a record to long-term memory.
func (m *Memory) StoreLongTerm(entry map[string]any) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.longTerm = append(m.longTerm, entry)
}

// LongTerm returns a copy of the long-term records in insertion order.
func (m *Memory) LongTerm() []map[string]any {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	records := make([]map[string]any, len(m.longTerm))
	copy(records, m.longTerm)
	return records
}

// UpdateContext merges the given updates into the context memory.
func (m *Memory) UpdateContext(updates map[string]any) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for k, v := range updates {
		m.context[k] = v
	}
}

// ContextValue retrieves a context value by key.
func (m *Memory) ContextValue(key string) (any, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	value, ok := m.context[key]
	return value, ok
}

// Context returns a copy of the full context memory.
func (m *Memory) Context() map[string]any {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	c := make(map[string]any, len(m.context))
	for k, v := range m.context {
		c[k] = v
	}
	return c
}

func (m *Memory) Sizes() MemorySizes {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return MemorySizes{
		ShortTerm: len(m.shortTerm),
		LongTerm:  len(m.longTerm),
		Context:   len(m.context),
	}
}
