// s3fifo bounds a Store with the S3-FIFO eviction policy (Yang et al.,
// 2023): a small probationary FIFO, a main FIFO and a ghost set of keys
// recently evicted from the small queue.
//
//	insert:  key in ghost → main tail, otherwise → small tail.
//	hit:     freq++ (saturates at 3).
//	evict S: head with freq > 0 moves to main (freq reset), else it is
//	         dropped and remembered in ghost.
//	evict M: head is dropped.
//
// Every key dropped from memory is also deleted from the backing store, so
// the bbolt file stays bounded too. On restart memory is cold and reads fall
// through to the backing store, which re-warms the hot set.
//
// Sizing: small = max(1, capacity/10), main = capacity - small,
// ghost = max(4, 2*small).

package ner

import (
	"container/list"
	"sync"

	"pii-masking-service/internal/logger"
)

const maxFreq = 3

type fifoEntry struct {
	value  string
	freq   uint8
	elem   *list.Element
	inMain bool
}

type s3fifo struct {
	mu sync.Mutex

	capacity  int
	smallSize int

	entries map[string]*fifoEntry
	small   *list.List // of string keys, oldest at front
	main    *list.List

	ghost ghostRing

	backing Store
}

// newS3FIFO wraps backing. Capacities below 2 are raised to 2.
func newS3FIFO(backing Store, capacity int, log *logger.Logger) *s3fifo {
	capacity = max(capacity, 2)
	smallSize := max(capacity/10, 1)
	ghostCap := max(2*smallSize, 4)
	log.Debugf("cache_open", "s3fifo capacity=%d small=%d ghost=%d", capacity, smallSize, ghostCap)
	return &s3fifo{
		capacity:  capacity,
		smallSize: smallSize,
		entries:   make(map[string]*fifoEntry, capacity),
		small:     list.New(),
		main:      list.New(),
		ghost:     newGhostRing(ghostCap),
		backing:   backing,
	}
}

// Get returns the value for key, consulting the backing store on a memory
// miss and re-warming the entry if found there.
func (c *s3fifo) Get(key string) (string, bool) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if e.freq < maxFreq {
			e.freq++
		}
		v := e.value
		c.mu.Unlock()
		return v, true
	}
	c.mu.Unlock()

	v, ok := c.backing.Get(key)
	if !ok {
		return "", false
	}
	c.deleteBacking(c.insert(key, v))
	return v, true
}

// Set stores key in memory and in the backing store.
func (c *s3fifo) Set(key, value string) {
	evicted := c.insert(key, value)
	c.backing.Set(key, value)
	c.deleteBacking(evicted)
}

// Delete drops key from memory and from the backing store.
func (c *s3fifo) Delete(key string) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.queueOf(e).Remove(e.elem)
		delete(c.entries, key)
	}
	c.mu.Unlock()
	c.backing.Delete(key)
}

// Close closes the backing store.
func (c *s3fifo) Close() error { return c.backing.Close() }

// Len returns the number of keys held in memory.
func (c *s3fifo) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// insert adds or updates key and returns the keys evicted to make room.
// Backing-store deletes happen after the lock is released.
func (c *s3fifo) insert(key, value string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		return nil
	}

	e := &fifoEntry{value: value}
	if c.ghost.contains(key) {
		e.inMain = true
		e.elem = c.main.PushBack(key)
	} else {
		e.elem = c.small.PushBack(key)
	}
	c.entries[key] = e

	var evicted []string
	for c.small.Len()+c.main.Len() > c.capacity {
		evicted = c.evictOne(evicted)
	}
	return evicted
}

func (c *s3fifo) evictOne(evicted []string) []string {
	if c.small.Len() == 0 {
		return c.evictMain(evicted)
	}
	key := c.small.Remove(c.small.Front()).(string)
	e := c.entries[key]
	if e.freq == 0 {
		delete(c.entries, key)
		c.ghost.add(key)
		return append(evicted, key)
	}
	e.freq = 0
	e.inMain = true
	e.elem = c.main.PushBack(key)
	if c.main.Len() > c.capacity-c.smallSize {
		evicted = c.evictMain(evicted)
	}
	return evicted
}

func (c *s3fifo) evictMain(evicted []string) []string {
	front := c.main.Front()
	if front == nil {
		return evicted
	}
	key := c.main.Remove(front).(string)
	delete(c.entries, key)
	return append(evicted, key)
}

func (c *s3fifo) queueOf(e *fifoEntry) *list.List {
	if e.inMain {
		return c.main
	}
	return c.small
}

func (c *s3fifo) deleteBacking(keys []string) {
	for _, k := range keys {
		c.backing.Delete(k)
	}
}

// ghostRing is a bounded FIFO set of keys.
type ghostRing struct {
	buf   []string
	set   map[string]struct{}
	head  int
	count int
}

func newGhostRing(capacity int) ghostRing {
	return ghostRing{buf: make([]string, capacity), set: make(map[string]struct{}, capacity)}
}

func (g *ghostRing) contains(key string) bool {
	_, ok := g.set[key]
	return ok
}

func (g *ghostRing) add(key string) {
	if g.contains(key) {
		return
	}
	if g.count == len(g.buf) {
		delete(g.set, g.buf[g.head])
		g.head = (g.head + 1) % len(g.buf)
		g.count--
	}
	g.buf[(g.head+g.count)%len(g.buf)] = key
	g.set[key] = struct{}{}
	g.count++
}
