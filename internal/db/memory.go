package db

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryDriver keeps collections in process memory. Data survives reconnects
// through the same driver, which makes it suitable for tests and local runs.
type MemoryDriver struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

// NewMemoryDriver returns an empty in-memory driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{collections: make(map[string]*memoryCollection)}
}

// Open returns a connection to the in-memory collections.
func (d *MemoryDriver) Open(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryConn{driver: d}, nil
}

// Count returns the number of documents stored in the named collection.
func (d *MemoryDriver) Count(name string) int {
	c := d.collection(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

func (d *MemoryDriver) collection(name string) *memoryCollection {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.collections[name]
	if !ok {
		c = &memoryCollection{name: name}
		d.collections[name] = c
	}
	return c
}

type memoryConn struct {
	driver *MemoryDriver
}

func (c *memoryConn) EnsureCollection(_ context.Context, spec CollectionSpec) error {
	coll := c.driver.collection(spec.Name)
	coll.mu.Lock()
	coll.unique = spec.Unique
	coll.mu.Unlock()
	return nil
}

func (c *memoryConn) Collection(name string) Collection {
	return c.driver.collection(name)
}

func (c *memoryConn) Close() {}

type memoryDoc struct {
	id     string
	raw    []byte
	fields map[string]any
}

type memoryCollection struct {
	name string

	mu     sync.RWMutex
	docs   []memoryDoc
	unique [][]string
}

func (c *memoryCollection) Name() string { return c.name }

func (c *memoryCollection) InsertOne(ctx context.Context, id string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.docs {
		if existing.id == id {
			return ErrDuplicate
		}
	}
	if c.violatesUniqueLocked(fields, "") {
		return ErrDuplicate
	}

	c.docs = append(c.docs, memoryDoc{id: id, raw: raw, fields: fields})
	return nil
}

func (c *memoryCollection) FindOne(ctx context.Context, filter Filter, out any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c.mu.RLock()
	var raw []byte
	for _, doc := range c.docs {
		if matches(filter, doc) {
			raw = doc.raw
			break
		}
	}
	c.mu.RUnlock()

	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode document: %w", err)
	}
	return true, nil
}

func (c *memoryCollection) Find(ctx context.Context, filter Filter, out any, opts ...FindOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o := buildFindOptions(opts)

	c.mu.RLock()
	var found []memoryDoc
	for _, doc := range c.docs {
		if matches(filter, doc) {
			found = append(found, doc)
		}
	}
	c.mu.RUnlock()

	if o.SortField != "" {
		sort.SliceStable(found, func(i, j int) bool {
			return lessField(found[i].fields[o.SortField], found[j].fields[o.SortField])
		})
	}
	if o.Limit > 0 && len(found) > o.Limit {
		found = found[:o.Limit]
	}

	raws := make([][]byte, 0, len(found))
	for _, doc := range found {
		raws = append(raws, doc.raw)
	}
	return decodeArray(raws, out)
}

func (c *memoryCollection) UpdateOne(ctx context.Context, filter Filter, set map[string]any) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, doc := range c.docs {
		if !matches(filter, doc) {
			continue
		}

		merged := make(map[string]any, len(doc.fields)+len(set))
		for k, v := range doc.fields {
			merged[k] = v
		}
		for k, v := range set {
			merged[k] = v
		}

		raw, err := json.Marshal(merged)
		if err != nil {
			return 0, fmt.Errorf("encode document: %w", err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return 0, err
		}
		if c.violatesUniqueLocked(fields, doc.id) {
			return 0, ErrDuplicate
		}

		c.docs[i] = memoryDoc{id: doc.id, raw: raw, fields: fields}
		return 1, nil
	}
	return 0, nil
}

func (c *memoryCollection) DeleteOne(ctx context.Context, filter Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, doc := range c.docs {
		if matches(filter, doc) {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

// violatesUniqueLocked reports whether fields collide with another document on
// any unique field set. Documents missing a field of the set never collide.
func (c *memoryCollection) violatesUniqueLocked(fields map[string]any, selfID string) bool {
	for _, set := range c.unique {
		key, ok := uniqueKey(fields, set)
		if !ok {
			continue
		}
		for _, other := range c.docs {
			if other.id == selfID {
				continue
			}
			if otherKey, ok := uniqueKey(other.fields, set); ok && otherKey == key {
				return true
			}
		}
	}
	return false
}

func uniqueKey(fields map[string]any, set []string) (string, bool) {
	parts := make([]any, 0, len(set))
	for _, name := range set {
		v, ok := fields[name]
		if !ok || v == nil {
			return "", false
		}
		parts = append(parts, v)
	}
	raw, err := json.Marshal(parts)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func matches(filter Filter, doc memoryDoc) bool {
	for _, cond := range filter.All {
		if !matchCond(cond, doc) {
			return false
		}
	}
	if len(filter.Any) == 0 {
		return true
	}
	for _, cond := range filter.Any {
		if matchCond(cond, doc) {
			return true
		}
	}
	return false
}

func matchCond(cond Cond, doc memoryDoc) bool {
	var value any
	var present bool
	if cond.Field == IDField {
		value, present = doc.id, true
	} else {
		value, present = doc.fields[cond.Field]
	}

	switch cond.Op {
	case OpEq:
		if !present {
			return cond.Value == nil
		}
		return jsonEqual(value, cond.Value)
	case OpIn:
		s, ok := value.(string)
		if !ok {
			return false
		}
		for _, candidate := range cond.Value.([]string) {
			if s == candidate {
				return true
			}
		}
		return false
	case OpGt:
		n, ok := value.(json.Number)
		if !ok {
			return false
		}
		i, err := n.Int64()
		if err != nil {
			return false
		}
		return i > cond.Value.(int64)
	case OpContains:
		s, ok := value.(string)
		return ok && strings.Contains(s, cond.Value.(string))
	default:
		return false
	}
}

func jsonEqual(a, b any) bool {
	ra, err := json.Marshal(a)
	if err != nil {
		return false
	}
	rb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ra, rb)
}

func lessField(a, b any) bool {
	switch av := a.(type) {
	case json.Number:
		bv, ok := b.(json.Number)
		if !ok {
			return false
		}
		af, errA := av.Float64()
		bf, errB := bv.Float64()
		if errA != nil || errB != nil {
			return av.String() < bv.String()
		}
		return af < bf
	case string:
		bv, ok := b.(string)
		return ok && av < bv
	case nil:
		return b != nil
	default:
		return false
	}
}

func decodeFields(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode document fields: %w", err)
	}
	return fields, nil
}

// decodeArray decodes a list of raw JSON documents into out, a pointer to a slice.
func decodeArray(raws [][]byte, out any) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, raw := range raws {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(raw)
	}
	buf.WriteByte(']')
	if err := json.Unmarshal(buf.Bytes(), out); err != nil {
		return fmt.Errorf("decode documents: %w", err)
	}
	return nil
}

var _ Driver = (*MemoryDriver)(nil)
