package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/freeeve/qdice/internal/model"
	"github.com/freeeve/qdice/pkg/dice"
)

// memStore keeps tables as JSON so reads behave like a real store: the
// adjacency is dropped and every Get returns a fresh copy.
type memStore struct {
	mu     sync.Mutex
	tables map[string][]byte
	saves  int
	gets   int
}

func newMemStore() *memStore {
	return &memStore{tables: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, tag string) (*dice.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	data, ok := m.tables[tag]
	if !ok {
		return nil, nil
	}
	var t dice.Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (m *memStore) Save(_ context.Context, t *dice.Table) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[t.Tag] = data
	m.saves++
	return nil
}

func (m *memStore) List(ctx context.Context) ([]*dice.Table, error) {
	m.mu.Lock()
	tags := make([]string, 0, len(m.tables))
	for tag := range m.tables {
		tags = append(tags, tag)
	}
	m.mu.Unlock()
	sort.Strings(tags)
	var out []*dice.Table
	for _, tag := range tags {
		t, err := m.Get(ctx, tag)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, tag)
	return nil
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *memStore) getCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

type mockUsers struct {
	mu     sync.Mutex
	points map[string]int
}

func newMockUsers() *mockUsers {
	return &mockUsers{points: make(map[string]int)}
}

func (m *mockUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.points[id]
	if !ok {
		return nil, nil
	}
	return &model.User{ID: id, Points: p}, nil
}

func (m *mockUsers) Upsert(_ context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	id := provider + ":" + providerID
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.points[id]; !ok {
		m.points[id] = 0
	}
	return &model.User{ID: id, Provider: provider, ProviderID: providerID, DisplayName: displayName, AvatarURL: avatarURL, Points: m.points[id]}, nil
}

func (m *mockUsers) AddPoints(_ context.Context, id string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[id] += delta
	return nil
}

type mockChat struct {
	mu    sync.Mutex
	lines map[string][]model.ChatLine
}

func newMockChat() *mockChat {
	return &mockChat{lines: make(map[string][]model.ChatLine)}
}

func (m *mockChat) Append(_ context.Context, tag string, line model.ChatLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[tag] = append(m.lines[tag], line)
	return nil
}

func (m *mockChat) Recent(_ context.Context, tag string) ([]model.ChatLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ChatLine{}, m.lines[tag]...), nil
}

type published struct {
	topic string
	event dice.Event
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []published
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, payload any) error {
	ev, _ := payload.(dice.Event)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, published{topic: topic, event: ev})
	return nil
}

func (r *recordingPublisher) types(topic string) []dice.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []dice.EventType
	for _, m := range r.messages {
		if m.topic == topic {
			out = append(out, m.event.Type)
		}
	}
	return out
}

func (r *recordingPublisher) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// highRand makes every die a six.
type highRand struct{}

func (highRand) Intn(n int) int   { return n - 1 }
func (highRand) Float64() float64 { return 0.5 }
