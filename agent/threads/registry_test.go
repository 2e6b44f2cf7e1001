package threads

import (
	"context"
	"fmt"
	"sync"
	"testing"

	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
	statex "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/state"
)

type fakeThreadStore struct {
	mu      sync.Mutex
	byTitle map[string]*statex.ThreadRecord
	creates int
}

func newFakeThreadStore() *fakeThreadStore {
	return &fakeThreadStore{byTitle: make(map[string]*statex.ThreadRecord)}
}

func (f *fakeThreadStore) FindThreadByTitle(ctx context.Context, title string) (*statex.ThreadRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byTitle[title]
	if !ok {
		return nil, contractx.ErrThreadNotFound
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeThreadStore) CreateThread(ctx context.Context, rec *statex.ThreadRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byTitle[rec.Title]; ok {
		return contractx.ErrThreadExists
	}
	f.creates++
	clone := *rec
	f.byTitle[rec.Title] = &clone
	return nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	creates int
	err     error
}

func (f *fakeGenerator) CreateThread(ctx context.Context, title, summary, ownerKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.creates++
	return fmt.Sprintf("thread-%d", f.creates), nil
}

func (f *fakeGenerator) ContinueThread(ctx context.Context, threadID string) (contractx.ThreadHandle, error) {
	return nil, fmt.Errorf("not used in registry tests")
}

func TestResolveReusesExistingThread(t *testing.T) {
	t.Parallel()

	store := newFakeThreadStore()
	gen := &fakeGenerator{}
	r, err := NewRegistry(store, gen)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	ag := &statex.Agent{ID: "agent-1"}
	store.byTitle[EncodeTitle("contact-1", "agent-1")] = &statex.ThreadRecord{
		ID:    "thread-existing",
		Title: EncodeTitle("contact-1", "agent-1"),
	}

	id, err := r.Resolve(context.Background(), ag, "contact-1", "Alice")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if id != "thread-existing" {
		t.Fatalf("unexpected thread id: %s", id)
	}
	if gen.creates != 0 {
		t.Fatalf("expected no provider create, got %d", gen.creates)
	}
}

func TestResolveCreatesOnFirstContact(t *testing.T) {
	t.Parallel()

	store := newFakeThreadStore()
	gen := &fakeGenerator{}
	r, _ := NewRegistry(store, gen)

	ag := &statex.Agent{ID: "agent-1"}
	id, err := r.Resolve(context.Background(), ag, "contact-1", "Alice")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if id != "thread-1" {
		t.Fatalf("unexpected thread id: %s", id)
	}

	rec, err := store.FindThreadByTitle(context.Background(), EncodeTitle("contact-1", "agent-1"))
	if err != nil {
		t.Fatalf("stored record missing: %v", err)
	}
	if rec.AgentID != "agent-1" || rec.ContactID != "contact-1" || rec.DisplayName != "Alice" {
		t.Fatalf("unexpected stored record: %#v", rec)
	}
}

func TestResolveValidatesInput(t *testing.T) {
	t.Parallel()

	r, _ := NewRegistry(newFakeThreadStore(), &fakeGenerator{})

	if _, err := r.Resolve(context.Background(), nil, "contact-1", ""); err == nil {
		t.Fatal("expected error for nil agent")
	}
	if _, err := r.Resolve(context.Background(), &statex.Agent{ID: "a"}, "   ", ""); err == nil {
		t.Fatal("expected error for blank contact id")
	}
}

func TestResolveConcurrentFirstContactCreatesOnce(t *testing.T) {
	t.Parallel()

	store := newFakeThreadStore()
	gen := &fakeGenerator{}
	r, _ := NewRegistry(store, gen)
	ag := &statex.Agent{ID: "agent-1"}

	const workers = 16
	ids := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = r.Resolve(context.Background(), ag, "contact-1", "Alice")
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d error = %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("worker %d got thread %s, worker 0 got %s", i, ids[i], ids[0])
		}
	}
	if gen.creates != 1 {
		t.Fatalf("expected exactly one provider create, got %d", gen.creates)
	}
	if store.creates != 1 {
		t.Fatalf("expected exactly one stored record, got %d", store.creates)
	}
}

// conflictStore simulates a second instance winning the create race between
// this instance's lookup and insert.
type conflictStore struct {
	*fakeThreadStore
	sneaked bool
}

func (c *conflictStore) CreateThread(ctx context.Context, rec *statex.ThreadRecord) error {
	if !c.sneaked {
		c.sneaked = true
		c.fakeThreadStore.byTitle[rec.Title] = &statex.ThreadRecord{ID: "thread-other-instance", Title: rec.Title}
		return contractx.ErrThreadExists
	}
	return c.fakeThreadStore.CreateThread(ctx, rec)
}

func TestResolveReusesThreadAfterCrossInstanceConflict(t *testing.T) {
	t.Parallel()

	store := &conflictStore{fakeThreadStore: newFakeThreadStore()}
	gen := &fakeGenerator{}
	r, _ := NewRegistry(store, gen)

	id, err := r.Resolve(context.Background(), &statex.Agent{ID: "agent-1"}, "contact-1", "Alice")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if id != "thread-other-instance" {
		t.Fatalf("expected the stored thread to win, got %s", id)
	}
}
