package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/promptloom/pkg/domain"
)

// MockStore structure
type MockStore struct{}

func (m *MockStore) Save(ctx context.Context, s *domain.Session) error { return nil }
func (m *MockStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	return &domain.Session{ID: id}, nil
}
func (m *MockStore) Delete(ctx context.Context, id string) error { return nil }
func (m *MockStore) List(ctx context.Context) ([]string, error)  { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(&MockStore{})
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_ = mgr.Save(ctx, &domain.Session{ID: sid})
		_, _ = mgr.Append(ctx, sid, "user", "hi")
		_ = mgr.Delete(ctx, sid)
	}

	lockCount := len(mgr.locks)
	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}
