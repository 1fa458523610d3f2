package engagement

import (
	"context"
	"sync"

	"github.com/mmcdole/kudos/internal/domain"
)

type commitCall struct {
	key     domain.EntityKey
	action  domain.Action
	desired bool
}

// fakeClient records engagement calls. Commit blocks on release when set.
type fakeClient struct {
	mu sync.Mutex

	commits    []commitCall
	commitErrs map[domain.Action]error
	panicMsg   string
	release    chan struct{}

	state      domain.EngagementState
	fetchErr   error
	fetchCalls int

	batch      map[string]domain.EngagementState
	batchErr   error
	batchCalls [][]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{commitErrs: make(map[domain.Action]error)}
}

func (f *fakeClient) Commit(ctx context.Context, key domain.EntityKey, action domain.Action, desired bool) error {
	f.mu.Lock()
	f.commits = append(f.commits, commitCall{key: key, action: action, desired: desired})
	release, panicMsg, err := f.release, f.panicMsg, f.commitErrs[action]
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if panicMsg != "" {
		panic(panicMsg)
	}
	return err
}

func (f *fakeClient) FetchEngagement(ctx context.Context, key domain.EntityKey) (domain.EngagementState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	return f.state, f.fetchErr
}

func (f *fakeClient) FetchEngagementBatch(ctx context.Context, entityType domain.EntityType, ids []string) (map[string]domain.EngagementState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls = append(f.batchCalls, append([]string(nil), ids...))
	return f.batch, f.batchErr
}

func (f *fakeClient) setCommitErr(action domain.Action, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitErrs[action] = err
}

func (f *fakeClient) commitCalls() []commitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]commitCall(nil), f.commits...)
}

type updateRecorder struct {
	mu      sync.Mutex
	updates []domain.EngagementUpdate
}

func (r *updateRecorder) OnEngagement(u domain.EngagementUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *updateRecorder) all() []domain.EngagementUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.EngagementUpdate(nil), r.updates...)
}
