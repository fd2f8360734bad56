package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/revimg/browser"
	"github.com/use-agent/revimg/config"
	"github.com/use-agent/revimg/models"
)

type driverFactory struct {
	mu      sync.Mutex
	html    string
	drivers []*stubDriver
}

func (f *driverFactory) open(context.Context) (*browser.Session, error) {
	d := &stubDriver{html: f.html}
	f.mu.Lock()
	f.drivers = append(f.drivers, d)
	f.mu.Unlock()
	return browser.NewSession(d, time.Second), nil
}

func newTestService(t *testing.T, sub Submitter, f *driverFactory) *Service {
	t.Helper()
	pool, err := browser.NewPool(context.Background(), config.PoolConfig{MinSessions: 1, MaxSessions: 2}, f.open)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(pool.Stop)
	return NewService(pool, newTestSearcher(t, sub))
}

func TestService_Search(t *testing.T) {
	f := &driverFactory{html: resultsFixture}
	svc := newTestService(t, &fakeSubmitter{target: "https://www.google.com/search?tbs=sbi:x"}, f)

	for i := 0; i < 3; i++ {
		results, err := svc.Search(context.Background(), models.URLQuery("https://x.test/a.jpg", i))
		if err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
		if len(results) != 1 {
			t.Errorf("search %d: got %d results", i, len(results))
		}
	}

	st := svc.Stats()
	if st.ActiveSessions != 0 {
		t.Errorf("ActiveSessions = %d after searches finished", st.ActiveSessions)
	}
	if st.LiveSessions != 1 {
		t.Errorf("LiveSessions = %d, want the one pre-opened session reused", st.LiveSessions)
	}
}

func TestService_NoResultsPageSkipsPool(t *testing.T) {
	f := &driverFactory{}
	svc := newTestService(t, &fakeSubmitter{}, f)

	results, err := svc.Search(context.Background(), models.FileQuery("/missing.jpg", 0))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("results = %#v, want empty non-nil slice", results)
	}
	for _, d := range f.drivers {
		if len(d.visited) != 0 {
			t.Errorf("session navigated: %v", d.visited)
		}
	}
}

func TestService_InvalidRequest(t *testing.T) {
	f := &driverFactory{}
	sub := &fakeSubmitter{target: "https://www.google.com/search"}
	svc := newTestService(t, sub, f)

	_, err := svc.Search(context.Background(), models.SearchRequest{Kind: models.QueryURL})
	if models.CodeOf(err) != models.ErrCodeInvalidInput {
		t.Errorf("err = %v, want invalid input", err)
	}
	if len(sub.urlCalls) != 0 {
		t.Error("submitter called for an invalid request")
	}
}
