package netib

import (
	"sync"

	"k8s.io/klog/v2"
)

// teamTracker records every live team and user-created context so finalize
// can sweep whatever the application forgot to destroy. Leaks are not errors:
// they are cleaned up exactly once, contexts before teams, since contexts may
// reference team metadata.
type teamTracker struct {
	mu    sync.Mutex
	teams []*Team
	ctxs  []*Context
}

func newTeamTracker() *teamTracker {
	return &teamTracker{}
}

func (tt *teamTracker) track(t *Team) {
	if t == nil {
		return
	}
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.teams = append(tt.teams, t)
}

func (tt *teamTracker) untrack(t *Team) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	for i, got := range tt.teams {
		if got == t {
			tt.teams = append(tt.teams[:i], tt.teams[i+1:]...)
			return
		}
	}
	klog.Warningf("untracking a team that was never tracked (double destroy?)")
}

func (tt *teamTracker) numUserTeams() int {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return len(tt.teams)
}

// destroyAll invokes destroy on every still-tracked team exactly once and
// empties the tracker.
func (tt *teamTracker) destroyAll(destroy func(*Team) error) {
	tt.mu.Lock()
	teams := tt.teams
	tt.teams = nil
	tt.mu.Unlock()
	for _, t := range teams {
		if err := destroy(t); err != nil {
			klog.Warningf("destroying leaked team (slot %d): %+v", t.slot, err)
		}
	}
	if len(teams) > 0 {
		klog.V(1).Infof("finalize swept %d leaked teams", len(teams))
	}
}

func (tt *teamTracker) trackCtx(c *Context) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.ctxs = append(tt.ctxs, c)
}

func (tt *teamTracker) untrackCtx(c *Context) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	for i, got := range tt.ctxs {
		if got == c {
			tt.ctxs = append(tt.ctxs[:i], tt.ctxs[i+1:]...)
			return
		}
	}
}

// destroyRemainingCtxs sweeps user contexts never destroyed by the
// application.
func (tt *teamTracker) destroyRemainingCtxs(destroy func(*Context)) {
	tt.mu.Lock()
	ctxs := tt.ctxs
	tt.ctxs = nil
	tt.mu.Unlock()
	for _, c := range ctxs {
		destroy(c)
	}
	if len(ctxs) > 0 {
		klog.V(1).Infof("finalize swept %d leaked contexts", len(ctxs))
	}
}
