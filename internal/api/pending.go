package api

import (
	"sync"
	"time"

	"github.com/bluecrab/gis-backend/internal/surveyimport"
	"github.com/google/uuid"
)

// pendingImports holds validated uploads between preview and commit.
type pendingImports struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]pendingImport
}

type pendingImport struct {
	set     *surveyimport.Validated
	created time.Time
}

func newPendingImports(ttl time.Duration) *pendingImports {
	return &pendingImports{ttl: ttl, now: time.Now, items: map[string]pendingImport{}}
}

func (p *pendingImports) put(v *surveyimport.Validated) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for k, it := range p.items {
		if now.Sub(it.created) > p.ttl {
			delete(p.items, k)
		}
	}
	token := uuid.NewString()
	p.items[token] = pendingImport{set: v, created: now}
	return token
}

// take removes and returns the upload; a token can be committed once.
func (p *pendingImports) take(token string) (*surveyimport.Validated, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	it, ok := p.items[token]
	if !ok {
		return nil, false
	}
	delete(p.items, token)
	if p.now().Sub(it.created) > p.ttl {
		return nil, false
	}
	return it.set, true
}
