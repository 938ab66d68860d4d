package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/usecase"
)

// Presence 線上玩家名單，名稱不分大小寫
type Presence struct {
	mu     sync.RWMutex
	byName map[string]uuid.UUID
}

func NewPresence() *Presence {
	return &Presence{byName: make(map[string]uuid.UUID)}
}

// Join 玩家上線
func (p *Presence) Join(name string, id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byName[strings.ToLower(name)] = id
}

// Leave 玩家離線
func (p *Presence) Leave(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byName, strings.ToLower(name))
}

// LookupName implements usecase.NameSource.
func (p *Presence) LookupName(_ context.Context, name string) (uuid.UUID, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.byName[strings.ToLower(name)]
	return id, ok, nil
}

var _ usecase.NameSource = (*Presence)(nil)
