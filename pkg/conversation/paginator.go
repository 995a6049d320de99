// Package conversation pages a conversation's message history. Fetches
// run newest-first in fixed pages; presentation order is oldest to
// newest, with older pages prepended as the reader scrolls back.
package conversation

import (
	"context"
	"fmt"
	"sync"

	"flockd/pkg/logger"
	"flockd/pkg/models"
	"flockd/pkg/serrors"
	"flockd/pkg/store"
)

// Source fetches one page of messages, newest first. Pages are 1-based.
type Source interface {
	FetchPage(ctx context.Context, convID string, page, pageSize int) ([]models.Message, error)
}

// StoreSource serves pages straight from the store.
type StoreSource struct{}

func (StoreSource) FetchPage(ctx context.Context, convID string, page, pageSize int) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return store.ListMessagePage(convID, page, pageSize)
}

// Paginator accumulates a conversation's history page by page. A fetch
// returning fewer than pageSize messages marks the history exhausted.
type Paginator struct {
	mu        sync.Mutex
	src       Source
	convID    string
	pageSize  int
	nextPage  int
	exhausted bool
	// history holds messages in presentation order, (TS asc, ID asc).
	history []models.Message
	held    map[string]struct{}
}

// New returns a paginator positioned before the newest page.
func New(src Source, convID string, pageSize int) (*Paginator, error) {
	if pageSize < 1 {
		return nil, fmt.Errorf("page size must be positive: %w", serrors.ErrValidation)
	}
	return &Paginator{
		src:      src,
		convID:   convID,
		pageSize: pageSize,
		nextPage: 1,
		held:     map[string]struct{}{},
	}, nil
}

// LoadMore fetches the next (older) page and prepends it to the held
// history. It returns the number of messages added. Messages already
// held are not added twice, so a page boundary shifted by new arrivals
// cannot duplicate entries.
func (p *Paginator) LoadMore(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exhausted {
		return 0, nil
	}
	msgs, err := p.src.FetchPage(ctx, p.convID, p.nextPage, p.pageSize)
	if err != nil {
		return 0, err
	}
	if len(msgs) < p.pageSize {
		p.exhausted = true
	}
	p.nextPage++

	// Reverse the newest-first page into ascending order, dropping
	// anything already held.
	var asc []models.Message
	for i := len(msgs) - 1; i >= 0; i-- {
		if _, ok := p.held[msgs[i].ID]; ok {
			continue
		}
		asc = append(asc, msgs[i])
		p.held[msgs[i].ID] = struct{}{}
	}
	p.history = append(asc, p.history...)
	logger.Debug("conversation_page_loaded", "conv", p.convID, "page", p.nextPage-1, "added", len(asc), "exhausted", p.exhausted)
	return len(asc), nil
}

// Messages returns a copy of the held history in presentation order.
func (p *Paginator) Messages() []models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Message, len(p.history))
	copy(out, p.history)
	return out
}

// Exhausted reports whether the full history has been loaded.
func (p *Paginator) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exhausted
}

// Append adds a freshly arrived message to the live edge of the history.
func (p *Paginator) Append(m models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.held[m.ID]; ok {
		return
	}
	p.history = append(p.history, m)
	p.held[m.ID] = struct{}{}
}

// ShowSender reports whether the sender identity should be rendered for
// the message at index i of a presentation-ordered slice. Consecutive
// messages from the same sender show it only once.
func ShowSender(msgs []models.Message, i int) bool {
	if i < 0 || i >= len(msgs) {
		return false
	}
	if i == 0 {
		return true
	}
	return msgs[i].Author != msgs[i-1].Author
}
