package connect

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jmylchreest/connectr/pkg/alphanet"
)

// Shared serializes access to a Client so it can back concurrent callers
// such as HTTP handlers and the keepalive.
type Shared struct {
	mu sync.Mutex
	c  *Client
}

// NewShared wraps c. The caller must not use c directly afterwards.
func NewShared(c *Client) *Shared {
	return &Shared{c: c}
}

// EnsureSession calls Client.EnsureSession under the lock.
func (s *Shared) EnsureSession(ctx context.Context, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.EnsureSession(ctx, force)
}

// Channels calls Client.Channels under the lock.
func (s *Shared) Channels(ctx context.Context) ([]alphanet.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Channels(ctx)
}

// EPG calls Client.EPG under the lock.
func (s *Shared) EPG(ctx context.Context, ids []int64, start, end time.Time) ([]alphanet.EPGRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.EPG(ctx, ids, start, end)
}

// Play calls Client.Play under the lock.
func (s *Shared) Play(ctx context.Context, channelID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Play(ctx, channelID)
}

// LicenseRequest calls Client.LicenseRequest under the lock.
func (s *Shared) LicenseRequest(ctx context.Context, channelID int64) (string, http.Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.LicenseRequest(ctx, channelID)
}

// Status calls Client.Status under the lock.
func (s *Shared) Status(ctx context.Context) (*Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Status(ctx)
}
