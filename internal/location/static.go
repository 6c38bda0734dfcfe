package location

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// StaticProvider reports one fixed position. Its watch emits the position
// once and then stays open until cancelled.
type StaticProvider struct {
	Fix    Fix
	Denied bool
}

// NewStaticProvider returns a provider fixed at lat/lng.
func NewStaticProvider(lat, lng float64) *StaticProvider {
	return &StaticProvider{Fix: Fix{Lat: lat, Lng: lng}}
}

// RequestPermission implements Provider.
func (p *StaticProvider) RequestPermission(context.Context) (bool, error) {
	return !p.Denied, nil
}

// CurrentFix implements Provider.
func (p *StaticProvider) CurrentFix(context.Context) (Fix, error) {
	if p.Denied {
		return Fix{}, ErrPermissionDenied
	}
	fix := p.Fix
	fix.Timestamp = time.Now()
	return fix, nil
}

// Watch implements Provider.
func (p *StaticProvider) Watch(ctx context.Context, _ WatchOptions) (<-chan Fix, error) {
	if p.Denied {
		return nil, ErrPermissionDenied
	}
	ch := make(chan Fix, 1)
	fix := p.Fix
	fix.Timestamp = time.Now()
	ch <- fix
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

// ErrNoFix is returned by providers that have no position to report.
var ErrNoFix = eris.New("location: no fix available")

// IdleProvider grants permission but never produces a fix. It backs engines
// that are fed fixes directly through Resolve.
type IdleProvider struct{}

// RequestPermission implements Provider.
func (IdleProvider) RequestPermission(context.Context) (bool, error) { return true, nil }

// CurrentFix implements Provider.
func (IdleProvider) CurrentFix(context.Context) (Fix, error) { return Fix{}, ErrNoFix }

// Watch implements Provider. The channel closes when ctx is done.
func (IdleProvider) Watch(ctx context.Context, _ WatchOptions) (<-chan Fix, error) {
	ch := make(chan Fix)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}
