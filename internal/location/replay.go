package location

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ReplayProvider plays back recorded fixes from JSON Lines, one object per
// line: {"lat":22.3,"lng":114.1,"accuracy":8,"timestamp":"2024-05-01T10:00:00Z"}.
// CurrentFix serves the first fix and Watch streams the rest.
type ReplayProvider struct {
	// Pace is the delay between fixes emitted by Watch.
	Pace time.Duration

	mu     sync.Mutex
	fixes  []Fix
	cursor int
}

// OpenReplay loads a JSON Lines file.
func OpenReplay(path string) (*ReplayProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "location: open replay %s", path)
	}
	defer f.Close()

	return NewReplayProvider(f)
}

// NewReplayProvider parses JSON Lines from r. Blank lines and lines starting
// with # are skipped; malformed lines are logged and skipped.
func NewReplayProvider(r io.Reader) (*ReplayProvider, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var fixes []Fix
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var fix Fix
		if err := json.Unmarshal([]byte(text), &fix); err != nil {
			zap.L().Warn("skipping malformed replay line", zap.Int("line", line), zap.Error(err))
			continue
		}
		fixes = append(fixes, fix)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "location: read replay")
	}
	if len(fixes) == 0 {
		return nil, eris.New("location: replay has no fixes")
	}
	return &ReplayProvider{fixes: fixes}, nil
}

// Len returns the number of recorded fixes.
func (p *ReplayProvider) Len() int {
	return len(p.fixes)
}

// RequestPermission implements Provider.
func (p *ReplayProvider) RequestPermission(context.Context) (bool, error) {
	return true, nil
}

// CurrentFix implements Provider.
func (p *ReplayProvider) CurrentFix(context.Context) (Fix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cursor == 0 {
		p.cursor = 1
	}
	return p.fixes[0], nil
}

// Watch implements Provider. The channel closes after the last fix.
func (p *ReplayProvider) Watch(ctx context.Context, _ WatchOptions) (<-chan Fix, error) {
	p.mu.Lock()
	pending := p.fixes[p.cursor:]
	p.cursor = len(p.fixes)
	p.mu.Unlock()

	ch := make(chan Fix)
	go func() {
		defer close(ch)
		for i, fix := range pending {
			if i > 0 && p.Pace > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.Pace):
				}
			}
			select {
			case <-ctx.Done():
				return
			case ch <- fix:
			}
		}
	}()
	return ch, nil
}
