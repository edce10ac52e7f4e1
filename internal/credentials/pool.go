// Package credentials manages the ordered pool of text-generation API keys
// and their quota state.
//
// Exactly one credential is active at a time. Quota errors cool a credential
// down and advance selection to the next available key in configured order;
// usage counters and cooldowns reset when the provider's daily quota window
// rolls over (UTC midnight). A local per-day request budget marks a credential
// exhausted before the provider has to.
package credentials

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"byline/internal/services"
)

// Credential identifies one API key in the pool.
type Credential struct {
	ID     string
	Secret string
}

// Status is a point-in-time snapshot of one credential's quota state, used
// for status reporting. Secrets are never included.
type Status struct {
	ID             string    `json:"id"`
	Active         bool      `json:"active"`
	RequestsUsed   int       `json:"requests_used"`
	DailyBudget    int       `json:"daily_budget"`
	ExhaustedUntil time.Time `json:"exhausted_until,omitzero"`
}

type credentialState struct {
	used           int
	windowStart    time.Time
	exhaustedUntil time.Time
}

// UsageRecord is one credential's persisted quota state for a single UTC day.
type UsageRecord struct {
	RequestsUsed   int
	ExhaustedUntil time.Time
}

// Journal stores per-day usage so the local budget survives process
// restarts. Days are keyed "2006-01-02" in UTC.
type Journal interface {
	LoadUsage(ctx context.Context, day string) (map[string]UsageRecord, error)
	SaveUsage(ctx context.Context, day, credentialID string, record UsageRecord) error
}

// Options tunes pool behaviour. Zero values fall back to sane defaults.
type Options struct {
	// DailyBudget caps requests per credential per UTC day. Zero disables
	// the local budget.
	DailyBudget int
	// DefaultCooldown applies when MarkExhausted receives no provider hint.
	DefaultCooldown time.Duration
	// Now is the clock, injectable for tests.
	Now func() time.Time
	// Journal persists usage counters across restarts. Nil keeps state
	// in memory only.
	Journal Journal
}

// Pool owns credential quota state. Selection order is the configured order,
// never reordered at runtime.
type Pool struct {
	mu              sync.Mutex
	creds           []Credential
	states          []credentialState
	cursor          int
	dailyBudget     int
	defaultCooldown time.Duration
	now             func() time.Time
	journal         Journal
}

// NewPool builds a pool from secrets in priority order. With a journal
// configured, today's usage counters and cooldowns are restored so a restart
// never resets the daily budget mid-window. Returns a configuration error
// when no usable secret is given.
func NewPool(secrets []string, opts Options) (*Pool, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cooldown := opts.DefaultCooldown
	if cooldown <= 0 {
		cooldown = 24 * time.Hour
	}

	creds := make([]Credential, 0, len(secrets))
	for i, secret := range secrets {
		trimmed := strings.TrimSpace(secret)
		if trimmed == "" {
			continue
		}
		creds = append(creds, Credential{ID: credentialID(i), Secret: trimmed})
	}
	if len(creds) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "credentials", "new pool", "no usable credentials configured", nil)
	}

	p := &Pool{
		creds:           creds,
		states:          make([]credentialState, len(creds)),
		dailyBudget:     opts.DailyBudget,
		defaultCooldown: cooldown,
		now:             now,
		journal:         opts.Journal,
	}
	start := dayStart(now())
	for i := range p.states {
		p.states[i].windowStart = start
	}
	if p.journal != nil {
		records, err := p.journal.LoadUsage(context.Background(), dayKey(start))
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "credentials", "new pool", "restore usage journal", err)
		}
		for i, cred := range p.creds {
			record, ok := records[cred.ID]
			if !ok {
				continue
			}
			p.states[i].used = record.RequestsUsed
			if record.ExhaustedUntil.After(now()) {
				p.states[i].exhaustedUntil = record.ExhaustedUntil
			}
		}
	}
	return p, nil
}

func credentialID(index int) string {
	if index == 0 {
		return "primary"
	}
	return "backup-" + strconv.Itoa(index)
}

// Current returns the active credential. When the credential at the cursor is
// cooling down, selection walks forward in configured order, wrapping once.
// Returns ErrAllCredentialsExhausted when every credential is cooling down.
func (p *Pool) Current() (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.rolloverLocked(now)

	for offset := 0; offset < len(p.creds); offset++ {
		idx := (p.cursor + offset) % len(p.creds)
		if p.states[idx].exhaustedUntil.After(now) {
			continue
		}
		p.cursor = idx
		return p.creds[idx], nil
	}
	return Credential{}, services.Wrap(services.ErrAllCredentialsExhausted, "credentials", "current", "every credential is cooling down", nil)
}

// MarkExhausted cools the credential down and advances selection to the next
// available credential. retryAfterHint <= 0 applies the default cooldown.
func (p *Pool) MarkExhausted(id string, retryAfterHint time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.indexLocked(id)
	if !ok {
		return
	}
	now := p.now()
	p.rolloverLocked(now)

	cooldown := retryAfterHint
	if cooldown <= 0 {
		cooldown = p.defaultCooldown
	}
	p.states[idx].exhaustedUntil = now.Add(cooldown)
	p.persistLocked(idx)

	if idx == p.cursor {
		p.advanceLocked(now)
	}
}

// MarkSuccess records a completed request against the credential. When the
// local daily budget is reached the credential is cooled down until the next
// quota window so the provider never has to reject it.
func (p *Pool) MarkSuccess(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.indexLocked(id)
	if !ok {
		return
	}
	now := p.now()
	p.rolloverLocked(now)

	p.states[idx].used++
	if p.dailyBudget > 0 && p.states[idx].used >= p.dailyBudget {
		p.states[idx].exhaustedUntil = dayStart(now).Add(24 * time.Hour)
		if idx == p.cursor {
			p.advanceLocked(now)
		}
	}
	p.persistLocked(idx)
}

// AllExhausted reports whether every credential is currently cooling down.
func (p *Pool) AllExhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.rolloverLocked(now)
	for i := range p.states {
		if !p.states[i].exhaustedUntil.After(now) {
			return false
		}
	}
	return true
}

// Snapshot returns the quota state of every credential in configured order.
func (p *Pool) Snapshot() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.rolloverLocked(now)

	out := make([]Status, len(p.creds))
	for i, cred := range p.creds {
		st := Status{
			ID:           cred.ID,
			Active:       i == p.cursor && !p.states[i].exhaustedUntil.After(now),
			RequestsUsed: p.states[i].used,
			DailyBudget:  p.dailyBudget,
		}
		if p.states[i].exhaustedUntil.After(now) {
			st.ExhaustedUntil = p.states[i].exhaustedUntil
		}
		out[i] = st
	}
	return out
}

// Size returns the number of configured credentials.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

func (p *Pool) indexLocked(id string) (int, bool) {
	for i, cred := range p.creds {
		if cred.ID == id {
			return i, true
		}
	}
	return 0, false
}

// advanceLocked moves the cursor to the next available credential after the
// current one, wrapping once. With nothing available the cursor resets to the
// front so recovery starts from the highest-priority credential.
func (p *Pool) advanceLocked(now time.Time) {
	for offset := 1; offset <= len(p.creds); offset++ {
		idx := (p.cursor + offset) % len(p.creds)
		if !p.states[idx].exhaustedUntil.After(now) {
			p.cursor = idx
			return
		}
	}
	p.cursor = 0
}

// rolloverLocked resets usage counters and clears cooldowns for credentials
// whose quota window has rolled over.
func (p *Pool) rolloverLocked(now time.Time) {
	start := dayStart(now)
	for i := range p.states {
		if p.states[i].windowStart.Before(start) {
			p.states[i].windowStart = start
			p.states[i].used = 0
			p.states[i].exhaustedUntil = time.Time{}
		}
	}
}

// persistLocked records the credential's state in the journal. Writes are
// best-effort; the in-memory state stays authoritative when the journal is
// unavailable.
func (p *Pool) persistLocked(idx int) {
	if p.journal == nil {
		return
	}
	state := p.states[idx]
	_ = p.journal.SaveUsage(context.Background(), dayKey(state.windowStart), p.creds[idx].ID, UsageRecord{
		RequestsUsed:   state.used,
		ExhaustedUntil: state.exhaustedUntil,
	})
}

func dayStart(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
