// Package ratelimit provides a per-client, per-action request limiter
// for the thin API surface.
//
// Budgets mirror the rates the upstream temporary-mail service
// tolerates: address generation and account deletion are expensive and
// tightly limited, reads are generous. The limiter is in-memory and
// per-process.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rule is a request budget: at most Requests per Window, with bursts up
// to the full budget.
type Rule struct {
	Requests int
	Window   time.Duration
}

// Actions with dedicated budgets.
const (
	ActionGenerate      = "generate"
	ActionListMessages  = "list_messages"
	ActionFetchMessage  = "fetch_message"
	ActionDeleteMessage = "delete_message"
	ActionDeleteAccount = "delete_account"
)

// DefaultRules returns the standard per-action budgets.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		ActionGenerate:      {Requests: 5, Window: time.Minute},
		ActionListMessages:  {Requests: 60, Window: time.Minute},
		ActionFetchMessage:  {Requests: 60, Window: time.Minute},
		ActionDeleteMessage: {Requests: 30, Window: time.Minute},
		ActionDeleteAccount: {Requests: 5, Window: time.Minute},
	}
}

// DefaultRule is the budget for actions without a dedicated rule.
var DefaultRule = Rule{Requests: 20, Window: time.Minute}

// idleEvictAfter is how long an untouched client bucket survives before
// the next Allow call prunes it.
const idleEvictAfter = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks request budgets per (client, action) pair.
// Safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	rules       map[string]Rule
	defaultRule Rule
	buckets     map[string]*bucket // "client|action" -> bucket
	lastPrune   time.Time
	now         func() time.Time
}

// New creates a limiter with the given per-action rules. Nil rules
// means DefaultRules().
func New(rules map[string]Rule) *Limiter {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Limiter{
		rules:       rules,
		defaultRule: DefaultRule,
		buckets:     make(map[string]*bucket),
		now:         time.Now,
	}
}

// Allow reports whether the client may perform the action now, and
// consumes one slot of its budget if so.
func (l *Limiter) Allow(clientID, action string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)

	key := clientID + "|" + action
	b, ok := l.buckets[key]
	if !ok {
		rule, ok := l.rules[action]
		if !ok {
			rule = l.defaultRule
		}
		b = &bucket{
			limiter: rate.NewLimiter(rate.Every(rule.Window/time.Duration(rule.Requests)), rule.Requests),
		}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// pruneLocked drops buckets for clients that have gone quiet. Runs at
// most once per eviction interval.
func (l *Limiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < idleEvictAfter {
		return
	}
	l.lastPrune = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= idleEvictAfter {
			delete(l.buckets, key)
		}
	}
}
