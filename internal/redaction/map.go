// Package redaction maintains the per-run identity→label mapping and applies
// it to free text.
//
// The map is seeded once from the full roster before any record is
// processed, then treated as read-only during classification. Every alias
// of an identity (source id, full name, significant name fragments, email,
// phone) resolves to one stable label like "[User 3]", so the same person
// is always anonymized consistently across every source in the run. The
// reverse label→identity mapping exists solely for the internal audit
// trail and must never reach requester-facing output (GDPR Art. 15(4):
// disclosure "shall not adversely affect the rights and freedoms of
// others").
package redaction

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dativo-io/disclose/internal/identity"
)

// DefaultMinAliasLen is the floor below which aliases are neither
// registered as name fragments nor substituted during redaction. Two-char
// fragments ("Al", "Bo") match far too much English text.
const DefaultMinAliasLen = 3

// MinPhoneDigits is the minimum number of digits for a normalized phone
// number to be treated as a real identifier rather than noise.
const MinPhoneDigits = 7

// Map holds the forward alias→label and reverse label→identity mappings
// for one DSAR run. Not safe for concurrent mutation; seed fully before
// sharing for read-only redaction.
type Map struct {
	subject identity.Subject

	forward map[string]string // alias → label
	reverse map[string]string // label → human-readable original identity

	counters    counters
	minAliasLen int

	compiled []aliasPattern
	dirty    bool
}

type aliasPattern struct {
	re    *regexp.Regexp
	label string
}

// counters allocates label numbers per category. A fixed-field struct
// rather than an open string-keyed map: the category set is closed and the
// compiler should know about it.
type counters struct {
	User     int
	Bot      int
	External int
	Email    int
	Phone    int
}

func (c *counters) next(cat identity.Category) int {
	switch cat {
	case identity.CategoryBot:
		c.Bot++
		return c.Bot
	case identity.CategoryExternal:
		c.External++
		return c.External
	case identity.CategoryEmail:
		c.Email++
		return c.Email
	case identity.CategoryPhone:
		c.Phone++
		return c.Phone
	default:
		c.User++
		return c.User
	}
}

// Option configures a Map via the functional options pattern.
type Option func(*Map)

// WithMinAliasLen overrides the anti-false-positive floor. Values below 1
// are ignored.
func WithMinAliasLen(n int) Option {
	return func(m *Map) {
		if n >= 1 {
			m.minAliasLen = n
		}
	}
}

// NewMap creates a redaction map anchored to the resolved data subject.
// The subject's own identifiers are never entered into the map.
func NewMap(subject identity.Subject, opts ...Option) *Map {
	m := &Map{
		subject:     subject,
		forward:     make(map[string]string),
		reverse:     make(map[string]string),
		minAliasLen: DefaultMinAliasLen,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// AddIdentity registers a roster entry and returns its label.
//
// Returns "" when the entry matches the data subject (exact email, exact
// name, or bidirectional name containment); the subject is never redacted.
// Re-registering any already-known identifier is idempotent and returns the
// existing label. Otherwise the next counter for the entry's category is
// allocated and every non-empty identifier maps to the new label. Names
// with 2+ whitespace tokens additionally register the first and last token
// as standalone aliases, provided each token clears the length floor.
func (m *Map) AddIdentity(id, name, email string, category identity.Category) string {
	if m.subject.Is(name, email) {
		return ""
	}

	for _, alias := range []string{id, name, email} {
		if alias == "" {
			continue
		}
		if label, ok := m.forward[alias]; ok {
			return label
		}
	}

	label := m.newLabel(category)
	for _, alias := range []string{id, name, email} {
		if alias == "" {
			continue
		}
		m.register(alias, label)
	}
	m.registerNameFragments(name, label)

	m.reverse[label] = identity.Identity{ID: id, Name: name, Email: email}.Display()
	return label
}

// AddExternal registers a bare name with no source id, for people named in
// content who are not in the vendor's roster (operator-supplied extras).
// Returns the name unchanged when it is too short to redact safely or when
// it matches the data subject.
func (m *Map) AddExternal(name string) string {
	if name == "" || len(name) < m.minAliasLen {
		return name
	}
	if label, ok := m.forward[name]; ok {
		return label
	}
	if m.subject.Is(name, "") {
		return name
	}

	label := m.newLabel(identity.CategoryExternal)
	m.register(name, label)
	m.registerNameFragments(name, label)
	m.reverse[label] = name
	return label
}

// AddEmail registers a standalone email address. The data subject's own
// email is a no-op.
func (m *Map) AddEmail(email string) string {
	if email == "" {
		return ""
	}
	if m.subject.Email != "" && strings.EqualFold(email, m.subject.Email) {
		return ""
	}
	if label, ok := m.forward[email]; ok {
		return label
	}

	label := m.newLabel(identity.CategoryEmail)
	m.register(email, label)
	m.reverse[label] = email
	return label
}

// AddPhone registers a phone number. The number is normalized (all
// characters except digits and '+' stripped) before being used as the
// dedup key; normalized forms under MinPhoneDigits digits are discarded
// as noise. Both the raw and normalized forms become aliases.
func (m *Map) AddPhone(phone string) string {
	if phone == "" {
		return ""
	}
	normalized := normalizePhone(phone)
	if digitCount(normalized) < MinPhoneDigits {
		return ""
	}
	if label, ok := m.forward[normalized]; ok {
		return label
	}

	label := m.newLabel(identity.CategoryPhone)
	m.register(normalized, label)
	if phone != normalized {
		m.register(phone, label)
	}
	m.reverse[label] = phone
	return label
}

// Redact substitutes every registered alias in text with its label.
//
// Aliases are applied longest-first so "Jane Doe" wins over "Jane", with
// lexicographic ordering as the deterministic tie-break. Matching is
// case-insensitive and literal (alias text is quoted, never treated as a
// pattern). Aliases shorter than the floor are never substituted
// regardless of how they were registered. Redact is idempotent: labels
// never collide with aliases, so re-redacting changes nothing.
func (m *Map) Redact(text string) string {
	if text == "" {
		return text
	}
	for _, ap := range m.patterns() {
		text = ap.re.ReplaceAllLiteralString(text, ap.label)
	}
	return text
}

// RedactionKey returns a copy of the reverse label→identity mapping.
// Strictly for the internal audit trail; never include in requester-facing
// output.
func (m *Map) RedactionKey() map[string]string {
	key := make(map[string]string, len(m.reverse))
	for label, original := range m.reverse {
		key[label] = original
	}
	return key
}

// Stats returns per-category redaction counts.
func (m *Map) Stats() map[string]int {
	return map[string]int{
		"user":     m.counters.User,
		"bot":      m.counters.Bot,
		"external": m.counters.External,
		"email":    m.counters.Email,
		"phone":    m.counters.Phone,
	}
}

// Total returns the number of unique entities redacted.
func (m *Map) Total() int {
	return len(m.reverse)
}

func (m *Map) newLabel(category identity.Category) string {
	return fmt.Sprintf("[%s %d]", category.Label(), m.counters.next(category))
}

func (m *Map) register(alias, label string) {
	if _, ok := m.forward[alias]; ok {
		return
	}
	m.forward[alias] = label
	m.dirty = true
}

// registerNameFragments maps the first and last name tokens to the label
// so in-text references like "talked to Jane" are still caught. Each
// fragment must clear the length floor on its own.
func (m *Map) registerNameFragments(name, label string) {
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return
	}
	if len(parts[0]) >= m.minAliasLen {
		m.register(parts[0], label)
	}
	if last := parts[len(parts)-1]; len(last) >= m.minAliasLen {
		m.register(last, label)
	}
}

// patterns returns the compiled substitution list, rebuilt after any
// registration. Ordering: longest alias first, then lexicographic.
func (m *Map) patterns() []aliasPattern {
	if !m.dirty && m.compiled != nil {
		return m.compiled
	}

	aliases := make([]string, 0, len(m.forward))
	for alias := range m.forward {
		if len(alias) >= m.minAliasLen {
			aliases = append(aliases, alias)
		}
	}
	sort.Slice(aliases, func(i, j int) bool {
		if len(aliases[i]) != len(aliases[j]) {
			return len(aliases[i]) > len(aliases[j])
		}
		return aliases[i] < aliases[j]
	})

	compiled := make([]aliasPattern, 0, len(aliases))
	for _, alias := range aliases {
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(alias))
		if err != nil {
			// A single uncompilable alias must not abort the pass.
			continue
		}
		// An alias that matches inside an allocated label (e.g. the name
		// fragment "Bot" inside "[Bot 3]") would break idempotence by
		// rewriting already-redacted text. Such aliases are excluded from
		// substitution; the longer aliases of the same identity still apply.
		if m.matchesAnyLabel(re) {
			continue
		}
		compiled = append(compiled, aliasPattern{re: re, label: m.forward[alias]})
	}

	m.compiled = compiled
	m.dirty = false
	return compiled
}

func (m *Map) matchesAnyLabel(re *regexp.Regexp) bool {
	for label := range m.reverse {
		if re.MatchString(label) {
			return true
		}
	}
	return false
}

// normalizePhone strips everything except digits and a leading-style '+'.
func normalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, ch := range phone {
		if (ch >= '0' && ch <= '9') || ch == '+' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func digitCount(s string) int {
	n := 0
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			n++
		}
	}
	return n
}
