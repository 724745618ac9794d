// Package relevance decides which records belong in a data subject's
// disclosure set, and why.
//
// The legal standard (GDPR Art. 15) is "all personal data concerning the
// data subject", broader than authored content. A record is included when
// the subject holds a structural role on it, is @mentioned via the source's
// native syntax, or appears in the free text by name or email. The emitted
// relationship tags let a human reviewer audit every inclusion decision.
package relevance

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	discotel "github.com/dativo-io/disclose/internal/otel"
	"github.com/dativo-io/disclose/internal/identity"
)

var tracer = discotel.Tracer("github.com/dativo-io/disclose/internal/relevance")

// IDPlaceholder is the token in a mention format that is replaced by the
// subject's source-native id, e.g. "<@{id}>" (Slack) or "[~{id}]" (Jira).
const IDPlaceholder = "{id}"

// Classifier evaluates records against one resolved data subject. It is
// parameterized by the source's mention syntax so the same inclusion rules
// generalize across differently-shaped exports; it never copies per-vendor
// scanning logic.
type Classifier struct {
	subject identity.Subject

	// mentionNeedles are the subject-specific mention strings, lowercased,
	// precomputed once per run.
	mentionNeedles []string
	nameLower      string
	emailLower     string
}

// NewClassifier builds a classifier for the resolved subject.
// mentionFormats are the source's native @mention templates containing
// IDPlaceholder; formats without a placeholder are used verbatim.
func NewClassifier(subject identity.Subject, mentionFormats []string) *Classifier {
	c := &Classifier{
		subject:    subject,
		nameLower:  strings.ToLower(subject.Name),
		emailLower: strings.ToLower(subject.Email),
	}
	if subject.ID != "" {
		for _, format := range mentionFormats {
			needle := strings.ReplaceAll(format, IDPlaceholder, subject.ID)
			c.mentionNeedles = append(c.mentionNeedles, strings.ToLower(needle))
		}
	}
	return c
}

// Decision is the outcome of classifying one record.
type Decision struct {
	Included bool
	// Tags is the ordered union of matched structural role names plus
	// "@mentioned", "named", and "email referenced" as applicable.
	Tags []string
}

// Relationship renders the tag set the way reports display it. The
// defensive fallback "referenced" should not occur when inclusion logic
// is correct.
func (d Decision) Relationship() string {
	if len(d.Tags) == 0 {
		return "referenced"
	}
	return strings.Join(d.Tags, ", ")
}

// Classify decides whether the data subject is involved in a record,
// structurally or via free-text mention.
//
// Inclusion requires any of: a structural role id equal to the subject's
// id; the source's @mention syntax referencing the subject's id; the
// subject's full name as a case-insensitive substring; or the subject's
// email as a case-insensitive substring. "named" is only tagged when no
// structural role matched (the role tag already explains the inclusion);
// "email referenced" is always appended on an email match, since an email
// reference is disclosure-relevant in its own right.
func (c *Classifier) Classify(ctx context.Context, roles []Role, text string) Decision {
	_, span := tracer.Start(ctx, "relevance.classify")
	defer span.End()

	var d Decision
	for _, role := range roles {
		if c.subject.ID != "" && role.ID == c.subject.ID {
			d.Tags = append(d.Tags, role.Kind)
		}
	}
	structural := len(d.Tags) > 0

	textLower := strings.ToLower(text)

	mentioned := false
	for _, needle := range c.mentionNeedles {
		if strings.Contains(textLower, needle) {
			mentioned = true
			break
		}
	}
	if mentioned {
		d.Tags = append(d.Tags, "@mentioned")
	}

	named := c.nameLower != "" && strings.Contains(textLower, c.nameLower)
	if named && !structural {
		d.Tags = append(d.Tags, "named")
	}

	emailRef := c.emailLower != "" && strings.Contains(textLower, c.emailLower)
	if emailRef {
		d.Tags = append(d.Tags, "email referenced")
	}

	d.Included = structural || mentioned || named || emailRef

	span.SetAttributes(
		attribute.Bool("relevance.included", d.Included),
		attribute.Int("relevance.tag_count", len(d.Tags)),
	)
	return d
}
