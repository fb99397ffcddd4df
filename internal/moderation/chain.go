package moderation

import (
	"time"

	"github.com/threaded-comments-api/internal/markup"
	"github.com/threaded-comments-api/internal/models"
)

// Reason explains why a comment was not published
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonDisabled         Reason = "comments_disabled"
	ReasonClosed           Reason = "comments_closed"
	ReasonMarkupNotAllowed Reason = "markup_not_allowed"
	ReasonTooLong          Reason = "too_long"
	ReasonTooDeep          Reason = "too_deep"
	ReasonAwaitingApproval Reason = "awaiting_approval"
	ReasonParentHidden     Reason = "parent_hidden"
)

// Candidate is a comment about to be stored
type Candidate struct {
	Target *models.Target
	Body   string
	Markup markup.Kind
	Depth  int
}

// Decision is the outcome of running a candidate through a policy
type Decision struct {
	Moderated bool   `json:"moderated" xml:"moderated"`
	Public    bool   `json:"public" xml:"public"`
	Reason    Reason `json:"reason,omitempty" xml:"reason,omitempty"`
	Notify    bool   `json:"-" xml:"-"`
}

// Unmoderated is the decision for content types without a policy
var Unmoderated = Decision{Public: true}

type check struct {
	reason Reason
	pass   func(Policy, Candidate, time.Time) bool
}

// Checks run in this order and stop at the first rejection
var checks = []check{
	{ReasonDisabled, func(p Policy, c Candidate, _ time.Time) bool { return p.IsEnabled(c.Target) }},
	{ReasonClosed, func(p Policy, c Candidate, now time.Time) bool { return p.IsOpen(c.Target, now) }},
	{ReasonMarkupNotAllowed, func(p Policy, c Candidate, _ time.Time) bool { return p.IsMarkupAllowed(c.Markup) }},
	{ReasonTooLong, func(p Policy, c Candidate, _ time.Time) bool { return p.IsWithinLength(c.Body) }},
	{ReasonTooDeep, func(p Policy, c Candidate, _ time.Time) bool { return p.IsWithinDepth(c.Depth) }},
}

// Evaluate runs the chain. A rejection hides the comment; it is never an error.
func Evaluate(p Policy, c Candidate, now time.Time) Decision {
	if p == nil {
		return Unmoderated
	}

	d := Decision{Moderated: true, Public: true, Notify: p.WantsNotification()}
	for _, chk := range checks {
		if !chk.pass(p, c, now) {
			d.Public = false
			d.Reason = chk.reason
			return d
		}
	}
	if p.NeedsApproval(c.Target, now) {
		d.Public = false
		d.Reason = ReasonAwaitingApproval
	}
	return d
}
