// Package services – SocialService
//
// This file implements the callback-driven state machine behind the share,
// report, and like interactions. Each flow walks Idle → ConfirmPending →
// Resolved, but no state is stored server-side between presses: the rendered
// control *is* the state, and every callback carries enough context to be
// handled on its own. That makes rapid repeated presses harmless — each press
// re-reads the record and re-renders from what is actually stored.
//
// The two confirm flows key their subjects differently on purpose: share
// callbacks carry the source fingerprint, report and like callbacks carry the
// match id. The payload codec enforces the pairing; this service trusts it.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/slowjam/go-vinyl-backend/internal/callback"
	"github.com/slowjam/go-vinyl-backend/internal/domain"
	"github.com/slowjam/go-vinyl-backend/internal/gateway"
)

// User-facing copy for the confirm flows.
const (
	textShareConfirmPublic  = "Make this track visible to everyone?"
	textShareConfirmPrivate = "Hide this track from everyone else?"
	textShareHelp           = "Sharing controls who can see this converted track. You can change it back at any time."
	textReportConfirm       = "Report this track to the moderators?"
	textReportHelp          = "Reporting sends this track to the moderators for review. Use it for content that should not be here."
	textReportSent          = "Thanks, the moderators will take a look."
	textLiked               = "Added to your likes."
	textUnliked             = "Removed from your likes."

	alertAlreadyHandled = "This track has already been handled by moderation."
	alertGone           = "This track is no longer available."
	alertModerationDown = "Could not reach the moderators right now, please try again later."
)

// Reaction is what the transport should do in response to a callback: show a
// transient alert, replace the message text, and/or swap the control. Zero
// fields mean "leave as is".
type Reaction struct {
	// Alert is a transient popup shown only to the actor.
	Alert string `json:"alert,omitempty"`
	// Text replaces the prompt text under the control.
	Text string `json:"text,omitempty"`
	// Control replaces the rendered button row.
	Control *callback.Control `json:"control,omitempty"`
}

// Actor identifies who pressed the button.
type Actor struct {
	// ID is the transport-supplied user identity.
	ID string
	// Mention is a renderable handle used in moderation reports.
	Mention string
}

// SocialService interprets callback payloads against match records.
type SocialService struct {
	// Matches is the authority on record and like state.
	Matches *MatchService
	// Moderation receives report escalations.
	Moderation gateway.ModerationNotifier
	// CallbackMaxBytes caps rendered callback tokens.
	CallbackMaxBytes int
	// Log receives integrity warnings and delivery failures.
	Log zerolog.Logger
}

// HandleCallback executes one inbound control press and returns the next UI
// state. ErrMatchNotFound means the callback referenced a record that does
// not exist — suspicious, since controls are only rendered from real records,
// so it is logged before being surfaced.
func (s *SocialService) HandleCallback(ctx context.Context, p callback.Payload, actor Actor) (Reaction, error) {
	var (
		re  Reaction
		err error
	)
	switch p.Kind {
	case callback.SubjectFingerprint:
		re, err = s.handleShare(ctx, p)
	case callback.SubjectMatch:
		re, err = s.handleMatch(ctx, p, actor)
	default:
		return Reaction{}, ErrInvalidCallback
	}

	if errors.Is(err, ErrMatchForbidden) {
		// Moderation already handled the record; resolve with the alert, no
		// mutation and no escalation.
		return Reaction{Alert: alertAlreadyHandled}, nil
	}
	if errors.Is(err, ErrMatchNotFound) {
		s.Log.Warn().
			Str("action", string(p.Action)).
			Str("fingerprint", p.Fingerprint).
			Int64("match_id", p.MatchID).
			Str("actor_id", actor.ID).
			Msg("callback referenced a missing record")
		return Reaction{Alert: alertGone}, err
	}
	return re, err
}

// handleShare drives the visibility confirm flow, keyed by fingerprint.
// There is deliberately no ownership check: anyone holding the result may
// toggle its visibility.
func (s *SocialService) handleShare(ctx context.Context, p callback.Payload) (Reaction, error) {
	m, err := s.Matches.Lookup(ctx, p.Fingerprint)
	if err != nil {
		return Reaction{}, err
	}

	switch p.Action {
	case callback.ActionConfirm:
		pending := !m.Private
		if p.Private != nil {
			pending = *p.Private
		}
		ctl, err := callback.ShareConfirmControl(m.Fingerprint, pending, s.CallbackMaxBytes)
		if err != nil {
			return Reaction{}, err
		}
		text := textShareConfirmPublic
		if pending {
			text = textShareConfirmPrivate
		}
		return Reaction{Text: text, Control: &ctl}, nil

	case callback.ActionHelp:
		// Explain without changing state; the pending control stays up.
		return Reaction{Alert: textShareHelp}, nil

	case callback.ActionNo:
		return s.shareControlReaction(ctx, m.Fingerprint, "")

	case callback.ActionYes:
		target := !m.Private
		if p.Private != nil {
			target = *p.Private
		}
		if err := s.Matches.SetPrivate(ctx, m.ID, target); err != nil {
			return Reaction{}, err
		}
		// Re-render from the stored record, not the pre-mutation snapshot.
		return s.shareControlReaction(ctx, m.Fingerprint, visibilityText(target))

	default:
		return Reaction{}, ErrInvalidCallback
	}
}

// handleMatch drives the report confirm flow and the like toggle, keyed by
// match id.
func (s *SocialService) handleMatch(ctx context.Context, p callback.Payload, actor Actor) (Reaction, error) {
	m, err := s.Matches.LookupByID(ctx, p.MatchID)
	if err != nil {
		return Reaction{}, err
	}

	switch p.Action {
	case callback.ActionConfirm:
		if m.Forbidden {
			return Reaction{}, ErrMatchForbidden
		}
		ctl, err := callback.ReportConfirmControl(m.ID, s.CallbackMaxBytes)
		if err != nil {
			return Reaction{}, err
		}
		return Reaction{Text: textReportConfirm, Control: &ctl}, nil

	case callback.ActionHelp:
		return Reaction{Alert: textReportHelp}, nil

	case callback.ActionNo:
		return s.matchControlReaction(ctx, m, actor, "")

	case callback.ActionYes:
		return s.handleReportYes(ctx, m, actor)

	case callback.ActionToggleLike:
		liked, err := s.Matches.ToggleLike(ctx, m.ID, actor.ID)
		if err != nil {
			return Reaction{}, err
		}
		text := textUnliked
		if liked {
			text = textLiked
		}
		ctl, err := callback.MatchControl(m.ID, liked, s.CallbackMaxBytes)
		if err != nil {
			return Reaction{}, err
		}
		return Reaction{Alert: text, Control: &ctl}, nil

	default:
		return Reaction{}, ErrInvalidCallback
	}
}

// handleReportYes escalates a report. A record that moderation has already
// suppressed short-circuits with an alert and no second notification. The
// report flow never sets the forbidden flag itself; that happens through the
// out-of-band moderation action.
func (s *SocialService) handleReportYes(ctx context.Context, m *domain.Match, actor Actor) (Reaction, error) {
	if m.Forbidden {
		return Reaction{}, ErrMatchForbidden
	}

	rep := gateway.Report{
		MatchID:         m.ID,
		DerivedRef:      m.DerivedRef,
		ReporterMention: actor.Mention,
	}
	if err := s.Moderation.NotifyModeration(ctx, rep); err != nil {
		// Soft failure: the report is dropped, the control is restored.
		err = fmt.Errorf("%w: %v", ErrModerationDelivery, err)
		s.Log.Error().Int64("match_id", m.ID).Err(err).Msg("report dropped")
		re, rerr := s.matchControlReaction(ctx, m, actor, "")
		if rerr != nil {
			return Reaction{}, rerr
		}
		re.Alert = alertModerationDown
		return re, nil
	}

	re, err := s.matchControlReaction(ctx, m, actor, "")
	if err != nil {
		return Reaction{}, err
	}
	re.Alert = textReportSent
	return re, nil
}

// shareControlReaction re-reads the record and renders the share control from
// its current state.
func (s *SocialService) shareControlReaction(ctx context.Context, fingerprint, text string) (Reaction, error) {
	m, err := s.Matches.Lookup(ctx, fingerprint)
	if err != nil {
		return Reaction{}, err
	}
	ctl, err := callback.ShareControl(m.Fingerprint, m.Private, s.CallbackMaxBytes)
	if err != nil {
		return Reaction{}, err
	}
	return Reaction{Text: text, Control: &ctl}, nil
}

// matchControlReaction renders the like/report row for the actor from the
// current like state.
func (s *SocialService) matchControlReaction(ctx context.Context, m *domain.Match, actor Actor, text string) (Reaction, error) {
	liked, err := s.Matches.IsLiked(ctx, m.ID, actor.ID)
	if err != nil {
		return Reaction{}, err
	}
	ctl, err := callback.MatchControl(m.ID, liked, s.CallbackMaxBytes)
	if err != nil {
		return Reaction{}, err
	}
	return Reaction{Text: text, Control: &ctl}, nil
}

// visibilityText describes the post-mutation visibility for the prompt line.
func visibilityText(private bool) string {
	if private {
		return "This track is now private."
	}
	return "This track is now public."
}
