// Package callback defines the wire schema spoken between the core and the
// chat transport's inline controls: the compact payload token attached to
// every button, and the control (button row) descriptions the core renders.
//
// The token must fit the transport's callback-data limit, so it is encoded as
// minified JSON with one-letter keys and validated against a byte budget at
// encode time. Booleans are real JSON booleans; nothing downstream parses
// strings back into flags.
//
// Subject keying is deliberately asymmetric and must stay that way: share
// controls reference the source fingerprint, while report and like controls
// reference the match id. Decoding enforces the pairing so a handler can
// never look a subject up with the wrong key type.
package callback

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action identifies what a pressed button asks the core to do.
type Action string

// Supported callback actions.
const (
	// ActionConfirm opens a confirmation step for a share or report flow.
	ActionConfirm Action = "confirm"
	// ActionHelp re-emits the explanatory text for a pending confirmation.
	ActionHelp Action = "help"
	// ActionNo abandons a pending confirmation and restores the original control.
	ActionNo Action = "no"
	// ActionYes applies the confirmed mutation.
	ActionYes Action = "yes"
	// ActionToggleLike flips the actor's like on a match.
	ActionToggleLike Action = "toggle_like"
)

// SubjectKind says how the payload's subject is keyed.
type SubjectKind string

// Subject kinds. Share flows key by fingerprint; report and like flows key by
// match id.
const (
	SubjectFingerprint SubjectKind = "f"
	SubjectMatch       SubjectKind = "m"
)

// MaxTokenBytes is the default byte budget for an encoded token. It mirrors
// the callback-data limit of the chat transport.
const MaxTokenBytes = 64

// Payload is the decoded form of a callback token.
type Payload struct {
	// Action is the requested operation.
	Action Action
	// Kind selects the subject key space.
	Kind SubjectKind
	// Fingerprint is set when Kind is SubjectFingerprint.
	Fingerprint string
	// MatchID is set when Kind is SubjectMatch.
	MatchID int64
	// Private carries the pending visibility value for the share flow.
	Private *bool
}

// wirePayload is the JSON shape actually placed on buttons.
type wirePayload struct {
	A string `json:"a"`
	K string `json:"k"`
	S string `json:"s"`
	P *bool  `json:"p,omitempty"`
}

// Encode serializes p into a token no longer than maxBytes (MaxTokenBytes
// when maxBytes <= 0). It fails when the payload is structurally invalid or
// the subject pushes the token over budget.
func (p Payload) Encode(maxBytes int) (string, error) {
	if maxBytes <= 0 {
		maxBytes = MaxTokenBytes
	}
	if err := p.validate(); err != nil {
		return "", err
	}

	w := wirePayload{A: string(p.Action), K: string(p.Kind), P: p.Private}
	switch p.Kind {
	case SubjectFingerprint:
		w.S = p.Fingerprint
	case SubjectMatch:
		w.S = fmt.Sprintf("%d", p.MatchID)
	}

	raw, err := json.Marshal(w)
	if err != nil {
		return "", err
	}
	if len(raw) > maxBytes {
		return "", fmt.Errorf("callback token %d bytes exceeds limit %d", len(raw), maxBytes)
	}
	return string(raw), nil
}

// Decode parses a token back into a Payload, enforcing the action set and the
// action/subject-kind pairing.
func Decode(token string) (Payload, error) {
	var w wirePayload
	if err := json.Unmarshal([]byte(token), &w); err != nil {
		return Payload{}, fmt.Errorf("malformed callback token: %w", err)
	}

	p := Payload{
		Action:  Action(w.A),
		Kind:    SubjectKind(w.K),
		Private: w.P,
	}

	switch p.Action {
	case ActionConfirm, ActionHelp, ActionNo, ActionYes, ActionToggleLike:
	default:
		return Payload{}, fmt.Errorf("unknown callback action %q", w.A)
	}

	switch p.Kind {
	case SubjectFingerprint:
		p.Fingerprint = strings.TrimSpace(w.S)
		if p.Fingerprint == "" {
			return Payload{}, fmt.Errorf("empty fingerprint subject")
		}
	case SubjectMatch:
		if _, err := fmt.Sscanf(w.S, "%d", &p.MatchID); err != nil || p.MatchID <= 0 {
			return Payload{}, fmt.Errorf("bad match subject %q", w.S)
		}
	default:
		return Payload{}, fmt.Errorf("unknown subject kind %q", w.K)
	}

	if p.Action == ActionToggleLike && p.Kind != SubjectMatch {
		return Payload{}, fmt.Errorf("toggle_like must key by match id")
	}
	return p, nil
}

func (p Payload) validate() error {
	switch p.Kind {
	case SubjectFingerprint:
		if strings.TrimSpace(p.Fingerprint) == "" {
			return fmt.Errorf("fingerprint subject is empty")
		}
	case SubjectMatch:
		if p.MatchID <= 0 {
			return fmt.Errorf("match subject is unset")
		}
	default:
		return fmt.Errorf("unknown subject kind %q", p.Kind)
	}
	if p.Action == ActionToggleLike && p.Kind != SubjectMatch {
		return fmt.Errorf("toggle_like must key by match id")
	}
	return nil
}
