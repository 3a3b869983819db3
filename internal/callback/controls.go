// Control builders.
//
// This file renders the inline controls the transport shows under delivered
// results. Builders always render from the record state handed to them, so a
// caller that re-reads after a mutation gets a control reflecting the
// post-mutation truth.
package callback

import "fmt"

// Button is one pressable control element. Data holds the encoded callback
// token delivered back when the button is pressed.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data"`
}

// Control is a single row of buttons attached to a delivered result or an
// interaction prompt.
type Control struct {
	// Kind names the control family ("share", "share_confirm", "match",
	// "report_confirm"); the transport uses it only for diagnostics.
	Kind    string   `json:"kind"`
	Buttons []Button `json:"buttons"`
}

// ShareControl renders the visibility control for a result keyed by its
// source fingerprint. The button offers the opposite of the current state;
// the pending value travels in the payload so the confirmation step doesn't
// re-derive it.
func ShareControl(fingerprint string, private bool, maxBytes int) (Control, error) {
	pending := !private
	text := "🔓 Share"
	if !private {
		text = "🔒 Make private"
	}
	data, err := Payload{
		Action:      ActionConfirm,
		Kind:        SubjectFingerprint,
		Fingerprint: fingerprint,
		Private:     &pending,
	}.Encode(maxBytes)
	if err != nil {
		return Control{}, err
	}
	return Control{
		Kind:    "share",
		Buttons: []Button{{Text: text, Data: data}},
	}, nil
}

// ShareConfirmControl renders the yes/no/help step of the share flow. The
// pending visibility value is carried through to the yes button.
func ShareConfirmControl(fingerprint string, pendingPrivate bool, maxBytes int) (Control, error) {
	base := Payload{Kind: SubjectFingerprint, Fingerprint: fingerprint, Private: &pendingPrivate}
	return confirmControl("share_confirm", base, maxBytes)
}

// MatchControl renders the like/report row for a match. The like affordance
// reflects the actor's current state.
func MatchControl(matchID int64, liked bool, maxBytes int) (Control, error) {
	likeText := "🤍 Like"
	if liked {
		likeText = "❤️ Liked"
	}
	likeData, err := Payload{
		Action:  ActionToggleLike,
		Kind:    SubjectMatch,
		MatchID: matchID,
	}.Encode(maxBytes)
	if err != nil {
		return Control{}, err
	}
	reportData, err := Payload{
		Action:  ActionConfirm,
		Kind:    SubjectMatch,
		MatchID: matchID,
	}.Encode(maxBytes)
	if err != nil {
		return Control{}, err
	}
	return Control{
		Kind: "match",
		Buttons: []Button{
			{Text: likeText, Data: likeData},
			{Text: "🚩 Report", Data: reportData},
		},
	}, nil
}

// ReportConfirmControl renders the yes/no/help step of the report flow.
func ReportConfirmControl(matchID int64, maxBytes int) (Control, error) {
	base := Payload{Kind: SubjectMatch, MatchID: matchID}
	return confirmControl("report_confirm", base, maxBytes)
}

// confirmControl emits the shared yes/no/help row over a base payload.
func confirmControl(kind string, base Payload, maxBytes int) (Control, error) {
	buttons := make([]Button, 0, 3)
	for _, step := range []struct {
		text   string
		action Action
	}{
		{"✅ Yes", ActionYes},
		{"❌ No", ActionNo},
		{"❓", ActionHelp},
	} {
		p := base
		p.Action = step.action
		data, err := p.Encode(maxBytes)
		if err != nil {
			return Control{}, fmt.Errorf("render %s: %w", kind, err)
		}
		buttons = append(buttons, Button{Text: step.text, Data: data})
	}
	return Control{Kind: kind, Buttons: buttons}, nil
}
