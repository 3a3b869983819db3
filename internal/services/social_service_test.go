package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/slowjam/go-vinyl-backend/internal/callback"
	"github.com/slowjam/go-vinyl-backend/internal/domain"
	"github.com/slowjam/go-vinyl-backend/internal/gateway"
)

type fakeModeration struct {
	reports []gateway.Report
	err     error
}

func (f *fakeModeration) NotifyModeration(ctx context.Context, rep gateway.Report) error {
	f.reports = append(f.reports, rep)
	return f.err
}

func newSocialService(t *testing.T, db *gorm.DB) (*SocialService, *fakeModeration) {
	t.Helper()
	mod := &fakeModeration{}
	svc := &SocialService{
		Matches:          NewMatchService(db),
		Moderation:       mod,
		CallbackMaxBytes: 64,
		Log:              zerolog.Nop(),
	}
	return svc, mod
}

func seedMatch(t *testing.T, s *MatchService, fp string) *domain.Match {
	t.Helper()
	m, err := s.Insert(context.Background(), fp, fp+"_slow.mp3", "owner")
	if err != nil {
		t.Fatalf("seed match: %v", err)
	}
	return m
}

func decodeFirstButton(t *testing.T, ctl *callback.Control) callback.Payload {
	t.Helper()
	if ctl == nil || len(ctl.Buttons) == 0 {
		t.Fatalf("reaction carried no control")
	}
	p, err := callback.Decode(ctl.Buttons[0].Data)
	if err != nil {
		t.Fatalf("decode control button: %v", err)
	}
	return p
}

// Walks the whole visibility flow: confirm shows yes/no/help, yes flips the
// record and re-renders the share control from the stored state.
func TestShareFlow_ConfirmThenYesTogglesVisibility(t *testing.T) {
	svc, _ := newSocialService(t, newTestDB(t))
	ctx := context.Background()
	m := seedMatch(t, svc.Matches, "fp1")
	actor := Actor{ID: "42", Mention: "@someone"}

	re, err := svc.HandleCallback(ctx, callback.Payload{
		Action: callback.ActionConfirm, Kind: callback.SubjectFingerprint, Fingerprint: "fp1",
	}, actor)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if re.Text != textShareConfirmPublic {
		t.Fatalf("private record must prompt for publishing, got %q", re.Text)
	}
	if re.Control == nil || len(re.Control.Buttons) != 3 {
		t.Fatalf("confirm must render yes/no/help: %+v", re.Control)
	}

	yes := decodeFirstButton(t, re.Control)
	if yes.Action != callback.ActionYes || yes.Private == nil || *yes.Private != false {
		t.Fatalf("yes button payload: %+v", yes)
	}

	re, err = svc.HandleCallback(ctx, yes, actor)
	if err != nil {
		t.Fatalf("yes: %v", err)
	}
	got, _ := svc.Matches.LookupByID(ctx, m.ID)
	if got.Private {
		t.Fatalf("record still private after confirm")
	}
	if re.Text != "This track is now public." {
		t.Fatalf("text = %q", re.Text)
	}
	// The fresh control must offer the opposite transition.
	next := decodeFirstButton(t, re.Control)
	if next.Private == nil || *next.Private != true {
		t.Fatalf("re-rendered control must offer making it private: %+v", next)
	}
}

func TestShareFlow_HelpAndNoLeaveStateAlone(t *testing.T) {
	svc, _ := newSocialService(t, newTestDB(t))
	ctx := context.Background()
	m := seedMatch(t, svc.Matches, "fp1")
	actor := Actor{ID: "42"}

	re, err := svc.HandleCallback(ctx, callback.Payload{
		Action: callback.ActionHelp, Kind: callback.SubjectFingerprint, Fingerprint: "fp1",
	}, actor)
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	if re.Alert != textShareHelp || re.Control != nil {
		t.Fatalf("help must alert without touching the control: %+v", re)
	}

	re, err = svc.HandleCallback(ctx, callback.Payload{
		Action: callback.ActionNo, Kind: callback.SubjectFingerprint, Fingerprint: "fp1",
	}, actor)
	if err != nil {
		t.Fatalf("no: %v", err)
	}
	if re.Control == nil {
		t.Fatalf("no must restore the share control")
	}
	got, _ := svc.Matches.LookupByID(ctx, m.ID)
	if !got.Private {
		t.Fatalf("no must not change visibility")
	}
}

// A stale confirm pressed after the state already changed applies the carried
// target, so pressing yes twice is idempotent rather than a double toggle.
func TestShareFlow_StaleYesIsIdempotent(t *testing.T) {
	svc, _ := newSocialService(t, newTestDB(t))
	ctx := context.Background()
	m := seedMatch(t, svc.Matches, "fp1")
	actor := Actor{ID: "42"}

	public := false
	yes := callback.Payload{
		Action: callback.ActionYes, Kind: callback.SubjectFingerprint,
		Fingerprint: "fp1", Private: &public,
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.HandleCallback(ctx, yes, actor); err != nil {
			t.Fatalf("yes #%d: %v", i, err)
		}
	}
	got, _ := svc.Matches.LookupByID(ctx, m.ID)
	if got.Private {
		t.Fatalf("repeated yes flipped the state back")
	}
}

func TestReportFlow_YesNotifiesModerationOnce(t *testing.T) {
	svc, mod := newSocialService(t, newTestDB(t))
	ctx := context.Background()
	m := seedMatch(t, svc.Matches, "fp1")
	actor := Actor{ID: "42", Mention: "@reporter"}

	re, err := svc.HandleCallback(ctx, callback.Payload{
		Action: callback.ActionConfirm, Kind: callback.SubjectMatch, MatchID: m.ID,
	}, actor)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if re.Text != textReportConfirm {
		t.Fatalf("text = %q", re.Text)
	}

	re, err = svc.HandleCallback(ctx, callback.Payload{
		Action: callback.ActionYes, Kind: callback.SubjectMatch, MatchID: m.ID,
	}, actor)
	if err != nil {
		t.Fatalf("yes: %v", err)
	}
	if re.Alert != textReportSent {
		t.Fatalf("alert = %q", re.Alert)
	}
	if len(mod.reports) != 1 || mod.reports[0].MatchID != m.ID || mod.reports[0].ReporterMention != "@reporter" {
		t.Fatalf("moderation reports = %+v", mod.reports)
	}

	// Reporting never suppresses the record by itself.
	got, _ := svc.Matches.LookupByID(ctx, m.ID)
	if got.Forbidden {
		t.Fatalf("report must not set the forbidden flag")
	}
}

func TestReportFlow_ForbiddenRecordShortCircuits(t *testing.T) {
	svc, mod := newSocialService(t, newTestDB(t))
	ctx := context.Background()
	m := seedMatch(t, svc.Matches, "fp1")
	if err := svc.Matches.SetForbidden(ctx, m.ID); err != nil {
		t.Fatalf("SetForbidden: %v", err)
	}
	actor := Actor{ID: "42"}

	for _, action := range []callback.Action{callback.ActionConfirm, callback.ActionYes} {
		re, err := svc.HandleCallback(ctx, callback.Payload{
			Action: action, Kind: callback.SubjectMatch, MatchID: m.ID,
		}, actor)
		if err != nil {
			t.Fatalf("%s: %v", action, err)
		}
		if re.Alert != alertAlreadyHandled {
			t.Fatalf("%s alert = %q", action, re.Alert)
		}
	}
	if len(mod.reports) != 0 {
		t.Fatalf("forbidden record must not reach moderation: %+v", mod.reports)
	}
}

func TestReportFlow_ModerationOutageIsSoftFailure(t *testing.T) {
	svc, mod := newSocialService(t, newTestDB(t))
	mod.err = errors.New("connection refused")
	ctx := context.Background()
	m := seedMatch(t, svc.Matches, "fp1")

	re, err := svc.HandleCallback(ctx, callback.Payload{
		Action: callback.ActionYes, Kind: callback.SubjectMatch, MatchID: m.ID,
	}, Actor{ID: "42"})
	if err != nil {
		t.Fatalf("outage must not surface as an error: %v", err)
	}
	if re.Alert != alertModerationDown {
		t.Fatalf("alert = %q", re.Alert)
	}
	if re.Control == nil {
		t.Fatalf("control must be restored so the user can retry")
	}
}

func TestLikeToggle_ReactionTracksState(t *testing.T) {
	svc, _ := newSocialService(t, newTestDB(t))
	ctx := context.Background()
	m := seedMatch(t, svc.Matches, "fp1")
	actor := Actor{ID: "42"}
	press := callback.Payload{Action: callback.ActionToggleLike, Kind: callback.SubjectMatch, MatchID: m.ID}

	re, err := svc.HandleCallback(ctx, press, actor)
	if err != nil {
		t.Fatalf("first press: %v", err)
	}
	if re.Alert != textLiked || re.Control == nil {
		t.Fatalf("first press reaction: %+v", re)
	}

	re, err = svc.HandleCallback(ctx, press, actor)
	if err != nil {
		t.Fatalf("second press: %v", err)
	}
	if re.Alert != textUnliked {
		t.Fatalf("second press alert = %q", re.Alert)
	}
	liked, _ := svc.Matches.IsLiked(ctx, m.ID, actor.ID)
	if liked {
		t.Fatalf("two presses must land back on not liked")
	}
}

func TestHandleCallback_MissingRecordAlertsGone(t *testing.T) {
	svc, _ := newSocialService(t, newTestDB(t))

	re, err := svc.HandleCallback(context.Background(), callback.Payload{
		Action: callback.ActionConfirm, Kind: callback.SubjectMatch, MatchID: 9999,
	}, Actor{ID: "42"})
	if !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("err = %v, want ErrMatchNotFound", err)
	}
	if re.Alert != alertGone {
		t.Fatalf("alert = %q", re.Alert)
	}
}
