package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/slowjam/go-vinyl-backend/internal/gateway"
	"github.com/slowjam/go-vinyl-backend/internal/queue"
)

// fakeQueue captures jobs for the test to drain synchronously.
type fakeQueue struct {
	jobs []queue.Job
}

func (q *fakeQueue) Enqueue(j queue.Job) int {
	q.jobs = append(q.jobs, j)
	return len(q.jobs)
}

func (q *fakeQueue) Size() int { return len(q.jobs) }

func (q *fakeQueue) drain(ctx context.Context) []error {
	var errs []error
	for _, j := range q.jobs {
		errs = append(errs, j.Run(ctx))
	}
	q.jobs = nil
	return errs
}

type fakeTransformer struct {
	calls int
	out   string
	err   error
	// hook runs before returning, after the call is counted.
	hook func()
}

func (f *fakeTransformer) Transform(ctx context.Context, src string) (string, error) {
	f.calls++
	if f.hook != nil {
		f.hook()
	}
	return f.out, f.err
}

type fakeNotifier struct {
	results []gateway.Result
	err     error
}

func (f *fakeNotifier) DeliverResult(ctx context.Context, res gateway.Result) error {
	f.results = append(f.results, res)
	return f.err
}

func newConversionService(t *testing.T, db *gorm.DB) (*ConversionService, *fakeQueue, *fakeTransformer, *fakeNotifier) {
	t.Helper()
	q := &fakeQueue{}
	tr := &fakeTransformer{out: filepath.Join(t.TempDir(), "out_slow.mp3")}
	n := &fakeNotifier{}
	svc := &ConversionService{
		Matches:          NewMatchService(db),
		Queue:            q,
		Transformer:      tr,
		Notifier:         n,
		CallbackMaxBytes: 64,
		Log:              zerolog.Nop(),
	}
	return svc, q, tr, n
}

func TestSubmit_QueuesFreshFingerprintThenServesResult(t *testing.T) {
	svc, q, tr, n := newConversionService(t, newTestDB(t))
	ctx := context.Background()

	out, err := svc.Submit(ctx, ConversionRequest{Fingerprint: "fp1", SourcePath: "in.mp3", OwnerID: "u1"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !out.Queued || out.Position != 1 || out.Cached != nil {
		t.Fatalf("outcome = %+v, want queued at position 1", out)
	}
	if svc.QueueDepth() != 1 {
		t.Fatalf("QueueDepth = %d", svc.QueueDepth())
	}

	for _, err := range q.drain(ctx) {
		if err != nil {
			t.Fatalf("job failed: %v", err)
		}
	}
	if tr.calls != 1 {
		t.Fatalf("transform calls = %d, want 1", tr.calls)
	}
	if len(n.results) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(n.results))
	}
	res := n.results[0]
	if res.Failure != "" || res.DerivedRef != tr.out || res.Control == nil {
		t.Fatalf("unexpected result: %+v", res)
	}

	m, err := svc.Matches.Lookup(ctx, "fp1")
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if !m.Private {
		t.Fatalf("new record must start private")
	}
}

func TestSubmit_CacheHitSkipsQueue(t *testing.T) {
	svc, q, tr, _ := newConversionService(t, newTestDB(t))
	ctx := context.Background()

	if _, err := svc.Matches.Insert(ctx, "fp1", "prior.mp3", "u1"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out, err := svc.Submit(ctx, ConversionRequest{Fingerprint: "fp1", SourcePath: "other.mp3", OwnerID: "u2"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Queued || out.Cached == nil {
		t.Fatalf("outcome = %+v, want cached", out)
	}
	if out.Cached.DerivedRef != "prior.mp3" {
		t.Fatalf("served %q, want the stored artifact", out.Cached.DerivedRef)
	}
	if len(q.jobs) != 0 || tr.calls != 0 {
		t.Fatalf("cache hit must not queue work")
	}
}

// A duplicate queued behind the original hits the store re-check on the
// worker: the transform runs exactly once and both requesters are served the
// same record.
func TestRunJob_DuplicateBehindOriginalTransformsOnce(t *testing.T) {
	svc, q, tr, n := newConversionService(t, newTestDB(t))
	ctx := context.Background()

	for _, owner := range []string{"u1", "u2"} {
		out, err := svc.Submit(ctx, ConversionRequest{Fingerprint: "fp1", SourcePath: "in.mp3", OwnerID: owner})
		if err != nil || !out.Queued {
			t.Fatalf("Submit %s: %+v, %v", owner, out, err)
		}
	}

	for _, err := range q.drain(ctx) {
		if err != nil {
			t.Fatalf("job failed: %v", err)
		}
	}
	if tr.calls != 1 {
		t.Fatalf("transform calls = %d, want exactly 1", tr.calls)
	}
	if len(n.results) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(n.results))
	}
	if n.results[0].DerivedRef != n.results[1].DerivedRef {
		t.Fatalf("requesters served different artifacts: %q vs %q",
			n.results[0].DerivedRef, n.results[1].DerivedRef)
	}
}

func TestRunJob_TransformFailureDeliversTypedReason(t *testing.T) {
	svc, q, tr, n := newConversionService(t, newTestDB(t))
	tr.err = errors.New("sox exited 2")
	ctx := context.Background()

	if _, err := svc.Submit(ctx, ConversionRequest{Fingerprint: "fp1", SourcePath: "in.mp3", OwnerID: "u1"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	errs := q.drain(ctx)
	if len(errs) != 1 || !errors.Is(errs[0], ErrTransformFailed) {
		t.Fatalf("job error = %v, want ErrTransformFailed", errs)
	}
	if len(n.results) != 1 || n.results[0].Failure != FailureTransform {
		t.Fatalf("failure delivery = %+v", n.results)
	}
	if _, err := svc.Matches.Lookup(ctx, "fp1"); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("failed conversion must not persist a record: %v", err)
	}
}

// If a competing writer lands a record between the re-check and the insert,
// the job discards its fresh artifact and serves the winner.
func TestRunJob_InsertConflictDiscardsArtifactAndServesWinner(t *testing.T) {
	db := newTestDB(t)
	svc, q, tr, n := newConversionService(t, db)
	ctx := context.Background()

	artifact := filepath.Join(t.TempDir(), "loser_slow.mp3")
	if err := os.WriteFile(artifact, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	tr.out = artifact
	tr.hook = func() {
		// Competing writer wins the fingerprint mid-transform.
		if _, err := svc.Matches.Insert(ctx, "fp1", "winner.mp3", "rival"); err != nil {
			t.Fatalf("rival insert: %v", err)
		}
	}

	if _, err := svc.Submit(ctx, ConversionRequest{Fingerprint: "fp1", SourcePath: "in.mp3", OwnerID: "u1"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	for _, err := range q.drain(ctx) {
		if err != nil {
			t.Fatalf("job failed: %v", err)
		}
	}

	if len(n.results) != 1 || n.results[0].DerivedRef != "winner.mp3" {
		t.Fatalf("requester not served the winner: %+v", n.results)
	}
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Fatalf("losing artifact not discarded: %v", err)
	}
}

func TestSubmit_RejectsOversizedSource(t *testing.T) {
	svc, q, _, _ := newConversionService(t, newTestDB(t))
	svc.MaxSourceBytes = 16

	_, err := svc.Submit(context.Background(), ConversionRequest{
		Fingerprint: "fp1", SourcePath: "in.mp3", SourceSize: 64, OwnerID: "u1",
	})
	if !errors.Is(err, ErrSourceTooBig) {
		t.Fatalf("err = %v, want ErrSourceTooBig", err)
	}
	if len(q.jobs) != 0 {
		t.Fatalf("oversized source must not queue")
	}
}

func TestSubmit_RejectsEmptyFingerprint(t *testing.T) {
	svc, q, _, _ := newConversionService(t, newTestDB(t))

	if _, err := svc.Submit(context.Background(), ConversionRequest{SourcePath: "in.mp3"}); !errors.Is(err, ErrInvalidCallback) {
		t.Fatalf("err = %v, want ErrInvalidCallback", err)
	}
	if len(q.jobs) != 0 {
		t.Fatalf("invalid submission must not queue")
	}
}
