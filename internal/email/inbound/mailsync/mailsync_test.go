package mailsync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/deskpilot-io/deskpilot/internal/email/inbound/connector"
)

type fakeMailbox struct {
	connector.Mailbox

	folders     map[string]bool
	openFolder  string
	copyErr     error
	copyCalls   int
	deleteErr   error
	deleted     []uint32
	flagged     map[string][]uint32
	openErrCnt  map[string]int
	createCalls []string
}

func newFakeMailbox(folders ...string) *fakeMailbox {
	f := &fakeMailbox{
		folders:    make(map[string]bool),
		flagged:    make(map[string][]uint32),
		openErrCnt: make(map[string]int),
	}
	for _, name := range folders {
		f.folders[name] = true
	}
	return f
}

func (f *fakeMailbox) OpenFolder(_ context.Context, name string) error {
	if n := f.openErrCnt[name]; n > 0 {
		f.openErrCnt[name] = n - 1
		return errors.New("open failed")
	}
	if !f.folders[name] {
		return fmt.Errorf("mailbox %s does not exist", name)
	}
	f.openFolder = name
	return nil
}

func (f *fakeMailbox) CopyMessage(_ context.Context, uid uint32, dest string) error {
	f.copyCalls++
	if f.copyErr != nil {
		return f.copyErr
	}
	if !f.folders[dest] {
		return fmt.Errorf("copy failed: [TRYCREATE] no such mailbox %s", dest)
	}
	return nil
}

func (f *fakeMailbox) DeleteMessage(_ context.Context, uid uint32) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, uid)
	return nil
}

func (f *fakeMailbox) AddFlag(_ context.Context, uid uint32, flag string) error {
	f.flagged[f.openFolder] = append(f.flagged[f.openFolder], uid)
	return nil
}

func (f *fakeMailbox) CreateFolder(_ context.Context, name string) error {
	f.createCalls = append(f.createCalls, name)
	f.folders[name] = true
	return nil
}

func TestFinalizeMovesAndFlags(t *testing.T) {
	mbox := newFakeMailbox("INBOX", "Processed")
	s := New(mbox, "INBOX", nil)

	s.Finalize(context.Background(), 7, "Processed")

	if len(mbox.deleted) != 1 || mbox.deleted[0] != 7 {
		t.Fatalf("expected source delete of uid 7, got %v", mbox.deleted)
	}
	if got := mbox.flagged["Processed"]; len(got) != 1 || got[0] != 7 {
		t.Fatalf("expected flag in destination folder, got %v", mbox.flagged)
	}
	if mbox.openFolder != "INBOX" {
		t.Fatalf("source folder should be reopened, current folder %s", mbox.openFolder)
	}
}

func TestFinalizeCreatesMissingFolderAndRetries(t *testing.T) {
	mbox := newFakeMailbox("INBOX")
	s := New(mbox, "INBOX", nil)

	s.Finalize(context.Background(), 3, "Errors")

	if len(mbox.createCalls) != 1 || mbox.createCalls[0] != "Errors" {
		t.Fatalf("expected one folder-create attempt, got %v", mbox.createCalls)
	}
	if mbox.copyCalls != 2 {
		t.Fatalf("expected copy retry after create, got %d calls", mbox.copyCalls)
	}
	if len(mbox.deleted) != 1 {
		t.Fatalf("expected delete after successful retry")
	}
}

func TestFinalizeDeleteFailureFlagsInSource(t *testing.T) {
	mbox := newFakeMailbox("INBOX", "Processed")
	mbox.deleteErr = errors.New("delete refused")
	s := New(mbox, "INBOX", nil)

	s.Finalize(context.Background(), 9, "Processed")

	// Message is duplicated across folders; the source copy gets the flag.
	if got := mbox.flagged["INBOX"]; len(got) != 1 || got[0] != 9 {
		t.Fatalf("expected flag in source folder after delete failure, got %v", mbox.flagged)
	}
}

func TestFinalizeCopyFailureStillFlags(t *testing.T) {
	mbox := newFakeMailbox("INBOX", "Processed")
	mbox.copyErr = errors.New("copy refused")
	s := New(mbox, "INBOX", nil)

	s.Finalize(context.Background(), 5, "Processed")

	if mbox.copyCalls != 1 {
		t.Fatalf("non-folder errors must not trigger a create+retry, got %d calls", mbox.copyCalls)
	}
	if got := mbox.flagged["INBOX"]; len(got) != 1 || got[0] != 5 {
		t.Fatalf("expected flag in source folder, got %v", mbox.flagged)
	}
}

func TestFinalizeDestOpenFailureFallsBackToSource(t *testing.T) {
	mbox := newFakeMailbox("INBOX", "Processed")
	s := New(mbox, "INBOX", nil)
	// Verification open succeeds, then the flagging open fails once.
	mbox.openErrCnt["Processed"] = 2

	s.Finalize(context.Background(), 4, "Processed")

	if got := mbox.flagged["INBOX"]; len(got) != 1 || got[0] != 4 {
		t.Fatalf("expected fallback flag in source folder, got %v", mbox.flagged)
	}
}
