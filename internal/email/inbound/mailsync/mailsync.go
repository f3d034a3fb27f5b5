// Package mailsync keeps remote mailbox state consistent with local
// processing results: after each message is handled the source copy is moved
// to a success or error folder and marked read. Every failure here is an
// operational warning, never a pipeline failure.
package mailsync

import (
	"context"
	"io"
	"log"

	"github.com/deskpilot-io/deskpilot/internal/email/inbound/connector"
)

// moveState tracks the explicit steps of a non-atomic move. Some servers
// implement native move unreliably, so copy and delete are separate steps
// with separate failure handling.
type moveState int

const (
	moveStarted moveState = iota
	moveCopied
	moveDeleted
	moveVerified
)

// Synchronizer performs post-processing mailbox transitions against one open
// session.
type Synchronizer struct {
	mailbox      connector.Mailbox
	sourceFolder string
	logger       *log.Logger
}

// New builds a Synchronizer for a session whose sourceFolder is currently
// open.
func New(mailbox connector.Mailbox, sourceFolder string, logger *log.Logger) *Synchronizer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Synchronizer{mailbox: mailbox, sourceFolder: sourceFolder, logger: logger}
}

// Finalize moves the message to destFolder and marks it read. The move is
// copy-then-delete with one folder-create retry; the read flag is set
// regardless of the move outcome, in whichever folder currently holds the
// message.
func (s *Synchronizer) Finalize(ctx context.Context, uid uint32, destFolder string) {
	state := s.move(ctx, uid, destFolder)
	s.markRead(ctx, uid, destFolder, state)
}

func (s *Synchronizer) move(ctx context.Context, uid uint32, destFolder string) moveState {
	state := moveStarted

	err := s.mailbox.CopyMessage(ctx, uid, destFolder)
	if err != nil && connector.IsFolderNotFound(err) {
		if createErr := s.mailbox.CreateFolder(ctx, destFolder); createErr != nil {
			s.logger.Printf("mailsync: failed to create folder %s: %v", destFolder, createErr)
		}
		err = s.mailbox.CopyMessage(ctx, uid, destFolder)
	}
	if err != nil {
		s.logger.Printf("mailsync: failed to copy message %d to %s: %v", uid, destFolder, err)
		return state
	}
	state = moveCopied

	if err := s.mailbox.DeleteMessage(ctx, uid); err != nil {
		// The message now exists in both folders. Duplicated, not lost.
		s.logger.Printf("mailsync: copied message %d to %s but failed to delete source: %v", uid, destFolder, err)
		return state
	}
	state = moveDeleted

	if err := s.mailbox.OpenFolder(ctx, destFolder); err != nil {
		s.logger.Printf("mailsync: failed to verify message %d in %s: %v", uid, destFolder, err)
		return state
	}
	return moveVerified
}

// markRead opens the folder the message ended up in and sets the read flag.
// After a completed move the message lives in destFolder under a new UID
// assigned by the server; flagging by source UID is best effort.
func (s *Synchronizer) markRead(ctx context.Context, uid uint32, destFolder string, state moveState) {
	folder := s.sourceFolder
	if state >= moveDeleted {
		folder = destFolder
	}
	if err := s.mailbox.OpenFolder(ctx, folder); err != nil {
		s.logger.Printf("mailsync: failed to open %s to flag message %d: %v", folder, uid, err)
		if folder != s.sourceFolder {
			folder = s.sourceFolder
			if err := s.mailbox.OpenFolder(ctx, folder); err != nil {
				s.logger.Printf("mailsync: failed to open source folder %s: %v", folder, err)
				return
			}
		} else {
			return
		}
	}
	if err := s.mailbox.AddFlag(ctx, uid, connector.FlagSeen); err != nil {
		s.logger.Printf("mailsync: failed to mark message %d read in %s: %v", uid, folder, err)
	}
	// Reopen the source folder so the next message's operations target it.
	if folder != s.sourceFolder {
		if err := s.mailbox.OpenFolder(ctx, s.sourceFolder); err != nil {
			s.logger.Printf("mailsync: failed to reopen source folder %s: %v", s.sourceFolder, err)
		}
	}
}
