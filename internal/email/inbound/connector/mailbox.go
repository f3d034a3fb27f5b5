package connector

import (
	"context"
	"strings"
	"time"
)

// FlagSeen marks a message as read on the remote mailbox.
const FlagSeen = "\\Seen"

// RawMessage is a message fetched from the remote mailbox. It lives only for
// the duration of one pipeline pass; the UID is only meaningful against the
// folder it was fetched from.
type RawMessage struct {
	UID        uint32
	Raw        []byte
	SizeBytes  int64
	ReceivedAt time.Time
}

// Mailbox is a stateful session against a remote mailbox. Every operation may
// fail transiently; callers must not assume copy+delete is atomic: "move" is
// copy-then-delete-then-verify at the call site.
type Mailbox interface {
	Connect(ctx context.Context) error
	ListFolders(ctx context.Context) ([]string, error)
	OpenFolder(ctx context.Context, name string) error
	FetchUnseen(ctx context.Context) ([]RawMessage, error)
	CopyMessage(ctx context.Context, uid uint32, destFolder string) error
	DeleteMessage(ctx context.Context, uid uint32) error
	AddFlag(ctx context.Context, uid uint32, flag string) error
	CreateFolder(ctx context.Context, name string) error
	Disconnect() error
}

// IsFolderNotFound reports whether err looks like a missing-mailbox response.
// Servers phrase this inconsistently, so this is a substring check over the
// known variants.
func IsFolderNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"trycreate",
		"nonexistent",
		"no such mailbox",
		"does not exist",
		"mailbox not found",
		"unknown mailbox",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
