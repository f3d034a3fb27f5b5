package connector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

type imapClient interface {
	Login(username, password string) commandWaiter
	Logout() commandWaiter
	Close() error
	Select(mailbox string, options *imap.SelectOptions) selectWaiter
	Create(mailbox string, options *imap.CreateOptions) commandWaiter
	List(ref, pattern string, options *imap.ListOptions) listWaiter
	UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter
	Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter
	Store(numSet imap.NumSet, store *imap.StoreFlags, options *imap.StoreOptions) fetchWaiter
	Copy(numSet imap.NumSet, mailbox string) copyWaiter
	UIDExpunge(uids imap.UIDSet) expungeWaiter
}

type commandWaiter interface{ Wait() error }
type selectWaiter interface {
	Wait() (*imap.SelectData, error)
}
type searchWaiter interface {
	Wait() (*imap.SearchData, error)
}
type fetchWaiter interface {
	Collect() ([]*imapclient.FetchMessageBuffer, error)
	Close() error
}
type copyWaiter interface {
	Wait() (*imap.CopyData, error)
}
type listWaiter interface {
	Collect() ([]*imap.ListData, error)
}
type expungeWaiter interface{ Close() error }

// Settings carries everything needed to open the mailbox session.
type Settings struct {
	Host     string
	Port     int
	UseTLS   bool
	Username string
	Password string
}

// IMAPMailbox implements Mailbox over IMAP/IMAPS.
type IMAPMailbox struct {
	settings    Settings
	dialTimeout time.Duration
	logger      *log.Logger
	newClient   func(Settings) (imapClient, error)
	client      imapClient
	selected    string
}

// IMAPOption customizes mailbox behavior.
type IMAPOption func(*IMAPMailbox)

// NewIMAPMailbox returns an IMAP-backed mailbox session.
func NewIMAPMailbox(settings Settings, opts ...IMAPOption) *IMAPMailbox {
	m := &IMAPMailbox{
		settings:    settings,
		dialTimeout: 10 * time.Second,
		logger:      log.Default(),
	}
	m.newClient = m.defaultClientFactory
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.newClient == nil {
		m.newClient = m.defaultClientFactory
	}
	return m
}

// WithIMAPLogger overrides the logger used for connector diagnostics.
func WithIMAPLogger(logger *log.Logger) IMAPOption {
	return func(m *IMAPMailbox) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithIMAPDialTimeout overrides the socket dial timeout.
func WithIMAPDialTimeout(timeout time.Duration) IMAPOption {
	return func(m *IMAPMailbox) {
		if timeout > 0 {
			m.dialTimeout = timeout
		}
	}
}

func withIMAPClientFactory(factory func(Settings) (imapClient, error)) IMAPOption {
	return func(m *IMAPMailbox) {
		m.newClient = factory
	}
}

// Connect dials the server and authenticates.
func (m *IMAPMailbox) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.client != nil {
		return nil
	}
	if m.settings.Username == "" {
		return errors.New("imap mailbox missing username")
	}
	if m.settings.Password == "" {
		return errors.New("imap mailbox missing password")
	}
	client, err := m.newClient(m.settings)
	if err != nil {
		return fmt.Errorf("imap connect: %w", err)
	}
	if err := client.Login(m.settings.Username, m.settings.Password).Wait(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			m.logf("imap close after failed login: %v", closeErr)
		}
		return fmt.Errorf("imap auth: %w", err)
	}
	m.client = client
	return nil
}

// ListFolders returns the mailbox names visible to the account.
func (m *IMAPMailbox) ListFolders(ctx context.Context) ([]string, error) {
	if err := m.ready(ctx); err != nil {
		return nil, err
	}
	listed, err := m.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap list: %w", err)
	}
	folders := make([]string, 0, len(listed))
	for _, data := range listed {
		folders = append(folders, data.Mailbox)
	}
	return folders, nil
}

// OpenFolder selects the named folder for subsequent operations.
func (m *IMAPMailbox) OpenFolder(ctx context.Context, name string) error {
	if err := m.ready(ctx); err != nil {
		return err
	}
	if name == "" {
		name = "INBOX"
	}
	if _, err := m.client.Select(name, nil).Wait(); err != nil {
		return fmt.Errorf("imap select %s: %w", name, err)
	}
	m.selected = name
	return nil
}

// FetchUnseen returns all unread messages in the currently open folder.
func (m *IMAPMailbox) FetchUnseen(ctx context.Context) ([]RawMessage, error) {
	if err := m.ready(ctx); err != nil {
		return nil, err
	}
	criteria := &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}
	searchData, err := m.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	fetchOpts := &imap.FetchOptions{
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{{}},
	}
	buffers, err := m.client.Fetch(imap.UIDSetNum(uids...), fetchOpts).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	messages := make([]RawMessage, 0, len(buffers))
	for _, buf := range buffers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body := buf.FindBodySection(&imap.FetchItemBodySection{})
		if body == nil {
			continue
		}
		received := buf.InternalDate
		if received.IsZero() {
			received = time.Now().UTC()
		}
		messages = append(messages, RawMessage{
			UID:        uint32(buf.UID),
			Raw:        append([]byte(nil), body...),
			SizeBytes:  int64(len(body)),
			ReceivedAt: received,
		})
	}
	return messages, nil
}

// CopyMessage copies a message from the open folder into destFolder.
func (m *IMAPMailbox) CopyMessage(ctx context.Context, uid uint32, destFolder string) error {
	if err := m.ready(ctx); err != nil {
		return err
	}
	if _, err := m.client.Copy(imap.UIDSetNum(imap.UID(uid)), destFolder).Wait(); err != nil {
		return fmt.Errorf("imap copy %d to %s: %w", uid, destFolder, err)
	}
	return nil
}

// DeleteMessage flags a message deleted and expunges it from the open folder.
func (m *IMAPMailbox) DeleteMessage(ctx context.Context, uid uint32) error {
	if err := m.ready(ctx); err != nil {
		return err
	}
	uidSet := imap.UIDSetNum(imap.UID(uid))
	store := &imap.StoreFlags{Op: imap.StoreFlagsAdd, Flags: []imap.Flag{imap.FlagDeleted}}
	if err := m.client.Store(uidSet, store, nil).Close(); err != nil {
		return fmt.Errorf("imap store delete %d: %w", uid, err)
	}
	if err := m.client.UIDExpunge(uidSet).Close(); err != nil {
		return fmt.Errorf("imap expunge %d: %w", uid, err)
	}
	return nil
}

// AddFlag adds a flag to a message in the open folder.
func (m *IMAPMailbox) AddFlag(ctx context.Context, uid uint32, flag string) error {
	if err := m.ready(ctx); err != nil {
		return err
	}
	store := &imap.StoreFlags{Op: imap.StoreFlagsAdd, Flags: []imap.Flag{imap.Flag(flag)}}
	if err := m.client.Store(imap.UIDSetNum(imap.UID(uid)), store, nil).Close(); err != nil {
		return fmt.Errorf("imap store flag %s on %d: %w", flag, uid, err)
	}
	return nil
}

// CreateFolder creates a folder on the server.
func (m *IMAPMailbox) CreateFolder(ctx context.Context, name string) error {
	if err := m.ready(ctx); err != nil {
		return err
	}
	if err := m.client.Create(name, nil).Wait(); err != nil {
		return fmt.Errorf("imap create %s: %w", name, err)
	}
	return nil
}

// Disconnect logs out and closes the connection. Safe to call repeatedly.
func (m *IMAPMailbox) Disconnect() error {
	if m.client == nil {
		return nil
	}
	client := m.client
	m.client = nil
	m.selected = ""
	if err := client.Logout().Wait(); err != nil {
		m.logf("imap logout: %v", err)
	}
	if err := client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("imap close: %w", err)
	}
	return nil
}

func (m *IMAPMailbox) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.client == nil {
		return errors.New("imap mailbox not connected")
	}
	return nil
}

func (m *IMAPMailbox) defaultClientFactory(settings Settings) (imapClient, error) {
	if settings.Host == "" {
		return nil, errors.New("imap mailbox missing host")
	}
	port := settings.Port
	if port == 0 {
		if settings.UseTLS {
			port = 993
		} else {
			port = 143
		}
	}
	opts := &imapclient.Options{Dialer: &net.Dialer{Timeout: m.dialTimeout}}
	addr := fmt.Sprintf("%s:%d", settings.Host, port)
	var client *imapclient.Client
	var err error
	if settings.UseTLS {
		client, err = imapclient.DialTLS(addr, opts)
	} else {
		client, err = imapclient.DialInsecure(addr, opts)
	}
	if err != nil {
		return nil, err
	}
	return &imapClientWrapper{Client: client}, nil
}

type imapClientWrapper struct{ *imapclient.Client }

func (w *imapClientWrapper) Login(username, password string) commandWaiter {
	return w.Client.Login(username, password)
}
func (w *imapClientWrapper) Logout() commandWaiter { return w.Client.Logout() }
func (w *imapClientWrapper) Select(mailbox string, options *imap.SelectOptions) selectWaiter {
	return w.Client.Select(mailbox, options)
}
func (w *imapClientWrapper) Create(mailbox string, options *imap.CreateOptions) commandWaiter {
	return w.Client.Create(mailbox, options)
}
func (w *imapClientWrapper) List(ref, pattern string, options *imap.ListOptions) listWaiter {
	return w.Client.List(ref, pattern, options)
}
func (w *imapClientWrapper) UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter {
	return w.Client.UIDSearch(criteria, options)
}
func (w *imapClientWrapper) Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter {
	return w.Client.Fetch(numSet, options)
}
func (w *imapClientWrapper) Store(numSet imap.NumSet, store *imap.StoreFlags, options *imap.StoreOptions) fetchWaiter {
	return w.Client.Store(numSet, store, options)
}
func (w *imapClientWrapper) Copy(numSet imap.NumSet, mailbox string) copyWaiter {
	return w.Client.Copy(numSet, mailbox)
}
func (w *imapClientWrapper) UIDExpunge(uids imap.UIDSet) expungeWaiter {
	return w.Client.UIDExpunge(uids)
}

func (m *IMAPMailbox) logf(format string, args ...any) {
	if m == nil || m.logger == nil {
		return
	}
	m.logger.Printf(format, args...)
}
