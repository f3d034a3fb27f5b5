package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	stdmail "net/mail"
	"net/textproto"
	"regexp"
	"strings"
	"time"

	gomessage "github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
	htmlcharset "golang.org/x/net/html/charset"
)

func init() {
	gomessage.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return htmlcharset.NewReaderLabel(charset, input)
	}
}

// UnknownMessageID is the sentinel used when a message cannot be parsed at
// all; such messages are routed straight to an ERROR audit entry.
const UnknownMessageID = "unknown"

// MIME part dispositions.
const (
	DispositionAttachment = "attachment"
	DispositionInline     = "inline"
)

const (
	defaultBodyLimit       = 512 * 1024
	defaultAttachmentLimit = 50 * 1024 * 1024
)

// Header is a case-insensitive header map. Lookups for absent keys return the
// empty string.
type Header map[string]string

// Get returns the header value for the given key, ignoring case.
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[textproto.CanonicalMIMEHeaderKey(key)]
}

func (h Header) set(key, value string) {
	h[textproto.CanonicalMIMEHeaderKey(key)] = value
}

// Attachment is a decoded MIME part. Disposition distinguishes true
// attachments from inline-referenced content such as cid: images.
type Attachment struct {
	Filename    string
	MimeType    string
	SizeBytes   int64
	Disposition string
	ContentID   string
	Content     []byte
}

// IsInline reports whether the part is inline-referenced rather than a true
// attachment.
func (a Attachment) IsInline() bool {
	return a.Disposition == DispositionInline
}

// ParsedEmail is the immutable structured form of one raw message.
type ParsedEmail struct {
	MessageID   string
	From        string
	To          string
	CC          string
	BCC         string
	Subject     string
	TextBody    string
	HTMLBody    string
	Headers     Header
	InReplyTo   string
	References  []string
	ThreadID    string
	Attachments []Attachment
	ReceivedAt  time.Time
}

// SenderAddress returns the bare address of the first From entry, or "" when
// it cannot be parsed.
func (e *ParsedEmail) SenderAddress() string {
	from := strings.TrimSpace(e.From)
	if from == "" {
		return ""
	}
	if addrs, err := stdmail.ParseAddressList(from); err == nil && len(addrs) > 0 {
		return strings.TrimSpace(addrs[0].Address)
	}
	if addr, err := stdmail.ParseAddress(from); err == nil {
		return strings.TrimSpace(addr.Address)
	}
	if strings.Contains(from, "@") && !strings.ContainsAny(from, " <>") {
		return from
	}
	return ""
}

// SenderDomain returns the lowercased domain of the sender address.
func (e *ParsedEmail) SenderDomain() string {
	addr := e.SenderAddress()
	if at := strings.LastIndex(addr, "@"); at >= 0 && at < len(addr)-1 {
		return strings.ToLower(addr[at+1:])
	}
	return ""
}

// TrueAttachments returns only parts with an explicit attachment disposition.
func (e *ParsedEmail) TrueAttachments() []Attachment {
	var out []Attachment
	for _, a := range e.Attachments {
		if !a.IsInline() {
			out = append(out, a)
		}
	}
	return out
}

// InlineParts returns inline-referenced parts (cid: images and friends).
func (e *ParsedEmail) InlineParts() []Attachment {
	var out []Attachment
	for _, a := range e.Attachments {
		if a.IsInline() {
			out = append(out, a)
		}
	}
	return out
}

// Parser turns raw RFC822 bytes into ParsedEmail values.
type Parser struct {
	bodyLimit       int64
	attachmentLimit int64
	decoder         *mime.WordDecoder
	logger          *log.Logger
}

// Option customizes a Parser.
type Option func(*Parser)

// New builds a parser with default limits.
func New(opts ...Option) *Parser {
	p := &Parser{
		bodyLimit:       defaultBodyLimit,
		attachmentLimit: defaultAttachmentLimit,
		decoder:         &mime.WordDecoder{},
		logger:          log.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// WithLogger overrides the parser's diagnostic logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithBodyLimit constrains how many body bytes are retained per part.
func WithBodyLimit(limit int64) Option {
	return func(p *Parser) {
		if limit > 0 {
			p.bodyLimit = limit
		}
	}
}

// WithAttachmentLimit constrains how many bytes are buffered per attachment.
func WithAttachmentLimit(limit int64) Option {
	return func(p *Parser) {
		if limit > 0 {
			p.attachmentLimit = limit
		}
	}
}

// Parse decodes a raw message. A structured MIME walk is attempted first; if
// that fails a minimal net/mail pass recovers headers and a plain body. Only
// when both fail is an error returned.
func (p *Parser) Parse(raw []byte, receivedAt time.Time) (*ParsedEmail, error) {
	if len(raw) == 0 {
		return nil, errors.New("parser: empty message")
	}
	email, err := p.parseStructured(raw)
	if err != nil {
		p.logf("parser: structured parse failed: %v", err)
		email, err = p.parseLegacy(raw)
		if err != nil {
			return nil, fmt.Errorf("parser: %w", err)
		}
	}
	email.ReceivedAt = receivedAt
	return email, nil
}

func (p *Parser) parseStructured(raw []byte) (*ParsedEmail, error) {
	reader, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	header := &reader.Header
	email := &ParsedEmail{
		Headers: p.collectHeaders(header),
	}
	email.Subject = p.subject(header)
	email.From = p.addressList(header, "From")
	email.To = p.addressList(header, "To")
	email.CC = p.addressList(header, "Cc")
	email.BCC = p.addressList(header, "Bcc")
	email.MessageID = p.messageID(header)
	email.InReplyTo = firstMessageID(header.Get("In-Reply-To"))
	email.References = uniqueMessageIDs(header.Get("References"), header.Get("In-Reply-To"))
	email.ThreadID = p.threadID(email.Headers)

	p.readParts(reader, email)
	return email, nil
}

func (p *Parser) readParts(reader *gomail.Reader, email *ParsedEmail) {
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.logf("parser: read part failed: %v", err)
			break
		}
		switch header := part.Header.(type) {
		case *gomail.InlineHeader:
			p.readInlinePart(part, header, email)
		case *gomail.AttachmentHeader:
			if att := p.readAttachment(part, header, DispositionAttachment); att != nil {
				email.Attachments = append(email.Attachments, *att)
			}
		default:
			// Other part kinds carry nothing we store.
		}
	}
}

func (p *Parser) readInlinePart(part *gomail.Part, header *gomail.InlineHeader, email *ParsedEmail) {
	mimeType, _, err := header.ContentType()
	if err != nil {
		mimeType = "text/plain"
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))

	switch {
	case strings.HasPrefix(mimeType, "text/plain"):
		if email.TextBody == "" {
			email.TextBody = p.readString(part.Body)
		}
	case strings.HasPrefix(mimeType, "text/html"):
		if email.HTMLBody == "" {
			email.HTMLBody = p.readString(part.Body)
		}
	default:
		// Inline non-text content (cid: images etc.) is recorded with inline
		// disposition and excluded from the true-attachment list.
		if att := p.readAttachmentFromInline(part, header, mimeType); att != nil {
			email.Attachments = append(email.Attachments, *att)
		}
	}
}

func (p *Parser) readAttachmentFromInline(part *gomail.Part, header *gomail.InlineHeader, mimeType string) *Attachment {
	data, err := io.ReadAll(io.LimitReader(part.Body, p.attachmentLimit))
	if err != nil {
		p.logf("parser: read inline part failed: %v", err)
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	attHeader := gomail.AttachmentHeader(*header)
	filename, _ := attHeader.Filename()
	return &Attachment{
		Filename:    strings.TrimSpace(filename),
		MimeType:    mimeType,
		SizeBytes:   int64(len(data)),
		Disposition: DispositionInline,
		ContentID:   normalizeMessageID(header.Get("Content-Id")),
		Content:     data,
	}
}

func (p *Parser) readAttachment(part *gomail.Part, header *gomail.AttachmentHeader, disposition string) *Attachment {
	filename, err := header.Filename()
	if err != nil || strings.TrimSpace(filename) == "" {
		filename = fmt.Sprintf("attachment-%d.bin", time.Now().UnixNano())
	}
	mimeType, _, ctErr := header.ContentType()
	if ctErr != nil || strings.TrimSpace(mimeType) == "" {
		mimeType = "application/octet-stream"
	}
	data, readErr := io.ReadAll(io.LimitReader(part.Body, p.attachmentLimit))
	if readErr != nil {
		p.logf("parser: read attachment body failed: %v", readErr)
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	return &Attachment{
		Filename:    filename,
		MimeType:    strings.ToLower(strings.TrimSpace(mimeType)),
		SizeBytes:   int64(len(data)),
		Disposition: disposition,
		ContentID:   normalizeMessageID(header.Get("Content-Id")),
		Content:     data,
	}
}

func (p *Parser) parseLegacy(raw []byte) (*ParsedEmail, error) {
	reader, err := stdmail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	headers := Header{}
	for key, values := range reader.Header {
		if len(values) > 0 {
			headers.set(key, p.decodeHeader(values[0]))
		}
	}
	email := &ParsedEmail{
		Headers:    headers,
		Subject:    p.decodeHeader(reader.Header.Get("Subject")),
		From:       p.decodeHeader(reader.Header.Get("From")),
		To:         p.decodeHeader(reader.Header.Get("To")),
		CC:         p.decodeHeader(reader.Header.Get("Cc")),
		BCC:        p.decodeHeader(reader.Header.Get("Bcc")),
		MessageID:  normalizeMessageID(reader.Header.Get("Message-Id")),
		InReplyTo:  firstMessageID(reader.Header.Get("In-Reply-To")),
		References: uniqueMessageIDs(reader.Header.Get("References"), reader.Header.Get("In-Reply-To")),
	}
	email.ThreadID = p.threadID(headers)
	body, readErr := io.ReadAll(io.LimitReader(reader.Body, p.bodyLimit))
	if readErr != nil {
		return nil, readErr
	}
	email.TextBody = string(body)
	return email, nil
}

func (p *Parser) collectHeaders(header *gomail.Header) Header {
	out := Header{}
	fields := header.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		out.set(fields.Key(), value)
	}
	return out
}

func (p *Parser) subject(header *gomail.Header) string {
	if subject, err := header.Subject(); err == nil {
		return subject
	}
	return p.decodeHeader(header.Get("Subject"))
}

func (p *Parser) addressList(header *gomail.Header, key string) string {
	list, err := header.AddressList(key)
	if err != nil || len(list) == 0 {
		return p.decodeHeader(header.Get(key))
	}
	rendered := make([]string, 0, len(list))
	for _, addr := range list {
		rendered = append(rendered, addr.String())
	}
	return strings.Join(rendered, ", ")
}

func (p *Parser) messageID(header *gomail.Header) string {
	if id, err := header.MessageID(); err == nil && id != "" {
		return id
	}
	return normalizeMessageID(header.Get("Message-Id"))
}

// threadID reads a thread-identifying header when one exists; otherwise the
// classifier derives threading from In-Reply-To/References.
func (p *Parser) threadID(headers Header) string {
	for _, key := range []string{"X-Thread-Id", "Thread-Id", "Thread-Index"} {
		if v := strings.TrimSpace(headers.Get(key)); v != "" {
			return normalizeMessageID(v)
		}
	}
	return ""
}

func (p *Parser) readString(src io.Reader) string {
	if src == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(src, p.bodyLimit))
	if err != nil {
		p.logf("parser: read body failed: %v", err)
		return ""
	}
	return string(data)
}

func (p *Parser) decodeHeader(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || p.decoder == nil {
		return value
	}
	decoded, err := p.decoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

func (p *Parser) logf(format string, args ...any) {
	if p == nil || p.logger == nil {
		return
	}
	p.logger.Printf(format, args...)
}

var messageIDPattern = regexp.MustCompile(`<([^<>]+)>`)

func uniqueMessageIDs(values ...string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, raw := range values {
		for _, candidate := range parseMessageIDs(raw) {
			if _, ok := seen[candidate]; ok {
				continue
			}
			seen[candidate] = struct{}{}
			ids = append(ids, candidate)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

func parseMessageIDs(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	matches := messageIDPattern.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		if id := normalizeMessageID(raw); id != "" {
			return []string{id}
		}
		return nil
	}
	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		if id := normalizeMessageID(match[1]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func firstMessageID(raw string) string {
	ids := parseMessageIDs(raw)
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

func normalizeMessageID(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, "<>")
	value = strings.Trim(value, "\"")
	return strings.TrimSpace(value)
}
