package client

import (
	"net/http"
	"sync"
	"time"

	"chatsync/internal/models"
)

const (
	// MaxRetries bounds how often a pending send is re-emitted before it is
	// abandoned as a terminal failure.
	MaxRetries = 3

	// markReadWindow is how many trailing messages are marked read when the
	// view returns to the bottom.
	markReadWindow = 10

	defaultTypingTTL    = 3 * time.Second
	defaultHistoryLimit = 30
)

// defaultRetryDelays is the backoff table for failed sends. The last entry
// repeats for any further attempt.
var defaultRetryDelays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Directory is the narrow interface the sync core uses to notify the
// contact directory. The core never reaches into directory internals.
type Directory interface {
	IncrementUnread(contactID string)
	UpdateLastMessage(contactID, text string, timestamp int64)
	SetOnlineStatus(contactID string, online bool)
	SetUnreadTotals(counts models.UnreadCounts)
}

// noopDirectory stands in when no directory is wired up.
type noopDirectory struct{}

func (noopDirectory) IncrementUnread(string)              {}
func (noopDirectory) UpdateLastMessage(string, string, int64) {}
func (noopDirectory) SetOnlineStatus(string, bool)        {}
func (noopDirectory) SetUnreadTotals(models.UnreadCounts) {}

// Options configures a Session. Zero values select production defaults.
type Options struct {
	// RelayURL is the websocket endpoint, e.g. ws://localhost:3000/ws.
	RelayURL string

	// APIURL is the HTTP base for history and contact calls.
	APIURL string

	// CurrentUser is the display name used for outbound messages when the
	// auth token carries no name claim.
	CurrentUser string

	Directory Directory
	Filter    *ExclusionFilter

	// OnMessage, when set, is called after an inbound message is appended to
	// the log. Called from the transport's read goroutine, after the session
	// lock is released.
	OnMessage func(m models.Message)

	// Dial opens the transport; tests inject a fake here.
	Dial Dialer

	HTTPClient *http.Client

	MaxRetries   int
	RetryDelays  []time.Duration
	TypingTTL    time.Duration
	HistoryLimit int
}

type pendingSend struct {
	message *models.Message
	retries int
}

type typingEntry struct {
	info models.TypingInfo
	gen  uint64
}

// Session owns the realtime state of one chat connection: the ordered
// message log, the pending-send map and the typing map. All mutation goes
// through its methods; the transport's read loop delivers frames one at a
// time, so handlers never run concurrently for the same connection.
type Session struct {
	mu   sync.Mutex
	opts Options

	transport  Transport
	connected  bool
	connecting bool
	token      string
	userID     string
	author     string

	messages []*models.Message
	pending  map[string]*pendingSend
	typing   map[string]typingEntry
	typingGen uint64

	conversationID string
	hasMore        bool
	loadingMore    bool

	scrolledToBottom bool
	hasUnread        bool

	directory Directory
	filter    *ExclusionFilter
}

// New constructs a Session. The session starts disconnected; nothing is
// shared globally.
func New(opts Options) *Session {
	if opts.Directory == nil {
		opts.Directory = noopDirectory{}
	}
	if opts.Filter == nil {
		opts.Filter = DefaultExclusionFilter()
	}
	if opts.Dial == nil {
		opts.Dial = DialWebsocket
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = MaxRetries
	}
	if len(opts.RetryDelays) == 0 {
		opts.RetryDelays = defaultRetryDelays
	}
	if opts.TypingTTL == 0 {
		opts.TypingTTL = defaultTypingTTL
	}
	if opts.HistoryLimit == 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}

	return &Session{
		opts:             opts,
		author:           opts.CurrentUser,
		pending:          make(map[string]*pendingSend),
		typing:           make(map[string]typingEntry),
		hasMore:          true,
		scrolledToBottom: true,
		directory:        opts.Directory,
		filter:           opts.Filter,
	}
}

// Connected reports whether the transport session is up.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Messages returns a snapshot of the log in arrival order.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = *m
	}
	return out
}

// PendingCount returns the number of in-flight sends.
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// HasUnread reports whether messages arrived while the view was scrolled up.
func (s *Session) HasUnread() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasUnread
}

// HasMore reports whether older history pages remain.
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Conversation returns the active conversation id, empty for the broadcast view.
func (s *Session) Conversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}
