// Package client implements the stateful Nexus protocol client: login
// hand-off, websocket lifecycle, reply correlation, payload encryption,
// presence tracking and reconciliation of optimistically-sent messages.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nexuschat/internal/api"
	"nexuschat/internal/correlate"
	"nexuschat/internal/events"
	"nexuschat/internal/keyring"
	"nexuschat/internal/ledger"
	"nexuschat/internal/logging"
	"nexuschat/internal/protocol"
	"nexuschat/internal/roster"
	"nexuschat/internal/store"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// State is the connection lifecycle phase. Transitions are serialized; there
// is exactly one State per Client.
type State int32

const (
	LoggedOut State = iota
	Authenticating
	Connecting
	Established
	Closing
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case Authenticating:
		return "authenticating"
	case Connecting:
		return "connecting"
	case Established:
		return "established"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

const (
	webSocketEndpoint = "/api/wss?application=" + protocol.Application

	// storedUserKey is the blob key the remembered login token lives under.
	storedUserKey = "User"
)

// storedUser is the persisted shape of the remembered session.
type storedUser struct {
	Token string `json:"token"`
	User  struct {
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	} `json:"user"`
}

// Options configures a Client.
type Options struct {
	// ServerAddress is host[:port] without a scheme.
	ServerAddress string
	// UseTLS selects https/wss over http/ws.
	UseTLS bool
	// Publisher receives the client's named events. Required.
	Publisher events.Publisher
	// Blobs remembers the login token across restarts. Optional.
	Blobs store.Store
	// ReplyTimeout bounds correlated waits such as public key fetches.
	ReplyTimeout time.Duration
	// AckTimeout bounds how long a sent message waits for its server ack
	// before the pending entry is dropped.
	AckTimeout time.Duration
}

// SendReceipt reports the transmit-time outcome of a send. Acknowledgement by
// the server is a separate, later completion signalled via the ledger and an
// update event.
type SendReceipt struct {
	Serial    string
	PeerID    int64
	Encrypted bool
}

// connHandle wraps one websocket connection attempt. Release happens exactly
// once no matter which transition triggers it.
type connHandle struct {
	ws         *websocket.Conn
	closeOnce  sync.Once
	deliberate atomic.Bool
}

func (h *connHandle) close() {
	h.closeOnce.Do(func() {
		h.ws.Close()
	})
}

// Client is a single-connection Nexus protocol client. All state mutation
// funnels through it; the roster, ledger and correlation table are data
// stores it owns exclusively.
type Client struct {
	httpPrefix string
	wsPrefix   string

	api       *api.Client
	publisher events.Publisher
	blobs     store.Store

	replyTimeout time.Duration
	ackTimeout   time.Duration

	mu    sync.Mutex
	state State
	conn  *connHandle
	token string

	ring   *keyring.Ring
	table  *correlate.Table
	roster *roster.Cache
	ledger *ledger.Ledger

	writeMu sync.Mutex
	limiter *rate.Limiter

	keyPublished  atomic.Bool
	keyPublishing atomic.Bool
}

// New creates a client. It performs no I/O until Login or TryAutoLogin.
func New(opts Options) *Client {
	httpScheme, wsScheme := "http", "ws"
	if opts.UseTLS {
		httpScheme, wsScheme = "https", "wss"
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Discard{}
	}
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = time.Second
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = 10 * time.Second
	}

	httpPrefix := fmt.Sprintf("%s://%s", httpScheme, opts.ServerAddress)
	return &Client{
		httpPrefix:   httpPrefix,
		wsPrefix:     fmt.Sprintf("%s://%s", wsScheme, opts.ServerAddress),
		api:          api.NewClient(httpPrefix),
		publisher:    opts.Publisher,
		blobs:        opts.Blobs,
		replyTimeout: opts.ReplyTimeout,
		ackTimeout:   opts.AckTimeout,
		state:        LoggedOut,
		ring:         keyring.New(),
		table:        correlate.NewTable(),
		roster:       roster.NewCache(),
		ledger:       ledger.New(),
		limiter:      rate.NewLimiter(rate.Limit(20), 40),
	}
}

// State returns the current lifecycle phase.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Roster exposes the presence cache for read-only consumers.
func (c *Client) Roster() *roster.Cache { return c.roster }

// Ledger exposes the message history for read-only consumers.
func (c *Client) Ledger() *ledger.Ledger { return c.ledger }

// Login performs the HTTP login and, on success, opens the websocket. Any
// failure returns the client to LoggedOut and emits a login error event; no
// socket is left open.
func (c *Client) Login(ctx context.Context, account, password string) error {
	c.mu.Lock()
	if c.state != LoggedOut {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: state is %s", ErrNotLoggedOut, state)
	}
	c.state = Authenticating
	c.mu.Unlock()

	resp, err := c.api.Login(ctx, account, password)
	if err != nil {
		return c.failLogin(fmt.Errorf("%w: %v", ErrTransport, err))
	}
	if resp.Status != protocol.StatusOK {
		return c.failLogin(fmt.Errorf("%w: server rejected login (status %d): %s",
			ErrAuthentication, resp.Status, resp.Message))
	}
	if resp.Application != protocol.Application {
		return c.failLogin(fmt.Errorf("%w: wrong application %q", ErrAuthentication, resp.Application))
	}
	if resp.Token == "" {
		return c.failLogin(fmt.Errorf("%w: no token in login response: %s", ErrAuthentication, resp.Message))
	}

	c.mu.Lock()
	c.token = resp.Token
	c.state = Connecting
	c.mu.Unlock()
	c.api.UpdateToken(resp.Token)
	c.rememberToken(resp.Token)

	return c.connect(ctx)
}

// TryAutoLogin adopts a remembered token from the blob store, validates it
// with a profile fetch, and connects.
func (c *Client) TryAutoLogin(ctx context.Context) error {
	if c.blobs == nil {
		return fmt.Errorf("%w: no blob store configured", ErrAuthentication)
	}

	c.mu.Lock()
	if c.state != LoggedOut {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: state is %s", ErrNotLoggedOut, state)
	}
	c.state = Authenticating
	c.mu.Unlock()

	blob, ok, err := c.blobs.Get(storedUserKey)
	if err != nil || !ok {
		return c.failLogin(fmt.Errorf("%w: no remembered session", ErrAuthentication))
	}
	var remembered storedUser
	if err := json.Unmarshal([]byte(blob), &remembered); err != nil || remembered.Token == "" {
		return c.failLogin(fmt.Errorf("%w: no valid token found", ErrAuthentication))
	}

	c.mu.Lock()
	c.token = remembered.Token
	c.mu.Unlock()
	c.api.UpdateToken(remembered.Token)

	if _, err := c.api.CurrentUserInfo(ctx); err != nil {
		// The remembered token is dead; forget it.
		if rmErr := c.blobs.Remove(storedUserKey); rmErr != nil {
			logging.Warn("Failed to remove stale session", map[string]string{"error": rmErr.Error()})
		}
		return c.failLogin(fmt.Errorf("%w: remembered token rejected: %v", ErrAuthentication, err))
	}

	c.mu.Lock()
	c.state = Connecting
	c.mu.Unlock()
	return c.connect(ctx)
}

func (c *Client) failLogin(err error) error {
	c.mu.Lock()
	c.state = LoggedOut
	c.token = ""
	c.mu.Unlock()
	c.api.UpdateToken("")
	logging.Error("Login failed", map[string]string{"error": err.Error()})
	c.publisher.Publish(events.Login, events.Err(err))
	return err
}

func (c *Client) rememberToken(token string) {
	if c.blobs == nil {
		return
	}
	var remembered storedUser
	remembered.Token = token
	blob, err := json.Marshal(remembered)
	if err != nil {
		return
	}
	// Fire-and-forget: persistence failure never affects the session.
	if err := c.blobs.Set(storedUserKey, string(blob)); err != nil {
		logging.Warn("Failed to remember session", map[string]string{"error": err.Error()})
	}
}

// connect opens the websocket with the login token as the authorization
// credential, fetches the current user's profile, and starts the read loop.
func (c *Client) connect(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == "" {
		return c.failLogin(fmt.Errorf("%w: log in before attempting to connect", ErrAuthentication))
	}

	header := http.Header{}
	header.Set("Authorization", token)
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsPrefix+webSocketEndpoint, header)
	if err != nil {
		return c.failLogin(fmt.Errorf("%w: failed to connect to server: %v", ErrTransport, err))
	}
	handle := &connHandle{ws: ws}

	// Profile fetch failure is a connection failure: close the socket and
	// fall back to LoggedOut.
	self, err := c.api.CurrentUserInfo(ctx)
	if err != nil {
		handle.close()
		return c.failLogin(fmt.Errorf("%w: failed to fetch current user info: %v", ErrTransport, err))
	}
	c.roster.SetSelf(*self)

	c.mu.Lock()
	c.conn = handle
	c.state = Established
	c.mu.Unlock()

	logging.Info("Connection established", map[string]string{"user": self.Name})
	c.publisher.Publish(events.Login, events.Ok(nil))
	c.publisher.Publish(events.Update, events.Ok(map[string]interface{}{"curUserInfo": self}))

	notices := make(chan *protocol.Response, 64)
	go c.dispatchLoop(notices)
	go c.readLoop(handle, notices)
	go c.maybePublishKeyPair()

	return nil
}

// Logout deliberately tears the connection down, cancels every outstanding
// correlated wait, and clears all per-session state.
func (c *Client) Logout() {
	c.mu.Lock()
	if c.state == LoggedOut {
		c.mu.Unlock()
		return
	}
	c.state = Closing
	handle := c.conn
	c.conn = nil
	c.token = ""
	c.mu.Unlock()

	if handle != nil {
		handle.deliberate.Store(true)
		handle.close()
	}
	c.resetSession()

	c.mu.Lock()
	c.state = LoggedOut
	c.mu.Unlock()

	c.api.UpdateToken("")
	c.publisher.Publish(events.Logout, events.Ok(nil))
}

// resetSession cancels waits and clears all volatile per-connection state.
// The ring is reset in place: swapping the pointer would race with a
// concurrent Send holding the old one.
func (c *Client) resetSession() {
	c.table.Clear()
	c.roster.Clear()
	c.ledger.Clear()
	c.ring.Reset()
	c.keyPublished.Store(false)
}

// readLoop owns the inbound side of one connection attempt. Serial-bearing
// frames resolve the correlation table directly; notices are handed to the
// dispatch loop so a handler awaiting a correlated reply never starves the
// reader.
func (c *Client) readLoop(handle *connHandle, notices chan<- *protocol.Response) {
	defer close(notices)
	defer handle.close()

	for {
		_, data, err := handle.ws.ReadMessage()
		if err != nil {
			c.finishConnection(handle, err)
			return
		}

		resp, err := protocol.UnmarshalResponse(data)
		if err != nil {
			logging.Warn("Dropping malformed frame", map[string]string{"error": err.Error()})
			continue
		}

		go c.maybePublishKeyPair()

		if resp.Serial != "" {
			if !c.table.Put(resp.Serial, resp) {
				logging.Warn("Duplicate reply for consumed serial", map[string]string{"serial": resp.Serial})
			}
			continue
		}

		select {
		case notices <- resp:
		default:
			logging.Warn("Notice queue full, dropping frame")
		}
	}
}

// finishConnection handles both exit paths of a connection: deliberate close
// (logout already reset state) and abnormal termination.
func (c *Client) finishConnection(handle *connHandle, cause error) {
	if handle.deliberate.Load() {
		c.publisher.Publish(events.Close, events.Ok(nil))
		return
	}

	c.mu.Lock()
	if c.conn != handle {
		// A newer connection owns the client; stale reader exits quietly.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.token = ""
	c.state = LoggedOut
	c.mu.Unlock()

	c.resetSession()
	c.api.UpdateToken("")

	logging.Error("Connection terminated abnormally", map[string]string{"error": cause.Error()})
	c.publisher.Publish(events.Close, events.Err(fmt.Errorf("%w: %v", ErrTransport, cause)))
}

// dispatchLoop processes server notices one at a time, preserving the
// single-writer discipline over roster and ledger state.
func (c *Client) dispatchLoop(notices <-chan *protocol.Response) {
	for resp := range notices {
		c.handleNotice(resp)
	}
}

func (c *Client) handleNotice(resp *protocol.Response) {
	notice, err := protocol.DecodeNotice(resp.Data)
	if err != nil {
		// Unknown or malformed notices are logged and ignored; the
		// connection stays alive.
		logging.Warn("Ignoring server notice", map[string]string{"error": err.Error()})
		return
	}

	switch n := notice.(type) {
	case protocol.AliveUserNotice:
		c.roster.ReplaceAlive(n.AliveList)
		c.publishRoster()
	case protocol.UserOnlineNotice:
		if !c.roster.SetOnline(n.UserID) {
			logging.Warn("User added repeatedly", map[string]int64{"userid": n.UserID})
		}
		c.publishRoster()
	case protocol.UserOfflineNotice:
		c.roster.SetOffline(n.UserID)
		c.publishRoster()
	case protocol.MessageDistributionNotice:
		c.handleDistribution(n)
	case protocol.PublicKeyNotice:
		if n.PublicKey != "" {
			c.roster.StorePublicKey(n.Target, n.Version, n.PublicKey)
		}
	case protocol.RefreshAckNotice:
		// Publication acks normally arrive as correlated replies.
	}
}

// publishRoster emits the raw id set, then the resolved directory info, as
// two independent update events. Consumers tolerate the gap between them.
func (c *Client) publishRoster() {
	ids := c.roster.AliveIDs()
	c.publisher.Publish(events.Update, events.Ok(map[string]interface{}{"aliveUserIdList": ids}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	infos, err := c.api.UsersInfo(ctx, ids)
	if err != nil {
		logging.Error("Directory lookup failed", map[string]string{"error": err.Error()})
		c.publisher.Publish(events.Update, events.Err(fmt.Errorf("directory lookup failed: %v", err)))
		return
	}
	c.roster.StoreInfos(infos)
	c.publisher.Publish(events.Update, events.Ok(map[string]interface{}{"friendsList": infos}))
}

// handleDistribution decrypts (when needed) and files an arriving message. A
// payload that fails to decrypt is reported and never reaches the ledger.
func (c *Client) handleDistribution(n protocol.MessageDistributionNotice) {
	var payload protocol.MessagePayload

	switch data := n.Data.(type) {
	case string:
		// String data is ciphertext by contract.
		plaintext, err := c.decryptFrom(n.From, data)
		if err != nil {
			logging.Error("Failed to decrypt message", map[string]string{"error": err.Error()})
			c.publisher.Publish(events.Update, events.Err(fmt.Errorf("%w: %v", ErrCrypto, err)))
			return
		}
		if err := json.Unmarshal(plaintext, &payload); err != nil {
			logging.Error("Decrypted payload is not a message", map[string]string{"error": err.Error()})
			c.publisher.Publish(events.Update, events.Err(fmt.Errorf("%w: malformed decrypted payload", ErrCrypto)))
			return
		}
	default:
		resp := &protocol.Response{Data: n.Data}
		if err := resp.ParseData(&payload); err != nil {
			logging.Warn("Malformed message payload", map[string]string{"error": err.Error()})
			return
		}
	}

	switch {
	case n.From == n.To:
		// Loopback: filed under the self sentinel.
		c.ledger.RecordDelivered(n.From, n.To, ledger.Sent, payload)
	case n.From == protocol.SelfPeerID:
		// Server echo of our own outbound.
		c.ledger.RecordDelivered(n.From, n.To, ledger.Sent, payload)
	default:
		c.ledger.RecordDelivered(n.From, n.To, ledger.Received, payload)
	}

	c.publisher.Publish(events.Arrive, events.Ok(map[string]interface{}{
		"from":    n.From,
		"to":      n.To,
		"message": payload,
	}))
	c.publisher.Publish(events.Update, events.Ok(map[string]interface{}{
		"messageHistory": c.ledger.Snapshot(),
	}))
}

// decryptFrom resolves the sender's published key and opens the ciphertext.
func (c *Client) decryptFrom(from int64, ciphertext string) ([]byte, error) {
	if !c.ring.HasSecretKey() {
		return nil, fmt.Errorf("cannot decrypt data: secret key not available")
	}

	publicKey, err := c.GetPublicKeyByID(context.Background(), from)
	if err != nil || publicKey == "" {
		// Fall back to the soft cache before giving up.
		if rec, ok := c.roster.PublicKey(from); ok && rec.PublicKey != "" {
			publicKey = rec.PublicKey
		} else {
			return nil, fmt.Errorf("cannot decrypt data: sender public key not available")
		}
	}

	shared, err := c.ring.SharedSecret(publicKey)
	if err != nil {
		return nil, err
	}
	return keyring.DecryptPayload(shared, ciphertext)
}

// GetPublicKeyByID requests a peer's published public key with a bounded
// wait. Timeout or socket unavailability is a recoverable error; callers
// treat it as "no key available".
func (c *Client) GetPublicKeyByID(ctx context.Context, userID int64) (string, error) {
	req := protocol.GetPublicKeyRequest{Type: protocol.KindGetPublicKey, Target: userID}
	resp, err := c.sendAwait(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to get public key of user %d: %w", userID, err)
	}

	notice, err := protocol.DecodeNotice(resp.Data)
	if err != nil {
		return "", fmt.Errorf("failed to get public key of user %d: %w", userID, err)
	}
	pk, ok := notice.(protocol.PublicKeyNotice)
	if !ok {
		return "", fmt.Errorf("failed to get public key of user %d: unexpected reply kind %s",
			userID, notice.NoticeKind())
	}

	if pk.PublicKey != "" {
		c.roster.StorePublicKey(userID, pk.Version, pk.PublicKey)
	}
	return pk.PublicKey, nil
}

// Send transmits a message to a peer. The payload is encrypted when the
// peer's public key resolves; otherwise it goes out as structured plaintext
// and the receipt says so. Acknowledgement is a second completion point: the
// pending entry moves into the ledger only when the server echoes the serial.
func (c *Client) Send(ctx context.Context, to int64, text string) (*SendReceipt, error) {
	c.mu.Lock()
	if c.state != Established {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: state is %s", ErrNotEstablished, state)
	}
	c.mu.Unlock()

	payload := protocol.NewTextPayload(text)

	// Fetch-on-miss: the soft cache answers first, the server on a miss.
	var publicKey string
	if rec, ok := c.roster.PublicKey(to); ok {
		publicKey = rec.PublicKey
	} else if pk, err := c.GetPublicKeyByID(ctx, to); err != nil {
		logging.Warn("Failed to get public key, sending unencrypted",
			map[string]string{"error": err.Error()})
	} else {
		publicKey = pk
	}

	version := keyring.VersionNone
	var data interface{} = payload
	encrypted := false
	if publicKey != "" && c.ring.HasSecretKey() {
		version = keyring.VersionHash(publicKey)
		if ct, encErr := c.encryptFor(publicKey, payload); encErr == nil {
			data = ct
			encrypted = true
		} else {
			version = keyring.VersionNone
			logging.Warn("Failed to encrypt payload, sending unencrypted",
				map[string]string{"error": encErr.Error()})
		}
	}
	if !encrypted {
		c.publisher.Publish(events.Update, events.Ok(map[string]interface{}{
			"warning": fmt.Sprintf("message to %d sent unencrypted", to),
		}))
	}

	serial := uuid.New().String()
	req := protocol.MessageSendRequest{
		Type:             protocol.KindMessageSend,
		PublicKeyVersion: version,
		Exchange:         protocol.Exchange{To: to},
		Data:             data,
	}

	pendingPeer := to
	if self, ok := c.roster.Self(); ok && self.ID == to {
		pendingPeer = protocol.SelfPeerID
	}
	c.ledger.BeginPending(pendingPeer, serial, payload)

	if err := c.write(ctx, protocol.NewRequest(serial, req)); err != nil {
		c.ledger.DropPending(pendingPeer, serial)
		return nil, err
	}

	go c.awaitAck(pendingPeer, serial)

	return &SendReceipt{Serial: serial, PeerID: pendingPeer, Encrypted: encrypted}, nil
}

func (c *Client) encryptFor(publicKey string, payload protocol.MessagePayload) (string, error) {
	shared, err := c.ring.SharedSecret(publicKey)
	if err != nil {
		return "", err
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return keyring.EncryptPayload(shared, plaintext)
}

// awaitAck moves a pending entry into the ledger when the server echoes the
// serial, or drops it on timeout/cancellation. Either way the entry leaves
// the pending map exactly once.
func (c *Client) awaitAck(peerID int64, serial string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.ackTimeout)
	defer cancel()

	if _, err := c.table.Await(ctx, serial); err != nil {
		if c.ledger.DropPending(peerID, serial) {
			logging.Warn("Message not acknowledged", map[string]string{
				"serial": serial, "error": err.Error(),
			})
			c.publisher.Publish(events.Update, events.Err(
				fmt.Errorf("message %s to %d not acknowledged: %v", serial, peerID, err)))
		}
		return
	}

	if c.ledger.ConfirmPending(peerID, serial) {
		c.publisher.Publish(events.Update, events.Ok(map[string]interface{}{
			"messageHistory": c.ledger.Snapshot(),
		}))
	}
}

// maybePublishKeyPair opportunistically (re)publishes a fresh keypair until
// one publication is confirmed for this session.
func (c *Client) maybePublishKeyPair() {
	if c.keyPublished.Load() || !c.keyPublishing.CompareAndSwap(false, true) {
		return
	}
	defer c.keyPublishing.Store(false)
	if c.keyPublished.Load() {
		return
	}

	keyPair, err := c.ring.CreateKeyPair()
	if err != nil {
		logging.Error("Failed to generate keypair", map[string]string{"error": err.Error()})
		return
	}

	req := protocol.RefreshPublicKeyRequest{
		Type:             protocol.KindRefreshPublicKey,
		PublicKeyVersion: keyPair.VersionHash,
		NewPublicKey:     keyPair.PublicKey,
		SignPub:          keyPair.SignPublic,
		Sign:             keyPair.Signature,
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.replyTimeout)
	defer cancel()
	if _, err := c.sendAwait(ctx, req); err != nil {
		logging.Warn("Failed to refresh public key", map[string]string{"error": err.Error()})
		return
	}
	c.keyPublished.Store(true)
	logging.Info("Public key published", map[string]string{"version": keyPair.VersionHash})
}

// KeyPublished reports whether this session's keypair publication has been
// confirmed.
func (c *Client) KeyPublished() bool {
	return c.keyPublished.Load()
}

// sendAwait sends a correlated request and waits for its reply within the
// client's reply timeout (or ctx, whichever is sooner). The serial is always
// consumed: matched, timed out, or cancelled on teardown.
func (c *Client) sendAwait(ctx context.Context, data interface{}) (*protocol.Response, error) {
	serial := uuid.New().String()
	req := protocol.NewRequest(serial, data)

	if err := c.write(ctx, req); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.replyTimeout)
	defer cancel()
	value, err := c.table.Await(waitCtx, serial)
	if err != nil {
		return nil, err
	}

	resp, ok := value.(*protocol.Response)
	if !ok {
		return nil, fmt.Errorf("unexpected correlation value for serial %s", serial)
	}
	return resp, nil
}

// write marshals and transmits one request frame. Writes are serialized; the
// limiter keeps a chatty caller from flooding the socket.
func (c *Client) write(ctx context.Context, req *protocol.Request) error {
	data, err := req.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	c.mu.Lock()
	handle := c.conn
	c.mu.Unlock()
	if handle == nil {
		return fmt.Errorf("%w: websocket connection not available", ErrTransport)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := handle.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: failed to send frame: %v", ErrTransport, err)
	}
	return nil
}
