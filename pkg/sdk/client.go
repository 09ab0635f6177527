// Package sdk provides the client-side library for the ward ledger.
// It supports both remote connections via TCP/TLS and a local embedded ledger.
package sdk

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/celerix-dev/wardledger/internal/vault"
	"github.com/celerix-dev/wardledger/pkg/ledger"
	"github.com/celerix-dev/wardledger/pkg/schema"
)

const (
	maxAttempts = 3
	opTimeout   = 30 * time.Second
)

// ErrProtocol is returned when the daemon sends a reply the client cannot read.
var ErrProtocol = errors.New("protocol error")

// Client is a remote client for a ward ledger daemon. It implements Ledger.
// When it holds a signing key it logs in on every (re)connect, so writes act as that key's address.
type Client struct {
	addr     string
	signer   *ecdsa.PrivateKey
	insecure bool
	log      *slog.Logger

	mu     sync.Mutex // Protects concurrent access to the connection
	conn   net.Conn
	reader *bufio.Reader
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithSigner makes the client log in with key.
func WithSigner(key *ecdsa.PrivateKey) ClientOption {
	return func(c *Client) { c.signer = key }
}

// WithoutTLS dials plain TCP.
func WithoutTLS() ClientOption {
	return func(c *Client) { c.insecure = true }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// Connect establishes a TLS-encrypted connection to a ward ledger daemon.
// If WARDLEDGER_DISABLE_TLS is "true", or WithoutTLS is given, it uses plain TCP.
func Connect(addr string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		addr:     addr,
		insecure: os.Getenv("WARDLEDGER_DISABLE_TLS") == "true",
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.reconnect(); err != nil {
		return nil, err
	}
	return c, nil
}

// Address is the identity writes are made as; the zero address when no signer is set.
func (c *Client) Address() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return vault.Address(c.signer)
}

// reconnect dials and, with a signer, logs in. Caller holds c.mu.
func (c *Client) reconnect() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 60 * time.Second,
	}

	var conn net.Conn
	var err error
	if c.insecure {
		conn, err = dialer.Dial("tcp", c.addr)
	} else {
		config := &tls.Config{
			InsecureSkipVerify: true, // The daemon serves a self-signed certificate.
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", c.addr, config)
	}
	if err != nil {
		return err
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)

	if c.signer != nil {
		if err := c.login(); err != nil {
			c.conn.Close()
			c.conn = nil
			return fmt.Errorf("login: %w", err)
		}
	}
	return nil
}

// login runs the CHALLENGE/AUTH handshake on the current connection. Caller holds c.mu.
func (c *Client) login() error {
	resp, err := c.roundTrip("CHALLENGE")
	if err != nil {
		return err
	}
	var challenge struct {
		Nonce   string `json:"nonce"`
		Message string `json:"message"`
	}
	if err := decode(resp, &challenge); err != nil {
		return err
	}

	sig, err := vault.Sign(challenge.Message, c.signer)
	if err != nil {
		return err
	}
	_, err = c.roundTrip(fmt.Sprintf("AUTH %s %s", vault.Address(c.signer).Hex(), vault.EncodeSignature(sig)))
	return err
}

// roundTrip writes one command and reads one reply. Caller holds c.mu.
func (c *Client) roundTrip(cmd string) (string, error) {
	c.conn.SetDeadline(time.Now().Add(opTimeout))
	if _, err := fmt.Fprint(c.conn, cmd+"\n"); err != nil {
		return "", &ioError{err: err, sent: false}
	}
	resp, err := c.reader.ReadString('\n')
	if err != nil {
		return "", &ioError{err: err, sent: true}
	}
	return parseReply(strings.TrimSpace(resp))
}

type ioError struct {
	err  error
	sent bool
}

func (e *ioError) Error() string { return e.err.Error() }
func (e *ioError) Unwrap() error { return e.err }

// sendAndReceive runs cmd with reconnects. A request that may have reached the daemon is
// only repeated when idempotent, so a lost reply never duplicates a write.
func (c *Client) sendAndReceive(ctx context.Context, cmd string, idempotent bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	for i := 0; i < maxAttempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		if c.conn == nil {
			if reconnectErr := c.reconnect(); reconnectErr != nil {
				err = fmt.Errorf("reconnect failed: %w", reconnectErr)
				time.Sleep(time.Duration(i*100) * time.Millisecond)
				continue
			}
		}

		var resp string
		resp, err = c.roundTrip(cmd)
		var ioErr *ioError
		if !errors.As(err, &ioErr) {
			// Either success or an application error from the daemon.
			return resp, err
		}

		c.log.Warn("ledger request failed, reconnecting", "attempt", i+1, "error", err)
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		if ioErr.sent && !idempotent {
			return "", fmt.Errorf("connection lost after sending %q; the outcome is unknown: %w", verbOf(cmd), err)
		}

		// Exponential backoff
		time.Sleep(time.Duration((i+1)*200) * time.Millisecond)
	}

	return "", fmt.Errorf("failed after %d attempts. last error: %w", maxAttempts, err)
}

func (c *Client) Get(ctx context.Context, id uint64) (schema.Record, error) {
	var rec schema.Record
	resp, err := c.sendAndReceive(ctx, fmt.Sprintf("GET %d", id), true)
	if err != nil {
		return rec, err
	}
	err = decode(resp, &rec)
	return rec, err
}

func (c *Client) Count(ctx context.Context) (uint64, error) {
	var n uint64
	resp, err := c.sendAndReceive(ctx, "COUNT", true)
	if err != nil {
		return 0, err
	}
	err = decode(resp, &n)
	return n, err
}

func (c *Client) List(ctx context.Context, pageSize, pageNumber uint64) (schema.Page, error) {
	var page schema.Page
	resp, err := c.sendAndReceive(ctx, fmt.Sprintf("LIST %d %d", pageSize, pageNumber), true)
	if err != nil {
		return page, err
	}
	err = decode(resp, &page)
	return page, err
}

func (c *Client) Events(ctx context.Context, after uint64, limit int) ([]schema.Event, error) {
	var events []schema.Event
	resp, err := c.sendAndReceive(ctx, "EVENTS "+strconv.FormatUint(after, 10)+" "+strconv.Itoa(limit), true)
	if err != nil {
		return nil, err
	}
	err = decode(resp, &events)
	return events, err
}

func (c *Client) Propose(ctx context.Context, proposalURI string) (uint64, error) {
	if strings.ContainsAny(proposalURI, "\r\n") {
		return 0, errors.New("proposal URI must be a single line")
	}
	var id uint64
	resp, err := c.sendAndReceive(ctx, "PROPOSE "+strings.TrimSpace(proposalURI), false)
	if err != nil {
		return 0, err
	}
	err = decode(resp, &id)
	return id, err
}

func (c *Client) UpdateStatus(ctx context.Context, id uint64, status schema.Status, reportURI string) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %s", status)
	}
	cmd := fmt.Sprintf("STATUS %d %s", id, status)
	if strings.ContainsAny(reportURI, "\r\n") {
		return errors.New("report URI must be a single line")
	}
	if report := strings.TrimSpace(reportURI); report != "" {
		cmd += " " + report
	}
	_, err := c.sendAndReceive(ctx, cmd, false)
	return err
}

func (c *Client) Transfer(ctx context.Context, id uint64, to common.Address) error {
	_, err := c.sendAndReceive(ctx, fmt.Sprintf("TRANSFER %d %s", id, to.Hex()), false)
	return err
}

// Admin returns the daemon's current administrator.
func (c *Client) Admin(ctx context.Context) (common.Address, error) {
	resp, err := c.sendAndReceive(ctx, "ADMIN", true)
	if err != nil {
		return common.Address{}, err
	}
	var hex string
	if err := decode(resp, &hex); err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(hex) {
		return common.Address{}, fmt.Errorf("%w: %q is not an address", ErrProtocol, hex)
	}
	return common.HexToAddress(hex), nil
}

// TransferAdmin hands the administrator role to next. The client must be logged in as the administrator.
func (c *Client) TransferAdmin(ctx context.Context, next common.Address) error {
	_, err := c.sendAndReceive(ctx, "ADMIN "+next.Hex(), false)
	return err
}

// Ping checks the daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.sendAndReceive(ctx, "PING", true)
	return err
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	fmt.Fprintln(c.conn, "QUIT")
	err := c.conn.Close()
	c.conn = nil
	return err
}

// parseReply turns a reply line into its payload or a decoded ledger error.
func parseReply(line string) (string, error) {
	switch {
	case line == "OK" || line == "PONG":
		return "", nil
	case strings.HasPrefix(line, "OK "):
		return strings.TrimPrefix(line, "OK "), nil
	case strings.HasPrefix(line, "ERR "):
		code, msg, _ := strings.Cut(strings.TrimPrefix(line, "ERR "), " ")
		return "", ledger.FromCode(code, msg)
	default:
		return "", fmt.Errorf("%w: unexpected reply %q", ErrProtocol, line)
	}
}

func decode(payload string, v any) error {
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return nil
}

func verbOf(cmd string) string {
	verb, _, _ := strings.Cut(cmd, " ")
	return verb
}
