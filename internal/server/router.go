// Package server exposes the ledger over a line-oriented TCP protocol.
//
// Every request is one line, "VERB args...". Replies are one line: "OK [json]", "PONG", or
// "ERR <CODE> <message>". A connection starts anonymous; CHALLENGE followed by
// AUTH <address> <signature> binds it to a proven address for the remaining writes.
package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/celerix-dev/wardledger/internal/auth"
	"github.com/celerix-dev/wardledger/internal/vault"
	"github.com/celerix-dev/wardledger/pkg/ledger"
	"github.com/celerix-dev/wardledger/pkg/schema"
	"github.com/celerix-dev/wardledger/pkg/sdk"
)

const (
	// DefaultMaxConns bounds concurrently served connections.
	DefaultMaxConns = 100

	idleTimeout    = 30 * time.Second
	sessionTimeout = 5 * time.Minute
)

type Router struct {
	backend        sdk.Backend
	challenges     *auth.Challenges
	log            *slog.Logger
	cert           *tls.Certificate
	maxConns       int
	sessionTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	done     chan struct{}
	handlers sync.WaitGroup
}

// NewRouter serves backend. Login nonces are issued from and redeemed against challenges.
func NewRouter(backend sdk.Backend, challenges *auth.Challenges) *Router {
	return &Router{
		backend:        backend,
		challenges:     challenges,
		log:            slog.New(slog.DiscardHandler),
		maxConns:       DefaultMaxConns,
		sessionTimeout: sessionTimeout,
		conns:          make(map[net.Conn]struct{}),
		done:           make(chan struct{}),
	}
}

// SetCertificate sets the TLS certificate for the router
func (r *Router) SetCertificate(cert tls.Certificate) {
	r.cert = &cert
}

// SetLogger sets the structured logger.
func (r *Router) SetLogger(log *slog.Logger) {
	r.log = log.With("component", "tcp")
}

// SetMaxConns bounds concurrently served connections. Values below 1 are ignored.
func (r *Router) SetMaxConns(n int) {
	if n > 0 {
		r.maxConns = n
	}
}

// Listen starts the TCP server and blocks until Stop is called.
func (r *Router) Listen(port string) error {
	var listener net.Listener
	var err error

	if r.cert != nil {
		config := &tls.Config{Certificates: []tls.Certificate{*r.cert}, MinVersion: tls.VersionTLS12}
		listener, err = tls.Listen("tcp", ":"+port, config)
	} else {
		listener, err = net.Listen("tcp", ":"+port)
	}
	if err != nil {
		return err
	}
	return r.Serve(listener)
}

// Serve accepts connections on listener until Stop is called.
// At most maxConns connections are open at once; further clients wait in the accept backlog.
func (r *Router) Serve(listener net.Listener) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		listener.Close()
		return net.ErrClosed
	}
	r.listener = listener
	r.mu.Unlock()
	defer listener.Close()

	r.log.Info("listening", "addr", listener.Addr().String(), "tls", r.cert != nil)
	semaphore := make(chan struct{}, r.maxConns)

	for {
		select {
		case semaphore <- struct{}{}:
		case <-r.done:
			return nil
		}

		conn, err := listener.Accept()
		if err != nil {
			<-semaphore
			if r.stopped() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}

		if !r.track(conn) {
			<-semaphore
			conn.Close()
			return nil
		}
		go func(c net.Conn) {
			defer func() {
				r.untrack(c)
				c.Close()
				<-semaphore
			}()
			r.HandleConnection(c)
		}(conn)
	}
}

// track registers an accepted connection; it reports false once the router is stopped.
func (r *Router) track(conn net.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.conns[conn] = struct{}{}
	r.handlers.Add(1)
	return true
}

func (r *Router) untrack(conn net.Conn) {
	r.mu.Lock()
	delete(r.conns, conn)
	r.mu.Unlock()
	r.handlers.Done()
}

// Stop closes the listener and every open connection, then waits for the handlers to return.
// A command already being executed completes before its handler sees the closed connection.
func (r *Router) Stop() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.handlers.Wait()
		return nil
	}
	r.closed = true
	close(r.done)
	var err error
	if r.listener != nil {
		err = r.listener.Close()
	}
	for conn := range r.conns {
		conn.Close()
	}
	r.mu.Unlock()

	r.handlers.Wait()
	return err
}

func (r *Router) stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// session is the per-connection login state.
type session struct {
	caller common.Address
	nonce  string
}

// HandleConnection serves one client until it quits, idles out, outlives the session
// timeout or disconnects.
func (r *Router) HandleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)
	sess := &session{}
	ctx := context.Background()
	sessionEnd := time.Now().Add(r.sessionTimeout)

	for {
		now := time.Now()
		if !now.Before(sessionEnd) {
			r.log.Debug("session expired", "remote", conn.RemoteAddr().String())
			return
		}
		conn.SetDeadline(minTime(now.Add(idleTimeout), sessionEnd))

		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.log.Debug("connection closed", "remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "QUIT") {
			return
		}

		reply := r.dispatch(ctx, sess, line)
		if _, err := fmt.Fprintln(conn, reply); err != nil {
			return
		}
	}
}

// dispatch executes one request line and returns the reply line.
func (r *Router) dispatch(ctx context.Context, sess *session, line string) string {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch strings.ToUpper(verb) {
	case "PING":
		return "PONG"

	case "CHALLENGE":
		sess.nonce = r.challenges.Issue()
		return ok(map[string]string{"nonce": sess.nonce, "message": auth.LoginMessage(sess.nonce)})

	case "AUTH":
		if len(args) != 2 || !common.IsHexAddress(args[0]) {
			return badRequest("usage: AUTH <address> <signature>")
		}
		if sess.nonce == "" {
			return fail(fmt.Errorf("%w: no challenge issued", ledger.ErrUnauthorized))
		}
		sig, err := vault.DecodeSignature(args[1])
		if err != nil {
			return badRequest(err.Error())
		}
		nonce := sess.nonce
		sess.nonce = ""
		signer, err := r.challenges.Redeem(nonce, sig)
		if err != nil {
			return fail(err)
		}
		if claimed := common.HexToAddress(args[0]); signer != claimed {
			return fail(fmt.Errorf("%w: signature does not match %s", ledger.ErrUnauthorized, claimed.Hex()))
		}
		sess.caller = signer
		r.log.Info("session authenticated", "caller", signer.Hex())
		return ok(map[string]string{"address": signer.Hex()})

	case "PROPOSE":
		// The URI is opaque; an empty one reaches the ledger and is rejected there.
		id, err := r.backend.Propose(ctx, sess.caller, rest)
		if err != nil {
			return fail(err)
		}
		return ok(id)

	case "STATUS":
		// Like PROPOSE, the report is the opaque rest of the line and may contain spaces.
		idArg, tail, _ := strings.Cut(rest, " ")
		statusArg, report, _ := strings.Cut(strings.TrimSpace(tail), " ")
		if idArg == "" || statusArg == "" {
			return badRequest("usage: STATUS <id> <status> [report]")
		}
		id, err := parseUint(idArg)
		if err != nil {
			return badRequest(err.Error())
		}
		status, err := schema.ParseStatus(statusArg)
		if err != nil {
			return badRequest(err.Error())
		}
		report = strings.TrimSpace(report)
		if err := r.backend.UpdateStatus(ctx, sess.caller, id, status, report); err != nil {
			return fail(err)
		}
		return "OK"

	case "GET":
		if len(args) != 1 {
			return badRequest("usage: GET <id>")
		}
		id, err := parseUint(args[0])
		if err != nil {
			return badRequest(err.Error())
		}
		rec, err := r.backend.Get(ctx, id)
		if err != nil {
			return fail(err)
		}
		return ok(rec)

	case "COUNT":
		n, err := r.backend.Count(ctx)
		if err != nil {
			return fail(err)
		}
		return ok(n)

	case "LIST":
		if len(args) != 2 {
			return badRequest("usage: LIST <size> <page>")
		}
		size, err := parseUint(args[0])
		if err != nil {
			return badRequest(err.Error())
		}
		page, err := parseUint(args[1])
		if err != nil {
			return badRequest(err.Error())
		}
		p, err := r.backend.List(ctx, size, page)
		if err != nil {
			return fail(err)
		}
		return ok(p)

	case "EVENTS":
		if len(args) < 1 || len(args) > 2 {
			return badRequest("usage: EVENTS <after> [limit]")
		}
		after, err := parseUint(args[0])
		if err != nil {
			return badRequest(err.Error())
		}
		limit := 0
		if len(args) == 2 {
			if limit, err = strconv.Atoi(args[1]); err != nil {
				return badRequest("limit must be an integer")
			}
		}
		events, err := r.backend.Events(ctx, after, limit)
		if err != nil {
			return fail(err)
		}
		return ok(events)

	case "TRANSFER":
		if len(args) != 2 || !common.IsHexAddress(args[1]) {
			return badRequest("usage: TRANSFER <id> <address>")
		}
		id, err := parseUint(args[0])
		if err != nil {
			return badRequest(err.Error())
		}
		if err := r.backend.Transfer(ctx, sess.caller, id, common.HexToAddress(args[1])); err != nil {
			return fail(err)
		}
		return "OK"

	case "ADMIN":
		if len(args) == 0 {
			admin, err := r.backend.Admin(ctx)
			if err != nil {
				return fail(err)
			}
			return ok(admin.Hex())
		}
		if len(args) != 1 || !common.IsHexAddress(args[0]) {
			return badRequest("usage: ADMIN [address]")
		}
		if err := r.backend.TransferAdmin(ctx, sess.caller, common.HexToAddress(args[0])); err != nil {
			return fail(err)
		}
		return "OK"

	default:
		return badRequest(fmt.Sprintf("unknown command %q", verb))
	}
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func parseUint(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not an unsigned integer", s)
	}
	return n, nil
}

func ok(v any) string {
	res, err := json.Marshal(v)
	if err != nil {
		return "ERR " + ledger.CodeInternal + " encode reply"
	}
	return "OK " + string(res)
}

func fail(err error) string {
	return "ERR " + ledger.Code(err) + " " + oneLine(err.Error())
}

func badRequest(msg string) string {
	return "ERR " + ledger.CodeBadRequest + " " + oneLine(msg)
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}
