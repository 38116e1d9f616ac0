// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/matchkeeper/matchkeeper/internal/logging"
)

// HandlerFunc processes one RPC request and returns the reply payload.
// peer is the requesting peer's self-reported name, empty when the
// request carried none. A returned error travels back to the requester
// as a RemoteError.
type HandlerFunc func(ctx context.Context, peer string, payload []byte) ([]byte, error)

// RemoteError is a failure reported by the responding peer, as opposed
// to a transport failure on the requesting side.
type RemoteError struct {
	Peer    string
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc %s on %s: %s", e.Method, e.Peer, e.Message)
}

// Requester issues RPC requests over the bus and matches replies to
// callers by correlation ID. One Requester serves one peer name; its
// reply topic is ReplyTopic(peer).
type Requester struct {
	bus     *Bus
	peer    string
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan *message.Message
	started bool
}

// NewRequester builds a requester for the given peer name. timeout is
// the default request deadline, applied when the caller's context has
// none.
func NewRequester(bus *Bus, peer string, timeout time.Duration) *Requester {
	return &Requester{
		bus:     bus,
		peer:    peer,
		timeout: timeout,
		pending: make(map[string]chan *message.Message),
	}
}

// Start subscribes to the reply topic and begins dispatching replies.
// It must be called before Request; the dispatcher stops when ctx is
// canceled.
func (r *Requester) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("transport: requester already started")
	}
	r.started = true
	r.mu.Unlock()

	msgs, err := r.bus.Subscribe(ctx, ReplyTopic(r.peer))
	if err != nil {
		return fmt.Errorf("subscribe to replies: %w", err)
	}

	go r.dispatch(msgs)
	return nil
}

// dispatch routes replies to waiting callers. Replies are acked
// unconditionally: a reply that arrives after its caller gave up is
// dropped, and the caller's timeout already covered the loss.
func (r *Requester) dispatch(msgs <-chan *message.Message) {
	for msg := range msgs {
		msg.Ack()

		cid := msg.Metadata.Get(MetaCorrelationID)
		if cid == "" {
			logging.Warn().
				Str("component", "transport").
				Str("message_uuid", msg.UUID).
				Msg("Reply without correlation ID dropped")
			continue
		}

		r.mu.Lock()
		ch, ok := r.pending[cid]
		r.mu.Unlock()
		if !ok {
			logging.Debug().
				Str("component", "transport").
				Str("correlation_id", cid).
				Msg("Straggler reply dropped")
			continue
		}

		select {
		case ch <- msg:
		default:
		}
	}
}

// Request sends a request to target and waits for the matching reply.
// A context without a deadline gets the requester's default timeout.
// Responder-side failures come back as *RemoteError; a missed deadline
// surfaces as the context error.
func (r *Requester) Request(ctx context.Context, target, method string, payload []byte) ([]byte, error) {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil, errors.New("transport: requester not started")
	}
	r.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cid := uuid.New().String()
	ch := make(chan *message.Message, 1)

	r.mu.Lock()
	r.pending[cid] = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, cid)
		r.mu.Unlock()
	}()

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.Metadata.Set(MetaCorrelationID, cid)
	msg.Metadata.Set(MetaReplyTo, ReplyTopic(r.peer))
	msg.Metadata.Set(MetaMethod, method)
	msg.Metadata.Set(MetaPeer, r.peer)

	start := time.Now()
	if err := r.bus.Publish(ctx, RequestTopic(target), msg); err != nil {
		recordRPC(method, outcomeError)
		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case <-ctx.Done():
		recordRPC(method, outcomeTimeout)
		return nil, fmt.Errorf("rpc %s to %s: %w", method, target, ctx.Err())
	case reply := <-ch:
		observeRPC(method, time.Since(start))
		if errMsg := reply.Metadata.Get(MetaError); errMsg != "" {
			recordRPC(method, outcomeRemoteError)
			return nil, &RemoteError{Peer: target, Method: method, Message: errMsg}
		}
		recordRPC(method, outcomeOK)
		return reply.Payload, nil
	}
}

// Responder answers RPC requests for one peer name. Methods are
// registered with Handle and served once Attach wires the responder
// into a router.
type Responder struct {
	bus  *Bus
	peer string

	mu      sync.RWMutex
	methods map[string]HandlerFunc
}

// NewResponder builds a responder for the given peer name.
func NewResponder(bus *Bus, peer string) *Responder {
	return &Responder{
		bus:     bus,
		peer:    peer,
		methods: make(map[string]HandlerFunc),
	}
}

// Handle registers fn for the given method, replacing any previous
// registration.
func (r *Responder) Handle(method string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[method] = fn
}

// Attach registers the responder on the router. Requests arrive on
// RequestTopic(peer) and go through the router's retry and poison
// middleware like any other consumer.
func (r *Responder) Attach(router *Router) {
	router.AddConsumerHandler(
		"rpc-"+r.peer,
		RequestTopic(r.peer),
		r.bus.Subscriber(),
		r.serve,
	)
}

// serve answers one request. Requests that cannot be answered at all
// (no correlation ID, no reply topic) are dropped by acking: retrying
// them cannot help. A failed reply publish is returned as an error so
// the router redelivers and the answer is retried.
func (r *Responder) serve(msg *message.Message) error {
	cid := msg.Metadata.Get(MetaCorrelationID)
	replyTo := msg.Metadata.Get(MetaReplyTo)
	method := msg.Metadata.Get(MetaMethod)

	if cid == "" || replyTo == "" {
		logging.Warn().
			Str("component", "transport").
			Str("peer", r.peer).
			Str("method", method).
			Str("message_uuid", msg.UUID).
			Msg("Unanswerable request dropped")
		return nil
	}

	r.mu.RLock()
	fn, ok := r.methods[method]
	r.mu.RUnlock()

	reply := message.NewMessage(uuid.New().String(), nil)
	reply.Metadata.Set(MetaCorrelationID, cid)

	if !ok {
		reply.Metadata.Set(MetaError, fmt.Sprintf("unknown method %q", method))
	} else if payload, err := fn(msg.Context(), msg.Metadata.Get(MetaPeer), msg.Payload); err != nil {
		reply.Metadata.Set(MetaError, err.Error())
	} else {
		reply.Payload = payload
	}

	if err := r.bus.Publish(msg.Context(), replyTo, reply); err != nil {
		return fmt.Errorf("send reply for %s: %w", method, err)
	}
	return nil
}
