// Package model holds the TUI state fed by the daemon: the conversation
// list, the live thread of the open conversation and its composer.
package model

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/matheus3301/crewchat/internal/composer"
	"github.com/matheus3301/crewchat/internal/feed"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/presence"
	"github.com/matheus3301/crewchat/internal/rpc"
)

// ReconnectDelay is how long the thread waits before re-subscribing after
// its stream failed.
var ReconnectDelay = 2 * time.Second

// Daemon is the slice of the daemon API the view model drives.
type Daemon struct {
	Session   rpc.SessionServiceClient
	Messaging rpc.MessagingServiceClient
	Presence  rpc.PresenceServiceClient
	Sender    composer.Sender
}

// ViewModel caches state from gRPC calls and streams and signals UI refreshes.
type ViewModel struct {
	mu sync.RWMutex

	daemon        Daemon
	status        *rpc.GetStatusResponse
	conversations []message.Conversation
	active        *message.Conversation
	messages      []message.Message
	members       []presence.Record
	composer      *composer.Composer
	feedOpts      feed.Options
	watchCancel   context.CancelFunc
	onError       func(error)

	refreshCh chan struct{}
}

// NewViewModel creates a new view model connected to the daemon.
func NewViewModel(d Daemon, opts feed.Options) *ViewModel {
	return &ViewModel{
		daemon:    d,
		feedOpts:  opts,
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

// SetOnError registers a callback for errors raised by background work.
func (vm *ViewModel) SetOnError(fn func(error)) {
	vm.mu.Lock()
	vm.onError = fn
	vm.mu.Unlock()
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

func (vm *ViewModel) reportError(err error) {
	vm.mu.RLock()
	fn := vm.onError
	vm.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// LoadStatus fetches the daemon status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.daemon.Session.GetStatus(ctx, &rpc.GetStatusRequest{})
	if err != nil {
		return rpc.FromStatus(err)
	}
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadConversations fetches the conversation list.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	resp, err := vm.daemon.Messaging.ListConversations(ctx, &rpc.ListConversationsRequest{})
	if err != nil {
		return rpc.FromStatus(err)
	}
	vm.mu.Lock()
	vm.conversations = resp.Conversations
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// Open makes conv the active conversation and streams its snapshots until
// another conversation is opened, Close is called or ctx is done. A failed
// stream is re-subscribed after ReconnectDelay.
func (vm *ViewModel) Open(ctx context.Context, conv message.Conversation) {
	wctx, cancel := context.WithCancel(ctx)

	vm.mu.Lock()
	if vm.watchCancel != nil {
		vm.watchCancel()
	}
	vm.watchCancel = cancel
	vm.active = &conv
	vm.messages = nil
	vm.members = nil
	vm.composer = composer.New(vm.daemon.Sender, conv.ID)
	vm.composer.OnChange(func(composer.State) { vm.signalRefresh() })
	vm.mu.Unlock()
	vm.signalRefresh()

	go vm.watch(wctx, conv.ID)
	if conv.Kind == message.KindCrew {
		go vm.watchPresence(wctx, conv.CrewID)
	}
}

// Close stops streaming the active conversation.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	if vm.watchCancel != nil {
		vm.watchCancel()
		vm.watchCancel = nil
	}
	vm.active = nil
	vm.composer = nil
	vm.mu.Unlock()
	vm.signalRefresh()
}

func (vm *ViewModel) watch(ctx context.Context, conversationID string) {
	for {
		err := vm.stream(ctx, conversationID)
		if ctx.Err() != nil {
			return
		}
		if message.KindOf(err) == message.KindNotAuthorized || message.KindOf(err) == message.KindNotFound {
			vm.reportError(err)
			return
		}
		if err != nil {
			vm.reportError(err)
		}
		select {
		case <-time.After(ReconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

// stream consumes one subscription. It returns the error that ended it.
func (vm *ViewModel) stream(ctx context.Context, conversationID string) error {
	stream, err := vm.daemon.Messaging.WatchConversation(ctx, &rpc.WatchConversationRequest{ConversationID: conversationID})
	if err != nil {
		return rpc.FromStatus(err)
	}
	for {
		snap, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return rpc.FromStatus(err)
		}
		if snap.Failure != nil {
			return snap.Failure.Err()
		}
		vm.mu.Lock()
		if vm.active != nil && vm.active.ID == conversationID {
			vm.messages = snap.Messages
		}
		vm.mu.Unlock()
		vm.signalRefresh()
	}
}

// watchPresence keeps the roster of crewID current, re-subscribing after a
// failed stream unless access was denied.
func (vm *ViewModel) watchPresence(ctx context.Context, crewID string) {
	for {
		err := vm.streamPresence(ctx, crewID)
		if ctx.Err() != nil {
			return
		}
		if message.KindOf(err) == message.KindNotAuthorized || message.KindOf(err) == message.KindNotFound {
			return
		}
		select {
		case <-time.After(ReconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (vm *ViewModel) streamPresence(ctx context.Context, crewID string) error {
	stream, err := vm.daemon.Presence.WatchPresence(ctx, &rpc.WatchPresenceRequest{CrewID: crewID})
	if err != nil {
		return rpc.FromStatus(err)
	}
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return rpc.FromStatus(err)
		}
		vm.mu.Lock()
		vm.members = resp.Records
		vm.mu.Unlock()
		vm.signalRefresh()
	}
}

// Submit sends text from the active composer. It blocks until the daemon
// resolves the delivery.
func (vm *ViewModel) Submit(ctx context.Context, text string) (message.Message, error) {
	c := vm.Composer()
	if c == nil {
		return message.Message{}, errors.New("no conversation open")
	}
	c.SetText(text)
	return c.Submit(ctx)
}

// Retry re-sends the failed message held by the active composer.
func (vm *ViewModel) Retry(ctx context.Context) (message.Message, error) {
	c := vm.Composer()
	if c == nil {
		return message.Message{}, errors.New("no conversation open")
	}
	return c.Retry(ctx)
}

// RetryMessage re-sends a failed message picked from the thread.
func (vm *ViewModel) RetryMessage(ctx context.Context, key string) error {
	active := vm.Active()
	if active == nil {
		return errors.New("no conversation open")
	}
	_, err := vm.daemon.Sender.RetryMessage(ctx, active.ID, key)
	return err
}

// Search runs a content search across visible conversations.
func (vm *ViewModel) Search(ctx context.Context, query string) ([]rpc.SearchResult, error) {
	resp, err := vm.daemon.Messaging.SearchMessages(ctx, &rpc.SearchMessagesRequest{Query: query, Limit: 50})
	if err != nil {
		return nil, rpc.FromStatus(err)
	}
	return resp.Results, nil
}

// OpenCrewChannel opens (creating if needed) a crew channel.
func (vm *ViewModel) OpenCrewChannel(ctx context.Context, crewID, channel string) (message.Conversation, error) {
	resp, err := vm.daemon.Messaging.OpenCrewChannel(ctx, &rpc.OpenCrewChannelRequest{CrewID: crewID, Channel: channel})
	if err != nil {
		return message.Conversation{}, rpc.FromStatus(err)
	}
	return resp.Conversation, nil
}

// OpenDirect opens a direct conversation with userID.
func (vm *ViewModel) OpenDirect(ctx context.Context, userID string) (message.Conversation, error) {
	resp, err := vm.daemon.Messaging.OpenDirect(ctx, &rpc.OpenDirectRequest{UserID: userID})
	if err != nil {
		return message.Conversation{}, rpc.FromStatus(err)
	}
	return resp.Conversation, nil
}

// JoinCrew redeems an invite token.
func (vm *ViewModel) JoinCrew(ctx context.Context, token string) (message.Conversation, error) {
	resp, err := vm.daemon.Messaging.JoinCrew(ctx, &rpc.JoinCrewRequest{InviteToken: token})
	if err != nil {
		return message.Conversation{}, rpc.FromStatus(err)
	}
	return resp.Conversation, nil
}

// CreateInvite creates an invite to the crew of the active conversation.
func (vm *ViewModel) CreateInvite(ctx context.Context) (*rpc.CreateInviteResponse, error) {
	active := vm.Active()
	if active == nil || active.Kind != message.KindCrew {
		return nil, errors.New("open a crew channel first")
	}
	resp, err := vm.daemon.Messaging.CreateInvite(ctx, &rpc.CreateInviteRequest{CrewID: active.CrewID})
	if err != nil {
		return nil, rpc.FromStatus(err)
	}
	return resp, nil
}

// SetOnline records the user's presence in the crew of the active conversation.
func (vm *ViewModel) SetOnline(ctx context.Context, online bool) error {
	active := vm.Active()
	if active == nil || active.Kind != message.KindCrew {
		return nil
	}
	return vm.SetCrewPresence(ctx, active.CrewID, online)
}

// SetCrewPresence records the user's presence in crewID.
func (vm *ViewModel) SetCrewPresence(ctx context.Context, crewID string, online bool) error {
	_, err := vm.daemon.Presence.SetOnlineStatus(ctx, &rpc.SetOnlineStatusRequest{CrewID: crewID, Online: online})
	return rpc.FromStatus(err)
}

// SetSeparatorMode switches how the thread is divided.
func (vm *ViewModel) SetSeparatorMode(mode feed.SeparatorMode) {
	vm.mu.Lock()
	vm.feedOpts.Mode = mode
	vm.mu.Unlock()
	vm.signalRefresh()
}

// SeparatorMode returns the current thread separator mode.
func (vm *ViewModel) SeparatorMode() feed.SeparatorMode {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.feedOpts.Mode
}

// Feed lays out the active thread as of now.
func (vm *ViewModel) Feed(now time.Time) []feed.Item {
	vm.mu.RLock()
	msgs, opts := vm.messages, vm.feedOpts
	vm.mu.RUnlock()
	return feed.Build(msgs, now, opts)
}

// FailedMessages returns the failed messages of the active thread.
func (vm *ViewModel) FailedMessages() []message.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	var out []message.Message
	for _, m := range vm.messages {
		if m.Status == message.StatusFailed {
			out = append(out, m)
		}
	}
	return out
}

// Conversations returns a snapshot of the conversation list.
func (vm *ViewModel) Conversations() []message.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.conversations
}

// FindConversation returns the listed conversation with id.
func (vm *ViewModel) FindConversation(id string) (message.Conversation, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.conversations {
		if c.ID == id {
			return c, true
		}
	}
	return message.Conversation{}, false
}

// Active returns the open conversation, or nil.
func (vm *ViewModel) Active() *message.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.active == nil {
		return nil
	}
	c := *vm.active
	return &c
}

// Composer returns the composer of the open conversation, or nil.
func (vm *ViewModel) Composer() *composer.Composer {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.composer
}

// Members returns the presence records of the open crew.
func (vm *ViewModel) Members() []presence.Record {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.members
}

// Status returns a snapshot of the daemon status.
func (vm *ViewModel) Status() *rpc.GetStatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}
