package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
)

// DefaultTypingTimeout is how long a typing indicator survives without a
// follow-up keystroke before the notifier auto-clears it.
const DefaultTypingTimeout = 3 * time.Second

// pairKey scopes one debounce timer to a (sender, receiver) couple.
type pairKey struct {
	senderID   string
	receiverID string
}

// TypingNotifier pushes transient typing signals and auto-clears them.
// Each (sender, receiver) pair owns an independent timer held in an explicit
// map, with cancel-on-replace and cancel-on-disconnect semantics. A repeated
// NotifyTyping only re-arms the timer; the receiver sees a single "typing"
// push per keystroke burst.
type TypingNotifier struct {
	mu       sync.Mutex
	timers   map[pairKey]*time.Timer
	registry contract.ISessionRegistry
	timeout  time.Duration
	log      *slog.Logger
}

func NewTypingNotifier(registry contract.ISessionRegistry, timeout time.Duration, log *slog.Logger) *TypingNotifier {
	return &TypingNotifier{
		timers:   make(map[pairKey]*time.Timer),
		registry: registry,
		timeout:  timeout,
		log:      log,
	}
}

// NotifyTyping pushes a "typing" signal to the receiver's session, if any,
// and arms the auto-clear timer for the pair. When a timer is already armed
// the push is skipped and the timer restarted (debounce semantics).
func (n *TypingNotifier) NotifyTyping(senderID, receiverID string) {
	key := pairKey{senderID: senderID, receiverID: receiverID}

	n.mu.Lock()
	prior, armed := n.timers[key]
	if armed {
		prior.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(n.timeout, func() {
		n.expire(key, timer)
	})
	n.timers[key] = timer
	n.mu.Unlock()

	if !armed {
		n.push(receiverID, event.TypingStarted{SenderID: senderID, ReceiverID: receiverID})
	}
}

// NotifyStopTyping cancels the pair's timer and clears the indicator
// immediately instead of waiting for expiry. No-op if nothing is armed.
func (n *TypingNotifier) NotifyStopTyping(senderID, receiverID string) {
	key := pairKey{senderID: senderID, receiverID: receiverID}

	n.mu.Lock()
	timer, armed := n.timers[key]
	if armed {
		timer.Stop()
		delete(n.timers, key)
	}
	n.mu.Unlock()

	if armed {
		n.push(receiverID, event.TypingStopped{SenderID: senderID, ReceiverID: receiverID})
	}
}

// CancelUser synchronously drops every timer involving userID. Called on
// disconnect, before the registry entry is removed, so no expiry can fire
// against a stale session afterwards. When the disconnecting user was the
// one typing, the surviving receiver gets a final stop push so their
// indicator does not stay lit forever.
func (n *TypingNotifier) CancelUser(userID string) {
	n.mu.Lock()
	var interrupted []pairKey
	for key, timer := range n.timers {
		if key.senderID == userID || key.receiverID == userID {
			timer.Stop()
			delete(n.timers, key)
			if key.senderID == userID {
				interrupted = append(interrupted, key)
			}
		}
	}
	n.mu.Unlock()

	for _, key := range interrupted {
		n.push(key.receiverID, event.TypingStopped{SenderID: key.senderID, ReceiverID: key.receiverID})
	}
}

// expire runs on the timer goroutine once the debounce window elapses.
// The identity check guards against a timer that fired while NotifyTyping
// was concurrently replacing it.
func (n *TypingNotifier) expire(key pairKey, timer *time.Timer) {
	n.mu.Lock()
	current, ok := n.timers[key]
	if !ok || current != timer {
		n.mu.Unlock()
		return
	}
	delete(n.timers, key)
	n.mu.Unlock()

	n.push(key.receiverID, event.TypingStopped{SenderID: key.senderID, ReceiverID: key.receiverID})
}

// push delivers to the receiver's live session, if one exists right now.
func (n *TypingNotifier) push(receiverID string, evt event.DomainEvent) {
	sink, ok := n.registry.Lookup(receiverID)
	if !ok {
		return
	}
	if err := sink.Consume(context.Background(), evt); err != nil {
		n.log.Debug("Typing signal dropped", "receiver_id", receiverID, "error", err)
	}
}
