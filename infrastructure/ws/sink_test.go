package ws

import (
	"context"
	"testing"

	"chat-relay/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSink_Fails_On_Full_Buffer_Without_Blocking(t *testing.T) {
	req := require.New(t)
	sink := NewSink(2)
	evt := event.TypingStarted{SenderID: uuid.NewString(), ReceiverID: uuid.NewString()}

	// Given a buffer of two, the third push fails instead of silently
	// pretending the session took it
	req.NoError(sink.Consume(context.Background(), evt))
	req.NoError(sink.Consume(context.Background(), evt))
	req.ErrorIs(sink.Consume(context.Background(), evt), errSinkFull)

	req.Len(sink.Events(), 2)
}

func TestSink_Consume_Fails_After_Close(t *testing.T) {
	req := require.New(t)
	sink := NewSink(4)
	evt := event.TypingStarted{SenderID: uuid.NewString(), ReceiverID: uuid.NewString()}

	req.NoError(sink.Consume(context.Background(), evt))
	req.NoError(sink.Close())

	// Then post-close pushes fail so no delivery is counted against a dead
	// connection, and Close stays idempotent
	req.Error(sink.Consume(context.Background(), evt))
	req.NoError(sink.Close())
}

func TestSink_Done_Closes_Once(t *testing.T) {
	req := require.New(t)
	sink := NewSink(1)

	select {
	case <-sink.Done():
		req.Fail("Done should stay open before Close")
	default:
	}

	req.NoError(sink.Close())

	select {
	case <-sink.Done():
		// Then the write pump can observe the closed state
	default:
		req.Fail("Done should be closed after Close")
	}
}
