package slack

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/parlane/switchyard/internal/telegraph"
	slackapi "github.com/slack-go/slack"
)

// --- Mock Slack client ---

type mockSlackClient struct {
	mu       sync.Mutex
	authResp *slackapi.AuthTestResponse
	authErr  error
	posted   []postedMessage
	postErr  error
}

type postedMessage struct {
	channelID string
	options   []slackapi.MsgOption
}

func newMockSlackClient() *mockSlackClient {
	return &mockSlackClient{
		authResp: &slackapi.AuthTestResponse{UserID: "U_BOT_123"},
	}
}

func (m *mockSlackClient) AuthTestContext(ctx context.Context) (*slackapi.AuthTestResponse, error) {
	return m.authResp, m.authErr
}

func (m *mockSlackClient) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postErr != nil {
		return "", "", m.postErr
	}
	m.posted = append(m.posted, postedMessage{channelID: channelID, options: options})
	return channelID, "1234567890.123456", nil
}

func (m *mockSlackClient) postedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posted)
}

func (m *mockSlackClient) lastPosted() postedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posted[len(m.posted)-1]
}

// --- Tests ---

func TestNew_RequiresToken(t *testing.T) {
	if _, err := New(AdapterOpts{}); err == nil {
		t.Error("missing token accepted")
	}
	if _, err := New(AdapterOpts{Client: newMockSlackClient()}); err != nil {
		t.Errorf("injected client rejected: %v", err)
	}
}

func TestConnect_CapturesBotUserID(t *testing.T) {
	adapter, err := New(AdapterOpts{Client: newMockSlackClient()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if adapter.BotUserID() != "U_BOT_123" {
		t.Errorf("bot user ID = %q", adapter.BotUserID())
	}
}

func TestConnect_AuthFailure(t *testing.T) {
	client := newMockSlackClient()
	client.authErr = fmt.Errorf("invalid_auth")
	adapter, err := New(AdapterOpts{Client: client})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := adapter.Connect(context.Background()); err == nil {
		t.Error("Connect succeeded with failing auth")
	}
}

func TestConnect_AfterClose(t *testing.T) {
	adapter, err := New(AdapterOpts{Client: newMockSlackClient()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := adapter.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := adapter.Connect(context.Background()); err == nil {
		t.Error("Connect succeeded on closed adapter")
	}
}

func TestSend_DefaultChannel(t *testing.T) {
	client := newMockSlackClient()
	adapter, err := New(AdapterOpts{Client: client, ChannelID: "C_DEFAULT"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := adapter.Send(context.Background(), telegraph.OutboundMessage{Text: "hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if client.postedCount() != 1 {
		t.Fatalf("posted = %d, want 1", client.postedCount())
	}
	if client.lastPosted().channelID != "C_DEFAULT" {
		t.Errorf("channel = %q", client.lastPosted().channelID)
	}
}

func TestSend_ExplicitChannelWins(t *testing.T) {
	client := newMockSlackClient()
	adapter, err := New(AdapterOpts{Client: client, ChannelID: "C_DEFAULT"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	err = adapter.Send(context.Background(), telegraph.OutboundMessage{
		Channel: "C_OTHER",
		Text:    "hello",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if client.lastPosted().channelID != "C_OTHER" {
		t.Errorf("channel = %q", client.lastPosted().channelID)
	}
}

func TestSend_NoChannel(t *testing.T) {
	adapter, err := New(AdapterOpts{Client: newMockSlackClient()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := adapter.Send(context.Background(), telegraph.OutboundMessage{Text: "x"}); err == nil {
		t.Error("Send succeeded without a channel")
	}
}

func TestSend_NotConnected(t *testing.T) {
	adapter, err := New(AdapterOpts{Client: newMockSlackClient(), ChannelID: "C"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := adapter.Send(context.Background(), telegraph.OutboundMessage{Text: "x"}); err == nil {
		t.Error("Send succeeded before Connect")
	}
}

func TestEventToAttachment(t *testing.T) {
	att := eventToAttachment(telegraph.FormattedEvent{
		Title:    "Agent agent-a registered",
		Body:     "endpoint: http://a",
		Severity: "success",
		Color:    "#36a64f",
		Fields: []telegraph.Field{
			{Name: "Agent", Value: "agent-a", Short: true},
		},
	})
	if att.Title != "Agent agent-a registered" || att.Color != "#36a64f" {
		t.Errorf("attachment = %+v", att)
	}
	if len(att.Fields) != 1 || att.Fields[0].Title != "Agent" || !att.Fields[0].Short {
		t.Errorf("fields = %+v", att.Fields)
	}
}
