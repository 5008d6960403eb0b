package discord

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Call records a single mock invocation.
type Call struct {
	Method string
	Args   []interface{}
}

// MockSession is a recording Session implementation for tests. Errors may
// be injected per method name; message and member lookups return canned
// values.
type MockSession struct {
	mu    sync.Mutex
	Calls []Call

	// Errors maps a method name to the error it should return.
	Errors map[string]error

	// Messages is returned by ChannelMessages.
	Messages []*discordgo.Message
	// Message is returned by ChannelMessage.
	Message *discordgo.Message
	// Member is returned by GuildMember.
	Member *discordgo.Member
	// Permissions is returned by UserChannelPermissions.
	Permissions int64
	// DMChannelID is the channel ID returned by UserChannelCreate.
	DMChannelID string
	// Webhook is returned by WebhookCreate.
	Webhook *discordgo.Webhook

	sendCounter int
}

// NewMockSession creates a MockSession with sane defaults.
func NewMockSession() *MockSession {
	return &MockSession{
		Errors:      make(map[string]error),
		DMChannelID: "dm-channel",
		Webhook:     &discordgo.Webhook{ID: "webhook-id", Token: "webhook-token"},
	}
}

func (m *MockSession) record(method string, args ...interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, Call{Method: method, Args: args})
	return m.Errors[method]
}

// CallsTo returns the recorded calls for a method name.
func (m *MockSession) CallsTo(method string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var calls []Call
	for _, c := range m.Calls {
		if c.Method == method {
			calls = append(calls, c)
		}
	}
	return calls
}

// SentMessages returns the contents passed to ChannelMessageSend, in order.
func (m *MockSession) SentMessages() []string {
	var out []string
	for _, c := range m.CallsTo("ChannelMessageSend") {
		out = append(out, c.Args[1].(string))
	}
	return out
}

func (m *MockSession) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if err := m.record("ChannelMessageSend", channelID, content); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sendCounter++
	id := fmt.Sprintf("sent-%d", m.sendCounter)
	m.mu.Unlock()
	return &discordgo.Message{ID: id, ChannelID: channelID, Content: content}, nil
}

func (m *MockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if err := m.record("ChannelMessageSendComplex", channelID, data); err != nil {
		return nil, err
	}
	return &discordgo.Message{ID: "sent-complex", ChannelID: channelID}, nil
}

func (m *MockSession) ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if err := m.record("ChannelMessage", channelID, messageID); err != nil {
		return nil, err
	}
	if m.Message != nil {
		return m.Message, nil
	}
	return nil, fmt.Errorf("message %s not found", messageID)
}

func (m *MockSession) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	if err := m.record("ChannelMessages", channelID, limit, beforeID, afterID, aroundID); err != nil {
		return nil, err
	}
	return m.Messages, nil
}

func (m *MockSession) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	return m.record("ChannelMessageDelete", channelID, messageID)
}

func (m *MockSession) ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error {
	return m.record("ChannelMessagesBulkDelete", channelID, messages)
}

func (m *MockSession) GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error {
	return m.record("GuildMemberDeleteWithReason", guildID, userID, reason)
}

func (m *MockSession) GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error {
	return m.record("GuildBanCreateWithReason", guildID, userID, reason, days)
}

func (m *MockSession) GuildBanDelete(guildID, userID string, options ...discordgo.RequestOption) error {
	return m.record("GuildBanDelete", guildID, userID)
}

func (m *MockSession) GuildMemberTimeout(guildID string, userID string, until *time.Time, options ...discordgo.RequestOption) error {
	return m.record("GuildMemberTimeout", guildID, userID, until)
}

func (m *MockSession) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	if err := m.record("GuildMember", guildID, userID); err != nil {
		return nil, err
	}
	if m.Member != nil {
		return m.Member, nil
	}
	return nil, fmt.Errorf("member %s not found", userID)
}

func (m *MockSession) GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	return m.record("GuildMemberRoleAdd", guildID, userID, roleID)
}

func (m *MockSession) GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	return m.record("GuildMemberRoleRemove", guildID, userID, roleID)
}

func (m *MockSession) UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error) {
	if err := m.record("UserChannelPermissions", userID, channelID); err != nil {
		return 0, err
	}
	return m.Permissions, nil
}

func (m *MockSession) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if err := m.record("UserChannelCreate", recipientID); err != nil {
		return nil, err
	}
	return &discordgo.Channel{ID: m.DMChannelID, Type: discordgo.ChannelTypeDM}, nil
}

func (m *MockSession) WebhookCreate(channelID, name, avatar string, options ...discordgo.RequestOption) (*discordgo.Webhook, error) {
	if err := m.record("WebhookCreate", channelID, name, avatar); err != nil {
		return nil, err
	}
	return m.Webhook, nil
}

func (m *MockSession) WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if err := m.record("WebhookExecute", webhookID, token, wait, data); err != nil {
		return nil, err
	}
	return &discordgo.Message{ID: "webhook-msg"}, nil
}

func (m *MockSession) WebhookDelete(webhookID string, options ...discordgo.RequestOption) error {
	return m.record("WebhookDelete", webhookID)
}

func (m *MockSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	return m.record("InteractionRespond", interaction, resp)
}

// Compile-time check.
var _ Session = (*MockSession)(nil)
