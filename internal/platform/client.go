// Package platform adapts the Slack Web API to the three operations the CLI
// needs plus user name lookups.
package platform

import (
	"context"
	"log"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"slack-handler/internal/config"
	"slack-handler/internal/message"
)

// API is the subset of *slack.Client the adapter calls.
type API interface {
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
}

// Channel is a conversation visible to the credential.
type Channel struct {
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id" yaml:"id"`
}

// PostAck acknowledges a posted message.
type PostAck struct {
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Channel   string `json:"channel" yaml:"channel"`
}

// Client calls Slack on behalf of one set of credentials. It keeps no state
// between calls.
type Client struct {
	api   API
	creds config.Credentials
	log   logrus.FieldLogger
}

type options struct {
	apiURL string
	logger *logrus.Logger
	debug  bool
}

// Option configures New.
type Option func(*options)

// WithAPIURL points the client at a different Slack API base URL. The URL
// must end in a slash.
func WithAPIURL(url string) Option {
	return func(o *options) { o.apiURL = url }
}

// WithLogger sets the logger. With debug on, slack-go's request logging is
// routed into it as well.
func WithLogger(logger *logrus.Logger, debug bool) Option {
	return func(o *options) {
		o.logger = logger
		o.debug = debug
	}
}

// New validates creds and builds a client. A missing token fails here,
// before anything touches the network.
func New(creds config.Credentials, opts ...Option) (*Client, error) {
	if creds.AccessToken == "" {
		return nil, config.MissingToken()
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logrus.StandardLogger()
	}

	var slackOpts []slack.Option
	if o.apiURL != "" {
		slackOpts = append(slackOpts, slack.OptionAPIURL(o.apiURL))
	}
	if o.debug {
		slackOpts = append(slackOpts,
			slack.OptionDebug(true),
			slack.OptionLog(log.New(o.logger.WriterLevel(logrus.DebugLevel), "slack-go: ", 0)),
		)
	}

	return &Client{
		api:   slack.New(creds.AccessToken, slackOpts...),
		creds: creds,
		log:   o.logger.WithField("component", "platform"),
	}, nil
}

// FetchHistory returns up to limit of the most recent messages in channelID
// (the default channel when empty), in the order Slack returns them: newest
// first. A limit of zero returns an empty batch without calling Slack.
func (c *Client) FetchHistory(ctx context.Context, channelID string, limit int) ([]message.Raw, error) {
	channelID, err := c.creds.Channel(channelID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []message.Raw{}, nil
	}

	c.log.WithFields(logrus.Fields{"channel": channelID, "limit": limit}).Debug("fetching history")
	history, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     limit,
	})
	if err != nil {
		return nil, newAPIError("fetching messages", err)
	}

	raws := make([]message.Raw, 0, len(history.Messages))
	for _, m := range history.Messages {
		label := m.Username
		if label == "" {
			label = m.BotID
		}
		raws = append(raws, message.Raw{
			SenderID:    m.User,
			SenderLabel: label,
			Text:        m.Text,
			SentAt:      m.Timestamp,
		})
	}
	return raws, nil
}

// PostMessage posts text to channelID (the default channel when empty).
func (c *Client) PostMessage(ctx context.Context, text, channelID string) (PostAck, error) {
	channelID, err := c.creds.Channel(channelID)
	if err != nil {
		return PostAck{}, err
	}

	c.log.WithField("channel", channelID).Debug("posting message")
	channel, ts, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return PostAck{}, newAPIError("posting message", err)
	}
	return PostAck{Timestamp: ts, Channel: channel}, nil
}

// ListChannels returns the public and private channels visible to the
// credential from a single conversations.list call.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	c.log.Debug("listing channels")
	chs, _, err := c.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
		Types: []string{"public_channel", "private_channel"},
	})
	if err != nil {
		return nil, newAPIError("listing channels", err)
	}

	channels := make([]Channel, 0, len(chs))
	for _, ch := range chs {
		channels = append(channels, Channel{Name: ch.Name, ID: ch.ID})
	}
	return channels, nil
}

// DisplayName looks up userID and returns the real name, or the username
// when the real name is empty.
func (c *Client) DisplayName(ctx context.Context, userID string) (string, error) {
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return "", newAPIError("looking up user", err)
	}
	if user.RealName != "" {
		return user.RealName, nil
	}
	if user.Name != "" {
		return user.Name, nil
	}
	return "", errors.Errorf("user %s has no name", userID)
}
