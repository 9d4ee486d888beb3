package slack

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"github.com/bryanwahyu/hvac-owl/internal/domain/channels"
)

const (
	defaultMaxAttempts     = 3
	defaultInitialInterval = time.Second
	maxPageSize            = 200
)

// Client implements channels.ChatPlatform on top of slack-go.
// User lookups are cached for the lifetime of the process.
type Client struct {
	api             *slack.Client
	apiURL          string
	maxAttempts     int
	initialInterval time.Duration

	mu    sync.RWMutex
	users map[string]*channels.User
}

type Option func(*Client)

// WithAPIURL points the client at another endpoint (must end with "/")
func WithAPIURL(url string) Option {
	return func(c *Client) { c.apiURL = url }
}

// WithRetry overrides attempts and the first backoff interval
func WithRetry(maxAttempts int, initial time.Duration) Option {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if initial > 0 {
			c.initialInterval = initial
		}
	}
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		maxAttempts:     defaultMaxAttempts,
		initialInterval: defaultInitialInterval,
		users:           map[string]*channels.User{},
	}
	for _, o := range opts {
		o(c)
	}
	var sopts []slack.Option
	if c.apiURL != "" {
		sopts = append(sopts, slack.OptionAPIURL(c.apiURL))
	}
	c.api = slack.New(token, sopts...)
	return c
}

// isRateLimited true for HTTP 429 and for the "ratelimited" API error
func isRateLimited(err error) bool {
	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return true
	}
	var se slack.SlackErrorResponse
	if errors.As(err, &se) {
		return se.Err == "ratelimited" || se.Err == "rate_limited"
	}
	return false
}

// retry runs op with exponential backoff (1s, 2s, ...) only while Slack reports rate limiting
func (c *Client) retry(ctx context.Context, method string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if isRateLimited(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxAttempts-1)), ctx),
		func(err error, wait time.Duration) {
			log.Warn().Err(err).Str("method", method).Int("attempt", attempt).Dur("wait", wait).Msg("slack rate limited, retrying")
		})
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	return nil
}

func (c *Client) ChannelInfo(ctx context.Context, channelID string) (*channels.Channel, error) {
	var ch *slack.Channel
	err := c.retry(ctx, "conversations.info", func() error {
		var err error
		ch, err = c.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{
			ChannelID:         channelID,
			IncludeNumMembers: true,
		})
		return err
	})
	if err != nil {
		var se slack.SlackErrorResponse
		if errors.As(err, &se) && se.Err == "channel_not_found" {
			return nil, fmt.Errorf("%w: %s", channels.ErrChannelNotFound, channelID)
		}
		return nil, err
	}
	return toChannel(ch), nil
}

// History pages through conversations.history until q.Limit messages are collected
func (c *Client) History(ctx context.Context, q channels.HistoryQuery) ([]channels.Message, error) {
	var out []channels.Message
	cursor := ""
	for {
		page := maxPageSize
		if q.Limit > 0 && q.Limit-len(out) < page {
			page = q.Limit - len(out)
		}
		params := &slack.GetConversationHistoryParameters{
			ChannelID: q.ChannelID,
			Cursor:    cursor,
			Limit:     page,
			Inclusive: q.Inclusive,
		}
		if !q.Oldest.IsZero() {
			params.Oldest = channels.FormatTS(q.Oldest)
		}

		var resp *slack.GetConversationHistoryResponse
		err := c.retry(ctx, "conversations.history", func() error {
			var err error
			resp, err = c.api.GetConversationHistoryContext(ctx, params)
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, m := range resp.Messages {
			out = append(out, channels.Message{
				TS:         m.Timestamp,
				User:       m.User,
				Username:   m.Username,
				Text:       m.Text,
				ThreadTS:   m.ThreadTimestamp,
				ReplyCount: m.ReplyCount,
			})
		}
		cursor = resp.ResponseMetaData.NextCursor
		if !resp.HasMore || cursor == "" || (q.Limit > 0 && len(out) >= q.Limit) {
			return out, nil
		}
	}
}

// UserInfo cached users.info
func (c *Client) UserInfo(ctx context.Context, userID string) (*channels.User, error) {
	c.mu.RLock()
	u, ok := c.users[userID]
	c.mu.RUnlock()
	if ok {
		return u, nil
	}

	var su *slack.User
	err := c.retry(ctx, "users.info", func() error {
		var err error
		su, err = c.api.GetUserInfoContext(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	u = &channels.User{
		ID:          su.ID,
		Name:        su.Name,
		RealName:    su.RealName,
		DisplayName: su.Profile.DisplayName,
	}
	c.mu.Lock()
	c.users[userID] = u
	c.mu.Unlock()
	return u, nil
}

// ListChannels non-archived public and private channels the bot can see
func (c *Client) ListChannels(ctx context.Context) ([]channels.Channel, error) {
	var out []channels.Channel
	cursor := ""
	for {
		var (
			page []slack.Channel
			next string
		)
		err := c.retry(ctx, "conversations.list", func() error {
			var err error
			page, next, err = c.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
				Cursor:          cursor,
				ExcludeArchived: true,
				Limit:           maxPageSize,
				Types:           []string{"public_channel", "private_channel"},
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		for i := range page {
			if page[i].IsArchived {
				continue
			}
			out = append(out, *toChannel(&page[i]))
		}
		if next == "" {
			return out, nil
		}
		cursor = next
	}
}

func (c *Client) PostMessage(ctx context.Context, channelID, text string) error {
	return c.retry(ctx, "chat.postMessage", func() error {
		_, _, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
		return err
	})
}

func (c *Client) Join(ctx context.Context, channelID string) (*channels.Channel, error) {
	var ch *slack.Channel
	err := c.retry(ctx, "conversations.join", func() error {
		var err error
		ch, _, _, err = c.api.JoinConversationContext(ctx, channelID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toChannel(ch), nil
}

func toChannel(ch *slack.Channel) *channels.Channel {
	if ch == nil {
		return &channels.Channel{}
	}
	return &channels.Channel{
		ID:         ch.ID,
		Name:       ch.Name,
		Purpose:    ch.Purpose.Value,
		NumMembers: ch.NumMembers,
	}
}
