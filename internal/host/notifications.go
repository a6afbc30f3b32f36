package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/soulconnect/soulconnect/internal/agent"
	"github.com/soulconnect/soulconnect/internal/logging"
)

// DefaultHistory 是通知中心保留的最大条数。
const DefaultHistory = 100

// ErrUnknownNotification 表示通知 ID 不存在或已被淘汰。
var ErrUnknownNotification = errors.New("unknown notification")

// Notice 是一条已展示的通知，实现 agent.Notification。
type Notice struct {
	ID        string
	Title     string
	Options   agent.NotificationOptions
	CreatedAt time.Time

	mu     sync.Mutex
	closed bool
}

// Close 关闭通知，重复调用无副作用。
func (n *Notice) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
}

// Closed reports whether Close has been called.
func (n *Notice) Closed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

// NoticeInfo is the JSON view of a Notice.
type NoticeInfo struct {
	ID        string                    `json:"id"`
	Title     string                    `json:"title"`
	Options   agent.NotificationOptions `json:"options"`
	CreatedAt time.Time                 `json:"created_at"`
	Closed    bool                      `json:"closed"`
}

// Notifications 是进程内通知中心，实现 agent.Notifier。
type Notifications struct {
	logger  *logrus.Logger
	history int

	mu      sync.RWMutex
	notices []*Notice
}

// NewNotifications keeps at most history notices; a non-positive value uses DefaultHistory.
func NewNotifications(history int, logger *logrus.Logger) *Notifications {
	if history <= 0 {
		history = DefaultHistory
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Notifications{logger: logger, history: history}
}

// ShowNotification records a new notice.
func (n *Notifications) ShowNotification(ctx context.Context, title string, opts agent.NotificationOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	notice := &Notice{
		ID:        uuid.NewString(),
		Title:     title,
		Options:   opts,
		CreatedAt: time.Now(),
	}

	n.mu.Lock()
	n.notices = append(n.notices, notice)
	if overflow := len(n.notices) - n.history; overflow > 0 {
		n.notices = append([]*Notice(nil), n.notices[overflow:]...)
	}
	n.mu.Unlock()

	n.logger.WithFields(logrus.Fields{
		"action":       "notification_show",
		"notification": notice.ID,
		"title":        title,
	}).Info(opts.Body)
	return nil
}

// Get 按 ID 查找通知。
func (n *Notifications) Get(id string) (*Notice, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, notice := range n.notices {
		if notice.ID == id {
			return notice, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownNotification, id)
}

// List returns notices, oldest first.
func (n *Notifications) List() []NoticeInfo {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]NoticeInfo, 0, len(n.notices))
	for _, notice := range n.notices {
		out = append(out, NoticeInfo{
			ID:        notice.ID,
			Title:     notice.Title,
			Options:   notice.Options,
			CreatedAt: notice.CreatedAt,
			Closed:    notice.Closed(),
		})
	}
	return out
}
