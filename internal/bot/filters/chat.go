// Package filters решает, какие апдейты бот обрабатывает и кто в чате привилегирован.
package filters

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/guardian-bot/internal/config"
)

type ChatFilter struct {
	cfg *config.Config
}

func NewChatFilter(cfg *config.Config) *ChatFilter {
	return &ChatFilter{cfg: cfg}
}

// CheckAccess пропускает личные сообщения и группы из ALLOWED_CHAT_IDS.
// Сообщения от ботов и без автора (каналы, служебные) отбрасываются.
func (f *ChatFilter) CheckAccess(message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil {
		log.WithField("component", "ChatFilter").Warn("nil message/chat")
		return false
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Debug("nil message.From (service/channel message?)")
		return false
	}
	if message.From.IsBot {
		return false
	}

	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"user_id":   message.From.ID,
	})

	switch {
	case message.Chat.IsPrivate():
		return true
	case message.Chat.IsGroup() || message.Chat.IsSuperGroup():
		if f.cfg.IsAllowedChat(message.Chat.ID) {
			return true
		}
		logger.Debug("deny: chat not in ALLOWED_CHAT_IDS")
		return false
	default:
		logger.Debug("deny: unsupported chat type")
		return false
	}
}

// Сколько помним статус участника.
const memberStatusTTL = 5 * time.Minute

// MemberStatusFunc возвращает статус участника чата ("creator", "administrator", "member", ...).
type MemberStatusFunc func(chatID, userID int64) (string, error)

type memberKey struct {
	chatID, userID int64
}

// PrivilegeResolver определяет, освобождён ли автор от модерации:
// ADMIN_IDS, а также создатель и администраторы чата.
type PrivilegeResolver struct {
	cfg    *config.Config
	status MemberStatusFunc
	cache  *expirable.LRU[memberKey, bool]
}

// NewPrivilegeResolver спрашивает статус у Telegram через GetChatMember.
func NewPrivilegeResolver(api *tgbotapi.BotAPI, cfg *config.Config) *PrivilegeResolver {
	return NewPrivilegeResolverFunc(cfg, func(chatID, userID int64) (string, error) {
		cm, err := api.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
				ChatID: chatID,
				UserID: userID,
			},
		})
		if err != nil {
			return "", err
		}
		return cm.Status, nil
	})
}

func NewPrivilegeResolverFunc(cfg *config.Config, status MemberStatusFunc) *PrivilegeResolver {
	return &PrivilegeResolver{
		cfg:    cfg,
		status: status,
		cache:  expirable.NewLRU[memberKey, bool](10_000, nil, memberStatusTTL),
	}
}

// IsPrivileged — ошибка Telegram не кэшируется, автор считается обычным.
func (r *PrivilegeResolver) IsPrivileged(chatID, userID int64) bool {
	if r.cfg.IsAdmin(userID) {
		return true
	}
	key := memberKey{chatID: chatID, userID: userID}
	if privileged, ok := r.cache.Get(key); ok {
		return privileged
	}

	status, err := r.status(chatID, userID)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"component": "PrivilegeResolver",
			"chat_id":   chatID,
			"user_id":   userID,
		}).Warn("member check failed (telegram GetChatMember)")
		return false
	}

	privileged := status == "creator" || status == "administrator"
	r.cache.Add(key, privileged)
	return privileged
}
