package services

import (
	"sort"
	"sync"
)

// ChatMessage 会话中的一条消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	// RoleUser 用户消息
	RoleUser = "user"
	// RoleAssistant 助手消息
	RoleAssistant = "assistant"

	// DefaultSessionID 未指定会话时使用的会话ID
	DefaultSessionID = "default"
)

// SessionService 进程内会话历史存储。
// 会话在首次追加消息时隐式创建，进程重启后历史丢失。
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string][]ChatMessage
}

var (
	sessionService *SessionService
	sessionOnce    sync.Once
)

// NewSessionService 创建会话服务
func NewSessionService() *SessionService {
	return &SessionService{
		sessions: make(map[string][]ChatMessage),
	}
}

// InitSessionService 初始化全局会话服务
func InitSessionService() *SessionService {
	sessionOnce.Do(func() {
		sessionService = NewSessionService()
	})
	return sessionService
}

// GetSessionService 获取全局会话服务
func GetSessionService() *SessionService {
	return sessionService
}

// normalizeID 空会话ID归一为默认会话
func normalizeID(sessionID string) string {
	if sessionID == "" {
		return DefaultSessionID
	}
	return sessionID
}

// Append 向会话追加一条消息
func (s *SessionService) Append(sessionID, role, content string) {
	sessionID = normalizeID(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], ChatMessage{
		Role:    role,
		Content: content,
	})
}

// History 返回会话最近limit条消息的副本，limit<=0返回全部
func (s *SessionService) History(sessionID string, limit int) []ChatMessage {
	sessionID = normalizeID(sessionID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.sessions[sessionID]
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	out := make([]ChatMessage, len(messages))
	copy(out, messages)
	return out
}

// Clear 清空指定会话的历史，返回会话先前是否存在。
// 会话ID保留，只重置消息列表。
func (s *SessionService) Clear(sessionID string) bool {
	sessionID = normalizeID(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.sessions[sessionID]
	if existed {
		s.sessions[sessionID] = nil
	}
	return existed
}

// ListSessions 返回所有会话ID，按字典序排序
func (s *SessionService) ListSessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
