package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raghub/backend-go/internal/knowledge"
	"github.com/raghub/backend-go/internal/logger"
	"github.com/raghub/backend-go/internal/middleware"
)

const (
	// historyPromptLimit 拼入提示词的历史消息条数
	historyPromptLimit = 5
	// historyResponseLimit 响应中返回的历史消息条数
	historyResponseLimit = 6

	// fallbackAnswer 检索不到任何文档时的兜底回答，不调用生成模型
	fallbackAnswer = "知识库中暂时没有与问题相关的文档，请先上传文档后再提问。"
)

// QueryResult 一次问答的结果
type QueryResult struct {
	Answer    string        `json:"answer"`
	Retrieved []string      `json:"retrieved"`
	Sources   []string      `json:"sources"`
	SessionID string        `json:"session_id"`
	History   []ChatMessage `json:"history"`
}

// QueryService 检索增强问答服务
type QueryService struct {
	embedder  knowledge.Embedder
	generator knowledge.Generator
	store     knowledge.VectorStore
	sessions  *SessionService
	topK      int
}

var (
	queryService *QueryService
	queryOnce    sync.Once
)

// NewQueryService 创建问答服务
func NewQueryService(embedder knowledge.Embedder, generator knowledge.Generator,
	store knowledge.VectorStore, sessions *SessionService, topK int) *QueryService {
	if topK <= 0 {
		topK = 3
	}
	return &QueryService{
		embedder:  embedder,
		generator: generator,
		store:     store,
		sessions:  sessions,
		topK:      topK,
	}
}

// InitQueryService 初始化全局问答服务
func InitQueryService(embedder knowledge.Embedder, generator knowledge.Generator,
	store knowledge.VectorStore, sessions *SessionService, topK int) *QueryService {
	queryOnce.Do(func() {
		queryService = NewQueryService(embedder, generator, store, sessions, topK)
	})
	return queryService
}

// GetQueryService 获取全局问答服务
func GetQueryService() *QueryService {
	return queryService
}

// Ask 执行一次检索增强问答：向量化问题、检索相关片段、
// 结合会话历史生成回答，并把问答双方的消息写入会话。
func (s *QueryService) Ask(ctx context.Context, sessionID, question string) (*QueryResult, error) {
	start := time.Now()
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	// 提示词用的历史不含本轮问题；用户消息先落会话，后续失败也保留
	history := s.sessions.History(sessionID, historyPromptLimit)
	s.sessions.Append(sessionID, RoleUser, question)

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		recordQuery("error")
		return nil, err
	}

	matches, err := s.search(ctx, vector)
	if err != nil {
		recordQuery("error")
		return nil, err
	}

	if len(matches) == 0 {
		s.sessions.Append(sessionID, RoleAssistant, fallbackAnswer)
		recordQuery("fallback")
		logger.Info("问答未命中任何文档", zap.String("session_id", sessionID))
		return &QueryResult{
			Answer:    fallbackAnswer,
			Retrieved: []string{},
			Sources:   []string{},
			SessionID: sessionID,
			History:   s.sessions.History(sessionID, historyResponseLimit),
		}, nil
	}

	prompt := buildPrompt(matches, history, question)

	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		recordQuery("error")
		return nil, err
	}

	s.sessions.Append(sessionID, RoleAssistant, answer)

	recordQuery("answered")
	if m := GetMetricsService(); m != nil {
		m.QueryDuration.Observe(time.Since(start).Seconds())
	}
	logger.Info("问答完成",
		zap.String("session_id", sessionID),
		zap.Int("matches", len(matches)),
		zap.Duration("elapsed", time.Since(start)))

	retrieved := make([]string, 0, len(matches))
	for _, match := range matches {
		retrieved = append(retrieved, match.Text)
	}

	return &QueryResult{
		Answer:    answer,
		Retrieved: retrieved,
		Sources:   collectSources(matches),
		SessionID: sessionID,
		History:   s.sessions.History(sessionID, historyResponseLimit),
	}, nil
}

// search 先查缓存再查向量库
func (s *QueryService) search(ctx context.Context, vector []float32) ([]knowledge.SearchMatch, error) {
	redisSvc := middleware.GetRedisService()
	if redisSvc != nil {
		if cached, ok := redisSvc.GetSearchResult(ctx, vector, s.topK); ok {
			return cached, nil
		}
	}

	matches, err := s.store.Search(ctx, vector, s.topK)
	if err != nil {
		return nil, err
	}
	if redisSvc != nil {
		redisSvc.SetSearchResult(ctx, vector, s.topK, matches)
	}
	return matches, nil
}

// buildPrompt 拼装提示词：检索片段在前，会话历史居中，问题最后
func buildPrompt(matches []knowledge.SearchMatch, history []ChatMessage, question string) string {
	var b strings.Builder
	b.WriteString("请根据以下资料回答用户的问题。如果资料中没有相关内容，请直接说明。\n\n")

	b.WriteString("资料:\n")
	for i, match := range matches {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(match.Text)
	}
	b.WriteString("\n")

	if len(history) > 0 {
		b.WriteString("\n对话历史:\n")
		for _, msg := range history {
			b.WriteString(msg.Role)
			b.WriteString(": ")
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n问题: ")
	b.WriteString(question)
	b.WriteString("\n回答:")
	return b.String()
}

// collectSources 提取去重后的来源文件名，保持命中顺序
func collectSources(matches []knowledge.SearchMatch) []string {
	seen := make(map[string]bool, len(matches))
	sources := make([]string, 0, len(matches))
	for _, match := range matches {
		if match.Source == "" || seen[match.Source] {
			continue
		}
		seen[match.Source] = true
		sources = append(sources, match.Source)
	}
	return sources
}

func recordQuery(result string) {
	if m := GetMetricsService(); m != nil {
		m.QueriesTotal.WithLabelValues(result).Inc()
	}
}
