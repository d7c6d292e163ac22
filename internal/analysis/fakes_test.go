package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedChat replies with the queued contents in order.
type scriptedChat struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
}

func (s *scriptedChat) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, input[len(input)-1].Content)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.replies) == 0 {
		return nil, errors.New("no scripted reply left")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return schema.AssistantMessage(r, nil), nil
}

func (s *scriptedChat) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming is not used")
}

func (s *scriptedChat) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// keywordEmbedder maps each text to a vector of keyword hits.
type keywordEmbedder struct {
	keywords []string
	short    bool
}

func (k keywordEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for _, t := range texts {
		v := make([]float64, len(k.keywords))
		for i, kw := range k.keywords {
			if strings.Contains(t, kw) {
				v[i] = 1
			}
		}
		out = append(out, v)
	}
	if k.short {
		out = out[:len(out)-1]
	}
	return out, nil
}
