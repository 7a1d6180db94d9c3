package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func TestInvoke(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
		kind ReplyKind
	}{
		{"ok", "Hi there!", nil, ReplyOK},
		{"blank text", "  \n ", nil, ReplyEmpty},
		{"no candidates", "", ErrEmptyResponse, ReplyEmpty},
		{"wrapped empty", "", errors.Join(errors.New("gemini"), ErrEmptyResponse), ReplyEmpty},
		{"deadline", "", context.DeadlineExceeded, ReplyTimeout},
		{"failure", "", errors.New("quota exceeded"), ReplyFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := new(MockGenerator)
			g.On("Generate", mock.Anything, Prompt{Text: "hello"}).Return(tt.text, tt.err)

			reply := Invoke(context.Background(), g, Prompt{Text: "hello"}, time.Second)

			assert.Equal(t, tt.kind, reply.Kind, reply.Kind.String())
			if tt.kind == ReplyOK {
				assert.Equal(t, tt.text, reply.Text)
			}
			if tt.kind == ReplyFailed || tt.kind == ReplyTimeout {
				assert.Error(t, reply.Err)
			}
			g.AssertExpectations(t)
		})
	}
}

func TestInvokeNilGenerator(t *testing.T) {
	reply := Invoke(context.Background(), nil, Prompt{Text: "hello"}, time.Second)
	assert.Equal(t, ReplyUnavailable, reply.Kind)
	assert.NoError(t, reply.Err)
}

func TestInvokeTimeout(t *testing.T) {
	g := new(MockGenerator)
	g.On("Generate", mock.Anything, mock.Anything).Return("", context.DeadlineExceeded).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	})

	reply := Invoke(context.Background(), g, Prompt{Text: "slow"}, 20*time.Millisecond)
	assert.Equal(t, ReplyTimeout, reply.Kind)
}

func TestInvokePassesAttachment(t *testing.T) {
	att := &Attachment{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
	g := new(MockGenerator)
	g.On("Generate", mock.Anything, mock.MatchedBy(func(p Prompt) bool {
		return p.Attachment == att
	})).Return("a picture", nil)

	reply := Invoke(context.Background(), g, Prompt{Text: "describe", Attachment: att}, 0)
	assert.Equal(t, ReplyOK, reply.Kind)
	assert.Equal(t, "iVBORw==", att.Encoded())
}

func TestNew(t *testing.T) {
	g, err := New(context.Background(), Settings{Provider: "dummy", Model: "echo:"})
	require.NoError(t, err)
	assert.IsType(t, &Dummy{}, g)

	_, err = New(context.Background(), Settings{Provider: "bogus"})
	assert.EqualError(t, err, "unknown provider: bogus")

	t.Setenv("OPENAI_API_KEY", "")
	_, err = New(context.Background(), Settings{Provider: "openai"})
	assert.Error(t, err)

	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	_, err = New(context.Background(), Settings{Provider: "gemini"})
	assert.Error(t, err)
}

func TestDummy(t *testing.T) {
	d := NewDummy("")
	text, err := d.Generate(context.Background(), Prompt{Text: "system\n\nUser: hi\n\nAssistant:\n"})
	require.NoError(t, err)
	assert.Equal(t, "Dummy response: Assistant:", text)

	text, err = NewDummy("echo:").Generate(context.Background(), Prompt{
		Text:       "what is this",
		Attachment: &Attachment{MIMEType: "image/jpeg", Data: make([]byte, 3)},
	})
	require.NoError(t, err)
	assert.Equal(t, "echo: what is this [image/jpeg, 3 bytes]", text)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Generate(ctx, Prompt{Text: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitReady(t *testing.T) {
	g := new(MockGenerator)
	g.On("Generate", mock.Anything, Prompt{Text: "Hello"}).Return("", errors.New("warming up")).Once()
	g.On("Generate", mock.Anything, Prompt{Text: "Hello"}).Return("Hi!", nil).Once()

	err := WaitReady(context.Background(), g, 5*time.Second)
	assert.NoError(t, err)
	g.AssertNumberOfCalls(t, "Generate", 2)
}

func TestWaitReadyGivesUp(t *testing.T) {
	g := new(MockGenerator)
	g.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("invalid api key"))

	err := WaitReady(context.Background(), g, 50*time.Millisecond)
	assert.Error(t, err)
}

func TestWaitReadyBoundsHungAttempt(t *testing.T) {
	g := new(MockGenerator)
	g.On("Generate", mock.Anything, mock.Anything).Return("", context.DeadlineExceeded).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	})

	start := time.Now()
	err := WaitReady(context.Background(), g, 100*time.Millisecond)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	g.AssertNumberOfCalls(t, "Generate", 1)
}

func TestWaitReadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitReady(ctx, NewDummy(""), time.Second)
	assert.Error(t, err)
}

func TestOpenAIGenerate(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Hi there!"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	o, err := NewOpenAI(Settings{Model: "gpt-4o-mini", APIKey: "test-key", BaseURL: server.URL + "/v1", Temperature: 0.85})
	require.NoError(t, err)

	text, err := o.Generate(context.Background(), Prompt{
		Text:       "describe",
		Attachment: &Attachment{MIMEType: "image/png", Data: []byte("png")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", text)
	assert.Equal(t, "gpt-4o-mini", got["model"])

	messages := got["messages"].([]any)
	require.Len(t, messages, 1)
	parts := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	image := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.Equal(t, "data:image/png;base64,cG5n", image["url"])
}

func TestOpenAINoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	o, err := NewOpenAI(Settings{Model: "gpt-4o-mini", APIKey: "k", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)

	_, err = o.Generate(context.Background(), Prompt{Text: "hi"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOllamaGenerate(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llava","message":{"role":"assistant","content":"A cat."},"done":true}` + "\n"))
	}))
	defer server.Close()

	o, err := NewOllama(Settings{Model: "llava", BaseURL: server.URL, TopK: 40})
	require.NoError(t, err)

	text, err := o.Generate(context.Background(), Prompt{
		Text:       "what is this",
		Attachment: &Attachment{MIMEType: "image/png", Data: []byte("png")},
	})
	require.NoError(t, err)
	assert.Equal(t, "A cat.", text)
	assert.Equal(t, "llava", got["model"])

	messages := got["messages"].([]any)
	require.Len(t, messages, 1)
	message := messages[0].(map[string]any)
	assert.Equal(t, "user", message["role"])
	assert.Equal(t, "what is this", message["content"])
	assert.Equal(t, []any{"cG5n"}, message["images"])
}

func TestModelTag(t *testing.T) {
	assert.Equal(t, "llama3:latest", modelTag("llama3"))
	assert.Equal(t, "llama3:latest", modelTag("llama3:latest"))
	assert.Equal(t, "llava:13b", modelTag("llava:13b"))
	assert.Equal(t, "", modelTag(" "))
}

func TestOllamaEnsureModel(t *testing.T) {
	pulled := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"llava:latest","model":"llava:latest"}]}`))
		case "/api/pull":
			pulled = true
			_, _ = w.Write([]byte(`{"status":"pulling","total":100,"completed":50}` + "\n" + `{"status":"success"}` + "\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	o, err := NewOllama(Settings{Model: "llava", BaseURL: server.URL})
	require.NoError(t, err)
	require.NoError(t, o.EnsureModel(context.Background()))
	assert.False(t, pulled)

	o.Settings.Model = "llama3"
	require.NoError(t, o.EnsureModel(context.Background()))
	assert.True(t, pulled)
}
