package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-concierge/pkg/pcm"
)

// fakeServer runs a Gemini Live lookalike. handle is called after the
// setup exchange with the server side of the connection.
func fakeServer(t *testing.T, handle func(ws *websocket.Conn, setup map[string]any)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			http.Error(w, "bad key", http.StatusForbidden)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		var setup map[string]any
		if err := ws.ReadJSON(&setup); err != nil {
			return
		}
		if err := ws.WriteJSON(map[string]any{"setupComplete": map[string]any{}}); err != nil {
			return
		}
		handle(ws, setup)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func recv(t *testing.T, s Stream) Message {
	t.Helper()
	select {
	case msg, ok := <-s.Messages():
		if !ok {
			t.Fatalf("stream closed: %v", s.Err())
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestDialSendsSetup(t *testing.T) {
	setupCh := make(chan map[string]any, 1)
	url := fakeServer(t, func(ws *websocket.Conn, setup map[string]any) {
		setupCh <- setup
		ws.ReadMessage()
	})

	d := NewWSDialer(nil)
	s, err := d.Dial(context.Background(), Config{
		APIKey:            "test-key",
		URL:               url,
		SystemInstruction: "be polite",
		Tools:             []FunctionDeclaration{{Name: "checkWeather", Description: "weather"}},
	})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer s.Close()

	setup := (<-setupCh)["setup"].(map[string]any)
	if setup["model"] != "models/"+DefaultModel {
		t.Errorf("model = %v", setup["model"])
	}
	voice := setup["generationConfig"].(map[string]any)["speechConfig"].(map[string]any)["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)["voiceName"]
	if voice != DefaultVoice {
		t.Errorf("voice = %v", voice)
	}
	if _, ok := setup["inputAudioTranscription"]; !ok {
		t.Error("inputAudioTranscription missing")
	}
	if _, ok := setup["outputAudioTranscription"]; !ok {
		t.Error("outputAudioTranscription missing")
	}
	tools := setup["tools"].([]any)[0].(map[string]any)["functionDeclarations"].([]any)
	if len(tools) != 1 || tools[0].(map[string]any)["name"] != "checkWeather" {
		t.Errorf("tools = %v", tools)
	}
}

func TestDialMissingKey(t *testing.T) {
	_, err := NewWSDialer(nil).Dial(context.Background(), Config{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestDialRejected(t *testing.T) {
	url := fakeServer(t, func(*websocket.Conn, map[string]any) {})
	_, err := NewWSDialer(nil).Dial(context.Background(), Config{APIKey: "wrong", URL: url})
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestStreamRoundTrip(t *testing.T) {
	audio := []byte{1, 0, 2, 0}
	sent := make(chan map[string]any, 4)
	url := fakeServer(t, func(ws *websocket.Conn, _ map[string]any) {
		ws.WriteJSON(map[string]any{
			"toolCall": map[string]any{"functionCalls": []any{
				map[string]any{"id": "c1", "name": "checkWeather", "args": map[string]any{"date": "2099-01-01"}},
			}},
		})
		ws.WriteJSON(map[string]any{
			"serverContent": map[string]any{
				"modelTurn": map[string]any{"parts": []any{
					map[string]any{"inlineData": map[string]any{
						"mimeType": "audio/pcm;rate=24000",
						"data":     base64.StdEncoding.EncodeToString(audio),
					}},
				}},
				"outputTranscription": map[string]any{"text": "Hello"},
				"turnComplete":        true,
			},
		})
		for {
			var m map[string]any
			if err := ws.ReadJSON(&m); err != nil {
				return
			}
			sent <- m
		}
	})

	s, err := NewWSDialer(nil).Dial(context.Background(), Config{APIKey: "test-key", URL: url})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer s.Close()

	msg := recv(t, s)
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].ID != "c1" || msg.ToolCalls[0].Args["date"] != "2099-01-01" {
		t.Fatalf("tool call = %+v", msg.ToolCalls)
	}

	msg = recv(t, s)
	if len(msg.Audio) != 1 || string(msg.Audio[0]) != string(audio) {
		t.Errorf("audio = %v", msg.Audio)
	}
	if msg.OutputTranscript != "Hello" || !msg.TurnComplete {
		t.Errorf("content = %+v", msg)
	}

	if err := s.SendAudio(pcm.Blob{Data: audio, MIMEType: pcm.MIMEType(pcm.InputSampleRate)}); err != nil {
		t.Fatalf("SendAudio failed: %v", err)
	}
	if err := s.SendText("hi"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	if err := s.SendToolResponse(FunctionResponse{ID: "c1", Name: "checkWeather", Result: map[string]any{"condition": "Rainy"}}); err != nil {
		t.Fatalf("SendToolResponse failed: %v", err)
	}

	got := <-sent
	chunk := got["realtimeInput"].(map[string]any)["mediaChunks"].([]any)[0].(map[string]any)
	if chunk["mimeType"] != "audio/pcm;rate=16000" {
		t.Errorf("mimeType = %v", chunk["mimeType"])
	}

	got = <-sent
	cc := got["clientContent"].(map[string]any)
	if cc["turnComplete"] != true {
		t.Errorf("clientContent = %v", cc)
	}

	got = <-sent
	fr := got["toolResponse"].(map[string]any)["functionResponses"].([]any)[0].(map[string]any)
	if fr["id"] != "c1" || fr["response"].(map[string]any)["result"].(map[string]any)["condition"] != "Rainy" {
		t.Errorf("functionResponse = %v", fr)
	}
}

func TestServerCloseIsTransportError(t *testing.T) {
	url := fakeServer(t, func(ws *websocket.Conn, _ map[string]any) {
		ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "boom"))
	})

	s, err := NewWSDialer(nil).Dial(context.Background(), Config{APIKey: "test-key", URL: url})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer s.Close()

	select {
	case _, ok := <-s.Messages():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	if !IsTransport(s.Err()) {
		t.Fatalf("expected transport error, got %v", s.Err())
	}
}

func TestLocalCloseHasNoError(t *testing.T) {
	url := fakeServer(t, func(ws *websocket.Conn, _ map[string]any) {
		ws.ReadMessage()
	})

	s, err := NewWSDialer(nil).Dial(context.Background(), Config{APIKey: "test-key", URL: url})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	s.Close()

	if s.Err() != nil {
		t.Errorf("Err after local close = %v", s.Err())
	}
	if err := s.SendText("late"); !errors.Is(err, ErrClosed) {
		t.Errorf("send after close = %v", err)
	}
}

func TestParseMessage(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"serverContent": map[string]any{
			"modelTurn": map[string]any{"parts": []any{
				map[string]any{"text": "thinking"},
				map[string]any{"inlineData": map[string]any{"mimeType": "audio/pcm;rate=24000", "data": "!!notbase64"}},
			}},
			"inputTranscription": map[string]any{"text": "book a table"},
			"interrupted":        true,
		},
		"toolCallCancellation": map[string]any{"ids": []string{"c9"}},
		"goAway":               map[string]any{"timeLeft": "5s"},
	})

	m, err := parseMessage(raw)
	if err != nil {
		t.Fatalf("parseMessage failed: %v", err)
	}
	if len(m.Audio) != 0 {
		t.Errorf("expected invalid audio to be skipped, got %d chunks", len(m.Audio))
	}
	if m.InputTranscript != "book a table" || !m.Interrupted || !m.GoAway {
		t.Errorf("message = %+v", m)
	}
	if len(m.Cancelled) != 1 || m.Cancelled[0] != "c9" {
		t.Errorf("cancelled = %v", m.Cancelled)
	}
}

func TestMockStream(t *testing.T) {
	s := NewMockStream()
	s.Deliver(Message{TurnComplete: true})
	if msg := <-s.Messages(); !msg.TurnComplete {
		t.Error("expected delivered message")
	}

	s.Fail(errors.New("reset"))
	if _, ok := <-s.Messages(); ok {
		t.Error("expected closed channel after Fail")
	}
	if !IsTransport(s.Err()) {
		t.Errorf("Err = %v", s.Err())
	}
	if s.Deliver(Message{}) {
		t.Error("Deliver after Fail should report false")
	}
	s.Close()
	if err := s.SendText("x"); !errors.Is(err, ErrClosed) {
		t.Errorf("SendText after Close = %v", err)
	}
}
