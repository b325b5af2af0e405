package live

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

type setupMessage struct {
	Setup setup `json:"setup"`
}

type setup struct {
	Model                    string           `json:"model"`
	GenerationConfig         generationConfig `json:"generationConfig"`
	SystemInstruction        *content         `json:"systemInstruction,omitempty"`
	Tools                    []toolSet        `json:"tools,omitempty"`
	InputAudioTranscription  *struct{}        `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}        `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	SpeechConfig       speechConfig `json:"speechConfig"`
}

type speechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type toolSet struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type realtimeInputMessage struct {
	RealtimeInput struct {
		MediaChunks []inlineData `json:"mediaChunks"`
	} `json:"realtimeInput"`
}

type clientContentMessage struct {
	ClientContent struct {
		Turns        []content `json:"turns"`
		TurnComplete bool      `json:"turnComplete"`
	} `json:"clientContent"`
}

type toolResponseMessage struct {
	ToolResponse struct {
		FunctionResponses []functionResponse `json:"functionResponses"`
	} `json:"toolResponse"`
}

type functionResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

func buildSetup(cfg Config) setupMessage {
	model := cfg.Model
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	s := setup{
		Model: model,
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}
	s.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = cfg.Voice
	if cfg.SystemInstruction != "" {
		s.SystemInstruction = &content{Parts: []part{{Text: cfg.SystemInstruction}}}
	}
	if len(cfg.Tools) > 0 {
		s.Tools = []toolSet{{FunctionDeclarations: cfg.Tools}}
	}
	return setupMessage{Setup: s}
}

func buildRealtimeInput(mimeType string, data []byte) realtimeInputMessage {
	var m realtimeInputMessage
	m.RealtimeInput.MediaChunks = []inlineData{{
		MIMEType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}}
	return m
}

func buildClientText(text string) clientContentMessage {
	var m clientContentMessage
	m.ClientContent.Turns = []content{{Role: "user", Parts: []part{{Text: text}}}}
	m.ClientContent.TurnComplete = true
	return m
}

func buildToolResponse(responses []FunctionResponse) toolResponseMessage {
	var m toolResponseMessage
	for _, r := range responses {
		m.ToolResponse.FunctionResponses = append(m.ToolResponse.FunctionResponses, functionResponse{
			ID:       r.ID,
			Name:     r.Name,
			Response: map[string]any{"result": r.Result},
		})
	}
	return m
}

// serverMessage is the inbound wire format.
type serverMessage struct {
	SetupComplete *json.RawMessage `json:"setupComplete"`
	ServerContent *struct {
		ModelTurn *struct {
			Parts []part `json:"parts"`
		} `json:"modelTurn"`
		InputTranscription *struct {
			Text string `json:"text"`
		} `json:"inputTranscription"`
		OutputTranscription *struct {
			Text string `json:"text"`
		} `json:"outputTranscription"`
		TurnComplete bool `json:"turnComplete"`
		Interrupted  bool `json:"interrupted"`
	} `json:"serverContent"`
	ToolCall *struct {
		FunctionCalls []struct {
			ID   string         `json:"id"`
			Name string         `json:"name"`
			Args map[string]any `json:"args"`
		} `json:"functionCalls"`
	} `json:"toolCall"`
	ToolCallCancellation *struct {
		IDs []string `json:"ids"`
	} `json:"toolCallCancellation"`
	GoAway *json.RawMessage `json:"goAway"`
}

// parseMessage decodes a server frame. Audio parts that are not valid
// base64 are skipped.
func parseMessage(data []byte) (Message, error) {
	var sm serverMessage
	if err := json.Unmarshal(data, &sm); err != nil {
		return Message{}, err
	}

	var m Message
	m.SetupComplete = sm.SetupComplete != nil
	m.GoAway = sm.GoAway != nil

	if sm.ToolCall != nil {
		for _, fc := range sm.ToolCall.FunctionCalls {
			args := fc.Args
			if args == nil {
				args = map[string]any{}
			}
			m.ToolCalls = append(m.ToolCalls, FunctionCall{ID: fc.ID, Name: fc.Name, Args: args})
		}
	}
	if sm.ToolCallCancellation != nil {
		m.Cancelled = sm.ToolCallCancellation.IDs
	}

	if sc := sm.ServerContent; sc != nil {
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p.InlineData == nil || !strings.HasPrefix(p.InlineData.MIMEType, "audio/pcm") {
					continue
				}
				audio, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil || len(audio) == 0 {
					continue
				}
				m.Audio = append(m.Audio, audio)
			}
		}
		if sc.InputTranscription != nil {
			m.InputTranscript = sc.InputTranscription.Text
		}
		if sc.OutputTranscription != nil {
			m.OutputTranscript = sc.OutputTranscription.Text
		}
		m.Interrupted = sc.Interrupted
		m.TurnComplete = sc.TurnComplete
	}
	return m, nil
}
