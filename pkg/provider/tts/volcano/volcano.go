// Package volcano provides a tts.Provider backed by the Volcano Engine
// (Bytedance) speech synthesis HTTP API. Each request submits the full text
// and receives the complete WAV payload base64-encoded in a JSON envelope.
//
// Usage:
//
//	p, err := volcano.New("appid", "access-token", "volcano_tts",
//	    volcano.WithVoice("BV001_streaming"),
//	)
//	wav, err := p.Synthesize(ctx, "你好！", tts.Voice{})
package volcano

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/calliope-voice/calliope/pkg/provider/tts"
)

const (
	defaultBaseURL = "https://openspeech.bytedance.com"
	defaultVoice   = "BV001_streaming"
	synthesisPath  = "/api/v1/tts"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithBaseURL overrides the API endpoint, e.g. to point at a regional
// cluster or a test server.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithVoice sets the default voice type used when the caller passes a Voice
// with an empty ID.
func WithVoice(voiceType string) Option {
	return func(p *Provider) {
		p.voice = voiceType
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Provider backed by the Volcano Engine TTS API.
type Provider struct {
	appID       string
	accessToken string
	cluster     string
	voice       string
	baseURL     string
	httpClient  *http.Client
}

// New creates a new Volcano Provider. appID, accessToken and cluster come
// from the Volcano Engine console and must all be non-empty.
func New(appID, accessToken, cluster string, opts ...Option) (*Provider, error) {
	if appID == "" || accessToken == "" || cluster == "" {
		return nil, errors.New("volcano: appID, accessToken and cluster must not be empty")
	}
	p := &Provider{
		appID:       appID,
		accessToken: accessToken,
		cluster:     cluster,
		voice:       defaultVoice,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- request/response envelope ----

type appBlock struct {
	AppID   string `json:"appid"`
	Token   string `json:"token"`
	Cluster string `json:"cluster"`
}

type userBlock struct {
	UID string `json:"uid"`
}

type audioBlock struct {
	VoiceType   string  `json:"voice_type"`
	Encoding    string  `json:"encoding"`
	SpeedRatio  float64 `json:"speed_ratio"`
	VolumeRatio float64 `json:"volume_ratio"`
	PitchRatio  float64 `json:"pitch_ratio"`
}

type requestBlock struct {
	ReqID        string `json:"reqid"`
	Text         string `json:"text"`
	TextType     string `json:"text_type"`
	Operation    string `json:"operation"`
	WithFrontend int    `json:"with_frontend"`
	FrontendType string `json:"frontend_type"`
}

type synthesisRequest struct {
	App     appBlock     `json:"app"`
	User    userBlock    `json:"user"`
	Audio   audioBlock   `json:"audio"`
	Request requestBlock `json:"request"`
}

type synthesisResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"` // base64-encoded audio
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	voiceType := voice.ID
	if voiceType == "" {
		voiceType = p.voice
	}

	reqBody := synthesisRequest{
		App: appBlock{
			AppID:   p.appID,
			Token:   "access_token", // placeholder field; real auth is the header
			Cluster: p.cluster,
		},
		User: userBlock{UID: "1"},
		Audio: audioBlock{
			VoiceType:   voiceType,
			Encoding:    "wav",
			SpeedRatio:  ratioOrDefault(voice.SpeedRatio),
			VolumeRatio: ratioOrDefault(voice.VolumeRatio),
			PitchRatio:  ratioOrDefault(voice.PitchRatio),
		},
		Request: requestBlock{
			ReqID:        uuid.NewString(),
			Text:         text,
			TextType:     "plain",
			Operation:    "query",
			WithFrontend: 1,
			FrontendType: "unitTson",
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("volcano: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+synthesisPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("volcano: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer;"+p.accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("volcano: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("volcano: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("volcano: server returned HTTP %d: %s", resp.StatusCode, truncate(body))
	}

	var result synthesisResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("volcano: parse response: %w", err)
	}
	if result.Data == "" {
		return nil, fmt.Errorf("volcano: no audio in response (code %d: %s)", result.Code, result.Message)
	}

	wav, err := base64.StdEncoding.DecodeString(result.Data)
	if err != nil {
		return nil, fmt.Errorf("volcano: decode audio payload: %w", err)
	}
	return wav, nil
}

// ratioOrDefault maps the zero value to the API default of 1.0.
func ratioOrDefault(v float64) float64 {
	if v == 0 {
		return 1.0
	}
	return v
}

// truncate caps an error response body for inclusion in an error message.
func truncate(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "…"
	}
	return string(body)
}
