package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"preface-cli/internal/api"
	"preface-cli/internal/config"
)

// chunkSource replays fixed chunks as a stream.Source.
type chunkSource struct {
	chunks []string
	block  bool
	err    error
}

func (s *chunkSource) GenerateStream(ctx context.Context, openid, content string, onChunk func([]byte)) error {
	if s.err != nil {
		return s.err
	}
	for _, c := range s.chunks {
		onChunk([]byte(c))
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	activeProfile = ""
	return &config.Config{
		Server:        "http://localhost:8080",
		OpenID:        "user-1",
		TypingSpeedMS: 1,
		IdlePollMS:    1,
	}
}

const (
	frameTone = `{"id":"chatcmpl-3","choices":[{"delta":{"content":"Tone: warm"},"finish_reason":null}]}`
	frameStop = `{"choices":[{"finish_reason":"stop"}]}`
)

func TestRunGenerateTypesText(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	err := runGenerate(context.Background(), &out, &chunkSource{chunks: []string{frameTone[:20], frameTone[20:] + frameStop}}, cfg, "tone", generateOptions{})
	if err != nil {
		t.Fatalf("runGenerate: %v", err)
	}
	if !strings.HasPrefix(out.String(), "Tone: warm\n") {
		t.Errorf("output = %q, want typed text first", out.String())
	}
	if cfg.LastPromptID != "chatcmpl-3" {
		t.Errorf("LastPromptID = %q, want chatcmpl-3", cfg.LastPromptID)
	}

	saved, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if saved.LastPromptID != "chatcmpl-3" {
		t.Errorf("saved LastPromptID = %q, want chatcmpl-3", saved.LastPromptID)
	}
}

func TestRunGenerateCopy(t *testing.T) {
	orig := writeClipboard
	defer func() { writeClipboard = orig }()

	var copied string
	writeClipboard = func(s string) error {
		copied = s
		return nil
	}

	cfg := testConfig(t)
	var out bytes.Buffer
	err := runGenerate(context.Background(), &out, &chunkSource{chunks: []string{frameTone, frameStop}}, cfg, "tone", generateOptions{copy: true})
	if err != nil {
		t.Fatalf("runGenerate: %v", err)
	}
	if copied != "Tone: warm" {
		t.Errorf("copied = %q, want %q", copied, "Tone: warm")
	}
}

func TestRunGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     *chunkSource
		wantErr string
		wantOut string
	}{
		{
			name:    "transport failure before any byte",
			src:     &chunkSource{err: errors.New("connection refused")},
			wantErr: "generation failed: connection refused",
		},
		{
			name:    "in-band error keeps partial text",
			src:     &chunkSource{chunks: []string{frameTone, `{"code":500,"msg":"quota exceeded"}`}},
			wantErr: "generation stopped by an error: quota exceeded",
			wantOut: "Tone: warm\n\nError: quota exceeded",
		},
		{
			name:    "stream ends without marker",
			src:     &chunkSource{chunks: []string{frameTone}},
			wantErr: "generation stopped by an error",
			wantOut: "Tone: warm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			var out bytes.Buffer
			err := runGenerate(context.Background(), &out, tt.src, cfg, "tone", generateOptions{})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output = %q, want it to contain %q", out.String(), tt.wantOut)
			}
			if cfg.LastPromptID != "" {
				t.Errorf("LastPromptID = %q, want unset after a failure", cfg.LastPromptID)
			}
		})
	}
}

func TestRunGenerateInterrupted(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	src := &chunkSource{chunks: []string{frameTone}, block: true}

	done := make(chan error, 1)
	var out bytes.Buffer
	go func() {
		done <- runGenerate(ctx, &out, src, cfg, "tone", generateOptions{})
	}()
	cancel()

	if err := <-done; err != nil {
		t.Errorf("interrupted generation returned %v, want nil", err)
	}
}

func TestRunGenerateValidation(t *testing.T) {
	cfg := testConfig(t)
	cfg.OpenID = ""
	err := runGenerate(context.Background(), &bytes.Buffer{}, &chunkSource{}, cfg, "tone", generateOptions{})
	if err == nil {
		t.Fatal("expected an error without an openid")
	}
}

func TestParseFavoriteArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		last       string
		wantAction string
		wantID     string
		wantErr    bool
	}{
		{"defaults to last", nil, "p-last", api.FavoriteAdd, "p-last", false},
		{"id only", []string{"p1"}, "p-last", api.FavoriteAdd, "p1", false},
		{"remove last", []string{"remove"}, "p-last", api.FavoriteRemove, "p-last", false},
		{"action and id", []string{"remove", "p2"}, "", api.FavoriteRemove, "p2", false},
		{"unknown action", []string{"toggle", "p2"}, "", "", "", true},
		{"nothing to favorite", nil, "", "", "", true},
		{"add without last", []string{"add"}, "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, id, err := parseFavoriteArgs(tt.args, tt.last)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if action != tt.wantAction || id != tt.wantID {
				t.Errorf("got (%q, %q), want (%q, %q)", action, id, tt.wantAction, tt.wantID)
			}
		})
	}
}

func TestCmdSet(t *testing.T) {
	testConfig(t)

	if err := cmdSet("server", "http://example.com/"); err != nil {
		t.Fatalf("set server: %v", err)
	}
	if err := cmdSet("speed", "40"); err != nil {
		t.Fatalf("set speed: %v", err)
	}
	if err := cmdSet("speed", "-1"); err == nil {
		t.Error("expected an error for a negative speed")
	}
	if err := cmdSet("color", "red"); err == nil {
		t.Error("expected an error for an unknown key")
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if cfg.Server != "http://example.com" {
		t.Errorf("Server = %q", cfg.Server)
	}
	if cfg.TypingSpeedMS != 40 {
		t.Errorf("TypingSpeedMS = %d, want 40", cfg.TypingSpeedMS)
	}
}

type recordsAPI struct {
	api.PrefaceAPI
	page      int
	favorites bool
}

func (r *recordsAPI) History(openid string, page int) (*api.RecordList, error) {
	r.page = page
	return &api.RecordList{Page: page, Records: []api.PromptRecord{{PromptID: "p1", Content: "hello"}}}, nil
}

func (r *recordsAPI) Favorites(openid string, page int) (*api.RecordList, error) {
	r.page = page
	r.favorites = true
	return &api.RecordList{Page: page}, nil
}

func TestCmdRecords(t *testing.T) {
	client := &recordsAPI{}
	if err := cmdRecords(client, "user-1", false, 2); err != nil {
		t.Fatalf("history: %v", err)
	}
	if client.page != 2 || client.favorites {
		t.Errorf("history called with page %d favorites %v", client.page, client.favorites)
	}

	if err := cmdRecords(client, "user-1", true, 1); err != nil {
		t.Fatalf("favorites: %v", err)
	}
	if !client.favorites {
		t.Error("favorites endpoint not used")
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"config", "favorite", "favorites", "generate", "history", "profiles", "serve", "set", "version"}
	for _, name := range want {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	for _, args := range [][]string{{"version"}, {"--version"}} {
		root := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs(args)
		if err := root.Execute(); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		if got := out.String(); got != "preface "+version+"\n" {
			t.Errorf("%v printed %q", args, got)
		}
	}
}

func TestGenerateRequiresText(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"generate"})
	if err := root.Execute(); err == nil {
		t.Error("expected an error without prompt text")
	}
}
