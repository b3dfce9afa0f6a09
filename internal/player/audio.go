package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"carevoice-backend/config"
	"carevoice-backend/internal/wire"
)

// Speaker is the device's audio output.
type Speaker interface {
	Speak(ctx context.Context, text, language string) error
	PlayFile(ctx context.Context, url string) error
}

// CommandSpeaker runs external programs for speech and file playback.
type CommandSpeaker struct {
	speak []string
	play  []string
}

func NewCommandSpeaker(cfg config.AudioConfig) *CommandSpeaker {
	return &CommandSpeaker{speak: cfg.SpeakCommand, play: cfg.PlayCommand}
}

func (s *CommandSpeaker) Speak(ctx context.Context, text, language string) error {
	return run(ctx, s.speak, strings.NewReplacer("{text}", text, "{lang}", language))
}

func (s *CommandSpeaker) PlayFile(ctx context.Context, url string) error {
	return run(ctx, s.play, strings.NewReplacer("{url}", url))
}

// expand substitutes placeholders argument by argument, so values are never
// split or interpreted by a shell.
func expand(tmpl []string, r *strings.Replacer) []string {
	args := make([]string, len(tmpl))
	for i, a := range tmpl {
		args[i] = r.Replace(a)
	}
	return args
}

func run(ctx context.Context, tmpl []string, r *strings.Replacer) error {
	if len(tmpl) == 0 {
		return errors.New("no audio command configured")
	}
	args := expand(tmpl, r)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", args[0], err, msg)
		}
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return nil
}

// Play renders an announcement on sp.
func Play(ctx context.Context, sp Speaker, a wire.Announcement) error {
	switch a.Type {
	case wire.TypeTTS:
		if a.Text == nil || *a.Text == "" {
			return fmt.Errorf("announcement %s has no text", a.ID)
		}
		lang := a.Language
		if lang == "" {
			lang = "en-US"
		}
		return sp.Speak(ctx, *a.Text, lang)
	case wire.TypeMP3:
		if a.AudioURL == nil || *a.AudioURL == "" {
			return fmt.Errorf("announcement %s has no audio url", a.ID)
		}
		return sp.PlayFile(ctx, *a.AudioURL)
	default:
		return fmt.Errorf("announcement %s has unknown type %q", a.ID, a.Type)
	}
}
