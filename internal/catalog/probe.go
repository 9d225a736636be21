package catalog

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Prober reads audio and subtitle stream languages with ffprobe.
type Prober struct {
	ffprobePath string
	logger      zerolog.Logger
}

func NewProber(ffprobePath string, logger zerolog.Logger) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	// Try to find ffprobe in PATH
	if path, err := exec.LookPath(ffprobePath); err == nil {
		ffprobePath = path
	}

	return &Prober{
		ffprobePath: ffprobePath,
		logger:      logger,
	}
}

func (p *Prober) IsAvailable() bool {
	_, err := exec.LookPath(p.ffprobePath)
	return err == nil
}

func (p *Prober) Languages(ctx context.Context, filePath string) ([]string, []string, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		filePath,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		p.logger.Debug().Err(err).Str("file", filePath).Msg("ffprobe failed")
		return nil, nil, err
	}

	return parseProbeOutput(output)
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType string            `json:"codec_type"`
	Tags      map[string]string `json:"tags"`
}

// parseProbeOutput collects distinct stream languages in stream order.
// Undetermined ("und") and untagged streams are ignored.
func parseProbeOutput(output []byte) ([]string, []string, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, nil, err
	}

	var audio, subs []string
	for _, stream := range probe.Streams {
		lang := strings.ToLower(strings.TrimSpace(stream.Tags["language"]))
		if lang == "" || lang == "und" {
			continue
		}
		switch stream.CodecType {
		case "audio":
			audio = appendUnique(audio, lang)
		case "subtitle":
			subs = appendUnique(subs, lang)
		}
	}
	return audio, subs, nil
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
