package ytdlp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/extractor"
)

// progressPrefix marks stdout lines produced by our --progress-template.
const progressPrefix = "progress"

type videoInfo struct {
	Title   string       `json:"title"`
	Formats []formatInfo `json:"formats"`
}

type formatInfo struct {
	FormatID       string  `json:"format_id"`
	FormatNote     string  `json:"format_note"`
	Height         int     `json:"height"`
	Ext            string  `json:"ext"`
	Vcodec         string  `json:"vcodec"`
	Acodec         string  `json:"acodec"`
	Filesize       float64 `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
}

// parseFormats converts yt-dlp -J output into the format list served to
// clients. Only formats carrying both a video and an audio stream and a
// known, nonzero size are kept, so every listed option has a presentable
// size. The synthetic Auto entry is always first.
func parseFormats(data []byte) ([]extractor.Format, error) {
	var info videoInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse yt-dlp json: %w", err)
	}

	var formats []extractor.Format
	for _, f := range info.Formats {
		if f.Vcodec == "" || f.Vcodec == "none" {
			continue
		}
		if f.Acodec == "" || f.Acodec == "none" {
			continue
		}
		size := int64(f.Filesize)
		if size == 0 {
			size = int64(f.FilesizeApprox)
		}
		if size == 0 {
			continue
		}
		formats = append(formats, extractor.Format{
			ID:         f.FormatID,
			Resolution: resolutionFor(&f),
			Ext:        f.Ext,
			Filesize:   size,
		})
	}

	return extractor.PrependAuto(formats), nil
}

func resolutionFor(f *formatInfo) string {
	if f.FormatNote != "" {
		return f.FormatNote
	}
	if f.Height > 0 {
		return fmt.Sprintf("%dp", f.Height)
	}
	return "unknown"
}

// parseProgressLine parses one templated progress line of the form
// "progress <downloaded_bytes> <total_bytes> <total_bytes_estimate>".
// yt-dlp prints NA for fields it does not know.
func parseProgressLine(line string) (extractor.ProgressEvent, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != progressPrefix {
		return extractor.ProgressEvent{}, false
	}

	event := extractor.ProgressEvent{
		BytesDone: parseByteCount(fields[1]),
		Phase:     extractor.PhaseDownloading,
	}
	if len(fields) > 2 {
		event.BytesTotal = parseByteCount(fields[2])
	}
	if event.BytesTotal == 0 && len(fields) > 3 {
		event.BytesTotal = parseByteCount(fields[3])
	}
	return event, true
}

func parseByteCount(s string) int64 {
	if s == "" || s == "NA" || s == "null" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return int64(v)
}
