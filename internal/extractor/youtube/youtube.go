// Package youtube implements the extraction collaborator natively for
// YouTube URLs. It is the fallback used when the yt-dlp binary is not
// installed: format listing and stream download go through kkdai/youtube,
// with ffmpeg merging separate audio/video streams for the "best" selection.
package youtube

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/extractor"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/logutils"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/utils"
)

type Extractor struct {
	client youtube.Client
	ffmpeg string
}

func New(ffmpegPath string) *Extractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Extractor{ffmpeg: ffmpegPath}
}

func (e *Extractor) ListFormats(ctx context.Context, rawURL string) ([]extractor.Format, error) {
	video, err := e.client.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, utils.WrapError(utils.ErrExtractionFailed, err.Error(), map[string]any{
			"url": rawURL,
		})
	}

	var formats []extractor.Format
	for i := range video.Formats {
		f := &video.Formats[i]
		if !isMuxed(f) || f.ContentLength == 0 {
			continue
		}
		formats = append(formats, extractor.Format{
			ID:         strconv.Itoa(f.ItagNo),
			Resolution: resolutionFor(f),
			Ext:        extFromMime(f.MimeType),
			Filesize:   f.ContentLength,
		})
	}

	return extractor.PrependAuto(formats), nil
}

func (e *Extractor) Download(ctx context.Context, req extractor.Request) (string, error) {
	video, err := e.client.GetVideoContext(ctx, req.URL)
	if err != nil {
		return "", utils.WrapError(utils.ErrDownloadFailed, err.Error(), map[string]any{
			"url": req.URL,
		})
	}

	formatID := req.FormatID
	if formatID == "" {
		formatID = extractor.FormatBest
	}

	if formatID != extractor.FormatBest {
		format, findErr := findByItag(video.Formats, formatID)
		if findErr != nil {
			return "", utils.WrapError(utils.ErrDownloadFailed, findErr.Error(), map[string]any{
				"url":       req.URL,
				"format_id": formatID,
			})
		}
		return e.downloadSingle(ctx, video, format, req)
	}

	if muxed := bestMuxedFormat(video.Formats); muxed != nil {
		return e.downloadSingle(ctx, video, muxed, req)
	}
	return e.downloadAndMerge(ctx, video, req)
}

// downloadSingle streams one muxed format straight to the output file.
func (e *Extractor) downloadSingle(
	ctx context.Context,
	video *youtube.Video,
	format *youtube.Format,
	req extractor.Request,
) (string, error) {
	outputPath := filepath.Join(req.OutputDir, utils.GenerateFileName(video.Title, extFromMime(format.MimeType)))
	if err := e.saveStream(ctx, video, format, outputPath, req.Progress, 0, format.ContentLength); err != nil {
		return "", err
	}
	return outputPath, nil
}

// downloadAndMerge fetches the best video-only and audio-only streams and
// merges them with ffmpeg into a single mp4.
func (e *Extractor) downloadAndMerge(
	ctx context.Context,
	video *youtube.Video,
	req extractor.Request,
) (string, error) {
	videoFormat, audioFormat, err := findBestFormats(video.Formats)
	if err != nil {
		return "", utils.WrapError(utils.ErrDownloadFailed, err.Error(), map[string]any{
			"url": req.URL,
		})
	}

	base := utils.SanitizeFileName(video.Title)
	if base == "" {
		base = video.ID
	}
	videoPath := filepath.Join(req.OutputDir, base+"_video."+extFromMime(videoFormat.MimeType))
	audioPath := filepath.Join(req.OutputDir, base+"_audio."+extFromMime(audioFormat.MimeType))
	finalPath := filepath.Join(req.OutputDir, base+".mp4")

	total := videoFormat.ContentLength + audioFormat.ContentLength

	if err := e.saveStream(ctx, video, videoFormat, videoPath, req.Progress, 0, total); err != nil {
		return "", err
	}
	if err := e.saveStream(ctx, video, audioFormat, audioPath, req.Progress, videoFormat.ContentLength, total); err != nil {
		return "", err
	}

	if req.Progress != nil {
		req.Progress(extractor.ProgressEvent{BytesDone: total, BytesTotal: total, Phase: extractor.PhaseMerging})
	}
	if err := e.mergeStreams(ctx, videoPath, audioPath, finalPath); err != nil {
		return "", err
	}

	for _, intermediate := range []string{videoPath, audioPath} {
		if removeErr := os.Remove(intermediate); removeErr != nil {
			logutils.Log.WithError(removeErr).Warnf("Failed to remove intermediate file %s", intermediate)
		}
	}

	return finalPath, nil
}

func (e *Extractor) saveStream(
	ctx context.Context,
	video *youtube.Video,
	format *youtube.Format,
	outputPath string,
	progress extractor.ProgressFunc,
	offset, total int64,
) error {
	stream, size, err := e.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return utils.WrapError(utils.ErrDownloadFailed, fmt.Sprintf("failed to get stream: %v", err), map[string]any{
			"itag": format.ItagNo,
		})
	}
	defer stream.Close()

	if total == 0 {
		total = size
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return utils.WrapError(utils.ErrDownloadFailed, fmt.Sprintf("failed to create output file: %v", err), nil)
	}
	defer file.Close()

	counter := &progressWriter{fn: progress, offset: offset, total: total}
	if _, err := io.Copy(file, io.TeeReader(stream, counter)); err != nil {
		os.Remove(outputPath)
		return utils.WrapError(utils.ErrDownloadFailed, fmt.Sprintf("failed to write stream: %v", err), map[string]any{
			"itag": format.ItagNo,
		})
	}
	return nil
}

func (e *Extractor) mergeStreams(ctx context.Context, videoPath, audioPath, finalPath string) error {
	cmd := exec.CommandContext(ctx, e.ffmpeg,
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		finalPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		logutils.Log.WithError(err).Errorf("ffmpeg merge failed: %s", string(output))
		return utils.WrapError(utils.ErrDownloadFailed, "failed to merge video and audio streams", nil)
	}
	return nil
}

// progressWriter reports cumulative byte progress as a stream is copied.
// offset accounts for previously finished streams of the same task.
type progressWriter struct {
	fn     extractor.ProgressFunc
	done   int64
	offset int64
	total  int64
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.done += int64(len(p))
	if w.fn != nil {
		w.fn(extractor.ProgressEvent{
			BytesDone:  w.offset + w.done,
			BytesTotal: w.total,
			Phase:      extractor.PhaseDownloading,
		})
	}
	return len(p), nil
}

func isMuxed(f *youtube.Format) bool {
	return f.QualityLabel != "" && f.AudioChannels > 0
}

func resolutionFor(f *youtube.Format) string {
	if f.QualityLabel != "" {
		return f.QualityLabel
	}
	return "unknown"
}

func extFromMime(mimeType string) string {
	mediaType := mimeType
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	if idx := strings.Index(mediaType, "/"); idx >= 0 {
		return mediaType[idx+1:]
	}
	return "mp4"
}

func findByItag(formats []youtube.Format, formatID string) (*youtube.Format, error) {
	itag, err := strconv.Atoi(formatID)
	if err != nil {
		return nil, fmt.Errorf("unknown format id %q", formatID)
	}
	for i := range formats {
		if formats[i].ItagNo == itag {
			return &formats[i], nil
		}
	}
	return nil, fmt.Errorf("format %q not available for this video", formatID)
}

func bestMuxedFormat(formats []youtube.Format) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !isMuxed(f) {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best
}

func findBestFormats(formats []youtube.Format) (videoFormat, audioFormat *youtube.Format, err error) {
	for i := range formats {
		f := &formats[i]
		if f.QualityLabel != "" && (videoFormat == nil || f.Bitrate > videoFormat.Bitrate) {
			videoFormat = f
		}
		if f.QualityLabel == "" && f.AudioQuality != "" && (audioFormat == nil || f.Bitrate > audioFormat.Bitrate) {
			audioFormat = f
		}
	}
	if videoFormat == nil || audioFormat == nil {
		return nil, nil, fmt.Errorf("could not find suitable video or audio format")
	}
	return videoFormat, audioFormat, nil
}
