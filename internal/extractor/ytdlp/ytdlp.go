// Package ytdlp implements the extraction collaborator on top of the yt-dlp
// binary. Format listing uses the JSON dump mode; downloads stream templated
// progress lines from stdout so the worker gets byte-level events.
package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/extractor"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/logutils"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/utils"
)

const outputTemplate = "%(title)s.%(ext)s"

// progressTemplate makes yt-dlp print one machine-readable line per progress
// tick: "progress <downloaded> <total> <estimate>".
const progressTemplate = "download:" + progressPrefix +
	" %(progress.downloaded_bytes)s %(progress.total_bytes)s %(progress.total_bytes_estimate)s"

type Extractor struct {
	binary string
	proxy  string
}

func New(binary, proxy string) *Extractor {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Extractor{binary: binary, proxy: proxy}
}

func (e *Extractor) ListFormats(ctx context.Context, rawURL string) ([]extractor.Format, error) {
	args := e.commonArgs()
	args = append(args, "-J", "--no-download", rawURL)

	cmd := exec.CommandContext(ctx, e.binary, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, utils.WrapError(utils.ErrExtractionFailed, commandErrorDetail(err), map[string]any{
			"url": rawURL,
		})
	}

	formats, err := parseFormats(output)
	if err != nil {
		return nil, utils.WrapError(utils.ErrExtractionFailed, err.Error(), map[string]any{
			"url": rawURL,
		})
	}
	return formats, nil
}

func (e *Extractor) Download(ctx context.Context, req extractor.Request) (string, error) {
	formatID := req.FormatID
	if formatID == "" {
		formatID = extractor.FormatBest
	}

	args := e.commonArgs()
	args = append(args,
		"--newline",
		"-f", formatID,
		"--merge-output-format", "mp4",
		"-o", filepath.Join(req.OutputDir, outputTemplate),
		"--progress-template", progressTemplate,
		"--print", "after_move:filepath",
		req.URL,
	)

	cmd := exec.CommandContext(ctx, e.binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", utils.WrapError(utils.ErrDownloadFailed, "failed to create stdout pipe", nil)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", utils.WrapError(utils.ErrDownloadFailed, "failed to create stderr pipe", nil)
	}

	if err := cmd.Start(); err != nil {
		return "", utils.WrapError(utils.ErrDownloadFailed, fmt.Sprintf("failed to start yt-dlp: %v", err), nil)
	}

	errorOutput := make(chan string, 1)
	go func() {
		defer close(errorOutput)
		errorOutput <- collectOutput(stderr)
	}()

	finalPath := e.scanStdout(stdout, req.Progress)

	processErr := cmd.Wait()
	stderrOutput := <-errorOutput

	if ctx.Err() != nil {
		return "", utils.WrapError(utils.ErrDownloadFailed, "download canceled", map[string]any{
			"url": req.URL,
		})
	}
	if processErr != nil {
		logutils.Log.WithError(processErr).WithField("url", req.URL).Errorf("yt-dlp exited with error: %s", stderrOutput)
		detail := strings.TrimSpace(stderrOutput)
		if detail == "" {
			detail = processErr.Error()
		}
		return "", utils.WrapError(utils.ErrDownloadFailed, detail, map[string]any{
			"url":       req.URL,
			"format_id": formatID,
		})
	}

	if finalPath == "" {
		finalPath = newestFile(req.OutputDir)
	}
	if finalPath == "" {
		return "", utils.WrapError(utils.ErrDownloadFailed, "yt-dlp produced no output file", map[string]any{
			"url": req.URL,
		})
	}
	return finalPath, nil
}

// scanStdout forwards progress events and returns the final filepath printed
// by --print after_move:filepath, if any.
func (e *Extractor) scanStdout(stdout io.Reader, progress extractor.ProgressFunc) string {
	var finalPath string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if event, ok := parseProgressLine(line); ok {
			if progress != nil {
				progress(event)
			}
			continue
		}
		if filepath.IsAbs(line) {
			finalPath = line
		}
	}
	return finalPath
}

func (e *Extractor) commonArgs() []string {
	args := []string{"--no-warnings", "--no-playlist"}
	if e.proxy != "" {
		args = append(args, "--proxy", e.proxy)
	}
	return args
}

func collectOutput(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	var output strings.Builder
	for scanner.Scan() {
		output.WriteString(scanner.Text() + "\n")
	}
	return output.String()
}

// commandErrorDetail extracts stderr from an exec.ExitError so the caller
// sees yt-dlp's own message instead of "exit status 1".
func commandErrorDetail(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if detail := strings.TrimSpace(string(exitErr.Stderr)); detail != "" {
			return detail
		}
	}
	return err.Error()
}

// newestFile is the fallback when yt-dlp did not print the final path.
// The output directory is private to one download, so the most recently
// modified complete file is the result.
func newestFile(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var newest string
	var newestMod int64
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".part") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest = filepath.Join(dir, entry.Name())
			newestMod = mod
		}
	}
	return newest
}
