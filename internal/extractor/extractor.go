package extractor

import (
	"context"
)

// FormatBest is the synthetic format id that lets the collaborator pick the
// best available quality.
const FormatBest = "best"

// Progress phases reported by extractors.
const (
	PhaseDownloading = "downloading"
	PhaseMerging     = "merging"
)

// Format describes one downloadable quality option for a URL.
// Filesize is 0 when the size is unknown.
type Format struct {
	ID         string
	Resolution string
	Ext        string
	Filesize   int64
}

// ProgressEvent is one progress report from a running download.
// BytesTotal is 0 when the collaborator does not know the total yet.
type ProgressEvent struct {
	BytesDone  int64
	BytesTotal int64
	Phase      string
}

type ProgressFunc func(ProgressEvent)

// Request describes one download. OutputDir must be a directory private to
// this download; the extractor writes all intermediate and final files there.
type Request struct {
	URL       string
	FormatID  string
	OutputDir string
	Progress  ProgressFunc
}

// Extractor is the boundary to the media-extraction collaborator.
// ListFormats errors wrap utils.ErrExtractionFailed, Download errors wrap
// utils.ErrDownloadFailed. Download returns the absolute path of the final
// (merged) output file.
type Extractor interface {
	ListFormats(ctx context.Context, rawURL string) ([]Format, error)
	Download(ctx context.Context, req Request) (string, error)
}

// PrependAuto puts the synthetic "Auto" entry in front of formats, so a
// default selection exists even when every real format was filtered out.
func PrependAuto(formats []Format) []Format {
	auto := Format{
		ID:         FormatBest,
		Resolution: "Auto",
		Ext:        "auto",
		Filesize:   0,
	}
	return append([]Format{auto}, formats...)
}
