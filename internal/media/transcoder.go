// Package media provides video concatenation via the ffmpeg CLI.
package media

import "context"

// Transcoder defines the interface for concatenating source clips.
// Implementations invoke ffmpeg or a compatible tool.
type Transcoder interface {
	// Concat joins the input files, in order, into a single output file.
	// The manifest file is written at manifestPath in the concat demuxer
	// format. The invocation is bounded by the transcoder's deadline; a
	// non-zero exit surfaces the tool's stderr in the returned error.
	Concat(ctx context.Context, inputPaths []string, manifestPath, outputPath string) error
}
