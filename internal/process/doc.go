// Package process runs one subprocess fed through its standard input.
//
// Process wraps os/exec for encoder-style children:
//   - Frames are written to stdin with Write
//   - Stop closes stdin first so the child can flush and exit on its own
//   - SIGINT follows after a graceful timeout, SIGKILL after a second one
//   - Output lines are streamed through a pluggable log parser and handler
//
// Example:
//
//	p := process.New("rec-1", "ffmpeg -f mjpeg -i pipe:0 out.mp4", logger,
//	    process.WithStdin(),
//	    process.WithLogParser(ffmpegLogger, ffmpeg.ParseLogLevel))
//	if err := p.Start(); err != nil {
//	    return err
//	}
//	p.Write(jpeg)
//	exitCode := p.Stop()
package process
