// Package pipeline implements the four processing stages a job passes
// through: download, transcribe, clip, render. Stages shell out to yt-dlp,
// whisper, and ffmpeg; command execution is injectable so tests never touch
// the real tools.
package pipeline
