// Package ytdlp acquires job sources. URLs are downloaded with yt-dlp into
// the job directory; local files are copied there so the job never touches
// the caller's original.
package ytdlp
