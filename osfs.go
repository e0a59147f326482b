package confhttpd

import "os"

// osStat and osReadDir expose the small amount of filesystem metadata
// (is-directory, size, mod time, child names) that MarkdownHandler needs
// beyond what the FileSystem interface offers; StaticHandler also uses
// osStat for its directory check. They always hit the real OS: both
// handlers are exercised in tests only against temp directories, never
// against MemFileSystem.
func osStat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func osReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}
