package imager

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/liamw1/oxibooru/config"
)

const fileCreationFlags = os.O_WRONLY | os.O_CREATE | os.O_EXCL

// extensionByMime maps a post's stored mime type to the extension its
// on-disk file and thumbnail are written with.
var extensionByMime = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"video/webm":      "webm",
	"video/mp4":       "mp4",
	"audio/mpeg":      "mp3",
	"audio/flac":      "flac",
	"application/pdf": "pdf",
	"application/x-shockwave-flash": "swf",
}

func extensionFor(mimeType string) string {
	if ext, ok := extensionByMime[mimeType]; ok {
		return ext
	}
	return "bin"
}

// ContentFilename derives the unguessable on-disk filename for a
// post's content from its checksum, keyed on the process'
// content_secret (spec.md §4.I: "a content_secret used when
// generating unguessable on-disk filenames"). Deterministic in the
// checksum so the admin reset_filenames job (spec.md §9) can
// regenerate every filename after a content_secret rotation without
// touching file bytes.
func ContentFilename(conf *config.Config, checksum [32]byte) string {
	mac := hmac.New(sha256.New, []byte(conf.ContentSecret))
	mac.Write(checksum[:])
	return hex.EncodeToString(mac.Sum(nil))[:32]
}

// FilePaths returns the source and generated-thumbnail paths for a
// post's content, rooted at the configured data directory.
func FilePaths(conf *config.Config, name, mimeType string) (src, thumb string) {
	src = filepath.Join(conf.DataDir, "posts", name+"."+extensionFor(mimeType))
	thumb = filepath.Join(conf.DataDir, "thumbnails", name+".jpg")
	return src, thumb
}

func filePaths(conf *config.Config, name, mimeType string) (src, thumb string) {
	return FilePaths(conf, name, mimeType)
}

// WriteAssets writes a post's source content and generated thumbnail
// to disk under the configured data directory.
func WriteAssets(conf *config.Config, name, mimeType string, src, thumb io.Reader) error {
	srcPath, thumbPath := filePaths(conf, name, mimeType)
	if err := writeFile(srcPath, src); err != nil {
		return err
	}
	return writeFile(thumbPath, thumb)
}

func writeFile(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
		return err
	}
	file, err := os.OpenFile(path, fileCreationFlags, 0660)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(file, r)
	return err
}

// DeleteAssets removes a post's source content and thumbnail from
// disk, iff the DeleteSourceFiles policy is enabled (spec.md §3's
// Post lifecycle: "optional content and thumbnail files are removed
// iff the 'delete source files' policy is on").
func DeleteAssets(conf *config.Config, name, mimeType string) error {
	if !conf.DeleteSourceFiles {
		return nil
	}
	srcPath, thumbPath := filePaths(conf, name, mimeType)
	if err := os.Remove(srcPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(thumbPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RenameAssets moves a post's on-disk files from their old filename to
// a new one, used by the reset_filenames admin job when content_secret
// rotates (spec.md §9).
func RenameAssets(conf *config.Config, oldName, newName, mimeType string) error {
	oldSrc, oldThumb := filePaths(conf, oldName, mimeType)
	newSrc, newThumb := filePaths(conf, newName, mimeType)
	if err := os.Rename(oldSrc, newSrc); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Rename(oldThumb, newThumb); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
