package imager

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/liamw1/oxibooru/config"
)

// mimeByExtension is extensionByMime inverted, for recovering a temp
// upload's mime type from its token's extension (spec.md §6: reused
// uploads are referenced by a `*Token` field; the token alone must be
// enough to resolve what was uploaded).
var mimeByExtension = func() map[string]string {
	m := make(map[string]string, len(extensionByMime))
	for mime, ext := range extensionByMime {
		m[ext] = mime
	}
	return m
}()

func tempUploadDir(conf *config.Config) string {
	return filepath.Join(conf.DataDir, "temp")
}

// SaveTempUpload writes data under a fresh unguessable token in the
// temp uploads directory and returns that token, per spec.md §6's
// `temp/<token>` layout. The token is a uuid4 plus the content's
// extension, so a later request can recover the mime type from the
// token string alone without a database lookup.
func SaveTempUpload(conf *config.Config, data io.Reader, mimeType string) (token string, err error) {
	token = uuid.NewString() + "." + extensionFor(mimeType)
	path := filepath.Join(tempUploadDir(conf), token)
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	return token, nil
}

// ReadTempUpload opens a previously saved temp upload by its token and
// reports the mime type recovered from the token's extension, for the
// `*Token` reused-upload path of spec.md §6.
func ReadTempUpload(conf *config.Config, token string) (r io.ReadCloser, mimeType string, err error) {
	ext := strings.TrimPrefix(filepath.Ext(token), ".")
	mimeType, ok := mimeByExtension[ext]
	if !ok {
		return nil, "", os.ErrInvalid
	}
	path := filepath.Join(tempUploadDir(conf), token)
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	return f, mimeType, nil
}

// ConsumeTempUpload removes a temp upload's file once its content has
// been read into a permanent post/avatar location.
func ConsumeTempUpload(conf *config.Config, token string) error {
	err := os.Remove(filepath.Join(tempUploadDir(conf), token))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// PurgeTempUploads deletes every file left in the temp uploads
// directory, run once at server startup so an unconsumed token from a
// previous process never lingers (original_source's
// filesystem::purge_temporary_uploads, called once per boot).
func PurgeTempUploads(conf *config.Config) error {
	dir := tempUploadDir(conf)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
