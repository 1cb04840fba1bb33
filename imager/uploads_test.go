package imager

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveAndReadTempUpload(t *testing.T) {
	conf := testConfig(t)
	data := []byte{1, 2, 3, 4}

	token, err := SaveTempUpload(conf, bytes.NewReader(data), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(token, ".png") {
		t.Fatalf("expected token to carry the .png extension, got %q", token)
	}

	r, mimeType, err := ReadTempUpload(conf, token)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if mimeType != "image/png" {
		t.Fatalf("expected image/png, got %s", mimeType)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("expected %v, got %v", data, got)
	}
}

func TestTempUploadTokensAreDistinct(t *testing.T) {
	conf := testConfig(t)
	a, err := SaveTempUpload(conf, bytes.NewReader([]byte{1}), "image/jpeg")
	if err != nil {
		t.Fatal(err)
	}
	b, err := SaveTempUpload(conf, bytes.NewReader([]byte{1}), "image/jpeg")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("two uploads of identical content produced the same token")
	}
}

func TestReadTempUploadRejectsUnknownExtension(t *testing.T) {
	conf := testConfig(t)
	if _, _, err := ReadTempUpload(conf, "not-a-real-token.xyz"); err == nil {
		t.Fatal("expected an error for an unrecognised token extension")
	}
}

func TestConsumeTempUpload(t *testing.T) {
	conf := testConfig(t)
	token, err := SaveTempUpload(conf, bytes.NewReader([]byte{9}), "image/gif")
	if err != nil {
		t.Fatal(err)
	}
	if err := ConsumeTempUpload(conf, token); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(tempUploadDir(conf), token)); !os.IsNotExist(err) {
		t.Fatal("expected temp upload file to be removed")
	}
	// consuming a token twice is not an error: the caller need not track
	// whether cleanup already ran.
	if err := ConsumeTempUpload(conf, token); err != nil {
		t.Fatalf("expected no error on double-consume, got %v", err)
	}
}

func TestPurgeTempUploads(t *testing.T) {
	conf := testConfig(t)
	tokA, err := SaveTempUpload(conf, bytes.NewReader([]byte{1}), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	tokB, err := SaveTempUpload(conf, bytes.NewReader([]byte{2}), "image/jpeg")
	if err != nil {
		t.Fatal(err)
	}

	if err := PurgeTempUploads(conf); err != nil {
		t.Fatal(err)
	}

	for _, tok := range []string{tokA, tokB} {
		if _, err := os.Stat(filepath.Join(tempUploadDir(conf), tok)); !os.IsNotExist(err) {
			t.Fatalf("expected %s to be purged", tok)
		}
	}
}

func TestPurgeTempUploadsMissingDirIsNotAnError(t *testing.T) {
	conf := testConfig(t)
	if err := PurgeTempUploads(conf); err != nil {
		t.Fatalf("expected no error when the temp directory does not yet exist, got %v", err)
	}
}
