package auth

import (
	"encoding/base64"
	"testing"

	"github.com/liamw1/oxibooru/common"
	"github.com/liamw1/oxibooru/test"
)

func TestParseAuthorizationAnonymous(t *testing.T) {
	creds, err := ParseAuthorization("")
	if err != nil {
		t.Fatal(err)
	}
	if creds.Scheme != SchemeAnonymous {
		test.LogUnexpected(t, SchemeAnonymous, creds.Scheme)
	}
}

func TestParseAuthorizationBasic(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("alice:hunter2"))
	creds, err := ParseAuthorization("Basic " + encoded)
	if err != nil {
		t.Fatal(err)
	}
	if creds.Scheme != SchemeBasic || creds.Username != "alice" || creds.Password != "hunter2" {
		test.LogUnexpected(t, "alice/hunter2", creds)
	}
}

func TestParseAuthorizationToken(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("alice:deadbeef"))
	creds, err := ParseAuthorization("Token " + encoded)
	if err != nil {
		t.Fatal(err)
	}
	if creds.Scheme != SchemeToken || creds.Username != "alice" || creds.Token != "deadbeef" {
		test.LogUnexpected(t, "alice/deadbeef", creds)
	}
}

func TestParseAuthorizationMalformed(t *testing.T) {
	cases := []string{"Basic", "Bogus " + base64.StdEncoding.EncodeToString([]byte("a:b")), "Basic !!!"}
	for _, c := range cases {
		if _, err := ParseAuthorization(c); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}

func TestRequiresAuthentication(t *testing.T) {
	if auth := RequiresAuthentication(common.RankAnonymous); auth {
		t.Fatal("anonymous rank should not require authentication")
	}
	if auth := RequiresAuthentication(common.RankRegular); !auth {
		t.Fatal("regular rank should require authentication")
	}
}
