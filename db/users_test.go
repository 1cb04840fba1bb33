package db

import (
	"database/sql"
	"testing"

	"github.com/liamw1/oxibooru/common"
	"github.com/liamw1/oxibooru/config"
)

func TestCreateUserFirstAccountIsAdministrator(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	withTx(t, func(tx *sql.Tx) error {
		u, err := CreateUser(tx, &config.Defaults, "first", "password123", nil)
		if err != nil {
			return err
		}
		if u.Rank != common.RankAdministrator {
			t.Fatalf("expected the first account to be an administrator, got %v", u.Rank)
		}
		return nil
	})

	withTx(t, func(tx *sql.Tx) error {
		u, err := CreateUser(tx, &config.Defaults, "second", "password123", nil)
		if err != nil {
			return err
		}
		want := common.ParseRank(config.Defaults.Public.DefaultRank)
		if u.Rank != want {
			t.Fatalf("expected the second account to default to %v, got %v", want, u.Rank)
		}
		return nil
	})
}

func TestAuthenticateBasicRejectsWrongPassword(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	withTx(t, func(tx *sql.Tx) error {
		_, err := CreateUser(tx, &config.Defaults, "alice", "correct-horse", nil)
		return err
	})

	withTx(t, func(tx *sql.Tx) error {
		_, err := AuthenticateBasic(tx, &config.Defaults, "alice", "wrong-password")
		kind, ok := common.KindOf(err)
		if !ok || kind != common.KindCredentialsMismatch {
			t.Fatalf("expected KindCredentialsMismatch, got %v (ok=%v)", kind, ok)
		}
		return nil
	})

	withTx(t, func(tx *sql.Tx) error {
		u, err := AuthenticateBasic(tx, &config.Defaults, "alice", "correct-horse")
		if err != nil {
			t.Fatal(err)
		}
		if u.Name != "alice" {
			t.Fatalf("expected alice, got %s", u.Name)
		}
		return nil
	})
}

func TestCreateAndAuthenticateUserToken(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	var userID int64
	withTx(t, func(tx *sql.Tx) error {
		u, err := CreateUser(tx, &config.Defaults, "bob", "password123", nil)
		if err != nil {
			return err
		}
		userID = u.ID
		return nil
	})

	var rawToken string
	withTx(t, func(tx *sql.Tx) error {
		tok, err := CreateUserToken(tx, userID, "cli token", nil)
		if err != nil {
			return err
		}
		rawToken = string(tok.Token[:])
		return nil
	})

	withTx(t, func(tx *sql.Tx) error {
		u, err := AuthenticateToken(tx, "bob", rawToken)
		if err != nil {
			t.Fatal(err)
		}
		if u.Name != "bob" {
			t.Fatalf("expected bob, got %s", u.Name)
		}
		return nil
	})

	withTx(t, func(tx *sql.Tx) error {
		_, err := AuthenticateToken(tx, "bob", "not-the-right-token!")
		if err == nil {
			t.Fatal("expected an error for an unknown token")
		}
		return nil
	})
}
