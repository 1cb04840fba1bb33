package db

import (
	"database/sql"
	"testing"

	"github.com/liamw1/oxibooru/common"
	"github.com/liamw1/oxibooru/query"
)

func TestCompileSpecialRequiresCallerForLikedDislikedFav(t *testing.T) {
	for _, name := range []string{"liked", "disliked", "fav"} {
		_, _, err := compileSpecial(name, nil)
		kind, ok := common.KindOf(err)
		if !ok || kind != common.KindMalformedInput {
			t.Fatalf("special:%s with no caller: expected KindMalformedInput, got %v (ok=%v)", name, kind, ok)
		}
	}
}

func TestCompileSpecialTumbleweedAllowsAnonymousCaller(t *testing.T) {
	_, joinStats, err := compileSpecial("tumbleweed", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !joinStats {
		t.Fatal("expected tumbleweed to require the post_statistics join")
	}
}

func TestCompileSpecialUnknownNameErrors(t *testing.T) {
	_, _, err := compileSpecial("not-a-real-filter", nil)
	kind, ok := common.KindOf(err)
	if !ok || kind != common.KindMalformedInput {
		t.Fatalf("expected KindMalformedInput for an unknown filter, got %v (ok=%v)", kind, ok)
	}
}

func TestCompileSpecialLikedScopesToCaller(t *testing.T) {
	callerID := int64(7)
	_, joinStats, err := compileSpecial("liked", &callerID)
	if err != nil {
		t.Fatal(err)
	}
	if joinStats {
		t.Fatal("liked filters against post_scores directly, no post_statistics join needed")
	}
}

func TestSearchPostsFiltersBySpecialFav(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	var fan, favoritePost int64
	withTx(t, func(tx *sql.Tx) error {
		fan = createTestUser(t, tx, "fan").ID
		favoritePost = createTestPost(t, tx, nil, 1).ID
		createTestPost(t, tx, nil, 2)
		return SetFavorite(tx, fan, favoritePost, true)
	})

	withTx(t, func(tx *sql.Tx) error {
		result, err := SearchPosts(tx, PostSearchRequest{
			Query: query.Query{
				Tokens: []query.Token{{Kind: query.KindSpecial, Key: "fav"}},
			},
			CallerID: &fan,
			SafetyOK: true,
			Limit:    100,
		})
		if err != nil {
			return err
		}
		if len(result.IDs) != 1 || result.IDs[0] != favoritePost {
			t.Fatalf("expected only %d, got %v", favoritePost, result.IDs)
		}
		if result.Total != 1 {
			t.Fatalf("expected total=1, got %d", result.Total)
		}
		return nil
	})

	withTx(t, func(tx *sql.Tx) error {
		result, err := SearchPosts(tx, PostSearchRequest{
			SafetyOK: true,
			Limit:    100,
		})
		if err != nil {
			return err
		}
		if result.Total != 2 {
			t.Fatalf("expected total=2 with no filter, got %d", result.Total)
		}
		if len(result.IDs) != 2 {
			t.Fatalf("expected 2 ids, got %v", result.IDs)
		}
		return nil
	})
}

func TestSearchPostsFiltersByTagName(t *testing.T) {
	requireDB(t)
	clearAllTables(t)

	var tagged int64
	withTx(t, func(tx *sql.Tx) error {
		tagged = createTestPost(t, tx, nil, 1, "kitten").ID
		createTestPost(t, tx, nil, 2)
		return nil
	})

	withTx(t, func(tx *sql.Tx) error {
		result, err := SearchPosts(tx, PostSearchRequest{
			Query: query.Query{
				Tokens: []query.Token{{Kind: query.KindAnonymous, Value: query.Value{Scalars: []string{"kitten"}}}},
			},
			SafetyOK: true,
			Limit:    100,
		})
		if err != nil {
			return err
		}
		if len(result.IDs) != 1 || result.IDs[0] != tagged {
			t.Fatalf("expected only %d, got %v", tagged, result.IDs)
		}
		return nil
	})
}
