package db

import "database/sql"

// createTriggers wires the triggers that keep every derived-statistics
// row of spec.md §4.B eventually consistent with the base tables,
// without the write path ever touching a statistics row directly.
// Registered by table. Most are Postgres deferred constraint triggers,
// which settle once per transaction at commit rather than once per row
// event (spec.md §4.B: "eventually consistent... settle by commit");
// the seed_*_statistics, post_featured, note_added and user_registered
// triggers are plain AFTER triggers that fire immediately per row.
func createTriggers(tx *sql.Tx) error {
	return execAll(tx,
		// One statistics row is seeded per resource on insert, and
		// removed by ON DELETE CASCADE from the FK to the base table.
		`create function seed_post_statistics() returns trigger as $$
		begin
			insert into post_statistics (post_id) values (new.id);
			update database_statistics set post_count = post_count + 1 where id = 1;
			if new.uploader_id is not null then
				insert into user_statistics (user_id, upload_count)
					values (new.uploader_id, 1)
					on conflict (user_id) do update
						set upload_count = user_statistics.upload_count + 1;
			end if;
			return new;
		end;
		$$ language plpgsql`,
		`create trigger seed_post_statistics_trigger
			after insert on posts
			for each row execute procedure seed_post_statistics()`,

		`create function retire_post_statistics() returns trigger as $$
		begin
			update database_statistics set post_count = post_count - 1 where id = 1;
			return old;
		end;
		$$ language plpgsql`,
		`create constraint trigger retire_post_statistics_trigger
			after delete on posts
			deferrable initially deferred
			for each row execute procedure retire_post_statistics()`,

		`create function seed_tag_statistics() returns trigger as $$
		begin
			insert into tag_statistics (tag_id) values (new.id);
			update database_statistics set tag_count = tag_count + 1 where id = 1;
			insert into category_statistics (category_id, usage_count)
				values (new.category_id, 0)
				on conflict (category_id) do nothing;
			return new;
		end;
		$$ language plpgsql`,
		`create trigger seed_tag_statistics_trigger
			after insert on tags
			for each row execute procedure seed_tag_statistics()`,

		`create function seed_pool_statistics() returns trigger as $$
		begin
			update database_statistics set pool_count = pool_count + 1 where id = 1;
			return new;
		end;
		$$ language plpgsql`,
		`create trigger seed_pool_statistics_trigger
			after insert on pools
			for each row execute procedure seed_pool_statistics()`,
		`create function retire_pool_statistics() returns trigger as $$
		begin
			update database_statistics set pool_count = pool_count - 1 where id = 1;
			return old;
		end;
		$$ language plpgsql`,
		`create constraint trigger retire_pool_statistics_trigger
			after delete on pools
			deferrable initially deferred
			for each row execute procedure retire_pool_statistics()`,

		`create function seed_comment_statistics() returns trigger as $$
		begin
			insert into comment_statistics (comment_id) values (new.id);
			update database_statistics set comment_count = comment_count + 1 where id = 1;
			update post_statistics
				set comment_count = comment_count + 1, last_comment_time = new.creation_time
				where post_id = new.post_id;
			if new.user_id is not null then
				insert into user_statistics (user_id, comment_count)
					values (new.user_id, 1)
					on conflict (user_id) do update
						set comment_count = user_statistics.comment_count + 1;
			end if;
			return new;
		end;
		$$ language plpgsql`,
		`create trigger seed_comment_statistics_trigger
			after insert on comments
			for each row execute procedure seed_comment_statistics()`,
		`create function retire_comment_statistics() returns trigger as $$
		begin
			update database_statistics set comment_count = comment_count - 1 where id = 1;
			update post_statistics set comment_count = comment_count - 1 where post_id = old.post_id;
			return old;
		end;
		$$ language plpgsql`,
		`create constraint trigger retire_comment_statistics_trigger
			after delete on comments
			deferrable initially deferred
			for each row execute procedure retire_comment_statistics()`,

		// Association tables: post_tags/tag usage, post_favorites,
		// post_features, post_relations, pool_posts, scores. Each insert
		// trigger adds a row's contribution to every counter it feeds
		// (post_tags feeds three) and the matching delete trigger takes
		// it back; post_features has an insert trigger only, and no
		// trigger fires on UPDATE (spec.md §4.B).
		`create function post_tag_added() returns trigger as $$
		begin
			update post_statistics set tag_count = tag_count + 1 where post_id = new.post_id;
			update tag_statistics set usage_count = usage_count + 1 where tag_id = new.tag_id;
			update category_statistics set usage_count = usage_count + 1
				where category_id = (select category_id from tags where id = new.tag_id);
			return new;
		end;
		$$ language plpgsql`,
		`create constraint trigger post_tag_added_trigger
			after insert on post_tags
			deferrable initially deferred
			for each row execute procedure post_tag_added()`,
		`create function post_tag_removed() returns trigger as $$
		begin
			update post_statistics set tag_count = tag_count - 1 where post_id = old.post_id;
			update tag_statistics set usage_count = usage_count - 1 where tag_id = old.tag_id;
			update category_statistics set usage_count = usage_count - 1
				where category_id = (select category_id from tags where id = old.tag_id);
			return old;
		end;
		$$ language plpgsql`,
		`create constraint trigger post_tag_removed_trigger
			after delete on post_tags
			deferrable initially deferred
			for each row execute procedure post_tag_removed()`,

		`create function post_favorited() returns trigger as $$
		begin
			update post_statistics
				set favorite_count = favorite_count + 1, last_favorite_time = new.time
				where post_id = new.post_id;
			update user_statistics set favorite_count = favorite_count + 1
				where user_id = new.user_id;
			return new;
		end;
		$$ language plpgsql`,
		`create constraint trigger post_favorited_trigger
			after insert on post_favorites
			deferrable initially deferred
			for each row execute procedure post_favorited()`,
		`create function post_unfavorited() returns trigger as $$
		begin
			update post_statistics set favorite_count = favorite_count - 1 where post_id = old.post_id;
			update user_statistics set favorite_count = favorite_count - 1 where user_id = old.user_id;
			return old;
		end;
		$$ language plpgsql`,
		`create constraint trigger post_unfavorited_trigger
			after delete on post_favorites
			deferrable initially deferred
			for each row execute procedure post_unfavorited()`,

		`create function post_featured() returns trigger as $$
		begin
			update post_statistics
				set feature_count = feature_count + 1, last_feature_time = new.time
				where post_id = new.post_id;
			return new;
		end;
		$$ language plpgsql`,
		`create trigger post_featured_trigger
			after insert on post_features
			for each row execute procedure post_featured()`,

		`create function post_related() returns trigger as $$
		begin
			update post_statistics set relation_count = relation_count + 1 where post_id = new.post_id;
			update post_statistics set relation_count = relation_count + 1 where post_id = new.child_id;
			return new;
		end;
		$$ language plpgsql`,
		`create constraint trigger post_related_trigger
			after insert on post_relations
			deferrable initially deferred
			for each row execute procedure post_related()`,
		`create function post_unrelated() returns trigger as $$
		begin
			update post_statistics set relation_count = relation_count - 1 where post_id = old.post_id;
			update post_statistics set relation_count = relation_count - 1 where post_id = old.child_id;
			return old;
		end;
		$$ language plpgsql`,
		`create constraint trigger post_unrelated_trigger
			after delete on post_relations
			deferrable initially deferred
			for each row execute procedure post_unrelated()`,

		`create function post_pooled() returns trigger as $$
		begin
			update post_statistics set pool_count = pool_count + 1 where post_id = new.post_id;
			return new;
		end;
		$$ language plpgsql`,
		`create constraint trigger post_pooled_trigger
			after insert on pool_posts
			deferrable initially deferred
			for each row execute procedure post_pooled()`,
		`create function post_unpooled() returns trigger as $$
		begin
			update post_statistics set pool_count = pool_count - 1 where post_id = old.post_id;
			return old;
		end;
		$$ language plpgsql`,
		`create constraint trigger post_unpooled_trigger
			after delete on pool_posts
			deferrable initially deferred
			for each row execute procedure post_unpooled()`,

		`create function post_scored() returns trigger as $$
		begin
			update post_statistics set score = score + new.score where post_id = new.post_id;
			return new;
		end;
		$$ language plpgsql`,
		`create constraint trigger post_scored_trigger
			after insert on post_scores
			deferrable initially deferred
			for each row execute procedure post_scored()`,
		`create function post_unscored() returns trigger as $$
		begin
			update post_statistics set score = score - old.score where post_id = old.post_id;
			return old;
		end;
		$$ language plpgsql`,
		`create constraint trigger post_unscored_trigger
			after delete on post_scores
			deferrable initially deferred
			for each row execute procedure post_unscored()`,

		`create function comment_scored() returns trigger as $$
		begin
			update comment_statistics set score = score + new.score where comment_id = new.comment_id;
			return new;
		end;
		$$ language plpgsql`,
		`create constraint trigger comment_scored_trigger
			after insert on comment_scores
			deferrable initially deferred
			for each row execute procedure comment_scored()`,
		`create function comment_unscored() returns trigger as $$
		begin
			update comment_statistics set score = score - old.score where comment_id = old.comment_id;
			return old;
		end;
		$$ language plpgsql`,
		`create constraint trigger comment_unscored_trigger
			after delete on comment_scores
			deferrable initially deferred
			for each row execute procedure comment_unscored()`,

		`create function note_added() returns trigger as $$
		begin
			update post_statistics set note_count = note_count + 1 where post_id = new.post_id;
			return new;
		end;
		$$ language plpgsql`,
		`create trigger note_added_trigger
			after insert on post_notes
			for each row execute procedure note_added()`,
		`create function note_removed() returns trigger as $$
		begin
			update post_statistics set note_count = note_count - 1 where post_id = old.post_id;
			return old;
		end;
		$$ language plpgsql`,
		`create constraint trigger note_removed_trigger
			after delete on post_notes
			deferrable initially deferred
			for each row execute procedure note_removed()`,

		`create function user_registered() returns trigger as $$
		begin
			update database_statistics set user_count = user_count + 1 where id = 1;
			insert into user_statistics (user_id) values (new.id);
			return new;
		end;
		$$ language plpgsql`,
		`create trigger user_registered_trigger
			after insert on users
			for each row execute procedure user_registered()`,
	)
}
