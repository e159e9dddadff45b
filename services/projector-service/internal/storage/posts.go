package storage

import (
	"context"
	"time"
)

type PostRow struct {
	PostID            string
	PostType          string
	AuthorUserID      string
	AuthorDisplayName *string
	AuthorAvatar      *string
	AuthorType        *string
	TextContent       *string
	MediaJSON         *string
	LinkURL           *string
	LinkTitle         *string
	LinkDescription   *string
	LinkImage         *string
	LinkSiteName      *string
	ViewCount         int64
	LikeCount         int64
	CommentCount      int64
	ShareCount        int64
	SaveCount         int64
	EngagementRate    float64
	LastCommentAt     *time.Time
	DeletedAt         *time.Time
	PublishedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Audit
}

var postsTable = table{
	name: "posts",
	key:  []string{"post_id"},
	cols: []string{
		"post_id", "post_type", "author_user_id", "author_display_name", "author_avatar", "author_type",
		"text_content", "media_json",
		"link_url", "link_title", "link_description", "link_image", "link_site_name",
		"view_count", "like_count", "comment_count", "share_count", "save_count", "engagement_rate",
		"last_comment_at", "deleted_at", "published_at",
		"created_at", "updated_at", "event_id", "event_timestamp",
	},
	immutable: []string{"created_at"},
}

var upsertPostSQL = postsTable.upsertSQL()

func (s *Store) UpsertPost(ctx context.Context, p PostRow) error {
	_, err := s.db.exec(ctx, upsertPostSQL,
		p.PostID, p.PostType, p.AuthorUserID, p.AuthorDisplayName, p.AuthorAvatar, p.AuthorType,
		p.TextContent, p.MediaJSON,
		p.LinkURL, p.LinkTitle, p.LinkDescription, p.LinkImage, p.LinkSiteName,
		p.ViewCount, p.LikeCount, p.CommentCount, p.ShareCount, p.SaveCount, p.EngagementRate,
		utcPtr(p.LastCommentAt), utcPtr(p.DeletedAt), utcPtr(p.PublishedAt),
		utc(p.CreatedAt), utc(p.UpdatedAt), p.EventID, utc(p.EventTimestamp),
	)
	return err
}

func (s *Store) SoftDeletePost(ctx context.Context, postID string, deletedAt time.Time, audit Audit) error {
	return requireRow(s.db.exec(ctx,
		`UPDATE posts SET deleted_at = ?, event_id = ?, event_timestamp = ? WHERE post_id = ?`,
		utc(deletedAt), audit.EventID, utc(audit.EventTimestamp), postID,
	))
}
