package projection

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/md-rashed-zaman/shopsync/libs/events"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/registry"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/storage"
)

type postPayload struct {
	PostType *string `json:"post_type"`
	Author   *struct {
		UserID      *string `json:"user_id"`
		DisplayName *string `json:"display_name"`
		Avatar      *string `json:"avatar"`
		AuthorType  *string `json:"author_type"`
	} `json:"author"`
	TextContent *string         `json:"text_content"`
	Media       json.RawMessage `json:"media"`
	LinkPreview *struct {
		URL         *string `json:"url"`
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Image       *string `json:"image"`
		SiteName    *string `json:"site_name"`
	} `json:"link_preview"`
	Stats *struct {
		ViewCount      intField   `json:"view_count"`
		LikeCount      intField   `json:"like_count"`
		CommentCount   intField   `json:"comment_count"`
		ShareCount     intField   `json:"share_count"`
		SaveCount      intField   `json:"save_count"`
		EngagementRate floatField `json:"engagement_rate"`
		LastCommentAt  *string    `json:"last_comment_at"`
	} `json:"stats"`
	DeletedAt   *string `json:"deleted_at"`
	PublishedAt *string `json:"published_at"`
	CreatedAt   *string `json:"created_at"`
	UpdatedAt   *string `json:"updated_at"`
}

type PostProjector struct {
	store  PostStore
	logger *slog.Logger
}

func NewPostProjector(store PostStore, logger *slog.Logger) *PostProjector {
	return &PostProjector{store: store, logger: logger}
}

func (p *PostProjector) Register(r *registry.Registry) error {
	for _, t := range []events.Type{events.PostCreated, events.PostUpdated, events.PostPublished} {
		if err := registry.Handle(r, t, p.upsert); err != nil {
			return err
		}
	}
	return registry.Handle(r, events.PostDeleted, p.delete)
}

func (p *PostProjector) upsert(ctx context.Context, env events.Envelope, in postPayload) error {
	info, err := infoOf(env)
	if err != nil {
		return err
	}
	row := storage.PostRow{
		PostID:      info.entityID,
		PostType:    str(in.PostType),
		TextContent: in.TextContent,
		MediaJSON:   jsonText(in.Media),
		DeletedAt:   parseTime(in.DeletedAt),
		PublishedAt: parseTime(in.PublishedAt),
		CreatedAt:   timeOr(in.CreatedAt, info.at),
		UpdatedAt:   timeOr(in.UpdatedAt, info.at),
		Audit:       info.audit,
	}
	if a := in.Author; a != nil {
		row.AuthorUserID = str(a.UserID)
		row.AuthorDisplayName = a.DisplayName
		row.AuthorAvatar = a.Avatar
		row.AuthorType = a.AuthorType
	}
	if l := in.LinkPreview; l != nil {
		row.LinkURL = l.URL
		row.LinkTitle = l.Title
		row.LinkDescription = l.Description
		row.LinkImage = l.Image
		row.LinkSiteName = l.SiteName
	}
	if s := in.Stats; s != nil {
		row.ViewCount = i64(s.ViewCount)
		row.LikeCount = i64(s.LikeCount)
		row.CommentCount = i64(s.CommentCount)
		row.ShareCount = i64(s.ShareCount)
		row.SaveCount = i64(s.SaveCount)
		row.EngagementRate = f64(s.EngagementRate)
		row.LastCommentAt = parseTime(s.LastCommentAt)
	}
	return p.store.UpsertPost(ctx, row)
}

func (p *PostProjector) delete(ctx context.Context, env events.Envelope, in deletedPayload) error {
	info, err := infoOf(env)
	if err != nil {
		return err
	}
	err = p.store.SoftDeletePost(ctx, info.entityID, timeOr(in.DeletedAt, info.at), info.audit)
	return missingRow(p.logger, env, err)
}
