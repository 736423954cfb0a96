package socialapi

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"replyflow/internal/domain/entity"
)

type messageBody struct {
	Text string `json:"text"`
}

type createdTime struct {
	Time int64 `json:"time"`
}

type commentElement struct {
	ID      string      `json:"id"`
	Actor   string      `json:"actor"`
	Message messageBody `json:"message"`
	Created createdTime `json:"created"`
}

type commentsEnvelope struct {
	Elements []commentElement `json:"elements"`
}

type postEnvelope struct {
	ID              string `json:"id"`
	Author          string `json:"author"`
	SpecificContent struct {
		ShareContent struct {
			ShareCommentary messageBody `json:"shareCommentary"`
			Media           []struct {
				OriginalURL string `json:"originalUrl"`
				MediaType   string `json:"mediaType"`
			} `json:"media"`
		} `json:"com.linkedin.ugc.ShareContent"`
	} `json:"specificContent"`
	Created createdTime `json:"created"`
}

func parseComments(data []byte, postID string) ([]entity.Comment, error) {
	var envelope commentsEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("parse comments response: %w", err)
	}

	comments := make([]entity.Comment, 0, len(envelope.Elements))
	for _, el := range envelope.Elements {
		comments = append(comments, entity.Comment{
			ID:         el.ID,
			PostID:     postID,
			AuthorID:   el.Actor,
			AuthorName: displayName(el.Actor),
			Text:       el.Message.Text,
			CreatedAt:  time.UnixMilli(el.Created.Time).UTC(),
		})
	}
	return comments, nil
}

func parsePost(data []byte) (*entity.Post, error) {
	var envelope postEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("parse post response: %w", err)
	}

	post := &entity.Post{
		ID:        envelope.ID,
		AuthorID:  envelope.Author,
		Content:   envelope.SpecificContent.ShareContent.ShareCommentary.Text,
		Metadata:  make(map[string]string),
		CreatedAt: time.UnixMilli(envelope.Created.Time).UTC(),
	}

	for _, media := range envelope.SpecificContent.ShareContent.Media {
		if media.OriginalURL == "" {
			continue
		}
		post.MediaURLs = append(post.MediaURLs, media.OriginalURL)
		mediaType := media.MediaType
		if mediaType == "" {
			mediaType = "unknown"
		}
		post.Metadata["media_type"] = mediaType
	}

	return post, nil
}

// displayName derives a placeholder display name from an actor URN. The
// API only returns the URN; resolving the real profile name would need a
// separate call per commenter.
func displayName(actor string) string {
	if actor == "" {
		return ""
	}
	id := actor
	if i := strings.LastIndex(actor, ":"); i >= 0 {
		id = actor[i+1:]
	}
	if len(id) > 8 {
		id = id[:8]
	}
	return "User " + id
}
