package discord

import (
	"encoding/json"
	"fmt"
	"io"

	"transcripthost/internal/domain"

	"github.com/bwmarrin/discordgo"
)

// DecodeMessages reads a JSON array of Discord message objects, e.g. a saved
// response of the channel messages endpoint. The result is sorted oldest first.
func DecodeMessages(r io.Reader) ([]domain.Message, error) {
	var raw []*discordgo.Message
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	messages, err := convertMessages(raw)
	if err != nil {
		return nil, err
	}
	SortChronological(messages)
	return messages, nil
}

func convertMessages(raw []*discordgo.Message) ([]domain.Message, error) {
	messages := make([]domain.Message, 0, len(raw))
	for i, m := range raw {
		if m == nil || m.Author == nil || m.Timestamp.IsZero() {
			return nil, fmt.Errorf("%w: record %d is not a message", domain.ErrMalformedResponse, i)
		}
		messages = append(messages, convertMessage(m))
	}
	return messages, nil
}

func convertMessage(m *discordgo.Message) domain.Message {
	msg := domain.Message{
		ID:      m.ID,
		Content: m.Content,
		Author: domain.Author{
			ID:         m.Author.ID,
			Username:   m.Author.Username,
			GlobalName: m.Author.GlobalName,
			Avatar:     m.Author.Avatar,
			Bot:        m.Author.Bot,
		},
		Timestamp: m.Timestamp,
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, domain.Attachment{
			URL:         a.URL,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		msg.Embeds = append(msg.Embeds, domain.Embed{
			Title:       e.Title,
			Description: e.Description,
		})
	}
	return msg
}
