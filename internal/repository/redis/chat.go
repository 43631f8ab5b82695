package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/freeeve/qdice/internal/model"
)

// ChatHistory is the number of lines kept per table.
const ChatHistory = 100

func chatKey(tag string) string { return "chatlines-" + tag }

// Append stores a chat line at the head of the table's list and trims the
// list to ChatHistory entries.
func (c *Client) Append(ctx context.Context, tag string, line model.ChatLine) error {
	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("encode chat line: %w", err)
	}
	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, chatKey(tag), data)
	pipe.LTrim(ctx, chatKey(tag), 0, ChatHistory-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append chat line: %w", err)
	}
	return nil
}

// Recent returns the stored chat lines, oldest first.
func (c *Client) Recent(ctx context.Context, tag string) ([]model.ChatLine, error) {
	raw, err := c.rdb.LRange(ctx, chatKey(tag), 0, ChatHistory-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read chat lines: %w", err)
	}
	lines := make([]model.ChatLine, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var line model.ChatLine
		if err := json.Unmarshal([]byte(raw[i]), &line); err != nil {
			return nil, fmt.Errorf("decode chat line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}
