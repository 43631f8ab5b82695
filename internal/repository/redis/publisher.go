package redis

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publish sends a JSON-encoded message on a pub/sub channel so other
// processes can relay it to their clients.
func (c *Client) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", topic, err)
	}
	if err := c.rdb.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
