//go:build integration

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/freeeve/qdice/internal/model"
	"github.com/freeeve/qdice/internal/testutil"
)

var testRDB *goredis.Client

func setup(t *testing.T) *Client {
	t.Helper()
	if testRDB == nil {
		testRDB = testutil.SetupRedis(t)
	}
	testutil.CleanupRedis(t, testRDB)
	return &Client{rdb: testRDB}
}

func TestChatRecentOldestFirst(t *testing.T) {
	c := setup(t)
	ctx := context.Background()

	for _, msg := range []string{"hola", "que tal", "adios"} {
		if err := c.Append(ctx, "Espana", model.ChatLine{Name: "Ana", Message: msg, SentAt: time.Now()}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	lines, err := c.Recent(ctx, "Espana")
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0].Message != "hola" || lines[2].Message != "adios" {
		t.Fatalf("unexpected order: %+v", lines)
	}
}

func TestChatTrimmedToHistory(t *testing.T) {
	c := setup(t)
	ctx := context.Background()

	for i := 0; i < ChatHistory+20; i++ {
		if err := c.Append(ctx, "Lagos", model.ChatLine{Name: "bot", Message: fmt.Sprint(i)}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	n, err := c.rdb.LLen(ctx, chatKey("Lagos")).Result()
	if err != nil {
		t.Fatalf("llen: %v", err)
	}
	if n != ChatHistory {
		t.Fatalf("expected %d lines, got %d", ChatHistory, n)
	}
	lines, err := c.Recent(ctx, "Lagos")
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if lines[0].Message != "20" || lines[len(lines)-1].Message != fmt.Sprint(ChatHistory+19) {
		t.Fatalf("unexpected window: first %q last %q", lines[0].Message, lines[len(lines)-1].Message)
	}
}

func TestChatEmptyTable(t *testing.T) {
	c := setup(t)

	lines, err := c.Recent(context.Background(), "Empty")
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected no lines, got %d", len(lines))
	}
}

func TestPublishDeliversJSON(t *testing.T) {
	c := setup(t)
	ctx := context.Background()

	sub := c.rdb.Subscribe(ctx, "tables/Espana/clients")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := c.Publish(ctx, "tables/Espana/clients", map[string]string{"type": "chat"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var got map[string]string
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got["type"] != "chat" {
			t.Fatalf("unexpected payload: %s", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}
