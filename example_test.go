package authclient_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/proxyhub/authclient"
	"github.com/redis/go-redis/v9"
)

// ExampleNew builds a Client that shares its session with other processes through Redis.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	cfg := authclient.DefaultConfig()
	cfg.Endpoints.BaseURL = "https://api.proxyhub.example"
	cfg.Store.Backend = authclient.StoreRedis
	cfg.Store.Namespace = "account-42"

	client, err := authclient.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogoutFunc(func(ctx context.Context, reason authclient.LogoutReason) {
			fmt.Println("logged out:", reason)
		}).
		Build()
	if err != nil {
		return
	}
	defer client.Close()
}

// ExampleClient_Get shows how callers tell an ended session apart from other failures.
func ExampleClient_Get() {
	var client *authclient.Client
	resp, err := client.Get(context.Background(), "/proxies?country=DE")

	var apiErr *authclient.APIError
	switch {
	case errors.Is(err, authclient.ErrSessionExpired):
		// The logout hook already ran; show the login page.
	case errors.As(err, &apiErr):
		_ = apiErr.ErrorCode
	case err == nil:
		_ = resp.Body
	}
}

// ExampleRequest_Replay shows that a request is replayed at most once.
func ExampleRequest_Replay() {
	req := authclient.NewRequest("GET", "/balance", nil)
	replay, ok := req.Replay()
	_, again := replay.Replay()
	fmt.Println(ok, replay.Attempt(), again)
	// Output: true replay false
}
