package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func TestRegisterRateLimit(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Post("/users", RegisterRateLimit(cache, 2), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	want := []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}
	for i, code := range want {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/users", nil))
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.StatusCode != code {
			t.Fatalf("request %d: expected %d got %d", i, code, resp.StatusCode)
		}
	}

	mr.FastForward(time.Minute)
	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/users", nil))
	if err != nil {
		t.Fatalf("request after window: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected window to reset, got %d", resp.StatusCode)
	}
}

func TestRegisterRateLimitWithoutCache(t *testing.T) {
	app := fiber.New()
	app.Post("/users", RegisterRateLimit(nil, 1), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/users", nil))
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d: expected %d got %d", i, fiber.StatusOK, resp.StatusCode)
		}
	}
}
