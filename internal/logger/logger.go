package logger

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Log is the process-wide logger. It is a no-op until Init is called.
var Log = zap.NewNop()

func Init(env string) error {
	var (
		l   *zap.Logger
		err error
	)
	if env == "dev" {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	Log = l
	return nil
}

func Sync() {
	_ = Log.Sync()
}

// Middleware logs one line per request.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		switch {
		case status >= 500:
			Log.Error("request", append(fields, zap.Error(err))...)
		case status >= 400:
			Log.Warn("request", fields...)
		default:
			Log.Info("request", fields...)
		}
		return err
	}
}
