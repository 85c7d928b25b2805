package logctx

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestFromContext_Default(t *testing.T) {
	l := FromContext(context.Background())
	// Must be usable without panicking.
	l.Debug().Msg("default logger")
}

func TestWithStr(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), zerolog.New(&buf))
	ctx = WithStr(ctx, "request_id", "abc")

	l := FromContext(ctx)
	l.Info().Msg("hello")
	if !strings.Contains(buf.String(), `"request_id":"abc"`) {
		t.Errorf("field missing: %s", buf.String())
	}
}
