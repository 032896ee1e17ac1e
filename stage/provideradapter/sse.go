package provideradapter

import (
	"bufio"
	"io"
	"strings"

	"github.com/rcc-sub005/llmrouter/core"
)

// sseLine is one decoded "data:" payload from an SSE body, or a terminal
// signal (done or err).
type sseLine struct {
	data []byte
	done bool
	err  error
}

// sseDataLines parses line-delimited server-sent events, grounded
// directly on providers/anthropic/provider.go's Stream() reader loop:
// "event:" lines are skipped, newline-terminated lines without a "data:"
// prefix are ignored, an unterminated final line without one yields a
// MalformedStream error, and a "[DONE]" payload terminates the sequence.
// Unlike the
// teacher's copy, this is provider-agnostic — it knows nothing about
// the JSON shape inside each payload, only SSE framing.
func sseDataLines(body io.Reader) <-chan sseLine {
	out := make(chan sseLine)
	go func() {
		defer close(out)
		reader := bufio.NewReader(body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					out <- sseLine{err: core.NewError(core.KindNetwork, "sse read failed").WithCause(err)}
					return
				}
				trimmed := strings.TrimSpace(line)
				if trimmed == "" {
					return
				}
				if !strings.HasPrefix(trimmed, "data:") {
					out <- sseLine{err: core.NewError(core.KindMalformedStream, "truncated sse event at eof")}
					return
				}
				data := strings.TrimSpace(strings.TrimPrefix(trimmed, "data:"))
				if data == "[DONE]" {
					out <- sseLine{done: true}
					return
				}
				out <- sseLine{data: []byte(data)}
				return
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "event:") {
				continue
			}
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				out <- sseLine{done: true}
				return
			}
			out <- sseLine{data: []byte(data)}
		}
	}()
	return out
}
