package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/model"
)

func streamingServer(t *testing.T, chunks int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := range chunks {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"t%d \"}}]}\n\n", i)
		}
		fmt.Fprint(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestModel(srv *httptest.Server) *Model {
	client := openai.NewClient(
		option.WithBaseURL(srv.URL+"/"),
		option.WithAPIKey("test"),
		option.WithMaxRetries(0),
	)
	return NewModelFromClient(&client, func(o *Options) { o.Model = "m" })
}

func TestGenerate_Streaming(t *testing.T) {
	m := newTestModel(streamingServer(t, 3))
	req := model.Request{Stream: true, Contents: []core.Content{core.NewTextContent("user", "hi")}}

	text, _, err := model.Complete(context.Background(), m, req)
	require.NoError(t, err)
	assert.Equal(t, "t0 t1 t2 ", text)
}

func TestGenerate_StreamingStopsWhenConsumerCancels(t *testing.T) {
	// More chunks than the response buffer holds, so the producer blocks
	// once nobody reads.
	m := newTestModel(streamingServer(t, 200))
	ctx, cancel := context.WithCancel(context.Background())
	req := model.Request{Stream: true, Contents: []core.Content{core.NewTextContent("user", "hi")}}

	out, errCh := m.Generate(ctx, req)
	<-out
	cancel()

	select {
	case <-drained(errCh):
	case <-time.After(5 * time.Second):
		t.Fatal("producer goroutine did not stop after cancellation")
	}
}

func drained(errCh <-chan error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for range errCh {
		}
		close(done)
	}()
	return done
}
