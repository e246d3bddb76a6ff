package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"trender/internal/pipeline"
	"trender/internal/trender"
)

type fakeConn struct {
	subject  string
	data     []byte
	flushed  bool
	failPush bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.failPush {
		return errors.New("not connected")
	}
	c.subject = subject
	c.data = data
	return nil
}

func (c *fakeConn) FlushTimeout(timeout time.Duration) error {
	c.flushed = true
	return nil
}

func sampleReport() *pipeline.RunReport {
	return &pipeline.RunReport{
		RunID:   "run-1",
		Summary: pipeline.Summary{TotalTopics: 1, TopicsProcessed: 1, TotalItemsMatched: 2},
		Topics: map[string]pipeline.TopicReport{
			"ai_tech": {Name: "AI", Status: trender.StatusProcessed, Processed: true, ItemsMatched: 2},
		},
		Order: []string{"ai_tech"},
	}
}

func TestNATSPublisher(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn, "trender.reports", time.Second)

	if err := p.Publish(context.Background(), sampleReport()); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if conn.subject != "trender.reports" || !conn.flushed {
		t.Errorf("expected publish and flush on trender.reports, got %+v", conn)
	}

	var decoded pipeline.RunReport
	if err := json.Unmarshal(conn.data, &decoded); err != nil {
		t.Fatalf("payload is not a run report: %v", err)
	}
	if decoded.RunID != "run-1" || decoded.Summary.TotalItemsMatched != 2 {
		t.Errorf("unexpected payload: %+v", decoded)
	}
}

func TestPublishAllJoinsErrors(t *testing.T) {
	good := NewLogPublisher(nil)
	bad := NewNATSPublisher(&fakeConn{failPush: true}, "x", time.Second)

	err := PublishAll(context.Background(), sampleReport(), []Publisher{good, bad})
	if err == nil {
		t.Fatal("expected error from failing publisher")
	}
}
