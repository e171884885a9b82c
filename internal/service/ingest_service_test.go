package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pedia-assist-go/pkg/tasks"
)

// mockUploader implements ObjectUploader for testing.
type mockUploader struct {
	objects      map[string]string
	contentTypes map[string]string
	err          error
}

func (m *mockUploader) PutObject(_ context.Context, name string, r io.Reader, _ int64, contentType string) error {
	if m.err != nil {
		return m.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = map[string]string{}
		m.contentTypes = map[string]string{}
	}
	m.objects[name] = string(b)
	m.contentTypes[name] = contentType
	return nil
}

func TestIngestService_Submit(t *testing.T) {
	uploader := &mockUploader{}
	var published []tasks.IngestTask
	svc := NewIngestService(uploader, func(_ context.Context, task tasks.IngestTask) error {
		published = append(published, task)
		return nil
	})

	body := `{"kind":"chunk"}`
	task, err := svc.Submit(context.Background(), IngestRequest{Type: tasks.TypeCorpusBatch, FileName: "../corpus.jsonl"}, strings.NewReader(body), int64(len(body)))
	require.NoError(t, err)

	assert.NotEmpty(t, task.TaskID)
	assert.Equal(t, "ingest/"+task.TaskID+"/corpus.jsonl", task.ObjectName)
	assert.Equal(t, body, uploader.objects[task.ObjectName])
	assert.Equal(t, "application/x-ndjson", uploader.contentTypes[task.ObjectName])
	require.Len(t, published, 1)
	assert.Equal(t, *task, published[0])
}

func TestIngestService_SubmitErrors(t *testing.T) {
	ok := func(context.Context, tasks.IngestTask) error { return nil }

	svc := NewIngestService(&mockUploader{}, ok)
	_, err := svc.Submit(context.Background(), IngestRequest{Type: tasks.TypeTextbookPDF, FileName: "neo.pdf"}, strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Submit(context.Background(), IngestRequest{Type: tasks.TypeCorpusBatch}, strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	svc = NewIngestService(&mockUploader{err: errors.New("bucket missing")}, ok)
	_, err = svc.Submit(context.Background(), IngestRequest{Type: tasks.TypeCorpusBatch, FileName: "c.jsonl"}, strings.NewReader("x"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket missing")

	svc = NewIngestService(&mockUploader{}, func(context.Context, tasks.IngestTask) error { return errors.New("broker down") })
	_, err = svc.Submit(context.Background(), IngestRequest{Type: tasks.TypeCorpusBatch, FileName: "c.jsonl"}, strings.NewReader("x"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/pdf", contentTypeFor("Neonatology.PDF"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("notes"))
}
