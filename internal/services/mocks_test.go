package services

import (
	"context"
	"io"
	"sync"
	"time"

	"facilityops/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockMinioService struct {
	mock.Mock
}

func (m *MockMinioService) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, bucket, key, reader, size, contentType)
	return args.Error(0)
}

func (m *MockMinioService) RemoveObject(ctx context.Context, bucket, key string) error {
	args := m.Called(ctx, bucket, key)
	return args.Error(0)
}

func (m *MockMinioService) BucketExists(ctx context.Context, bucket string) (bool, error) {
	args := m.Called(ctx, bucket)
	return args.Bool(0), args.Error(1)
}

func (m *MockMinioService) EnsureBucketExists(ctx context.Context, bucket string) error {
	args := m.Called(ctx, bucket)
	return args.Error(0)
}

type MockImageUploader struct {
	mock.Mock
}

func (m *MockImageUploader) Upload(ctx context.Context, files []UploadFile) ([]string, error) {
	args := m.Called(ctx, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockImageUploader) Remove(ctx context.Context, urls []string) {
	m.Called(ctx, urls)
}

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) RenderWorkOrder(wo *models.WorkOrder) ([]byte, error) {
	args := m.Called(wo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockReportService) RenderTabular(title string, columns []ReportColumn, rows [][]string, generatedAt time.Time) ([]byte, error) {
	args := m.Called(title, columns, rows, generatedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// recordingScheduler keeps submitted tasks so tests can run them on demand.
type recordingScheduler struct {
	mu    sync.Mutex
	names []string
	tasks []func(ctx context.Context) error
}

func (r *recordingScheduler) Submit(name string, task func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *recordingScheduler) submitted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}
