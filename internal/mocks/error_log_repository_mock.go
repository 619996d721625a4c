// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/surfaceops/surface-api/internal/core (interfaces: ErrorLogRepository)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=error_log_repository_mock.go github.com/surfaceops/surface-api/internal/core ErrorLogRepository
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"

	model "github.com/surfaceops/surface-api/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockErrorLogRepository is a mock of ErrorLogRepository interface.
type MockErrorLogRepository struct {
	ctrl     *gomock.Controller
	recorder *MockErrorLogRepositoryMockRecorder
	isgomock struct{}
}

// MockErrorLogRepositoryMockRecorder is the mock recorder for MockErrorLogRepository.
type MockErrorLogRepositoryMockRecorder struct {
	mock *MockErrorLogRepository
}

// NewMockErrorLogRepository creates a new mock instance.
func NewMockErrorLogRepository(ctrl *gomock.Controller) *MockErrorLogRepository {
	mock := &MockErrorLogRepository{ctrl: ctrl}
	mock.recorder = &MockErrorLogRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockErrorLogRepository) EXPECT() *MockErrorLogRepositoryMockRecorder {
	return m.recorder
}

// ListByJob mocks base method.
func (m *MockErrorLogRepository) ListByJob(ctx context.Context, jobID string) ([]*model.JobErrorLog, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListByJob", ctx, jobID)
	ret0, _ := ret[0].([]*model.JobErrorLog)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListByJob indicates an expected call of ListByJob.
func (mr *MockErrorLogRepositoryMockRecorder) ListByJob(ctx, jobID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListByJob", reflect.TypeOf((*MockErrorLogRepository)(nil).ListByJob), ctx, jobID)
}
