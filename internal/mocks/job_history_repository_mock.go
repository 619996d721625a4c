// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/surfaceops/surface-api/internal/core (interfaces: JobHistoryRepository)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=job_history_repository_mock.go github.com/surfaceops/surface-api/internal/core JobHistoryRepository
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"

	model "github.com/surfaceops/surface-api/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockJobHistoryRepository is a mock of JobHistoryRepository interface.
type MockJobHistoryRepository struct {
	ctrl     *gomock.Controller
	recorder *MockJobHistoryRepositoryMockRecorder
	isgomock struct{}
}

// MockJobHistoryRepositoryMockRecorder is the mock recorder for MockJobHistoryRepository.
type MockJobHistoryRepositoryMockRecorder struct {
	mock *MockJobHistoryRepository
}

// NewMockJobHistoryRepository creates a new mock instance.
func NewMockJobHistoryRepository(ctrl *gomock.Controller) *MockJobHistoryRepository {
	mock := &MockJobHistoryRepository{ctrl: ctrl}
	mock.recorder = &MockJobHistoryRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockJobHistoryRepository) EXPECT() *MockJobHistoryRepositoryMockRecorder {
	return m.recorder
}

// GetDetail mocks base method.
func (m *MockJobHistoryRepository) GetDetail(ctx context.Context, id string) (*model.JobHistoryDetail, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetDetail", ctx, id)
	ret0, _ := ret[0].(*model.JobHistoryDetail)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetDetail indicates an expected call of GetDetail.
func (mr *MockJobHistoryRepositoryMockRecorder) GetDetail(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetDetail", reflect.TypeOf((*MockJobHistoryRepository)(nil).GetDetail), ctx, id)
}

// List mocks base method.
func (m *MockJobHistoryRepository) List(ctx context.Context, opts model.JobHistoryListOptions) ([]*model.JobHistoryWithCounts, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "List", ctx, opts)
	ret0, _ := ret[0].([]*model.JobHistoryWithCounts)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// List indicates an expected call of List.
func (mr *MockJobHistoryRepositoryMockRecorder) List(ctx, opts any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "List", reflect.TypeOf((*MockJobHistoryRepository)(nil).List), ctx, opts)
}
