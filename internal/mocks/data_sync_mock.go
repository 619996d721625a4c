// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/surfaceops/surface-api/internal/core (interfaces: DataSync)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=data_sync_mock.go github.com/surfaceops/surface-api/internal/core DataSync
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"

	model "github.com/surfaceops/surface-api/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockDataSync is a mock of DataSync interface.
type MockDataSync struct {
	ctrl     *gomock.Controller
	recorder *MockDataSyncMockRecorder
	isgomock struct{}
}

// MockDataSyncMockRecorder is the mock recorder for MockDataSync.
type MockDataSyncMockRecorder struct {
	mock *MockDataSync
}

// NewMockDataSync creates a new mock instance.
func NewMockDataSync(ctrl *gomock.Controller) *MockDataSync {
	mock := &MockDataSync{ctrl: ctrl}
	mock.recorder = &MockDataSyncMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockDataSync) EXPECT() *MockDataSyncMockRecorder {
	return m.recorder
}

// Apply mocks base method.
func (m *MockDataSync) Apply(ctx context.Context, jobCtx model.JobContext, result *model.ParsedResult) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Apply", ctx, jobCtx, result)
	ret0, _ := ret[0].(error)
	return ret0
}

// Apply indicates an expected call of Apply.
func (mr *MockDataSyncMockRecorder) Apply(ctx, jobCtx, result any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Apply", reflect.TypeOf((*MockDataSync)(nil).Apply), ctx, jobCtx, result)
}
