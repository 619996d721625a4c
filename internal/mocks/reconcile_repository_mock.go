// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/surfaceops/surface-api/internal/core (interfaces: ReconcileRepository)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=reconcile_repository_mock.go github.com/surfaceops/surface-api/internal/core ReconcileRepository
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"
	time "time"

	gomock "go.uber.org/mock/gomock"
)

// MockReconcileRepository is a mock of ReconcileRepository interface.
type MockReconcileRepository struct {
	ctrl     *gomock.Controller
	recorder *MockReconcileRepositoryMockRecorder
	isgomock struct{}
}

// MockReconcileRepositoryMockRecorder is the mock recorder for MockReconcileRepository.
type MockReconcileRepositoryMockRecorder struct {
	mock *MockReconcileRepository
}

// NewMockReconcileRepository creates a new mock instance.
func NewMockReconcileRepository(ctrl *gomock.Controller) *MockReconcileRepository {
	mock := &MockReconcileRepository{ctrl: ctrl}
	mock.recorder = &MockReconcileRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockReconcileRepository) EXPECT() *MockReconcileRepositoryMockRecorder {
	return m.recorder
}

// ExpireStaleWorkers mocks base method.
func (m *MockReconcileRepository) ExpireStaleWorkers(ctx context.Context, deadline time.Time) (int64, int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ExpireStaleWorkers", ctx, deadline)
	ret0, _ := ret[0].(int64)
	ret1, _ := ret[1].(int64)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// ExpireStaleWorkers indicates an expected call of ExpireStaleWorkers.
func (mr *MockReconcileRepositoryMockRecorder) ExpireStaleWorkers(ctx, deadline any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ExpireStaleWorkers", reflect.TypeOf((*MockReconcileRepository)(nil).ExpireStaleWorkers), ctx, deadline)
}

// RecycleFailedJobs mocks base method.
func (m *MockReconcileRepository) RecycleFailedJobs(ctx context.Context, maxRecycles int) (int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "RecycleFailedJobs", ctx, maxRecycles)
	ret0, _ := ret[0].(int64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// RecycleFailedJobs indicates an expected call of RecycleFailedJobs.
func (mr *MockReconcileRepositoryMockRecorder) RecycleFailedJobs(ctx, maxRecycles any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "RecycleFailedJobs", reflect.TypeOf((*MockReconcileRepository)(nil).RecycleFailedJobs), ctx, maxRecycles)
}

// ReleaseOrphanedJobs mocks base method.
func (m *MockReconcileRepository) ReleaseOrphanedJobs(ctx context.Context) (int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ReleaseOrphanedJobs", ctx)
	ret0, _ := ret[0].(int64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ReleaseOrphanedJobs indicates an expected call of ReleaseOrphanedJobs.
func (mr *MockReconcileRepositoryMockRecorder) ReleaseOrphanedJobs(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ReleaseOrphanedJobs", reflect.TypeOf((*MockReconcileRepository)(nil).ReleaseOrphanedJobs), ctx)
}
